package pgdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/core/domain"
	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/infrastructure/db/dbutil"
)

const (
	upsertVault = `
INSERT INTO vault (
    id, address, factory, sequence, creator_deposit, investor_deposit, lock_duration,
    underlying_asset, strategy_share_asset, rewards_pool, yield_split, reward_rate,
    state, creator, investor, auto_compound, lock_start_height, strategy_position,
    created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
ON CONFLICT(id) DO UPDATE SET
    state = excluded.state,
    creator = excluded.creator,
    investor = excluded.investor,
    auto_compound = excluded.auto_compound,
    lock_start_height = excluded.lock_start_height,
    strategy_position = excluded.strategy_position,
    updated_at = excluded.updated_at`

	upsertSettlement = `
INSERT INTO settlement (
    vault_id, height, proceeds, investor_payout, creator_payout, investor_yield,
    creator_yield, shortfall, creator_loss, creator_shares, investor_reward, creator_reward
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT(vault_id) DO NOTHING`

	selectVault = `
SELECT v.id, v.address, v.factory, v.sequence, v.creator_deposit, v.investor_deposit,
    v.lock_duration, v.underlying_asset, v.strategy_share_asset, v.rewards_pool,
    v.yield_split, v.reward_rate, v.state, v.creator, v.investor, v.auto_compound,
    v.lock_start_height, v.strategy_position, v.created_at, v.updated_at,
    s.height, s.proceeds, s.investor_payout, s.creator_payout, s.investor_yield,
    s.creator_yield, s.shortfall, s.creator_loss, s.creator_shares, s.investor_reward,
    s.creator_reward
FROM vault v LEFT JOIN settlement s ON s.vault_id = v.id`
)

type vaultRepository struct {
	db *sql.DB
}

func NewVaultRepository(config ...interface{}) (domain.VaultRepository, error) {
	if len(config) != 1 {
		return nil, fmt.Errorf("invalid config: expected 1 argument, got %d", len(config))
	}
	db, ok := config[0].(*sql.DB)
	if !ok {
		return nil, fmt.Errorf("cannot open vault repository: expected *sql.DB but got %T", config[0])
	}

	return &vaultRepository{db}, nil
}

func (r *vaultRepository) AddOrUpdateVault(ctx context.Context, vault domain.Vault) error {
	return execTx(ctx, r.db, func(tx *sql.Tx) error {
		var lockStart sql.NullInt64
		if vault.LockStartHeight != nil {
			lockStart = sql.NullInt64{Int64: *vault.LockStartHeight, Valid: true}
		}
		if _, err := tx.ExecContext(
			ctx, upsertVault,
			vault.Id, vault.Address, vault.Factory, int64(vault.Sequence),
			dbutil.FormatAmount(vault.CreatorDeposit), dbutil.FormatAmount(vault.InvestorDeposit),
			vault.LockDuration, vault.UnderlyingAsset, vault.StrategyShareAsset,
			vault.RewardsPool, vault.YieldSplit.String(), vault.RewardRate.String(),
			int64(vault.State), vault.Creator, vault.Investor, vault.AutoCompound, lockStart,
			dbutil.FormatAmount(vault.StrategyPosition), vault.CreatedAt, vault.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to upsert vault %s: %w", vault.Id, err)
		}

		if vault.Settlement == nil {
			return nil
		}
		s := dbutil.FromSettlement(*vault.Settlement)
		if _, err := tx.ExecContext(
			ctx, upsertSettlement,
			vault.Id, s.Height, s.Proceeds, s.InvestorPayout, s.CreatorPayout,
			s.InvestorYield, s.CreatorYield, s.Shortfall, s.CreatorLoss, s.CreatorShares,
			s.InvestorReward, s.CreatorReward,
		); err != nil {
			return fmt.Errorf("failed to insert settlement of vault %s: %w", vault.Id, err)
		}
		return nil
	})
}

func (r *vaultRepository) GetVault(ctx context.Context, id string) (*domain.Vault, error) {
	row := r.db.QueryRowContext(ctx, selectVault+" WHERE v.id = $1", id)
	vault, err := scanVault(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vault %s: %w", id, err)
	}
	return vault, nil
}

func (r *vaultRepository) GetVaultByAddress(
	ctx context.Context, address string,
) (*domain.Vault, error) {
	row := r.db.QueryRowContext(ctx, selectVault+" WHERE v.address = $1", address)
	vault, err := scanVault(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vault with address %s: %w", address, err)
	}
	return vault, nil
}

func (r *vaultRepository) GetVaults(
	ctx context.Context, factory string, states ...domain.VaultState,
) ([]domain.Vault, error) {
	query := selectVault + " WHERE v.factory = $1"
	args := []interface{}{factory}
	if len(states) > 0 {
		placeholders := make([]string, 0, len(states))
		for _, state := range states {
			args = append(args, int64(state))
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
		}
		query += fmt.Sprintf(" AND v.state IN (%s)", strings.Join(placeholders, ", "))
	}
	query += " ORDER BY v.sequence ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get vaults of factory %s: %w", factory, err)
	}
	// nolint
	defer rows.Close()

	vaults := make([]domain.Vault, 0)
	for rows.Next() {
		vault, err := scanVault(rows)
		if err != nil {
			return nil, err
		}
		vaults = append(vaults, *vault)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return vaults, nil
}

func (r *vaultRepository) Close() {
	_ = r.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVault(row scanner) (*domain.Vault, error) {
	var (
		sequence, state                              int64
		creatorDeposit, investorDeposit, position    string
		yieldSplit, rewardRate                       string
		lockStart, settlementHeight                  sql.NullInt64
		proceeds, investorPayout, creatorPayout      sql.NullString
		investorYield, creatorYield, shortfall, loss sql.NullString
		creatorShares, investorReward, creatorReward sql.NullString
	)
	vault := domain.Vault{}
	if err := row.Scan(
		&vault.Id, &vault.Address, &vault.Factory, &sequence, &creatorDeposit,
		&investorDeposit, &vault.LockDuration, &vault.UnderlyingAsset,
		&vault.StrategyShareAsset, &vault.RewardsPool, &yieldSplit, &rewardRate, &state,
		&vault.Creator, &vault.Investor, &vault.AutoCompound, &lockStart, &position,
		&vault.CreatedAt, &vault.UpdatedAt,
		&settlementHeight, &proceeds, &investorPayout, &creatorPayout, &investorYield,
		&creatorYield, &shortfall, &loss, &creatorShares, &investorReward, &creatorReward,
	); err != nil {
		return nil, err
	}

	var err error
	vault.Sequence = uint64(sequence)
	vault.State = domain.VaultState(state)
	if vault.CreatorDeposit, err = dbutil.ParseAmount(creatorDeposit); err != nil {
		return nil, err
	}
	if vault.InvestorDeposit, err = dbutil.ParseAmount(investorDeposit); err != nil {
		return nil, err
	}
	if vault.StrategyPosition, err = dbutil.ParseAmount(position); err != nil {
		return nil, err
	}
	if vault.YieldSplit, err = dbutil.ParseDecimal(yieldSplit); err != nil {
		return nil, err
	}
	if vault.RewardRate, err = dbutil.ParseDecimal(rewardRate); err != nil {
		return nil, err
	}
	if lockStart.Valid {
		height := lockStart.Int64
		vault.LockStartHeight = &height
	}
	if settlementHeight.Valid {
		settlement, err := dbutil.Settlement{
			Height:         settlementHeight.Int64,
			Proceeds:       proceeds.String,
			InvestorPayout: investorPayout.String,
			CreatorPayout:  creatorPayout.String,
			InvestorYield:  investorYield.String,
			CreatorYield:   creatorYield.String,
			Shortfall:      shortfall.String,
			CreatorLoss:    loss.String,
			CreatorShares:  creatorShares.String,
			InvestorReward: investorReward.String,
			CreatorReward:  creatorReward.String,
		}.ToDomain()
		if err != nil {
			return nil, err
		}
		vault.Settlement = settlement
	}
	return &vault, nil
}
