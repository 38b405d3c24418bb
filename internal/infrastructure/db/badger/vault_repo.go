package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/core/domain"
	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/infrastructure/db/dbutil"
	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
)

const vaultStoreDir = "vaults"

type vaultDTO struct {
	Id                 string
	Address            string
	Factory            string
	Sequence           uint64
	CreatorDeposit     string
	InvestorDeposit    string
	LockDuration       int64
	UnderlyingAsset    string
	StrategyShareAsset string
	RewardsPool        string
	YieldSplit         string
	RewardRate         string
	State              uint8
	Creator            string
	Investor           string
	AutoCompound       bool
	HasLockStart       bool
	LockStartHeight    int64
	StrategyPosition   string
	Settlement         *dbutil.Settlement
	CreatedAt          int64
	UpdatedAt          int64
}

type vaultRepository struct {
	store *badgerhold.Store
}

func NewVaultRepository(config ...interface{}) (domain.VaultRepository, error) {
	baseDir, logger, err := parseConfig(config...)
	if err != nil {
		return nil, err
	}

	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, vaultStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open vault store: %s", err)
	}

	return &vaultRepository{store}, nil
}

func (r *vaultRepository) AddOrUpdateVault(ctx context.Context, vault domain.Vault) error {
	dto := toVaultDTO(vault)
	if err := r.store.Upsert(dto.Id, &dto); err != nil {
		if errors.Is(err, badger.ErrConflict) {
			attempts := 1
			for errors.Is(err, badger.ErrConflict) && attempts <= maxRetries {
				time.Sleep(100 * time.Millisecond)
				err = r.store.Upsert(dto.Id, &dto)
				attempts++
			}
		}
		return err
	}
	return nil
}

func (r *vaultRepository) GetVault(ctx context.Context, id string) (*domain.Vault, error) {
	var dto vaultDTO
	err := r.store.Get(id, &dto)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vault %s: %w", id, err)
	}
	return dto.toDomain()
}

func (r *vaultRepository) GetVaultByAddress(
	ctx context.Context, address string,
) (*domain.Vault, error) {
	var dtos []vaultDTO
	if err := r.store.Find(&dtos, badgerhold.Where("Address").Eq(address)); err != nil {
		return nil, fmt.Errorf("failed to get vault with address %s: %w", address, err)
	}
	if len(dtos) <= 0 {
		return nil, nil
	}
	return dtos[0].toDomain()
}

func (r *vaultRepository) GetVaults(
	ctx context.Context, factory string, states ...domain.VaultState,
) ([]domain.Vault, error) {
	query := badgerhold.Where("Factory").Eq(factory).SortBy("Sequence")

	var dtos []vaultDTO
	if err := r.store.Find(&dtos, query); err != nil {
		return nil, fmt.Errorf("failed to get vaults of factory %s: %w", factory, err)
	}

	filter := make(map[uint8]struct{}, len(states))
	for _, state := range states {
		filter[uint8(state)] = struct{}{}
	}

	vaults := make([]domain.Vault, 0, len(dtos))
	for _, dto := range dtos {
		if _, ok := filter[dto.State]; len(filter) > 0 && !ok {
			continue
		}
		vault, err := dto.toDomain()
		if err != nil {
			return nil, err
		}
		vaults = append(vaults, *vault)
	}
	return vaults, nil
}

func (r *vaultRepository) Close() {
	// nolint:all
	r.store.Close()
}

func toVaultDTO(vault domain.Vault) vaultDTO {
	dto := vaultDTO{
		Id:                 vault.Id,
		Address:            vault.Address,
		Factory:            vault.Factory,
		Sequence:           vault.Sequence,
		CreatorDeposit:     dbutil.FormatAmount(vault.CreatorDeposit),
		InvestorDeposit:    dbutil.FormatAmount(vault.InvestorDeposit),
		LockDuration:       vault.LockDuration,
		UnderlyingAsset:    vault.UnderlyingAsset,
		StrategyShareAsset: vault.StrategyShareAsset,
		RewardsPool:        vault.RewardsPool,
		YieldSplit:         vault.YieldSplit.String(),
		RewardRate:         vault.RewardRate.String(),
		State:              uint8(vault.State),
		Creator:            vault.Creator,
		Investor:           vault.Investor,
		AutoCompound:       vault.AutoCompound,
		StrategyPosition:   dbutil.FormatAmount(vault.StrategyPosition),
		CreatedAt:          vault.CreatedAt,
		UpdatedAt:          vault.UpdatedAt,
	}
	if vault.LockStartHeight != nil {
		dto.HasLockStart = true
		dto.LockStartHeight = *vault.LockStartHeight
	}
	if vault.Settlement != nil {
		settlement := dbutil.FromSettlement(*vault.Settlement)
		dto.Settlement = &settlement
	}
	return dto
}

func (d vaultDTO) toDomain() (*domain.Vault, error) {
	creatorDeposit, err := dbutil.ParseAmount(d.CreatorDeposit)
	if err != nil {
		return nil, err
	}
	investorDeposit, err := dbutil.ParseAmount(d.InvestorDeposit)
	if err != nil {
		return nil, err
	}
	position, err := dbutil.ParseAmount(d.StrategyPosition)
	if err != nil {
		return nil, err
	}
	yieldSplit, err := dbutil.ParseDecimal(d.YieldSplit)
	if err != nil {
		return nil, err
	}
	rewardRate, err := dbutil.ParseDecimal(d.RewardRate)
	if err != nil {
		return nil, err
	}

	vault := &domain.Vault{
		Id:       d.Id,
		Address:  d.Address,
		Factory:  d.Factory,
		Sequence: d.Sequence,
		VaultParams: domain.VaultParams{
			CreatorDeposit:     creatorDeposit,
			InvestorDeposit:    investorDeposit,
			LockDuration:       d.LockDuration,
			UnderlyingAsset:    d.UnderlyingAsset,
			StrategyShareAsset: d.StrategyShareAsset,
			RewardsPool:        d.RewardsPool,
			YieldSplit:         yieldSplit,
			RewardRate:         rewardRate,
		},
		State:            domain.VaultState(d.State),
		Creator:          d.Creator,
		Investor:         d.Investor,
		AutoCompound:     d.AutoCompound,
		StrategyPosition: position,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
	if d.HasLockStart {
		height := d.LockStartHeight
		vault.LockStartHeight = &height
	}
	if d.Settlement != nil {
		settlement, err := d.Settlement.ToDomain()
		if err != nil {
			return nil, err
		}
		vault.Settlement = settlement
	}
	return vault, nil
}
