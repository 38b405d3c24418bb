package application

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"cosmossdk.io/math"
	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/core/domain"
	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/core/ports"
	"github.com/Flowerbox-Finance/Flowerbox-Finance/pkg/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type transition func(
	ctx context.Context, vault *domain.Vault, undo *undoLog,
) ([]domain.Event, error)

type service struct {
	// services
	repoManager   ports.RepoManager
	ledger        ports.TokenLedger
	strategies    ports.StrategyProvider
	clock         ports.LedgerClock
	mintAuthority MintAuthorityService

	// config
	factoryAddress    string
	defaultYieldSplit decimal.Decimal
	defaultRewardRate decimal.Decimal

	factoryLock *sync.Mutex
	vaultLocks  *vaultLocks
}

func NewService(
	repoManager ports.RepoManager,
	ledger ports.TokenLedger,
	strategies ports.StrategyProvider,
	clock ports.LedgerClock,
	mintAuthority MintAuthorityService,
	factoryAddress string,
	defaultYieldSplit, defaultRewardRate decimal.Decimal,
) (VaultService, error) {
	factory, err := domain.NewFactory(factoryAddress)
	if err != nil {
		return nil, err
	}
	params := domain.VaultParams{YieldSplit: defaultYieldSplit, RewardRate: defaultRewardRate}
	if params.YieldSplit.IsNegative() || params.YieldSplit.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("default yield split must be in range [0, 1]")
	}
	if params.RewardRate.IsNegative() {
		return nil, fmt.Errorf("default reward rate must not be negative")
	}

	return &service{
		repoManager:       repoManager,
		ledger:            ledger,
		strategies:        strategies,
		clock:             clock,
		mintAuthority:     mintAuthority,
		factoryAddress:    factory.Address,
		defaultYieldSplit: defaultYieldSplit,
		defaultRewardRate: defaultRewardRate,
		factoryLock:       &sync.Mutex{},
		vaultLocks:        newVaultLocks(),
	}, nil
}

// Start makes sure the factory record exists.
func (s *service) Start() error {
	ctx := context.Background()

	factory, err := s.repoManager.Factories().Get(ctx, s.factoryAddress)
	if err != nil {
		return fmt.Errorf("failed to get factory from db: %w", err)
	}
	if factory != nil {
		log.Infof(
			"restored factory %s with %d vaults", factory.Address, len(factory.Vaults),
		)
		return nil
	}

	factory, err = domain.NewFactory(s.factoryAddress)
	if err != nil {
		return err
	}
	if err := s.repoManager.Factories().Upsert(ctx, *factory); err != nil {
		return fmt.Errorf("failed to persist factory: %w", err)
	}
	log.Infof("created factory %s", factory.Address)
	return nil
}

func (s *service) Stop() {
	s.repoManager.Close()
	log.Debug("closed connection to db")
}

func (s *service) GetInfo(ctx context.Context) (*ServiceInfo, error) {
	height, err := s.GetCurrentHeight(ctx)
	if err != nil {
		return nil, err
	}
	factory, err := s.getFactory(ctx)
	if err != nil {
		return nil, err
	}
	authority, err := s.mintAuthority.GetMintAuthority(ctx)
	if err != nil {
		return nil, err
	}

	return &ServiceInfo{
		FactoryAddress:       factory.Address,
		MintAuthorityAddress: authority.Address,
		IncentiveToken:       s.mintAuthority.IncentiveToken(),
		CurrentHeight:        height,
		DefaultYieldSplit:    s.defaultYieldSplit,
		DefaultRewardRate:    s.defaultRewardRate,
		VaultsCount:          len(factory.Vaults),
	}, nil
}

func (s *service) GetCurrentHeight(ctx context.Context) (int64, error) {
	height, err := s.clock.CurrentHeight(ctx)
	if err != nil {
		return -1, errors.INTERNAL_ERROR.Wrap(fmt.Errorf("failed to get ledger height: %w", err))
	}
	return height, nil
}

func (s *service) CreateVault(ctx context.Context, req CreateVaultRequest) (*VaultInfo, error) {
	params := domain.VaultParams{
		CreatorDeposit:     req.CreatorDeposit,
		InvestorDeposit:    req.InvestorDeposit,
		LockDuration:       req.LockDuration,
		UnderlyingAsset:    req.UnderlyingAsset,
		StrategyShareAsset: req.StrategyShareAsset,
		RewardsPool:        req.RewardsPool,
		YieldSplit:         s.defaultYieldSplit,
		RewardRate:         s.defaultRewardRate,
	}
	if req.YieldSplit != nil {
		params.YieldSplit = *req.YieldSplit
	}
	if req.RewardRate != nil {
		params.RewardRate = *req.RewardRate
	}
	if err := params.Validate(); err != nil {
		return nil, toVaultError(nil, "", domain.VaultStateUndefined, err)
	}
	if _, err := parseIdentity("rewards_pool", params.RewardsPool); err != nil {
		return nil, err
	}
	if err := s.validateCollaborators(ctx, params); err != nil {
		return nil, err
	}

	s.factoryLock.Lock()
	defer s.factoryLock.Unlock()

	factory, err := s.getFactory(ctx)
	if err != nil {
		return nil, err
	}

	vault, err := factory.NewVault(uuid.New().String(), params)
	if err != nil {
		return nil, toVaultError(nil, "", domain.VaultStateUndefined, err)
	}

	if err := s.saveEvents(ctx, vault.Id, vault.Events()); err != nil {
		return nil, errors.INTERNAL_ERROR.Wrap(err)
	}
	if err := s.repoManager.Factories().Upsert(ctx, *factory); err != nil {
		return nil, errors.INTERNAL_ERROR.Wrap(fmt.Errorf("failed to persist factory: %w", err))
	}

	log.WithField("vault_id", vault.Id).Infof(
		"created vault %s (creator deposit %s, investor deposit %s, lock %d blocks)",
		vault.Address, vault.CreatorDeposit, vault.InvestorDeposit, vault.LockDuration,
	)
	return s.vaultInfo(ctx, vault)
}

func (s *service) GetVault(ctx context.Context, idOrAddress string) (*VaultInfo, error) {
	vault, err := s.findVault(ctx, idOrAddress)
	if err != nil {
		return nil, err
	}
	return s.vaultInfo(ctx, vault)
}

func (s *service) GetLastVaultCreated(ctx context.Context) (*VaultInfo, error) {
	factory, err := s.getFactory(ctx)
	if err != nil {
		return nil, err
	}
	vaultId, err := factory.LastVault()
	if err != nil {
		return nil, errors.NO_VAULT_CREATED_YET.Wrap(err)
	}
	return s.GetVault(ctx, vaultId)
}

func (s *service) ListVaults(
	ctx context.Context, states ...domain.VaultState,
) ([]VaultInfo, error) {
	vaults, err := s.repoManager.Vaults().GetVaults(ctx, s.factoryAddress, states...)
	if err != nil {
		return nil, errors.INTERNAL_ERROR.Wrap(err)
	}

	height, err := s.GetCurrentHeight(ctx)
	if err != nil {
		return nil, err
	}
	infos := make([]VaultInfo, 0, len(vaults))
	for i := range vaults {
		infos = append(infos, newVaultInfo(&vaults[i], height))
	}
	return infos, nil
}

func (s *service) DepositCreator(
	ctx context.Context, vaultId, caller string, autoCompound bool,
) (*VaultInfo, error) {
	caller, err := parseIdentity("caller", caller)
	if err != nil {
		return nil, err
	}

	vault, err := s.updateVault(
		ctx, vaultId, domain.VaultStateCreated,
		func(ctx context.Context, v *domain.Vault, undo *undoLog) ([]domain.Event, error) {
			events, err := v.DepositCreator(caller, autoCompound)
			if err != nil {
				return nil, toVaultError(v, caller, domain.VaultStateCreated, err)
			}
			if err := s.pull(ctx, v, undo, caller, v.CreatorDeposit); err != nil {
				return nil, err
			}
			return events, nil
		},
	)
	if err != nil {
		return nil, err
	}

	log.WithField("vault_id", vault.Id).Infof(
		"creator %s deposited %s %s", caller, vault.CreatorDeposit, vault.UnderlyingAsset,
	)
	return s.vaultInfo(ctx, vault)
}

func (s *service) DepositInvestor(
	ctx context.Context, vaultId, caller string,
) (*VaultInfo, error) {
	caller, err := parseIdentity("caller", caller)
	if err != nil {
		return nil, err
	}

	vault, err := s.updateVault(
		ctx, vaultId, domain.VaultStateWaitingForMatch,
		func(ctx context.Context, v *domain.Vault, undo *undoLog) ([]domain.Event, error) {
			height, err := s.GetCurrentHeight(ctx)
			if err != nil {
				return nil, err
			}
			if err := v.DepositInvestor(caller, height); err != nil {
				return nil, toVaultError(v, caller, domain.VaultStateWaitingForMatch, err)
			}

			strategy, err := s.getStrategy(ctx, v)
			if err != nil {
				return nil, errors.STRATEGY_DEPOSIT_FAILED.Wrap(err).
					WithMetadata(errors.StrategyMetadata{VaultId: v.Id})
			}

			if err := s.pull(ctx, v, undo, caller, v.InvestorDeposit); err != nil {
				return nil, err
			}

			shares, err := s.deployToStrategy(ctx, v, undo, strategy, v.TotalDeposits())
			if err != nil {
				return nil, err
			}

			events, err := v.OpenStrategyPosition(shares)
			if err != nil {
				return nil, toVaultError(v, caller, domain.VaultStateMatched, err)
			}
			return events, nil
		},
	)
	if err != nil {
		return nil, err
	}

	log.WithField("vault_id", vault.Id).Infof(
		"investor %s deposited %s %s, vault matched at height %d with %s shares",
		caller, vault.InvestorDeposit, vault.UnderlyingAsset, *vault.LockStartHeight,
		vault.StrategyPosition,
	)
	return s.vaultInfo(ctx, vault)
}

func (s *service) WithdrawNoMatch(
	ctx context.Context, vaultId, caller string,
) (*VaultInfo, error) {
	caller, err := parseIdentity("caller", caller)
	if err != nil {
		return nil, err
	}

	vault, err := s.updateVault(
		ctx, vaultId, domain.VaultStateWaitingForMatch,
		func(ctx context.Context, v *domain.Vault, undo *undoLog) ([]domain.Event, error) {
			events, err := v.WithdrawNoMatch(caller)
			if err != nil {
				return nil, toVaultError(v, caller, domain.VaultStateWaitingForMatch, err)
			}
			if err := s.pay(ctx, v, undo, v.UnderlyingAsset, v.Creator, v.CreatorDeposit); err != nil {
				return nil, err
			}
			return events, nil
		},
	)
	if err != nil {
		return nil, err
	}

	log.WithField("vault_id", vault.Id).Infof(
		"creator %s withdrew %s %s with no match", caller, vault.CreatorDeposit,
		vault.UnderlyingAsset,
	)
	return s.vaultInfo(ctx, vault)
}

// Settle unwinds the strategy position of a matured vault, pays both parties
// and mints their rewards in a single atomic step. Rewards are minted before
// the unwind, so a factory that is no longer whitelisted makes settle fail with
// NOT_WHITELISTED and the funds stay in the strategy, the vault still Matched,
// until the admin approves the factory again.
func (s *service) Settle(ctx context.Context, vaultId, caller string) (*VaultInfo, error) {
	caller, err := parseIdentity("caller", caller)
	if err != nil {
		return nil, err
	}

	vault, err := s.updateVault(
		ctx, vaultId, domain.VaultStateMatched,
		func(ctx context.Context, v *domain.Vault, undo *undoLog) ([]domain.Event, error) {
			height, err := s.GetCurrentHeight(ctx)
			if err != nil {
				return nil, err
			}
			if err := v.StartSettlement(caller, height); err != nil {
				if stderrors.Is(err, domain.ErrLockNotElapsed) {
					maturity, _ := v.MaturityHeight()
					return nil, errors.LOCK_NOT_ELAPSED.Wrap(err).
						WithMetadata(errors.LockNotElapsedMetadata{
							VaultId:         v.Id,
							LockStartHeight: *v.LockStartHeight,
							MaturityHeight:  maturity,
							CurrentHeight:   height,
						})
				}
				return nil, toVaultError(v, caller, domain.VaultStateMatched, err)
			}

			strategy, err := s.getStrategy(ctx, v)
			if err != nil {
				return nil, errors.STRATEGY_WITHDRAW_FAILED.Wrap(err).
					WithMetadata(errors.StrategyMetadata{VaultId: v.Id})
			}

			// Rewards do not depend on the proceeds: they are minted first so that
			// a rejected mint leaves the strategy position untouched.
			investorReward := domain.ComputeReward(v.InvestorDeposit, v.LockDuration, v.RewardRate)
			creatorReward := domain.ComputeReward(v.CreatorDeposit, v.LockDuration, v.RewardRate)
			if err := s.mintReward(ctx, v, undo, v.Investor, investorReward); err != nil {
				return nil, err
			}
			if err := s.mintReward(ctx, v, undo, v.Creator, creatorReward); err != nil {
				return nil, err
			}

			proceeds, err := s.unwindStrategy(ctx, v, undo, strategy)
			if err != nil {
				return nil, err
			}

			settlement := domain.SplitProceeds(
				proceeds, v.CreatorDeposit, v.InvestorDeposit, v.YieldSplit,
			)
			settlement.Height = height
			settlement.InvestorReward = investorReward
			settlement.CreatorReward = creatorReward

			if err := s.pay(
				ctx, v, undo, v.UnderlyingAsset, v.Investor, settlement.InvestorPayout,
			); err != nil {
				return nil, err
			}

			if v.AutoCompound && settlement.CreatorPayout.IsPositive() {
				shares, err := s.deployToStrategy(
					ctx, v, undo, strategy, settlement.CreatorPayout,
				)
				if err != nil {
					return nil, err
				}
				if err := s.pay(ctx, v, undo, v.StrategyShareAsset, v.Creator, shares); err != nil {
					return nil, err
				}
				settlement.CreatorShares = shares
			} else {
				if err := s.pay(
					ctx, v, undo, v.UnderlyingAsset, v.Creator, settlement.CreatorPayout,
				); err != nil {
					return nil, err
				}
			}

			return v.CompleteSettlement(settlement)
		},
	)
	if err != nil {
		return nil, err
	}

	log.WithField("vault_id", vault.Id).Infof(
		"vault settled by %s: proceeds %s, investor payout %s, creator payout %s",
		caller, vault.Settlement.Proceeds, vault.Settlement.InvestorPayout,
		vault.Settlement.CreatorPayout,
	)
	return s.vaultInfo(ctx, vault)
}

// updateVault runs the transition on a copy of the vault while holding the
// vault lock. A call finding the lock taken is rejected and never waits. The
// copy is visible to reentrant calls as soon as the transition starts. On failure every recorded effect is reverted and the copy dropped,
// on success only the new events are persisted.
func (s *service) updateVault(
	ctx context.Context, vaultId string, expected domain.VaultState, fn transition,
) (*domain.Vault, error) {
	vault, err := s.findVault(ctx, vaultId)
	if err != nil {
		return nil, err
	}
	vaultId = vault.Id

	if isInFlight(ctx, vaultId) {
		return nil, s.rejectReentrantCall(vaultId, expected)
	}

	unlock, ok := s.vaultLocks.tryAcquire(vaultId)
	if !ok {
		return nil, s.rejectBusyVault(vault, expected)
	}
	defer unlock()

	// reload the vault from its events now that no one else can change it
	vault, err = s.getVaultFromEvents(ctx, vaultId)
	if err != nil {
		return nil, err
	}

	next := vault.Clone()
	committed := len(next.Events())
	s.vaultLocks.setLive(next)
	defer s.vaultLocks.clearLive(vaultId)

	undo := &undoLog{key: "vault_id", id: vaultId}
	txCtx := withInFlight(ctx, vaultId)

	events, err := fn(txCtx, next, undo)
	if err != nil {
		undo.rollback(ctx)
		return nil, err
	}
	if len(next.Events()) != committed+len(events) {
		undo.rollback(ctx)
		return nil, errors.INTERNAL_ERROR.New("unexpected events raised by vault %s", vaultId)
	}

	if err := s.saveEvents(ctx, vaultId, events); err != nil {
		undo.rollback(ctx)
		return nil, errors.INTERNAL_ERROR.Wrap(err)
	}
	return next, nil
}

// rejectReentrantCall evaluates the transition guard against the in-flight
// state of the vault. A reentrant call is always rejected, with the guard
// error when there is one.
func (s *service) rejectReentrantCall(vaultId string, expected domain.VaultState) error {
	live := s.vaultLocks.getLive(vaultId)
	if live == nil {
		return errors.INTERNAL_ERROR.New("vault %s marked in flight but not found", vaultId)
	}

	log.WithField("vault_id", vaultId).Warnf(
		"reentrant call on vault in state %s rejected", live.State,
	)

	if live.State != expected {
		return toVaultError(
			live, "", expected, fmt.Errorf(
				"%w: vault %s is %s, expected %s", domain.ErrWrongState, vaultId, live.State,
				expected,
			),
		)
	}
	// The guard would pass: run nothing and reject anyway.
	return transitionInProgress(vaultId, live.State, expected)
}

// rejectBusyVault rejects a call that finds the vault locked by a transition
// that does not belong to its call chain, ie. a callback made with a fresh
// context or a concurrent request. The in-flight state is used when already
// exposed, otherwise the last committed one.
func (s *service) rejectBusyVault(vault *domain.Vault, expected domain.VaultState) error {
	if live := s.vaultLocks.getLive(vault.Id); live != nil {
		return s.rejectReentrantCall(vault.Id, expected)
	}
	log.WithField("vault_id", vault.Id).Warn("call on vault with a transition in progress rejected")
	return transitionInProgress(vault.Id, vault.State, expected)
}

func transitionInProgress(vaultId string, current, expected domain.VaultState) error {
	return errors.WRONG_STATE.New("vault %s has a transition in progress", vaultId).
		WithMetadata(errors.WrongStateMetadata{
			VaultId:       vaultId,
			CurrentState:  current.String(),
			ExpectedState: expected.String(),
		})
}

// pull transfers amount of the underlying asset from the given identity into
// the vault custody through the allowance granted to the vault.
func (s *service) pull(
	ctx context.Context, v *domain.Vault, undo *undoLog, from string, amount math.Int,
) error {
	moved, err := s.ledger.TransferFrom(
		ctx, v.UnderlyingAsset, v.Address, from, v.Address, amount,
	)
	if moved.IsNil() {
		moved = math.ZeroInt()
	}
	if moved.IsPositive() {
		undo.add(fmt.Sprintf("pull of %s from %s", moved, from), func(ctx context.Context) error {
			_, err := s.ledger.Transfer(ctx, v.UnderlyingAsset, v.Address, from, moved)
			return err
		})
	}
	if err != nil || !moved.Equal(amount) {
		return transferFailed(v.Id, v.UnderlyingAsset, from, v.Address, amount, moved, err)
	}
	return nil
}

// pay transfers amount of token from the vault custody to the given identity.
// Zero amounts are skipped.
func (s *service) pay(
	ctx context.Context, v *domain.Vault, undo *undoLog, token, to string, amount math.Int,
) error {
	if !amount.IsPositive() {
		return nil
	}
	moved, err := s.ledger.Transfer(ctx, token, v.Address, to, amount)
	if moved.IsNil() {
		moved = math.ZeroInt()
	}
	if moved.IsPositive() {
		undo.add(fmt.Sprintf("payment of %s %s to %s", moved, token, to), func(ctx context.Context) error {
			_, err := s.ledger.Transfer(ctx, token, to, v.Address, moved)
			return err
		})
	}
	if err != nil || !moved.Equal(amount) {
		return transferFailed(v.Id, token, v.Address, to, amount, moved, err)
	}
	return nil
}

// deployToStrategy deposits amount of the underlying asset into the strategy
// and returns the shares credited to the vault.
func (s *service) deployToStrategy(
	ctx context.Context, v *domain.Vault, undo *undoLog, strategy ports.Strategy,
	amount math.Int,
) (math.Int, error) {
	fail := func(err error, shares math.Int) (math.Int, error) {
		return math.Int{}, errors.STRATEGY_DEPOSIT_FAILED.Wrap(err).
			WithMetadata(errors.StrategyMetadata{
				VaultId:  v.Id,
				Amount:   amount.String(),
				Received: amountOrZero(shares).String(),
			})
	}

	sharesBefore, err := s.ledger.BalanceOf(ctx, v.StrategyShareAsset, v.Address)
	if err != nil {
		return fail(err, math.ZeroInt())
	}
	if err := s.ledger.Approve(
		ctx, v.UnderlyingAsset, v.Address, strategy.Address(), amount,
	); err != nil {
		return fail(err, math.ZeroInt())
	}
	undo.add("strategy allowance", func(ctx context.Context) error {
		return s.ledger.Approve(ctx, v.UnderlyingAsset, v.Address, strategy.Address(), math.ZeroInt())
	})

	shares, err := strategy.Deposit(ctx, v.Address, amount)
	if err != nil {
		return fail(err, shares)
	}
	undo.add(fmt.Sprintf("strategy deposit of %s", amount), func(ctx context.Context) error {
		_, err := strategy.Withdraw(ctx, v.Address, shares)
		return err
	})
	if shares.IsNil() || !shares.IsPositive() {
		return fail(fmt.Errorf("strategy returned no shares"), shares)
	}

	sharesAfter, err := s.ledger.BalanceOf(ctx, v.StrategyShareAsset, v.Address)
	if err != nil {
		return fail(err, shares)
	}
	if !sharesAfter.Sub(sharesBefore).Equal(shares) {
		return fail(fmt.Errorf(
			"vault share balance grew by %s, strategy reported %s",
			sharesAfter.Sub(sharesBefore), shares,
		), shares)
	}
	return shares, nil
}

// unwindStrategy withdraws the whole position and checks the custody balance
// grew by the reported proceeds.
func (s *service) unwindStrategy(
	ctx context.Context, v *domain.Vault, undo *undoLog, strategy ports.Strategy,
) (math.Int, error) {
	position := v.StrategyPosition
	fail := func(err error, proceeds math.Int) (math.Int, error) {
		return math.Int{}, errors.STRATEGY_WITHDRAW_FAILED.Wrap(err).
			WithMetadata(errors.StrategyMetadata{
				VaultId:  v.Id,
				Shares:   position.String(),
				Received: amountOrZero(proceeds).String(),
			})
	}

	balanceBefore, err := s.ledger.BalanceOf(ctx, v.UnderlyingAsset, v.Address)
	if err != nil {
		return fail(err, math.ZeroInt())
	}

	proceeds, err := strategy.Withdraw(ctx, v.Address, position)
	if err != nil {
		return fail(err, proceeds)
	}
	// The position is restored by depositing the proceeds back: the number of
	// shares may differ if the strategy price moved in between.
	undo.add(fmt.Sprintf("strategy withdrawal of %s shares", position), func(ctx context.Context) error {
		if err := s.ledger.Approve(
			ctx, v.UnderlyingAsset, v.Address, strategy.Address(), proceeds,
		); err != nil {
			return err
		}
		shares, err := strategy.Deposit(ctx, v.Address, proceeds)
		if err != nil {
			return err
		}
		if !shares.Equal(position) {
			log.WithField("vault_id", v.Id).Warnf(
				"strategy position restored with %s shares instead of %s", shares, position,
			)
		}
		return nil
	})
	if proceeds.IsNil() || proceeds.IsNegative() {
		return fail(fmt.Errorf("strategy returned invalid proceeds"), math.ZeroInt())
	}

	balanceAfter, err := s.ledger.BalanceOf(ctx, v.UnderlyingAsset, v.Address)
	if err != nil {
		return fail(err, proceeds)
	}
	if !balanceAfter.Sub(balanceBefore).Equal(proceeds) {
		return fail(fmt.Errorf(
			"vault balance grew by %s, strategy reported %s",
			balanceAfter.Sub(balanceBefore), proceeds,
		), proceeds)
	}
	return proceeds, nil
}

func (s *service) mintReward(
	ctx context.Context, v *domain.Vault, undo *undoLog, recipient string, amount math.Int,
) error {
	if !amount.IsPositive() {
		return nil
	}
	if err := s.mintAuthority.MintReward(ctx, v.Factory, recipient, amount); err != nil {
		return err
	}
	token := s.mintAuthority.IncentiveToken()
	undo.add(fmt.Sprintf("reward of %s to %s", amount, recipient), func(ctx context.Context) error {
		return s.ledger.Burn(ctx, token, recipient, amount)
	})
	return nil
}

func (s *service) validateCollaborators(ctx context.Context, params domain.VaultParams) error {
	for field, token := range map[string]string{
		"underlying_asset":     params.UnderlyingAsset,
		"strategy_share_asset": params.StrategyShareAsset,
	} {
		ok, err := s.ledger.HasToken(ctx, token)
		if err != nil {
			return errors.INTERNAL_ERROR.Wrap(err)
		}
		if !ok {
			return invalidParams(field, token, "is not registered on the ledger")
		}
	}

	strategy, err := s.strategies.GetStrategy(
		ctx, params.UnderlyingAsset, params.StrategyShareAsset,
	)
	if err != nil {
		return errors.INTERNAL_ERROR.Wrap(err)
	}
	if strategy == nil {
		return invalidParams(
			"strategy_share_asset", params.StrategyShareAsset,
			fmt.Sprintf("no strategy found for underlying asset %s", params.UnderlyingAsset),
		)
	}
	return nil
}

func (s *service) getStrategy(ctx context.Context, v *domain.Vault) (ports.Strategy, error) {
	strategy, err := s.strategies.GetStrategy(ctx, v.UnderlyingAsset, v.StrategyShareAsset)
	if err != nil {
		return nil, err
	}
	if strategy == nil {
		return nil, fmt.Errorf(
			"no strategy found for %s/%s", v.UnderlyingAsset, v.StrategyShareAsset,
		)
	}
	return strategy, nil
}

func (s *service) getFactory(ctx context.Context) (*domain.Factory, error) {
	factory, err := s.repoManager.Factories().Get(ctx, s.factoryAddress)
	if err != nil {
		return nil, errors.INTERNAL_ERROR.Wrap(err)
	}
	if factory == nil {
		return nil, errors.INTERNAL_ERROR.New("factory %s not initialized", s.factoryAddress)
	}
	return factory, nil
}

// findVault looks up the vault projection by id or by custody address.
func (s *service) findVault(ctx context.Context, idOrAddress string) (*domain.Vault, error) {
	var (
		vault *domain.Vault
		err   error
	)
	if common.IsHexAddress(idOrAddress) {
		address := common.HexToAddress(idOrAddress).Hex()
		vault, err = s.repoManager.Vaults().GetVaultByAddress(ctx, address)
	} else {
		vault, err = s.repoManager.Vaults().GetVault(ctx, idOrAddress)
	}
	if err != nil {
		return nil, errors.INTERNAL_ERROR.Wrap(err)
	}
	if vault == nil || vault.Factory != s.factoryAddress {
		return nil, errors.VAULT_NOT_FOUND.New("vault %s not found", idOrAddress).
			WithMetadata(errors.VaultMetadata{VaultId: idOrAddress})
	}
	return vault, nil
}

func (s *service) getVaultFromEvents(ctx context.Context, vaultId string) (*domain.Vault, error) {
	events, err := s.repoManager.Events().GetEvents(ctx, domain.VaultTopic, vaultId)
	if err != nil {
		return nil, errors.INTERNAL_ERROR.Wrap(err)
	}
	if len(events) == 0 {
		return nil, errors.VAULT_NOT_FOUND.New("vault %s not found", vaultId).
			WithMetadata(errors.VaultMetadata{VaultId: vaultId})
	}
	return domain.NewVaultFromEvents(events), nil
}

func (s *service) vaultInfo(ctx context.Context, vault *domain.Vault) (*VaultInfo, error) {
	height, err := s.GetCurrentHeight(ctx)
	if err != nil {
		return nil, err
	}
	info := newVaultInfo(vault, height)
	return &info, nil
}

func (s *service) saveEvents(ctx context.Context, id string, events []domain.Event) error {
	if len(events) <= 0 {
		return nil
	}
	return s.repoManager.Events().Save(ctx, domain.VaultTopic, id, events)
}

func newVaultInfo(vault *domain.Vault, height int64) VaultInfo {
	info := VaultInfo{Vault: *vault}
	if maturity, ok := vault.MaturityHeight(); ok {
		info.MaturityHeight = maturity
		info.IsSettleable = vault.State == domain.VaultStateMatched && height >= maturity
	}
	return info
}
