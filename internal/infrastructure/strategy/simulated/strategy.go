package simulatedstrategy

import (
	"context"
	"fmt"
	"sync"

	"cosmossdk.io/math"
	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/core/ports"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	UnderlyingAsset string
	ShareAsset      string
	// YieldSource funds the accrued yield and receives the losses when the
	// rate is negative.
	YieldSource string
	// YieldRate is the fraction of the assets under management earned every
	// block.
	YieldRate decimal.Decimal
}

// strategy is a share vault over the token ledger. It issues shares
// proportionally to the assets under management and accrues yield lazily,
// block by block, whenever a deposit or a withdrawal touches it.
type strategy struct {
	address string
	cfg     Config
	ledger  ports.TokenLedger
	clock   ports.LedgerClock

	lock          *sync.Mutex
	accruedHeight int64
}

// NewStrategy registers the share asset on the ledger with the strategy as
// its minter.
func NewStrategy(
	ctx context.Context, ledger ports.TokenLedger, clock ports.LedgerClock, cfg Config,
) (ports.Strategy, error) {
	if cfg.UnderlyingAsset == "" || cfg.ShareAsset == "" {
		return nil, fmt.Errorf("missing strategy assets")
	}
	if cfg.UnderlyingAsset == cfg.ShareAsset {
		return nil, fmt.Errorf("underlying and share asset must differ")
	}
	if !common.IsHexAddress(cfg.YieldSource) {
		return nil, fmt.Errorf("invalid yield source %s", cfg.YieldSource)
	}
	cfg.YieldSource = common.HexToAddress(cfg.YieldSource).Hex()
	if cfg.YieldRate.LessThanOrEqual(decimal.NewFromInt(-1)) {
		return nil, fmt.Errorf("yield rate must be greater than -1")
	}

	ok, err := ledger.HasToken(ctx, cfg.UnderlyingAsset)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("underlying asset %s is not registered on the ledger", cfg.UnderlyingAsset)
	}

	address := StrategyAddress(cfg.UnderlyingAsset, cfg.ShareAsset)
	if err := ledger.SetMinter(ctx, cfg.ShareAsset, address); err != nil {
		return nil, fmt.Errorf("failed to register share asset %s: %w", cfg.ShareAsset, err)
	}

	height, err := clock.CurrentHeight(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current height: %w", err)
	}

	return &strategy{
		address:       address,
		cfg:           cfg,
		ledger:        ledger,
		clock:         clock,
		lock:          &sync.Mutex{},
		accruedHeight: height,
	}, nil
}

// StrategyAddress returns the deterministic ledger identity of the strategy
// for the given asset pair.
func StrategyAddress(underlyingAsset, shareAsset string) string {
	hash := crypto.Keccak256([]byte("strategy"), []byte(underlyingAsset), []byte(shareAsset))
	return common.BytesToAddress(hash).Hex()
}

func (s *strategy) Address() string {
	return s.address
}

func (s *strategy) UnderlyingAsset() string {
	return s.cfg.UnderlyingAsset
}

func (s *strategy) ShareAsset() string {
	return s.cfg.ShareAsset
}

func (s *strategy) Deposit(
	ctx context.Context, owner string, amount math.Int,
) (math.Int, error) {
	if amount.IsNil() || !amount.IsPositive() {
		return math.Int{}, fmt.Errorf("deposit amount must be strictly positive")
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if err := s.accrue(ctx); err != nil {
		return math.Int{}, err
	}

	assets, supply, err := s.totals(ctx)
	if err != nil {
		return math.Int{}, err
	}
	shares := amount
	if supply.IsPositive() && assets.IsPositive() {
		shares = amount.Mul(supply).Quo(assets)
	}
	if !shares.IsPositive() {
		return math.Int{}, fmt.Errorf("deposit of %s is too small to mint any share", amount)
	}

	moved, err := s.ledger.TransferFrom(
		ctx, s.cfg.UnderlyingAsset, s.address, owner, s.address, amount,
	)
	if err != nil {
		return math.Int{}, fmt.Errorf("failed to pull deposit: %w", err)
	}
	if !moved.Equal(amount) {
		return math.Int{}, fmt.Errorf("pulled %s instead of %s", moved, amount)
	}

	if err := s.ledger.Mint(ctx, s.cfg.ShareAsset, s.address, owner, shares); err != nil {
		if _, rollbackErr := s.ledger.Transfer(
			ctx, s.cfg.UnderlyingAsset, s.address, owner, amount,
		); rollbackErr != nil {
			log.WithError(rollbackErr).Errorf("failed to refund deposit of %s", owner)
		}
		return math.Int{}, fmt.Errorf("failed to mint shares: %w", err)
	}

	log.WithField("strategy", s.address).Debugf(
		"%s deposited %s %s for %s shares", owner, amount, s.cfg.UnderlyingAsset, shares,
	)
	return shares, nil
}

func (s *strategy) Withdraw(
	ctx context.Context, owner string, shares math.Int,
) (math.Int, error) {
	if shares.IsNil() || !shares.IsPositive() {
		return math.Int{}, fmt.Errorf("withdrawn shares must be strictly positive")
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if err := s.accrue(ctx); err != nil {
		return math.Int{}, err
	}

	assets, supply, err := s.totals(ctx)
	if err != nil {
		return math.Int{}, err
	}
	if supply.LT(shares) {
		return math.Int{}, fmt.Errorf("cannot withdraw %s shares out of %s", shares, supply)
	}
	amount := shares.Mul(assets).Quo(supply)

	if err := s.ledger.Burn(ctx, s.cfg.ShareAsset, owner, shares); err != nil {
		return math.Int{}, fmt.Errorf("failed to burn shares: %w", err)
	}
	if amount.IsPositive() {
		if _, err := s.ledger.Transfer(
			ctx, s.cfg.UnderlyingAsset, s.address, owner, amount,
		); err != nil {
			if mintErr := s.ledger.Mint(
				ctx, s.cfg.ShareAsset, s.address, owner, shares,
			); mintErr != nil {
				log.WithError(mintErr).Errorf("failed to restore shares of %s", owner)
			}
			return math.Int{}, fmt.Errorf("failed to pay withdrawal: %w", err)
		}
	}

	log.WithField("strategy", s.address).Debugf(
		"%s withdrew %s %s for %s shares", owner, amount, s.cfg.UnderlyingAsset, shares,
	)
	return amount, nil
}

// accrue settles the yield of the blocks elapsed since the last accrual. A
// positive yield is capped by what the yield source holds.
func (s *strategy) accrue(ctx context.Context) error {
	height, err := s.clock.CurrentHeight(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current height: %w", err)
	}
	blocks := height - s.accruedHeight
	if blocks <= 0 || s.cfg.YieldRate.IsZero() {
		s.accruedHeight = max(s.accruedHeight, height)
		return nil
	}

	assets, err := s.ledger.BalanceOf(ctx, s.cfg.UnderlyingAsset, s.address)
	if err != nil {
		return err
	}
	yield := decimal.NewFromBigInt(assets.BigInt(), 0).
		Mul(s.cfg.YieldRate).
		Mul(decimal.NewFromInt(blocks)).
		Truncate(0)
	delta := math.NewIntFromBigInt(yield.Abs().BigInt())

	from, to := s.cfg.YieldSource, s.address
	if yield.IsNegative() {
		from, to = s.address, s.cfg.YieldSource
		delta = math.MinInt(delta, assets)
	} else {
		available, err := s.ledger.BalanceOf(ctx, s.cfg.UnderlyingAsset, s.cfg.YieldSource)
		if err != nil {
			return err
		}
		if available.LT(delta) {
			log.WithField("strategy", s.address).Warnf(
				"yield source holds %s, capping yield of %s", available, delta,
			)
			delta = available
		}
	}

	if delta.IsPositive() {
		if _, err := s.ledger.Transfer(ctx, s.cfg.UnderlyingAsset, from, to, delta); err != nil {
			return fmt.Errorf("failed to accrue yield: %w", err)
		}
	}
	s.accruedHeight = height

	log.WithField("strategy", s.address).Debugf(
		"accrued %s over %d blocks", yield, blocks,
	)
	return nil
}

func (s *strategy) totals(ctx context.Context) (math.Int, math.Int, error) {
	assets, err := s.ledger.BalanceOf(ctx, s.cfg.UnderlyingAsset, s.address)
	if err != nil {
		return math.Int{}, math.Int{}, err
	}
	supply, err := s.ledger.TotalSupply(ctx, s.cfg.ShareAsset)
	if err != nil {
		return math.Int{}, math.Int{}, err
	}
	return assets, supply, nil
}
