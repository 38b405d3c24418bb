package domain

import (
	"fmt"
	"time"

	"cosmossdk.io/math"
	"github.com/shopspring/decimal"
)

type VaultState uint8

// The numeric values match the state codes observed by clients of the original
// contracts (2 once the creator deposited, 3 after a no-match withdrawal).
const (
	VaultStateUndefined VaultState = iota
	VaultStateCreated
	VaultStateWaitingForMatch
	VaultStateWithdrawnNoMatch
	VaultStateMatched
	VaultStateSettled
)

func (s VaultState) String() string {
	if int(s) >= len(vaultStateNames) {
		return "Unknown"
	}
	return vaultStateNames[s]
}

var vaultStateNames = []string{
	"Undefined",
	"Created",
	"WaitingForMatch",
	"WithdrawnNoMatch",
	"Matched",
	"Settled",
}

func (s VaultState) IsTerminal() bool {
	return s == VaultStateWithdrawnNoMatch || s == VaultStateSettled
}

func ParseVaultState(name string) (VaultState, error) {
	for i, n := range vaultStateNames {
		if n == name && i > 0 {
			return VaultState(i), nil
		}
	}
	return VaultStateUndefined, fmt.Errorf("unknown vault state %q", name)
}

// VaultParams are the immutable economic parameters of a vault.
type VaultParams struct {
	CreatorDeposit     math.Int
	InvestorDeposit    math.Int
	LockDuration       int64
	UnderlyingAsset    string
	StrategyShareAsset string
	RewardsPool        string
	// YieldSplit is the fraction of the surplus yield assigned to the creator.
	YieldSplit decimal.Decimal
	// RewardRate is the amount of incentive token minted per unit of deposit per
	// locked block.
	RewardRate decimal.Decimal
}

func (p VaultParams) Validate() error {
	if p.CreatorDeposit.IsNil() || !p.CreatorDeposit.IsPositive() {
		return fmt.Errorf("%w: creator deposit must be strictly positive", ErrInvalidParameters)
	}
	if p.InvestorDeposit.IsNil() || !p.InvestorDeposit.IsPositive() {
		return fmt.Errorf("%w: investor deposit must be strictly positive", ErrInvalidParameters)
	}
	if p.LockDuration <= 0 {
		return fmt.Errorf("%w: lock duration must be strictly positive", ErrInvalidParameters)
	}
	if p.UnderlyingAsset == "" {
		return fmt.Errorf("%w: missing underlying asset", ErrInvalidParameters)
	}
	if p.StrategyShareAsset == "" {
		return fmt.Errorf("%w: missing strategy share asset", ErrInvalidParameters)
	}
	if p.RewardsPool == "" {
		return fmt.Errorf("%w: missing rewards pool", ErrInvalidParameters)
	}
	if p.YieldSplit.IsNegative() || p.YieldSplit.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: yield split must be in range [0, 1]", ErrInvalidParameters)
	}
	if p.RewardRate.IsNegative() {
		return fmt.Errorf("%w: reward rate must not be negative", ErrInvalidParameters)
	}
	return nil
}

type Vault struct {
	Id       string
	Address  string
	Factory  string
	Sequence uint64
	VaultParams

	State            VaultState
	Creator          string
	Investor         string
	AutoCompound     bool
	LockStartHeight  *int64
	StrategyPosition math.Int
	Settlement       *Settlement
	CreatedAt        int64
	UpdatedAt        int64

	changes []Event
}

func newVault(id, address, factory string, sequence uint64, params VaultParams) (*Vault, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	v := &Vault{}
	event := VaultCreated{
		VaultEvent: VaultEvent{
			Id:        id,
			Type:      EventTypeVaultCreated,
			Timestamp: now,
		},
		Address:            address,
		Factory:            factory,
		Sequence:           sequence,
		CreatorDeposit:     params.CreatorDeposit,
		InvestorDeposit:    params.InvestorDeposit,
		LockDuration:       params.LockDuration,
		UnderlyingAsset:    params.UnderlyingAsset,
		StrategyShareAsset: params.StrategyShareAsset,
		RewardsPool:        params.RewardsPool,
		YieldSplit:         params.YieldSplit,
		RewardRate:         params.RewardRate,
	}
	v.raise(event)
	return v, nil
}

func NewVaultFromEvents(events []Event) *Vault {
	v := &Vault{}

	for _, event := range events {
		v.on(event)
	}

	v.changes = append([]Event{}, events...)

	return v
}

func (v *Vault) Events() []Event {
	return v.changes
}

// Clone returns a deep copy of the vault, pending events included, so that a
// transition can be attempted on the copy and discarded on failure.
func (v *Vault) Clone() *Vault {
	clone := *v
	if v.LockStartHeight != nil {
		height := *v.LockStartHeight
		clone.LockStartHeight = &height
	}
	if v.Settlement != nil {
		settlement := *v.Settlement
		clone.Settlement = &settlement
	}
	clone.changes = append([]Event{}, v.changes...)
	return &clone
}

func (v *Vault) MaturityHeight() (int64, bool) {
	if v.LockStartHeight == nil {
		return 0, false
	}
	return *v.LockStartHeight + v.LockDuration, true
}

func (v *Vault) IsMatured(height int64) bool {
	maturity, ok := v.MaturityHeight()
	return ok && height >= maturity
}

func (v *Vault) TotalDeposits() math.Int {
	return v.CreatorDeposit.Add(v.InvestorDeposit)
}

// HeldDeposits returns the amount of underlying the vault custody account is
// expected to hold outside of the strategy.
func (v *Vault) HeldDeposits() math.Int {
	switch v.State {
	case VaultStateWaitingForMatch:
		return v.CreatorDeposit
	default:
		return math.ZeroInt()
	}
}

func (v *Vault) IsParticipant(identity string) bool {
	return identity != "" && (identity == v.Creator || identity == v.Investor)
}

func (v *Vault) DepositCreator(caller string, autoCompound bool) ([]Event, error) {
	if err := v.requireState(VaultStateCreated); err != nil {
		return nil, err
	}
	if caller == "" {
		return nil, fmt.Errorf("%w: missing creator identity", ErrInvalidParameters)
	}

	event := CreatorDeposited{
		VaultEvent: VaultEvent{
			Id:        v.Id,
			Type:      EventTypeCreatorDeposited,
			Timestamp: time.Now().Unix(),
		},
		Creator:      caller,
		Amount:       v.CreatorDeposit,
		AutoCompound: autoCompound,
	}
	v.raise(event)
	return []Event{event}, nil
}

// DepositInvestor moves the vault to Matched and starts the lock clock. The
// matching event is raised by OpenStrategyPosition once the combined deposits
// have been deployed.
func (v *Vault) DepositInvestor(caller string, height int64) error {
	if err := v.requireState(VaultStateWaitingForMatch); err != nil {
		return err
	}
	if caller == "" {
		return fmt.Errorf("%w: missing investor identity", ErrInvalidParameters)
	}
	if caller == v.Creator {
		return fmt.Errorf("%w: %s", ErrSameIdentityAsCreator, caller)
	}

	v.Investor = caller
	v.LockStartHeight = &height
	v.State = VaultStateMatched
	v.UpdatedAt = time.Now().Unix()
	return nil
}

func (v *Vault) OpenStrategyPosition(shares math.Int) ([]Event, error) {
	if err := v.requireState(VaultStateMatched); err != nil {
		return nil, err
	}
	if !v.StrategyPosition.IsNil() && !v.StrategyPosition.IsZero() {
		return nil, fmt.Errorf("%w: strategy position already opened", ErrWrongState)
	}
	if shares.IsNil() || !shares.IsPositive() {
		return nil, fmt.Errorf("%w: strategy shares must be strictly positive", ErrInvalidParameters)
	}

	event := InvestorDeposited{
		VaultEvent: VaultEvent{
			Id:        v.Id,
			Type:      EventTypeInvestorDeposited,
			Timestamp: time.Now().Unix(),
		},
		Investor:         v.Investor,
		Amount:           v.InvestorDeposit,
		LockStartHeight:  *v.LockStartHeight,
		StrategyPosition: shares,
	}
	v.raise(event)
	return []Event{event}, nil
}

func (v *Vault) WithdrawNoMatch(caller string) ([]Event, error) {
	if err := v.requireState(VaultStateWaitingForMatch); err != nil {
		return nil, err
	}
	if caller != v.Creator {
		return nil, fmt.Errorf("%w: got %s, expected %s", ErrNotCreator, caller, v.Creator)
	}

	event := WithdrawnNoMatch{
		VaultEvent: VaultEvent{
			Id:        v.Id,
			Type:      EventTypeWithdrawnNoMatch,
			Timestamp: time.Now().Unix(),
		},
		Creator: v.Creator,
		Amount:  v.CreatorDeposit,
	}
	v.raise(event)
	return []Event{event}, nil
}

// StartSettlement checks that the vault can be settled at the given ledger height
// and marks it as Settled. The outcome is recorded by CompleteSettlement.
func (v *Vault) StartSettlement(caller string, height int64) error {
	if err := v.requireState(VaultStateMatched); err != nil {
		return err
	}
	if !v.IsMatured(height) {
		maturity, _ := v.MaturityHeight()
		return fmt.Errorf(
			"%w: maturity at height %d, current height %d", ErrLockNotElapsed, maturity, height,
		)
	}
	if !v.IsParticipant(caller) {
		return fmt.Errorf("%w: %s", ErrNotParticipant, caller)
	}

	v.State = VaultStateSettled
	v.UpdatedAt = time.Now().Unix()
	return nil
}

func (v *Vault) CompleteSettlement(settlement Settlement) ([]Event, error) {
	if err := v.requireState(VaultStateSettled); err != nil {
		return nil, err
	}
	if v.Settlement != nil {
		return nil, fmt.Errorf("%w: vault already settled", ErrWrongState)
	}

	event := VaultSettled{
		VaultEvent: VaultEvent{
			Id:        v.Id,
			Type:      EventTypeVaultSettled,
			Timestamp: time.Now().Unix(),
		},
		Settlement: settlement,
	}
	v.raise(event)
	return []Event{event}, nil
}

func (v *Vault) requireState(expected VaultState) error {
	if v.State != expected {
		return fmt.Errorf(
			"%w: vault %s is %s, expected %s", ErrWrongState, v.Id, v.State, expected,
		)
	}
	return nil
}

func (v *Vault) on(event Event) {
	switch e := event.(type) {
	case VaultCreated:
		v.Id = e.Id
		v.Address = e.Address
		v.Factory = e.Factory
		v.Sequence = e.Sequence
		v.CreatorDeposit = e.CreatorDeposit
		v.InvestorDeposit = e.InvestorDeposit
		v.LockDuration = e.LockDuration
		v.UnderlyingAsset = e.UnderlyingAsset
		v.StrategyShareAsset = e.StrategyShareAsset
		v.RewardsPool = e.RewardsPool
		v.YieldSplit = e.YieldSplit
		v.RewardRate = e.RewardRate
		v.State = VaultStateCreated
		v.StrategyPosition = math.ZeroInt()
		v.CreatedAt = e.Timestamp
	case CreatorDeposited:
		v.Creator = e.Creator
		v.AutoCompound = e.AutoCompound
		v.State = VaultStateWaitingForMatch
	case InvestorDeposited:
		height := e.LockStartHeight
		v.Investor = e.Investor
		v.LockStartHeight = &height
		v.StrategyPosition = e.StrategyPosition
		v.State = VaultStateMatched
	case WithdrawnNoMatch:
		v.State = VaultStateWithdrawnNoMatch
	case VaultSettled:
		settlement := e.Settlement
		v.Settlement = &settlement
		v.StrategyPosition = math.ZeroInt()
		v.State = VaultStateSettled
	}

	v.UpdatedAt = event.GetTimestamp()
}

func (v *Vault) raise(event Event) {
	if v.changes == nil {
		v.changes = make([]Event, 0)
	}
	v.changes = append(v.changes, event)
	v.on(event)
}
