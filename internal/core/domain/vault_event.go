package domain

import (
	"cosmossdk.io/math"
	"github.com/shopspring/decimal"
)

const VaultTopic = "vault"

type EventType uint8

const (
	EventTypeUndefined EventType = iota
	EventTypeVaultCreated
	EventTypeCreatorDeposited
	EventTypeInvestorDeposited
	EventTypeWithdrawnNoMatch
	EventTypeVaultSettled
)

func (t EventType) String() string {
	return []string{
		"Undefined",
		"VaultCreated",
		"CreatorDeposited",
		"InvestorDeposited",
		"WithdrawnNoMatch",
		"VaultSettled",
	}[t]
}

type Event interface {
	GetTopic() string
	GetType() EventType
	GetTimestamp() int64
}

type VaultEvent struct {
	Id        string
	Type      EventType
	Timestamp int64
}

func (e VaultEvent) GetTopic() string    { return VaultTopic }
func (e VaultEvent) GetType() EventType  { return e.Type }
func (e VaultEvent) GetTimestamp() int64 { return e.Timestamp }

type VaultCreated struct {
	VaultEvent
	Address            string
	Factory            string
	Sequence           uint64
	CreatorDeposit     math.Int
	InvestorDeposit    math.Int
	LockDuration       int64
	UnderlyingAsset    string
	StrategyShareAsset string
	RewardsPool        string
	YieldSplit         decimal.Decimal
	RewardRate         decimal.Decimal
}

type CreatorDeposited struct {
	VaultEvent
	Creator      string
	Amount       math.Int
	AutoCompound bool
}

type InvestorDeposited struct {
	VaultEvent
	Investor         string
	Amount           math.Int
	LockStartHeight  int64
	StrategyPosition math.Int
}

type WithdrawnNoMatch struct {
	VaultEvent
	Creator string
	Amount  math.Int
}

type VaultSettled struct {
	VaultEvent
	Settlement Settlement
}
