package application

import (
	"context"

	"cosmossdk.io/math"
	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/core/domain"
	"github.com/shopspring/decimal"
)

type VaultService interface {
	Start() error
	Stop()
	GetInfo(ctx context.Context) (*ServiceInfo, error)
	GetCurrentHeight(ctx context.Context) (int64, error)
	CreateVault(ctx context.Context, req CreateVaultRequest) (*VaultInfo, error)
	GetVault(ctx context.Context, idOrAddress string) (*VaultInfo, error)
	GetLastVaultCreated(ctx context.Context) (*VaultInfo, error)
	ListVaults(ctx context.Context, states ...domain.VaultState) ([]VaultInfo, error)
	DepositCreator(
		ctx context.Context, vaultId, caller string, autoCompound bool,
	) (*VaultInfo, error)
	DepositInvestor(ctx context.Context, vaultId, caller string) (*VaultInfo, error)
	WithdrawNoMatch(ctx context.Context, vaultId, caller string) (*VaultInfo, error)
	Settle(ctx context.Context, vaultId, caller string) (*VaultInfo, error)
}

type MintAuthorityService interface {
	Start() error
	GetMintAuthority(ctx context.Context) (*domain.MintAuthority, error)
	SetMinterSource(ctx context.Context, caller, token, minter string) error
	WhitelistFactory(ctx context.Context, caller, factory string, approved bool) error
	MintReward(ctx context.Context, factory, recipient string, amount math.Int) error
	IncentiveToken() string
}

type LedgerService interface {
	GetBalance(ctx context.Context, token, holder string) (*Balance, error)
	Approve(ctx context.Context, token, owner, spender string, amount math.Int) error
	Faucet(ctx context.Context, token, recipient string, amount math.Int) (*Balance, error)
}

type ServiceInfo struct {
	FactoryAddress       string
	MintAuthorityAddress string
	IncentiveToken       string
	CurrentHeight        int64
	DefaultYieldSplit    decimal.Decimal
	DefaultRewardRate    decimal.Decimal
	VaultsCount          int
}

type CreateVaultRequest struct {
	CreatorDeposit     math.Int
	InvestorDeposit    math.Int
	LockDuration       int64
	UnderlyingAsset    string
	StrategyShareAsset string
	RewardsPool        string
	// Optional, the service defaults apply when nil.
	YieldSplit *decimal.Decimal
	RewardRate *decimal.Decimal
}

type VaultInfo struct {
	domain.Vault
	MaturityHeight int64
	IsSettleable   bool
}

type Balance struct {
	Token       string
	Holder      string
	Amount      math.Int
	TotalSupply math.Int
}
