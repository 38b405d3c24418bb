package httpservice

import (
	"sort"

	"cosmossdk.io/math"
	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/core/application"
	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/core/domain"
)

type createVaultRequest struct {
	CreatorDeposit     string `json:"creator_deposit"`
	InvestorDeposit    string `json:"investor_deposit"`
	LockDuration       int64  `json:"lock_duration"`
	UnderlyingAsset    string `json:"underlying_asset"`
	StrategyShareAsset string `json:"strategy_share_asset"`
	RewardsPool        string `json:"rewards_pool"`
	YieldSplit         string `json:"yield_split,omitempty"`
	RewardRate         string `json:"reward_rate,omitempty"`
}

type depositCreatorRequest struct {
	AutoCompound bool `json:"auto_compound"`
}

type approveRequest struct {
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

type faucetRequest struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

type setMinterSourceRequest struct {
	Token  string `json:"token"`
	Minter string `json:"minter"`
}

type whitelistFactoryRequest struct {
	Factory  string `json:"factory"`
	Approved bool   `json:"approved"`
}

type infoResponse struct {
	Version              string `json:"version"`
	FactoryAddress       string `json:"factory_address"`
	MintAuthorityAddress string `json:"mint_authority_address"`
	IncentiveToken       string `json:"incentive_token"`
	CurrentHeight        int64  `json:"current_height"`
	DefaultYieldSplit    string `json:"default_yield_split"`
	DefaultRewardRate    string `json:"default_reward_rate"`
	VaultsCount          int    `json:"vaults_count"`
}

type heightResponse struct {
	Height int64 `json:"height"`
}

type settlementResponse struct {
	Height         int64  `json:"height"`
	Proceeds       string `json:"proceeds"`
	InvestorPayout string `json:"investor_payout"`
	CreatorPayout  string `json:"creator_payout"`
	InvestorYield  string `json:"investor_yield"`
	CreatorYield   string `json:"creator_yield"`
	Shortfall      string `json:"shortfall"`
	CreatorLoss    string `json:"creator_loss"`
	CreatorShares  string `json:"creator_shares"`
	InvestorReward string `json:"investor_reward"`
	CreatorReward  string `json:"creator_reward"`
}

type vaultResponse struct {
	Id                 string              `json:"id"`
	Address            string              `json:"address"`
	Factory            string              `json:"factory"`
	Sequence           uint64              `json:"sequence"`
	State              string              `json:"state"`
	StateCode          uint8               `json:"state_code"`
	CreatorDeposit     string              `json:"creator_deposit"`
	InvestorDeposit    string              `json:"investor_deposit"`
	LockDuration       int64               `json:"lock_duration"`
	UnderlyingAsset    string              `json:"underlying_asset"`
	StrategyShareAsset string              `json:"strategy_share_asset"`
	RewardsPool        string              `json:"rewards_pool"`
	YieldSplit         string              `json:"yield_split"`
	RewardRate         string              `json:"reward_rate"`
	Creator            string              `json:"creator,omitempty"`
	Investor           string              `json:"investor,omitempty"`
	AutoCompound       bool                `json:"auto_compound"`
	LockStartHeight    *int64              `json:"lock_start_height,omitempty"`
	MaturityHeight     int64               `json:"maturity_height,omitempty"`
	IsSettleable       bool                `json:"is_settleable"`
	StrategyPosition   string              `json:"strategy_position"`
	Settlement         *settlementResponse `json:"settlement,omitempty"`
	CreatedAt          int64               `json:"created_at"`
	UpdatedAt          int64               `json:"updated_at"`
}

type listVaultsResponse struct {
	Vaults []vaultResponse `json:"vaults"`
}

type balanceResponse struct {
	Token       string `json:"token"`
	Holder      string `json:"holder"`
	Amount      string `json:"amount"`
	TotalSupply string `json:"total_supply"`
}

type mintAuthorityResponse struct {
	Address       string            `json:"address"`
	Admin         string            `json:"admin"`
	Whitelist     []string          `json:"whitelist"`
	MinterSources map[string]string `json:"minter_sources"`
	UpdatedAt     int64             `json:"updated_at"`
}

type vault application.VaultInfo

func (v vault) toResponse() vaultResponse {
	resp := vaultResponse{
		Id:                 v.Id,
		Address:            v.Address,
		Factory:            v.Factory,
		Sequence:           v.Sequence,
		State:              v.State.String(),
		StateCode:          uint8(v.State),
		CreatorDeposit:     amount(v.CreatorDeposit),
		InvestorDeposit:    amount(v.InvestorDeposit),
		LockDuration:       v.LockDuration,
		UnderlyingAsset:    v.UnderlyingAsset,
		StrategyShareAsset: v.StrategyShareAsset,
		RewardsPool:        v.RewardsPool,
		YieldSplit:         v.YieldSplit.String(),
		RewardRate:         v.RewardRate.String(),
		Creator:            v.Creator,
		Investor:           v.Investor,
		AutoCompound:       v.AutoCompound,
		LockStartHeight:    v.LockStartHeight,
		MaturityHeight:     v.MaturityHeight,
		IsSettleable:       v.IsSettleable,
		StrategyPosition:   amount(v.StrategyPosition),
		CreatedAt:          v.CreatedAt,
		UpdatedAt:          v.UpdatedAt,
	}
	if s := v.Settlement; s != nil {
		resp.Settlement = &settlementResponse{
			Height:         s.Height,
			Proceeds:       amount(s.Proceeds),
			InvestorPayout: amount(s.InvestorPayout),
			CreatorPayout:  amount(s.CreatorPayout),
			InvestorYield:  amount(s.InvestorYield),
			CreatorYield:   amount(s.CreatorYield),
			Shortfall:      amount(s.Shortfall),
			CreatorLoss:    amount(s.CreatorLoss),
			CreatorShares:  amount(s.CreatorShares),
			InvestorReward: amount(s.InvestorReward),
			CreatorReward:  amount(s.CreatorReward),
		}
	}
	return resp
}

type vaultList []application.VaultInfo

func (l vaultList) toResponse() listVaultsResponse {
	vaults := make([]vaultResponse, 0, len(l))
	for _, v := range l {
		vaults = append(vaults, vault(v).toResponse())
	}
	return listVaultsResponse{vaults}
}

type balance application.Balance

func (b balance) toResponse() balanceResponse {
	return balanceResponse{
		Token:       b.Token,
		Holder:      b.Holder,
		Amount:      amount(b.Amount),
		TotalSupply: amount(b.TotalSupply),
	}
}

type mintAuthority domain.MintAuthority

func (m mintAuthority) toResponse() mintAuthorityResponse {
	whitelist := make([]string, 0, len(m.Whitelist))
	for factory, approved := range m.Whitelist {
		if approved {
			whitelist = append(whitelist, factory)
		}
	}
	sort.Strings(whitelist)
	sources := make(map[string]string, len(m.MinterSources))
	for token, minter := range m.MinterSources {
		sources[token] = minter
	}
	return mintAuthorityResponse{
		Address:       m.Address,
		Admin:         m.Admin,
		Whitelist:     whitelist,
		MinterSources: sources,
		UpdatedAt:     m.UpdatedAt,
	}
}

func amount(a math.Int) string {
	if a.IsNil() {
		return "0"
	}
	return a.String()
}
