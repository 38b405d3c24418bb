package httpservice

import (
	"strings"

	"cosmossdk.io/math"
	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/core/application"
	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/core/domain"
	"github.com/Flowerbox-Finance/Flowerbox-Finance/pkg/errors"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

func invalidParam(field, value, reason string) error {
	return errors.INVALID_PARAMETERS.New("invalid %s: %s", field, reason).
		WithMetadata(errors.InvalidParametersMetadata{Field: field, Value: value, Reason: reason})
}

func parseAmount(field, value string) (math.Int, error) {
	if value == "" {
		return math.Int{}, invalidParam(field, value, "missing amount")
	}
	amount, ok := math.NewIntFromString(value)
	if !ok {
		return math.Int{}, invalidParam(field, value, "must be an integer amount")
	}
	return amount, nil
}

func parseOptionalDecimal(field, value string) (*decimal.Decimal, error) {
	if value == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, invalidParam(field, value, "must be a decimal number")
	}
	return &d, nil
}

func parseCreateVaultRequest(req createVaultRequest) (*application.CreateVaultRequest, error) {
	creatorDeposit, err := parseAmount("creator_deposit", req.CreatorDeposit)
	if err != nil {
		return nil, err
	}
	investorDeposit, err := parseAmount("investor_deposit", req.InvestorDeposit)
	if err != nil {
		return nil, err
	}
	yieldSplit, err := parseOptionalDecimal("yield_split", req.YieldSplit)
	if err != nil {
		return nil, err
	}
	rewardRate, err := parseOptionalDecimal("reward_rate", req.RewardRate)
	if err != nil {
		return nil, err
	}
	return &application.CreateVaultRequest{
		CreatorDeposit:     creatorDeposit,
		InvestorDeposit:    investorDeposit,
		LockDuration:       req.LockDuration,
		UnderlyingAsset:    req.UnderlyingAsset,
		StrategyShareAsset: req.StrategyShareAsset,
		RewardsPool:        req.RewardsPool,
		YieldSplit:         yieldSplit,
		RewardRate:         rewardRate,
	}, nil
}

// parseStates accepts both repeated and comma separated state query params,
// ie. ?state=Matched&state=Settled or ?state=Matched,Settled.
func parseStates(values []string) ([]domain.VaultState, error) {
	states := make([]domain.VaultState, 0, len(values))
	for _, value := range values {
		for _, name := range strings.Split(value, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			state, err := domain.ParseVaultState(name)
			if err != nil {
				return nil, invalidParam("state", name, "unknown vault state")
			}
			states = append(states, state)
		}
	}
	return states, nil
}

func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return errors.INVALID_PARAMETERS.New("invalid request body: %s", err)
	}
	return nil
}

func caller(c echo.Context) string {
	return c.Request().Header.Get(identityHeader)
}
