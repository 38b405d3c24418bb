package domain_test

import (
	"testing"

	"cosmossdk.io/math"
	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestSplitProceeds(t *testing.T) {
	tests := []struct {
		name           string
		proceeds       int64
		split          string
		investorPayout int64
		creatorPayout  int64
		investorYield  int64
		creatorYield   int64
		shortfall      int64
		creatorLoss    int64
	}{
		{"break even", 2500, "0.2", 2000, 500, 0, 0, 0, 0},
		{"yield", 2750, "0.2", 2200, 550, 200, 50, 0, 0},
		{"yield rounded down for the creator", 2501, "0.5", 2001, 500, 1, 0, 0, 0},
		{"all yield to the creator", 2600, "1", 2000, 600, 0, 100, 0, 0},
		{"all yield to the investor", 2600, "0", 2100, 500, 100, 0, 0, 0},
		{"creator buffer absorbs the loss", 2250, "0.2", 2000, 250, 0, 0, 250, 250},
		{"creator buffer exhausted", 2000, "0.2", 2000, 0, 0, 0, 500, 500},
		{"investor principal hit", 1500, "0.2", 1500, 0, 0, 0, 500, 500},
		{"total loss", 0, "0.2", 0, 0, 0, 0, 500, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settlement := domain.SplitProceeds(
				math.NewInt(tt.proceeds), math.NewInt(500), math.NewInt(2000),
				decimal.RequireFromString(tt.split),
			)
			require.Equal(t, tt.proceeds, settlement.Proceeds.Int64())
			require.Equal(t, tt.investorPayout, settlement.InvestorPayout.Int64())
			require.Equal(t, tt.creatorPayout, settlement.CreatorPayout.Int64())
			require.Equal(t, tt.investorYield, settlement.InvestorYield.Int64())
			require.Equal(t, tt.creatorYield, settlement.CreatorYield.Int64())
			require.Equal(t, tt.shortfall, settlement.Shortfall.Int64())
			require.Equal(t, tt.creatorLoss, settlement.CreatorLoss.Int64())

			// Nothing is created or lost by the split.
			require.Equal(
				t, tt.proceeds,
				settlement.InvestorPayout.Add(settlement.CreatorPayout).Int64(),
			)
		})
	}
}

func TestComputeReward(t *testing.T) {
	tests := []struct {
		deposit  int64
		duration int64
		rate     string
		expected int64
	}{
		{2000, 100, "0.001", 200},
		{500, 100, "0.001", 50},
		{333, 1, "0.01", 3},
		{500, 100, "0", 0},
		{0, 100, "0.001", 0},
		{500, 0, "0.001", 0},
		{500, 100, "-0.001", 0},
	}

	for _, tt := range tests {
		reward := domain.ComputeReward(
			math.NewInt(tt.deposit), tt.duration, decimal.RequireFromString(tt.rate),
		)
		require.Equal(t, tt.expected, reward.Int64(),
			"ComputeReward(%d, %d, %s)", tt.deposit, tt.duration, tt.rate)
	}
}
