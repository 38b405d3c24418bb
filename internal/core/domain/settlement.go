package domain

import (
	"cosmossdk.io/math"
	"github.com/shopspring/decimal"
)

type Settlement struct {
	Height         int64
	Proceeds       math.Int
	InvestorPayout math.Int
	CreatorPayout  math.Int
	InvestorYield  math.Int
	CreatorYield   math.Int
	// Shortfall is the part of the investor principal covered by the creator
	// buffer, CreatorLoss the part of the creator deposit that was not returned.
	Shortfall   math.Int
	CreatorLoss math.Int
	// CreatorShares is set when the creator payout was restaked in the strategy.
	CreatorShares  math.Int
	InvestorReward math.Int
	CreatorReward  math.Int
}

// SplitProceeds distributes the strategy proceeds between the two parties.
// The investor is repaid first up to its deposit, then the creator up to its own
// deposit; whatever exceeds both deposits is yield, of which the creator takes
// the yieldSplit fraction rounded down.
func SplitProceeds(
	proceeds, creatorDeposit, investorDeposit math.Int, yieldSplit decimal.Decimal,
) Settlement {
	investorPrincipal := math.MinInt(proceeds, investorDeposit)
	remaining := proceeds.Sub(investorPrincipal)
	creatorPrincipal := math.MinInt(remaining, creatorDeposit)
	surplus := remaining.Sub(creatorPrincipal)

	creatorYield := math.ZeroInt()
	if surplus.IsPositive() {
		creatorYield = mulFloor(surplus, yieldSplit)
	}
	investorYield := surplus.Sub(creatorYield)

	// The creator buffer is consumed before the investor principal; from the
	// investor point of view the shortfall is what the creator buffer covered.
	totalDeposits := creatorDeposit.Add(investorDeposit)
	loss := math.ZeroInt()
	if totalDeposits.GT(proceeds) {
		loss = totalDeposits.Sub(proceeds)
	}
	shortfall := math.MinInt(loss, creatorDeposit)

	return Settlement{
		Proceeds:       proceeds,
		InvestorPayout: investorPrincipal.Add(investorYield),
		CreatorPayout:  creatorPrincipal.Add(creatorYield),
		InvestorYield:  investorYield,
		CreatorYield:   creatorYield,
		Shortfall:      shortfall,
		CreatorLoss:    creatorDeposit.Sub(creatorPrincipal),
		CreatorShares:  math.ZeroInt(),
		InvestorReward: math.ZeroInt(),
		CreatorReward:  math.ZeroInt(),
	}
}

// ComputeReward returns deposit * lockDuration * rate rounded down.
func ComputeReward(deposit math.Int, lockDuration int64, rate decimal.Decimal) math.Int {
	if deposit.IsNil() || !deposit.IsPositive() || lockDuration <= 0 || !rate.IsPositive() {
		return math.ZeroInt()
	}
	return mulFloor(deposit.MulRaw(lockDuration), rate)
}

func mulFloor(amount math.Int, factor decimal.Decimal) math.Int {
	product := decimal.NewFromBigInt(amount.BigInt(), 0).Mul(factor).Floor()
	return math.NewIntFromBigInt(product.BigInt())
}
