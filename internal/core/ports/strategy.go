package ports

import (
	"context"

	"cosmossdk.io/math"
)

// Strategy is an external yield source. Deposit pulls the amount from the
// owner through an allowance granted to Address and returns the shares minted
// to the owner; Withdraw burns the shares and pays the proceeds to the owner.
type Strategy interface {
	Address() string
	UnderlyingAsset() string
	ShareAsset() string
	Deposit(ctx context.Context, owner string, amount math.Int) (math.Int, error)
	Withdraw(ctx context.Context, owner string, shares math.Int) (math.Int, error)
}

type StrategyProvider interface {
	// GetStrategy returns nil if no strategy matches the given pair.
	GetStrategy(ctx context.Context, underlyingAsset, shareAsset string) (Strategy, error)
}
