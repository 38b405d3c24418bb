package ports

import (
	"context"
	"errors"

	"cosmossdk.io/math"
)

var (
	ErrUnknownToken          = errors.New("unknown token")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrNotMinter             = errors.New("not the token minter")
	ErrInvalidAmount         = errors.New("invalid amount")
)

// TokenLedger is the fungible token ledger every vault settles against.
// Transfer and TransferFrom return the amount actually moved, which callers
// must compare with the requested one.
type TokenLedger interface {
	HasToken(ctx context.Context, token string) (bool, error)
	BalanceOf(ctx context.Context, token, holder string) (math.Int, error)
	TotalSupply(ctx context.Context, token string) (math.Int, error)
	Allowance(ctx context.Context, token, owner, spender string) (math.Int, error)
	Approve(ctx context.Context, token, owner, spender string, amount math.Int) error
	Transfer(ctx context.Context, token, from, to string, amount math.Int) (math.Int, error)
	TransferFrom(
		ctx context.Context, token, spender, from, to string, amount math.Int,
	) (math.Int, error)
	// Minter returns the identity allowed to mint the token.
	Minter(ctx context.Context, token string) (string, error)
	// SetMinter registers the token if unknown and designates its minter.
	SetMinter(ctx context.Context, token, minter string) error
	Mint(ctx context.Context, token, minter, to string, amount math.Int) error
	Burn(ctx context.Context, token, holder string, amount math.Int) error
	Close()
}
