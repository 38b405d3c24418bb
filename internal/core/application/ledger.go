package application

import (
	"context"
	"fmt"

	"cosmossdk.io/math"
	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/core/ports"
	"github.com/Flowerbox-Finance/Flowerbox-Finance/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type ledgerService struct {
	ledger ports.TokenLedger
	// tokens the faucet refuses to mint
	protected map[string]struct{}
}

// NewLedgerService exposes the token ledger to clients. The faucet mints on
// behalf of the token minter and is never allowed for the protected tokens.
func NewLedgerService(ledger ports.TokenLedger, protectedTokens ...string) LedgerService {
	protected := make(map[string]struct{}, len(protectedTokens))
	for _, token := range protectedTokens {
		protected[token] = struct{}{}
	}
	return &ledgerService{ledger, protected}
}

func (s *ledgerService) GetBalance(
	ctx context.Context, token, holder string,
) (*Balance, error) {
	holder, err := parseIdentity("holder", holder)
	if err != nil {
		return nil, err
	}
	if err := s.requireToken(ctx, token); err != nil {
		return nil, err
	}

	amount, err := s.ledger.BalanceOf(ctx, token, holder)
	if err != nil {
		return nil, errors.INTERNAL_ERROR.Wrap(err)
	}
	supply, err := s.ledger.TotalSupply(ctx, token)
	if err != nil {
		return nil, errors.INTERNAL_ERROR.Wrap(err)
	}
	return &Balance{Token: token, Holder: holder, Amount: amount, TotalSupply: supply}, nil
}

func (s *ledgerService) Approve(
	ctx context.Context, token, owner, spender string, amount math.Int,
) error {
	owner, err := parseIdentity("owner", owner)
	if err != nil {
		return err
	}
	spender, err = parseIdentity("spender", spender)
	if err != nil {
		return err
	}
	if amount.IsNil() || amount.IsNegative() {
		return invalidParams("amount", amountOrZero(amount).String(), "must not be negative")
	}
	if err := s.requireToken(ctx, token); err != nil {
		return err
	}
	if err := s.ledger.Approve(ctx, token, owner, spender, amount); err != nil {
		return errors.INTERNAL_ERROR.Wrap(err)
	}
	log.Debugf("%s approved %s %s to %s", owner, amount, token, spender)
	return nil
}

func (s *ledgerService) Faucet(
	ctx context.Context, token, recipient string, amount math.Int,
) (*Balance, error) {
	recipient, err := parseIdentity("recipient", recipient)
	if err != nil {
		return nil, err
	}
	if amount.IsNil() || !amount.IsPositive() {
		return nil, invalidParams("amount", amountOrZero(amount).String(), "must be strictly positive")
	}
	if _, ok := s.protected[token]; ok {
		return nil, invalidParams("token", token, "cannot be minted through the faucet")
	}
	if err := s.requireToken(ctx, token); err != nil {
		return nil, err
	}

	minter, err := s.ledger.Minter(ctx, token)
	if err != nil {
		return nil, errors.INTERNAL_ERROR.Wrap(err)
	}
	if err := s.ledger.Mint(ctx, token, minter, recipient, amount); err != nil {
		return nil, errors.INTERNAL_ERROR.Wrap(fmt.Errorf("faucet failed: %w", err))
	}
	log.Infof("faucet: minted %s %s to %s", amount, token, recipient)
	return s.GetBalance(ctx, token, recipient)
}

func (s *ledgerService) requireToken(ctx context.Context, token string) error {
	ok, err := s.ledger.HasToken(ctx, token)
	if err != nil {
		return errors.INTERNAL_ERROR.Wrap(err)
	}
	if !ok {
		return invalidParams("token", token, "is not registered on the ledger")
	}
	return nil
}
