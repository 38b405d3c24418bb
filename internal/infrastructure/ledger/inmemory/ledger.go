package inmemoryledger

import (
	"context"
	"fmt"
	"sync"

	"cosmossdk.io/math"
	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/core/ports"
)

type token struct {
	minter     string
	supply     math.Int
	balances   map[string]math.Int
	allowances map[string]map[string]math.Int
}

func newToken(minter string) *token {
	return &token{
		minter:     minter,
		supply:     math.ZeroInt(),
		balances:   make(map[string]math.Int),
		allowances: make(map[string]map[string]math.Int),
	}
}

func (t *token) balanceOf(holder string) math.Int {
	if balance, ok := t.balances[holder]; ok {
		return balance
	}
	return math.ZeroInt()
}

func (t *token) allowance(owner, spender string) math.Int {
	if allowance, ok := t.allowances[owner][spender]; ok {
		return allowance
	}
	return math.ZeroInt()
}

func (t *token) move(from, to string, amount math.Int) error {
	balance := t.balanceOf(from)
	if balance.LT(amount) {
		return fmt.Errorf(
			"%w: %s holds %s, needs %s", ports.ErrInsufficientBalance, from, balance, amount,
		)
	}
	t.balances[from] = balance.Sub(amount)
	t.balances[to] = t.balanceOf(to).Add(amount)
	return nil
}

type ledger struct {
	lock   sync.RWMutex
	tokens map[string]*token
}

// NewLedger returns a process local ledger, mostly useful for tests and local
// setups. The state is lost on restart.
func NewLedger() ports.TokenLedger {
	return &ledger{tokens: make(map[string]*token)}
}

func (l *ledger) HasToken(_ context.Context, name string) (bool, error) {
	l.lock.RLock()
	defer l.lock.RUnlock()

	_, ok := l.tokens[name]
	return ok, nil
}

func (l *ledger) BalanceOf(_ context.Context, name, holder string) (math.Int, error) {
	l.lock.RLock()
	defer l.lock.RUnlock()

	t, err := l.getToken(name)
	if err != nil {
		return math.Int{}, err
	}
	return t.balanceOf(holder), nil
}

func (l *ledger) TotalSupply(_ context.Context, name string) (math.Int, error) {
	l.lock.RLock()
	defer l.lock.RUnlock()

	t, err := l.getToken(name)
	if err != nil {
		return math.Int{}, err
	}
	return t.supply, nil
}

func (l *ledger) Allowance(_ context.Context, name, owner, spender string) (math.Int, error) {
	l.lock.RLock()
	defer l.lock.RUnlock()

	t, err := l.getToken(name)
	if err != nil {
		return math.Int{}, err
	}
	return t.allowance(owner, spender), nil
}

func (l *ledger) Approve(
	_ context.Context, name, owner, spender string, amount math.Int,
) error {
	if err := validateAmount(amount); err != nil {
		return err
	}

	l.lock.Lock()
	defer l.lock.Unlock()

	t, err := l.getToken(name)
	if err != nil {
		return err
	}
	if _, ok := t.allowances[owner]; !ok {
		t.allowances[owner] = make(map[string]math.Int)
	}
	if amount.IsZero() {
		delete(t.allowances[owner], spender)
		return nil
	}
	t.allowances[owner][spender] = amount
	return nil
}

func (l *ledger) Transfer(
	_ context.Context, name, from, to string, amount math.Int,
) (math.Int, error) {
	if err := validateAmount(amount); err != nil {
		return math.Int{}, err
	}

	l.lock.Lock()
	defer l.lock.Unlock()

	t, err := l.getToken(name)
	if err != nil {
		return math.Int{}, err
	}
	if err := t.move(from, to, amount); err != nil {
		return math.Int{}, err
	}
	return amount, nil
}

func (l *ledger) TransferFrom(
	_ context.Context, name, spender, from, to string, amount math.Int,
) (math.Int, error) {
	if err := validateAmount(amount); err != nil {
		return math.Int{}, err
	}

	l.lock.Lock()
	defer l.lock.Unlock()

	t, err := l.getToken(name)
	if err != nil {
		return math.Int{}, err
	}
	allowance := t.allowance(from, spender)
	if allowance.LT(amount) {
		return math.Int{}, fmt.Errorf(
			"%w: %s may spend %s of %s, needs %s",
			ports.ErrInsufficientAllowance, spender, allowance, from, amount,
		)
	}
	if err := t.move(from, to, amount); err != nil {
		return math.Int{}, err
	}
	if _, ok := t.allowances[from]; !ok {
		t.allowances[from] = make(map[string]math.Int)
	}
	t.allowances[from][spender] = allowance.Sub(amount)
	return amount, nil
}

func (l *ledger) Minter(_ context.Context, name string) (string, error) {
	l.lock.RLock()
	defer l.lock.RUnlock()

	t, err := l.getToken(name)
	if err != nil {
		return "", err
	}
	return t.minter, nil
}

func (l *ledger) SetMinter(_ context.Context, name, minter string) error {
	if name == "" {
		return fmt.Errorf("missing token name")
	}

	l.lock.Lock()
	defer l.lock.Unlock()

	t, ok := l.tokens[name]
	if !ok {
		l.tokens[name] = newToken(minter)
		return nil
	}
	t.minter = minter
	return nil
}

func (l *ledger) Mint(
	_ context.Context, name, minter, to string, amount math.Int,
) error {
	if err := validateAmount(amount); err != nil {
		return err
	}

	l.lock.Lock()
	defer l.lock.Unlock()

	t, err := l.getToken(name)
	if err != nil {
		return err
	}
	if minter == "" || minter != t.minter {
		return fmt.Errorf("%w: %s cannot mint %s", ports.ErrNotMinter, minter, name)
	}
	t.balances[to] = t.balanceOf(to).Add(amount)
	t.supply = t.supply.Add(amount)
	return nil
}

func (l *ledger) Burn(_ context.Context, name, holder string, amount math.Int) error {
	if err := validateAmount(amount); err != nil {
		return err
	}

	l.lock.Lock()
	defer l.lock.Unlock()

	t, err := l.getToken(name)
	if err != nil {
		return err
	}
	balance := t.balanceOf(holder)
	if balance.LT(amount) {
		return fmt.Errorf(
			"%w: %s holds %s, cannot burn %s", ports.ErrInsufficientBalance, holder, balance, amount,
		)
	}
	t.balances[holder] = balance.Sub(amount)
	t.supply = t.supply.Sub(amount)
	return nil
}

func (l *ledger) Close() {}

func (l *ledger) getToken(name string) (*token, error) {
	t, ok := l.tokens[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ports.ErrUnknownToken, name)
	}
	return t, nil
}

func validateAmount(amount math.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return fmt.Errorf("%w: amount must not be negative", ports.ErrInvalidAmount)
	}
	return nil
}
