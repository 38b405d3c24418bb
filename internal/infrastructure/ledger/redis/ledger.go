package redisledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cosmossdk.io/math"
	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/core/ports"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	tokensKey        = "ledger:tokens"
	supplyKeyPrefix  = "ledger:supply"
	balanceKeyPrefix = "ledger:balances"
	allowanceKeyFmt  = "ledger:allowances:%s:%s"
)

// reader is satisfied by both the client and a watched transaction.
type reader interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HExists(ctx context.Context, key, field string) *redis.BoolCmd
}

type ledger struct {
	rdb          *redis.Client
	numOfRetries int
	retryDelay   time.Duration
}

// NewLedger returns a ledger persisted in redis. Every mutation runs in an
// optimistic WATCH/MULTI transaction retried up to numOfRetries times.
func NewLedger(rdb *redis.Client, numOfRetries int) ports.TokenLedger {
	if numOfRetries <= 0 {
		numOfRetries = 1
	}
	return &ledger{
		rdb:          rdb,
		numOfRetries: numOfRetries,
		retryDelay:   10 * time.Millisecond,
	}
}

func (l *ledger) HasToken(ctx context.Context, token string) (bool, error) {
	return l.rdb.HExists(ctx, tokensKey, token).Result()
}

func (l *ledger) BalanceOf(ctx context.Context, token, holder string) (math.Int, error) {
	if err := l.requireToken(ctx, l.rdb, token); err != nil {
		return math.Int{}, err
	}
	return getAmount(ctx, l.rdb, balanceKey(token), holder)
}

func (l *ledger) TotalSupply(ctx context.Context, token string) (math.Int, error) {
	if err := l.requireToken(ctx, l.rdb, token); err != nil {
		return math.Int{}, err
	}
	return getAmount(ctx, l.rdb, supplyKeyPrefix, token)
}

func (l *ledger) Allowance(
	ctx context.Context, token, owner, spender string,
) (math.Int, error) {
	if err := l.requireToken(ctx, l.rdb, token); err != nil {
		return math.Int{}, err
	}
	return getAmount(ctx, l.rdb, allowanceKey(token, owner), spender)
}

func (l *ledger) Approve(
	ctx context.Context, token, owner, spender string, amount math.Int,
) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	key := allowanceKey(token, owner)
	return l.update(ctx, func(tx *redis.Tx) (func(redis.Pipeliner), error) {
		if err := l.requireToken(ctx, tx, token); err != nil {
			return nil, err
		}
		return func(pipe redis.Pipeliner) {
			if amount.IsZero() {
				pipe.HDel(ctx, key, spender)
				return
			}
			pipe.HSet(ctx, key, spender, amount.String())
		}, nil
	}, tokensKey, key)
}

func (l *ledger) Transfer(
	ctx context.Context, token, from, to string, amount math.Int,
) (math.Int, error) {
	if err := validateAmount(amount); err != nil {
		return math.Int{}, err
	}
	key := balanceKey(token)
	if err := l.update(ctx, func(tx *redis.Tx) (func(redis.Pipeliner), error) {
		if err := l.requireToken(ctx, tx, token); err != nil {
			return nil, err
		}
		return move(ctx, tx, key, from, to, amount)
	}, tokensKey, key); err != nil {
		return math.Int{}, err
	}
	return amount, nil
}

func (l *ledger) TransferFrom(
	ctx context.Context, token, spender, from, to string, amount math.Int,
) (math.Int, error) {
	if err := validateAmount(amount); err != nil {
		return math.Int{}, err
	}
	key := balanceKey(token)
	allowKey := allowanceKey(token, from)
	if err := l.update(ctx, func(tx *redis.Tx) (func(redis.Pipeliner), error) {
		if err := l.requireToken(ctx, tx, token); err != nil {
			return nil, err
		}
		allowance, err := getAmount(ctx, tx, allowKey, spender)
		if err != nil {
			return nil, err
		}
		if allowance.LT(amount) {
			return nil, fmt.Errorf(
				"%w: %s may spend %s of %s, needs %s",
				ports.ErrInsufficientAllowance, spender, allowance, from, amount,
			)
		}
		moveFn, err := move(ctx, tx, key, from, to, amount)
		if err != nil {
			return nil, err
		}
		return func(pipe redis.Pipeliner) {
			moveFn(pipe)
			pipe.HSet(ctx, allowKey, spender, allowance.Sub(amount).String())
		}, nil
	}, tokensKey, key, allowKey); err != nil {
		return math.Int{}, err
	}
	return amount, nil
}

func (l *ledger) Minter(ctx context.Context, token string) (string, error) {
	minter, err := l.rdb.HGet(ctx, tokensKey, token).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%w: %s", ports.ErrUnknownToken, token)
	}
	return minter, err
}

func (l *ledger) SetMinter(ctx context.Context, token, minter string) error {
	if token == "" {
		return fmt.Errorf("missing token name")
	}
	return l.update(ctx, func(tx *redis.Tx) (func(redis.Pipeliner), error) {
		return func(pipe redis.Pipeliner) {
			pipe.HSet(ctx, tokensKey, token, minter)
			pipe.HSetNX(ctx, supplyKeyPrefix, token, "0")
		}, nil
	}, tokensKey)
}

func (l *ledger) Mint(
	ctx context.Context, token, minter, to string, amount math.Int,
) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	key := balanceKey(token)
	return l.update(ctx, func(tx *redis.Tx) (func(redis.Pipeliner), error) {
		current, err := tx.HGet(ctx, tokensKey, token).Result()
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ports.ErrUnknownToken, token)
		}
		if err != nil {
			return nil, err
		}
		if minter == "" || minter != current {
			return nil, fmt.Errorf("%w: %s cannot mint %s", ports.ErrNotMinter, minter, token)
		}
		balance, err := getAmount(ctx, tx, key, to)
		if err != nil {
			return nil, err
		}
		supply, err := getAmount(ctx, tx, supplyKeyPrefix, token)
		if err != nil {
			return nil, err
		}
		return func(pipe redis.Pipeliner) {
			pipe.HSet(ctx, key, to, balance.Add(amount).String())
			pipe.HSet(ctx, supplyKeyPrefix, token, supply.Add(amount).String())
		}, nil
	}, tokensKey, supplyKeyPrefix, key)
}

func (l *ledger) Burn(ctx context.Context, token, holder string, amount math.Int) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	key := balanceKey(token)
	return l.update(ctx, func(tx *redis.Tx) (func(redis.Pipeliner), error) {
		if err := l.requireToken(ctx, tx, token); err != nil {
			return nil, err
		}
		balance, err := getAmount(ctx, tx, key, holder)
		if err != nil {
			return nil, err
		}
		if balance.LT(amount) {
			return nil, fmt.Errorf(
				"%w: %s holds %s, cannot burn %s",
				ports.ErrInsufficientBalance, holder, balance, amount,
			)
		}
		supply, err := getAmount(ctx, tx, supplyKeyPrefix, token)
		if err != nil {
			return nil, err
		}
		return func(pipe redis.Pipeliner) {
			pipe.HSet(ctx, key, holder, balance.Sub(amount).String())
			pipe.HSet(ctx, supplyKeyPrefix, token, supply.Sub(amount).String())
		}, nil
	}, tokensKey, supplyKeyPrefix, key)
}

func (l *ledger) Close() {
	if err := l.rdb.Close(); err != nil {
		log.WithError(err).Warn("failed to close redis ledger")
	}
}

// update reads under WATCH with fn and applies the returned writes atomically.
// Only transactions aborted by a concurrent write are retried.
func (l *ledger) update(
	ctx context.Context,
	fn func(tx *redis.Tx) (func(redis.Pipeliner), error),
	keys ...string,
) error {
	var err error
	for range l.numOfRetries {
		err = l.rdb.Watch(ctx, func(tx *redis.Tx) error {
			write, err := fn(tx)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				write(pipe)
				return nil
			})
			return err
		}, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		log.Warnf("ledger transaction on %v aborted, retrying", keys)
		time.Sleep(l.retryDelay)
	}
	return fmt.Errorf("ledger update failed after max number of retries: %w", err)
}

func (l *ledger) requireToken(ctx context.Context, rdb reader, token string) error {
	ok, err := rdb.HExists(ctx, tokensKey, token).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ports.ErrUnknownToken, token)
	}
	return nil
}

func move(
	ctx context.Context, tx *redis.Tx, key, from, to string, amount math.Int,
) (func(redis.Pipeliner), error) {
	fromBalance, err := getAmount(ctx, tx, key, from)
	if err != nil {
		return nil, err
	}
	if fromBalance.LT(amount) {
		return nil, fmt.Errorf(
			"%w: %s holds %s, needs %s", ports.ErrInsufficientBalance, from, fromBalance, amount,
		)
	}
	toBalance, err := getAmount(ctx, tx, key, to)
	if err != nil {
		return nil, err
	}
	if from == to {
		return func(redis.Pipeliner) {}, nil
	}
	return func(pipe redis.Pipeliner) {
		pipe.HSet(ctx, key, from, fromBalance.Sub(amount).String())
		pipe.HSet(ctx, key, to, toBalance.Add(amount).String())
	}, nil
}

func getAmount(ctx context.Context, rdb reader, key, field string) (math.Int, error) {
	value, err := rdb.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return math.ZeroInt(), nil
	}
	if err != nil {
		return math.Int{}, err
	}
	amount, ok := math.NewIntFromString(value)
	if !ok {
		return math.Int{}, fmt.Errorf("malformed amount %q in %s/%s", value, key, field)
	}
	return amount, nil
}

func balanceKey(token string) string {
	return fmt.Sprintf("%s:%s", balanceKeyPrefix, token)
}

func allowanceKey(token, owner string) string {
	return fmt.Sprintf(allowanceKeyFmt, token, owner)
}

func validateAmount(amount math.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return fmt.Errorf("%w: amount must not be negative", ports.ErrInvalidAmount)
	}
	return nil
}
