package application

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"cosmossdk.io/math"
	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/core/domain"
	"github.com/Flowerbox-Finance/Flowerbox-Finance/pkg/errors"
	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
)

type inFlightKey struct{}

// withInFlight marks the vault as being mutated by the current call chain.
// Any call into the same vault carrying the returned context is reentrant.
func withInFlight(ctx context.Context, vaultId string) context.Context {
	current, _ := ctx.Value(inFlightKey{}).(map[string]struct{})
	next := make(map[string]struct{}, len(current)+1)
	for id := range current {
		next[id] = struct{}{}
	}
	next[vaultId] = struct{}{}
	return context.WithValue(ctx, inFlightKey{}, next)
}

func isInFlight(ctx context.Context, vaultId string) bool {
	current, _ := ctx.Value(inFlightKey{}).(map[string]struct{})
	_, ok := current[vaultId]
	return ok
}

// vaultLocks serializes the transitions of every vault and exposes the
// post-transition state of the in-flight ones to reentrant calls.
type vaultLocks struct {
	lock  *sync.Mutex
	locks map[string]*sync.Mutex
	live  map[string]*domain.Vault
}

func newVaultLocks() *vaultLocks {
	return &vaultLocks{
		lock:  &sync.Mutex{},
		locks: make(map[string]*sync.Mutex),
		live:  make(map[string]*domain.Vault),
	}
}

// tryAcquire takes the vault lock without waiting. It returns false when a
// transition of the vault is already running, whatever context it runs in.
func (l *vaultLocks) tryAcquire(vaultId string) (func(), bool) {
	l.lock.Lock()
	mtx, ok := l.locks[vaultId]
	if !ok {
		mtx = &sync.Mutex{}
		l.locks[vaultId] = mtx
	}
	l.lock.Unlock()

	if !mtx.TryLock() {
		return nil, false
	}
	return mtx.Unlock, true
}

func (l *vaultLocks) setLive(vault *domain.Vault) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.live[vault.Id] = vault
}

func (l *vaultLocks) getLive(vaultId string) *domain.Vault {
	l.lock.Lock()
	defer l.lock.Unlock()
	if vault, ok := l.live[vaultId]; ok {
		return vault.Clone()
	}
	return nil
}

func (l *vaultLocks) clearLive(vaultId string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	delete(l.live, vaultId)
}

type compensation struct {
	name string
	fn   func(ctx context.Context) error
}

// undoLog records how to revert every external effect of a transition. Log
// entries are tagged with key=id.
type undoLog struct {
	key   string
	id    string
	steps []compensation
}

func (u *undoLog) add(name string, fn func(ctx context.Context) error) {
	u.steps = append(u.steps, compensation{name, fn})
}

// rollback reverts the recorded effects in reverse order. Compensations run on
// a detached context so that a cancelled request cannot leave funds behind.
func (u *undoLog) rollback(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for i := len(u.steps) - 1; i >= 0; i-- {
		step := u.steps[i]
		if err := step.fn(ctx); err != nil {
			log.WithError(err).WithField(u.key, u.id).
				Errorf("failed to revert %s", step.name)
			continue
		}
		log.WithField(u.key, u.id).Debugf("reverted %s", step.name)
	}
	u.steps = nil
}

func parseIdentity(field, value string) (string, error) {
	if !common.IsHexAddress(value) {
		return "", errors.INVALID_PARAMETERS.New("invalid %s %q", field, value).
			WithMetadata(errors.InvalidParametersMetadata{
				Field:  field,
				Value:  value,
				Reason: "not a valid ledger identity",
			})
	}
	return common.HexToAddress(value).Hex(), nil
}

func invalidParams(field, value, reason string) errors.Error {
	return errors.INVALID_PARAMETERS.New("%s %s", field, reason).
		WithMetadata(errors.InvalidParametersMetadata{
			Field:  field,
			Value:  value,
			Reason: reason,
		})
}

// toVaultError converts the sentinel errors returned by the vault aggregate
// into typed errors. Typed errors are returned as they are.
func toVaultError(
	vault *domain.Vault, caller string, expected domain.VaultState, err error,
) error {
	if err == nil {
		return nil
	}
	var typed errors.Error
	if stderrors.As(err, &typed) {
		return err
	}

	switch {
	case stderrors.Is(err, domain.ErrInvalidParameters):
		return errors.INVALID_PARAMETERS.Wrap(err).
			WithMetadata(errors.InvalidParametersMetadata{Reason: err.Error()})
	case stderrors.Is(err, domain.ErrWrongState):
		return errors.WRONG_STATE.Wrap(err).WithMetadata(errors.WrongStateMetadata{
			VaultId:       vault.Id,
			CurrentState:  vault.State.String(),
			ExpectedState: expected.String(),
		})
	case stderrors.Is(err, domain.ErrNotCreator):
		return errors.NOT_CREATOR.Wrap(err).WithMetadata(errors.IdentityMismatchMetadata{
			VaultId:  vault.Id,
			Caller:   caller,
			Expected: vault.Creator,
		})
	case stderrors.Is(err, domain.ErrNotParticipant):
		return errors.NOT_INVESTOR.Wrap(err).WithMetadata(errors.IdentityMismatchMetadata{
			VaultId:  vault.Id,
			Caller:   caller,
			Expected: vault.Investor,
		})
	case stderrors.Is(err, domain.ErrSameIdentityAsCreator):
		return errors.SAME_IDENTITY_AS_CREATOR.Wrap(err).
			WithMetadata(errors.IdentityMismatchMetadata{
				VaultId:  vault.Id,
				Caller:   caller,
				Expected: vault.Creator,
			})
	case stderrors.Is(err, domain.ErrLockNotElapsed):
		metadata := errors.LockNotElapsedMetadata{VaultId: vault.Id}
		if vault.LockStartHeight != nil {
			metadata.LockStartHeight = *vault.LockStartHeight
			metadata.MaturityHeight, _ = vault.MaturityHeight()
		}
		return errors.LOCK_NOT_ELAPSED.Wrap(err).WithMetadata(metadata)
	case stderrors.Is(err, domain.ErrNoVaultCreatedYet):
		return errors.NO_VAULT_CREATED_YET.Wrap(err)
	}
	return errors.INTERNAL_ERROR.Wrap(err)
}

func transferFailed(
	vaultId, token, from, to string, amount, received math.Int, cause error,
) errors.Error {
	if cause == nil {
		cause = fmt.Errorf("moved %s out of %s", received, amount)
	}
	return errors.TRANSFER_FAILED.Wrap(cause).WithMetadata(errors.TransferMetadata{
		VaultId:  vaultId,
		Token:    token,
		From:     from,
		To:       to,
		Amount:   amount.String(),
		Received: received.String(),
	})
}

func amountOrZero(amount math.Int) math.Int {
	if amount.IsNil() {
		return math.ZeroInt()
	}
	return amount
}
