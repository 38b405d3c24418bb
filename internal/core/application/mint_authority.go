package application

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"cosmossdk.io/math"
	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/core/domain"
	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/core/ports"
	"github.com/Flowerbox-Finance/Flowerbox-Finance/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type mintAuthorityService struct {
	repoManager ports.RepoManager
	ledger      ports.TokenLedger

	address        string
	admin          string
	incentiveToken string
	// factories whitelisted at bootstrap
	whitelist []string

	// authority is the in-memory copy of the persisted record, swapped only
	// after a successful upsert.
	authority *domain.MintAuthority
	lock      *sync.RWMutex
}

func NewMintAuthorityService(
	repoManager ports.RepoManager, ledger ports.TokenLedger,
	address, admin, incentiveToken string, whitelist []string,
) (MintAuthorityService, error) {
	if incentiveToken == "" {
		return nil, fmt.Errorf("missing incentive token")
	}
	authority, err := domain.NewMintAuthority(address, admin)
	if err != nil {
		return nil, err
	}
	return &mintAuthorityService{
		repoManager:    repoManager,
		ledger:         ledger,
		address:        authority.Address,
		admin:          authority.Admin,
		incentiveToken: incentiveToken,
		whitelist:      whitelist,
		lock:           &sync.RWMutex{},
	}, nil
}

// Start restores the authority record, or creates it, then makes sure the
// authority is the minter source of the incentive token and that the
// configured factories are whitelisted.
func (s *mintAuthorityService) Start() error {
	ctx := context.Background()

	authority, err := s.repoManager.MintAuthorities().Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to get mint authority from db: %w", err)
	}
	if authority == nil {
		authority, err = domain.NewMintAuthority(s.address, s.admin)
		if err != nil {
			return err
		}
		log.Infof("created mint authority %s", authority.Address)
	}
	if authority.Admin != s.admin {
		log.Warnf("mint authority admin changed from %s to %s", authority.Admin, s.admin)
		authority.Admin = s.admin
	}

	if authority.MinterSources[s.incentiveToken] != authority.Address {
		if err := authority.SetMinterSource(
			s.admin, s.incentiveToken, authority.Address,
		); err != nil {
			return err
		}
	}
	minter, err := s.ledger.Minter(ctx, s.incentiveToken)
	if err != nil || minter != authority.MinterSources[s.incentiveToken] {
		if err := s.ledger.SetMinter(
			ctx, s.incentiveToken, authority.MinterSources[s.incentiveToken],
		); err != nil {
			return fmt.Errorf("failed to set minter of %s: %w", s.incentiveToken, err)
		}
	}

	for _, factory := range s.whitelist {
		if err := authority.WhitelistFactory(s.admin, factory, true); err != nil {
			return err
		}
	}

	if err := s.repoManager.MintAuthorities().Upsert(ctx, *authority); err != nil {
		return fmt.Errorf("failed to persist mint authority: %w", err)
	}

	s.lock.Lock()
	s.authority = authority
	s.lock.Unlock()
	return nil
}

func (s *mintAuthorityService) IncentiveToken() string {
	return s.incentiveToken
}

func (s *mintAuthorityService) GetMintAuthority(
	ctx context.Context,
) (*domain.MintAuthority, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.authority == nil {
		return nil, errors.INTERNAL_ERROR.New("mint authority not started")
	}
	return copyAuthority(s.authority), nil
}

func (s *mintAuthorityService) SetMinterSource(
	ctx context.Context, caller, token, minter string,
) error {
	return s.update(ctx, caller, func(authority *domain.MintAuthority, undo *undoLog) error {
		if err := authority.SetMinterSource(caller, token, minter); err != nil {
			return err
		}

		// An unknown token has no previous minter, reverting leaves it registered
		// without one.
		prevMinter, _ := s.ledger.Minter(ctx, token)
		if err := s.ledger.SetMinter(ctx, token, authority.MinterSources[token]); err != nil {
			return errors.INTERNAL_ERROR.Wrap(
				fmt.Errorf("failed to set minter of %s: %w", token, err),
			)
		}
		undo.add("ledger minter", func(ctx context.Context) error {
			return s.ledger.SetMinter(ctx, token, prevMinter)
		})

		log.Infof("minter source of %s set to %s", token, authority.MinterSources[token])
		return nil
	})
}

func (s *mintAuthorityService) WhitelistFactory(
	ctx context.Context, caller, factory string, approved bool,
) error {
	return s.update(ctx, caller, func(authority *domain.MintAuthority, _ *undoLog) error {
		if err := authority.WhitelistFactory(caller, factory, approved); err != nil {
			return err
		}
		log.Infof("factory %s whitelisted: %t", factory, approved)
		return nil
	})
}

func (s *mintAuthorityService) MintReward(
	ctx context.Context, factory, recipient string, amount math.Int,
) error {
	if amount.IsNil() || !amount.IsPositive() {
		return invalidParams("amount", amountOrZero(amount).String(), "must be strictly positive")
	}
	factory, err := parseIdentity("factory", factory)
	if err != nil {
		return err
	}
	recipient, err = parseIdentity("recipient", recipient)
	if err != nil {
		return err
	}
	metadata := errors.MintMetadata{
		Factory:   factory,
		Recipient: recipient,
		Token:     s.incentiveToken,
		Amount:    amount.String(),
	}

	s.lock.RLock()
	authority := s.authority
	s.lock.RUnlock()
	if authority == nil {
		return errors.INTERNAL_ERROR.New("mint authority not started")
	}

	if err := authority.CanMint(factory, s.incentiveToken); err != nil {
		return errors.NOT_WHITELISTED.Wrap(err).WithMetadata(metadata)
	}

	if err := s.ledger.Mint(
		ctx, s.incentiveToken, authority.Address, recipient, amount,
	); err != nil {
		return errors.MINT_FAILED.Wrap(err).WithMetadata(metadata)
	}

	log.WithField("factory", factory).Debugf(
		"minted %s %s to %s", amount, s.incentiveToken, recipient,
	)
	return nil
}

// update applies fn to a copy of the authority and persists it, readers keep
// seeing the previous copy until the new one is stored. The external effects
// fn records in the undo log are reverted if the record cannot be stored.
func (s *mintAuthorityService) update(
	ctx context.Context, caller string,
	fn func(authority *domain.MintAuthority, undo *undoLog) error,
) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.authority == nil {
		return errors.INTERNAL_ERROR.New("mint authority not started")
	}

	if normalized, err := parseIdentity("caller", caller); err == nil {
		caller = normalized
	}

	authority := copyAuthority(s.authority)
	undo := &undoLog{key: "mint_authority", id: authority.Address}
	if err := fn(authority, undo); err != nil {
		undo.rollback(ctx)
		var typed errors.Error
		switch {
		case stderrors.As(err, &typed):
			return err
		case stderrors.Is(err, domain.ErrNotAdmin):
			return errors.NOT_ADMIN.Wrap(err).WithMetadata(errors.AdminMetadata{Caller: caller})
		case stderrors.Is(err, domain.ErrInvalidParameters):
			return errors.INVALID_PARAMETERS.Wrap(err).
				WithMetadata(errors.InvalidParametersMetadata{Reason: err.Error()})
		default:
			return errors.INTERNAL_ERROR.Wrap(err)
		}
	}

	if err := s.repoManager.MintAuthorities().Upsert(ctx, *authority); err != nil {
		undo.rollback(ctx)
		return errors.INTERNAL_ERROR.Wrap(fmt.Errorf("failed to persist mint authority: %w", err))
	}
	s.authority = authority
	return nil
}

func copyAuthority(authority *domain.MintAuthority) *domain.MintAuthority {
	cp := *authority
	cp.Whitelist = make(map[string]bool, len(authority.Whitelist))
	for k, v := range authority.Whitelist {
		cp.Whitelist[k] = v
	}
	cp.MinterSources = make(map[string]string, len(authority.MinterSources))
	for k, v := range authority.MinterSources {
		cp.MinterSources[k] = v
	}
	return &cp
}
