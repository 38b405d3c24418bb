package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/core/domain"
	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
)

const (
	mintAuthorityStoreDir = "mint_authority"
	mintAuthorityKey      = "mint_authority"
)

type mintAuthorityRepository struct {
	store *badgerhold.Store
}

func NewMintAuthorityRepository(config ...interface{}) (domain.MintAuthorityRepository, error) {
	baseDir, logger, err := parseConfig(config...)
	if err != nil {
		return nil, err
	}

	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, mintAuthorityStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open mint authority store: %s", err)
	}

	return &mintAuthorityRepository{store}, nil
}

func (r *mintAuthorityRepository) Get(ctx context.Context) (*domain.MintAuthority, error) {
	var authority domain.MintAuthority
	err := r.store.Get(mintAuthorityKey, &authority)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mint authority: %w", err)
	}
	if authority.Whitelist == nil {
		authority.Whitelist = make(map[string]bool)
	}
	if authority.MinterSources == nil {
		authority.MinterSources = make(map[string]string)
	}
	return &authority, nil
}

func (r *mintAuthorityRepository) Upsert(
	ctx context.Context, authority domain.MintAuthority,
) error {
	if err := r.store.Upsert(mintAuthorityKey, &authority); err != nil {
		if errors.Is(err, badger.ErrConflict) {
			attempts := 1
			for errors.Is(err, badger.ErrConflict) && attempts <= maxRetries {
				time.Sleep(100 * time.Millisecond)
				err = r.store.Upsert(mintAuthorityKey, &authority)
				attempts++
			}
		}
		return err
	}
	return nil
}

func (r *mintAuthorityRepository) Close() {
	// nolint:all
	r.store.Close()
}
