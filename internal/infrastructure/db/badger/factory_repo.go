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

const factoryStoreDir = "factories"

type factoryRepository struct {
	store *badgerhold.Store
}

func NewFactoryRepository(config ...interface{}) (domain.FactoryRepository, error) {
	baseDir, logger, err := parseConfig(config...)
	if err != nil {
		return nil, err
	}

	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, factoryStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open factory store: %s", err)
	}

	return &factoryRepository{store}, nil
}

func (r *factoryRepository) Get(ctx context.Context, address string) (*domain.Factory, error) {
	var factory domain.Factory
	err := r.store.Get(address, &factory)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get factory: %w", err)
	}
	if factory.Vaults == nil {
		factory.Vaults = make([]string, 0)
	}
	return &factory, nil
}

func (r *factoryRepository) Upsert(ctx context.Context, factory domain.Factory) error {
	if err := r.store.Upsert(factory.Address, &factory); err != nil {
		if errors.Is(err, badger.ErrConflict) {
			attempts := 1
			for errors.Is(err, badger.ErrConflict) && attempts <= maxRetries {
				time.Sleep(100 * time.Millisecond)
				err = r.store.Upsert(factory.Address, &factory)
				attempts++
			}
		}
		return err
	}
	return nil
}

func (r *factoryRepository) Close() {
	// nolint:all
	r.store.Close()
}
