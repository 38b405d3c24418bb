package pgdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/core/domain"
)

type factoryRepository struct {
	db *sql.DB
}

func NewFactoryRepository(config ...interface{}) (domain.FactoryRepository, error) {
	if len(config) != 1 {
		return nil, fmt.Errorf("invalid config: expected 1 argument, got %d", len(config))
	}
	db, ok := config[0].(*sql.DB)
	if !ok {
		return nil, fmt.Errorf(
			"cannot open factory repository: expected *sql.DB but got %T", config[0],
		)
	}

	return &factoryRepository{db}, nil
}

func (r *factoryRepository) Get(ctx context.Context, address string) (*domain.Factory, error) {
	var (
		factory = domain.Factory{Address: address, Vaults: make([]string, 0)}
		nonce   int64
	)
	err := r.db.QueryRowContext(
		ctx, "SELECT nonce, last_created_vault, updated_at FROM factory WHERE address = $1",
		address,
	).Scan(&nonce, &factory.LastCreatedVault, &factory.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get factory: %w", err)
	}
	factory.Nonce = uint64(nonce)

	rows, err := r.db.QueryContext(
		ctx, "SELECT vault_id FROM factory_vault WHERE factory = $1 ORDER BY position ASC",
		address,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get vaults of factory: %w", err)
	}
	// nolint
	defer rows.Close()

	for rows.Next() {
		var vaultId string
		if err := rows.Scan(&vaultId); err != nil {
			return nil, err
		}
		factory.Vaults = append(factory.Vaults, vaultId)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &factory, nil
}

// Upsert stores the factory, the vault registry being append only.
func (r *factoryRepository) Upsert(ctx context.Context, factory domain.Factory) error {
	return execTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO factory (address, nonce, last_created_vault, updated_at) VALUES ($1, $2, $3, $4)
ON CONFLICT(address) DO UPDATE SET
    nonce = excluded.nonce,
    last_created_vault = excluded.last_created_vault,
    updated_at = excluded.updated_at`,
			factory.Address, int64(factory.Nonce), factory.LastCreatedVault, factory.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to upsert factory: %w", err)
		}

		for i, vaultId := range factory.Vaults {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO factory_vault (factory, position, vault_id) VALUES ($1, $2, $3)
ON CONFLICT(factory, position) DO NOTHING`,
				factory.Address, i, vaultId,
			); err != nil {
				return fmt.Errorf("failed to add vault %s to factory: %w", vaultId, err)
			}
		}
		return nil
	})
}

func (r *factoryRepository) Close() {
	_ = r.db.Close()
}
