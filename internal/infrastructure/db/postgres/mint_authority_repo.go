package pgdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/core/domain"
)

type mintAuthorityRepository struct {
	db *sql.DB
}

func NewMintAuthorityRepository(config ...interface{}) (domain.MintAuthorityRepository, error) {
	if len(config) != 1 {
		return nil, fmt.Errorf("invalid config: expected 1 argument, got %d", len(config))
	}
	db, ok := config[0].(*sql.DB)
	if !ok {
		return nil, fmt.Errorf(
			"cannot open mint authority repository: expected *sql.DB but got %T", config[0],
		)
	}

	return &mintAuthorityRepository{db}, nil
}

func (r *mintAuthorityRepository) Get(ctx context.Context) (*domain.MintAuthority, error) {
	authority := domain.MintAuthority{
		Whitelist:     make(map[string]bool),
		MinterSources: make(map[string]string),
	}
	err := r.db.QueryRowContext(
		ctx, "SELECT address, admin, updated_at FROM mint_authority WHERE id = 1",
	).Scan(&authority.Address, &authority.Admin, &authority.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mint authority: %w", err)
	}

	factories, err := r.db.QueryContext(ctx, "SELECT factory FROM mint_authority_whitelist")
	if err != nil {
		return nil, fmt.Errorf("failed to get whitelist: %w", err)
	}
	// nolint
	defer factories.Close()
	for factories.Next() {
		var factory string
		if err := factories.Scan(&factory); err != nil {
			return nil, err
		}
		authority.Whitelist[factory] = true
	}
	if err := factories.Err(); err != nil {
		return nil, err
	}

	sources, err := r.db.QueryContext(
		ctx, "SELECT token, minter FROM mint_authority_minter_source",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get minter sources: %w", err)
	}
	// nolint
	defer sources.Close()
	for sources.Next() {
		var token, minter string
		if err := sources.Scan(&token, &minter); err != nil {
			return nil, err
		}
		authority.MinterSources[token] = minter
	}
	if err := sources.Err(); err != nil {
		return nil, err
	}
	return &authority, nil
}

func (r *mintAuthorityRepository) Upsert(
	ctx context.Context, authority domain.MintAuthority,
) error {
	return execTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO mint_authority (id, address, admin, updated_at) VALUES (1, $1, $2, $3)
ON CONFLICT(id) DO UPDATE SET
    address = excluded.address,
    admin = excluded.admin,
    updated_at = excluded.updated_at`,
			authority.Address, authority.Admin, authority.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to upsert mint authority: %w", err)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM mint_authority_whitelist"); err != nil {
			return err
		}
		for factory, approved := range authority.Whitelist {
			if !approved {
				continue
			}
			if _, err := tx.ExecContext(
				ctx, "INSERT INTO mint_authority_whitelist (factory) VALUES ($1)", factory,
			); err != nil {
				return fmt.Errorf("failed to whitelist factory %s: %w", factory, err)
			}
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM mint_authority_minter_source"); err != nil {
			return err
		}
		for token, minter := range authority.MinterSources {
			if _, err := tx.ExecContext(
				ctx, "INSERT INTO mint_authority_minter_source (token, minter) VALUES ($1, $2)",
				token, minter,
			); err != nil {
				return fmt.Errorf("failed to set minter source of %s: %w", token, err)
			}
		}
		return nil
	})
}

func (r *mintAuthorityRepository) Close() {
	_ = r.db.Close()
}
