package domain

import "context"

type MintAuthorityRepository interface {
	Get(ctx context.Context) (*MintAuthority, error)
	Upsert(ctx context.Context, authority MintAuthority) error
	Close()
}
