package domain

import "context"

type FactoryRepository interface {
	Get(ctx context.Context, address string) (*Factory, error)
	Upsert(ctx context.Context, factory Factory) error
	Close()
}
