package domain

import "context"

type EventRepository interface {
	Save(ctx context.Context, topic, id string, events []Event) error
	GetEvents(ctx context.Context, topic, id string) ([]Event, error)
	RegisterEventsHandler(topic string, handler func(events []Event))
	ClearRegisteredHandlers(topic ...string)
	Close()
}

type VaultRepository interface {
	AddOrUpdateVault(ctx context.Context, vault Vault) error
	// GetVault returns nil if the vault is not found.
	GetVault(ctx context.Context, id string) (*Vault, error)
	GetVaultByAddress(ctx context.Context, address string) (*Vault, error)
	// GetVaults returns the vaults of the factory ordered by sequence, optionally
	// filtered by state.
	GetVaults(ctx context.Context, factory string, states ...VaultState) ([]Vault, error)
	Close()
}
