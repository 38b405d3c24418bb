package ports

import "github.com/Flowerbox-Finance/Flowerbox-Finance/internal/core/domain"

type RepoManager interface {
	Events() domain.EventRepository
	Vaults() domain.VaultRepository
	Factories() domain.FactoryRepository
	MintAuthorities() domain.MintAuthorityRepository
	Close()
}
