package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/core/domain"
	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/core/ports"
	badgerdb "github.com/Flowerbox-Finance/Flowerbox-Finance/internal/infrastructure/db/badger"
	pgdb "github.com/Flowerbox-Finance/Flowerbox-Finance/internal/infrastructure/db/postgres"
	sqlitedb "github.com/Flowerbox-Finance/Flowerbox-Finance/internal/infrastructure/db/sqlite"
	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	log "github.com/sirupsen/logrus"
)

//go:embed sqlite/migration/*
var migrations embed.FS

//go:embed postgres/migration/*
var pgMigration embed.FS

var (
	eventStoreTypes = map[string]func(...interface{}) (domain.EventRepository, error){
		"badger":   badgerdb.NewEventRepository,
		"postgres": pgdb.NewEventRepository,
	}
	vaultStoreTypes = map[string]func(...interface{}) (domain.VaultRepository, error){
		"badger":   badgerdb.NewVaultRepository,
		"sqlite":   sqlitedb.NewVaultRepository,
		"postgres": pgdb.NewVaultRepository,
	}
	factoryStoreTypes = map[string]func(...interface{}) (domain.FactoryRepository, error){
		"badger":   badgerdb.NewFactoryRepository,
		"sqlite":   sqlitedb.NewFactoryRepository,
		"postgres": pgdb.NewFactoryRepository,
	}
	mintAuthorityStoreTypes = map[string]func(...interface{}) (domain.MintAuthorityRepository, error){
		"badger":   badgerdb.NewMintAuthorityRepository,
		"sqlite":   sqlitedb.NewMintAuthorityRepository,
		"postgres": pgdb.NewMintAuthorityRepository,
	}
)

const (
	sqliteDbFile = "sqlite.db"
)

type ServiceConfig struct {
	EventStoreType string
	DataStoreType  string

	EventStoreConfig []interface{}
	DataStoreConfig  []interface{}
}

type service struct {
	eventStore         domain.EventRepository
	vaultStore         domain.VaultRepository
	factoryStore       domain.FactoryRepository
	mintAuthorityStore domain.MintAuthorityRepository
}

func NewService(config ServiceConfig) (ports.RepoManager, error) {
	eventStoreFactory, ok := eventStoreTypes[config.EventStoreType]
	if !ok {
		return nil, fmt.Errorf("event store type not supported")
	}
	vaultStoreFactory, ok := vaultStoreTypes[config.DataStoreType]
	if !ok {
		return nil, fmt.Errorf("invalid data store type: %s", config.DataStoreType)
	}
	factoryStoreFactory, ok := factoryStoreTypes[config.DataStoreType]
	if !ok {
		return nil, fmt.Errorf("invalid data store type: %s", config.DataStoreType)
	}
	mintAuthorityStoreFactory, ok := mintAuthorityStoreTypes[config.DataStoreType]
	if !ok {
		return nil, fmt.Errorf("invalid data store type: %s", config.DataStoreType)
	}

	var eventStore domain.EventRepository
	var vaultStore domain.VaultRepository
	var factoryStore domain.FactoryRepository
	var mintAuthorityStore domain.MintAuthorityRepository
	var err error

	switch config.EventStoreType {
	case "badger":
		eventStore, err = eventStoreFactory(config.EventStoreConfig...)
		if err != nil {
			return nil, fmt.Errorf("failed to open event store: %s", err)
		}
	case "postgres":
		db, err := openPostgres(config.EventStoreConfig)
		if err != nil {
			return nil, err
		}
		eventStore, err = eventStoreFactory(db)
		if err != nil {
			return nil, fmt.Errorf("failed to open event store: %s", err)
		}
	default:
		return nil, fmt.Errorf("unknown event store db type")
	}

	var dataStoreConfig []interface{}
	switch config.DataStoreType {
	case "badger":
		dataStoreConfig = config.DataStoreConfig
	case "postgres":
		db, err := openPostgres(config.DataStoreConfig)
		if err != nil {
			return nil, err
		}

		pgDriver, err := migratepg.WithInstance(db, &migratepg.Config{})
		if err != nil {
			return nil, fmt.Errorf("failed to init postgres migration driver: %s", err)
		}
		source, err := iofs.New(pgMigration, "postgres/migration")
		if err != nil {
			return nil, fmt.Errorf("failed to embed postgres migrations: %s", err)
		}
		m, err := migrate.NewWithInstance("iofs", source, "postgres", pgDriver)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres migration instance: %s", err)
		}
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return nil, fmt.Errorf("failed to run postgres migrations: %s", err)
		}

		dataStoreConfig = []interface{}{db}
	case "sqlite":
		if len(config.DataStoreConfig) != 1 {
			return nil, fmt.Errorf("invalid data store config")
		}
		baseDir, ok := config.DataStoreConfig[0].(string)
		if !ok {
			return nil, fmt.Errorf("invalid base directory")
		}

		db, err := sqlitedb.OpenDb(filepath.Join(baseDir, sqliteDbFile))
		if err != nil {
			return nil, fmt.Errorf("failed to open db: %s", err)
		}

		driver, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
		if err != nil {
			return nil, fmt.Errorf("failed to init driver: %s", err)
		}
		source, err := iofs.New(migrations, "sqlite/migration")
		if err != nil {
			return nil, fmt.Errorf("failed to embed migrations: %s", err)
		}
		m, err := migrate.NewWithInstance("iofs", source, "flowerboxdb", driver)
		if err != nil {
			return nil, fmt.Errorf("failed to create migration instance: %s", err)
		}
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return nil, fmt.Errorf("failed to run migrations: %s", err)
		}

		dataStoreConfig = []interface{}{db}
	}

	vaultStore, err = vaultStoreFactory(dataStoreConfig...)
	if err != nil {
		return nil, fmt.Errorf("failed to open vault store: %s", err)
	}
	factoryStore, err = factoryStoreFactory(dataStoreConfig...)
	if err != nil {
		return nil, fmt.Errorf("failed to open factory store: %s", err)
	}
	mintAuthorityStore, err = mintAuthorityStoreFactory(dataStoreConfig...)
	if err != nil {
		return nil, fmt.Errorf("failed to open mint authority store: %s", err)
	}

	svc := &service{
		eventStore:         eventStore,
		vaultStore:         vaultStore,
		factoryStore:       factoryStore,
		mintAuthorityStore: mintAuthorityStore,
	}

	// Keep the vault projections up to date.
	eventStore.RegisterEventsHandler(domain.VaultTopic, svc.updateProjectionsAfterVaultEvents)

	return svc, nil
}

func (s *service) Events() domain.EventRepository {
	return s.eventStore
}

func (s *service) Vaults() domain.VaultRepository {
	return s.vaultStore
}

func (s *service) Factories() domain.FactoryRepository {
	return s.factoryStore
}

func (s *service) MintAuthorities() domain.MintAuthorityRepository {
	return s.mintAuthorityStore
}

func (s *service) Close() {
	s.eventStore.Close()
	s.vaultStore.Close()
	s.factoryStore.Close()
	s.mintAuthorityStore.Close()
}

func (s *service) updateProjectionsAfterVaultEvents(events []domain.Event) {
	ctx := context.Background()
	vault := domain.NewVaultFromEvents(events)

	if err := s.vaultStore.AddOrUpdateVault(ctx, *vault); err != nil {
		log.WithError(err).Errorf("failed to add or update vault %s", vault.Id)
		return
	}
	log.Debugf("added or updated vault %s in state %s", vault.Id, vault.State)
}

func openPostgres(config []interface{}) (*sql.DB, error) {
	if len(config) != 2 {
		return nil, fmt.Errorf("invalid data store config for postgres")
	}

	dsn, ok := config[0].(string)
	if !ok {
		return nil, fmt.Errorf("invalid DSN for postgres")
	}

	autoCreate, ok := config[1].(bool)
	if !ok {
		return nil, fmt.Errorf("invalid autocreate flag for postgres")
	}

	db, err := pgdb.OpenDb(dsn, autoCreate)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres db: %s", err)
	}
	return db, nil
}
