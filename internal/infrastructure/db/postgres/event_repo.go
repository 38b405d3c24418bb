package pgdb

import (
	"database/sql"
	"fmt"

	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/core/domain"
	watermilldb "github.com/Flowerbox-Finance/Flowerbox-Finance/internal/infrastructure/db/watermill"
	"github.com/ThreeDotsLabs/watermill"
	watermillsql "github.com/ThreeDotsLabs/watermill-sql/v3/pkg/sql"
	log "github.com/sirupsen/logrus"
)

// NewEventRepository stores the events in the postgres tables managed by a
// watermill sql publisher.
func NewEventRepository(config ...interface{}) (domain.EventRepository, error) {
	if len(config) != 1 {
		return nil, fmt.Errorf("invalid config: expected 1 argument, got %d", len(config))
	}
	db, ok := config[0].(*sql.DB)
	if !ok {
		return nil, fmt.Errorf(
			"cannot open event repository: expected *sql.DB but got %T", config[0],
		)
	}

	logger := watermill.NewStdLogger(false, false)
	if log.IsLevelEnabled(log.TraceLevel) {
		logger = watermill.NewStdLogger(true, true)
	}

	publisher, err := watermillsql.NewPublisher(
		db,
		watermillsql.PublisherConfig{
			SchemaAdapter:        watermillsql.DefaultPostgreSQLSchema{},
			AutoInitializeSchema: true,
		},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create watermill publisher: %w", err)
	}

	return watermilldb.NewWatermillEventRepository(publisher, db), nil
}
