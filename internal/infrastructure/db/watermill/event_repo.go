package watermilldb

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/core/domain"
	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/infrastructure/db/dbutil"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	log "github.com/sirupsen/logrus"
)

type eventRepository struct {
	publisher message.Publisher
	db        *sql.DB

	handlers    map[string][]func(events []domain.Event) // topic -> handlers
	handlerLock *sync.Mutex
}

// NewWatermillEventRepository publishes every event as a JSON message of the
// topic and reads the stream of an aggregate back from the watermill_<topic>
// table.
func NewWatermillEventRepository(publisher message.Publisher, db *sql.DB) domain.EventRepository {
	return &eventRepository{
		publisher:   publisher,
		db:          db,
		handlers:    make(map[string][]func(events []domain.Event)),
		handlerLock: &sync.Mutex{},
	}
}

func (e *eventRepository) ClearRegisteredHandlers(topics ...string) {
	e.handlerLock.Lock()
	defer e.handlerLock.Unlock()

	if len(topics) == 0 {
		e.handlers = make(map[string][]func(events []domain.Event))
		return
	}

	for _, topic := range topics {
		delete(e.handlers, topic)
	}
}

func (e *eventRepository) Close() {
	//nolint:errcheck
	e.publisher.Close()
}

func (e *eventRepository) RegisterEventsHandler(
	topic string, handler func(events []domain.Event),
) {
	e.handlerLock.Lock()
	defer e.handlerLock.Unlock()

	e.handlers[topic] = append(e.handlers[topic], handler)
}

func (e *eventRepository) Save(
	ctx context.Context, topic string, id string, events []domain.Event,
) error {
	if len(events) <= 0 {
		return nil
	}

	messages, err := toWatermillMessages(events)
	if err != nil {
		return err
	}
	if err := e.publisher.Publish(topic, messages...); err != nil {
		return fmt.Errorf("failed to publish events of %s: %w", id, err)
	}

	if err := e.dispatch(ctx, topic, id); err != nil {
		log.WithError(err).Error("failed to dispatch saved events")
	}
	return nil
}

func (e *eventRepository) GetEvents(
	ctx context.Context, topic, id string,
) ([]domain.Event, error) {
	return e.getAllEvents(ctx, topic, id)
}

// dispatch runs the handlers synchronously with the whole stream of the
// aggregate, so that projections are up to date when Save returns.
func (e *eventRepository) dispatch(ctx context.Context, topic string, id string) error {
	events, err := e.getAllEvents(ctx, topic, id)
	if err != nil {
		return err
	}

	if len(events) == 0 {
		return nil
	}

	e.handlerLock.Lock()
	handlers := append([]func(events []domain.Event){}, e.handlers[topic]...)
	e.handlerLock.Unlock()

	for _, handler := range handlers {
		handler(events)
	}
	return nil
}

// getAllEvents queries the watermill_<topic> table for the messages whose
// JSON payload has the given Id, in publication order.
func (e *eventRepository) getAllEvents(
	ctx context.Context, topic, id string,
) ([]domain.Event, error) {
	if e.db == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := fmt.Sprintf(
		`SELECT payload FROM watermill_%s WHERE payload->>'Id' = $1 ORDER BY "offset" ASC;`,
		topic,
	)

	rows, err := e.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf(
			"failed to query messages for topic %s with id %s: %w",
			topic, id, err,
		)
	}
	// nolint
	defer rows.Close()

	records := make([][]byte, 0)
	for rows.Next() {
		var record []byte
		if err := rows.Scan(&record); err != nil {
			return nil, fmt.Errorf("failed to scan message payload: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf(
			"error iterating messages for topic %s with id %s: %w", topic, id, err,
		)
	}

	events := make([]domain.Event, 0, len(records))
	for _, record := range records {
		event, err := dbutil.DeserializeEvent(record)
		if err != nil {
			log.WithError(err).Warnf("failed to deserialize event: %s", string(record))
			continue
		}
		events = append(events, event)
	}

	return events, nil
}

func toWatermillMessages(events []domain.Event) ([]*message.Message, error) {
	watermillMessages := make([]*message.Message, 0, len(events))
	for _, event := range events {
		payload, err := dbutil.SerializeEvent(event)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize event: %w", err)
		}

		watermillMessages = append(
			watermillMessages,
			message.NewMessage(watermill.NewUUID(), payload),
		)
	}

	return watermillMessages, nil
}
