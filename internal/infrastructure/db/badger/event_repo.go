package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/core/domain"
	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/infrastructure/db/dbutil"
	"github.com/dgraph-io/badger/v4"
	log "github.com/sirupsen/logrus"
	"github.com/timshannon/badgerhold/v4"
)

const eventStoreDir = "events"

type eventDTO struct {
	Topic       string
	AggregateId string
	Offset      uint64
	Type        domain.EventType
	Payload     []byte
}

type eventRepository struct {
	store *badgerhold.Store

	handlers    map[string][]func(events []domain.Event)
	handlerLock *sync.Mutex
}

func NewEventRepository(config ...interface{}) (domain.EventRepository, error) {
	baseDir, logger, err := parseConfig(config...)
	if err != nil {
		return nil, err
	}

	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, eventStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open event store: %s", err)
	}

	return &eventRepository{
		store:       store,
		handlers:    make(map[string][]func(events []domain.Event)),
		handlerLock: &sync.Mutex{},
	}, nil
}

func (r *eventRepository) Save(
	ctx context.Context, topic, id string, events []domain.Event,
) error {
	if len(events) <= 0 {
		return nil
	}

	if err := r.insert(topic, id, events); err != nil {
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		attempts := 1
		for errors.Is(err, badger.ErrConflict) && attempts <= maxRetries {
			time.Sleep(100 * time.Millisecond)
			err = r.insert(topic, id, events)
			attempts++
		}
		if err != nil {
			return err
		}
	}

	allEvents, err := r.GetEvents(ctx, topic, id)
	if err != nil {
		log.WithError(err).Error("failed to dispatch saved events")
		return nil
	}
	r.dispatch(topic, allEvents)
	return nil
}

func (r *eventRepository) GetEvents(
	ctx context.Context, topic, id string,
) ([]domain.Event, error) {
	query := badgerhold.Where("Topic").Eq(topic).And("AggregateId").Eq(id).SortBy("Offset")

	var dtos []eventDTO
	if err := r.store.Find(&dtos, query); err != nil {
		return nil, fmt.Errorf("failed to get events of %s %s: %w", topic, id, err)
	}

	events := make([]domain.Event, 0, len(dtos))
	for _, dto := range dtos {
		event, err := dbutil.DeserializeEvent(dto.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize event %d of %s: %w", dto.Offset, id, err)
		}
		events = append(events, event)
	}
	return events, nil
}

func (r *eventRepository) RegisterEventsHandler(
	topic string, handler func(events []domain.Event),
) {
	r.handlerLock.Lock()
	defer r.handlerLock.Unlock()

	r.handlers[topic] = append(r.handlers[topic], handler)
}

func (r *eventRepository) ClearRegisteredHandlers(topics ...string) {
	r.handlerLock.Lock()
	defer r.handlerLock.Unlock()

	if len(topics) == 0 {
		r.handlers = make(map[string][]func(events []domain.Event))
		return
	}
	for _, topic := range topics {
		delete(r.handlers, topic)
	}
}

func (r *eventRepository) Close() {
	// nolint:all
	r.store.Close()
}

// insert appends the events to the aggregate stream in a single transaction.
func (r *eventRepository) insert(topic, id string, events []domain.Event) error {
	return r.store.Badger().Update(func(tx *badger.Txn) error {
		query := badgerhold.Where("Topic").Eq(topic).And("AggregateId").Eq(id)
		count, err := r.store.TxCount(tx, &eventDTO{}, query)
		if err != nil {
			return err
		}

		for i, event := range events {
			payload, err := dbutil.SerializeEvent(event)
			if err != nil {
				return fmt.Errorf("failed to serialize event: %w", err)
			}
			offset := count + uint64(i)
			dto := eventDTO{
				Topic:       topic,
				AggregateId: id,
				Offset:      offset,
				Type:        event.GetType(),
				Payload:     payload,
			}
			key := fmt.Sprintf("%s/%s/%020d", topic, id, offset)
			if err := r.store.TxInsert(tx, key, &dto); err != nil {
				return err
			}
		}
		return nil
	})
}

// dispatch runs the handlers synchronously so that projections are up to
// date when Save returns.
func (r *eventRepository) dispatch(topic string, events []domain.Event) {
	r.handlerLock.Lock()
	handlers := append([]func(events []domain.Event){}, r.handlers[topic]...)
	r.handlerLock.Unlock()

	for _, handler := range handlers {
		handler(events)
	}
}
