// Package store – message persistence and fan-out
//
// DBStore combines the SQLite-backed message repository with a Broker that
// fans inserted messages out to live subscribers. Insert is
// write-then-publish: a message is published only after it has been
// persisted, so subscribers only ever see durable records. Delivery is at
// least once; consumers deduplicate.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/racetowin/paddock-backend/internal/domain"
	"github.com/racetowin/paddock-backend/internal/repo"
)

// ErrInvalidMessage is returned by Insert for records missing required
// fields. It marks a caller bug rather than a transient store failure.
var ErrInvalidMessage = errors.New("invalid message")

// Broker fans inserted messages out to room subscribers.
type Broker interface {
	// Publish delivers m to every subscriber of the room. Best effort:
	// slow subscribers may be skipped.
	Publish(roomID string, m domain.Message)

	// Subscribe registers fn for the room's messages and returns a cancel
	// function. fn may be called from any goroutine.
	Subscribe(roomID string, fn func(domain.Message)) (func(), error)

	// Close releases broker resources. Subscriptions stop delivering.
	Close() error
}

// DBStore persists messages in SQLite via GORM and broadcasts them
// through a Broker.
type DBStore struct {
	db     *gorm.DB
	broker Broker
	log    zerolog.Logger
}

// New constructs a DBStore over the given database handle and broker.
func New(db *gorm.DB, broker Broker, log zerolog.Logger) *DBStore {
	return &DBStore{db: db, broker: broker, log: log}
}

// ListRecent returns up to limit messages for the room, oldest first.
func (s *DBStore) ListRecent(ctx context.Context, roomID string, limit int) ([]domain.Message, error) {
	return repo.ListRecentMessages(ctx, s.db, roomID, limit)
}

// Insert validates and persists m, then publishes it to subscribers.
func (s *DBStore) Insert(ctx context.Context, m *domain.Message) error {
	if !m.Valid() {
		return ErrInvalidMessage
	}
	if err := repo.InsertMessage(ctx, s.db, m); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	s.broker.Publish(m.RoomID, *m)
	return nil
}

// SubscribeInsertions registers fn for messages inserted into the room.
func (s *DBStore) SubscribeInsertions(roomID string, fn func(domain.Message)) (func(), error) {
	return s.broker.Subscribe(roomID, fn)
}
