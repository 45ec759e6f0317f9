// Package store – Redis broker
//
// RedisBroker carries room messages across processes over Redis pub/sub,
// for deployments running more than one server instance. Messages are
// JSON-encoded on a per-room channel. Pub/sub is fire-and-forget, which
// matches the Broker contract: best-effort delivery, history covers gaps.
package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/racetowin/paddock-backend/internal/domain"
)

const roomChannelPrefix = "paddock:room:"

// RedisBroker is a Broker backed by Redis pub/sub.
type RedisBroker struct {
	rdb *redis.Client
	log zerolog.Logger

	mu     sync.Mutex
	subs   map[*redis.PubSub]struct{}
	closed bool
}

// NewRedisBroker connects a broker to the given Redis address and verifies
// the connection.
func NewRedisBroker(ctx context.Context, addr, password string, db int, log zerolog.Logger) (*RedisBroker, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return &RedisBroker{
		rdb:  rdb,
		log:  log,
		subs: make(map[*redis.PubSub]struct{}),
	}, nil
}

// Publish JSON-encodes m onto the room's channel.
func (b *RedisBroker) Publish(roomID string, m domain.Message) {
	payload, err := json.Marshal(m)
	if err != nil {
		b.log.Error().Err(err).Str("room", roomID).Msg("encode message for publish")
		return
	}
	if err := b.rdb.Publish(context.Background(), roomChannelPrefix+roomID, payload).Err(); err != nil {
		b.log.Warn().Err(err).Str("room", roomID).Msg("redis publish failed")
	}
}

// Subscribe listens on the room's channel and invokes fn for each decoded
// message. Returns a cancel function that stops the listener.
func (b *RedisBroker) Subscribe(roomID string, fn func(domain.Message)) (func(), error) {
	ps := b.rdb.Subscribe(context.Background(), roomChannelPrefix+roomID)
	// Force the subscription to be established before returning.
	if _, err := ps.Receive(context.Background()); err != nil {
		_ = ps.Close()
		return nil, err
	}

	b.mu.Lock()
	b.subs[ps] = struct{}{}
	b.mu.Unlock()

	go func() {
		for msg := range ps.Channel() {
			var m domain.Message
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				b.log.Warn().Err(err).Str("room", roomID).Msg("dropping undecodable payload")
				continue
			}
			fn(m)
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ps)
			b.mu.Unlock()
			_ = ps.Close()
		})
	}
	return cancel, nil
}

// Close stops every subscription and releases the client.
func (b *RedisBroker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := make([]*redis.PubSub, 0, len(b.subs))
	for ps := range b.subs {
		subs = append(subs, ps)
	}
	b.subs = make(map[*redis.PubSub]struct{})
	b.mu.Unlock()

	for _, ps := range subs {
		_ = ps.Close()
	}
	return b.rdb.Close()
}
