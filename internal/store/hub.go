// Package store – in-process broker
//
// HubBroker is the single-node Broker: a per-room registry of subscriber
// channels, each drained by its own goroutine so one slow session cannot
// stall the publisher or its peers. A subscriber whose buffer is full
// simply misses the message; history reload covers the gap.
package store

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/racetowin/paddock-backend/internal/domain"
)

const hubBufferSize = 64

var hubDropped = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "paddock_hub_messages_dropped_total",
		Help: "Messages skipped because a subscriber buffer was full.",
	},
)

func init() {
	prometheus.MustRegister(hubDropped)
}

type hubSub struct {
	ch   chan domain.Message
	done chan struct{}
}

// HubBroker delivers messages between sessions of one process.
type HubBroker struct {
	mu     sync.RWMutex
	nextID uint64
	rooms  map[string]map[uint64]*hubSub
	closed bool
}

// NewHubBroker returns an empty in-process broker.
func NewHubBroker() *HubBroker {
	return &HubBroker{rooms: make(map[string]map[uint64]*hubSub)}
}

// Publish delivers m to every current subscriber of the room. Subscribers
// whose buffers are full are skipped.
func (h *HubBroker) Publish(roomID string, m domain.Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.rooms[roomID] {
		select {
		case sub.ch <- m:
		default:
			hubDropped.Inc()
		}
	}
}

// Subscribe registers fn for the room and returns a cancel function.
// Cancelling is idempotent and stops deliveries promptly, though a
// callback already in flight may still complete.
func (h *HubBroker) Subscribe(roomID string, fn func(domain.Message)) (func(), error) {
	sub := &hubSub{
		ch:   make(chan domain.Message, hubBufferSize),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[uint64]*hubSub)
	}
	id := h.nextID
	h.nextID++
	h.rooms[roomID][id] = sub
	h.mu.Unlock()

	go func() {
		for {
			select {
			case m := <-sub.ch:
				fn(m)
			case <-sub.done:
				return
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.rooms[roomID], id)
			h.mu.Unlock()
			close(sub.done)
		})
	}
	return cancel, nil
}

// Close cancels every subscription.
func (h *HubBroker) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	for _, subs := range h.rooms {
		for _, sub := range subs {
			close(sub.done)
		}
	}
	h.rooms = make(map[string]map[uint64]*hubSub)
	return nil
}
