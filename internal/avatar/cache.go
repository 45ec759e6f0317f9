// Package avatar resolves user identifiers to display metadata (initial
// letter, optional profile image, team accent color) with memoization.
//
// The cache guarantees at most one in-flight profile lookup per user at a
// time: concurrent misses for the same key are coalesced onto a single
// fetch via singleflight. A lookup failure degrades to a safe default and
// is deliberately not cached, so a later call can retry.
package avatar

import (
	"context"
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/racetowin/paddock-backend/internal/rooms"
)

// ErrProfileNotFound is returned by a ProfileSource when no profile row
// exists for the user. Unlike transient lookup failures, a missing profile
// is a definitive answer and its default entry is cached.
var ErrProfileNotFound = errors.New("profile not found")

// Profile is the raw answer of the User Profile collaborator.
type Profile struct {
	Initial string // single uppercase letter
	Image   string // data URI or URL; empty when none
	Team    string // team identifier; empty when unaffiliated
}

// ProfileSource fetches profile data for avatar resolution.
type ProfileSource interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
}

// Entry is fully-resolved avatar presentation data. Entries are immutable
// values: a cache slot either holds a complete Entry or nothing.
type Entry struct {
	Initial   string `json:"initial"`
	Image     string `json:"image,omitempty"`
	TeamColor string `json:"team_color"`
}

// Default returns the presentation used when no profile data is available:
// generic initial, no image, neutral color.
func Default() Entry {
	return Entry{Initial: "U", TeamColor: rooms.NeutralColor()}
}

// Refresher receives avatar updates for users whose entries changed after
// they were already rendered (profile edits, late successful resolutions).
type Refresher interface {
	RefreshAvatar(userID string, e Entry)
}

var (
	cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "paddock_avatar_cache_hits_total",
		Help: "Avatar resolutions answered from cache.",
	})
	cacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "paddock_avatar_cache_misses_total",
		Help: "Avatar resolutions that required a profile fetch.",
	})
)

func init() {
	prometheus.MustRegister(cacheHits, cacheMisses)
}

// Cache memoizes avatar entries per user identifier.
// It is safe for concurrent use.
type Cache struct {
	source ProfileSource

	mu         sync.Mutex
	entries    map[string]Entry
	gen        uint64 // bumped by Clear so stale in-flight results are dropped
	refreshers []Refresher

	flight singleflight.Group
}

// New constructs a Cache over the given profile source.
func New(source ProfileSource) *Cache {
	return &Cache{
		source:  source,
		entries: make(map[string]Entry),
	}
}

// Resolve returns the avatar entry for userID.
//
// Cached entries are returned immediately. On a miss, exactly one profile
// fetch runs regardless of how many callers are waiting; all of them get
// the same result. A transient fetch failure yields the default entry
// without caching it. A successful late resolution is pushed to registered
// refreshers so avatars already rendered with the default get updated.
func (c *Cache) Resolve(ctx context.Context, userID string) Entry {
	c.mu.Lock()
	if e, ok := c.entries[userID]; ok {
		c.mu.Unlock()
		cacheHits.Inc()
		return e
	}
	c.mu.Unlock()
	cacheMisses.Inc()

	// The store happens inside the flight so a caller arriving after the
	// fetch completes can never observe an empty cache and start a second
	// fetch for a key that was just resolved.
	v, err, _ := c.flight.Do(userID, func() (any, error) {
		c.mu.Lock()
		gen := c.gen
		c.mu.Unlock()

		p, err := c.source.GetProfile(ctx, userID)
		if err != nil {
			if errors.Is(err, ErrProfileNotFound) {
				// Definitive miss: cache the default so we stop asking.
				e := Default()
				c.storeAndNotify(userID, e, gen)
				return e, nil
			}
			return nil, err
		}
		e := entryFromProfile(p)
		c.storeAndNotify(userID, e, gen)
		return e, nil
	})

	if err != nil {
		return Default()
	}
	return v.(Entry)
}

// Invalidate overwrites the entry for userID and propagates the change to
// every registered refresher. Used when the user edits their own profile.
func (c *Cache) Invalidate(userID string, e Entry) {
	c.mu.Lock()
	c.entries[userID] = e
	refreshers := append([]Refresher(nil), c.refreshers...)
	c.mu.Unlock()

	for _, r := range refreshers {
		r.RefreshAvatar(userID, e)
	}
}

// Clear drops all entries and in-flight markers. Results of lookups started
// before Clear are discarded rather than cached. Used at session teardown.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]Entry)
	c.gen++
	c.mu.Unlock()
}

// Register subscribes a refresher to avatar updates and returns its
// unsubscribe function.
func (c *Cache) Register(r Refresher) func() {
	c.mu.Lock()
	c.refreshers = append(c.refreshers, r)
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, cur := range c.refreshers {
			if cur == r {
				c.refreshers = append(c.refreshers[:i], c.refreshers[i+1:]...)
				return
			}
		}
	}
}

// storeAndNotify caches the entry unless the cache was cleared since the
// lookup began, then pushes the entry to refreshers.
func (c *Cache) storeAndNotify(userID string, e Entry, gen uint64) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.entries[userID] = e
	refreshers := append([]Refresher(nil), c.refreshers...)
	c.mu.Unlock()

	for _, r := range refreshers {
		r.RefreshAvatar(userID, e)
	}
}

func entryFromProfile(p *Profile) Entry {
	e := Entry{
		Initial:   p.Initial,
		Image:     p.Image,
		TeamColor: rooms.TeamColor(p.Team),
	}
	if e.Initial == "" {
		e.Initial = "U"
	}
	return e
}
