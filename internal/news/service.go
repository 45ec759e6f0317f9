// Package news – F1 news feed
//
// Service fetches the upstream RSS feed, normalizes entries, and serves
// them from a TTL cache. Refreshes are coalesced with singleflight so a
// burst of clients on an expired cache triggers one upstream fetch. When
// the upstream is down, a stale cache is served instead of an error.
package news

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/racetowin/paddock-backend/internal/config"
)

// Item is one normalized news entry.
type Item struct {
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Description string    `json:"description,omitempty"`
	Image       string    `json:"image,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// Service serves cached F1 news.
type Service struct {
	feedURL  string
	ttl      time.Duration
	maxItems int
	parser   *gofeed.Parser
	log      zerolog.Logger
	now      func() time.Time

	flight singleflight.Group

	mu        sync.Mutex
	cached    []Item
	fetchedAt time.Time
}

// New constructs a Service from configuration.
func New(cfg config.NewsConfig, log zerolog.Logger) *Service {
	return &Service{
		feedURL:  cfg.FeedURL,
		ttl:      cfg.CacheTTL,
		maxItems: cfg.MaxItems,
		parser:   gofeed.NewParser(),
		log:      log,
		now:      time.Now,
	}
}

// Latest returns the most recent news items, newest first. A fresh cache
// is served directly; otherwise one coalesced upstream fetch runs, and on
// failure any stale cache is served in its place.
func (s *Service) Latest(ctx context.Context) ([]Item, error) {
	s.mu.Lock()
	if s.cached != nil && s.now().Sub(s.fetchedAt) < s.ttl {
		items := s.cached
		s.mu.Unlock()
		return items, nil
	}
	s.mu.Unlock()

	got, err, _ := s.flight.Do("feed", func() (any, error) {
		feed, err := s.parser.ParseURLWithContext(s.feedURL, ctx)
		if err != nil {
			return nil, err
		}
		items := s.normalize(feed)
		s.mu.Lock()
		s.cached = items
		s.fetchedAt = s.now()
		s.mu.Unlock()
		return items, nil
	})
	if err != nil {
		s.mu.Lock()
		stale := s.cached
		s.mu.Unlock()
		if stale != nil {
			s.log.Warn().Err(err).Msg("feed refresh failed, serving stale cache")
			return stale, nil
		}
		return nil, err
	}
	return got.([]Item), nil
}

func (s *Service) normalize(feed *gofeed.Feed) []Item {
	items := make([]Item, 0, len(feed.Items))
	for _, it := range feed.Items {
		if it == nil || it.Title == "" {
			continue
		}
		item := Item{
			Title:       strings.TrimSpace(it.Title),
			Link:        it.Link,
			Description: strings.TrimSpace(it.Description),
		}
		if it.PublishedParsed != nil {
			item.PublishedAt = it.PublishedParsed.UTC()
		}
		if it.Image != nil {
			item.Image = it.Image.URL
		} else {
			for _, enc := range it.Enclosures {
				if enc != nil && strings.HasPrefix(enc.Type, "image/") {
					item.Image = enc.URL
					break
				}
			}
		}
		items = append(items, item)
		if s.maxItems > 0 && len(items) >= s.maxItems {
			break
		}
	}
	return items
}
