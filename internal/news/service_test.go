package news

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/racetowin/paddock-backend/internal/config"
)

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>F1 News</title>
    <item>
      <title>  Verstappen takes pole at Zandvoort </title>
      <link>https://example.com/news/1</link>
      <description>Home hero on top again.</description>
      <pubDate>Sat, 05 Sep 2026 16:00:00 GMT</pubDate>
      <enclosure url="https://example.com/img/1.jpg" type="image/jpeg" length="1024"/>
    </item>
    <item>
      <title>McLaren confirm upgrade package</title>
      <link>https://example.com/news/2</link>
      <description>New floor for the final stretch.</description>
      <pubDate>Sat, 05 Sep 2026 12:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Third headline</title>
      <link>https://example.com/news/3</link>
      <pubDate>Fri, 04 Sep 2026 09:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

func newTestService(t *testing.T, handler http.Handler, maxItems int) (*Service, *atomic.Int32) {
	t.Helper()
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	s := New(config.NewsConfig{FeedURL: srv.URL, CacheTTL: 5 * time.Minute, MaxItems: maxItems}, zerolog.Nop())
	return s, &requests
}

func serveFeed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/rss+xml")
	w.Write([]byte(feedXML))
}

func TestLatest_ParsesAndNormalizes(t *testing.T) {
	s, _ := newTestService(t, http.HandlerFunc(serveFeed), 20)

	items, err := s.Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}

	first := items[0]
	if first.Title != "Verstappen takes pole at Zandvoort" {
		t.Fatalf("title not trimmed: %q", first.Title)
	}
	if first.Image != "https://example.com/img/1.jpg" {
		t.Fatalf("image = %q, want enclosure URL", first.Image)
	}
	want := time.Date(2026, 9, 5, 16, 0, 0, 0, time.UTC)
	if !first.PublishedAt.Equal(want) {
		t.Fatalf("published = %v, want %v", first.PublishedAt, want)
	}
}

func TestLatest_CapsItemCount(t *testing.T) {
	s, _ := newTestService(t, http.HandlerFunc(serveFeed), 2)

	items, err := s.Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want cap of 2", len(items))
	}
}

func TestLatest_ServesFromCacheWithinTTL(t *testing.T) {
	s, requests := newTestService(t, http.HandlerFunc(serveFeed), 20)

	base := time.Now()
	now := base
	s.now = func() time.Time { return now }

	if _, err := s.Latest(context.Background()); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := s.Latest(context.Background()); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if n := requests.Load(); n != 1 {
		t.Fatalf("made %d upstream requests, want 1", n)
	}

	now = base.Add(6 * time.Minute)
	if _, err := s.Latest(context.Background()); err != nil {
		t.Fatalf("post-expiry call: %v", err)
	}
	if n := requests.Load(); n != 2 {
		t.Fatalf("made %d upstream requests, want 2 after TTL", n)
	}
}

func TestLatest_ServesStaleOnUpstreamFailure(t *testing.T) {
	var failing atomic.Bool
	s, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		serveFeed(w, r)
	}), 20)

	base := time.Now()
	now := base
	s.now = func() time.Time { return now }

	fresh, err := s.Latest(context.Background())
	if err != nil {
		t.Fatalf("warm-up call: %v", err)
	}

	failing.Store(true)
	now = base.Add(10 * time.Minute)

	stale, err := s.Latest(context.Background())
	if err != nil {
		t.Fatalf("stale call should not error: %v", err)
	}
	if len(stale) != len(fresh) {
		t.Fatalf("stale cache lost items: %d vs %d", len(stale), len(fresh))
	}
}

func TestLatest_ErrorsWithNoCache(t *testing.T) {
	s, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}), 20)

	if _, err := s.Latest(context.Background()); err == nil {
		t.Fatal("expected an error when upstream is down and nothing is cached")
	}
}
