package standings

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

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New(config.StandingsConfig{BaseURL: srv.URL, Timeout: 5 * time.Second}, zerolog.Nop())
	return c, srv
}

func apiMux(requests *atomic.Int32) *http.ServeMux {
	mux := http.NewServeMux()
	count := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if requests != nil {
				requests.Add(1)
			}
			h(w, r)
		}
	}

	mux.HandleFunc("/current/drivers", count(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"drivers":[
			{"driverId":"max_verstappen","name":"Max","surname":"Verstappen","nationality":"Dutch","number":1},
			{"driverId":"norris","name":"Lando","surname":"Norris","nationality":"British","number":4}
		]}`))
	}))
	mux.HandleFunc("/current/drivers/max_verstappen", count(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"team":{"teamId":"red_bull","teamName":"Red Bull Racing"},"results":[
			{"result":{"finishingPosition":1,"gridPosition":1,"pointsObtained":25}},
			{"result":{"finishingPosition":2,"gridPosition":3,"pointsObtained":18},
			 "sprintResult":{"finishingPosition":1,"pointsObtained":8}}
		]}`))
	}))
	mux.HandleFunc("/current/drivers/norris", count(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"team":{"teamId":"mclaren","teamName":"McLaren"},"results":[
			{"result":{"finishingPosition":4,"gridPosition":2,"pointsObtained":12}}
		]}`))
	}))
	mux.HandleFunc("/current/teams", count(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"teams":[
			{"teamId":"mclaren","teamName":"McLaren"},
			{"teamId":"red_bull","teamName":"Red Bull Racing"}
		]}`))
	}))
	mux.HandleFunc("/current/next", count(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"race":[{"raceName":"Dutch Grand Prix",
			"circuit":{"circuitName":"Zandvoort","country":"Netherlands"},
			"schedule":{"race":{"date":"2026-09-06","time":"13:00:00Z"}}}]}`))
	}))
	mux.HandleFunc("/2026", count(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"races":[
			{"round":1,"raceName":"Australian Grand Prix",
			 "circuit":{"circuitName":"Albert Park","country":"Australia"},
			 "schedule":{"race":{"date":"2026-03-08"}}}
		]}`))
	}))
	return mux
}

func TestDrivers_RankedWithSeasonStats(t *testing.T) {
	c, _ := newTestClient(t, apiMux(nil))

	drivers, err := c.Drivers(context.Background())
	if err != nil {
		t.Fatalf("Drivers: %v", err)
	}
	if len(drivers) != 2 {
		t.Fatalf("got %d drivers, want 2", len(drivers))
	}

	top := drivers[0]
	if top.ID != "max_verstappen" {
		t.Fatalf("leader = %s, want max_verstappen", top.ID)
	}
	// 1 race win + 1 sprint win, 1 pole, 3 podiums (P1, P2, sprint P1),
	// 25+18+8 points.
	want := SeasonStats{Wins: 2, Poles: 1, Podiums: 3, Points: 51}
	if top.Stats != want {
		t.Fatalf("stats = %+v, want %+v", top.Stats, want)
	}
	if top.TeamName != "Red Bull Racing" {
		t.Fatalf("team = %q", top.TeamName)
	}

	if drivers[1].Stats.Points != 12 {
		t.Fatalf("second driver points = %v, want 12", drivers[1].Stats.Points)
	}
}

func TestDrivers_DetailFailureFallsBack(t *testing.T) {
	mux := apiMux(nil)
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/current/drivers/norris" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		mux.ServeHTTP(w, r)
	}))

	drivers, err := c.Drivers(context.Background())
	if err != nil {
		t.Fatalf("Drivers: %v", err)
	}
	if len(drivers) != 2 {
		t.Fatalf("got %d drivers, want 2", len(drivers))
	}
	var norris *Driver
	for i := range drivers {
		if drivers[i].ID == "norris" {
			norris = &drivers[i]
		}
	}
	if norris == nil {
		t.Fatal("norris missing from ranking")
	}
	if norris.Stats != (SeasonStats{}) || norris.TeamName != "" {
		t.Fatalf("failed detail should leave zero stats, got %+v", norris)
	}
}

func TestTeams_AggregatesDriverStats(t *testing.T) {
	c, _ := newTestClient(t, apiMux(nil))

	teams, err := c.Teams(context.Background())
	if err != nil {
		t.Fatalf("Teams: %v", err)
	}
	if len(teams) != 2 {
		t.Fatalf("got %d teams, want 2", len(teams))
	}
	if teams[0].ID != "red_bull" || teams[0].Stats.Points != 51 {
		t.Fatalf("leader = %+v, want red_bull with 51 points", teams[0])
	}
	if teams[1].ID != "mclaren" || teams[1].Stats.Points != 12 {
		t.Fatalf("second = %+v, want mclaren with 12 points", teams[1])
	}
}

func TestNextRace_ParsesSchedule(t *testing.T) {
	c, _ := newTestClient(t, apiMux(nil))

	race, err := c.NextRace(context.Background())
	if err != nil {
		t.Fatalf("NextRace: %v", err)
	}
	if race == nil {
		t.Fatal("race is nil")
	}
	if race.Name != "Dutch Grand Prix" || race.Country != "Netherlands" {
		t.Fatalf("race = %+v", race)
	}
	want := time.Date(2026, 9, 6, 13, 0, 0, 0, time.UTC)
	if !race.Date.Equal(want) {
		t.Fatalf("date = %v, want %v", race.Date, want)
	}
}

func TestSeason_DefaultsRaceTime(t *testing.T) {
	c, _ := newTestClient(t, apiMux(nil))

	races, err := c.Season(context.Background(), 2026)
	if err != nil {
		t.Fatalf("Season: %v", err)
	}
	if len(races) != 1 {
		t.Fatalf("got %d races, want 1", len(races))
	}
	want := time.Date(2026, 3, 8, 14, 0, 0, 0, time.UTC)
	if !races[0].Date.Equal(want) {
		t.Fatalf("date = %v, want 14:00 UTC default", races[0].Date)
	}
}

func TestGetJSON_CachesWithinTTL(t *testing.T) {
	var requests atomic.Int32
	c, _ := newTestClient(t, apiMux(&requests))

	base := time.Now()
	now := base
	c.now = func() time.Time { return now }

	if _, err := c.NextRace(context.Background()); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := c.NextRace(context.Background()); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if n := requests.Load(); n != 1 {
		t.Fatalf("made %d requests, want 1 (cached)", n)
	}

	now = base.Add(cacheTTL + time.Second)
	if _, err := c.NextRace(context.Background()); err != nil {
		t.Fatalf("post-expiry call: %v", err)
	}
	if n := requests.Load(); n != 2 {
		t.Fatalf("made %d requests, want 2 after TTL", n)
	}
}
