// Package standings – F1 season data client
//
// Client wraps the public f1api.dev REST API: current driver and team
// rankings with per-season stats, the season calendar, and the next race.
// Responses are cached in memory for a short TTL since race data changes
// at most a few times per weekend. Per-driver detail fetches are fanned
// out with a bounded errgroup; a single driver failing to resolve falls
// back to zeroed stats instead of failing the whole ranking.
package standings

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/racetowin/paddock-backend/internal/config"
)

const (
	cacheTTL       = 5 * time.Minute
	detailParallel = 4
)

// SeasonStats aggregates a competitor's results over the current season.
// Sprint results count toward wins, podiums and points but not poles.
type SeasonStats struct {
	Wins    int     `json:"wins"`
	Poles   int     `json:"poles"`
	Podiums int     `json:"podiums"`
	Points  float64 `json:"points"`
}

func (s *SeasonStats) add(o SeasonStats) {
	s.Wins += o.Wins
	s.Poles += o.Poles
	s.Podiums += o.Podiums
	s.Points += o.Points
}

// Driver is one entry in the driver ranking.
type Driver struct {
	ID          string      `json:"driver_id"`
	Name        string      `json:"name"`
	Surname     string      `json:"surname"`
	Nationality string      `json:"nationality,omitempty"`
	Number      int         `json:"number,omitempty"`
	TeamID      string      `json:"team_id,omitempty"`
	TeamName    string      `json:"team_name"`
	Stats       SeasonStats `json:"stats"`
}

// Team is one entry in the team ranking. Stats are the sum of the team's
// drivers.
type Team struct {
	ID    string      `json:"team_id"`
	Name  string      `json:"team_name"`
	Stats SeasonStats `json:"stats"`
}

// Race is one round of a season calendar.
type Race struct {
	Round       int       `json:"round"`
	Name        string    `json:"name"`
	CircuitName string    `json:"circuit_name,omitempty"`
	Country     string    `json:"country,omitempty"`
	Date        time.Time `json:"date"`
}

// Client talks to f1api.dev.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
	now     func() time.Time

	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	body []byte
	at   time.Time
}

// New constructs a Client from configuration.
func New(cfg config.StandingsConfig, log zerolog.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		log:     log,
		now:     time.Now,
		cache:   make(map[string]cacheEntry),
	}
}

// getJSON fetches path (relative to the base URL) and decodes into out,
// serving from the TTL cache when fresh.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	c.mu.Lock()
	if e, ok := c.cache[path]; ok && c.now().Sub(e.at) < cacheTTL {
		c.mu.Unlock()
		return json.Unmarshal(e.body, out)
	}
	c.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: unexpected status %d", path, resp.StatusCode)
	}

	const maxBody = 4 << 20
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	c.mu.Lock()
	c.cache[path] = cacheEntry{body: body, at: c.now()}
	c.mu.Unlock()
	return nil
}

// ----- Wire types -----

type driverListResponse struct {
	Drivers []struct {
		DriverID    string `json:"driverId"`
		Name        string `json:"name"`
		Surname     string `json:"surname"`
		Nationality string `json:"nationality"`
		Number      int    `json:"number"`
	} `json:"drivers"`
}

type raceOutcome struct {
	FinishingPosition int     `json:"finishingPosition"`
	GridPosition      int     `json:"gridPosition"`
	PointsObtained    float64 `json:"pointsObtained"`
}

type driverDetailResponse struct {
	Team *struct {
		TeamID   string `json:"teamId"`
		TeamName string `json:"teamName"`
	} `json:"team"`
	Results []struct {
		Result       *raceOutcome `json:"result"`
		SprintResult *raceOutcome `json:"sprintResult"`
	} `json:"results"`
}

type teamListResponse struct {
	Teams []struct {
		TeamID   string `json:"teamId"`
		TeamName string `json:"teamName"`
	} `json:"teams"`
}

type seasonResponse struct {
	Races []struct {
		Round    int    `json:"round"`
		RaceName string `json:"raceName"`
		Circuit  *struct {
			CircuitName string `json:"circuitName"`
			Country     string `json:"country"`
		} `json:"circuit"`
		Schedule *struct {
			Race *struct {
				Date string `json:"date"`
				Time string `json:"time"`
			} `json:"race"`
		} `json:"schedule"`
	} `json:"races"`
}

type nextRaceResponse struct {
	Race []struct {
		RaceName string `json:"raceName"`
		Circuit  *struct {
			CircuitName string `json:"circuitName"`
			Country     string `json:"country"`
		} `json:"circuit"`
		Schedule *struct {
			Race *struct {
				Date string `json:"date"`
				Time string `json:"time"`
			} `json:"race"`
		} `json:"schedule"`
	} `json:"race"`
}

// ----- Operations -----

// Drivers returns the current season's driver ranking, sorted by points
// descending. Detail lookups that fail leave the driver in place with
// zeroed stats.
func (c *Client) Drivers(ctx context.Context) ([]Driver, error) {
	var list driverListResponse
	if err := c.getJSON(ctx, "/current/drivers", &list); err != nil {
		return nil, err
	}

	out := make([]Driver, len(list.Drivers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(detailParallel)
	for i, d := range list.Drivers {
		out[i] = Driver{
			ID:          d.DriverID,
			Name:        d.Name,
			Surname:     d.Surname,
			Nationality: d.Nationality,
			Number:      d.Number,
		}
		i := i
		g.Go(func() error {
			var detail driverDetailResponse
			if err := c.getJSON(gctx, "/current/drivers/"+out[i].ID, &detail); err != nil {
				c.log.Warn().Err(err).Str("driver", out[i].ID).Msg("driver detail unavailable")
				return nil
			}
			if detail.Team != nil {
				out[i].TeamID = detail.Team.TeamID
				out[i].TeamName = detail.Team.TeamName
			}
			out[i].Stats = tallyStats(detail)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(a, b int) bool { return out[a].Stats.Points > out[b].Stats.Points })
	return out, nil
}

func tallyStats(detail driverDetailResponse) SeasonStats {
	var s SeasonStats
	for _, r := range detail.Results {
		if res := r.Result; res != nil {
			if res.FinishingPosition == 1 {
				s.Wins++
			}
			if res.GridPosition == 1 {
				s.Poles++
			}
			if res.FinishingPosition >= 1 && res.FinishingPosition <= 3 {
				s.Podiums++
			}
			s.Points += res.PointsObtained
		}
		if spr := r.SprintResult; spr != nil {
			if spr.FinishingPosition == 1 {
				s.Wins++
			}
			if spr.FinishingPosition >= 1 && spr.FinishingPosition <= 3 {
				s.Podiums++
			}
			s.Points += spr.PointsObtained
		}
	}
	return s
}

// Teams returns the current season's team ranking, stats aggregated from
// the drivers, sorted by points descending.
func (c *Client) Teams(ctx context.Context) ([]Team, error) {
	var list teamListResponse
	if err := c.getJSON(ctx, "/current/teams", &list); err != nil {
		return nil, err
	}
	drivers, err := c.Drivers(ctx)
	if err != nil {
		return nil, err
	}

	byTeam := make(map[string]SeasonStats)
	for _, d := range drivers {
		if d.TeamID == "" {
			continue
		}
		s := byTeam[d.TeamID]
		s.add(d.Stats)
		byTeam[d.TeamID] = s
	}

	out := make([]Team, 0, len(list.Teams))
	for _, tm := range list.Teams {
		out = append(out, Team{ID: tm.TeamID, Name: tm.TeamName, Stats: byTeam[tm.TeamID]})
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Stats.Points > out[b].Stats.Points })
	return out, nil
}

// Season returns the calendar for the given year.
func (c *Client) Season(ctx context.Context, year int) ([]Race, error) {
	var season seasonResponse
	if err := c.getJSON(ctx, fmt.Sprintf("/%d", year), &season); err != nil {
		return nil, err
	}
	out := make([]Race, 0, len(season.Races))
	for _, r := range season.Races {
		race := Race{Round: r.Round, Name: r.RaceName}
		if r.Circuit != nil {
			race.CircuitName = r.Circuit.CircuitName
			race.Country = r.Circuit.Country
		}
		if r.Schedule != nil && r.Schedule.Race != nil {
			race.Date = parseRaceTime(r.Schedule.Race.Date, r.Schedule.Race.Time)
		}
		out = append(out, race)
	}
	return out, nil
}

// NextRace returns the upcoming round, or nil when the season is over.
func (c *Client) NextRace(ctx context.Context) (*Race, error) {
	var next nextRaceResponse
	if err := c.getJSON(ctx, "/current/next", &next); err != nil {
		return nil, err
	}
	if len(next.Race) == 0 {
		return nil, nil
	}
	r := next.Race[0]
	race := &Race{Name: r.RaceName}
	if r.Circuit != nil {
		race.CircuitName = r.Circuit.CircuitName
		race.Country = r.Circuit.Country
	}
	if r.Schedule != nil && r.Schedule.Race != nil {
		race.Date = parseRaceTime(r.Schedule.Race.Date, r.Schedule.Race.Time)
	}
	return race, nil
}

// parseRaceTime combines the API's split date and time fields. A missing
// time defaults to 14:00 UTC, the traditional lights-out hour.
func parseRaceTime(date, clock string) time.Time {
	if date == "" {
		return time.Time{}
	}
	if clock == "" {
		clock = "14:00:00Z"
	}
	t, err := time.Parse(time.RFC3339, date+"T"+clock)
	if err != nil {
		if d, derr := time.Parse("2006-01-02", date); derr == nil {
			return d
		}
		return time.Time{}
	}
	return t
}
