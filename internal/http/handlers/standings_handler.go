// Standings HTTP handlers.
//
// Endpoints:
//   - GET /standings/drivers       (driver ranking with season stats)
//   - GET /standings/teams         (team ranking, aggregated)
//   - GET /standings/next          (upcoming race with schedule)
//   - GET /standings/season/{year} (full calendar for a season)
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// DriverStandings returns the current driver ranking.
func (h *Handlers) DriverStandings(c *gin.Context) {
	drivers, err := h.standings.Drivers(c.Request.Context())
	if err != nil {
		fail(c, http.StatusBadGateway, ErrCodeUpstreamUnavailable, "standings data unavailable")
		return
	}
	ok(c, http.StatusOK, gin.H{"drivers": drivers})
}

// TeamStandings returns the current team ranking.
func (h *Handlers) TeamStandings(c *gin.Context) {
	teams, err := h.standings.Teams(c.Request.Context())
	if err != nil {
		fail(c, http.StatusBadGateway, ErrCodeUpstreamUnavailable, "standings data unavailable")
		return
	}
	ok(c, http.StatusOK, gin.H{"teams": teams})
}

// NextRace returns the upcoming race; 404 when the season is over.
func (h *Handlers) NextRace(c *gin.Context) {
	race, err := h.standings.NextRace(c.Request.Context())
	if err != nil {
		fail(c, http.StatusBadGateway, ErrCodeUpstreamUnavailable, "race data unavailable")
		return
	}
	if race == nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "no upcoming race")
		return
	}
	ok(c, http.StatusOK, gin.H{"race": race})
}

// SeasonCalendar returns all rounds of the requested season.
func (h *Handlers) SeasonCalendar(c *gin.Context) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil || year < 1950 || year > 2100 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid season year")
		return
	}
	races, err := h.standings.Season(c.Request.Context(), year)
	if err != nil {
		fail(c, http.StatusBadGateway, ErrCodeUpstreamUnavailable, "calendar data unavailable")
		return
	}
	ok(c, http.StatusOK, gin.H{"season": year, "races": races})
}
