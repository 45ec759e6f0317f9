// News HTTP handler.
//
// GET /news returns the latest F1 headlines from the upstream feed cache.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListNews returns the most recent news items, newest first.
func (h *Handlers) ListNews(c *gin.Context) {
	items, err := h.news.Latest(c.Request.Context())
	if err != nil {
		fail(c, http.StatusBadGateway, ErrCodeUpstreamUnavailable, "news feed unavailable")
		return
	}
	ok(c, http.StatusOK, gin.H{"items": items})
}
