// Package chat – message rendering
//
// The Renderer turns a stored message plus its author's avatar entry into
// a display-ready unit: body HTML-escaped with bare URLs turned into safe
// anchors, timestamp formatted as hour:minute in the viewer's zone and
// locale, and the author's team resolved to a display label. Rendering is
// pure and idempotent; the same record always yields the same output.
package chat

import (
	"html"
	"regexp"
	"time"

	"golang.org/x/text/language"

	"github.com/racetowin/paddock-backend/internal/avatar"
	"github.com/racetowin/paddock-backend/internal/domain"
	"github.com/racetowin/paddock-backend/internal/rooms"
)

// Rendered is a single display-ready chat message.
type Rendered struct {
	MessageID  string       `json:"message_id"`
	AuthorID   string       `json:"author_id"`
	AuthorName string       `json:"author_name"`
	TeamLabel  string       `json:"team_label,omitempty"`
	Avatar     avatar.Entry `json:"avatar"`
	BodyHTML   string       `json:"body_html"`
	Timestamp  string       `json:"timestamp"`
	Own        bool         `json:"own"`
}

// Renderer formats messages for one viewer.
type Renderer struct {
	viewerID string
	loc      *time.Location
	layout   string
}

// NewRenderer builds a Renderer for the given viewer. The language tag
// selects a 12h or 24h clock; loc may be nil for the server's zone.
func NewRenderer(viewerID string, tag language.Tag, loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.Local
	}
	return &Renderer{
		viewerID: viewerID,
		loc:      loc,
		layout:   clockLayout(tag),
	}
}

// clockMatcher resolves a viewer's Accept-Language against the locales
// the UI ships. French first: it is the default and uses a 24h clock.
var clockMatcher = language.NewMatcher([]language.Tag{
	language.French,
	language.German,
	language.Spanish,
	language.AmericanEnglish,
	language.BritishEnglish,
})

func clockLayout(tag language.Tag) string {
	matched, _, conf := clockMatcher.Match(tag)
	if conf == language.No {
		return "15:04"
	}
	base, _ := matched.Base()
	if base.String() == "en" {
		return "3:04 PM"
	}
	return "15:04"
}

// urlPattern matches bare http(s) URLs in already-escaped text.
var urlPattern = regexp.MustCompile(`https?://[^\s]+`)

// Render produces the display unit for m as seen by this viewer.
func (r *Renderer) Render(m domain.Message, av avatar.Entry) Rendered {
	return Rendered{
		MessageID:  m.ID,
		AuthorID:   m.UserID,
		AuthorName: html.EscapeString(m.UserName),
		TeamLabel:  rooms.TeamName(m.UserTeam),
		Avatar:     av,
		BodyHTML:   formatBody(m.Content),
		Timestamp:  m.CreatedAt.In(r.loc).Format(r.layout),
		Own:        m.UserID == r.viewerID,
	}
}

// formatBody escapes the raw content and then linkifies URLs, in that
// order, so markup in the message body can never reach the page while
// links still open in a new tab without an opener reference.
func formatBody(content string) string {
	escaped := html.EscapeString(content)
	return urlPattern.ReplaceAllString(escaped, `<a href="${0}" target="_blank" rel="noopener">${0}</a>`)
}
