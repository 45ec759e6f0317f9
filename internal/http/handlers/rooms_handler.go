// Room HTTP handlers.
//
// Endpoints:
//   - GET  /rooms                  (directory with per-user access flags)
//   - GET  /rooms/{id}/messages    (recent history, oldest first)
//   - POST /rooms/{id}/messages    (send without a live session)
//
// History is served raw; rendering (escaping, linkification, locale
// timestamps) happens in the realtime session, which owns the viewer
// context.
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/racetowin/paddock-backend/internal/domain"
	"github.com/racetowin/paddock-backend/internal/http/middleware"
	"github.com/racetowin/paddock-backend/internal/rooms"
)

// RoomView is one entry of the room directory as seen by the caller.
type RoomView struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AccentColor string `json:"accent_color"`
	TeamOnly    bool   `json:"team_only"`
	CanJoin     bool   `json:"can_join"`
}

// currentUser resolves the authenticated user, or nil for anonymous
// callers and callers without a profile row yet.
func (h *Handlers) currentUser(c *gin.Context) *domain.User {
	email := middleware.IdentityFrom(c)
	if email == "" {
		return nil
	}
	u, err := h.users.Get(c.Request.Context(), email)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("user lookup failed")
		}
		return nil
	}
	return u
}

// ListRooms returns the room directory with a per-user can_join flag.
func (h *Handlers) ListRooms(c *gin.Context) {
	u := h.currentUser(c)
	all := rooms.All()
	views := make([]RoomView, 0, len(all))
	for _, r := range all {
		views = append(views, RoomView{
			ID:          r.ID,
			DisplayName: r.DisplayName,
			AccentColor: r.AccentColor,
			TeamOnly:    r.TeamOnly,
			CanJoin:     rooms.CanJoin(r, u),
		})
	}
	ok(c, http.StatusOK, gin.H{"rooms": views})
}

// ListRoomMessages returns the most recent messages of a room, oldest
// first, subject to the same access policy as joining the room.
func (h *Handlers) ListRoomMessages(c *gin.Context) {
	roomID := c.Param("id")
	room, found := rooms.Lookup(roomID)
	if !found {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "room not found")
		return
	}
	if !rooms.CanJoin(room, h.currentUser(c)) {
		fail(c, http.StatusForbidden, ErrCodeForbidden, "room reserved for premium members and team fans")
		return
	}

	limit := h.cfg.Chat.HistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "limit must be a positive integer")
			return
		}
		if n < limit {
			limit = n
		}
	}

	msgs, err := h.store.ListRecent(c.Request.Context(), roomID, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load messages")
		return
	}
	ok(c, http.StatusOK, gin.H{"room": roomID, "messages": msgs})
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

// SendRoomMessage persists a message outside a live session. Connected
// sessions receive it through the insertion feed like any other message;
// the caller's own sockets render it as an echo.
func (h *Handlers) SendRoomMessage(c *gin.Context) {
	roomID := c.Param("id")
	room, found := rooms.Lookup(roomID)
	if !found {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "room not found")
		return
	}

	u := h.currentUser(c)
	if u == nil {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "sending requires a profile")
		return
	}
	if !rooms.CanJoin(room, u) {
		fail(c, http.StatusForbidden, ErrCodeForbidden, "room reserved for premium members and team fans")
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "malformed message payload")
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message is empty")
		return
	}
	if utf8.RuneCountInString(content) > h.cfg.Chat.MaxMsgRunes {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message too long")
		return
	}

	m := &domain.Message{
		ID:        uuid.NewString(),
		UserID:    u.Email,
		UserName:  u.DisplayName(),
		UserTeam:  u.FavoriteTeam,
		RoomID:    roomID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.store.Insert(c.Request.Context(), m); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not send message")
		return
	}
	ok(c, http.StatusCreated, m)
}
