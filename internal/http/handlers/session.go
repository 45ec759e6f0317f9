// Realtime chat session over WebSocket.
//
// GET /ws upgrades the connection and starts a session. The client drives
// the session with JSON frames:
//
//	{"type":"join","room":"ferrari"}
//	{"type":"send","content":"Forza!"}
//	{"type":"leave"}
//
// The server pushes frames for rendered messages, room switches, avatar
// refreshes, composer state, notification cues, and errors. Each
// connection owns one chat.Manager; the session type is the manager's
// Sink, translating pipeline side effects into outbound frames. Outbound
// delivery uses a buffered channel drained by a write pump so a slow
// client cannot stall the pipeline; frames beyond the buffer are dropped.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/text/language"

	"github.com/racetowin/paddock-backend/internal/avatar"
	"github.com/racetowin/paddock-backend/internal/chat"
	"github.com/racetowin/paddock-backend/internal/http/middleware"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = 54 * time.Second
	maxFrameSize = 8 << 10
	sendBuffer   = 256
)

type inboundFrame struct {
	Type    string `json:"type"`
	Room    string `json:"room,omitempty"`
	Content string `json:"content,omitempty"`
}

type outboundFrame struct {
	Type    string         `json:"type"`
	Room    string         `json:"room,omitempty"`
	Message *chat.Rendered `json:"message,omitempty"`
	UserID  string         `json:"user_id,omitempty"`
	Avatar  *avatar.Entry  `json:"avatar,omitempty"`
	Enabled *bool          `json:"enabled,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// session is one live WebSocket connection. It implements chat.Sink.
type session struct {
	conn *websocket.Conn
	send chan outboundFrame
	done chan struct{}
	once sync.Once
	log  zerolog.Logger
}

func newSession(conn *websocket.Conn, log zerolog.Logger) *session {
	return &session{
		conn: conn,
		send: make(chan outboundFrame, sendBuffer),
		done: make(chan struct{}),
		log:  log,
	}
}

// enqueue queues a frame for delivery, dropping it when the buffer is full
// or the session is shutting down.
func (s *session) enqueue(f outboundFrame) {
	select {
	case <-s.done:
	case s.send <- f:
	default:
		s.log.Debug().Str("frame", f.Type).Msg("outbound buffer full, dropping frame")
	}
}

func (s *session) close() {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// ----- chat.Sink -----

func (s *session) Append(m chat.Rendered) {
	s.enqueue(outboundFrame{Type: "message", Message: &m})
}

func (s *session) Clear() {
	s.enqueue(outboundFrame{Type: "clear"})
}

func (s *session) RefreshAvatar(userID string, av avatar.Entry) {
	s.enqueue(outboundFrame{Type: "avatar", UserID: userID, Avatar: &av})
}

func (s *session) SetComposerEnabled(enabled bool) {
	s.enqueue(outboundFrame{Type: "composer", Enabled: &enabled})
}

func (s *session) ClearComposer() {
	s.enqueue(outboundFrame{Type: "composer_clear"})
}

func (s *session) ShowError(msg string) {
	s.enqueue(outboundFrame{Type: "error", Error: msg})
}

// ----- Pumps -----

func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.close()
	}()

	for {
		select {
		case <-s.done:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case f := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(f); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *session) readPump(m *chat.Manager) {
	defer func() {
		m.Close()
		s.close()
	}()

	s.conn.SetReadLimit(maxFrameSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var f inboundFrame
		if err := s.conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn().Err(err).Msg("websocket read failed")
			}
			return
		}

		switch f.Type {
		case "join":
			if err := m.JoinRoom(context.Background(), f.Room); err != nil {
				s.enqueue(outboundFrame{Type: "error", Room: f.Room, Error: userMessage(err)})
				continue
			}
			s.enqueue(outboundFrame{Type: "joined", Room: f.Room})
		case "leave":
			m.LeaveRoom()
			s.enqueue(outboundFrame{Type: "left"})
		case "send":
			if err := m.SendMessage(context.Background(), f.Content); err != nil && !errors.Is(err, chat.ErrSendFailed) {
				// Store failures were already surfaced through the sink.
				s.enqueue(outboundFrame{Type: "error", Error: userMessage(err)})
			}
		default:
			s.enqueue(outboundFrame{Type: "error", Error: "unknown frame type"})
		}
	}
}

// userMessage maps pipeline errors to copy safe to show in the client.
func userMessage(err error) string {
	switch {
	case errors.Is(err, chat.ErrRoomNotFound):
		return "That room does not exist."
	case errors.Is(err, chat.ErrRoomForbidden):
		return "This room is reserved for premium members and team fans."
	case errors.Is(err, chat.ErrNotAuthenticated):
		return "Sign in to send messages."
	case errors.Is(err, chat.ErrNoRoomJoined):
		return "Join a room first."
	case errors.Is(err, chat.ErrEmptyMessage):
		return "Message is empty."
	case errors.Is(err, chat.ErrMessageTooLong):
		return "Message is too long."
	default:
		return "Something went wrong. Please try again."
	}
}

// ----- HTTP entry point -----

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4 << 10,
	WriteBufferSize: 4 << 10,
	// Cross-origin policy is enforced by the CORS layer and the shared
	// token requirement; the handshake accepts any Origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ChatSocket upgrades the request and runs a chat session until the client
// disconnects. Anonymous connections may join open rooms read-only;
// sending requires authentication.
func (h *Handlers) ChatSocket(c *gin.Context) {
	user := h.currentUser(c)

	tag := language.French
	if tags, _, err := language.ParseAcceptLanguage(c.GetHeader("Accept-Language")); err == nil && len(tags) > 0 {
		tag = tags[0]
	}
	loc := time.UTC
	if tz := c.Query("tz"); tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the handshake error.
		return
	}

	lg := h.log.With().Str("component", "ws").Str("user", middleware.IdentityFrom(c)).Logger()
	s := newSession(conn, lg)

	viewerID := ""
	if user != nil {
		viewerID = user.Email
	}
	m := chat.NewManager(chat.ManagerConfig{
		Store:           h.store,
		Avatars:         h.avatars,
		Sink:            s,
		Renderer:        chat.NewRenderer(viewerID, tag, loc),
		Log:             lg,
		User:            user,
		Notify:          func() { s.enqueue(outboundFrame{Type: "notify"}) },
		HistoryLimit:    h.cfg.Chat.HistoryLimit,
		DedupTTL:        h.cfg.Chat.DedupTTL,
		SendCooldown:    h.cfg.Chat.SendCooldown,
		MaxMessageRunes: h.cfg.Chat.MaxMsgRunes,
	})

	middleware.SessionOpened()
	defer middleware.SessionClosed()

	go s.writePump()
	s.readPump(m)
}
