// Package chat – Manager
//
// This file implements the Manager, the per-session orchestrator of the
// realtime chat pipeline. It owns the session's room membership, loads
// history and subscribes to live insertions on join, pushes every incoming
// record through validation, duplicate suppression, avatar resolution and
// rendering, and serializes outbound sends behind an in-progress flag with
// a fixed cooldown. Rendering is echo-driven: a sent message reaches the
// sink only when it comes back through the store subscription, so what the
// viewer sees is exactly what was persisted.
//
// Service-level errors (e.g., ErrNoRoomJoined) are returned for predictable
// cases so transports can map them to user-facing results consistently.
package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/racetowin/paddock-backend/internal/avatar"
	"github.com/racetowin/paddock-backend/internal/domain"
	"github.com/racetowin/paddock-backend/internal/rooms"
)

// Store defines the persistence and broadcast contract required by the
// Manager. Implementations must deliver inserted messages to subscribers
// at least once; the Manager's dedup window absorbs re-delivery.
type Store interface {
	// ListRecent returns up to limit messages for the room, oldest first.
	ListRecent(ctx context.Context, roomID string, limit int) ([]domain.Message, error)

	// Insert persists a message and publishes it to room subscribers.
	Insert(ctx context.Context, m *domain.Message) error

	// SubscribeInsertions registers fn for messages inserted into the room
	// and returns a cancel function. fn may be invoked from any goroutine.
	SubscribeInsertions(roomID string, fn func(domain.Message)) (func(), error)
}

// Sink receives the viewer-facing effects of the pipeline. Implementations
// are typically a WebSocket session; calls may come from any goroutine.
type Sink interface {
	// Append delivers one rendered message, exactly once per accepted record.
	Append(m Rendered)

	// Clear empties the visible message list (room switch).
	Clear()

	// RefreshAvatar updates the avatar shown on already-rendered messages.
	RefreshAvatar(userID string, av avatar.Entry)

	// SetComposerEnabled toggles the send affordance while a send is in flight.
	SetComposerEnabled(enabled bool)

	// ClearComposer empties the input after a successful send.
	ClearComposer()

	// ShowError surfaces a user-facing failure message.
	ShowError(msg string)
}

// ManagerConfig carries the collaborators and tuning knobs for a Manager.
type ManagerConfig struct {
	Store    Store
	Avatars  *avatar.Cache
	Sink     Sink
	Renderer *Renderer
	Log      zerolog.Logger

	// User is the signed-in viewer; nil for read-only guests.
	User *domain.User

	// Notify, when set, fires once per live (non-history) rendered message.
	Notify func()

	HistoryLimit    int
	DedupTTL        time.Duration
	SendCooldown    time.Duration
	MaxMessageRunes int
}

// Manager drives one chat session. All exported methods are safe for
// concurrent use.
type Manager struct {
	store   Store
	avatars *avatar.Cache
	sink    Sink
	render  *Renderer
	notify  func()
	log     zerolog.Logger
	user    *domain.User

	historyLimit int
	cooldown     time.Duration
	maxRunes     int

	dedup *Window
	clock func() time.Time

	unregisterAvatar func()

	mu      sync.Mutex
	roomID  string
	unsub   func()
	joinGen uint64
	sending bool
}

// NewManager constructs a Manager and registers it for avatar refresh
// notifications. Callers must invoke Close when the session ends.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 50
	}
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = 10 * time.Second
	}
	if cfg.SendCooldown <= 0 {
		cfg.SendCooldown = time.Second
	}
	if cfg.MaxMessageRunes <= 0 {
		cfg.MaxMessageRunes = 2000
	}
	m := &Manager{
		store:        cfg.Store,
		avatars:      cfg.Avatars,
		sink:         cfg.Sink,
		render:       cfg.Renderer,
		notify:       cfg.Notify,
		log:          cfg.Log,
		user:         cfg.User,
		historyLimit: cfg.HistoryLimit,
		cooldown:     cfg.SendCooldown,
		maxRunes:     cfg.MaxMessageRunes,
		dedup:        NewWindow(cfg.DedupTTL),
		clock:        time.Now,
	}
	if m.avatars != nil {
		m.unregisterAvatar = m.avatars.Register(m)
	}
	return m
}

// RefreshAvatar forwards late avatar arrivals to the sink so placeholder
// initials on already-rendered messages get replaced.
func (m *Manager) RefreshAvatar(userID string, av avatar.Entry) {
	m.sink.RefreshAvatar(userID, av)
}

// JoinRoom switches the session to roomID: it tears down the previous
// subscription, clears the visible list and the dedup window, renders the
// recent history oldest-first, and subscribes to live insertions. A join
// superseded by a newer one becomes a no-op the moment its slow parts
// complete; only the latest join's room ends up live.
func (m *Manager) JoinRoom(ctx context.Context, roomID string) error {
	ctx, span := otel.Tracer("chat").Start(ctx, "Manager.JoinRoom")
	span.SetAttributes(attribute.String("room.id", roomID))
	defer span.End()

	room, ok := rooms.Lookup(roomID)
	if !ok {
		return ErrRoomNotFound
	}
	if !rooms.CanJoin(room, m.user) {
		return ErrRoomForbidden
	}

	m.mu.Lock()
	m.joinGen++
	gen := m.joinGen
	if m.unsub != nil {
		m.unsub()
		m.unsub = nil
	}
	m.roomID = roomID
	m.mu.Unlock()

	m.dedup.Clear()
	m.sink.Clear()

	history, err := m.store.ListRecent(ctx, roomID, m.historyLimit)
	if err != nil {
		// A room with no visible history is still usable live.
		m.log.Warn().Err(err).Str("room", roomID).Msg("history load failed")
	} else if m.currentGen() == gen {
		for i := range history {
			m.renderIncoming(ctx, history[i], false)
		}
	}

	unsub, err := m.store.SubscribeInsertions(roomID, func(rec domain.Message) {
		if m.currentGen() != gen {
			return
		}
		m.renderIncoming(context.Background(), rec, true)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", roomID, err)
	}

	m.mu.Lock()
	if m.joinGen != gen {
		m.mu.Unlock()
		unsub()
		return nil
	}
	m.unsub = unsub
	m.mu.Unlock()

	m.log.Info().Str("room", roomID).Msg("joined room")
	return nil
}

// LeaveRoom drops the live subscription and forgets the current room.
// Safe to call when no room is joined.
func (m *Manager) LeaveRoom() {
	m.mu.Lock()
	m.joinGen++
	unsub := m.unsub
	m.unsub = nil
	m.roomID = ""
	m.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	m.dedup.Clear()
}

// Close ends the session: it leaves the current room and unregisters the
// avatar refresh hook.
func (m *Manager) Close() {
	m.LeaveRoom()
	if m.unregisterAvatar != nil {
		m.unregisterAvatar()
	}
}

// SendMessage validates and persists one outbound message. At most one
// send is in flight per session; an attempt while another is pending is
// ignored. The composer is re-enabled as soon as the store call returns,
// but the next send is admitted only after the cooldown elapses. The sent
// message is not rendered here; it arrives back via the subscription.
func (m *Manager) SendMessage(ctx context.Context, content string) error {
	ctx, span := otel.Tracer("chat").Start(ctx, "Manager.SendMessage")
	defer span.End()

	if m.user == nil {
		return ErrNotAuthenticated
	}

	m.mu.Lock()
	roomID := m.roomID
	m.mu.Unlock()
	if roomID == "" {
		return ErrNoRoomJoined
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyMessage
	}
	if utf8.RuneCountInString(content) > m.maxRunes {
		return ErrMessageTooLong
	}

	m.mu.Lock()
	if m.sending {
		m.mu.Unlock()
		sendsBlocked.Inc()
		m.log.Debug().Str("room", roomID).Msg("send ignored, another in flight")
		return nil
	}
	m.sending = true
	m.mu.Unlock()

	m.sink.SetComposerEnabled(false)

	msg := &domain.Message{
		ID:        uuid.NewString(),
		UserID:    m.user.Email,
		UserName:  m.user.DisplayName(),
		UserTeam:  m.user.FavoriteTeam,
		RoomID:    roomID,
		Content:   content,
		CreatedAt: m.clock().UTC(),
	}
	err := m.store.Insert(ctx, msg)

	m.sink.SetComposerEnabled(true)
	time.AfterFunc(m.cooldown, func() {
		m.mu.Lock()
		m.sending = false
		m.mu.Unlock()
	})

	if err != nil {
		span.RecordError(err)
		m.log.Error().Err(err).Str("room", roomID).Msg("message insert failed")
		m.sink.ShowError("Your message could not be sent. Please try again.")
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	m.sink.ClearComposer()
	messagesSent.WithLabelValues(roomID).Inc()
	return nil
}

func (m *Manager) currentGen() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.joinGen
}

// renderIncoming runs one record through the pipeline: validate, dedup,
// resolve avatar, render, deliver. live distinguishes subscription
// deliveries (which fire the notification cue) from history replay.
func (m *Manager) renderIncoming(ctx context.Context, rec domain.Message, live bool) {
	if !rec.Valid() {
		malformedDropped.Inc()
		m.log.Warn().Str("room", rec.RoomID).Str("message_id", rec.ID).Msg("dropping malformed record")
		return
	}
	if !m.dedup.ShouldRender(&rec) {
		duplicatesSuppressed.Inc()
		return
	}

	av := avatar.Default()
	if m.avatars != nil {
		av = m.avatars.Resolve(ctx, rec.UserID)
	}

	m.sink.Append(m.render.Render(rec, av))
	messagesRendered.WithLabelValues(rec.RoomID).Inc()

	if live && m.notify != nil && (m.user == nil || rec.UserID != m.user.Email) {
		m.notify()
	}
}
