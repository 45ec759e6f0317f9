// Package handlers provides HTTP handler implementations for the public API.
//
// Handlers are transport-thin: they validate input, call application
// services through narrow interfaces, and translate results into HTTP
// responses. Concrete wiring happens in the router.
package handlers

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/racetowin/paddock-backend/internal/avatar"
	"github.com/racetowin/paddock-backend/internal/chat"
	"github.com/racetowin/paddock-backend/internal/config"
	"github.com/racetowin/paddock-backend/internal/domain"
	"github.com/racetowin/paddock-backend/internal/news"
	"github.com/racetowin/paddock-backend/internal/standings"
)

//
// Service contracts (context-aware)
//

// UserDirectory exposes profile lookup and maintenance operations consumed
// by HTTP handlers. Implementations must honor the provided context.
type UserDirectory interface {
	// Get fetches a user by account email.
	Get(ctx context.Context, email string) (*domain.User, error)
	// Create inserts a new profile row.
	Create(ctx context.Context, u *domain.User) error
	// Update patches the allowed profile fields of an existing user.
	Update(ctx context.Context, email string, fields map[string]any) error
}

// NewsService serves cached F1 news items.
type NewsService interface {
	Latest(ctx context.Context) ([]news.Item, error)
}

// StandingsService serves season rankings and calendar data.
type StandingsService interface {
	Drivers(ctx context.Context) ([]standings.Driver, error)
	Teams(ctx context.Context) ([]standings.Team, error)
	Season(ctx context.Context, year int) ([]standings.Race, error)
	NextRace(ctx context.Context) (*standings.Race, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for rooms, chat sessions, profiles,
// news, and standings.
type Handlers struct {
	users     UserDirectory
	store     chat.Store
	avatars   *avatar.Cache
	news      NewsService
	standings StandingsService
	cfg       config.Config
	log       zerolog.Logger
}

// New constructs a Handlers instance bound to the given services.
func New(users UserDirectory, store chat.Store, avatars *avatar.Cache, newsSvc NewsService, standingsSvc StandingsService, cfg config.Config, log zerolog.Logger) *Handlers {
	return &Handlers{
		users:     users,
		store:     store,
		avatars:   avatars,
		news:      newsSvc,
		standings: standingsSvc,
		cfg:       cfg,
		log:       log,
	}
}
