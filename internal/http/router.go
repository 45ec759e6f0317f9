// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns
// such as tracing, correlation IDs, logging, panic recovery, metrics,
// CORS, security headers, identity, and rate limiting.
//
// Design goals:
//   - Observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"path"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/racetowin/paddock-backend/internal/avatar"
	"github.com/racetowin/paddock-backend/internal/chat"
	"github.com/racetowin/paddock-backend/internal/config"
	"github.com/racetowin/paddock-backend/internal/domain"
	"github.com/racetowin/paddock-backend/internal/http/handlers"
	"github.com/racetowin/paddock-backend/internal/http/middleware"
	"github.com/racetowin/paddock-backend/internal/news"
	"github.com/racetowin/paddock-backend/internal/repo"
	"github.com/racetowin/paddock-backend/internal/rooms"
	"github.com/racetowin/paddock-backend/internal/standings"
)

// userDirectoryShim adapts the repository free functions to the
// handlers.UserDirectory interface, keeping handlers decoupled from the
// concrete repo package.
type userDirectoryShim struct{ db *gorm.DB }

// Get proxies repo.GetUserByEmail.
func (s userDirectoryShim) Get(ctx context.Context, email string) (*domain.User, error) {
	return repo.GetUserByEmail(ctx, s.db, email)
}

// Create proxies repo.CreateUser.
func (s userDirectoryShim) Create(ctx context.Context, u *domain.User) error {
	return repo.CreateUser(ctx, s.db, u)
}

// Update proxies repo.UpdateUserProfile.
func (s userDirectoryShim) Update(ctx context.Context, email string, fields map[string]any) error {
	return repo.UpdateUserProfile(ctx, s.db, email, fields)
}

// profileSourceShim adapts the user repository to the avatar.ProfileSource
// contract, translating a missing row into ErrProfileNotFound so the cache
// can store the default entry definitively.
type profileSourceShim struct{ db *gorm.DB }

func (s profileSourceShim) GetProfile(ctx context.Context, userID string) (*avatar.Profile, error) {
	u, err := repo.GetUserByEmail(ctx, s.db, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, avatar.ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &avatar.Profile{
		Initial: u.Initial(),
		Image:   u.ProfileImage,
		Team:    u.FavoriteTeam,
	}, nil
}

// Deps carries the long-lived collaborators the router wires into
// handlers.
type Deps struct {
	DB        *gorm.DB
	Store     chat.Store
	Avatars   *avatar.Cache
	News      *news.Service
	Standings *standings.Client
	Log       zerolog.Logger
}

// NewAvatarCache builds the process-wide avatar cache backed by the user
// repository.
func NewAvatarCache(db *gorm.DB) *avatar.Cache {
	return avatar.New(profileSourceShim{db: db})
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given
// Gin engine.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access logs (auth tokens masked)
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Identity (bearer JWT, anonymous allowed)
//  8. Rate limiter (per user/IP)
//  9. CORS and security headers
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(limitBody(1 << 20))
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// WebSocket upgrades and the Prometheus scrape stay uncompressed.
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{
		path.Join(cfg.APIBasePath, "ws"),
		"/metrics",
	})))

	r.Use(middleware.Identity(cfg.JWTSecret))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "Accept-Language"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "Accept-Language"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "rooms": len(rooms.All())})
	})

	h := handlers.New(
		userDirectoryShim{db: deps.DB},
		deps.Store,
		deps.Avatars,
		deps.News,
		deps.Standings,
		cfg,
		deps.Log,
	)

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Rooms and history
		api.GET("/rooms", h.ListRooms)
		api.GET("/rooms/:id/messages", h.ListRoomMessages)
		api.POST("/rooms/:id/messages", middleware.RequireIdentity(), h.SendRoomMessage)

		// Realtime chat
		api.GET("/ws", h.ChatSocket)

		// Profile
		api.GET("/profile", middleware.RequireIdentity(), h.GetProfile)
		api.PUT("/profile", middleware.RequireIdentity(), h.UpdateProfile)

		// News and season data
		api.GET("/news", h.ListNews)
		api.GET("/standings/drivers", h.DriverStandings)
		api.GET("/standings/teams", h.TeamStandings)
		api.GET("/standings/next", h.NextRace)
		api.GET("/standings/season/:year", h.SeasonCalendar)
	}
}

// limitBody caps the request body size using http.MaxBytesReader.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
