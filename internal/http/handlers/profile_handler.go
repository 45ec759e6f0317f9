// Profile HTTP handlers.
//
// Endpoints:
//   - GET /profile    (the caller's profile)
//   - PUT /profile    (create or patch the caller's profile)
//
// Profile edits invalidate the avatar cache entry so every live session
// sees the new initial, picture, and team color without reconnecting.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/racetowin/paddock-backend/internal/avatar"
	"github.com/racetowin/paddock-backend/internal/domain"
	"github.com/racetowin/paddock-backend/internal/http/middleware"
	"github.com/racetowin/paddock-backend/internal/rooms"
)

// ProfileView is the caller-facing shape of a profile.
type ProfileView struct {
	Email        string `json:"email"`
	FirstName    string `json:"first_name,omitempty"`
	Nickname     string `json:"nickname,omitempty"`
	DisplayName  string `json:"display_name"`
	FavoriteTeam string `json:"favorite_team,omitempty"`
	IsPremium    bool   `json:"is_premium"`
	ProfileImage string `json:"profile_image,omitempty"`
}

func profileView(u *domain.User) ProfileView {
	return ProfileView{
		Email:        u.Email,
		FirstName:    u.FirstName,
		Nickname:     u.Nickname,
		DisplayName:  u.DisplayName(),
		FavoriteTeam: u.FavoriteTeam,
		IsPremium:    u.IsPremium,
		ProfileImage: u.ProfileImage,
	}
}

type profileUpdateRequest struct {
	FirstName    *string `json:"first_name"`
	Nickname     *string `json:"nickname"`
	FavoriteTeam *string `json:"favorite_team"`
	ProfileImage *string `json:"profile_image"`
}

// GetProfile returns the authenticated caller's profile.
func (h *Handlers) GetProfile(c *gin.Context) {
	email := middleware.IdentityFrom(c)
	u, err := h.users.Get(c.Request.Context(), email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "no profile yet")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load profile")
		return
	}
	ok(c, http.StatusOK, profileView(u))
}

// UpdateProfile patches the caller's profile, creating the row on first
// use. Only display fields are editable; premium status is managed by the
// billing system.
func (h *Handlers) UpdateProfile(c *gin.Context) {
	email := middleware.IdentityFrom(c)

	var req profileUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "malformed profile payload")
		return
	}
	if req.FavoriteTeam != nil {
		team := strings.TrimSpace(*req.FavoriteTeam)
		if team != "" && rooms.TeamName(team) == "" {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown team")
			return
		}
		req.FavoriteTeam = &team
	}

	fields := make(map[string]any)
	if req.FirstName != nil {
		fields["first_name"] = strings.TrimSpace(*req.FirstName)
	}
	if req.Nickname != nil {
		fields["nickname"] = strings.TrimSpace(*req.Nickname)
	}
	if req.FavoriteTeam != nil {
		fields["favorite_team"] = *req.FavoriteTeam
	}
	if req.ProfileImage != nil {
		fields["profile_image"] = strings.TrimSpace(*req.ProfileImage)
	}

	ctx := c.Request.Context()
	err := h.users.Update(ctx, email, fields)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		u := &domain.User{Email: email}
		applyFields(u, fields)
		if err := h.users.Create(ctx, u); err != nil {
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not create profile")
			return
		}
	} else if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not update profile")
		return
	}

	u, err := h.users.Get(ctx, email)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load profile")
		return
	}

	if h.avatars != nil {
		h.avatars.Invalidate(email, avatar.Entry{
			Initial:   u.Initial(),
			Image:     u.ProfileImage,
			TeamColor: rooms.TeamColor(u.FavoriteTeam),
		})
	}

	ok(c, http.StatusOK, profileView(u))
}

func applyFields(u *domain.User, fields map[string]any) {
	for k, v := range fields {
		s, _ := v.(string)
		switch k {
		case "first_name":
			u.FirstName = s
		case "nickname":
			u.Nickname = s
		case "favorite_team":
			u.FavoriteTeam = s
		case "profile_image":
			u.ProfileImage = s
		}
	}
}
