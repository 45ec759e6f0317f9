package repo

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/racetowin/paddock-backend/internal/domain"
)

func TestCreateAndGetUser(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	u := &domain.User{
		Email:        "charles@example.com",
		FirstName:    "Charles",
		Nickname:     "CL16",
		FavoriteTeam: "ferrari",
		IsPremium:    true,
	}
	if err := CreateUser(ctx, db, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.ID == "" {
		t.Fatalf("ID must be assigned on create")
	}

	got, err := GetUserByEmail(ctx, db, "charles@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if got.Nickname != "CL16" || got.FavoriteTeam != "ferrari" || !got.IsPremium {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestGetUserByEmail_NotFound(t *testing.T) {
	db := openTestDB(t)
	_, err := GetUserByEmail(context.Background(), db, "ghost@example.com")
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestUpdateUserProfile(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	u := &domain.User{Email: "oscar@example.com", FirstName: "Oscar", FavoriteTeam: "mclaren"}
	if err := CreateUser(ctx, db, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	err := UpdateUserProfile(ctx, db, "oscar@example.com", map[string]any{
		"nickname":      "OP81",
		"favorite_team": "mclaren",
		"is_premium":    true, // not editable; must be dropped
	})
	if err != nil {
		t.Fatalf("UpdateUserProfile: %v", err)
	}

	got, err := GetUserByEmail(ctx, db, "oscar@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if got.Nickname != "OP81" {
		t.Errorf("nickname = %q; want OP81", got.Nickname)
	}
	if got.IsPremium {
		t.Errorf("is_premium must not be editable through profile updates")
	}
}

func TestUpdateUserProfile_MissingUser(t *testing.T) {
	db := openTestDB(t)
	err := UpdateUserProfile(context.Background(), db, "nobody@example.com", map[string]any{"nickname": "x"})
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestUpdateUserProfile_NoEditableFields(t *testing.T) {
	db := openTestDB(t)
	// Only disallowed fields -> no-op, no error even for a missing user.
	if err := UpdateUserProfile(context.Background(), db, "nobody@example.com", map[string]any{"is_premium": true}); err != nil {
		t.Fatalf("expected nil for no-op update, got %v", err)
	}
}
