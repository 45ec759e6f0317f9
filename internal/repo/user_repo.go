// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model,
// which backs both the profile endpoints and avatar resolution.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/racetowin/paddock-backend/internal/domain"
)

// GetUserByEmail fetches a user profile by account email.
// Returns gorm.ErrRecordNotFound when the profile is absent.
func GetUserByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a new user profile row.
func CreateUser(ctx context.Context, db *gorm.DB, u *domain.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(u).Error
}

// UpdateUserProfile overwrites the editable profile fields of the user with
// the given email. Entitlement (IsPremium) is not editable through this path.
func UpdateUserProfile(ctx context.Context, db *gorm.DB, email string, fields map[string]any) error {
	allowed := map[string]struct{}{
		"first_name":    {},
		"nickname":      {},
		"favorite_team": {},
		"profile_image": {},
	}
	updates := make(map[string]any, len(fields))
	for k, v := range fields {
		if _, ok := allowed[k]; ok {
			updates[k] = v
		}
	}
	if len(updates) == 0 {
		return nil
	}
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("email = ?", email).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
