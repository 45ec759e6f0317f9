// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message model.
package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/racetowin/paddock-backend/internal/domain"
)

// InsertMessage persists a message row. The caller stamps CreatedAt; the ID
// is assigned here when absent so broadcast payloads and rows agree.
func InsertMessage(ctx context.Context, db *gorm.DB, m *domain.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return db.WithContext(ctx).Create(m).Error
}

// ListRecentMessages returns the most recent `limit` messages of a room,
// ordered oldest first. The window is selected newest-first and flipped so
// the result always holds the tail of the room, deterministically
// (CreatedAt, ID) ordered.
func ListRecentMessages(ctx context.Context, db *gorm.DB, roomID string, limit int) ([]domain.Message, error) {
	var out []domain.Message
	q := db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	// flip to oldest-first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
func CountMessages(ctx context.Context, db *gorm.DB, roomID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw("SELECT COUNT(*) FROM messages WHERE room_id = ?", roomID).Scan(&total).Error
	return total, err
}
