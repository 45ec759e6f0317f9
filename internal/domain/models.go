// Package domain defines the persistence models for chat messages and user
// profiles. These types are mapped with GORM and form the core data layer
// of the paddock backend.
package domain

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Message represents a single chat utterance inside a room. Messages are
// created by the sending client, persisted once, broadcast to every
// subscriber of the room (including the sender), and never mutated.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - UserID: author identifier (the account email); indexed with the room.
//   - UserName: author display name as shown in the room.
//   - UserTeam: the author's affiliated team identifier; empty when the
//     author has no affiliation.
//   - RoomID: room partition ("global" or a team identifier).
//   - Content: full text content of the message.
//   - CreatedAt: creation timestamp stamped by the sending client.
type Message struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"user_id"    gorm:"type:varchar(254);not null;index:idx_room_msgs,priority:2"`
	UserName  string    `json:"user_name"  gorm:"type:varchar(64);not null"`
	UserTeam  string    `json:"user_team,omitempty" gorm:"type:varchar(32)"`
	RoomID    string    `json:"room_id"    gorm:"type:varchar(32);not null;index:idx_room_msgs,priority:1"`
	Content   string    `json:"content"    gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_room_msgs,priority:3"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Fingerprint derives the duplicate-suppression key for a message:
// (author identifier, content, creation timestamp). The triple is a
// probabilistic natural key, not a cryptographic one.
func (m *Message) Fingerprint() string {
	return m.UserID + "\x1f" + m.Content + "\x1f" + m.CreatedAt.UTC().Format(time.RFC3339Nano)
}

// Valid reports whether a record carries the minimum shape required to be
// rendered. Records from collaborators are validated at the storage boundary
// rather than rendered speculatively.
func (m *Message) Valid() bool {
	if m == nil {
		return false
	}
	return strings.TrimSpace(m.UserID) != "" &&
		strings.TrimSpace(m.RoomID) != "" &&
		strings.TrimSpace(m.Content) != "" &&
		!m.CreatedAt.IsZero()
}

// User represents a community member profile. Authentication itself is
// delegated to the external identity platform; this row only carries the
// presentation and entitlement data the backend serves.
//
// FavoriteTeam and IsPremium together control access to team rooms.
type User struct {
	ID           string         `json:"id"            gorm:"type:char(36);primaryKey"`
	Email        string         `json:"email"         gorm:"type:varchar(254);not null;uniqueIndex"`
	FirstName    string         `json:"first_name"    gorm:"type:varchar(64);not null"`
	Nickname     string         `json:"nickname"      gorm:"type:varchar(64)"`
	FavoriteTeam string         `json:"favorite_team" gorm:"type:varchar(32)"`
	IsPremium    bool           `json:"is_premium"    gorm:"not null;default:false"`
	ProfileImage string         `json:"profile_image,omitempty" gorm:"type:text"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-"             gorm:"index"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// DisplayName returns the name shown next to the user's messages: the
// nickname when set, the first name otherwise.
func (u *User) DisplayName() string {
	if strings.TrimSpace(u.Nickname) != "" {
		return u.Nickname
	}
	return u.FirstName
}

// Initial returns the single-letter avatar fallback for the user.
func (u *User) Initial() string {
	name := strings.TrimSpace(u.FirstName)
	if name == "" {
		return "U"
	}
	return strings.ToUpper(string([]rune(name)[0]))
}
