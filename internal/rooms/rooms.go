// Package rooms holds the static chat room directory: the global room plus
// one room per constructor. Rooms are defined at build time and never
// created or destroyed at runtime.
package rooms

import "github.com/racetowin/paddock-backend/internal/domain"

// Room describes one chat partition.
type Room struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AccentColor string `json:"accent_color"`
	// TeamOnly marks rooms reserved for fans of that team (or premium members).
	TeamOnly bool `json:"team_only"`
}

// GlobalRoomID is the open room every member can join.
const GlobalRoomID = "global"

// neutralColor is used for unknown teams and default avatars.
const neutralColor = "#666666"

var directory = []Room{
	{ID: GlobalRoomID, DisplayName: "Chat Global F1", AccentColor: "#E10600"},
	{ID: "ferrari", DisplayName: "Salon Ferrari", AccentColor: "#DC143C", TeamOnly: true},
	{ID: "mercedes", DisplayName: "Salon Mercedes", AccentColor: "#00D2BE", TeamOnly: true},
	{ID: "redbull", DisplayName: "Salon Red Bull", AccentColor: "#0066CC", TeamOnly: true},
	{ID: "mclaren", DisplayName: "Salon McLaren", AccentColor: "#FF8700", TeamOnly: true},
	{ID: "astonmartin", DisplayName: "Salon Aston Martin", AccentColor: "#006F62", TeamOnly: true},
	{ID: "alpine", DisplayName: "Salon Alpine", AccentColor: "#FF6BCD", TeamOnly: true},
	{ID: "williams", DisplayName: "Salon Williams", AccentColor: "#00A0E6", TeamOnly: true},
	{ID: "haas", DisplayName: "Salon Haas", AccentColor: "#FF0000", TeamOnly: true},
	{ID: "visacashapp", DisplayName: "Salon Visa Cash App RB", AccentColor: "#0066CC", TeamOnly: true},
	{ID: "stake", DisplayName: "Salon Stake F1", AccentColor: "#00FF00", TeamOnly: true},
}

var byID = func() map[string]Room {
	m := make(map[string]Room, len(directory))
	for _, r := range directory {
		m[r.ID] = r
	}
	return m
}()

// All returns the full directory in display order.
func All() []Room {
	out := make([]Room, len(directory))
	copy(out, directory)
	return out
}

// Lookup returns the room with the given identifier.
func Lookup(id string) (Room, bool) {
	r, ok := byID[id]
	return r, ok
}

// Exists reports whether id names a known room.
func Exists(id string) bool {
	_, ok := byID[id]
	return ok
}

// TeamColor returns the accent color of a team's room, or the neutral color
// for unknown or empty team identifiers.
func TeamColor(team string) string {
	if r, ok := byID[team]; ok && r.ID != GlobalRoomID {
		return r.AccentColor
	}
	return neutralColor
}

// TeamName returns the marketing name of a team, or "" when unknown. The
// global room is not a team.
func TeamName(team string) string {
	names := map[string]string{
		"ferrari":     "Ferrari",
		"mercedes":    "Mercedes",
		"redbull":     "Red Bull",
		"mclaren":     "McLaren",
		"astonmartin": "Aston Martin",
		"alpine":      "Alpine",
		"williams":    "Williams",
		"haas":        "Haas",
		"visacashapp": "Visa Cash App",
		"stake":       "Stake F1",
	}
	return names[team]
}

// NeutralColor returns the fallback accent color.
func NeutralColor() string { return neutralColor }

// CanJoin applies the room access policy: the global room is open to every
// member; a team room admits fans of that team and premium members.
func CanJoin(r Room, u *domain.User) bool {
	if !r.TeamOnly {
		return true
	}
	if u == nil {
		return false
	}
	return u.IsPremium || u.FavoriteTeam == r.ID
}
