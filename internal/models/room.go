package models

import (
	"strings"
	"time"

	"github.com/samber/lo"
)

// Room is a conversation, group or direct. Participants never change during a session.
type Room struct {
	ID            string        `json:"id"`
	Name          string        `json:"name,omitempty"`
	IsGroup       bool          `json:"isGroup"`
	Users         []UserSummary `json:"users"`
	LastMessageAt time.Time     `json:"lastMessageAt"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// Title is the room name, or the participant names when the room has none
func (r Room) Title() string {
	if r.Name != "" {
		return r.Name
	}
	return strings.Join(lo.Map(r.Users, func(u UserSummary, _ int) string { return u.Name }), ", ")
}

// HasParticipant reports whether the user belongs to the room
func (r Room) HasParticipant(id UserID) bool {
	return lo.ContainsBy(r.Users, func(u UserSummary) bool { return u.ID == id })
}

// RoomPage is one getGroups reply
type RoomPage struct {
	Count int    `json:"count"`
	Items []Room `json:"items"`
}
