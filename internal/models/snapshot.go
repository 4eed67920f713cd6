package models

import "time"

// Snapshot is the state of a session written when it closes
type Snapshot struct {
	SessionID string               `json:"sessionId"`
	UserID    UserID               `json:"userId,omitempty"`
	TakenAt   time.Time            `json:"takenAt"`
	RoomCount int                  `json:"roomCount"`
	Rooms     []Room               `json:"rooms"`
	Messages  map[string][]Message `json:"messages"`
}

// Key identifies the snapshot slot. Each user keeps only their latest snapshot.
func (s Snapshot) Key() string {
	return SnapshotKey(s.UserID)
}

// SnapshotKey is the slot used for a user's snapshot
func SnapshotKey(user UserID) string {
	if user == "" {
		return "anonymous"
	}
	return string(user)
}
