package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ContentType tells how Message.Content is interpreted
type ContentType string

const (
	// ContentText is plain text
	ContentText ContentType = "TEXT"
	// ContentImage is a URL to an uploaded image
	ContentImage ContentType = "IMAGE"
)

// Valid reports whether the content type is one the backend accepts
func (c ContentType) Valid() bool {
	return c == ContentText || c == ContentImage
}

// Message belongs to exactly one room. ID is empty until the server accepts it.
type Message struct {
	ID          string      `json:"id,omitempty"`
	RoomID      string      `json:"groupId,omitempty"`
	Sender      UserSummary `json:"sender"`
	Content     string      `json:"content"`
	ContentType ContentType `json:"contentType"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// Pending reports whether the message has no server-assigned id yet
func (m Message) Pending() bool {
	return m.ID == ""
}

// UnmarshalJSON also accepts the parent room as a nested group object and
// numeric ids
func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	var wire struct {
		plain
		ID     flexibleID `json:"id,omitempty"`
		RoomID string     `json:"roomId,omitempty"`
		Group  *struct {
			ID flexibleID `json:"id"`
		} `json:"group,omitempty"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("message: %w", err)
	}
	*m = Message(wire.plain)
	m.ID = string(wire.ID)
	if m.RoomID == "" {
		m.RoomID = wire.RoomID
	}
	if m.RoomID == "" && wire.Group != nil {
		m.RoomID = string(wire.Group.ID)
	}
	return nil
}
