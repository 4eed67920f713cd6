package ws

import (
	"encoding/json"

	"realtime-chat/client/internal/models"
)

// Method and event names understood by the chat backend
const (
	MethodGetGroups     = "getGroups"
	MethodGetMessages   = "getMessages"
	MethodCreateMessage = "createMessage"

	// EventCreateMessage is pushed when anyone, including another session of
	// the same user, posts in a room the user belongs to
	EventCreateMessage = "createMessage"
)

// Frame is one JSON text message on the channel.
// A request carries ID and Event, a reply carries ID and Data or Error,
// a push carries Event and Data.
type Frame struct {
	ID    string          `json:"id,omitempty"`
	Event string          `json:"event,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *FrameError     `json:"error,omitempty"`
}

// FrameError is a server-reported failure for one request
type FrameError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// GetGroupsRequest is the getGroups payload
type GetGroupsRequest struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// GetMessagesRequest is the getMessages payload
type GetMessagesRequest struct {
	RoomID string `json:"roomId"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

// GetMessagesReply holds a page of messages, newest first
type GetMessagesReply struct {
	Items []models.Message `json:"items"`
}

// CreateMessageRequest is the createMessage payload
type CreateMessageRequest struct {
	GroupID     string             `json:"groupId"`
	Content     string             `json:"content"`
	ContentType models.ContentType `json:"contentType"`
}
