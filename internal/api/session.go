package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"realtime-chat/client/internal/models"
	"realtime-chat/client/internal/service"
	"realtime-chat/client/internal/ws"
	"realtime-chat/client/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

// ChatSession is the part of a chat session the control API drives
type ChatSession interface {
	ID() string
	Identity() models.UserID
	State() service.State
	ConnectionState() ws.State
	Rooms() []models.Room
	RoomCount() int
	SelectRoom(ctx context.Context, roomID string) ([]models.Message, error)
	LoadHistory(ctx context.Context, roomID string, limit, offset int) ([]models.Message, error)
	Messages(roomID string) []models.Message
	SendMessage(ctx context.Context, roomID, content string, contentType models.ContentType) (models.Message, error)
	IsOwn(msg models.Message) bool
}

// SessionResponse describes the session
type SessionResponse struct {
	ID         string        `json:"id"`
	UserID     models.UserID `json:"userId,omitempty"`
	Status     string        `json:"status"`
	RoomID     string        `json:"roomId,omitempty"`
	Connection string        `json:"connection"`
	RoomCount  int           `json:"roomCount"`
}

// RoomResponse is a room as listed by the control API
type RoomResponse struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	IsGroup       bool      `json:"isGroup"`
	Participants  int       `json:"participants"`
	LastMessageAt time.Time `json:"lastMessageAt"`
}

// MessageResponse is a message with its authorship resolved
type MessageResponse struct {
	models.Message
	Own bool `json:"own"`
}

// UnmarshalJSON decodes the message with its own rules, then the own flag
func (r *MessageResponse) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &r.Message); err != nil {
		return err
	}
	var flags struct {
		Own bool `json:"own"`
	}
	if err := json.Unmarshal(data, &flags); err != nil {
		return err
	}
	r.Own = flags.Own
	return nil
}

// SendMessageRequest is the body of a send
type SendMessageRequest struct {
	Content     string             `json:"content" binding:"required"`
	ContentType models.ContentType `json:"contentType"`
}

// SessionController exposes a chat session over HTTP
type SessionController struct {
	session ChatSession
}

// NewSessionController creates a new session controller
func NewSessionController(session ChatSession) *SessionController {
	return &SessionController{session: session}
}

// RegisterRoutesV1 registers the session routes under /api/v1
func (h *SessionController) RegisterRoutesV1(v1 *gin.RouterGroup) {
	v1.GET("/session", h.GetSession)

	rooms := v1.Group("/rooms")
	{
		rooms.GET("", h.ListRooms)
		rooms.POST("/:id/select", h.SelectRoom)
		rooms.GET("/:id/messages", h.ListMessages)
		rooms.POST("/:id/messages", h.SendMessage)
	}
}

// GetSession returns the session state
func (h *SessionController) GetSession(c *gin.Context) {
	state := h.session.State()
	c.JSON(http.StatusOK, SessionResponse{
		ID:         h.session.ID(),
		UserID:     h.session.Identity(),
		Status:     string(state.Status),
		RoomID:     state.RoomID,
		Connection: string(h.session.ConnectionState()),
		RoomCount:  h.session.RoomCount(),
	})
}

// ListRooms returns the loaded rooms in server order
func (h *SessionController) ListRooms(c *gin.Context) {
	rooms := lo.Map(h.session.Rooms(), func(r models.Room, _ int) RoomResponse {
		return RoomResponse{
			ID:            r.ID,
			Title:         r.Title(),
			IsGroup:       r.IsGroup,
			Participants:  len(r.Users),
			LastMessageAt: r.LastMessageAt,
		}
	})
	c.JSON(http.StatusOK, gin.H{
		"rooms": rooms,
		"count": h.session.RoomCount(),
	})
}

// SelectRoom makes a room active and returns its latest history
func (h *SessionController) SelectRoom(c *gin.Context) {
	roomID := c.Param("id")
	messages, err := h.session.SelectRoom(c.Request.Context(), roomID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"roomId":   roomID,
		"messages": h.present(messages),
	})
}

// ListMessages returns the local log of a room. With a limit it first
// fetches that page of history from the backend.
func (h *SessionController) ListMessages(c *gin.Context) {
	roomID := c.Param("id")

	if limitParam := c.Query("limit"); limitParam != "" {
		limit, err := strconv.Atoi(limitParam)
		if err != nil {
			_ = c.Error(errors.NewBadRequestError("INVALID_PAGE", "limit must be a number"))
			return
		}
		offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
		if err != nil {
			_ = c.Error(errors.NewBadRequestError("INVALID_PAGE", "offset must be a number"))
			return
		}
		if _, err := h.session.LoadHistory(c.Request.Context(), roomID, limit, offset); err != nil {
			_ = c.Error(err)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"roomId":   roomID,
		"messages": h.present(h.session.Messages(roomID)),
	})
}

// SendMessage sends a message to a room and returns the acknowledged message
func (h *SessionController) SendMessage(c *gin.Context) {
	var body SendMessageRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		_ = c.Error(errors.NewBadRequestError("INVALID_MESSAGE", "message body is invalid").WithDetails(err.Error()))
		return
	}
	if body.ContentType == "" {
		body.ContentType = models.ContentText
	}

	msg, err := h.session.SendMessage(c.Request.Context(), c.Param("id"), body.Content, body.ContentType)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, MessageResponse{Message: msg, Own: true})
}

func (h *SessionController) present(messages []models.Message) []MessageResponse {
	return lo.Map(messages, func(m models.Message, _ int) MessageResponse {
		return MessageResponse{Message: m, Own: h.session.IsOwn(m)}
	})
}
