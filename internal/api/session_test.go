package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"realtime-chat/client/internal/models"
	"realtime-chat/client/internal/service"
	"realtime-chat/client/internal/ws"
	"realtime-chat/client/pkg/errors"
	"realtime-chat/client/pkg/health"
	"realtime-chat/client/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	rooms    []models.Room
	messages map[string][]models.Message
	selected string
	sent     []models.Message
	history  [][2]int
	fail     error
}

func (f *fakeSession) ID() string              { return "session-1" }
func (f *fakeSession) Identity() models.UserID { return "1" }
func (f *fakeSession) State() service.State {
	return service.State{Status: service.StatusReady, RoomID: f.selected}
}
func (f *fakeSession) ConnectionState() ws.State { return ws.StateConnected }
func (f *fakeSession) Rooms() []models.Room      { return f.rooms }
func (f *fakeSession) RoomCount() int            { return 15 }

func (f *fakeSession) SelectRoom(_ context.Context, roomID string) ([]models.Message, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	f.selected = roomID
	return f.messages[roomID], nil
}

func (f *fakeSession) LoadHistory(_ context.Context, _ string, limit, offset int) ([]models.Message, error) {
	f.history = append(f.history, [2]int{limit, offset})
	return nil, f.fail
}

func (f *fakeSession) Messages(roomID string) []models.Message { return f.messages[roomID] }

func (f *fakeSession) SendMessage(_ context.Context, roomID, content string, contentType models.ContentType) (models.Message, error) {
	if f.fail != nil {
		return models.Message{}, f.fail
	}
	msg := models.Message{ID: "m-new", RoomID: roomID, Content: content, ContentType: contentType, Sender: models.UserSummary{ID: "1"}}
	f.sent = append(f.sent, msg)
	return msg, nil
}

func (f *fakeSession) IsOwn(msg models.Message) bool { return msg.Sender.ID == "1" }

func newFakeSession() *fakeSession {
	return &fakeSession{
		rooms: []models.Room{
			{ID: "r1", Name: "General", IsGroup: true, Users: []models.UserSummary{{ID: "1", Name: "Khang"}, {ID: "2", Name: "Ky"}}},
			{ID: "r2", Users: []models.UserSummary{{ID: "1", Name: "Khang"}, {ID: "3", Name: "Lan"}}},
		},
		messages: map[string][]models.Message{
			"r1": {
				{ID: "m1", RoomID: "r1", Content: "hello", Sender: models.UserSummary{ID: "2"}},
				{ID: "m2", RoomID: "r1", Content: "hi", Sender: models.UserSummary{ID: "1"}},
			},
		},
	}
}

func newTestRouter(session ChatSession) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(errors.ErrorHandler())
	NewSessionController(session).RegisterRoutesV1(r.Group("/api/v1"))
	return r
}

func serve(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSessionController_GetSession(t *testing.T) {
	req := require.New(t)
	w := serve(newTestRouter(newFakeSession()), http.MethodGet, "/api/v1/session", "")

	req.Equal(http.StatusOK, w.Code)
	var body SessionResponse
	req.NoError(json.Unmarshal(w.Body.Bytes(), &body))
	req.Equal("session-1", body.ID)
	req.Equal("ready", body.Status)
	req.Equal("connected", body.Connection)
	req.Equal(15, body.RoomCount)
}

func TestSessionController_ListRooms(t *testing.T) {
	req := require.New(t)
	w := serve(newTestRouter(newFakeSession()), http.MethodGet, "/api/v1/rooms", "")

	req.Equal(http.StatusOK, w.Code)
	var body struct {
		Rooms []RoomResponse `json:"rooms"`
		Count int            `json:"count"`
	}
	req.NoError(json.Unmarshal(w.Body.Bytes(), &body))
	req.Len(body.Rooms, 2)
	req.Equal("General", body.Rooms[0].Title)
	req.Equal("Khang, Lan", body.Rooms[1].Title)
	req.Equal(15, body.Count)
}

func TestSessionController_SelectRoom(t *testing.T) {
	req := require.New(t)
	session := newFakeSession()
	w := serve(newTestRouter(session), http.MethodPost, "/api/v1/rooms/r1/select", "")

	req.Equal(http.StatusOK, w.Code)
	req.Equal("r1", session.selected)
	var body struct {
		Messages []MessageResponse `json:"messages"`
	}
	req.NoError(json.Unmarshal(w.Body.Bytes(), &body))
	req.Len(body.Messages, 2)
	req.False(body.Messages[0].Own)
	req.True(body.Messages[1].Own)
}

func TestMessageResponse_RoundTrip(t *testing.T) {
	req := require.New(t)
	in := MessageResponse{
		Message: models.Message{ID: "m1", RoomID: "r1", Content: "hi", ContentType: models.ContentText},
		Own:     true,
	}

	data, err := json.Marshal(in)
	req.NoError(err)
	req.Contains(string(data), `"own":true`)

	var out MessageResponse
	req.NoError(json.Unmarshal(data, &out))
	req.True(out.Own)
	req.Equal("m1", out.ID)
	req.Equal("r1", out.RoomID)
}

func TestSessionController_SelectUnknownRoom(t *testing.T) {
	session := newFakeSession()
	session.fail = errors.NewNotFoundError("ROOM_NOT_FOUND", "room is not loaded")
	w := serve(newTestRouter(session), http.MethodPost, "/api/v1/rooms/nope/select", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "ROOM_NOT_FOUND")
}

func TestSessionController_ListMessagesLoadsRequestedPage(t *testing.T) {
	req := require.New(t)
	session := newFakeSession()
	r := newTestRouter(session)

	w := serve(r, http.MethodGet, "/api/v1/rooms/r1/messages", "")
	req.Equal(http.StatusOK, w.Code)
	req.Empty(session.history)

	w = serve(r, http.MethodGet, "/api/v1/rooms/r1/messages?limit=20&offset=40", "")
	req.Equal(http.StatusOK, w.Code)
	req.Equal([][2]int{{20, 40}}, session.history)

	w = serve(r, http.MethodGet, "/api/v1/rooms/r1/messages?limit=abc", "")
	req.Equal(http.StatusBadRequest, w.Code)
}

func TestSessionController_SendMessage(t *testing.T) {
	req := require.New(t)
	session := newFakeSession()
	r := newTestRouter(session)

	w := serve(r, http.MethodPost, "/api/v1/rooms/r1/messages", `{"content":"hello"}`)
	req.Equal(http.StatusCreated, w.Code)
	req.Len(session.sent, 1)
	req.Equal(models.ContentText, session.sent[0].ContentType)
	req.Equal("r1", session.sent[0].RoomID)

	w = serve(r, http.MethodPost, "/api/v1/rooms/r1/messages", `{}`)
	req.Equal(http.StatusBadRequest, w.Code)
}

func TestSessionController_SendMessageMapsErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not ready", errors.NewStateError("NOT_READY", "session is not ready"), http.StatusConflict},
		{"throttled", errors.NewRateLimitError("SEND_THROTTLED", "slow down"), http.StatusTooManyRequests},
		{"timeout", errors.NewTimeoutError("REQUEST_TIMEOUT", "no reply"), http.StatusGatewayTimeout},
		{"rejected", errors.NewRequestError("FORBIDDEN", "not a member"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := newFakeSession()
			session.fail = tt.err
			w := serve(newTestRouter(session), http.MethodPost, "/api/v1/rooms/r1/messages", `{"content":"x"}`)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	live := true
	checker := health.NewChecker(logger.NewNop(), 0)
	checker.RegisterConnectionCheck(func() (string, bool) {
		if live {
			return "connected", true
		}
		return "errored", false
	})

	r := gin.New()
	NewHealthHandler(checker).RegisterHealthRoutes(r)

	checker.RunChecks()
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/health", "").Code)

	live = false
	checker.RunChecks()
	w := serve(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "errored")
}
