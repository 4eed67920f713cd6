package ws

import (
	"encoding/json"
	"testing"

	"realtime-chat/client/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloads_WireNames(t *testing.T) {
	tests := []struct {
		name    string
		payload any
		want    string
	}{
		{"getGroups", GetGroupsRequest{Limit: 10, Offset: 0}, `{"limit":10,"offset":0}`},
		{"getMessages", GetMessagesRequest{RoomID: "r3", Limit: 100, Offset: 0}, `{"roomId":"r3","limit":100,"offset":0}`},
		{"createMessage", CreateMessageRequest{GroupID: "r3", Content: "hi", ContentType: models.ContentText}, `{"groupId":"r3","content":"hi","contentType":"TEXT"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.payload)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestFrame_OmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(Frame{Event: EventCreateMessage, Data: json.RawMessage(`{}`)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"createMessage","data":{}}`, string(data))
}
