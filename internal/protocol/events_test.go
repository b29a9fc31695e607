package protocol

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"chitchat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClientEvent(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		want    ClientEvent
		wantErr string
	}{
		{name: "setup", frame: `{"type":"setup"}`, want: Setup{}},
		{name: "join", frame: `{"type":"join-chat","data":{"chatId":"c1"}}`, want: JoinChat{ChatID: "c1"}},
		{name: "leave", frame: `{"type":"leave-chat","data":{"chatId":"c1"}}`, want: LeaveChat{ChatID: "c1"}},
		{name: "typing trims", frame: `{"type":"typing","data":{"chatId":" c1 "}}`, want: Typing{ChatID: "c1"}},
		{name: "stop typing", frame: `{"type":"stop-typing","data":{"chatId":"c1"}}`, want: StopTyping{ChatID: "c1"}},
		{name: "unknown kind", frame: `{"type":"new message","data":{}}`, wantErr: "unknown event type"},
		{name: "server kind from client", frame: `{"type":"message-delivered","data":{}}`, wantErr: "unknown event type"},
		{name: "missing type", frame: `{"data":{"chatId":"c1"}}`, wantErr: "missing event type"},
		{name: "missing payload", frame: `{"type":"typing"}`, wantErr: "requires chatId"},
		{name: "empty chat id", frame: `{"type":"join-chat","data":{"chatId":""}}`, wantErr: "requires chatId"},
		{name: "wrong payload type", frame: `{"type":"join-chat","data":{"chatId":5}}`, wantErr: "malformed"},
		{name: "not json", frame: `hello`, wantErr: "malformed envelope"},
		{name: "too long", frame: `{"type":"typing","data":{"chatId":"` + strings.Repeat("x", 200) + `"}}`, wantErr: "too long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseClientEvent([]byte(tt.frame))
			if tt.wantErr != "" {
				require.Error(t, err)
				var invalidErr *InvalidEventError
				assert.ErrorAs(t, err, &invalidErr)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.Kind(), got.Kind())
		})
	}
}

func TestServerFrames(t *testing.T) {
	frame, err := SessionReadyFrame("u1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"session-ready","data":{"userId":"u1"}}`, string(frame))

	frame, err = PresenceFrame("c1", "u2", true)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"typing-started","data":{"chatId":"c1","userId":"u2"}}`, string(frame))

	frame, err = PresenceFrame("c1", "", false)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"typing-stopped","data":{"chatId":"c1"}}`, string(frame))

	frame, err = ErrorFrame(ErrCodeInvalidEvent, "bad")
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","data":{"code":"invalid_event","message":"bad"}}`, string(frame))
}

func TestMessageDeliveredFrame(t *testing.T) {
	msg := &models.Message{ID: "m1", SenderID: "u1", ChatID: "c1", Content: "hi", ReadBy: []string{}, CreatedAt: time.Unix(0, 0).UTC()}
	frame, err := MessageDeliveredFrame(msg)
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(frame, &env))
	assert.Equal(t, KindMessageDelivered, env.Type)

	var payload MessageDelivered
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, "m1", payload.Message.ID)
	assert.Nil(t, payload.Message.ScheduledFor)
}
