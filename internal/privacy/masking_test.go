package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskEmail(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"normal", "alice@example.com", "a****@example.com"},
		{"single char local", "a@example.com", "a@example.com"},
		{"no at sign", "alice", "***ce"},
		{"leading at", "@example.com", "**********om"},
		{"multiple at signs", "a@b@example.com", "a**@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MaskEmail(tt.input))
		})
	}
}

func TestMaskContent(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"short", "hi there", "[8 chars]"},
		{"exactly preview length", "hello world!", "[12 chars]"},
		{"long", "meet me at the station", "meet me at t…[22 chars]"},
		{"multibyte", "ñññññññññññññ", "ññññññññññññ…[13 chars]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MaskContent(tt.input))
		})
	}
}

func TestMaskMessageID(t *testing.T) {
	assert.Equal(t, "", MaskMessageID(""))
	assert.Equal(t, "01HZX", MaskMessageID("01HZX"))
	assert.Equal(t, "01HZXA3B...", MaskMessageID("01HZXA3BQ7R9K2M4N6P8S0T1V3"))
}

func TestMaskUserID(t *testing.T) {
	assert.Equal(t, "", MaskUserID(""))
	assert.Equal(t, "***", MaskUserID("abc"))
	assert.Equal(t, "******3456", MaskUserID("user123456"))
}

func TestMaskSensitiveFields(t *testing.T) {
	assert.Nil(t, MaskSensitiveFields(nil))

	masked := MaskSensitiveFields(map[string]interface{}{
		"email":      "bob@example.com",
		"content":    "a fairly long secret message",
		"message_id": "01HZXA3BQ7R9K2M4N6P8S0T1V3",
		"user_id":    "user123456",
		"password":   "Hunter2!",
		"count":      3,
		"chat_id":    "chat-1",
	})

	assert.Equal(t, "b**@example.com", masked["email"])
	assert.Equal(t, "a fairly lon…[28 chars]", masked["content"])
	assert.Equal(t, "01HZXA3B...", masked["message_id"])
	assert.Equal(t, "******3456", masked["user_id"])
	assert.Equal(t, "[redacted]", masked["password"])
	assert.Equal(t, 3, masked["count"])
	assert.Equal(t, "chat-1", masked["chat_id"])
}
