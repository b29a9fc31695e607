package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsVerboseLogging(t *testing.T) {
	ctx := context.Background()
	assert.False(t, IsVerboseLogging(ctx))
	assert.True(t, IsVerboseLogging(WithVerbose(ctx, true)))
	assert.False(t, IsVerboseLogging(WithVerbose(ctx, false)))
	assert.False(t, IsVerboseLogging(context.WithValue(ctx, VerboseContextKey, "yes")))
}

func TestMessageFields_MasksUnlessVerbose(t *testing.T) {
	content := "see you at the station tomorrow"

	fields := messageFields(context.Background(), "01HZXA3BQ7R9K2M4N6P8S0T1V3", "chat-1", "user123456", content)
	assert.Equal(t, "01HZXA3B...", fields[LogFieldMessageID])
	assert.Equal(t, "chat-1", fields[LogFieldChatID])
	assert.Equal(t, "******3456", fields[LogFieldSenderID])
	assert.NotEqual(t, content, fields[LogFieldContent])

	verbose := messageFields(WithVerbose(context.Background(), true), "m1", "chat-1", "u1", content)
	assert.Equal(t, content, verbose[LogFieldContent])
}
