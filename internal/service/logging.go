package service

import (
	"context"

	"chitchat/internal/privacy"

	"github.com/sirupsen/logrus"
)

// ContextKey is a package-local type to prevent context key collisions
type ContextKey string

// VerboseContextKey marks a request whose logs may carry message content.
const VerboseContextKey ContextKey = "verbose"

// WithVerbose returns a context whose logs include unmasked content.
func WithVerbose(ctx context.Context, verbose bool) context.Context {
	return context.WithValue(ctx, VerboseContextKey, verbose)
}

// IsVerboseLogging checks if verbose logging is enabled from context
func IsVerboseLogging(ctx context.Context) bool {
	if verbose, ok := ctx.Value(VerboseContextKey).(bool); ok {
		return verbose
	}
	return false
}

// contentForLog returns the message text only in verbose mode.
func contentForLog(ctx context.Context, content string) string {
	if IsVerboseLogging(ctx) {
		return content
	}
	return privacy.MaskContent(content)
}

// messageFields returns the standard fields describing a message.
func messageFields(ctx context.Context, msgID, chatID, senderID, content string) logrus.Fields {
	return logrus.Fields{
		LogFieldMessageID: privacy.MaskMessageID(msgID),
		LogFieldChatID:    chatID,
		LogFieldSenderID:  privacy.MaskUserID(senderID),
		LogFieldContent:   contentForLog(ctx, content),
	}
}
