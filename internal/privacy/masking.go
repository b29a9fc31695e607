package privacy

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"chitchat/internal/constants"
)

// MaskEmail keeps the first character of the local part and the domain.
// Example: "alice@example.com" -> "a****@example.com"
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}

	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return maskString(email, 2)
	}
	local, domain := email[:at], email[at:]
	first, size := utf8.DecodeRuneInString(local)
	return string(first) + strings.Repeat("*", utf8.RuneCountInString(local[size:])) + domain
}

// MaskContent hides message text, keeping a short prefix and the length.
// Example: "meet me at the station" -> "meet me at t…[22 chars]"
func MaskContent(content string) string {
	if content == "" {
		return ""
	}
	runes := []rune(content)
	if len(runes) <= constants.DefaultContentPreview {
		return "[" + strconv.Itoa(len(runes)) + " chars]"
	}
	return string(runes[:constants.DefaultContentPreview]) + "…[" + strconv.Itoa(len(runes)) + " chars]"
}

// MaskMessageID shortens a message id to its leading characters. ULIDs
// keep their timestamp prefix, which is enough to correlate log lines.
func MaskMessageID(messageID string) string {
	if len(messageID) <= constants.DefaultMessageIDLength {
		return messageID
	}
	return messageID[:constants.DefaultMessageIDLength] + "..."
}

// MaskUserID masks a user identifier
// Example: "user123456" -> "******3456"
func MaskUserID(userID string) string {
	return maskString(userID, 4)
}

// maskString masks a string showing only the last n characters
func maskString(s string, keepLast int) string {
	if s == "" {
		return ""
	}

	if len(s) <= keepLast {
		return strings.Repeat("*", len(s))
	}

	return strings.Repeat("*", len(s)-keepLast) + s[len(s)-keepLast:]
}

// MaskSensitiveFields applies appropriate masking to common logging fields
func MaskSensitiveFields(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}

	masked := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		s, isString := v.(string)
		if !isString {
			masked[k] = v
			continue
		}
		switch k {
		case "email":
			masked[k] = MaskEmail(s)
		case "content", "text":
			masked[k] = MaskContent(s)
		case "message_id", "messageId":
			masked[k] = MaskMessageID(s)
		case "user_id", "userId", "sender_id":
			masked[k] = MaskUserID(s)
		case "password", "token":
			masked[k] = "[redacted]"
		default:
			masked[k] = v
		}
	}

	return masked
}
