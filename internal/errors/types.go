package errors

import (
	stderrors "errors"
	"strings"
)

// ErrorCode is the stable string clients see in the "code" field of an
// error response.
type ErrorCode string

// Client faults: the request itself is wrong and resubmitting it unchanged
// will fail again.
const (
	ErrCodeInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodeConflict         ErrorCode = "CONFLICT"
	ErrCodeAuthentication   ErrorCode = "AUTHENTICATION"
	ErrCodeAuthorization    ErrorCode = "AUTHORIZATION"
	ErrCodeRateLimited      ErrorCode = "RATE_LIMITED"
)

// Server faults. DATABASE_CONNECTION marks a store that is briefly
// unreachable; the reconciler retries such items on its next tick.
const (
	ErrCodeDatabaseConnection ErrorCode = "DATABASE_CONNECTION"
	ErrCodeDatabaseQuery      ErrorCode = "DATABASE_QUERY"
	ErrCodeTranslationAPI     ErrorCode = "TRANSLATION_API"
	ErrCodeTimeout            ErrorCode = "TIMEOUT"
	ErrCodeInvalidConfig      ErrorCode = "INVALID_CONFIG"
	ErrCodeInternalError      ErrorCode = "INTERNAL_ERROR"
)

// AppError carries a code, an internal message, optional cause and
// key/value context. UserMessage is the only text shown to clients.
type AppError struct {
	Code        ErrorCode      `json:"code"`
	Message     string         `json:"message"`
	Cause       error          `json:"-"`
	Context     map[string]any `json:"context,omitempty"`
	Retryable   bool           `json:"retryable"`
	UserMessage string         `json:"user_message,omitempty"`
}

func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *AppError) Unwrap() error { return e.Cause }

func (e *AppError) WithContext(key string, value any) *AppError {
	if e.Context == nil {
		e.Context = map[string]any{}
	}
	e.Context[key] = value
	return e
}

func (e *AppError) WithUserMessage(msg string) *AppError {
	e.UserMessage = msg
	return e
}

// AsRetryable flags the error as safe to retry later.
func (e *AppError) AsRetryable() *AppError {
	e.Retryable = true
	return e
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap attaches code and message to cause. The cause stays reachable
// through errors.Is and errors.As.
func Wrap(cause error, code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message, Cause: cause}
}

// As returns the outermost AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	ok := stderrors.As(err, &appErr)
	return appErr, ok
}

func IsRetryable(err error) bool {
	appErr, ok := As(err)
	return ok && appErr.Retryable
}

// GetCode returns the code of the outermost AppError, or INTERNAL_ERROR for
// anything else.
func GetCode(err error) ErrorCode {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return ErrCodeInternalError
}

func HasCode(err error, code ErrorCode) bool {
	return err != nil && GetCode(err) == code
}

// GetUserMessage never leaks internal messages: errors without a
// UserMessage get a generic text.
func GetUserMessage(err error) string {
	if appErr, ok := As(err); ok && appErr.UserMessage != "" {
		return appErr.UserMessage
	}
	return "An internal error occurred"
}
