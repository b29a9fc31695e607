package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "chitchat/internal/errors"
	"chitchat/internal/tracing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		expected   string
	}{
		{"remote addr only", nil, "192.0.2.1:1234", "192.0.2.1"},
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "10.0.0.1:80", "203.0.113.7"},
		{"forwarded garbage falls through", map[string]string{"X-Forwarded-For": "unknown", "X-Real-IP": "198.51.100.2"}, "10.0.0.1:80", "198.51.100.2"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.2"}, "10.0.0.1:80", "198.51.100.2"},
		{"bracketed ipv6", map[string]string{"X-Forwarded-For": "[2001:db8::1]"}, "10.0.0.1:80", "2001:db8::1"},
		{"ipv6 remote", nil, "[2001:db8::2]:443", "2001:db8::2"},
		{"remote without port", nil, "pipe", "pipe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.expected, GetClientIP(r))
		})
	}
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   apperrors.ErrorCode
	}{
		{"validation", apperrors.NewValidationError("content", "", "Content is required"), http.StatusBadRequest, apperrors.ErrCodeValidationFailed},
		{"not found", apperrors.NewNotFoundError("chat", "c1"), http.StatusNotFound, apperrors.ErrCodeNotFound},
		{"transient", apperrors.NewTransientStoreError("insert", errors.New("locked")), http.StatusServiceUnavailable, apperrors.ErrCodeDatabaseConnection},
		{"plain", errors.New("boom"), http.StatusInternalServerError, apperrors.ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/message", nil)
			r = r.WithContext(tracing.WithRequestID(r.Context(), "req_42"))
			w := httptest.NewRecorder()

			WriteError(w, r, nil, tt.err)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			var body apperrors.HTTPErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Error.Code)
			assert.Equal(t, "req_42", body.RequestID)
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"empty", "", "Request body is required"},
		{"malformed", "{\"content\":", "Request body is not valid JSON"},
		{"too large", "{\"content\":\"" + strings.Repeat("x", MaxRequestBodyBytes) + "\"}", "Request body is too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/message", strings.NewReader(tt.body))
			var dst map[string]string
			err := DecodeJSON(httptest.NewRecorder(), r, &dst)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidInput))
			assert.Equal(t, tt.message, apperrors.GetUserMessage(err))
		})
	}

	r := httptest.NewRequest(http.MethodPost, "/api/message", strings.NewReader(`{"content":"hi","extra":1}`))
	var dst struct {
		Content string `json:"content"`
	}
	require.NoError(t, DecodeJSON(httptest.NewRecorder(), r, &dst))
	assert.Equal(t, "hi", dst.Content)
}
