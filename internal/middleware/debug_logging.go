package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"chitchat/internal/privacy"
	"chitchat/internal/service"
	"chitchat/internal/tracing"

	"github.com/gorilla/mux"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// DebugLoggingConfig controls what the debug request logger records.
type DebugLoggingConfig struct {
	LogRequestHeaders bool
	LogRequestBody    bool
	MaxBodySize       int
	SensitiveHeaders  []string
	SkipEndpoints     []string
}

func DefaultDebugLoggingConfig() DebugLoggingConfig {
	return DebugLoggingConfig{
		LogRequestHeaders: true,
		LogRequestBody:    true,
		MaxBodySize:       4096,
		SensitiveHeaders:  []string{"authorization", "cookie", "x-api-key"},
		SkipEndpoints:     []string{"/metrics", "/health", "/ws"},
	}
}

// DebugLoggingMiddleware logs request headers and JSON bodies at debug
// level. Secrets and message text are masked before they reach the log.
func DebugLoggingMiddleware(logger *logrus.Logger, config DebugLoggingConfig) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !logger.IsLevelEnabled(logrus.DebugLevel) || lo.Contains(config.SkipEndpoints, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			fields := logrus.Fields{
				service.LogFieldRequestID: tracing.RequestID(r.Context()),
				service.LogFieldMethod:    r.Method,
				service.LogFieldURL:       r.URL.Path,
				"content_length":          r.ContentLength,
			}

			if config.LogRequestHeaders {
				headers := make(map[string]string, len(r.Header))
				for name, values := range r.Header {
					if isSensitiveHeader(name, config.SensitiveHeaders) {
						headers[name] = "***MASKED***"
					} else {
						headers[name] = strings.Join(values, ", ")
					}
				}
				fields["request_headers"] = headers
			}

			if config.LogRequestBody && isJSON(r) && r.ContentLength > 0 && r.ContentLength <= int64(config.MaxBodySize) {
				body, err := io.ReadAll(r.Body)
				if err == nil {
					r.Body = io.NopCloser(bytes.NewReader(body))
					fields["request_body"] = maskJSONBody(body)
				}
			}

			logger.WithFields(fields).Debug("Request details")
			next.ServeHTTP(w, r)
		})
	}
}

// maskJSONBody masks known sensitive top-level keys of a JSON object.
// A body that is not a JSON object is replaced by a placeholder.
func maskJSONBody(body []byte) interface{} {
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "[unparseable body]"
	}
	return privacy.MaskSensitiveFields(payload)
}

func isSensitiveHeader(headerName string, sensitiveHeaders []string) bool {
	return lo.ContainsBy(sensitiveHeaders, func(h string) bool {
		return strings.EqualFold(h, headerName)
	})
}

func isJSON(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}
