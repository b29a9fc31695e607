package versioning

import (
	"context"
	"net/http"

	apperrors "chitchat/internal/errors"
	"chitchat/internal/httputil"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const (
	// AcceptVersionHeader lets a client pin the API version it was written against.
	AcceptVersionHeader = "Accept-Version"
	// APIVersionHeader is accepted as a fallback request header and always
	// echoed on responses with the negotiated version.
	APIVersionHeader        = "X-API-Version"
	SupportedVersionsHeader = "X-Supported-Versions"
)

type contextKey struct{}

// FromContext returns the version negotiated for the request.
func FromContext(ctx context.Context) (APIVersion, bool) {
	v, ok := ctx.Value(contextKey{}).(APIVersion)
	return v, ok
}

func requested(r *http.Request) (string, string) {
	if raw := r.Header.Get(AcceptVersionHeader); raw != "" {
		return AcceptVersionHeader, raw
	}
	return APIVersionHeader, r.Header.Get(APIVersionHeader)
}

// Middleware negotiates the API version from the request headers. Requests
// without a version get CurrentVersion; malformed or unsupported versions
// are rejected before reaching the handler.
func Middleware(logger logrus.FieldLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(SupportedVersionsHeader, SupportedRange())

			version := CurrentVersion
			if header, raw := requested(r); raw != "" {
				parsed, err := ParseVersion(raw)
				if err != nil {
					httputil.WriteError(w, r, logger, apperrors.NewValidationError(header, raw, "API version must look like 1.1.0"))
					return
				}
				if !IsSupported(parsed) {
					logger.WithFields(logrus.Fields{
						"path":              r.URL.Path,
						"requested_version": parsed.String(),
					}).Warn("Unsupported API version requested")
					httputil.WriteError(w, r, logger, apperrors.NewValidationError(header, raw, "API version "+parsed.String()+" is not supported; supported range is "+SupportedRange()))
					return
				}
				version = parsed
			}

			w.Header().Set(APIVersionHeader, version.String())
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, version)))
		})
	}
}

// RequireFeature rejects requests whose negotiated version predates feature.
func RequireFeature(feature string, logger logrus.FieldLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			version, ok := FromContext(r.Context())
			if !ok {
				version = CurrentVersion
			}
			if !Supports(version, feature) {
				httputil.WriteError(w, r, logger, apperrors.NewNotFoundError("feature", feature+" in API version "+version.String()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
