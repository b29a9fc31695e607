package middleware

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"chitchat/internal/httputil"
	"chitchat/internal/metrics"
	"chitchat/internal/service"
	"chitchat/internal/tracing"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// RequestIDHeader echoes the request id back to the client.
const RequestIDHeader = "X-Request-ID"

// ObservabilityMiddleware adds a span, a request id, metrics and access
// logs to every request. Endpoint labels use the mux route template so
// path parameters do not explode metric cardinality.
func ObservabilityMiddleware(logger *logrus.Logger, registry *metrics.Registry) mux.MiddlewareFunc {
	registry = metrics.OrGlobal(registry)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			endpoint := routeTemplate(r)
			clientIP := httputil.GetClientIP(r)

			ctx, span := tracing.StartSpan(r.Context(), "http "+r.Method+" "+endpoint,
				attribute.String("http.method", r.Method),
				attribute.String("http.route", endpoint),
				attribute.String("client.address", clientIP),
			)
			defer span.End()

			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = tracing.NewRequestID()
			}
			ctx = tracing.WithRequestID(ctx, requestID)
			r = r.WithContext(ctx)
			w.Header().Set(RequestIDHeader, requestID)

			wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapper, r)

			duration := time.Since(start)
			status := strconv.Itoa(wrapper.statusCode)

			span.SetAttributes(
				attribute.Int("http.response.status_code", wrapper.statusCode),
				attribute.Int64("http.response.size", wrapper.responseSize),
			)
			if wrapper.statusCode >= 500 {
				span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", wrapper.statusCode))
			}

			labels := map[string]string{"method": r.Method, "endpoint": endpoint, "status_code": status}
			registry.IncrementCounter(metrics.HTTPRequests, labels, "HTTP requests by endpoint and status")
			registry.RecordTimer(metrics.HTTPRequestDuration, duration, map[string]string{
				"method":   r.Method,
				"endpoint": endpoint,
			}, "HTTP request duration")

			logLevel := logrus.InfoLevel
			switch {
			case wrapper.statusCode >= 500:
				logLevel = logrus.ErrorLevel
			case wrapper.statusCode >= 400:
				logLevel = logrus.WarnLevel
			case endpoint == "/health" || endpoint == "/metrics":
				logLevel = logrus.DebugLevel
			}

			logger.WithFields(logrus.Fields{
				service.LogFieldRequestID:  requestID,
				service.LogFieldTraceID:    tracing.TraceID(ctx),
				service.LogFieldMethod:     r.Method,
				service.LogFieldURL:        endpoint,
				service.LogFieldStatusCode: wrapper.statusCode,
				service.LogFieldDuration:   duration.Milliseconds(),
				service.LogFieldRemoteIP:   clientIP,
				service.LogFieldSize:       wrapper.responseSize,
			}).Log(logLevel, "HTTP request completed")
		})
	}
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// responseWrapper captures response metrics
type responseWrapper struct {
	http.ResponseWriter
	statusCode   int
	responseSize int64
	wroteHeader  bool
}

func (rw *responseWrapper) WriteHeader(statusCode int) {
	if !rw.wroteHeader {
		rw.statusCode = statusCode
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWrapper) Write(data []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(data)
	rw.responseSize += int64(n)
	return n, err
}

// Hijack lets the websocket endpoint take over the connection.
func (rw *responseWrapper) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	rw.wroteHeader = true
	return hj.Hijack()
}

func (rw *responseWrapper) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
