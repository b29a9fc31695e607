package main

import (
	"encoding/json"
	"net/http"

	"chitchat/internal/metrics"
	"chitchat/internal/service"
	"chitchat/internal/tracing"

	"github.com/sirupsen/logrus"
)

// metricsResponse is the body of GET /metrics.
type metricsResponse struct {
	metrics.Snapshot
	Sessions int `json:"fanout_sessions"`
}

// handleMetrics returns the current application metrics
func (s *Server) handleMetrics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fields := logrus.Fields{
			service.LogFieldRequestID: tracing.RequestID(r.Context()),
			service.LogFieldTraceID:   tracing.TraceID(r.Context()),
			service.LogFieldURL:       "/metrics",
		}

		body := metricsResponse{
			Snapshot: metrics.OrGlobal(s.svc.Registry).GetAllMetrics(),
			Sessions: s.svc.Hub.SessionCount(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")

		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(body); err != nil {
			s.logger.WithFields(fields).WithError(err).Error("Failed to encode metrics response")
			return
		}

		s.logger.WithFields(fields).Debug("Metrics endpoint served")
	}
}
