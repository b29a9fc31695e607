package httputil

import (
	"encoding/json"
	"net/http"

	apperrors "chitchat/internal/errors"
	"chitchat/internal/tracing"

	"github.com/sirupsen/logrus"
)

// WriteJSON writes v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps err to its HTTP status and writes the standard error body.
// Server faults are logged; client faults are left to the access log.
func WriteError(w http.ResponseWriter, r *http.Request, logger logrus.FieldLogger, err error) {
	status := apperrors.HTTPStatusCode(err)
	requestID := tracing.RequestID(r.Context())
	if status >= http.StatusInternalServerError && logger != nil {
		apperrors.Entry(logger, err).WithField("request_id", requestID).Error("Request failed")
	}
	WriteJSON(w, status, apperrors.ToHTTPResponse(err, requestID))
}
