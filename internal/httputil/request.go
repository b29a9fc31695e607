package httputil

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	apperrors "chitchat/internal/errors"
)

// MaxRequestBodyBytes bounds every JSON request body.
const MaxRequestBodyBytes = 1 << 20

// DecodeJSON reads a single JSON object from the request body into v.
// Unknown fields are ignored; an empty or malformed body is an invalid
// input error.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	body := http.MaxBytesReader(w, r.Body, MaxRequestBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case stderrors.As(err, &tooLarge):
			return apperrors.New(apperrors.ErrCodeInvalidInput, "request body too large").
				WithUserMessage("Request body is too large")
		case stderrors.Is(err, io.EOF):
			return apperrors.New(apperrors.ErrCodeInvalidInput, "empty request body").
				WithUserMessage("Request body is required")
		default:
			return apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "malformed JSON body").
				WithUserMessage("Request body is not valid JSON")
		}
	}
	return nil
}
