package server

import (
	"encoding/json"
	"net/http"

	"github.com/habedi/dogs/pkg/apierr"
	"github.com/rs/zerolog/log"
)

// APIError is the body of every error response.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(value); err != nil {
		log.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// writeError renders err with the status and message its apierr.Type maps to.
// Untyped errors become a 500 without leaking details.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apierr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("Request failed")
	} else {
		log.Debug().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("Request rejected")
	}
	writeJSON(w, status, ErrorResponse{Error: APIError{
		Code:      string(apierr.TypeOf(err)),
		Message:   apierr.Message(err),
		RequestID: RequestIDFrom(r.Context()),
	}})
}

// decodeJSON reads a JSON body, rejecting unknown fields.
func decodeJSON(r *http.Request, value any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(value); err != nil {
		return apierr.New(apierr.Validation, "Invalid request body", err)
	}
	return nil
}
