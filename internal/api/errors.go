package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/api/respond"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/model"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/services"
)

// MaxBodyBytes caps JSON request bodies. Inline images travel as data URIs,
// hence the generous limit.
const MaxBodyBytes = 5 << 20

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
// On failure the response has already been written.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.WriteError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		respond.WriteBadRequest(w, "Invalid JSON")
		return false
	}
	return true
}

// writeServiceError maps service errors onto status codes. Only
// infrastructure failures are logged.
func writeServiceError(w http.ResponseWriter, log zerolog.Logger, op string, err error) {
	var ve services.ValidationError
	var ne services.NotFoundError
	switch {
	case errors.As(err, &ve):
		respond.WriteBadRequest(w, ve.Message)
	case errors.As(err, &ne):
		respond.WriteNotFound(w, ne.Message)
	case errors.Is(err, model.ErrConflict):
		log.Warn().Err(err).Str("op", op).Msg("write conflict persisted after retries")
		respond.WriteError(w, http.StatusConflict, "Message was updated concurrently, please retry")
	default:
		log.Error().Stack().Err(err).Str("op", op).Msg("request failed")
		respond.WriteInternalError(w, "Internal server error")
	}
}
