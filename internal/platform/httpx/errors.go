package httpx

import (
	"errors"
	"net/http"

	"github.com/meridian-hr/meridian-hr/internal/shared"
	"github.com/meridian-hr/meridian-hr/internal/token"
)

// ErrValidation marks request payloads that fail validation.
var ErrValidation = errors.New("validation failed")

// RespondError maps domain errors to HTTP responses using RFC7807.
// Credential failures collapse into one 401 so responses never reveal
// whether a username exists; forbidden responses keep their detail
// because the caller is already authenticated.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrInvalidCredentials),
		errors.Is(err, token.ErrRevoked),
		errors.Is(err, token.ErrMalformed),
		errors.Is(err, token.ErrSignatureInvalid),
		errors.Is(err, token.ErrWrongType),
		errors.Is(err, token.ErrExpired),
		errors.Is(err, token.ErrNoSubject):
		w.Header().Set("WWW-Authenticate", "Bearer")
		Problem(w, http.StatusUnauthorized, "Unauthorized", "could not validate credentials")
	case errors.Is(err, shared.ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
