package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"arcade-pot/internal/payment"
	"arcade-pot/internal/pricing"
	"arcade-pot/internal/scoring"
	"arcade-pot/internal/session"
	"arcade-pot/internal/settlement"
	"arcade-pot/internal/storage"
	"arcade-pot/internal/verifier"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

// statusFor maps an error to its HTTP status and retryability.
func statusFor(err error) (int, bool) {
	switch {
	case errors.Is(err, payment.ErrInvalidRequest),
		errors.Is(err, storage.ErrInvalidInput),
		scoring.IsValidationError(err):
		return http.StatusBadRequest, false

	case errors.Is(err, session.ErrDuplicateTransaction),
		errors.Is(err, session.ErrAlreadySubmitted),
		errors.Is(err, settlement.ErrAlreadySettled):
		return http.StatusConflict, false

	case verifier.Retryable(err), errors.Is(err, pricing.ErrUnavailable):
		return http.StatusServiceUnavailable, true

	case errors.Is(err, verifier.ErrReverted),
		errors.Is(err, verifier.ErrWrongRecipient),
		errors.Is(err, verifier.ErrZeroValue),
		errors.Is(err, verifier.ErrInsufficientAmount),
		errors.Is(err, verifier.ErrStale):
		return http.StatusUnprocessableEntity, false

	case errors.Is(err, session.ErrInvalidSession):
		return http.StatusUnauthorized, false

	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, settlement.ErrNoWinnerRecord),
		errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, false

	default:
		return http.StatusInternalServerError, false
	}
}

// message returns the client-facing text of err.
func message(err error, status int) string {
	switch {
	case status == http.StatusInternalServerError:
		return "Internal server error."
	case errors.Is(err, pricing.ErrUnavailable):
		return "Price feed temporarily unavailable. Try again in a moment."
	case errors.Is(err, session.ErrDuplicateTransaction):
		return "This transaction has already been used for a game session."
	case errors.Is(err, session.ErrAlreadySubmitted):
		return "A score has already been submitted for this session."
	case errors.Is(err, session.ErrInvalidSession):
		return "Session token is invalid or has expired."
	case errors.Is(err, session.ErrSessionNotFound):
		return "Session not found."
	case errors.Is(err, settlement.ErrNoWinnerRecord):
		return "No winner record found for that day."
	default:
		return err.Error()
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status, retryable := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.AbortWithStatusJSON(status, errorBody{Error: message(err, status), Retryable: retryable})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: msg})
}
