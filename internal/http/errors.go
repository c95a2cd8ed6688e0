package http

import (
	"errors"
	"net/http"

	"budgettracker/internal/auth"
	"budgettracker/internal/core"
	"budgettracker/internal/log"
)

// errorResponse maps an error onto the envelope and its HTTP status.
// Unclassified errors keep their detail out of the response body.
func errorResponse(err error) *JSONResponseBuilder {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return UnauthorizedError("token expired")
	case errors.Is(err, auth.ErrTokenInvalid), errors.Is(err, core.ErrUnauthorized):
		return UnauthorizedError("missing or invalid token")
	case errors.Is(err, core.ErrInvalidCredentials):
		return UnauthorizedError("invalid username or password")
	case errors.Is(err, core.ErrForbidden):
		return ForbiddenError("insufficient role")
	case errors.Is(err, core.ErrSignupDisabled):
		return ForbiddenError(core.ErrSignupDisabled.Error())
	case errors.Is(err, core.ErrUserNotFound):
		return NotFoundError(core.ErrUserNotFound.Error())
	case errors.Is(err, errMalformedBody):
		return BadRequestError(errMalformedBody.Error())
	case core.IsValidation(err):
		return BadRequestError(validationMessage(err))
	case errors.Is(err, core.ErrDuplicateEmail):
		return InternalServerError(core.ErrDuplicateEmail.Error())
	case errors.Is(err, core.ErrDuplicateUsername):
		return InternalServerError(core.ErrDuplicateUsername.Error())
	default:
		return InternalServerError("internal server error")
	}
}

func validationMessage(err error) string {
	for _, target := range []error{
		core.ErrInvalidAmount, core.ErrInvalidCategory, core.ErrInvalidEntryKind, core.ErrInvalidRole,
		core.ErrInvalidEmail, core.ErrMissingFields, core.ErrFieldTooLong, core.ErrInvalidUserID,
	} {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return "invalid request"
}

// writeError logs err at a level matching its class and writes the envelope.
func writeError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	resp := errorResponse(err)
	logger := log.FromContext(r.Context())
	if resp.statusCode >= http.StatusInternalServerError {
		log.NewStructuredLogger(logger).LogError(r.Context(), "Request failed", err, operation,
			log.NewFields().WithErrorType(log.ErrorTypeInternal))
	} else {
		logger.DebugContext(r.Context(), "Request rejected",
			log.FieldOperation, operation,
			log.FieldStatusCode, resp.statusCode,
			log.FieldError, err)
	}
	resp.Write(w)
}
