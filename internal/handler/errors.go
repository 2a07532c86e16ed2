package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"versioned-notes-server/internal/domain"
	"versioned-notes-server/pkg/response"
)

// statusClientClosedRequest is recorded when the caller went away before the
// response was written. Nothing reaches the client; it only shows in logs.
const statusClientClosedRequest = 499

// writeError maps domain sentinels to status codes. Only 5xx causes are logged;
// their text never reaches the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var maxBytesErr *http.MaxBytesError

	switch {
	case errors.Is(err, context.Canceled):
		zerolog.Ctx(r.Context()).Debug().Err(err).Msg("request cancelled by client")
		response.Error(w, statusClientClosedRequest, "Request cancelled")
	case errors.Is(err, domain.ErrValidation):
		response.BadRequest(w, err.Error())
	case errors.Is(err, domain.ErrUnauthenticated):
		response.Unauthorized(w, "Authentication required")
	case errors.Is(err, domain.ErrForbidden):
		response.Forbidden(w, "Note belongs to another account")
	case errors.Is(err, domain.ErrNotFound):
		response.NotFound(w, "Not found")
	case errors.Is(err, domain.ErrConflict):
		response.Conflict(w, "Resource already exists")
	case errors.Is(err, domain.ErrUnsupportedType):
		response.UnsupportedMediaType(w, err.Error())
	case errors.Is(err, domain.ErrTooLarge), errors.As(err, &maxBytesErr):
		response.TooLarge(w, "Upload exceeds the size limit")
	case errors.Is(err, domain.ErrTransient), errors.Is(err, context.DeadlineExceeded):
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("storage unavailable")
		response.ServiceUnavailable(w, "Storage temporarily unavailable, retry later")
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
		response.InternalError(w, "Internal server error")
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fe.Field() + " failed on the '" + fe.Tag() + "' rule"
	}
	return err.Error()
}
