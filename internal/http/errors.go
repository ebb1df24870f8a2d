package http

import (
	"errors"
	"net/http"

	"conti/internal/core"
	applog "conti/internal/log"
	"conti/internal/services"
	"conti/internal/split"
)

// writeError maps a service error onto a status code and JSON body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	errorFor(r, err).Write(w)
}

func errorFor(r *http.Request, err error) *ResponseBuilder {
	var ve *split.ValidationError
	var ie *services.InputError
	switch {
	case errors.As(err, &ve):
		body := errorBody{Error: ve.Reason.Error(), Field: ve.Field}
		if !ve.Discrepancy.IsZero() {
			body.Discrepancy = ve.Discrepancy.String()
		}
		return NewResponse().Status(http.StatusUnprocessableEntity).JSON(body)
	case errors.As(err, &ie):
		return NewResponse().Status(http.StatusUnprocessableEntity).JSON(errorBody{Error: ie.Err.Error(), Field: ie.Field})
	case errors.Is(err, errBadRequest):
		return BadRequestError(err.Error())
	case errors.Is(err, core.ErrNotFound):
		return NotFoundError(err.Error())
	case errors.Is(err, core.ErrForbidden):
		return ErrorResponse(http.StatusForbidden, err.Error())
	case errors.Is(err, core.ErrConflict):
		return ErrorResponse(http.StatusConflict, err.Error())
	default:
		applog.NewStructuredLogger(applog.FromContext(r.Context())).LogRequestError(r.Context(), r, err)
		return InternalServerError("internal error")
	}
}
