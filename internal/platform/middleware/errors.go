package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/careline/careline/internal/platform/apperr"
	"github.com/careline/careline/pkg/envelope"
)

// ErrorHandler returns an echo.HTTPErrorHandler that renders every error in
// the response envelope. Domain kinds map through apperr.StatusCode; echo
// errors keep their code. Details of 5xx errors are logged, not returned.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := statusFromError(err)
		errText := errorText(err)

		if status >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).
				Str("request_id", rid).
				Str("method", c.Request().Method).
				Str("route", c.Path()).
				Int("status", status).
				Msg("request failed")
			if status == http.StatusInternalServerError {
				errText = "internal server error"
			}
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = envelope.Fail(c, status, http.StatusText(status), errText)
		}
		if writeErr != nil {
			logger.Error().Err(writeErr).Msg("write error response")
		}
	}
}

func statusFromError(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return apperr.StatusCode(err)
}

func errorText(err error) string {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Internal != nil && he.Code >= http.StatusInternalServerError {
			return he.Internal.Error()
		}
		if msg, ok := he.Message.(string); ok {
			return msg
		}
		return fmt.Sprintf("%v", he.Message)
	}
	return err.Error()
}
