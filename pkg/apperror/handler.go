package apperror

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

var statusCodes = map[int]string{
	http.StatusUnauthorized:        "unauthorized",
	http.StatusForbidden:           "forbidden",
	http.StatusNotFound:            "not_found",
	http.StatusBadRequest:          "bad_request",
	http.StatusConflict:            "conflict",
	http.StatusUnprocessableEntity: "validation_error",
}

// HTTPErrorHandler renders every error in the standard envelope. Both the
// production server and the test server install it, so handlers never shape
// error bodies themselves.
func HTTPErrorHandler(log *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		body := map[string]any{
			"code":    "internal_error",
			"message": "An internal error occurred",
		}

		var appErr *Error
		var echoErr *echo.HTTPError
		switch {
		case errors.As(err, &appErr):
			status = appErr.HTTPStatus
			body["code"] = appErr.Code
			body["message"] = appErr.Message
			if len(appErr.Details) > 0 {
				body["details"] = appErr.Details
			}

		case errors.As(err, &echoErr):
			status = echoErr.Code
			switch msg := echoErr.Message.(type) {
			case map[string]any:
				// Pre-shaped envelope, e.g. from the scope middleware.
				if inner, ok := msg["error"].(map[string]any); ok {
					for k, v := range inner {
						body[k] = v
					}
				}
			case string:
				body["message"] = msg
				if code, ok := statusCodes[status]; ok {
					body["code"] = code
				}
			}
		}

		if status >= 500 {
			log.Error("request error",
				slog.Int("status", status),
				slog.String("error", err.Error()))
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, map[string]any{"error": body})
	}
}
