package http

import (
	"errors"
	"net/http"

	"github.com/jmehdipour/saas-gateway/internal/apperr"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// writeError renders err as {success:false, error} with its mapped status.
// Errors outside the taxonomy are logged and answered with a generic 500.
func writeError(c echo.Context, log *zap.Logger, err error) error {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError && !known(err) {
		log.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
	}
	return c.JSON(status, errorBody{Success: false, Error: apperr.PublicMessage(err)})
}

func known(err error) bool {
	var (
		ce *apperr.ConfigurationError
		pe *apperr.ProviderError
	)
	return errors.As(err, &ce) || errors.As(err, &pe)
}
