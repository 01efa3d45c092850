package http

import (
	"net/http"

	"github.com/jmehdipour/saas-gateway/internal/apperr"
	"github.com/jmehdipour/saas-gateway/internal/http/middleware"
	"github.com/jmehdipour/saas-gateway/internal/model"
	"github.com/jmehdipour/saas-gateway/internal/service/messaging"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type sendResp struct {
	Success           bool   `json:"success"`
	MessageID         string `json:"messageId"`
	ProviderMessageID string `json:"providerMessageId,omitempty"`
	Status            string `json:"status"`
	Recipient         string `json:"recipient,omitempty"`
	Duplicate         bool   `json:"duplicate,omitempty"`
}

func sendWhatsAppHandler(svc *messaging.Service, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		caller, ok := middleware.CallerFromCtx(c)
		if !ok {
			return writeError(c, log, &apperr.AuthenticationError{Message: "Unauthorized"})
		}

		var req model.SendRequest
		if err := c.Bind(&req); err != nil {
			return writeError(c, log, apperr.Validation("body", "invalid request body"))
		}

		res, err := svc.Send(c.Request().Context(), caller, req)
		if err != nil {
			return writeError(c, log, err)
		}

		out := sendResp{
			Success:           true,
			MessageID:         res.MessageID,
			ProviderMessageID: res.ProviderMessageID,
			Status:            res.Status.String(),
		}
		if res.Duplicate {
			out.Duplicate = true
		} else {
			out.Recipient = res.Recipient
		}
		return c.JSON(http.StatusOK, out)
	}
}
