package http

import (
	"io"
	"net/http"

	"github.com/jmehdipour/saas-gateway/internal/apperr"
	"github.com/jmehdipour/saas-gateway/internal/metrics"
	"github.com/jmehdipour/saas-gateway/internal/provider"
	"github.com/jmehdipour/saas-gateway/internal/proxy"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const maxProxyBody = 1 << 20

type dataResp struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

func proxyHandler(reg *proxy.Registry, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxProxyBody))
		if err != nil {
			return writeError(c, log, apperr.Validation("body", "invalid request body"))
		}

		req, err := proxy.ParseRequest(body)
		if err != nil {
			return writeError(c, log, err)
		}

		res, err := reg.Dispatch(c.Request().Context(), req)
		if err != nil {
			log.Warn("proxy call failed",
				zap.String("provider", reg.Provider()),
				zap.String("action", req.Action),
				zap.Error(err),
			)
			return writeError(c, log, err)
		}

		status := res.StatusCode
		if status == 0 {
			status = http.StatusOK
		}
		return c.JSON(status, dataResp{Success: true, Data: res.Data})
	}
}

func sendEmailHandler(mailer *provider.Mailer, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req provider.Email
		if err := c.Bind(&req); err != nil {
			return writeError(c, log, apperr.Validation("body", "invalid request body"))
		}

		status, data, err := mailer.Send(c.Request().Context(), req)
		metrics.ProxyCallsTotal.WithLabelValues("Resend", "send_email", metrics.Outcome(err)).Inc()
		if err != nil {
			log.Warn("email send failed", zap.Error(err))
			return writeError(c, log, err)
		}

		return c.JSON(status, dataResp{Success: true, Data: data})
	}
}
