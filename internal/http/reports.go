package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/jmehdipour/saas-gateway/internal/apperr"
	"github.com/jmehdipour/saas-gateway/internal/auth"
	"github.com/jmehdipour/saas-gateway/internal/http/middleware"
	"github.com/jmehdipour/saas-gateway/internal/model"
	"github.com/jmehdipour/saas-gateway/internal/util"
	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// MessageLister reads an organization's audit trail.
type MessageLister interface {
	ListByOrganization(ctx context.Context, orgID, phone string, status model.MessageStatus, limit, offset int) ([]model.Message, error)
}

// OrgAuthorizer checks that the caller owns an organization.
type OrgAuthorizer interface {
	Authorize(ctx context.Context, caller auth.Identity, orgID string) error
}

func listMessagesHandler(authz OrgAuthorizer, lister MessageLister, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		caller, ok := middleware.CallerFromCtx(c)
		if !ok {
			return writeError(c, log, &apperr.AuthenticationError{Message: "Unauthorized"})
		}

		orgID := c.Param("org_id")
		if err := authz.Authorize(c.Request().Context(), caller, orgID); err != nil {
			return writeError(c, log, err)
		}

		limit := 50
		offset := 0
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
				limit = n
			}
		}
		if v := c.QueryParam("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				offset = n
			}
		}

		var st model.MessageStatus
		if raw := strings.TrimSpace(c.QueryParam("status")); raw != "" {
			tmp := model.MessageStatus(raw)
			if tmp.Valid() {
				st = tmp
			}
		}

		phone := util.NormalizePhone(strings.TrimSpace(c.QueryParam("phone")))

		msgs, err := lister.ListByOrganization(c.Request().Context(), orgID, phone, st, limit, offset)
		if err != nil {
			log.Error("clickhouse list failed", zap.String("org_id", orgID), zap.Error(err))
			return c.JSON(http.StatusInternalServerError, errorBody{Success: false, Error: "query failed"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"success": true,
			"limit":   limit,
			"offset":  offset,
			"count":   len(msgs),
			"results": msgs,
		})
	}
}
