package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/driftlog-app/driftlog/backend/internal/models"
	"github.com/driftlog-app/driftlog/backend/internal/pagination"
	"github.com/driftlog-app/driftlog/backend/internal/repositories"
	"github.com/driftlog-app/driftlog/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// getUserIDFromContext returns the authenticated user's id, or an empty
// string for anonymous requests.
func getUserIDFromContext(c echo.Context) string {
	if id, ok := c.Get("userID").(string); ok {
		return id
	}
	return ""
}

// isAdminFromContext reports whether the session carries the admin flag.
func isAdminFromContext(c echo.Context) bool {
	if admin, ok := c.Get("isAdmin").(bool); ok {
		return admin
	}
	return false
}

// pageParams reads cursor pagination query parameters. Out-of-range limits
// are clamped downstream, so garbage input falls back to the defaults.
func pageParams(c echo.Context) pagination.Params {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	return pagination.Params{Cursor: c.QueryParam("cursor"), Limit: limit}
}

// serviceError maps engine errors to transport statuses, attaching the
// stable error code. Unrecognized errors become an opaque 500 so storage
// internals never reach clients.
func serviceError(err error) error {
	var status int
	code := services.ErrorCode(err)
	switch {
	case errors.Is(err, services.ErrTargetNotFound),
		errors.Is(err, services.ErrParentNotFound),
		errors.Is(err, services.ErrCommentNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrParentDeleted):
		status = http.StatusGone
	case errors.Is(err, services.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, services.ErrParentMismatch),
		errors.Is(err, services.ErrBatchTooLarge),
		errors.Is(err, services.ErrEmptyTargetID),
		errors.Is(err, services.ErrEmptyContent):
		status = http.StatusBadRequest
	case errors.Is(err, pagination.ErrInvalidCursor):
		status = http.StatusBadRequest
		code = "INVALID_CURSOR"
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "Something went wrong")
	}
	return echo.NewHTTPError(status, echo.Map{"code": code, "message": err.Error()})
}

// recordAudit writes one audit event without holding up the response. The
// sink is best effort; failures are logged and dropped.
func recordAudit(audit repositories.AuditRepository, action, actorID, targetType, targetID, result string) {
	if audit == nil {
		return
	}
	go func() {
		event := &models.AuditEvent{
			Action:     action,
			ActorID:    actorID,
			TargetType: targetType,
			TargetID:   targetID,
			Result:     result,
		}
		if err := audit.RecordEvent(context.Background(), event); err != nil {
			log.Println("Audit event write failed:", err)
		}
	}()
}
