package handlers

import (
	"net/http"

	"github.com/driftlog-app/driftlog/backend/internal/dberr"
	"github.com/driftlog-app/driftlog/backend/internal/models"
	"github.com/driftlog-app/driftlog/backend/internal/pagination"
	"github.com/driftlog-app/driftlog/backend/internal/repositories"
	"github.com/driftlog-app/driftlog/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	notificationRepository repositories.NotificationRepository
	userRepository         repositories.UserRepository
	signer                 services.MediaSigner
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notifRepo repositories.NotificationRepository, userRepo repositories.UserRepository, signer services.MediaSigner) *NotificationHandler {
	return &NotificationHandler{
		notificationRepository: notifRepo,
		userRepository:         userRepo,
		signer:                 signer,
	}
}

// RegisterNotificationRoutes registers notification routes
func (h *NotificationHandler) RegisterNotificationRoutes(protected *echo.Group) {
	protected.GET("/notifications", h.GetNotifications)
	protected.GET("/notifications/unread-count", h.GetUnreadCount)
	protected.PUT("/notifications/:id/read", h.MarkAsRead)
	protected.PUT("/notifications/read-all", h.MarkAllAsRead)
}

// EnrichedNotification includes actor info
type EnrichedNotification struct {
	models.Notification
	Actor models.UserSummary `json:"actor"`
}

// GetNotifications returns the viewer's notifications, newest first
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	ctx := c.Request().Context()
	currentUserID := getUserIDFromContext(c)
	if currentUserID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	params := pageParams(c).Normalized()
	var after *models.Notification
	if params.Cursor != "" {
		row, err := h.notificationRepository.GetNotificationByID(ctx, params.Cursor)
		if err != nil {
			if dberr.IsRecordNotFound(err) {
				return serviceError(pagination.ErrInvalidCursor)
			}
			return serviceError(err)
		}
		if row.RecipientID != currentUserID {
			return serviceError(pagination.ErrInvalidCursor)
		}
		after = row
	}

	rows, err := h.notificationRepository.ListByRecipient(ctx, currentUserID, after, params.FetchLimit())
	if err != nil {
		return serviceError(err)
	}
	hasMore := params.HasMore(len(rows))
	if hasMore {
		rows = rows[:params.Limit]
	}

	actorIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		actorIDs = append(actorIDs, row.ActorID)
	}
	actors, err := h.userRepository.GetUsersByIDs(ctx, actorIDs)
	if err != nil {
		return serviceError(err)
	}

	enriched := make([]EnrichedNotification, 0, len(rows))
	for _, row := range rows {
		item := EnrichedNotification{Notification: row}
		if actor, ok := actors[row.ActorID]; ok {
			avatarURL, _ := h.signer.SignURL(actor.AvatarPath)
			item.Actor = models.UserSummary{ID: actor.ID, Name: actor.Name, AvatarURL: avatarURL}
		} else {
			item.Actor = models.UserSummary{ID: row.ActorID}
		}
		enriched = append(enriched, item)
	}

	nextCursor := ""
	if hasMore && len(rows) > 0 {
		nextCursor = rows[len(rows)-1].ID
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    echo.Map{"notifications": enriched},
		"meta":    echo.Map{"hasMore": hasMore, "nextCursor": nextCursor},
	})
}

// GetUnreadCount returns the unread notification count
func (h *NotificationHandler) GetUnreadCount(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	count, err := h.notificationRepository.GetUnreadCount(c.Request().Context(), currentUserID)
	if err != nil {
		return serviceError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"count": count}})
}

// MarkAsRead marks a notification as read. The update is scoped to the
// viewer, so a foreign id is indistinguishable from a missing one.
func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	if err := h.notificationRepository.MarkAsRead(c.Request().Context(), c.Param("id"), currentUserID); err != nil {
		if dberr.IsRecordNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "Notification not found")
		}
		return serviceError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// MarkAllAsRead marks all notifications as read
func (h *NotificationHandler) MarkAllAsRead(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	if err := h.notificationRepository.MarkAllAsRead(c.Request().Context(), currentUserID); err != nil {
		return serviceError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true})
}
