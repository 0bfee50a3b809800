package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/driftlog-app/driftlog/backend/internal/dberr"
	"github.com/driftlog-app/driftlog/backend/internal/models"
	"github.com/driftlog-app/driftlog/backend/internal/pagination"
	"github.com/driftlog-app/driftlog/backend/internal/repositories"
	"github.com/driftlog-app/driftlog/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// FollowHandler handles follow/unfollow HTTP requests. Follows ride the
// same interaction rows as likes and bookmarks, so racing follow taps from
// two devices settle without conflict errors.
type FollowHandler struct {
	interactionService    *services.InteractionService
	interactionRepository repositories.InteractionRepository
	userRepository        repositories.UserRepository
	auditRepository       repositories.AuditRepository
	notifier              *Notifier
	feedCache             *repositories.FeedCache
	signer                services.MediaSigner
}

// NewFollowHandler creates a new FollowHandler. feedCache may be nil when
// Redis is not configured.
func NewFollowHandler(interactionService *services.InteractionService, interactionRepo repositories.InteractionRepository, userRepo repositories.UserRepository, auditRepo repositories.AuditRepository, notifier *Notifier, feedCache *repositories.FeedCache, signer services.MediaSigner) *FollowHandler {
	return &FollowHandler{
		interactionService:    interactionService,
		interactionRepository: interactionRepo,
		userRepository:        userRepo,
		auditRepository:       auditRepo,
		notifier:              notifier,
		feedCache:             feedCache,
		signer:                signer,
	}
}

// invalidateFeed drops the viewer's cached first feed page after their
// follow set changes.
func (h *FollowHandler) invalidateFeed(userID string) {
	if h.feedCache == nil {
		return
	}
	go func() {
		if err := h.feedCache.InvalidateFirstPage(context.Background(), userID); err != nil {
			log.Println("Feed cache invalidation failed:", err)
		}
	}()
}

// RegisterFollowRoutes registers follow-related routes
func (h *FollowHandler) RegisterFollowRoutes(public, protected *echo.Group) {
	protected.POST("/users/:id/follow", h.FollowUser)
	protected.DELETE("/users/:id/follow", h.UnfollowUser)
	protected.POST("/users/:id/follow/toggle", h.ToggleFollow)
	protected.POST("/users/follow-status", h.FollowStatus)

	public.GET("/users/:id/followers", h.GetFollowers)
	public.GET("/users/:id/following", h.GetFollowing)
}

// FollowUser follows a user
func (h *FollowHandler) FollowUser(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	targetID := c.Param("id")
	if currentUserID == targetID {
		return echo.NewHTTPError(http.StatusBadRequest, "Cannot follow yourself")
	}

	status, err := h.interactionService.Ensure(c.Request().Context(), models.InteractionFollow, models.UserTarget(targetID), currentUserID, true)
	if err != nil {
		return serviceError(err)
	}

	recordAudit(h.auditRepository, "follow.set", currentUserID, string(models.TargetTypeUser), targetID, resultLabel(status.Active))
	h.notifier.Followed(currentUserID, targetID)
	h.invalidateFeed(currentUserID)

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"following": true, "followers": status.Count}})
}

// UnfollowUser unfollows a user
func (h *FollowHandler) UnfollowUser(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	targetID := c.Param("id")
	status, err := h.interactionService.Ensure(c.Request().Context(), models.InteractionFollow, models.UserTarget(targetID), currentUserID, false)
	if err != nil {
		return serviceError(err)
	}

	recordAudit(h.auditRepository, "follow.unset", currentUserID, string(models.TargetTypeUser), targetID, resultLabel(status.Active))
	h.invalidateFeed(currentUserID)

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"following": false, "followers": status.Count}})
}

// ToggleFollow flips the follow state
func (h *FollowHandler) ToggleFollow(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	targetID := c.Param("id")
	if currentUserID == targetID {
		return echo.NewHTTPError(http.StatusBadRequest, "Cannot follow yourself")
	}

	status, err := h.interactionService.Toggle(c.Request().Context(), models.InteractionFollow, models.UserTarget(targetID), currentUserID)
	if err != nil {
		return serviceError(err)
	}

	recordAudit(h.auditRepository, "follow.toggle", currentUserID, string(models.TargetTypeUser), targetID, resultLabel(status.Active))
	h.invalidateFeed(currentUserID)
	if status.Active {
		h.notifier.Followed(currentUserID, targetID)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"following": status.Active, "followers": status.Count}})
}

// FollowStatus resolves follow state for up to a batch of users at once,
// used to decorate user listings.
func (h *FollowHandler) FollowStatus(c echo.Context) error {
	var req models.BatchStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	statuses, err := h.interactionService.BatchStatus(c.Request().Context(), models.InteractionFollow, models.TargetTypeUser, req.IDs, getUserIDFromContext(c))
	if err != nil {
		return serviceError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"statuses": statuses}})
}

// FollowEdge is one entry in a followers or following listing.
type FollowEdge struct {
	User       models.UserSummary `json:"user"`
	FollowedAt time.Time          `json:"followed_at"`
}

// GetFollowers lists who follows a user, newest first
func (h *FollowHandler) GetFollowers(c echo.Context) error {
	return h.listEdges(c, true)
}

// GetFollowing lists who a user follows, newest first
func (h *FollowHandler) GetFollowing(c echo.Context) error {
	return h.listEdges(c, false)
}

func (h *FollowHandler) listEdges(c echo.Context, followers bool) error {
	ctx := c.Request().Context()
	userID := c.Param("id")
	params := pageParams(c).Normalized()

	var after *models.Interaction
	if params.Cursor != "" {
		row, err := h.interactionRepository.GetInteractionByID(ctx, params.Cursor)
		if err != nil {
			if dberr.IsRecordNotFound(err) {
				return serviceError(pagination.ErrInvalidCursor)
			}
			return serviceError(err)
		}
		ownsCursor := row.Kind == models.InteractionFollow &&
			((followers && row.FolloweeID != nil && *row.FolloweeID == userID) ||
				(!followers && row.UserID == userID))
		if !ownsCursor {
			return serviceError(pagination.ErrInvalidCursor)
		}
		after = row
	}

	var (
		rows []models.Interaction
		err  error
	)
	if followers {
		rows, err = h.interactionRepository.ListFollowers(ctx, userID, after, params.FetchLimit())
	} else {
		rows, err = h.interactionRepository.ListByUser(ctx, models.InteractionFollow, models.TargetTypeUser, userID, after, params.FetchLimit())
	}
	if err != nil {
		return serviceError(err)
	}
	hasMore := params.HasMore(len(rows))
	if hasMore {
		rows = rows[:params.Limit]
	}

	// ids stays aligned with rows so each edge can find its user below.
	ids := make([]string, len(rows))
	for i, row := range rows {
		if followers {
			ids[i] = row.UserID
		} else if row.FolloweeID != nil {
			ids[i] = *row.FolloweeID
		}
	}
	users, err := h.userRepository.GetUsersByIDs(ctx, ids)
	if err != nil {
		return serviceError(err)
	}

	edges := make([]FollowEdge, 0, len(rows))
	for i, row := range rows {
		user, ok := users[ids[i]]
		if !ok {
			continue
		}
		avatarURL, _ := h.signer.SignURL(user.AvatarPath)
		edges = append(edges, FollowEdge{
			User:       models.UserSummary{ID: user.ID, Name: user.Name, AvatarURL: avatarURL},
			FollowedAt: row.CreatedAt,
		})
	}

	nextCursor := ""
	if hasMore && len(rows) > 0 {
		nextCursor = rows[len(rows)-1].ID
	}
	key := "following"
	if followers {
		key = "followers"
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    echo.Map{key: edges},
		"meta":    echo.Map{"hasMore": hasMore, "nextCursor": nextCursor},
	})
}
