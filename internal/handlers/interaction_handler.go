package handlers

import (
	"net/http"
	"time"

	"github.com/driftlog-app/driftlog/backend/internal/dberr"
	"github.com/driftlog-app/driftlog/backend/internal/models"
	"github.com/driftlog-app/driftlog/backend/internal/pagination"
	"github.com/driftlog-app/driftlog/backend/internal/repositories"
	"github.com/driftlog-app/driftlog/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// InteractionHandler handles like and bookmark HTTP requests for posts and
// activities. All state changes go through the toggle executor, so repeated
// or racing requests settle on the requested state instead of erroring.
type InteractionHandler struct {
	interactionService    *services.InteractionService
	interactionRepository repositories.InteractionRepository
	postRepository        repositories.PostRepository
	auditRepository       repositories.AuditRepository
	notifier              *Notifier
}

// NewInteractionHandler creates a new InteractionHandler
func NewInteractionHandler(interactionService *services.InteractionService, interactionRepo repositories.InteractionRepository, postRepo repositories.PostRepository, auditRepo repositories.AuditRepository, notifier *Notifier) *InteractionHandler {
	return &InteractionHandler{
		interactionService:    interactionService,
		interactionRepository: interactionRepo,
		postRepository:        postRepo,
		auditRepository:       auditRepo,
		notifier:              notifier,
	}
}

// RegisterInteractionRoutes registers like and bookmark routes. Reads live
// on the public group so anonymous clients still get counts.
func (h *InteractionHandler) RegisterInteractionRoutes(public, protected *echo.Group) {
	protected.POST("/posts/:id/like", h.LikePost)
	protected.DELETE("/posts/:id/like", h.UnlikePost)
	protected.POST("/posts/:id/like/toggle", h.TogglePostLike)
	protected.POST("/posts/:id/bookmark", h.BookmarkPost)
	protected.DELETE("/posts/:id/bookmark", h.UnbookmarkPost)
	protected.POST("/posts/:id/bookmark/toggle", h.TogglePostBookmark)
	protected.POST("/activities/:id/like", h.LikeActivity)
	protected.DELETE("/activities/:id/like", h.UnlikeActivity)
	protected.POST("/activities/:id/like/toggle", h.ToggleActivityLike)
	protected.POST("/activities/:id/bookmark", h.BookmarkActivity)
	protected.DELETE("/activities/:id/bookmark", h.UnbookmarkActivity)
	protected.POST("/activities/:id/bookmark/toggle", h.ToggleActivityBookmark)
	protected.GET("/bookmarks", h.ListBookmarkedPosts)

	public.GET("/posts/:id/like", h.PostLikeStatus)
	public.GET("/activities/:id/like", h.ActivityLikeStatus)
	public.POST("/posts/status", h.PostsStatus)
	public.POST("/activities/status", h.ActivitiesStatus)
}

func (h *InteractionHandler) LikePost(c echo.Context) error {
	return h.ensure(c, models.InteractionLike, models.PostTarget(c.Param("id")), true)
}

func (h *InteractionHandler) UnlikePost(c echo.Context) error {
	return h.ensure(c, models.InteractionLike, models.PostTarget(c.Param("id")), false)
}

func (h *InteractionHandler) TogglePostLike(c echo.Context) error {
	return h.toggle(c, models.InteractionLike, models.PostTarget(c.Param("id")))
}

func (h *InteractionHandler) BookmarkPost(c echo.Context) error {
	return h.ensure(c, models.InteractionBookmark, models.PostTarget(c.Param("id")), true)
}

func (h *InteractionHandler) UnbookmarkPost(c echo.Context) error {
	return h.ensure(c, models.InteractionBookmark, models.PostTarget(c.Param("id")), false)
}

func (h *InteractionHandler) TogglePostBookmark(c echo.Context) error {
	return h.toggle(c, models.InteractionBookmark, models.PostTarget(c.Param("id")))
}

func (h *InteractionHandler) LikeActivity(c echo.Context) error {
	return h.ensure(c, models.InteractionLike, models.ActivityTarget(c.Param("id")), true)
}

func (h *InteractionHandler) UnlikeActivity(c echo.Context) error {
	return h.ensure(c, models.InteractionLike, models.ActivityTarget(c.Param("id")), false)
}

func (h *InteractionHandler) ToggleActivityLike(c echo.Context) error {
	return h.toggle(c, models.InteractionLike, models.ActivityTarget(c.Param("id")))
}

func (h *InteractionHandler) BookmarkActivity(c echo.Context) error {
	return h.ensure(c, models.InteractionBookmark, models.ActivityTarget(c.Param("id")), true)
}

func (h *InteractionHandler) UnbookmarkActivity(c echo.Context) error {
	return h.ensure(c, models.InteractionBookmark, models.ActivityTarget(c.Param("id")), false)
}

func (h *InteractionHandler) ToggleActivityBookmark(c echo.Context) error {
	return h.toggle(c, models.InteractionBookmark, models.ActivityTarget(c.Param("id")))
}

func (h *InteractionHandler) PostLikeStatus(c echo.Context) error {
	return h.status(c, models.InteractionLike, models.PostTarget(c.Param("id")))
}

func (h *InteractionHandler) ActivityLikeStatus(c echo.Context) error {
	return h.status(c, models.InteractionLike, models.ActivityTarget(c.Param("id")))
}

func (h *InteractionHandler) PostsStatus(c echo.Context) error {
	return h.batchStatus(c, models.TargetTypePost)
}

func (h *InteractionHandler) ActivitiesStatus(c echo.Context) error {
	return h.batchStatus(c, models.TargetTypeActivity)
}

func (h *InteractionHandler) ensure(c echo.Context, kind models.InteractionKind, target models.TargetRef, desired bool) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	status, err := h.interactionService.Ensure(c.Request().Context(), kind, target, currentUserID, desired)
	if err != nil {
		return serviceError(err)
	}

	verb := "set"
	if !desired {
		verb = "unset"
	}
	recordAudit(h.auditRepository, string(kind)+"."+verb, currentUserID, string(target.Type), target.ID, resultLabel(status.Active))
	if desired && kind == models.InteractionLike {
		h.notifier.Liked(currentUserID, target)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": status})
}

func (h *InteractionHandler) toggle(c echo.Context, kind models.InteractionKind, target models.TargetRef) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	status, err := h.interactionService.Toggle(c.Request().Context(), kind, target, currentUserID)
	if err != nil {
		return serviceError(err)
	}

	recordAudit(h.auditRepository, string(kind)+".toggle", currentUserID, string(target.Type), target.ID, resultLabel(status.Active))
	if status.Active && kind == models.InteractionLike {
		h.notifier.Liked(currentUserID, target)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": status})
}

func (h *InteractionHandler) status(c echo.Context, kind models.InteractionKind, target models.TargetRef) error {
	status, err := h.interactionService.Status(c.Request().Context(), kind, target, getUserIDFromContext(c))
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": status})
}

// batchStatus resolves like or bookmark state for a page worth of targets
// in one request. The kind query parameter defaults to like.
func (h *InteractionHandler) batchStatus(c echo.Context, targetType models.TargetType) error {
	kind := models.InteractionLike
	switch c.QueryParam("kind") {
	case "", "like":
	case "bookmark":
		kind = models.InteractionBookmark
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "Unknown interaction kind")
	}

	var req models.BatchStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	statuses, err := h.interactionService.BatchStatus(c.Request().Context(), kind, targetType, req.IDs, getUserIDFromContext(c))
	if err != nil {
		return serviceError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"statuses": statuses}})
}

// BookmarkedPost is a post joined with when the user bookmarked it.
type BookmarkedPost struct {
	models.Post
	BookmarkedAt time.Time `json:"bookmarked_at"`
}

// ListBookmarkedPosts pages through the user's bookmarks, newest first. The
// cursor is the bookmark row id, not the post id, so re-bookmarking a post
// cannot shuffle earlier pages.
func (h *InteractionHandler) ListBookmarkedPosts(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	params := pageParams(c).Normalized()
	var after *models.Interaction
	if params.Cursor != "" {
		row, err := h.interactionRepository.GetInteractionByID(c.Request().Context(), params.Cursor)
		if err != nil {
			if dberr.IsRecordNotFound(err) {
				return serviceError(pagination.ErrInvalidCursor)
			}
			return serviceError(err)
		}
		if row.Kind != models.InteractionBookmark || row.UserID != currentUserID || row.PostID == nil {
			return serviceError(pagination.ErrInvalidCursor)
		}
		after = row
	}

	rows, err := h.interactionRepository.ListByUser(c.Request().Context(), models.InteractionBookmark, models.TargetTypePost, currentUserID, after, params.FetchLimit())
	if err != nil {
		return serviceError(err)
	}
	hasMore := params.HasMore(len(rows))
	if hasMore {
		rows = rows[:params.Limit]
	}

	postIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.PostID != nil {
			postIDs = append(postIDs, *row.PostID)
		}
	}
	posts, err := h.postRepository.GetPostsByIDs(c.Request().Context(), postIDs)
	if err != nil {
		return serviceError(err)
	}
	postByID := make(map[string]models.Post, len(posts))
	for _, post := range posts {
		postByID[post.ID] = post
	}

	items := make([]BookmarkedPost, 0, len(rows))
	for _, row := range rows {
		if row.PostID == nil {
			continue
		}
		post, ok := postByID[*row.PostID]
		if !ok {
			// The post was deleted and the cascade has not been observed
			// by this query snapshot; skip rather than render a hole.
			continue
		}
		items = append(items, BookmarkedPost{Post: post, BookmarkedAt: row.CreatedAt})
	}

	nextCursor := ""
	if hasMore && len(rows) > 0 {
		nextCursor = rows[len(rows)-1].ID
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    echo.Map{"bookmarks": items},
		"meta":    echo.Map{"hasMore": hasMore, "nextCursor": nextCursor},
	})
}

func resultLabel(active bool) string {
	if active {
		return "active"
	}
	return "inactive"
}
