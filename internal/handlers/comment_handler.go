package handlers

import (
	"net/http"

	"github.com/driftlog-app/driftlog/backend/internal/models"
	"github.com/driftlog-app/driftlog/backend/internal/repositories"
	"github.com/driftlog-app/driftlog/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// CommentHandler handles HTTP requests related to comments
type CommentHandler struct {
	commentService  *services.CommentService
	auditRepository repositories.AuditRepository
	notifier        *Notifier
}

// NewCommentHandler creates a new CommentHandler
func NewCommentHandler(commentService *services.CommentService, auditRepo repositories.AuditRepository, notifier *Notifier) *CommentHandler {
	return &CommentHandler{
		commentService:  commentService,
		auditRepository: auditRepo,
		notifier:        notifier,
	}
}

// RegisterCommentRoutes registers comment-related routes
func (h *CommentHandler) RegisterCommentRoutes(public, protected *echo.Group) {
	protected.POST("/posts/:id/comments", h.CreatePostComment)
	protected.POST("/activities/:id/comments", h.CreateActivityComment)
	protected.DELETE("/comments/:id", h.DeleteComment)

	public.GET("/posts/:id/comments", h.GetPostComments)
	public.GET("/activities/:id/comments", h.GetActivityComments)
}

// CreatePostComment creates a comment or reply on a post
func (h *CommentHandler) CreatePostComment(c echo.Context) error {
	return h.create(c, models.PostTarget(c.Param("id")))
}

// CreateActivityComment creates a comment or reply on an activity
func (h *CommentHandler) CreateActivityComment(c echo.Context) error {
	return h.create(c, models.ActivityTarget(c.Param("id")))
}

func (h *CommentHandler) create(c echo.Context, target models.TargetRef) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req models.CreateCommentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	view, err := h.commentService.Create(c.Request().Context(), target, currentUserID, req.Content, req.ParentID)
	if err != nil {
		return serviceError(err)
	}

	h.notifier.Commented(currentUserID, target)

	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": view})
}

// GetPostComments lists comments on a post, newest first
func (h *CommentHandler) GetPostComments(c echo.Context) error {
	return h.list(c, models.PostTarget(c.Param("id")))
}

// GetActivityComments lists comments on an activity, newest first
func (h *CommentHandler) GetActivityComments(c echo.Context) error {
	return h.list(c, models.ActivityTarget(c.Param("id")))
}

func (h *CommentHandler) list(c echo.Context, target models.TargetRef) error {
	ctx := c.Request().Context()

	var parentID *string
	if raw := c.QueryParam("parent_id"); raw != "" {
		parentID = &raw
	}

	page, err := h.commentService.List(ctx, target, parentID, pageParams(c))
	if err != nil {
		return serviceError(err)
	}

	meta := echo.Map{"hasMore": page.HasMore, "nextCursor": page.NextCursor}
	if parentID == nil {
		// The headline number shown next to the target, replies included.
		count, err := h.commentService.Count(ctx, target)
		if err != nil {
			return serviceError(err)
		}
		meta["count"] = count
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"comments": page.Items}, "meta": meta})
}

// DeleteComment removes a comment. Comments with replies are kept as
// placeholders so the thread below them stays readable.
func (h *CommentHandler) DeleteComment(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	commentID := c.Param("id")
	result, err := h.commentService.Delete(c.Request().Context(), commentID, currentUserID, isAdminFromContext(c))
	if err != nil {
		return serviceError(err)
	}

	recordAudit(h.auditRepository, "comment.delete", currentUserID, "comment", commentID, string(result))

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"result": result}})
}
