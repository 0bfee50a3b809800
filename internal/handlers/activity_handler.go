package handlers

import (
	"log"
	"net/http"

	"github.com/driftlog-app/driftlog/backend/internal/dberr"
	"github.com/driftlog-app/driftlog/backend/internal/models"
	"github.com/driftlog-app/driftlog/backend/internal/pagination"
	"github.com/driftlog-app/driftlog/backend/internal/repositories"
	"github.com/driftlog-app/driftlog/backend/internal/services"
	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"
)

// ActivityHandler handles HTTP requests related to activities
type ActivityHandler struct {
	activityRepository repositories.ActivityRepository
	userRepository     repositories.UserRepository
	interactionService *services.InteractionService
	signer             services.MediaSigner
}

// NewActivityHandler creates a new ActivityHandler
func NewActivityHandler(activityRepo repositories.ActivityRepository, userRepo repositories.UserRepository, interactionService *services.InteractionService, signer services.MediaSigner) *ActivityHandler {
	return &ActivityHandler{
		activityRepository: activityRepo,
		userRepository:     userRepo,
		interactionService: interactionService,
		signer:             signer,
	}
}

// RegisterActivityRoutes registers activity-related routes
func (h *ActivityHandler) RegisterActivityRoutes(public, protected *echo.Group) {
	protected.POST("/activities", h.CreateActivity)
	protected.DELETE("/activities/:id", h.DeleteActivity)

	public.GET("/activities/:id", h.GetActivity)
	public.GET("/users/:id/activities", h.GetActivitiesByAuthor)
}

// ActivityView is an activity with its author and the viewer's like state.
// The like and comment counts come straight off the row's counter columns.
type ActivityView struct {
	models.Activity
	Author   models.UserSummary `json:"author"`
	ImageURL string             `json:"image_url,omitempty"`
	Liked    bool               `json:"liked"`
}

// CreateActivity posts a new activity
func (h *ActivityHandler) CreateActivity(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req models.CreateActivityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	activity := &models.Activity{
		AuthorID:  currentUserID,
		Body:      req.Body,
		ImagePath: req.ImagePath,
	}
	if err := h.activityRepository.CreateActivity(c.Request().Context(), activity); err != nil {
		return serviceError(err)
	}

	return c.JSON(http.StatusCreated, activity)
}

// GetActivity retrieves an activity by ID with its author and the viewer's
// like state
func (h *ActivityHandler) GetActivity(c echo.Context) error {
	ctx := c.Request().Context()
	activityID := c.Param("id")

	activity, err := h.activityRepository.GetActivityByID(ctx, activityID)
	if err != nil {
		if dberr.IsRecordNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "Activity not found")
		}
		return serviceError(err)
	}

	views, err := enrichActivities(c, []models.Activity{*activity}, h.userRepository, h.interactionService, h.signer)
	if err != nil {
		return serviceError(err)
	}

	return c.JSON(http.StatusOK, views[0])
}

// GetActivitiesByAuthor lists one user's activities, newest first
func (h *ActivityHandler) GetActivitiesByAuthor(c echo.Context) error {
	ctx := c.Request().Context()
	authorID := c.Param("id")
	params := pageParams(c).Normalized()

	var after *models.Activity
	if params.Cursor != "" {
		row, err := h.activityRepository.GetActivityByID(ctx, params.Cursor)
		if err != nil {
			if dberr.IsRecordNotFound(err) {
				return serviceError(pagination.ErrInvalidCursor)
			}
			return serviceError(err)
		}
		if row.AuthorID != authorID {
			return serviceError(pagination.ErrInvalidCursor)
		}
		after = row
	}

	rows, err := h.activityRepository.ListActivitiesByAuthor(ctx, authorID, after, params.FetchLimit())
	if err != nil {
		return serviceError(err)
	}
	hasMore := params.HasMore(len(rows))
	if hasMore {
		rows = rows[:params.Limit]
	}

	views, err := enrichActivities(c, rows, h.userRepository, h.interactionService, h.signer)
	if err != nil {
		return serviceError(err)
	}

	nextCursor := ""
	if hasMore && len(rows) > 0 {
		nextCursor = rows[len(rows)-1].ID
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    echo.Map{"activities": views},
		"meta":    echo.Map{"hasMore": hasMore, "nextCursor": nextCursor},
	})
}

// DeleteActivity deletes an activity. Its interactions and comments go with
// it through the foreign keys.
func (h *ActivityHandler) DeleteActivity(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	activityID := c.Param("id")

	activity, err := h.activityRepository.GetActivityByID(c.Request().Context(), activityID)
	if err != nil {
		if dberr.IsRecordNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "Activity not found")
		}
		return serviceError(err)
	}

	if activity.AuthorID != currentUserID && !isAdminFromContext(c) {
		return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to delete this activity")
	}

	if err := h.activityRepository.DeleteActivity(c.Request().Context(), activityID); err != nil {
		return serviceError(err)
	}

	return c.NoContent(http.StatusNoContent)
}

// enrichActivities decorates activity rows with author summaries and the
// viewer's like state. Counts are not touched: the rows already carry them.
// A failed like lookup downgrades to an unliked rendering instead of failing
// the listing.
func enrichActivities(c echo.Context, rows []models.Activity, users repositories.UserRepository, interactions *services.InteractionService, signer services.MediaSigner) ([]ActivityView, error) {
	ctx := c.Request().Context()
	currentUserID := getUserIDFromContext(c)

	ids := make([]string, 0, len(rows))
	authorIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
		authorIDs = append(authorIDs, row.AuthorID)
	}

	var (
		statuses map[string]models.InteractionStatus
		authors  map[string]models.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := interactions.BatchStatus(gctx, models.InteractionLike, models.TargetTypeActivity, ids, currentUserID)
		if err != nil {
			log.Println("Activity like status enrichment failed:", err)
			return nil
		}
		statuses = m
		return nil
	})
	g.Go(func() error {
		m, err := users.GetUsersByIDs(gctx, authorIDs)
		if err != nil {
			return err
		}
		authors = m
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	views := make([]ActivityView, 0, len(rows))
	for _, row := range rows {
		view := ActivityView{Activity: row, Liked: statuses[row.ID].Active}
		view.ImageURL, _ = signer.SignURL(row.ImagePath)
		if author, ok := authors[row.AuthorID]; ok {
			avatarURL, _ := signer.SignURL(author.AvatarPath)
			view.Author = models.UserSummary{ID: author.ID, Name: author.Name, AvatarURL: avatarURL}
		} else {
			view.Author = models.UserSummary{ID: row.AuthorID}
		}
		views = append(views, view)
	}
	return views, nil
}
