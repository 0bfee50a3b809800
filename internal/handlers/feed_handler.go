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
)

// FeedHandler serves the activity feed: activities authored by the people
// the viewer follows, plus their own.
type FeedHandler struct {
	activityRepository    repositories.ActivityRepository
	interactionRepository repositories.InteractionRepository
	userRepository        repositories.UserRepository
	interactionService    *services.InteractionService
	feedCache             *repositories.FeedCache
	signer                services.MediaSigner
}

// NewFeedHandler creates a new FeedHandler. feedCache may be nil when Redis
// is not configured.
func NewFeedHandler(activityRepo repositories.ActivityRepository, interactionRepo repositories.InteractionRepository, userRepo repositories.UserRepository, interactionService *services.InteractionService, feedCache *repositories.FeedCache, signer services.MediaSigner) *FeedHandler {
	return &FeedHandler{
		activityRepository:    activityRepo,
		interactionRepository: interactionRepo,
		userRepository:        userRepo,
		interactionService:    interactionService,
		feedCache:             feedCache,
		signer:                signer,
	}
}

// RegisterFeedRoutes registers feed-related routes
func (h *FeedHandler) RegisterFeedRoutes(protected *echo.Group) {
	protected.GET("/feed", h.GetFeed)
}

// GetFeed returns the viewer's feed page, newest first. Only the raw rows of
// the default first page are cached; author summaries and like state are
// resolved per request so the viewer's own actions show up immediately.
func (h *FeedHandler) GetFeed(c echo.Context) error {
	ctx := c.Request().Context()
	currentUserID := getUserIDFromContext(c)
	if currentUserID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	params := pageParams(c).Normalized()
	cacheable := h.feedCache != nil && params.Cursor == "" && params.Limit == pagination.DefaultLimit

	var rows []models.Activity
	cached := false
	if cacheable {
		hit, err := h.feedCache.GetFirstPage(ctx, currentUserID, &rows)
		if err != nil {
			log.Println("Feed cache read failed:", err)
		} else {
			cached = hit
		}
	}

	if !cached {
		followees, err := h.interactionRepository.FolloweeIDs(ctx, currentUserID)
		if err != nil {
			return serviceError(err)
		}
		authorIDs := append(followees, currentUserID)

		var after *models.Activity
		if params.Cursor != "" {
			row, err := h.activityRepository.GetActivityByID(ctx, params.Cursor)
			if err != nil {
				if dberr.IsRecordNotFound(err) {
					return serviceError(pagination.ErrInvalidCursor)
				}
				return serviceError(err)
			}
			if !containsID(authorIDs, row.AuthorID) {
				return serviceError(pagination.ErrInvalidCursor)
			}
			after = row
		}

		rows, err = h.activityRepository.ListActivitiesByAuthors(ctx, authorIDs, after, params.FetchLimit())
		if err != nil {
			return serviceError(err)
		}

		if cacheable {
			// The overflow row is cached too so a hit can still tell
			// whether a next page exists.
			if err := h.feedCache.SetFirstPage(ctx, currentUserID, rows); err != nil {
				log.Println("Feed cache write failed:", err)
			}
		}
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

func containsID(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
