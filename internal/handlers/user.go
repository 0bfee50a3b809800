package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/driftlog-app/driftlog/backend/internal/dberr"
	"github.com/driftlog-app/driftlog/backend/internal/models"
	"github.com/driftlog-app/driftlog/backend/internal/pagination"
	"github.com/driftlog-app/driftlog/backend/internal/repositories"
	"github.com/driftlog-app/driftlog/backend/internal/services"
	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"
)

// UserHandler handles HTTP requests related to users
type UserHandler struct {
	userRepository        repositories.UserRepository
	postRepository        repositories.PostRepository
	interactionRepository repositories.InteractionRepository
	interactionService    *services.InteractionService
	signer                services.MediaSigner
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userRepo repositories.UserRepository, postRepo repositories.PostRepository, interactionRepo repositories.InteractionRepository, interactionService *services.InteractionService, signer services.MediaSigner) *UserHandler {
	return &UserHandler{
		userRepository:        userRepo,
		postRepository:        postRepo,
		interactionRepository: interactionRepo,
		interactionService:    interactionService,
		signer:                signer,
	}
}

// RegisterUserRoutes registers user profile-related routes
func (h *UserHandler) RegisterUserRoutes(public, protected *echo.Group) {
	public.GET("/users/:id", h.GetUser)
	public.GET("/users", h.SearchUsers)

	protected.GET("/profile", h.GetProfile)
	protected.PUT("/profile", h.UpdateProfile)
	protected.DELETE("/profile", h.DeleteProfile)
}

// UserProfile is the public profile card: the fields anyone may see, the
// counts shown under the name, and whether the viewer follows this user.
type UserProfile struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Bio            string    `json:"bio,omitempty"`
	AvatarURL      string    `json:"avatar_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	FollowersCount int64     `json:"followers_count"`
	FollowingCount int64     `json:"following_count"`
	PostsCount     int64     `json:"posts_count"`
	Following      bool      `json:"following"`
}

// GetUser returns a user's public profile. The three count reads are
// independent and run concurrently.
func (h *UserHandler) GetUser(c echo.Context) error {
	ctx := c.Request().Context()
	userID := c.Param("id")
	currentUserID := getUserIDFromContext(c)

	user, err := h.userRepository.GetUserByID(ctx, userID)
	if err != nil {
		if dberr.IsRecordNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return serviceError(err)
	}

	avatarURL, _ := h.signer.SignURL(user.AvatarPath)
	profile := UserProfile{
		ID:        user.ID,
		Name:      user.Name,
		Bio:       user.Bio,
		AvatarURL: avatarURL,
		CreatedAt: user.CreatedAt,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// One read covers both the follower count and the viewer's state.
		status, err := h.interactionService.Status(gctx, models.InteractionFollow, models.UserTarget(userID), currentUserID)
		if err != nil {
			return err
		}
		profile.FollowersCount = status.Count
		profile.Following = status.Active
		return nil
	})
	g.Go(func() error {
		count, err := h.interactionRepository.CountByUser(gctx, models.InteractionFollow, userID)
		profile.FollowingCount = count
		return err
	})
	g.Go(func() error {
		count, err := h.postRepository.CountByAuthor(gctx, userID)
		profile.PostsCount = count
		return err
	})
	if err := g.Wait(); err != nil {
		return serviceError(err)
	}

	return c.JSON(http.StatusOK, profile)
}

// SearchUsers searches for users by name or email prefix
func (h *UserHandler) SearchUsers(c echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Search query 'q' is required")
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = pagination.DefaultLimit
	}
	if limit > pagination.MaxLimit {
		limit = pagination.MaxLimit
	}

	users, err := h.userRepository.SearchUsers(c.Request().Context(), query, limit)
	if err != nil {
		return serviceError(err)
	}

	summaries := make([]models.UserSummary, 0, len(users))
	for _, user := range users {
		avatarURL, _ := h.signer.SignURL(user.AvatarPath)
		summaries = append(summaries, models.UserSummary{ID: user.ID, Name: user.Name, AvatarURL: avatarURL})
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"users": summaries}})
}

// GetProfile retrieves the authenticated user's own record
func (h *UserHandler) GetProfile(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	user, err := h.userRepository.GetUserByID(c.Request().Context(), currentUserID)
	if err != nil {
		if dberr.IsRecordNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "User profile not found")
		}
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, user)
}

// UpdateProfile updates the authenticated user's profile
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req models.UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, err := h.userRepository.GetUserByID(c.Request().Context(), currentUserID)
	if err != nil {
		if dberr.IsRecordNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "User profile not found")
		}
		return serviceError(err)
	}

	if req.Name != "" {
		user.Name = req.Name
	}
	if req.Bio != "" {
		user.Bio = req.Bio
	}
	if req.AvatarPath != "" {
		user.AvatarPath = req.AvatarPath
	}

	if err := h.userRepository.UpdateUser(c.Request().Context(), user); err != nil {
		return serviceError(err)
	}

	return c.JSON(http.StatusOK, user)
}

// DeleteProfile deletes the authenticated user's account. Their posts,
// activities, interactions and comments go with it through the foreign keys.
func (h *UserHandler) DeleteProfile(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	if err := h.userRepository.DeleteUser(c.Request().Context(), currentUserID); err != nil {
		if dberr.IsRecordNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "User profile not found")
		}
		return serviceError(err)
	}

	return c.NoContent(http.StatusNoContent)
}
