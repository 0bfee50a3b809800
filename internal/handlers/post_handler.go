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

// PostHandler handles HTTP requests related to posts
type PostHandler struct {
	postRepository     repositories.PostRepository
	userRepository     repositories.UserRepository
	interactionService *services.InteractionService
	commentService     *services.CommentService
	signer             services.MediaSigner
}

// NewPostHandler creates a new PostHandler
func NewPostHandler(postRepo repositories.PostRepository, userRepo repositories.UserRepository, interactionService *services.InteractionService, commentService *services.CommentService, signer services.MediaSigner) *PostHandler {
	return &PostHandler{
		postRepository:     postRepo,
		userRepository:     userRepo,
		interactionService: interactionService,
		commentService:     commentService,
		signer:             signer,
	}
}

// RegisterPostRoutes registers post-related routes
func (h *PostHandler) RegisterPostRoutes(public, protected *echo.Group) {
	protected.POST("/posts", h.CreatePost)
	protected.PUT("/posts/:id", h.UpdatePost)
	protected.DELETE("/posts/:id", h.DeletePost)

	public.GET("/posts", h.GetPosts)
	public.GET("/posts/:id", h.GetPost)
	public.GET("/users/:id/posts", h.GetPostsByAuthor)
}

// PostDetail is a post with the counts and viewer state the client renders
// on the post page.
type PostDetail struct {
	models.Post
	Author        models.UserSummary `json:"author"`
	CoverURL      string             `json:"cover_url,omitempty"`
	LikesCount    int64              `json:"likes_count"`
	CommentsCount int64              `json:"comments_count"`
	Liked         bool               `json:"liked"`
	Bookmarked    bool               `json:"bookmarked"`
}

// PostListItem is the compact shape used in post listings.
type PostListItem struct {
	models.Post
	Author     models.UserSummary `json:"author"`
	CoverURL   string             `json:"cover_url,omitempty"`
	LikesCount int64              `json:"likes_count"`
	Liked      bool               `json:"liked"`
}

// CreatePost creates a new post
func (h *PostHandler) CreatePost(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req models.CreatePostRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	post := &models.Post{
		AuthorID:  currentUserID,
		Title:     req.Title,
		Body:      req.Body,
		CoverPath: req.CoverPath,
	}
	if err := h.postRepository.CreatePost(c.Request().Context(), post); err != nil {
		return serviceError(err)
	}

	return c.JSON(http.StatusCreated, post)
}

// GetPost retrieves a post by ID together with its counts and the viewer's
// like and bookmark state. The four reads are independent and run
// concurrently.
func (h *PostHandler) GetPost(c echo.Context) error {
	ctx := c.Request().Context()
	postID := c.Param("id")
	currentUserID := getUserIDFromContext(c)

	post, err := h.postRepository.GetPostByID(ctx, postID)
	if err != nil {
		if dberr.IsRecordNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "Post not found")
		}
		return serviceError(err)
	}

	target := models.PostTarget(postID)
	detail := PostDetail{Post: *post}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		status, err := h.interactionService.Status(gctx, models.InteractionLike, target, currentUserID)
		if err != nil {
			return err
		}
		detail.LikesCount = status.Count
		detail.Liked = status.Active
		return nil
	})
	g.Go(func() error {
		status, err := h.interactionService.Status(gctx, models.InteractionBookmark, target, currentUserID)
		if err != nil {
			return err
		}
		detail.Bookmarked = status.Active
		return nil
	})
	g.Go(func() error {
		count, err := h.commentService.Count(gctx, target)
		if err != nil {
			return err
		}
		detail.CommentsCount = count
		return nil
	})
	g.Go(func() error {
		author, err := h.userRepository.GetUserByID(gctx, post.AuthorID)
		if err != nil {
			if dberr.IsRecordNotFound(err) {
				detail.Author = models.UserSummary{ID: post.AuthorID}
				return nil
			}
			return err
		}
		avatarURL, _ := h.signer.SignURL(author.AvatarPath)
		detail.Author = models.UserSummary{ID: author.ID, Name: author.Name, AvatarURL: avatarURL}
		return nil
	})
	if err := g.Wait(); err != nil {
		return serviceError(err)
	}

	detail.CoverURL, _ = h.signer.SignURL(post.CoverPath)

	return c.JSON(http.StatusOK, detail)
}

// GetPosts lists all posts, newest first
func (h *PostHandler) GetPosts(c echo.Context) error {
	return h.listPosts(c, "")
}

// GetPostsByAuthor lists one user's posts, newest first
func (h *PostHandler) GetPostsByAuthor(c echo.Context) error {
	return h.listPosts(c, c.Param("id"))
}

func (h *PostHandler) listPosts(c echo.Context, authorID string) error {
	ctx := c.Request().Context()
	params := pageParams(c).Normalized()

	var after *models.Post
	if params.Cursor != "" {
		row, err := h.postRepository.GetPostByID(ctx, params.Cursor)
		if err != nil {
			if dberr.IsRecordNotFound(err) {
				return serviceError(pagination.ErrInvalidCursor)
			}
			return serviceError(err)
		}
		if authorID != "" && row.AuthorID != authorID {
			return serviceError(pagination.ErrInvalidCursor)
		}
		after = row
	}

	var (
		rows []models.Post
		err  error
	)
	if authorID != "" {
		rows, err = h.postRepository.ListPostsByAuthor(ctx, authorID, after, params.FetchLimit())
	} else {
		rows, err = h.postRepository.ListPosts(ctx, after, params.FetchLimit())
	}
	if err != nil {
		return serviceError(err)
	}
	hasMore := params.HasMore(len(rows))
	if hasMore {
		rows = rows[:params.Limit]
	}

	items, err := h.enrichPosts(c, rows)
	if err != nil {
		return serviceError(err)
	}

	nextCursor := ""
	if hasMore && len(rows) > 0 {
		nextCursor = rows[len(rows)-1].ID
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    echo.Map{"posts": items},
		"meta":    echo.Map{"hasMore": hasMore, "nextCursor": nextCursor},
	})
}

// enrichPosts decorates post rows with author summaries and like state. When
// the status lookup fails the listing still renders, just without like data.
func (h *PostHandler) enrichPosts(c echo.Context, rows []models.Post) ([]PostListItem, error) {
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
		m, err := h.interactionService.BatchStatus(gctx, models.InteractionLike, models.TargetTypePost, ids, currentUserID)
		if err != nil {
			log.Println("Post like status enrichment failed:", err)
			return nil
		}
		statuses = m
		return nil
	})
	g.Go(func() error {
		m, err := h.userRepository.GetUsersByIDs(gctx, authorIDs)
		if err != nil {
			return err
		}
		authors = m
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	items := make([]PostListItem, 0, len(rows))
	for _, row := range rows {
		item := PostListItem{Post: row}
		item.CoverURL, _ = h.signer.SignURL(row.CoverPath)
		if author, ok := authors[row.AuthorID]; ok {
			avatarURL, _ := h.signer.SignURL(author.AvatarPath)
			item.Author = models.UserSummary{ID: author.ID, Name: author.Name, AvatarURL: avatarURL}
		} else {
			item.Author = models.UserSummary{ID: row.AuthorID}
		}
		if status, ok := statuses[row.ID]; ok {
			item.LikesCount = status.Count
			item.Liked = status.Active
		}
		items = append(items, item)
	}
	return items, nil
}

// UpdatePost updates an existing post
func (h *PostHandler) UpdatePost(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	postID := c.Param("id")

	var req models.UpdatePostRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	existingPost, err := h.postRepository.GetPostByID(c.Request().Context(), postID)
	if err != nil {
		if dberr.IsRecordNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "Post not found")
		}
		return serviceError(err)
	}

	if existingPost.AuthorID != currentUserID {
		return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to update this post")
	}

	if req.Title != "" {
		existingPost.Title = req.Title
	}
	if req.Body != "" {
		existingPost.Body = req.Body
	}
	if req.CoverPath != "" {
		existingPost.CoverPath = req.CoverPath
	}

	if err := h.postRepository.UpdatePost(c.Request().Context(), existingPost); err != nil {
		return serviceError(err)
	}

	return c.JSON(http.StatusOK, existingPost)
}

// DeletePost deletes a post. Likes, bookmarks and comments on it go with it
// through the foreign keys.
func (h *PostHandler) DeletePost(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	postID := c.Param("id")

	existingPost, err := h.postRepository.GetPostByID(c.Request().Context(), postID)
	if err != nil {
		if dberr.IsRecordNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "Post not found")
		}
		return serviceError(err)
	}

	if existingPost.AuthorID != currentUserID && !isAdminFromContext(c) {
		return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to delete this post")
	}

	if err := h.postRepository.DeletePost(c.Request().Context(), postID); err != nil {
		return serviceError(err)
	}

	return c.NoContent(http.StatusNoContent)
}
