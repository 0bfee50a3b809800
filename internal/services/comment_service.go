package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/driftlog-app/driftlog/backend/internal/dberr"
	"github.com/driftlog-app/driftlog/backend/internal/models"
	"github.com/driftlog-app/driftlog/backend/internal/pagination"
	"github.com/driftlog-app/driftlog/backend/internal/repositories"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/sync/errgroup"
)

// DeletedCommentPlaceholder replaces the content of soft-deleted comments
// at read time. The row itself keeps its original content.
const DeletedCommentPlaceholder = "[deleted]"

// DeleteResult reports which removal path a comment delete took.
type DeleteResult string

const (
	DeleteResultSoft DeleteResult = "soft_deleted"
	DeleteResultHard DeleteResult = "hard_deleted"
)

// CommentView is the formatted shape a comment leaves the service in. For
// soft-deleted rows Content carries the placeholder and IsDeleted is set;
// author and timestamps are preserved either way so threads keep their
// shape.
type CommentView struct {
	ID         string             `json:"id"`
	TargetType models.TargetType  `json:"target_type"`
	TargetID   string             `json:"target_id"`
	Author     models.UserSummary `json:"author"`
	ParentID   *string            `json:"parent_id,omitempty"`
	Content    string             `json:"content"`
	IsDeleted  bool               `json:"is_deleted"`
	ReplyCount int64              `json:"reply_count"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// CommentPage is one page of comments plus the cursor protocol fields.
type CommentPage struct {
	Items      []CommentView `json:"items"`
	HasMore    bool          `json:"has_more"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// CommentService owns comment creation, threaded listing and the
// soft-delete-with-placeholder lifecycle. A comment with replies is never
// removed, only blanked at read time, so no reply ever dangles from a
// missing parent; a comment without replies is removed outright.
type CommentService struct {
	comments  repositories.CommentRepository
	targets   repositories.TargetRepository
	users     repositories.UserRepository
	signer    MediaSigner
	sanitizer *bluemonday.Policy
	logger    *slog.Logger
}

// NewCommentService creates a new CommentService
func NewCommentService(comments repositories.CommentRepository, targets repositories.TargetRepository, users repositories.UserRepository, signer MediaSigner, logger *slog.Logger) *CommentService {
	return &CommentService{
		comments:  comments,
		targets:   targets,
		users:     users,
		signer:    signer,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger,
	}
}

// Create validates the target and optional parent, sanitizes the content
// and inserts the row. The activity comment counter is bumped by the
// insert trigger; nothing here writes a counter.
func (s *CommentService) Create(ctx context.Context, target models.TargetRef, authorID, content string, parentID *string) (*CommentView, error) {
	sanitized := strings.TrimSpace(s.sanitizer.Sanitize(content))
	if sanitized == "" {
		return nil, ErrEmptyContent
	}

	exists, err := s.targets.TargetExists(ctx, target)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrTargetNotFound, target)
	}

	if parentID != nil {
		parent, err := s.comments.GetCommentByID(ctx, *parentID)
		switch {
		case err == nil:
			if parent.DeletedAt.Valid {
				return nil, fmt.Errorf("%w: %s", ErrParentDeleted, *parentID)
			}
			if parent.Target() != target {
				return nil, fmt.Errorf("%w: %s is on %s", ErrParentMismatch, *parentID, parent.Target())
			}
		case dberr.IsRecordNotFound(err):
			return nil, fmt.Errorf("%w: %s", ErrParentNotFound, *parentID)
		default:
			return nil, err
		}
	}

	comment := &models.Comment{
		AuthorID: authorID,
		ParentID: parentID,
		Content:  sanitized,
	}
	switch target.Type {
	case models.TargetTypePost:
		comment.PostID = &target.ID
	case models.TargetTypeActivity:
		comment.ActivityID = &target.ID
	default:
		return nil, fmt.Errorf("comments cannot attach to target type %q", target.Type)
	}

	if err := s.comments.CreateComment(ctx, comment); err != nil {
		// The target or parent can vanish between validation and insert;
		// the foreign keys catch what the checks above missed.
		if dberr.IsForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrTargetNotFound, target)
		}
		return nil, err
	}

	authors := s.authorSummaries(ctx, []string{authorID})
	view := s.buildView(comment, 0, authors)
	return &view, nil
}

// List returns one page of a target's comments, newest first. parentID nil
// pages the top level; non-nil pages one comment's replies. Soft-deleted
// rows stay in the page so reply threads keep their anchor; they leave here
// with placeholder content.
func (s *CommentService) List(ctx context.Context, target models.TargetRef, parentID *string, params pagination.Params) (*CommentPage, error) {
	params = params.Normalized()

	var after *models.Comment
	if params.Cursor != "" {
		row, err := s.comments.GetCommentByID(ctx, params.Cursor)
		if err != nil {
			if dberr.IsRecordNotFound(err) {
				return nil, pagination.ErrInvalidCursor
			}
			return nil, err
		}
		// A cursor from a different listing would silently corrupt the
		// page, so it is rejected instead.
		if row.Target() != target || !strPtrEqual(row.ParentID, parentID) {
			return nil, pagination.ErrInvalidCursor
		}
		after = row
	}

	rows, err := s.comments.ListComments(ctx, target, parentID, after, params.FetchLimit())
	if err != nil {
		return nil, err
	}

	hasMore := params.HasMore(len(rows))
	if hasMore {
		rows = rows[:params.Limit]
	}

	ids := make([]string, 0, len(rows))
	authorIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
		authorIDs = append(authorIDs, row.AuthorID)
	}

	var (
		replyCounts map[string]int64
		authors     map[string]models.UserSummary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := s.comments.ReplyCounts(gctx, ids)
		replyCounts = m
		return err
	})
	g.Go(func() error {
		authors = s.authorSummaries(gctx, authorIDs)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	page := &CommentPage{Items: make([]CommentView, 0, len(rows)), HasMore: hasMore}
	for i := range rows {
		page.Items = append(page.Items, s.buildView(&rows[i], replyCounts[rows[i].ID], authors))
	}
	if hasMore && len(page.Items) > 0 {
		page.NextCursor = page.Items[len(page.Items)-1].ID
	}
	return page, nil
}

// Delete removes a comment as its author or an admin. With replies present
// the row is soft-deleted so the thread under it survives; with none it is
// removed outright. Losing a race against a concurrent delete is success,
// and losing the no-replies check to a freshly inserted reply falls back to
// the soft path.
func (s *CommentService) Delete(ctx context.Context, commentID, actingUserID string, isAdmin bool) (DeleteResult, error) {
	comment, err := s.comments.GetCommentByID(ctx, commentID)
	if err != nil {
		if dberr.IsRecordNotFound(err) {
			return "", fmt.Errorf("%w: %s", ErrCommentNotFound, commentID)
		}
		return "", err
	}

	if comment.AuthorID != actingUserID && !isAdmin {
		return "", fmt.Errorf("%w: user %s cannot delete comment %s", ErrUnauthorized, actingUserID, commentID)
	}

	// Repeating a delete of an already soft-deleted comment is a no-op.
	if comment.DeletedAt.Valid {
		return DeleteResultSoft, nil
	}

	hasReplies, err := s.comments.HasReplies(ctx, commentID)
	if err != nil {
		return "", err
	}

	if hasReplies {
		return DeleteResultSoft, s.softDelete(ctx, commentID)
	}

	err = s.comments.HardDeleteComment(ctx, commentID)
	switch dberr.Classify(err) {
	case dberr.RecordNotFound:
		// Concurrent delete won; the comment is gone either way.
		return DeleteResultHard, nil
	case dberr.ForeignKeyViolation:
		// A reply landed between the check and the delete. The row now has
		// a child, so it gets the soft path after all.
		s.logger.Debug("hard delete raced a new reply, soft-deleting instead", "comment_id", commentID)
		return DeleteResultSoft, s.softDelete(ctx, commentID)
	}
	if err != nil {
		return "", err
	}
	return DeleteResultHard, nil
}

func (s *CommentService) softDelete(ctx context.Context, commentID string) error {
	err := s.comments.SoftDeleteComment(ctx, commentID)
	if err != nil && dberr.IsRecordNotFound(err) {
		// Already soft- or hard-deleted by a concurrent request.
		return nil
	}
	return err
}

// Count exposes a target's visible comment count: the denormalized column
// for activities, a live aggregate for posts. Both include soft-deleted
// rows, matching what List renders.
func (s *CommentService) Count(ctx context.Context, target models.TargetRef) (int64, error) {
	if target.HasCounters() {
		return s.targets.ActivityCommentsCount(ctx, target.ID)
	}
	return s.comments.CountForTarget(ctx, target)
}

func (s *CommentService) buildView(comment *models.Comment, replyCount int64, authors map[string]models.UserSummary) CommentView {
	target := comment.Target()
	view := CommentView{
		ID:         comment.ID,
		TargetType: target.Type,
		TargetID:   target.ID,
		Author:     authors[comment.AuthorID],
		ParentID:   comment.ParentID,
		Content:    comment.Content,
		ReplyCount: replyCount,
		CreatedAt:  comment.CreatedAt,
		UpdatedAt:  comment.UpdatedAt,
	}
	if view.Author.ID == "" {
		view.Author = models.UserSummary{ID: comment.AuthorID}
	}
	if comment.DeletedAt.Valid {
		view.Content = DeletedCommentPlaceholder
		view.IsDeleted = true
	}
	return view
}

// authorSummaries resolves users into compact author shapes with signed
// avatar URLs. Lookup or signing failures degrade to bare ids rather than
// failing the read.
func (s *CommentService) authorSummaries(ctx context.Context, ids []string) map[string]models.UserSummary {
	summaries := make(map[string]models.UserSummary)
	users, err := s.users.GetUsersByIDs(ctx, ids)
	if err != nil {
		s.logger.Warn("resolving comment authors failed", "error", err)
		return summaries
	}
	for id, user := range users {
		avatarURL, err := s.signer.SignURL(user.AvatarPath)
		if err != nil {
			s.logger.Warn("signing avatar url failed", "user_id", id, "error", err)
			avatarURL = ""
		}
		summaries[id] = models.UserSummary{ID: user.ID, Name: user.Name, AvatarURL: avatarURL}
	}
	return summaries
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
