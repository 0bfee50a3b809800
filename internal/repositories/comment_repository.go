package repositories

import (
	"context"
	"fmt"

	"github.com/driftlog-app/driftlog/backend/internal/models"
	"github.com/driftlog-app/driftlog/backend/internal/pagination"
	"gorm.io/gorm"
)

// CommentRepository defines the interface for comment data operations.
//
// Read methods are Unscoped on purpose: soft-deleted comments stay in lists
// and counts because the client renders them as placeholders, and a thread
// must not lose the anchor its replies hang from. The formatting layer, not
// the query layer, hides the deleted content.
type CommentRepository interface {
	CreateComment(ctx context.Context, comment *models.Comment) error
	// GetCommentByID also returns soft-deleted rows; callers inspect
	// DeletedAt themselves.
	GetCommentByID(ctx context.Context, id string) (*models.Comment, error)
	// ListComments returns up to fetchLimit rows for the target, newest
	// first, seeking past the after row when given. parentID nil selects
	// top-level comments; non-nil selects the replies of that comment.
	ListComments(ctx context.Context, target models.TargetRef, parentID *string, after *models.Comment, fetchLimit int) ([]models.Comment, error)
	HasReplies(ctx context.Context, id string) (bool, error)
	// ReplyCounts counts direct replies per parent id in one grouped query.
	ReplyCounts(ctx context.Context, parentIDs []string) (map[string]int64, error)
	// SoftDeleteComment stamps deleted_at and keeps the row.
	SoftDeleteComment(ctx context.Context, id string) error
	// HardDeleteComment removes the row outright.
	HardDeleteComment(ctx context.Context, id string) error
	CountForTarget(ctx context.Context, target models.TargetRef) (int64, error)
}

// PostgresCommentRepository implements CommentRepository for PostgreSQL
type PostgresCommentRepository struct {
	db *gorm.DB
}

// NewPostgresCommentRepository creates a new PostgresCommentRepository
func NewPostgresCommentRepository(db *gorm.DB) *PostgresCommentRepository {
	return &PostgresCommentRepository{db: db}
}

// commentTargetColumn maps a target variant to the comment column holding
// its id. Comments never attach to users.
func commentTargetColumn(t models.TargetType) (string, error) {
	switch t {
	case models.TargetTypePost:
		return "post_id", nil
	case models.TargetTypeActivity:
		return "activity_id", nil
	}
	return "", fmt.Errorf("comments cannot attach to target type %q", t)
}

// CreateComment creates a new comment in PostgreSQL
func (r *PostgresCommentRepository) CreateComment(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

// GetCommentByID retrieves a comment by ID, soft-deleted rows included
func (r *PostgresCommentRepository) GetCommentByID(ctx context.Context, id string) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).Unscoped().First(&comment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

// ListComments pages through a target's comments, soft-deleted rows included
func (r *PostgresCommentRepository) ListComments(ctx context.Context, target models.TargetRef, parentID *string, after *models.Comment, fetchLimit int) ([]models.Comment, error) {
	col, err := commentTargetColumn(target.Type)
	if err != nil {
		return nil, err
	}

	q := r.db.WithContext(ctx).Unscoped().
		Where(col+" = ?", target.ID).
		Order(pagination.SortClause).
		Limit(fetchLimit)
	if parentID != nil {
		q = q.Where("parent_id = ?", *parentID)
	} else {
		q = q.Where("parent_id IS NULL")
	}
	if after != nil {
		q = q.Where(pagination.SeekClause, pagination.SeekArgs(after.CreatedAt, after.ID)...)
	}

	var comments []models.Comment
	if err := q.Find(&comments).Error; err != nil {
		return nil, err
	}
	return comments, nil
}

// HasReplies reports whether any comment, soft-deleted or not, points at id
func (r *PostgresCommentRepository) HasReplies(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Unscoped().Model(&models.Comment{}).
		Where("parent_id = ?", id).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ReplyCounts counts direct replies for many parents in one query
func (r *PostgresCommentRepository) ReplyCounts(ctx context.Context, parentIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64)
	if len(parentIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		ParentID string
		Total    int64
	}
	err := r.db.WithContext(ctx).Unscoped().Model(&models.Comment{}).
		Select("parent_id, COUNT(*) AS total").
		Where("parent_id IN ?", parentIDs).
		Group("parent_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.ParentID] = row.Total
	}
	return counts, nil
}

// SoftDeleteComment stamps deleted_at on the row
func (r *PostgresCommentRepository) SoftDeleteComment(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.Comment{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// HardDeleteComment removes the row outright
func (r *PostgresCommentRepository) HardDeleteComment(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Unscoped().Delete(&models.Comment{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountForTarget counts a target's comments, soft-deleted rows included
func (r *PostgresCommentRepository) CountForTarget(ctx context.Context, target models.TargetRef) (int64, error) {
	col, err := commentTargetColumn(target.Type)
	if err != nil {
		return 0, err
	}
	var count int64
	err = r.db.WithContext(ctx).Unscoped().Model(&models.Comment{}).
		Where(col+" = ?", target.ID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
