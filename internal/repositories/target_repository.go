package repositories

import (
	"context"
	"fmt"

	"github.com/driftlog-app/driftlog/backend/internal/models"
	"gorm.io/gorm"
)

// TargetRepository is the target-existence oracle plus the read side of the
// denormalized activity counters. The existence check is advisory only: the
// authoritative guard against writing an interaction or comment for a dead
// target is the foreign key constraint, surfaced through the classifier.
type TargetRepository interface {
	TargetExists(ctx context.Context, target models.TargetRef) (bool, error)
	ActivityLikesCount(ctx context.Context, activityID string) (int64, error)
	ActivityCommentsCount(ctx context.Context, activityID string) (int64, error)
	// ActivityCounters reads both counter columns for many activities in one
	// query. Unknown ids are absent from the result map.
	ActivityCounters(ctx context.Context, activityIDs []string) (map[string]models.ActivityCounters, error)
}

// PostgresTargetRepository implements TargetRepository
type PostgresTargetRepository struct {
	db *gorm.DB
}

// NewPostgresTargetRepository creates a new PostgresTargetRepository
func NewPostgresTargetRepository(db *gorm.DB) *PostgresTargetRepository {
	return &PostgresTargetRepository{db: db}
}

// TargetExists checks the table behind the target variant for the id
func (r *PostgresTargetRepository) TargetExists(ctx context.Context, target models.TargetRef) (bool, error) {
	var model interface{}
	switch target.Type {
	case models.TargetTypePost:
		model = &models.Post{}
	case models.TargetTypeActivity:
		model = &models.Activity{}
	case models.TargetTypeUser:
		model = &models.User{}
	default:
		return false, fmt.Errorf("unknown target type %q", target.Type)
	}

	var count int64
	err := r.db.WithContext(ctx).Model(model).Where("id = ?", target.ID).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ActivityLikesCount reads the denormalized likes counter for one activity
func (r *PostgresTargetRepository) ActivityLikesCount(ctx context.Context, activityID string) (int64, error) {
	return r.activityCounter(ctx, activityID, "likes_count")
}

// ActivityCommentsCount reads the denormalized comments counter for one activity
func (r *PostgresTargetRepository) ActivityCommentsCount(ctx context.Context, activityID string) (int64, error) {
	return r.activityCounter(ctx, activityID, "comments_count")
}

func (r *PostgresTargetRepository) activityCounter(ctx context.Context, activityID, column string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Activity{}).
		Select(column).
		Where("id = ?", activityID).
		Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ActivityCounters reads both counters for many activities at once
func (r *PostgresTargetRepository) ActivityCounters(ctx context.Context, activityIDs []string) (map[string]models.ActivityCounters, error) {
	counters := make(map[string]models.ActivityCounters)
	if len(activityIDs) == 0 {
		return counters, nil
	}

	var rows []struct {
		ID            string
		LikesCount    int64
		CommentsCount int64
	}
	err := r.db.WithContext(ctx).Model(&models.Activity{}).
		Select("id, likes_count, comments_count").
		Where("id IN ?", activityIDs).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counters[row.ID] = models.ActivityCounters{
			LikesCount:    row.LikesCount,
			CommentsCount: row.CommentsCount,
		}
	}
	return counters, nil
}
