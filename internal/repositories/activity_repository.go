package repositories

import (
	"context"

	"github.com/driftlog-app/driftlog/backend/internal/models"
	"github.com/driftlog-app/driftlog/backend/internal/pagination"
	"gorm.io/gorm"
)

// ActivityRepository defines the interface for activity data operations.
// The denormalized counter columns on activities are written only by the
// database triggers installed at migration time, never from here.
type ActivityRepository interface {
	CreateActivity(ctx context.Context, activity *models.Activity) error
	GetActivityByID(ctx context.Context, id string) (*models.Activity, error)
	GetActivitiesByIDs(ctx context.Context, ids []string) ([]models.Activity, error)
	// ListActivitiesByAuthors pages through activities written by any of the
	// given authors, newest first. This is the feed query.
	ListActivitiesByAuthors(ctx context.Context, authorIDs []string, after *models.Activity, fetchLimit int) ([]models.Activity, error)
	ListActivitiesByAuthor(ctx context.Context, authorID string, after *models.Activity, fetchLimit int) ([]models.Activity, error)
	DeleteActivity(ctx context.Context, id string) error
}

// PostgresActivityRepository implements ActivityRepository
type PostgresActivityRepository struct {
	db *gorm.DB
}

// NewPostgresActivityRepository creates a new PostgresActivityRepository
func NewPostgresActivityRepository(db *gorm.DB) *PostgresActivityRepository {
	return &PostgresActivityRepository{db: db}
}

// CreateActivity creates a new activity in PostgreSQL
func (r *PostgresActivityRepository) CreateActivity(ctx context.Context, activity *models.Activity) error {
	return r.db.WithContext(ctx).Create(activity).Error
}

// GetActivityByID retrieves an activity by ID from PostgreSQL
func (r *PostgresActivityRepository) GetActivityByID(ctx context.Context, id string) (*models.Activity, error) {
	var activity models.Activity
	if err := r.db.WithContext(ctx).First(&activity, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &activity, nil
}

// GetActivitiesByIDs fetches many activities in one query
func (r *PostgresActivityRepository) GetActivitiesByIDs(ctx context.Context, ids []string) ([]models.Activity, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var activities []models.Activity
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&activities).Error; err != nil {
		return nil, err
	}
	return activities, nil
}

// ListActivitiesByAuthors pages through the given authors' activities, newest first
func (r *PostgresActivityRepository) ListActivitiesByAuthors(ctx context.Context, authorIDs []string, after *models.Activity, fetchLimit int) ([]models.Activity, error) {
	if len(authorIDs) == 0 {
		return nil, nil
	}
	q := r.db.WithContext(ctx).
		Where("author_id IN ?", authorIDs).
		Order(pagination.SortClause).
		Limit(fetchLimit)
	if after != nil {
		q = q.Where(pagination.SeekClause, pagination.SeekArgs(after.CreatedAt, after.ID)...)
	}
	var activities []models.Activity
	if err := q.Find(&activities).Error; err != nil {
		return nil, err
	}
	return activities, nil
}

// ListActivitiesByAuthor pages through one author's activities, newest first
func (r *PostgresActivityRepository) ListActivitiesByAuthor(ctx context.Context, authorID string, after *models.Activity, fetchLimit int) ([]models.Activity, error) {
	return r.ListActivitiesByAuthors(ctx, []string{authorID}, after, fetchLimit)
}

// DeleteActivity deletes an activity by ID from PostgreSQL
func (r *PostgresActivityRepository) DeleteActivity(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.Activity{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
