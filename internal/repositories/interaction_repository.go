package repositories

import (
	"context"
	"fmt"

	"github.com/driftlog-app/driftlog/backend/internal/models"
	"github.com/driftlog-app/driftlog/backend/internal/pagination"
	"gorm.io/gorm"
)

// InteractionRepository defines the interface for like, bookmark and follow
// row operations. Every mutation is a single statement; uniqueness per
// (kind, user, target) pair is enforced by the table's composite unique
// indexes, and constraint failures surface as classifiable errors rather
// than being checked up front.
type InteractionRepository interface {
	GetInteraction(ctx context.Context, kind models.InteractionKind, userID string, target models.TargetRef) (*models.Interaction, error)
	GetInteractionByID(ctx context.Context, id string) (*models.Interaction, error)
	CreateInteraction(ctx context.Context, row *models.Interaction) error
	// DeleteInteractionByID removes one row by primary key and reports a
	// record-not-found error when the row is already gone.
	DeleteInteractionByID(ctx context.Context, id string) error
	// DeleteInteractionByPair removes whatever matches the pair filter and
	// returns the number of rows removed; zero is not an error.
	DeleteInteractionByPair(ctx context.Context, kind models.InteractionKind, userID string, target models.TargetRef) (int64, error)
	CountForTarget(ctx context.Context, kind models.InteractionKind, target models.TargetRef) (int64, error)
	// CountForTargets resolves per-target counts for many ids in one grouped
	// aggregate query. Targets with no rows are absent from the result map.
	CountForTargets(ctx context.Context, kind models.InteractionKind, targetType models.TargetType, targetIDs []string) (map[string]int64, error)
	// ActiveTargetIDs returns the subset of targetIDs the user has an active
	// row for, as a membership set.
	ActiveTargetIDs(ctx context.Context, kind models.InteractionKind, userID string, targetType models.TargetType, targetIDs []string) (map[string]bool, error)
	CountByUser(ctx context.Context, kind models.InteractionKind, userID string) (int64, error)
	// FolloweeIDs lists the ids of every user the given user follows.
	FolloweeIDs(ctx context.Context, userID string) ([]string, error)
	// ListByUser returns up to fetchLimit rows of the user's interactions of
	// one kind and target variant, newest first, seeking past the after row
	// when given.
	ListByUser(ctx context.Context, kind models.InteractionKind, targetType models.TargetType, userID string, after *models.Interaction, fetchLimit int) ([]models.Interaction, error)
	// ListFollowers returns up to fetchLimit follow rows pointing at the
	// user, newest first, seeking past the after row when given.
	ListFollowers(ctx context.Context, followeeID string, after *models.Interaction, fetchLimit int) ([]models.Interaction, error)
}

// PostgresInteractionRepository implements InteractionRepository
type PostgresInteractionRepository struct {
	db *gorm.DB
}

// NewPostgresInteractionRepository creates a new PostgresInteractionRepository
func NewPostgresInteractionRepository(db *gorm.DB) *PostgresInteractionRepository {
	return &PostgresInteractionRepository{db: db}
}

// targetColumn maps a target variant to the nullable column holding its id.
func targetColumn(t models.TargetType) (string, error) {
	switch t {
	case models.TargetTypePost:
		return "post_id", nil
	case models.TargetTypeActivity:
		return "activity_id", nil
	case models.TargetTypeUser:
		return "followee_id", nil
	}
	return "", fmt.Errorf("unknown target type %q", t)
}

func (r *PostgresInteractionRepository) pairQuery(ctx context.Context, kind models.InteractionKind, userID string, target models.TargetRef) (*gorm.DB, error) {
	col, err := targetColumn(target.Type)
	if err != nil {
		return nil, err
	}
	q := r.db.WithContext(ctx).
		Where("kind = ? AND user_id = ? AND "+col+" = ?", kind, userID, target.ID)
	return q, nil
}

// GetInteraction retrieves the row for a (kind, user, target) pair
func (r *PostgresInteractionRepository) GetInteraction(ctx context.Context, kind models.InteractionKind, userID string, target models.TargetRef) (*models.Interaction, error) {
	q, err := r.pairQuery(ctx, kind, userID, target)
	if err != nil {
		return nil, err
	}
	var row models.Interaction
	if err := q.First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// GetInteractionByID retrieves a single row by primary key
func (r *PostgresInteractionRepository) GetInteractionByID(ctx context.Context, id string) (*models.Interaction, error) {
	var row models.Interaction
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// CreateInteraction inserts a new row
func (r *PostgresInteractionRepository) CreateInteraction(ctx context.Context, row *models.Interaction) error {
	return r.db.WithContext(ctx).Create(row).Error
}

// DeleteInteractionByID deletes one row by primary key
func (r *PostgresInteractionRepository) DeleteInteractionByID(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.Interaction{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteInteractionByPair deletes by pair filter; removing nothing is fine
func (r *PostgresInteractionRepository) DeleteInteractionByPair(ctx context.Context, kind models.InteractionKind, userID string, target models.TargetRef) (int64, error) {
	q, err := r.pairQuery(ctx, kind, userID, target)
	if err != nil {
		return 0, err
	}
	res := q.Delete(&models.Interaction{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// CountForTarget counts rows of one kind pointing at a single target
func (r *PostgresInteractionRepository) CountForTarget(ctx context.Context, kind models.InteractionKind, target models.TargetRef) (int64, error) {
	col, err := targetColumn(target.Type)
	if err != nil {
		return 0, err
	}
	var count int64
	err = r.db.WithContext(ctx).Model(&models.Interaction{}).
		Where("kind = ? AND "+col+" = ?", kind, target.ID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// CountForTargets counts rows of one kind grouped by target id
func (r *PostgresInteractionRepository) CountForTargets(ctx context.Context, kind models.InteractionKind, targetType models.TargetType, targetIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64)
	if len(targetIDs) == 0 {
		return counts, nil
	}
	col, err := targetColumn(targetType)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		TargetID string
		Total    int64
	}
	err = r.db.WithContext(ctx).Model(&models.Interaction{}).
		Select(col+" AS target_id, COUNT(*) AS total").
		Where("kind = ? AND "+col+" IN ?", kind, targetIDs).
		Group(col).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.TargetID] = row.Total
	}
	return counts, nil
}

// ActiveTargetIDs returns which of the given targets the user has a row for
func (r *PostgresInteractionRepository) ActiveTargetIDs(ctx context.Context, kind models.InteractionKind, userID string, targetType models.TargetType, targetIDs []string) (map[string]bool, error) {
	active := make(map[string]bool)
	if len(targetIDs) == 0 {
		return active, nil
	}
	col, err := targetColumn(targetType)
	if err != nil {
		return nil, err
	}

	var ids []string
	err = r.db.WithContext(ctx).Model(&models.Interaction{}).
		Where("kind = ? AND user_id = ? AND "+col+" IN ?", kind, userID, targetIDs).
		Pluck(col, &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		active[id] = true
	}
	return active, nil
}

// CountByUser counts rows of one kind created by the user
func (r *PostgresInteractionRepository) CountByUser(ctx context.Context, kind models.InteractionKind, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Interaction{}).
		Where("kind = ? AND user_id = ?", kind, userID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// FolloweeIDs lists every user id the given user follows
func (r *PostgresInteractionRepository) FolloweeIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.Interaction{}).
		Where("kind = ? AND user_id = ?", models.InteractionFollow, userID).
		Pluck("followee_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ListByUser pages through the user's interactions of one kind and target
// variant, newest first
func (r *PostgresInteractionRepository) ListByUser(ctx context.Context, kind models.InteractionKind, targetType models.TargetType, userID string, after *models.Interaction, fetchLimit int) ([]models.Interaction, error) {
	col, err := targetColumn(targetType)
	if err != nil {
		return nil, err
	}
	q := r.db.WithContext(ctx).
		Where("kind = ? AND user_id = ?", kind, userID).
		Where(col+" IS NOT NULL").
		Order(pagination.SortClause).
		Limit(fetchLimit)
	if after != nil {
		q = q.Where(pagination.SeekClause, pagination.SeekArgs(after.CreatedAt, after.ID)...)
	}
	var rows []models.Interaction
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListFollowers pages through the follow rows pointing at a user, newest first
func (r *PostgresInteractionRepository) ListFollowers(ctx context.Context, followeeID string, after *models.Interaction, fetchLimit int) ([]models.Interaction, error) {
	q := r.db.WithContext(ctx).
		Where("kind = ? AND followee_id = ?", models.InteractionFollow, followeeID).
		Order(pagination.SortClause).
		Limit(fetchLimit)
	if after != nil {
		q = q.Where(pagination.SeekClause, pagination.SeekArgs(after.CreatedAt, after.ID)...)
	}
	var rows []models.Interaction
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
