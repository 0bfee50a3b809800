package repositories

import (
	"context"

	"github.com/driftlog-app/driftlog/backend/internal/models"
	"github.com/driftlog-app/driftlog/backend/internal/pagination"
	"gorm.io/gorm"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	CreatePost(ctx context.Context, post *models.Post) error
	GetPostByID(ctx context.Context, id string) (*models.Post, error)
	GetPostsByIDs(ctx context.Context, ids []string) ([]models.Post, error)
	// ListPosts pages through all posts, newest first.
	ListPosts(ctx context.Context, after *models.Post, fetchLimit int) ([]models.Post, error)
	ListPostsByAuthor(ctx context.Context, authorID string, after *models.Post, fetchLimit int) ([]models.Post, error)
	CountByAuthor(ctx context.Context, authorID string) (int64, error)
	UpdatePost(ctx context.Context, post *models.Post) error
	// DeletePost removes the row; interactions and comments go with it via
	// the cascading foreign keys.
	DeletePost(ctx context.Context, id string) error
}

// PostgresPostRepository implements PostRepository for PostgreSQL
type PostgresPostRepository struct {
	db *gorm.DB
}

// NewPostgresPostRepository creates a new PostgresPostRepository
func NewPostgresPostRepository(db *gorm.DB) *PostgresPostRepository {
	return &PostgresPostRepository{db: db}
}

// CreatePost creates a new post in PostgreSQL
func (r *PostgresPostRepository) CreatePost(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

// GetPostByID retrieves a post by ID from PostgreSQL
func (r *PostgresPostRepository) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

// GetPostsByIDs fetches many posts in one query, input order not preserved
func (r *PostgresPostRepository) GetPostsByIDs(ctx context.Context, ids []string) ([]models.Post, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var posts []models.Post
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

// ListPosts pages through all posts, newest first
func (r *PostgresPostRepository) ListPosts(ctx context.Context, after *models.Post, fetchLimit int) ([]models.Post, error) {
	q := r.db.WithContext(ctx).
		Order(pagination.SortClause).
		Limit(fetchLimit)
	if after != nil {
		q = q.Where(pagination.SeekClause, pagination.SeekArgs(after.CreatedAt, after.ID)...)
	}
	var posts []models.Post
	if err := q.Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

// ListPostsByAuthor pages through one author's posts, newest first
func (r *PostgresPostRepository) ListPostsByAuthor(ctx context.Context, authorID string, after *models.Post, fetchLimit int) ([]models.Post, error) {
	q := r.db.WithContext(ctx).
		Where("author_id = ?", authorID).
		Order(pagination.SortClause).
		Limit(fetchLimit)
	if after != nil {
		q = q.Where(pagination.SeekClause, pagination.SeekArgs(after.CreatedAt, after.ID)...)
	}
	var posts []models.Post
	if err := q.Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

// CountByAuthor counts one author's posts
func (r *PostgresPostRepository) CountByAuthor(ctx context.Context, authorID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Post{}).Where("author_id = ?", authorID).Count(&count).Error
	return count, err
}

// UpdatePost updates an existing post in PostgreSQL
func (r *PostgresPostRepository) UpdatePost(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Save(post).Error
}

// DeletePost deletes a post by ID from PostgreSQL
func (r *PostgresPostRepository) DeletePost(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.Post{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
