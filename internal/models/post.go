package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Post is a long-form entry. Posts are low-write targets: their like,
// bookmark and comment counts are computed on demand rather than cached on
// the row.
type Post struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	AuthorID  string    `json:"author_id" gorm:"type:uuid;index"`
	Author    *User     `json:"-" gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CoverPath string    `json:"cover_path,omitempty"` // Object path in the media bucket
	CreatedAt time.Time `json:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// CreatePostRequest defines the request body for creating a new post
type CreatePostRequest struct {
	Title     string `json:"title" validate:"required,min=1,max=200"`
	Body      string `json:"body" validate:"required,min=1,max=50000"`
	CoverPath string `json:"cover_path,omitempty" validate:"omitempty,max=512"`
}

// UpdatePostRequest defines the request body for updating an existing post
type UpdatePostRequest struct {
	Title     string `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Body      string `json:"body,omitempty" validate:"omitempty,min=1,max=50000"`
	CoverPath string `json:"cover_path,omitempty" validate:"omitempty,max=512"`
}
