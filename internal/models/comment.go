package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Comment is attached to exactly one of a post or an activity, optionally
// nested under a parent comment on the same target. DeletedAt implements the
// soft-delete half of the comment lifecycle: a soft-deleted row stays in
// place so its replies keep their anchor, and read paths go through
// Unscoped queries plus placeholder formatting instead of gorm's default
// deleted_at filter.
type Comment struct {
	ID         string    `json:"id" gorm:"type:uuid;primaryKey"`
	PostID     *string   `json:"post_id,omitempty" gorm:"type:uuid;index"`
	Post       *Post     `json:"-" gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE"`
	ActivityID *string   `json:"activity_id,omitempty" gorm:"type:uuid;index"`
	Activity   *Activity `json:"-" gorm:"foreignKey:ActivityID;constraint:OnDelete:CASCADE"`
	AuthorID   string    `json:"author_id" gorm:"type:uuid;index"`
	Author     *User     `json:"-" gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE"`
	ParentID   *string   `json:"parent_id,omitempty" gorm:"type:uuid;index"`
	Parent     *Comment  `json:"-" gorm:"foreignKey:ParentID"`
	Content    string    `json:"content"`

	CreatedAt time.Time      `json:"created_at" gorm:"index"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Target reconstructs the reference this comment is attached to.
func (c *Comment) Target() TargetRef {
	switch {
	case c.PostID != nil:
		return PostTarget(*c.PostID)
	case c.ActivityID != nil:
		return ActivityTarget(*c.ActivityID)
	}
	return TargetRef{}
}

// CreateCommentRequest defines the request body for creating a new comment
type CreateCommentRequest struct {
	Content  string  `json:"content" validate:"required,min=1,max=2000"`
	ParentID *string `json:"parent_id,omitempty" validate:"omitempty,uuid4"`
}
