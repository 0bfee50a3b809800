package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Activity is a short status update on the feed. Activities are high-write
// targets, so they carry denormalized counter columns instead of paying an
// aggregate query per read. The columns are maintained by database triggers
// (see repositories.Migrate), which means a read may briefly trail a
// concurrent row mutation.
type Activity struct {
	ID            string    `json:"id" gorm:"type:uuid;primaryKey"`
	AuthorID      string    `json:"author_id" gorm:"type:uuid;index"`
	Author        *User     `json:"-" gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE"`
	Body          string    `json:"body"`
	ImagePath     string    `json:"image_path,omitempty"`
	LikesCount    int64     `json:"likes_count" gorm:"not null;default:0"`
	CommentsCount int64     `json:"comments_count" gorm:"not null;default:0"`
	CreatedAt     time.Time `json:"created_at" gorm:"index"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (a *Activity) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// ActivityCounters is the pair of denormalized counts read back for batch
// status resolution.
type ActivityCounters struct {
	LikesCount    int64
	CommentsCount int64
}

// CreateActivityRequest defines the request body for posting an activity
type CreateActivityRequest struct {
	Body      string `json:"body" validate:"required,min=1,max=500"`
	ImagePath string `json:"image_path,omitempty" validate:"omitempty,max=512"`
}
