package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notification represents a user notification (PostgreSQL)
type Notification struct {
	ID          string    `json:"id" gorm:"type:uuid;primaryKey"`
	Type        string    `json:"type" gorm:"size:30;index"` // like, comment, follow
	ActorID     string    `json:"actor_id" gorm:"type:uuid;index"`
	Actor       *User     `json:"-" gorm:"foreignKey:ActorID;constraint:OnDelete:CASCADE"`
	RecipientID string    `json:"recipient_id" gorm:"type:uuid;index"`
	Recipient   *User     `json:"-" gorm:"foreignKey:RecipientID;constraint:OnDelete:CASCADE"`
	TargetType  string    `json:"target_type" gorm:"size:20"` // post, activity, comment, user
	TargetID    string    `json:"target_id"`
	Message     string    `json:"message"`
	IsRead      bool      `json:"is_read" gorm:"default:false;index"`
	CreatedAt   time.Time `json:"created_at" gorm:"index"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}
