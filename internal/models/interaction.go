package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InteractionKind discriminates the relation a row represents.
type InteractionKind string

const (
	InteractionLike     InteractionKind = "like"
	InteractionBookmark InteractionKind = "bookmark"
	InteractionFollow   InteractionKind = "follow"
)

// Interaction is a single like, bookmark or follow row. Exactly one of
// PostID, ActivityID, FolloweeID is set, matching the kind: like and
// bookmark rows point at a post or activity, follow rows point at a user.
//
// At most one row may exist per (kind, user, target) pair, enforced by the
// composite unique indexes below and never by application logic. Rows are
// created and deleted, never updated in place.
type Interaction struct {
	ID   string          `json:"id" gorm:"type:uuid;primaryKey"`
	Kind InteractionKind `json:"kind" gorm:"size:16;index:idx_interactions_user_post,unique;index:idx_interactions_user_activity,unique;index:idx_interactions_user_followee,unique"`

	UserID string `json:"user_id" gorm:"type:uuid;index;index:idx_interactions_user_post,unique;index:idx_interactions_user_activity,unique;index:idx_interactions_user_followee,unique"`
	User   *User  `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`

	PostID     *string   `json:"post_id,omitempty" gorm:"type:uuid;index;index:idx_interactions_user_post,unique"`
	Post       *Post     `json:"-" gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE"`
	ActivityID *string   `json:"activity_id,omitempty" gorm:"type:uuid;index;index:idx_interactions_user_activity,unique"`
	Activity   *Activity `json:"-" gorm:"foreignKey:ActivityID;constraint:OnDelete:CASCADE"`
	FolloweeID *string   `json:"followee_id,omitempty" gorm:"type:uuid;index;index:idx_interactions_user_followee,unique"`
	Followee   *User     `json:"-" gorm:"foreignKey:FolloweeID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

func (i *Interaction) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// NewInteraction builds an unsaved row for the given pair.
func NewInteraction(kind InteractionKind, userID string, target TargetRef) (*Interaction, error) {
	row := &Interaction{Kind: kind, UserID: userID}
	switch target.Type {
	case TargetTypePost:
		row.PostID = &target.ID
	case TargetTypeActivity:
		row.ActivityID = &target.ID
	case TargetTypeUser:
		row.FolloweeID = &target.ID
	default:
		return nil, fmt.Errorf("unknown target type %q", target.Type)
	}
	return row, nil
}

// Target reconstructs the reference this row points at.
func (i *Interaction) Target() TargetRef {
	switch {
	case i.PostID != nil:
		return PostTarget(*i.PostID)
	case i.ActivityID != nil:
		return ActivityTarget(*i.ActivityID)
	case i.FolloweeID != nil:
		return UserTarget(*i.FolloweeID)
	}
	return TargetRef{}
}

// InteractionStatus is the per-target outcome shape shared by the toggle and
// batch paths.
type InteractionStatus struct {
	Active bool  `json:"active"`
	Count  int64 `json:"count"`
}

// BatchStatusRequest defines the request body for batch status resolution.
// The id list is capped to keep a single round trip cheap.
type BatchStatusRequest struct {
	IDs []string `json:"ids" validate:"required,max=50,dive,required"`
}
