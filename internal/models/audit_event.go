package models

import "time"

// AuditEvent is an interaction or comment outcome recorded to the audit
// collection in MongoDB. Events are write-only from the application's point
// of view; nothing in the request path reads them back.
type AuditEvent struct {
	Action     string    `json:"action" bson:"action"` // e.g. like.toggle, bookmark.set, comment.delete
	ActorID    string    `json:"actor_id" bson:"actor_id"`
	TargetType string    `json:"target_type" bson:"target_type"`
	TargetID   string    `json:"target_id" bson:"target_id"`
	Result     string    `json:"result" bson:"result"` // active, inactive, soft_deleted, hard_deleted
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
}
