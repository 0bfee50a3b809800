package repositories

import (
	"context"
	"time"

	"github.com/driftlog-app/driftlog/backend/internal/models"
	"go.mongodb.org/mongo-driver/mongo"
)

// AuditRepository records interaction and comment outcomes for offline
// inspection. It is a pure sink: the request path never reads events back,
// and a failed write must not fail the request that produced it.
type AuditRepository interface {
	RecordEvent(ctx context.Context, event *models.AuditEvent) error
}

// MongoAuditRepository implements AuditRepository on a MongoDB collection
type MongoAuditRepository struct {
	collection *mongo.Collection
}

// NewMongoAuditRepository creates a new MongoAuditRepository
func NewMongoAuditRepository(db *mongo.Database) *MongoAuditRepository {
	return &MongoAuditRepository{collection: db.Collection("audit_events")}
}

// RecordEvent inserts one event document
func (r *MongoAuditRepository) RecordEvent(ctx context.Context, event *models.AuditEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	_, err := r.collection.InsertOne(ctx, event)
	return err
}
