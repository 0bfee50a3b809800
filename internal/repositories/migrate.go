package repositories

import (
	"context"
	"fmt"
	"log"

	"github.com/driftlog-app/driftlog/backend/internal/models"
	"gorm.io/gorm"
)

// Migrate runs AutoMigrate for every model and then installs the counter
// triggers. Triggers keep the denormalized activity counters in sync with
// interaction and comment row mutations outside the request path, so the
// application never writes a counter column itself.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Post{},
		&models.Activity{},
		&models.Interaction{},
		&models.Comment{},
		&models.Notification{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	if err := installCounterTriggers(db); err != nil {
		return fmt.Errorf("install counter triggers: %w", err)
	}

	log.Println("PostgreSQL migrations and counter triggers completed.")
	return nil
}

// Trigger DDL. Soft deletes are UPDATEs and deliberately do not fire the
// comment trigger: a soft-deleted comment keeps rendering as a placeholder,
// so it stays counted. Cascade deletes fire the DELETE branch per removed
// row, and the counter UPDATE matching zero rows (target already gone) is a
// no-op.
var counterTriggerDDL = []string{
	`CREATE OR REPLACE FUNCTION driftlog_bump_activity_likes() RETURNS trigger AS $$
BEGIN
	IF (TG_OP = 'INSERT') THEN
		IF NEW.kind = 'like' AND NEW.activity_id IS NOT NULL THEN
			UPDATE activities SET likes_count = likes_count + 1 WHERE id = NEW.activity_id;
		END IF;
		RETURN NEW;
	ELSIF (TG_OP = 'DELETE') THEN
		IF OLD.kind = 'like' AND OLD.activity_id IS NOT NULL THEN
			UPDATE activities SET likes_count = likes_count - 1 WHERE id = OLD.activity_id;
		END IF;
		RETURN OLD;
	END IF;
	RETURN NULL;
END;
$$ LANGUAGE plpgsql`,

	`DROP TRIGGER IF EXISTS trg_interactions_activity_likes ON interactions`,

	`CREATE TRIGGER trg_interactions_activity_likes
AFTER INSERT OR DELETE ON interactions
FOR EACH ROW EXECUTE FUNCTION driftlog_bump_activity_likes()`,

	`CREATE OR REPLACE FUNCTION driftlog_bump_activity_comments() RETURNS trigger AS $$
BEGIN
	IF (TG_OP = 'INSERT') THEN
		IF NEW.activity_id IS NOT NULL THEN
			UPDATE activities SET comments_count = comments_count + 1 WHERE id = NEW.activity_id;
		END IF;
		RETURN NEW;
	ELSIF (TG_OP = 'DELETE') THEN
		IF OLD.activity_id IS NOT NULL THEN
			UPDATE activities SET comments_count = comments_count - 1 WHERE id = OLD.activity_id;
		END IF;
		RETURN OLD;
	END IF;
	RETURN NULL;
END;
$$ LANGUAGE plpgsql`,

	`DROP TRIGGER IF EXISTS trg_comments_activity_comments ON comments`,

	`CREATE TRIGGER trg_comments_activity_comments
AFTER INSERT OR DELETE ON comments
FOR EACH ROW EXECUTE FUNCTION driftlog_bump_activity_comments()`,
}

func installCounterTriggers(db *gorm.DB) error {
	for _, ddl := range counterTriggerDDL {
		if err := db.Exec(ddl).Error; err != nil {
			return err
		}
	}
	return nil
}

// RecountResult reports how many activity rows each reconciliation pass
// corrected.
type RecountResult struct {
	LikesCorrected    int64
	CommentsCorrected int64
}

// RecountActivityCounters rebuilds both counter columns from live
// aggregates. It exists because the triggers have no recovery path of their
// own: if a counter ever diverges from its rows, this is how it converges
// again. Run it offline via cmd/recount.
func RecountActivityCounters(ctx context.Context, db *gorm.DB) (*RecountResult, error) {
	result := &RecountResult{}

	likes, err := recountColumn(ctx, db,
		`UPDATE activities SET likes_count = sub.total
		 FROM (
			SELECT activity_id, COUNT(*) AS total
			FROM interactions
			WHERE kind = 'like' AND activity_id IS NOT NULL
			GROUP BY activity_id
		 ) sub
		 WHERE activities.id = sub.activity_id AND activities.likes_count <> sub.total`,
		`UPDATE activities SET likes_count = 0
		 WHERE likes_count <> 0 AND NOT EXISTS (
			SELECT 1 FROM interactions
			WHERE kind = 'like' AND interactions.activity_id = activities.id
		 )`,
	)
	if err != nil {
		return nil, fmt.Errorf("recount likes: %w", err)
	}
	result.LikesCorrected = likes

	comments, err := recountColumn(ctx, db,
		`UPDATE activities SET comments_count = sub.total
		 FROM (
			SELECT activity_id, COUNT(*) AS total
			FROM comments
			WHERE activity_id IS NOT NULL
			GROUP BY activity_id
		 ) sub
		 WHERE activities.id = sub.activity_id AND activities.comments_count <> sub.total`,
		`UPDATE activities SET comments_count = 0
		 WHERE comments_count <> 0 AND NOT EXISTS (
			SELECT 1 FROM comments WHERE comments.activity_id = activities.id
		 )`,
	)
	if err != nil {
		return nil, fmt.Errorf("recount comments: %w", err)
	}
	result.CommentsCorrected = comments

	return result, nil
}

// recountColumn applies the aggregate fix plus the zero-out for rows with no
// matching aggregate, returning total corrected rows.
func recountColumn(ctx context.Context, db *gorm.DB, fixSQL, zeroSQL string) (int64, error) {
	fix := db.WithContext(ctx).Exec(fixSQL)
	if fix.Error != nil {
		return 0, fix.Error
	}
	zero := db.WithContext(ctx).Exec(zeroSQL)
	if zero.Error != nil {
		return fix.RowsAffected, zero.Error
	}
	return fix.RowsAffected + zero.RowsAffected, nil
}
