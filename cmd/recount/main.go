package main

import (
	"context"
	"log"
	"time"

	"github.com/driftlog-app/driftlog/backend/internal/repositories"
	"github.com/driftlog-app/driftlog/backend/pkg/config"
	"github.com/joho/godotenv"
)

// Reconciles the denormalized activity counter columns against their source
// rows. The triggers keep the counters right in normal operation; this runs
// offline after anything that could have bypassed them, such as a manual
// data fix.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, assuming environment variables are set.")
	}

	cfg := config.Load()
	cfg.MongoURI = ""
	cfg.RedisURL = ""

	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.CloseDB()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	result, err := repositories.RecountActivityCounters(ctx, db.Postgres)
	if err != nil {
		log.Fatalf("Recount failed: %v", err)
	}

	log.Printf("Recount done: %d likes_count rows corrected, %d comments_count rows corrected.",
		result.LikesCorrected, result.CommentsCorrected)
}
