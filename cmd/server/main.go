package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/driftlog-app/driftlog/backend/internal/router"
	"github.com/driftlog-app/driftlog/backend/pkg/config"
	"github.com/driftlog-app/driftlog/backend/pkg/firebase"
	"github.com/driftlog-app/driftlog/backend/validators"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, assuming environment variables are set.")
	}

	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	if cfg.Env == "development" {
		logger = slog.New(slog.NewTextHandler(os.Stdout, nil))
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize databases: %v", err)
	}
	defer db.CloseDB()

	// Firebase is optional: without credentials the server still runs with
	// local JWT auth and unsigned media paths.
	var firebaseApp *firebase.App
	if cfg.FirebaseCredentialsPath != "" {
		firebaseApp, err = firebase.InitFirebase(context.Background(), cfg.FirebaseCredentialsPath, cfg.StorageBucket)
		if err != nil {
			log.Fatalf("Failed to initialize Firebase: %v", err)
		}
	} else {
		log.Println("FIREBASE_CREDENTIALS_PATH not set, Firebase login disabled.")
	}

	e := echo.New()
	e.Validator = validators.NewValidator()

	config.SetupMiddleware(e)
	router.SetupRoutes(e, db, firebaseApp, cfg, logger)

	e.Logger.Fatal(e.Start(":" + cfg.Port))
}
