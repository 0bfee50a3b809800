package router

import (
	"log"
	"log/slog"

	"firebase.google.com/go/v4/auth"
	"github.com/driftlog-app/driftlog/backend/internal/handlers"
	appmiddleware "github.com/driftlog-app/driftlog/backend/internal/middleware"
	"github.com/driftlog-app/driftlog/backend/internal/repositories"
	"github.com/driftlog-app/driftlog/backend/internal/services"
	"github.com/driftlog-app/driftlog/backend/pkg/config"
	"github.com/driftlog-app/driftlog/backend/pkg/firebase"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all application routes and injects dependencies.
// fbApp may be nil when Firebase is not configured; Firebase login and URL
// signing then stay off.
func SetupRoutes(e *echo.Echo, db *config.DB, fbApp *firebase.App, cfg *config.Config, logger *slog.Logger) {
	if err := repositories.Migrate(db.Postgres); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Probes and metrics sit outside the API groups.
	healthHandler := handlers.NewHealthHandler(db.Postgres)
	healthHandler.RegisterHealthRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.Use(appmiddleware.Metrics())

	// --- Repositories ---
	userRepo := repositories.NewPostgresUserRepository(db.Postgres)
	postRepo := repositories.NewPostgresPostRepository(db.Postgres)
	activityRepo := repositories.NewPostgresActivityRepository(db.Postgres)
	targetRepo := repositories.NewPostgresTargetRepository(db.Postgres)
	interactionRepo := repositories.NewPostgresInteractionRepository(db.Postgres)
	commentRepo := repositories.NewPostgresCommentRepository(db.Postgres)
	notificationRepo := repositories.NewPostgresNotificationRepository(db.Postgres)

	var auditRepo repositories.AuditRepository
	if db.Mongo != nil {
		auditRepo = repositories.NewMongoAuditRepository(db.Mongo.Database(cfg.MongoDatabase))
	}

	var feedCache *repositories.FeedCache
	if db.Redis != nil {
		feedCache = repositories.NewFeedCache(db.Redis)
	}

	var signer services.MediaSigner = services.PassthroughSigner{}
	if fbApp != nil && fbApp.Bucket != nil {
		signer = services.NewGCSMediaSigner(fbApp.Bucket)
	}

	// --- Services ---
	interactionService := services.NewInteractionService(interactionRepo, targetRepo, logger)
	commentService := services.NewCommentService(commentRepo, targetRepo, userRepo, signer, logger)

	notifier := handlers.NewNotifier(notificationRepo, userRepo, postRepo, activityRepo)

	// The public group attaches identity when a token is present; the
	// protected group requires one.
	public := e.Group("/api/v1")
	public.Use(appmiddleware.OptionalJWTAuth(cfg.JWTSecret))
	protected := e.Group("/api/v1")
	protected.Use(appmiddleware.JWTAuth(cfg.JWTSecret))

	authHandler := handlers.NewAuthHandler(userRepo, firebaseAuthClientOf(fbApp), cfg.JWTSecret)
	authHandler.RegisterAuthRoutes(public, protected)
	log.Println("Auth routes configured.")

	userHandler := handlers.NewUserHandler(userRepo, postRepo, interactionRepo, interactionService, signer)
	userHandler.RegisterUserRoutes(public, protected)
	log.Println("User routes configured.")

	postHandler := handlers.NewPostHandler(postRepo, userRepo, interactionService, commentService, signer)
	postHandler.RegisterPostRoutes(public, protected)
	log.Println("Post routes configured.")

	activityHandler := handlers.NewActivityHandler(activityRepo, userRepo, interactionService, signer)
	activityHandler.RegisterActivityRoutes(public, protected)
	log.Println("Activity routes configured.")

	interactionHandler := handlers.NewInteractionHandler(interactionService, interactionRepo, postRepo, auditRepo, notifier)
	interactionHandler.RegisterInteractionRoutes(public, protected)
	log.Println("Interaction routes configured.")

	followHandler := handlers.NewFollowHandler(interactionService, interactionRepo, userRepo, auditRepo, notifier, feedCache, signer)
	followHandler.RegisterFollowRoutes(public, protected)
	log.Println("Follow routes configured.")

	commentHandler := handlers.NewCommentHandler(commentService, auditRepo, notifier)
	commentHandler.RegisterCommentRoutes(public, protected)
	log.Println("Comment routes configured.")

	feedHandler := handlers.NewFeedHandler(activityRepo, interactionRepo, userRepo, interactionService, feedCache, signer)
	feedHandler.RegisterFeedRoutes(protected)
	log.Println("Feed routes configured.")

	notificationHandler := handlers.NewNotificationHandler(notificationRepo, userRepo, signer)
	notificationHandler.RegisterNotificationRoutes(protected)
	log.Println("Notification routes configured.")

	log.Println("All routes configured.")
}

func firebaseAuthClientOf(fbApp *firebase.App) *auth.Client {
	if fbApp == nil {
		return nil
	}
	return fbApp.AuthClient
}
