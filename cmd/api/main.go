package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/akademia-dev/thesis-review-api/internal/config"
	"github.com/akademia-dev/thesis-review-api/internal/database"
	"github.com/akademia-dev/thesis-review-api/internal/handler"
	"github.com/akademia-dev/thesis-review-api/internal/middleware"
	"github.com/akademia-dev/thesis-review-api/internal/models"
	"github.com/akademia-dev/thesis-review-api/internal/repository"
	"github.com/akademia-dev/thesis-review-api/internal/router"
	"github.com/akademia-dev/thesis-review-api/internal/service"
	cloud "github.com/akademia-dev/thesis-review-api/pkg/cloudinary"
	"github.com/akademia-dev/thesis-review-api/pkg/renderer"
	"github.com/akademia-dev/thesis-review-api/pkg/similarity"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Thesis{},
		&models.Assessment{},
		&models.ReviewIteration{},
		&models.Assignment{},
		&models.ActivityLog{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	defer natsConn.Drain()

	storage, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create cloudinary client: %v", err)
	}

	oracle, err := similarity.New(similarity.Config{
		BaseURL: cfg.SimilarityOracleURL,
		APIKey:  cfg.SimilarityOracleKey,
		Logger:  logger,
	})
	if err != nil {
		log.Fatalf("failed to create similarity client: %v", err)
	}

	docRenderer, err := renderer.New(renderer.Config{
		BaseURL: cfg.RendererURL,
		APIKey:  cfg.RendererKey,
		Logger:  logger,
	})
	if err != nil {
		log.Fatalf("failed to create renderer client: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	thesisRepo := repository.NewThesisRepository(db)
	userRepo := repository.NewUserRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	activity := service.NewActivityService(activityRepo, logger)
	events := service.NewNATSPublisher(natsConn, cfg.NATSSubjectBase, logger)

	dashboardService := service.NewDashboardService(thesisRepo, redisClient, cfg.DashboardCacheTTL, logger)
	thesisService := service.NewThesisService(thesisRepo, storage, validate, activity, events, cfg.MaxUploadMB, logger)
	plagiarismService := service.NewPlagiarismService(thesisRepo, oracle, activity, events, cfg.SimilarityThreshold, cfg.MaxPlagiarismAttempts, logger)
	assignmentService := service.NewAssignmentService(assignmentRepo, thesisRepo, userRepo, validate, activity, events, dashboardService, logger)
	reviewService := service.NewReviewService(thesisRepo, userRepo, storage, docRenderer, validate, activity, events, dashboardService, cfg.MaxUploadMB, logger)

	thesisHandler := handler.NewThesisHandler(thesisService, logger)
	plagiarismHandler := handler.NewPlagiarismHandler(plagiarismService, logger)
	assignmentHandler := handler.NewAssignmentHandler(assignmentService, logger)
	reviewHandler := handler.NewReviewHandler(reviewService, logger)
	reviewerHandler := handler.NewReviewerHandler(dashboardService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		ThesisHandler:     thesisHandler,
		PlagiarismHandler: plagiarismHandler,
		AssignmentHandler: assignmentHandler,
		ReviewHandler:     reviewHandler,
		ReviewerHandler:   reviewerHandler,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
