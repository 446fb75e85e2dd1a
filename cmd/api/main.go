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
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/uniserve-app/uniserve-go-api/internal/config"
	"github.com/uniserve-app/uniserve-go-api/internal/database"
	"github.com/uniserve-app/uniserve-go-api/internal/handler"
	"github.com/uniserve-app/uniserve-go-api/internal/middleware"
	"github.com/uniserve-app/uniserve-go-api/internal/models"
	"github.com/uniserve-app/uniserve-go-api/internal/observability"
	"github.com/uniserve-app/uniserve-go-api/internal/repository"
	"github.com/uniserve-app/uniserve-go-api/internal/router"
	"github.com/uniserve-app/uniserve-go-api/internal/service"
	cloud "github.com/uniserve-app/uniserve-go-api/pkg/cloudinary"
	"github.com/uniserve-app/uniserve-go-api/pkg/fcm"
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
		&models.StudentDoctor{},
		&models.DeviceToken{},
		&models.VolunteerActivity{},
		&models.VolunteerRequest{},
		&models.ServiceProposal{},
		&models.Notification{},
		&models.ActivitySubmission{},
		&models.HoursSummary{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	observability.RegisterMetrics()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	}

	var uploader service.FileUploader
	if cfg.CloudinaryCloudName != "" {
		cloudService, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		uploader = cloudService
	}

	var sender service.PushSender
	if cfg.FCMCredentialsFile != "" {
		fcmService, err := fcm.New(context.Background(), fcm.Config{
			CredentialsFile: cfg.FCMCredentialsFile,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create fcm client: %v", err)
		}
		sender = fcmService
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	deviceRepo := repository.NewDeviceTokenRepository(db)
	requestRepo := repository.NewVolunteerRequestRepository(db)
	proposalRepo := repository.NewServiceProposalRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	hoursRepo := repository.NewHoursSummaryRepository(db)

	pushService := service.NewPushService(deviceRepo, sender, validate, logger, cfg.PushTimeout)
	notificationService := service.NewNotificationService(notificationRepo, pushService, redisClient, cfg.EventChannelBase, natsConn, logger)
	requestService := service.NewRequestService(requestRepo, proposalRepo, activityRepo, userRepo, submissionRepo, notificationRepo, notificationService, validate, logger)
	creditService := service.NewCreditService(submissionRepo, activityRepo, hoursRepo, notificationService, uploader, validate, logger)

	rootCtx, stopConsumers := context.WithCancel(context.Background())
	defer stopConsumers()
	notificationService.Start(rootCtx)

	requestHandler := handler.NewRequestHandler(requestService, logger)
	notificationHandler := handler.NewNotificationHandler(notificationService, requestService, logger, cfg.StreamKeepAlive)
	submissionHandler := handler.NewSubmissionHandler(creditService, logger)
	hoursHandler := handler.NewHoursHandler(creditService, logger)
	deviceHandler := handler.NewDeviceHandler(pushService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		RequestHandler:      requestHandler,
		NotificationHandler: notificationHandler,
		SubmissionHandler:   submissionHandler,
		HoursHandler:        hoursHandler,
		DeviceHandler:       deviceHandler,
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
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
