package main

import (
	"github.com/memeet/scheduler/internal/config"
	"github.com/memeet/scheduler/internal/handlers"
	"github.com/memeet/scheduler/internal/middleware"
	"github.com/memeet/scheduler/internal/models"
	"github.com/memeet/scheduler/internal/services"
	"github.com/memeet/scheduler/internal/utils"
	"github.com/memeet/scheduler/pkg/logger"
)

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	taskQueue   services.TaskQueue
	worker      *services.Worker
	scheduler   *services.SchedulerService
	sseHub      *services.SSEHub
	authLimiter *middleware.RateLimiter

	authService  *services.AuthService
	auditService *services.AuditService

	healthHandler       *handlers.HealthHandler
	authHandler         *handlers.AuthHandler
	userHandler         *handlers.UserHandler
	availabilityHandler *handlers.AvailabilityHandler
	meetingHandler      *handlers.MeetingHandler
	sseHandler          *handlers.SSEHandler
}

// bootstrap initializes all application dependencies: database, services, schedulers.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	if err := models.InitDB(&cfg.Database, cfg.Server.Mode); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	db := models.GetDB()

	if err := models.AutoMigrate(db); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	if err := handlers.RegisterValidators(); err != nil {
		logger.Fatalf("Failed to register validators: %v", err)
	}

	holidays := services.NewHolidayService()
	if country := cfg.Scheduling.HolidayCountry; country != "" && !holidays.IsSupported(country) {
		logger.Warn().Str("country", country).Msg("No holiday calendar for country, holiday blocks disabled")
	}

	// Uses Redis if enabled, otherwise notifications are delivered inline
	sseHub := services.NewSSEHub()
	emailService := services.NewEmailService(&cfg.SMTP, cfg.Scheduling.Location())
	notificationService := services.NewNotificationService(db, emailService, sseHub)

	taskQueue := services.NewTaskQueue(cfg)
	if syncQueue, ok := taskQueue.(*services.SyncQueue); ok {
		syncQueue.SetProcessor(notificationService.Process)
	}

	worker := services.NewWorker(&cfg.Redis)
	if worker != nil {
		worker.SetProcessor(notificationService.Process)
		if err := worker.Start(); err != nil {
			logger.Error().Err(err).Msg("Failed to start notification worker")
			worker = nil
		}
	}

	conflictService := services.NewConflictService(db, holidays, &cfg.Scheduling)
	meetingService := services.NewMeetingService(db, conflictService, taskQueue, &cfg.Scheduling)
	availabilityService := services.NewAvailabilityService(db, &cfg.Scheduling)
	authService := services.NewAuthService(db, &cfg.JWT, &cfg.LDAP)
	userService := services.NewUserService(db)
	auditService := services.NewAuditService(db)

	scheduler := services.NewSchedulerService(db, taskQueue, auditService, &cfg.Scheduling)
	if err := scheduler.Start(); err != nil {
		logger.Fatalf("Failed to start scheduler: %v", err)
	}

	return &appServices{
		taskQueue:    taskQueue,
		worker:       worker,
		scheduler:    scheduler,
		sseHub:       sseHub,
		authLimiter:  middleware.NewRateLimiter(5, 10),
		authService:  authService,
		auditService: auditService,

		healthHandler:       handlers.NewHealthHandler(db, taskQueue, sseHub),
		authHandler:         handlers.NewAuthHandler(authService),
		userHandler:         handlers.NewUserHandler(userService),
		availabilityHandler: handlers.NewAvailabilityHandler(availabilityService),
		meetingHandler:      handlers.NewMeetingHandler(meetingService, conflictService),
		sseHandler:          handlers.NewSSEHandler(sseHub),
	}
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	s.scheduler.Stop()
	s.authLimiter.Stop()
	logger.Info().Msg("All schedulers stopped")

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		if err := s.taskQueue.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close task queue")
		}
	}
}
