package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"chorechart/internal/config"
	"chorechart/internal/database"
	"chorechart/internal/handlers"
	"chorechart/internal/llm"
	"chorechart/internal/logger"
	"chorechart/internal/metrics"
	"chorechart/internal/outbox"
	"chorechart/internal/repository"
	"chorechart/internal/security"
	"chorechart/internal/service"
	"chorechart/internal/sms"
	"chorechart/migrations"
)

const (
	outboxQueueKey  = "chorechart:outbox"
	memoryQueueSize = 1024
)

func main() {
	cfg := config.Load()

	zlog, err := logger.New(cfg.LogLevel, cfg.LogFormat, "chorechart")
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("Server exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database with config (supports sqlite, postgres, mysql)
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	zlog.Info("Database connection established", zap.String("type", cfg.DatabaseType))

	if err := db.RunMigrations(migrations.Source(cfg.MigrationsPath), zlog); err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	queue, err := newQueue(ctx, cfg, zlog)
	if err != nil {
		return err
	}

	// Outbound channels
	smsClient := sms.NewClient(cfg.SMSBaseURL, cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, zlog)
	emailService, err := service.NewEmailService(ctx, cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName, cfg.AppBaseURL, cfg.EmailDebug, zlog)
	if err != nil {
		return err
	}
	worker := outbox.NewWorker(queue, map[outbox.Channel]outbox.Sender{
		outbox.ChannelSMS:   service.SMSSender(smsClient),
		outbox.ChannelEmail: emailService,
	}, outbox.WorkerConfig{
		Workers:     cfg.OutboxWorkers,
		MaxAttempts: cfg.OutboxMaxAttempts,
		BaseDelay:   cfg.OutboxRetryDelay,
		OnDeadLetter: func(msg outbox.Message, err error) {
			zlog.Error("Outbound message dropped",
				zap.String("message_id", msg.ID),
				zap.String("channel", string(msg.Channel)),
				zap.Error(err),
			)
		},
	}, zlog.Named("outbox"), m)

	// Repositories
	userRepo := repository.NewUserRepository(db)
	familyRepo := repository.NewFamilyRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	pointsRepo := repository.NewPointsRepository(db)
	tagRepo := repository.NewTagRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	// Services
	notificationService := service.NewNotificationService(notificationRepo, userRepo, queue, service.NotificationChannels{
		SMS:   smsClient.Enabled(),
		Email: emailService.IsEnabled(),
	}, zlog, m)
	tokens := security.NewTokenIssuer(cfg.JWTSecret, cfg.TokenDuration)
	authService := service.NewAuthService(db, userRepo, familyRepo, tokens, notificationService, zlog, cfg.SessionDuration)
	familyService := service.NewFamilyService(db, familyRepo, userRepo, zlog)
	recurrenceService := service.NewRecurrenceService(db, taskRepo, zlog)
	taskService := service.NewTaskService(db, taskRepo, pointsRepo, familyRepo, tagRepo, recurrenceService, notificationService, zlog, m)
	pointsService := service.NewPointsService(db, pointsRepo, familyRepo, notificationService, zlog, m)
	tagService := service.NewTagService(tagRepo)

	llmClient := llm.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
	if !llmClient.Enabled() {
		zlog.Info("Task assistant disabled: OPENAI_API_KEY not configured")
	}
	assistantService := service.NewAssistantService(llmClient, familyRepo, tagRepo, taskService, zlog, m)

	// HTTP
	csrf := security.NewCSRF(cfg.CSRFSecret)
	limiter := security.NewRateLimiter(cfg.LoginRatePerMinute)
	google := handlers.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret)

	router := &handlers.Router{
		Middleware:    handlers.NewMiddleware(authService, csrf, limiter, zlog, m),
		Auth:          handlers.NewAuthHandler(authService, csrf, google, cfg.OAuthRedirectBaseURL, cfg.AppBaseURL, zlog),
		Family:        handlers.NewFamilyHandler(familyService, zlog),
		Tasks:         handlers.NewTaskHandler(taskService, zlog),
		Points:        handlers.NewPointsHandler(pointsService, zlog),
		Notifications: handlers.NewNotificationHandler(notificationService, zlog),
		Tags:          handlers.NewTagHandler(tagService, zlog),
		Assistant:     handlers.NewAssistantHandler(assistantService, zlog),
		DB:            db,
		Gatherer:      registry,
		Logger:        zlog,
	}

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zlog.Info("Server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		zlog.Info("Server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		// Handlers may still enqueue until Shutdown returns.
		queue.Close()
		return err
	})

	g.Go(func() error {
		return worker.Run(gctx)
	})

	g.Go(func() error {
		limiter.Run(gctx)
		return nil
	})

	g.Go(func() error {
		cleanupExpiredSessions(gctx, authService, zlog)
		return nil
	})

	return g.Wait()
}

// newQueue selects the redis outbox when REDIS_ADDR is set
func newQueue(ctx context.Context, cfg *config.Config, zlog *zap.Logger) (outbox.Queue, error) {
	if cfg.RedisAddr == "" {
		zlog.Info("Using in-memory outbox queue")
		return outbox.NewMemoryQueue(memoryQueueSize), nil
	}
	client, err := outbox.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, err
	}
	zlog.Info("Using redis outbox queue", zap.String("addr", cfg.RedisAddr))
	return outbox.NewRedisQueue(client, outboxQueueKey), nil
}

// cleanupExpiredSessions periodically removes expired sessions
func cleanupExpiredSessions(ctx context.Context, authService *service.AuthService, zlog *zap.Logger) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := authService.CleanupExpiredSessions()
			if err != nil {
				zlog.Error("Error cleaning up expired sessions", zap.Error(err))
				continue
			}
			zlog.Info("Expired sessions cleaned up", zap.Int64("removed", n))
		}
	}
}
