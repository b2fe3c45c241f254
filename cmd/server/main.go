package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/sessions"
	redisStore "github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/yukikurage/tasko/internal/config"
	"github.com/yukikurage/tasko/internal/constants"
	"github.com/yukikurage/tasko/internal/database"
	"github.com/yukikurage/tasko/internal/handlers"
	"github.com/yukikurage/tasko/internal/logging"
	"github.com/yukikurage/tasko/internal/mailer"
	"github.com/yukikurage/tasko/internal/metrics"
	"github.com/yukikurage/tasko/internal/middleware"
	"github.com/yukikurage/tasko/internal/realtime"
	"github.com/yukikurage/tasko/internal/repository"
	"github.com/yukikurage/tasko/internal/services"
	"github.com/yukikurage/tasko/internal/storage"
)

func main() {
	addr := pflag.String("addr", ":8080", "address to listen on")
	migrateOnly := pflag.Bool("migrate-only", false, "run database migrations and exit")
	pflag.Parse()

	// Load configuration
	cfg := config.Load()

	if err := logging.Setup(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to set up logging")
	}
	defer logging.Flush()

	// Set Gin mode
	gin.SetMode(cfg.GinMode)

	// Connect to database
	if err := database.Connect(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	// Run migrations
	if err := database.Migrate(); err != nil {
		logrus.WithError(err).Fatal("Failed to run migrations")
	}
	if *migrateOnly {
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.RedisPassword,
	})
	defer redisClient.Close()

	// Realtime fan-out
	hub := realtime.NewHub()
	var publisher realtime.Publisher = realtime.NewMemoryBroker(hub)
	if cfg.RealtimeBroker == "redis" {
		broker := realtime.NewRedisBroker(redisClient, hub)
		publisher = broker
		go func() {
			if err := broker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logging.LogError("realtime_broker", err, nil)
			}
		}()
	}

	var limiter middleware.RateLimiter = middleware.NewMemoryRateLimiter()
	if err := redisClient.Ping(ctx).Err(); err == nil {
		limiter = middleware.NewRedisRateLimiter(redisClient)
	} else {
		logrus.WithError(err).Warn("Redis unavailable, rate limiting falls back to memory")
	}

	objects, err := storage.NewLocalStore(cfg.StorageDir, cfg.PublicBaseURL)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to prepare object storage")
	}

	// The suggester stays a nil interface when no key is configured
	var suggester services.TaskSuggester
	if cfg.OpenAIAPIKey != "" {
		suggester = services.NewAIService(cfg.OpenAIAPIKey)
	}

	db := database.GetDB()
	store := repository.NewStore(db)
	mail := mailer.New(cfg)

	authService := services.NewAuthService(repository.NewUserRepository(db), objects, cfg.JWTSecret)
	projectService := services.NewProjectService(store, publisher, mail)
	teamService := services.NewTeamService(store, publisher, mail)

	// Initialize Gin router
	r := gin.New()
	r.Use(middleware.RequestLogger(), middleware.Recovery(), middleware.Metrics())

	// Setup session middleware with Redis
	sessionStore, err := redisStore.NewStore(
		10,              // Redis pool size
		"tcp",           // network type
		cfg.RedisAddr(), // Redis address from config
		"",              // username (empty for default user)
		cfg.RedisPassword,
		[]byte(cfg.SessionSecret), // authentication key
	)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create Redis session store")
	}
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(constants.SessionMaxAge / time.Second),
		HttpOnly: true,
		Secure:   cfg.IsProduction(), // true in production (HTTPS)
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(constants.SessionCookieName, sessionStore))

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Task-O API is running",
		})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.Static(storage.PublicPath, objects.Root())

	handlers.RegisterRoutes(r, handlers.Handlers{
		Auth:          handlers.NewAuthHandler(authService),
		Projects:      handlers.NewProjectHandler(projectService),
		Tasks:         handlers.NewTaskHandler(services.NewTaskService(store, publisher, suggester)),
		Teams:         handlers.NewTeamHandler(teamService, projectService),
		Notifications: handlers.NewNotificationHandler(services.NewNotificationService(store, publisher)),
		Inbox:         handlers.NewInboxHandler(services.NewInboxService(store, publisher)),
		Realtime:      handlers.NewRealtimeHandler(hub, services.NewSubscriptionService(store), cfg.PublicBaseURL),
	},
		middleware.RequireAuth(cfg.JWTSecret),
		middleware.RateLimit(limiter, cfg.AuthRateLimit, constants.AuthRateWindow),
	)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logrus.WithError(err).Warn("Server shutdown did not complete cleanly")
		}
	}()

	// Start server
	logrus.WithField("addr", *addr).Info("Server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logrus.WithError(err).Fatal("Failed to start server")
	}
}
