package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/makeasinger/mediajobs/internal/client"
	"github.com/makeasinger/mediajobs/internal/config"
	"github.com/makeasinger/mediajobs/internal/handler"
	"github.com/makeasinger/mediajobs/internal/jobs"
	"github.com/makeasinger/mediajobs/internal/middleware"
	"github.com/makeasinger/mediajobs/internal/model"
	"github.com/makeasinger/mediajobs/internal/service"
	"github.com/makeasinger/mediajobs/internal/worker"
	ws "github.com/makeasinger/mediajobs/internal/websocket"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogger(cfg)

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
	redisOK := redisClient.Ping(pingCtx).Err() == nil
	cancelPing()
	if !redisOK {
		log.Warn().Str("addr", cfg.Redis.Addr).Msg("redis not available, rate limiting disabled until it recovers")
	}

	validate := model.NewValidator()

	// Storage is optional; the upload worker falls back to mock URLs
	var storage client.StorageClient
	if cfg.Storage.AccessKeyID != "" && cfg.Storage.SecretAccessKey != "" {
		s3Client, err := client.NewS3Client(&cfg.Storage)
		if err != nil {
			log.Warn().Err(err).Msg("storage client not initialized")
		} else {
			storage = s3Client
		}
	} else {
		log.Info().Msg("storage not configured, using mock storage")
	}

	// Queues
	uploadWorker := worker.NewUploadWorker(storage, cfg.Worker.CDNURL)
	queues := service.NewQueues(cfg, validate, service.Workers{
		Render: worker.NewRenderWorker(cfg.Worker.StepDelay, cfg.Worker.CDNURL),
		Media:  worker.NewMediaWorker(cfg.Worker.StepDelay, cfg.Worker.CDNURL),
		Upload: uploadWorker,
	})
	for _, q := range queues.All() {
		c := q.Config()
		log.Info().
			Str("queue", c.Name).
			Int("concurrency", c.Concurrency).
			Int("capacity", c.Capacity).
			Dur("timeout", c.Timeout).
			Msg("queue ready")
	}

	// Initialize WebSocket hub
	hub := ws.NewHub()
	for _, q := range queues.All() {
		hub.Attach(q)
	}

	janitor, err := jobs.NewJanitor(cfg.Retention.Schedule, queues.All()...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to schedule retention")
	}

	// Initialize services
	renderService := service.NewJobService(queues.Render)
	processService := service.NewJobService(queues.Processing)
	uploadService := service.NewUploadService(queues.Upload, uploadWorker)

	// Initialize handlers
	renderHandler := handler.NewRenderHandler(renderService, validate)
	processHandler := handler.NewProcessHandler(processService, validate)
	uploadHandler := handler.NewUploadHandler(uploadService, validate)
	statsHandler := handler.NewStatsHandler(queues)

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret, time.Duration(cfg.JWT.Expiration)*time.Hour)
	apiAuth := authMiddleware.Authenticate()
	if cfg.Gateway.Enabled {
		// Behind a gateway: auth is handled by ForwardAuth, read X-User-* headers
		log.Info().Msg("gateway mode enabled, using header-based auth")
		apiAuth = middleware.GatewayAuthMiddleware(cfg.Gateway.Secret)
	}
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler:          customErrorHandler,
		BodyLimit:             50 * 1024 * 1024, // 50MB
		DisableStartupMessage: cfg.IsProduction(),
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(middleware.RequestLogger())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"redis":   redisClient.Ping(c.UserContext()).Err() == nil,
				"storage": storage != nil,
				"auth":    cfg.JWT.Secret != "",
			},
			"queues": queues.Stats(),
		})
	})

	// ForwardAuth verification endpoint
	app.Get("/auth/verify", authMiddleware.Verify)

	// API routes
	api := app.Group("/api", apiAuth)

	// Render routes
	render := api.Group("/render")
	render.Post("/start", rateLimiter.RenderLimit(cfg.RateLimit.RenderPerHour), renderHandler.Start)
	render.Get("/status/:jobId", renderHandler.Status)
	render.Get("/result/:jobId", renderHandler.Result)
	render.Post("/cancel/:jobId", renderHandler.Cancel)

	// Processing routes
	process := api.Group("/process")
	process.Get("/status/:jobId", processHandler.Status)
	process.Get("/result/:jobId", processHandler.Result)
	process.Post("/cancel/:jobId", processHandler.Cancel)
	process.Post("/:kind", rateLimiter.ProcessLimit(cfg.RateLimit.ProcessPerHour), processHandler.Submit)

	// Upload routes
	upload := api.Group("/upload")
	upload.Post("/asset", rateLimiter.UploadLimit(cfg.RateLimit.UploadPerHour), uploadHandler.Asset)
	upload.Delete("/asset/:jobId", uploadHandler.DeleteAsset)
	upload.Get("/status/:jobId", uploadHandler.Status)
	upload.Get("/result/:jobId", uploadHandler.Result)
	upload.Get("/url/:jobId", uploadHandler.URL)
	upload.Post("/cancel/:jobId", uploadHandler.Cancel)

	api.Get("/jobs/stats", statsHandler.Stats)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}, apiAuth)

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		hub.HandleConnection(c, c.Params("jobId"))
	}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	janitor.Start()

	g.Go(func() error {
		addr := ":" + cfg.Server.Port
		log.Info().Str("addr", addr).Msg("server starting")
		return app.Listen(addr)
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
		}
		janitor.Stop()
		if err := queues.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("queues did not drain before deadline")
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("server error")
	}
	log.Info().Msg("server stopped")
}

func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Server.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.IsProduction() {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
