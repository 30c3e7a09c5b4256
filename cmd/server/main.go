package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/cobardes/radia-fm-sub000/internal/auth"
	"github.com/cobardes/radia-fm-sub000/internal/client"
	"github.com/cobardes/radia-fm-sub000/internal/config"
	"github.com/cobardes/radia-fm-sub000/internal/handler"
	"github.com/cobardes/radia-fm-sub000/internal/middleware"
	"github.com/cobardes/radia-fm-sub000/internal/orchestrator"
	"github.com/cobardes/radia-fm-sub000/internal/playlist"
	"github.com/cobardes/radia-fm-sub000/internal/resolver"
	"github.com/cobardes/radia-fm-sub000/internal/script"
	"github.com/cobardes/radia-fm-sub000/internal/service"
	"github.com/cobardes/radia-fm-sub000/internal/store"
	"github.com/cobardes/radia-fm-sub000/internal/worker"
	ws "github.com/cobardes/radia-fm-sub000/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Initialize external clients
	openaiClient := client.NewOpenAIClient(&cfg.OpenAI, &cfg.TTS)
	youtubeClient := client.NewYouTubeClient(cfg.Station.SearchResults)

	// Initialize R2 client (optional - continues if not configured)
	var r2Client *client.R2Client
	if cfg.R2.AccessKeyID != "" && cfg.R2.SecretAccessKey != "" {
		var err error
		r2Client, err = client.NewR2Client(&cfg.R2)
		if err != nil {
			log.Printf("Warning: R2 client not initialized: %v", err)
		}
	} else {
		log.Println("Info: R2 storage not configured, streaming segment audio inline")
	}

	// Initialize store and token manager
	stationStore := store.NewStationStore(redisClient, time.Duration(cfg.Station.LockTTLMinutes)*time.Minute)
	tokens := auth.NewTokenManager(cfg.Session.Secret, time.Duration(cfg.Session.Expiration)*time.Hour)

	// Initialize services
	stationService := service.NewStationService(stationStore, youtubeClient, tokens, asynqClient)

	var storageClient client.StorageClient
	if r2Client != nil {
		storageClient = r2Client
	}
	audioService := service.NewAudioService(
		redisClient,
		stationStore,
		youtubeClient,
		openaiClient,
		storageClient,
		time.Duration(cfg.Station.SongURLCacheTTL)*time.Minute,
	)

	// Initialize handlers
	stationHandler := handler.NewStationHandler(stationService, validate)
	audioHandler := handler.NewAudioHandler(audioService)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(tokens)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	isDebug := strings.EqualFold(cfg.Server.LogLevel, "debug")
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if isDebug {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"openai": openaiClient.IsConfigured(),
				"r2":     r2Client != nil,
				"redis":  redisClient.Ping(c.Context()).Err() == nil,
			},
		})
	})

	// Station routes
	api := app.Group("/api")
	api.Post("/stations", rateLimiter.StationLimit(cfg.RateLimit.StationsPerHour), stationHandler.Create)

	station := api.Group("/stations/:id", authMiddleware.RequireStation())
	station.Get("/", stationHandler.Get)
	station.Get("/queue", stationHandler.Queue)
	station.Post("/extend", rateLimiter.ExtendLimit(cfg.RateLimit.ExtendPerHour), stationHandler.Extend)

	// Audio routes
	audio := app.Group("/audio", authMiddleware.RequireStation())
	audio.Get("/songs/:songId", audioHandler.Song)
	audio.Get("/segments/:segmentId", audioHandler.Segment)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/stations/:id", authMiddleware.RequireStation(), websocket.New(func(c *websocket.Conn) {
		stationID := c.Params("id")
		hub.HandleConnection(c, stationID)
	}))

	// Build the extension pipeline
	songResolver := resolver.New(youtubeClient, cfg.Station.MatchThreshold)
	playlistEngine := playlist.NewEngine(openaiClient, songResolver)
	segmentGenerator := script.NewGenerator(openaiClient, stationStore, script.DefaultCountPolicy)
	orch := orchestrator.New(stationStore, playlistEngine, segmentGenerator, cfg.Station.ExtendBatchSize)

	// Start Asynq worker server
	go startWorkerServer(cfg, orch)

	// Forward committed extensions from the redis change feed to websocket
	// subscribers. Going through pub/sub keeps every replica's listeners in
	// sync regardless of which replica ran the extension.
	go forwardStationEvents(ctx, stationStore, hub)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(cfg *config.Config, orch *orchestrator.Orchestrator) {
	asynqLogLevel := asynq.InfoLevel
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		asynqLogLevel = asynq.DebugLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "warn") {
		asynqLogLevel = asynq.WarnLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "error") {
		asynqLogLevel = asynq.ErrorLevel
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			// Extension runs are long (multiple model calls); keep the pool
			// small so one station cannot starve the others.
			Concurrency: 4,
			Queues: map[string]int{
				"extend": 10,
			},
			LogLevel: asynqLogLevel,
		},
	)

	extendWorker := worker.NewExtendWorker(orch)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeExtend, extendWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

func forwardStationEvents(ctx context.Context, stationStore *store.StationStore, hub *ws.Hub) {
	events, closeFn := stationStore.Subscribe(ctx)
	defer closeFn()

	for stationID := range events {
		st, err := stationStore.Station(ctx, stationID)
		if err != nil {
			log.Printf("Failed to load station %s for broadcast: %v", stationID, err)
			continue
		}
		hub.BroadcastQueue(st.ID, st.Queue, st.IsExtending)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
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
