package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/photofuse/api/internal/auth"
	"github.com/photofuse/api/internal/client"
	"github.com/photofuse/api/internal/config"
	"github.com/photofuse/api/internal/handler"
	"github.com/photofuse/api/internal/middleware"
	"github.com/photofuse/api/internal/service"
	"github.com/photofuse/api/internal/store"
	ws "github.com/photofuse/api/internal/websocket"
	"github.com/photofuse/api/pkg/response"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	// Two pools, two database roles. The admin pool serves only the
	// worker callback path, which reads and writes jobs unscoped.
	var (
		jobStore   store.Store
		adminStore store.AdminStore
	)
	if cfg.Database.URL != "" {
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			log.Fatalf("Failed to open database pool: %v", err)
		}
		defer pool.Close()

		adminPool := pool
		if cfg.Database.AdminURL != "" {
			adminPool, err = pgxpool.New(ctx, cfg.Database.AdminURL)
			if err != nil {
				log.Fatalf("Failed to open admin database pool: %v", err)
			}
			defer adminPool.Close()
		} else {
			log.Println("Warning: DATABASE_ADMIN_URL not set, callback path shares the application role")
		}

		jobStore = store.NewPostgresStore(pool)
		adminStore = store.NewPostgresStore(adminPool)
	} else {
		log.Println("Warning: DATABASE_URL not set, job endpoints will answer 503")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	validate := validator.New()

	hub := ws.NewHub()
	go hub.Run()

	workerClient := client.NewWorkerClient(&cfg.Worker)
	if !workerClient.IsConfigured() {
		log.Println("Warning: WORKER_WEBHOOK_URL not set, submissions will fail their dispatch")
	}

	// R2 is optional; without it generated images stay inline.
	var storage client.StorageClient
	if cfg.R2.AccessKeyID != "" && cfg.R2.SecretAccessKey != "" {
		r2Client, err := client.NewR2Client(&cfg.R2)
		if err != nil {
			log.Printf("Warning: R2 client not initialized: %v", err)
		} else {
			storage = r2Client
		}
	}

	var tokenVerifier auth.TokenVerifier
	if cfg.OIDC.Issuer != "" {
		jwksVerifier, err := auth.NewJWKSVerifier(&cfg.OIDC)
		if err != nil {
			log.Printf("Warning: JWKS verifier not initialized: %v", err)
		} else {
			defer jwksVerifier.Close()
			tokenVerifier = jwksVerifier
		}
	}

	var apiAuth fiber.Handler
	if cfg.Gateway.Enabled {
		log.Println("Info: Gateway mode enabled, trusting forwarded identity headers")
		apiAuth = middleware.GatewayAuthMiddleware()
	} else {
		apiAuth = middleware.NewAuthMiddleware(tokenVerifier, cfg.JWT.Secret).Authenticate()
	}
	rateLimiter := middleware.NewRateLimiter(redisClient)

	webhookVerifier := auth.NewWebhookVerifier(cfg.Worker.WebhookSecret)

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    50 * 1024 * 1024, // base64 image payloads
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"name":      "PhotoFuse API",
			"timestamp": time.Now().Unix(),
		})
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"store":  jobStore != nil,
				"worker": workerClient.IsConfigured(),
				"r2":     storage != nil,
				"auth":   tokenVerifier != nil || cfg.JWT.Secret != "",
			},
		})
	})

	if jobStore == nil {
		// Degrade every job endpoint uniformly instead of crashing on first use.
		unavailable := func(c *fiber.Ctx) error {
			return response.ServiceUnavailable(c)
		}
		app.All("/api/*", unavailable)
		app.All("/webhooks/*", unavailable)
	} else {
		jobService := service.NewJobService(jobStore, adminStore, workerClient, storage, hub)
		jobHandler := handler.NewJobHandler(jobService, validate)
		webhookHandler := handler.NewWebhookHandler(jobService, webhookVerifier)

		api := app.Group("/api", apiAuth)
		jobs := api.Group("/jobs")
		jobs.Post("/", rateLimiter.JobsLimit(cfg.RateLimit.JobsPerHour), jobHandler.Create)
		jobs.Get("/", jobHandler.List)
		jobs.Get("/:id", jobHandler.Get)

		app.Post("/webhooks/worker", webhookHandler.HandleWorkerCallback)
	}

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		hub.HandleConnection(c, c.Params("jobId"))
	}))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
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
			"code":    response.CodeServiceError,
			"message": message,
		},
	})
}
