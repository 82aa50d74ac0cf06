package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ragchat-platform/internal/config"
	"ragchat-platform/internal/embeddings"
	"ragchat-platform/internal/llm"
	"ragchat-platform/internal/telemetry"
	"ragchat-platform/internal/vectorstore"
	"ragchat-platform/middleware"
	"ragchat-platform/routes"
	"ragchat-platform/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	// Telemetry
	if cfg.TracingEnabled {
		shutdown, err := telemetry.InitTracer("ragchat-api", cfg.OTLPEndpoint)
		if err != nil {
			log.Printf("Failed to initialize tracing: %v", err)
		} else {
			defer shutdown()
		}
	}
	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Printf("Failed to initialize metrics: %v", err)
	}

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()
	db := mongoClient.Database(cfg.DBName)

	// Redis for rate limiting; asynq uses its own connection
	redisClient, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer redisClient.Close()

	asynqClient := asynq.NewClient(config.AsynqRedisOpt(cfg))
	defer asynqClient.Close()

	// Catalog and vector store backends
	catalog := services.NewCatalog(db)
	seedCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := catalog.SeedDefaults(seedCtx); err != nil {
		cancel()
		log.Fatal("Failed to seed catalog defaults:", err)
	}

	registry := vectorstore.NewRegistry()
	sqliteProvider, err := vectorstore.NewSQLiteProvider(cfg.SQLitePersistenceDir)
	if err != nil {
		cancel()
		log.Fatal("Failed to initialize SQLite vector store:", err)
	}
	registry.Register(sqliteProvider)
	registry.Register(vectorstore.NewMongoProvider(db))

	required, err := catalog.ActiveProviderSlugs(seedCtx)
	cancel()
	if err != nil {
		log.Fatal("Failed to load vector store providers:", err)
	}
	if err := registry.Validate(required); err != nil {
		log.Fatal("Vector store backend missing:", err)
	}

	// Services
	embedder := embeddings.NewService(catalog)
	llms := llm.NewService(catalog)
	vectors := services.NewVectorStoreManager(db, catalog, registry, embedder, asynqClient, metrics)
	storage := services.NewBlobStorage(cfg)
	documents := services.NewDocumentService(db, storage, asynqClient, vectors)
	chat := services.NewChatService(db, llms, vectors, asynqClient, metrics)

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "X-User-ID", "X-Requested-With"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	router.Use(middleware.RequestIDMiddleware())
	if cfg.TracingEnabled {
		router.Use(middleware.TracingMiddleware())
		router.Use(middleware.EnrichTrace())
	}
	if metrics != nil {
		router.Use(middleware.MetricsMiddleware(metrics))
	}
	router.Use(middleware.RateLimitMiddleware(redisClient, cfg))

	// Health check endpoints
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})
	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := mongoClient.Ping(ctx, nil); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	// Setup routes
	routes.SetupDocumentRoutes(router, documents)
	routes.SetupVectorStoreRoutes(router, vectors, catalog)
	routes.SetupChatRoutes(router, chat, catalog)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
