package main

import (
	"context"
	"log"
	"time"

	"ragchat-platform/internal/config"
	"ragchat-platform/internal/embeddings"
	"ragchat-platform/internal/llm"
	"ragchat-platform/internal/queue"
	"ragchat-platform/internal/telemetry"
	"ragchat-platform/internal/vectorstore"
	"ragchat-platform/services"

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
		shutdown, err := telemetry.InitTracer("ragchat-worker", cfg.OTLPEndpoint)
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

	asynqClient := asynq.NewClient(config.AsynqRedisOpt(cfg))
	defer asynqClient.Close()

	// Catalog and vector store backends
	catalog := services.NewCatalog(db)
	registry := vectorstore.NewRegistry()
	sqliteProvider, err := vectorstore.NewSQLiteProvider(cfg.SQLitePersistenceDir)
	if err != nil {
		log.Fatal("Failed to initialize SQLite vector store:", err)
	}
	registry.Register(sqliteProvider)
	registry.Register(vectorstore.NewMongoProvider(db))

	// Services behind the task handlers
	embedder := embeddings.NewService(catalog)
	llms := llm.NewService(catalog)
	vectors := services.NewVectorStoreManager(db, catalog, registry, embedder, asynqClient, metrics)
	storage := services.NewBlobStorage(cfg)
	docProcessor := services.NewDocumentProcessor(db, storage, vectors, metrics)
	chat := services.NewChatService(db, llms, vectors, asynqClient, metrics)

	// Stuck document sweeper
	maintenance := services.NewMaintenanceService(db, time.Duration(cfg.ProcessingTimeoutMinutes)*time.Minute)
	if err := maintenance.Start(); err != nil {
		log.Fatal("Failed to start maintenance scheduler:", err)
	}
	defer maintenance.Stop()

	// Create Asynq server
	server := asynq.NewServer(
		config.AsynqRedisOpt(cfg),
		asynq.Config{
			Concurrency:    cfg.WorkerConcurrency,
			Queues:         queue.Queues,
			StrictPriority: true,
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				if task.Type() == queue.TaskVectorIndex {
					return queue.IndexRetryDelay(n, err, task)
				}
				return asynq.DefaultRetryDelayFunc(n, err, task)
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("Task failed: %s, error: %v", task.Type(), err)
			}),
		},
	)

	// Create task processor
	processor := queue.NewProcessor(docProcessor, vectors, chat, chat)

	// Create mux and register handlers
	mux := asynq.NewServeMux()
	processor.Register(mux)

	log.Println("🚀 Starting Asynq worker...")
	log.Printf("   Concurrency: %d", cfg.WorkerConcurrency)
	log.Printf("   Queues: critical(6), default(3), low(1)")
	log.Printf("   Redis: %s", cfg.RedisURL)

	// Start the server
	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
