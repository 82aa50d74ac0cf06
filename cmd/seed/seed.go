package main

import (
	"context"
	"log"
	"time"

	"ragchat-platform/internal/config"
	"ragchat-platform/services"
)

// Seeds the provider and model catalog. Safe to run repeatedly.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	catalog := services.NewCatalog(mongoClient.Database(cfg.DBName))
	if err := catalog.SeedDefaults(ctx); err != nil {
		log.Fatal("Seeding failed:", err)
	}

	log.Println("Catalog seeded: vector store providers, embedding models, llm models")
}
