package main

import (
	"context"
	"os"
	"time"

	"dissent/internal/db"
	"dissent/internal/services"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	conn, err := db.Connect()
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	redisClient, err := services.NewRedisClient(getEnv("REDIS_ADDR", "localhost:6379"), os.Getenv("REDIS_PASSWORD"))
	if err != nil {
		log.Fatalf("redis connection failed: %v", err)
	}

	feeds := services.NewFeedCache(redisClient, getEnv("KEY_PREFIX", "dissent"))
	worker := services.NewWorkerService(
		conn,
		redisClient,
		feeds,
		getEnv("WORKER_CHANNEL", "dissent-worker"),
		os.Getenv("TOP_NEWS_URL"),
		log,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go worker.RunNewsRefresh(ctx, time.Minute)

	log.Info("worker started")
	worker.Run(ctx)
}
