package main

import (
	"context"
	"os"
	"time"

	"dissent/internal/db"
	"dissent/internal/handlers"
	"dissent/internal/middleware"
	"dissent/internal/services"
	"dissent/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func main() {
	// .env is optional; real deployments set the environment directly
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

	prefix := getEnv("KEY_PREFIX", "dissent")
	pages := services.NewPageService(redisClient, prefix, log)
	stats := services.NewStatsService(conn, log)
	votes := services.NewVoteService(conn, log)
	feeds := services.NewFeedCache(redisClient, prefix)
	jobs := services.NewJobQueue(redisClient, getEnv("WORKER_CHANNEL", "dissent-worker"))

	imageCache := services.NewImageCache(services.ImageCacheConfig{
		Dir:           getEnv("CACHE_DIR", "./cache"),
		Channel:       getEnv("IMAGE_CHANNEL", "dissent-image"),
		MaxAge:        getEnvDuration("IMAGE_MAX_AGE", 6*time.Hour),
		CleanInterval: getEnvDuration("IMAGE_CLEAN_INTERVAL", time.Hour),
	}, redisClient, log)
	if err := imageCache.Init(); err != nil {
		log.Fatalf("image cache init failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go imageCache.Run(ctx)
	go imageCache.RunSweeper(ctx)

	listCache, err := utils.NewCache(128)
	if err != nil {
		log.Fatalf("list cache init failed: %v", err)
	}

	r := setupRouter(conn, log, listCache, pages, stats, votes, feeds, jobs, imageCache)

	port := getEnv("PORT", "8080")
	log.Infof("listening on :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

func setupRouter(
	conn *gorm.DB,
	log *logrus.Logger,
	listCache *utils.Cache,
	pages *services.PageService,
	stats *services.StatsService,
	votes *services.VoteService,
	feeds *services.FeedCache,
	jobs *services.JobQueue,
	imageCache *services.ImageCache,
) *gin.Engine {
	r := gin.Default()

	store := cookie.NewStore([]byte(getEnv("SESSION_SECRET", "dissent-session-secret")))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 30,
		HttpOnly: true,
	})
	r.Use(sessions.Sessions("dissent_session", store))
	r.Use(middleware.LoadUser(conn))

	auth := handlers.NewAuthHandler(conn)
	comments := handlers.NewCommentHandler(conn, pages, stats, jobs, listCache, log)
	voting := handlers.NewVoteHandler(votes)
	images := handlers.NewImageHandler(conn, imageCache, log)
	users := handlers.NewUserHandler(conn, feeds, log)

	r.POST("/signup", auth.Signup)
	r.POST("/login", auth.Login)
	r.GET("/logout", auth.Logout)

	r.GET("/comment", comments.List)
	r.GET("/comment/:commentId", comments.Get)
	r.GET("/comment/:commentId/replies", comments.Replies)
	r.POST("/comment", comments.Create)
	r.POST("/comment/:commentId/vote", voting.Cast)

	r.GET("/image/cache-empty", images.CacheEmpty)
	r.GET("/image/:imageId", images.Get)
	r.GET("/top-news", users.TopNews)

	authorized := r.Group("/")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.POST("/image", images.Create)
		authorized.POST("/image/:imageId", images.Update)
		authorized.GET("/user/feed", users.Feed)
	}

	return r
}
