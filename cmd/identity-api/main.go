package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/arkline/identity-api/api/swagger"
	"github.com/arkline/identity-api/internal/handler"
	"github.com/arkline/identity-api/internal/messaging"
	"github.com/arkline/identity-api/internal/middleware"
	"github.com/arkline/identity-api/internal/repository"
	"github.com/arkline/identity-api/internal/security"
	"github.com/arkline/identity-api/internal/service"
	"github.com/arkline/identity-api/pkg/cache"
	"github.com/arkline/identity-api/pkg/config"
	"github.com/arkline/identity-api/pkg/database"
	"github.com/arkline/identity-api/pkg/jobs"
	"github.com/arkline/identity-api/pkg/logger"
	corsmiddleware "github.com/arkline/identity-api/pkg/middleware/cors"
	reqidmiddleware "github.com/arkline/identity-api/pkg/middleware/requestid"
)

// @title Identity API
// @version 1.0.0
// @description Authentication and account management service
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
		if !cfg.Cookies.Secure {
			logr.Warn("running in production with insecure token cookies")
		}
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	userRepo := repository.NewUserRepository(db)
	hasher := security.NewBcryptHasher()
	codec := security.NewJWTCodec(cfg.JWT.Secret, cfg.JWT.AccessExpiry, cfg.JWT.RefreshExpiry)
	revocations := security.NewRedisRevocationStore(redisClient, cfg.JWT.RefreshExpiry)

	publisher := messaging.NewQueuePublisher(messaging.LogHandler(logr), jobs.QueueConfig{
		Workers:    cfg.Events.Workers,
		BufferSize: cfg.Events.BufferSize,
		MaxRetries: cfg.Events.MaxRetries,
		RetryDelay: cfg.Events.RetryDelay,
		Logger:     logr,
	})
	publisher.Start(context.Background())
	defer publisher.Stop()

	validate := validator.New()
	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, hasher, codec, revocations, publisher, validate, logr, metricsSvc)
	userSvc := service.NewUserService(userRepo, hasher, validate, logr)

	authHandler := handler.NewAuthHandler(authSvc, cfg.Cookies, cfg.APIPrefix)
	userHandler := handler.NewUserHandler(userSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.Auth(codec, cfg.Cookies.AccessName, cfg.Auth))

	root := r.Group(cfg.APIPrefix)

	root.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	root.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unavailable"})
			return
		}
		if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "redis unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	root.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		root.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	auth := root.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/logout", authHandler.Logout)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/register", authHandler.Register)
		auth.GET("/me", authHandler.Me)
	}

	users := root.Group("/users")
	{
		users.POST("", userHandler.Create)
		users.GET("", userHandler.List)
		users.GET("/:id", userHandler.Get)
		users.PATCH("/:id", userHandler.Update)
		users.DELETE("/:id", userHandler.Delete)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
