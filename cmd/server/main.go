// Package main runs the room booking HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/roomline/backend/config"
	"github.com/roomline/backend/internal/auth"
	"github.com/roomline/backend/internal/authz"
	"github.com/roomline/backend/internal/bookings"
	"github.com/roomline/backend/internal/middleware"
	"github.com/roomline/backend/internal/permissions"
	"github.com/roomline/backend/internal/ratelimit"
	"github.com/roomline/backend/internal/rooms"
	"github.com/roomline/backend/pkg/database"
	"github.com/roomline/backend/pkg/redis"
	"github.com/roomline/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	loginLimiter := ratelimit.NewSlidingWindow(rdb.Client, "ratelimit:auth", cfg.RateLimit.MaxAttempts, cfg.RateLimit.Window)

	// Auth
	authRepo := auth.NewRepository(pool)
	if err := authRepo.EnsureAdmin(ctx, cfg.Admin.Name, cfg.Admin.Email, cfg.Admin.Password); err != nil {
		logger.Fatal("seed admin", zap.Error(err))
	}
	authHandler := auth.NewHandler(authRepo, jwtService, loginLimiter, logger)

	// Permissions + authorization resolver
	permissionRepo := permissions.NewRepository(pool)
	resolver := authz.NewResolver(permissionRepo)

	// Rooms
	roomRepo := rooms.NewRepository(pool)
	roomHandler := rooms.NewHandler(roomRepo, resolver, logger)
	permissionHandler := permissions.NewHandler(permissionRepo, roomRepo, resolver, logger)

	// Bookings
	bookingRepo := bookings.NewRepository(pool)
	bookingService := bookings.NewService(bookingRepo, resolver, logger)
	bookingHandler := bookings.NewHandler(bookingService, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public, rate limited)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
	}
	router.GET("/me", middleware.JWT(jwtService), authHandler.Me)

	// Public reads; token optional.
	router.GET("/rooms", roomHandler.List)
	router.GET("/rooms/:id/users", middleware.OptionalJWT(jwtService), permissionHandler.List)
	router.GET("/bookings", middleware.OptionalJWT(jwtService), bookingHandler.List)

	// Mutations (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.POST("/rooms", roomHandler.Create)
		api.PUT("/rooms/:id", roomHandler.Update)
		api.DELETE("/rooms/:id", roomHandler.Delete)

		api.POST("/rooms/:id/users", permissionHandler.Add)
		api.DELETE("/rooms/:id/users", permissionHandler.Remove)

		api.POST("/bookings", bookingHandler.Create)
		api.PUT("/bookings/:id", bookingHandler.Update)
		api.DELETE("/bookings/:id", bookingHandler.Delete)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
