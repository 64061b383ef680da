package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/joshua-takyi/eventhub/internal/config"
	"github.com/joshua-takyi/eventhub/internal/connect"
	"github.com/joshua-takyi/eventhub/internal/container"
	"github.com/joshua-takyi/eventhub/internal/metrics"
	"github.com/joshua-takyi/eventhub/internal/routes"
	"github.com/supabase-community/supabase-go"
)

func main() {
	// Load environment variables
	_ = godotenv.Load(".env.local")

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("Starting eventhub API server", "environment", cfg.Environment, "auth_provider", cfg.AuthProvider)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	cld, err := connect.CloudinaryCredentials(cfg)
	if err != nil {
		logger.Error("Failed to connect to Cloudinary", "error", err)
		os.Exit(1)
	}

	mongoClient, err := connect.MongoDBConnect(ctx, cfg)
	if err != nil {
		logger.Error("Failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	logger.Info("Connected to MongoDB successfully", "database", cfg.MongoDBDatabase)

	redisClient, err := connect.RedisConnect(ctx, cfg)
	if err != nil {
		logger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		logger.Info("Connected to Redis, broadcasts fan out across instances")
	}

	var supaClient *supabase.Client
	if cfg.AuthProvider == config.AuthProviderSupabase {
		if supaClient, err = connect.InitSupabase(cfg); err != nil {
			logger.Error("Failed to connect to Supabase", "error", err)
			os.Exit(1)
		}
		logger.Info("Connected to Supabase successfully")
	}

	appContainer, err := container.NewContainer(ctx, cfg, logger, container.Clients{
		Mongo:      mongoClient,
		Cloudinary: cld,
		Redis:      redisClient,
		Supabase:   supaClient,
	})
	if err != nil {
		logger.Error("Failed to build dependencies", "error", err)
		os.Exit(1)
	}

	indexCtx, cancelIndexes := context.WithTimeout(ctx, 30*time.Second)
	if err := appContainer.Repo.EnsureIndexes(indexCtx); err != nil {
		logger.Error("Failed to create indexes", "error", err)
		os.Exit(1)
	}
	cancelIndexes()

	if appContainer.RedisPubSub != nil {
		go appContainer.RedisPubSub.RunWithRetry(ctx, appContainer.Hub.Deliver, 5*time.Second)
	}

	metrics.Init()
	router := routes.SetupRoutes(appContainer)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// hijacked WebSocket connections are not tracked by Shutdown
	appContainer.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	stop()
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("Error closing Redis", "error", err)
		}
	}
	if err := connect.MongoDBDisconnect(mongoClient); err != nil {
		logger.Error("Error disconnecting from MongoDB", "error", err)
	}

	logger.Info("Server exited")
}

func setupLogger(cfg *config.Config) *slog.Logger {
	var handler slog.Handler
	if cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: parseLevel(cfg.LogLevel, slog.LevelInfo),
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: parseLevel(cfg.LogLevel, slog.LevelDebug),
		})
	}
	return slog.New(handler)
}

// parseLevel maps LOG_LEVEL onto a slog level; empty or unknown values use fallback.
func parseLevel(s string, fallback slog.Level) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return fallback
	}
}
