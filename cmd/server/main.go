package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/segyhp/collections-engine/internal/app"
	"github.com/segyhp/collections-engine/internal/config"
	"github.com/segyhp/collections-engine/internal/handler"
	"github.com/segyhp/collections-engine/internal/logger"
	"github.com/segyhp/collections-engine/internal/metrics"
	"github.com/segyhp/collections-engine/pkg/response"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger.Initialize(cfg.Logging.Level, cfg.Logging.Format)

	// Initialize database, Redis and the collections service
	application, err := app.New(cfg)
	if err != nil {
		logger.Error("Failed to initialize application", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	collectionsHandler := handler.NewCollectionsHandler(application.Service)
	healthHandler := handler.NewHealthHandler(application.DB, application.Redis, cfg.GetHealthTimeout())

	// Setup routes
	router := setupRoutes(collectionsHandler, healthHandler)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.GetReadTimeout(),
		WriteTimeout: cfg.Server.GetWriteTimeout(),
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "addr", server.Addr, "env", cfg.Server.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}

func setupRoutes(collectionsHandler *handler.CollectionsHandler, healthHandler *handler.HealthHandler) http.Handler {
	router := mux.NewRouter()
	router.Use(metrics.Middleware, response.LoggingMiddleware)

	// Health check
	router.HandleFunc("/health", healthHandler.Health).Methods("GET")
	router.HandleFunc("/health/ready", healthHandler.Ready).Methods("GET")
	router.Handle("/metrics", metrics.Handler()).Methods("GET")

	// API routes
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(response.JSONMiddleware)
	collectionsHandler.Register(api)

	// preflight requests never match a route, so CORS wraps the router
	return response.CORSMiddleware(router)
}
