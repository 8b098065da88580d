package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"framtrack/internal/api"
	"framtrack/internal/config"
	"framtrack/internal/database"
	"framtrack/internal/guru"
	"framtrack/internal/logger"
	"framtrack/internal/store"
	"framtrack/internal/updater"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format, cfg.Logger.File)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Configuration loaded", zap.Int("companies", len(cfg.Market.Companies)))

	// Initialize database and seed the company roster
	db, err := database.NewDatabase(&cfg)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.")

	// Initialize the snapshot store
	st, err := store.New(db, log)
	if err != nil {
		log.Fatal("Failed to create snapshot store", zap.Error(err))
	}

	// Initialize the external market data client when enabled
	var source guru.GrowthSource
	if cfg.External.Enabled {
		source = guru.NewClient(&cfg.External, log)
		log.Info("External market data source enabled", zap.String("base_url", cfg.External.BaseURL))
	} else {
		log.Info("External market data source disabled; using base jitter only")
	}

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Run the updater engine in the background
	engine := updater.NewEngine(log, &cfg, db, st, source, nil)
	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		engine.Run(ctx)
	}()

	// Setup the HTTP server
	if cfg.Logger.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	apiServer := api.NewServer(log, st, engine)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: apiServer.Router(&cfg.Server),
	}

	go func() {
		log.Info("Starting API server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("API server failed", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("API server shutdown failed", zap.Error(err))
	}
	<-engineDone

	log.Info("Server has been shut down.")
}
