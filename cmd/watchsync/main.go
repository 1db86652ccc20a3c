package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/natefinch/lumberjack.v2"

	"watchsync/api"
	"watchsync/config"
	"watchsync/handlers"
	"watchsync/internal/database"
	"watchsync/services/plex"
	"watchsync/services/scheduler"
	syncsvc "watchsync/services/sync"
	"watchsync/utils"
)

func main() {
	dataDir := flag.String("data", "data", "directory for settings, database and logs")
	flag.Parse()

	if err := run(*dataDir); err != nil {
		log.Fatalf("[main] %v", err)
	}
}

func run(dataDir string) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	configManager := config.NewManager(filepath.Join(dataDir, "settings.json"))
	settings, err := configManager.Load()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	logFile := settings.Log.File
	if !filepath.IsAbs(logFile) {
		logFile = filepath.Join(dataDir, logFile)
	}
	log.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    settings.Log.MaxSizeMB,
		MaxBackups: settings.Log.MaxBackups,
	}))

	log.Printf("[main] watchsync %s starting", handlers.BackendVersion())

	db, err := database.NewDB(database.Config{
		DatabasePath: filepath.Join(dataDir, "watchsync.db"),
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	plexClient := plex.NewClient()
	syncService := syncsvc.NewService(configManager, plexClient, db.Repository)
	schedService := scheduler.NewService(configManager, syncService)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := schedService.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	router := utils.NewRouter()
	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(api.LoggingMiddleware())

	// Connection tests and manual syncs fan out to external services.
	limiter := api.NewIPRateLimiter(rate.Every(6*time.Second), 10)

	configHandler := handlers.NewConfigHandler(configManager)
	watchlistHandler := handlers.NewWatchlistHandler(syncService)
	syncHandler := handlers.NewSyncHandler(syncService, schedService)
	servicesHandler := handlers.NewServicesHandler(plexClient)
	historyHandler := handlers.NewHistoryHandler(db.Repository)
	logsHandler := handlers.NewLogsHandler(logFile)
	versionHandler := handlers.NewVersionHandler()

	apiRouter.HandleFunc("/config", configHandler.GetConfig).Methods(http.MethodGet)
	apiRouter.HandleFunc("/config", configHandler.PutConfig).Methods(http.MethodPut)
	apiRouter.HandleFunc("/watchlists", watchlistHandler.List).Methods(http.MethodGet)
	apiRouter.HandleFunc("/watchlist/remove", watchlistHandler.Remove).Methods(http.MethodPost)
	apiRouter.HandleFunc("/sync/run", limiter.Limit(syncHandler.Run)).Methods(http.MethodPost)
	apiRouter.HandleFunc("/sync/status", syncHandler.Status).Methods(http.MethodGet)
	apiRouter.HandleFunc("/sync/tasks/{id}/run", syncHandler.RunTask).Methods(http.MethodPost)
	apiRouter.HandleFunc("/services/test", limiter.Limit(servicesHandler.Test)).Methods(http.MethodPost)
	apiRouter.HandleFunc("/history", historyHandler.List).Methods(http.MethodGet)
	apiRouter.HandleFunc("/logs", logsHandler.Tail).Methods(http.MethodGet)
	apiRouter.HandleFunc("/version", versionHandler.GetVersion).Methods(http.MethodGet)

	router.PathPrefix("/").Handler(handlers.NewStaticHandler())

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[main] listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Printf("[main] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[main] http shutdown: %v", err)
	}
	if err := schedService.Stop(shutdownCtx); err != nil {
		log.Printf("[main] scheduler stop: %v", err)
	}
	return nil
}
