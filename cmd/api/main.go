package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/timmy/randmeme/internal/api"
	"github.com/timmy/randmeme/internal/api/handler"
	"github.com/timmy/randmeme/internal/api/middleware"
	"github.com/timmy/randmeme/internal/cache"
	"github.com/timmy/randmeme/internal/config"
	"github.com/timmy/randmeme/internal/imaging"
	"github.com/timmy/randmeme/internal/logger"
	"github.com/timmy/randmeme/internal/retry"
	"github.com/timmy/randmeme/internal/service"
	"github.com/timmy/randmeme/internal/source"
	"github.com/timmy/randmeme/internal/source/reddit"
	"github.com/timmy/randmeme/internal/source/staging"
)

func main() {
	appLogger := logger.NewDefault()
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	src, closeSource := newSource(cfg)
	defer closeSource()

	userAgent := cfg.Reddit.UserAgent
	validator := service.NewValidator(&service.ValidatorConfig{
		Timeout:   cfg.Validator.Timeout,
		UserAgent: userAgent,
	})
	defer validator.Close()

	fetcher := service.NewFetcher(&service.FetcherConfig{
		Timeout:      cfg.Fetcher.Timeout,
		MaxBodyBytes: cfg.Fetcher.MaxBodyBytes,
		MaxPixels:    cfg.Fetcher.MaxPixels,
		UserAgent:    userAgent,
	})
	defer fetcher.Close()

	store := cache.NewStore(cfg.Cache.MaxEntries)
	policy := retry.NewPolicy(cfg.Cache.Retry.MaxAttempts, cfg.Cache.Retry.JitterUnit, source.IsTransient)

	refresher := service.NewRefresher(src, validator, store, policy, &service.RefresherConfig{
		CandidateLimit:   cfg.Cache.CandidateLimit,
		MaxEntries:       cfg.Cache.MaxEntries,
		Interval:         cfg.Cache.RefreshInterval,
		ValidatorWorkers: cfg.Validator.Workers,
	})

	engine := imaging.NewEngine(&imaging.Config{
		QualityStart: cfg.Compression.QualityStart,
		QualityStep:  cfg.Compression.QualityStep,
		Workers:      cfg.Compression.Workers,
	})

	router := api.SetupRouter(&api.RouterDeps{
		Images: handler.NewImageHandler(service.NewSelector(store), fetcher, engine, cfg.Compression.Budget()),
		Health: handler.NewHealthHandler(store),
		Logger: appLogger,
		CORS: middleware.CORSConfig{
			AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
			AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
		},
	}, cfg.Server.Mode)

	refreshCtx, stopRefresh := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		refresher.Run(appLogger.WithContext(refreshCtx))
	}()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port":             cfg.Server.Port,
			"mode":             cfg.Server.Mode,
			logger.FieldSource: src.GetSourceID(),
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	stopRefresh()
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}

// newSource builds the configured listing source and a function releasing it.
func newSource(cfg *config.Config) (source.Source, func()) {
	if cfg.Source.Type == config.SourceStaging {
		return staging.NewAdapter(cfg.Source.Staging.Path), func() {}
	}

	adapter := reddit.NewAdapter(reddit.Config{
		ClientID:          cfg.Reddit.ClientID,
		ClientSecret:      cfg.Reddit.ClientSecret,
		Username:          cfg.Reddit.Username,
		Password:          cfg.Reddit.Password,
		Subreddit:         cfg.Reddit.Subreddit,
		UserAgent:         cfg.Reddit.UserAgent,
		AuthURL:           cfg.Reddit.AuthURL,
		APIURL:            cfg.Reddit.APIURL,
		TopPeriod:         cfg.Reddit.TopPeriod,
		RequestsPerMinute: cfg.Reddit.RequestsPerMinute,
		Timeout:           cfg.Reddit.Timeout,
	})
	return adapter, adapter.Close
}
