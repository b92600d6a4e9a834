package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/timmy/randmeme/internal/cache"
	"github.com/timmy/randmeme/internal/config"
	"github.com/timmy/randmeme/internal/domain"
	"github.com/timmy/randmeme/internal/logger"
	"github.com/timmy/randmeme/internal/retry"
	"github.com/timmy/randmeme/internal/service"
	"github.com/timmy/randmeme/internal/source"
	"github.com/timmy/randmeme/internal/source/reddit"
	"github.com/timmy/randmeme/internal/source/staging"
)

// snapshot runs a single refresh cycle and reports or saves the validated pools.
// The manifest it writes can be served later with source.type=staging.
func main() {
	os.Exit(run())
}

// run executes one snapshot and returns the process exit code.
func run() int {
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "randmeme-snapshot",
	})
	logger.SetDefaultLogger(appLogger)

	configPath := flag.String("config", "", "Path to config file")
	categoryName := flag.String("category", "", "Refresh only this category (hot, top, rising)")
	manifestPath := flag.String("manifest", "", "Write validated URLs as a staging manifest to this path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Error("Failed to load config")
		return 2
	}

	categories := domain.AllCategories()
	if *categoryName != "" {
		category, err := domain.ParseCategory(*categoryName)
		if err != nil {
			appLogger.WithError(err).Error("Invalid category")
			return 2
		}
		categories = []domain.Category{category}
	}

	var src source.Source
	switch cfg.Source.Type {
	case config.SourceStaging:
		src = staging.NewAdapter(cfg.Source.Staging.Path)
	default:
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
		defer adapter.Close()
		src = adapter
	}

	validator := service.NewValidator(&service.ValidatorConfig{
		Timeout:   cfg.Validator.Timeout,
		UserAgent: cfg.Reddit.UserAgent,
	})
	defer validator.Close()

	store := cache.NewStore(cfg.Cache.MaxEntries)
	refresher := service.NewRefresher(
		src,
		validator,
		store,
		retry.NewPolicy(cfg.Cache.Retry.MaxAttempts, cfg.Cache.Retry.JitterUnit, source.IsTransient),
		&service.RefresherConfig{
			CandidateLimit:   cfg.Cache.CandidateLimit,
			MaxEntries:       cfg.Cache.MaxEntries,
			Interval:         cfg.Cache.RefreshInterval,
			ValidatorWorkers: cfg.Validator.Workers,
		},
	)

	ctx, cancel := context.WithCancel(appLogger.WithContext(context.Background()))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	var entries []*domain.CacheEntry
	failed := 0
	for _, category := range categories {
		entry, err := refresher.RefreshCategory(ctx, category)
		if err != nil {
			appLogger.WithError(err).WithField(logger.FieldCategory, category.String()).Error("Refresh failed")
			failed++
			continue
		}
		entries = append(entries, entry)
		appLogger.WithFields(logger.Fields{
			logger.FieldCategory: category.String(),
			logger.FieldCount:    entry.Len(),
		}).Info("Category refreshed")
	}

	if *manifestPath != "" {
		if err := writeManifest(*manifestPath, entries); err != nil {
			appLogger.WithError(err).Error("Failed to write manifest")
			return 1
		}
		appLogger.WithField("path", *manifestPath).Info("Manifest written")
	}

	appLogger.WithFields(logger.Fields{
		"categories": len(categories),
		"failed":     failed,
		"source":     src.GetSourceID(),
	}).Info("Snapshot completed")

	if failed > 0 {
		return 1
	}
	return 0
}

// writeManifest stores every pooled URL as a post hinted "image", in pool order.
func writeManifest(path string, entries []*domain.CacheEntry) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, entry := range entries {
		for _, url := range entry.URLs {
			if err := enc.Encode(staging.ManifestItem{
				Category: entry.Category.String(),
				URL:      url,
				PostHint: "image",
			}); err != nil {
				return err
			}
		}
	}
	return w.Flush()
}
