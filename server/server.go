// Package server wires the scraper stack and runs the HTTP API.
package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"github.com/Ruscigno/astroscraper/api"
	"github.com/Ruscigno/astroscraper/config"
	"github.com/Ruscigno/astroscraper/filter"
	"github.com/Ruscigno/astroscraper/scraper"
	"github.com/Ruscigno/astroscraper/scraper/cache"
	"github.com/Ruscigno/astroscraper/scraper/fetcher"
	"github.com/Ruscigno/astroscraper/scraper/parser"
	"github.com/Ruscigno/astroscraper/scraper/proxy"
	"github.com/Ruscigno/astroscraper/service"
	"github.com/Ruscigno/astroscraper/storage"
	"github.com/Ruscigno/astroscraper/worker"
)

// Build assembles a ListingService from configuration. The returned cleanup
// closes any opened stores.
func Build(cfg config.Config, logger *zap.Logger) (*service.ListingService, func(), error) {
	dir := proxy.DefaultDirectory()
	session := proxy.NewSession()
	pageCache := cache.New(cache.DefaultTTL)

	f := fetcher.New(dir, pageCache, session, logger,
		fetcher.WithBaseURL(cfg.BaseURL),
		fetcher.WithClient(&http.Client{Timeout: cfg.RequestTimeout}),
		fetcher.WithRateLimit(cfg.RateLimit),
	)
	prober := proxy.NewProber(dir, session, logger, proxy.WithEchoURL(cfg.EchoURL))
	sc := scraper.New(f, parser.New(logger), logger)
	engine := filter.NewEngine()

	cleanup := func() {}

	var store *storage.SessionStore
	if cfg.SessionDBPath != "" {
		var err error
		store, err = storage.OpenSession(cfg.SessionDBPath, logger)
		if err != nil {
			logger.Warn("session store unavailable, continuing without persistence", zap.Error(err))
		}
	}

	var archive service.Archiver
	if cfg.DatabaseURL != "" {
		arc, err := storage.NewListingArchive(cfg.DatabaseURL, logger)
		if err != nil {
			return nil, cleanup, err
		}
		archive = arc
		prevCleanup := cleanup
		cleanup = func() {
			arc.Close()
			prevCleanup()
		}
	}
	if store != nil {
		prevCleanup := cleanup
		cleanup = func() {
			store.Close()
			prevCleanup()
		}
	}

	svc := service.New(sc, f, prober, session, engine, store, archive, logger)
	return svc, cleanup, nil
}

// Start runs the API server until interrupted.
func Start(cfg config.Config, logger *zap.Logger) {
	svc, cleanup, err := Build(cfg, logger)
	if err != nil {
		logger.Fatal("failed to build service", zap.Error(err))
	}
	defer cleanup()

	svc.Startup(context.Background())

	wq := worker.NewWorkQueue(1, svc, logger)
	defer wq.Stop()

	router := api.SetupRouter(svc, wq)
	go func() {
		if err := router.Run(":" + cfg.HTTPPort); err != nil {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	<-sigChan
	logger.Info("shutting down...")
}
