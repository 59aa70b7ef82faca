// Package service binds the probe, fetch, parse, and filter subsystems
// into the operations the CLI and API expose.
package service

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/Ruscigno/astroscraper/filter"
	"github.com/Ruscigno/astroscraper/models"
	"github.com/Ruscigno/astroscraper/scraper"
	"github.com/Ruscigno/astroscraper/scraper/fetcher"
	"github.com/Ruscigno/astroscraper/scraper/proxy"
	"github.com/Ruscigno/astroscraper/storage"
)

// Archiver persists scraped records long-term. Optional.
type Archiver interface {
	SaveListings(ctx context.Context, listings []models.ListingRecord) error
}

// ListingService owns a scrape session: proxy state, the orchestrator, the
// filter engine, and session persistence.
type ListingService struct {
	scraper  *scraper.Scraper
	fetcher  *fetcher.Fetcher
	prober   *proxy.Prober
	session  *proxy.Session
	engine   *filter.Engine
	store    *storage.SessionStore
	archive  Archiver
	logger   *zap.Logger
	observer scraper.Observer
}

// New wires a listing service. store and archive may be nil.
func New(
	sc *scraper.Scraper,
	f *fetcher.Fetcher,
	p *proxy.Prober,
	session *proxy.Session,
	engine *filter.Engine,
	store *storage.SessionStore,
	archive Archiver,
	logger *zap.Logger,
) *ListingService {
	return &ListingService{
		scraper: sc,
		fetcher: f,
		prober:  p,
		session: session,
		engine:  engine,
		store:   store,
		archive: archive,
		logger:  logger,
	}
}

// SetObserver registers the progress/batch observer used by refresh runs.
func (s *ListingService) SetObserver(obs scraper.Observer) {
	s.observer = obs
}

// Engine exposes the filter engine for query-side consumers.
func (s *ListingService) Engine() *filter.Engine {
	return s.engine
}

// Startup restores persisted session state: a still-fresh confirmed proxy
// skips probing, a still-fresh listing snapshot is served before the first
// refresh.
func (s *ListingService) Startup(ctx context.Context) {
	if s.store == nil {
		return
	}

	if sel, err := s.store.LoadProxy(ctx); err != nil {
		s.logger.Warn("loading saved proxy", zap.Error(err))
	} else if sel != nil {
		s.session.Confirm(*sel)
		s.logger.Info("restored working proxy from session",
			zap.Int("index", sel.Index),
			zap.Duration("latency", sel.Latency))
	}

	if listings, err := s.store.LoadListings(ctx); err != nil {
		s.logger.Warn("loading listing snapshot", zap.Error(err))
	} else if len(listings) > 0 {
		s.engine.SetListings(listings)
		s.logger.Info("restored listing snapshot from session",
			zap.Int("count", len(listings)))
	}
}

// EnsureProxy probes the relay catalog when no fresh selection exists. A
// confirmed selection is persisted for the session freshness window.
func (s *ListingService) EnsureProxy(ctx context.Context) ([]models.ProbeResult, error) {
	if s.session.Current() != nil {
		return nil, nil
	}

	results, err := s.prober.ProbeAll(ctx, s.fetcher.BuildPageURL(0))
	if err != nil {
		return results, err
	}
	sel := s.session.Current()
	if sel == nil {
		// Not fatal: the fetch cascade still tries direct and fallback
		// relays on its own.
		s.logger.Warn("no working relay confirmed by probe")
		return results, nil
	}
	if s.store != nil {
		if err := s.store.SaveProxy(ctx, *sel); err != nil {
			s.logger.Warn("persisting working proxy", zap.Error(err))
		}
	}
	return results, nil
}

// ProbeProxies forces a fresh probe run, discarding any current selection.
func (s *ListingService) ProbeProxies(ctx context.Context) ([]models.ProbeResult, error) {
	s.session.Clear()
	if s.store != nil {
		s.store.ClearProxy(ctx)
	}
	return s.EnsureProxy(ctx)
}

// CurrentProxy returns the session's confirmed selection, or nil.
func (s *ListingService) CurrentProxy() *models.ProxySelection {
	return s.session.Current()
}

// Scrape runs a full refresh: ensure a proxy, walk the pages, feed the
// filter engine, persist the snapshot, and archive if configured. It
// implements the worker queue's crawler contract.
func (s *ListingService) Scrape(ctx context.Context, job *models.ScrapeJob) error {
	if _, err := s.EnsureProxy(ctx); err != nil {
		return fmt.Errorf("probing relays: %w", err)
	}

	listings, err := s.scraper.Run(ctx, scraper.Options{
		MaxPages:    job.MaxPages,
		Concurrency: job.Concurrency,
		Parallel:    job.Parallel,
	}, s.observer)
	if err != nil {
		return fmt.Errorf("scrape run %s: %w", job.ID, err)
	}

	s.engine.SetListings(listings)

	if s.store != nil {
		if err := s.store.SaveListings(ctx, listings); err != nil {
			s.logger.Warn("persisting listing snapshot", zap.Error(err))
		}
	}
	if s.archive != nil {
		if err := s.archive.SaveListings(ctx, listings); err != nil {
			s.logger.Warn("archiving listings", zap.Error(err))
		}
	}

	s.logger.Info("scrape complete",
		zap.String("job_id", job.ID),
		zap.Int("listings", len(listings)))
	return nil
}

// ExportCSV writes the current filtered view as CSV.
func (s *ListingService) ExportCSV(w io.Writer) error {
	return storage.WriteCSV(w, s.engine.Filtered())
}
