// Package scraper drives the resilient fetcher across pages 0..N, either
// strictly sequentially or in bounded-concurrency batches, accumulating
// parsed records and emitting progress events.
package scraper

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Ruscigno/astroscraper/models"
)

const (
	// DefaultMaxPages bounds a run regardless of the empty-page streak.
	DefaultMaxPages = 50
	// DefaultConcurrency is the batch size in parallel mode.
	DefaultConcurrency = 3
	// maxEmptyPages is the consecutive-empty-page streak that terminates a
	// run. A single empty page never halts anything.
	maxEmptyPages = 3

	defaultPagePause  = 500 * time.Millisecond
	defaultBatchPause = 300 * time.Millisecond
	defaultJitterMax  = 200 * time.Millisecond
)

// PageFetcher resolves one numbered page into raw markup.
type PageFetcher interface {
	FetchPage(ctx context.Context, pageNumber int) (string, error)
}

// RecordParser turns raw markup into listing records.
type RecordParser interface {
	Parse(html string, pageNumber int) ([]models.ListingRecord, error)
}

// Observer receives progress and batch events. Callbacks are invoked
// synchronously from the run goroutine; a nil callback is skipped.
type Observer struct {
	OnProgress func(models.Progress)
	OnBatch    func(models.Batch)
}

func (o Observer) progress(p models.Progress) {
	if o.OnProgress != nil {
		o.OnProgress(p)
	}
}

func (o Observer) batch(b models.Batch) {
	if o.OnBatch != nil {
		o.OnBatch(b)
	}
}

// Options control one run.
type Options struct {
	MaxPages    int
	Concurrency int
	Parallel    bool
}

func (o Options) withDefaults() Options {
	if o.MaxPages <= 0 {
		o.MaxPages = DefaultMaxPages
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	return o
}

// Scraper is the pagination orchestrator.
type Scraper struct {
	fetcher PageFetcher
	parser  RecordParser
	logger  *zap.Logger

	pagePause  time.Duration
	batchPause time.Duration
	jitterMax  time.Duration
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithPauses overrides the inter-page and inter-batch pauses and the
// per-request jitter ceiling. Tests run these at zero.
func WithPauses(page, batch, jitter time.Duration) Option {
	return func(s *Scraper) {
		s.pagePause = page
		s.batchPause = batch
		s.jitterMax = jitter
	}
}

// New wires an orchestrator.
func New(fetcher PageFetcher, parser RecordParser, logger *zap.Logger, opts ...Option) *Scraper {
	s := &Scraper{
		fetcher:    fetcher,
		parser:     parser,
		logger:     logger,
		pagePause:  defaultPagePause,
		batchPause: defaultBatchPause,
		jitterMax:  defaultJitterMax,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run fetches pages until maxPages are processed or three consecutive
// pages parse to zero records. Both modes produce the same final record
// set for the same input; only event granularity differs.
func (s *Scraper) Run(ctx context.Context, opts Options, obs Observer) ([]models.ListingRecord, error) {
	opts = opts.withDefaults()
	if opts.Parallel {
		return s.runParallel(ctx, opts, obs)
	}
	return s.runSequential(ctx, opts, obs)
}

func (s *Scraper) runSequential(ctx context.Context, opts Options, obs Observer) ([]models.ListingRecord, error) {
	var all []models.ListingRecord
	currentPage := 0
	emptyStreak := 0

	for currentPage < opts.MaxPages && emptyStreak < maxEmptyPages {
		if err := ctx.Err(); err != nil {
			return all, err
		}

		obs.progress(models.Progress{
			CurrentPage:   currentPage + 1,
			TotalListings: len(all),
			Status:        fmt.Sprintf("Loading page %d...", currentPage+1),
		})

		listings, err := s.fetchAndParse(ctx, currentPage)
		if err != nil {
			s.logger.Error("page fetch failed",
				zap.Int("page", currentPage), zap.Error(err))
			obs.progress(models.Progress{
				CurrentPage:   currentPage + 1,
				TotalListings: len(all),
				Status:        fmt.Sprintf("Error loading page %d: %v", currentPage+1, err),
				Error:         true,
			})
			// A failed page with nothing accumulated is a failed run;
			// otherwise it counts toward the empty streak and we move on.
			if len(all) == 0 {
				return nil, err
			}
			emptyStreak++
			currentPage++
			continue
		}

		if len(listings) == 0 {
			emptyStreak++
			s.logger.Info("empty page",
				zap.Int("page", currentPage),
				zap.Int("streak", emptyStreak),
				zap.Int("threshold", maxEmptyPages))
		} else {
			emptyStreak = 0
			all = append(all, listings...)
			obs.batch(models.Batch{
				NewListings:   listings,
				TotalListings: len(all),
				CurrentPage:   currentPage + 1,
				Status:        fmt.Sprintf("Loaded page %d - %d new listings", currentPage+1, len(listings)),
			})
		}

		currentPage++
		if currentPage < opts.MaxPages && emptyStreak < maxEmptyPages {
			s.sleep(ctx, s.pagePause)
		}
	}

	obs.progress(models.Progress{
		CurrentPage:   currentPage,
		TotalListings: len(all),
		Status:        fmt.Sprintf("Completed loading %d listings from %d pages", len(all), currentPage),
		Completed:     true,
	})
	s.logger.Info("sequential run complete",
		zap.Int("pages", currentPage), zap.Int("listings", len(all)))
	return all, nil
}

func (s *Scraper) runParallel(ctx context.Context, opts Options, obs Observer) ([]models.ListingRecord, error) {
	var all []models.ListingRecord
	processed := 0
	emptyStreak := 0
	batchIndex := 0

	for processed < opts.MaxPages && emptyStreak < maxEmptyPages {
		if err := ctx.Err(); err != nil {
			return all, err
		}

		batchStart := batchIndex * opts.Concurrency
		batchEnd := batchStart + opts.Concurrency
		if batchEnd > opts.MaxPages {
			batchEnd = opts.MaxPages
		}
		if batchStart >= batchEnd {
			break
		}

		obs.progress(models.Progress{
			CurrentPage:   batchStart + 1,
			TotalListings: len(all),
			Status:        fmt.Sprintf("Loading batch %d - pages %d to %d...", batchIndex+1, batchStart+1, batchEnd),
		})

		results := s.fetchBatch(ctx, batchStart, batchEnd)

		// Reorder by page number so accumulation is deterministic
		// regardless of completion order.
		sort.Slice(results, func(i, j int) bool {
			return results[i].PageNumber < results[j].PageNumber
		})

		var batchListings []models.ListingRecord
		for _, res := range results {
			processed++
			if res.Err == nil && len(res.Listings) > 0 {
				emptyStreak = 0
				batchListings = append(batchListings, res.Listings...)
				continue
			}
			emptyStreak++
			if res.Err != nil {
				s.logger.Error("page fetch failed",
					zap.Int("page", res.PageNumber), zap.Error(res.Err))
				if len(all)+len(batchListings) == 0 {
					obs.progress(models.Progress{
						CurrentPage:   res.PageNumber + 1,
						TotalListings: 0,
						Status:        fmt.Sprintf("Error loading page %d: %v", res.PageNumber+1, res.Err),
						Error:         true,
					})
					return nil, res.Err
				}
			}
		}

		if len(batchListings) > 0 {
			all = append(all, batchListings...)
			obs.batch(models.Batch{
				NewListings:   batchListings,
				TotalListings: len(all),
				CurrentPage:   batchEnd,
				Status:        fmt.Sprintf("Batch %d complete - %d new listings", batchIndex+1, len(batchListings)),
			})
		}

		batchIndex++
		if batchIndex*opts.Concurrency < opts.MaxPages && emptyStreak < maxEmptyPages {
			s.sleep(ctx, s.batchPause)
		}
	}

	obs.progress(models.Progress{
		CurrentPage:   processed,
		TotalListings: len(all),
		Status:        fmt.Sprintf("Parallel loading completed - %d listings from %d pages", len(all), processed),
		Completed:     true,
	})
	s.logger.Info("parallel run complete",
		zap.Int("pages", processed), zap.Int("listings", len(all)))
	return all, nil
}

// fetchBatch issues pages [start,end) concurrently with a small random
// jitter per request and joins the whole batch before returning.
func (s *Scraper) fetchBatch(ctx context.Context, start, end int) []models.PageResult {
	results := make([]models.PageResult, end-start)
	var wg sync.WaitGroup
	for page := start; page < end; page++ {
		wg.Add(1)
		go func(page int) {
			defer wg.Done()
			if s.jitterMax > 0 {
				s.sleep(ctx, time.Duration(rand.Int63n(int64(s.jitterMax))))
			}
			listings, err := s.fetchAndParse(ctx, page)
			results[page-start] = models.PageResult{PageNumber: page, Listings: listings, Err: err}
		}(page)
	}
	wg.Wait()
	return results
}

func (s *Scraper) fetchAndParse(ctx context.Context, page int) ([]models.ListingRecord, error) {
	html, err := s.fetcher.FetchPage(ctx, page)
	if err != nil {
		return nil, err
	}
	return s.parser.Parse(html, page)
}

func (s *Scraper) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
