package service

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ruscigno/astroscraper/filter"
	"github.com/Ruscigno/astroscraper/models"
	"github.com/Ruscigno/astroscraper/scraper"
	"github.com/Ruscigno/astroscraper/scraper/cache"
	"github.com/Ruscigno/astroscraper/scraper/fetcher"
	"github.com/Ruscigno/astroscraper/scraper/proxy"
)

// stubSource serves one canned page of markup and records, then empties.
type stubSource struct {
	records []models.ListingRecord
}

func (s *stubSource) FetchPage(ctx context.Context, pageNumber int) (string, error) {
	return fmt.Sprintf("page-%d", pageNumber), nil
}

func (s *stubSource) Parse(html string, pageNumber int) ([]models.ListingRecord, error) {
	if pageNumber == 0 {
		return s.records, nil
	}
	return nil, nil
}

type fakeArchiver struct {
	saved []models.ListingRecord
}

func (a *fakeArchiver) SaveListings(ctx context.Context, listings []models.ListingRecord) error {
	a.saved = append(a.saved, listings...)
	return nil
}

func newTestService(t *testing.T, archive Archiver) (*ListingService, *proxy.Session) {
	t.Helper()
	logger := zap.NewNop()
	dir := proxy.NewDirectory([]proxy.Descriptor{{Family: proxy.FamilyDirect}})
	session := proxy.NewSession()
	f := fetcher.New(dir, cache.New(cache.DefaultTTL), session, logger)
	prober := proxy.NewProber(dir, session, logger)

	src := &stubSource{records: []models.ListingRecord{
		{ID: "0_100", AdNumber: "100", Description: "SkyWatcher 200P", PageNumber: 0},
		{ID: "0_101", AdNumber: "101", Description: "Televue Panoptic", PageNumber: 0},
	}}
	sc := scraper.New(src, src, logger, scraper.WithPauses(0, 0, 0))

	svc := New(sc, f, prober, session, filter.NewEngine(), nil, archive, logger)
	return svc, session
}

func TestScrapeFeedsEngineAndArchive(t *testing.T) {
	archive := &fakeArchiver{}
	svc, session := newTestService(t, archive)

	// A fresh confirmed selection skips probing entirely.
	session.Confirm(models.ProxySelection{Index: 0, ConfirmedAt: time.Now()})

	var progress []models.Progress
	svc.SetObserver(scraper.Observer{
		OnProgress: func(p models.Progress) { progress = append(progress, p) },
	})

	job := &models.ScrapeJob{ID: "job-1", MaxPages: 6}
	require.NoError(t, svc.Scrape(context.Background(), job))

	assert.Len(t, svc.Engine().Listings(), 2)
	assert.Len(t, archive.saved, 2)
	require.NotEmpty(t, progress)
	assert.True(t, progress[len(progress)-1].Completed)
}

func TestCurrentProxyReflectsSession(t *testing.T) {
	svc, session := newTestService(t, nil)
	assert.Nil(t, svc.CurrentProxy())

	session.Confirm(models.ProxySelection{Index: 0, ConfirmedAt: time.Now()})
	require.NotNil(t, svc.CurrentProxy())
	assert.Equal(t, 0, svc.CurrentProxy().Index)
}

func TestExportCSVWritesFilteredView(t *testing.T) {
	svc, session := newTestService(t, nil)
	session.Confirm(models.ProxySelection{Index: 0, ConfirmedAt: time.Now()})
	require.NoError(t, svc.Scrape(context.Background(), &models.ScrapeJob{ID: "job-2", MaxPages: 6}))

	require.NoError(t, svc.Engine().SetFilter("search", "televue"))

	var buf bytes.Buffer
	require.NoError(t, svc.ExportCSV(&buf))
	out := buf.String()
	assert.Contains(t, out, "Televue Panoptic")
	assert.NotContains(t, out, "SkyWatcher")
}
