package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ruscigno/astroscraper/filter"
	"github.com/Ruscigno/astroscraper/models"
	"github.com/Ruscigno/astroscraper/scraper"
	"github.com/Ruscigno/astroscraper/scraper/cache"
	"github.com/Ruscigno/astroscraper/scraper/fetcher"
	"github.com/Ruscigno/astroscraper/scraper/proxy"
	"github.com/Ruscigno/astroscraper/service"
	"github.com/Ruscigno/astroscraper/worker"
)

type stubSource struct{}

func (s *stubSource) FetchPage(ctx context.Context, pageNumber int) (string, error) {
	return fmt.Sprintf("page-%d", pageNumber), nil
}

func (s *stubSource) Parse(html string, pageNumber int) ([]models.ListingRecord, error) {
	return nil, nil
}

func price(v float64) *float64 { return &v }

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	dir := proxy.NewDirectory([]proxy.Descriptor{{Family: proxy.FamilyDirect}})
	session := proxy.NewSession()
	session.Confirm(models.ProxySelection{Index: 0, ConfirmedAt: time.Now()})
	f := fetcher.New(dir, cache.New(cache.DefaultTTL), session, logger)
	prober := proxy.NewProber(dir, session, logger)
	src := &stubSource{}
	sc := scraper.New(src, src, logger, scraper.WithPauses(0, 0, 0))

	svc := service.New(sc, f, prober, session, filter.NewEngine(), nil, nil, logger)
	svc.Engine().SetListings([]models.ListingRecord{
		{ID: "0_100", AdNumber: "100", AdType: "For Sale", Status: "Active",
			Description: "SkyWatcher 200P", Location: "Yorkshire", Price: price(450)},
		{ID: "0_101", AdNumber: "101", AdType: "Wanted", Status: "Active",
			Description: "Televue Panoptic", Location: "Kent", Price: price(180)},
	})

	queue := worker.NewWorkQueue(1, svc, logger)
	t.Cleanup(queue.Stop)
	return SetupRouter(svc, queue)
}

func doRequest(router *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGetListingsAppliesFilters(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(router, http.MethodGet, "/listings?adType=Wanted", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Count    int                    `json:"count"`
		Listings []models.ListingRecord `json:"listings"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "101", resp.Listings[0].AdNumber)
}

func TestGetListingsRejectsBadInput(t *testing.T) {
	router := newTestRouter(t)

	assert.Equal(t, http.StatusBadRequest,
		doRequest(router, http.MethodGet, "/listings?minPrice=cheap", "").Code)
	assert.Equal(t, http.StatusBadRequest,
		doRequest(router, http.MethodGet, "/listings?sortBy=sideways", "").Code)
}

func TestGetStats(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(router, http.MethodGet, "/listings/stats", "")
	require.Equal(t, http.StatusOK, w.Code)

	var stats filter.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.Total)
}

func TestExportCSV(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(router, http.MethodGet, "/listings/export", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Body.String(), "Ad Number")
	assert.Contains(t, w.Body.String(), "SkyWatcher 200P")
}

func TestStartJobAssignsID(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(router, http.MethodPost, "/jobs", `{"max_pages":2}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var job models.ScrapeJob
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, 2, job.MaxPages)
}

func TestGetCurrentProxy(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(router, http.MethodGet, "/proxies/current", "")
	require.Equal(t, http.StatusOK, w.Code)

	var sel models.ProxySelection
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sel))
	assert.Equal(t, 0, sel.Index)
}
