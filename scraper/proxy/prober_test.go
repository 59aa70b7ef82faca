package proxy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ruscigno/astroscraper/models"
)

func validPage() string {
	return "<table>" + strings.Repeat("x", 1200) + "</table>"
}

func newTestProber(t *testing.T, dir *Directory, session *Session, ts *httptest.Server) *Prober {
	t.Helper()
	return NewProber(dir, session, zap.NewNop(),
		WithEchoURL(ts.URL+"/echo"),
		WithStrategyPause(0),
		WithProbeClient(ts.Client()),
	)
}

func TestProbeAllConfirmsFirstWorkingRelay(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/target":
			// Direct access is walled off with a challenge page.
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte("Just a moment..."))
		case r.URL.Path == "/echo":
			w.Write([]byte(`{"origin":"203.0.113.7"}`))
		case strings.HasPrefix(r.URL.Path, "/relay/"):
			w.Write([]byte(validPage()))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	dir := NewDirectory([]Descriptor{
		{Family: FamilyDirect},
		{Template: ts.URL + "/relay/", Family: FamilyRawAppend},
		{Template: ts.URL + "/never-reached/", Family: FamilyRawAppend},
	})
	session := NewSession()

	p := newTestProber(t, dir, session, ts)
	results, err := p.ProbeAll(context.Background(), ts.URL+"/target")
	require.NoError(t, err)

	// Probing stops at the first confirmed entry.
	require.Len(t, results, 2)
	assert.Equal(t, models.ProbeAllStrategiesFailed, results[0].Status)
	assert.Equal(t, models.ProbeSuccess, results[1].Status)
	assert.True(t, results[1].Valid)
	assert.Equal(t, "minimal-headers", results[1].Strategy)

	sel := session.Current()
	require.NotNil(t, sel)
	assert.Equal(t, 1, sel.Index)
	assert.Equal(t, ts.URL+"/relay/", sel.Proxy)
}

func TestProbeAllSkipsRelayFailingConnectivity(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/dead/"):
			w.WriteHeader(http.StatusBadGateway)
		case strings.HasPrefix(r.URL.Path, "/live/"):
			w.Write([]byte(validPage()))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	dir := NewDirectory([]Descriptor{
		{Template: ts.URL + "/dead/", Family: FamilyRawAppend},
		{Template: ts.URL + "/live/", Family: FamilyRawAppend},
	})
	session := NewSession()

	p := newTestProber(t, dir, session, ts)
	results, err := p.ProbeAll(context.Background(), ts.URL+"/target")
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, models.ProbeFailed, results[0].Status)
	assert.NotEmpty(t, results[0].Error)
	assert.Equal(t, models.ProbeSuccess, results[1].Status)
	require.NotNil(t, session.Current())
	assert.Equal(t, 1, session.Current().Index)
}

func TestProbeTargetExhaustsStrategies(t *testing.T) {
	var targetHits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/echo") {
			w.Write([]byte("ok"))
			return
		}
		targetHits.Add(1)
		// 200 with a stub body that fails content validation.
		w.Write([]byte("<table>"))
	}))
	defer ts.Close()

	dir := NewDirectory([]Descriptor{
		{Template: ts.URL + "/relay/", Family: FamilyRawAppend},
	})
	session := NewSession()

	p := newTestProber(t, dir, session, ts)
	results, err := p.ProbeAll(context.Background(), "https://example.com/target")
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, models.ProbeAllStrategiesFailed, results[0].Status)
	assert.Equal(t, "content failed validation", results[0].Error)
	assert.Nil(t, session.Current())
	assert.Equal(t, int32(len(DefaultStrategies())), targetHits.Load())
}

func TestProbeAllHonorsContextCancellation(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dir := NewDirectory([]Descriptor{
		{Template: ts.URL + "/relay/", Family: FamilyRawAppend},
	})
	p := newTestProber(t, dir, NewSession(), ts)
	results, err := p.ProbeAll(ctx, ts.URL+"/target")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}

func TestBestProxy(t *testing.T) {
	results := []models.ProbeResult{
		{Index: 0, Status: models.ProbeFailed},
		{Index: 1, Status: models.ProbeSuccess, Valid: true, ResponseTime: 300 * time.Millisecond},
		{Index: 2, Status: models.ProbeSuccess, Valid: true, ResponseTime: 120 * time.Millisecond},
		{Index: 3, Status: models.ProbeSuccess, Valid: false},
	}

	best := BestProxy(results)
	require.NotNil(t, best)
	assert.Equal(t, 2, best.Index)

	assert.Nil(t, BestProxy(nil))
	assert.Nil(t, BestProxy([]models.ProbeResult{{Status: models.ProbeFailed}}))
}
