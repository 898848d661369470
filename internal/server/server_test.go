package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev.veridict.agent/internal/analysis"
	"dev.veridict.agent/internal/config"
	"dev.veridict.agent/internal/judge"
	"dev.veridict.agent/internal/meta"
	"dev.veridict.agent/internal/metrics"
	"dev.veridict.agent/internal/models"
	"dev.veridict.agent/internal/optimizer"
	"dev.veridict.agent/internal/pipeline"
	"dev.veridict.agent/internal/reliability"
	"dev.veridict.agent/internal/storage"
)

func newTestServer(t *testing.T) (*Server, *reliability.Registry, *storage.Store) {
	t.Helper()
	cfg := config.Default()

	units := []analysis.Unit{
		analysis.NewSourceTracker(),
		analysis.NewTextualAnalyzer(),
		analysis.NewVisualValidator(),
	}
	registry := reliability.NewRegistry(
		analysis.UnitSourceTracker, analysis.UnitTextual, analysis.UnitVisual)
	j := judge.New(cfg.Judge, registry.Weight)

	promReg := prometheus.NewRegistry()
	collector := metrics.NewCollector(promReg)

	controller, err := pipeline.NewController(cfg.Pipeline, pipeline.Deps{
		Units:    units,
		Judge:    j,
		Meta:     meta.New(),
		Registry: registry,
		Metrics:  collector,
	})
	require.NoError(t, err)
	t.Cleanup(controller.Close)

	store, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	opt := optimizer.New(cfg.Optimizer, registry, nil, nil)
	return New(controller, store, collector, registry, opt, promReg, nil), registry, store
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func getPath(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestServer_Health(t *testing.T) {
	s, _, _ := newTestServer(t)
	w := getPath(t, s.Handler(), "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestServer_CheckReturnsVerdict(t *testing.T) {
	s, _, _ := newTestServer(t)

	w := postJSON(t, s.Handler(), "/api/v1/check", map[string]any{
		"headline": "Ministry publishes transparency report",
		"text":     "According to the published study, the data confirms a steady decline in incidents.",
		"link":     "https://reuters.com/articles/transparency",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var run models.RunResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &run))
	assert.Equal(t, models.StatusCompleted, run.Status)
	require.NotNil(t, run.Verdict)
	assert.True(t, run.Verdict.Verdict.Valid())
	assert.NotEmpty(t, run.RunID)
	assert.NotEmpty(t, run.Item.ID) // derived from content when omitted
}

func TestServer_CheckRequiresHeadline(t *testing.T) {
	s, _, _ := newTestServer(t)
	w := postJSON(t, s.Handler(), "/api/v1/check", map[string]any{"text": "body only"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_ResultLookup(t *testing.T) {
	s, _, store := newTestServer(t)

	run := models.RunResult{
		RunID:     "stored-1",
		Item:      models.NewsItem{ID: "i1", Headline: "Archived story"},
		Status:    models.StatusCompleted,
		Verdict:   &models.Verdict{Verdict: models.VerdictUnsure},
		Timestamp: time.Now().UTC(),
	}
	require.NoError(t, store.SaveRun(context.Background(), run))

	w := getPath(t, s.Handler(), "/api/v1/results/stored-1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"run_id":"stored-1"`)

	w = getPath(t, s.Handler(), "/api/v1/results/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_RecentResults(t *testing.T) {
	s, _, store := newTestServer(t)
	for _, id := range []string{"a", "b"} {
		require.NoError(t, store.SaveRun(context.Background(), models.RunResult{
			RunID:     id,
			Item:      models.NewsItem{ID: id},
			Status:    models.StatusCompleted,
			Timestamp: time.Now().UTC(),
		}))
	}

	w := getPath(t, s.Handler(), "/api/v1/results")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":2`)
}

func TestServer_Statistics(t *testing.T) {
	s, _, _ := newTestServer(t)
	w := getPath(t, s.Handler(), "/api/v1/statistics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "reliability")
	assert.Contains(t, w.Body.String(), analysis.UnitTextual)
}

func TestServer_FeedbackValidation(t *testing.T) {
	s, _, _ := newTestServer(t)
	h := s.Handler()

	w := postJSON(t, h, "/api/v1/feedback", map[string]any{"run_id": "x", "truth": "UNSURE"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(t, h, "/api/v1/feedback", map[string]any{"run_id": "x", "truth": "maybe"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(t, h, "/api/v1/feedback", map[string]any{"run_id": "missing", "truth": "REAL"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_FeedbackMovesReliability(t *testing.T) {
	s, registry, store := newTestServer(t)
	h := s.Handler()

	run := models.RunResult{
		RunID:  "fb-1",
		Item:   models.NewsItem{ID: "i1"},
		Status: models.StatusCompleted,
		Verdict: &models.Verdict{
			Verdict:    models.VerdictReal,
			Confidence: 0.9,
		},
		Reports: []models.SignalReport{
			{UnitID: analysis.UnitTextual, Confidence: 0.85},
		},
		Timestamp: time.Now().UTC(),
	}
	require.NoError(t, store.SaveRun(context.Background(), run))

	w := postJSON(t, h, "/api/v1/feedback", map[string]any{"run_id": "fb-1", "truth": "REAL"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Greater(t, registry.Weight(analysis.UnitTextual), 1.0)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)

	// Drive one check so counters exist.
	w := postJSON(t, s.Handler(), "/api/v1/check", map[string]any{
		"headline": "Weather service issues routine forecast",
		"text":     "Light rain is expected across the region tomorrow.",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = getPath(t, s.Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "veridict_checks_total")
}

func TestServer_Checkpoint(t *testing.T) {
	s, _, store := newTestServer(t)
	require.NoError(t, s.Checkpoint(context.Background()))

	entries, err := store.LoadReliability(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}
