package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nmalakhov/shortly/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyticsHandler(t *testing.T) {
	h, svc := newTestHandler(t, nil)
	router := h.SetupRouter()

	ctx := context.Background()
	first, err := svc.Shorten(ctx, "https://example.com/first")
	require.NoError(t, err)
	second, err := svc.Shorten(ctx, "https://example.com/second")
	require.NoError(t, err)

	_, err = svc.ResolveAndRecord(ctx, second)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/analytics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	result := w.Result()
	defer result.Body.Close()

	require.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, "application/json", result.Header.Get("Content-Type"))

	var resp models.AnalyticsResponse
	require.NoError(t, json.NewDecoder(result.Body).Decode(&resp))
	require.Len(t, resp.URLs, 2)

	assert.Equal(t, second, resp.URLs[0].Alias, "newest record comes first")
	assert.Equal(t, int64(1), resp.URLs[0].TotalClicks)
	assert.Equal(t, first, resp.URLs[1].Alias)
	assert.Equal(t, int64(0), resp.URLs[1].TotalClicks)

	for _, report := range resp.URLs {
		assert.Len(t, report.DailyClicks, 7, "daily series must be dense")
	}
}

func TestAliasAnalyticsHandler(t *testing.T) {
	h, svc := newTestHandler(t, nil)
	router := h.SetupRouter()

	alias, err := svc.Shorten(context.Background(), "https://example.com/page")
	require.NoError(t, err)

	t.Run("existing alias", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/analytics/"+alias, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		result := w.Result()
		defer result.Body.Close()

		require.Equal(t, http.StatusOK, result.StatusCode)

		var resp map[string]models.AliasReport
		require.NoError(t, json.NewDecoder(result.Body).Decode(&resp))

		report, ok := resp[alias]
		require.True(t, ok, "response is keyed by alias")
		assert.Equal(t, "https://example.com/page", report.OriginalURL)
		assert.Len(t, report.DailyClicks, 7)
	})

	t.Run("unknown alias", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/analytics/missing", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		result := w.Result()
		defer result.Body.Close()

		assert.Equal(t, http.StatusNotFound, result.StatusCode)
	})
}

func TestHealthHandler(t *testing.T) {
	t.Run("all dependencies healthy", func(t *testing.T) {
		h, _ := newTestHandler(t, nil)
		router := h.SetupRouter()

		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		result := w.Result()
		defer result.Body.Close()

		require.Equal(t, http.StatusOK, result.StatusCode)

		var resp models.HealthResponse
		require.NoError(t, json.NewDecoder(result.Body).Decode(&resp))
		assert.Equal(t, "ok", resp.Status)
		assert.Equal(t, "ok", resp.Dependencies["database"])
		assert.Equal(t, "ok", resp.Dependencies["counter_store"])
	})

	t.Run("counter store down", func(t *testing.T) {
		limiter := allowAll()
		limiter.pingErr = context.DeadlineExceeded

		h, _ := newTestHandler(t, limiter)
		router := h.SetupRouter()

		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		result := w.Result()
		defer result.Body.Close()

		require.Equal(t, http.StatusServiceUnavailable, result.StatusCode)

		var resp models.HealthResponse
		require.NoError(t, json.NewDecoder(result.Body).Decode(&resp))
		assert.Equal(t, "degraded", resp.Status)
		assert.Equal(t, "unavailable", resp.Dependencies["counter_store"])
	})
}
