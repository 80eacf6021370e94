package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aluiziolira/go-scrape-recipes/api"
	"github.com/aluiziolira/go-scrape-recipes/models"
	"github.com/aluiziolira/go-scrape-recipes/scraper"
	"github.com/aluiziolira/go-scrape-recipes/store"
)

type mockTrigger struct {
	err   error
	calls int
	next  time.Time
}

func (m *mockTrigger) Trigger() error {
	m.calls++
	return m.err
}

func (m *mockTrigger) Next() time.Time {
	return m.next
}

type mockState struct {
	state   scraper.State
	running bool
}

func (m mockState) State() scraper.State { return m.state }
func (m mockState) Running() bool        { return m.running }

type mockStatus struct {
	status *models.RunStatus
}

func (m mockStatus) ReadStatus() (*models.RunStatus, error) {
	if m.status == nil {
		return nil, os.ErrNotExist
	}
	return m.status, nil
}

type mockRecipes struct {
	listings map[string][]models.ListingRecord
	details  map[string]*models.DetailRecord
	err      error
}

func (m *mockRecipes) ListingsBySection(_ context.Context, section string) ([]models.ListingRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	records := m.listings[section]
	if records == nil {
		records = []models.ListingRecord{}
	}
	return records, nil
}

func (m *mockRecipes) DetailByRecipeID(_ context.Context, id string) (*models.DetailRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	record, ok := m.details[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return record, nil
}

func setupRouter(t *testing.T, trigger *mockTrigger, state mockState, status mockStatus, recipes api.RecipeReader) *gin.Engine {
	t.Helper()

	gin.SetMode(gin.TestMode)
	handler := api.NewHandler(trigger, state, status, recipes, []string{"popular", "trending", "recommended"})

	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "scraper_test_total", Help: "test counter"})
	registry.MustRegister(counter)
	counter.Inc()

	return api.NewRouter(handler, registry)
}

func doGet(t *testing.T, router *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, path, http.NoBody)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestScrapeEndpoint(t *testing.T) {
	testCases := []struct {
		name       string
		triggerErr error
		wantStatus int
	}{
		{name: "starts a run", wantStatus: http.StatusAccepted},
		{name: "run already active", triggerErr: scraper.ErrRunInProgress, wantStatus: http.StatusConflict},
		{name: "trigger failure", triggerErr: errors.New("scheduler not started"), wantStatus: http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			trigger := &mockTrigger{err: tc.triggerErr}
			router := setupRouter(t, trigger, mockState{state: scraper.StateIdle}, mockStatus{}, nil)

			w := doGet(t, router, "/scraper/scrape")

			assert.Equal(t, tc.wantStatus, w.Code, w.Body.String())
			assert.Equal(t, 1, trigger.calls)
		})
	}
}

func TestStatusEndpoint(t *testing.T) {
	t.Run("with status document", func(t *testing.T) {
		status := &models.RunStatus{Outcome: models.OutcomeCompleted, TotalRecipes: 7}
		status.AddSection("trending", models.OutcomeFailed, 0, errors.New("status 503"))
		next := time.Date(2026, 1, 1, 13, 0, 0, 0, time.UTC)

		router := setupRouter(t, &mockTrigger{next: next},
			mockState{state: scraper.StateCollectingDetails, running: true},
			mockStatus{status: status}, nil)

		w := doGet(t, router, "/scraper/status")
		require.Equal(t, http.StatusOK, w.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "collecting_details", body["state"])
		assert.Equal(t, true, body["running"])
		assert.Equal(t, "completed", body["outcome"])
		assert.EqualValues(t, 7, body["totalRecipes"])
		assert.Equal(t, "2026-01-01T13:00:00Z", body["nextRun"])
		assert.NotContains(t, body, "message")

		sections, ok := body["sections"].([]any)
		require.True(t, ok)
		require.Len(t, sections, 1)
		assert.EqualValues(t, 0, sections[0].(map[string]any)["recipesScraped"])
	})

	t.Run("without status document", func(t *testing.T) {
		router := setupRouter(t, &mockTrigger{}, mockState{state: scraper.StateIdle}, mockStatus{}, nil)

		w := doGet(t, router, "/scraper/status")
		require.Equal(t, http.StatusOK, w.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "idle", body["state"])
		assert.Equal(t, "Status file not found or invalid", body["message"])
		assert.NotContains(t, body, "nextRun")
		assert.NotContains(t, body, "outcome")
	})
}

func TestSectionRecipesEndpoint(t *testing.T) {
	recipes := &mockRecipes{
		listings: map[string][]models.ListingRecord{
			"popular": {{RecipeID: "1", Title: "Pancakes", Section: "popular"}},
		},
	}
	router := setupRouter(t, &mockTrigger{}, mockState{state: scraper.StateIdle}, mockStatus{}, recipes)

	w := doGet(t, router, "/sections/popular/recipes")
	require.Equal(t, http.StatusOK, w.Code)
	var got []models.ListingRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, recipes.listings["popular"], got)

	w = doGet(t, router, "/sections/trending/recipes")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	w = doGet(t, router, "/sections/seasonal/recipes")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecipeEndpoint(t *testing.T) {
	recipes := &mockRecipes{
		details: map[string]*models.DetailRecord{
			"1": {RecipeID: "1", Title: "Pancakes", Ingredients: []models.Ingredient{{Quantity: "2", Item: "eggs"}}},
		},
	}
	router := setupRouter(t, &mockTrigger{}, mockState{state: scraper.StateIdle}, mockStatus{}, recipes)

	w := doGet(t, router, "/recipes/1")
	require.Equal(t, http.StatusOK, w.Code)
	var got models.DetailRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Pancakes", got.Title)
	assert.Equal(t, []models.Ingredient{{Quantity: "2", Item: "eggs"}}, got.Ingredients)

	w = doGet(t, router, "/recipes/999")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecipeEndpointsWithoutStore(t *testing.T) {
	router := setupRouter(t, &mockTrigger{}, mockState{state: scraper.StateIdle}, mockStatus{}, nil)

	assert.Equal(t, http.StatusServiceUnavailable, doGet(t, router, "/recipes/1").Code)
	assert.Equal(t, http.StatusServiceUnavailable, doGet(t, router, "/sections/popular/recipes").Code)
}

func TestRecipeEndpointStoreError(t *testing.T) {
	recipes := &mockRecipes{err: errors.New("connection reset")}
	router := setupRouter(t, &mockTrigger{}, mockState{state: scraper.StateIdle}, mockStatus{}, recipes)

	assert.Equal(t, http.StatusInternalServerError, doGet(t, router, "/recipes/1").Code)
	assert.Equal(t, http.StatusInternalServerError, doGet(t, router, "/sections/popular/recipes").Code)
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	router := setupRouter(t, &mockTrigger{}, mockState{state: scraper.StateIdle}, mockStatus{}, nil)

	w := doGet(t, router, "/healthz")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","state":"idle"}`, w.Body.String())

	w = doGet(t, router, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "scraper_test_total 1"), w.Body.String())
}
