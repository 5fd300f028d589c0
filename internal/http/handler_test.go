package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"traffic-analytics/internal/http/middleware"
	"traffic-analytics/internal/service"
	"traffic-analytics/internal/store"
	"traffic-analytics/internal/watch"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st, err := store.Open(filepath.Join(t.TempDir(), "analytics.db"), "traffic_analytics", zerolog.Nop())
	require.NoError(t, err)

	analytics := service.New(st, service.Config{}, zerolog.Nop())
	hub := watch.NewHub(zerolog.Nop())
	handler := NewHandler(analytics, st, hub, zerolog.Nop())

	return NewRouter(handler, middleware.Auth(nil), "test")
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestObservationIngestAndSummary(t *testing.T) {
	r := newTestRouter(t)

	payload := `{
		"location_id": "i95",
		"lanes": [{"lane_id": "n1", "vehicle_types": {"car": 5, "truck": 1}, "queue_length_meters": 20}],
		"avg_wait_seconds": 20,
		"alerts": ["debris on road"],
		"optimization_suggestions": ["extend green phase"]
	}`
	rec := doJSON(t, r, http.MethodPost, "/analytics/observations", payload)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = doJSON(t, r, http.MethodGet, "/analytics/summary?location_id=i95", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			VehiclesToday  int    `json:"vehicles_today"`
			IncidentsToday int    `json:"incidents_today"`
			Congestion     string `json:"congestion_level"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 6, resp.Data.VehiclesToday)
	assert.Equal(t, 1, resp.Data.IncidentsToday)
	assert.NotEmpty(t, resp.Data.Congestion)
}

func TestObservationRejectsBadPayload(t *testing.T) {
	r := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/analytics/observations", `{"lanes": "nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEmergencyLifecycleOverHTTP(t *testing.T) {
	r := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/analytics/emergencies",
		`{"type": "ambulance", "lane": "n1", "direction": "north", "location_id": "i95"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.Data.ID)

	rec = doJSON(t, r, http.MethodPost, "/analytics/emergencies/"+created.Data.ID+"/clear", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	// Second clear of the same event reports not found.
	rec = doJSON(t, r, http.MethodPost, "/analytics/emergencies/"+created.Data.ID+"/clear", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, r, http.MethodPost, "/analytics/emergencies/missing/clear", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportEndpoints(t *testing.T) {
	r := newTestRouter(t)

	rec := doJSON(t, r, http.MethodGet, "/analytics/export?format=json", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "traffic-analytics.json")
	assert.True(t, json.Valid(rec.Body.Bytes()))

	rec = doJSON(t, r, http.MethodGet, "/analytics/export?format=csv", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "Period,Label,Congestion Value,Samples"))

	rec = doJSON(t, r, http.MethodGet, "/analytics/export?format=xml", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClearResetsEverything(t *testing.T) {
	r := newTestRouter(t)

	doJSON(t, r, http.MethodPost, "/analytics/incidents",
		`{"type": "accident", "description": "pileup", "location_id": "i95"}`)

	rec := doJSON(t, r, http.MethodPost, "/analytics/clear", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, r, http.MethodGet, "/analytics/incidents", "")
	var resp struct {
		Data []json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Data)
}

func TestUpdateSettings(t *testing.T) {
	r := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPatch, "/analytics/settings", `{"saveHistoricalData": false}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, false, resp.Data["saveHistoricalData"])

	// With history off, observations stop accumulating.
	doJSON(t, r, http.MethodPost, "/analytics/observations",
		`{"lanes": [{"vehicle_types": {"car": 9}}]}`)
	rec = doJSON(t, r, http.MethodGet, "/analytics/summary", "")
	var summary struct {
		Data struct {
			VehiclesToday int `json:"vehicles_today"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Zero(t, summary.Data.VehiclesToday)
}

func TestHealthEndpoint(t *testing.T) {
	r := newTestRouter(t)

	rec := doJSON(t, r, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionEstablishesNamespace(t *testing.T) {
	r := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/session", `{"location_id": "i95", "location_name": "I-95 & Main"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Namespace string `json:"namespace"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	// Anonymous principal lands in the shared namespace.
	assert.Equal(t, "traffic_analytics", resp.Data.Namespace)
}
