package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citykit/dmur-cli/internal/config"
	"github.com/citykit/dmur-cli/internal/model"
	"github.com/citykit/dmur-cli/internal/store"
)

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg = &config.Config{
		Analysis: config.AnalysisConfig{
			AutoFocus:          true,
			OnSelectionFailure: "whole_area",
		},
	}
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "serve.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(t.Context()))
	srv := httptest.NewServer(newRouter(st))
	t.Cleanup(func() {
		srv.Close()
		st.Close()
	})
	return srv
}

func denseCity() []model.BusinessPoint {
	var pts []model.BusinessPoint
	id := int64(1)
	for r := 0; r < 6; r++ {
		for c := 0; c < 6; c++ {
			pts = append(pts, model.BusinessPoint{
				ID:       id,
				Lat:      40.000 + float64(r)*0.001,
				Lon:      -75.000 + float64(c)*0.001,
				Category: model.CategoryShop,
				Status:   model.StatusActive,
			})
			id++
		}
	}
	return pts
}

func TestServe_Health(t *testing.T) {
	srv := testServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServe_Metrics(t *testing.T) {
	srv := testServer(t)
	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServe_AnalyzeAndFetchRun(t *testing.T) {
	srv := testServer(t)

	body, err := json.Marshal(analyzeRequest{City: "Testville", Businesses: denseCity()})
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+"/v1/analyze", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var run model.AnalysisRun
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "Testville", run.City)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.Greater(t, run.AreaKm2, 0.0)
	assert.Contains(t, string(run.BoundaryGeoJSON), "FeatureCollection")

	// The run is persisted and retrievable.
	getResp, err := http.Get(srv.URL + "/v1/runs/" + run.ID)
	require.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, http.StatusOK, getResp.StatusCode)

	listResp, err := http.Get(srv.URL + "/v1/runs?city=Testville")
	require.NoError(t, err)
	defer listResp.Body.Close()
	var runs []model.AnalysisRun
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&runs))
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
}

func TestServe_AnalyzeWithListings(t *testing.T) {
	srv := testServer(t)

	var recs []model.ListingRecord
	for i := 0; i < 20; i++ {
		recs = append(recs, model.ListingRecord{
			Lat:      40.0005 + float64(i%4)*0.001,
			Lon:      -74.9995 + float64(i/4)*0.001,
			Bedrooms: i % 5,
		})
	}
	body, err := json.Marshal(analyzeRequest{
		City:       "Testville",
		Businesses: denseCity(),
		Listings:   recs,
	})
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+"/v1/analyze", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var run model.AnalysisRun
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))
	require.NotNil(t, run.Result)
	assert.Greater(t, run.Result.Composite, 0.0)
	assert.Equal(t, 20, run.Result.Metrics.ListingsInside)
}

func TestServe_AnalyzeBadRequest(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Post(srv.URL+"/v1/analyze", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/v1/analyze", "application/json", bytes.NewReader([]byte("{}")))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "neither city nor businesses")
}

func TestServe_RunLifecycle(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Get(srv.URL + "/v1/runs/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	body, _ := json.Marshal(analyzeRequest{City: "Testville", Businesses: denseCity()})
	postResp, err := http.Post(srv.URL+"/v1/analyze", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	var run model.AnalysisRun
	require.NoError(t, json.NewDecoder(postResp.Body).Decode(&run))
	postResp.Body.Close()

	req, err := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/v1/runs/%s", srv.URL, run.ID), nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	delResp.Body.Close()
	assert.Equal(t, http.StatusNoContent, delResp.StatusCode)

	delResp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	delResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, delResp.StatusCode)
}

func TestStatusForError(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusForError(model.DataErrorf("x", "bad")))
	assert.Equal(t, http.StatusBadRequest, statusForError(model.ConfigErrorf("x", "bad")))
	assert.Equal(t, http.StatusUnprocessableEntity, statusForError(model.SelectionErrorf(0, "none")))
	assert.Equal(t, http.StatusInternalServerError, statusForError(fmt.Errorf("boom")))
}
