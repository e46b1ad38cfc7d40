package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestConfigHandler_Get(t *testing.T) {
	cfg := testConfig()
	cfg.Blob.SecretKey = "do-not-leak"
	handler := NewConfigHandler(cfg, "primary")

	recorder := httptest.NewRecorder()
	handler.Get(recorder, httptest.NewRequest("GET", "/api/v1/config", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	assertContentType(t, recorder, "application/json")

	var resp ConfigResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.Extractor != "primary" || resp.IndexBackend != "hnsw" || resp.StoreBackend != "json" || resp.BlobBackend != "local" {
		t.Errorf("unexpected config response %+v", resp)
	}
	if resp.Matching.SimilarityThreshold != 0.20 || resp.Matching.MaxImages != 5 {
		t.Errorf("unexpected matching config %+v", resp.Matching)
	}
	if strings.Contains(recorder.Body.String(), "do-not-leak") {
		t.Errorf("config response leaks credentials: %s", recorder.Body.String())
	}
}
