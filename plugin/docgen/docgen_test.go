package docgen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propflow/propflow/store"
)

func TestROIReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/reports/roi", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var req roiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(42), req.PropertyID)
		assert.Equal(t, "fa", req.Language)
		assert.InDelta(t, 7.2, req.ExpectedROI, 0.001)

		json.NewEncoder(rw).Encode(roiResponse{DocumentURL: "https://docs.example/roi-42.pdf"})
	}))
	defer srv.Close()

	c := New(&Config{BaseURL: srv.URL, APIKey: "key"})
	ref, err := c.ROIReport(context.Background(), &store.Property{
		ID: 42, Title: "JVC 1BR", Price: 800_000, ExpectedROI: 7.2,
	}, "fa")
	require.NoError(t, err)
	assert.Equal(t, "https://docs.example/roi-42.pdf", ref)
}

func TestROIReportServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(&Config{BaseURL: srv.URL})
	_, err := c.ROIReport(context.Background(), &store.Property{ID: 1}, "en")
	assert.Error(t, err)
}

func TestROIReportEmptyRef(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		rw.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(&Config{BaseURL: srv.URL})
	_, err := c.ROIReport(context.Background(), &store.Property{ID: 1}, "en")
	assert.Error(t, err)
}
