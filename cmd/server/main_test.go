package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/plutobench/internal/config"
	"github.com/copyleftdev/plutobench/internal/logging"
	"github.com/copyleftdev/plutobench/internal/metrics"
	"github.com/copyleftdev/plutobench/internal/server"
)

func TestRouter(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	logger := logging.New(logging.ErrorLevel, io.Discard)
	rec := metrics.New()
	srv := server.NewServer(cfg, logger, rec)
	t.Cleanup(func() { _ = srv.Close() })

	ts := httptest.NewServer(newRouter(cfg, logger, rec, srv))
	defer ts.Close()

	tests := []struct {
		path       string
		wantStatus int
		wantBody   string
	}{
		{"/healthz", http.StatusOK, "OK"},
		{"/api/v1/launcher", http.StatusOK, "Pluto.jl"},
		{"/metrics", http.StatusOK, "plutobench_launch_descriptors_served_total 1"},
		{"/missing", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(ts.URL + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Contains(t, string(body), tt.wantBody)
			if tt.path != "/missing" {
				assert.NotEmpty(t, resp.Header.Get("Content-Type"))
			}
		})
	}
}
