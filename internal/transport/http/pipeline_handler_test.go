package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finclusion/internal/config"
	apierrors "finclusion/internal/errors"
	"finclusion/internal/shared/testutil"
)

type fakeInvalidator struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeInvalidator) Invalidate() {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
}

// blockingDataService parks Refresh until released, so a second
// request can race the guard.
type blockingDataService struct {
	fakeDataService
	started chan struct{}
	release chan struct{}
}

func (b *blockingDataService) Refresh(ctx context.Context) error {
	close(b.started)
	<-b.release
	return nil
}

func newPipelineHandler(t *testing.T, data DataServiceInterface, inv *fakeInvalidator) *PipelineHandler {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	return NewPipelineHandler(data, inv, nil, logger, apierrors.NewErrorHandler(logger, false))
}

func TestPipelineHandler_RefreshInvalidatesForecasts(t *testing.T) {
	inv := &fakeInvalidator{}
	h := newPipelineHandler(t, &fakeDataService{}, inv)

	req := httptest.NewRequest(http.MethodPost, "/refresh", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, inv.calls)
}

func TestPipelineHandler_ConcurrentRefreshConflicts(t *testing.T) {
	svc := &blockingDataService{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	h := newPipelineHandler(t, svc, &fakeInvalidator{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		req := httptest.NewRequest(http.MethodPost, "/refresh", nil)
		h.Routes().ServeHTTP(httptest.NewRecorder(), req)
	}()

	<-svc.started
	req := httptest.NewRequest(http.MethodPost, "/refresh", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "REFRESH_RUNNING")

	close(svc.release)
	<-done
}

func TestExportHandler_DownloadRejectsTraversal(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	paths := &config.Paths{OutputDir: t.TempDir()}
	h := NewExportHandler(&fakeDataService{}, &fakeForecastService{}, nil, paths, logger,
		apierrors.NewErrorHandler(logger, false))

	for _, name := range []string{"..secret.csv", "a..b.csv"} {
		req := httptest.NewRequest(http.MethodGet, "/download/"+name, nil)
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
	}
}

func TestExportHandler_DownloadServesArtifact(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	paths := &config.Paths{OutputDir: t.TempDir()}
	content := "indicator_code,year\nACC_OWNERSHIP,2025\n"
	require.NoError(t, os.WriteFile(
		filepath.Join(paths.OutputDir, "forecast.csv"), []byte(content), 0o644))

	h := NewExportHandler(&fakeDataService{}, &fakeForecastService{}, nil, paths, logger,
		apierrors.NewErrorHandler(logger, false))

	req := httptest.NewRequest(http.MethodGet, "/download/forecast.csv", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, content, rec.Body.String())

	t.Run("missing artifact", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/download/missing.csv", nil)
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
