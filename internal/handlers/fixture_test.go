package handlers_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/medboard/internal/adapters/kv"
	"github.com/ammerola/medboard/internal/core/extract"
	"github.com/ammerola/medboard/internal/core/services"
	"github.com/ammerola/medboard/internal/handlers"
	"github.com/ammerola/medboard/internal/handlers/middleware"
	"github.com/ammerola/medboard/internal/pkg/config"
	"github.com/ammerola/medboard/internal/pkg/metrics"
	"github.com/ammerola/medboard/test/helpers"
	"github.com/ammerola/medboard/test/mocks"
)

const (
	testCookie  = "medboard_client"
	testSession = "7d1f4b8e-3c2a-4f5e-9a6b-1c2d3e4f5a6b"
)

type fixture struct {
	backend   *mocks.MockBackendClient
	queue     *mocks.MockTaskQueue
	store     *kv.MemoryStore
	cases     *services.CaseStore
	prefs     *services.PreferenceStore
	jobs      *services.JobStore
	sessions  *handlers.SessionRegistry
	metrics   *metrics.Metrics
	uploadDir string
	handler   http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctrl := gomock.NewController(t)
	logger := helpers.TestLogger()
	keys := services.Keys{Prefix: "test"}

	f := &fixture{
		backend:   mocks.NewMockBackendClient(ctrl),
		queue:     mocks.NewMockTaskQueue(ctrl),
		store:     kv.NewMemoryStore(time.Minute, logger),
		metrics:   metrics.New("test"),
		uploadDir: t.TempDir(),
	}
	f.cases = services.NewCaseStore(f.store, keys, logger)
	f.prefs = services.NewPreferenceStore(f.store, keys, logger)
	f.jobs = services.NewJobStore(f.store, keys, time.Hour, logger)

	inventory := services.NewInventoryService(f.backend, nil, 0, logger)
	f.sessions = handlers.NewSessionRegistry(time.Hour, func(id string) *handlers.Session {
		return &handlers.Session{
			Inventory: services.NewInventoryController(),
			Queries: services.NewQueryController(id, f.backend, f.cases, services.Extractors{
				Diseases:  extract.New(),
				Recovery:  extract.New(),
				Resources: extract.New(),
			}, logger, services.WithQueryTimeout(time.Second)),
		}
	}, f.metrics, logger)
	t.Cleanup(f.sessions.Close)

	renderer, err := handlers.NewRenderer(logger)
	require.NoError(t, err)

	routes := &handlers.Routes{
		Pages:       handlers.NewPageHandler(renderer, inventory, f.sessions, f.prefs, f.cases, logger),
		Inventory:   handlers.NewInventoryHandler(inventory, f.sessions, renderer, logger),
		Queries:     handlers.NewQueryHandler(f.sessions, f.cases, renderer, f.metrics, logger),
		Preferences: handlers.NewPreferencesHandler(f.prefs, logger),
		Documents:   handlers.NewDocumentHandler(f.jobs, f.queue, f.backend, 1<<20, f.uploadDir, logger),
		Health:      handlers.NewHealthHandler(config.AppConfig{Version: "test"}, logger, handlers.WithStorage(f.store)),
		Metrics:     f.metrics.Handler(),
	}

	mux := http.NewServeMux()
	routes.Register(mux)
	f.handler = middleware.Session(middleware.SessionCookie{Name: testCookie, MaxAge: time.Hour})(
		middleware.Metrics(f.metrics)(mux))
	return f
}

// do sends req with the fixture's session cookie
func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	req.AddCookie(&http.Cookie{Name: testCookie, Value: testSession})
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) request(method, target string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return f.do(req)
}
