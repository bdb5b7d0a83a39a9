package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitizerx/digitizerx/internal/log"
	"github.com/digitizerx/digitizerx/internal/rag"
)

type stubEngine struct {
	resp *rag.Response
	err  error
}

func (e *stubEngine) Handle(context.Context, rag.Request) (*rag.Response, error) {
	return e.resp, e.err
}

type stubResolver struct {
	path string
}

func (r *stubResolver) Resolve(context.Context, string) string {
	return r.path
}

func newTestServer(t *testing.T, engine QueryEngine, resolver InputResolver) *Server {
	t.Helper()
	srv, err := NewServer(ServerConfig{
		Logger:      log.NewNop(),
		Engine:      engine,
		Resolver:    resolver,
		CORSOrigins: []string{"*"},
		RateBurst:   100,
	})
	require.NoError(t, err)
	return srv
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	_, err := NewServer(ServerConfig{Resolver: &stubResolver{}})
	assert.Error(t, err)

	_, err = NewServer(ServerConfig{Engine: &stubEngine{}})
	assert.Error(t, err)
}

func TestAsk_Success(t *testing.T) {
	engine := &stubEngine{resp: &rag.Response{Kind: "rag", Answer: "use certified weights [#1]"}}
	srv := newTestServer(t, engine, &stubResolver{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ask",
		strings.NewReader(`{"query":"how do I calibrate the balance"}`))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp rag.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "rag", resp.Kind)
	assert.Equal(t, "use certified weights [#1]", resp.Answer)
}

func TestAsk_InvalidJSON(t *testing.T) {
	srv := newTestServer(t, &stubEngine{}, &stubResolver{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ask", strings.NewReader(`{"query":`))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_json", resp.Code)
}

func TestAsk_EngineErrorBecomesSingle500(t *testing.T) {
	engine := &stubEngine{err: errors.New("embedding provider unavailable")}
	srv := newTestServer(t, engine, &stubResolver{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ask", strings.NewReader(`{"query":"q"}`))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "embedding provider unavailable", resp.Error)
}

func TestAsk_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &stubEngine{}, &stubResolver{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ask", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestResolve_Match(t *testing.T) {
	srv := newTestServer(t, &stubEngine{}, &stubResolver{path: "/equipment/123"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/resolve",
		strings.NewReader(`{"input":"123"}`))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp resolveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Path)
	assert.Equal(t, "/equipment/123", *resp.Path)
}

func TestResolve_NoMatchIsNullNot500(t *testing.T) {
	srv := newTestServer(t, &stubEngine{}, &stubResolver{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/resolve",
		strings.NewReader(`{"input":"garbage input"}`))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"path":null}`, w.Body.String())
}

func TestResolve_InvalidJSON(t *testing.T) {
	srv := newTestServer(t, &stubEngine{}, &stubResolver{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/resolve", strings.NewReader(`not json`))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &stubEngine{}, &stubResolver{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestReady_NilPool(t *testing.T) {
	srv := newTestServer(t, &stubEngine{}, &stubResolver{})

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORS_PreflightWildcard(t *testing.T) {
	srv := newTestServer(t, &stubEngine{}, &stubResolver{})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/ask", nil)
	req.Header.Set("Origin", "http://scanner-007.plant.local")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	srv, err := NewServer(ServerConfig{
		Logger:    log.NewNop(),
		Engine:    &stubEngine{resp: &rag.Response{Kind: "gen"}},
		Resolver:  &stubResolver{},
		RateBurst: 2,
	})
	require.NoError(t, err)

	var lastCode int
	for range 3 {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/ask", strings.NewReader(`{"query":"q"}`))
		req.RemoteAddr = "10.0.0.9:51234"
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		lastCode = w.Code
	}

	assert.Equal(t, http.StatusTooManyRequests, lastCode)
}

type panickingEngine struct{}

func (panickingEngine) Handle(context.Context, rag.Request) (*rag.Response, error) {
	panic("boom")
}

func TestRecovery_PanicBecomes500(t *testing.T) {
	srv := newTestServer(t, panickingEngine{}, &stubResolver{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ask", strings.NewReader(`{"query":"q"}`))
	w := httptest.NewRecorder()

	assert.NotPanics(t, func() {
		srv.Handler().ServeHTTP(w, req)
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
