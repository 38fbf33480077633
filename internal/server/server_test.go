package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshika/debtbook/internal/config"
	"github.com/vanshika/debtbook/internal/logging"
)

type checkFunc func(ctx context.Context) error

func (f checkFunc) Probe(ctx context.Context) error { return f(ctx) }

func TestServerRunServesUntilCancelled(t *testing.T) {
	handler := NewRouter(logging.Discard(), RouterDependencies{})
	srv := New(logging.Discard(), config.HTTPConfig{Host: "127.0.0.1", Port: 0, ShutdownTimeout: time.Second}, handler)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	addr, err := srv.Addr(waitCtx)
	require.NoError(t, err)

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}, Timeout: 5 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://%s/healthz", addr))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServerRunReportsListenFailure(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	port := taken.Addr().(*net.TCPAddr).Port
	srv := New(logging.Discard(), config.HTTPConfig{Host: "127.0.0.1", Port: port}, http.NotFoundHandler())
	assert.Error(t, srv.Run(context.Background()))
}

func TestHealthzReportsEachCheck(t *testing.T) {
	handler := NewRouter(logging.Discard(), RouterDependencies{Health: Checks{
		"ledger": checkFunc(func(context.Context) error { return nil }),
		"graph":  checkFunc(func(context.Context) error { return errors.New("no route to host") }),
	}})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, map[string]string{"ledger": "ok", "graph": "no route to host"}, body.Checks)
}

func TestRequestIDIsEchoed(t *testing.T) {
	handler := NewRouter(logging.Discard(), RouterDependencies{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "chat-update-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "chat-update-42", rec.Header().Get(requestIDHeader))
}

func TestRecoverPanicsReturnsInternalError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/boom", func(http.ResponseWriter, *http.Request) { panic("nil ledger") })
	handler := logRequests(logging.Discard(), recoverPanics(logging.Discard(), mux))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal error", body.Error)
}

func TestCORSPolicy(t *testing.T) {
	handler := NewRouter(logging.Discard(), RouterDependencies{
		AllowedOrigins:   []string{"https://ledger.example", " "},
		AllowCredentials: true,
	})

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/healthz", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	rec := preflight("https://ledger.example")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://ledger.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodDelete)

	assert.Equal(t, http.StatusForbidden, preflight("https://evil.example").Code)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
