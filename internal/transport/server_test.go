package transport

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhirschfeld/apologies-server/internal/clock"
	"github.com/dhirschfeld/apologies-server/internal/config"
	"github.com/dhirschfeld/apologies-server/internal/coordinator"
)

func newTestServer() *Server {
	coord := coordinator.New(config.Default(), clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
	return New(coord, nil)
}

func TestHealthz(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestReadyz(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", rec.Body.String())
}

func TestWSRejectsPlainGET(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.NotEqual(t, http.StatusOK, rec.Code, "a non-upgrade GET must not be accepted as a websocket")
}
