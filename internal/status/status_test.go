package status

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"codeberg.org/mutker/ipmifanctl/internal/control"
	"codeberg.org/mutker/ipmifanctl/internal/errors"
	"codeberg.org/mutker/ipmifanctl/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource control.Status

func (s staticSource) Status() control.Status { return control.Status(s) }

func TestStatusEndpoint(t *testing.T) {
	want := control.Status{
		Iteration:   12,
		SampleValid: true,
		MaxTemp:     41,
		FanLevel:    60,
		LastReason:  "temp ≥ 40°C, delta 41",
		LastSuccess: true,
		UpdatedAt:   time.Unix(1700000000, 0).UTC(),
	}

	rec := httptest.NewRecorder()
	newRouter(staticSource(want)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var got control.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, want, got)
	assert.Contains(t, rec.Body.String(), `"fan_level":60`)
}

func TestUnknownRoute(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(staticSource{}).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/status", nil))

	assert.NotEqual(t, http.StatusOK, rec.Code)
}

func TestServeAndShutdown(t *testing.T) {
	s := NewServer("127.0.0.1:0", staticSource{}, logger.Default())

	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe() }()

	require.Eventually(t, func() bool {
		return s.Shutdown(context.Background()) == nil
	}, time.Second, 10*time.Millisecond)
	assert.NoError(t, <-done)
}

func TestServeBadAddress(t *testing.T) {
	err := NewServer("256.0.0.1:bad", staticSource{}, logger.Default()).ListenAndServe()
	assert.True(t, errors.HasCode(err, ErrServeFailed))
}
