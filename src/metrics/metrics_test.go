package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersWithoutPanicking(t *testing.T) {
	assert.NotPanics(t, func() {
		New()
	})
}

func TestHandlerExposesRegisteredCollectors(t *testing.T) {
	m := New()
	m.RequestsTotal.WithLabelValues("GET").Inc()
	m.IndexSize.Set(3)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "peerkv_dispatcher_requests_total")
	assert.Contains(t, body, "peerkv_index_size 3")
}

func TestIndependentInstancesDoNotCollide(t *testing.T) {
	a := New()
	b := New()
	a.PushAttempts.Inc()
	b.PushAttempts.Inc()
	b.PushAttempts.Inc()

	assert.NotPanics(t, func() {
		httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		rec := httptest.NewRecorder()
		a.Handler().ServeHTTP(rec, req)
		rec2 := httptest.NewRecorder()
		b.Handler().ServeHTTP(rec2, req)
	})
}
