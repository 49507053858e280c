package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCountersAreRegistered(t *testing.T) {
	t.Parallel()

	m := New()
	m.LoginsTotal.WithLabelValues("success").Inc()
	m.LoginsTotal.WithLabelValues("success").Inc()
	m.CacheErrorsTotal.WithLabelValues("write").Inc()

	require.Equal(t, float64(2), testutil.ToFloat64(m.LoginsTotal.WithLabelValues("success")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.CacheErrorsTotal.WithLabelValues("write")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	t.Parallel()

	m := New()
	m.RefreshesTotal.WithLabelValues("success").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `auth_token_refreshes_total{outcome="success"} 1`)
}

func TestObserveHTTP(t *testing.T) {
	m := New()
	m.ObserveHTTP("POST", "/api/v1/auth/login", 401, 15*time.Millisecond)
	m.ObserveHTTP("POST", "/api/v1/auth/login", 401, 5*time.Millisecond)

	require.Equal(t, float64(2), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/api/v1/auth/login", "401")))
	require.Equal(t, 1, testutil.CollectAndCount(m.HTTPRequestDuration))
}
