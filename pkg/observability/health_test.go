package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthChecker_Liveness(t *testing.T) {
	checker := NewHealthChecker("test")

	rec := httptest.NewRecorder()
	checker.Liveness(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, StatusHealthy, body["status"])
	assert.Equal(t, "test", body["version"])
}

func TestHealthChecker_Check(t *testing.T) {
	ok := func(context.Context) error { return nil }
	fail := func(context.Context) error { return errors.New("down") }

	tests := []struct {
		name     string
		deps     []Dependency
		expected string
	}{
		{name: "no dependencies", expected: StatusHealthy},
		{
			name:     "all healthy",
			deps:     []Dependency{{Name: "a", Check: ok, Critical: true}, {Name: "b", Check: ok}},
			expected: StatusHealthy,
		},
		{
			name:     "optional failure degrades",
			deps:     []Dependency{{Name: "a", Check: ok, Critical: true}, {Name: "b", Check: fail}},
			expected: StatusDegraded,
		},
		{
			name:     "critical failure is unhealthy",
			deps:     []Dependency{{Name: "a", Check: fail, Critical: true}, {Name: "b", Check: fail}},
			expected: StatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := NewHealthChecker("v1", tt.deps...).Check(context.Background())

			assert.Equal(t, tt.expected, status.Status)
			assert.Equal(t, "v1", status.Version)
			assert.Len(t, status.Dependencies, len(tt.deps))
		})
	}
}

func TestHTTPCheck(t *testing.T) {
	status := http.StatusUnauthorized
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	check := HTTPCheck(srv.Client(), srv.URL+"/.well-known/openid-configuration")
	assert.NoError(t, check(context.Background()))

	status = http.StatusBadGateway
	err := check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestHealthChecker_ReadinessDegradedBroker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	checker := NewHealthChecker("test",
		Dependency{Name: "state_store", Check: func(context.Context) error { return nil }, Critical: true},
		Dependency{Name: "broker", Check: HTTPCheck(srv.Client(), srv.URL)},
	)

	rec := httptest.NewRecorder()
	checker.Readiness(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var status HealthStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.Equal(t, StatusDegraded, status.Status)
	assert.Equal(t, StatusHealthy, status.Dependencies["state_store"].Status)
	assert.Equal(t, StatusUnhealthy, status.Dependencies["broker"].Status)
	assert.NotEmpty(t, status.Dependencies["broker"].Message)
}

func TestHealthChecker_ReadinessCriticalFailure(t *testing.T) {
	checker := NewHealthChecker("test", Dependency{
		Name:     "state_store",
		Check:    func(context.Context) error { return errors.New("connection refused") },
		Critical: true,
	})

	rec := httptest.NewRecorder()
	checker.Readiness(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var status HealthStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.Equal(t, StatusUnhealthy, status.Status)
	assert.Equal(t, "connection refused", status.Dependencies["state_store"].Message)
}
