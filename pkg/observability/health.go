package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// CheckFunc probes a single dependency
type CheckFunc func(ctx context.Context) error

// Dependency is a named readiness check. A failing critical dependency marks
// the service unhealthy; a failing optional one only degrades it.
type Dependency struct {
	Name     string
	Check    CheckFunc
	Critical bool
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Version      string                      `json:"version,omitempty"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus is the result of one dependency check
type DependencyStatus struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	LatencyMS int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthChecker serves liveness and readiness probes
type HealthChecker struct {
	version      string
	timeout      time.Duration
	dependencies []Dependency
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(version string, deps ...Dependency) *HealthChecker {
	return &HealthChecker{
		version:      version,
		timeout:      5 * time.Second,
		dependencies: deps,
	}
}

// HTTPCheck issues a GET to url and fails on transport errors and 5xx
// responses. Any other status means the endpoint is up; identity brokers
// answer unauthenticated probes with 401 or 404.
func HTTPCheck(client *http.Client, url string) CheckFunc {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%s returned %d", url, resp.StatusCode)
		}
		return nil
	}
}

// Liveness always answers 200 while the process serves requests
func (h *HealthChecker) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(HealthStatus{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC(),
		Version:   h.version,
	})
}

// Readiness returns a readiness probe (checks all dependencies)
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if status.Status == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	json.NewEncoder(w).Encode(status)
}

// Check runs every dependency check concurrently
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:       StatusHealthy,
		Timestamp:    time.Now(),
		Version:      h.version,
		Dependencies: make(map[string]DependencyStatus, len(h.dependencies)),
	}

	results := make([]DependencyStatus, len(h.dependencies))
	var wg sync.WaitGroup
	for i, dep := range h.dependencies {
		wg.Add(1)
		go func(i int, dep Dependency) {
			defer wg.Done()
			results[i] = runCheck(ctx, dep.Check)
		}(i, dep)
	}
	wg.Wait()

	for i, dep := range h.dependencies {
		status.Dependencies[dep.Name] = results[i]

		if results[i].Status != StatusUnhealthy {
			continue
		}
		if dep.Critical {
			status.Status = StatusUnhealthy
		} else if status.Status == StatusHealthy {
			status.Status = StatusDegraded
		}
	}
	return status
}

func runCheck(ctx context.Context, check CheckFunc) DependencyStatus {
	start := time.Now()
	status := DependencyStatus{
		Status:    StatusHealthy,
		Timestamp: start,
	}

	err := check(ctx)
	status.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		status.Status = StatusUnhealthy
		status.Message = err.Error()
	}
	return status
}
