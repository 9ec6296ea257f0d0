// pkg/health/integration_test.go
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/opd-ai/go-gimbal/pkg/config"
	"github.com/opd-ai/go-gimbal/pkg/engine"
	"github.com/opd-ai/go-gimbal/pkg/logging"
	"github.com/opd-ai/go-gimbal/pkg/telemetry"
)

// TestHealthCheckIntegration tests the health check system with a real
// simulation and flight recorder
func TestHealthCheckIntegration(t *testing.T) {
	logger, err := logging.New(logging.Options{Level: "ERROR", Output: io.Discard})
	if err != nil {
		t.Fatal(err)
	}

	store, err := telemetry.OpenStore(config.RecorderConfig{
		Driver:    "sqlite",
		DSN:       filepath.Join(t.TempDir(), "flight.db"),
		BatchSize: 16,
		Every:     1,
	})
	if err != nil {
		t.Fatalf("OpenStore() failed: %v", err)
	}
	defer store.Close()

	sim, err := engine.NewSimulation(config.DefaultConfig(), engine.Options{Logger: logger, Sink: store})
	if err != nil {
		t.Fatal(err)
	}

	healthChecker := NewHealthChecker()
	healthChecker.AddCheck(NewSimulationHealthCheck(sim.Running, sim.Err))
	healthChecker.AddCheck(NewCraftStateHealthCheck(sim.Snapshot))
	healthChecker.AddCheck(NewPingHealthCheck("recorder", store.Ping))

	t.Run("health checks before start", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		health := healthChecker.CheckHealth(ctx)

		if health.Checks["simulation"].Status != "unhealthy" {
			t.Error("Simulation should be unhealthy before start")
		}
		if health.Checks["craft_state"].Status != "healthy" {
			t.Error("Craft state should be healthy at rest")
		}
		if health.Checks["recorder"].Status != "healthy" {
			t.Errorf("Recorder should be reachable, got: %s", health.Checks["recorder"].Message)
		}
		if health.Status != "unhealthy" {
			t.Error("Overall status should be unhealthy before start")
		}
	})

	ctx := context.Background()
	if err := store.BeginRun(ctx, sim.RunID(), nil); err != nil {
		t.Fatalf("BeginRun() failed: %v", err)
	}
	if err := sim.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		if _, err := sim.Tick(ctx); err != nil {
			t.Fatalf("Tick() failed: %v", err)
		}
	}

	t.Run("health checks while running", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		health := healthChecker.CheckHealth(ctx)

		if health.Status != "healthy" {
			t.Errorf("Overall status should be healthy while running, got: %+v", health.Checks)
		}
	})

	t.Run("liveness endpoint", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/health", nil)
		w := httptest.NewRecorder()

		healthChecker.LivenessHandler(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Expected status code %d, got %d", http.StatusOK, w.Code)
		}

		var response map[string]string
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}

		if response["status"] != "alive" {
			t.Errorf("Expected status 'alive', got %s", response["status"])
		}
	})

	t.Run("readiness endpoint", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/ready", nil)
		w := httptest.NewRecorder()

		healthChecker.ReadinessHandler(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Expected status code %d, got %d", http.StatusOK, w.Code)
		}

		var response HealthStatus
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}

		if response.Status != "healthy" {
			t.Errorf("Expected status 'healthy', got %s", response.Status)
		}
	})

	sim.Stop(ctx)

	t.Run("readiness after stop", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/ready", nil)
		w := httptest.NewRecorder()

		healthChecker.ReadinessHandler(w, req)

		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("Expected status code %d, got %d", http.StatusServiceUnavailable, w.Code)
		}
	})

	if err := store.FinishRun(ctx, sim.Ticks(), sim.Err()); err != nil {
		t.Fatalf("FinishRun() failed: %v", err)
	}
	samples, err := store.Samples(ctx, sim.RunID())
	if err != nil {
		t.Fatalf("Samples() failed: %v", err)
	}
	if len(samples) != 10 {
		t.Errorf("Expected 10 recorded samples, got %d", len(samples))
	}
}

// TestHealthCheckWithFailures tests health check behavior when components fail
func TestHealthCheckWithFailures(t *testing.T) {
	healthChecker := NewHealthChecker()

	healthChecker.AddCheck(NewPingHealthCheck("failing_component", func(ctx context.Context) error {
		return fmt.Errorf("component is down")
	}))

	t.Run("readiness endpoint with failures", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/ready", nil)
		w := httptest.NewRecorder()

		healthChecker.ReadinessHandler(w, req)

		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("Expected status code %d, got %d", http.StatusServiceUnavailable, w.Code)
		}

		var response HealthStatus
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}

		if response.Status != "unhealthy" {
			t.Errorf("Expected status 'unhealthy', got %s", response.Status)
		}

		if response.Checks["failing_component"].Status != "unhealthy" {
			t.Error("Failing component should be marked as unhealthy")
		}

		if response.Checks["failing_component"].Message == "" {
			t.Error("Failing component should have an error message")
		}
	})
}

// TestMemoryHealthCheckIntegration tests memory health check with real memory stats
func TestMemoryHealthCheckIntegration(t *testing.T) {
	healthChecker := NewHealthChecker()

	// Add memory check with very high limit (should pass)
	memoryCheck := NewMemoryHealthCheck(10000, CurrentMemoryMB) // 10GB limit
	healthChecker.AddCheck(memoryCheck)

	t.Run("memory check with high limit", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		health := healthChecker.CheckHealth(ctx)

		if health.Checks["memory"].Status != "healthy" {
			t.Errorf("Memory check should be healthy with high limit, got: %s",
				health.Checks["memory"].Message)
		}
	})

	// Same name, so this replaces the high limit check
	highMemory := func() int64 { return 100 }
	healthChecker.AddCheck(NewMemoryHealthCheck(50, highMemory))

	t.Run("memory check with low limit", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		health := healthChecker.CheckHealth(ctx)

		if health.Checks["memory"].Status != "unhealthy" {
			t.Error("Memory check should be unhealthy with low limit")
		}

		if health.Status != "unhealthy" {
			t.Error("Overall status should be unhealthy due to memory limit")
		}
		if len(health.Checks) != 1 {
			t.Errorf("Expected the replacement to leave 1 check, got %d", len(health.Checks))
		}
	})
}
