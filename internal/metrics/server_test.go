package metrics

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/prometheus/common/model"
)

func TestServer_HealthEndpoints(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	s := NewServer("127.0.0.1:0", logger)

	for _, path := range []string{"/health", "/healthz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		s.server.Handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rec.Code)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestServer_Addr(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	s := NewServer("0.0.0.0:17091", logger)
	if s.Addr() != "0.0.0.0:17091" {
		t.Errorf("Addr = %q", s.Addr())
	}
}

// scrapeFamilies runs a scrape against a registry and parses the exposition
// format back into metric families, the way a Prometheus server would.
func scrapeFamilies(t *testing.T, registry *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("scrape status = %d", rec.Code)
	}

	parser := expfmt.NewTextParser(model.UTF8Validation)
	families, err := parser.TextToMetricFamilies(rec.Body)
	if err != nil {
		t.Fatalf("parse exposition: %v", err)
	}
	return families
}

func TestScrape_LaunchMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	c := NewCollectorWithRegistry(CollectorConfig{
		Version:   "test",
		StartMode: "spawn",
		WorldSize: 4,
	}, registry)

	c.LaunchStarted(4)
	for i := 0; i < 4; i++ {
		c.WorkerStarted()
	}
	c.WorkerExited(0, 2*time.Second)
	c.ResultReceived(512)
	c.LaunchCompleted(true, 3*time.Second)

	families := scrapeFamilies(t, registry)

	worldSize, ok := families["train_spawn_world_size"]
	if !ok {
		t.Fatal("train_spawn_world_size not exported")
	}
	if got := worldSize.GetMetric()[0].GetGauge().GetValue(); got != 4 {
		t.Errorf("world size = %v", got)
	}

	launches, ok := families["train_spawn_launches_total"]
	if !ok {
		t.Fatal("train_spawn_launches_total not exported")
	}
	foundSuccess := false
	for _, m := range launches.GetMetric() {
		for _, label := range m.GetLabel() {
			if label.GetName() == "outcome" && label.GetValue() == "success" {
				foundSuccess = true
				// Metric vectors are package-level and shared across the
				// test binary, so assert presence rather than an exact count.
				if m.GetCounter().GetValue() < 1 {
					t.Errorf("success launches = %v", m.GetCounter().GetValue())
				}
			}
		}
	}
	if !foundSuccess {
		t.Error("no success outcome exported")
	}

	if _, ok := families["train_spawn_result_bytes"]; !ok {
		t.Error("train_spawn_result_bytes not exported")
	}
	if _, ok := families["train_spawn_worker_starts_total"]; !ok {
		t.Error("train_spawn_worker_starts_total not exported")
	}
}
