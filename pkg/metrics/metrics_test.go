package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	// Register the bridge metrics
	_ "github.com/Sternrassler/gh-api-bridge/pkg/bridge"
	_ "github.com/Sternrassler/gh-api-bridge/pkg/ratelimit"
)

func TestRegistry(t *testing.T) {
	if Registry == nil {
		t.Error("Registry should not be nil")
	}

	if Registry != prometheus.DefaultRegisterer {
		t.Error("Registry should be the default Prometheus registerer")
	}
}

func TestGatherer_IncludesBridgeMetrics(t *testing.T) {
	families, err := Gatherer.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	names := make(map[string]bool)
	for _, mf := range families {
		names[mf.GetName()] = true
	}

	// Unlabelled metrics are exported before first use
	for _, want := range []string{
		"ghbridge_coalesced_resolves_total",
		"ghbridge_github_rate_limit_remaining",
		"ghbridge_rate_limit_blocks_total",
	} {
		if !names[want] {
			t.Errorf("Metric %s not registered", want)
		}
	}
}

func TestHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "ghbridge_rate_limit_blocks_total") {
		t.Error("Exposition should contain ghbridge_rate_limit_blocks_total")
	}
}
