package controlplane

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"artemis-core/internal/config"
	"artemis-core/internal/logging"
	"artemis-core/internal/prefixtree"
	"artemis-core/internal/registry"
)

type blockingWorker struct{}

func (blockingWorker) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func newTestControlPlane(t *testing.T) *ControlPlane {
	t.Helper()
	reg := registry.New()
	settings := config.Settings{ModuleName: "test-module"}
	return New(reg, nil, logging.New(false), settings, blockingWorker{}, nil)
}

func TestStartIsIdempotent(t *testing.T) {
	cp := newTestControlPlane(t)

	if msg := cp.Start(); msg != "instructed to start" {
		t.Fatalf("first Start() = %q, want %q", msg, "instructed to start")
	}
	if msg := cp.Start(); msg != "already running" {
		t.Errorf("second Start() = %q, want %q", msg, "already running")
	}
}

func TestStatusUnconfiguredThenStopped(t *testing.T) {
	cp := newTestControlPlane(t)
	if cp.Status() != registry.StatusUnconfigured {
		t.Errorf("Status() before any configure = %q, want %q", cp.Status(), registry.StatusUnconfigured)
	}

	result := cp.Configure(prefixtree.ConfigDocument{Timestamp: 1})
	if !result.Success {
		t.Fatalf("Configure failed: %+v", result)
	}
	if cp.Status() != registry.StatusStopped {
		t.Errorf("Status() after configure, before Start = %q, want %q", cp.Status(), registry.StatusStopped)
	}
}

func TestConfigureRejectsMalformedDocument(t *testing.T) {
	cp := newTestControlPlane(t)
	result := cp.Configure(prefixtree.ConfigDocument{
		Timestamp: 1,
		Rules:     []prefixtree.RuleDoc{{Prefixes: []string{"not-a-prefix"}}},
	})
	if result.Success {
		t.Error("Configure with malformed prefix reported success")
	}
}

func TestHandleHealth(t *testing.T) {
	cp := newTestControlPlane(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	cp.Handler().ServeHTTP(rec, req)

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode /health response: %v", err)
	}
	if body["status"] != string(registry.StatusUnconfigured) {
		t.Errorf("/health status = %q, want %q", body["status"], registry.StatusUnconfigured)
	}
}

func TestHandleConfigPostsDocument(t *testing.T) {
	cp := newTestControlPlane(t)
	doc := `{"timestamp":1,"rules":[{"prefixes":["10.0.0.0/24"],"origin_asns":["65001"]}]}`
	req := httptest.NewRequest(http.MethodPost, "/config", strings.NewReader(doc))
	rec := httptest.NewRecorder()
	cp.Handler().ServeHTTP(rec, req)

	var result prefixtree.CompileResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode /config response: %v", err)
	}
	if !result.Success {
		t.Fatalf("/config reported failure: %+v", result)
	}

	countReq := httptest.NewRequest(http.MethodGet, "/configuredPrefixCount", nil)
	countRec := httptest.NewRecorder()
	cp.Handler().ServeHTTP(countRec, countReq)
	var countBody map[string]int
	if err := json.NewDecoder(countRec.Body).Decode(&countBody); err != nil {
		t.Fatalf("failed to decode /configuredPrefixCount response: %v", err)
	}
	if countBody["configured_prefix_count"] != 1 {
		t.Errorf("configured_prefix_count = %d, want 1", countBody["configured_prefix_count"])
	}
}

func TestHandleMonitoredPrefixes(t *testing.T) {
	cp := newTestControlPlane(t)
	doc := `{"timestamp":1,"rules":[{"prefixes":["10.0.0.0/24"],"origin_asns":["65001"]}]}`
	req := httptest.NewRequest(http.MethodPost, "/config", strings.NewReader(doc))
	cp.Handler().ServeHTTP(httptest.NewRecorder(), req)

	monReq := httptest.NewRequest(http.MethodGet, "/monitoredPrefixes", nil)
	monRec := httptest.NewRecorder()
	cp.Handler().ServeHTTP(monRec, monReq)

	var body map[string][]string
	if err := json.NewDecoder(monRec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode /monitoredPrefixes response: %v", err)
	}
	if len(body["monitored_prefixes"]) != 1 || body["monitored_prefixes"][0] != "10.0.0.0/24" {
		t.Errorf("monitored_prefixes = %v, want [10.0.0.0/24]", body["monitored_prefixes"])
	}
}
