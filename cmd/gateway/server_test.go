package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/assistdeck/gateway/internal/audit"
	"github.com/assistdeck/gateway/internal/authguard"
	"github.com/assistdeck/gateway/internal/gateway"
	"github.com/assistdeck/gateway/internal/logging"
	"github.com/assistdeck/gateway/internal/metrics"
	"github.com/assistdeck/gateway/internal/ratelimit"
	"github.com/assistdeck/gateway/internal/router"
	"github.com/assistdeck/gateway/internal/rules"
	"github.com/assistdeck/gateway/internal/schemaguard"
	"github.com/assistdeck/gateway/internal/trust"
	"github.com/assistdeck/gateway/internal/worker"
	"github.com/assistdeck/gateway/pkg/testutil"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := logging.NewNop()
	registry := trust.NewRegistry([]trust.Source{{Name: "dashboard"}}, nil)
	pool := worker.NewPool(1, 16, logger)
	t.Cleanup(pool.Close)

	routes := router.NewTable(0)
	routes.Register("agent-manager", testutil.NewSpyHandler(map[string]string{"result": "ok"}))

	gw := gateway.New(gateway.Config{},
		authguard.New(authguard.Config{SharedSecret: "source-key"}, registry, logger),
		ratelimit.NewLimiter(ratelimit.NewMemoryStore(), registry, logger),
		schemaguard.New(schemaguard.Config{}, rules.DefaultTable(), nil, nil, pool, logger),
		routes, registry,
		audit.NewLogger(audit.NewMemoryStore(100), pool, logger),
		metrics.New(), logger)

	return NewServer(gw, metrics.New(), logger)
}

func TestHandleInvoke_Success(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/invoke/agent-manager/list_tasks",
		strings.NewReader(`{"payload":{"limit":5}}`))
	req.Header.Set(credentialHeader, "source-key")
	req.Header.Set(sourceHeader, "dashboard")
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["result"] != "ok" {
		t.Errorf("body = %v, want handler result", body)
	}
}

func TestHandleInvoke_Unauthorized(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/invoke/agent-manager/list_tasks",
		strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "UNAUTHORIZED" {
		t.Errorf("error = %v, want UNAUTHORIZED", body["error"])
	}
	if body["message"] == nil {
		t.Error("message missing from error body")
	}
}

func TestHandleInvoke_BlockedOperationDetails(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/invoke/agent-manager/run",
		strings.NewReader(`{"operation":"DROP TABLE users;"}`))
	req.Header.Set(credentialHeader, "source-key")
	req.Header.Set(sourceHeader, "dashboard")
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["blockedPattern"] == nil {
		t.Error("blockedPattern missing from error body")
	}
}

func TestHandleInvoke_BadJSON(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/invoke/agent-manager/run",
		strings.NewReader(`{not json`))
	req.Header.Set(credentialHeader, "source-key")
	req.Header.Set(sourceHeader, "dashboard")
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
