// Package integration provides a reusable test harness for end-to-end
// integration testing of the signoff server. It starts a full HTTP server
// over an in-memory workflow store, a miniredis-backed notifier behind the
// circuit breaker, and a Redis idempotency store.
package integration

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pitabwire/signoff/internal/approval"
	"github.com/pitabwire/signoff/internal/catalog"
	"github.com/pitabwire/signoff/internal/config"
	"github.com/pitabwire/signoff/internal/directory"
	"github.com/pitabwire/signoff/internal/idempotency"
	"github.com/pitabwire/signoff/internal/notify"
	"github.com/pitabwire/signoff/internal/observability"
	"github.com/pitabwire/signoff/internal/openapi"
	"github.com/pitabwire/signoff/internal/transport"
	"github.com/pitabwire/signoff/model"
)

// Epoch is the harness clock's starting time.
var Epoch = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

// NotificationChannel is the pub/sub channel the harness notifier publishes on.
const NotificationChannel = "signoff.test.notifications"

// TestHarness encapsulates a fully wired signoff instance for integration
// testing.
type TestHarness struct {
	t      *testing.T
	server *httptest.Server

	// Internal components exposed for advanced test scenarios.
	Clock    *approval.FixedClock
	Store    *approval.MemoryWorkflowStore
	Engine   *approval.Engine
	Registry *catalog.Registry
	Redis    *miniredis.Miniredis
	Notifier *notify.RedisNotifier
	Breaker  *notify.Breaker
	Logs     *observer.ObservedLogs
}

// HarnessOption configures the test harness.
type HarnessOption func(*harnessConfig)

type harnessConfig struct {
	requireProfiles  bool
	profiles         []model.StakeholderProfile
	breakerFailures  int
	handlerTimeout   time.Duration
	escalationGrace  time.Duration
	requirementsYAML string
}

// WithRequireProfiles makes workflow creation fail when a role is unstaffed.
func WithRequireProfiles() HarnessOption {
	return func(c *harnessConfig) { c.requireProfiles = true }
}

// WithProfiles replaces the standard stakeholder directory.
func WithProfiles(profiles []model.StakeholderProfile) HarnessOption {
	return func(c *harnessConfig) { c.profiles = profiles }
}

// WithBreakerFailures sets how many consecutive notifier failures trip the
// circuit breaker.
func WithBreakerFailures(n int) HarnessOption {
	return func(c *harnessConfig) { c.breakerFailures = n }
}

// WithEscalationGrace overrides the deadline extension applied per escalation.
func WithEscalationGrace(d time.Duration) HarnessOption {
	return func(c *harnessConfig) { c.escalationGrace = d }
}

// WithRequirementsYAML loads the catalog from YAML instead of the standard set.
func WithRequirementsYAML(doc string) HarnessOption {
	return func(c *harnessConfig) { c.requirementsYAML = doc }
}

// NewTestHarness creates and starts a full signoff test instance. The server
// is automatically cleaned up when the test completes.
func NewTestHarness(t *testing.T, opts ...HarnessOption) *TestHarness {
	t.Helper()

	hc := &harnessConfig{
		breakerFailures: 5,
		handlerTimeout:  10 * time.Second,
	}
	for _, opt := range opts {
		opt(hc)
	}

	h := &TestHarness{t: t, Clock: approval.NewFixedClock(Epoch)}

	// Step 1: Load the catalog and directory.
	reqs := catalog.Standard(Epoch)
	if hc.requirementsYAML != "" {
		parsed, err := catalog.NewLoader(h.Clock.Now).Parse([]byte(hc.requirementsYAML))
		if err != nil {
			t.Fatalf("parse requirements: %v", err)
		}
		reqs = parsed
	}
	registry, err := catalog.NewRegistry(reqs)
	if err != nil {
		t.Fatalf("build catalog: %v", err)
	}
	h.Registry = registry

	profiles := hc.profiles
	if profiles == nil {
		profiles = directory.Standard()
	}
	dir, err := directory.New(profiles)
	if err != nil {
		t.Fatalf("build directory: %v", err)
	}

	// Step 2: Start Redis and build the notifier and idempotency store.
	h.Redis = miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: h.Redis.Addr()})
	t.Cleanup(func() { client.Close() })

	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	h.Logs = logs

	h.Notifier = notify.NewRedisNotifier(client, NotificationChannel)
	h.Breaker = notify.NewBreaker(h.Notifier, hc.breakerFailures, 1, time.Minute,
		notify.WithBreakerClock(h.Clock.Now),
		notify.WithBreakerLogger(logger),
	)
	idemStore := idempotency.NewRedisStore(client)

	// Step 3: Build the engine.
	cfg := config.Defaults()
	cfg.Server.HandlerTimeout = hc.handlerTimeout
	cfg.Server.CORS.AllowedOrigins = []string{"http://localhost:3000"}
	if hc.escalationGrace > 0 {
		cfg.Engine.EscalationGrace = hc.escalationGrace
	}

	promReg := prometheus.NewRegistry()
	metrics := observability.InitMetrics(promReg)
	metrics.SetCatalogRequirements(float64(registry.Len()))

	h.Store = approval.NewMemoryWorkflowStore()
	h.Engine = approval.NewEngine(registry, dir, h.Store,
		approval.WithClock(h.Clock),
		approval.WithLogger(logger),
		approval.WithMetrics(metrics),
		approval.WithNotifier(h.Breaker),
		approval.WithPolicy(approval.PolicyFromConfig(cfg.Engine)),
		approval.WithRequireProfiles(hc.requireProfiles),
		approval.WithNotifyTimeout(time.Second),
	)

	contract, err := openapi.Load()
	if err != nil {
		t.Fatalf("load contract: %v", err)
	}

	// Step 4: Build router with full middleware chain.
	router := transport.NewRouter(transport.Dependencies{
		Config:         cfg,
		Logger:         logger,
		Engine:         h.Engine,
		Catalog:        registry,
		Directory:      dir,
		Contract:       contract,
		Metrics:        metrics,
		Idempotency:    idemStore,
		MetricsHandler: observability.HandlerFor(promReg),
		Readiness: observability.ReadinessChecks{
			CatalogLoaded:   func() bool { return registry.Len() > 0 },
			DirectoryLoaded: func() bool { return len(dir.All()) > 0 },
			WorkflowStore:   h.Store,
			Notifier:        h.Breaker,
		},
	})

	// Step 5: Start test server.
	h.server = httptest.NewServer(router)
	t.Cleanup(func() {
		h.server.Close()
		_ = h.Engine.Wait(context.Background())
	})

	return h
}

// BaseURL returns the test server's base URL.
func (h *TestHarness) BaseURL() string {
	return h.server.URL
}

// Settle waits for every in-flight notification to finish.
func (h *TestHarness) Settle() {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.Engine.Wait(ctx); err != nil {
		h.t.Fatalf("notifications did not settle: %v", err)
	}
}

// Inbox returns the Redis inbox of a stakeholder, newest first.
func (h *TestHarness) Inbox(stakeholderID string) []notify.Message {
	h.t.Helper()
	h.Settle()
	msgs, err := h.Notifier.Inbox(context.Background(), stakeholderID, 0)
	if err != nil {
		h.t.Fatalf("read inbox %s: %v", stakeholderID, err)
	}
	return msgs
}

// --- HTTP client helpers ---

// GET performs a GET request.
func (h *TestHarness) GET(path string) *http.Response {
	h.t.Helper()
	return h.doRequest(http.MethodGet, path, nil, nil)
}

// POST performs a POST request with a JSON body.
func (h *TestHarness) POST(path string, body any) *http.Response {
	h.t.Helper()
	return h.doRequest(http.MethodPost, path, body, nil)
}

// POSTWithHeaders performs a POST request with additional headers.
func (h *TestHarness) POSTWithHeaders(path string, body any, headers map[string]string) *http.Response {
	h.t.Helper()
	return h.doRequest(http.MethodPost, path, body, headers)
}

func (h *TestHarness) doRequest(method, path string, body any, headers map[string]string) *http.Response {
	h.t.Helper()

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			h.t.Fatalf("marshal request body: %v", err)
		}
		bodyReader = strings.NewReader(string(data))
	}

	req, err := http.NewRequestWithContext(context.Background(), method, h.server.URL+path, bodyReader)
	if err != nil {
		h.t.Fatalf("create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		h.t.Fatalf("%s %s failed: %v", method, path, err)
	}
	return resp
}

// ParseJSON reads the response body and unmarshals it into the target.
func (h *TestHarness) ParseJSON(resp *http.Response, target any) {
	h.t.Helper()
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read response body: %v", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		h.t.Fatalf("unmarshal response body: %v\nbody: %s", err, string(data))
	}
}

// ReadBody reads and returns the response body as bytes.
func (h *TestHarness) ReadBody(resp *http.Response) []byte {
	h.t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read response body: %v", err)
	}
	return data
}

// AssertStatus checks that the response has the expected status code.
func (h *TestHarness) AssertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	defer resp.Body.Close()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		t.Errorf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
}

// AssertJSON checks that the response has the expected status and parses the body.
func (h *TestHarness) AssertJSON(t *testing.T, resp *http.Response, expected int, target any) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
	h.ParseJSON(resp, target)
}

// --- Workflow helpers ---

// CreateWorkflow starts a workflow targeting 30 days after the harness clock.
func (h *TestHarness) CreateWorkflow(t *testing.T, project string) model.ApprovalWorkflow {
	t.Helper()
	resp := h.POST("/v1/workflows", map[string]any{
		"project_name": project,
		"target_date":  h.Clock.Now().Add(30 * 24 * time.Hour).Format(time.RFC3339),
	})
	var wf model.ApprovalWorkflow
	h.AssertJSON(t, resp, http.StatusCreated, &wf)
	return wf
}

// Decide submits a decision and returns the updated workflow.
func (h *TestHarness) Decide(t *testing.T, workflowID, stakeholderID, approvalType string, status model.ApprovalStatus) model.ApprovalWorkflow {
	t.Helper()
	resp := h.POST("/v1/workflows/"+workflowID+"/decisions", map[string]any{
		"stakeholder_id": stakeholderID,
		"approval_type":  approvalType,
		"status":         status,
	})
	var wf model.ApprovalWorkflow
	h.AssertJSON(t, resp, http.StatusOK, &wf)
	return wf
}
