package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pitabwire/signoff/internal/approval"
	"github.com/pitabwire/signoff/internal/catalog"
	"github.com/pitabwire/signoff/internal/config"
	"github.com/pitabwire/signoff/internal/directory"
	"github.com/pitabwire/signoff/internal/idempotency"
	"github.com/pitabwire/signoff/internal/observability"
	"github.com/pitabwire/signoff/internal/openapi"
)

// Dependencies holds all injected dependencies for the HTTP transport layer.
type Dependencies struct {
	Config    *config.Config
	Logger    *zap.Logger
	Engine    *approval.Engine
	Catalog   *catalog.Registry
	Directory *directory.Directory
	Contract  *openapi.Contract
	Metrics   *observability.Metrics

	// Idempotency caches POST responses by Idempotency-Key; nil disables it.
	Idempotency idempotency.Store

	// MetricsHandler serves /metrics; nil selects the default registry.
	MetricsHandler http.Handler
	Readiness      observability.ReadinessChecks
}

// NewRouter creates a chi.Router with the full middleware pipeline and all
// route registrations. Health, readiness, metrics and the contract bypass
// request logging and metrics.
func NewRouter(deps Dependencies) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(Recovery(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(CORS(deps.Config.Server.CORS))
	r.Use(RequestID)
	r.Use(SecurityHeaders)

	metricsHandler := deps.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = observability.Handler()
	}

	r.Get("/health", observability.HandleHealth())
	r.Get("/ready", observability.HandleReady(deps.Readiness))
	if deps.Config.Observability.Metrics.Enabled {
		r.Method(http.MethodGet, deps.Config.Observability.Metrics.Path, metricsHandler)
	}
	r.Get("/openapi.yaml", handleContract(deps.Contract))

	r.Group(func(r chi.Router) {
		r.Use(BuildRequestContext(logger))
		r.Use(HandlerTimeout(deps.Config.Server.HandlerTimeout))
		r.Use(RequestLogging)
		r.Use(deps.Metrics.MetricsMiddleware)
		r.Use(Idempotency(deps.Idempotency, deps.Config.Idempotency.TTL))

		r.Route("/v1/workflows", func(r chi.Router) {
			r.Post("/", handleCreateWorkflow(deps.Engine, deps.Contract))
			r.Get("/", handleListWorkflows(deps.Engine))

			r.Route("/{workflowId}", func(r chi.Router) {
				r.Get("/", handleWorkflowStatus(deps.Engine))
				r.Post("/decisions", handleSubmitDecision(deps.Engine, deps.Contract))
				r.Post("/reviews", handleRequestReview(deps.Engine, deps.Contract))
				r.Post("/escalations", handleEscalate(deps.Engine, deps.Contract))
				r.Get("/deadlines", handleCheckDeadlines(deps.Engine))
				r.Get("/next-actions", handleNextActions(deps.Engine))
				r.Get("/risks", handleRiskIndicators(deps.Engine))
				r.Get("/dashboard", handleDashboard(deps.Engine))
				r.Get("/report", handleExportReport(deps.Engine))
			})
		})

		r.Get("/v1/requirements", handleListRequirements(deps.Catalog))
		r.Get("/v1/stakeholders", handleListStakeholders(deps.Directory))
	})

	return r
}

func handleContract(contract *openapi.Contract) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if contract == nil {
			WriteNotFound(w, "API contract not loaded")
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		w.Write(contract.Raw())
	}
}
