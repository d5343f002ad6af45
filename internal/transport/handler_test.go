package transport

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/pitabwire/signoff/model"
)

type listResponse[T any] struct {
	Data []T `json:"data"`
}

func (s testServer) createWorkflow(t *testing.T) model.ApprovalWorkflow {
	t.Helper()
	w := s.do(t, http.MethodPost, "/v1/workflows", map[string]any{
		"project_name": "Payments Platform",
		"description":  "Q3 launch",
		"target_date":  testNow.Add(30 * 24 * time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[model.ApprovalWorkflow](t, w)
}

func decision(stakeholder, approvalType, status string) map[string]any {
	return map[string]any{
		"stakeholder_id": stakeholder,
		"approval_type":  approvalType,
		"status":         status,
	}
}

// --- Create ---

func TestHandleCreateWorkflow(t *testing.T) {
	s := newTestServer(t)
	wf := s.createWorkflow(t)

	assert.NotEmpty(t, wf.ID)
	assert.Equal(t, model.StatusPending, wf.Status)
	assert.Len(t, wf.Requirements, 8)
	assert.Equal(t, testNow.Add(30*24*time.Hour), wf.TargetDate)
}

func TestHandleCreateWorkflow_dateOnly(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodPost, "/v1/workflows", map[string]any{
		"project_name": "Ledger",
		"target_date":  "2026-07-15",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	wf := decode[model.ApprovalWorkflow](t, w)
	assert.Equal(t, time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC), wf.TargetDate)
}

func TestHandleCreateWorkflow_errors(t *testing.T) {
	tests := []struct {
		name   string
		body   any
		status int
		code   string
		field  string
	}{
		{"malformed json", "{not json", http.StatusBadRequest, model.ErrBadRequest, ""},
		{"array body", "[]", http.StatusBadRequest, model.ErrBadRequest, ""},
		{"missing project", map[string]any{"target_date": "2026-07-15"}, http.StatusUnprocessableEntity, model.ErrValidationError, "project_name"},
		{"empty project", map[string]any{"project_name": "", "target_date": "2026-07-15"}, http.StatusUnprocessableEntity, model.ErrValidationError, "project_name"},
		{"bad date", map[string]any{"project_name": "p", "target_date": "next tuesday"}, http.StatusUnprocessableEntity, model.ErrValidationError, "target_date"},
		{"blank project", map[string]any{"project_name": "   ", "target_date": "2026-07-15"}, http.StatusUnprocessableEntity, model.ErrValidationError, "project_name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			w := s.do(t, http.MethodPost, "/v1/workflows", tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())

			resp := decode[errorBody](t, w)
			assert.Equal(t, tt.code, resp.Error.Code)
			if tt.field != "" {
				require.NotEmpty(t, resp.Error.Details)
				assert.Equal(t, tt.field, resp.Error.Details[0].Field)
			}
		})
	}
}

// --- Decisions ---

func TestHandleSubmitDecision(t *testing.T) {
	s := newTestServer(t)
	wf := s.createWorkflow(t)

	w := s.do(t, http.MethodPost, "/v1/workflows/"+wf.ID+"/decisions",
		decision("stk-ciso", "security_review", "approved"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	got := decode[model.ApprovalWorkflow](t, w)
	assert.Equal(t, 12.5, got.Progress)
	assert.Equal(t, model.StatusUnderReview, got.Status)

	rec, ok := got.Approval("stk-ciso", "security_review")
	require.True(t, ok)
	assert.Equal(t, "192.0.2.1:1234", rec.Origin, "origin defaults to the client address")
}

func TestHandleSubmitDecision_explicitOrigin(t *testing.T) {
	s := newTestServer(t)
	wf := s.createWorkflow(t)

	body := decision("stk-cfo", "budget_approval", "conditionally_approved")
	body["origin"] = "email"
	body["conditions"] = []string{"cap spend"}
	w := s.do(t, http.MethodPost, "/v1/workflows/"+wf.ID+"/decisions", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	got := decode[model.ApprovalWorkflow](t, w)
	rec, _ := got.Approval("stk-cfo", "budget_approval")
	assert.Equal(t, "email", rec.Origin)
	assert.Equal(t, []string{"cap spend"}, rec.Conditions)
}

func TestHandleSubmitDecision_errors(t *testing.T) {
	s := newTestServer(t)
	wf := s.createWorkflow(t)
	path := "/v1/workflows/" + wf.ID + "/decisions"

	first := s.do(t, http.MethodPost, path, decision("stk-ciso", "security_review", "approved"))
	require.Equal(t, http.StatusOK, first.Code)

	tests := []struct {
		name   string
		path   string
		body   map[string]any
		status int
		code   string
	}{
		{"duplicate", path, decision("stk-ciso", "security_review", "rejected"), 422, model.ErrInvalidTransition},
		{"non-terminal status", path, decision("stk-cto", "technical_architecture", "pending"), 422, model.ErrValidationError},
		{"missing fields", path, map[string]any{"status": "approved"}, 422, model.ErrValidationError},
		{"unknown workflow", "/v1/workflows/nope/decisions", decision("stk-cto", "technical_architecture", "approved"), 404, model.ErrNotFound},
		{"no record", path, decision("stk-cto", "security_review", "approved"), 422, model.ErrInvalidTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, tt.path, tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, decode[errorBody](t, w).Error.Code)
		})
	}
}

// --- Reviews and escalations ---

func TestHandleRequestReview(t *testing.T) {
	s := newTestServer(t)
	wf := s.createWorkflow(t)

	w := s.do(t, http.MethodPost, "/v1/workflows/"+wf.ID+"/reviews", map[string]any{
		"stakeholder_id": "stk-legal",
		"approval_type":  "legal_review",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	rec := decode[model.StakeholderApproval](t, w)
	assert.Equal(t, model.StatusUnderReview, rec.Status)
	assert.NotNil(t, rec.ReviewedAt)

	again := s.do(t, http.MethodPost, "/v1/workflows/"+wf.ID+"/reviews", map[string]any{
		"stakeholder_id": "stk-legal",
		"approval_type":  "legal_review",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, again.Code)
}

func TestHandleEscalate(t *testing.T) {
	s := newTestServer(t)
	wf := s.createWorkflow(t)
	before, _ := wf.Requirement("SEC_001")

	w := s.do(t, http.MethodPost, "/v1/workflows/"+wf.ID+"/escalations", map[string]any{
		"requirement_id": "SEC_001",
		"reason":         "vendor delay",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	got := decode[model.ApprovalWorkflow](t, w)
	after, _ := got.Requirement("SEC_001")
	assert.Equal(t, before.Deadline.Add(72*time.Hour), after.Deadline)
	require.Len(t, got.EscalationHistory, 1)

	missing := s.do(t, http.MethodPost, "/v1/workflows/"+wf.ID+"/escalations", map[string]any{
		"requirement_id": "NOPE_001",
	})
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

// --- Reads ---

func TestHandleListWorkflows(t *testing.T) {
	s := newTestServer(t)
	first := s.createWorkflow(t)
	s.clock.Advance(time.Minute)
	second := s.createWorkflow(t)
	s.do(t, http.MethodPost, "/v1/workflows/"+second.ID+"/decisions", decision("stk-ciso", "security_review", "approved"))

	w := s.do(t, http.MethodGet, "/v1/workflows", nil)
	require.Equal(t, http.StatusOK, w.Code)
	all := decode[listResponse[model.WorkflowSummary]](t, w)
	require.Len(t, all.Data, 2)
	assert.Equal(t, second.ID, all.Data[0].ID)
	assert.Equal(t, first.ID, all.Data[1].ID)

	w = s.do(t, http.MethodGet, "/v1/workflows?status=pending", nil)
	pending := decode[listResponse[model.WorkflowSummary]](t, w)
	require.Len(t, pending.Data, 1)
	assert.Equal(t, first.ID, pending.Data[0].ID)

	w = s.do(t, http.MethodGet, "/v1/workflows?limit=1&offset=1", nil)
	paged := decode[listResponse[model.WorkflowSummary]](t, w)
	require.Len(t, paged.Data, 1)
	assert.Equal(t, first.ID, paged.Data[0].ID)

	w = s.do(t, http.MethodGet, "/v1/workflows?status=sideways", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleWorkflowStatus(t *testing.T) {
	s := newTestServer(t)
	wf := s.createWorkflow(t)

	w := s.do(t, http.MethodGet, "/v1/workflows/"+wf.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[model.WorkflowStatusView](t, w)
	assert.Equal(t, wf.ID, view.WorkflowID)
	assert.Equal(t, 30, view.DaysToTarget)
	assert.Len(t, view.ApprovalSummary, 8)

	w = s.do(t, http.MethodGet, "/v1/workflows/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleDeadlinesAndRisks(t *testing.T) {
	s := newTestServer(t)
	wf := s.createWorkflow(t)
	s.clock.Advance(5*24*time.Hour + time.Hour)

	w := s.do(t, http.MethodGet, "/v1/workflows/"+wf.ID+"/deadlines", nil)
	require.Equal(t, http.StatusOK, w.Code)
	issues := decode[listResponse[model.DeadlineIssue]](t, w)
	kinds := map[string]string{}
	for _, issue := range issues.Data {
		kinds[issue.RequirementID] = issue.Kind
	}
	assert.Equal(t, model.DeadlineExpired, kinds["TECH_001"])
	assert.Equal(t, model.DeadlineApproaching, kinds["SEC_001"])

	w = s.do(t, http.MethodGet, "/v1/workflows/"+wf.ID+"/risks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	risks := decode[listResponse[model.RiskIndicator]](t, w)
	assert.NotEmpty(t, risks.Data)
}

func TestHandleNextActions(t *testing.T) {
	s := newTestServer(t)
	wf := s.createWorkflow(t)

	w := s.do(t, http.MethodGet, "/v1/workflows/"+wf.ID+"/next-actions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	actions := decode[listResponse[model.NextAction]](t, w)

	ids := make([]string, 0, len(actions.Data))
	for _, a := range actions.Data {
		ids = append(ids, a.RequirementID)
	}
	assert.Equal(t, []string{"TECH_001", "FIN_001", "SEC_001", "BIZ_001", "COMP_001", "LEGAL_001"}, ids)
}

func TestHandleDashboardAndReport(t *testing.T) {
	s := newTestServer(t)
	wf := s.createWorkflow(t)

	w := s.do(t, http.MethodGet, "/v1/workflows/"+wf.ID+"/dashboard", nil)
	require.Equal(t, http.StatusOK, w.Code)
	d := decode[model.Dashboard](t, w)
	assert.Len(t, d.StakeholderStatus, 10)
	assert.Len(t, d.Timeline, 8)

	w = s.do(t, http.MethodGet, "/v1/workflows/"+wf.ID+"/report", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))

	w = s.do(t, http.MethodGet, "/v1/workflows/"+wf.ID+"/report?format=yaml", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/yaml", w.Header().Get("Content-Type"))
	var report map[string]any
	require.NoError(t, yaml.Unmarshal(w.Body.Bytes(), &report))
	assert.Contains(t, report, "timeline")

	w = s.do(t, http.MethodGet, "/v1/workflows/"+wf.ID+"/report?format=pdf", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleCatalogAndDirectory(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/v1/requirements", nil)
	require.Equal(t, http.StatusOK, w.Code)
	reqs := decode[listResponse[model.ApprovalRequirement]](t, w)
	assert.Len(t, reqs.Data, 8)

	w = s.do(t, http.MethodGet, "/v1/stakeholders", nil)
	require.Equal(t, http.StatusOK, w.Code)
	profiles := decode[listResponse[model.StakeholderProfile]](t, w)
	assert.Len(t, profiles.Data, 10)
}
