package transport

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pitabwire/signoff/internal/approval"
	"github.com/pitabwire/signoff/internal/openapi"
	"github.com/pitabwire/signoff/model"
)

const maxBodyBytes = 1 << 20

type createWorkflowRequest struct {
	ProjectName string `json:"project_name"`
	Description string `json:"description"`
	TargetDate  string `json:"target_date"`
}

type decisionRequest struct {
	StakeholderID string               `json:"stakeholder_id"`
	ApprovalType  string               `json:"approval_type"`
	Status        model.ApprovalStatus `json:"status"`
	Comments      string               `json:"comments"`
	Conditions    []string             `json:"conditions"`
	Signature     string               `json:"signature"`
	Origin        string               `json:"origin"`
}

type reviewRequest struct {
	StakeholderID string `json:"stakeholder_id"`
	ApprovalType  string `json:"approval_type"`
}

type escalationRequest struct {
	RequirementID string `json:"requirement_id"`
	Reason        string `json:"reason"`
}

func handleCreateWorkflow(engine *approval.Engine, contract *openapi.Contract) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createWorkflowRequest
		if err := decodeBody(r, contract, "createWorkflow", &body); err != nil {
			respondError(w, r, err)
			return
		}

		target, err := parseDate(body.TargetDate)
		if err != nil {
			respondError(w, r, model.NewValidationError([]model.FieldError{{
				Field:   "target_date",
				Code:    "INVALID",
				Message: err.Error(),
			}}))
			return
		}

		wf, err := engine.CreateWorkflow(r.Context(), body.ProjectName, body.Description, target)
		if err != nil {
			respondError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusCreated, wf)
	}
}

func handleListWorkflows(engine *approval.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := model.ApprovalStatus(r.URL.Query().Get("status"))
		switch status {
		case "", model.StatusPending, model.StatusUnderReview, model.StatusApproved, model.StatusRejected:
		default:
			respondError(w, r, model.NewBadRequestError(fmt.Sprintf("unknown workflow status %q", status)))
			return
		}

		filters := model.WorkflowFilters{
			Status: status,
			Limit:  queryInt(r, "limit", 0),
			Offset: queryInt(r, "offset", 0),
		}
		summaries, err := engine.List(r.Context(), filters)
		if err != nil {
			respondError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{
			"data":   summaries,
			"limit":  filters.Limit,
			"offset": filters.Offset,
		})
	}
}

func handleWorkflowStatus(engine *approval.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := engine.Status(r.Context(), chi.URLParam(r, "workflowId"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, view)
	}
}

func handleSubmitDecision(engine *approval.Engine, contract *openapi.Contract) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body decisionRequest
		if err := decodeBody(r, contract, "submitDecision", &body); err != nil {
			respondError(w, r, err)
			return
		}

		origin := body.Origin
		if origin == "" {
			if rctx := model.RequestContextFrom(r.Context()); rctx != nil {
				origin = rctx.RemoteAddr
			}
		}

		wf, err := engine.SubmitDecision(r.Context(), chi.URLParam(r, "workflowId"),
			body.StakeholderID, body.ApprovalType, approval.Decision{
				Status:     body.Status,
				Comments:   body.Comments,
				Conditions: body.Conditions,
				Signature:  body.Signature,
				Origin:     origin,
			})
		if err != nil {
			respondError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, wf)
	}
}

func handleRequestReview(engine *approval.Engine, contract *openapi.Contract) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body reviewRequest
		if err := decodeBody(r, contract, "requestReview", &body); err != nil {
			respondError(w, r, err)
			return
		}

		rec, err := engine.RequestReview(r.Context(), chi.URLParam(r, "workflowId"), body.StakeholderID, body.ApprovalType)
		if err != nil {
			respondError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, rec)
	}
}

func handleEscalate(engine *approval.Engine, contract *openapi.Contract) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body escalationRequest
		if err := decodeBody(r, contract, "escalateRequirement", &body); err != nil {
			respondError(w, r, err)
			return
		}

		wf, err := engine.Escalate(r.Context(), chi.URLParam(r, "workflowId"), body.RequirementID, body.Reason)
		if err != nil {
			respondError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, wf)
	}
}

// decodeBody reads a JSON object body, validates it against the contract
// operation and decodes it into dst.
func decodeBody(r *http.Request, contract *openapi.Contract, operationID string, dst any) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return model.NewBadRequestError("failed to read request body")
	}
	if len(data) > maxBodyBytes {
		return model.NewBadRequestError("request body too large")
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return model.NewBadRequestError("invalid JSON body")
	}
	if contract != nil {
		if errs := contract.ValidateBody(operationID, raw); len(errs) > 0 {
			return model.NewValidationError(errs)
		}
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return model.NewBadRequestError("invalid JSON body")
	}
	return nil
}

// parseDate accepts an RFC 3339 timestamp or a bare calendar date, which is
// taken as midnight UTC.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("target_date %q is not an RFC 3339 timestamp or YYYY-MM-DD date", s)
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
