package approval

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pitabwire/signoff/internal/directory"
	"github.com/pitabwire/signoff/model"
)

// Report formats accepted by ExportReport.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

func statusView(wf *model.ApprovalWorkflow, now time.Time) model.WorkflowStatusView {
	return model.WorkflowStatusView{
		WorkflowID:            wf.ID,
		ProjectName:           wf.ProjectName,
		Description:           wf.Description,
		Status:                wf.Status,
		Progress:              wf.Progress,
		CreatedAt:             wf.CreatedAt,
		TargetDate:            wf.TargetDate,
		DaysToTarget:          daysUntil(wf.TargetDate, now),
		TotalRequirements:     len(wf.Requirements),
		CompletedRequirements: slices.Clone(wf.CompletedRequirements),
		PendingRequirements:   slices.Clone(wf.PendingRequirements),
		RejectedRequirements:  slices.Clone(wf.RejectedRequirements),
		ApprovalSummary:       approvalSummary(wf),
		Escalations:           len(wf.EscalationHistory),
	}
}

func stakeholderStatus(wf *model.ApprovalWorkflow, dir *directory.Directory) map[string]model.StakeholderStatus {
	out := make(map[string]model.StakeholderStatus)
	for _, a := range wf.Approvals {
		s, seen := out[a.StakeholderID]
		if !seen {
			s = model.StakeholderStatus{Name: a.StakeholderID, Role: a.StakeholderRole}
			if p, ok := dir.ByID(a.StakeholderID); ok {
				s.Name = p.Name
			}
		}
		if a.Status.IsTerminal() {
			s.CompletedApprovals++
		} else {
			s.PendingApprovals++
		}
		if last := a.LastActivity(); last != nil && (s.LastActivity == nil || last.After(*s.LastActivity)) {
			t := *last
			s.LastActivity = &t
		}
		out[a.StakeholderID] = s
	}
	return out
}

func timeline(wf *model.ApprovalWorkflow) []model.TimelineEntry {
	entries := make([]model.TimelineEntry, 0, len(wf.Requirements))
	for _, req := range wf.Requirements {
		entries = append(entries, model.TimelineEntry{
			RequirementID: req.ID,
			Description:   req.Description,
			Deadline:      req.Deadline,
			Status:        partitionOf(wf, req.ID),
			Priority:      req.Priority,
			Dependencies:  slices.Clone(req.Dependencies),
		})
	}
	slices.SortStableFunc(entries, func(a, b model.TimelineEntry) int {
		return a.Deadline.Compare(b.Deadline)
	})
	return entries
}

func partitionOf(wf *model.ApprovalWorkflow, requirementID string) string {
	switch {
	case wf.IsCompleted(requirementID):
		return model.RequirementCompleted
	case slices.Contains(wf.RejectedRequirements, requirementID):
		return model.RequirementRejected
	default:
		return model.RequirementPending
	}
}

func dashboard(wf *model.ApprovalWorkflow, dir *directory.Directory, now time.Time, p Policy) model.Dashboard {
	return model.Dashboard{
		Overview:          statusView(wf, now),
		StakeholderStatus: stakeholderStatus(wf, dir),
		Timeline:          timeline(wf),
		NextActions:       nextActions(wf, now),
		RiskIndicators:    riskIndicators(wf, now, p),
	}
}

// encodeReport serialises a dashboard. An empty format selects JSON.
func encodeReport(d model.Dashboard, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "", FormatJSON:
		data, err := json.MarshalIndent(d, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode report: %w", err)
		}
		return data, nil
	case FormatYAML, "yml":
		data, err := yaml.Marshal(d)
		if err != nil {
			return nil, fmt.Errorf("encode report: %w", err)
		}
		return data, nil
	default:
		return nil, model.NewBadRequestError(
			fmt.Sprintf("unsupported report format %q (supported: json, yaml)", format),
		)
	}
}
