package approval

import (
	"github.com/pitabwire/signoff/model"
)

// summarize tallies the decision records of one requirement and classifies
// it. Completion is checked before rejection: a requirement that reached its
// threshold stays completed even with rejections on record.
func summarize(wf *model.ApprovalWorkflow, req model.ApprovalRequirement) model.RequirementSummary {
	s := model.RequirementSummary{
		RequirementID:    req.ID,
		ApprovalType:     req.ApprovalType,
		MinimumApprovals: req.MinimumApprovals,
	}
	for _, a := range wf.Approvals {
		if a.ApprovalType != req.ApprovalType {
			continue
		}
		s.Total++
		switch a.Status {
		case model.StatusApproved:
			s.Approved++
		case model.StatusRejected:
			s.Rejected++
		case model.StatusPending, model.StatusUnderReview:
			s.Pending++
		}
	}

	switch {
	case s.Approved >= req.MinimumApprovals:
		s.Status = model.RequirementCompleted
	case s.Rejected > 0:
		s.Status = model.RequirementRejected
	default:
		s.Status = model.RequirementPending
	}
	return s
}

// recompute rebuilds the requirement partitions, progress and overall status
// from the decision records. It is a full rescan, so the result depends only
// on the final record set and never on submission order.
func recompute(wf *model.ApprovalWorkflow) {
	completed := make([]string, 0, len(wf.Requirements))
	pending := make([]string, 0, len(wf.Requirements))
	rejected := make([]string, 0)

	for _, req := range wf.Requirements {
		switch summarize(wf, req).Status {
		case model.RequirementCompleted:
			completed = append(completed, req.ID)
		case model.RequirementRejected:
			rejected = append(rejected, req.ID)
		default:
			pending = append(pending, req.ID)
		}
	}

	wf.CompletedRequirements = completed
	wf.PendingRequirements = pending
	wf.RejectedRequirements = rejected

	total := len(wf.Requirements)
	if total > 0 {
		wf.Progress = float64(len(completed)) / float64(total) * 100
	} else {
		wf.Progress = 0
	}

	switch {
	case len(rejected) > 0:
		wf.Status = model.StatusRejected
	case total > 0 && len(completed) == total:
		wf.Status = model.StatusApproved
	case len(completed) > 0:
		wf.Status = model.StatusUnderReview
	default:
		wf.Status = model.StatusPending
	}
}

// approvalSummary returns the per-requirement tallies in catalog order.
func approvalSummary(wf *model.ApprovalWorkflow) []model.RequirementSummary {
	out := make([]model.RequirementSummary, 0, len(wf.Requirements))
	for _, req := range wf.Requirements {
		out = append(out, summarize(wf, req))
	}
	return out
}
