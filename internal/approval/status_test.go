package approval

import (
	"testing"

	"github.com/pitabwire/signoff/model"
)

func twoRequirementWorkflow() model.ApprovalWorkflow {
	return model.ApprovalWorkflow{
		ID: "wf-1",
		Requirements: []model.ApprovalRequirement{
			{ID: "SEC_001", ApprovalType: "security_review", RequiredRoles: []string{"ciso"}, MinimumApprovals: 1},
			{ID: "COMP_001", ApprovalType: "regulatory_compliance", RequiredRoles: []string{"compliance_officer", "legal_counsel"}, MinimumApprovals: 2},
		},
		Approvals: []model.StakeholderApproval{
			{StakeholderID: "stk-ciso", ApprovalType: "security_review", Status: model.StatusPending},
			{StakeholderID: "stk-compliance", ApprovalType: "regulatory_compliance", Status: model.StatusPending},
			{StakeholderID: "stk-legal", ApprovalType: "regulatory_compliance", Status: model.StatusPending},
		},
	}
}

func setStatus(wf *model.ApprovalWorkflow, stakeholderID, approvalType string, s model.ApprovalStatus) {
	a, _ := wf.Approval(stakeholderID, approvalType)
	a.Status = s
}

func TestRecompute(t *testing.T) {
	tests := []struct {
		name      string
		decisions map[string]model.ApprovalStatus
		status    model.ApprovalStatus
		progress  float64
		completed []string
		rejected  []string
	}{
		{
			name:     "nothing decided",
			status:   model.StatusPending,
			progress: 0,
		},
		{
			name:      "one of two complete",
			decisions: map[string]model.ApprovalStatus{"stk-ciso": model.StatusApproved},
			status:    model.StatusUnderReview,
			progress:  50,
			completed: []string{"SEC_001"},
		},
		{
			name: "threshold not met",
			decisions: map[string]model.ApprovalStatus{
				"stk-compliance": model.StatusApproved,
			},
			status:   model.StatusPending,
			progress: 0,
		},
		{
			name: "all complete",
			decisions: map[string]model.ApprovalStatus{
				"stk-ciso":       model.StatusApproved,
				"stk-compliance": model.StatusApproved,
				"stk-legal":      model.StatusApproved,
			},
			status:    model.StatusApproved,
			progress:  100,
			completed: []string{"SEC_001", "COMP_001"},
		},
		{
			name: "rejection dominates",
			decisions: map[string]model.ApprovalStatus{
				"stk-ciso":  model.StatusApproved,
				"stk-legal": model.StatusRejected,
			},
			status:    model.StatusRejected,
			progress:  50,
			completed: []string{"SEC_001"},
			rejected:  []string{"COMP_001"},
		},
		{
			name: "conditional approval does not count",
			decisions: map[string]model.ApprovalStatus{
				"stk-ciso": model.StatusConditionallyApproved,
			},
			status:   model.StatusPending,
			progress: 0,
		},
	}

	types := map[string]string{
		"stk-ciso":       "security_review",
		"stk-compliance": "regulatory_compliance",
		"stk-legal":      "regulatory_compliance",
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wf := twoRequirementWorkflow()
			for id, s := range tt.decisions {
				setStatus(&wf, id, types[id], s)
			}
			recompute(&wf)

			if wf.Status != tt.status {
				t.Errorf("Status = %s, want %s", wf.Status, tt.status)
			}
			if wf.Progress != tt.progress {
				t.Errorf("Progress = %v, want %v", wf.Progress, tt.progress)
			}
			if len(wf.CompletedRequirements) != len(tt.completed) {
				t.Errorf("Completed = %v, want %v", wf.CompletedRequirements, tt.completed)
			}
			if len(wf.RejectedRequirements) != len(tt.rejected) {
				t.Errorf("Rejected = %v, want %v", wf.RejectedRequirements, tt.rejected)
			}
			total := len(wf.CompletedRequirements) + len(wf.PendingRequirements) + len(wf.RejectedRequirements)
			if total != len(wf.Requirements) {
				t.Errorf("partitions cover %d requirements, want %d", total, len(wf.Requirements))
			}
		})
	}
}

func TestSummarize_completedBeatsRejected(t *testing.T) {
	wf := model.ApprovalWorkflow{
		Requirements: []model.ApprovalRequirement{
			{ID: "TECH_001", ApprovalType: "technical_architecture", MinimumApprovals: 1},
		},
		Approvals: []model.StakeholderApproval{
			{StakeholderID: "stk-cto", ApprovalType: "technical_architecture", Status: model.StatusApproved},
			{StakeholderID: "stk-architect", ApprovalType: "technical_architecture", Status: model.StatusRejected},
		},
	}

	s := summarize(&wf, wf.Requirements[0])
	if s.Status != model.RequirementCompleted {
		t.Errorf("Status = %s, want completed", s.Status)
	}
	if s.Approved != 1 || s.Rejected != 1 || s.Total != 2 {
		t.Errorf("tally = %+v", s)
	}
}

func TestSummarize_underReviewCountsAsPending(t *testing.T) {
	wf := twoRequirementWorkflow()
	setStatus(&wf, "stk-legal", "regulatory_compliance", model.StatusUnderReview)

	s := summarize(&wf, wf.Requirements[1])
	if s.Pending != 2 {
		t.Errorf("Pending = %d, want 2", s.Pending)
	}
}

func TestRecompute_orderIndependent(t *testing.T) {
	decisions := []struct {
		id, typ string
		status  model.ApprovalStatus
	}{
		{"stk-ciso", "security_review", model.StatusApproved},
		{"stk-compliance", "regulatory_compliance", model.StatusApproved},
		{"stk-legal", "regulatory_compliance", model.StatusRejected},
	}

	forward := twoRequirementWorkflow()
	for _, d := range decisions {
		setStatus(&forward, d.id, d.typ, d.status)
		recompute(&forward)
	}

	backward := twoRequirementWorkflow()
	for i := len(decisions) - 1; i >= 0; i-- {
		d := decisions[i]
		setStatus(&backward, d.id, d.typ, d.status)
		recompute(&backward)
	}

	if forward.Status != backward.Status || forward.Progress != backward.Progress {
		t.Errorf("forward = %s/%v, backward = %s/%v",
			forward.Status, forward.Progress, backward.Status, backward.Progress)
	}
}

func TestRecompute_emptyCatalog(t *testing.T) {
	wf := model.ApprovalWorkflow{}
	recompute(&wf)
	if wf.Status != model.StatusPending || wf.Progress != 0 {
		t.Errorf("empty workflow = %s/%v, want pending/0", wf.Status, wf.Progress)
	}
}
