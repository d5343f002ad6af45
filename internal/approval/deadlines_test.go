package approval

import (
	"strings"
	"testing"
	"time"

	"github.com/pitabwire/signoff/model"
)

var clockEpoch = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func TestDaysUntil(t *testing.T) {
	tests := []struct {
		name   string
		offset time.Duration
		want   int
	}{
		{"exactly now", 0, 0},
		{"one hour ahead", time.Hour, 0},
		{"one day ahead", day, 1},
		{"just under two days", 2*day - time.Second, 1},
		{"one hour behind", -time.Hour, -1},
		{"exactly one day behind", -day, -1},
		{"just over one day behind", -day - time.Second, -2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := daysUntil(clockEpoch.Add(tt.offset), clockEpoch); got != tt.want {
				t.Errorf("daysUntil = %d, want %d", got, tt.want)
			}
		})
	}
}

func deadlineWorkflow(offsets ...time.Duration) model.ApprovalWorkflow {
	wf := model.ApprovalWorkflow{TargetDate: clockEpoch.Add(60 * day)}
	for i, off := range offsets {
		id := string(rune('A'+i)) + "_001"
		wf.Requirements = append(wf.Requirements, model.ApprovalRequirement{
			ID:               id,
			ApprovalType:     "type_" + id,
			MinimumApprovals: 1,
			Description:      "requirement " + id,
			Deadline:         clockEpoch.Add(off),
			Priority:         model.PriorityHigh,
		})
	}
	recompute(&wf)
	return wf
}

func TestCheckDeadlines_classification(t *testing.T) {
	wf := deadlineWorkflow(
		-3*day,             // A expired
		-time.Hour,         // B expired by less than a day
		time.Hour,          // C due today
		2*day,              // D edge of window
		3*day,              // E outside window
		2*day+23*time.Hour, // F still two whole days
	)

	issues := checkDeadlines(&wf, clockEpoch, DefaultPolicy())

	want := map[string]string{
		"A_001": model.DeadlineExpired,
		"B_001": model.DeadlineExpired,
		"C_001": model.DeadlineApproaching,
		"D_001": model.DeadlineApproaching,
		"F_001": model.DeadlineApproaching,
	}
	if len(issues) != len(want) {
		t.Fatalf("issues = %+v, want %d", issues, len(want))
	}
	for _, issue := range issues {
		if issue.Kind != want[issue.RequirementID] {
			t.Errorf("%s kind = %s, want %s", issue.RequirementID, issue.Kind, want[issue.RequirementID])
		}
	}
	if issues[0].RequirementID != "A_001" || issues[0].DaysOverdue != 3 {
		t.Errorf("first issue = %+v, want A_001 three days overdue", issues[0])
	}
	if issues[1].DaysOverdue != 1 {
		t.Errorf("B_001 DaysOverdue = %d, want 1", issues[1].DaysOverdue)
	}
}

func TestCheckDeadlines_skipsCompleted(t *testing.T) {
	wf := deadlineWorkflow(-day)
	wf.Approvals = []model.StakeholderApproval{
		{StakeholderID: "stk-1", ApprovalType: "type_A_001", Status: model.StatusApproved},
	}
	recompute(&wf)

	issues := checkDeadlines(&wf, clockEpoch, DefaultPolicy())
	if issues == nil || len(issues) != 0 {
		t.Errorf("issues = %v, want empty non-nil", issues)
	}
}

func TestCheckDeadlines_zeroWindow(t *testing.T) {
	wf := deadlineWorkflow(time.Hour, day)
	p := DefaultPolicy()
	p.ApproachingDays = 0

	issues := checkDeadlines(&wf, clockEpoch, p)
	if len(issues) != 1 || issues[0].RequirementID != "A_001" {
		t.Errorf("issues = %+v, want only A_001", issues)
	}
}

func TestNextActions_dependenciesAndOrder(t *testing.T) {
	wf := model.ApprovalWorkflow{
		Requirements: []model.ApprovalRequirement{
			{ID: "SEC_001", ApprovalType: "security_review", MinimumApprovals: 1, Deadline: clockEpoch.Add(7 * day)},
			{ID: "TECH_001", ApprovalType: "technical_architecture", MinimumApprovals: 1, Deadline: clockEpoch.Add(5 * day)},
			{ID: "OPS_001", ApprovalType: "operational_readiness", MinimumApprovals: 1, Deadline: clockEpoch.Add(3 * day),
				Dependencies: []string{"TECH_001"}},
			{ID: "FIN_001", ApprovalType: "budget_approval", MinimumApprovals: 1, Deadline: clockEpoch.Add(5 * day)},
		},
		Approvals: []model.StakeholderApproval{
			{StakeholderID: "stk-ciso", ApprovalType: "security_review", Status: model.StatusPending},
			{StakeholderID: "stk-cto", ApprovalType: "technical_architecture", Status: model.StatusPending},
			{StakeholderID: "stk-ops", ApprovalType: "operational_readiness", Status: model.StatusPending},
			{StakeholderID: "stk-sre", ApprovalType: "operational_readiness", Status: model.StatusUnderReview},
			{StakeholderID: "stk-cfo", ApprovalType: "budget_approval", Status: model.StatusPending},
		},
	}
	recompute(&wf)

	actions := nextActions(&wf, clockEpoch)
	got := ids(actions)
	if strings.Join(got, ",") != "TECH_001,FIN_001,SEC_001" {
		t.Errorf("before TECH approval = %v", got)
	}

	setStatus(&wf, "stk-cto", "technical_architecture", model.StatusApproved)
	recompute(&wf)

	actions = nextActions(&wf, clockEpoch)
	got = ids(actions)
	if strings.Join(got, ",") != "OPS_001,FIN_001,SEC_001" {
		t.Errorf("after TECH approval = %v", got)
	}
	if strings.Join(actions[0].AwaitingDecisionBy, ",") != "stk-ops,stk-sre" {
		t.Errorf("OPS_001 awaiting = %v", actions[0].AwaitingDecisionBy)
	}
	if actions[0].DaysRemaining != 3 {
		t.Errorf("OPS_001 DaysRemaining = %d, want 3", actions[0].DaysRemaining)
	}
}

func TestNextActions_rejectedDependencyBlocks(t *testing.T) {
	wf := model.ApprovalWorkflow{
		Requirements: []model.ApprovalRequirement{
			{ID: "TECH_001", ApprovalType: "technical_architecture", MinimumApprovals: 1},
			{ID: "OPS_001", ApprovalType: "operational_readiness", MinimumApprovals: 1, Dependencies: []string{"TECH_001"}},
		},
		Approvals: []model.StakeholderApproval{
			{StakeholderID: "stk-cto", ApprovalType: "technical_architecture", Status: model.StatusRejected},
			{StakeholderID: "stk-ops", ApprovalType: "operational_readiness", Status: model.StatusPending},
		},
	}
	recompute(&wf)

	if actions := nextActions(&wf, clockEpoch); len(actions) != 0 {
		t.Errorf("actions = %v, want none", ids(actions))
	}
}

func TestRiskIndicators(t *testing.T) {
	wf := deadlineWorkflow(-2*day, day, 10*day)
	wf.Approvals = []model.StakeholderApproval{
		{StakeholderID: "stk-1", ApprovalType: "type_C_001", Status: model.StatusRejected},
	}
	wf.TargetDate = clockEpoch.Add(7 * day)
	recompute(&wf)

	risks := riskIndicators(&wf, clockEpoch, DefaultPolicy())

	kinds := make(map[string]model.RiskIndicator)
	for _, r := range risks {
		kinds[r.Kind] = r
	}
	if len(risks) != 4 {
		t.Fatalf("risks = %+v, want 4", risks)
	}
	if r := kinds[model.RiskDeadlineExpired]; r.Severity != model.SeverityHigh ||
		r.Description != "Approval deadline expired 2 day(s) ago: requirement A_001" {
		t.Errorf("expired risk = %+v", r)
	}
	if r := kinds[model.RiskDeadlineApproaching]; r.Severity != model.SeverityMedium ||
		r.Description != "Approval deadline in 1 day(s): requirement B_001" {
		t.Errorf("approaching risk = %+v", r)
	}
	if r := kinds[model.RiskRejections]; r.Severity != model.SeverityCritical ||
		r.Description != "1 approval requirement(s) rejected" {
		t.Errorf("rejection risk = %+v", r)
	}
	if r := kinds[model.RiskGoLive]; r.Severity != model.SeverityHigh ||
		r.Description != "Go-live at risk: 7 day(s) to target with 0.0% of approvals complete" {
		t.Errorf("go-live risk = %+v", r)
	}
}

func TestRiskIndicators_goLiveThresholds(t *testing.T) {
	tests := []struct {
		name     string
		target   time.Duration
		progress float64
		want     bool
	}{
		{"far target", 30 * day, 0, false},
		{"boundary day", 14 * day, 0, false},
		{"close and behind", 13 * day, 79.9, true},
		{"close but on track", 13 * day, 80, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wf := model.ApprovalWorkflow{TargetDate: clockEpoch.Add(tt.target), Progress: tt.progress}
			got := false
			for _, r := range riskIndicators(&wf, clockEpoch, DefaultPolicy()) {
				if r.Kind == model.RiskGoLive {
					got = true
				}
			}
			if got != tt.want {
				t.Errorf("go-live risk = %v, want %v", got, tt.want)
			}
		})
	}
}

func ids(actions []model.NextAction) []string {
	out := make([]string, 0, len(actions))
	for _, a := range actions {
		out = append(out, a.RequirementID)
	}
	return out
}
