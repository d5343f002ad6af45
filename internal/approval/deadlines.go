package approval

import (
	"fmt"
	"slices"
	"time"

	"github.com/pitabwire/signoff/model"
)

const day = 24 * time.Hour

// daysUntil returns floor((deadline - now) / 24h). A deadline one hour in the
// past is -1 days away, not 0.
func daysUntil(deadline, now time.Time) int {
	d := deadline.Sub(now)
	days := d / day
	if d < 0 && d%day != 0 {
		days--
	}
	return int(days)
}

// checkDeadlines classifies every non-completed requirement, in catalog order.
func checkDeadlines(wf *model.ApprovalWorkflow, now time.Time, p Policy) []model.DeadlineIssue {
	issues := []model.DeadlineIssue{}
	for _, req := range wf.Requirements {
		if wf.IsCompleted(req.ID) {
			continue
		}
		days := daysUntil(req.Deadline, now)
		issue := model.DeadlineIssue{
			RequirementID: req.ID,
			Description:   req.Description,
			Deadline:      req.Deadline,
			Priority:      req.Priority,
			DaysRemaining: days,
		}
		switch {
		case days < 0:
			issue.Kind = model.DeadlineExpired
			issue.DaysOverdue = -days
		case days <= p.ApproachingDays:
			issue.Kind = model.DeadlineApproaching
		default:
			continue
		}
		issues = append(issues, issue)
	}
	return issues
}

// nextActions returns the pending requirements whose dependencies are all
// completed, ordered by deadline. Equal deadlines keep catalog order.
func nextActions(wf *model.ApprovalWorkflow, now time.Time) []model.NextAction {
	actions := []model.NextAction{}
	for _, id := range wf.PendingRequirements {
		req, ok := wf.Requirement(id)
		if !ok {
			continue
		}
		ready := true
		for _, dep := range req.Dependencies {
			if !wf.IsCompleted(dep) {
				ready = false
				break
			}
		}
		if !ready {
			continue
		}
		actions = append(actions, model.NextAction{
			RequirementID:      req.ID,
			ApprovalType:       req.ApprovalType,
			Description:        req.Description,
			Deadline:           req.Deadline,
			Priority:           req.Priority,
			DaysRemaining:      daysUntil(req.Deadline, now),
			AwaitingDecisionBy: undecided(wf, req.ApprovalType),
		})
	}
	slices.SortStableFunc(actions, func(a, b model.NextAction) int {
		return a.Deadline.Compare(b.Deadline)
	})
	return actions
}

// riskIndicators derives deadline, rejection and go-live risks.
func riskIndicators(wf *model.ApprovalWorkflow, now time.Time, p Policy) []model.RiskIndicator {
	risks := []model.RiskIndicator{}
	for _, issue := range checkDeadlines(wf, now, p) {
		switch issue.Kind {
		case model.DeadlineExpired:
			risks = append(risks, model.RiskIndicator{
				Kind:          model.RiskDeadlineExpired,
				Severity:      model.SeverityHigh,
				Description:   fmt.Sprintf("Approval deadline expired %d day(s) ago: %s", issue.DaysOverdue, issue.Description),
				RequirementID: issue.RequirementID,
			})
		case model.DeadlineApproaching:
			risks = append(risks, model.RiskIndicator{
				Kind:          model.RiskDeadlineApproaching,
				Severity:      model.SeverityMedium,
				Description:   fmt.Sprintf("Approval deadline in %d day(s): %s", issue.DaysRemaining, issue.Description),
				RequirementID: issue.RequirementID,
			})
		}
	}

	if n := len(wf.RejectedRequirements); n > 0 {
		risks = append(risks, model.RiskIndicator{
			Kind:        model.RiskRejections,
			Severity:    model.SeverityCritical,
			Description: fmt.Sprintf("%d approval requirement(s) rejected", n),
		})
	}

	daysToTarget := daysUntil(wf.TargetDate, now)
	if daysToTarget < p.GoLiveRiskDays && wf.Progress < p.GoLiveRiskProgress {
		risks = append(risks, model.RiskIndicator{
			Kind:     model.RiskGoLive,
			Severity: model.SeverityHigh,
			Description: fmt.Sprintf("Go-live at risk: %d day(s) to target with %.1f%% of approvals complete",
				daysToTarget, wf.Progress),
		})
	}
	return risks
}

// undecided lists the stakeholders still holding a non-terminal record for an
// approval type, in record order.
func undecided(wf *model.ApprovalWorkflow, approvalType string) []string {
	out := []string{}
	for _, a := range wf.Approvals {
		if a.ApprovalType == approvalType && !a.Status.IsTerminal() {
			out = append(out, a.StakeholderID)
		}
	}
	return out
}
