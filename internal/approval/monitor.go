package approval

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pitabwire/signoff/internal/observability"
	"github.com/pitabwire/signoff/model"
)

// SweepResult totals one deadline sweep over the open workflows.
type SweepResult struct {
	Workflows   int
	Expired     int
	Approaching int
}

// SweepDeadlines checks the deadlines of every open workflow, logs the issues
// found and publishes the totals as gauges. It never mutates a workflow.
func (e *Engine) SweepDeadlines(ctx context.Context) (res SweepResult, err error) {
	ctx, span := observability.StartSpan(ctx, "approval.sweep_deadlines")
	defer func() { observability.EndSpanWithError(span, err) }()

	now := e.clock.Now()
	for _, status := range []model.ApprovalStatus{model.StatusPending, model.StatusUnderReview} {
		workflows, err := e.store.List(ctx, model.WorkflowFilters{Status: status})
		if err != nil {
			return SweepResult{}, err
		}
		for i := range workflows {
			wf := &workflows[i]
			res.Workflows++
			for _, issue := range checkDeadlines(wf, now, e.policy) {
				switch issue.Kind {
				case model.DeadlineExpired:
					res.Expired++
				case model.DeadlineApproaching:
					res.Approaching++
				}
				e.logger.Info("approval deadline issue",
					zap.String("workflow_id", wf.ID),
					zap.String("project_name", wf.ProjectName),
					zap.String("requirement_id", issue.RequirementID),
					zap.String("kind", issue.Kind),
					zap.Int("days_remaining", issue.DaysRemaining),
				)
			}
		}
	}

	e.metrics.SetDeadlineIssues(model.DeadlineExpired, float64(res.Expired))
	e.metrics.SetDeadlineIssues(model.DeadlineApproaching, float64(res.Approaching))
	return res, nil
}

// RunDeadlineMonitor sweeps deadlines every interval until ctx is done.
func (e *Engine) RunDeadlineMonitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := e.SweepDeadlines(ctx)
			if err != nil {
				e.logger.Warn("deadline sweep failed", zap.Error(err))
				continue
			}
			e.logger.Debug("deadline sweep complete",
				zap.Int("workflows", res.Workflows),
				zap.Int("expired", res.Expired),
				zap.Int("approaching", res.Approaching),
			)
		}
	}
}
