// Package approval runs multi-stakeholder approval workflows: it seeds
// decision records from the requirement catalog, records decisions, recomputes
// the aggregate status and derives deadline, risk and report projections.
package approval

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pitabwire/signoff/internal/catalog"
	"github.com/pitabwire/signoff/internal/directory"
	"github.com/pitabwire/signoff/internal/observability"
	"github.com/pitabwire/signoff/model"
)

const defaultNotifyTimeout = 10 * time.Second

// Notifier delivers a notification out of band. The engine never waits on it
// and never surfaces its errors.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, model.Notification) error { return nil }

// Decision is a stakeholder's verdict on a pending record.
type Decision struct {
	Status     model.ApprovalStatus
	Comments   string
	Conditions []string
	Signature  string
	Origin     string
}

// Engine manages the lifecycle of approval workflows.
type Engine struct {
	catalog   *catalog.Registry
	directory *directory.Directory
	store     WorkflowStore

	notifier        Notifier
	clock           Clock
	logger          *zap.Logger
	metrics         *observability.Metrics
	policy          Policy
	requireProfiles bool
	notifyTimeout   time.Duration

	locks    keyedMutex
	inflight sync.WaitGroup
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithNotifier sets the notification collaborator.
func WithNotifier(n Notifier) EngineOption {
	return func(e *Engine) { e.notifier = n }
}

// WithClock sets the clock used for timestamps and deadline math.
func WithClock(c Clock) EngineOption {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the fallback logger.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *observability.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithPolicy sets the deadline and risk policy.
func WithPolicy(p Policy) EngineOption {
	return func(e *Engine) { e.policy = p }
}

// WithRequireProfiles makes workflow creation fail with CONFIGURATION_ERROR
// when a required role has no directory profile.
func WithRequireProfiles(require bool) EngineOption {
	return func(e *Engine) { e.requireProfiles = require }
}

// WithNotifyTimeout bounds each notification delivery.
func WithNotifyTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.notifyTimeout = d
		}
	}
}

// NewEngine creates a new approval engine.
func NewEngine(cat *catalog.Registry, dir *directory.Directory, store WorkflowStore, opts ...EngineOption) *Engine {
	e := &Engine{
		catalog:       cat,
		directory:     dir,
		store:         store,
		notifier:      nopNotifier{},
		clock:         SystemClock(),
		logger:        zap.NewNop(),
		policy:        DefaultPolicy(),
		notifyTimeout: defaultNotifyTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the engine's deadline and risk policy.
func (e *Engine) Policy() Policy { return e.policy }

// CreateWorkflow instantiates a workflow over a private copy of the current
// catalog and seeds one pending record per (requirement, required role).
func (e *Engine) CreateWorkflow(
	ctx context.Context,
	projectName string,
	description string,
	targetDate time.Time,
) (wf model.ApprovalWorkflow, err error) {
	ctx, span := observability.StartSpan(ctx, "approval.create_workflow")
	defer func() { observability.EndSpanWithError(span, err) }()

	var fieldErrs []model.FieldError
	if strings.TrimSpace(projectName) == "" {
		fieldErrs = append(fieldErrs, model.FieldError{Field: "project_name", Code: "REQUIRED", Message: "project_name is required"})
	}
	if targetDate.IsZero() {
		fieldErrs = append(fieldErrs, model.FieldError{Field: "target_date", Code: "REQUIRED", Message: "target_date is required"})
	}
	if len(fieldErrs) > 0 {
		return model.ApprovalWorkflow{}, model.NewValidationError(fieldErrs)
	}

	logger := observability.RequestLogger(ctx, e.logger)
	now := e.clock.Now()
	requirements := e.catalog.Snapshot()

	wf = model.ApprovalWorkflow{
		ID:                uuid.New().String(),
		ProjectName:       projectName,
		Description:       description,
		CreatedAt:         now,
		UpdatedAt:         now,
		TargetDate:        targetDate,
		Status:            model.StatusPending,
		Requirements:      requirements,
		Approvals:         []model.StakeholderApproval{},
		EscalationHistory: []model.EscalationEntry{},
		Version:           1,
	}
	span.SetAttributes(observability.AttrWorkflowID.String(wf.ID))

	var unstaffed []string
	for _, req := range requirements {
		for _, role := range req.RequiredRoles {
			profile, ok := e.directory.ByRole(role)
			if !ok {
				unstaffed = append(unstaffed, req.ID+"/"+role)
				continue
			}
			if _, exists := wf.Approval(profile.ID, req.ApprovalType); exists {
				continue
			}
			wf.Approvals = append(wf.Approvals, model.StakeholderApproval{
				ID:              uuid.New().String(),
				StakeholderID:   profile.ID,
				StakeholderRole: role,
				ApprovalType:    req.ApprovalType,
				Status:          model.StatusPending,
			})
		}
	}

	if len(unstaffed) > 0 {
		if e.requireProfiles {
			return model.ApprovalWorkflow{}, model.NewConfigurationError(
				fmt.Sprintf("no stakeholder profile for required roles: %s", strings.Join(unstaffed, ", ")),
			)
		}
		logger.Warn("required roles have no stakeholder profile; their requirements cannot complete",
			zap.String("workflow_id", wf.ID),
			zap.Strings("roles", unstaffed),
		)
	}

	recompute(&wf)

	unlock := e.locks.Lock(wf.ID)
	defer unlock()

	if err := e.store.Create(ctx, wf); err != nil {
		return model.ApprovalWorkflow{}, err
	}

	e.metrics.RecordWorkflowCreated()
	logger.Info("approval workflow created",
		zap.String("workflow_id", wf.ID),
		zap.String("project_name", projectName),
		zap.Int("requirements", len(wf.Requirements)),
		zap.Int("decision_records", len(wf.Approvals)),
	)
	return wf, nil
}

// SubmitDecision records a terminal decision on the stakeholder's pending
// record for approvalType and recomputes the aggregate. A record can be
// decided once; later attempts fail with INVALID_TRANSITION.
func (e *Engine) SubmitDecision(
	ctx context.Context,
	workflowID string,
	stakeholderID string,
	approvalType string,
	d Decision,
) (wf model.ApprovalWorkflow, err error) {
	ctx, span := observability.StartSpan(ctx, "approval.submit_decision",
		observability.AttrWorkflowID.String(workflowID),
		observability.AttrStakeholderID.String(stakeholderID),
		observability.AttrApprovalType.String(approvalType),
		observability.AttrDecision.String(string(d.Status)),
	)
	defer func() { observability.EndSpanWithError(span, err) }()

	if !d.Status.IsTerminal() {
		return model.ApprovalWorkflow{}, model.NewInvalidTransitionError(
			fmt.Sprintf("decision %q is not a terminal status", d.Status),
		)
	}

	unlock := e.locks.Lock(workflowID)
	defer unlock()

	wf, err = e.store.Get(ctx, workflowID)
	if err != nil {
		return model.ApprovalWorkflow{}, err
	}

	rec, ok := wf.Approval(stakeholderID, approvalType)
	if !ok || rec.Status != model.StatusPending {
		return model.ApprovalWorkflow{}, model.NewInvalidTransitionError(
			fmt.Sprintf("no pending %s record for stakeholder %q", approvalType, stakeholderID),
		)
	}

	now := e.clock.Now()
	rec.Status = d.Status
	rec.SubmittedAt = &now
	rec.DecidedAt = &now
	rec.Comments = d.Comments
	rec.Conditions = append([]string(nil), d.Conditions...)
	rec.Signature = d.Signature
	rec.Origin = d.Origin

	previous := wf.Status
	recompute(&wf)
	wf.UpdatedAt = now

	if err := e.store.Update(ctx, wf); err != nil {
		return model.ApprovalWorkflow{}, err
	}
	wf.Version++

	e.metrics.RecordDecision(approvalType, string(d.Status))
	if wf.Status != previous {
		e.metrics.RecordStatusChange(string(wf.Status))
	}
	observability.RequestLogger(ctx, e.logger).Info("decision recorded",
		zap.String("workflow_id", workflowID),
		zap.String("stakeholder_id", stakeholderID),
		zap.String("approval_type", approvalType),
		zap.String("decision", string(d.Status)),
		zap.String("workflow_status", string(wf.Status)),
		zap.Float64("progress", wf.Progress),
	)
	return wf, nil
}

// RequestReview moves a pending record to under_review and notifies its
// stakeholder. The aggregate status is not recomputed.
func (e *Engine) RequestReview(
	ctx context.Context,
	workflowID string,
	stakeholderID string,
	approvalType string,
) (rec model.StakeholderApproval, err error) {
	ctx, span := observability.StartSpan(ctx, "approval.request_review",
		observability.AttrWorkflowID.String(workflowID),
		observability.AttrStakeholderID.String(stakeholderID),
		observability.AttrApprovalType.String(approvalType),
	)
	defer func() { observability.EndSpanWithError(span, err) }()

	unlock := e.locks.Lock(workflowID)
	defer unlock()

	wf, err := e.store.Get(ctx, workflowID)
	if err != nil {
		return model.StakeholderApproval{}, err
	}

	r, ok := wf.Approval(stakeholderID, approvalType)
	if !ok || r.Status != model.StatusPending {
		return model.StakeholderApproval{}, model.NewInvalidTransitionError(
			fmt.Sprintf("no pending %s record for stakeholder %q", approvalType, stakeholderID),
		)
	}

	now := e.clock.Now()
	r.Status = model.StatusUnderReview
	r.ReviewedAt = &now
	wf.UpdatedAt = now

	if err := e.store.Update(ctx, wf); err != nil {
		return model.StakeholderApproval{}, err
	}

	rec = r.Clone()
	e.metrics.RecordReviewRequested()
	e.dispatch(ctx, model.Notification{
		Kind:        model.NotificationReviewRequested,
		WorkflowID:  wf.ID,
		ProjectName: wf.ProjectName,
		Recipient:   e.profileFor(stakeholderID, r.StakeholderRole),
		Approval:    &rec,
		CreatedAt:   now,
	})
	return rec, nil
}

// Escalate logs an escalation for a requirement and extends its deadline by
// the grace window. Repeated escalations compound. Decision records and the
// aggregate status are left untouched.
func (e *Engine) Escalate(
	ctx context.Context,
	workflowID string,
	requirementID string,
	reason string,
) (wf model.ApprovalWorkflow, err error) {
	ctx, span := observability.StartSpan(ctx, "approval.escalate",
		observability.AttrWorkflowID.String(workflowID),
		observability.AttrRequirementID.String(requirementID),
	)
	defer func() { observability.EndSpanWithError(span, err) }()

	unlock := e.locks.Lock(workflowID)
	defer unlock()

	wf, err = e.store.Get(ctx, workflowID)
	if err != nil {
		return model.ApprovalWorkflow{}, err
	}

	req, ok := wf.Requirement(requirementID)
	if !ok {
		return model.ApprovalWorkflow{}, model.NewNotFoundError(
			fmt.Sprintf("requirement %q not found in workflow %q", requirementID, workflowID),
		)
	}

	now := e.clock.Now()
	wf.EscalationHistory = append(wf.EscalationHistory, model.EscalationEntry{
		Timestamp:     now,
		RequirementID: requirementID,
		Reason:        reason,
	})
	req.Deadline = req.Deadline.Add(e.policy.EscalationGrace)
	wf.UpdatedAt = now

	if err := e.store.Update(ctx, wf); err != nil {
		return model.ApprovalWorkflow{}, err
	}
	wf.Version++

	e.metrics.RecordEscalation(requirementID)
	observability.RequestLogger(ctx, e.logger).Info("requirement escalated",
		zap.String("workflow_id", workflowID),
		zap.String("requirement_id", requirementID),
		zap.String("reason", reason),
		zap.Time("new_deadline", req.Deadline),
	)

	for _, recipient := range e.escalationRecipients(&wf, req.ApprovalType) {
		e.dispatch(ctx, model.Notification{
			Kind:          model.NotificationEscalated,
			WorkflowID:    wf.ID,
			ProjectName:   wf.ProjectName,
			RequirementID: requirementID,
			Reason:        reason,
			Recipient:     recipient.profile,
			Approval:      recipient.approval,
			CreatedAt:     now,
		})
	}
	return wf, nil
}

// Get returns a workflow by ID.
func (e *Engine) Get(ctx context.Context, workflowID string) (model.ApprovalWorkflow, error) {
	unlock := e.locks.Lock(workflowID)
	defer unlock()
	return e.store.Get(ctx, workflowID)
}

// List returns workflow summaries, newest first.
func (e *Engine) List(ctx context.Context, filters model.WorkflowFilters) ([]model.WorkflowSummary, error) {
	if filters.Offset < 0 {
		filters.Offset = 0
	}
	workflows, err := e.store.List(ctx, filters)
	if err != nil {
		return nil, err
	}

	summaries := make([]model.WorkflowSummary, 0, len(workflows))
	for _, wf := range workflows {
		summaries = append(summaries, model.WorkflowSummary{
			ID:          wf.ID,
			ProjectName: wf.ProjectName,
			Status:      wf.Status,
			Progress:    wf.Progress,
			CreatedAt:   wf.CreatedAt,
			TargetDate:  wf.TargetDate,
		})
	}
	return summaries, nil
}

// Status returns the status summary of a workflow.
func (e *Engine) Status(ctx context.Context, workflowID string) (model.WorkflowStatusView, error) {
	wf, err := e.Get(ctx, workflowID)
	if err != nil {
		return model.WorkflowStatusView{}, err
	}
	return statusView(&wf, e.clock.Now()), nil
}

// CheckDeadlines reports expired and approaching deadlines of non-completed
// requirements. It has no side effects.
func (e *Engine) CheckDeadlines(ctx context.Context, workflowID string) ([]model.DeadlineIssue, error) {
	wf, err := e.Get(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	return checkDeadlines(&wf, e.clock.Now(), e.policy), nil
}

// NextActions returns the requirements that can be decided now.
func (e *Engine) NextActions(ctx context.Context, workflowID string) ([]model.NextAction, error) {
	wf, err := e.Get(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	return nextActions(&wf, e.clock.Now()), nil
}

// RiskIndicators returns the derived risks of a workflow.
func (e *Engine) RiskIndicators(ctx context.Context, workflowID string) ([]model.RiskIndicator, error) {
	wf, err := e.Get(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	return riskIndicators(&wf, e.clock.Now(), e.policy), nil
}

// Dashboard returns the full read model of a workflow.
func (e *Engine) Dashboard(ctx context.Context, workflowID string) (model.Dashboard, error) {
	wf, err := e.Get(ctx, workflowID)
	if err != nil {
		return model.Dashboard{}, err
	}
	return dashboard(&wf, e.directory, e.clock.Now(), e.policy), nil
}

// ExportReport serialises the dashboard as JSON (the default) or YAML.
func (e *Engine) ExportReport(ctx context.Context, workflowID, format string) ([]byte, error) {
	d, err := e.Dashboard(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	return encodeReport(d, format)
}

// Wait blocks until every in-flight notification has finished or ctx is done.
func (e *Engine) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type escalationRecipient struct {
	profile  model.StakeholderProfile
	approval *model.StakeholderApproval
}

// escalationRecipients returns each undecided stakeholder of approvalType
// followed by the first entry of their escalation chain. Nobody is notified
// twice.
func (e *Engine) escalationRecipients(wf *model.ApprovalWorkflow, approvalType string) []escalationRecipient {
	seen := make(map[string]bool)
	var out []escalationRecipient
	add := func(p model.StakeholderProfile, a *model.StakeholderApproval) {
		if seen[p.ID] {
			return
		}
		seen[p.ID] = true
		out = append(out, escalationRecipient{profile: p, approval: a})
	}

	for _, a := range wf.Approvals {
		if a.ApprovalType != approvalType || a.Status.IsTerminal() {
			continue
		}
		rec := a.Clone()
		profile := e.profileFor(a.StakeholderID, a.StakeholderRole)
		add(profile, &rec)
		if len(profile.EscalationChain) > 0 {
			next := profile.EscalationChain[0]
			if p, ok := e.directory.ByID(next); ok {
				add(p, &rec)
			} else {
				add(model.StakeholderProfile{ID: next}, &rec)
			}
		}
	}
	return out
}

// profileFor resolves a stakeholder profile, degrading to a bare profile when
// the directory no longer knows the stakeholder.
func (e *Engine) profileFor(stakeholderID, role string) model.StakeholderProfile {
	if p, ok := e.directory.ByID(stakeholderID); ok {
		return p
	}
	return model.StakeholderProfile{ID: stakeholderID, Role: role}
}

// dispatch delivers a notification on its own goroutine. The request's
// cancellation is detached so delivery outlives the caller, bounded by the
// notify timeout. Failures and panics are logged and counted.
func (e *Engine) dispatch(ctx context.Context, n model.Notification) {
	if !wantsNotification(n.Recipient, n.Kind) {
		return
	}
	logger := observability.RequestLogger(ctx, e.logger)
	ctx = context.WithoutCancel(ctx)

	e.inflight.Go(func() {
		ctx, cancel := context.WithTimeout(ctx, e.notifyTimeout)
		defer cancel()
		ctx, span := observability.StartSpan(ctx, "approval.notify",
			observability.AttrWorkflowID.String(n.WorkflowID),
			observability.AttrStakeholderID.String(n.Recipient.ID),
			observability.AttrNotification.String(n.Kind),
		)

		var err error
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("notifier panic: %v", r)
			}
			observability.EndSpanWithError(span, err)
			if err != nil {
				e.metrics.RecordNotification(n.Kind, "failed")
				logger.Warn("notification failed",
					zap.String("kind", n.Kind),
					zap.String("workflow_id", n.WorkflowID),
					zap.String("recipient_id", n.Recipient.ID),
					zap.Error(err),
				)
				return
			}
			e.metrics.RecordNotification(n.Kind, "sent")
		}()

		err = e.notifier.Notify(ctx, n)
	})
}

// wantsNotification honours an explicit opt-out in the recipient's
// notification preferences. Absent preferences mean opted in.
func wantsNotification(p model.StakeholderProfile, kind string) bool {
	if enabled, ok := p.NotificationPreferences[kind]; ok {
		return enabled
	}
	return true
}

// keyedMutex serialises work per key. Entries are reference counted and
// removed once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

// Lock acquires the lock for key and returns its release function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
