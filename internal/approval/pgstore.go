package approval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pitabwire/signoff/model"
)

// Schema creates the approval_workflows table. The full aggregate is stored
// as JSONB; the columns alongside it exist for filtering and locking.
const Schema = `
CREATE TABLE IF NOT EXISTS approval_workflows (
	id           TEXT PRIMARY KEY,
	project_name TEXT NOT NULL,
	status       TEXT NOT NULL,
	progress     DOUBLE PRECISION NOT NULL DEFAULT 0,
	aggregate    JSONB NOT NULL,
	version      INTEGER NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL,
	target_date  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS approval_workflows_status_created_idx
	ON approval_workflows (status, created_at DESC);
`

const uniqueViolation = "23505"

// PgWorkflowStore is a PostgreSQL-backed WorkflowStore using pgx/v5.
type PgWorkflowStore struct {
	pool *pgxpool.Pool
}

// NewPgWorkflowStore creates a new PostgreSQL workflow store.
func NewPgWorkflowStore(pool *pgxpool.Pool) *PgWorkflowStore {
	return &PgWorkflowStore{pool: pool}
}

// EnsureSchema creates the backing table if it does not exist.
func (s *PgWorkflowStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create approval_workflows schema: %w", err)
	}
	return nil
}

// Create inserts a new workflow.
func (s *PgWorkflowStore) Create(ctx context.Context, wf model.ApprovalWorkflow) error {
	aggregate, err := json.Marshal(wf)
	if err != nil {
		return fmt.Errorf("marshal workflow: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO approval_workflows (
			id, project_name, status, progress, aggregate, version,
			created_at, updated_at, target_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		wf.ID, wf.ProjectName, wf.Status, wf.Progress, aggregate, wf.Version,
		wf.CreatedAt, wf.UpdatedAt, wf.TargetDate,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return model.NewConflictError(fmt.Sprintf("workflow %q already exists", wf.ID))
	}
	if err != nil {
		return fmt.Errorf("insert workflow: %w", err)
	}
	return nil
}

// Get retrieves a workflow by ID.
func (s *PgWorkflowStore) Get(ctx context.Context, workflowID string) (model.ApprovalWorkflow, error) {
	var aggregate []byte
	var version int

	err := s.pool.QueryRow(ctx, `
		SELECT aggregate, version
		FROM approval_workflows
		WHERE id = $1`,
		workflowID,
	).Scan(&aggregate, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ApprovalWorkflow{}, model.NewNotFoundError(
			fmt.Sprintf("workflow %q not found", workflowID),
		)
	}
	if err != nil {
		return model.ApprovalWorkflow{}, fmt.Errorf("query workflow: %w", err)
	}

	return decodeWorkflow(aggregate, version)
}

// Update persists an updated workflow with optimistic locking.
func (s *PgWorkflowStore) Update(ctx context.Context, wf model.ApprovalWorkflow) error {
	next := wf
	next.Version = wf.Version + 1
	aggregate, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("marshal workflow: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE approval_workflows SET
			status = $1,
			progress = $2,
			aggregate = $3,
			version = $4,
			updated_at = $5,
			target_date = $6
		WHERE id = $7 AND version = $8`,
		wf.Status, wf.Progress, aggregate, next.Version,
		wf.UpdatedAt, wf.TargetDate,
		wf.ID, wf.Version,
	)
	if err != nil {
		return fmt.Errorf("update workflow: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := s.Get(ctx, wf.ID); model.IsCode(getErr, model.ErrNotFound) {
			return getErr
		}
		return model.NewConflictError(
			fmt.Sprintf("workflow %q version conflict (expected %d)", wf.ID, wf.Version),
		)
	}
	return nil
}

// List returns workflows newest first.
func (s *PgWorkflowStore) List(ctx context.Context, filters model.WorkflowFilters) ([]model.ApprovalWorkflow, error) {
	query := `SELECT aggregate, version FROM approval_workflows`
	args := []any{}
	argIdx := 1

	if filters.Status != "" {
		query += fmt.Sprintf(" WHERE status = $%d", argIdx)
		args = append(args, string(filters.Status))
		argIdx++
	}

	query += " ORDER BY created_at DESC, id ASC"

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filters.Limit)
		argIdx++
	}
	if filters.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, filters.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query workflows: %w", err)
	}
	defer rows.Close()

	var workflows []model.ApprovalWorkflow
	for rows.Next() {
		var aggregate []byte
		var version int
		if err := rows.Scan(&aggregate, &version); err != nil {
			return nil, fmt.Errorf("scan workflow: %w", err)
		}
		wf, err := decodeWorkflow(aggregate, version)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, wf)
	}
	return workflows, rows.Err()
}

// Delete removes a workflow.
func (s *PgWorkflowStore) Delete(ctx context.Context, workflowID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM approval_workflows WHERE id = $1`, workflowID)
	if err != nil {
		return fmt.Errorf("delete workflow: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewNotFoundError(fmt.Sprintf("workflow %q not found", workflowID))
	}
	return nil
}

// HealthCheck pings the database.
func (s *PgWorkflowStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// decodeWorkflow unmarshals a stored aggregate. The version column is
// authoritative over the version embedded in the document.
func decodeWorkflow(aggregate []byte, version int) (model.ApprovalWorkflow, error) {
	var wf model.ApprovalWorkflow
	if err := json.Unmarshal(aggregate, &wf); err != nil {
		return model.ApprovalWorkflow{}, fmt.Errorf("unmarshal workflow: %w", err)
	}
	wf.Version = version
	return wf, nil
}
