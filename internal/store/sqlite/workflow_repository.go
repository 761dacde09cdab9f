package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MightyPrytanis/roundtable/internal/store"
	"github.com/MightyPrytanis/roundtable/internal/workflow"
)

// workflowColumns is the list of columns to select for workflow queries.
const workflowColumns = `id, original_query, participants, attachments,
	current_step, document, status, created_at, updated_at, completed_at`

// stepColumns is the list of columns to select for step record queries.
const stepColumns = `workflow_id, step_index, agent, objective, completed, output, completed_at, error`

// workflowRepository implements store.WorkflowStore using SQLite.
type workflowRepository struct {
	db *sql.DB
}

// newWorkflowRepository creates a new workflowRepository instance.
func newWorkflowRepository(db *sql.DB) *workflowRepository {
	return &workflowRepository{db: db}
}

var _ store.WorkflowStore = (*workflowRepository)(nil)

// scanWorkflow scans a row into a WorkflowModel.
func scanWorkflow(scanner interface{ Scan(...any) error }) (*WorkflowModel, error) {
	var model WorkflowModel
	err := scanner.Scan(
		&model.ID, &model.OriginalQuery, &model.Participants, &model.Attachments,
		&model.CurrentStep, &model.Document, &model.Status,
		&model.CreatedAt, &model.UpdatedAt, &model.CompletedAt,
	)
	return &model, err
}

// scanStepRecord scans a row into a StepRecordModel.
func scanStepRecord(scanner interface{ Scan(...any) error }) (StepRecordModel, error) {
	var model StepRecordModel
	err := scanner.Scan(
		&model.WorkflowID, &model.StepIndex, &model.Agent, &model.Objective,
		&model.Completed, &model.Output, &model.CompletedAt, &model.Error,
	)
	return model, err
}

// Save persists the whole aggregate in one transaction: the workflow row
// is upserted and every step record is upserted alongside it. The engine
// relies on this being atomic and durable before advancing a step.
func (r *workflowRepository) Save(ctx context.Context, state *workflow.State) error {
	model, err := toWorkflowModel(state)
	if err != nil {
		return err
	}
	stepModels := toStepRecordModels(state)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin save transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO workflows (
			id, original_query, participants, attachments,
			current_step, document, status, created_at, updated_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			current_step = excluded.current_step,
			document = excluded.document,
			status = excluded.status,
			updated_at = excluded.updated_at,
			completed_at = excluded.completed_at`,
		model.ID, model.OriginalQuery, model.Participants, model.Attachments,
		model.CurrentStep, model.Document, model.Status,
		model.CreatedAt, model.UpdatedAt, model.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert workflow: %w", err)
	}

	for _, step := range stepModels {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO step_records (
				workflow_id, step_index, agent, objective, completed, output, completed_at, error
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(workflow_id, step_index) DO UPDATE SET
				completed = excluded.completed,
				output = excluded.output,
				completed_at = excluded.completed_at,
				error = excluded.error`,
			step.WorkflowID, step.StepIndex, step.Agent, step.Objective,
			step.Completed, step.Output, step.CompletedAt, step.Error,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert step record %d: %w", step.StepIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit save transaction: %w", err)
	}
	return nil
}

// Load retrieves a workflow and its step records by id.
// Returns store.ErrNotFound if no matching workflow exists.
func (r *workflowRepository) Load(ctx context.Context, id workflow.WorkflowID) (*workflow.State, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+workflowColumns+` FROM workflows WHERE id = ?`, id.String())
	model, err := scanWorkflow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow: %w", err)
	}

	steps, err := r.loadSteps(ctx, id)
	if err != nil {
		return nil, err
	}
	return model.toDomain(steps)
}

// loadSteps retrieves a workflow's step records ordered by step index.
func (r *workflowRepository) loadSteps(ctx context.Context, id workflow.WorkflowID) ([]StepRecordModel, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+stepColumns+` FROM step_records WHERE workflow_id = ? ORDER BY step_index ASC`,
		id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to load step records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var steps []StepRecordModel
	for rows.Next() {
		step, err := scanStepRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step record row: %w", err)
		}
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating step record rows: %w", err)
	}
	return steps, nil
}

// List retrieves workflows matching the filter, newest first.
func (r *workflowRepository) List(ctx context.Context, filter store.ListFilter) ([]*workflow.State, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows`
	args := []any{}

	if filter.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, filter.Status.String())
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var models []*WorkflowModel
	for rows.Next() {
		model, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow row: %w", err)
		}
		models = append(models, model)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflow rows: %w", err)
	}

	states := make([]*workflow.State, 0, len(models))
	for _, model := range models {
		steps, err := r.loadSteps(ctx, workflow.WorkflowID(model.ID))
		if err != nil {
			return nil, err
		}
		state, err := model.toDomain(steps)
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	return states, nil
}

// Delete removes a workflow; step records cascade.
// Returns store.ErrNotFound if no matching workflow exists.
func (r *workflowRepository) Delete(ctx context.Context, id workflow.WorkflowID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}
