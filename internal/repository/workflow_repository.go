package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpattn/contentcore/internal/domain"
)

type workflowRepository struct {
	pool *pgxpool.Pool
}

// NewWorkflowRepository wires a workflow repository backed by pgxpool.
func NewWorkflowRepository(pool *pgxpool.Pool) WorkflowRepository {
	return &workflowRepository{pool: pool}
}

func (r *workflowRepository) CreateDefinition(ctx context.Context, def domain.WorkflowDefinition) (domain.WorkflowDefinition, error) {
	conditionsJSON, err := def.GetConditionsAsJSONB()
	if err != nil {
		return domain.WorkflowDefinition{}, fmt.Errorf("failed to marshal conditions: %w", err)
	}
	actionsJSON, err := def.GetActionsAsJSONB()
	if err != nil {
		return domain.WorkflowDefinition{}, fmt.Errorf("failed to marshal actions: %w", err)
	}

	_, err = r.pool.Exec(
		ctx,
		`INSERT INTO workflow_definitions (id, name, trigger_content_type, trigger_event, conditions, actions, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		def.ID,
		def.Name,
		def.TriggerContentType,
		string(def.TriggerEvent),
		conditionsJSON,
		actionsJSON,
		def.CreatedAt,
		def.UpdatedAt,
	)
	if err != nil {
		return domain.WorkflowDefinition{}, fmt.Errorf("failed to create workflow definition: %w", err)
	}

	return def, nil
}

func (r *workflowRepository) GetDefinition(ctx context.Context, id uuid.UUID) (domain.WorkflowDefinition, error) {
	row := r.pool.QueryRow(
		ctx,
		`SELECT id, name, trigger_content_type, trigger_event, conditions, actions, created_at, updated_at
		 FROM workflow_definitions WHERE id = $1`,
		id,
	)

	def, err := scanWorkflowDefinition(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.WorkflowDefinition{}, fmt.Errorf("workflow %s: %w", id, domain.ErrNotFound)
		}
		return domain.WorkflowDefinition{}, fmt.Errorf("failed to get workflow definition: %w", err)
	}

	return def, nil
}

func (r *workflowRepository) ListByTrigger(ctx context.Context, contentType string, event domain.EventType) ([]domain.WorkflowDefinition, error) {
	rows, err := r.pool.Query(
		ctx,
		`SELECT id, name, trigger_content_type, trigger_event, conditions, actions, created_at, updated_at
		 FROM workflow_definitions
		 WHERE trigger_content_type = $1 AND trigger_event = $2
		 ORDER BY created_at ASC`,
		contentType,
		string(event),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow definitions: %w", err)
	}
	defer rows.Close()

	defs := []domain.WorkflowDefinition{}
	for rows.Next() {
		def, err := scanWorkflowDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow definition: %w", err)
		}
		defs = append(defs, def)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate workflow definitions: %w", err)
	}

	return defs, nil
}

func (r *workflowRepository) RecordExecution(ctx context.Context, log domain.WorkflowExecutionLog) error {
	actionsJSON, err := json.Marshal(log.Actions)
	if err != nil {
		return fmt.Errorf("failed to marshal action logs: %w", err)
	}

	id := log.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	_, err = r.pool.Exec(
		ctx,
		`INSERT INTO workflow_execution_logs (id, workflow_id, content_id, started_at, duration_ms, actions, dry_run)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id,
		log.WorkflowID,
		log.ContentID,
		log.StartedAt,
		log.Duration.Milliseconds(),
		actionsJSON,
		log.DryRun,
	)
	if err != nil {
		return fmt.Errorf("failed to record workflow execution: %w", err)
	}

	return nil
}

func (r *workflowRepository) ListExecutions(ctx context.Context, workflowID uuid.UUID, limit, offset int) ([]domain.WorkflowExecutionLog, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT id, workflow_id, content_id, started_at, duration_ms, actions, dry_run
		 FROM workflow_execution_logs
		 WHERE workflow_id = $1
		 ORDER BY started_at DESC
		 LIMIT $2 OFFSET $3`,
		workflowID,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow executions: %w", err)
	}
	defer rows.Close()

	logs := []domain.WorkflowExecutionLog{}
	for rows.Next() {
		var (
			log         domain.WorkflowExecutionLog
			durationMS  int64
			actionsJSON []byte
		)
		if err := rows.Scan(
			&log.ID,
			&log.WorkflowID,
			&log.ContentID,
			&log.StartedAt,
			&durationMS,
			&actionsJSON,
			&log.DryRun,
		); err != nil {
			return nil, fmt.Errorf("failed to scan workflow execution: %w", err)
		}

		log.Duration = time.Duration(durationMS) * time.Millisecond
		if err := json.Unmarshal(actionsJSON, &log.Actions); err != nil {
			return nil, fmt.Errorf("failed to decode action logs for execution %s: %w", log.ID, err)
		}

		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate workflow executions: %w", err)
	}

	return logs, nil
}

func scanWorkflowDefinition(row pgx.Row) (domain.WorkflowDefinition, error) {
	var (
		def            domain.WorkflowDefinition
		triggerEvent   string
		conditionsJSON []byte
		actionsJSON    []byte
	)
	if err := row.Scan(
		&def.ID,
		&def.Name,
		&def.TriggerContentType,
		&triggerEvent,
		&conditionsJSON,
		&actionsJSON,
		&def.CreatedAt,
		&def.UpdatedAt,
	); err != nil {
		return domain.WorkflowDefinition{}, err
	}

	def.TriggerEvent = domain.EventType(triggerEvent)

	conditions, err := domain.FromJSONBConditions(conditionsJSON)
	if err != nil {
		return domain.WorkflowDefinition{}, fmt.Errorf("failed to decode conditions for workflow %s: %w", def.Name, err)
	}
	if len(conditions) > 0 {
		def.Conditions = conditions
	}

	actions, err := domain.FromJSONBActions(actionsJSON)
	if err != nil {
		return domain.WorkflowDefinition{}, fmt.Errorf("failed to decode actions for workflow %s: %w", def.Name, err)
	}
	def.Actions = actions

	return def, nil
}
