// Package workflow matches content lifecycle events to workflow definitions
// and dispatches their actions.
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rpattn/contentcore/internal/domain"
	"github.com/rpattn/contentcore/internal/repository"
)

// Engine evaluates workflow definitions against lifecycle events. Matching
// workflows run their actions sequentially in declaration order; a failing
// action is logged and does not stop its successors or sibling workflows.
type Engine struct {
	workflows repository.WorkflowRepository
	registry  *Registry
	logger    zerolog.Logger
}

// NewEngine creates a workflow engine.
func NewEngine(workflows repository.WorkflowRepository, registry *Registry, logger zerolog.Logger) *Engine {
	return &Engine{
		workflows: workflows,
		registry:  registry,
		logger:    logger.With().Str("component", "workflow").Logger(),
	}
}

// ProcessEvent runs every workflow whose trigger matches the event and whose
// conditions match the content. One execution log is persisted per evaluated
// workflow before the cycle is considered done.
func (e *Engine) ProcessEvent(ctx context.Context, contentType string, eventName domain.EventType, content domain.ContentDocument) ([]domain.WorkflowExecutionLog, error) {
	return e.process(ctx, contentType, eventName, content, false)
}

// DryRun follows the identical matching and resolution path but suppresses
// action side effects, so operators can verify trigger and condition logic.
func (e *Engine) DryRun(ctx context.Context, contentType string, eventName domain.EventType, content domain.ContentDocument) ([]domain.WorkflowExecutionLog, error) {
	return e.process(ctx, contentType, eventName, content, true)
}

func (e *Engine) process(ctx context.Context, contentType string, eventName domain.EventType, content domain.ContentDocument, dryRun bool) ([]domain.WorkflowExecutionLog, error) {
	definitions, err := e.workflows.ListByTrigger(ctx, contentType, eventName)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflows for %s/%s: %w", contentType, eventName, err)
	}

	logs := []domain.WorkflowExecutionLog{}
	for _, definition := range definitions {
		if !definition.MatchesConditions(content) {
			continue
		}

		log := e.runWorkflow(ctx, definition, content, dryRun)
		logs = append(logs, log)

		if err := e.workflows.RecordExecution(ctx, log); err != nil {
			e.logger.Error().Err(err).
				Stringer("workflow", definition.ID).
				Stringer("content", content.ID).
				Msg("failed to persist execution log")
		}
	}

	return logs, nil
}

func (e *Engine) runWorkflow(ctx context.Context, definition domain.WorkflowDefinition, content domain.ContentDocument, dryRun bool) domain.WorkflowExecutionLog {
	started := time.Now()
	log := domain.WorkflowExecutionLog{
		ID:         uuid.New(),
		WorkflowID: definition.ID,
		ContentID:  content.ID,
		StartedAt:  started,
		DryRun:     dryRun,
		Actions:    make([]domain.ActionExecutionLog, 0, len(definition.Actions)),
	}

	for _, step := range definition.Actions {
		entry := domain.ActionExecutionLog{
			ActionType:         step.Type,
			ResolvedParameters: ResolveParameters(step.Parameters, content),
		}

		action, err := e.registry.Resolve(step.Type)
		switch {
		case err != nil:
			entry.Error = err.Error()
			e.logger.Error().Err(err).
				Str("workflow", definition.Name).
				Msg("workflow references unregistered action type")
		case dryRun:
			entry.Success = true
			e.logger.Info().
				Str("workflow", definition.Name).
				Str("action", step.Type).
				Interface("parameters", entry.ResolvedParameters).
				Msg("dry run: action skipped")
		default:
			if execErr := action.Execute(ctx, entry.ResolvedParameters, content); execErr != nil {
				entry.Error = execErr.Error()
				e.logger.Warn().Err(execErr).
					Str("workflow", definition.Name).
					Str("action", step.Type).
					Stringer("content", content.ID).
					Msg("workflow action failed")
			} else {
				entry.Success = true
			}
		}

		log.Actions = append(log.Actions, entry)
	}

	log.Duration = time.Since(started)
	return log
}
