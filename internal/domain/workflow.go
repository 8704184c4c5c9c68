package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// StatusConditionKey is the reserved workflow condition key matched against a
// document's status instead of its data fields.
const StatusConditionKey = "Status"

// WorkflowAction is one dispatchable step of a workflow definition.
type WorkflowAction struct {
	Type       string            `json:"type"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

// WorkflowDefinition matches lifecycle events of one content type and runs
// its actions in declaration order when every condition holds.
type WorkflowDefinition struct {
	ID                 uuid.UUID         `json:"id"`
	Name               string            `json:"name"`
	TriggerContentType string            `json:"trigger_content_type"`
	TriggerEvent       EventType         `json:"trigger_event"`
	Conditions         map[string]string `json:"conditions,omitempty"`
	Actions            []WorkflowAction  `json:"actions"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// NewWorkflowDefinition creates a new workflow definition.
func NewWorkflowDefinition(name, triggerContentType string, triggerEvent EventType, conditions map[string]string, actions []WorkflowAction) WorkflowDefinition {
	now := time.Now()
	return WorkflowDefinition{
		ID:                 uuid.New(),
		Name:               name,
		TriggerContentType: NormalizeSlug(triggerContentType),
		TriggerEvent:       triggerEvent,
		Conditions:         copyConditions(conditions),
		Actions:            append([]WorkflowAction(nil), actions...),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// MatchesConditions evaluates the definition's condition map against the
// triggering content. Every key must match a data field by exact string
// equality, or the reserved Status key must match the document status. A key
// present in neither place fails the match; no conditions means an
// unconditional match.
func (w WorkflowDefinition) MatchesConditions(content ContentDocument) bool {
	for key, want := range w.Conditions {
		if key == StatusConditionKey {
			if string(content.Status) != want {
				return false
			}
			continue
		}
		value, ok := content.Data[key]
		if !ok {
			return false
		}
		if StringValue(value) != want {
			return false
		}
	}
	return true
}

func (w WorkflowDefinition) GetConditionsAsJSONB() (json.RawMessage, error) {
	if w.Conditions == nil {
		return json.Marshal(map[string]string{})
	}
	return json.Marshal(w.Conditions)
}

func (w WorkflowDefinition) GetActionsAsJSONB() (json.RawMessage, error) {
	if w.Actions == nil {
		return json.Marshal([]WorkflowAction{})
	}
	return json.Marshal(w.Actions)
}

// FromJSONBConditions decodes a workflow condition map from JSONB storage.
func FromJSONBConditions(conditionsJSON json.RawMessage) (map[string]string, error) {
	var conditions map[string]string
	err := json.Unmarshal(conditionsJSON, &conditions)
	return conditions, err
}

// FromJSONBActions decodes workflow actions from JSONB storage.
func FromJSONBActions(actionsJSON json.RawMessage) ([]WorkflowAction, error) {
	var actions []WorkflowAction
	err := json.Unmarshal(actionsJSON, &actions)
	return actions, err
}

// ActionExecutionLog records one action dispatch inside a workflow run.
type ActionExecutionLog struct {
	ActionType         string            `json:"action_type"`
	Success            bool              `json:"success"`
	Error              string            `json:"error,omitempty"`
	ResolvedParameters map[string]string `json:"resolved_parameters,omitempty"`
}

// WorkflowExecutionLog is the audit record of one workflow evaluation cycle.
// It is appended to as actions execute and never mutated after persistence.
type WorkflowExecutionLog struct {
	ID         uuid.UUID            `json:"id"`
	WorkflowID uuid.UUID            `json:"workflow_id"`
	ContentID  uuid.UUID            `json:"content_id"`
	StartedAt  time.Time            `json:"started_at"`
	Duration   time.Duration        `json:"duration"`
	Actions    []ActionExecutionLog `json:"actions"`
	DryRun     bool                 `json:"dry_run"`
}

func copyConditions(conditions map[string]string) map[string]string {
	if conditions == nil {
		return nil
	}
	copied := make(map[string]string, len(conditions))
	for k, v := range conditions {
		copied[k] = v
	}
	return copied
}
