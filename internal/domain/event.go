package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType classifies a content lifecycle event.
type EventType string

const (
	EventCreated       EventType = "Created"
	EventUpdated       EventType = "Updated"
	EventStatusChanged EventType = "StatusChanged"
)

func (t EventType) Valid() bool {
	switch t {
	case EventCreated, EventUpdated, EventStatusChanged:
		return true
	default:
		return false
	}
}

// ContentEvent is one entry in an entity's append-only event stream. Events
// are immutable once appended; ordering by Sequence within an entity is total
// and never reordered.
type ContentEvent struct {
	ID          uuid.UUID      `json:"id"`
	EntityID    uuid.UUID      `json:"entity_id"`
	Sequence    int64          `json:"sequence"`
	Type        EventType      `json:"type"`
	ContentType string         `json:"content_type"`
	Payload     map[string]any `json:"payload,omitempty"`
	Status      ContentStatus  `json:"status,omitempty"`
	Sensitivity Sensitivity    `json:"sensitivity,omitempty"`
	ActorID     uuid.UUID      `json:"actor_id"`
	OccurredAt  time.Time      `json:"occurred_at"`
}

// NewCreatedEvent builds the initial event for a new entity. The Sequence is
// assigned by the event store on append.
func NewCreatedEvent(entityID uuid.UUID, contentType string, payload map[string]any, status ContentStatus, sensitivity Sensitivity, actorID uuid.UUID) ContentEvent {
	if status == "" {
		status = StatusDraft
	}
	if sensitivity == "" {
		sensitivity = SensitivityPublic
	}
	return ContentEvent{
		ID:          uuid.New(),
		EntityID:    entityID,
		Type:        EventCreated,
		ContentType: contentType,
		Payload:     copyPayload(payload),
		Status:      status,
		Sensitivity: sensitivity,
		ActorID:     actorID,
		OccurredAt:  time.Now().UTC(),
	}
}

// NewUpdatedEvent builds a field-merge event. Payload keys overwrite the
// projection's data keys wholesale; there is no deep merge.
func NewUpdatedEvent(entityID uuid.UUID, contentType string, payload map[string]any, actorID uuid.UUID) ContentEvent {
	return ContentEvent{
		ID:          uuid.New(),
		EntityID:    entityID,
		Type:        EventUpdated,
		ContentType: contentType,
		Payload:     copyPayload(payload),
		ActorID:     actorID,
		OccurredAt:  time.Now().UTC(),
	}
}

// NewStatusChangedEvent builds a pure status transition. It carries no
// payload, which also makes it ineligible as a rollback target.
func NewStatusChangedEvent(entityID uuid.UUID, contentType string, status ContentStatus, actorID uuid.UUID) ContentEvent {
	return ContentEvent{
		ID:          uuid.New(),
		EntityID:    entityID,
		Type:        EventStatusChanged,
		ContentType: contentType,
		Status:      status,
		ActorID:     actorID,
		OccurredAt:  time.Now().UTC(),
	}
}

// HasPayload reports whether the event carries replayable field data.
func (e ContentEvent) HasPayload() bool {
	return e.Type == EventCreated || e.Type == EventUpdated
}

func (e ContentEvent) GetPayloadAsJSONB() (json.RawMessage, error) {
	if e.Payload == nil {
		return json.Marshal(map[string]any{})
	}
	return json.Marshal(e.Payload)
}

// FromJSONBPayload decodes a payload map from JSONB data.
func FromJSONBPayload(payloadJSON json.RawMessage) (map[string]any, error) {
	var payload map[string]any
	err := json.Unmarshal(payloadJSON, &payload)
	return payload, err
}

func copyPayload(payload map[string]any) map[string]any {
	if payload == nil {
		return nil
	}
	copied := make(map[string]any, len(payload))
	for k, v := range payload {
		copied[k] = v
	}
	return copied
}
