package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ContentStatus is the lifecycle status of a content document.
type ContentStatus string

const (
	StatusDraft     ContentStatus = "Draft"
	StatusPublished ContentStatus = "Published"
	StatusArchived  ContentStatus = "Archived"
)

func (s ContentStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	default:
		return false
	}
}

// Sensitivity classifies document visibility independent of role grants.
type Sensitivity string

const (
	SensitivityPublic    Sensitivity = "Public"
	SensitivitySensitive Sensitivity = "Sensitive"
	SensitivityHidden    Sensitivity = "Hidden"
)

func (s Sensitivity) Valid() bool {
	switch s {
	case SensitivityPublic, SensitivitySensitive, SensitivityHidden:
		return true
	default:
		return false
	}
}

// HiddenContentType is the sentinel written into ContentType when a hidden
// document is redacted for a caller without elevated access.
const HiddenContentType = "HIDDEN"

// ContentDocument is the materialized current-state projection of an entity's
// event stream. It is derived state: rebuildable at any time by replaying the
// entity's events and never hand-edited outside ApplyEvent.
type ContentDocument struct {
	ID             uuid.UUID      `json:"id"`
	ContentType    string         `json:"content_type"`
	Data           map[string]any `json:"data"`
	Status         ContentStatus  `json:"status"`
	Sensitivity    Sensitivity    `json:"sensitivity"`
	Version        int64          `json:"version"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	LastModifiedBy uuid.UUID      `json:"last_modified_by"`
}

// ApplyEvent folds one event into a document and returns the next state. It
// is the single apply function shared by live projection and replay, and is
// deterministic: only event fields feed the result, never the wall clock.
func ApplyEvent(doc ContentDocument, event ContentEvent) (ContentDocument, error) {
	switch event.Type {
	case EventCreated:
		return ContentDocument{
			ID:             event.EntityID,
			ContentType:    event.ContentType,
			Data:           copyPayload(event.Payload),
			Status:         event.Status,
			Sensitivity:    event.Sensitivity,
			Version:        event.Sequence,
			CreatedAt:      event.OccurredAt,
			UpdatedAt:      event.OccurredAt,
			LastModifiedBy: event.ActorID,
		}, nil
	case EventUpdated:
		next := doc
		next.Data = copyPayload(doc.Data)
		if next.Data == nil {
			next.Data = make(map[string]any, len(event.Payload))
		}
		for k, v := range event.Payload {
			next.Data[k] = v
		}
		next.Version = event.Sequence
		next.UpdatedAt = event.OccurredAt
		next.LastModifiedBy = event.ActorID
		return next, nil
	case EventStatusChanged:
		next := doc
		next.Data = copyPayload(doc.Data)
		next.Status = event.Status
		next.Version = event.Sequence
		next.UpdatedAt = event.OccurredAt
		next.LastModifiedBy = event.ActorID
		return next, nil
	default:
		return ContentDocument{}, fmt.Errorf("cannot apply event type %q", event.Type)
	}
}

// ReplayEvents rebuilds a document from an ordered event stream.
func ReplayEvents(events []ContentEvent) (ContentDocument, error) {
	if len(events) == 0 {
		return ContentDocument{}, fmt.Errorf("cannot replay empty stream: %w", ErrNotFound)
	}
	var doc ContentDocument
	for _, event := range events {
		next, err := ApplyEvent(doc, event)
		if err != nil {
			return ContentDocument{}, fmt.Errorf("replay of entity %s failed at sequence %d: %w", event.EntityID, event.Sequence, err)
		}
		doc = next
	}
	return doc, nil
}

func (d ContentDocument) GetDataAsJSONB() (json.RawMessage, error) {
	if d.Data == nil {
		return json.Marshal(map[string]any{})
	}
	return json.Marshal(d.Data)
}

// FromJSONBData decodes a data map from JSONB storage.
func FromJSONBData(dataJSON json.RawMessage) (map[string]any, error) {
	var data map[string]any
	err := json.Unmarshal(dataJSON, &data)
	return data, err
}

// StringValue renders a data value in its condition-comparison string form.
// Strings compare as-is; everything else uses the fmt %v rendering.
func StringValue(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", value)
}
