package domain

import (
	"time"

	"github.com/google/uuid"
)

// Revision is one replayable point in an entity's history, derived from a
// Created or Updated event.
type Revision struct {
	EventID    uuid.UUID      `json:"event_id"`
	Sequence   int64          `json:"sequence"`
	Type       EventType      `json:"type"`
	Data       map[string]any `json:"data"`
	ActorID    uuid.UUID      `json:"actor_id"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// ImportLogEntry captures row level issues that occur during bulk import.
type ImportLogEntry struct {
	ID           uuid.UUID `json:"id"`
	ContentType  string    `json:"content_type"`
	FileName     string    `json:"file_name"`
	RowNumber    *int      `json:"row_number,omitempty"`
	ErrorMessage string    `json:"error_message"`
	CreatedAt    time.Time `json:"created_at"`
}
