package repository

import (
	"context"
	"time"

	"github.com/rpattn/contentcore/internal/domain"

	"github.com/google/uuid"
)

// EventStore is the append-only event log, the source of truth for content
// history. Append is the only mutation; events are never edited or deleted.
type EventStore interface {
	// Append persists the event with the next sequence number for its entity
	// and returns the stored event. When expectedSequence is non-nil the
	// append fails with domain.ErrConcurrencyConflict unless it matches the
	// entity's current last sequence.
	Append(ctx context.Context, event domain.ContentEvent, expectedSequence *int64) (domain.ContentEvent, error)
	// LoadStream returns the entity's events ordered by sequence.
	// domain.ErrNotFound when the entity has no events.
	LoadStream(ctx context.Context, entityID uuid.UUID) ([]domain.ContentEvent, error)
	// LoadStreamUpTo returns the prefix of the stream ending at the given
	// event, inclusive. domain.ErrNotFound if the event isn't in the stream.
	LoadStreamUpTo(ctx context.Context, entityID, eventID uuid.UUID) ([]domain.ContentEvent, error)
}

// DocumentRepository persists the materialized current-state projection. The
// projection path is its only writer.
type DocumentRepository interface {
	Save(ctx context.Context, doc domain.ContentDocument) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.ContentDocument, error)
	ListByType(ctx context.Context, contentType string, limit, offset int) ([]domain.ContentDocument, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ContentTypeRepository defines the interface for content type operations.
type ContentTypeRepository interface {
	Create(ctx context.Context, definition domain.ContentTypeDefinition) (domain.ContentTypeDefinition, error)
	GetBySlug(ctx context.Context, slug string) (domain.ContentTypeDefinition, error)
	List(ctx context.Context) ([]domain.ContentTypeDefinition, error)
	Update(ctx context.Context, definition domain.ContentTypeDefinition) (domain.ContentTypeDefinition, error)
}

// RoleRepository defines the interface for role operations.
type RoleRepository interface {
	Create(ctx context.Context, role domain.Role) (domain.Role, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Role, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Role, error)
	GetByName(ctx context.Context, name string) (domain.Role, error)
	List(ctx context.Context) ([]domain.Role, error)
}

// UserRepository defines the interface for user and group operations.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) (domain.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.User, error)
	GetByUsername(ctx context.Context, username string) (domain.User, error)
	CreateGroup(ctx context.Context, group domain.UserGroup) (domain.UserGroup, error)
	GetGroupsByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.UserGroup, error)
	ListGroups(ctx context.Context) ([]domain.UserGroup, error)
}

// WorkflowRepository persists workflow definitions and execution logs.
type WorkflowRepository interface {
	CreateDefinition(ctx context.Context, def domain.WorkflowDefinition) (domain.WorkflowDefinition, error)
	GetDefinition(ctx context.Context, id uuid.UUID) (domain.WorkflowDefinition, error)
	// ListByTrigger returns definitions matching a content type and event.
	ListByTrigger(ctx context.Context, contentType string, event domain.EventType) ([]domain.WorkflowDefinition, error)
	RecordExecution(ctx context.Context, log domain.WorkflowExecutionLog) error
	ListExecutions(ctx context.Context, workflowID uuid.UUID, limit, offset int) ([]domain.WorkflowExecutionLog, error)
}

// IdempotencyStore guards write replays. Claim is the mutual-exclusion point:
// at most one caller per key ever succeeds within the retention window.
type IdempotencyStore interface {
	// Claim atomically records the key. domain.ErrDuplicateRequest when the
	// key was already claimed.
	Claim(ctx context.Context, key string) error
	// Release removes a claim so a write that failed before appending can
	// be retried with the same key.
	Release(ctx context.Context, key string) error
	// PurgeOlderThan deletes claims older than the retention window and
	// returns the number removed.
	PurgeOlderThan(ctx context.Context, retention time.Duration) (int64, error)
}

// ImportLogRepository stores bulk import row errors for observability.
type ImportLogRepository interface {
	Record(ctx context.Context, entry domain.ImportLogEntry) error
	List(ctx context.Context, contentType string, limit, offset int) ([]domain.ImportLogEntry, error)
}
