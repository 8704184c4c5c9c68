package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpattn/contentcore/internal/domain"
)

// uniqueViolation is the Postgres error code raised when two appends race for
// the same (entity_id, sequence) slot.
const uniqueViolation = "23505"

type eventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore wires an append-only event store backed by pgxpool.
func NewEventStore(pool *pgxpool.Pool) EventStore {
	return &eventStore{pool: pool}
}

func (s *eventStore) Append(ctx context.Context, event domain.ContentEvent, expectedSequence *int64) (domain.ContentEvent, error) {
	payloadJSON, err := event.GetPayloadAsJSONB()
	if err != nil {
		return domain.ContentEvent{}, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.ContentEvent{}, fmt.Errorf("failed to begin append transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var lastSequence int64
	err = tx.QueryRow(
		ctx,
		`SELECT COALESCE(MAX(sequence), 0) FROM content_events WHERE entity_id = $1`,
		event.EntityID,
	).Scan(&lastSequence)
	if err != nil {
		return domain.ContentEvent{}, fmt.Errorf("failed to read last sequence: %w", err)
	}

	if expectedSequence != nil && *expectedSequence != lastSequence {
		return domain.ContentEvent{}, fmt.Errorf(
			"entity %s is at sequence %d, expected %d: %w",
			event.EntityID, lastSequence, *expectedSequence, domain.ErrConcurrencyConflict,
		)
	}

	stored := event
	stored.Sequence = lastSequence + 1
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}

	_, err = tx.Exec(
		ctx,
		`INSERT INTO content_events (id, entity_id, sequence, event_type, content_type, payload, status, sensitivity, actor_id, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		stored.ID,
		stored.EntityID,
		stored.Sequence,
		string(stored.Type),
		stored.ContentType,
		payloadJSON,
		nullableString(string(stored.Status)),
		nullableString(string(stored.Sensitivity)),
		stored.ActorID,
		stored.OccurredAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ContentEvent{}, fmt.Errorf(
				"concurrent append to entity %s: %w", event.EntityID, domain.ErrConcurrencyConflict,
			)
		}
		return domain.ContentEvent{}, fmt.Errorf("failed to append event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.ContentEvent{}, fmt.Errorf("failed to commit append: %w", err)
	}

	return stored, nil
}

func (s *eventStore) LoadStream(ctx context.Context, entityID uuid.UUID) ([]domain.ContentEvent, error) {
	rows, err := s.pool.Query(
		ctx,
		`SELECT id, entity_id, sequence, event_type, content_type, payload, status, sensitivity, actor_id, occurred_at
		 FROM content_events
		 WHERE entity_id = $1
		 ORDER BY sequence ASC`,
		entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load event stream: %w", err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}

	if len(events) == 0 {
		return nil, fmt.Errorf("no event stream for entity %s: %w", entityID, domain.ErrNotFound)
	}

	return events, nil
}

func (s *eventStore) LoadStreamUpTo(ctx context.Context, entityID, eventID uuid.UUID) ([]domain.ContentEvent, error) {
	events, err := s.LoadStream(ctx, entityID)
	if err != nil {
		return nil, err
	}

	for i, event := range events {
		if event.ID == eventID {
			return events[:i+1], nil
		}
	}

	return nil, fmt.Errorf("event %s not in stream of entity %s: %w", eventID, entityID, domain.ErrNotFound)
}

func scanEvents(rows pgx.Rows) ([]domain.ContentEvent, error) {
	var events []domain.ContentEvent
	for rows.Next() {
		var (
			event       domain.ContentEvent
			eventType   string
			payloadJSON []byte
			status      pgtype.Text
			sensitivity pgtype.Text
		)
		if err := rows.Scan(
			&event.ID,
			&event.EntityID,
			&event.Sequence,
			&eventType,
			&event.ContentType,
			&payloadJSON,
			&status,
			&sensitivity,
			&event.ActorID,
			&event.OccurredAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		event.Type = domain.EventType(eventType)
		if status.Valid {
			event.Status = domain.ContentStatus(status.String)
		}
		if sensitivity.Valid {
			event.Sensitivity = domain.Sensitivity(sensitivity.String)
		}

		payload, err := domain.FromJSONBPayload(payloadJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to decode payload for event %s: %w", event.ID, err)
		}
		if len(payload) > 0 {
			event.Payload = payload
		}

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}

	return events, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
