// Package history reconstructs prior content versions from the event log and
// rolls documents back by appending new events.
package history

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rpattn/contentcore/internal/domain"
	"github.com/rpattn/contentcore/internal/repository"
)

// Service derives revision history from event streams. Rollback is a
// forward-moving operation: it appends a new Updated event carrying an old
// payload and never deletes or rewrites history.
type Service struct {
	events    repository.EventStore
	documents repository.DocumentRepository
	logger    zerolog.Logger
}

// NewService creates a history service.
func NewService(events repository.EventStore, documents repository.DocumentRepository, logger zerolog.Logger) *Service {
	return &Service{
		events:    events,
		documents: documents,
		logger:    logger.With().Str("component", "history").Logger(),
	}
}

// History returns the entity's replayable revisions in stream order. Pure
// status transitions carry no payload and are omitted.
func (s *Service) History(ctx context.Context, entityID uuid.UUID) ([]domain.Revision, error) {
	events, err := s.events.LoadStream(ctx, entityID)
	if err != nil {
		return nil, err
	}

	revisions := make([]domain.Revision, 0, len(events))
	for _, event := range events {
		if !event.HasPayload() {
			continue
		}
		revisions = append(revisions, domain.Revision{
			EventID:    event.ID,
			Sequence:   event.Sequence,
			Type:       event.Type,
			Data:       event.Payload,
			ActorID:    event.ActorID,
			OccurredAt: event.OccurredAt,
		})
	}

	return revisions, nil
}

// Rollback restores the payload of a prior event as the entity's new current
// state. The target must carry a replayable payload; a pure StatusChanged
// event is rejected rather than silently ignored.
func (s *Service) Rollback(ctx context.Context, entityID, targetEventID, actorID uuid.UUID) (domain.ContentDocument, error) {
	events, err := s.events.LoadStream(ctx, entityID)
	if err != nil {
		return domain.ContentDocument{}, err
	}

	var target *domain.ContentEvent
	for i := range events {
		if events[i].ID == targetEventID {
			target = &events[i]
			break
		}
	}
	if target == nil {
		return domain.ContentDocument{}, fmt.Errorf("rollback target %s not in stream of entity %s: %w", targetEventID, entityID, domain.ErrNotFound)
	}
	if !target.HasPayload() {
		return domain.ContentDocument{}, fmt.Errorf("event %s of type %s carries no replayable payload: %w", target.ID, target.Type, domain.ErrUnsupportedOperation)
	}

	lastSequence := events[len(events)-1].Sequence
	rollbackEvent := domain.NewUpdatedEvent(entityID, target.ContentType, target.Payload, actorID)

	appended, err := s.events.Append(ctx, rollbackEvent, &lastSequence)
	if err != nil {
		return domain.ContentDocument{}, fmt.Errorf("failed to append rollback event: %w", err)
	}

	doc, err := domain.ReplayEvents(append(events, appended))
	if err != nil {
		return domain.ContentDocument{}, err
	}

	if err := s.documents.Save(ctx, doc); err != nil {
		return domain.ContentDocument{}, fmt.Errorf("failed to save rolled back document: %w", err)
	}

	s.logger.Info().
		Stringer("entity", entityID).
		Stringer("target_event", targetEventID).
		Int64("new_sequence", appended.Sequence).
		Msg("rolled back")

	return doc, nil
}

// Diff renders a unified diff between two revisions of an entity. Each side
// is reconstructed by replaying the stream up to the revision's event.
func (s *Service) Diff(ctx context.Context, entityID, baseEventID, targetEventID uuid.UUID) (string, error) {
	base, err := s.snapshotAt(ctx, entityID, baseEventID)
	if err != nil {
		return "", err
	}
	target, err := s.snapshotAt(ctx, entityID, targetEventID)
	if err != nil {
		return "", err
	}

	return domain.DiffRevisionSnapshots(baseEventID.String(), &base, targetEventID.String(), &target)
}

func (s *Service) snapshotAt(ctx context.Context, entityID, eventID uuid.UUID) (domain.RevisionSnapshot, error) {
	prefix, err := s.events.LoadStreamUpTo(ctx, entityID, eventID)
	if err != nil {
		return domain.RevisionSnapshot{}, err
	}

	doc, err := domain.ReplayEvents(prefix)
	if err != nil {
		return domain.RevisionSnapshot{}, err
	}

	return domain.NewSnapshotFromDocument(doc), nil
}
