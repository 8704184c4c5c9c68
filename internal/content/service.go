// Package content orchestrates the write and read paths: events in, projected
// documents out, with permission, validation, idempotency and workflow
// dispatch around them.
package content

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rpattn/contentcore/internal/authz"
	"github.com/rpattn/contentcore/internal/domain"
	"github.com/rpattn/contentcore/internal/repository"
	schemavalidator "github.com/rpattn/contentcore/internal/schema/validator"
	"github.com/rpattn/contentcore/internal/sensitivity"
	"github.com/rpattn/contentcore/internal/workflow"
	"github.com/rpattn/contentcore/pkg/validator"
)

// Service is the entry point for content reads and writes.
type Service struct {
	events      repository.EventStore
	documents   repository.DocumentRepository
	types       repository.ContentTypeRepository
	idempotency repository.IdempotencyStore
	authorizer  *authz.Resolver
	filter      *sensitivity.Filter
	workflows   *workflow.Engine
	validator   *validator.DataValidator
	logger      zerolog.Logger
}

// NewService creates a content service.
func NewService(
	events repository.EventStore,
	documents repository.DocumentRepository,
	types repository.ContentTypeRepository,
	idempotency repository.IdempotencyStore,
	authorizer *authz.Resolver,
	filter *sensitivity.Filter,
	workflows *workflow.Engine,
	logger zerolog.Logger,
) *Service {
	return &Service{
		events:      events,
		documents:   documents,
		types:       types,
		idempotency: idempotency,
		authorizer:  authorizer,
		filter:      filter,
		workflows:   workflows,
		validator:   validator.NewDataValidator(),
		logger:      logger.With().Str("component", "content").Logger(),
	}
}

// CreateRequest describes a content creation.
type CreateRequest struct {
	ContentType    string
	Data           map[string]any
	Status         domain.ContentStatus
	Sensitivity    domain.Sensitivity
	IdempotencyKey string
}

// UpdateRequest describes a partial content update. Data keys overwrite the
// document's keys wholesale. ExpectedVersion, when non-nil, must match the
// document's last event sequence or the write fails with
// domain.ErrConcurrencyConflict.
type UpdateRequest struct {
	EntityID        uuid.UUID
	Data            map[string]any
	ExpectedVersion *int64
	IdempotencyKey  string
}

// Create validates, authorizes and appends a Created event, then projects
// and stores the new document.
func (s *Service) Create(ctx context.Context, user domain.User, req CreateRequest) (domain.ContentDocument, error) {
	definition, err := s.types.GetBySlug(ctx, req.ContentType)
	if err != nil {
		return domain.ContentDocument{}, err
	}

	if result := s.validator.ValidateData(req.Data, definition.Fields); !result.IsValid {
		return domain.ContentDocument{}, fmt.Errorf("%s: %w", strings.Join(result.Messages(), "; "), domain.ErrValidationFailed)
	}

	allowed, err := s.authorizer.CanPerformAction(ctx, user, definition.Slug, domain.ActionCreate, nil)
	if err != nil {
		return domain.ContentDocument{}, err
	}
	if !allowed {
		return domain.ContentDocument{}, fmt.Errorf("user %s may not create %s: %w", user.ID, definition.Slug, domain.ErrForbidden)
	}

	if req.IdempotencyKey != "" {
		if err := s.idempotency.Claim(ctx, req.IdempotencyKey); err != nil {
			return domain.ContentDocument{}, err
		}
	}

	event := domain.NewCreatedEvent(uuid.New(), definition.Slug, req.Data, req.Status, req.Sensitivity, user.ID)
	appended, err := s.events.Append(ctx, event, nil)
	if err != nil {
		s.releaseClaim(ctx, req.IdempotencyKey)
		return domain.ContentDocument{}, err
	}

	doc, err := domain.ApplyEvent(domain.ContentDocument{}, appended)
	if err != nil {
		return domain.ContentDocument{}, err
	}
	if err := s.documents.Save(ctx, doc); err != nil {
		return domain.ContentDocument{}, err
	}

	s.dispatch(ctx, appended, doc)
	return doc, nil
}

// Update merges new data into an existing document via an Updated event.
func (s *Service) Update(ctx context.Context, user domain.User, req UpdateRequest) (domain.ContentDocument, error) {
	doc, err := s.documents.GetByID(ctx, req.EntityID)
	if err != nil {
		return domain.ContentDocument{}, err
	}

	definition, err := s.types.GetBySlug(ctx, doc.ContentType)
	if err != nil {
		return domain.ContentDocument{}, err
	}

	merged := make(map[string]any, len(doc.Data)+len(req.Data))
	for k, v := range doc.Data {
		merged[k] = v
	}
	for k, v := range req.Data {
		merged[k] = v
	}
	if result := s.validator.ValidateData(merged, definition.Fields); !result.IsValid {
		return domain.ContentDocument{}, fmt.Errorf("%s: %w", strings.Join(result.Messages(), "; "), domain.ErrValidationFailed)
	}

	allowed, err := s.authorizer.CanPerformAction(ctx, user, doc.ContentType, domain.ActionUpdate, &doc)
	if err != nil {
		return domain.ContentDocument{}, err
	}
	if !allowed {
		return domain.ContentDocument{}, fmt.Errorf("user %s may not update %s: %w", user.ID, doc.ID, domain.ErrForbidden)
	}

	if req.IdempotencyKey != "" {
		if err := s.idempotency.Claim(ctx, req.IdempotencyKey); err != nil {
			return domain.ContentDocument{}, err
		}
	}

	// The append is fenced on the version this update was computed from, so
	// a racing writer surfaces as a conflict instead of a lost update.
	expected := doc.Version
	if req.ExpectedVersion != nil {
		expected = *req.ExpectedVersion
	}

	event := domain.NewUpdatedEvent(doc.ID, doc.ContentType, req.Data, user.ID)
	appended, err := s.events.Append(ctx, event, &expected)
	if err != nil {
		s.releaseClaim(ctx, req.IdempotencyKey)
		return domain.ContentDocument{}, err
	}

	next, err := domain.ApplyEvent(doc, appended)
	if err != nil {
		return domain.ContentDocument{}, err
	}
	if err := s.documents.Save(ctx, next); err != nil {
		return domain.ContentDocument{}, err
	}

	s.dispatch(ctx, appended, next)
	return next, nil
}

// ChangeStatus appends a StatusChanged event. Data is untouched.
func (s *Service) ChangeStatus(ctx context.Context, user domain.User, entityID uuid.UUID, status domain.ContentStatus) (domain.ContentDocument, error) {
	if !status.Valid() {
		return domain.ContentDocument{}, fmt.Errorf("unknown status %q: %w", status, domain.ErrValidationFailed)
	}

	doc, err := s.documents.GetByID(ctx, entityID)
	if err != nil {
		return domain.ContentDocument{}, err
	}

	allowed, err := s.authorizer.CanPerformAction(ctx, user, doc.ContentType, domain.ActionUpdate, &doc)
	if err != nil {
		return domain.ContentDocument{}, err
	}
	if !allowed {
		return domain.ContentDocument{}, fmt.Errorf("user %s may not update %s: %w", user.ID, doc.ID, domain.ErrForbidden)
	}

	expected := doc.Version
	event := domain.NewStatusChangedEvent(doc.ID, doc.ContentType, status, user.ID)
	appended, err := s.events.Append(ctx, event, &expected)
	if err != nil {
		return domain.ContentDocument{}, err
	}

	next, err := domain.ApplyEvent(doc, appended)
	if err != nil {
		return domain.ContentDocument{}, err
	}
	if err := s.documents.Save(ctx, next); err != nil {
		return domain.ContentDocument{}, err
	}

	s.dispatch(ctx, appended, next)
	return next, nil
}

// Get loads a document, authorizes the read and applies sensitivity
// redaction.
func (s *Service) Get(ctx context.Context, user domain.User, entityID uuid.UUID) (domain.ContentDocument, error) {
	doc, err := s.documents.GetByID(ctx, entityID)
	if err != nil {
		return domain.ContentDocument{}, err
	}

	allowed, err := s.authorizer.CanPerformAction(ctx, user, doc.ContentType, domain.ActionRead, &doc)
	if err != nil {
		return domain.ContentDocument{}, err
	}
	if !allowed {
		return domain.ContentDocument{}, fmt.Errorf("user %s may not read %s: %w", user.ID, doc.ID, domain.ErrForbidden)
	}

	return s.redact(ctx, user, doc)
}

// ListByType returns the redacted documents of one content type the caller
// may read. Documents whose grants deny the caller are skipped, not errors.
func (s *Service) ListByType(ctx context.Context, user domain.User, contentType string, limit, offset int) ([]domain.ContentDocument, error) {
	docs, _, err := s.PageByType(ctx, user, contentType, limit, offset)
	return docs, err
}

// PageByType is ListByType plus the size of the underlying repository page
// before permission filtering. Paging callers must advance and terminate on
// the raw size: a filtered page can be shorter than the limit while later
// pages still hold documents.
func (s *Service) PageByType(ctx context.Context, user domain.User, contentType string, limit, offset int) ([]domain.ContentDocument, int, error) {
	slug := domain.NormalizeSlug(contentType)
	docs, err := s.documents.ListByType(ctx, slug, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	visible := make([]domain.ContentDocument, 0, len(docs))
	for _, doc := range docs {
		allowed, err := s.authorizer.CanPerformAction(ctx, user, doc.ContentType, domain.ActionRead, &doc)
		if err != nil {
			return nil, 0, err
		}
		if !allowed {
			continue
		}
		redacted, err := s.redact(ctx, user, doc)
		if err != nil {
			return nil, 0, err
		}
		visible = append(visible, redacted)
	}

	return visible, len(docs), nil
}

// Rebuild replays the entity's full event stream and stores the resulting
// projection, restoring the stream/document equivalence after any drift.
// The caller needs the update grant on the replayed document.
func (s *Service) Rebuild(ctx context.Context, user domain.User, entityID uuid.UUID) (domain.ContentDocument, error) {
	events, err := s.events.LoadStream(ctx, entityID)
	if err != nil {
		return domain.ContentDocument{}, err
	}

	doc, err := domain.ReplayEvents(events)
	if err != nil {
		return domain.ContentDocument{}, err
	}

	allowed, err := s.authorizer.CanPerformAction(ctx, user, doc.ContentType, domain.ActionUpdate, &doc)
	if err != nil {
		return domain.ContentDocument{}, err
	}
	if !allowed {
		return domain.ContentDocument{}, fmt.Errorf("user %s may not rebuild %s: %w", user.ID, doc.ID, domain.ErrForbidden)
	}

	if err := s.documents.Save(ctx, doc); err != nil {
		return domain.ContentDocument{}, err
	}

	return doc, nil
}

// CreateContentType registers a new content type definition.
func (s *Service) CreateContentType(ctx context.Context, slug, displayName string, fields []domain.FieldDefinition, policies []domain.FieldPolicy) (domain.ContentTypeDefinition, error) {
	normalized, err := schemavalidator.ValidateSlug(slug)
	if err != nil {
		return domain.ContentTypeDefinition{}, err
	}
	if err := schemavalidator.ValidateFields(fields); err != nil {
		return domain.ContentTypeDefinition{}, err
	}
	if err := schemavalidator.ValidatePolicies(policies, fields); err != nil {
		return domain.ContentTypeDefinition{}, err
	}

	definition := domain.NewContentType(normalized, displayName, fields)
	if len(policies) > 0 {
		definition = definition.WithFieldPolicies(policies)
	}

	return s.types.Create(ctx, definition)
}

func (s *Service) redact(ctx context.Context, user domain.User, doc domain.ContentDocument) (domain.ContentDocument, error) {
	roles, err := s.authorizer.EffectiveRoles(ctx, user)
	if err != nil {
		return domain.ContentDocument{}, err
	}

	// Redaction fails closed: if the field policies can't be loaded, the
	// document is not served. Only a genuinely absent definition means
	// there are no policies to apply.
	var policies []domain.FieldPolicy
	definition, err := s.types.GetBySlug(ctx, doc.ContentType)
	switch {
	case err == nil:
		policies = definition.FieldPolicies
	case errors.Is(err, domain.ErrNotFound):
	default:
		return domain.ContentDocument{}, fmt.Errorf("failed to load field policies for %s: %w", doc.ContentType, err)
	}

	return s.filter.Apply(doc, policies, roles), nil
}

// releaseClaim frees an idempotency key after an append that wrote nothing,
// so the caller's retry isn't rejected as a duplicate.
func (s *Service) releaseClaim(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.idempotency.Release(ctx, key); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to release idempotency key")
	}
}

// dispatch hands the event to the workflow engine without blocking the
// response path. The context is detached so a disconnecting caller doesn't
// cancel action execution or execution-log persistence mid-cycle.
func (s *Service) dispatch(ctx context.Context, event domain.ContentEvent, doc domain.ContentDocument) {
	if s.workflows == nil {
		return
	}

	detached := context.WithoutCancel(ctx)
	go func() {
		if _, err := s.workflows.ProcessEvent(detached, doc.ContentType, event.Type, doc); err != nil {
			s.logger.Error().Err(err).
				Stringer("entity", doc.ID).
				Str("event", string(event.Type)).
				Msg("workflow dispatch failed")
		}
	}()
}
