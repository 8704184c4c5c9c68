package content

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rpattn/contentcore/internal/authz"
	"github.com/rpattn/contentcore/internal/domain"
	"github.com/rpattn/contentcore/internal/sensitivity"
)

type stubEventStore struct {
	streams map[uuid.UUID][]domain.ContentEvent
}

func newStubEventStore() *stubEventStore {
	return &stubEventStore{streams: make(map[uuid.UUID][]domain.ContentEvent)}
}

func (s *stubEventStore) Append(ctx context.Context, event domain.ContentEvent, expectedSequence *int64) (domain.ContentEvent, error) {
	stream := s.streams[event.EntityID]
	var last int64
	if len(stream) > 0 {
		last = stream[len(stream)-1].Sequence
	}
	if expectedSequence != nil && *expectedSequence != last {
		return domain.ContentEvent{}, domain.ErrConcurrencyConflict
	}
	event.Sequence = last + 1
	s.streams[event.EntityID] = append(stream, event)
	return event, nil
}

func (s *stubEventStore) LoadStream(ctx context.Context, entityID uuid.UUID) ([]domain.ContentEvent, error) {
	stream, ok := s.streams[entityID]
	if !ok || len(stream) == 0 {
		return nil, domain.ErrNotFound
	}
	out := make([]domain.ContentEvent, len(stream))
	copy(out, stream)
	return out, nil
}

func (s *stubEventStore) LoadStreamUpTo(ctx context.Context, entityID, eventID uuid.UUID) ([]domain.ContentEvent, error) {
	stream, err := s.LoadStream(ctx, entityID)
	if err != nil {
		return nil, err
	}
	for i, event := range stream {
		if event.ID == eventID {
			return stream[:i+1], nil
		}
	}
	return nil, domain.ErrNotFound
}

type stubDocumentRepo struct {
	docs map[uuid.UUID]domain.ContentDocument
}

func newStubDocumentRepo() *stubDocumentRepo {
	return &stubDocumentRepo{docs: make(map[uuid.UUID]domain.ContentDocument)}
}

func (s *stubDocumentRepo) Save(ctx context.Context, doc domain.ContentDocument) error {
	s.docs[doc.ID] = doc
	return nil
}

func (s *stubDocumentRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.ContentDocument, error) {
	doc, ok := s.docs[id]
	if !ok {
		return domain.ContentDocument{}, domain.ErrNotFound
	}
	return doc, nil
}

func (s *stubDocumentRepo) ListByType(ctx context.Context, contentType string, limit, offset int) ([]domain.ContentDocument, error) {
	var out []domain.ContentDocument
	for _, doc := range s.docs {
		if doc.ContentType == contentType {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (s *stubDocumentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(s.docs, id)
	return nil
}

type stubTypeRepo struct {
	definitions map[string]domain.ContentTypeDefinition
	err         error
}

func newStubTypeRepo(definitions ...domain.ContentTypeDefinition) *stubTypeRepo {
	r := &stubTypeRepo{definitions: make(map[string]domain.ContentTypeDefinition)}
	for _, def := range definitions {
		r.definitions[def.Slug] = def
	}
	return r
}

func (s *stubTypeRepo) Create(ctx context.Context, definition domain.ContentTypeDefinition) (domain.ContentTypeDefinition, error) {
	s.definitions[definition.Slug] = definition
	return definition, nil
}

func (s *stubTypeRepo) GetBySlug(ctx context.Context, slug string) (domain.ContentTypeDefinition, error) {
	if s.err != nil {
		return domain.ContentTypeDefinition{}, s.err
	}
	def, ok := s.definitions[slug]
	if !ok {
		return domain.ContentTypeDefinition{}, domain.ErrNotFound
	}
	return def, nil
}

func (s *stubTypeRepo) List(ctx context.Context) ([]domain.ContentTypeDefinition, error) {
	var out []domain.ContentTypeDefinition
	for _, def := range s.definitions {
		out = append(out, def)
	}
	return out, nil
}

func (s *stubTypeRepo) Update(ctx context.Context, definition domain.ContentTypeDefinition) (domain.ContentTypeDefinition, error) {
	s.definitions[definition.Slug] = definition
	return definition, nil
}

type stubIdempotencyStore struct {
	claimed map[string]bool
}

func newStubIdempotencyStore() *stubIdempotencyStore {
	return &stubIdempotencyStore{claimed: make(map[string]bool)}
}

func (s *stubIdempotencyStore) Claim(ctx context.Context, key string) error {
	if s.claimed[key] {
		return domain.ErrDuplicateRequest
	}
	s.claimed[key] = true
	return nil
}

func (s *stubIdempotencyStore) Release(ctx context.Context, key string) error {
	delete(s.claimed, key)
	return nil
}

func (s *stubIdempotencyStore) PurgeOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	return 0, nil
}

type stubRoleRepo struct {
	roles map[uuid.UUID]domain.Role
}

func (s *stubRoleRepo) Create(ctx context.Context, role domain.Role) (domain.Role, error) {
	s.roles[role.ID] = role
	return role, nil
}

func (s *stubRoleRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Role, error) {
	role, ok := s.roles[id]
	if !ok {
		return domain.Role{}, domain.ErrNotFound
	}
	return role, nil
}

func (s *stubRoleRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Role, error) {
	var out []domain.Role
	for _, id := range ids {
		if role, ok := s.roles[id]; ok {
			out = append(out, role)
		}
	}
	return out, nil
}

func (s *stubRoleRepo) GetByName(ctx context.Context, name string) (domain.Role, error) {
	for _, role := range s.roles {
		if role.Name == name {
			return role, nil
		}
	}
	return domain.Role{}, domain.ErrNotFound
}

func (s *stubRoleRepo) List(ctx context.Context) ([]domain.Role, error) {
	var out []domain.Role
	for _, role := range s.roles {
		out = append(out, role)
	}
	return out, nil
}

type stubUserRepo struct {
	groups map[uuid.UUID]domain.UserGroup
}

func (s *stubUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	return user, nil
}

func (s *stubUserRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	return domain.User{}, domain.ErrNotFound
}

func (s *stubUserRepo) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	return domain.User{}, domain.ErrNotFound
}

func (s *stubUserRepo) CreateGroup(ctx context.Context, group domain.UserGroup) (domain.UserGroup, error) {
	s.groups[group.ID] = group
	return group, nil
}

func (s *stubUserRepo) GetGroupsByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.UserGroup, error) {
	var out []domain.UserGroup
	for _, id := range ids {
		if group, ok := s.groups[id]; ok {
			out = append(out, group)
		}
	}
	return out, nil
}

func (s *stubUserRepo) ListGroups(ctx context.Context) ([]domain.UserGroup, error) {
	return nil, nil
}

// fixture bundles a service wired to in-memory stubs plus a user allowed to
// create, read and update articles.
type fixture struct {
	service *Service
	events  *stubEventStore
	docs    *stubDocumentRepo
	types   *stubTypeRepo
	roles   *stubRoleRepo
	user    domain.User
}

// userWithRole registers the role and returns a fresh user holding only it.
func (f *fixture) userWithRole(role domain.Role) domain.User {
	f.roles.roles[role.ID] = role
	return domain.User{ID: uuid.New(), Username: "other", RoleIDs: []uuid.UUID{role.ID}}
}

func articleType() domain.ContentTypeDefinition {
	return domain.NewContentType("article", "Article", []domain.FieldDefinition{
		{Name: "title", Type: domain.FieldTypeString, Required: true},
		{Name: "body", Type: domain.FieldTypeString},
		{Name: "salary", Type: domain.FieldTypeInteger},
		{Name: "author_id", Type: domain.FieldTypeString},
	})
}

func editorRole() domain.Role {
	grant := domain.ActionGrant{Enabled: true}
	return domain.NewRole("editor", []domain.ContentTypePermission{{
		ContentTypeSlug: "article",
		Create:          grant,
		Read:            grant,
		Update:          grant,
	}}, nil)
}

func newFixture(t *testing.T, roles ...domain.Role) *fixture {
	t.Helper()

	if len(roles) == 0 {
		roles = []domain.Role{editorRole()}
	}
	roleRepo := &stubRoleRepo{roles: make(map[uuid.UUID]domain.Role)}
	roleIDs := make([]uuid.UUID, 0, len(roles))
	for _, role := range roles {
		roleRepo.roles[role.ID] = role
		roleIDs = append(roleIDs, role.ID)
	}

	logger := zerolog.New(os.Stderr)
	events := newStubEventStore()
	docs := newStubDocumentRepo()
	types := newStubTypeRepo(articleType())
	resolver := authz.NewResolver(roleRepo, &stubUserRepo{groups: make(map[uuid.UUID]domain.UserGroup)}, logger)

	svc := NewService(events, docs, types, newStubIdempotencyStore(), resolver, sensitivity.New(), nil, logger)

	return &fixture{
		service: svc,
		events:  events,
		docs:    docs,
		types:   types,
		roles:   roleRepo,
		user:    domain.User{ID: uuid.New(), Username: "alice", RoleIDs: roleIDs},
	}
}

func TestCreateProjectsDocument(t *testing.T) {
	f := newFixture(t)

	doc, err := f.service.Create(context.Background(), f.user, CreateRequest{
		ContentType: "article",
		Data:        map[string]any{"title": "Hello"},
	})
	if err != nil {
		t.Fatalf("create returned error: %v", err)
	}
	if doc.Version != 1 {
		t.Errorf("version = %d, want 1", doc.Version)
	}
	if doc.Status != domain.StatusDraft {
		t.Errorf("status = %s, want Draft default", doc.Status)
	}
	if doc.Data["title"] != "Hello" {
		t.Errorf("data not projected: %v", doc.Data)
	}
	if len(f.events.streams[doc.ID]) != 1 {
		t.Errorf("expected one appended event")
	}
	if _, ok := f.docs.docs[doc.ID]; !ok {
		t.Errorf("projection not saved")
	}
}

func TestCreateUnknownContentType(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Create(context.Background(), f.user, CreateRequest{
		ContentType: "missing",
		Data:        map[string]any{"title": "x"},
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateValidationFailure(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Create(context.Background(), f.user, CreateRequest{
		ContentType: "article",
		Data:        map[string]any{"body": "missing required title"},
	})
	if !errors.Is(err, domain.ErrValidationFailed) {
		t.Fatalf("expected ErrValidationFailed, got %v", err)
	}
}

func TestCreateDeniedWithoutGrant(t *testing.T) {
	f := newFixture(t, domain.NewRole("viewer", []domain.ContentTypePermission{{
		ContentTypeSlug: "article",
		Read:            domain.ActionGrant{Enabled: true},
	}}, nil))

	_, err := f.service.Create(context.Background(), f.user, CreateRequest{
		ContentType: "article",
		Data:        map[string]any{"title": "x"},
	})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if len(f.events.streams) != 0 {
		t.Errorf("denied create must not append events")
	}
}

func TestCreateIdempotencyKeyReplayed(t *testing.T) {
	f := newFixture(t)

	req := CreateRequest{
		ContentType:    "article",
		Data:           map[string]any{"title": "once"},
		IdempotencyKey: "req-1",
	}
	if _, err := f.service.Create(context.Background(), f.user, req); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	_, err := f.service.Create(context.Background(), f.user, req)
	if !errors.Is(err, domain.ErrDuplicateRequest) {
		t.Fatalf("expected ErrDuplicateRequest, got %v", err)
	}
	if len(f.events.streams) != 1 {
		t.Errorf("replayed request must not append a second event")
	}
}

func TestUpdateMergesAndBumpsVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, err := f.service.Create(ctx, f.user, CreateRequest{
		ContentType: "article",
		Data:        map[string]any{"title": "v1", "body": "keep"},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	updated, err := f.service.Update(ctx, f.user, UpdateRequest{
		EntityID: doc.ID,
		Data:     map[string]any{"title": "v2"},
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("version = %d, want 2", updated.Version)
	}
	if updated.Data["title"] != "v2" || updated.Data["body"] != "keep" {
		t.Errorf("merge wrong: %v", updated.Data)
	}
}

func TestUpdateStaleVersionConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, err := f.service.Create(ctx, f.user, CreateRequest{
		ContentType: "article",
		Data:        map[string]any{"title": "v1"},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := f.service.Update(ctx, f.user, UpdateRequest{
		EntityID: doc.ID,
		Data:     map[string]any{"title": "v2"},
	}); err != nil {
		t.Fatalf("first update failed: %v", err)
	}

	stale := int64(1)
	_, err = f.service.Update(ctx, f.user, UpdateRequest{
		EntityID:        doc.ID,
		Data:            map[string]any{"title": "v3"},
		ExpectedVersion: &stale,
	})
	if !errors.Is(err, domain.ErrConcurrencyConflict) {
		t.Fatalf("expected ErrConcurrencyConflict, got %v", err)
	}
}

func TestChangeStatusRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.ChangeStatus(context.Background(), f.user, uuid.New(), "Gone")
	if !errors.Is(err, domain.ErrValidationFailed) {
		t.Fatalf("expected ErrValidationFailed, got %v", err)
	}
}

func TestChangeStatusAppendsEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, err := f.service.Create(ctx, f.user, CreateRequest{
		ContentType: "article",
		Data:        map[string]any{"title": "v1"},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	next, err := f.service.ChangeStatus(ctx, f.user, doc.ID, domain.StatusPublished)
	if err != nil {
		t.Fatalf("change status failed: %v", err)
	}
	if next.Status != domain.StatusPublished {
		t.Errorf("status = %s, want Published", next.Status)
	}
	if next.Data["title"] != "v1" {
		t.Errorf("status change must not touch data: %v", next.Data)
	}
	if next.Version != 2 {
		t.Errorf("version = %d, want 2", next.Version)
	}
}

func TestGetAppliesFieldPolicies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	def := articleType().WithFieldPolicies([]domain.FieldPolicy{
		{Field: "salary", Action: domain.PolicyMask, AllowedRoles: []string{"hr"}},
	})
	if _, err := f.types.Update(ctx, def); err != nil {
		t.Fatalf("failed to update type: %v", err)
	}

	doc, err := f.service.Create(ctx, f.user, CreateRequest{
		ContentType: "article",
		Data:        map[string]any{"title": "t", "salary": 90000},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, err := f.service.Get(ctx, f.user, doc.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Data["salary"] != "***" {
		t.Errorf("salary = %v, want masked", got.Data["salary"])
	}
	if got.Data["title"] != "t" {
		t.Errorf("unguarded field must survive: %v", got.Data)
	}
}

func TestGetHiddenDocumentIsObscured(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, err := f.service.Create(ctx, f.user, CreateRequest{
		ContentType: "article",
		Data:        map[string]any{"title": "secret"},
		Sensitivity: domain.SensitivityHidden,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, err := f.service.Get(ctx, f.user, doc.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.ContentType != "HIDDEN" {
		t.Errorf("content type = %s, want HIDDEN", got.ContentType)
	}
	if len(got.Data) != 0 {
		t.Errorf("hidden document must expose no data: %v", got.Data)
	}
}

func TestListByTypeSkipsDeniedDocuments(t *testing.T) {
	grant := domain.ActionGrant{Enabled: true}
	ownOnly := domain.NewRole("author", []domain.ContentTypePermission{{
		ContentTypeSlug: "article",
		Create:          grant,
		Read: domain.ActionGrant{
			Enabled:    true,
			Conditions: map[string]string{"author_id": "$CURRENT_USER"},
		},
	}}, nil)
	f := newFixture(t, ownOnly)
	ctx := context.Background()

	mine, err := f.service.Create(ctx, f.user, CreateRequest{
		ContentType: "article",
		Data:        map[string]any{"title": "mine", "author_id": f.user.ID.String()},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := f.service.Create(ctx, f.user, CreateRequest{
		ContentType: "article",
		Data:        map[string]any{"title": "theirs", "author_id": uuid.New().String()},
	}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	docs, err := f.service.ListByType(ctx, f.user, "article", 50, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != mine.ID {
		t.Fatalf("expected only the caller's own document, got %d", len(docs))
	}
}

func TestRebuildReplaysFullStream(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, err := f.service.Create(ctx, f.user, CreateRequest{
		ContentType: "article",
		Data:        map[string]any{"title": "v1"},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := f.service.Update(ctx, f.user, UpdateRequest{
		EntityID: doc.ID,
		Data:     map[string]any{"title": "v2"},
	}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	// Corrupt the projection, then rebuild it from the stream.
	broken := f.docs.docs[doc.ID]
	broken.Data = map[string]any{"title": "drifted"}
	f.docs.docs[doc.ID] = broken

	rebuilt, err := f.service.Rebuild(ctx, f.user, doc.ID)
	if err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}
	if rebuilt.Data["title"] != "v2" || rebuilt.Version != 2 {
		t.Errorf("rebuild wrong: %+v", rebuilt)
	}
}

func TestCreateContentTypeValidatesSlug(t *testing.T) {
	f := newFixture(t)

	created, err := f.service.CreateContentType(context.Background(), "Press Release", "Press Release", []domain.FieldDefinition{
		{Name: "headline", Type: domain.FieldTypeString, Required: true},
	}, nil)
	if err != nil {
		t.Fatalf("create content type failed: %v", err)
	}
	if created.Slug != "press-release" {
		t.Errorf("slug = %s, want press-release", created.Slug)
	}
}

func TestGetFailsClosedWhenPolicyLookupFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	def := articleType().WithFieldPolicies([]domain.FieldPolicy{
		{Field: "salary", Action: domain.PolicyRemove, AllowedRoles: []string{"hr"}},
	})
	if _, err := f.types.Update(ctx, def); err != nil {
		t.Fatalf("failed to update type: %v", err)
	}

	doc, err := f.service.Create(ctx, f.user, CreateRequest{
		ContentType: "article",
		Data:        map[string]any{"title": "t", "salary": 90000},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	f.types.err = errors.New("connection reset by peer")

	if _, err := f.service.Get(ctx, f.user, doc.ID); err == nil {
		t.Fatal("policy lookup failure must fail the read, not skip redaction")
	}
}

func TestFailedAppendReleasesIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, err := f.service.Create(ctx, f.user, CreateRequest{
		ContentType: "article",
		Data:        map[string]any{"title": "v1"},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	stale := int64(0)
	req := UpdateRequest{
		EntityID:        doc.ID,
		Data:            map[string]any{"title": "v2"},
		ExpectedVersion: &stale,
		IdempotencyKey:  "upd-1",
	}
	if _, err := f.service.Update(ctx, f.user, req); !errors.Is(err, domain.ErrConcurrencyConflict) {
		t.Fatalf("expected ErrConcurrencyConflict, got %v", err)
	}

	// The conflicting attempt wrote nothing, so its key must be reusable.
	req.ExpectedVersion = nil
	updated, err := f.service.Update(ctx, f.user, req)
	if err != nil {
		t.Fatalf("retry after conflict failed: %v", err)
	}
	if updated.Data["title"] != "v2" {
		t.Errorf("retry did not apply: %v", updated.Data)
	}
}

func TestRebuildRequiresUpdateGrant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, err := f.service.Create(ctx, f.user, CreateRequest{
		ContentType: "article",
		Data:        map[string]any{"title": "v1"},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	viewer := f.userWithRole(domain.NewRole("viewer", []domain.ContentTypePermission{{
		ContentTypeSlug: "article",
		Read:            domain.ActionGrant{Enabled: true},
	}}, nil))

	if _, err := f.service.Rebuild(ctx, viewer, doc.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}
