package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rpattn/contentcore/internal/domain"
)

type stubWorkflowRepo struct {
	definitions []domain.WorkflowDefinition
	recorded    []domain.WorkflowExecutionLog
	recordErr   error
}

func (s *stubWorkflowRepo) CreateDefinition(ctx context.Context, def domain.WorkflowDefinition) (domain.WorkflowDefinition, error) {
	s.definitions = append(s.definitions, def)
	return def, nil
}

func (s *stubWorkflowRepo) GetDefinition(ctx context.Context, id uuid.UUID) (domain.WorkflowDefinition, error) {
	for _, def := range s.definitions {
		if def.ID == id {
			return def, nil
		}
	}
	return domain.WorkflowDefinition{}, domain.ErrNotFound
}

func (s *stubWorkflowRepo) ListByTrigger(ctx context.Context, contentType string, event domain.EventType) ([]domain.WorkflowDefinition, error) {
	var out []domain.WorkflowDefinition
	for _, def := range s.definitions {
		if def.TriggerContentType == contentType && def.TriggerEvent == event {
			out = append(out, def)
		}
	}
	return out, nil
}

func (s *stubWorkflowRepo) RecordExecution(ctx context.Context, log domain.WorkflowExecutionLog) error {
	if s.recordErr != nil {
		return s.recordErr
	}
	s.recorded = append(s.recorded, log)
	return nil
}

func (s *stubWorkflowRepo) ListExecutions(ctx context.Context, workflowID uuid.UUID, limit, offset int) ([]domain.WorkflowExecutionLog, error) {
	return s.recorded, nil
}

type recordingSender struct {
	emails []string
	sms    []string
	err    error
}

func (r *recordingSender) SendEmail(ctx context.Context, to, subject, body string) error {
	if r.err != nil {
		return r.err
	}
	r.emails = append(r.emails, fmt.Sprintf("%s|%s|%s", to, subject, body))
	return nil
}

func (r *recordingSender) SendSMS(ctx context.Context, to, message string) error {
	if r.err != nil {
		return r.err
	}
	r.sms = append(r.sms, fmt.Sprintf("%s|%s", to, message))
	return nil
}

func testEngine(t *testing.T, repo *stubWorkflowRepo, sender *recordingSender) *Engine {
	t.Helper()
	registry, err := NewRegistry(NewEmailAction(sender), NewSMSAction(sender))
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}
	return NewEngine(repo, registry, zerolog.New(os.Stderr))
}

func publishedDoc() domain.ContentDocument {
	return domain.ContentDocument{
		ID:          uuid.New(),
		ContentType: "article",
		Status:      domain.StatusPublished,
		Sensitivity: domain.SensitivityPublic,
		Data:        map[string]any{"title": "Launch", "author": "alice@example.com"},
	}
}

func TestProcessEventRunsMatchingWorkflow(t *testing.T) {
	repo := &stubWorkflowRepo{}
	sender := &recordingSender{}
	engine := testEngine(t, repo, sender)

	def := domain.NewWorkflowDefinition("publish-notice", "article", domain.EventStatusChanged,
		map[string]string{domain.StatusConditionKey: "Published"},
		[]domain.WorkflowAction{{
			Type: ActionTypeEmail,
			Parameters: map[string]string{
				"To":      "{{author}}",
				"Subject": "{{title}} published",
				"Body":    "Content {{id}} is now {{status}}",
			},
		}})
	repo.definitions = append(repo.definitions, def)

	doc := publishedDoc()
	logs, err := engine.ProcessEvent(context.Background(), "article", domain.EventStatusChanged, doc)
	if err != nil {
		t.Fatalf("process returned error: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected one execution log, got %d", len(logs))
	}
	if len(sender.emails) != 1 {
		t.Fatalf("expected one email, got %d", len(sender.emails))
	}

	want := fmt.Sprintf("alice@example.com|Launch published|Content %s is now Published", doc.ID)
	if sender.emails[0] != want {
		t.Fatalf("unexpected email:\n got %s\nwant %s", sender.emails[0], want)
	}

	entry := logs[0].Actions[0]
	if !entry.Success || entry.Error != "" {
		t.Fatalf("expected successful action entry, got %+v", entry)
	}
	if len(repo.recorded) != 1 {
		t.Fatalf("execution log must be persisted")
	}
}

func TestProcessEventSkipsNonMatchingConditions(t *testing.T) {
	repo := &stubWorkflowRepo{}
	sender := &recordingSender{}
	engine := testEngine(t, repo, sender)

	def := domain.NewWorkflowDefinition("publish-notice", "article", domain.EventStatusChanged,
		map[string]string{domain.StatusConditionKey: "Published"},
		[]domain.WorkflowAction{{Type: ActionTypeEmail, Parameters: map[string]string{"To": "x@example.com"}}})
	repo.definitions = append(repo.definitions, def)

	doc := publishedDoc()
	doc.Status = domain.StatusDraft

	logs, err := engine.ProcessEvent(context.Background(), "article", domain.EventStatusChanged, doc)
	if err != nil {
		t.Fatalf("process returned error: %v", err)
	}
	if len(logs) != 0 || len(sender.emails) != 0 {
		t.Fatalf("draft document must not trigger the workflow")
	}
}

func TestProcessEventIsolatesActionFailures(t *testing.T) {
	repo := &stubWorkflowRepo{}
	sender := &recordingSender{err: errors.New("smtp unavailable")}
	engine := testEngine(t, repo, sender)

	def := domain.NewWorkflowDefinition("notify", "article", domain.EventCreated, nil,
		[]domain.WorkflowAction{
			{Type: ActionTypeEmail, Parameters: map[string]string{"To": "a@example.com"}},
			{Type: ActionTypeSMS, Parameters: map[string]string{"To": "+15550100", "Message": "hi"}},
		})
	repo.definitions = append(repo.definitions, def)

	logs, err := engine.ProcessEvent(context.Background(), "article", domain.EventCreated, publishedDoc())
	if err != nil {
		t.Fatalf("action failures must not fail the cycle: %v", err)
	}
	if len(logs) != 1 || len(logs[0].Actions) != 2 {
		t.Fatalf("expected both actions evaluated, got %+v", logs)
	}
	for _, entry := range logs[0].Actions {
		if entry.Success || entry.Error == "" {
			t.Fatalf("expected failure entries, got %+v", entry)
		}
	}
}

func TestProcessEventReportsUnknownActionType(t *testing.T) {
	repo := &stubWorkflowRepo{}
	sender := &recordingSender{}
	engine := testEngine(t, repo, sender)

	def := domain.NewWorkflowDefinition("webhookish", "article", domain.EventCreated, nil,
		[]domain.WorkflowAction{{Type: "Webhook", Parameters: map[string]string{"URL": "http://x"}}})
	repo.definitions = append(repo.definitions, def)

	logs, err := engine.ProcessEvent(context.Background(), "article", domain.EventCreated, publishedDoc())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entry := logs[0].Actions[0]
	if entry.Success || entry.Error == "" {
		t.Fatalf("unknown action type must surface as a failed entry, got %+v", entry)
	}
}

func TestDryRunSuppressesSideEffects(t *testing.T) {
	repo := &stubWorkflowRepo{}
	sender := &recordingSender{}
	engine := testEngine(t, repo, sender)

	def := domain.NewWorkflowDefinition("notify", "article", domain.EventCreated, nil,
		[]domain.WorkflowAction{{Type: ActionTypeEmail, Parameters: map[string]string{"To": "{{author}}"}}})
	repo.definitions = append(repo.definitions, def)

	logs, err := engine.DryRun(context.Background(), "article", domain.EventCreated, publishedDoc())
	if err != nil {
		t.Fatalf("dry run returned error: %v", err)
	}
	if len(sender.emails) != 0 {
		t.Fatalf("dry run must not send email")
	}
	if len(logs) != 1 || !logs[0].DryRun {
		t.Fatalf("expected dry-run log, got %+v", logs)
	}
	entry := logs[0].Actions[0]
	if !entry.Success {
		t.Fatalf("dry run entries report success, got %+v", entry)
	}
	if entry.ResolvedParameters["To"] != "alice@example.com" {
		t.Fatalf("dry run still resolves templates, got %v", entry.ResolvedParameters)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	sender := &recordingSender{}
	if _, err := NewRegistry(NewEmailAction(sender), NewEmailAction(sender)); err == nil {
		t.Fatalf("duplicate action types must be rejected")
	}
}
