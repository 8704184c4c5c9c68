package workflow

import (
	"testing"

	"github.com/google/uuid"

	"github.com/rpattn/contentcore/internal/domain"
)

func TestResolveParametersReservedVariables(t *testing.T) {
	doc := domain.ContentDocument{
		ID:          uuid.New(),
		ContentType: "article",
		Status:      domain.StatusArchived,
		Sensitivity: domain.SensitivitySensitive,
		Data:        map[string]any{"title": "Hello"},
	}

	params := map[string]string{
		"Subject": "{{contentType}} {{id}}",
		"Body":    "status={{status}} sensitivity={{sensitivity}}",
	}

	resolved := ResolveParameters(params, doc)
	if got, want := resolved["Subject"], "article "+doc.ID.String(); got != want {
		t.Errorf("Subject = %q, want %q", got, want)
	}
	if got, want := resolved["Body"], "status=Archived sensitivity=Sensitive"; got != want {
		t.Errorf("Body = %q, want %q", got, want)
	}
}

func TestResolveParametersDataFields(t *testing.T) {
	doc := domain.ContentDocument{
		ID:   uuid.New(),
		Data: map[string]any{"title": "Hello", "views": 42},
	}

	resolved := ResolveParameters(map[string]string{
		"Body": "{{ title }} had {{views}} views",
	}, doc)

	if got, want := resolved["Body"], "Hello had 42 views"; got != want {
		t.Errorf("Body = %q, want %q", got, want)
	}
}

func TestResolveParametersLeavesUnknownVariables(t *testing.T) {
	doc := domain.ContentDocument{ID: uuid.New(), Data: map[string]any{}}

	resolved := ResolveParameters(map[string]string{"Body": "hi {{missing}}"}, doc)
	if got, want := resolved["Body"], "hi {{missing}}"; got != want {
		t.Errorf("Body = %q, want %q", got, want)
	}
}

func TestResolveParametersEmpty(t *testing.T) {
	resolved := ResolveParameters(nil, domain.ContentDocument{})
	if len(resolved) != 0 {
		t.Errorf("expected empty map, got %v", resolved)
	}
}
