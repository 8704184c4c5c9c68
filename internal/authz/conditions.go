package authz

import (
	"github.com/google/uuid"

	"github.com/rpattn/contentcore/internal/domain"
)

// CurrentUserToken is the only special value a grant condition may carry; it
// substitutes the caller's user id before comparison. This evaluator is
// deliberately minimal: exact string equality, no expression language.
const CurrentUserToken = "$CURRENT_USER"

// evaluateConditions checks every condition of a grant against the content
// item (logical AND). Conditions that need a content item are inapplicable
// without one and fail closed rather than holding vacuously.
func evaluateConditions(conditions map[string]string, userID uuid.UUID, content *domain.ContentDocument) bool {
	if len(conditions) == 0 {
		return true
	}
	if content == nil {
		return false
	}

	for field, want := range conditions {
		if want == CurrentUserToken {
			want = userID.String()
		}
		value, ok := content.Data[field]
		if !ok {
			return false
		}
		if domain.StringValue(value) != want {
			return false
		}
	}

	return true
}
