package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/contentcore/internal/domain"
	"github.com/rpattn/contentcore/internal/repository"
)

// UserHeader names the request header carrying the caller's user id. The
// service trusts an upstream gateway to have authenticated the request.
const UserHeader = "X-User-ID"

// Middleware loads the caller named by the user header and attaches it to
// the request context. Requests without the header pass through anonymous;
// handlers that need a user reject those via RequireUser.
func Middleware(users repository.UserRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(UserHeader))
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			id, err := uuid.Parse(raw)
			if err != nil {
				http.Error(w, "invalid user id", http.StatusUnauthorized)
				return
			}

			user, err := users.GetByID(r.Context(), id)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					http.Error(w, "unknown user", http.StatusUnauthorized)
					return
				}
				http.Error(w, "failed to resolve user", http.StatusInternalServerError)
				return
			}

			if user.IsLockedOut(time.Now()) {
				http.Error(w, "account locked", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}
