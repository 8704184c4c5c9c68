package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/contentcore/internal/domain"
)

type stubUserRepo struct {
	users map[uuid.UUID]domain.User
}

func (s *stubUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	s.users[user.ID] = user
	return user, nil
}

func (s *stubUserRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	user, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return user, nil
}

func (s *stubUserRepo) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	return domain.User{}, domain.ErrNotFound
}

func (s *stubUserRepo) CreateGroup(ctx context.Context, group domain.UserGroup) (domain.UserGroup, error) {
	return group, nil
}

func (s *stubUserRepo) GetGroupsByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.UserGroup, error) {
	return nil, nil
}

func (s *stubUserRepo) ListGroups(ctx context.Context) ([]domain.UserGroup, error) {
	return nil, nil
}

func runMiddleware(t *testing.T, repo *stubUserRepo, header string) (*httptest.ResponseRecorder, *domain.User) {
	t.Helper()

	var seen *domain.User
	handler := Middleware(repo)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, ok := UserFromContext(r.Context()); ok {
			seen = &user
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/content", nil)
	if header != "" {
		req.Header.Set(UserHeader, header)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, seen
}

func TestMiddlewareAttachesUser(t *testing.T) {
	user := domain.User{ID: uuid.New(), Username: "alice"}
	repo := &stubUserRepo{users: map[uuid.UUID]domain.User{user.ID: user}}

	rec, seen := runMiddleware(t, repo, user.ID.String())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if seen == nil || seen.ID != user.ID {
		t.Fatalf("handler did not receive the user")
	}
}

func TestMiddlewareAnonymousPassthrough(t *testing.T) {
	repo := &stubUserRepo{users: map[uuid.UUID]domain.User{}}

	rec, seen := runMiddleware(t, repo, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if seen != nil {
		t.Fatalf("anonymous request must not carry a user")
	}
}

func TestMiddlewareRejectsMalformedID(t *testing.T) {
	repo := &stubUserRepo{users: map[uuid.UUID]domain.User{}}

	rec, _ := runMiddleware(t, repo, "not-a-uuid")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestMiddlewareRejectsUnknownUser(t *testing.T) {
	repo := &stubUserRepo{users: map[uuid.UUID]domain.User{}}

	rec, _ := runMiddleware(t, repo, uuid.New().String())
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestMiddlewareRejectsLockedAccount(t *testing.T) {
	until := time.Now().Add(time.Hour)
	user := domain.User{ID: uuid.New(), Username: "bob", LockoutUntil: &until}
	repo := &stubUserRepo{users: map[uuid.UUID]domain.User{user.ID: user}}

	rec, _ := runMiddleware(t, repo, user.ID.String())
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestRequireUser(t *testing.T) {
	if _, err := RequireUser(context.Background()); err == nil {
		t.Fatal("expected error for missing user")
	}

	user := domain.User{ID: uuid.New()}
	ctx := ContextWithUser(context.Background(), user)
	got, err := RequireUser(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("wrong user returned")
	}
}
