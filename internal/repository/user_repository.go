package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpattn/contentcore/internal/domain"
)

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository wires a user and group repository backed by pgxpool.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) Create(ctx context.Context, user domain.User) (domain.User, error) {
	_, err := r.pool.Exec(
		ctx,
		`INSERT INTO users (id, username, email, password_hash, role_ids, group_ids, failed_login_attempts, lockout_until, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.RoleIDs,
		user.GroupIDs,
		user.FailedLoginAttempts,
		user.LockoutUntil,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		var pgErr interface{ SQLState() string }
		if errors.As(err, &pgErr) && pgErr.SQLState() == uniqueViolation {
			return domain.User{}, fmt.Errorf("username or email already in use: %w", domain.ErrValidationFailed)
		}
		return domain.User{}, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	row := r.pool.QueryRow(
		ctx,
		`SELECT id, username, email, password_hash, role_ids, group_ids, failed_login_attempts, lockout_until, created_at, updated_at
		 FROM users WHERE id = $1`,
		id,
	)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
		}
		return domain.User{}, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	row := r.pool.QueryRow(
		ctx,
		`SELECT id, username, email, password_hash, role_ids, group_ids, failed_login_attempts, lockout_until, created_at, updated_at
		 FROM users WHERE username = $1`,
		username,
	)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, fmt.Errorf("user %q: %w", username, domain.ErrNotFound)
		}
		return domain.User{}, fmt.Errorf("failed to get user by username: %w", err)
	}

	return user, nil
}

func (r *userRepository) CreateGroup(ctx context.Context, group domain.UserGroup) (domain.UserGroup, error) {
	_, err := r.pool.Exec(
		ctx,
		`INSERT INTO user_groups (id, name, member_user_ids, role_ids, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		group.ID,
		group.Name,
		group.MemberUserIDs,
		group.RoleIDs,
		group.CreatedAt,
		group.UpdatedAt,
	)
	if err != nil {
		return domain.UserGroup{}, fmt.Errorf("failed to create group: %w", err)
	}

	return group, nil
}

func (r *userRepository) GetGroupsByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.UserGroup, error) {
	if len(ids) == 0 {
		return []domain.UserGroup{}, nil
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT id, name, member_user_ids, role_ids, created_at, updated_at
		 FROM user_groups WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get groups by IDs: %w", err)
	}
	defer rows.Close()

	return collectGroups(rows)
}

func (r *userRepository) ListGroups(ctx context.Context) ([]domain.UserGroup, error) {
	rows, err := r.pool.Query(
		ctx,
		`SELECT id, name, member_user_ids, role_ids, created_at, updated_at
		 FROM user_groups ORDER BY name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	return collectGroups(rows)
}

func collectGroups(rows pgx.Rows) ([]domain.UserGroup, error) {
	groups := []domain.UserGroup{}
	for rows.Next() {
		var group domain.UserGroup
		if err := rows.Scan(
			&group.ID,
			&group.Name,
			&group.MemberUserIDs,
			&group.RoleIDs,
			&group.CreatedAt,
			&group.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, group)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate groups: %w", err)
	}

	return groups, nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		user         domain.User
		lockoutUntil pgtype.Timestamptz
	)
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.RoleIDs,
		&user.GroupIDs,
		&user.FailedLoginAttempts,
		&lockoutUntil,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return domain.User{}, err
	}

	if lockoutUntil.Valid {
		t := lockoutUntil.Time
		user.LockoutUntil = &t
	}

	return user, nil
}
