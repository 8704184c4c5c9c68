package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpattn/contentcore/internal/domain"
)

type roleRepository struct {
	pool *pgxpool.Pool
}

// NewRoleRepository wires a role repository backed by pgxpool.
func NewRoleRepository(pool *pgxpool.Pool) RoleRepository {
	return &roleRepository{pool: pool}
}

func (r *roleRepository) Create(ctx context.Context, role domain.Role) (domain.Role, error) {
	permissionsJSON, err := role.GetPermissionsAsJSONB()
	if err != nil {
		return domain.Role{}, fmt.Errorf("failed to marshal permissions: %w", err)
	}

	_, err = r.pool.Exec(
		ctx,
		`INSERT INTO roles (id, name, permissions, system_capabilities, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		role.ID,
		role.Name,
		permissionsJSON,
		role.SystemCapabilities,
		role.CreatedAt,
		role.UpdatedAt,
	)
	if err != nil {
		return domain.Role{}, fmt.Errorf("failed to create role: %w", err)
	}

	return role, nil
}

func (r *roleRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Role, error) {
	row := r.pool.QueryRow(
		ctx,
		`SELECT id, name, permissions, system_capabilities, created_at, updated_at
		 FROM roles WHERE id = $1`,
		id,
	)

	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Role{}, fmt.Errorf("role %s: %w", id, domain.ErrNotFound)
		}
		return domain.Role{}, fmt.Errorf("failed to get role: %w", err)
	}

	return role, nil
}

func (r *roleRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Role, error) {
	if len(ids) == 0 {
		return []domain.Role{}, nil
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT id, name, permissions, system_capabilities, created_at, updated_at
		 FROM roles WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get roles by IDs: %w", err)
	}
	defer rows.Close()

	return collectRoles(rows)
}

func (r *roleRepository) GetByName(ctx context.Context, name string) (domain.Role, error) {
	row := r.pool.QueryRow(
		ctx,
		`SELECT id, name, permissions, system_capabilities, created_at, updated_at
		 FROM roles WHERE name = $1`,
		name,
	)

	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Role{}, fmt.Errorf("role %q: %w", name, domain.ErrNotFound)
		}
		return domain.Role{}, fmt.Errorf("failed to get role by name: %w", err)
	}

	return role, nil
}

func (r *roleRepository) List(ctx context.Context) ([]domain.Role, error) {
	rows, err := r.pool.Query(
		ctx,
		`SELECT id, name, permissions, system_capabilities, created_at, updated_at
		 FROM roles ORDER BY name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	return collectRoles(rows)
}

func collectRoles(rows pgx.Rows) ([]domain.Role, error) {
	roles := []domain.Role{}
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate roles: %w", err)
	}

	return roles, nil
}

func scanRole(row pgx.Row) (domain.Role, error) {
	var (
		role            domain.Role
		permissionsJSON []byte
	)
	if err := row.Scan(
		&role.ID,
		&role.Name,
		&permissionsJSON,
		&role.SystemCapabilities,
		&role.CreatedAt,
		&role.UpdatedAt,
	); err != nil {
		return domain.Role{}, err
	}

	permissions, err := domain.FromJSONBPermissions(permissionsJSON)
	if err != nil {
		return domain.Role{}, fmt.Errorf("failed to decode permissions for role %s: %w", role.Name, err)
	}
	role.Permissions = permissions

	return role, nil
}
