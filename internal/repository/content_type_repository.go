package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpattn/contentcore/internal/domain"
)

type contentTypeRepository struct {
	pool *pgxpool.Pool
}

// NewContentTypeRepository wires a content type repository backed by pgxpool.
func NewContentTypeRepository(pool *pgxpool.Pool) ContentTypeRepository {
	return &contentTypeRepository{pool: pool}
}

func (r *contentTypeRepository) Create(ctx context.Context, definition domain.ContentTypeDefinition) (domain.ContentTypeDefinition, error) {
	fieldsJSON, err := definition.GetFieldsAsJSONB()
	if err != nil {
		return domain.ContentTypeDefinition{}, fmt.Errorf("failed to marshal fields: %w", err)
	}
	policiesJSON, err := definition.GetFieldPoliciesAsJSONB()
	if err != nil {
		return domain.ContentTypeDefinition{}, fmt.Errorf("failed to marshal field policies: %w", err)
	}

	_, err = r.pool.Exec(
		ctx,
		`INSERT INTO content_types (id, slug, display_name, fields, field_policies, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		definition.ID,
		definition.Slug,
		definition.DisplayName,
		fieldsJSON,
		policiesJSON,
		definition.CreatedAt,
		definition.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ContentTypeDefinition{}, fmt.Errorf(
				"content type slug %q already exists: %w", definition.Slug, domain.ErrValidationFailed,
			)
		}
		return domain.ContentTypeDefinition{}, fmt.Errorf("failed to create content type: %w", err)
	}

	return definition, nil
}

func (r *contentTypeRepository) GetBySlug(ctx context.Context, slug string) (domain.ContentTypeDefinition, error) {
	row := r.pool.QueryRow(
		ctx,
		`SELECT id, slug, display_name, fields, field_policies, created_at, updated_at
		 FROM content_types
		 WHERE slug = $1`,
		domain.NormalizeSlug(slug),
	)

	definition, err := scanContentType(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ContentTypeDefinition{}, fmt.Errorf("content type %q: %w", slug, domain.ErrNotFound)
		}
		return domain.ContentTypeDefinition{}, fmt.Errorf("failed to get content type: %w", err)
	}

	return definition, nil
}

func (r *contentTypeRepository) List(ctx context.Context) ([]domain.ContentTypeDefinition, error) {
	rows, err := r.pool.Query(
		ctx,
		`SELECT id, slug, display_name, fields, field_policies, created_at, updated_at
		 FROM content_types
		 ORDER BY slug ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list content types: %w", err)
	}
	defer rows.Close()

	definitions := []domain.ContentTypeDefinition{}
	for rows.Next() {
		definition, err := scanContentType(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan content type: %w", err)
		}
		definitions = append(definitions, definition)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate content types: %w", err)
	}

	return definitions, nil
}

func (r *contentTypeRepository) Update(ctx context.Context, definition domain.ContentTypeDefinition) (domain.ContentTypeDefinition, error) {
	fieldsJSON, err := definition.GetFieldsAsJSONB()
	if err != nil {
		return domain.ContentTypeDefinition{}, fmt.Errorf("failed to marshal fields: %w", err)
	}
	policiesJSON, err := definition.GetFieldPoliciesAsJSONB()
	if err != nil {
		return domain.ContentTypeDefinition{}, fmt.Errorf("failed to marshal field policies: %w", err)
	}

	tag, err := r.pool.Exec(
		ctx,
		`UPDATE content_types
		 SET display_name = $2, fields = $3, field_policies = $4, updated_at = NOW()
		 WHERE id = $1`,
		definition.ID,
		definition.DisplayName,
		fieldsJSON,
		policiesJSON,
	)
	if err != nil {
		return domain.ContentTypeDefinition{}, fmt.Errorf("failed to update content type: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ContentTypeDefinition{}, fmt.Errorf("content type %s: %w", definition.ID, domain.ErrNotFound)
	}

	return definition, nil
}

func scanContentType(row pgx.Row) (domain.ContentTypeDefinition, error) {
	var (
		definition   domain.ContentTypeDefinition
		fieldsJSON   []byte
		policiesJSON []byte
	)
	if err := row.Scan(
		&definition.ID,
		&definition.Slug,
		&definition.DisplayName,
		&fieldsJSON,
		&policiesJSON,
		&definition.CreatedAt,
		&definition.UpdatedAt,
	); err != nil {
		return domain.ContentTypeDefinition{}, err
	}

	fields, err := domain.FromJSONBFields(fieldsJSON)
	if err != nil {
		return domain.ContentTypeDefinition{}, fmt.Errorf("failed to decode fields for content type %s: %w", definition.Slug, err)
	}
	definition.Fields = fields

	policies, err := domain.FromJSONBFieldPolicies(policiesJSON)
	if err != nil {
		return domain.ContentTypeDefinition{}, fmt.Errorf("failed to decode field policies for content type %s: %w", definition.Slug, err)
	}
	definition.FieldPolicies = policies

	return definition, nil
}
