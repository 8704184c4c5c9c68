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

type documentRepository struct {
	pool *pgxpool.Pool
}

// NewDocumentRepository wires a projection store backed by pgxpool.
func NewDocumentRepository(pool *pgxpool.Pool) DocumentRepository {
	return &documentRepository{pool: pool}
}

func (r *documentRepository) Save(ctx context.Context, doc domain.ContentDocument) error {
	dataJSON, err := doc.GetDataAsJSONB()
	if err != nil {
		return fmt.Errorf("failed to marshal document data: %w", err)
	}

	_, err = r.pool.Exec(
		ctx,
		`INSERT INTO content_documents (id, content_type, data, status, sensitivity, version, created_at, updated_at, last_modified_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
			content_type = EXCLUDED.content_type,
			data = EXCLUDED.data,
			status = EXCLUDED.status,
			sensitivity = EXCLUDED.sensitivity,
			version = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at,
			last_modified_by = EXCLUDED.last_modified_by`,
		doc.ID,
		doc.ContentType,
		dataJSON,
		string(doc.Status),
		string(doc.Sensitivity),
		doc.Version,
		doc.CreatedAt,
		doc.UpdatedAt,
		doc.LastModifiedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}

	return nil
}

func (r *documentRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.ContentDocument, error) {
	row := r.pool.QueryRow(
		ctx,
		`SELECT id, content_type, data, status, sensitivity, version, created_at, updated_at, last_modified_by
		 FROM content_documents
		 WHERE id = $1`,
		id,
	)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ContentDocument{}, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
		}
		return domain.ContentDocument{}, fmt.Errorf("failed to get document: %w", err)
	}

	return doc, nil
}

func (r *documentRepository) ListByType(ctx context.Context, contentType string, limit, offset int) ([]domain.ContentDocument, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT id, content_type, data, status, sensitivity, version, created_at, updated_at, last_modified_by
		 FROM content_documents
		 WHERE content_type = $1
		 ORDER BY updated_at DESC
		 LIMIT $2 OFFSET $3`,
		contentType,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs := []domain.ContentDocument{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}

	return docs, nil
}

func (r *documentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM content_documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func scanDocument(row pgx.Row) (domain.ContentDocument, error) {
	var (
		doc         domain.ContentDocument
		dataJSON    []byte
		status      string
		sensitivity string
	)
	if err := row.Scan(
		&doc.ID,
		&doc.ContentType,
		&dataJSON,
		&status,
		&sensitivity,
		&doc.Version,
		&doc.CreatedAt,
		&doc.UpdatedAt,
		&doc.LastModifiedBy,
	); err != nil {
		return domain.ContentDocument{}, err
	}

	doc.Status = domain.ContentStatus(status)
	doc.Sensitivity = domain.Sensitivity(sensitivity)

	data, err := domain.FromJSONBData(dataJSON)
	if err != nil {
		return domain.ContentDocument{}, fmt.Errorf("failed to decode data for document %s: %w", doc.ID, err)
	}
	doc.Data = data

	return doc, nil
}
