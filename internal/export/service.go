// Package export writes a content type's documents to tabular files.
// Documents pass through the normal read path first, so exports only ever
// contain what the requesting user is allowed to see.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/rpattn/contentcore/internal/content"
	"github.com/rpattn/contentcore/internal/domain"
	"github.com/rpattn/contentcore/internal/repository"
)

// Format selects the output encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ErrUnsupportedFormat is returned for formats other than csv and xlsx.
var ErrUnsupportedFormat = errors.New("unsupported export format")

const systemColumns = 4 // id, status, sensitivity, version

// Service streams content documents into tabular files.
type Service struct {
	contents *content.Service
	types    repository.ContentTypeRepository
	pageSize int
	logger   zerolog.Logger
}

// NewService creates an export service.
func NewService(contents *content.Service, types repository.ContentTypeRepository, logger zerolog.Logger) *Service {
	return &Service{
		contents: contents,
		types:    types,
		pageSize: 500,
		logger:   logger.With().Str("component", "export").Logger(),
	}
}

// Export writes all documents of the content type the user may read to w.
// Returns the number of rows written.
func (s *Service) Export(ctx context.Context, user domain.User, contentType string, format Format, w io.Writer) (int, error) {
	definition, err := s.types.GetBySlug(ctx, contentType)
	if err != nil {
		return 0, err
	}

	headers := make([]string, 0, systemColumns+len(definition.Fields))
	headers = append(headers, "id", "status", "sensitivity", "version")
	for _, field := range definition.Fields {
		headers = append(headers, field.Name)
	}

	switch format {
	case FormatCSV:
		return s.exportCSV(ctx, user, definition, headers, w)
	case FormatXLSX:
		return s.exportXLSX(ctx, user, definition, headers, w)
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

func (s *Service) exportCSV(ctx context.Context, user domain.User, definition domain.ContentTypeDefinition, headers []string, w io.Writer) (int, error) {
	csvWriter := csv.NewWriter(w)
	if err := csvWriter.Write(headers); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	rows := 0
	err := s.eachPage(ctx, user, definition.Slug, func(doc domain.ContentDocument) error {
		if err := csvWriter.Write(documentRow(doc, definition.Fields)); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
		rows++
		return nil
	})
	if err != nil {
		return rows, err
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return rows, fmt.Errorf("failed to flush csv: %w", err)
	}
	return rows, nil
}

func (s *Service) exportXLSX(ctx context.Context, user domain.User, definition domain.ContentTypeDefinition, headers []string, w io.Writer) (int, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	writeRow := func(rowNum int, values []string) error {
		cell, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return err
		}
		anyValues := make([]any, len(values))
		for i, v := range values {
			anyValues[i] = v
		}
		return f.SetSheetRow(sheet, cell, &anyValues)
	}

	if err := writeRow(1, headers); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	rows := 0
	err := s.eachPage(ctx, user, definition.Slug, func(doc domain.ContentDocument) error {
		if err := writeRow(rows+2, documentRow(doc, definition.Fields)); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
		rows++
		return nil
	})
	if err != nil {
		return rows, err
	}

	if err := f.Write(w); err != nil {
		return rows, fmt.Errorf("failed to write workbook: %w", err)
	}
	return rows, nil
}

func (s *Service) eachPage(ctx context.Context, user domain.User, slug string, fn func(domain.ContentDocument) error) error {
	offset := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// Terminate on the raw page size, not the visible one: permission
		// filtering can shorten a page that the repository filled.
		docs, rawCount, err := s.contents.PageByType(ctx, user, slug, s.pageSize, offset)
		if err != nil {
			return err
		}
		for _, doc := range docs {
			if err := fn(doc); err != nil {
				return err
			}
		}
		if rawCount < s.pageSize {
			return nil
		}
		offset += s.pageSize
	}
}

func documentRow(doc domain.ContentDocument, fields []domain.FieldDefinition) []string {
	row := make([]string, 0, systemColumns+len(fields))
	row = append(row,
		doc.ID.String(),
		string(doc.Status),
		string(doc.Sensitivity),
		fmt.Sprintf("%d", doc.Version),
	)
	for _, field := range fields {
		row = append(row, formatValue(doc.Data[field.Name]))
	}
	return row
}

// FileName builds a safe attachment name for the export.
func FileName(contentType string, format Format) string {
	base := sanitizeFileComponent(contentType)
	if base == "" {
		base = "content"
	}
	return fmt.Sprintf("%s-export.%s", base, format)
}

func sanitizeFileComponent(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	builder := strings.Builder{}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-' || r == '_':
			builder.WriteRune(r)
		default:
			builder.WriteRune('-')
		}
	}
	return strings.Trim(builder.String(), "-")
}

func formatValue(value any) string {
	if value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case bool:
		if v {
			return "true"
		}
		return "false"
	case json.Number:
		return v.String()
	case []byte:
		return string(v)
	case map[string]any, []any:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	default:
		return fmt.Sprintf("%v", v)
	}
}
