// Package ingestion imports tabular files (CSV, XLSX) as content documents.
package ingestion

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/rpattn/contentcore/internal/content"
	"github.com/rpattn/contentcore/internal/domain"
	"github.com/rpattn/contentcore/internal/repository"
)

var (
	// ErrUnsupportedFormat is returned when an uploaded file is not supported.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

	timeLayouts = []string{
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02",
		"2006-01-02 15:04:05",
		"2006/01/02",
		"01/02/2006",
		"02/01/2006",
	}
)

// Service imports tabular data into an existing content type.
type Service struct {
	types    repository.ContentTypeRepository
	contents *content.Service
	logs     repository.ImportLogRepository
	logger   zerolog.Logger
}

// NewService creates a new import service.
func NewService(
	types repository.ContentTypeRepository,
	contents *content.Service,
	logs repository.ImportLogRepository,
	logger zerolog.Logger,
) *Service {
	return &Service{
		types:    types,
		contents: contents,
		logs:     logs,
		logger:   logger.With().Str("component", "ingestion").Logger(),
	}
}

// Request describes the import input. Rows become individual documents of
// the named content type, each created via the normal write path so
// validation, permissions and workflows all apply.
type Request struct {
	ContentType    string
	FileName       string
	HeaderRowIndex *int
	Status         domain.ContentStatus
	Sensitivity    domain.Sensitivity
	Data           io.Reader
}

// Summary returns import level metrics.
type Summary struct {
	TotalRows    int `json:"totalRows"`
	ImportedRows int `json:"importedRows"`
	InvalidRows  int `json:"invalidRows"`
}

type tableData struct {
	headers        []string
	rows           [][]string
	headerRowIndex int
}

// Import reads the uploaded file and creates one document per valid row.
// Row-level failures are recorded in the import log and skipped; the caller
// lacking create permission on the content type aborts the whole import.
func (s *Service) Import(ctx context.Context, user domain.User, req Request) (Summary, error) {
	var summary Summary

	if strings.TrimSpace(req.ContentType) == "" {
		return summary, fmt.Errorf("content type is required: %w", domain.ErrValidationFailed)
	}
	if req.Data == nil {
		return summary, fmt.Errorf("data reader is required: %w", domain.ErrValidationFailed)
	}

	definition, err := s.types.GetBySlug(ctx, req.ContentType)
	if err != nil {
		return summary, err
	}

	payload, err := io.ReadAll(req.Data)
	if err != nil {
		return summary, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(payload) == 0 {
		return summary, fmt.Errorf("file is empty: %w", domain.ErrValidationFailed)
	}

	table, err := parseTable(req.FileName, payload, req.HeaderRowIndex)
	if err != nil {
		return summary, err
	}
	if len(table.headers) == 0 {
		return summary, fmt.Errorf("no header row detected: %w", domain.ErrValidationFailed)
	}

	fieldMap := make(map[string]domain.FieldDefinition, len(definition.Fields))
	for _, field := range definition.Fields {
		fieldMap[field.Name] = field
	}

	summary.TotalRows = len(table.rows)

	for rowIdx, row := range table.rows {
		rowNumber := table.headerRowIndex + rowIdx + 2 // include header row (1-based)

		data, rowErr := s.buildRow(table.headers, row, fieldMap)
		if rowErr != nil {
			s.recordRowError(ctx, req, &rowNumber, rowErr)
			summary.InvalidRows++
			continue
		}

		_, createErr := s.contents.Create(ctx, user, content.CreateRequest{
			ContentType: definition.Slug,
			Data:        data,
			Status:      req.Status,
			Sensitivity: req.Sensitivity,
		})
		if createErr != nil {
			if errors.Is(createErr, domain.ErrForbidden) {
				return summary, createErr
			}
			s.recordRowError(ctx, req, &rowNumber, createErr)
			summary.InvalidRows++
			continue
		}

		summary.ImportedRows++
	}

	s.logger.Info().
		Str("content_type", definition.Slug).
		Str("file", req.FileName).
		Int("total", summary.TotalRows).
		Int("imported", summary.ImportedRows).
		Int("invalid", summary.InvalidRows).
		Msg("import finished")

	return summary, nil
}

// Logs returns the most recent import failures for a content type.
func (s *Service) Logs(ctx context.Context, contentType string, limit int) ([]domain.ImportLogEntry, error) {
	return s.logs.List(ctx, domain.NormalizeSlug(contentType), limit, 0)
}

func (s *Service) buildRow(headers []string, row []string, fieldMap map[string]domain.FieldDefinition) (map[string]any, error) {
	data := make(map[string]any)

	for colIdx, header := range headers {
		if colIdx >= len(row) {
			continue
		}

		fieldDef, ok := fieldMap[header]
		if !ok {
			// Column not part of the content type; skip silently.
			continue
		}

		raw := strings.TrimSpace(row[colIdx])
		if raw == "" {
			continue
		}

		coerced, err := coerceValue(fieldDef.Type, raw)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", header, err)
		}
		data[fieldDef.Name] = coerced
	}

	return data, nil
}

func parseTable(fileName string, payload []byte, headerRowIndex *int) (tableData, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv":
		return parseCSV(payload, headerRowIndex)
	case ".xlsx":
		return parseExcel(payload, headerRowIndex)
	default:
		return tableData{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

func parseCSV(payload []byte, headerRowIndex *int) (tableData, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return tableData{}, fmt.Errorf("failed to read csv: %w", err)
	}

	return normalizeTable(records, headerRowIndex)
}

func parseExcel(payload []byte, headerRowIndex *int) (tableData, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return tableData{}, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return tableData{}, errors.New("excel file has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return tableData{}, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}

	return normalizeTable(rows, headerRowIndex)
}

func normalizeTable(records [][]string, headerRowIndex *int) (tableData, error) {
	if len(records) == 0 {
		return tableData{}, errors.New("no rows found in file")
	}

	var headerRow []string
	var dataRows [][]string
	headerIndex := -1

	if headerRowIndex != nil {
		if *headerRowIndex < 0 || *headerRowIndex >= len(records) {
			return tableData{}, fmt.Errorf("header row index %d out of range", *headerRowIndex)
		}
		if len(cleanRow(records[*headerRowIndex])) == 0 {
			return tableData{}, fmt.Errorf("selected header row %d is empty", *headerRowIndex+1)
		}
		headerRow = records[*headerRowIndex]
		headerIndex = *headerRowIndex
		for idx := *headerRowIndex + 1; idx < len(records); idx++ {
			if len(cleanRow(records[idx])) == 0 {
				continue
			}
			dataRows = append(dataRows, records[idx])
		}
	} else {
		for idx, row := range records {
			if len(cleanRow(row)) == 0 {
				continue
			}
			if headerRow == nil {
				headerRow = row
				headerIndex = idx
				continue
			}
			dataRows = append(dataRows, row)
		}
	}

	if headerRow == nil {
		return tableData{}, errors.New("header row could not be detected")
	}

	headers := sanitizeHeaders(headerRow)

	for i := range dataRows {
		dataRows[i] = padRow(dataRows[i], len(headers))
	}

	return tableData{
		headers:        headers,
		rows:           dataRows,
		headerRowIndex: headerIndex,
	}, nil
}

func cleanRow(row []string) []string {
	var cleaned []string
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			cleaned = append(cleaned, cell)
		}
	}
	return cleaned
}

func sanitizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	seen := make(map[string]int)

	for idx, value := range raw {
		name := strings.TrimSpace(value)
		name = strings.ReplaceAll(name, " ", "_")
		name = strings.ReplaceAll(name, ".", "_")
		name = strings.ReplaceAll(name, "-", "_")
		name = strings.Trim(name, "_")
		if name == "" {
			name = fmt.Sprintf("column_%d", idx+1)
		}

		base := name
		count := seen[base]
		if count > 0 {
			name = fmt.Sprintf("%s_%d", base, count+1)
		}
		seen[base] = count + 1

		headers[idx] = name
	}

	return headers
}

func padRow(row []string, length int) []string {
	if len(row) >= length {
		return row[:length]
	}
	padded := make([]string, length)
	copy(padded, row)
	return padded
}

func coerceValue(fieldType domain.FieldType, raw string) (any, error) {
	switch fieldType {
	case domain.FieldTypeString:
		return raw, nil
	case domain.FieldTypeInteger:
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return i, nil
		}
		if f, err := strconv.ParseFloat(raw, 64); err == nil && math.Mod(f, 1) == 0 {
			return int64(f), nil
		}
		return nil, fmt.Errorf("unable to coerce %q to integer", raw)
	case domain.FieldTypeFloat:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f, nil
		}
		return nil, fmt.Errorf("unable to coerce %q to float", raw)
	case domain.FieldTypeBoolean:
		value := strings.ToLower(strings.TrimSpace(raw))
		switch value {
		case "1", "yes", "y":
			return true, nil
		case "0", "no", "n":
			return false, nil
		}
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("unable to coerce %q to boolean", raw)
		}
		return boolVal, nil
	case domain.FieldTypeTimestamp:
		ts, err := parseTimestamp(raw)
		if err != nil {
			return nil, fmt.Errorf("unable to coerce %q to timestamp: %w", raw, err)
		}
		return ts.Format(time.RFC3339), nil
	case domain.FieldTypeJSON:
		var out any
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			return nil, fmt.Errorf("invalid json payload: %w", err)
		}
		return out, nil
	default:
		return raw, nil
	}
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format")
}

func (s *Service) recordRowError(ctx context.Context, req Request, rowNumber *int, err error) {
	if s.logs == nil || err == nil {
		return
	}
	entry := domain.ImportLogEntry{
		ContentType:  domain.NormalizeSlug(req.ContentType),
		FileName:     req.FileName,
		RowNumber:    rowNumber,
		ErrorMessage: err.Error(),
	}
	if recordErr := s.logs.Record(ctx, entry); recordErr != nil {
		s.logger.Warn().Err(recordErr).Msg("failed to record import error")
	}
}
