package intake

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"feedbackbot/internal/domain"
)

// InputError means the uploaded table cannot feed a pipeline run. The run is
// never started.
type InputError struct {
	Msg string
	Err error
}

func (e *InputError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *InputError) Unwrap() error { return e.Err }

func inputErrorf(err error, format string, args ...any) *InputError {
	return &InputError{Msg: fmt.Sprintf(format, args...), Err: err}
}

// Table is a parsed CSV: a header row plus data rows.
type Table struct {
	header []string
	rows   [][]string
}

// ReadTable parses a CSV with a header row. Rows shorter or longer than the
// header are accepted; missing cells read as empty.
func ReadTable(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, inputErrorf(nil, "the file is empty")
	}
	if err != nil {
		return nil, inputErrorf(err, "could not read CSV header")
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows [][]string
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, inputErrorf(err, "could not read CSV row %d", len(rows)+2)
		}
		rows = append(rows, rec)
	}
	return &Table{header: header, rows: rows}, nil
}

func (t *Table) Columns() []string {
	out := make([]string, len(t.header))
	copy(out, t.header)
	return out
}

func (t *Table) RowCount() int {
	return len(t.rows)
}

// Column returns every cell of the named column in row order. An exact header
// match wins; otherwise a case-insensitive trimmed match is accepted.
func (t *Table) Column(name string) ([]string, error) {
	idx := t.columnIndex(name)
	if idx < 0 {
		return nil, inputErrorf(nil, "column %q not found (available: %s)", name, strings.Join(t.header, ", "))
	}
	values := make([]string, len(t.rows))
	for i, row := range t.rows {
		if idx < len(row) {
			values[i] = row[idx]
		}
	}
	return values, nil
}

func (t *Table) columnIndex(name string) int {
	for i, h := range t.header {
		if h == name {
			return i
		}
	}
	want := strings.ToLower(strings.TrimSpace(name))
	if want == "" {
		return -1
	}
	for i, h := range t.header {
		if strings.ToLower(h) == want {
			return i
		}
	}
	return -1
}

// FeedbackColumn reads the named column and drops empty cells.
func (t *Table) FeedbackColumn(name string) ([]domain.FeedbackItem, error) {
	values, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	items := DropEmpty(values)
	if len(items) == 0 {
		return nil, inputErrorf(nil, "column %q has no non-empty feedback", name)
	}
	return items, nil
}

// DropEmpty removes empty and whitespace-only values. Non-empty values are
// kept verbatim.
func DropEmpty(values []string) []domain.FeedbackItem {
	items := make([]domain.FeedbackItem, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		items = append(items, domain.FeedbackItem(v))
	}
	return items
}
