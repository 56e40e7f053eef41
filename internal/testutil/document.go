package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"webinar-certs/internal/sheets"
)

// MemoryDocument is an in-memory sheets.Document.
//
// Failures can be injected per operation with FailAppendAt / FailUpdate.
// Thread-safety: all methods are safe for concurrent use.
type MemoryDocument struct {
	mu         sync.Mutex
	title      string
	worksheets map[string][][]string
	order      []string

	appends int
	updates int

	// FailAppendAt makes the n-th AppendRow call (1-based) fail
	FailAppendAt int
	// FailUpdate makes every UpdateCell call fail
	FailUpdate error
}

var _ sheets.Document = (*MemoryDocument)(nil)

// NewMemoryDocument creates an empty document with the given title
func NewMemoryDocument(title string) *MemoryDocument {
	return &MemoryDocument{title: title, worksheets: map[string][][]string{}}
}

// SetRows replaces a worksheet's content, creating it when missing
func (d *MemoryDocument) SetRows(worksheet string, rows [][]string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.worksheets[worksheet]; !ok {
		d.order = append(d.order, worksheet)
	}
	d.worksheets[worksheet] = copyRows(rows)
}

// Appends returns how many rows were appended so far
func (d *MemoryDocument) Appends() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.appends
}

// Updates returns how many cells were updated so far
func (d *MemoryDocument) Updates() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.updates
}

// Dump renders a worksheet as tab separated lines, one per row
func (d *MemoryDocument) Dump(worksheet string) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	var b strings.Builder
	for _, row := range d.worksheets[worksheet] {
		b.WriteString(strings.Join(row, "\t"))
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

func (d *MemoryDocument) Title(context.Context) (string, error) {
	return d.title, nil
}

func (d *MemoryDocument) Rows(_ context.Context, worksheet string) ([][]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rows, ok := d.worksheets[worksheet]
	if !ok {
		return nil, fmt.Errorf("%w: %s", sheets.ErrWorksheetNotFound, worksheet)
	}
	return copyRows(rows), nil
}

func (d *MemoryDocument) EnsureWorksheet(_ context.Context, worksheet string, header []string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.worksheets[worksheet]; ok {
		return false, nil
	}
	d.order = append(d.order, worksheet)
	d.worksheets[worksheet] = nil
	if len(header) > 0 {
		d.worksheets[worksheet] = [][]string{append([]string(nil), header...)}
	}
	return true, nil
}

func (d *MemoryDocument) AppendRow(_ context.Context, worksheet string, cells []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.appends++
	if d.FailAppendAt > 0 && d.appends == d.FailAppendAt {
		return fmt.Errorf("append %d: quota exceeded", d.appends)
	}
	rows, ok := d.worksheets[worksheet]
	if !ok {
		return fmt.Errorf("%w: %s", sheets.ErrWorksheetNotFound, worksheet)
	}
	d.worksheets[worksheet] = append(rows, append([]string(nil), cells...))
	return nil
}

func (d *MemoryDocument) UpdateCell(_ context.Context, worksheet string, row, col int, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.updates++
	if d.FailUpdate != nil {
		return d.FailUpdate
	}
	rows, ok := d.worksheets[worksheet]
	if !ok {
		return fmt.Errorf("%w: %s", sheets.ErrWorksheetNotFound, worksheet)
	}
	if row < 1 || col < 1 {
		return fmt.Errorf("invalid cell %d:%d", row, col)
	}
	for len(rows) < row {
		rows = append(rows, nil)
	}
	for len(rows[row-1]) < col {
		rows[row-1] = append(rows[row-1], "")
	}
	rows[row-1][col-1] = value
	d.worksheets[worksheet] = rows
	return nil
}

func copyRows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}
