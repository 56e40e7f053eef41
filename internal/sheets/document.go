// Package sheets reads and writes the worksheets of a spreadsheet document.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrWorksheetNotFound is returned when a worksheet title is unknown
var ErrWorksheetNotFound = errors.New("worksheet not found")

// Document is one spreadsheet. Worksheets are addressed by title, rows and
// columns are 1-based like in the spreadsheet UI.
type Document interface {
	Title(ctx context.Context) (string, error)
	Rows(ctx context.Context, worksheet string) ([][]string, error)
	EnsureWorksheet(ctx context.Context, worksheet string, header []string) (created bool, err error)
	AppendRow(ctx context.Context, worksheet string, cells []string) error
	UpdateCell(ctx context.Context, worksheet string, row, col int, value string) error
}

// Opener opens documents by their URL
type Opener interface {
	Open(ctx context.Context, url string) (Document, error)
}

var spreadsheetIDRe = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)

// SpreadsheetID extracts the document id from a spreadsheet URL
func SpreadsheetID(url string) (string, error) {
	m := spreadsheetIDRe.FindStringSubmatch(url)
	if m == nil {
		return "", fmt.Errorf("not a spreadsheet url: %q", url)
	}
	return m[1], nil
}

// ColumnName converts a 1-based column index to its letter name (1 -> A, 27 -> AA)
func ColumnName(col int) string {
	var name []byte
	for col > 0 {
		col--
		name = append([]byte{byte('A' + col%26)}, name...)
		col /= 26
	}
	return string(name)
}

// CellRange builds an A1 reference such as 'sheet name'!F3
func CellRange(worksheet string, row, col int) string {
	return fmt.Sprintf("%s!%s%d", quoteTitle(worksheet), ColumnName(col), row)
}

func quoteTitle(worksheet string) string {
	return "'" + strings.ReplaceAll(worksheet, "'", "''") + "'"
}
