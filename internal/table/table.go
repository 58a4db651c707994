// Package table reads uploaded CSV/TSV/XLSX files into a plain header + rows
// grid. It performs no type inference; that belongs to the analysis package.
package table

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Table is one sheet of raw tabular data. Every row is padded to len(Header)
// and every cell is trimmed of surrounding whitespace.
type Table struct {
	Name     string
	Header   []string
	Rows     [][]string
	Warnings []string
	// Total counts data rows seen in the source, including those skipped by MaxRows.
	Total int
}

// LoadOptions controls how a source file is read.
type LoadOptions struct {
	// Delimiter for CSV. If 0, sniffs from the file extension.
	Delimiter rune
	// SheetName selects an XLSX sheet (case-insensitive). Takes precedence over SheetIndex.
	SheetName string
	// SheetIndex is the 1-based XLSX sheet position; <= 0 means the first sheet.
	SheetIndex int
	// MaxRows limits data rows kept; 0 means unlimited.
	MaxRows int
}

// Loader reads a single tabular format.
type Loader interface {
	CanLoad(filename string) bool
	Load(name string, r io.Reader, opt LoadOptions) (*Table, error)
}

var registry []Loader

// Register adds a loader implementation to the registry.
func Register(l Loader) {
	registry = append(registry, l)
}

// ErrUnsupported indicates a format is not supported.
var ErrUnsupported = errors.New("unsupported table format")

// Load selects a loader by filename and reads the table from r.
func Load(name string, r io.Reader, opt LoadOptions) (*Table, error) {
	for _, l := range registry {
		if l.CanLoad(name) {
			t, err := l.Load(name, r, opt)
			if err != nil {
				return nil, err
			}
			t.Name = filepath.Base(name)
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: %s (use .csv, .tsv or .xlsx)", ErrUnsupported, filepath.Base(name))
}

// LoadFile opens path and reads it with Load.
func LoadFile(path string, opt LoadOptions) (*Table, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return Load(path, bytes.NewReader(b), opt)
}

// Index returns the position of the column with exactly this header name.
func (t *Table) Index(name string) (int, bool) {
	for i, h := range t.Header {
		if h == name {
			return i, true
		}
	}
	return -1, false
}

// Column returns a copy of the named column's cells.
func (t *Table) Column(name string) ([]string, bool) {
	idx, ok := t.Index(name)
	if !ok {
		return nil, false
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out, true
}

// builder accumulates rows with the shared padding and MaxRows policy.
type builder struct {
	t       *Table
	maxRows int
}

func newBuilder(header []string, opt LoadOptions) *builder {
	// Header names and cells are kept verbatim so schema checks see exactly
	// what the file holds.
	h := append([]string(nil), header...)
	maxRows := opt.MaxRows
	if maxRows <= 0 {
		maxRows = int(^uint(0) >> 1)
	}
	return &builder{t: &Table{Header: h}, maxRows: maxRows}
}

func (b *builder) add(rec []string) {
	if isBlank(rec) {
		return
	}
	b.t.Total++
	if len(b.t.Rows) >= b.maxRows {
		return
	}
	row := make([]string, len(b.t.Header))
	copy(row, rec)
	b.t.Rows = append(b.t.Rows, row)
}

func (b *builder) done() *Table {
	if len(b.t.Rows) < b.t.Total {
		b.t.Warnings = append(b.t.Warnings, fmt.Sprintf("processed only %d/%d rows due to MaxRows", len(b.t.Rows), b.t.Total))
	}
	return b.t
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func init() {
	Register(csvLoader{})
	Register(xlsxLoader{})
}
