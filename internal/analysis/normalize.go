package analysis

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/recoveryplot/internal/table"
	"github.com/xuri/excelize/v2"
)

// FieldKind is the typed interpretation applied to a column.
type FieldKind int

const (
	FieldText FieldKind = iota
	FieldNumber
	FieldDate
)

// Field declares how one input column is normalized.
type Field struct {
	Name string
	Kind FieldKind
	// Alias is an extra lookup name for the column (e.g. "Animal ID" -> "Animal").
	Alias string
}

// NormalizeOptions controls numeric parsing.
type NormalizeOptions struct {
	// DecimalSeparator; if 0, auto-detect per value.
	DecimalSeparator rune
	// ThousandsSeparator; if 0, auto-detect common separators (',' '.' space).
	ThousandsSeparator rune
}

// Date is a parsed date cell. Known is false for the "unknown" sentinel.
type Date struct {
	Time  time.Time
	Known bool
}

// Frame is a normalized, read-only view of a table: the original text columns
// plus typed and derived columns appended after them.
type Frame struct {
	columns []string
	index   map[string]int
	text    [][]string
	numbers map[int][]float64
	dates   map[int][]Date
	n       int
}

// Normalize builds a Frame from t. Every operation is total: unparseable
// numbers become NaN and unparseable dates become the unknown sentinel.
// It assumes Validate has already passed for the declared fields.
func Normalize(t *table.Table, fields []Field, opt NormalizeOptions) *Frame {
	f := &Frame{
		index:   map[string]int{},
		numbers: map[int][]float64{},
		dates:   map[int][]Date{},
		n:       len(t.Rows),
	}
	for i, h := range t.Header {
		col := make([]string, len(t.Rows))
		for r, row := range t.Rows {
			col[r] = strings.TrimSpace(row[i])
		}
		f.addText(h, col)
	}
	for _, fd := range fields {
		idx, ok := f.index[fd.Name]
		if !ok {
			continue
		}
		if fd.Alias != "" {
			f.index[fd.Alias] = idx
		}
		switch fd.Kind {
		case FieldNumber:
			vals := make([]float64, f.n)
			for r, v := range f.text[idx] {
				if x, ok := parseNumeric(v, opt); ok {
					vals[r] = x
				} else {
					vals[r] = math.NaN()
				}
			}
			f.numbers[idx] = vals
		case FieldDate:
			vals := make([]Date, f.n)
			for r, v := range f.text[idx] {
				if tm, ok := parseTimeMaybe(v); ok {
					vals[r] = Date{Time: tm, Known: true}
				}
			}
			f.dates[idx] = vals
		}
	}
	return f
}

func (f *Frame) addText(name string, col []string) int {
	idx := len(f.columns)
	f.columns = append(f.columns, name)
	f.text = append(f.text, col)
	if _, dup := f.index[name]; !dup {
		f.index[name] = idx
	}
	return idx
}

// Len is the number of rows.
func (f *Frame) Len() int { return f.n }

// Columns lists the original columns followed by appended derived columns.
func (f *Frame) Columns() []string {
	return append([]string(nil), f.columns...)
}

// Text returns the trimmed text of a column, or nil if absent.
func (f *Frame) Text(col string) []string {
	idx, ok := f.index[col]
	if !ok {
		return nil
	}
	return f.text[idx]
}

// Number returns the numeric view of a column, or nil if the column is absent
// or was not declared numeric.
func (f *Frame) Number(col string) []float64 {
	idx, ok := f.index[col]
	if !ok {
		return nil
	}
	return f.numbers[idx]
}

// Date returns the date view of a column, or nil.
func (f *Frame) Date(col string) []Date {
	idx, ok := f.index[col]
	if !ok {
		return nil
	}
	return f.dates[idx]
}

// Labels returns grouping labels for a column. Numeric columns use the
// canonical number text so "1" and "1.0" fall in the same group; cells that
// did not parse keep their raw text.
func (f *Frame) Labels(col string) []string {
	idx, ok := f.index[col]
	if !ok {
		return nil
	}
	nums, isNum := f.numbers[idx]
	if !isNum {
		return f.text[idx]
	}
	out := make([]string, f.n)
	for r, x := range nums {
		if math.IsNaN(x) {
			out[r] = f.text[idx][r]
			continue
		}
		if x == 0 {
			x = 0 // folds -0 into 0
		}
		out[r] = strconv.FormatFloat(x, 'f', -1, 64)
	}
	return out
}

// Derive appends a numeric column computed per row.
func (f *Frame) Derive(name string, fn func(row int) float64) {
	vals := make([]float64, f.n)
	col := make([]string, f.n)
	for r := range vals {
		vals[r] = fn(r)
		col[r] = strconv.FormatFloat(vals[r], 'g', -1, 64)
	}
	idx := f.addText(name, col)
	f.index[name] = idx
	f.numbers[idx] = vals
}

// PawPreference appends Score = Right / (Left + Right) * 100. The zero
// denominator is left unguarded and yields NaN.
func PawPreference(f *Frame) {
	left := f.Number("Left")
	right := f.Number("Right")
	f.Derive("Score", func(r int) float64 {
		return right[r] / (left[r] + right[r]) * 100
	})
}

var dateLayouts = []string{
	time.RFC3339, "2006-01-02", "2006-1-2", "2006/01/02", "1/2/2006", "1/2/06", "01-02-06",
	"2006-01-02 15:04", "2006-01-02 15:04:05", "2006-01-02T15:04:05",
	"1/2/2006 15:04", "1/2/2006 15:04:05", "2-Jan-2006", "02-Jan-06", "Jan 2, 2006", "2 Jan 2006",
}

// parseTimeMaybe accepts ISO and US month-first forms, then Excel serial day numbers.
func parseTimeMaybe(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	// Workbook date cells are read raw, as serial day numbers.
	if x, err := strconv.ParseFloat(s, 64); err == nil && x >= 1 && x < 2958466 {
		if t, err := excelize.ExcelDateToTime(x, false); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseNumeric(s string, opt NormalizeOptions) (float64, bool) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, false
	}
	raw = strings.ReplaceAll(raw, "%", "")
	raw = strings.ReplaceAll(raw, "\u00a0", " ")
	raw = strings.TrimSpace(raw)
	dec := opt.DecimalSeparator
	thou := opt.ThousandsSeparator
	if dec == 0 {
		cpos := strings.LastIndex(raw, ",")
		dpos := strings.LastIndex(raw, ".")
		if cpos >= 0 && dpos >= 0 {
			if cpos > dpos {
				dec = ','
				thou = '.'
			} else {
				dec = '.'
				thou = ','
			}
		} else if cpos >= 0 {
			dec = ','
		} else {
			dec = '.'
		}
	}
	if thou == 0 {
		for _, sep := range []rune{',', '.', ' '} {
			if sep != dec {
				raw = strings.ReplaceAll(raw, string(sep), "")
			}
		}
	} else if thou != dec {
		raw = strings.ReplaceAll(raw, string(thou), "")
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}
