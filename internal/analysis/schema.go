package analysis

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/KaramelBytes/recoveryplot/internal/table"
)

// Schema is the required-field contract checked once at ingestion.
type Schema struct {
	// Required column names, matched exactly (case-sensitive).
	Required []string
	// Categorical optionally names a column whose values must lie in Allowed.
	Categorical string
	Allowed     []string
}

// ErrorKind classifies a ValidationError.
type ErrorKind string

const (
	MissingColumn        ErrorKind = "missing_column"
	InvalidCategoryValue ErrorKind = "invalid_category_value"
)

var (
	// ErrMissingColumn matches validation failures caused by absent columns.
	ErrMissingColumn = errors.New("missing required columns")
	// ErrInvalidCategory matches validation failures caused by out-of-set values.
	ErrInvalidCategory = errors.New("invalid category value")
)

// ValidationError reports why a dataset was rejected. Exactly one of Missing
// or Invalid is non-empty.
type ValidationError struct {
	Missing []string
	Column  string
	Invalid []string
	Allowed []string
}

// Kind reports which check failed.
func (e *ValidationError) Kind() ErrorKind {
	if len(e.Missing) > 0 {
		return MissingColumn
	}
	return InvalidCategoryValue
}

func (e *ValidationError) Error() string {
	if e.Kind() == MissingColumn {
		return fmt.Sprintf("missing columns: %s", strings.Join(e.Missing, ", "))
	}
	quoted := make([]string, len(e.Allowed))
	for i, a := range e.Allowed {
		quoted[i] = "'" + a + "'"
	}
	found := make([]string, len(e.Invalid))
	for i, v := range e.Invalid {
		if v == "" {
			v = "(empty)"
		}
		found[i] = "'" + v + "'"
	}
	return fmt.Sprintf("%s column must only contain %s values (found %s)",
		e.Column, strings.Join(quoted, " and "), strings.Join(found, ", "))
}

// Is lets errors.Is match the sentinel for this error's kind.
func (e *ValidationError) Is(target error) bool {
	switch target {
	case ErrMissingColumn:
		return e.Kind() == MissingColumn
	case ErrInvalidCategory:
		return e.Kind() == InvalidCategoryValue
	}
	return false
}

// Validate checks t against s. It returns nil when t is valid, otherwise a
// *ValidationError. The categorical check only runs once all required
// columns are present.
func Validate(t *table.Table, s Schema) error {
	var missing []string
	for _, name := range s.Required {
		if _, ok := t.Index(name); !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	if s.Categorical == "" {
		return nil
	}
	values, ok := t.Column(s.Categorical)
	if !ok {
		return &ValidationError{Missing: []string{s.Categorical}}
	}
	allowed := make(map[string]struct{}, len(s.Allowed))
	for _, a := range s.Allowed {
		allowed[a] = struct{}{}
	}
	seen := map[string]struct{}{}
	var invalid []string
	for _, v := range values {
		if _, ok := allowed[v]; ok {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		invalid = append(invalid, v)
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		return &ValidationError{Column: s.Categorical, Invalid: invalid, Allowed: s.Allowed}
	}
	return nil
}
