package analysis

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/KaramelBytes/recoveryplot/internal/table"
	"github.com/google/uuid"
)

// Pipeline describes one assessment: its input contract and how rows map
// onto the chart axes.
type Pipeline struct {
	Name  string
	Title string

	Schema Schema
	Fields []Field

	OrderKey     string
	DateCol      string // empty when the order key is numeric
	ConditionKey string
	ValueCol     string
	SubjectKey   string

	XLabel string
	YLabel string
	// Numeric orders the x axis by the order key's value instead of by date.
	Numeric bool

	derive func(*Frame)
}

var Cylinder = Pipeline{
	Name:  "cylinder",
	Title: "Cylinder Assessment",
	Schema: Schema{
		Required: []string{"Animal ID", "Date", "Left", "Right", "Time", "Type"},
	},
	Fields: []Field{
		{Name: "Animal ID", Kind: FieldText, Alias: "Animal"},
		{Name: "Date", Kind: FieldDate},
		{Name: "Left", Kind: FieldNumber},
		{Name: "Right", Kind: FieldNumber},
		{Name: "Time", Kind: FieldText},
		{Name: "Type", Kind: FieldText},
	},
	OrderKey:     "Time",
	DateCol:      "Date",
	ConditionKey: "Type",
	ValueCol:     "Score",
	SubjectKey:   "Animal",
	XLabel:       "Time",
	YLabel:       "Paw Preference (%)",
	derive:       PawPreference,
}

var Grip = Pipeline{
	Name:  "grip",
	Title: "Grip Strength",
	Schema: Schema{
		Required:    []string{"Trial", "Average", "Week", "Type"},
		Categorical: "Type",
		Allowed:     []string{"Sham", "VNS"},
	},
	Fields: []Field{
		{Name: "Trial", Kind: FieldText},
		{Name: "Average", Kind: FieldNumber},
		{Name: "Week", Kind: FieldNumber},
		{Name: "Type", Kind: FieldText},
	},
	OrderKey:     "Week",
	ConditionKey: "Type",
	ValueCol:     "Average",
	SubjectKey:   "Trial",
	XLabel:       "Weeks After Nerve Injury",
	YLabel:       "Grip Strength",
	Numeric:      true,
}

// Pipelines returns every known pipeline in display order.
func Pipelines() []Pipeline { return []Pipeline{Cylinder, Grip} }

// Lookup selects a pipeline by name (case-insensitive).
func Lookup(name string) (Pipeline, bool) {
	for _, p := range Pipelines() {
		if strings.EqualFold(p.Name, strings.TrimSpace(name)) {
			return p, true
		}
	}
	return Pipeline{}, false
}

// RunOptions tunes a pipeline run.
type RunOptions struct {
	Normalize NormalizeOptions
	// OrderFrom optionally supplies the order key and date columns used to
	// resolve the x-axis sequence. Labels absent from it are dropped.
	OrderFrom *table.Table
}

// Point is one subject observation placed on the x axis.
type Point struct {
	Order string  `json:"order"`
	X     float64 `json:"x"`
	Value float64 `json:"value"`
}

// SubjectSeries is the trend line of one animal or trial.
type SubjectSeries struct {
	ID        string  `json:"id"`
	Condition string  `json:"condition"`
	Points    []Point `json:"points"`
}

// Result is the output of one pipeline run.
type Result struct {
	ID         string          `json:"id"`
	Pipeline   string          `json:"pipeline"`
	Title      string          `json:"title"`
	Source     string          `json:"source"`
	Rows       int             `json:"rows"`
	XLabel     string          `json:"x_label"`
	YLabel     string          `json:"y_label"`
	Numeric    bool            `json:"numeric_x"`
	Order      []string        `json:"order"`
	Undated    []string        `json:"undated,omitempty"`
	Aggregates []AggregateRow  `json:"aggregates"`
	Subjects   []SubjectSeries `json:"subjects"`
	Warnings   []string        `json:"warnings,omitempty"`
}

// Conditions lists the distinct conditions of the aggregate, sorted.
func (r *Result) Conditions() []string {
	seen := map[string]bool{}
	var out []string
	for _, a := range r.Aggregates {
		if !seen[a.Condition] {
			seen[a.Condition] = true
			out = append(out, a.Condition)
		}
	}
	sort.Strings(out)
	return out
}

// XValue maps an order label to its x coordinate: the week number for
// numeric pipelines, the category index otherwise.
func (r *Result) XValue(order string) (float64, bool) {
	if r.Numeric {
		x, err := strconv.ParseFloat(order, 64)
		return x, err == nil
	}
	for i, l := range r.Order {
		if l == order {
			return float64(i), true
		}
	}
	return 0, false
}

// Run validates t, normalizes it, aggregates the value column and applies
// the resolved ordering. A validation failure returns a *ValidationError and
// nothing else is computed.
func (p Pipeline) Run(t *table.Table, opt RunOptions) (*Result, error) {
	if err := Validate(t, p.Schema); err != nil {
		return nil, err
	}
	f := Normalize(t, p.Fields, opt.Normalize)
	if p.derive != nil {
		p.derive(f)
	}

	res := &Result{
		ID:       uuid.NewString(),
		Pipeline: p.Name,
		Title:    p.Title,
		Source:   t.Name,
		Rows:     f.Len(),
		XLabel:   p.XLabel,
		YLabel:   p.YLabel,
		Numeric:  p.Numeric,
	}
	res.Warnings = append(res.Warnings, t.Warnings...)

	ord, err := p.resolve(f, opt)
	if err != nil {
		return nil, err
	}
	res.Order = ord.Labels
	res.Undated = ord.Undated

	aggs := Aggregate(f, p.OrderKey, p.ConditionKey, p.ValueCol)
	res.Aggregates = ord.Apply(aggs)
	res.Subjects = p.subjects(f, ord, res)

	undefined := 0
	for _, v := range f.Number(p.ValueCol) {
		if math.IsNaN(v) {
			undefined++
		}
	}
	if undefined > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d row(s) have an undefined %s and are excluded from statistics", undefined, p.ValueCol))
	}
	if len(ord.Undated) > 0 {
		what := "no parseable date"
		if p.Numeric {
			what = "a non-numeric value"
		}
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s label(s) with %s placed last: %s", p.OrderKey, what, strings.Join(ord.Undated, ", ")))
	}
	if dropped := droppedLabels(aggs, ord); len(dropped) > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s label(s) missing from the ordering were dropped: %s", p.OrderKey, strings.Join(dropped, ", ")))
	}
	return res, nil
}

func (p Pipeline) resolve(f *Frame, opt RunOptions) (Ordering, error) {
	if p.Numeric {
		return ResolveNumeric(f, p.OrderKey), nil
	}
	src := f
	if opt.OrderFrom != nil {
		if err := Validate(opt.OrderFrom, Schema{Required: []string{p.OrderKey, p.DateCol}}); err != nil {
			return Ordering{}, fmt.Errorf("order source %s: %w", opt.OrderFrom.Name, err)
		}
		src = Normalize(opt.OrderFrom, []Field{
			{Name: p.OrderKey, Kind: FieldText},
			{Name: p.DateCol, Kind: FieldDate},
		}, opt.Normalize)
	}
	return ResolveByDate(src, p.OrderKey, p.DateCol), nil
}

func (p Pipeline) subjects(f *Frame, ord Ordering, res *Result) []SubjectSeries {
	ids := f.Labels(p.SubjectKey)
	conds := f.Labels(p.ConditionKey)
	orders := f.Labels(p.OrderKey)
	values := f.Number(p.ValueCol)
	if ids == nil || values == nil {
		return nil
	}
	byID := map[string]int{}
	var out []SubjectSeries
	for r := 0; r < f.Len(); r++ {
		i, ok := byID[ids[r]]
		if !ok {
			i = len(out)
			byID[ids[r]] = i
			out = append(out, SubjectSeries{ID: ids[r], Condition: conds[r]})
		}
		if math.IsNaN(values[r]) {
			continue
		}
		if _, in := ord.Position(orders[r]); !in {
			continue
		}
		x, ok := res.XValue(orders[r])
		if !ok {
			continue
		}
		out[i].Points = append(out[i].Points, Point{Order: orders[r], X: x, Value: values[r]})
	}
	for i := range out {
		pts := out[i].Points
		sort.SliceStable(pts, func(a, b int) bool {
			pa, _ := ord.Position(pts[a].Order)
			pb, _ := ord.Position(pts[b].Order)
			return pa < pb
		})
	}
	return out
}

func droppedLabels(aggs []AggregateRow, ord Ordering) []string {
	seen := map[string]bool{}
	var out []string
	for _, a := range aggs {
		if seen[a.Order] {
			continue
		}
		seen[a.Order] = true
		if _, ok := ord.Position(a.Order); !ok {
			out = append(out, a.Order)
		}
	}
	return out
}
