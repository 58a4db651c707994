package analysis

import (
	"encoding/json"
	"math"

	"gonum.org/v1/gonum/stat"
)

// AggregateRow summarizes one (order, condition) group. Undefined statistics
// are NaN.
type AggregateRow struct {
	Order     string
	Condition string
	Count     int
	Mean      float64
	SD        float64
	SEM       float64
	Upper     float64
	Lower     float64
}

type aggregateRowJSON struct {
	Order     string   `json:"order"`
	Condition string   `json:"condition"`
	Count     int      `json:"count"`
	Mean      *float64 `json:"mean"`
	SD        *float64 `json:"sd"`
	SEM       *float64 `json:"sem"`
	Upper     *float64 `json:"upper"`
	Lower     *float64 `json:"lower"`
}

// MarshalJSON encodes NaN statistics as null.
func (a AggregateRow) MarshalJSON() ([]byte, error) {
	return json.Marshal(aggregateRowJSON{
		Order:     a.Order,
		Condition: a.Condition,
		Count:     a.Count,
		Mean:      finite(a.Mean),
		SD:        finite(a.SD),
		SEM:       finite(a.SEM),
		Upper:     finite(a.Upper),
		Lower:     finite(a.Lower),
	})
}

func finite(x float64) *float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return nil
	}
	return &x
}

// Aggregate groups f by (orderKey, conditionKey) and summarizes valueCol.
// Groups are returned in first-appearance order; callers impose ordering
// with Ordering.Apply. NaN values contribute nothing to a group's statistics
// but the group itself is kept.
func Aggregate(f *Frame, orderKey, conditionKey, valueCol string) []AggregateRow {
	orders := f.Labels(orderKey)
	conds := f.Labels(conditionKey)
	values := f.Number(valueCol)
	if orders == nil || conds == nil || values == nil {
		return nil
	}
	type key struct{ order, cond string }
	var keys []key
	groups := map[key][]float64{}
	for r := 0; r < f.Len(); r++ {
		k := key{orders[r], conds[r]}
		vals, seen := groups[k]
		if !seen {
			keys = append(keys, k)
		}
		if !math.IsNaN(values[r]) {
			vals = append(vals, values[r])
		}
		groups[k] = vals
	}
	out := make([]AggregateRow, 0, len(keys))
	for _, k := range keys {
		row := summarize(groups[k])
		row.Order = k.order
		row.Condition = k.cond
		out = append(out, row)
	}
	return out
}

func summarize(vals []float64) AggregateRow {
	nan := math.NaN()
	row := AggregateRow{Count: len(vals), Mean: nan, SD: nan, SEM: nan, Upper: nan, Lower: nan}
	switch {
	case len(vals) == 0:
		return row
	case len(vals) == 1:
		row.Mean = vals[0]
		return row
	}
	// MeanStdDev uses the unbiased (n-1) estimator.
	mean, sd := stat.MeanStdDev(vals, nil)
	sem := sd / math.Sqrt(float64(len(vals)))
	row.Mean = mean
	row.SD = sd
	row.SEM = sem
	row.Upper = mean + sem
	row.Lower = mean - sem
	return row
}
