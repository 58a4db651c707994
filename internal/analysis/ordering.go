package analysis

import (
	"math"
	"sort"
	"time"
)

// Ordering is the resolved x-axis sequence for one pipeline run.
type Ordering struct {
	Labels []string
	// Undated lists labels that could not be placed by their sort key. They
	// sit at the end of Labels in first-appearance order.
	Undated []string
}

// ResolveByDate orders the distinct values of orderKey by the earliest known
// date in dateCol. Ties keep first-appearance order.
func ResolveByDate(f *Frame, orderKey, dateCol string) Ordering {
	labels := f.Labels(orderKey)
	dates := f.Date(dateCol)
	var seq []string
	earliest := map[string]time.Time{}
	seen := map[string]bool{}
	for r, l := range labels {
		if !seen[l] {
			seen[l] = true
			seq = append(seq, l)
		}
		if dates == nil || !dates[r].Known {
			continue
		}
		if t, ok := earliest[l]; !ok || dates[r].Time.Before(t) {
			earliest[l] = dates[r].Time
		}
	}
	return split(seq, func(l string) bool {
		_, ok := earliest[l]
		return ok
	}, func(a, b string) bool {
		return earliest[a].Before(earliest[b])
	})
}

// ResolveNumeric orders the distinct values of orderKey by their numeric value.
func ResolveNumeric(f *Frame, orderKey string) Ordering {
	labels := f.Labels(orderKey)
	nums := f.Number(orderKey)
	var seq []string
	value := map[string]float64{}
	seen := map[string]bool{}
	for r, l := range labels {
		if seen[l] {
			continue
		}
		seen[l] = true
		seq = append(seq, l)
		if nums != nil && !math.IsNaN(nums[r]) {
			value[l] = nums[r]
		}
	}
	return split(seq, func(l string) bool {
		_, ok := value[l]
		return ok
	}, func(a, b string) bool {
		return value[a] < value[b]
	})
}

func split(seq []string, placed func(string) bool, less func(a, b string) bool) Ordering {
	var known, undated []string
	for _, l := range seq {
		if placed(l) {
			known = append(known, l)
		} else {
			undated = append(undated, l)
		}
	}
	sort.SliceStable(known, func(i, j int) bool { return less(known[i], known[j]) })
	return Ordering{Labels: append(known, undated...), Undated: undated}
}

// Position returns the index of label in the sequence.
func (o Ordering) Position(label string) (int, bool) {
	for i, l := range o.Labels {
		if l == label {
			return i, true
		}
	}
	return -1, false
}

// Apply drops rows whose Order is not in the sequence and sorts the rest by
// sequence position, then condition. The input is not modified.
func (o Ordering) Apply(rows []AggregateRow) []AggregateRow {
	pos := make(map[string]int, len(o.Labels))
	for i, l := range o.Labels {
		pos[l] = i
	}
	out := make([]AggregateRow, 0, len(rows))
	for _, r := range rows {
		if _, ok := pos[r.Order]; ok {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := pos[out[i].Order], pos[out[j].Order]
		if pi != pj {
			return pi < pj
		}
		return out[i].Condition < out[j].Condition
	})
	return out
}
