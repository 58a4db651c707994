package analysis

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gripFrame(rows ...[]string) *Frame {
	return Normalize(newTable([]string{"Trial", "Average", "Week", "Type"}, rows...), Grip.Fields, NormalizeOptions{})
}

func findRow(t *testing.T, rows []AggregateRow, order, cond string) AggregateRow {
	t.Helper()
	for _, r := range rows {
		if r.Order == order && r.Condition == cond {
			return r
		}
	}
	t.Fatalf("no aggregate row for (%s, %s)", order, cond)
	return AggregateRow{}
}

func TestAggregateSampleStatistics(t *testing.T) {
	f := gripFrame(
		[]string{"1", "10", "0", "Sham"},
		[]string{"2", "12", "0", "Sham"},
		[]string{"3", "20", "0", "VNS"},
	)
	rows := Aggregate(f, "Week", "Type", "Average")
	require.Len(t, rows, 2)

	sham := findRow(t, rows, "0", "Sham")
	assert.Equal(t, 2, sham.Count)
	assert.InDelta(t, 11.0, sham.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt2, sham.SD, 1e-12)
	assert.InDelta(t, 1.0, sham.SEM, 1e-12)
	assert.InDelta(t, 12.0, sham.Upper, 1e-12)
	assert.InDelta(t, 10.0, sham.Lower, 1e-12)
}

func TestAggregateSingleRowGroupHasUndefinedSpread(t *testing.T) {
	f := gripFrame([]string{"3", "20", "0", "VNS"})
	rows := Aggregate(f, "Week", "Type", "Average")
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].Count)
	assert.Equal(t, 20.0, rows[0].Mean)
	assert.True(t, math.IsNaN(rows[0].SD))
	assert.True(t, math.IsNaN(rows[0].SEM))
	assert.True(t, math.IsNaN(rows[0].Upper))
	assert.True(t, math.IsNaN(rows[0].Lower))
}

func TestAggregateExcludesNaNValues(t *testing.T) {
	f := gripFrame(
		[]string{"1", "10", "0", "Sham"},
		[]string{"2", "oops", "0", "Sham"},
		[]string{"3", "", "1", "Sham"},
	)
	rows := Aggregate(f, "Week", "Type", "Average")
	require.Len(t, rows, 2)

	week0 := findRow(t, rows, "0", "Sham")
	assert.Equal(t, 1, week0.Count)
	assert.Equal(t, 10.0, week0.Mean)

	week1 := findRow(t, rows, "1", "Sham")
	assert.Equal(t, 0, week1.Count, "a group with only undefined values is kept, not zero-filled")
	assert.True(t, math.IsNaN(week1.Mean))
}

func TestAggregateIsIdempotent(t *testing.T) {
	f := gripFrame(
		[]string{"1", "10.1", "0", "Sham"},
		[]string{"2", "12.7", "0", "Sham"},
		[]string{"3", "9.3", "0", "Sham"},
		[]string{"4", "20.2", "1", "VNS"},
	)
	a := Aggregate(f, "Week", "Type", "Average")
	b := Aggregate(f, "Week", "Type", "Average")
	require.Equal(t, len(a), len(b))
	for i := range a {
		for _, pair := range [][2]float64{
			{a[i].Mean, b[i].Mean}, {a[i].SD, b[i].SD}, {a[i].SEM, b[i].SEM},
			{a[i].Upper, b[i].Upper}, {a[i].Lower, b[i].Lower},
		} {
			assert.Equal(t, math.Float64bits(pair[0]), math.Float64bits(pair[1]))
		}
	}
}

func TestAggregateRowJSONEncodesNaNAsNull(t *testing.T) {
	nan := math.NaN()
	row := AggregateRow{Order: "0", Condition: "VNS", Count: 1, Mean: 20, SD: nan, SEM: nan, Upper: nan, Lower: nan}
	b, err := json.Marshal(row)
	require.NoError(t, err)
	assert.JSONEq(t, `{"order":"0","condition":"VNS","count":1,"mean":20,"sd":null,"sem":null,"upper":null,"lower":null}`, string(b))
}

func TestAggregateFoldsNegativeZeroLabel(t *testing.T) {
	f := gripFrame(
		[]string{"1", "10", "0", "Sham"},
		[]string{"2", "12", "-0", "Sham"},
	)
	assert.Equal(t, []string{"0", "0"}, f.Labels("Week"))
	rows := Aggregate(f, "Week", "Type", "Average")
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].Count)

	res, err := Grip.Run(newTable([]string{"Trial", "Average", "Week", "Type"},
		[]string{"1", "10", "-0", "Sham"},
		[]string{"2", "12", "0", "Sham"},
	), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"0"}, res.Order)
}
