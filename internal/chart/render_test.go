package chart

import (
	"bytes"
	"testing"

	"github.com/KaramelBytes/recoveryplot/internal/analysis"
	"github.com/KaramelBytes/recoveryplot/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gripResult(t *testing.T) *analysis.Result {
	t.Helper()
	tbl := &table.Table{Name: "grip.csv", Header: []string{"Trial", "Average", "Week", "Type"}, Rows: [][]string{
		{"1", "10", "0", "Sham"},
		{"1", "12", "1", "Sham"},
		{"3", "11", "1", "Sham"},
		{"2", "20", "0", "VNS"},
		{"2", "24", "1", "VNS"},
		{"4", "22", "1", "VNS"},
	}}
	res, err := analysis.Grip.Run(tbl, analysis.RunOptions{})
	require.NoError(t, err)
	return res
}

func cylinderResult(t *testing.T) *analysis.Result {
	t.Helper()
	tbl := &table.Table{Name: "cyl.csv", Header: []string{"Animal ID", "Date", "Left", "Right", "Time", "Type"}, Rows: [][]string{
		{"R1", "2024-01-01", "3", "7", "Baseline", "VNS"},
		{"R2", "2024-01-01", "4", "6", "Baseline", "VNS"},
		{"R3", "2024-01-01", "5", "5", "Baseline", "Sham"},
		{"R1", "2024-02-01", "2", "8", "Week4", "VNS"},
		{"R3", "2024-02-01", "0", "0", "Week4", "Sham"},
		{"R9", "2024-02-01", "1", "1", "Week4", "Control"},
	}}
	res, err := analysis.Cylinder.Run(tbl, analysis.RunOptions{})
	require.NoError(t, err)
	return res
}

func TestRenderPNG(t *testing.T) {
	for name, res := range map[string]*analysis.Result{"grip": gripResult(t), "cylinder": cylinderResult(t)} {
		var buf bytes.Buffer
		require.NoError(t, Render(&buf, res, Options{Format: PNG, Width: 640, Height: 400}), name)
		assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")), name)
	}
}

func TestRenderSVGHonoursHidden(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, gripResult(t), Options{Format: SVG, Hidden: []string{"VNS"}}))
	out := buf.String()
	assert.Contains(t, out, "<svg")
	assert.Contains(t, out, "Sham")
	assert.NotContains(t, out, ">VNS<")
}

func TestRenderAllHidden(t *testing.T) {
	var buf bytes.Buffer
	err := Render(&buf, cylinderResult(t), Options{Format: SVG, Hidden: []string{"VNS", "Sham", "Control"}})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "<svg")
}

func TestRenderSingleRowGroups(t *testing.T) {
	tbl := &table.Table{Header: []string{"Trial", "Average", "Week", "Type"}, Rows: [][]string{
		{"1", "10", "0", "Sham"},
	}}
	res, err := analysis.Grip.Run(tbl, analysis.RunOptions{})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, res, Options{}))
	assert.NotZero(t, buf.Len())
}

func TestRenderSingleOrderLabel(t *testing.T) {
	tbl := &table.Table{Header: []string{"Animal ID", "Date", "Left", "Right", "Time", "Type"}, Rows: [][]string{
		{"R1", "2024-01-01", "3", "7", "Baseline", "VNS"},
		{"R2", "2024-01-01", "4", "6", "Baseline", "VNS"},
		{"R3", "2024-01-01", "5", "5", "Baseline", "Sham"},
	}}
	res, err := analysis.Cylinder.Run(tbl, analysis.RunOptions{})
	require.NoError(t, err)
	for _, f := range []Format{PNG, SVG} {
		var buf bytes.Buffer
		require.NoError(t, Render(&buf, res, Options{Format: f}), string(f))
		assert.NotZero(t, buf.Len())
	}
}

func TestXAxisPadsBothEnds(t *testing.T) {
	ax := xAxisFor(cylinderResult(t))
	require.Len(t, ax.Ticks, 4)
	assert.Equal(t, -0.5, ax.Ticks[0].Value)
	assert.Empty(t, ax.Ticks[0].Label)
	assert.Equal(t, "Baseline", ax.Ticks[1].Label)
	assert.Equal(t, 1.5, ax.Ticks[3].Value)

	ax = xAxisFor(gripResult(t))
	require.Len(t, ax.Ticks, 4)
	assert.Equal(t, -0.5, ax.Ticks[0].Value)
	assert.Equal(t, "0", ax.Ticks[1].Label)
	assert.Equal(t, 1.5, ax.Ticks[3].Value)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(".SVG")
	require.NoError(t, err)
	assert.Equal(t, SVG, f)
	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, PNG, f)
	_, err = ParseFormat("gif")
	assert.Error(t, err)
}

func TestPalette(t *testing.T) {
	p := DefaultPalette()
	assert.Equal(t, "#ff0000", p.Hex("VNS"))
	assert.Equal(t, "#0000ff", p.Hex("Sham"))
	assert.Equal(t, "#808080", p.Hex("Control"))
	assert.Equal(t, uint8(0xf0), p.TrialColour("Sham").R)
	assert.Equal(t, uint8(0x87), p.TrialColour("VNS").R)

	q := p.WithOverrides(map[string]string{"vns": "#00aa00", "Sham": "not-a-colour"}, nil)
	assert.Equal(t, "#00aa00", q.Hex("VNS"))
	assert.Equal(t, "#0000ff", q.Hex("Sham"))
	assert.Equal(t, "#ff0000", p.Hex("VNS"), "overrides do not mutate the original")
}

func TestNiceTicks(t *testing.T) {
	ticks := niceTicks(9.3, 24.7, 6)
	require.NotEmpty(t, ticks)
	assert.LessOrEqual(t, ticks[0].Value, 9.3)
	assert.GreaterOrEqual(t, ticks[len(ticks)-1].Value, 24.7)
	assert.Equal(t, "7.5", ticks[0].Label)
}
