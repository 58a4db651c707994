package chart

import (
	"fmt"
	"math"

	gochart "github.com/wcharczuk/go-chart/v2"
)

// whiskerSeries draws vertical error bars with caps. Points whose bounds are
// undefined are skipped.
type whiskerSeries struct {
	Name  string
	Style gochart.Style
	X     []float64
	Lower []float64
	Upper []float64
	// CapWidth is the half-width of the caps in pixels.
	CapWidth int
}

var (
	_ gochart.Series                = whiskerSeries{}
	_ gochart.BoundedValuesProvider = whiskerSeries{}
)

func (w whiskerSeries) GetName() string             { return w.Name }
func (w whiskerSeries) GetStyle() gochart.Style     { return w.Style }
func (w whiskerSeries) GetYAxis() gochart.YAxisType { return gochart.YAxisPrimary }
func (w whiskerSeries) Len() int                    { return len(w.X) }

// GetBoundedValues lets the chart fit its y range to the whiskers.
func (w whiskerSeries) GetBoundedValues(i int) (x, y1, y2 float64) {
	return w.X[i], w.Upper[i], w.Lower[i]
}

func (w whiskerSeries) Validate() error {
	if len(w.X) != len(w.Lower) || len(w.X) != len(w.Upper) {
		return fmt.Errorf("whisker series %q: mismatched lengths", w.Name)
	}
	return nil
}

func (w whiskerSeries) Render(r gochart.Renderer, canvasBox gochart.Box, xrange, yrange gochart.Range, defaults gochart.Style) {
	style := w.Style.InheritFrom(defaults)
	capw := w.CapWidth
	if capw <= 0 {
		capw = 4
	}
	for i := range w.X {
		lo, hi := w.Lower[i], w.Upper[i]
		if math.IsNaN(lo) || math.IsNaN(hi) {
			continue
		}
		x := canvasBox.Left + xrange.Translate(w.X[i])
		y1 := canvasBox.Bottom - yrange.Translate(lo)
		y2 := canvasBox.Bottom - yrange.Translate(hi)

		r.SetStrokeColor(style.StrokeColor)
		r.SetStrokeWidth(style.StrokeWidth)
		r.MoveTo(x, y1)
		r.LineTo(x, y2)
		r.MoveTo(x-capw, y1)
		r.LineTo(x+capw, y1)
		r.MoveTo(x-capw, y2)
		r.LineTo(x+capw, y2)
		r.Stroke()
	}
}
