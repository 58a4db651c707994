package chart

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/KaramelBytes/recoveryplot/internal/analysis"
	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Format is the output image encoding.
type Format string

const (
	PNG Format = "png"
	SVG Format = "svg"
)

// ParseFormat accepts "png" or "svg" (case-insensitive, optional leading dot).
func ParseFormat(s string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".") {
	case "", "png":
		return PNG, nil
	case "svg":
		return SVG, nil
	}
	return "", fmt.Errorf("unsupported chart format: %s (use png or svg)", s)
}

// Options controls rendering.
type Options struct {
	Format  Format
	Width   int
	Height  int
	Palette Palette
	// Hidden conditions are left out of the plot and the legend.
	Hidden []string
	// SubjectLines draws faint per-subject lines under the summary. The grip
	// pipeline always draws them.
	SubjectLines bool
}

func (o Options) withDefaults() Options {
	if o.Format == "" {
		o.Format = PNG
	}
	if o.Width <= 0 {
		o.Width = 900
	}
	if o.Height <= 0 {
		o.Height = 500
	}
	if o.Palette.Mean == nil {
		o.Palette = DefaultPalette()
	}
	return o
}

// Render draws res as a mean-with-SEM chart per condition.
func Render(w io.Writer, res *analysis.Result, opt Options) error {
	opt = opt.withDefaults()
	hidden := map[string]bool{}
	for _, h := range opt.Hidden {
		hidden[h] = true
	}

	var (
		series []gochart.Series
		named  []gochart.Series
		ys     []float64
	)

	if opt.SubjectLines || res.Pipeline == analysis.Grip.Name {
		for _, s := range res.Subjects {
			if hidden[s.Condition] || len(s.Points) == 0 {
				continue
			}
			xs := make([]float64, len(s.Points))
			vs := make([]float64, len(s.Points))
			for i, p := range s.Points {
				xs[i], vs[i] = p.X, p.Value
			}
			ys = append(ys, vs...)
			series = append(series, gochart.ContinuousSeries{
				Name:    s.ID,
				XValues: xs,
				YValues: vs,
				Style: gochart.Style{
					StrokeColor: opt.Palette.TrialColour(s.Condition),
					StrokeWidth: 1,
				},
			})
		}
	}

	for _, cond := range res.Conditions() {
		if hidden[cond] {
			continue
		}
		colour := opt.Palette.Colour(cond)
		var xs, means []float64
		wh := whiskerSeries{Name: cond + " SEM", Style: gochart.Style{StrokeColor: colour, StrokeWidth: 1.5}}
		for _, a := range res.Aggregates {
			if a.Condition != cond || math.IsNaN(a.Mean) {
				continue
			}
			x, ok := res.XValue(a.Order)
			if !ok {
				continue
			}
			xs = append(xs, x)
			means = append(means, a.Mean)
			ys = append(ys, a.Mean)
			if !math.IsNaN(a.SEM) {
				wh.X = append(wh.X, x)
				wh.Lower = append(wh.Lower, a.Lower)
				wh.Upper = append(wh.Upper, a.Upper)
				ys = append(ys, a.Lower, a.Upper)
			}
		}
		if len(xs) == 0 {
			continue
		}
		line := gochart.ContinuousSeries{
			Name:    cond,
			XValues: xs,
			YValues: means,
			Style: gochart.Style{
				StrokeColor: colour,
				StrokeWidth: 2,
				DotColor:    colour,
				DotWidth:    4,
			},
		}
		series = append(series, line)
		named = append(named, line)
		if len(wh.X) > 0 {
			series = append(series, wh)
		}
	}

	xaxis := xAxisFor(res)
	ymin, ymax := bounds(ys)
	yticks := niceTicks(ymin, ymax, 6)
	yrange := &gochart.ContinuousRange{Min: ymin, Max: ymax}
	if len(yticks) > 1 {
		yrange = &gochart.ContinuousRange{Min: yticks[0].Value, Max: yticks[len(yticks)-1].Value}
	}

	if len(series) == 0 {
		// Keeps the axes on screen when every condition is hidden.
		series = append(series, gochart.ContinuousSeries{
			XValues: []float64{xaxis.Range.GetMin()},
			YValues: []float64{yrange.Min},
			Style:   gochart.Style{StrokeColor: drawing.ColorTransparent, StrokeWidth: 0},
		})
	}

	ch := gochart.Chart{
		Title:      res.Title,
		Width:      opt.Width,
		Height:     opt.Height,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 16, Right: 16, Bottom: 28}},
		XAxis:      xaxis,
		YAxis:      gochart.YAxis{Name: res.YLabel, Range: yrange, Ticks: yticks},
		Series:     series,
	}
	// The legend reads only the condition lines so subject and whisker
	// series stay out of it.
	legend := gochart.Chart{Series: named}
	if len(named) > 0 {
		ch.Elements = []gochart.Renderable{gochart.Legend(&legend)}
	}

	provider := gochart.PNG
	if opt.Format == SVG {
		provider = gochart.SVG
	}
	if err := ch.Render(provider, w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

// xAxisFor builds the x axis. go-chart derives the range from explicit ticks,
// so blank ticks half a step beyond each end keep a single label plottable
// and the end whiskers off the plot edge.
func xAxisFor(res *analysis.Result) gochart.XAxis {
	var ticks []gochart.Tick
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, l := range res.Order {
		x := float64(i)
		if res.Numeric {
			v, err := strconv.ParseFloat(l, 64)
			if err != nil {
				continue
			}
			x = v
		}
		ticks = append(ticks, gochart.Tick{Value: x, Label: l})
		lo, hi = math.Min(lo, x), math.Max(hi, x)
	}
	if len(ticks) == 0 {
		lo, hi = 0, 0
	}
	sort.SliceStable(ticks, func(i, j int) bool { return ticks[i].Value < ticks[j].Value })
	padded := make([]gochart.Tick, 0, len(ticks)+2)
	padded = append(padded, gochart.Tick{Value: lo - 0.5})
	padded = append(padded, ticks...)
	padded = append(padded, gochart.Tick{Value: hi + 0.5})
	return gochart.XAxis{Name: res.XLabel, Ticks: padded, Range: &gochart.ContinuousRange{Min: lo - 0.5, Max: hi + 0.5}}
}

// bounds returns a padded [min, max] over finite values, or [0, 1] when empty.
func bounds(vals []float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	if math.IsInf(lo, 1) {
		return 0, 1
	}
	if hi <= lo {
		return lo - 1, hi + 1
	}
	pad := (hi - lo) * 0.05
	return lo - pad, hi + pad
}

// niceTicks generates up to n tick marks between [min, max] using 1/2/2.5/5 steps.
func niceTicks(min, max float64, n int) []gochart.Tick {
	if n < 2 || math.IsNaN(min) || math.IsNaN(max) {
		return nil
	}
	if max <= min {
		max = min + 1
	}
	span := max - min
	mag := math.Pow(10, math.Floor(math.Log10(span/float64(n-1))))
	bestStep := mag
	bestScore := math.MaxFloat64
	for _, c := range []float64{1, 2, 2.5, 5, 10} {
		step := c * mag
		count := math.Ceil(span / step)
		if count < 2 {
			count = 2
		}
		if score := math.Abs(count - float64(n)); score < bestScore {
			bestScore = score
			bestStep = step
		}
	}
	start := math.Floor(min/bestStep) * bestStep
	end := math.Ceil(max/bestStep) * bestStep
	var ticks []gochart.Tick
	for v := start; v <= end+bestStep/2; v += bestStep {
		ticks = append(ticks, gochart.Tick{Value: v, Label: strconv.FormatFloat(roundTo(v, bestStep), 'f', -1, 64)})
		if len(ticks) > n+2 {
			break
		}
	}
	return ticks
}

// roundTo trims float noise from accumulated steps.
func roundTo(v, step float64) float64 {
	digits := math.Max(0, -math.Floor(math.Log10(step))+1)
	p := math.Pow(10, digits)
	return math.Round(v*p) / p
}
