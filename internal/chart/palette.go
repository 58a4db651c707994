package chart

import (
	"strings"

	"github.com/wcharczuk/go-chart/v2/drawing"
)

var namedColours = map[string]string{
	"red":          "ff0000",
	"blue":         "0000ff",
	"gray":         "808080",
	"grey":         "808080",
	"green":        "008000",
	"orange":       "ffa500",
	"purple":       "800080",
	"black":        "000000",
	"lightcoral":   "f08080",
	"lightskyblue": "87cefa",
	"lightgray":    "d3d3d3",
}

// Palette maps conditions to colours. Lookups are case-insensitive.
type Palette struct {
	Mean  map[string]string
	Trial map[string]string
}

// DefaultPalette colours VNS red and Sham blue; anything else is gray.
func DefaultPalette() Palette {
	return Palette{
		Mean:  map[string]string{"vns": "red", "sham": "blue"},
		Trial: map[string]string{"sham": "lightcoral"},
	}
}

// WithOverrides returns a copy of p with entries from mean and trial applied.
// Invalid colour strings are ignored.
func (p Palette) WithOverrides(mean, trial map[string]string) Palette {
	out := Palette{Mean: map[string]string{}, Trial: map[string]string{}}
	for k, v := range p.Mean {
		out.Mean[strings.ToLower(k)] = v
	}
	for k, v := range p.Trial {
		out.Trial[strings.ToLower(k)] = v
	}
	for k, v := range mean {
		if _, ok := parseColour(v); ok {
			out.Mean[strings.ToLower(k)] = v
		}
	}
	for k, v := range trial {
		if _, ok := parseColour(v); ok {
			out.Trial[strings.ToLower(k)] = v
		}
	}
	return out
}

// Colour is the summary line colour for a condition.
func (p Palette) Colour(cond string) drawing.Color {
	if c, ok := parseColour(p.Mean[strings.ToLower(cond)]); ok {
		return c
	}
	c, _ := parseColour("gray")
	return c
}

// TrialColour is the faint per-subject line colour for a condition.
func (p Palette) TrialColour(cond string) drawing.Color {
	if c, ok := parseColour(p.Trial[strings.ToLower(cond)]); ok {
		return c
	}
	c, _ := parseColour("lightskyblue")
	return c
}

// Hex renders the condition colour as #rrggbb for the dashboard legend.
func (p Palette) Hex(cond string) string {
	c := p.Colour(cond)
	const digits = "0123456789abcdef"
	b := []byte{'#', 0, 0, 0, 0, 0, 0}
	for i, v := range []uint8{c.R, c.G, c.B} {
		b[1+2*i] = digits[v>>4]
		b[2+2*i] = digits[v&0x0f]
	}
	return string(b)
}

func parseColour(s string) (drawing.Color, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if hex, ok := namedColours[s]; ok {
		s = hex
	}
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 && len(s) != 3 {
		return drawing.Color{}, false
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return drawing.Color{}, false
		}
	}
	return drawing.ColorFromHex(s), true
}
