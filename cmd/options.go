package cmd

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/recoveryplot/internal/analysis"
	"github.com/KaramelBytes/recoveryplot/internal/chart"
	cfgpkg "github.com/KaramelBytes/recoveryplot/internal/config"
	"github.com/KaramelBytes/recoveryplot/internal/table"
)

// inputFlags are the parsing flags shared by analyze and analyze-batch.
type inputFlags struct {
	delimiter  string
	decimal    string
	thousands  string
	maxRows    int
	sheetName  string
	sheetIndex int
}

func (f inputFlags) loadOptions(maxRowsChanged bool) (table.LoadOptions, error) {
	opt := table.LoadOptions{SheetName: f.sheetName, SheetIndex: f.sheetIndex}
	if maxRowsChanged {
		opt.MaxRows = f.maxRows
	} else {
		opt.MaxRows = effectiveConfig().MaxRows
	}
	switch f.delimiter {
	case "":
	case ",":
		opt.Delimiter = ','
	case "\t", "tab":
		opt.Delimiter = '\t'
	case ";":
		opt.Delimiter = ';'
	default:
		return opt, fmt.Errorf("unsupported --delimiter: %s", f.delimiter)
	}
	return opt, nil
}

func (f inputFlags) normalizeOptions() (analysis.NormalizeOptions, error) {
	var opt analysis.NormalizeOptions
	switch strings.ToLower(strings.TrimSpace(f.decimal)) {
	case ",", "comma":
		opt.DecimalSeparator = ','
	case ".", "dot":
		opt.DecimalSeparator = '.'
	case "":
	default:
		return opt, fmt.Errorf("unsupported --decimal: %s (use '.'|'comma')", f.decimal)
	}
	switch strings.ToLower(strings.TrimSpace(f.thousands)) {
	case ",":
		opt.ThousandsSeparator = ','
	case ".":
		opt.ThousandsSeparator = '.'
	case "space", " ":
		opt.ThousandsSeparator = ' '
	case "":
	default:
		return opt, fmt.Errorf("unsupported --thousands: %s (use ','|'.'|'space')", f.thousands)
	}
	return opt, nil
}

func lookupPipeline(name string) (analysis.Pipeline, error) {
	p, ok := analysis.Lookup(name)
	if !ok {
		var names []string
		for _, p := range analysis.Pipelines() {
			names = append(names, p.Name)
		}
		return p, fmt.Errorf("unknown pipeline: %s (use %s)", name, strings.Join(names, " or "))
	}
	return p, nil
}

// effectiveConfig returns the loaded config, or defaults when loading failed.
func effectiveConfig() *cfgpkg.Global {
	if cfg != nil {
		return cfg
	}
	return &cfgpkg.Global{
		ListenAddr:  ":8501",
		MaxUploadMB: 20,
		MaxRows:     100000,
		ChartWidth:  900,
		ChartHeight: 500,
		ChartFormat: "png",
		LogLevel:    "info",
		LogFormat:   "console",
	}
}

func palette() chart.Palette {
	c := effectiveConfig()
	return chart.DefaultPalette().WithOverrides(c.Palette, c.TrialPalette)
}
