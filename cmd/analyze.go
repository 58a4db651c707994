package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/KaramelBytes/recoveryplot/internal/analysis"
	"github.com/KaramelBytes/recoveryplot/internal/chart"
	"github.com/KaramelBytes/recoveryplot/internal/table"
	"github.com/KaramelBytes/recoveryplot/internal/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	anaIn        inputFlags
	anaOrderFrom string
	anaOutput    string
	anaJSON      bool
	anaChart     string
	anaXLSX      string
	anaHide      []string
	anaWidth     int
	anaHeight    int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <cylinder|grip> <file>",
	Short: "Validate a CSV/TSV/XLSX file and summarize it per condition",
	Long: `Runs one pipeline on a data file: validates required columns and the
Sham/VNS condition values, computes per-group mean, SD and SEM, resolves the
x-axis order, and writes a markdown (or JSON) report. Optionally renders a
chart (png or svg, chosen by extension) and an XLSX export.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := lookupPipeline(args[0])
		if err != nil {
			return err
		}
		res, err := runPipeline(cmd, p, args[1], anaIn, anaOrderFrom)
		if err != nil {
			return err
		}

		var report []byte
		if anaJSON {
			if report, err = utils.PrettyJSON(res); err != nil {
				return err
			}
		} else {
			report = []byte(res.Markdown())
		}

		wroteFile := false
		if anaChart != "" {
			c := effectiveConfig()
			ext := filepath.Ext(anaChart)
			if ext == "" {
				ext = c.ChartFormat
			}
			format, err := chart.ParseFormat(ext)
			if err != nil {
				return err
			}
			w, h := c.ChartWidth, c.ChartHeight
			if cmd.Flags().Changed("width") {
				w = anaWidth
			}
			if cmd.Flags().Changed("height") {
				h = anaHeight
			}
			var buf bytes.Buffer
			if err := chart.Render(&buf, res, chart.Options{
				Format: format, Width: w, Height: h, Palette: palette(), Hidden: anaHide,
			}); err != nil {
				return fmt.Errorf("render chart: %w", err)
			}
			if err := utils.SafeWriteFile(anaChart, buf.Bytes()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote chart to %s\n", anaChart)
			wroteFile = true
		}
		if anaXLSX != "" {
			var buf bytes.Buffer
			if err := res.WriteXLSX(&buf); err != nil {
				return err
			}
			if err := utils.SafeWriteFile(anaXLSX, buf.Bytes()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote workbook to %s\n", anaXLSX)
			wroteFile = true
		}

		switch {
		case anaOutput != "":
			if err := utils.SafeWriteFile(anaOutput, report); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote report to %s\n", anaOutput)
		case !wroteFile || anaJSON:
			fmt.Fprint(cmd.OutOrStdout(), string(report))
		}
		for _, w := range res.Warnings {
			fmt.Fprintf(cmd.ErrOrStderr(), "⚠ %s\n", w)
		}
		return nil
	},
}

// runPipeline loads path (and an optional schedule file) and runs p on it.
func runPipeline(cmd *cobra.Command, p analysis.Pipeline, path string, in inputFlags, orderFrom string) (*analysis.Result, error) {
	lopt, err := in.loadOptions(cmd.Flags().Changed("max-rows"))
	if err != nil {
		return nil, err
	}
	nopt, err := in.normalizeOptions()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	t, err := table.LoadFile(path, lopt)
	if err != nil {
		return nil, err
	}
	ropt := analysis.RunOptions{Normalize: nopt}
	if orderFrom != "" {
		if p.Numeric {
			logger.Warn("order source ignored for numeric pipeline", zap.String("pipeline", p.Name))
		} else {
			ot, err := table.LoadFile(orderFrom, table.LoadOptions{Delimiter: lopt.Delimiter})
			if err != nil {
				return nil, fmt.Errorf("order source: %w", err)
			}
			ropt.OrderFrom = ot
		}
	}

	start := time.Now()
	res, err := p.Run(t, ropt)
	if err != nil {
		logger.Info("pipeline failed", zap.String("pipeline", p.Name), zap.String("file", path), zap.Error(err))
		return nil, err
	}
	logger.Debug("pipeline run",
		zap.String("pipeline", p.Name),
		zap.String("run", res.ID),
		zap.String("file", path),
		zap.Int("rows", res.Rows),
		zap.Int("groups", len(res.Aggregates)),
		zap.Duration("took", time.Since(start)))
	return res, nil
}

func bindInputFlags(cmd *cobra.Command, in *inputFlags) {
	cmd.Flags().StringVar(&in.delimiter, "delimiter", "", "CSV delimiter override: ',', ';', 'tab' (default: sniffed from the header)")
	cmd.Flags().StringVar(&in.decimal, "decimal", "", "decimal separator for numeric parsing: '.' or 'comma' (default auto)")
	cmd.Flags().StringVar(&in.thousands, "thousands", "", "thousands separator for numeric parsing: ',', '.', or 'space'")
	cmd.Flags().IntVar(&in.maxRows, "max-rows", 0, "maximum rows to read (0 = unlimited; default from config)")
	cmd.Flags().StringVar(&in.sheetName, "sheet-name", "", "XLSX: sheet name to read (defaults to first sheet)")
	cmd.Flags().IntVar(&in.sheetIndex, "sheet-index", 0, "XLSX: 1-based sheet index (used when --sheet-name is empty)")
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	bindInputFlags(analyzeCmd, &anaIn)
	analyzeCmd.Flags().StringVar(&anaOrderFrom, "order-from", "", "cylinder: schedule file whose Time/Date columns define the x-axis order")
	analyzeCmd.Flags().StringVarP(&anaOutput, "output", "o", "", "write the report to this file instead of stdout")
	analyzeCmd.Flags().BoolVar(&anaJSON, "json", false, "emit the report as JSON")
	analyzeCmd.Flags().StringVar(&anaChart, "chart", "", "render a chart to this path (.png or .svg; no extension uses config chart_format)")
	analyzeCmd.Flags().StringVar(&anaXLSX, "xlsx", "", "write the summary workbook to this path")
	analyzeCmd.Flags().StringSliceVar(&anaHide, "hide", nil, "conditions to leave out of the chart (e.g. --hide Sham)")
	analyzeCmd.Flags().IntVar(&anaWidth, "width", 0, "chart width in pixels (default from config)")
	analyzeCmd.Flags().IntVar(&anaHeight, "height", 0, "chart height in pixels (default from config)")
}
