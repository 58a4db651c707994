package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/KaramelBytes/recoveryplot/internal/analysis"
	"github.com/KaramelBytes/recoveryplot/internal/chart"
	"github.com/KaramelBytes/recoveryplot/internal/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	abIn          inputFlags
	abOrderFrom   string
	abOutDir      string
	abChartFormat string
	abJSON        bool
	abQuiet       bool
)

var analyzeBatchCmd = &cobra.Command{
	Use:   "analyze-batch <cylinder|grip> <files...>",
	Short: "Run one pipeline over many CSV/TSV/XLSX files with progress",
	Long: `Runs the pipeline on every file (globs are expanded) and writes
<name>.summary.md, plus optional charts and JSON, into --out-dir. Files that
share a base name get a __N suffix. A failing file is reported and the batch
continues; the command exits non-zero if any file failed.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := lookupPipeline(args[0])
		if err != nil {
			return err
		}
		files := expandInputs(args[1:])
		if len(files) == 0 {
			return fmt.Errorf("no input files matched")
		}

		var format chart.Format
		name := abChartFormat
		if !cmd.Flags().Changed("chart-format") {
			name = effectiveConfig().ChartFormat
		}
		if name != "none" {
			if format, err = chart.ParseFormat(name); err != nil {
				return err
			}
		}
		if err := os.MkdirAll(abOutDir, 0o755); err != nil {
			return fmt.Errorf("create out dir: %w", err)
		}

		out := cmd.OutOrStdout()
		used := map[string]int{}
		failed := 0
		total := len(files)
		for i, path := range files {
			if !abQuiet {
				fmt.Fprintf(out, "[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
			}
			base := utils.UniqueName(batchBase(path, abIn.sheetName), used)
			if err := analyzeOne(cmd, p, path, base, format); err != nil {
				failed++
				fmt.Fprintf(cmd.ErrOrStderr(), "✗ %s: %v\n", filepath.Base(path), err)
				logger.Info("batch file failed", zap.String("pipeline", p.Name), zap.String("file", path), zap.Error(err))
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d file(s) failed", failed, total)
		}
		if !abQuiet {
			fmt.Fprintf(out, "✓ Analyzed %d file(s) into %s\n", total, abOutDir)
		}
		return nil
	},
}

func analyzeOne(cmd *cobra.Command, p analysis.Pipeline, path, base string, format chart.Format) error {
	res, err := runPipeline(cmd, p, path, abIn, abOrderFrom)
	if err != nil {
		return err
	}
	mdPath := filepath.Join(abOutDir, base+".summary.md")
	if err := utils.SafeWriteFile(mdPath, []byte(res.Markdown())); err != nil {
		return err
	}
	if abJSON {
		b, err := utils.PrettyJSON(res)
		if err != nil {
			return err
		}
		if err := utils.SafeWriteFile(filepath.Join(abOutDir, base+".summary.json"), b); err != nil {
			return err
		}
	}
	if format != "" {
		c := effectiveConfig()
		var buf bytes.Buffer
		if err := chart.Render(&buf, res, chart.Options{
			Format: format, Width: c.ChartWidth, Height: c.ChartHeight, Palette: palette(),
		}); err != nil {
			return fmt.Errorf("render chart: %w", err)
		}
		if err := utils.SafeWriteFile(filepath.Join(abOutDir, base+".chart."+string(format)), buf.Bytes()); err != nil {
			return err
		}
	}
	if !abQuiet {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s\n", mdPath)
		for _, w := range res.Warnings {
			fmt.Fprintf(cmd.ErrOrStderr(), "⚠ %s\n", w)
		}
	}
	return nil
}

// expandInputs expands globs, keeps literal paths without matches so they are
// reported as failures, and de-duplicates.
func expandInputs(args []string) []string {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 && !strings.ContainsAny(arg, "*?[") {
			matches = []string{arg}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files
}

// batchBase names outputs after the input stem, plus the sheet when one is
// selected by name.
func batchBase(path, sheet string) string {
	safe := utils.StemOf(path)
	if sheet == "" {
		return safe
	}
	s := strings.ToLower(strings.TrimSpace(sheet))
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else if r == ' ' || r == '-' || r == '_' {
			b.WriteRune('-')
		}
	}
	ss := strings.Trim(b.String(), "-")
	if ss == "" {
		ss = "sheet"
	}
	return safe + "__sheet-" + ss
}

func init() {
	rootCmd.AddCommand(analyzeBatchCmd)
	bindInputFlags(analyzeBatchCmd, &abIn)
	analyzeBatchCmd.Flags().StringVar(&abOrderFrom, "order-from", "", "cylinder: schedule file applied to every input")
	analyzeBatchCmd.Flags().StringVar(&abOutDir, "out-dir", ".", "directory for the generated summaries")
	analyzeBatchCmd.Flags().StringVar(&abChartFormat, "chart-format", "", "chart per file: png, svg or none (default from config chart_format)")
	analyzeBatchCmd.Flags().BoolVar(&abJSON, "json", false, "also write <name>.summary.json")
	analyzeBatchCmd.Flags().BoolVar(&abQuiet, "quiet", false, "suppress progress output")
}
