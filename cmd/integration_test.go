package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gripCSV = "Trial,Average,Week,Type\n1,10,0,Sham\n1,12,1,Sham\n2,20,0,VNS\n2,22,1,VNS\n3,21,1,VNS\n"

const cylinderCSV = "Animal ID,Date,Left,Right,Time,Type\n" +
	"R1,2024-01-01,3,7,Baseline,VNS\n" +
	"R2,2024-01-01,5,5,Baseline,Sham\n" +
	"R1,2024-02-05,2,8,Week2,VNS\n" +
	"R2,2024-02-05,1,9,Week2,Sham\n" +
	"R1,2024-03-01,2,8,Wek4,VNS\n"

// resetFlags clears values and Changed state that persist across Execute calls.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// execCmd runs the root command with args and returns stdout, stderr and the error.
func execCmd(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	rootCmd.SetOut(nil)
	rootCmd.SetErr(nil)
	return out.String(), errOut.String(), err
}

// runCmd is a helper to execute the root command with args, failing on error.
func runCmd(t *testing.T, args ...string) string {
	t.Helper()
	out, errOut, err := execCmd(t, args...)
	if err != nil {
		t.Fatalf("command %v failed: %v\n%s", args, err, errOut)
	}
	return out
}

func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func writeFile(t *testing.T, path, body string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestCLI_AnalyzeGripPrintsMarkdown(t *testing.T) {
	home := isolateHome(t)
	path := writeFile(t, filepath.Join(home, "grip.csv"), gripCSV)

	out := runCmd(t, "analyze", "grip", path)
	assert.Contains(t, out, "[PIPELINE SUMMARY]")
	assert.Contains(t, out, "[GROUP MEANS]")
	assert.Contains(t, out, "Grip Strength")
}

func TestCLI_AnalyzeWritesOutputs(t *testing.T) {
	home := isolateHome(t)
	path := writeFile(t, filepath.Join(home, "grip.csv"), gripCSV)
	outDir := filepath.Join(home, "out")
	svg := filepath.Join(outDir, "grip.svg")
	xlsx := filepath.Join(outDir, "grip.xlsx")
	report := filepath.Join(outDir, "grip.json")

	out := runCmd(t, "analyze", "grip", path, "--chart", svg, "--xlsx", xlsx, "--json", "-o", report, "--hide", "Sham")
	assert.Contains(t, out, "✓ Wrote chart to")
	assert.NotContains(t, out, "[GROUP MEANS]")

	b, err := os.ReadFile(svg)
	require.NoError(t, err)
	assert.Contains(t, string(b), "<svg")

	b, err = os.ReadFile(xlsx)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(b, []byte("PK")))

	b, err = os.ReadFile(report)
	require.NoError(t, err)
	var decoded struct {
		Pipeline string   `json:"pipeline"`
		Order    []string `json:"order"`
	}
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, "grip", decoded.Pipeline)
	assert.Equal(t, []string{"0", "1"}, decoded.Order)
}

func TestCLI_AnalyzeRejectsInvalidCondition(t *testing.T) {
	home := isolateHome(t)
	path := writeFile(t, filepath.Join(home, "grip.csv"), strings.Replace(gripCSV, "2,20,0,VNS", "2,20,0,Control", 1))

	_, _, err := execCmd(t, "analyze", "grip", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Type column must only contain 'Sham' and 'VNS' values")
}

func TestCLI_AnalyzeUnknownPipeline(t *testing.T) {
	home := isolateHome(t)
	path := writeFile(t, filepath.Join(home, "grip.csv"), gripCSV)

	_, _, err := execCmd(t, "analyze", "rotarod", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown pipeline: rotarod")
}

func TestCLI_AnalyzeCylinderWithSchedule(t *testing.T) {
	home := isolateHome(t)
	path := writeFile(t, filepath.Join(home, "cyl.csv"), cylinderCSV)
	sched := writeFile(t, filepath.Join(home, "schedule.csv"), "Time,Date\nWeek2,2024-02-05\nBaseline,2024-01-01\n")

	out, errOut, err := execCmd(t, "analyze", "cylinder", path, "--order-from", sched)
	require.NoError(t, err)
	assert.Contains(t, out, "Cylinder Assessment")
	assert.Contains(t, out, "1. Baseline")
	assert.Contains(t, out, "2. Week2")
	assert.Contains(t, errOut, "dropped: Wek4")
}

func TestCLI_AnalyzeBadDelimiter(t *testing.T) {
	home := isolateHome(t)
	path := writeFile(t, filepath.Join(home, "grip.csv"), gripCSV)

	_, _, err := execCmd(t, "analyze", "grip", path, "--delimiter", "|")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported --delimiter")
}

func TestCLI_ConfigSetAndShow(t *testing.T) {
	isolateHome(t)

	runCmd(t, "config", "set", "chart_width", "640")
	runCmd(t, "config", "set", "palette.VNS", "#00ff00")

	out := runCmd(t, "config", "show")
	assert.Contains(t, out, "chart_width: 640")
	assert.Contains(t, out, "palette.vns: #00ff00")
	assert.Contains(t, out, "listen_addr: :8501")

	_, _, err := execCmd(t, "config", "set", "api_key", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown key: api_key")
}
