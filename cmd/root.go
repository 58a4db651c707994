package cmd

import (
	"fmt"
	"os"

	cfgpkg "github.com/KaramelBytes/recoveryplot/internal/config"
	"github.com/KaramelBytes/recoveryplot/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	cfgFile string
	debug   bool

	// Loaded configuration
	cfg *cfgpkg.Global
	// Structured logger; stays a no-op until PersistentPreRunE runs.
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "recoveryplot",
	Short: "recoveryplot: summarize cylinder and grip-strength recovery data",
	Long: `recoveryplot validates tabular experiment data (cylinder paw-preference
assessments and grip-strength trials), computes per-condition means with
standard errors, and renders summary charts from the command line or a local
web dashboard.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c := effectiveConfig()
		level := c.LogLevel
		if debug {
			level = "debug"
		}
		l, err := logging.New(level, c.LogFormat)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Initialize configuration before executing commands
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.recoveryplot/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: commands fall back to defaults
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		cfg = nil
		return
	}
	cfg = c
}
