package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/KaramelBytes/recoveryplot/internal/chart"
	"github.com/KaramelBytes/recoveryplot/internal/web"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the upload dashboard with one tab per pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := effectiveConfig()
		format, err := chart.ParseFormat(c.ChartFormat)
		if err != nil {
			return err
		}
		addr := c.ListenAddr
		if serveAddr != "" {
			addr = serveAddr
		}
		srv := web.NewServer(web.Config{
			Addr:        addr,
			MaxUploadMB: c.MaxUploadMB,
			MaxRows:     c.MaxRows,
			ChartWidth:  c.ChartWidth,
			ChartHeight: c.ChartHeight,
			ChartFormat: format,
			Palette:     palette(),
		}, logger)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Fprintf(cmd.OutOrStdout(), "✓ Dashboard listening on %s (Ctrl+C to stop)\n", addr)
		return srv.Start(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, :8501)")
}
