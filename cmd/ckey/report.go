package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tc39/proposal-richer-keys/internal/stress"
)

var reportFormat string

var reportCmd = &cobra.Command{
	Use:   "report FILE",
	Short: "Print a report written by ckey stress --report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format := strings.ToLower(strings.TrimSpace(reportFormat))
		switch format {
		case "pretty", "json":
		default:
			return fmt.Errorf("unsupported format %q (must be pretty or json)", reportFormat)
		}

		r, err := stress.ReadReport(args[0])
		if err != nil {
			return fmt.Errorf("report: %w", err)
		}
		out := cmd.OutOrStdout()
		if format == "json" {
			return renderReportJSON(out, r)
		}
		renderReportPretty(out, r)
		if timingsEnabled(cmd) {
			printTimings(out, r.Timings)
		}
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportFormat, "format", "pretty", "output format (pretty|json)")
}
