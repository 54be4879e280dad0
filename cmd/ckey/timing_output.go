package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tc39/proposal-richer-keys/internal/observ"
)

func timingsEnabled(cmd *cobra.Command) bool {
	on, err := cmd.Flags().GetBool("timings")
	return err == nil && on
}

func printTimings(out io.Writer, report observ.Report) {
	if out == nil || len(report.Phases) == 0 {
		return
	}
	if _, err := fmt.Fprint(out, report.Summary()); err != nil {
		panic(err)
	}
}
