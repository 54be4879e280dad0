package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tc39/proposal-richer-keys/internal/config"
)

// progressView decides how a stress run shows progress: the live bubbletea
// view, or nothing until the final report.
type progressView struct {
	mode        config.UIMode
	interactive bool // stdout is a terminal
	traceStderr bool // a stream tracer writes to stderr
}

// resolveProgressView reads --ui, falling back to [output].ui.
func resolveProgressView(cmd *cobra.Command) (progressView, error) {
	value, err := flagOrConfig(cmd, "ui", activeConfig.Output.UI)
	if err != nil {
		return progressView{}, err
	}
	mode, err := config.ParseUIMode(value)
	if err != nil {
		return progressView{}, err
	}
	return progressView{
		mode:        mode,
		interactive: isTerminal(os.Stdout),
		traceStderr: activeTracing.toStderr,
	}, nil
}

// live reports whether the live view runs. In auto mode a trace stream on
// stderr wins: its lines would tear the redrawn view apart.
func (v progressView) live() bool {
	switch v.mode {
	case config.UIOn:
		return true
	case config.UIOff:
		return false
	}
	return v.interactive && !v.traceStderr
}
