package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tc39/proposal-richer-keys/compositekey"
	"github.com/tc39/proposal-richer-keys/internal/stress"
	"github.com/tc39/proposal-richer-keys/internal/ui"
)

type stressOutcome struct {
	report *stress.Report
	err    error
}

func runStressWithUI(ctx context.Context, title string, store *compositekey.Store, opts stress.Options) (*stress.Report, error) {
	if store == nil {
		return nil, fmt.Errorf("missing store")
	}
	events := make(chan stress.Event, 256)
	outcomeCh := make(chan stressOutcome, 1)

	go func() {
		optsCopy := opts
		optsCopy.Progress = stress.ChannelSink{Ch: events}
		report, err := stress.Run(ctx, store, optsCopy)
		outcomeCh <- stressOutcome{report: report, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, opts.Workers, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout), tea.WithContext(ctx))
	_, uiErr := program.Run()
	// The view may quit early (ctrl+c); keep the runner from blocking.
	go func() {
		for range events {
		}
	}()
	outcome := <-outcomeCh
	if uiErr != nil && outcome.err == nil {
		return outcome.report, uiErr
	}
	return outcome.report, outcome.err
}
