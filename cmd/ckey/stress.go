package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tc39/proposal-richer-keys/compositekey"
	"github.com/tc39/proposal-richer-keys/internal/prof"
	"github.com/tc39/proposal-richer-keys/internal/stress"
	"github.com/tc39/proposal-richer-keys/internal/trace"
)

var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Intern a concurrent workload and verify it is reclaimed",
	Args:  cobra.NoArgs,
	RunE:  runStress,
}

func init() {
	defaults := stress.DefaultOptions()
	stressCmd.Flags().Int("workers", defaults.Workers, "concurrent workers")
	stressCmd.Flags().Int("objects", defaults.Objects, "identity values per worker")
	stressCmd.Flags().Int("shared", defaults.Shared, "identity values shared by all workers")
	stressCmd.Flags().Int("arity", defaults.Arity, "tuple length")
	stressCmd.Flags().Int("rounds", defaults.Rounds, "tuples per identity value")
	stressCmd.Flags().Uint64("seed", defaults.Seed, "scalar generator seed")
	stressCmd.Flags().Duration("collect-timeout", defaults.CollectTimeout, "how long to wait for reclamation")
	stressCmd.Flags().String("report", "", "write a msgpack report to this file")
	stressCmd.Flags().String("ui", "auto", "progress UI (auto|on|off)")
	stressCmd.Flags().String("cpu-profile", "", "write a CPU profile to this file")
	stressCmd.Flags().String("mem-profile", "", "write a heap profile to this file after the run")
	stressCmd.Flags().String("runtime-trace", "", "write a runtime execution trace to this file")
}

func runStress(cmd *cobra.Command, _ []string) error {
	opts, err := stressOptions(cmd)
	if err != nil {
		return err
	}
	reportPath, err := flagOrConfig(cmd, "report", activeConfig.Stress.Report)
	if err != nil {
		return err
	}
	view, err := resolveProgressView(cmd)
	if err != nil {
		return err
	}

	profOpts, err := profileOptions(cmd)
	if err != nil {
		return err
	}
	session, err := prof.Start(profOpts)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store := compositekey.NewStore(compositekey.WithTracer(trace.FromContext(ctx)))
	activeTracing.heartbeat.Observe(storeProbe(store))
	defer activeTracing.heartbeat.Observe(nil)

	var report *stress.Report
	if view.live() {
		report, err = runStressWithUI(ctx, "stress", store, opts)
	} else {
		report, err = stress.Run(ctx, store, opts)
	}
	if perr := session.Stop(); perr != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "profiling: %v\n", perr)
	}
	if report == nil {
		return fmt.Errorf("stress: %w", err)
	}

	out := cmd.OutOrStdout()
	renderReportPretty(out, report)
	if timingsEnabled(cmd) {
		printTimings(out, report.Timings)
	}
	if reportPath != "" {
		if werr := stress.WriteReport(reportPath, report); werr != nil {
			return errors.Join(err, fmt.Errorf("write report: %w", werr))
		}
		fmt.Fprintf(out, "report written to %s\n", reportPath)
	}
	if err != nil {
		return fmt.Errorf("stress: %w", err)
	}
	if report.Mismatches > 0 {
		return fmt.Errorf("stress: %d canonicalization mismatches", report.Mismatches)
	}
	return nil
}

// storeProbe reports the live size of store on every heartbeat.
func storeProbe(store *compositekey.Store) trace.Probe {
	return func() map[string]string {
		st := store.Stats()
		return map[string]string{
			"nodes":     strconv.Itoa(st.Nodes),
			"tokens":    strconv.Itoa(st.Tokens),
			"symbols":   strconv.Itoa(st.Symbols),
			"reclaimed": strconv.FormatUint(st.ReclaimedBranches, 10),
		}
	}
}

func profileOptions(cmd *cobra.Command) (prof.Options, error) {
	var opts prof.Options
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{"cpu-profile", &opts.CPU},
		{"mem-profile", &opts.Mem},
		{"runtime-trace", &opts.Trace},
	} {
		v, err := cmd.Flags().GetString(f.name)
		if err != nil {
			return prof.Options{}, fmt.Errorf("failed to get %s flag: %w", f.name, err)
		}
		*f.dst = v
	}
	return opts, nil
}

// stressOptions merges explicit flags over the [stress] table.
func stressOptions(cmd *cobra.Command) (stress.Options, error) {
	opts, err := activeConfig.StressOptions()
	if err != nil {
		return stress.Options{}, err
	}
	flags := cmd.Flags()
	ints := []struct {
		name string
		dst  *int
	}{
		{"workers", &opts.Workers},
		{"objects", &opts.Objects},
		{"shared", &opts.Shared},
		{"arity", &opts.Arity},
		{"rounds", &opts.Rounds},
	}
	for _, f := range ints {
		if !flags.Changed(f.name) {
			continue
		}
		v, err := flags.GetInt(f.name)
		if err != nil {
			return stress.Options{}, fmt.Errorf("failed to get %s flag: %w", f.name, err)
		}
		*f.dst = v
	}
	if flags.Changed("seed") {
		v, err := flags.GetUint64("seed")
		if err != nil {
			return stress.Options{}, fmt.Errorf("failed to get seed flag: %w", err)
		}
		opts.Seed = v
	}
	if flags.Changed("collect-timeout") {
		v, err := flags.GetDuration("collect-timeout")
		if err != nil {
			return stress.Options{}, fmt.Errorf("failed to get collect-timeout flag: %w", err)
		}
		opts.CollectTimeout = v
	}
	if opts.Workers < 1 {
		return stress.Options{}, fmt.Errorf("--workers must be at least 1, got %d", opts.Workers)
	}
	return opts, nil
}
