package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/tc39/proposal-richer-keys/internal/config"
	"github.com/tc39/proposal-richer-keys/internal/trace"
)

// tracing is the tracer session of one command run.
type tracing struct {
	tracer    trace.Tracer
	mode      trace.StorageMode
	output    string
	heartbeat *trace.Heartbeat
	toStderr  bool // events stream onto the terminal's stderr
}

// activeTracing is set by prepareCommand; the zero session traces nothing.
var activeTracing = &tracing{tracer: trace.Nop}

// setupTracing resolves trace settings from flags, falling back to the
// [trace] table, and attaches the tracer to the command context.
func setupTracing(cmd *cobra.Command, fileCfg config.TraceConfig) (*tracing, error) {
	get := func(name, fallback string) (string, error) { return flagOrConfig(cmd, name, fallback) }

	output, err := get("trace", fileCfg.Output)
	if err != nil {
		return nil, err
	}
	levelStr, err := get("trace-level", fileCfg.Level)
	if err != nil {
		return nil, err
	}
	modeStr, err := get("trace-mode", fileCfg.Mode)
	if err != nil {
		return nil, err
	}
	ringStr, err := get("trace-ring-size", strconv.Itoa(fileCfg.RingSize))
	if err != nil {
		return nil, err
	}
	scopesStr, err := get("trace-scopes", fileCfg.Scopes)
	if err != nil {
		return nil, err
	}
	interval, err := heartbeatInterval(cmd, fileCfg)
	if err != nil {
		return nil, err
	}

	level, err := trace.ParseLevel(levelStr)
	if err != nil {
		return nil, err
	}
	if level == trace.LevelOff {
		cmd.SetContext(trace.WithTracer(cmd.Context(), trace.Nop))
		return &tracing{tracer: trace.Nop}, nil
	}
	mode, err := trace.ParseMode(modeStr)
	if err != nil {
		return nil, err
	}
	ringSize, err := strconv.Atoi(ringStr)
	if err != nil {
		return nil, fmt.Errorf("invalid trace ring size %q: %w", ringStr, err)
	}
	scopes, err := trace.ParseScopes(scopesStr)
	if err != nil {
		return nil, err
	}

	cfg := trace.Config{
		Level:      level,
		Scopes:     scopes,
		Mode:       mode,
		OutputPath: output,
		RingSize:   ringSize,
	}
	tracer, err := trace.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	ctx := trace.WithTracer(cmd.Context(), tracer)
	cmd.SetContext(ctx)
	cmd.Root().SetContext(ctx)

	return &tracing{
		tracer:    tracer,
		mode:      mode,
		output:    output,
		heartbeat: trace.StartHeartbeat(tracer, interval),
		toStderr:  cfg.ToStderr(),
	}, nil
}

// close stops the heartbeat, dumps a ring-only trace and closes the tracer.
// Problems are reported on errOut; the command result stands.
func (s *tracing) close(errOut *os.File) {
	s.heartbeat.Stop()
	if s.mode == trace.ModeRing {
		if ring := trace.RingOf(s.tracer); ring != nil {
			if err := dumpRing(ring, s.output); err != nil {
				fmt.Fprintf(errOut, "trace: dump error: %v\n", err)
			}
		}
	}
	if err := s.tracer.Flush(); err != nil {
		fmt.Fprintf(errOut, "trace: flush error: %v\n", err)
	}
	if err := s.tracer.Close(); err != nil {
		fmt.Fprintf(errOut, "trace: close error: %v\n", err)
	}
}

func heartbeatInterval(cmd *cobra.Command, fileCfg config.TraceConfig) (time.Duration, error) {
	if cmd.Flags().Changed("trace-heartbeat") {
		d, err := cmd.Flags().GetDuration("trace-heartbeat")
		if err != nil {
			return 0, fmt.Errorf("failed to get trace-heartbeat flag: %w", err)
		}
		return d, nil
	}
	return config.Config{Trace: fileCfg}.HeartbeatInterval()
}

// dumpRing writes the retained events of a ring tracer to path, or to
// stderr when path is empty.
func dumpRing(ring *trace.RingTracer, path string) error {
	if path == "" || path == "-" {
		return ring.Dump(os.Stderr, trace.FormatText)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	format := trace.FormatText
	if ext := filepath.Ext(path); ext == ".ndjson" || ext == ".jsonl" {
		format = trace.FormatNDJSON
	}
	if err := ring.Dump(f, format); err != nil {
		_ = f.Close() //nolint:errcheck
		return err
	}
	return f.Close()
}
