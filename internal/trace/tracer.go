package trace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Tracer receives events from the store, the stress runner and the CLI.
// Implementations must be safe for concurrent use.
type Tracer interface {
	Emit(ev *Event)
	Flush() error
	Close() error
	Level() Level
	Enabled() bool
}

type nopTracer struct{}

func (nopTracer) Emit(*Event) {}
func (nopTracer) Flush() error { return nil }
func (nopTracer) Close() error { return nil }
func (nopTracer) Level() Level { return LevelOff }
func (nopTracer) Enabled() bool { return false }

// Nop discards everything. It is what FromContext returns when no tracer
// was attached.
var Nop Tracer = nopTracer{}

// StorageMode selects where events go.
type StorageMode uint8

const (
	ModeStream StorageMode = iota + 1 // written as they happen
	ModeRing                          // kept in memory, dumped on exit
	ModeBoth
)

var modeNames = map[StorageMode]string{ModeStream: "stream", ModeRing: "ring", ModeBoth: "both"}

// String returns the string representation of StorageMode.
func (m StorageMode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return "unknown"
}

// ParseMode converts a string to StorageMode.
func ParseMode(s string) (StorageMode, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for m, name := range modeNames {
		if name == want {
			return m, nil
		}
	}
	return ModeRing, fmt.Errorf("invalid storage mode: %q (expected: stream|ring|both)", s)
}

// Config describes the tracer built by New.
type Config struct {
	Level  Level
	Mode   StorageMode
	Scopes ScopeSet // empty keeps every scope the level allows

	Format     Format    // FormatAuto picks by the extension of OutputPath
	Output     io.Writer // overrides OutputPath
	OutputPath string    // "" or "-" is stderr
	RingSize   int       // defaults to 4096
}

// ToStderr reports whether events are streamed to stderr as they happen,
// where they would interleave with anything else drawn on the terminal.
func (c Config) ToStderr() bool {
	if c.Level == LevelOff || c.Mode == ModeRing || c.Output != nil {
		return false
	}
	return c.OutputPath == "" || c.OutputPath == "-"
}

// New builds the tracer described by cfg. A disabled level yields Nop.
func New(cfg Config) (Tracer, error) {
	if cfg.Level == LevelOff {
		return Nop, nil
	}
	if cfg.RingSize <= 0 {
		cfg.RingSize = 4096
	}

	var sinks []Tracer
	if cfg.Mode == ModeStream || cfg.Mode == ModeBoth {
		w, err := openOutput(cfg)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, NewStreamTracer(w, cfg.Level, formatFor(cfg)))
	}
	if cfg.Mode == ModeRing || cfg.Mode == ModeBoth {
		sinks = append(sinks, NewRingTracer(cfg.RingSize, cfg.Level))
	}

	var t Tracer
	switch len(sinks) {
	case 0:
		return nil, fmt.Errorf("unknown storage mode: %v", cfg.Mode)
	case 1:
		t = sinks[0]
	default:
		t = NewMultiTracer(cfg.Level, sinks...)
	}
	if cfg.Scopes != 0 {
		t = &scopedTracer{Tracer: t, scopes: cfg.Scopes}
	}
	return t, nil
}

func formatFor(cfg Config) Format {
	if cfg.Format != FormatAuto {
		return cfg.Format
	}
	switch filepath.Ext(cfg.OutputPath) {
	case ".ndjson", ".jsonl":
		return FormatNDJSON
	}
	return FormatText
}

func openOutput(cfg Config) (io.Writer, error) {
	if cfg.Output != nil {
		return cfg.Output, nil
	}
	if cfg.OutputPath == "" || cfg.OutputPath == "-" {
		return nopCloser{os.Stderr}, nil
	}
	f, err := os.Create(cfg.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace output: %w", err)
	}
	return f, nil
}

// nopCloser keeps StreamTracer.Close from closing stderr.
type nopCloser struct{ io.Writer }

// scopedTracer drops events outside its scope set. Heartbeats always pass.
type scopedTracer struct {
	Tracer
	scopes ScopeSet
}

func (t *scopedTracer) Emit(ev *Event) {
	if ev == nil || (ev.Kind != KindHeartbeat && !t.scopes.Has(ev.Scope)) {
		return
	}
	t.Tracer.Emit(ev)
}

// RingOf returns the ring buffer behind t, looking through scope filters
// and fan-outs, or nil when t keeps no ring.
func RingOf(t Tracer) *RingTracer {
	switch v := t.(type) {
	case *RingTracer:
		return v
	case *scopedTracer:
		return RingOf(v.Tracer)
	case *MultiTracer:
		return v.Ring()
	}
	return nil
}
