// Package config loads ckey.toml, the optional configuration file of the
// ckey command.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/tc39/proposal-richer-keys/internal/stress"
	"github.com/tc39/proposal-richer-keys/internal/trace"
)

// FileName is the name Find looks for.
const FileName = "ckey.toml"

// Config mirrors the layout of ckey.toml.
type Config struct {
	Trace  TraceConfig  `toml:"trace"`
	Stress StressConfig `toml:"stress"`
	Output OutputConfig `toml:"output"`
}

// TraceConfig is the [trace] table.
type TraceConfig struct {
	Level     string `toml:"level"`
	Mode      string `toml:"mode"`
	Output    string `toml:"output"`
	RingSize  int    `toml:"ring_size"`
	Heartbeat string `toml:"heartbeat"`
	Scopes    string `toml:"scopes"`
}

// StressConfig is the [stress] table.
type StressConfig struct {
	Workers        int    `toml:"workers"`
	Objects        int    `toml:"objects"`
	Shared         int    `toml:"shared"`
	Arity          int    `toml:"arity"`
	Rounds         int    `toml:"rounds"`
	Seed           uint64 `toml:"seed"`
	CollectTimeout string `toml:"collect_timeout"`
	Report         string `toml:"report"`
}

// OutputConfig is the [output] table.
type OutputConfig struct {
	Color string `toml:"color"`
	UI    string `toml:"ui"`
}

// UIMode says when the stress command draws its live progress view.
type UIMode string

const (
	UIAuto UIMode = "auto" // only on an interactive stdout with no trace stream on stderr
	UIOn   UIMode = "on"
	UIOff  UIMode = "off"
)

// ParseUIMode reads an [output].ui or --ui value; empty means auto.
func ParseUIMode(value string) (UIMode, error) {
	switch m := UIMode(strings.ToLower(strings.TrimSpace(value))); m {
	case "":
		return UIAuto, nil
	case UIAuto, UIOn, UIOff:
		return m, nil
	}
	return "", fmt.Errorf("invalid ui mode %q (expected auto|on|off)", value)
}

// Default returns the configuration used when no file is found.
func Default() Config {
	opts := stress.DefaultOptions()
	return Config{
		Trace: TraceConfig{
			Level:    "off",
			Mode:     "stream",
			Output:   "",
			RingSize: 4096,
		},
		Stress: StressConfig{
			Workers:        opts.Workers,
			Objects:        opts.Objects,
			Shared:         opts.Shared,
			Arity:          opts.Arity,
			Rounds:         opts.Rounds,
			Seed:           opts.Seed,
			CollectTimeout: opts.CollectTimeout.String(),
		},
		Output: OutputConfig{
			Color: "auto",
			UI:    "auto",
		},
	}
}

// Find walks from startDir up to the filesystem root looking for
// ckey.toml.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load decodes path over Default and validates the result. Keys absent
// from the file keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Discover loads the first ckey.toml found from startDir upwards, or
// returns Default when there is none.
func Discover(startDir string) (Config, string, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return Config{}, "", err
	}
	if !ok {
		return Default(), "", nil
	}
	cfg, err := Load(path)
	if err != nil {
		return Config{}, "", err
	}
	return cfg, path, nil
}

// Validate checks every value that has a restricted domain.
func (c Config) Validate() error {
	if _, err := trace.ParseLevel(c.Trace.Level); err != nil {
		return fmt.Errorf("[trace].level: %w", err)
	}
	if _, err := trace.ParseMode(c.Trace.Mode); err != nil {
		return fmt.Errorf("[trace].mode: %w", err)
	}
	if c.Trace.RingSize <= 0 {
		return fmt.Errorf("[trace].ring_size must be positive, got %d", c.Trace.RingSize)
	}
	if _, err := c.HeartbeatInterval(); err != nil {
		return fmt.Errorf("[trace].heartbeat: %w", err)
	}
	if _, err := trace.ParseScopes(c.Trace.Scopes); err != nil {
		return fmt.Errorf("[trace].scopes: %w", err)
	}
	if _, err := c.StressOptions(); err != nil {
		return err
	}
	if !oneOf(c.Output.Color, "auto", "on", "off") {
		return fmt.Errorf("[output].color must be auto, on or off, got %q", c.Output.Color)
	}
	if _, err := ParseUIMode(c.Output.UI); err != nil {
		return fmt.Errorf("[output].ui: %w", err)
	}
	return nil
}

// HeartbeatInterval parses [trace].heartbeat; empty means disabled.
func (c Config) HeartbeatInterval() (time.Duration, error) {
	if strings.TrimSpace(c.Trace.Heartbeat) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Trace.Heartbeat)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative interval %s", d)
	}
	return d, nil
}

// StressOptions converts [stress] into runner options.
func (c Config) StressOptions() (stress.Options, error) {
	s := c.Stress
	switch {
	case s.Workers < 1:
		return stress.Options{}, fmt.Errorf("[stress].workers must be at least 1, got %d", s.Workers)
	case s.Arity < 1:
		return stress.Options{}, fmt.Errorf("[stress].arity must be at least 1, got %d", s.Arity)
	case s.Rounds < 1:
		return stress.Options{}, fmt.Errorf("[stress].rounds must be at least 1, got %d", s.Rounds)
	case s.Objects < 0 || s.Shared < 0:
		return stress.Options{}, fmt.Errorf("[stress].objects and [stress].shared must not be negative")
	}
	timeout := stress.DefaultOptions().CollectTimeout
	if strings.TrimSpace(s.CollectTimeout) != "" {
		d, err := time.ParseDuration(s.CollectTimeout)
		if err != nil {
			return stress.Options{}, fmt.Errorf("[stress].collect_timeout: %w", err)
		}
		if d <= 0 {
			return stress.Options{}, fmt.Errorf("[stress].collect_timeout must be positive, got %s", d)
		}
		timeout = d
	}
	return stress.Options{
		Workers:        s.Workers,
		Objects:        s.Objects,
		Shared:         s.Shared,
		Arity:          s.Arity,
		Rounds:         s.Rounds,
		Seed:           s.Seed,
		CollectTimeout: timeout,
	}, nil
}

func oneOf(s string, choices ...string) bool {
	for _, c := range choices {
		if s == c {
			return true
		}
	}
	return false
}
