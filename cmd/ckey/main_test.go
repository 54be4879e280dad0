package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tc39/proposal-richer-keys/compositekey"
	"github.com/tc39/proposal-richer-keys/internal/config"
	"github.com/tc39/proposal-richer-keys/internal/observ"
	"github.com/tc39/proposal-richer-keys/internal/stress"
	"github.com/tc39/proposal-richer-keys/internal/symbols"
	"github.com/tc39/proposal-richer-keys/internal/version"
)

func disableColor(t *testing.T) {
	t.Helper()
	orig := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = orig })
}

func sampleReport() *stress.Report {
	return &stress.Report{
		Schema:     2,
		StartedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Workers:    4,
		Objects:    4000,
		Shared:     16,
		Arity:      3,
		Rounds:     4,
		Seed:       1,
		Tuples:     64256,
		Checks:     192768,
		Peak:       stress.Snapshot{Nodes: 192769, Tokens: 64256, Symbols: 64},
		Final:      stress.Snapshot{Nodes: 2, ReclaimedBranches: 64256, ReclaimedNodes: 192767, StoppedCleanups: 128512},
		Reclaimed:  true,
		Timings:    observ.Report{TotalMS: 12.5, Phases: []observ.PhaseReport{{Name: "intern", DurationMS: 12.5}}},
		Mismatches: 0,
	}
}

func TestRunDemo(t *testing.T) {
	disableColor(t)
	store := compositekey.NewStore(compositekey.WithNamespace(symbols.NewNamespace()))

	var out bytes.Buffer
	require.NoError(t, runDemo(&out, store))

	text := out.String()
	assert.NotContains(t, text, "FAIL")
	assert.Contains(t, text, "composite keys:")
	assert.Contains(t, text, "composite symbols:")
	assert.Contains(t, text, "every branch reclaimed")
	assert.Contains(t, text, "Symbol(demo.global)")
}

func TestProgressViewLive(t *testing.T) {
	cases := []struct {
		name string
		view progressView
		want bool
	}{
		{"forced on", progressView{mode: config.UIOn, traceStderr: true}, true},
		{"forced off", progressView{mode: config.UIOff, interactive: true}, false},
		{"auto on a terminal", progressView{mode: config.UIAuto, interactive: true}, true},
		{"auto piped", progressView{mode: config.UIAuto}, false},
		{"auto with stderr trace", progressView{mode: config.UIAuto, interactive: true, traceStderr: true}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.view.live())
		})
	}
}

func TestStoreProbe(t *testing.T) {
	store := compositekey.NewStore(compositekey.WithNamespace(symbols.NewNamespace()))
	a := &demoObject{name: "a"}
	_, err := store.CompositeKey(a, 1)
	require.NoError(t, err)

	got := storeProbe(store)()
	assert.Equal(t, "1", got["tokens"])
	assert.Equal(t, "3", got["nodes"])
	assert.Equal(t, "0", got["reclaimed"])
	runtime.KeepAlive(a)
}

func TestApplyColorMode(t *testing.T) {
	disableColor(t)
	require.NoError(t, applyColorMode("on"))
	assert.False(t, color.NoColor)
	require.NoError(t, applyColorMode("off"))
	assert.True(t, color.NoColor)
	require.Error(t, applyColorMode("rainbow"))
}

func TestRenderReportPretty(t *testing.T) {
	disableColor(t)
	var out bytes.Buffer
	renderReportPretty(&out, sampleReport())

	text := out.String()
	assert.True(t, strings.HasPrefix(text, "stress run PASS\n"))
	assert.Contains(t, text, "tuples:     64,256")
	assert.Contains(t, text, "checks:     192,768 (0 mismatches)")
	assert.Contains(t, text, "4,000 objects + 16 shared")
	assert.Contains(t, text, "cleanups:   128,512 stopped, 0 stale, 0 tables compacted")
	assert.NotContains(t, text, "did not return")

	failed := sampleReport()
	failed.Reclaimed = false
	out.Reset()
	renderReportPretty(&out, failed)
	assert.True(t, strings.HasPrefix(out.String(), "stress run FAIL\n"))
	assert.Contains(t, out.String(), "store did not return to its baseline")
}

func TestReportCommandJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.msgpack")
	want := sampleReport()
	require.NoError(t, stress.WriteReport(path, want))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"report", path, "--format", "json", "--color", "off"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		reportFormat = "pretty"
	})
	require.NoError(t, rootCmd.Execute())

	var got stress.Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, want.Tuples, got.Tuples)
	assert.Equal(t, want.Peak, got.Peak)
	assert.True(t, got.Reclaimed)
}

func TestRenderVersion(t *testing.T) {
	disableColor(t)
	info := version.Info{Version: "1.2.3", GitCommit: "abc123"}

	var out bytes.Buffer
	renderVersionPretty(&out, info, versionOptions{showHash: true})
	assert.Contains(t, out.String(), "ckey 1.2.3\n")
	assert.Contains(t, out.String(), "commit: abc123\n")
	assert.Contains(t, out.String(), "go:     unknown\n")

	out.Reset()
	require.NoError(t, renderVersionJSON(&out, info, versionOptions{showDate: true}))
	var payload versionPayload
	require.NoError(t, json.Unmarshal(out.Bytes(), &payload))
	assert.Equal(t, "ckey", payload.Tool)
	assert.Equal(t, "1.2.3", payload.Version)
	assert.Empty(t, payload.GitCommit)
	assert.Equal(t, "unknown", payload.BuildDate)
}
