package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tc39/proposal-richer-keys/internal/stress"
)

var (
	headerColor = color.New(color.Bold)
	passColor   = color.New(color.FgGreen, color.Bold)
	errColor    = color.New(color.FgRed, color.Bold)
)

// renderReportPretty prints r with grouped digits.
func renderReportPretty(out io.Writer, r *stress.Report) {
	p := message.NewPrinter(language.English)

	verdict := passColor.Sprint("PASS")
	if !r.OK() {
		verdict = errColor.Sprint("FAIL")
	}
	fmt.Fprintf(out, "%s %s\n", headerColor.Sprint("stress run"), verdict)
	fmt.Fprintf(out, "  started:    %s\n", r.StartedAt.Format("2006-01-02 15:04:05 MST"))
	p.Fprintf(out, "  workload:   %d workers, %d objects + %d shared, arity %d, %d rounds, seed %d\n",
		r.Workers, r.Objects, r.Shared, r.Arity, r.Rounds, r.Seed)
	p.Fprintf(out, "  tuples:     %d\n", r.Tuples)
	p.Fprintf(out, "  checks:     %d (%d mismatches)\n", r.Checks, r.Mismatches)

	fmt.Fprintf(out, "  %-10s  %12s %12s %12s\n", "", "baseline", "peak", "final")
	row := func(name string, base, peak, final int) {
		p.Fprintf(out, "  %-10s  %12d %12d %12d\n", name, base, peak, final)
	}
	row("nodes", r.Baseline.Nodes, r.Peak.Nodes, r.Final.Nodes)
	row("identity", r.Baseline.IdentityBranches, r.Peak.IdentityBranches, r.Final.IdentityBranches)
	row("scalar", r.Baseline.ScalarBranches, r.Peak.ScalarBranches, r.Final.ScalarBranches)
	row("tokens", r.Baseline.Tokens, r.Peak.Tokens, r.Final.Tokens)
	row("symbols", r.Baseline.Symbols, r.Peak.Symbols, r.Final.Symbols)

	p.Fprintf(out, "  reclaimed:  %d branches, %d nodes, %d symbols\n",
		r.Final.ReclaimedBranches, r.Final.ReclaimedNodes, r.Final.SymbolsDropped)
	p.Fprintf(out, "  cleanups:   %d stopped, %d stale, %d tables compacted\n",
		r.Final.StoppedCleanups, r.Final.StaleCleanups, r.Final.CompactedTables)
	if !r.Reclaimed {
		fmt.Fprintln(out, errColor.Sprint("  store did not return to its baseline"))
	}
}

func renderReportJSON(out io.Writer, r *stress.Report) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
