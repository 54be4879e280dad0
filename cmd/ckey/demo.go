package main

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tc39/proposal-richer-keys/compositekey"
	"github.com/tc39/proposal-richer-keys/internal/trace"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Walk through composite keys and composite symbols",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tracer := trace.FromContext(cmd.Context())
		store := compositekey.NewStore(compositekey.WithTracer(tracer))
		return runDemo(cmd.OutOrStdout(), store)
	},
}

// demoObject is the identity value used by the demo.
type demoObject struct {
	name string
	tags []string
}

var (
	okColor   = color.New(color.FgGreen)
	failColor = color.New(color.FgRed)
	noteColor = color.New(color.Faint)
)

func runDemo(out io.Writer, store *compositekey.Store) error {
	if err := demoKeys(out, store); err != nil {
		return err
	}
	if err := demoSymbols(out, store); err != nil {
		return err
	}
	// The all-scalar symbol hangs off the store's own sentinel and lives
	// as long as the store.
	return demoRelease(out, store, 1)
}

func demoKeys(out io.Writer, store *compositekey.Store) error {
	a := &demoObject{name: "a"}
	b := &demoObject{name: "b"}

	k1, err := store.CompositeKey(a, 1, "x")
	if err != nil {
		return err
	}
	k2, err := store.CompositeKey(a, 1, "x")
	if err != nil {
		return err
	}
	k3, err := store.CompositeKey(b, 1, "x")
	if err != nil {
		return err
	}
	k4, err := store.CompositeKey(1, a, "x")
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "composite keys:")
	report(out, "(a, 1, \"x\") twice", k1 == k2, k1.String())
	report(out, "(b, 1, \"x\") differs", k3 != k1, k3.String())
	report(out, "(1, a, \"x\") differs", k4 != k1, k4.String())

	_, err = store.CompositeKey(1, "x")
	var ike *compositekey.InvalidKeyError
	report(out, "(1, \"x\") rejected", errors.As(err, &ike), errString(err))
	_, err = store.CompositeKey(a, []int{1})
	report(out, "(a, []int) rejected", errors.Is(err, compositekey.ErrInvalidKey), errString(err))

	runtime.KeepAlive(a)
	runtime.KeepAlive(b)
	return nil
}

func demoSymbols(out io.Writer, store *compositekey.Store) error {
	a := &demoObject{name: "a"}

	s1, err := store.CompositeSymbol(a, 1)
	if err != nil {
		return err
	}
	s2, err := store.CompositeSymbol(a, 1)
	if err != nil {
		return err
	}
	s3, err := store.CompositeSymbol(1)
	if err != nil {
		return err
	}
	g, err := store.CompositeSymbol("demo.global")
	if err != nil {
		return err
	}
	key, ok := store.KeyFor(g)

	fmt.Fprintln(out, "composite symbols:")
	report(out, "(a, 1) twice", s1 == s2, s1.String())
	report(out, "(1) is a symbol", s3 != nil && s3 != s1, s3.String())
	report(out, "(\"demo.global\") is global", g == store.SymbolFor("demo.global"), g.String())
	report(out, "global key round-trips", ok && key == "demo.global", key)

	runtime.KeepAlive(a)
	return nil
}

func demoRelease(out io.Writer, store *compositekey.Store, pinned int) error {
	before := store.Stats()
	fmt.Fprintln(out, "release:")
	fmt.Fprintf(out, "  %s\n", noteColor.Sprintf("before collection: %d nodes, %d tokens, %d symbols", before.Nodes, before.Tokens, before.Symbols))

	deadline := time.Now().Add(5 * time.Second)
	after := before
	for time.Now().Before(deadline) {
		runtime.GC()
		after = store.Stats()
		if after.Tokens <= pinned && after.Symbols <= pinned {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	report(out, "every branch reclaimed", after.Tokens <= pinned && after.Symbols <= pinned,
		fmt.Sprintf("%d nodes, %d tokens, %d symbols", after.Nodes, after.Tokens, after.Symbols))
	return nil
}

func report(out io.Writer, label string, ok bool, detail string) {
	mark := okColor.Sprint("ok  ")
	if !ok {
		mark = failColor.Sprint("FAIL")
	}
	fmt.Fprintf(out, "  %s %-28s %s\n", mark, label, noteColor.Sprint(detail))
}

func errString(err error) string {
	if err == nil {
		return "<nil>"
	}
	return err.Error()
}
