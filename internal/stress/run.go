package stress

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"fortio.org/safecast"
	"golang.org/x/sync/errgroup"

	"github.com/tc39/proposal-richer-keys/compositekey"
	"github.com/tc39/proposal-richer-keys/internal/observ"
	"github.com/tc39/proposal-richer-keys/internal/trace"
)

// ErrNotReclaimed is returned when the store does not shrink back to its
// baseline before the collect timeout.
var ErrNotReclaimed = errors.New("store did not return to baseline")

// progressEvery controls how often workers report progress.
const progressEvery = 64

type counters struct {
	tuples     atomic.Uint64
	checks     atomic.Uint64
	mismatches atomic.Uint64
}

func (c *counters) check(ok bool) {
	c.checks.Add(1)
	if !ok {
		c.mismatches.Add(1)
	}
}

func validate(opts *Options) error {
	switch {
	case opts.Workers < 1:
		return fmt.Errorf("workers must be at least 1, got %d", opts.Workers)
	case opts.Arity < 1:
		return fmt.Errorf("arity must be at least 1, got %d", opts.Arity)
	case opts.Rounds < 1:
		return fmt.Errorf("rounds must be at least 1, got %d", opts.Rounds)
	case opts.Objects < 0 || opts.Shared < 0:
		return fmt.Errorf("object counts must not be negative")
	case opts.Objects+opts.Shared == 0:
		return fmt.Errorf("nothing to intern: objects and shared are both zero")
	}
	if opts.CollectTimeout <= 0 {
		opts.CollectTimeout = DefaultOptions().CollectTimeout
	}
	if opts.Progress == nil {
		opts.Progress = nopSink{}
	}
	return nil
}

// Run interns a concurrent workload into store, verifies that every tuple
// is canonicalized, drops every identity value and waits until the store
// is back to the size it had before the run.
//
// The returned report is non-nil whenever the workload itself ran; a
// collect timeout yields both the report and ErrNotReclaimed.
func Run(ctx context.Context, store *compositekey.Store, opts Options) (*Report, error) {
	if store == nil {
		return nil, fmt.Errorf("nil store")
	}
	if err := validate(&opts); err != nil {
		return nil, err
	}

	ctx, span := trace.StartSpan(ctx, trace.ScopeStore, "stress")
	defer span.End("")

	timer := observ.NewTimer()
	report := &Report{
		Schema:    reportSchemaVersion,
		StartedAt: time.Now(),
		Workers:   opts.Workers,
		Objects:   opts.Objects,
		Shared:    opts.Shared,
		Arity:     opts.Arity,
		Rounds:    opts.Rounds,
		Seed:      opts.Seed,
		Baseline:  snapshotOf(store.Stats()),
	}

	var c counters
	peak, err := exercise(ctx, store, &opts, timer, &c)
	report.Tuples = c.tuples.Load()
	report.Checks = c.checks.Load()
	report.Mismatches = c.mismatches.Load()
	report.Peak = peak
	if err != nil {
		report.Final = snapshotOf(store.Stats())
		report.Timings = timer.Report()
		return report, err
	}

	collectIdx := timer.Begin(string(StageCollect))
	opts.Progress.OnEvent(Event{Worker: NoWorker, Stage: StageCollect, Status: StatusWorking})
	start := time.Now()
	final, reclaimed, err := waitForBaseline(ctx, store, report.Baseline, opts.CollectTimeout)
	timer.End(collectIdx, "")
	report.Final = final
	report.Reclaimed = reclaimed
	report.Timings = timer.Report()

	if err == nil {
		if verr := store.Verify(); verr != nil {
			err = fmt.Errorf("store invariants after collect: %w", verr)
		}
	}
	status := StatusDone
	if err == nil && !reclaimed {
		err = fmt.Errorf("%w after %s: %d tokens, %d symbols", ErrNotReclaimed, opts.CollectTimeout, final.Tokens, final.Symbols)
	}
	if err != nil {
		status = StatusError
	}
	opts.Progress.OnEvent(Event{Worker: NoWorker, Stage: StageCollect, Status: status, Err: err, Elapsed: time.Since(start)})

	span.WithExtra("tuples", strconv.FormatUint(report.Tuples, 10)).
		WithExtra("mismatches", strconv.FormatUint(report.Mismatches, 10)).
		WithExtra("reclaimed", strconv.FormatBool(reclaimed))
	return report, err
}

// exercise runs the intern and verify stages. Every identity value it
// creates is unreachable once it returns.
func exercise(ctx context.Context, store *compositekey.Store, opts *Options, timer *observ.Timer, c *counters) (Snapshot, error) {
	shared := newObjects(NoWorker, opts.Shared)
	sharedTokens := make([][]compositekey.Token, opts.Workers)

	internIdx := timer.Begin(string(StageIntern))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for w := range opts.Workers {
		g.Go(func() error {
			toks, err := runWorker(gctx, store, opts, w, shared, c)
			sharedTokens[w] = toks
			return err
		})
	}
	err := g.Wait()
	timer.End(internIdx, fmt.Sprintf("%d workers", opts.Workers))
	if err != nil {
		return Snapshot{}, err
	}

	verifyIdx := timer.Begin("cross-check")
	// Every worker interned the same tuples for the shared objects, so
	// they must all hold the same tokens.
	for w := 1; w < len(sharedTokens); w++ {
		for i, tok := range sharedTokens[w] {
			c.check(tok == sharedTokens[0][i])
		}
	}
	timer.End(verifyIdx, "")

	if err := store.Verify(); err != nil {
		return Snapshot{}, fmt.Errorf("store invariants after verify: %w", err)
	}
	peak := snapshotOf(store.Stats())
	runtime.KeepAlive(shared)

	opts.Progress.OnEvent(Event{Worker: NoWorker, Stage: StageRelease, Status: StatusDone})
	return peak, nil
}

// runWorker interns the worker's tuples, re-interns them to check they are
// stable, and returns the tokens of the tuples built on shared objects.
func runWorker(ctx context.Context, store *compositekey.Store, opts *Options, worker int, shared []*object, c *counters) ([]compositekey.Token, error) {
	ctx, span := trace.StartSpan(ctx, trace.ScopeWorker, "stress.worker")
	span.WithExtra("worker", strconv.Itoa(worker))
	defer span.End("")

	own := newObjects(worker, opts.Objects)
	total := opts.TuplesPerWorker()
	start := time.Now()
	sink := opts.Progress
	sink.OnEvent(Event{Worker: worker, Stage: StageIntern, Status: StatusWorking, Total: total})

	type entry struct {
		tuple []any
		tok   compositekey.Token
	}
	entries := make([]entry, 0, total)
	sharedTokens := make([]compositekey.Token, 0, len(shared)*opts.Rounds)

	for round := range opts.Rounds {
		for slot, obj := range shared {
			tuple := buildTuple(opts.Seed, obj, slot, round, opts.Arity)
			tok, err := store.Intern(tuple...)
			if err != nil {
				return nil, fmt.Errorf("worker %d: %w", worker, err)
			}
			entries = append(entries, entry{tuple: tuple, tok: tok})
			sharedTokens = append(sharedTokens, tok)
		}
		for i, obj := range own {
			slot := len(shared) + worker*opts.Objects + i
			tuple := buildTuple(opts.Seed, obj, slot, round, opts.Arity)
			tok, err := store.Intern(tuple...)
			if err != nil {
				return nil, fmt.Errorf("worker %d: %w", worker, err)
			}
			entries = append(entries, entry{tuple: tuple, tok: tok})
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := safecast.Conv[uint64](len(shared) + len(own))
		if err != nil {
			return nil, err
		}
		c.tuples.Add(n)
		sink.OnEvent(Event{Worker: worker, Stage: StageIntern, Status: StatusWorking, Done: len(entries), Total: total, Elapsed: time.Since(start)})
	}

	sink.OnEvent(Event{Worker: worker, Stage: StageVerify, Status: StatusWorking, Total: total})
	for i, e := range entries {
		again, err := store.Intern(e.tuple...)
		if err != nil {
			return nil, fmt.Errorf("worker %d: %w", worker, err)
		}
		c.check(again == e.tok)

		found, ok, err := store.Lookup(e.tuple...)
		if err != nil {
			return nil, fmt.Errorf("worker %d: %w", worker, err)
		}
		c.check(ok && found == e.tok)

		if len(e.tuple) > 1 {
			rotated, err := store.Intern(rotate(e.tuple)...)
			if err != nil {
				return nil, fmt.Errorf("worker %d: %w", worker, err)
			}
			c.check(rotated != e.tok)
		}

		if i < len(shared) {
			first, err := store.CompositeSymbol(e.tuple...)
			if err != nil {
				return nil, fmt.Errorf("worker %d: %w", worker, err)
			}
			second, err := store.CompositeSymbol(e.tuple...)
			if err != nil {
				return nil, fmt.Errorf("worker %d: %w", worker, err)
			}
			c.check(first == second)
		}

		if (i+1)%progressEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			sink.OnEvent(Event{Worker: worker, Stage: StageVerify, Status: StatusWorking, Done: i + 1, Total: total, Elapsed: time.Since(start)})
		}
	}

	sink.OnEvent(Event{Worker: worker, Stage: StageVerify, Status: StatusDone, Done: total, Total: total, Elapsed: time.Since(start)})
	span.WithExtra("tuples", strconv.Itoa(total))
	return sharedTokens, nil
}

// waitForBaseline forces collections until the store holds no more tokens
// and symbols than baseline, or the timeout expires. Nodes are not
// compared: the branch of the symbol sentinel outlives the run.
func waitForBaseline(ctx context.Context, store *compositekey.Store, baseline Snapshot, timeout time.Duration) (Snapshot, bool, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()

	for {
		runtime.GC()
		snap := snapshotOf(store.Stats())
		if snap.Tokens <= baseline.Tokens && snap.Symbols <= baseline.Symbols {
			trace.Point(trace.FromContext(ctx), trace.ScopeStore, "stress.reclaimed", "",
				"tokens", strconv.Itoa(snap.Tokens))
			return snap, true, nil
		}
		select {
		case <-ctx.Done():
			return snap, false, ctx.Err()
		case <-deadline.C:
			return snap, false, nil
		case <-tick.C:
		}
	}
}
