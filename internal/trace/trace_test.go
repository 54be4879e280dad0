package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{"": LevelOff, "off": LevelOff, "Error": LevelError, " op ": LevelOp, "detail": LevelDetail, "DEBUG": LevelDebug} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("verbose")
	require.Error(t, err)
}

func TestShouldEmit(t *testing.T) {
	assert.False(t, LevelOff.ShouldEmit(ScopeDriver))
	assert.False(t, LevelError.ShouldEmit(ScopeDriver))
	assert.True(t, LevelOp.ShouldEmit(ScopeStore))
	assert.False(t, LevelOp.ShouldEmit(ScopeWorker))
	assert.True(t, LevelDetail.ShouldEmit(ScopeWorker))
	assert.False(t, LevelDetail.ShouldEmit(ScopeBranch))
	assert.True(t, LevelDebug.ShouldEmit(ScopeBranch))
}

func TestParseModeAndFormat(t *testing.T) {
	mode, err := ParseMode("Both")
	require.NoError(t, err)
	assert.Equal(t, ModeBoth, mode)
	_, err = ParseMode("disk")
	require.Error(t, err)

	format, err := ParseFormat("json")
	require.NoError(t, err)
	assert.Equal(t, FormatNDJSON, format)
	_, err = ParseFormat("xml")
	require.Error(t, err)
}

func TestFormatText(t *testing.T) {
	ev := &Event{
		Seq:      7,
		Kind:     KindPoint,
		Scope:    ScopeBranch,
		ParentID: 1,
		Name:     "branch.identity",
		Detail:   "pos 0",
		Extra:    map[string]string{"type": "*main.obj", "depth": "1"},
	}
	got := string(FormatEvent(ev, FormatText))
	assert.Equal(t, "#7      [branch]   • branch.identity (pos 0) {depth=1, type=*main.obj}\n", got)
}

func TestFormatNDJSON(t *testing.T) {
	ev := &Event{
		Time:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Seq:   3,
		Kind:  KindSpanBegin,
		Scope: ScopeStore,
		Name:  "stress",
	}
	line := FormatEvent(ev, FormatNDJSON)
	require.True(t, bytes.HasSuffix(line, []byte("\n")))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(line, &decoded))
	assert.Equal(t, "begin", decoded["kind"])
	assert.Equal(t, "store", decoded["scope"])
	assert.Equal(t, "stress", decoded["name"])
	assert.Equal(t, "2026-01-02T03:04:05.000000Z", decoded["time"])
	assert.NotContains(t, decoded, "detail")
}

func TestRingTracerWraps(t *testing.T) {
	ring := NewRingTracer(3, LevelDebug)
	for i := 1; i <= 5; i++ {
		ring.Emit(&Event{Seq: uint64(i), Kind: KindPoint, Scope: ScopeBranch})
	}
	snap := ring.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, []uint64{3, 4, 5}, []uint64{snap[0].Seq, snap[1].Seq, snap[2].Seq})
	assert.Equal(t, uint64(2), ring.Overwritten())

	var buf bytes.Buffer
	require.NoError(t, ring.Dump(&buf, FormatText))
	assert.True(t, strings.HasPrefix(buf.String(), "# 2 earlier events overwritten\n"))
	assert.Equal(t, 4, strings.Count(buf.String(), "\n"))
}

func TestRingTracerSelect(t *testing.T) {
	ring := NewRingTracer(8, LevelDebug)
	Point(ring, ScopeBranch, "branch.identity", "")
	Point(ring, ScopeBranch, "branch.reclaim", "")
	Point(ring, ScopeStore, "stress.reclaimed", "")
	Point(ring, ScopeBranch, "branch.reclaim", "")

	reclaims := ring.Select(func(ev *Event) bool { return ev.Name == "branch.reclaim" })
	require.Len(t, reclaims, 2)
	assert.Less(t, reclaims[0].Seq, reclaims[1].Seq)
	assert.Len(t, ring.Snapshot(), 4)
	assert.Zero(t, ring.Overwritten())
}

func TestRingTracerFiltersByLevel(t *testing.T) {
	ring := NewRingTracer(8, LevelOp)
	ring.Emit(&Event{Kind: KindPoint, Scope: ScopeBranch})
	ring.Emit(&Event{Kind: KindPoint, Scope: ScopeStore})
	ring.Emit(&Event{Kind: KindHeartbeat, Scope: ScopeDriver})
	assert.Len(t, ring.Snapshot(), 2)
}

func TestMultiTracerCopiesEvents(t *testing.T) {
	var buf bytes.Buffer
	stream := NewStreamTracer(&buf, LevelDebug, FormatText)
	ring := NewRingTracer(4, LevelDebug)
	multi := NewMultiTracer(LevelDebug, stream, ring)

	Point(multi, ScopeBranch, "token.alloc", "", "id", "1")
	assert.Contains(t, buf.String(), "token.alloc {id=1}")
	require.Len(t, ring.Snapshot(), 1)
	assert.Same(t, ring, multi.Ring())
	require.NoError(t, multi.Flush())
	require.NoError(t, multi.Close())
}

func TestSpanLifecycle(t *testing.T) {
	ring := NewRingTracer(8, LevelDetail)
	parent := Begin(ring, ScopeStore, "stress", 0)
	child := Begin(ring, ScopeWorker, "stress.worker", parent.ID()).WithExtra("worker", "0")
	skipped := Begin(ring, ScopeBranch, "branch", child.ID())
	skipped.End("")
	child.End("ok")
	parent.End("")

	snap := ring.Snapshot()
	require.Len(t, snap, 4)
	assert.Equal(t, KindSpanBegin, snap[0].Kind)
	assert.Equal(t, parent.ID(), snap[1].ParentID)
	assert.Equal(t, KindSpanEnd, snap[2].Kind)
	assert.Equal(t, "ok", snap[2].Detail)
	assert.Equal(t, map[string]string{"worker": "0"}, snap[2].Extra)
	assert.Zero(t, skipped.ID())
}

func TestNopTracer(t *testing.T) {
	assert.False(t, Nop.Enabled())
	span := Begin(Nop, ScopeDriver, "noop", 0)
	assert.Zero(t, span.End(""))
	Point(Nop, ScopeDriver, "noop", "")
	Point(nil, ScopeDriver, "noop", "")
}

func TestContextPropagation(t *testing.T) {
	assert.Equal(t, Nop, FromContext(context.Background()))
	assert.Zero(t, ParentSpan(context.Background()))

	ring := NewRingTracer(8, LevelDetail)
	ctx := WithTracer(context.Background(), ring)
	assert.Same(t, ring, FromContext(ctx).(*RingTracer))

	runCtx, run := StartSpan(ctx, ScopeStore, "stress")
	workerCtx, worker := StartSpan(runCtx, ScopeWorker, "stress.worker")
	branchCtx, branch := StartSpan(workerCtx, ScopeBranch, "branch")
	assert.Equal(t, run.ID(), ParentSpan(runCtx))
	assert.Equal(t, worker.ID(), ParentSpan(workerCtx))
	assert.Zero(t, branch.ID(), "detail level filters branch spans")
	assert.Equal(t, worker.ID(), ParentSpan(branchCtx))
	assert.Zero(t, ParentSpan(ctx))

	worker.End("")
	run.End("")
	snap := ring.Snapshot()
	require.Len(t, snap, 4)
	assert.Equal(t, run.ID(), snap[1].ParentID)

	// retargeting the tracer keeps the parent span
	other := NewRingTracer(1, LevelDebug)
	assert.Equal(t, worker.ID(), ParentSpan(WithTracer(workerCtx, other)))
}

func TestNewTracer(t *testing.T) {
	tr, err := New(Config{Level: LevelOff})
	require.NoError(t, err)
	assert.Equal(t, Nop, tr)

	path := filepath.Join(t.TempDir(), "trace.ndjson")
	tr, err = New(Config{Level: LevelOp, Mode: ModeStream, OutputPath: path})
	require.NoError(t, err)
	Point(tr, ScopeStore, "hello", "")
	require.NoError(t, tr.Close())
	assert.Nil(t, RingOf(tr))

	tr, err = New(Config{Level: LevelOp, Mode: ModeRing, RingSize: 2})
	require.NoError(t, err)
	_, ok := tr.(*RingTracer)
	assert.True(t, ok)

	var buf bytes.Buffer
	tr, err = New(Config{Level: LevelOp, Mode: ModeBoth, Output: &buf})
	require.NoError(t, err)
	require.NotNil(t, RingOf(tr))

	_, err = New(Config{Level: LevelOp, Mode: StorageMode(9)})
	require.Error(t, err)
}

func TestConfigToStderr(t *testing.T) {
	assert.True(t, Config{Level: LevelOp, Mode: ModeStream}.ToStderr())
	assert.True(t, Config{Level: LevelOp, Mode: ModeBoth, OutputPath: "-"}.ToStderr())
	assert.False(t, Config{Level: LevelOp, Mode: ModeRing}.ToStderr())
	assert.False(t, Config{Level: LevelOp, Mode: ModeStream, OutputPath: "run.trace"}.ToStderr())
	assert.False(t, Config{Level: LevelOff, Mode: ModeStream}.ToStderr())
}

func TestParseScopes(t *testing.T) {
	set, err := ParseScopes(" Store, branch ")
	require.NoError(t, err)
	assert.Equal(t, ScopesOf(ScopeStore, ScopeBranch), set)
	assert.True(t, set.Has(ScopeBranch))
	assert.False(t, set.Has(ScopeWorker))
	assert.Equal(t, "store,branch", set.String())

	all, err := ParseScopes("all")
	require.NoError(t, err)
	assert.Zero(t, all)
	assert.True(t, all.Has(ScopeDriver))
	assert.Equal(t, "all", all.String())

	_, err = ParseScopes("store,heap")
	require.Error(t, err)
}

func TestScopedTracer(t *testing.T) {
	tr, err := New(Config{Level: LevelDebug, Mode: ModeRing, Scopes: ScopesOf(ScopeBranch)})
	require.NoError(t, err)
	ring := RingOf(tr)
	require.NotNil(t, ring)

	Point(tr, ScopeStore, "stress.reclaimed", "")
	Point(tr, ScopeBranch, "branch.reclaim", "")
	tr.Emit(&Event{Kind: KindHeartbeat, Scope: ScopeDriver, Name: "heartbeat"})

	snap := ring.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "branch.reclaim", snap[0].Name)
	assert.Equal(t, KindHeartbeat, snap[1].Kind)
}

func TestHeartbeat(t *testing.T) {
	ring := NewRingTracer(64, LevelOp)
	hb := StartHeartbeat(ring, time.Millisecond)
	var live atomic.Int64
	live.Store(7)
	hb.Observe(func() map[string]string {
		return map[string]string{"tokens": strconv.FormatInt(live.Load(), 10)}
	})

	withTokens := func(ev *Event) bool { return ev.Extra["tokens"] == "7" }
	require.Eventually(t, func() bool { return len(ring.Select(withTokens)) > 0 }, 2*time.Second, time.Millisecond)
	hb.Stop()
	hb.Stop()

	beat := ring.Select(withTokens)[0]
	assert.Equal(t, KindHeartbeat, beat.Kind)
	assert.Contains(t, beat.Extra, "elapsed")

	var off *Heartbeat
	assert.Nil(t, StartHeartbeat(Nop, time.Millisecond))
	off.Observe(nil)
	off.Stop()
}
