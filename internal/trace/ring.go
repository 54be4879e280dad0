package trace

import (
	"fmt"
	"io"
	"sync"
)

// RingTracer keeps the most recent events in memory so a run that ends
// badly can still show what the store did last.
type RingTracer struct {
	mu    sync.RWMutex
	slots []Event
	total uint64 // events ever stored; slot of the next one is total % len(slots)
	level Level
}

// NewRingTracer returns a ring holding up to capacity events.
func NewRingTracer(capacity int, level Level) *RingTracer {
	if capacity <= 0 {
		capacity = 4096
	}
	return &RingTracer{slots: make([]Event, capacity), level: level}
}

// Emit stores a copy of ev, overwriting the oldest event once full.
func (t *RingTracer) Emit(ev *Event) {
	if ev == nil || (ev.Kind != KindHeartbeat && !t.level.ShouldEmit(ev.Scope)) {
		return
	}
	stored := *ev
	if stored.Seq == 0 {
		stored.Seq = NextSeq()
	}

	t.mu.Lock()
	t.slots[t.total%uint64(len(t.slots))] = stored
	t.total++
	t.mu.Unlock()
}

// Overwritten reports how many events were pushed out of the ring.
func (t *RingTracer) Overwritten() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if n := uint64(len(t.slots)); t.total > n {
		return t.total - n
	}
	return 0
}

// Snapshot returns the retained events, oldest first.
func (t *RingTracer) Snapshot() []Event {
	return t.Select(nil)
}

// Select returns the retained events keep accepts, oldest first. A nil
// keep accepts everything.
func (t *RingTracer) Select(keep func(*Event) bool) []Event {
	t.mu.RLock()
	defer t.mu.RUnlock()

	size := uint64(len(t.slots))
	first := uint64(0)
	if t.total > size {
		first = t.total - size
	}
	out := make([]Event, 0, t.total-first)
	for i := first; i < t.total; i++ {
		ev := &t.slots[i%size]
		if keep == nil || keep(ev) {
			out = append(out, *ev)
		}
	}
	return out
}

// Dump writes the retained events to w. Text dumps start with a line that
// says how many older events were lost.
func (t *RingTracer) Dump(w io.Writer, format Format) error {
	events := t.Snapshot()
	if format == FormatText {
		if lost := t.Overwritten(); lost > 0 {
			if _, err := fmt.Fprintf(w, "# %d earlier events overwritten\n", lost); err != nil {
				return err
			}
		}
	}
	for i := range events {
		if _, err := w.Write(FormatEvent(&events[i], format)); err != nil {
			return err
		}
	}
	return nil
}

func (t *RingTracer) Flush() error { return nil }

func (t *RingTracer) Close() error { return nil }

// Level returns the level the ring was built with.
func (t *RingTracer) Level() Level { return t.level }

// Enabled reports whether the ring records anything.
func (t *RingTracer) Enabled() bool { return t.level > LevelOff }
