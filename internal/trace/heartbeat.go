package trace

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"
)

// Probe samples live counters for a heartbeat, such as the token and node
// counts of the store under test.
type Probe func() map[string]string

// Heartbeat emits a heartbeat event every interval. Each beat carries the
// elapsed time and whatever the attached probe reports, so a stress run
// whose store stops shrinking during collection is visible in the trace.
type Heartbeat struct {
	tracer Tracer
	probe  atomic.Pointer[Probe]
	cancel context.CancelFunc
	done   chan struct{}
}

// StartHeartbeat starts beating on tracer. It returns nil when tracing is
// off or interval is not positive; every method accepts a nil receiver.
func StartHeartbeat(tracer Tracer, interval time.Duration) *Heartbeat {
	if tracer == nil || !tracer.Enabled() || interval <= 0 {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Heartbeat{tracer: tracer, cancel: cancel, done: make(chan struct{})}
	go h.run(ctx, interval)
	return h
}

// Observe attaches probe to the following beats, replacing any earlier one.
func (h *Heartbeat) Observe(probe Probe) {
	if h == nil {
		return
	}
	if probe == nil {
		h.probe.Store(nil)
		return
	}
	h.probe.Store(&probe)
}

func (h *Heartbeat) run(ctx context.Context, interval time.Duration) {
	defer close(h.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	start := time.Now()
	for beat := 1; ; beat++ {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			h.tracer.Emit(h.event(now, beat, now.Sub(start)))
		}
	}
}

func (h *Heartbeat) event(now time.Time, beat int, elapsed time.Duration) *Event {
	extra := map[string]string{"elapsed": elapsed.Round(time.Millisecond).String()}
	if p := h.probe.Load(); p != nil {
		for k, v := range (*p)() {
			extra[k] = v
		}
	}
	return &Event{
		Time:   now,
		Seq:    NextSeq(),
		Kind:   KindHeartbeat,
		Scope:  ScopeDriver,
		GID:    goroutineID(),
		Name:   "heartbeat",
		Detail: "#" + strconv.Itoa(beat),
		Extra:  extra,
	}
}

// Stop ends the beats and waits for the last one to be emitted. It is safe
// to call more than once.
func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}
	h.cancel()
	<-h.done
}
