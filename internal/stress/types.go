package stress

import "time"

// Stage describes a phase of a stress run.
type Stage string

const (
	// StageIntern interns every generated tuple.
	StageIntern Stage = "intern"
	// StageVerify re-interns tuples and checks canonicalization.
	StageVerify Stage = "verify"
	// StageRelease drops every reference the run holds.
	StageRelease Stage = "release"
	// StageCollect waits for the store to shrink back to its baseline.
	StageCollect Stage = "collect"
)

// Status captures progress state within a stage.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusWorking Status = "working"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// Event reports progress for one worker, or for the whole run when Worker
// is NoWorker.
type Event struct {
	Worker  int
	Stage   Stage
	Status  Status
	Done    int // tuples processed so far by the worker
	Total   int // tuples the worker will process
	Err     error
	Elapsed time.Duration
}

// NoWorker marks run-wide events.
const NoWorker = -1

// ProgressSink consumes progress events.
type ProgressSink interface {
	OnEvent(Event)
}

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

type nopSink struct{}

func (nopSink) OnEvent(Event) {}

// Options controls the shape of a run.
type Options struct {
	Workers        int           // concurrent goroutines
	Objects        int           // identity values per worker
	Shared         int           // identity values shared by all workers
	Arity          int           // tuple length, at least 1
	Rounds         int           // tuples per object
	Seed           uint64        // scalar generator seed
	CollectTimeout time.Duration // how long to wait for reclamation
	Progress       ProgressSink
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Workers:        4,
		Objects:        256,
		Shared:         16,
		Arity:          3,
		Rounds:         4,
		Seed:           1,
		CollectTimeout: 10 * time.Second,
	}
}

// TuplesPerWorker returns how many tuples each worker interns.
func (o Options) TuplesPerWorker() int {
	return (o.Objects + o.Shared) * o.Rounds
}
