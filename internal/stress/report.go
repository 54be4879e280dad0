package stress

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/tc39/proposal-richer-keys/compositekey"
	"github.com/tc39/proposal-richer-keys/internal/observ"
)

// reportSchemaVersion is bumped whenever Report changes shape.
const reportSchemaVersion uint16 = 2

// ErrSchemaMismatch is returned when a report was written by another version.
var ErrSchemaMismatch = errors.New("stress report schema mismatch")

// Snapshot is the serializable form of store statistics.
type Snapshot struct {
	Nodes             int    `json:"nodes" msgpack:"nodes"`
	IdentityBranches  int    `json:"identity_branches" msgpack:"identity_branches"`
	ScalarBranches    int    `json:"scalar_branches" msgpack:"scalar_branches"`
	Tokens            int    `json:"tokens" msgpack:"tokens"`
	Symbols           int    `json:"symbols" msgpack:"symbols"`
	TokensAllocated   uint64 `json:"tokens_allocated" msgpack:"tokens_allocated"`
	ReclaimedBranches uint64 `json:"reclaimed_branches" msgpack:"reclaimed_branches"`
	ReclaimedNodes    uint64 `json:"reclaimed_nodes" msgpack:"reclaimed_nodes"`
	SymbolsDropped    uint64 `json:"symbols_dropped" msgpack:"symbols_dropped"`
	StoppedCleanups   uint64 `json:"stopped_cleanups" msgpack:"stopped_cleanups"`
	StaleCleanups     uint64 `json:"stale_cleanups" msgpack:"stale_cleanups"`
	CompactedTables   uint64 `json:"compacted_tables" msgpack:"compacted_tables"`
}

func snapshotOf(st compositekey.Stats) Snapshot {
	return Snapshot{
		Nodes:             st.Nodes,
		IdentityBranches:  st.IdentityBranches,
		ScalarBranches:    st.ScalarBranches,
		Tokens:            st.Tokens,
		Symbols:           st.Symbols,
		TokensAllocated:   st.TokensAllocated,
		ReclaimedBranches: st.ReclaimedBranches,
		ReclaimedNodes:    st.ReclaimedNodes,
		SymbolsDropped:    st.SymbolsDropped,
		StoppedCleanups:   st.StoppedCleanups,
		StaleCleanups:     st.StaleCleanups,
		CompactedTables:   st.CompactedTables,
	}
}

// Report summarizes a stress run.
type Report struct {
	Schema     uint16        `json:"schema" msgpack:"schema"`
	StartedAt  time.Time     `json:"started_at" msgpack:"started_at"`
	Workers    int           `json:"workers" msgpack:"workers"`
	Objects    int           `json:"objects" msgpack:"objects"`
	Shared     int           `json:"shared" msgpack:"shared"`
	Arity      int           `json:"arity" msgpack:"arity"`
	Rounds     int           `json:"rounds" msgpack:"rounds"`
	Seed       uint64        `json:"seed" msgpack:"seed"`
	Tuples     uint64        `json:"tuples" msgpack:"tuples"`
	Checks     uint64        `json:"checks" msgpack:"checks"`
	Mismatches uint64        `json:"mismatches" msgpack:"mismatches"`
	Baseline   Snapshot      `json:"baseline" msgpack:"baseline"`
	Peak       Snapshot      `json:"peak" msgpack:"peak"`
	Final      Snapshot      `json:"final" msgpack:"final"`
	Reclaimed  bool          `json:"reclaimed" msgpack:"reclaimed"`
	Timings    observ.Report `json:"timings" msgpack:"timings"`
}

// OK reports whether the run saw no mismatches and the store shrank back.
func (r *Report) OK() bool {
	return r != nil && r.Mismatches == 0 && r.Reclaimed
}

// WriteReport encodes r with msgpack and atomically replaces path.
func WriteReport(path string, r *Report) (err error) {
	if r == nil {
		return fmt.Errorf("nil report")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "report-*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if rmErr := os.Remove(f.Name()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
			err = rmErr
		}
	}()

	if err := msgpack.NewEncoder(f).Encode(r); err != nil {
		_ = f.Close() //nolint:errcheck
		return fmt.Errorf("encode report: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

// ReadReport decodes a report written by WriteReport.
func ReadReport(path string) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	var r Report
	if err := msgpack.NewDecoder(f).Decode(&r); err != nil {
		return nil, fmt.Errorf("%s: decode report: %w", path, err)
	}
	if r.Schema != reportSchemaVersion {
		return nil, fmt.Errorf("%s: %w: got %d, want %d", path, ErrSchemaMismatch, r.Schema, reportSchemaVersion)
	}
	return &r, nil
}
