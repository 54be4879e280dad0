// Package trace provides event tracing for the composite key store and the
// ckey tool.
//
// # Usage
//
// Enable tracing via command-line flags:
//
//	ckey stress --trace=- --trace-level=detail
//
// # Architecture
//
// The package provides several tracer implementations:
//
//   - Nop: zero-overhead tracer used when tracing is disabled
//   - StreamTracer: immediate write to an output (file/stderr)
//   - RingTracer: circular buffer kept in memory for post-mortem dumps
//   - MultiTracer: fans out to several tracers
//
// # Levels
//
//   - LevelOff: no tracing
//   - LevelError: only crash dumps
//   - LevelOp: CLI commands and store-wide operations
//   - LevelDetail: adds stress worker events
//   - LevelDebug: everything, including per-branch trie events
//
// # Scopes
//
//   - ScopeDriver: top-level CLI operations
//   - ScopeStore: store-wide operations (collection, verification)
//   - ScopeWorker: per-worker stress activity
//   - ScopeBranch: trie branch allocation and reclamation
//
// --trace-scopes narrows a level further, e.g. --trace-level=debug
// --trace-scopes=branch keeps only trie branch events. Heartbeats always
// pass and carry the store counters of the running stress command.
//
// # Context Propagation
//
// A context carries the tracer and the span that new spans hang under:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	ctx, span := trace.StartSpan(ctx, trace.ScopeStore, "stress")
//	defer span.End("")
package trace
