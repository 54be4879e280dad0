package compositekey

import (
	"errors"
	"sync"

	"github.com/tc39/proposal-richer-keys/internal/symbols"
	"github.com/tc39/proposal-richer-keys/internal/trace"
	"github.com/tc39/proposal-richer-keys/internal/trie"
)

type (
	// Token is the canonical identity of an interned tuple.
	Token = trie.Token
	// Symbol is an opaque identifier minted per tuple or per global key.
	Symbol = symbols.Symbol
	// InvalidKeyError reports a tuple that cannot be interned.
	InvalidKeyError = trie.InvalidKeyError
	// Kind classifies a tuple component.
	Kind = trie.Kind
)

const (
	KindUnsupported = trie.KindUnsupported
	KindScalar      = trie.KindScalar
	KindIdentity    = trie.KindIdentity
)

// ErrInvalidKey matches every InvalidKeyError through errors.Is.
var ErrInvalidKey = trie.ErrInvalidKey

// Stats describes a store.
type Stats struct {
	trie.Stats
	Symbols        int    // live composite symbols
	SymbolsDropped uint64 // composite symbols released with their tokens
	GlobalSymbols  int    // keys in the store's global namespace
}

// registryMarker is prepended to every CompositeSymbol tuple so symbol
// tokens never coincide with CompositeKey tokens for the same values.
type registryMarker struct {
	name string
}

// Store owns one trie, one symbol registry and a reference to a global
// namespace.
type Store struct {
	trie     *trie.Trie
	registry *symbols.Registry
	globals  *symbols.Namespace
	sentinel *registryMarker
}

type options struct {
	tracer    trace.Tracer
	namespace *symbols.Namespace
}

// Option configures NewStore.
type Option func(*options)

// WithTracer attaches a tracer receiving branch-level events.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithNamespace replaces the process-wide namespace used for single-string
// symbols. Tests use it for isolation.
func WithNamespace(ns *symbols.Namespace) Option {
	return func(o *options) { o.namespace = ns }
}

// NewStore returns an empty store.
func NewStore(opts ...Option) *Store {
	o := options{tracer: trace.Nop}
	for _, opt := range opts {
		opt(&o)
	}
	if o.namespace == nil {
		o.namespace = symbols.Global()
	}
	return &Store{
		trie:     trie.New(o.tracer),
		registry: symbols.NewRegistry(),
		globals:  o.namespace,
		sentinel: &registryMarker{name: "compositeSymbol"},
	}
}

var defaultStore = sync.OnceValue(func() *Store { return NewStore() })

// Default returns the process-wide store used by the package-level functions.
func Default() *Store { return defaultStore() }

// Intern returns the canonical token for values.
func (s *Store) Intern(values ...any) (Token, error) {
	return s.trie.Intern(values)
}

// CompositeKey is Intern under the name callers of the key API expect.
func (s *Store) CompositeKey(values ...any) (Token, error) {
	return s.trie.Intern(values)
}

// Lookup returns the token previously interned for values, if any, without
// allocating.
func (s *Store) Lookup(values ...any) (Token, bool, error) {
	return s.trie.Lookup(values)
}

// CompositeSymbol returns the canonical symbol for values. A single plain
// string resolves through SymbolFor; every other tuple, including
// all-scalar ones, gets a symbol of its own.
func (s *Store) CompositeSymbol(values ...any) (*Symbol, error) {
	if len(values) == 1 {
		if key, ok := values[0].(string); ok {
			return s.globals.For(key), nil
		}
	}

	tuple := make([]any, 0, len(values)+1)
	tuple = append(tuple, s.sentinel)
	tuple = append(tuple, values...)
	tok, err := s.trie.Intern(tuple)
	if err != nil {
		var ike *InvalidKeyError
		if errors.As(err, &ike) && ike.Position > 0 {
			ike.Position-- // report positions of the caller's tuple
		}
		return nil, err
	}
	return s.registry.SymbolFor(tok), nil
}

// SymbolFor returns the global symbol for key.
func (s *Store) SymbolFor(key string) *Symbol {
	return s.globals.For(key)
}

// KeyFor returns the key of a global symbol.
func (s *Store) KeyFor(sym *Symbol) (string, bool) {
	return s.globals.KeyFor(sym)
}

// Stats returns a snapshot of the store counters.
func (s *Store) Stats() Stats {
	return Stats{
		Stats:          s.trie.Stats(),
		Symbols:        s.registry.Len(),
		SymbolsDropped: s.registry.Dropped(),
		GlobalSymbols:  s.globals.Len(),
	}
}

// Verify checks the structural invariants of the store's trie.
func (s *Store) Verify() error {
	return s.trie.Verify()
}

// Classify reports how v is treated as a tuple component.
func Classify(v any) Kind { return trie.Classify(v) }
