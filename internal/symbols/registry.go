package symbols

import (
	"runtime"
	"sync"
	"weak"

	"github.com/tc39/proposal-richer-keys/internal/trie"
)

// Registry maps tokens to symbols. Entries are keyed weakly on the token
// allocation and dropped once the token is unreachable; a symbol never
// refers back to its token.
type Registry struct {
	mu      sync.Mutex
	byToken map[weak.Pointer[trie.Handle]]*Symbol
	dropped uint64
	self    weak.Pointer[Registry]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	r := &Registry{byToken: make(map[weak.Pointer[trie.Handle]]*Symbol)}
	r.self = weak.Make(r)
	return r
}

// SymbolFor returns the symbol for tok, creating it on first use.
// It panics on an invalid token.
func (r *Registry) SymbolFor(tok trie.Token) *Symbol {
	h := tok.Handle()
	if h == nil {
		panic("symbols: SymbolFor on invalid token")
	}
	key := weak.Make(h)

	r.mu.Lock()
	defer r.mu.Unlock()
	if sym, ok := r.byToken[key]; ok {
		return sym
	}
	sym := newSymbol("", false)
	r.byToken[key] = sym
	runtime.AddCleanup(h, dropEntry, registryEntry{registry: r.self, key: key})
	return sym
}

// Len returns the number of live entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byToken)
}

// Dropped returns how many entries were removed after their token died.
func (r *Registry) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

type registryEntry struct {
	registry weak.Pointer[Registry]
	key      weak.Pointer[trie.Handle]
}

func dropEntry(e registryEntry) {
	r := e.registry.Value()
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byToken[e.key]; ok {
		delete(r.byToken, e.key)
		r.dropped++
	}
}
