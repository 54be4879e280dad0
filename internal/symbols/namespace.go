package symbols

import (
	"strings"
	"sync"
)

// Namespace maps strings to symbols for the life of the process. Entries
// are never removed: two callers passing the same key always meet.
type Namespace struct {
	mu    sync.RWMutex
	byID  []*Symbol          // insertion order
	index map[string]*Symbol // key -> symbol
}

// NewNamespace returns an empty namespace.
func NewNamespace() *Namespace {
	return &Namespace{index: make(map[string]*Symbol)}
}

var global = sync.OnceValue(NewNamespace)

// Global returns the process-wide namespace.
func Global() *Namespace { return global() }

// For returns the symbol registered under key, creating it on first use.
func (ns *Namespace) For(key string) *Symbol {
	ns.mu.RLock()
	sym, ok := ns.index[key]
	ns.mu.RUnlock()
	if ok {
		return sym
	}

	ns.mu.Lock()
	defer ns.mu.Unlock()
	if sym, ok := ns.index[key]; ok {
		return sym
	}
	// own copy so the key does not pin the caller's buffer
	key = strings.Clone(key)
	sym = newSymbol(key, true)
	ns.index[key] = sym
	ns.byID = append(ns.byID, sym)
	return sym
}

// KeyFor returns the key sym was registered under in this namespace.
func (ns *Namespace) KeyFor(sym *Symbol) (string, bool) {
	if !sym.IsGlobal() {
		return "", false
	}
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	if ns.index[sym.desc] != sym {
		return "", false
	}
	return sym.desc, true
}

// Len returns the number of registered keys.
func (ns *Namespace) Len() int {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	return len(ns.byID)
}

// Keys returns a copy of all keys in registration order.
func (ns *Namespace) Keys() []string {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	keys := make([]string, len(ns.byID))
	for i, sym := range ns.byID {
		keys[i] = sym.desc
	}
	return keys
}
