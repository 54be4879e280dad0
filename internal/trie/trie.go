// Package trie interns tuples of Go values into canonical tokens.
//
// A tuple is walked in two passes: first every identity-bearing component
// (pointers, maps, channels) descends through weakly keyed branch tables,
// then every scalar component descends through ordinary tables. Each branch
// key pairs the value with its position. Because weak tables always sit
// above strong ones, the subtree under an identity branch is released as
// soon as its referent becomes unreachable: a runtime cleanup registered on
// the referent deletes the branch.
package trie

import (
	"runtime"
	"strconv"
	"sync"
	"unsafe"
	"weak"

	"github.com/tc39/proposal-richer-keys/internal/trace"
)

// Trie is a canonicalizing store of tuple tokens. The zero value is not
// usable; call New.
type Trie struct {
	mu     sync.Mutex
	root   *node
	nextID uint64
	stats  Stats
	tracer trace.Tracer
	self   weak.Pointer[Trie]
}

// Stats describes the live shape of a trie.
type Stats struct {
	Nodes             int    // live nodes, root included
	IdentityBranches  int    // live weak branch entries
	ScalarBranches    int    // live strong branch entries
	Tokens            int    // live tokens
	TokensAllocated   uint64 // tokens ever allocated
	ReclaimedBranches uint64 // identity branches removed by cleanups
	ReclaimedNodes    uint64 // nodes released with those branches
	StoppedCleanups   uint64 // cleanups cancelled because their branch was released first
	StaleCleanups     uint64 // cleanups that fired after their branch was already gone
	CompactedTables   uint64 // identity tables rebuilt after shrinking
}

// New returns an empty trie. A nil tracer disables tracing.
func New(tracer trace.Tracer) *Trie {
	if tracer == nil {
		tracer = trace.Nop
	}
	t := &Trie{
		root:   &node{},
		tracer: tracer,
		stats:  Stats{Nodes: 1},
	}
	t.self = weak.Make(t)
	return t
}

// Intern returns the token for values, allocating trie nodes and the token
// on first use. It fails with *InvalidKeyError when values holds no
// identity-bearing component or holds an unsupported one.
func (t *Trie) Intern(values []any) (Token, error) {
	refs, scalars, err := split(values)
	if err != nil {
		return NoToken, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	defer runtime.KeepAlive(values)

	n := t.root
	for _, c := range refs {
		key := identityKey{ref: weak.Make((*byte)(c.ref)), typ: c.typ, pos: c.pos}
		child, created := n.identityChild(key)
		if created {
			child.cleanup = t.watch(c.ref, n, key)
			child.watched = true
			t.stats.Nodes++
			t.stats.IdentityBranches++
			trace.Point(t.tracer, trace.ScopeBranch, "branch.identity", c.typ.String(), "pos", strconv.FormatUint(uint64(c.pos), 10))
		}
		n = child
	}
	for _, c := range scalars {
		child, created := n.scalarChild(scalarKey{val: c.scalar, pos: c.pos})
		if created {
			t.stats.Nodes++
			t.stats.ScalarBranches++
			trace.Point(t.tracer, trace.ScopeBranch, "branch.scalar", "", "pos", strconv.FormatUint(uint64(c.pos), 10))
		}
		n = child
	}

	if n.token == nil {
		t.nextID++
		n.token = &Handle{id: t.nextID, arity: len(values)}
		t.stats.Tokens++
		t.stats.TokensAllocated++
		trace.Point(t.tracer, trace.ScopeBranch, "token.alloc", "", "id", strconv.FormatUint(t.nextID, 10))
	}
	return Token{n.token}, nil
}

// Lookup reports the token already interned for values without allocating
// any trie state.
func (t *Trie) Lookup(values []any) (Token, bool, error) {
	refs, scalars, err := split(values)
	if err != nil {
		return NoToken, false, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	defer runtime.KeepAlive(values)

	n := t.root
	for _, c := range refs {
		n = n.identity[identityKey{ref: weak.Make((*byte)(c.ref)), typ: c.typ, pos: c.pos}]
		if n == nil {
			return NoToken, false, nil
		}
	}
	for _, c := range scalars {
		n = n.scalar[scalarKey{val: c.scalar, pos: c.pos}]
		if n == nil {
			return NoToken, false, nil
		}
	}
	if n.token == nil {
		return NoToken, false, nil
	}
	return Token{n.token}, true, nil
}

// Stats returns a snapshot of the trie counters.
func (t *Trie) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// reclaim is the cleanup argument for one identity branch. It holds the
// trie and the owning node weakly so a pending cleanup never pins them.
type reclaim struct {
	trie  weak.Pointer[Trie]
	owner weak.Pointer[node]
	key   identityKey
}

// watch arranges for key to be dropped from owner once ref is unreachable.
// Pointers outside the heap (package-level variables) never die, and
// AddCleanup ignores them.
func (t *Trie) watch(ref unsafe.Pointer, owner *node, key identityKey) runtime.Cleanup {
	return runtime.AddCleanup((*byte)(ref), reclaimBranch, reclaim{
		trie:  t.self,
		owner: weak.Make(owner),
		key:   key,
	})
}

func reclaimBranch(r reclaim) {
	t := r.trie.Value()
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	owner := r.owner.Value()
	if owner == nil || owner.detached {
		t.stats.StaleCleanups++
		return
	}
	child, ok := owner.identity[r.key]
	if !ok {
		t.stats.StaleCleanups++
		return
	}
	delete(owner.identity, r.key)
	child.watched = false
	if owner.compactIdentity() {
		t.stats.CompactedTables++
	}

	var acc subtree
	child.detach(&acc)
	t.stats.Nodes -= acc.nodes
	t.stats.IdentityBranches -= acc.identity + 1
	t.stats.ScalarBranches -= acc.scalar
	t.stats.Tokens -= acc.tokens
	t.stats.ReclaimedBranches++
	t.stats.ReclaimedNodes += uint64(acc.nodes)    //nolint:gosec // acc.nodes is a non-negative count
	t.stats.StoppedCleanups += uint64(acc.stopped) //nolint:gosec // acc.stopped is a non-negative count

	trace.Point(t.tracer, trace.ScopeBranch, "branch.reclaim", r.key.typ.String(),
		"pos", strconv.FormatUint(uint64(r.key.pos), 10),
		"nodes", strconv.Itoa(acc.nodes))
}
