package trie

import (
	"reflect"
	"runtime"
	"weak"
)

// identityKey is a weak branch: the weak pointer never keeps the referent
// alive, and compares equal only for the same live allocation.
type identityKey struct {
	ref weak.Pointer[byte]
	typ reflect.Type
	pos uint32
}

type scalarKey struct {
	val any
	pos uint32
}

// compactThreshold is the smallest identity table peak that is rebuilt
// once reclaims have emptied most of it.
const compactThreshold = 64

// node is one step of a branch path. Identity tables are always walked
// before scalar tables, so a strong table is never an ancestor of a weak one.
type node struct {
	identity     map[identityKey]*node
	identityPeak int
	scalar       map[scalarKey]*node
	token        *Handle
	cleanup      runtime.Cleanup // armed on the referent of the branch leading here
	watched      bool
	detached     bool // cut from the trie by a reclaim
}

func (n *node) identityChild(k identityKey) (*node, bool) {
	if child, ok := n.identity[k]; ok {
		return child, false
	}
	if n.identity == nil {
		n.identity = make(map[identityKey]*node)
	}
	child := &node{}
	n.identity[k] = child
	n.identityPeak = max(n.identityPeak, len(n.identity))
	return child, true
}

func (n *node) scalarChild(k scalarKey) (*node, bool) {
	if child, ok := n.scalar[k]; ok {
		return child, false
	}
	if n.scalar == nil {
		n.scalar = make(map[scalarKey]*node)
	}
	child := &node{}
	n.scalar[k] = child
	return child, true
}

// compactIdentity rebuilds the identity table once it holds a quarter or
// less of its peak. Deleting from a map never returns its buckets.
func (n *node) compactIdentity() bool {
	if n.identityPeak < compactThreshold || len(n.identity) > n.identityPeak/4 {
		return false
	}
	if len(n.identity) == 0 {
		n.identity = nil
	} else {
		rebuilt := make(map[identityKey]*node, len(n.identity))
		for k, child := range n.identity {
			rebuilt[k] = child
		}
		n.identity = rebuilt
	}
	n.identityPeak = len(n.identity)
	return true
}

// subtree counts a detached subtree and marks every node in it so pending
// reclaims for deeper identity branches become no-ops.
type subtree struct {
	nodes, identity, scalar, tokens, stopped int
}

// detach marks n and everything below it, and stops the cleanups armed
// for identity branches inside the subtree.
func (n *node) detach(acc *subtree) {
	n.detached = true
	acc.nodes++
	if n.token != nil {
		acc.tokens++
	}
	acc.identity += len(n.identity)
	acc.scalar += len(n.scalar)
	for _, child := range n.identity {
		if child.watched {
			child.cleanup.Stop()
			child.watched = false
			acc.stopped++
		}
		child.detach(acc)
	}
	for _, child := range n.scalar {
		child.detach(acc)
	}
}
