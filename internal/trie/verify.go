package trie

import "fmt"

// Verify walks the trie and checks its structural invariants:
//  1. no identity branch hangs below a scalar branch
//  2. no node reachable from the root is marked detached
//  3. every token sits at the depth of its arity
//  4. every live identity branch has a cleanup armed on its referent
//  5. the live counters match what the walk finds
//
// It holds the trie lock for the whole walk.
func (t *Trie) Verify() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var got subtree
	if err := verifyNode(t.root, 0, false, &got); err != nil {
		return err
	}
	switch {
	case got.nodes != t.stats.Nodes:
		return fmt.Errorf("node count mismatch: walked %d, counted %d", got.nodes, t.stats.Nodes)
	case got.identity != t.stats.IdentityBranches:
		return fmt.Errorf("identity branch count mismatch: walked %d, counted %d", got.identity, t.stats.IdentityBranches)
	case got.scalar != t.stats.ScalarBranches:
		return fmt.Errorf("scalar branch count mismatch: walked %d, counted %d", got.scalar, t.stats.ScalarBranches)
	case got.tokens != t.stats.Tokens:
		return fmt.Errorf("token count mismatch: walked %d, counted %d", got.tokens, t.stats.Tokens)
	}
	return nil
}

func verifyNode(n *node, depth int, belowScalar bool, acc *subtree) error {
	if n.detached {
		return fmt.Errorf("detached node reachable at depth %d", depth)
	}
	if belowScalar && len(n.identity) > 0 {
		return fmt.Errorf("identity branch below a scalar branch at depth %d", depth)
	}
	acc.nodes++
	if n.token != nil {
		acc.tokens++
		if n.token.arity != depth {
			return fmt.Errorf("token #%d has arity %d at depth %d", n.token.id, n.token.arity, depth)
		}
	}
	acc.identity += len(n.identity)
	acc.scalar += len(n.scalar)
	for _, child := range n.identity {
		if !child.watched {
			return fmt.Errorf("identity branch at depth %d has no armed cleanup", depth+1)
		}
		if err := verifyNode(child, depth+1, false, acc); err != nil {
			return err
		}
	}
	for _, child := range n.scalar {
		if err := verifyNode(child, depth+1, true, acc); err != nil {
			return err
		}
	}
	return nil
}
