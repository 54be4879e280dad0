package trie

import "fmt"

// Handle is the allocation behind a Token. Its address is the token's
// identity; the fields are diagnostics only.
type Handle struct {
	id    uint64
	arity int
}

// Token is the canonical output of Intern. Two tokens are equal iff they
// come from the same leaf. The zero Token is invalid.
type Token struct {
	h *Handle
}

// NoToken marks the absence of a token.
var NoToken Token

// IsValid reports whether the token came from Intern.
func (t Token) IsValid() bool { return t.h != nil }

// ID returns the token's sequence number within its trie (0 for NoToken).
func (t Token) ID() uint64 {
	if t.h == nil {
		return 0
	}
	return t.h.id
}

// Arity returns the length of the tuple the token was interned from.
func (t Token) Arity() int {
	if t.h == nil {
		return 0
	}
	return t.h.arity
}

// Handle exposes the token allocation so callers can hold it weakly.
func (t Token) Handle() *Handle { return t.h }

func (t Token) String() string {
	if t.h == nil {
		return "token(none)"
	}
	return fmt.Sprintf("token#%d/%d", t.h.id, t.h.arity)
}
