// Package compositekey turns tuples of Go values into canonical tokens and
// symbols.
//
// A tuple mixes identity-bearing values (non-nil pointers, maps and
// channels, compared by address) with scalars (every other comparable
// value, compared by value). Interning the same tuple twice yields the same
// Token; changing any value, its position or the tuple length yields a
// different one:
//
//	a, b := &node{}, &node{}
//	k1, _ := compositekey.Intern(a, b, 0)
//	k2, _ := compositekey.Intern(a, b, 0)
//	// k1 == k2
//	k3, _ := compositekey.Intern(b, a, 0)
//	// k1 != k3
//
// Every tuple needs at least one identity-bearing value; all-scalar tuples
// fail with *InvalidKeyError. Tokens hold no reference to the tuple, and the
// store forgets a tuple once any of its identity-bearing values has been
// garbage collected, so interning never pins the values it is given.
//
// Scalars follow "same value" semantics: NaN equals NaN, +0 and -0 differ,
// and values of different dynamic types never match. nil (typed or not) is
// a scalar. Funcs, slices and pointers to zero-sized types are rejected.
// So are arrays and structs carrying a float or complex number, since ==
// can never match a nested NaN.
//
// Pointers to pointer-free values smaller than 16 bytes (*int64, *[8]byte)
// are rejected too. The runtime packs such values into shared blocks that
// are freed together, so the store could not tell when one of them died.
// Wrap them in a larger struct or one holding a pointer.
//
// Reclaiming a branch also disarms the cleanups registered for identity
// values further down its path, and a branch table that has shrunk to a
// quarter of its peak is rebuilt, so a long-lived value shared by many
// short-lived tuples holds no memory for them once they are gone.
//
// CompositeSymbol maps a tuple to a *Symbol the same way, except that a
// single plain string goes to the process-wide namespace shared with
// SymbolFor.
//
// The package-level functions use a default Store built on first use.
// NewStore builds independent stores; every Store is safe for concurrent use.
package compositekey
