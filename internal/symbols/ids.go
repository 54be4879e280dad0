package symbols

import "sync/atomic"

// SymbolID identifies a symbol process-wide.
type SymbolID uint64

const (
	// NoSymbolID marks the absence of a symbol reference.
	NoSymbolID SymbolID = 0
)

// IsValid reports whether the symbol ID refers to an allocated symbol.
func (id SymbolID) IsValid() bool { return id != NoSymbolID }

var lastSymbolID atomic.Uint64

func nextSymbolID() SymbolID { return SymbolID(lastSymbolID.Add(1)) }
