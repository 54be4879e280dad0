package symbols

import "fmt"

// Symbol is an opaque identifier compared by pointer. Global symbols carry
// their namespace key as description; composite symbols carry none.
type Symbol struct {
	id     SymbolID
	desc   string
	global bool
}

func newSymbol(desc string, global bool) *Symbol {
	return &Symbol{id: nextSymbolID(), desc: desc, global: global}
}

// ID returns the symbol's process-wide sequence number.
func (s *Symbol) ID() SymbolID {
	if s == nil {
		return NoSymbolID
	}
	return s.id
}

// Description returns the description given at creation.
func (s *Symbol) Description() string {
	if s == nil {
		return ""
	}
	return s.desc
}

// IsGlobal reports whether the symbol lives in the global namespace.
func (s *Symbol) IsGlobal() bool { return s != nil && s.global }

func (s *Symbol) String() string {
	switch {
	case s == nil:
		return "Symbol(nil)"
	case s.global:
		return fmt.Sprintf("Symbol(%s)", s.desc)
	default:
		return fmt.Sprintf("Symbol(#%d)", s.id)
	}
}
