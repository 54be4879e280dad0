package compositekey

// Intern returns the canonical token for values in the default store.
func Intern(values ...any) (Token, error) { return Default().Intern(values...) }

// CompositeKey returns the canonical token for values in the default store.
func CompositeKey(values ...any) (Token, error) { return Default().CompositeKey(values...) }

// Lookup reports the token already interned for values in the default store.
func Lookup(values ...any) (Token, bool, error) { return Default().Lookup(values...) }

// CompositeSymbol returns the canonical symbol for values in the default store.
func CompositeSymbol(values ...any) (*Symbol, error) { return Default().CompositeSymbol(values...) }

// SymbolFor returns the process-wide symbol for key.
func SymbolFor(key string) *Symbol { return Default().SymbolFor(key) }

// KeyFor returns the key a global symbol was created for.
func KeyFor(sym *Symbol) (string, bool) { return Default().KeyFor(sym) }
