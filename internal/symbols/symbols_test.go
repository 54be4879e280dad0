package symbols

import (
	"fmt"
	"runtime"
	"sync"
	"testing"
	"time"
	"weak"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tc39/proposal-richer-keys/internal/trie"
)

type object struct {
	name string
	pad  [4]int
}

func TestNamespaceFor(t *testing.T) {
	ns := NewNamespace()

	x := ns.For("x")
	require.NotNil(t, x)
	assert.Same(t, x, ns.For("x"))
	assert.NotSame(t, x, ns.For("y"))
	assert.True(t, x.IsGlobal())
	assert.Equal(t, "x", x.Description())
	assert.Equal(t, "Symbol(x)", x.String())
	assert.True(t, x.ID().IsValid())

	assert.Equal(t, 2, ns.Len())
	assert.Equal(t, []string{"x", "y"}, ns.Keys())
}

func TestNamespaceEmptyKey(t *testing.T) {
	ns := NewNamespace()
	empty := ns.For("")
	assert.Same(t, empty, ns.For(""))
	key, ok := ns.KeyFor(empty)
	assert.True(t, ok)
	assert.Equal(t, "", key)
}

func TestNamespaceKeyFor(t *testing.T) {
	ns := NewNamespace()
	other := NewNamespace()

	sym := ns.For("shared")
	key, ok := ns.KeyFor(sym)
	assert.True(t, ok)
	assert.Equal(t, "shared", key)

	_, ok = other.KeyFor(sym)
	assert.False(t, ok, "a symbol belongs to the namespace that minted it")

	_, ok = ns.KeyFor(nil)
	assert.False(t, ok)
}

func TestNamespaceCopiesKey(t *testing.T) {
	ns := NewNamespace()
	buf := []byte("original")
	sym := ns.For(string(buf))
	buf[0] = 'X'
	assert.Equal(t, "original", sym.Description())
	assert.Same(t, sym, ns.For("original"))
}

func TestGlobalIsSingleton(t *testing.T) {
	assert.Same(t, Global(), Global())
	assert.Same(t, Global().For("symbols-test"), Global().For("symbols-test"))
}

func TestNamespaceConcurrentFor(t *testing.T) {
	ns := NewNamespace()
	const workers = 32
	const keys = 200

	got := make([][]*Symbol, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := range workers {
		go func() {
			defer wg.Done()
			row := make([]*Symbol, keys)
			for i := range keys {
				row[i] = ns.For(fmt.Sprintf("key_%d", i))
			}
			got[w] = row
		}()
	}
	wg.Wait()

	require.Equal(t, keys, ns.Len())
	for w := 1; w < workers; w++ {
		for i := range keys {
			require.Same(t, got[0][i], got[w][i])
		}
	}
}

func TestRegistrySymbolFor(t *testing.T) {
	tr := trie.New(nil)
	r := NewRegistry()
	a := &object{name: "a"}

	t1, err := tr.Intern([]any{a, 1})
	require.NoError(t, err)
	t2, err := tr.Intern([]any{a, 2})
	require.NoError(t, err)

	s1 := r.SymbolFor(t1)
	assert.Same(t, s1, r.SymbolFor(t1))
	assert.NotSame(t, s1, r.SymbolFor(t2))
	assert.False(t, s1.IsGlobal())
	assert.Equal(t, "", s1.Description())
	assert.Equal(t, 2, r.Len())

	assert.Panics(t, func() { r.SymbolFor(trie.NoToken) })
}

func TestRegistryDropsDeadTokens(t *testing.T) {
	tr := trie.New(nil)
	r := NewRegistry()

	var sym weak.Pointer[Symbol]
	func() {
		a := &object{name: "a"}
		tok, err := tr.Intern([]any{a, "k"})
		require.NoError(t, err)
		sym = weak.Make(r.SymbolFor(tok))
		require.Equal(t, 1, r.Len())
	}()

	require.Eventually(t, func() bool {
		runtime.GC()
		return r.Len() == 0 && sym.Value() == nil
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, uint64(1), r.Dropped())
}

func TestSymbolNilSafe(t *testing.T) {
	var s *Symbol
	assert.Equal(t, NoSymbolID, s.ID())
	assert.Equal(t, "", s.Description())
	assert.False(t, s.IsGlobal())
	assert.Equal(t, "Symbol(nil)", s.String())
}
