package stress

import (
	"math"
	"strconv"
)

// object is an identity-bearing tuple component. It is large enough and
// holds a pointer, so every instance gets its own allocation.
type object struct {
	label string
	owner int
	index int
	pad   [2]uint64
}

func newObjects(owner, n int) []*object {
	objs := make([]*object, n)
	for i := range objs {
		objs[i] = &object{label: "obj", owner: owner, index: i}
	}
	return objs
}

// scalarAt derives the scalar stored at position pos for the given object
// slot and round. The result depends only on its inputs, so two workers
// building a tuple for the same shared object produce equal tuples.
func scalarAt(seed uint64, slot, round, pos int) any {
	h := mix(seed ^ uint64(slot)<<32 ^ uint64(round)<<8 ^ uint64(pos))
	switch (round + pos) % 5 {
	case 0:
		return int(h % 1024)
	case 1:
		return strconv.FormatUint(h%4096, 36)
	case 2:
		if h%7 == 0 {
			return math.NaN()
		}
		return float64(h%512) / 4
	case 3:
		return h%2 == 0
	default:
		return nil
	}
}

// buildTuple returns a tuple of the given arity with obj at position 0
// followed by scalars.
func buildTuple(seed uint64, obj *object, slot, round, arity int) []any {
	tuple := make([]any, arity)
	tuple[0] = obj
	for pos := 1; pos < arity; pos++ {
		tuple[pos] = scalarAt(seed, slot, round, pos)
	}
	return tuple
}

// rotate moves the first element of tuple to the end.
func rotate(tuple []any) []any {
	out := make([]any, 0, len(tuple))
	out = append(out, tuple[1:]...)
	return append(out, tuple[0])
}

// mix is the splitmix64 finalizer.
func mix(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
