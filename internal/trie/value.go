package trie

import (
	"fmt"
	"math"
	"reflect"
	"unsafe"

	"fortio.org/safecast"
)

// Kind classifies a tuple component.
type Kind uint8

const (
	// KindUnsupported marks values that can be neither compared nor referenced.
	KindUnsupported Kind = iota
	// KindScalar marks values compared by value.
	KindScalar
	// KindIdentity marks values compared by reference.
	KindIdentity
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindIdentity:
		return "identity"
	default:
		return "unsupported"
	}
}

// canonicalNaN is the single bit pattern every NaN is keyed by.
const canonicalNaN = 0x7ff8000000000001

// tinySize bounds the runtime's tiny allocator: pointer-free objects
// smaller than this are packed into shared blocks that are freed together.
const tinySize = 16

// nilRef keys a typed nil pointer, map or channel. Nil maps are not hashable
// as interface values, so every typed nil goes through here.
type nilRef struct{ typ reflect.Type }

// floatKey keys floats by bit pattern: -0 and +0 differ, NaN equals NaN.
type floatKey struct {
	typ  reflect.Type
	bits uint64
}

type complexKey struct {
	typ    reflect.Type
	re, im uint64
}

// component is one classified tuple element.
type component struct {
	pos    uint32
	kind   Kind
	ref    unsafe.Pointer // identity: address of the referent
	typ    reflect.Type   // identity: dynamic type
	scalar any            // scalar: normalized map key
}

// Classify reports how v would be treated as a tuple component.
func Classify(v any) Kind {
	c, err := classify(0, v)
	if err != nil {
		return KindUnsupported
	}
	return c.kind
}

func classify(pos int, v any) (component, error) {
	p, err := safecast.Conv[uint32](pos)
	if err != nil {
		panic(fmt.Errorf("composite key position overflow: %w", err))
	}
	if v == nil {
		return component{pos: p, kind: KindScalar, scalar: nil}, nil
	}

	rv := reflect.ValueOf(v)
	rt := rv.Type()
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return component{pos: p, kind: KindScalar, scalar: nilRef{rt}}, nil
		}
		elem := rt.Elem()
		if elem.Size() == 0 {
			// zero-sized allocations may share one address
			return component{}, unsupported(pos, rt, "pointer to zero-sized type has no identity")
		}
		if elem.Size() < tinySize && !hasPointers(elem) {
			return component{}, unsupported(pos, rt, "pointer to small pointer-free type may share its allocation")
		}
		return component{pos: p, kind: KindIdentity, ref: rv.UnsafePointer(), typ: rt}, nil

	case reflect.Map, reflect.Chan:
		if rv.IsNil() {
			return component{pos: p, kind: KindScalar, scalar: nilRef{rt}}, nil
		}
		return component{pos: p, kind: KindIdentity, ref: rv.UnsafePointer(), typ: rt}, nil

	case reflect.Float32, reflect.Float64:
		return component{pos: p, kind: KindScalar, scalar: floatKey{rt, floatBits(rv.Float())}}, nil

	case reflect.Complex64, reflect.Complex128:
		c := rv.Complex()
		return component{pos: p, kind: KindScalar, scalar: complexKey{rt, floatBits(real(c)), floatBits(imag(c))}}, nil

	case reflect.Func, reflect.Slice:
		return component{}, unsupported(pos, rt, "value is not comparable")
	}

	if !rv.Comparable() {
		return component{}, unsupported(pos, rt, "value is not comparable")
	}
	if holdsFloat(rv) {
		// == on a nested NaN is never true
		return component{}, unsupported(pos, rt, "composite value holds a floating-point field")
	}
	return component{pos: p, kind: KindScalar, scalar: v}, nil
}

// hasPointers reports whether values of t can hold heap pointers.
func hasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Array:
		return t.Len() > 0 && hasPointers(t.Elem())
	case reflect.Struct:
		for i := range t.NumField() {
			if hasPointers(t.Field(i).Type) {
				return true
			}
		}
		return false
	case reflect.Pointer, reflect.UnsafePointer, reflect.Map, reflect.Chan,
		reflect.Func, reflect.Slice, reflect.String, reflect.Interface:
		return true
	default:
		return false
	}
}

// holdsFloat reports whether an array or struct value carries a float or
// complex number, looking through interface fields.
func holdsFloat(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	case reflect.Array:
		for i := range rv.Len() {
			if holdsFloat(rv.Index(i)) {
				return true
			}
		}
	case reflect.Struct:
		for i := range rv.NumField() {
			if holdsFloat(rv.Field(i)) {
				return true
			}
		}
	case reflect.Interface:
		return !rv.IsNil() && holdsFloat(rv.Elem())
	}
	return false
}

func floatBits(f float64) uint64 {
	if math.IsNaN(f) {
		return canonicalNaN
	}
	return math.Float64bits(f)
}

func unsupported(pos int, rt reflect.Type, reason string) error {
	return &InvalidKeyError{Position: pos, Type: rt.String(), Reason: reason}
}

// split classifies values, keeping identity and scalar components in tuple
// order. It fails before any trie state is touched.
func split(values []any) (refs, scalars []component, err error) {
	for i, v := range values {
		c, err := classify(i, v)
		if err != nil {
			return nil, nil, err
		}
		if c.kind == KindIdentity {
			refs = append(refs, c)
		} else {
			scalars = append(scalars, c)
		}
	}
	if len(refs) == 0 {
		return nil, nil, errNoIdentity()
	}
	return refs, scalars, nil
}
