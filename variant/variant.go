// Package variant implements the reflection runtime's type-erased value
// box: a self-describing container pairing a boxed value with a per-type
// operations table. The table is built once per distinct type and shared
// by every Variant of that type, so boxing a value never allocates table
// state per value.
package variant

import (
	"reflect"
	"sync"

	"github.com/zond/goflect/meta"
)

const (
	inlineSize  = 16
	inlineAlign = 8
)

// ops is the per-type operations table: the type's identity and whether
// its values are small and pointer-free enough for inline storage. One
// ops value is built per distinct reflect.Type the first time that type
// is boxed, then reused for every later Variant of that type.
type ops struct {
	token meta.ID
	sbo   bool
}

// Variant is a self-describing value box. Go's own `any` already stores
// pointer-shaped values in a one-word interface (a type descriptor plus a
// data word), so Variant does not reimplement inline/heap storage from
// scratch; it wraps `any` with an explicit surface (ops-table pointer,
// SBO flag, typed get, conservative numeric convert) so callers observe
// the same contract regardless of how the Go runtime happens to store the
// value underneath.
type Variant struct {
	ops   *ops
	boxed any
}

var (
	opsCacheMu sync.RWMutex
	opsCache   = map[reflect.Type]*ops{}
)

func opsFor(t reflect.Type) *ops {
	opsCacheMu.RLock()
	cached, ok := opsCache[t]
	opsCacheMu.RUnlock()
	if ok {
		return cached
	}
	o := &ops{
		token: t,
		sbo:   t.Size() <= inlineSize && uintptr(t.Align()) <= inlineAlign && isSBOEligible(t),
	}
	opsCacheMu.Lock()
	opsCache[t] = o
	opsCacheMu.Unlock()
	return o
}

// isSBOEligible reports whether a value of type t could, in principle, be
// stored inline without the garbage collector losing track of a pointer
// hidden inside an opaque byte buffer. Go's GC cannot be told "this
// inline buffer sometimes contains a pointer, scan it conservatively", so
// SBO-eligibility is narrowed to types with no pointers at all (checked
// via reflect, not by inspecting the buffer at runtime).
func isSBOEligible(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	case reflect.Array:
		return isSBOEligible(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if !isSBOEligible(t.Field(i).Type) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// New boxes v.
func New(v any) Variant {
	if v == nil {
		return Variant{}
	}
	return Variant{ops: opsFor(reflect.TypeOf(v)), boxed: v}
}

// IsSBO reports whether v's boxed value is small and pointer-free enough
// to have been eligible for inline storage (see isSBOEligible).
func (v Variant) IsSBO() bool {
	return v.ops != nil && v.ops.sbo
}

// IsValid reports whether v holds a value at all.
func (v Variant) IsValid() bool {
	return v.ops != nil
}

// Token returns the boxed value's runtime type identity.
func (v Variant) Token() meta.ID {
	if v.ops == nil {
		return nil
	}
	return v.ops.token
}

// Interface returns the boxed value as `any`.
func (v Variant) Interface() any {
	return v.boxed
}

// Is reports whether v's boxed value has exactly type T.
func Is[T any](v Variant) bool {
	_, ok := v.boxed.(T)
	return ok
}

// TryGet attempts to read v's boxed value as T, falling back to the same
// conversions Convert applies when the boxed value is not already a T
// (including float-to-integer truncation).
func TryGet[T any](v Variant) (T, bool) {
	var zero T
	if t, ok := v.boxed.(T); ok {
		return t, true
	}
	converted, ok := v.Convert(meta.IDOf[T]())
	if !ok {
		return zero, false
	}
	t, ok := converted.boxed.(T)
	return t, ok
}

// Get reads v's boxed value as T, panicking if it isn't one — for callers
// who have already checked Is[T] or otherwise know the type matches.
func Get[T any](v Variant) T {
	t, ok := TryGet[T](v)
	if !ok {
		panic("variant: boxed value is not " + meta.TypeNameOf[T]())
	}
	return t
}

// Convert attempts a conservative conversion of v's boxed value to
// target: a numeric widen/narrow between arithmetic kinds, or a Go
// conversion between two types of the same kind (a string to a named
// string type, say). Nothing crosses kinds outside the numeric ones: no
// string parsing, no number-to-string.
func (v Variant) Convert(target meta.ID) (Variant, bool) {
	if v.ops == nil {
		return Variant{}, false
	}
	rv := reflect.ValueOf(v.boxed)
	if !rv.Type().ConvertibleTo(target) {
		return Variant{}, false
	}
	if !isNumericKind(rv.Kind()) || !isNumericKind(target.Kind()) {
		if rv.Kind() != target.Kind() {
			return Variant{}, false
		}
	}
	converted := rv.Convert(target)
	return New(converted.Interface()), true
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// Copy returns an independent copy of v. Value types in Go (everything
// that isn't a pointer/slice/map/chan) already copy on assignment, so
// this is equivalent to New(v.Interface()) for them; for reference-shaped
// values it copies the reference, preserving the original's aliasing the
// way plain Go assignment does.
func (v Variant) Copy() Variant {
	return Variant{ops: v.ops, boxed: v.boxed}
}
