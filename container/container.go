// Package container is the reflection runtime's container adapter: given
// a bound object and a member whose Category is Sequential or
// Associative, it exposes the underlying slice or map through a uniform
// Size/Empty/At-or-Find/iterate surface, boxing elements as
// variant.Variant so callers need no compile-time knowledge of the
// element types.
package container

import (
	"iter"
	"reflect"
	"sync"
	"time"
	"unsafe"

	expirable "github.com/go-pkgz/expirable-cache/v3"
	"github.com/zond/goflect/errs"
	"github.com/zond/goflect/meta"
	"github.com/zond/goflect/variant"
)

// boundObject is the slice of *goflect.BoundObject's surface this package
// needs. Declaring it locally instead of importing the root package
// avoids a container <-> root import cycle (the root package imports this
// package the other way, for BoundObject.NestedElement).
type boundObject interface {
	Record() *meta.TypeRecord
	Pointer() unsafe.Pointer
}

func resolveMember(b boundObject, name string, want meta.Category) (*meta.MemberRecord, error) {
	rec := b.Record()
	m, ok := rec.MemberByHash(name, meta.FNV1a(name))
	if !ok {
		return nil, errs.NewPropertyNotFound(rec.Name, name, rec.MemberNames())
	}
	if m.Category != want {
		return nil, errs.NewReflectionError("%s.%s is a %s, not a %s", rec.Name, name, m.Category, want)
	}
	return m, nil
}

// SequentialView wraps a slice or array member for index-based access.
type SequentialView struct {
	rv    reflect.Value
	fixed bool
}

// Sequential resolves member name of b as a SequentialView.
func Sequential(b boundObject, name string) (SequentialView, error) {
	m, err := resolveMember(b, name, meta.Sequential)
	if err != nil {
		return SequentialView{}, err
	}
	fieldPtr := unsafe.Pointer(uintptr(b.Pointer()) + m.Offset)
	rv := reflect.NewAt(m.Token, fieldPtr).Elem()
	return SequentialView{rv: rv, fixed: rv.Kind() == reflect.Array}, nil
}

func (s SequentialView) Size() int   { return s.rv.Len() }
func (s SequentialView) Empty() bool { return s.rv.Len() == 0 }

// Clear empties a slice member in place. Array members are fixed-size and
// report ReflectionError instead.
func (s SequentialView) Clear() error {
	if s.fixed {
		return errs.NewReflectionError("cannot clear a fixed-size array member")
	}
	s.rv.Set(reflect.MakeSlice(s.rv.Type(), 0, 0))
	return nil
}

// At returns the element at index i boxed as a Variant.
func (s SequentialView) At(i int) (variant.Variant, error) {
	if i < 0 || i >= s.rv.Len() {
		return variant.Variant{}, errs.NewReflectionError("index %d out of range [0, %d)", i, s.rv.Len())
	}
	return variant.New(s.rv.Index(i).Interface()), nil
}

// ElementPointer returns the address of element i, for a caller (the root
// goflect package's NestedElement) that wants a genuine non-owning
// property-view into this sequence's backing storage rather than a boxed
// copy. A slice element is addressable in Go regardless of whether the
// slice header itself is, unlike a map value, which never is — so this is
// only offered on SequentialView.
func (s SequentialView) ElementPointer(i int) (unsafe.Pointer, error) {
	if i < 0 || i >= s.rv.Len() {
		return nil, errs.NewReflectionError("index %d out of range [0, %d)", i, s.rv.Len())
	}
	elem := s.rv.Index(i)
	if !elem.CanAddr() {
		return nil, errs.NewReflectionError("element %d of this sequence is not addressable", i)
	}
	return unsafe.Pointer(elem.UnsafeAddr()), nil
}

// PushBack appends v, converting it to the element type if necessary.
func (s SequentialView) PushBack(v variant.Variant) error {
	if s.fixed {
		return errs.NewReflectionError("cannot push_back onto a fixed-size array member")
	}
	elem, err := coerceElem(v, s.rv.Type().Elem())
	if err != nil {
		return err
	}
	s.rv.Set(reflect.Append(s.rv, elem))
	return nil
}

// PopBack removes the last element.
func (s SequentialView) PopBack() error {
	if s.fixed {
		return errs.NewReflectionError("cannot pop_back from a fixed-size array member")
	}
	n := s.rv.Len()
	if n == 0 {
		return errs.NewReflectionError("pop_back on an empty sequence")
	}
	s.rv.Set(s.rv.Slice(0, n-1))
	return nil
}

// All iterates (index, element) pairs in order.
func (s SequentialView) All() iter.Seq2[int, variant.Variant] {
	return func(yield func(int, variant.Variant) bool) {
		for i := 0; i < s.rv.Len(); i++ {
			if !yield(i, variant.New(s.rv.Index(i).Interface())) {
				return
			}
		}
	}
}

func coerceElem(v variant.Variant, target reflect.Type) (reflect.Value, error) {
	rv := reflect.ValueOf(v.Interface())
	if rv.Type() == target {
		return rv, nil
	}
	if rv.Type().ConvertibleTo(target) {
		return rv.Convert(target), nil
	}
	return reflect.Value{}, errs.NewReflectionError("can't store a %s in a %s container", rv.Type(), target)
}

// viewKey identifies one (type, object, member) triple for the
// materialized-view cache. Keying on the TypeRecord pointer, not just the
// object address, matters: if a BoundObject's backing memory is freed and
// the address is reused by an unrelated allocation within the cache's TTL
// (ordinary under GC churn for short-lived objects), a stale entry keyed
// on address alone would hand back a reflect.Value computed against the
// wrong type's offset — a type-confusion hazard, not just a stale read.
// Requiring the TypeRecord to match too means a hit can only ever replay a
// Token/Offset pair that is still valid for whatever now lives at that
// address: either the same live object, or a fresh object of the exact
// same registered type at the same address, for which the cached view
// remains correct.
type viewKey struct {
	rec  *meta.TypeRecord
	obj  uintptr
	name string
}

var (
	cacheOnce  sync.Once
	mapViewTTL = 2 * time.Second
	mapViews   expirable.Cache[viewKey, reflect.Value]
)

func mapViewCache() expirable.Cache[viewKey, reflect.Value] {
	cacheOnce.Do(func() {
		mapViews = expirable.NewCache[viewKey, reflect.Value]().WithTTL(mapViewTTL).WithMaxKeys(256)
	})
	return mapViews
}

// AssociativeView wraps a map member for key-based access.
type AssociativeView struct {
	rv reflect.Value
}

// Associative resolves member name of b as an AssociativeView, consulting
// a short-TTL cache of the member's materialized reflect.Value so a tight
// loop re-resolving the same (type, object, name) triple repeatedly skips
// the member lookup and offset arithmetic after the first hit.
func Associative(b boundObject, name string) (AssociativeView, error) {
	key := viewKey{rec: b.Record(), obj: uintptr(b.Pointer()), name: name}
	if rv, ok := mapViewCache().Get(key); ok {
		return AssociativeView{rv: rv}, nil
	}
	m, err := resolveMember(b, name, meta.Associative)
	if err != nil {
		return AssociativeView{}, err
	}
	fieldPtr := unsafe.Pointer(uintptr(b.Pointer()) + m.Offset)
	rv := reflect.NewAt(m.Token, fieldPtr).Elem()
	mapViewCache().Set(key, rv, mapViewTTL)
	return AssociativeView{rv: rv}, nil
}

func (a AssociativeView) Size() int   { return a.rv.Len() }
func (a AssociativeView) Empty() bool { return a.rv.Len() == 0 }

func (a AssociativeView) Clear() {
	a.rv.Set(reflect.MakeMap(a.rv.Type()))
}

func (a AssociativeView) keyValue(key variant.Variant) (reflect.Value, error) {
	kt := a.rv.Type().Key()
	kv := reflect.ValueOf(key.Interface())
	if kv.Type() == kt {
		return kv, nil
	}
	if kv.Type().ConvertibleTo(kt) {
		return kv.Convert(kt), nil
	}
	return reflect.Value{}, errs.NewReflectionError("can't use a %s as a %s container key", kv.Type(), kt)
}

// Find looks up key, reporting ok=false if it isn't present (never an
// error: a missing key is a normal outcome for an associative lookup).
func (a AssociativeView) Find(key variant.Variant) (variant.Variant, bool) {
	kv, err := a.keyValue(key)
	if err != nil {
		return variant.Variant{}, false
	}
	v := a.rv.MapIndex(kv)
	if !v.IsValid() {
		return variant.Variant{}, false
	}
	return variant.New(v.Interface()), true
}

func (a AssociativeView) Contains(key variant.Variant) bool {
	_, ok := a.Find(key)
	return ok
}

// Insert sets key to value, converting both to the map's declared key and
// value types.
func (a AssociativeView) Insert(key, value variant.Variant) error {
	kv, err := a.keyValue(key)
	if err != nil {
		return err
	}
	vv, err := coerceElem(value, a.rv.Type().Elem())
	if err != nil {
		return err
	}
	if a.rv.IsNil() {
		a.rv.Set(reflect.MakeMap(a.rv.Type()))
	}
	a.rv.SetMapIndex(kv, vv)
	return nil
}

// Erase removes key, reporting whether it was present.
func (a AssociativeView) Erase(key variant.Variant) bool {
	kv, err := a.keyValue(key)
	if err != nil {
		return false
	}
	if !a.rv.MapIndex(kv).IsValid() {
		return false
	}
	a.rv.SetMapIndex(kv, reflect.Value{})
	return true
}

// All iterates (key, value) pairs in unspecified order, the same
// guarantee Go's own map iteration gives. Keys and values are boxed
// copies, as SequentialView.All's elements are; map values are not
// addressable in Go, so there is no counterpart to
// SequentialView.ElementPointer here.
func (a AssociativeView) All() iter.Seq2[variant.Variant, variant.Variant] {
	return func(yield func(variant.Variant, variant.Variant) bool) {
		it := a.rv.MapRange()
		for it.Next() {
			if !yield(variant.New(it.Key().Interface()), variant.New(it.Value().Interface())) {
				return
			}
		}
	}
}
