package goflect

import (
	"reflect"
	"unsafe"

	"github.com/zond/goflect/errs"
	"github.com/zond/goflect/meta"
)

// PropertyHandle is a pre-resolved property accessor: just a byte offset
// and a validity flag, cheap enough to store in a hot loop and reuse
// across many objects of the same type without repeating the name ->
// offset lookup BoundObject.Get/Set do on every call.
type PropertyHandle[T any] struct {
	offset uintptr
	valid  bool
}

// Valid reports whether this handle was successfully resolved.
func (p PropertyHandle[T]) Valid() bool { return p.valid }

// Get reads the property directly out of obj using the cached offset.
func (p PropertyHandle[T]) Get(obj unsafe.Pointer) T {
	return *(*T)(unsafe.Pointer(uintptr(obj) + p.offset))
}

// Set writes value into obj at the cached offset.
func (p PropertyHandle[T]) Set(obj unsafe.Pointer, value T) {
	*(*T)(unsafe.Pointer(uintptr(obj) + p.offset)) = value
}

// MethodHandle is a pre-resolved single overload: the name lookup and
// arity match already happened, so Call goes straight to the invoker.
type MethodHandle struct {
	rec *meta.MethodRecord
}

// Valid reports whether this handle was successfully resolved.
func (m MethodHandle) Valid() bool { return m.rec != nil }

// Call invokes the bound overload against obj with args, skipping the
// overload-set scan BoundObject.Call performs.
func (m MethodHandle) Call(obj unsafe.Pointer, args ...any) ([]any, error) {
	return m.rec.Invoker(obj, args)
}

// addrOf returns the address a freshly-constructed *T (boxed as any by a
// Default/Factory callback) points to, so it can be wrapped directly in
// a BoundObject without the caller needing to know T.
func addrOf(owned any) unsafe.Pointer {
	return unsafe.Pointer(reflect.ValueOf(owned).Pointer())
}

func propertyNotFound(rec *meta.TypeRecord, name string) error {
	return errs.NewPropertyNotFound(rec.Name, name, rec.MemberNames())
}

func errPropertyTypeMismatch(typeName, name, expected, actual string) error {
	return errs.NewPropertyTypeMismatch(typeName, name, expected, actual)
}

func methodNotFound(rec *meta.TypeRecord, name string) error {
	return errs.NewMethodNotFound(rec.Name, name, rec.MethodNames())
}

func methodSignatureMismatch(rec *meta.TypeRecord, name string, overloads []*meta.MethodRecord, arity int) error {
	return errs.NewMethodSignatureMismatch(rec.Name, name, arityList(overloads), itoaArity(arity))
}

func notFoundFactory(typeName string, arity int) error {
	return errs.NewReflectionError("%s has no constructor accepting %s", typeName, itoaArity(arity))
}
