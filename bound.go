package goflect

import (
	"reflect"
	"strconv"
	"unsafe"

	"github.com/zond/goflect/container"
	"github.com/zond/goflect/errs"
	"github.com/zond/goflect/meta"
	"github.com/zond/goflect/registry"
	"github.com/zond/goflect/variant"
)

// BoundObject pairs a TypeRecord with a live object's address: every
// member read/write and method call in this package ultimately goes
// through one. holder keeps the Go garbage collector from reclaiming the
// object obj points into for as long as the BoundObject is reachable —
// obj itself is an unsafe.Pointer and carries no GC ownership on its own,
// so without holder a BoundObject built over, say, a heap-escaped local
// could be collected out from under a concurrent reader. mgr is carried
// along so NestedMember can resolve a member's type without the caller
// needing to thread a Manager through separately.
type BoundObject struct {
	mgr    *registry.Manager
	rec    *meta.TypeRecord
	obj    unsafe.Pointer
	holder any
}

// Bind attaches rec to the object obj points to. holder must be the Go
// value that owns the memory at obj (typically the *T pointer obj itself
// was derived from) so the garbage collector keeps it alive.
func Bind(mgr *registry.Manager, rec *meta.TypeRecord, obj unsafe.Pointer, holder any) *BoundObject {
	return &BoundObject{mgr: mgr, rec: rec, obj: obj, holder: holder}
}

// Record returns the TypeRecord this object was bound against.
func (b *BoundObject) Record() *meta.TypeRecord { return b.rec }

// typeName names the handle's type for diagnostics, tolerating a nil
// handle or a handle constructed without a record.
func (b *BoundObject) typeName() string {
	if b == nil || b.rec == nil {
		return "<unbound>"
	}
	return b.rec.Name
}

// Pointer returns the raw object address, for callers handing it to a
// container adapter or another BoundObject for a nested member.
func (b *BoundObject) Pointer() unsafe.Pointer { return b.obj }

func (b *BoundObject) member(name string) (*meta.MemberRecord, error) {
	if b == nil || b.obj == nil {
		return nil, errs.NewObjectNotBound(b.typeName())
	}
	m, ok := b.rec.MemberByHash(name, meta.FNV1a(name))
	if !ok {
		return nil, errs.NewPropertyNotFound(b.rec.Name, name, b.rec.MemberNames())
	}
	return m, nil
}

// Get reads property name as T, failing with PropertyNotFound if no such
// property is registered and PropertyTypeMismatch if it is registered
// under a different type.
func Get[T any](b *BoundObject, name string) (T, error) {
	var zero T
	m, err := b.member(name)
	if err != nil {
		return zero, err
	}
	want := meta.IDOf[T]()
	if m.Token != want {
		return zero, errs.NewPropertyTypeMismatch(b.rec.Name, name, m.TypeName, meta.TypeName(want))
	}
	fieldPtr := unsafe.Pointer(uintptr(b.obj) + m.Offset)
	return *(*T)(fieldPtr), nil
}

// GetPropertyOffset returns the byte offset of property name, for a caller
// that wants to resolve it once and reuse it across many reads via
// GetByOffset instead of paying the hashed-name lookup (and the type-token
// check it performs) on every access.
func (b *BoundObject) GetPropertyOffset(name string) (uintptr, bool) {
	m, err := b.member(name)
	if err != nil {
		return 0, false
	}
	return m.Offset, true
}

// GetByOffset reads T directly out of b at offset, skipping the name
// lookup and the type-token check Get performs — the zero-check fast path
// for a caller who already proved, by having obtained offset from
// GetPropertyOffset or ResolveProperty against this same type, that offset
// really does address a T-typed field. Passing an offset that didn't come
// from this type's own registration is undefined behavior, same as the
// pointer arithmetic it performs.
func GetByOffset[T any](b *BoundObject, offset uintptr) T {
	return *(*T)(unsafe.Pointer(uintptr(b.obj) + offset))
}

// Set writes value into property name, the same pairing GetByOffset and
// Get use for reads.
func Set[T any](b *BoundObject, name string, value T) error {
	m, err := b.member(name)
	if err != nil {
		return err
	}
	want := meta.IDOf[T]()
	if m.Token != want {
		return errs.NewPropertyTypeMismatch(b.rec.Name, name, m.TypeName, meta.TypeName(want))
	}
	fieldPtr := unsafe.Pointer(uintptr(b.obj) + m.Offset)
	*(*T)(fieldPtr) = value
	return nil
}

// GetVariant reads property name boxed as a variant.Variant, for callers
// that don't know T at compile time — the dynamic-dispatch counterpart to
// the generic Get.
func (b *BoundObject) GetVariant(name string) (variant.Variant, error) {
	m, err := b.member(name)
	if err != nil {
		return variant.Variant{}, err
	}
	fieldPtr := unsafe.Pointer(uintptr(b.obj) + m.Offset)
	rv := reflect.NewAt(m.Token, fieldPtr).Elem()
	return variant.New(rv.Interface()), nil
}

// SetVariant writes v into property name after a conservative numeric
// convert to the member's declared type, mirroring Set's type check for
// the boxed path.
func (b *BoundObject) SetVariant(name string, v variant.Variant) error {
	m, err := b.member(name)
	if err != nil {
		return err
	}
	converted := v
	if v.Token() != m.Token {
		c, ok := v.Convert(m.Token)
		if !ok {
			return errs.NewPropertyTypeMismatch(b.rec.Name, name, m.TypeName, meta.TypeName(v.Token()))
		}
		converted = c
	}
	fieldPtr := unsafe.Pointer(uintptr(b.obj) + m.Offset)
	dst := reflect.NewAt(m.Token, fieldPtr).Elem()
	dst.Set(reflect.ValueOf(converted.Interface()))
	return nil
}

// NestedMember returns a BoundObject over a Class-categorized member:
// a non-owning handle for walking from an outer object to an embedded
// struct member without copying it.
func (b *BoundObject) NestedMember(name string) (*BoundObject, error) {
	m, err := b.member(name)
	if err != nil {
		return nil, err
	}
	if m.Category != meta.Class {
		return nil, errs.NewReflectionError("%s.%s is not a nested object (category %s)", b.rec.Name, name, m.Category)
	}
	nested, err := b.mgr.ByTokenOrErr(m.Token)
	if err != nil {
		return nil, err
	}
	fieldPtr := unsafe.Pointer(uintptr(b.obj) + m.Offset)
	return &BoundObject{mgr: b.mgr, rec: nested, obj: fieldPtr, holder: b.holder}, nil
}

// NestedElement returns a BoundObject over element i of a Sequential
// member whose element type is itself a registered class — the container
// adapter's counterpart to NestedMember, giving a genuine non-owning
// view into the slice's backing storage rather than the boxed copy
// container.SequentialView.At returns.
func (b *BoundObject) NestedElement(name string, i int) (*BoundObject, error) {
	m, err := b.member(name)
	if err != nil {
		return nil, err
	}
	if m.Category != meta.Sequential {
		return nil, errs.NewReflectionError("%s.%s is not a sequential container (category %s)", b.rec.Name, name, m.Category)
	}
	seq, err := container.Sequential(b, name)
	if err != nil {
		return nil, err
	}
	elemPtr, err := seq.ElementPointer(i)
	if err != nil {
		return nil, err
	}
	nested, err := b.mgr.ByTokenOrErr(m.Token.Elem())
	if err != nil {
		return nil, err
	}
	return &BoundObject{mgr: b.mgr, rec: nested, obj: elemPtr, holder: b.holder}, nil
}

// Call invokes the overload of name whose arity matches len(args),
// returning MethodNotFound if name has no overloads at all and
// MethodSignatureMismatch if none of its overloads accept that many
// arguments.
func (b *BoundObject) Call(name string, args ...any) ([]any, error) {
	if b == nil || b.obj == nil {
		return nil, errs.NewObjectNotBound(b.typeName())
	}
	overloads, ok := b.rec.MethodOverloads(name)
	if !ok || len(overloads) == 0 {
		return nil, errs.NewMethodNotFound(b.rec.Name, name, b.rec.MethodNames())
	}
	for _, m := range overloads {
		if m.Arity == len(args) {
			return m.Invoker(b.obj, args)
		}
	}
	return nil, errs.NewMethodSignatureMismatch(b.rec.Name, name, arityList(overloads), itoaArity(len(args)))
}

// As recovers the typed pointer this handle was bound over, for a caller
// done with name-keyed access and ready to drop back to direct field
// access. The record's token must match T exactly; binding through a base
// type's record and recovering the derived pointer is not supported.
func As[T any](b *BoundObject) (*T, error) {
	if b == nil || b.obj == nil {
		return nil, errs.NewObjectNotBound(b.typeName())
	}
	if want := meta.IDOf[T](); b.rec.Token != want {
		return nil, errs.NewReflectionError("%s handle cannot be viewed as %s", b.rec.Name, meta.TypeName(want))
	}
	return (*T)(b.obj), nil
}

// Call is the typed counterpart to (*BoundObject).Call, for a caller who
// knows the single result type R at compile time — a free function rather
// than a method for the same reason Get/Set and Property are (Go forbids a
// method introducing a type parameter beyond its receiver's).
func Call[R any](b *BoundObject, name string, args ...any) (R, error) {
	var zero R
	results, err := b.Call(name, args...)
	if err != nil {
		return zero, err
	}
	if len(results) != 1 {
		return zero, errs.NewReflectionError("%s.%s returned %d values, Call[R] expects exactly 1", b.rec.Name, name, len(results))
	}
	r, ok := results[0].(R)
	if !ok {
		return zero, errs.NewReflectionError("%s.%s returned %T, not %s", b.rec.Name, name, results[0], meta.TypeName(meta.IDOf[R]()))
	}
	return r, nil
}

func arityList(overloads []*meta.MethodRecord) string {
	out := ""
	for i, m := range overloads {
		if i > 0 {
			out += " or "
		}
		out += itoaArity(m.Arity)
	}
	return out
}

func itoaArity(n int) string {
	if n == 1 {
		return "1 argument"
	}
	return strconv.Itoa(n) + " arguments"
}
