package goflect

import (
	"reflect"
	"unsafe"

	"github.com/zond/goflect/errs"
	"github.com/zond/goflect/meta"
	"github.com/zond/goflect/registry"
	"github.com/zond/goflect/variant"
)

// Instance is the fully dynamic handle: unlike BoundObject (which a
// caller builds once it already knows both the object's address and its
// TypeRecord), an Instance can own its value, and every property/method
// access goes through boxed variant.Variant rather than a compile-time
// type parameter. It is the handle for callers that only learn the type's
// name at runtime: a deserializer, an editor, a scripting host.
type Instance struct {
	mgr *registry.Manager
	rec *meta.TypeRecord
	// ref, when set, points into memory owned elsewhere and wins over
	// owned for address resolution. owned holds the *T keeping the value
	// reachable: the freshly constructed object for the owning
	// constructors, the caller's own pointer for FromRef (so the handle
	// can still act as a GC holder when passed around).
	owned any
	ref   unsafe.Pointer

	dynProp map[string]*meta.MemberRecord
	dynMeth map[string]MethodHandle
}

// Create builds a new Instance of the type registered under name using
// its zero-argument Default factory.
func Create(mgr *registry.Manager, name string) (Instance, error) {
	rec, err := mgr.ByNameOrErr(name)
	if err != nil {
		return Instance{}, err
	}
	owned := rec.Default()
	return Instance{mgr: mgr, rec: rec, owned: owned}, nil
}

// FromOwned wraps a value of type T as a newly-owned Instance.
func FromOwned[T any](mgr *registry.Manager, v T) (Instance, error) {
	rec, err := mgr.ByTokenOrErr(meta.IDOf[T]())
	if err != nil {
		return Instance{}, err
	}
	owned := new(T)
	*owned = v
	return Instance{mgr: mgr, rec: rec, owned: owned}, nil
}

// FromRef wraps an existing *T as a non-owning Instance: nothing is
// copied, so reads and writes go straight to *v. The Instance also keeps
// v itself as its GC holder, so v stays reachable while the Instance is.
func FromRef[T any](mgr *registry.Manager, v *T) (Instance, error) {
	rec, err := mgr.ByTokenOrErr(meta.IDOf[T]())
	if err != nil {
		return Instance{}, err
	}
	return Instance{mgr: mgr, rec: rec, ref: unsafe.Pointer(v), owned: v}, nil
}

func (i Instance) addr() unsafe.Pointer {
	if i.ref != nil {
		return i.ref
	}
	return addrOf(i.owned)
}

// Bound returns the BoundObject underlying this Instance, for callers
// that want the generic Get[T]/Set[T]/Call surface instead of the boxed
// one.
func (i Instance) Bound() *BoundObject {
	return Bind(i.mgr, i.rec, i.addr(), i.owned)
}

// Record returns the TypeRecord backing this Instance.
func (i Instance) Record() *meta.TypeRecord { return i.rec }

// PropertyNames and MethodNames enumerate this Instance's registered
// shape.
func (i Instance) PropertyNames() []string { return i.rec.MemberNames() }
func (i Instance) MethodNames() []string   { return i.rec.MethodNames() }

// dynamicPropertyHandle resolves name to its MemberRecord once and caches
// it on this Instance, so a loop that repeatedly reads or writes the same
// named property by string skips the hash lookup after the first call.
func (i *Instance) dynamicPropertyHandle(name string) (*meta.MemberRecord, error) {
	if m, ok := i.dynProp[name]; ok {
		return m, nil
	}
	m, ok := i.rec.MemberByHash(name, meta.FNV1a(name))
	if !ok {
		return nil, propertyNotFound(i.rec, name)
	}
	if i.dynProp == nil {
		i.dynProp = map[string]*meta.MemberRecord{}
	}
	i.dynProp[name] = m
	return m, nil
}

// dynamicMethodHandle resolves the arity-matched overload of name once
// and caches it, the method-call counterpart to dynamicPropertyHandle.
func (i *Instance) dynamicMethodHandle(name string, arity int) (MethodHandle, error) {
	key := name
	if h, ok := i.dynMeth[key]; ok && h.rec.Arity == arity {
		return h, nil
	}
	overloads, ok := i.rec.MethodOverloads(name)
	if !ok {
		return MethodHandle{}, methodNotFound(i.rec, name)
	}
	for _, m := range overloads {
		if m.Arity == arity {
			h := MethodHandle{rec: m}
			if i.dynMeth == nil {
				i.dynMeth = map[string]MethodHandle{}
			}
			i.dynMeth[key] = h
			return h, nil
		}
	}
	return MethodHandle{}, methodSignatureMismatch(i.rec, name, overloads, arity)
}

// GetProperty reads property name boxed as a variant.Variant.
func (i *Instance) GetProperty(name string) (variant.Variant, error) {
	m, err := i.dynamicPropertyHandle(name)
	if err != nil {
		return variant.Variant{}, err
	}
	fieldPtr := unsafe.Pointer(uintptr(i.addr()) + m.Offset)
	rv := reflect.NewAt(m.Token, fieldPtr).Elem()
	return variant.New(rv.Interface()), nil
}

// SetProperty writes v, converted if necessary, into property name.
func (i *Instance) SetProperty(name string, v variant.Variant) error {
	m, err := i.dynamicPropertyHandle(name)
	if err != nil {
		return err
	}
	converted := v
	if v.Token() != m.Token {
		c, ok := v.Convert(m.Token)
		if !ok {
			return errPropertyTypeMismatch(i.rec.Name, name, m.TypeName, meta.TypeName(v.Token()))
		}
		converted = c
	}
	fieldPtr := unsafe.Pointer(uintptr(i.addr()) + m.Offset)
	dst := reflect.NewAt(m.Token, fieldPtr).Elem()
	dst.Set(reflect.ValueOf(converted.Interface()))
	return nil
}

// SetPropertyDirect writes value into property name without boxing,
// provided T's token matches the member's declared type exactly — the
// fast path for a caller that does know the static type and has no reason
// to round-trip it through a Variant.
func SetPropertyDirect[T any](i *Instance, name string, value T) error {
	m, err := i.dynamicPropertyHandle(name)
	if err != nil {
		return err
	}
	want := meta.IDOf[T]()
	if m.Token != want {
		return errPropertyTypeMismatch(i.rec.Name, name, m.TypeName, meta.TypeName(want))
	}
	fieldPtr := unsafe.Pointer(uintptr(i.addr()) + m.Offset)
	*(*T)(fieldPtr) = value
	return nil
}

// Invoke calls the overload of name whose arity matches len(args),
// boxing the result as a single Variant (the first non-error return
// value) for callers that only need one value back; for multi-value
// returns use Bound().Call instead.
func (i *Instance) Invoke(name string, args ...variant.Variant) (variant.Variant, error) {
	boxedArgs := make([]any, len(args))
	for idx, a := range args {
		boxedArgs[idx] = a.Interface()
	}
	h, err := i.dynamicMethodHandle(name, len(args))
	if err != nil {
		return variant.Variant{}, err
	}
	results, err := h.Call(i.addr(), boxedArgs...)
	if err != nil {
		return variant.Variant{}, err
	}
	if len(results) == 0 {
		return variant.Variant{}, nil
	}
	return variant.New(results[0]), nil
}

// NestedInstance returns an Instance over a Class-categorized member,
// the instance-level counterpart to BoundObject.NestedMember.
func (i *Instance) NestedInstance(name string) (Instance, error) {
	m, err := i.dynamicPropertyHandle(name)
	if err != nil {
		return Instance{}, err
	}
	if m.Category != meta.Class {
		return Instance{}, errs.NewReflectionError("%s.%s is not a nested object (category %s)", i.rec.Name, name, m.Category)
	}
	nestedRec, err := i.mgr.ByTokenOrErr(m.Token)
	if err != nil {
		return Instance{}, err
	}
	fieldPtr := unsafe.Pointer(uintptr(i.addr()) + m.Offset)
	return Instance{mgr: i.mgr, rec: nestedRec, ref: fieldPtr, owned: i.owned}, nil
}
