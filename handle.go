package goflect

import (
	"unsafe"

	"github.com/zond/goflect/meta"
	"github.com/zond/goflect/registry"
)

// TypeHandle is the immutable, query-only view onto a single TypeRecord:
// everything registration produced, with none of the builder's mutating
// methods. Most callers reach one through GetType rather than holding a
// *meta.TypeRecord directly, so a lookup miss is reported uniformly as
// errs.TypeNotRegistered instead of leaking map-lookup "zero value"
// ambiguity.
type TypeHandle struct {
	mgr *registry.Manager
	rec *meta.TypeRecord
}

// GetType resolves T's TypeHandle against mgr.
func GetType[T any](mgr *registry.Manager) (*TypeHandle, error) {
	rec, err := mgr.ByTokenOrErr(meta.IDOf[T]())
	if err != nil {
		return nil, err
	}
	return &TypeHandle{mgr: mgr, rec: rec}, nil
}

// GetTypeByName resolves a TypeHandle by its registered name, for callers
// that only have a string (a config file, a script, a generated table).
func GetTypeByName(mgr *registry.Manager, name string) (*TypeHandle, error) {
	rec, err := mgr.ByNameOrErr(name)
	if err != nil {
		return nil, err
	}
	return &TypeHandle{mgr: mgr, rec: rec}, nil
}

// Name, Size, MemberNames and MethodNames surface the TypeRecord's static
// shape without exposing the record itself.
func (h *TypeHandle) Name() string          { return h.rec.Name }
func (h *TypeHandle) Size() uintptr         { return h.rec.Size }
func (h *TypeHandle) MemberNames() []string { return h.rec.MemberNames() }
func (h *TypeHandle) MethodNames() []string { return h.rec.MethodNames() }

// HasMember and HasMethod answer membership questions without needing the
// caller to parse a NotFound error.
func (h *TypeHandle) HasMember(name string) bool {
	_, ok := h.rec.MemberByHash(name, meta.FNV1a(name))
	return ok
}

func (h *TypeHandle) HasMethod(name string) bool {
	overloads, ok := h.rec.MethodOverloads(name)
	return ok && len(overloads) > 0
}

// Bind attaches this type's record to an already-existing object at obj,
// owned by holder.
func (h *TypeHandle) Bind(obj unsafe.Pointer, holder any) *BoundObject {
	return Bind(h.mgr, h.rec, obj, holder)
}

// Create invokes the Default factory recorded at registration and binds
// the result, the zero-argument construction path alongside the
// boxed-argument Factories CreateWith dispatches to.
func (h *TypeHandle) Create() *BoundObject {
	owned := h.rec.Default()
	return Bind(h.mgr, h.rec, addrOf(owned), owned)
}

// CreateWith invokes the registered factory of matching arity, boxing
// args the same way Call does for methods.
func (h *TypeHandle) CreateWith(args ...any) (*BoundObject, error) {
	f, ok := h.rec.Factories[len(args)]
	if !ok {
		return nil, notFoundFactory(h.rec.Name, len(args))
	}
	owned, err := f.Call(args)
	if err != nil {
		return nil, err
	}
	return Bind(h.mgr, h.rec, addrOf(owned), owned), nil
}

// ResolveProperty returns a cached PropertyHandle for name, resolving the
// member's offset once so repeated Get/Set calls in a hot loop pay no
// per-access name lookup at all.
func ResolveProperty[T any](h *TypeHandle, name string) (PropertyHandle[T], error) {
	m, ok := h.rec.MemberByHash(name, meta.FNV1a(name))
	if !ok {
		return PropertyHandle[T]{}, propertyNotFound(h.rec, name)
	}
	want := meta.IDOf[T]()
	if m.Token != want {
		return PropertyHandle[T]{}, errPropertyTypeMismatch(h.rec.Name, name, m.TypeName, meta.TypeName(want))
	}
	return PropertyHandle[T]{offset: m.Offset, valid: true}, nil
}

// Method returns a cached MethodHandle for name resolved by arity.
func (h *TypeHandle) Method(name string, arity int) (MethodHandle, error) {
	overloads, ok := h.rec.MethodOverloads(name)
	if !ok {
		return MethodHandle{}, methodNotFound(h.rec, name)
	}
	for _, m := range overloads {
		if m.Arity == arity {
			return MethodHandle{rec: m}, nil
		}
	}
	return MethodHandle{}, methodSignatureMismatch(h.rec, name, overloads, arity)
}
