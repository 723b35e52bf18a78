package meta

import (
	"reflect"
	"sync"
	"unsafe"
)

// Category classifies a member's shape at registration: primitive, class
// and enum fall out of reflect.Kind directly, and a slice/array or map
// member is classified as a container without the caller ever needing to
// say so. Runtime paths switch on the category, never on type identity.
type Category int

const (
	Primitive Category = iota
	Class
	Enum
	Sequential
	Associative
)

func (c Category) String() string {
	switch c {
	case Primitive:
		return "primitive"
	case Class:
		return "class"
	case Enum:
		return "enum"
	case Sequential:
		return "sequential_container"
	case Associative:
		return "associative_container"
	default:
		return "unknown"
	}
}

// Classify derives a Category from a member's static type. Container-ness
// is read directly off reflect.Kind — a slice or array is Sequential, a
// map is Associative — and everything else falls to Enum, Primitive or
// Class.
func Classify(t reflect.Type) Category {
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		return Sequential
	case reflect.Map:
		return Associative
	case reflect.Struct:
		return Class
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128, reflect.String:
		if isEnumKind(t) {
			return Enum
		}
		return Primitive
	default:
		return Class
	}
}

// isEnumKind reports whether t is a named type over a primitive kind with
// at least one declared method — the closest a Go type comes to an enum
// with attached behavior. A plain "type Color int" with no methods is
// indistinguishable from an integer at runtime and is classified
// Primitive instead.
func isEnumKind(t reflect.Type) bool {
	return t.Name() != "" && t.PkgPath() != "" && t.NumMethod() > 0
}

// MemberRecord is the metadata for one registered struct field: its name,
// its byte offset from the object's base address (computed once, at
// registration, and never again), its declared type's identity, and its
// container category.
type MemberRecord struct {
	Name     string
	Offset   uintptr
	Token    ID
	TypeName string
	Category Category
}

// MethodRecord is one entry in an overload set: a name-keyed, type-erased
// invoker plus enough static information to format a signature-mismatch
// diagnostic. Raw aliases the original reflect.Value of the registered
// function for a caller that already has a correctly-typed function value
// in hand and wants to skip the invoker's argument-boxing indirection.
type MethodRecord struct {
	Name            string
	Arity           int
	Invoker         func(obj unsafe.Pointer, args []any) ([]any, error)
	Raw             reflect.Value
	ParamTokens     []ID
	ReturnTokens    []ID
	ReturnTypeNames []string
	IsConst         bool
	// Inherited marks an overload copied in by Base rather than registered
	// directly on this type. A direct registration at the same arity
	// shadows an Inherited entry instead of colliding with it.
	Inherited bool
}

// Factory constructs a new T from a boxed argument list of a fixed arity.
type Factory struct {
	Arity int
	Call  func(args []any) (any, error)
}

// TypeRecord aggregates everything known about one registered type. Once
// published through a registry.Manager it is treated as append-only:
// registering the same type name again adopts this record rather than
// replacing it, and every byte offset recorded here is stable for the
// remaining lifetime of the process.
type TypeRecord struct {
	Name       string
	Size       uintptr
	Token      ID
	Members    map[string]*MemberRecord
	Methods    map[string][]*MethodRecord
	Factories  map[int]*Factory
	Default    func() any
	Destructor func(any)
	Copier     func(any) any
	Bases      []ID

	cacheMu      sync.RWMutex
	memberByHash map[uint64]*MemberRecord
	methodByHash map[uint64][]*MethodRecord
}

// NewTypeRecord allocates an empty TypeRecord for name/token/size. Callers
// populate Members/Methods/Factories via the registration builder.
func NewTypeRecord(name string, token ID, size uintptr) *TypeRecord {
	return &TypeRecord{
		Name:      name,
		Size:      size,
		Token:     token,
		Members:   map[string]*MemberRecord{},
		Methods:   map[string][]*MethodRecord{},
		Factories: map[int]*Factory{},
	}
}

// InvalidateCaches drops the lazily-built hash-indexed caches. Called
// whenever registration adds a member or method; the next query rebuilds
// them from the authoritative Members/Methods maps.
func (t *TypeRecord) InvalidateCaches() {
	t.cacheMu.Lock()
	defer t.cacheMu.Unlock()
	t.memberByHash = nil
	t.methodByHash = nil
}

// MemberByHash resolves name via a lazily-materialized hash-indexed cache,
// the fast path C6/C7 use instead of a plain map[string] lookup on
// strings that are already known to be hot.
func (t *TypeRecord) MemberByHash(name string, hash uint64) (*MemberRecord, bool) {
	t.cacheMu.RLock()
	cache := t.memberByHash
	t.cacheMu.RUnlock()
	if cache == nil {
		cache = t.rebuildMemberCache()
	}
	rec, ok := cache[hash]
	if !ok {
		return nil, false
	}
	if rec.Name != name {
		// hash collision against a different member: fall back to the map.
		rec, ok = t.Members[name]
	}
	return rec, ok
}

func (t *TypeRecord) rebuildMemberCache() map[uint64]*MemberRecord {
	t.cacheMu.Lock()
	defer t.cacheMu.Unlock()
	if t.memberByHash != nil {
		return t.memberByHash
	}
	cache := make(map[uint64]*MemberRecord, len(t.Members))
	for name, rec := range t.Members {
		cache[FNV1a(name)] = rec
	}
	t.memberByHash = cache
	return cache
}

// MethodOverloads returns the overload list registered under name,
// rebuilding the hash cache lazily on first access.
func (t *TypeRecord) MethodOverloads(name string) ([]*MethodRecord, bool) {
	t.cacheMu.RLock()
	cache := t.methodByHash
	t.cacheMu.RUnlock()
	if cache == nil {
		cache = t.rebuildMethodCache()
	}
	list, ok := cache[FNV1a(name)]
	if !ok || (len(list) > 0 && list[0].Name != name) {
		list, ok = t.Methods[name]
	}
	return list, ok
}

func (t *TypeRecord) rebuildMethodCache() map[uint64][]*MethodRecord {
	t.cacheMu.Lock()
	defer t.cacheMu.Unlock()
	if t.methodByHash != nil {
		return t.methodByHash
	}
	cache := make(map[uint64][]*MethodRecord, len(t.Methods))
	for name, list := range t.Methods {
		cache[FNV1a(name)] = list
	}
	t.methodByHash = cache
	return cache
}

// FNV1a is the string hash backing the member/method caches: cheap,
// stable within a process, collision-checked at every lookup site, never
// persisted.
func FNV1a(name string) uint64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)
	h := uint64(offset64)
	for i := 0; i < len(name); i++ {
		h ^= uint64(name[i])
		h *= prime64
	}
	return h
}

// MemberNames returns the set of property names registered for t,
// including any merged in from a Base.
func (t *TypeRecord) MemberNames() []string {
	names := make([]string, 0, len(t.Members))
	for name := range t.Members {
		names = append(names, name)
	}
	return names
}

// MethodNames returns the set of method names registered for t.
func (t *TypeRecord) MethodNames() []string {
	names := make([]string, 0, len(t.Methods))
	for name := range t.Methods {
		names = append(names, name)
	}
	return names
}
