package goflect

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/zond/goflect/errs"
	"github.com/zond/goflect/meta"
	"github.com/zond/goflect/registry"
)

// Builder is the fluent registration API for type T: Register[T] returns
// one, and Property/Method/Constructor/Base attach members, methods,
// factories and base relationships to the TypeRecord it wraps.
//
// Property and Base are package-level generic functions rather than
// methods, because Go does not allow a method to introduce type
// parameters beyond its receiver's — there is no way to write
// `func (b *Builder[T]) Property[F any](...)`. Method and Constructor
// remain true methods: their argument/return shapes are validated
// dynamically via reflect, so they need no additional compile-time type
// parameter.
type Builder[T any] struct {
	mgr *registry.Manager
	rec *meta.TypeRecord
	err error
}

// Record returns the TypeRecord this builder is attached to, for callers
// that need direct access to it.
func (b *Builder[T]) Record() *meta.TypeRecord { return b.rec }

// Err returns the first structural registration failure this builder hit —
// a malformed Method selector, an arity collision against a directly
// registered overload, or a Base referencing an unregistered type — or nil
// if every call in the fluent chain so far succeeded. Registration is
// expected to run during single-threaded program init, so nothing in the
// chain panics; callers that want to fail fast check Err once after
// building instead of guarding every intermediate call.
func (b *Builder[T]) Err() error { return b.err }

// Register returns the Builder for T against mgr, creating and publishing
// a fresh TypeRecord the first time T is registered and adopting the
// existing one on every later call, so registration for one type can be
// split across files or packages.
func Register[T any](mgr *registry.Manager) *Builder[T] {
	name := meta.TypeNameOf[T]()
	token := meta.IDOf[T]()
	rec, _ := mgr.Register(name, func() *meta.TypeRecord {
		tr := meta.NewTypeRecord(name, token, token.Size())
		tr.Default = func() any {
			v := new(T)
			return v
		}
		tr.Copier = func(v any) any {
			t := v.(*T)
			cpy := *t
			return &cpy
		}
		tr.Destructor = func(any) {}
		return tr
	})
	return &Builder[T]{mgr: mgr, rec: rec}
}

// Property registers member F of T under name, computing its byte offset
// once by evaluating sel against a zero-valued T and measuring the
// address it returns against the zero value's own address. The offset is
// recorded once here and never recomputed; every later read is a single
// add against the bound object's base address.
//
//	goflect.Property(b, "X", func(p *Point) *int { return &p.X })
func Property[T, F any](b *Builder[T], name string, sel func(*T) *F) *Builder[T] {
	if b.err != nil {
		return b
	}
	var zero T
	base := unsafe.Pointer(&zero)
	field := sel(&zero)
	offset := uintptr(unsafe.Pointer(field)) - uintptr(base)
	token := meta.IDOf[F]()
	b.rec.Members[name] = &meta.MemberRecord{
		Name:     name,
		Offset:   offset,
		Token:    token,
		TypeName: meta.TypeName(token),
		Category: meta.Classify(token),
	}
	b.rec.InvalidateCaches()
	return b
}

// Method registers fn, which must be func(*T, ...any) (...any), as an
// overload of name. Overloads are resolved at call time by argument count
// only; two overloads distinguished solely by parameter type are not
// supported. A second registration colliding on arity against a
// directly-registered overload is a registration-time bug reported via
// Err, the same way an fn that isn't a func with a receiver is; this package
// never panics during registration. A collision against an overload Base
// merged in from a base type is not an error: the directly-registered
// method wins and replaces the inherited one.
func (b *Builder[T]) Method(name string, fn any) *Builder[T] {
	return b.method(name, fn, false)
}

// ConstMethod registers fn like Method, additionally marking the overload
// as non-mutating. The runtime doesn't enforce constness (Go has no const
// receivers to check against); the flag is carried on the MethodRecord so
// callers that distinguish read-only methods, such as a scripting bridge
// deciding which methods are safe on a shared object, can query it.
func (b *Builder[T]) ConstMethod(name string, fn any) *Builder[T] {
	return b.method(name, fn, true)
}

func (b *Builder[T]) method(name string, fn any, isConst bool) *Builder[T] {
	if b.err != nil {
		return b
	}
	fv := reflect.ValueOf(fn)
	ft := fv.Type()
	if ft.Kind() != reflect.Func || ft.NumIn() < 1 {
		b.err = errs.NewReflectionError("goflect: Method(%q, ...) needs a func(*%s, ...), got %v", name, meta.TypeNameOf[T](), ft)
		return b
	}
	arity := ft.NumIn() - 1
	overloads := b.rec.Methods[name]
	shadowIndex := -1
	for i, existing := range overloads {
		if existing.Arity == arity {
			if !existing.Inherited {
				b.err = errs.NewReflectionError("goflect: %s.%s already has an overload of arity %d", meta.TypeNameOf[T](), name, arity)
				return b
			}
			shadowIndex = i
			break
		}
	}
	rec := &meta.MethodRecord{
		Name:    name,
		Arity:   arity,
		Raw:     fv,
		Invoker: methodInvoker(fv, ft),
		IsConst: isConst,
	}
	for i := 1; i < ft.NumIn(); i++ {
		rec.ParamTokens = append(rec.ParamTokens, ft.In(i))
	}
	for i := 0; i < ft.NumOut(); i++ {
		out := ft.Out(i)
		if out == errorType {
			continue
		}
		rec.ReturnTokens = append(rec.ReturnTokens, out)
		rec.ReturnTypeNames = append(rec.ReturnTypeNames, meta.TypeName(out))
	}
	if shadowIndex >= 0 {
		overloads[shadowIndex] = rec
		b.rec.Methods[name] = overloads
	} else {
		b.rec.Methods[name] = append(overloads, rec)
	}
	b.rec.InvalidateCaches()
	return b
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// methodInvoker builds the type-erased closure stored in
// MethodRecord.Invoker: unbox each argument (applying coerce's controlled
// implicit conversions), call through reflect.Value.Call, split an
// error-typed result off from the value results.
func methodInvoker(fv reflect.Value, ft reflect.Type) func(unsafe.Pointer, []any) ([]any, error) {
	recvType := ft.In(0)
	return func(obj unsafe.Pointer, args []any) ([]any, error) {
		if len(args) != ft.NumIn()-1 {
			return nil, fmt.Errorf("expects %d arguments, got %d", ft.NumIn()-1, len(args))
		}
		callArgs := make([]reflect.Value, 0, len(args)+1)
		callArgs = append(callArgs, reflect.NewAt(recvType.Elem(), obj))
		for i, a := range args {
			coerced, err := coerce(a, ft.In(i+1))
			if err != nil {
				return nil, err
			}
			callArgs = append(callArgs, coerced)
		}
		results := fv.Call(callArgs)
		out := make([]any, 0, len(results))
		var callErr error
		for _, r := range results {
			if r.Type() == errorType {
				if !r.IsNil() {
					callErr = r.Interface().(error)
				}
				continue
			}
			out = append(out, r.Interface())
		}
		return out, callErr
	}
}

// coerce applies the invoker's small set of implicit conversions: numeric
// widening and narrowing across distinct arithmetic kinds, including
// float to integer truncation; anything else must already match exactly
// or be assignable to the parameter type (a concrete value passed to an
// interface parameter, for instance).
func coerce(a any, target reflect.Type) (reflect.Value, error) {
	if a == nil {
		return reflect.Zero(target), nil
	}
	av := reflect.ValueOf(a)
	if av.Type() == target {
		return av, nil
	}
	if av.Type().ConvertibleTo(target) && isArithmeticKind(av.Kind()) && isArithmeticKind(target.Kind()) {
		return av.Convert(target), nil
	}
	if av.Type().AssignableTo(target) {
		return av, nil
	}
	return reflect.Value{}, fmt.Errorf("can't convert %v to %v", av.Type(), target)
}

func isArithmeticKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// Constructor registers fn as the factory invoked by CreateWith when it
// receives arity arguments. The arguments arrive boxed, in call order; fn
// is responsible for asserting them to their concrete types.
func (b *Builder[T]) Constructor(arity int, fn func(args []any) (*T, error)) *Builder[T] {
	if b.err != nil {
		return b
	}
	b.rec.Factories[arity] = &meta.Factory{
		Arity: arity,
		Call: func(args []any) (any, error) {
			return fn(args)
		},
	}
	return b
}

// Base merges B's already-registered members and methods into T's record:
// a member name T doesn't already define is copied over, as is each of
// B's method overloads whose arity T doesn't already have under that
// name, and B's token (plus B's own recorded bases, transitively) is
// appended to T's base list. Only the zero-offset shape is handled: T
// must embed B as its first field, so B's members sit at the same offsets
// within T that they had within B. Offset adjustment for a B embedded
// anywhere else is not implemented.
//
// Merged-in overloads are copied with Inherited set, not referenced
// in-place: a later Method call on T registering the same name at the same
// arity shadows the copy instead of colliding with it, regardless of
// whether Base or Method ran first, and B's own Methods map is never
// mutated by a derived type's registrations.
func Base[T, B any](b *Builder[T], mgr *registry.Manager) *Builder[T] {
	if b.err != nil {
		return b
	}
	baseRec, ok := mgr.ByToken(meta.IDOf[B]())
	if !ok {
		b.err = errs.NewReflectionError("goflect: base %s is not registered", meta.TypeNameOf[B]())
		return b
	}
	for name, member := range baseRec.Members {
		if _, exists := b.rec.Members[name]; !exists {
			b.rec.Members[name] = member
		}
	}
	for name, overloads := range baseRec.Methods {
		haveArity := map[int]bool{}
		for _, m := range b.rec.Methods[name] {
			haveArity[m.Arity] = true
		}
		for _, m := range overloads {
			if !haveArity[m.Arity] {
				inherited := *m
				inherited.Inherited = true
				b.rec.Methods[name] = append(b.rec.Methods[name], &inherited)
			}
		}
	}
	b.rec.Bases = append(b.rec.Bases, baseRec.Token)
	b.rec.Bases = append(b.rec.Bases, baseRec.Bases...)
	b.rec.InvalidateCaches()
	return b
}
