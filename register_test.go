package goflect_test

import (
	"testing"

	"github.com/zond/goflect"
	"github.com/zond/goflect/registry"
)

type Animal struct {
	Name string
}

type Dog struct {
	Animal
	Breed string
}

// TestBaseMerging confirms that after registering Dog with Animal as its
// base, Dog's property set is a superset of Animal's, and a base property
// read through Dog returns the same value as read through Animal on the
// same object (true here because Dog embeds Animal at offset zero).
func TestBaseMerging(t *testing.T) {
	mgr := registry.New()
	ab := goflect.Register[Animal](mgr)
	goflect.Property(ab, "name", func(a *Animal) *string { return &a.Name })
	ab.Method("speak", func(a *Animal) string { return a.Name + " makes a sound" })

	db := goflect.Register[Dog](mgr)
	goflect.Property(db, "breed", func(d *Dog) *string { return &d.Breed })
	goflect.Base[Dog, Animal](db, mgr)

	dogType, err := goflect.GetType[Dog](mgr)
	if err != nil {
		t.Fatalf("GetType Dog: %v", err)
	}
	if !dogType.HasMember("name") {
		t.Fatalf("Dog should have inherited property %q", "name")
	}
	if !dogType.HasMember("breed") {
		t.Fatalf("Dog should have its own property %q", "breed")
	}
	if !dogType.HasMethod("speak") {
		t.Fatalf("Dog should have inherited method %q", "speak")
	}

	dog := dogType.Create()
	if err := goflect.Set(dog, "name", "Rex"); err != nil {
		t.Fatalf("Set name: %v", err)
	}
	name, err := goflect.Get[string](dog, "name")
	if err != nil || name != "Rex" {
		t.Fatalf("Get name = %v, %v; want Rex, nil", name, err)
	}

	animalType, err := goflect.GetType[Animal](mgr)
	if err != nil {
		t.Fatalf("GetType Animal: %v", err)
	}
	animalHandle := animalType.Bind(dog.Pointer(), dog)
	animalName, err := goflect.Get[string](animalHandle, "name")
	if err != nil || animalName != "Rex" {
		t.Fatalf("reading name through Animal handle = %v, %v; want Rex, nil", animalName, err)
	}

	results, err := dog.Call("speak")
	if err != nil {
		t.Fatalf("Call speak: %v", err)
	}
	if len(results) != 1 || results[0].(string) != "Rex makes a sound" {
		t.Fatalf("speak() = %v, want [\"Rex makes a sound\"]", results)
	}
}

// TestMethodShadowsInheritedOverloadAfterBase is the Base-then-Method
// ordering of overload shadowing: Base runs first, merging Animal's
// zero-arity speak into Dog, and a later Dog.Method("speak", ...) at the
// same arity replaces the inherited overload instead of colliding with
// it.
func TestMethodShadowsInheritedOverloadAfterBase(t *testing.T) {
	mgr := registry.New()
	ab := goflect.Register[Animal](mgr)
	goflect.Property(ab, "name", func(a *Animal) *string { return &a.Name })
	ab.Method("speak", func(a *Animal) string { return a.Name + " makes a sound" })

	db := goflect.Register[Dog](mgr)
	goflect.Property(db, "breed", func(d *Dog) *string { return &d.Breed })
	goflect.Base[Dog, Animal](db, mgr)
	db.Method("speak", func(d *Dog) string { return d.Name + " barks" })

	if err := db.Err(); err != nil {
		t.Fatalf("Method after Base should shadow, not error: %v", err)
	}

	dogType, err := goflect.GetType[Dog](mgr)
	if err != nil {
		t.Fatalf("GetType Dog: %v", err)
	}
	dog := dogType.Create()
	if err := goflect.Set(dog, "name", "Rex"); err != nil {
		t.Fatalf("Set name: %v", err)
	}
	results, err := dog.Call("speak")
	if err != nil {
		t.Fatalf("Call speak: %v", err)
	}
	if len(results) != 1 || results[0].(string) != "Rex barks" {
		t.Fatalf("speak() = %v, want [\"Rex barks\"] (Dog's override, not Animal's)", results)
	}

	// Animal's own overload is untouched by Dog's override.
	animalType, err := goflect.GetType[Animal](mgr)
	if err != nil {
		t.Fatalf("GetType Animal: %v", err)
	}
	animal := animalType.Create()
	if err := goflect.Set(animal, "name", "Generic"); err != nil {
		t.Fatalf("Set name: %v", err)
	}
	results, err = animal.Call("speak")
	if err != nil {
		t.Fatalf("Call Animal speak: %v", err)
	}
	if len(results) != 1 || results[0].(string) != "Generic makes a sound" {
		t.Fatalf("Animal speak() = %v, want [\"Generic makes a sound\"]", results)
	}
}

// TestMethodArityCollisionSetsErr confirms a direct second registration
// of the same name/arity is rejected via Builder.Err rather than a panic,
// and the builder's fluent chain keeps returning usable *Builder[T] values
// afterward instead of unwinding the stack.
func TestMethodArityCollisionSetsErr(t *testing.T) {
	mgr := registry.New()
	b := goflect.Register[Overloaded](mgr)
	b.Method("m", func(o *Overloaded) int { return 1 })
	b.Method("m", func(o *Overloaded) int { return 2 })

	if err := b.Err(); err == nil {
		t.Fatalf("expected Err to report the arity collision")
	}
}

// TestConstMethodMarksRecord confirms ConstMethod carries the IsConst flag
// on the stored overload while dispatching exactly like Method.
func TestConstMethodMarksRecord(t *testing.T) {
	mgr := registry.New()
	b := goflect.Register[Animal](mgr)
	goflect.Property(b, "name", func(a *Animal) *string { return &a.Name })
	b.ConstMethod("describe", func(a *Animal) string { return "a " + a.Name })

	animalType, err := goflect.GetType[Animal](mgr)
	if err != nil {
		t.Fatalf("GetType: %v", err)
	}
	handle, err := animalType.Method("describe", 0)
	if err != nil {
		t.Fatalf("Method: %v", err)
	}
	animal := animalType.Create()
	if err := goflect.Set(animal, "name", "cat"); err != nil {
		t.Fatalf("Set name: %v", err)
	}
	results, err := handle.Call(animal.Pointer())
	if err != nil {
		t.Fatalf("Call describe: %v", err)
	}
	if len(results) != 1 || results[0].(string) != "a cat" {
		t.Fatalf("describe() = %v, want [\"a cat\"]", results)
	}

	overloads, ok := animal.Record().MethodOverloads("describe")
	if !ok || len(overloads) != 1 || !overloads[0].IsConst {
		t.Fatalf("describe should be recorded as a const overload, got %+v", overloads)
	}
}

type Greeter struct {
	Prefix string
}

// TestImplicitArgConversions confirms the invoker's conversions: a method declared to
// take a string accepts a string argument via the dynamic invoker, and a
// method declared to take an int accepts a float64 argument, receiving the
// truncated value.
func TestImplicitArgConversions(t *testing.T) {
	mgr := registry.New()
	b := goflect.Register[Greeter](mgr)
	goflect.Property(b, "Prefix", func(g *Greeter) *string { return &g.Prefix })
	b.Method("greet", func(g *Greeter, name string) string { return g.Prefix + name })
	b.Method("scale", func(g *Greeter, by int32) int32 { return by * 2 })

	h, err := goflect.GetType[Greeter](mgr)
	if err != nil {
		t.Fatalf("GetType: %v", err)
	}
	obj := h.Create()
	if err := goflect.Set(obj, "Prefix", "hello, "); err != nil {
		t.Fatalf("Set Prefix: %v", err)
	}

	results, err := obj.Call("greet", "world")
	if err != nil {
		t.Fatalf("Call greet: %v", err)
	}
	if len(results) != 1 || results[0].(string) != "hello, world" {
		t.Fatalf("greet(world) = %v, want [\"hello, world\"]", results)
	}

	results, err = obj.Call("scale", 7.9)
	if err != nil {
		t.Fatalf("Call scale with a float argument: %v", err)
	}
	if len(results) != 1 || results[0].(int32) != 14 {
		t.Fatalf("scale(7.9) = %v, want [14] (truncated before doubling)", results)
	}
}

type Vector struct {
	X, Y int
}

// TestConstructorArgumentBoxedFactory confirms a registered Constructor
// accepts a boxed argument list and its result is immediately usable
// through GetType(...).CreateWith.
func TestConstructorArgumentBoxedFactory(t *testing.T) {
	mgr := registry.New()
	b := goflect.Register[Vector](mgr)
	goflect.Property(b, "x", func(v *Vector) *int { return &v.X })
	goflect.Property(b, "y", func(v *Vector) *int { return &v.Y })
	b.Constructor(2, func(args []any) (*Vector, error) {
		return &Vector{X: args[0].(int), Y: args[1].(int)}, nil
	})

	h, err := goflect.GetType[Vector](mgr)
	if err != nil {
		t.Fatalf("GetType: %v", err)
	}
	obj, err := h.CreateWith(3, 4)
	if err != nil {
		t.Fatalf("CreateWith: %v", err)
	}
	x, err := goflect.Get[int](obj, "x")
	if err != nil || x != 3 {
		t.Fatalf("Get x = %v, %v; want 3, nil", x, err)
	}
	y, err := goflect.Get[int](obj, "y")
	if err != nil || y != 4 {
		t.Fatalf("Get y = %v, %v; want 4, nil", y, err)
	}

	if _, err := h.CreateWith(1); err == nil {
		t.Fatalf("expected an error calling CreateWith with no matching factory arity")
	}
}
