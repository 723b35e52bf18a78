// Package meta holds the immutable-after-publish metadata records the
// rest of goflect reads at runtime: type identity, member records, method
// records and the type record that aggregates them.
package meta

import (
	"reflect"
	"regexp"
)

// ID identifies a registered type. reflect.Type values are already
// canonical and comparable with ==, one per distinct Go type for the
// lifetime of the process — exactly the stability and equality contract a
// type-identity token needs — so ID is reflect.Type itself rather than a
// second, parallel identity.
type ID = reflect.Type

// IDOf returns the stable identity of T.
func IDOf[T any]() ID {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// qualifiedPrefix strips everything up to and including the last path
// separator or package-qualifier dot from a type's default string form.
// It is the fallback TypeName uses for types reflect.Type.Name() can't
// name on its own (slices, maps, pointers).
var qualifiedPrefix = regexp.MustCompile(`^.*[./]`)

// TypeName derives the bare, unqualified name a registered type is looked
// up by: just "Point", never "mypkg.Point". Registered names carry no
// package qualification — two types named Point in different packages
// are a caller error to register under the same manager, not something
// the name format should paper over — so
// named types use reflect.Type.Name() directly, and only the handful of
// unnamed composite shapes (slice/map/pointer element types formatted via
// TypeName for diagnostics) fall back to stripping String()'s prefix.
func TypeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	if n := t.Name(); n != "" {
		return n
	}
	return qualifiedPrefix.ReplaceAllLiteralString(t.String(), "")
}

// TypeNameOf is the generic convenience form of TypeName.
func TypeNameOf[T any]() string {
	return TypeName(IDOf[T]())
}
