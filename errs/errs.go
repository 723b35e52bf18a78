// Package errs defines the structured error kinds the reflection runtime
// surfaces to callers: a type lookup that found nothing, a handle used
// with no bound object, a missing property or method (with the list of
// what is registered), a type or signature mismatch, and a catch-all for
// everything else. Every kind carries a stack trace via
// github.com/pkg/errors, recoverable through errors.As and %+v.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/zond/goflect/lang"
)

// withStack attaches a stack trace to err unless it already carries one,
// mirroring goflect.WithStack without importing the root package (which
// would create an import cycle, since the root package itself returns
// errs values).
func withStack(err error) error {
	type stackTracer interface {
		StackTrace() errors.StackTrace
	}
	if _, ok := err.(stackTracer); ok {
		return err
	}
	return errors.WithStack(err)
}

// available formats a list of registered names for a diagnostic message,
// e.g. "x and y" or "a, b, and c", using lang.Enumerator instead of a bare
// strings.Join.
func available(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	return lang.Enumerator{}.Do(names...)
}

// TypeNotRegistered is returned when a lookup by name or by runtime token
// finds no TypeRecord.
type TypeNotRegistered struct {
	Name  string
	cause error
}

func NewTypeNotRegistered(name string) error {
	e := &TypeNotRegistered{Name: name}
	e.cause = withStack(fmt.Errorf("type %q is not registered", name))
	return e
}

func (e *TypeNotRegistered) Error() string { return e.cause.Error() }
func (e *TypeNotRegistered) Unwrap() error { return e.cause }

func (e *TypeNotRegistered) StackTrace() errors.StackTrace {
	return e.cause.(interface{ StackTrace() errors.StackTrace }).StackTrace()
}

// ObjectNotBound is returned when a property/method access is attempted
// on a handle with no attached object.
type ObjectNotBound struct {
	TypeName string
	cause    error
}

func NewObjectNotBound(typeName string) error {
	e := &ObjectNotBound{TypeName: typeName}
	e.cause = withStack(fmt.Errorf("%s handle has no bound object", typeName))
	return e
}

func (e *ObjectNotBound) Error() string { return e.cause.Error() }
func (e *ObjectNotBound) Unwrap() error { return e.cause }

// PropertyNotFound carries the type name, the missing property name, and
// the list of properties that ARE registered on the type.
type PropertyNotFound struct {
	TypeName  string
	Name      string
	Available []string
	cause     error
}

func NewPropertyNotFound(typeName, name string, available []string) error {
	e := &PropertyNotFound{TypeName: typeName, Name: name, Available: available}
	e.cause = withStack(fmt.Errorf("%s has no property %q; it has %s: %s",
		typeName, name, lang.Card(len(available), "property"), availableOrNone(available)))
	return e
}

func availableOrNone(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	return available(names)
}

func (e *PropertyNotFound) Error() string { return e.cause.Error() }
func (e *PropertyNotFound) Unwrap() error { return e.cause }

// PropertyTypeMismatch reports that the caller's type parameter doesn't
// match the member's declared runtime token. The hashed-name paths check
// it on every access; only the offset-based fast paths skip it.
type PropertyTypeMismatch struct {
	TypeName string
	Name     string
	Expected string
	Actual   string
	cause    error
}

func NewPropertyTypeMismatch(typeName, name, expected, actual string) error {
	e := &PropertyTypeMismatch{TypeName: typeName, Name: name, Expected: expected, Actual: actual}
	e.cause = withStack(fmt.Errorf("%s.%s is %s, not %s", typeName, name, expected, actual))
	return e
}

func (e *PropertyTypeMismatch) Error() string { return e.cause.Error() }
func (e *PropertyTypeMismatch) Unwrap() error { return e.cause }

// MethodNotFound carries the type name, the missing method name, and the
// list of methods that ARE registered on the type.
type MethodNotFound struct {
	TypeName  string
	Name      string
	Available []string
	cause     error
}

func NewMethodNotFound(typeName, name string, available []string) error {
	e := &MethodNotFound{TypeName: typeName, Name: name, Available: available}
	e.cause = withStack(fmt.Errorf("%s has no method %q; it has %s: %s", typeName, name, lang.Card(len(available), "method"), availableOrNone(available)))
	return e
}

func (e *MethodNotFound) Error() string { return e.cause.Error() }
func (e *MethodNotFound) Unwrap() error { return e.cause }

// MethodSignatureMismatch carries the method name and a description of
// what was expected vs. what was actually supplied (by arity, since
// overloads are resolved by argument count only).
type MethodSignatureMismatch struct {
	TypeName string
	Name     string
	Expected string
	Actual   string
	cause    error
}

func NewMethodSignatureMismatch(typeName, name, expected, actual string) error {
	e := &MethodSignatureMismatch{TypeName: typeName, Name: name, Expected: expected, Actual: actual}
	e.cause = withStack(fmt.Errorf("%s.%s expects %s, got %s", typeName, name, expected, actual))
	return e
}

func (e *MethodSignatureMismatch) Error() string { return e.cause.Error() }
func (e *MethodSignatureMismatch) Unwrap() error { return e.cause }

// ReflectionError is the catch-all for residual failures: a bad variant
// cast, an incompatible base/derived merge, a malformed registration.
type ReflectionError struct {
	cause error
}

func NewReflectionError(format string, args ...any) error {
	return &ReflectionError{cause: withStack(fmt.Errorf(format, args...))}
}

func (e *ReflectionError) Error() string { return e.cause.Error() }
func (e *ReflectionError) Unwrap() error { return e.cause }
