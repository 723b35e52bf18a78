package errs

import (
	"errors"
	"strings"
	"testing"
)

func TestPropertyNotFoundCarriesAvailableNames(t *testing.T) {
	err := NewPropertyNotFound("Point", "z", []string{"x", "y"})
	var pnf *PropertyNotFound
	if !errors.As(err, &pnf) {
		t.Fatalf("errors.As failed to find *PropertyNotFound in %v", err)
	}
	if pnf.TypeName != "Point" || pnf.Name != "z" {
		t.Fatalf("PropertyNotFound = %+v, want TypeName=Point Name=z", pnf)
	}
	if len(pnf.Available) != 2 {
		t.Fatalf("Available = %v, want [x y]", pnf.Available)
	}
}

func TestMethodNotFoundMessageMentionsName(t *testing.T) {
	err := NewMethodNotFound("Gadget", "explode", []string{"bump"})
	if !strings.Contains(err.Error(), "explode") {
		t.Fatalf("Error() = %q, want it to mention %q", err.Error(), "explode")
	}
	var mnf *MethodNotFound
	if !errors.As(err, &mnf) {
		t.Fatalf("errors.As failed to find *MethodNotFound in %v", err)
	}
	if mnf.Available[0] != "bump" {
		t.Fatalf("Available = %v, want [bump]", mnf.Available)
	}
}

func TestTypeNotRegisteredUnwrapsToStackTracer(t *testing.T) {
	err := NewTypeNotRegistered("Ghost")
	var tnr *TypeNotRegistered
	if !errors.As(err, &tnr) {
		t.Fatalf("errors.As failed to find *TypeNotRegistered in %v", err)
	}
	if tnr.Name != "Ghost" {
		t.Fatalf("Name = %q, want Ghost", tnr.Name)
	}
	if len(tnr.StackTrace()) == 0 {
		t.Fatalf("expected a non-empty stack trace")
	}
}

func TestReflectionErrorFormatsLikeErrorf(t *testing.T) {
	err := NewReflectionError("%s.%s is not a %s", "Outer", "inner", "class")
	want := "Outer.inner is not a class"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}
