package container_test

import (
	"testing"

	"github.com/zond/goflect"
	"github.com/zond/goflect/container"
	"github.com/zond/goflect/registry"
	"github.com/zond/goflect/variant"
)

type Roster struct {
	Names []string
	Score map[string]int
}

func newRosterType(t *testing.T) *goflect.TypeHandle {
	t.Helper()
	mgr := registry.New()
	b := goflect.Register[Roster](mgr)
	goflect.Property(b, "Names", func(r *Roster) *[]string { return &r.Names })
	goflect.Property(b, "Score", func(r *Roster) *map[string]int { return &r.Score })
	h, err := goflect.GetType[Roster](mgr)
	if err != nil {
		t.Fatalf("GetType: %v", err)
	}
	return h
}

// TestSequentialWalk walks a registered slice member end-to-end,
// including a mutation, via the container adapter.
func TestSequentialWalk(t *testing.T) {
	h := newRosterType(t)
	obj := h.Create()

	seq, err := container.Sequential(obj, "Names")
	if err != nil {
		t.Fatalf("Sequential: %v", err)
	}
	if !seq.Empty() {
		t.Fatalf("expected empty roster")
	}
	if err := seq.PushBack(variant.New("Ada")); err != nil {
		t.Fatalf("PushBack: %v", err)
	}
	if err := seq.PushBack(variant.New("Grace")); err != nil {
		t.Fatalf("PushBack: %v", err)
	}
	if seq.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", seq.Size())
	}

	var got []string
	for _, v := range seq.All() {
		s, ok := variant.TryGet[string](v)
		if !ok {
			t.Fatalf("non-string element in Names")
		}
		got = append(got, s)
	}
	if len(got) != 2 || got[0] != "Ada" || got[1] != "Grace" {
		t.Fatalf("All() = %v, want [Ada Grace]", got)
	}

	if err := seq.PopBack(); err != nil {
		t.Fatalf("PopBack: %v", err)
	}
	if seq.Size() != 1 {
		t.Fatalf("Size() after PopBack = %d, want 1", seq.Size())
	}
}

func TestAssociativeInsertFindErase(t *testing.T) {
	h := newRosterType(t)
	obj := h.Create()

	assoc, err := container.Associative(obj, "Score")
	if err != nil {
		t.Fatalf("Associative: %v", err)
	}
	if err := assoc.Insert(variant.New("Ada"), variant.New(100)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	v, ok := assoc.Find(variant.New("Ada"))
	if !ok {
		t.Fatalf("Find(Ada) missing")
	}
	if got, ok := variant.TryGet[int](v); !ok || got != 100 {
		t.Fatalf("Find(Ada) = %v, want 100", got)
	}
	if !assoc.Erase(variant.New("Ada")) {
		t.Fatalf("Erase(Ada) reported not found")
	}
	if assoc.Contains(variant.New("Ada")) {
		t.Fatalf("Ada should be gone after Erase")
	}
}

func TestSequentialCategoryMismatch(t *testing.T) {
	h := newRosterType(t)
	obj := h.Create()
	if _, err := container.Sequential(obj, "Score"); err == nil {
		t.Fatalf("expected an error resolving a map member as Sequential")
	}
}
