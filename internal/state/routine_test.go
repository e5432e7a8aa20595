package state

import (
	"path/filepath"
	"testing"
)

func newRoutine(name string) *Routine {
	return &Routine{
		Name:     name,
		Schedule: "0 0 7 * * 1-5",
		Screen:   "kitchen",
		Command:  "cast",
		Args:     []string{"jfKfPfyJRdk"},
		Enabled:  true,
	}
}

func TestRoutineStore_ListEmpty(t *testing.T) {
	store := NewRoutineStore(filepath.Join(t.TempDir(), "routines.json"))

	routines, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(routines) != 0 {
		t.Errorf("expected empty list, got %d routines", len(routines))
	}
}

func TestRoutineStore_AddAndGet(t *testing.T) {
	store := NewRoutineStore(filepath.Join(t.TempDir(), "routines.json"))

	if err := store.Add(newRoutine("morning-news")); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get("morning-news")
	if err != nil {
		t.Fatal(err)
	}
	if got.Command != "cast" || len(got.Args) != 1 || got.Args[0] != "jfKfPfyJRdk" {
		t.Errorf("unexpected routine %+v", got)
	}
	if got.Schedule != "0 0 7 * * 1-5" {
		t.Errorf("expected schedule 0 0 7 * * 1-5, got %s", got.Schedule)
	}
	if got.Screen != "kitchen" || !got.Enabled {
		t.Errorf("unexpected routine %+v", got)
	}
}

func TestRoutineStore_AddDuplicate(t *testing.T) {
	store := NewRoutineStore(filepath.Join(t.TempDir(), "routines.json"))

	if err := store.Add(newRoutine("r")); err != nil {
		t.Fatal(err)
	}
	if err := store.Add(newRoutine("r")); err == nil {
		t.Fatal("expected error for duplicate routine name")
	}
}

func TestRoutineStore_GetNotFound(t *testing.T) {
	store := NewRoutineStore(filepath.Join(t.TempDir(), "routines.json"))

	if _, err := store.Get("nonexistent"); err == nil {
		t.Fatal("expected error for nonexistent routine")
	}
}

func TestRoutineStore_Remove(t *testing.T) {
	store := NewRoutineStore(filepath.Join(t.TempDir(), "routines.json"))

	if err := store.Add(newRoutine("r")); err != nil {
		t.Fatal(err)
	}
	if err := store.Remove("r"); err != nil {
		t.Fatal(err)
	}
	routines, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(routines) != 0 {
		t.Errorf("expected empty list after remove, got %d routines", len(routines))
	}
	if err := store.Remove("r"); err == nil {
		t.Fatal("expected error for removing nonexistent routine")
	}
}

func TestRoutineStore_SetEnabled(t *testing.T) {
	store := NewRoutineStore(filepath.Join(t.TempDir(), "routines.json"))

	if err := store.Add(newRoutine("r")); err != nil {
		t.Fatal(err)
	}
	if err := store.SetEnabled("r", false); err != nil {
		t.Fatal(err)
	}
	got, err := store.Get("r")
	if err != nil {
		t.Fatal(err)
	}
	if got.Enabled {
		t.Error("expected routine to be disabled")
	}
	if err := store.SetEnabled("missing", true); err == nil {
		t.Fatal("expected error for SetEnabled on nonexistent routine")
	}
}

func TestRoutineStore_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routines.json")

	if err := NewRoutineStore(path).Add(newRoutine("persist")); err != nil {
		t.Fatal(err)
	}

	routines, err := NewRoutineStore(path).List()
	if err != nil {
		t.Fatal(err)
	}
	if len(routines) != 1 || routines[0].Name != "persist" {
		t.Fatalf("expected persisted routine, got %v", routines)
	}
}
