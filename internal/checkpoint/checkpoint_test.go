package checkpoint

import (
	"testing"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	m, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestCreateListReadDelete(t *testing.T) {
	m := newManager(t)

	cp, err := m.Create("notes.txt", []byte("first version"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if cp.ID == "" {
		t.Fatal("Create returned empty id")
	}

	list, err := m.List("notes.txt")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].ID != cp.ID {
		t.Fatalf("List = %+v, want one entry with id %s", list, cp.ID)
	}

	data, err := m.Read("notes.txt", cp.ID)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "first version" {
		t.Fatalf("Read = %q, want %q", data, "first version")
	}

	if err := m.Delete("notes.txt", cp.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	list, err = m.List("notes.txt")
	if err != nil {
		t.Fatalf("List after delete: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("List after delete = %+v, want empty", list)
	}
}

func TestListOnNeverCheckpointedFile(t *testing.T) {
	m := newManager(t)
	list, err := m.List("never/seen.txt")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("List = %+v, want empty", list)
	}
}

func TestDeleteUnknownID(t *testing.T) {
	m := newManager(t)
	m.Create("a.txt", []byte("x"))
	if err := m.Delete("a.txt", "does-not-exist"); err == nil {
		t.Fatal("expected NotFound deleting an unknown checkpoint id")
	}
}

// TestFollow exercises the rename invariant (spec §4.4): listing at the
// new path after Follow returns exactly what was visible at the old path.
func TestFollow(t *testing.T) {
	m := newManager(t)

	cp1, err := m.Create("a/notes.txt", []byte("v1"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	cp2, err := m.Create("a/notes.txt", []byte("v2"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := m.Follow("a/notes.txt", "b/renamed.txt"); err != nil {
		t.Fatalf("Follow: %v", err)
	}

	list, err := m.List("b/renamed.txt")
	if err != nil {
		t.Fatalf("List at new path: %v", err)
	}
	got := map[string]bool{}
	for _, cp := range list {
		got[cp.ID] = true
	}
	if !got[cp1.ID] || !got[cp2.ID] || len(got) != 2 {
		t.Fatalf("List at new path = %+v, want ids {%s, %s}", list, cp1.ID, cp2.ID)
	}

	oldList, err := m.List("a/notes.txt")
	if err != nil {
		t.Fatalf("List at old path: %v", err)
	}
	if len(oldList) != 0 {
		t.Fatalf("List at old path = %+v, want empty after Follow", oldList)
	}

	data, err := m.Read("b/renamed.txt", cp1.ID)
	if err != nil {
		t.Fatalf("Read after Follow: %v", err)
	}
	if string(data) != "v1" {
		t.Fatalf("Read after Follow = %q, want %q", data, "v1")
	}
}

func TestFollowWithNoCheckpoints(t *testing.T) {
	m := newManager(t)
	if err := m.Follow("never/checkpointed.txt", "new/path.txt"); err != nil {
		t.Fatalf("Follow on a file with no checkpoints should be a no-op, got: %v", err)
	}
}

func TestRemoveAll(t *testing.T) {
	m := newManager(t)
	m.Create("a.txt", []byte("x"))
	m.Create("a.txt", []byte("y"))

	if err := m.RemoveAll("a.txt"); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}
	list, err := m.List("a.txt")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("List after RemoveAll = %+v, want empty", list)
	}
}
