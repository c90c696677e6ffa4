package contents

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/smilyorg/contentsd/internal/checkpoint"
	"github.com/smilyorg/contentsd/internal/entry"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	dir := t.TempDir()
	cps, err := checkpoint.New(dir)
	if err != nil {
		t.Fatalf("checkpoint.New: %v", err)
	}
	m, err := New(dir, cps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		m.Close()
		cps.Close()
	})
	return m
}

func TestGetNotFound(t *testing.T) {
	m := newManager(t)
	if _, err := m.Get("missing.txt", false, nil, nil); err == nil {
		t.Fatal("expected NotFound error")
	}
}

func TestGetDirectoryListingSortedCaseInsensitive(t *testing.T) {
	m := newManager(t)
	for _, name := range []string{"banana.txt", "Apple.txt", "cherry.txt"} {
		if _, _, err := m.Upload(name, UploadBody{Type: entry.TypeFile, Format: entry.FormatText, Content: "x"}); err != nil {
			t.Fatalf("Upload %s: %v", name, err)
		}
	}
	e, err := m.Get("", true, nil, nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	children, ok := e.Content.([]*entry.Entry)
	if !ok {
		t.Fatalf("Content = %T, want []*entry.Entry", e.Content)
	}
	if len(children) != 3 {
		t.Fatalf("len(children) = %d, want 3", len(children))
	}
	var names []string
	for _, c := range children {
		names = append(names, c.Name)
	}
	want := []string{"Apple.txt", "banana.txt", "cherry.txt"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names = %v, want %v", names, want)
		}
	}
}

func TestGetBadType(t *testing.T) {
	m := newManager(t)
	if _, err := m.Create("", CreateOptions{Directory: true}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	wantFile := entry.TypeFile
	if _, err := m.Get("Untitled Folder", false, &wantFile, nil); err == nil {
		t.Fatal("expected BadType getting a directory as a file")
	}

	if _, _, err := m.Upload("a.txt", UploadBody{Type: entry.TypeFile, Format: entry.FormatText, Content: "x"}); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	wantDir := entry.TypeDirectory
	if _, err := m.Get("a.txt", false, &wantDir, nil); err == nil {
		t.Fatal("expected BadType getting a file as a directory")
	}
}

func TestCreateUntitledSequence(t *testing.T) {
	m := newManager(t)
	for i, want := range []string{"Untitled.ipynb", "Untitled1.ipynb", "Untitled2.ipynb"} {
		e, err := m.Create("", CreateOptions{})
		if err != nil {
			t.Fatalf("Create #%d: %v", i, err)
		}
		if e.Name != want {
			t.Fatalf("Create #%d = %q, want %q", i, e.Name, want)
		}
	}
}

func TestCreateUntitledTxtIsLowercase(t *testing.T) {
	m := newManager(t)
	e, err := m.Create("", CreateOptions{Ext: ".txt"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if e.Name != "untitled.txt" {
		t.Fatalf("Create = %q, want %q", e.Name, "untitled.txt")
	}
}

func TestCreateDirectoryUntitledSequence(t *testing.T) {
	m := newManager(t)
	for i, want := range []string{"Untitled Folder", "Untitled Folder 1"} {
		e, err := m.Create("", CreateOptions{Directory: true})
		if err != nil {
			t.Fatalf("Create #%d: %v", i, err)
		}
		if e.Name != want {
			t.Fatalf("Create #%d = %q, want %q", i, e.Name, want)
		}
	}
}

func TestCopySequenceAndCopyOfCopy(t *testing.T) {
	m := newManager(t)
	if _, _, err := m.Upload("report.txt", UploadBody{Type: entry.TypeFile, Format: entry.FormatText, Content: "data"}); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	e1, err := m.Create("", CreateOptions{CopyFrom: "report.txt"})
	if err != nil {
		t.Fatalf("Create copy 1: %v", err)
	}
	if e1.Name != "report-Copy1.txt" {
		t.Fatalf("copy 1 = %q, want %q", e1.Name, "report-Copy1.txt")
	}

	e2, err := m.Create("", CreateOptions{CopyFrom: "report.txt"})
	if err != nil {
		t.Fatalf("Create copy 2: %v", err)
	}
	if e2.Name != "report-Copy2.txt" {
		t.Fatalf("copy 2 = %q, want %q", e2.Name, "report-Copy2.txt")
	}

	// Copying the copy continues the same numbering sequence rather than
	// restarting at report-Copy1-Copy1.txt.
	e3, err := m.Create("", CreateOptions{CopyFrom: "report-Copy1.txt"})
	if err != nil {
		t.Fatalf("Create copy of copy: %v", err)
	}
	if e3.Name != "report-Copy3.txt" {
		t.Fatalf("copy of copy = %q, want %q", e3.Name, "report-Copy3.txt")
	}
}

// TestCopyIntoOtherDirectoryKeepsBareNameFirst exercises the original
// Jupyter contents API's test_copy_path scenario: copying a file into a
// directory that doesn't already hold a same-named entry must produce
// the bare name unchanged, not a spurious "-Copy1" suffix.
func TestCopyIntoOtherDirectoryKeepsBareNameFirst(t *testing.T) {
	m := newManager(t)
	if _, err := m.Create("", CreateOptions{Directory: true}); err != nil {
		t.Fatalf("Create dir: %v", err)
	}
	if _, _, err := m.Upload("foo", UploadBody{Type: entry.TypeDirectory}); err != nil {
		t.Fatalf("Upload foo dir: %v", err)
	}
	if _, _, err := m.Upload("foo/a.ipynb", UploadBody{Type: entry.TypeNotebook, Content: map[string]interface{}{
		"nbformat": 4, "metadata": map[string]interface{}{}, "cells": []interface{}{},
	}}); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	e, err := m.Create("Untitled Folder", CreateOptions{CopyFrom: "foo/a.ipynb"})
	if err != nil {
		t.Fatalf("Create copy: %v", err)
	}
	if e.Name != "a.ipynb" {
		t.Fatalf("first copy into an empty destination = %q, want %q (bare name, no -Copy suffix)", e.Name, "a.ipynb")
	}

	// A second copy of the same source into the same destination now
	// collides with the first, so it must fall back to the -CopyN sequence.
	e2, err := m.Create("Untitled Folder", CreateOptions{CopyFrom: "foo/a.ipynb"})
	if err != nil {
		t.Fatalf("Create second copy: %v", err)
	}
	if e2.Name != "a-Copy1.ipynb" {
		t.Fatalf("second copy into the same destination = %q, want %q", e2.Name, "a-Copy1.ipynb")
	}
}

func TestCopyDirectoryFails(t *testing.T) {
	m := newManager(t)
	if _, err := m.Create("", CreateOptions{Directory: true}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := m.Create("", CreateOptions{CopyFrom: "Untitled Folder"}); err == nil {
		t.Fatal("expected error copying a directory")
	}
}

func TestUploadRejectsCopyFrom(t *testing.T) {
	m := newManager(t)
	if _, _, err := m.Upload("a.txt", UploadBody{Type: entry.TypeFile, CopyFrom: "b.txt"}); err == nil {
		t.Fatal("expected error: copy_from is not allowed on PUT")
	}
}

func TestUploadRejectsHiddenName(t *testing.T) {
	m := newManager(t)
	if _, _, err := m.Upload(".secret", UploadBody{Type: entry.TypeFile, Format: entry.FormatText, Content: "x"}); err == nil {
		t.Fatal("expected error creating a hidden name")
	}
}

func TestUploadCreatedVsOverwritten(t *testing.T) {
	m := newManager(t)
	_, created, err := m.Upload("a.txt", UploadBody{Type: entry.TypeFile, Format: entry.FormatText, Content: "x"})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !created {
		t.Fatal("first upload should report created = true")
	}
	_, created, err = m.Upload("a.txt", UploadBody{Type: entry.TypeFile, Format: entry.FormatText, Content: "y"})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if created {
		t.Fatal("second upload should report created = false")
	}
}

func TestRenameConflict(t *testing.T) {
	m := newManager(t)
	if _, _, err := m.Upload("a.txt", UploadBody{Type: entry.TypeFile, Format: entry.FormatText, Content: "x"}); err != nil {
		t.Fatalf("Upload a: %v", err)
	}
	if _, _, err := m.Upload("b.txt", UploadBody{Type: entry.TypeFile, Format: entry.FormatText, Content: "y"}); err != nil {
		t.Fatalf("Upload b: %v", err)
	}
	if _, err := m.Rename("a.txt", "b.txt"); err == nil {
		t.Fatal("expected Conflict renaming onto an existing path")
	}
}

func TestRenameFollowsCheckpoints(t *testing.T) {
	m := newManager(t)
	if _, _, err := m.Upload("a.txt", UploadBody{Type: entry.TypeFile, Format: entry.FormatText, Content: "v1"}); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	cp, err := m.CreateCheckpoint("a.txt")
	if err != nil {
		t.Fatalf("CreateCheckpoint: %v", err)
	}
	if _, err := m.Rename("a.txt", "b.txt"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	list, err := m.ListCheckpoints("b.txt")
	if err != nil {
		t.Fatalf("ListCheckpoints: %v", err)
	}
	if len(list) != 1 || list[0].ID != cp.ID {
		t.Fatalf("ListCheckpoints after rename = %+v, want [{%s}]", list, cp.ID)
	}
}

func TestDeleteNonEmptyDirectoryLeavesEmptyListNotNil(t *testing.T) {
	m := newManager(t)
	if _, err := m.Create("", CreateOptions{Directory: true}); err != nil {
		t.Fatalf("Create dir: %v", err)
	}
	if _, _, err := m.Upload("Untitled Folder/nested.txt", UploadBody{Type: entry.TypeFile, Format: entry.FormatText, Content: "x"}); err != nil {
		t.Fatalf("Upload nested: %v", err)
	}
	if err := m.Delete("Untitled Folder"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	e, err := m.Get("", true, nil, nil)
	if err != nil {
		t.Fatalf("Get root: %v", err)
	}
	children, ok := e.Content.([]*entry.Entry)
	if !ok {
		t.Fatalf("Content = %T, want []*entry.Entry", e.Content)
	}
	if children == nil {
		t.Fatal("root content is nil, want an empty non-nil slice")
	}
	if len(children) != 0 {
		t.Fatalf("len(children) = %d, want 0", len(children))
	}
}

func TestRestoreCheckpoint(t *testing.T) {
	m := newManager(t)
	if _, _, err := m.Upload("a.txt", UploadBody{Type: entry.TypeFile, Format: entry.FormatText, Content: "v1"}); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	cp, err := m.CreateCheckpoint("a.txt")
	if err != nil {
		t.Fatalf("CreateCheckpoint: %v", err)
	}
	if _, _, err := m.Upload("a.txt", UploadBody{Type: entry.TypeFile, Format: entry.FormatText, Content: "v2"}); err != nil {
		t.Fatalf("Upload v2: %v", err)
	}
	if err := m.RestoreCheckpoint("a.txt", cp.ID); err != nil {
		t.Fatalf("RestoreCheckpoint: %v", err)
	}
	e, err := m.Get("a.txt", true, nil, nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if e.Content != "v1" {
		t.Fatalf("Content after restore = %q, want %q", e.Content, "v1")
	}
}

func TestNotebookValidationMessageDoesNotFailRead(t *testing.T) {
	m := newManager(t)
	bad := map[string]interface{}{
		"nbformat": 4,
		"metadata": map[string]interface{}{},
		"cells": []interface{}{
			map[string]interface{}{"cell_type": "wrong", "metadata": map[string]interface{}{}},
		},
	}
	if _, _, err := m.Upload("bad.ipynb", UploadBody{Type: entry.TypeNotebook, Content: bad}); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	e, err := m.Get("bad.ipynb", true, nil, nil)
	if err != nil {
		t.Fatalf("Get should succeed despite validation failure, got: %v", err)
	}
	if e.Message == "" {
		t.Fatal("expected a validation failure message")
	}
}

func TestConcurrentAutoCreateYieldsDistinctNames(t *testing.T) {
	m := newManager(t)
	const n = 8
	names := make(chan string, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			e, err := m.Create("", CreateOptions{Ext: ".txt"})
			if err != nil {
				errs <- err
				return
			}
			names <- e.Name
		}()
	}
	seen := map[string]bool{}
	for i := 0; i < n; i++ {
		select {
		case err := <-errs:
			t.Fatalf("Create: %v", err)
		case name := <-names:
			if seen[name] {
				t.Fatalf("duplicate auto-generated name %q", name)
			}
			seen[name] = true
		}
	}
}

func TestWriteBytesLeavesNoTempFiles(t *testing.T) {
	// Exercises the temp-then-rename path through Upload; confirms no stray
	// ".tmp-" files are left behind on success.
	dir := t.TempDir()
	cps, err := checkpoint.New(dir)
	if err != nil {
		t.Fatalf("checkpoint.New: %v", err)
	}
	defer cps.Close()
	m, err := New(dir, cps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer m.Close()

	if _, _, err := m.Upload("a.txt", UploadBody{Type: entry.TypeFile, Format: entry.FormatText, Content: "x"}); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.tmp-*"))
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("leftover temp files: %v", matches)
	}
	if _, err := os.Stat(filepath.Join(dir, "a.txt")); err != nil {
		t.Fatalf("expected a.txt to exist: %v", err)
	}
}
