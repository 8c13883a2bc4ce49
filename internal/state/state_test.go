package state_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sokinpui/tagstream/internal/fs"
	"github.com/sokinpui/tagstream/internal/state"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func read(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

// recordModify simulates the apply pipeline for one modified file: back up,
// overwrite, hash, record.
func recordModify(t *testing.T, m *state.Manager, path, newContent string) {
	t.Helper()
	backup, err := m.Backup(path)
	if err != nil {
		t.Fatal(err)
	}
	write(t, path, newContent)
	hash, err := fs.FileSHA256(path)
	if err != nil {
		t.Fatal(err)
	}
	m.Record([]state.Operation{{Action: "modify", Path: path, Hash: hash, Backup: backup}})
}

func TestUndoRedoModify(t *testing.T) {
	root := t.TempDir()
	m, err := state.NewAt(root)
	if err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(root, "a.txt")
	write(t, target, "old")
	recordModify(t, m, target, "new")

	done, failed := m.Undo()
	if len(failed) != 0 || len(done) != 1 {
		t.Fatalf("Undo = %v, %v", done, failed)
	}
	if got := read(t, target); got != "old" {
		t.Errorf("after undo: %q", got)
	}

	done, failed = m.Redo()
	if len(failed) != 0 || len(done) != 1 {
		t.Fatalf("Redo = %v, %v", done, failed)
	}
	if got := read(t, target); got != "new" {
		t.Errorf("after redo: %q", got)
	}

	// And back again; the swap works in both directions indefinitely.
	m.Undo()
	if got := read(t, target); got != "old" {
		t.Errorf("after second undo: %q", got)
	}
}

func TestUndoCreateRemovesFile(t *testing.T) {
	root := t.TempDir()
	m, err := state.NewAt(root)
	if err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(root, "fresh.txt")
	write(t, target, "content")
	hash, _ := fs.FileSHA256(target)
	m.Record([]state.Operation{{Action: "create", Path: target, Hash: hash}})

	done, failed := m.Undo()
	if len(failed) != 0 || len(done) != 1 {
		t.Fatalf("Undo = %v, %v", done, failed)
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Error("created file still exists after undo")
	}

	m.Redo()
	if got := read(t, target); got != "content" {
		t.Errorf("after redo: %q", got)
	}
}

func TestUndoRefusesWhenFileChanged(t *testing.T) {
	root := t.TempDir()
	m, err := state.NewAt(root)
	if err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(root, "a.txt")
	write(t, target, "old")
	recordModify(t, m, target, "new")

	// Someone edits the file after the tool wrote it.
	write(t, target, "hand edited")

	done, failed := m.Undo()
	if len(done) != 0 || len(failed) != 1 {
		t.Fatalf("Undo = %v, %v", done, failed)
	}
	if got := read(t, target); got != "hand edited" {
		t.Errorf("undo clobbered a changed file: %q", got)
	}
}

func TestUndoWithEmptyHistory(t *testing.T) {
	m, err := state.NewAt(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if done, failed := m.Undo(); done != nil || failed != nil {
		t.Errorf("Undo on empty history = %v, %v", done, failed)
	}
	if done, failed := m.Redo(); done != nil || failed != nil {
		t.Errorf("Redo on empty history = %v, %v", done, failed)
	}
}

func TestHistorySurvivesReload(t *testing.T) {
	root := t.TempDir()
	m, err := state.NewAt(root)
	if err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(root, "a.txt")
	write(t, target, "old")
	recordModify(t, m, target, "new")

	// A fresh manager over the same root sees the recorded history.
	m2, err := state.NewAt(root)
	if err != nil {
		t.Fatal(err)
	}
	done, failed := m2.Undo()
	if len(failed) != 0 || len(done) != 1 {
		t.Fatalf("Undo after reload = %v, %v", done, failed)
	}
	if got := read(t, target); got != "old" {
		t.Errorf("after reload undo: %q", got)
	}
}

func TestRecordTruncatesRedoTail(t *testing.T) {
	root := t.TempDir()
	m, err := state.NewAt(root)
	if err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(root, "a.txt")
	write(t, target, "v1")
	recordModify(t, m, target, "v2")
	m.Undo() // back to v1

	// A new operation discards the undone v2 entry.
	recordModify(t, m, target, "v3")
	if done, _ := m.Redo(); done != nil {
		t.Errorf("redo after new record should find nothing, got %v", done)
	}
	m.Undo()
	if got := read(t, target); got != "v1" {
		t.Errorf("after undo of v3: %q", got)
	}
}
