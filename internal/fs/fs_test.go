package fs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sokinpui/tagstream/internal/fs"
	"github.com/sokinpui/tagstream/model"
)

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "found.go")
	if err := os.WriteFile(existing, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	r := fs.NewPathResolver([]string{dir})

	t.Run("existing file", func(t *testing.T) {
		got, err := r.Resolve("found.go")
		if err != nil {
			t.Fatal(err)
		}
		if got != existing {
			t.Errorf("Resolve = %q, want %q", got, existing)
		}
	})

	t.Run("new file lands in first dir", func(t *testing.T) {
		got, err := r.Resolve("sub/new.go")
		if err != nil {
			t.Fatal(err)
		}
		if got != filepath.Join(dir, "sub/new.go") {
			t.Errorf("Resolve = %q", got)
		}
	})

	t.Run("absolute name rejected", func(t *testing.T) {
		if _, err := r.Resolve("/etc/passwd"); err == nil {
			t.Error("absolute name accepted")
		}
	})

	t.Run("escaping name rejected", func(t *testing.T) {
		for _, name := range []string{"..", "../outside.go", "sub/../../outside.go"} {
			if _, err := r.Resolve(name); err == nil {
				t.Errorf("escaping name %q accepted", name)
			}
		}
	})

	t.Run("empty name rejected", func(t *testing.T) {
		if _, err := r.Resolve(""); err == nil {
			t.Error("empty name accepted")
		}
	})

	t.Run("dotdot within the tree is fine", func(t *testing.T) {
		if _, err := r.Resolve("sub/../found.go"); err != nil {
			t.Errorf("in-tree ..: %v", err)
		}
	})
}

func TestResolveMultipleLookupDirs(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	target := filepath.Join(second, "only-here.go")
	if err := os.WriteFile(target, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	r := fs.NewPathResolver([]string{first, second})

	got, err := r.Resolve("only-here.go")
	if err != nil {
		t.Fatal(err)
	}
	if got != target {
		t.Errorf("Resolve = %q, want the second lookup dir's file", got)
	}
}

func TestGetFileActionsAndDirs(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "old.go")
	if err := os.WriteFile(existing, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	fresh := filepath.Join(dir, "deep/nest/new.go")

	actions, dirs := fs.GetFileActionsAndDirs([]string{existing, fresh})

	if actions[existing] != "modify" {
		t.Errorf("action for existing = %q", actions[existing])
	}
	if actions[fresh] != "create" {
		t.Errorf("action for fresh = %q", actions[fresh])
	}
	if _, ok := dirs[filepath.Dir(fresh)]; !ok {
		t.Errorf("missing dir to create, got %v", dirs)
	}
}

func TestWriteChanges(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "ok.txt")
	bad := filepath.Join(dir, "missing-parent/nope.txt")

	updated, failed := fs.WriteChanges([]model.FileChange{
		{Path: good, Content: []string{"print(1)", ""}},
		{Path: bad, Content: []string{"x"}},
	})

	if len(updated) != 1 || updated[0] != good {
		t.Errorf("updated = %v", updated)
	}
	if len(failed) != 1 || failed[0] != bad {
		t.Errorf("failed = %v", failed)
	}
	data, err := os.ReadFile(good)
	if err != nil {
		t.Fatal(err)
	}
	// Content lines round-trip exactly; the trailing empty line is the final
	// newline, not an extra one.
	if string(data) != "print(1)\n" {
		t.Errorf("written content = %q", string(data))
	}
}

func TestFileSHA256(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	if err := os.WriteFile(path, []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := fs.FileSHA256(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Errorf("FileSHA256 = %q, want %q", got, want)
	}
}
