// Package fs resolves response file names against the workspace and applies
// planned changes to disk.
package fs

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sokinpui/tagstream/model"
)

// PathResolver finds absolute paths for response-relative file names.
type PathResolver struct {
	lookupDirs []string
}

// NewPathResolver creates a resolver over the given lookup directories,
// defaulting to the current working directory.
func NewPathResolver(lookupDirs []string) *PathResolver {
	if len(lookupDirs) == 0 {
		wd, err := os.Getwd()
		if err != nil {
			panic(fmt.Sprintf("could not get current working directory: %v", err))
		}
		return &PathResolver{lookupDirs: []string{wd}}
	}

	absDirs := make([]string, 0, len(lookupDirs))
	for _, dir := range lookupDirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		absDirs = append(absDirs, abs)
	}
	return &PathResolver{lookupDirs: absDirs}
}

// Resolve maps a relative name to an absolute path, preferring an existing
// file in any lookup dir and otherwise placing a new file under the first
// one. Names that are absolute or climb out of the root are rejected.
func (r *PathResolver) Resolve(name string) (string, error) {
	if err := checkRelative(name); err != nil {
		return "", err
	}
	if existing := r.ResolveExisting(name); existing != "" {
		return existing, nil
	}
	return filepath.Join(r.lookupDirs[0], name), nil
}

// ResolveExisting returns the absolute path of name if it exists in a lookup
// dir, or "".
func (r *PathResolver) ResolveExisting(name string) string {
	if checkRelative(name) != nil {
		return ""
	}
	for _, dir := range r.lookupDirs {
		abs := filepath.Join(dir, name)
		if _, err := os.Stat(abs); err == nil {
			return abs
		}
	}
	return ""
}

// Read returns the current content of the named file. It satisfies the
// reader the patch engine resolves diffs against.
func (r *PathResolver) Read(name string) ([]byte, error) {
	abs := r.ResolveExisting(name)
	if abs == "" {
		return nil, fmt.Errorf("file not found: %s", name)
	}
	return os.ReadFile(abs)
}

// checkRelative rejects names that would escape the lookup roots.
func checkRelative(name string) error {
	if name == "" {
		return fmt.Errorf("empty file name")
	}
	if filepath.IsAbs(name) {
		return fmt.Errorf("absolute file name not allowed: %s", name)
	}
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("file name escapes the workspace: %s", name)
	}
	return nil
}

// GetFileActionsAndDirs determines which target paths are new vs. modified
// and which directories must be created first.
func GetFileActionsAndDirs(targetPaths []string) (map[string]string, map[string]struct{}) {
	fileActions := make(map[string]string)
	dirsToCreate := make(map[string]struct{})

	for _, path := range targetPaths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			fileActions[path] = "create"
			dir := filepath.Dir(path)
			if dir != "." && dir != "/" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					dirsToCreate[dir] = struct{}{}
				}
			}
		} else {
			fileActions[path] = "modify"
		}
	}
	return fileActions, dirsToCreate
}

// CreateDirs creates all listed directories.
func CreateDirs(dirs map[string]struct{}) error {
	for dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// WriteChanges writes each planned change to disk, returning the updated and
// failed paths. It is best effort; one failure does not stop the rest.
func WriteChanges(changes []model.FileChange) (updated, failed []string) {
	for _, change := range changes {
		content := strings.Join(change.Content, "\n")
		if err := os.WriteFile(change.Path, []byte(content), 0644); err != nil {
			failed = append(failed, change.Path)
			continue
		}
		updated = append(updated, change.Path)
	}
	return updated, failed
}

// FileSHA256 hashes a file's content for the undo history's integrity check.
func FileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
