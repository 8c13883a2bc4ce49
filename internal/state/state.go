// Package state records applied operations so they can be undone and
// redone. History lives in a .tagstream directory at the git root, with
// pre-change file copies in a trash subdirectory.
package state

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sokinpui/tagstream/internal/fs"
)

const (
	stateDirName  = ".tagstream"
	stateFileName = "history"
	trashDirName  = "trash"
)

// Operation is one applied file change. Backup holds the pre-change content
// for "modify" (and the removed content after undoing a "create"). Hash is
// the SHA-256 of the file after the operation, checked before undoing so a
// file edited since is never clobbered.
type Operation struct {
	Action string // "create" or "modify"
	Path   string
	Hash   string
	Backup string
}

// HistoryEntry is one run of the tool.
type HistoryEntry struct {
	Timestamp  int64
	Operations []Operation
}

type state struct {
	History      []HistoryEntry
	CurrentIndex int
}

// Manager owns the state file and the trash directory.
type Manager struct {
	statePath string
	trashDir  string
	state     *state
}

func findGitRoot() (string, error) {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(output)), nil
}

// New creates and loads a state manager rooted at the git toplevel, or the
// working directory outside a repository.
func New() (*Manager, error) {
	rootDir, err := findGitRoot()
	if err != nil {
		rootDir, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("could not get current working directory: %w", err)
		}
	}
	return NewAt(rootDir)
}

// NewAt creates a manager with its state directory under rootDir.
func NewAt(rootDir string) (*Manager, error) {
	stateDir := filepath.Join(rootDir, stateDirName)
	if err := os.MkdirAll(filepath.Join(stateDir, trashDirName), 0755); err != nil {
		return nil, fmt.Errorf("could not create state directory: %w", err)
	}
	m := &Manager{
		statePath: filepath.Join(stateDir, stateFileName),
		trashDir:  filepath.Join(stateDir, trashDirName),
	}
	if err := m.load(); err != nil {
		m.state = &state{CurrentIndex: -1}
	}
	return m, nil
}

// Backup copies path's current content into the trash dir and returns the
// copy's location. Called before overwriting a file.
func (m *Manager) Backup(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%d-%s", time.Now().UnixNano(), filepath.Base(path))
	backup := filepath.Join(m.trashDir, name)
	if err := os.WriteFile(backup, data, 0644); err != nil {
		return "", err
	}
	return backup, nil
}

// Record appends one run's operations to the history, discarding any redo
// tail beyond the current position.
func (m *Manager) Record(ops []Operation) {
	if len(ops) == 0 {
		return
	}
	if m.state.CurrentIndex < len(m.state.History)-1 {
		m.state.History = m.state.History[:m.state.CurrentIndex+1]
	}
	m.state.History = append(m.state.History, HistoryEntry{
		Timestamp:  time.Now().UTC().Unix(),
		Operations: ops,
	})
	m.state.CurrentIndex++
	m.save()
}

// Undo reverts the entry at the current position and moves the pointer
// back. Returns the reverted and failed paths.
func (m *Manager) Undo() (done, failed []string) {
	if m.state.CurrentIndex < 0 {
		return nil, nil
	}
	entry := &m.state.History[m.state.CurrentIndex]
	for i := range entry.Operations {
		op := &entry.Operations[i]
		if err := m.undoOp(op); err != nil {
			failed = append(failed, op.Path)
			continue
		}
		done = append(done, op.Path)
	}
	m.state.CurrentIndex--
	m.save()
	return done, failed
}

// Redo re-applies the entry after the current position.
func (m *Manager) Redo() (done, failed []string) {
	next := m.state.CurrentIndex + 1
	if next >= len(m.state.History) {
		return nil, nil
	}
	entry := &m.state.History[next]
	for i := range entry.Operations {
		op := &entry.Operations[i]
		if err := m.redoOp(op); err != nil {
			failed = append(failed, op.Path)
			continue
		}
		done = append(done, op.Path)
	}
	m.state.CurrentIndex = next
	m.save()
	return done, failed
}

// undoOp swaps a modified file with its backup, or deletes a created file
// after stashing its content. The swap makes redo the same operation again.
func (m *Manager) undoOp(op *Operation) error {
	if op.Hash != "" {
		current, err := fs.FileSHA256(op.Path)
		if err != nil || current != op.Hash {
			return fmt.Errorf("%s changed since it was written, refusing to undo", op.Path)
		}
	}
	switch op.Action {
	case "create":
		data, err := os.ReadFile(op.Path)
		if err != nil {
			return err
		}
		if op.Backup == "" {
			name := fmt.Sprintf("%d-%s", time.Now().UnixNano(), filepath.Base(op.Path))
			op.Backup = filepath.Join(m.trashDir, name)
		}
		if err := os.WriteFile(op.Backup, data, 0644); err != nil {
			return err
		}
		return os.Remove(op.Path)
	case "modify":
		return m.swap(op)
	}
	return fmt.Errorf("unknown action %q", op.Action)
}

func (m *Manager) redoOp(op *Operation) error {
	switch op.Action {
	case "create":
		data, err := os.ReadFile(op.Backup)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(op.Path), 0755); err != nil {
			return err
		}
		return os.WriteFile(op.Path, data, 0644)
	case "modify":
		return m.swap(op)
	}
	return fmt.Errorf("unknown action %q", op.Action)
}

// swap exchanges the file's content with its backup and refreshes the hash,
// so undo and redo are the same motion in opposite directions.
func (m *Manager) swap(op *Operation) error {
	current, err := os.ReadFile(op.Path)
	if err != nil {
		return err
	}
	previous, err := os.ReadFile(op.Backup)
	if err != nil {
		return err
	}
	if err := os.WriteFile(op.Path, previous, 0644); err != nil {
		return err
	}
	if err := os.WriteFile(op.Backup, current, 0644); err != nil {
		return err
	}
	op.Hash, _ = fs.FileSHA256(op.Path)
	return nil
}

// The state file is line oriented: blank-line separated blocks, the first
// holding the current index, then one block per history entry with its
// timestamp followed by four lines per operation.

func (m *Manager) load() error {
	data, err := os.ReadFile(m.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			m.state = &state{CurrentIndex: -1}
			return nil
		}
		return err
	}

	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	blocks := strings.Split(content, "\n\n")
	if len(blocks) == 0 || strings.TrimSpace(blocks[0]) == "" {
		m.state = &state{CurrentIndex: -1}
		return nil
	}

	index, err := strconv.Atoi(strings.TrimSpace(blocks[0]))
	if err != nil {
		return fmt.Errorf("invalid state file: bad current index: %w", err)
	}
	m.state = &state{CurrentIndex: index}

	for _, block := range blocks[1:] {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := strings.Split(block, "\n")
		ts, err := strconv.ParseInt(lines[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid state file: bad timestamp %q: %w", lines[0], err)
		}
		entry := HistoryEntry{Timestamp: ts}
		opLines := lines[1:]
		if len(opLines)%4 != 0 {
			return fmt.Errorf("invalid state file: incomplete operation record")
		}
		for i := 0; i < len(opLines); i += 4 {
			entry.Operations = append(entry.Operations, Operation{
				Action: opLines[i],
				Path:   opLines[i+1],
				Hash:   opLines[i+2],
				Backup: opLines[i+3],
			})
		}
		m.state.History = append(m.state.History, entry)
	}
	return nil
}

func (m *Manager) save() {
	blocks := []string{strconv.Itoa(m.state.CurrentIndex)}
	for _, entry := range m.state.History {
		var b strings.Builder
		fmt.Fprintf(&b, "%d", entry.Timestamp)
		for _, op := range entry.Operations {
			fmt.Fprintf(&b, "\n%s\n%s\n%s\n%s", op.Action, op.Path, op.Hash, op.Backup)
		}
		blocks = append(blocks, b.String())
	}
	content := strings.Join(blocks, "\n\n")
	// History is convenience, not correctness; the applied files are already
	// on disk, so a failed save is not fatal.
	_ = os.WriteFile(m.statePath, []byte(content), 0644)
}
