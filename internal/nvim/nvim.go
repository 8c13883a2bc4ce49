// Package nvim pushes applied changes into Neovim buffers so an attached
// editor picks them up without a reload prompt.
package nvim

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/neovim/go-client/nvim"

	"github.com/sokinpui/tagstream/internal/ui"
	"github.com/sokinpui/tagstream/internal/version"
	"github.com/sokinpui/tagstream/model"
)

// minVersion is the oldest Neovim release the batch API calls below are
// known to work against.
const minVersion = "0.8.0"

// Manager handles the connection to a Neovim instance.
type Manager struct {
	nvim          *nvim.Nvim
	isSelfStarted bool
	cmd           *exec.Cmd
	socketPath    string
}

// New connects to the instance named by NVIM_LISTEN_ADDRESS, or starts a
// temporary headless one.
func New() (*Manager, error) {
	if addr := os.Getenv("NVIM_LISTEN_ADDRESS"); addr != "" {
		v, err := nvim.Dial(addr)
		if err == nil {
			m := &Manager{nvim: v}
			m.checkVersion()
			return m, nil
		}
	}

	tmpDir, err := os.MkdirTemp("", "tagstream-nvim-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir for nvim: %w", err)
	}
	socketPath := filepath.Join(tmpDir, "nvim.sock")

	cmd := exec.Command("nvim", "--headless", "--clean", "--listen", socketPath)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start headless nvim: %w. Is 'nvim' in your PATH?", err)
	}

	for i := 0; i < 20; i++ {
		if _, err := os.Stat(socketPath); err == nil {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	v, err := nvim.Dial(socketPath)
	if err != nil {
		cmd.Process.Kill()
		return nil, fmt.Errorf("failed to connect to headless nvim: %w", err)
	}

	m := &Manager{
		nvim:          v,
		isSelfStarted: true,
		cmd:           cmd,
		socketPath:    socketPath,
	}
	m.checkVersion()
	return m, nil
}

// checkVersion warns when the attached Neovim predates the supported
// minimum. Non-fatal; old instances mostly work.
func (m *Manager) checkVersion() {
	var out string
	if err := m.nvim.Eval(`matchstr(execute("version"), 'NVIM v\zs[^\n]*')`, &out); err != nil {
		return
	}
	out = strings.TrimSpace(out)
	if out != "" && !version.GE(out, minVersion) {
		ui.Warning("Neovim %s is older than the supported minimum %s.", out, minVersion)
	}
}

// Close disconnects and tears down a self-started instance.
func (m *Manager) Close() {
	if m.nvim != nil {
		m.nvim.Close()
	}
	if m.isSelfStarted && m.cmd != nil && m.cmd.Process != nil {
		if err := m.cmd.Process.Kill(); err == nil {
			m.cmd.Wait()
			os.RemoveAll(filepath.Dir(m.socketPath))
		}
	}
}

// ApplyChanges loads each change into a buffer, returning updated and
// failed paths.
func (m *Manager) ApplyChanges(changes []model.FileChange) (updated, failed []string) {
	for _, change := range changes {
		if m.updateBuffer(change.Path, change.Content) {
			updated = append(updated, change.Path)
		} else {
			failed = append(failed, change.Path)
		}
	}
	return updated, failed
}

func (m *Manager) updateBuffer(path string, content []string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}

	byteContent := make([][]byte, len(content))
	for i, s := range content {
		byteContent[i] = []byte(s)
	}

	b := m.nvim.NewBatch()
	b.Command(fmt.Sprintf("edit %s", absPath))
	b.SetBufferLines(0, 0, -1, true, byteContent)
	return b.Execute() == nil
}

// SaveAllBuffers writes all modified buffers to disk.
func (m *Manager) SaveAllBuffers() error {
	return m.nvim.Command("wa!")
}
