// Package render defines the output sinks the response processor writes to,
// plus small helpers for fence language inference and binary sniffing.
package render

import (
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// Sink receives the rendering side effects of a streamed response.
// AppendMarkdown is called with raw markdown as it is produced; OfferButton
// announces an affordance the host may surface ("view diff", "apply").
type Sink interface {
	AppendMarkdown(text string)
	OfferButton(label, action string, args ...string)
}

// Button is a recorded OfferButton call.
type Button struct {
	Label  string
	Action string
	Args   []string
}

// WriterSink streams markdown verbatim to an io.Writer and drops buttons;
// a plain terminal has keybindings instead.
type WriterSink struct {
	W io.Writer
}

func (s *WriterSink) AppendMarkdown(text string) {
	io.WriteString(s.W, text)
}

func (s *WriterSink) OfferButton(string, string, ...string) {}

// Collector accumulates everything for later display. It is safe for
// concurrent use.
type Collector struct {
	mu      sync.Mutex
	md      strings.Builder
	buttons []Button
}

func (c *Collector) AppendMarkdown(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.md.WriteString(text)
}

func (c *Collector) OfferButton(label, action string, args ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buttons = append(c.buttons, Button{Label: label, Action: action, Args: args})
}

// Markdown returns the markdown collected so far.
func (c *Collector) Markdown() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.md.String()
}

// Buttons returns the affordances offered so far.
func (c *Collector) Buttons() []Button {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Button, len(c.buttons))
	copy(out, c.buttons)
	return out
}

// Multi fans AppendMarkdown and OfferButton out to several sinks.
type Multi []Sink

func (m Multi) AppendMarkdown(text string) {
	for _, s := range m {
		s.AppendMarkdown(text)
	}
}

func (m Multi) OfferButton(label, action string, args ...string) {
	for _, s := range m {
		s.OfferButton(label, action, args...)
	}
}

// Pretty renders markdown for the terminal with glamour. On renderer failure
// the raw markdown comes back unchanged; pretty output is cosmetic.
func Pretty(markdown string, width int) string {
	if width <= 0 {
		width = 100
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return markdown
	}
	out, err := r.Render(markdown)
	if err != nil {
		return markdown
	}
	return out
}

var languages = map[string]string{
	".c":    "c",
	".cpp":  "cpp",
	".css":  "css",
	".go":   "go",
	".h":    "c",
	".html": "html",
	".java": "java",
	".js":   "js",
	".json": "json",
	".jsx":  "jsx",
	".lua":  "lua",
	".md":   "markdown",
	".py":   "python",
	".rb":   "ruby",
	".rs":   "rust",
	".sh":   "sh",
	".sql":  "sql",
	".toml": "toml",
	".ts":   "ts",
	".tsx":  "tsx",
	".yaml": "yaml",
	".yml":  "yaml",
}

// InferLanguage maps a file name to a markdown fence language tag, falling
// back to "text".
func InferLanguage(name string) string {
	if lang, ok := languages[strings.ToLower(filepath.Ext(name))]; ok {
		return lang
	}
	return "text"
}

// IsBinary reports whether data looks like binary content, using the git
// heuristic of a NUL byte in the first 8000 bytes.
func IsBinary(data []byte) bool {
	limit := len(data)
	if limit > 8000 {
		limit = 8000
	}
	for _, b := range data[:limit] {
		if b == 0 {
			return true
		}
	}
	return false
}
