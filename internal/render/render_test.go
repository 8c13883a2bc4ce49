package render_test

import (
	"bytes"
	"testing"

	"github.com/sokinpui/tagstream/internal/render"
)

func TestCollector(t *testing.T) {
	c := &render.Collector{}
	c.AppendMarkdown("a")
	c.AppendMarkdown("b")
	c.OfferButton("Apply changes", "apply", "response-1")

	if got := c.Markdown(); got != "ab" {
		t.Errorf("Markdown = %q", got)
	}
	buttons := c.Buttons()
	if len(buttons) != 1 {
		t.Fatalf("Buttons = %+v", buttons)
	}
	b := buttons[0]
	if b.Label != "Apply changes" || b.Action != "apply" || len(b.Args) != 1 || b.Args[0] != "response-1" {
		t.Errorf("button = %+v", b)
	}
}

func TestMultiFansOut(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	m := render.Multi{&render.WriterSink{W: &buf1}, &render.WriterSink{W: &buf2}}
	m.AppendMarkdown("hello")
	if buf1.String() != "hello" || buf2.String() != "hello" {
		t.Errorf("fan out = %q, %q", buf1.String(), buf2.String())
	}
}

func TestInferLanguage(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"main.go", "go"},
		{"src/App.TSX", "tsx"},
		{"script.py", "python"},
		{"Makefile", "text"},
		{"notes", "text"},
	}
	for _, tt := range tests {
		if got := render.InferLanguage(tt.name); got != tt.want {
			t.Errorf("InferLanguage(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestIsBinary(t *testing.T) {
	if render.IsBinary([]byte("plain text\nwith lines")) {
		t.Error("text flagged as binary")
	}
	if !render.IsBinary([]byte("head\x00tail")) {
		t.Error("NUL byte not flagged")
	}
	// A NUL beyond the sniff window does not count.
	data := append(bytes.Repeat([]byte{'a'}, 9000), 0)
	if render.IsBinary(data) {
		t.Error("NUL past the sniff window flagged")
	}
}
