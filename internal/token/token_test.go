package token_test

import (
	"reflect"
	"testing"

	"github.com/sokinpui/tagstream/internal/token"
)

func newScanner() *token.Scanner {
	return token.New("FILESET", "FILE", "DIFFCHUNK", "DIFFOLD", "DIFFNEW")
}

// collect merges adjacent text events so tests are insensitive to how the
// scanner batches plain text across chunks.
func collect(s *token.Scanner, chunks ...string) []token.Event {
	var out []token.Event
	for _, chunk := range chunks {
		for _, ev := range s.Process(chunk) {
			if ev.Type == token.Text && len(out) > 0 && out[len(out)-1].Type == token.Text {
				out[len(out)-1].Text += ev.Text
				continue
			}
			out = append(out, ev)
		}
	}
	return out
}

func text(s string) token.Event { return token.Event{Type: token.Text, Text: s} }

func openTag(name string, attrs map[string]string) token.Event {
	return token.Event{Type: token.Tag, Name: name, Attrs: attrs}
}

func closeTag(name string) token.Event {
	return token.Event{Type: token.Tag, Name: name, Close: true}
}

func TestScanner(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []token.Event
	}{
		{
			name:  "plain text",
			input: "hello world",
			want:  []token.Event{text("hello world")},
		},
		{
			name:  "bare open tag",
			input: "<FILE>",
			want:  []token.Event{openTag("FILE", nil)},
		},
		{
			name:  "tag between text",
			input: "a<FILE>b",
			want:  []token.Event{text("a"), openTag("FILE", nil), text("b")},
		},
		{
			name:  "close tag",
			input: "</FILE>",
			want:  []token.Event{closeTag("FILE")},
		},
		{
			name:  "close tag with trailing space",
			input: "</FILE >",
			want:  []token.Event{closeTag("FILE")},
		},
		{
			name:  "longer name shadows prefix",
			input: "<FILESET>",
			want:  []token.Event{openTag("FILESET", nil)},
		},
		{
			name:  "double quoted attribute",
			input: `<FILESET FORMAT="diff">`,
			want:  []token.Event{openTag("FILESET", map[string]string{"FORMAT": "diff"})},
		},
		{
			name:  "single quoted attribute",
			input: `<FILE NAME='a.py'>`,
			want:  []token.Event{openTag("FILE", map[string]string{"NAME": "a.py"})},
		},
		{
			name:  "multiple attributes",
			input: `<FILE NAME="a.py" MODE="new">`,
			want:  []token.Event{openTag("FILE", map[string]string{"NAME": "a.py", "MODE": "new"})},
		},
		{
			name:  "spaces around equals",
			input: `<FILE NAME = "a.py">`,
			want:  []token.Event{openTag("FILE", map[string]string{"NAME": "a.py"})},
		},
		{
			name:  "duplicate attribute overwrites",
			input: `<FILE NAME="a" NAME="b">`,
			want:  []token.Event{openTag("FILE", map[string]string{"NAME": "b"})},
		},
		{
			name:  "unknown name is text",
			input: "<FILESETX>",
			want:  []token.Event{text("<FILESETX>")},
		},
		{
			name:  "prefix of longer name is text",
			input: "<FIL>",
			want:  []token.Event{text("<FIL>")},
		},
		{
			name:  "space after bracket is text",
			input: "< FILE>",
			want:  []token.Event{text("< FILE>")},
		},
		{
			name:  "unquoted attribute value is text",
			input: "<FILE FOO=1>",
			want:  []token.Event{text("<FILE FOO=1>")},
		},
		{
			name:  "attribute on close tag is text",
			input: `</FILE NAME="a">`,
			want:  []token.Event{text(`</FILE NAME="a">`)},
		},
		{
			name:  "bracket inside quoted value is text",
			input: `<FILE NAME="a>b">`,
			want:  []token.Event{text(`<FILE NAME="a>b">`)},
		},
		{
			name:  "double bracket restarts tag",
			input: "<<FILE>x",
			want:  []token.Event{text("<"), openTag("FILE", nil), text("x")},
		},
		{
			name:  "lone bracket",
			input: "a < b",
			want:  []token.Event{text("a < b")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := collect(newScanner(), tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Process(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestScannerChunkBoundaries(t *testing.T) {
	input := "intro\n<FILESET FORMAT=\"diff\">\n<FILE NAME=\"a.py\">\nbody <not a tag>\n</FILE>\n</FILESET>\noutro"
	want := collect(newScanner(), input)

	for split := 1; split < len(input); split++ {
		got := collect(newScanner(), input[:split], input[split:])
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("split at %d: got %+v, want %+v", split, got, want)
		}
	}
}

func TestScannerTrailingTextAlwaysEmitted(t *testing.T) {
	s := newScanner()
	events := s.Process("stream me")
	if len(events) != 1 || events[0].Text != "stream me" {
		t.Fatalf("trailing text not emitted immediately: %+v", events)
	}
	// A partial tag is held back across the chunk boundary.
	events = s.Process("now <FI")
	if len(events) != 1 || events[0].Text != "now " {
		t.Fatalf("partial tag leaked: %+v", events)
	}
	events = s.Process("LE>")
	if len(events) != 1 || events[0].Type != token.Tag || events[0].Name != "FILE" {
		t.Fatalf("spanning tag not resolved: %+v", events)
	}
}

func TestScannerFlushDropsPartialTag(t *testing.T) {
	s := newScanner()
	if events := s.Process("<FIL"); len(events) != 0 {
		t.Fatalf("expected no events for a partial tag, got %+v", events)
	}
	s.Flush()
	events := s.Process("E>")
	if len(events) != 1 || events[0].Type != token.Text || events[0].Text != "E>" {
		t.Fatalf("expected plain text after flush, got %+v", events)
	}
}

func TestScannerNewPanicsOnEmptyName(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for empty tag name")
		}
	}()
	token.New("FILE", "")
}
