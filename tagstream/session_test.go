package tagstream_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sokinpui/tagstream/tagstream"
)

// recordingSink captures the sink callbacks a host would receive.
type recordingSink struct {
	markdown strings.Builder
	buttons  []string
}

func (s *recordingSink) AppendMarkdown(text string) {
	s.markdown.WriteString(text)
}

func (s *recordingSink) OfferButton(label, action string, args ...string) {
	s.buttons = append(s.buttons, action)
}

func TestSession(t *testing.T) {
	tempDir := t.TempDir()
	original := filepath.Join(tempDir, "app.py")
	if err := os.WriteFile(original, []byte("print(1)\nprint(2)"), 0644); err != nil {
		t.Fatalf("Failed to write original file: %v", err)
	}

	t.Run("complete format", func(t *testing.T) {
		sink := &recordingSink{}
		session := tagstream.NewSession(sink, []string{tempDir})

		response := "Sure, here you go.\n" +
			"<FILESET FORMAT=\"complete\">\n" +
			"<FILE NAME=\"app.py\">\n" +
			"print(42)\n" +
			"</FILE>\n" +
			"</FILESET>\n"
		// Feed in small pieces, the way a model streams.
		for i := 0; i < len(response); i += 7 {
			end := i + 7
			if end > len(response) {
				end = len(response)
			}
			if err := session.Process(response[i:end]); err != nil {
				t.Fatalf("Process failed: %v", err)
			}
		}
		if err := session.Flush(); err != nil {
			t.Fatalf("Flush failed: %v", err)
		}

		if !session.HasFileSet() {
			t.Fatal("HasFileSet = false")
		}
		set := session.FileSet()
		if set == nil || len(set.Files) != 1 {
			t.Fatalf("FileSet = %+v", set)
		}
		if set.Files[0].Content != "print(42)\n" {
			t.Errorf("content = %q", set.Files[0].Content)
		}
		if f := session.Preview("app.py"); f == nil || f.Content != "print(42)\n" {
			t.Errorf("Preview = %+v", f)
		}
		if !strings.Contains(sink.markdown.String(), "Sure, here you go.") {
			t.Errorf("prose did not reach the sink: %q", sink.markdown.String())
		}
		if len(sink.buttons) != 2 {
			t.Errorf("buttons = %v", sink.buttons)
		}
	})

	t.Run("diff format resolves against disk", func(t *testing.T) {
		sink := &recordingSink{}
		session := tagstream.NewSession(sink, []string{tempDir})

		response := "<FILESET FORMAT=\"diff\">\n" +
			"<FILE NAME=\"app.py\">\n" +
			"<DIFFCHUNK>\n" +
			"<DIFFOLD>\nprint(1)\n</DIFFOLD>\n" +
			"<DIFFNEW>\nprint(\"one\")\n</DIFFNEW>\n" +
			"</DIFFCHUNK>\n" +
			"</FILE>\n" +
			"</FILESET>\n"
		if err := session.Process(response); err != nil {
			t.Fatalf("Process failed: %v", err)
		}
		if err := session.Flush(); err != nil {
			t.Fatalf("Flush failed: %v", err)
		}

		if errs := session.DiffErrors(); len(errs) != 0 {
			t.Fatalf("DiffErrors = %+v", errs)
		}
		set := session.FileSet()
		if set == nil || len(set.Files) != 1 {
			t.Fatalf("FileSet = %+v", set)
		}
		if got := set.Files[0].Content; got != "print(\"one\")\nprint(2)" {
			t.Errorf("resolved content = %q", got)
		}
	})

	t.Run("misplaced tag is a hard error", func(t *testing.T) {
		session := tagstream.NewSession(&recordingSink{}, []string{tempDir})
		if err := session.Process("<FILE NAME=\"x\">"); err == nil {
			t.Fatal("expected a protocol error")
		}
	})
}
