package markdown_test

import (
	"strings"
	"testing"

	"github.com/sokinpui/tagstream/internal/markdown"
	"github.com/sokinpui/tagstream/model"
)

func TestExtractBlocks(t *testing.T) {
	source := "Here is `main.go`:\n\n```go\npackage main\n```\n\nprose\n\n```\nno lang\n```\n"
	blocks, err := markdown.ExtractBlocks([]byte(source))
	if err != nil {
		t.Fatalf("ExtractBlocks error: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(blocks))
	}
	if blocks[0].Lang != "go" {
		t.Errorf("lang = %q", blocks[0].Lang)
	}
	if blocks[0].Content != "package main\n" {
		t.Errorf("content = %q", blocks[0].Content)
	}
	if !strings.Contains(blocks[0].Hint, "main.go") {
		t.Errorf("hint = %q", blocks[0].Hint)
	}
	if blocks[1].Lang != "" || blocks[1].Hint != "prose" {
		t.Errorf("second block = %+v", blocks[1])
	}
}

func TestFileSets(t *testing.T) {
	t.Run("hinted code block", func(t *testing.T) {
		source := "Update `src/app.py`:\n\n```python\nprint(1)\n```\n"
		complete, diff, err := markdown.FileSets(source)
		if err != nil {
			t.Fatal(err)
		}
		if diff != nil {
			t.Errorf("unexpected diff set: %+v", diff)
		}
		if complete == nil || len(complete.Files) != 1 {
			t.Fatalf("complete = %+v", complete)
		}
		f := complete.Files[0]
		if f.Name != "src/app.py" || f.Content != "print(1)\n" {
			t.Errorf("file = %+v", f)
		}
		if complete.Format != model.FormatComplete {
			t.Errorf("format = %q", complete.Format)
		}
	})

	t.Run("diff block with target header", func(t *testing.T) {
		source := "```diff\n--- a/x.go\n+++ b/x.go\n@@\n-old\n+new\n```\n"
		complete, diff, err := markdown.FileSets(source)
		if err != nil {
			t.Fatal(err)
		}
		if complete != nil {
			t.Errorf("unexpected complete set: %+v", complete)
		}
		if diff == nil || len(diff.Files) != 1 {
			t.Fatalf("diff = %+v", diff)
		}
		if diff.Files[0].Name != "x.go" {
			t.Errorf("name = %q", diff.Files[0].Name)
		}
		if diff.Format != model.FormatDiff {
			t.Errorf("format = %q", diff.Format)
		}
	})

	t.Run("hint with spaces is not a path", func(t *testing.T) {
		source := "Run `go run main.go` first:\n\n```sh\nmake\n```\n"
		complete, diff, err := markdown.FileSets(source)
		if err != nil {
			t.Fatal(err)
		}
		if complete != nil || diff != nil {
			t.Errorf("command hint taken for a path: %+v %+v", complete, diff)
		}
	})

	t.Run("diff block without target is skipped", func(t *testing.T) {
		source := "```diff\n@@\n-old\n+new\n```\n"
		complete, diff, err := markdown.FileSets(source)
		if err != nil {
			t.Fatal(err)
		}
		if complete != nil || diff != nil {
			t.Errorf("anonymous diff produced a set: %+v %+v", complete, diff)
		}
	})
}
