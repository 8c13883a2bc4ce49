// Package patch parses and applies a line-oriented contextual diff format
// that carries no line numbers. A diff is a sequence of chunks, each opened
// by a literal "@@ ... @@" line; within a chunk every line starts with a
// directive: '-' (old only), '+' (new only), ' ' (context, both sides). A
// fully blank line counts as a blank context line. Chunks locate themselves
// by searching the original for their old lines, in order.
package patch

import (
	"strings"

	"github.com/sokinpui/tagstream/internal/render"
	"github.com/sokinpui/tagstream/model"
)

// Chunk is one "@@"-delimited region. Old is the search pattern (context
// plus removed lines); New is its replacement (context plus added lines).
type Chunk struct {
	Old []string
	New []string
}

// Parse splits diff text into chunks. An optional leading "--- name" /
// "+++ name" header pair is tolerated and discarded. A chunk with no lines
// on one side is valid (pure insertion or deletion).
func Parse(text string) ([]Chunk, *model.DiffError) {
	lines := strings.Split(text, "\n")

	// Drop a trailing empty element left by a final newline so it does not
	// read as a blank context line.
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	if len(lines) >= 2 && strings.HasPrefix(lines[0], "--- ") && strings.HasPrefix(lines[1], "+++ ") {
		lines = lines[2:]
	}

	var chunks []Chunk
	current := -1
	for _, line := range lines {
		if strings.HasPrefix(line, "@@") {
			chunks = append(chunks, Chunk{})
			current = len(chunks) - 1
			continue
		}
		if current < 0 {
			return nil, &model.DiffError{
				Message: "diff content before the first @@ chunk header",
				Pattern: line,
			}
		}
		c := &chunks[current]
		switch {
		case line == "":
			c.Old = append(c.Old, "")
			c.New = append(c.New, "")
		case line[0] == '-':
			c.Old = append(c.Old, line[1:])
		case line[0] == '+':
			c.New = append(c.New, line[1:])
		case line[0] == ' ':
			c.Old = append(c.Old, line[1:])
			c.New = append(c.New, line[1:])
		default:
			return nil, &model.DiffError{
				Message: "unknown diff line directive",
				Pattern: line,
			}
		}
	}
	return chunks, nil
}

// Apply resolves diffText against original and returns the patched text.
// Chunks are applied in order: each one searches forward from the position
// the previous chunk finished at, and the first window of original lines
// matching its old pattern wins. If the pattern also occurs later, the first
// occurrence is still used; that ambiguity is a documented limitation of the
// format itself, which carries no positional hints. Line comparison ignores
// trailing whitespace, since generated diffs routinely carry incidental
// trailing blanks.
func Apply(original, diffText string) (string, *model.DiffError) {
	if diffText == "" {
		return original, nil
	}
	chunks, err := Parse(diffText)
	if err != nil {
		return "", err
	}

	lines := strings.Split(original, "\n")
	var out []string
	current := 0
	for _, c := range chunks {
		if len(c.Old) == 0 {
			// No pattern to anchor on; nothing to search or replace.
			continue
		}
		start, found := find(lines, c.Old, current)
		if !found {
			return "", &model.DiffError{
				Message: "diff pattern not found in original",
				Pattern: strings.Join(c.Old, "\n"),
			}
		}
		out = append(out, lines[current:start]...)
		out = append(out, c.New...)
		current = start + len(c.Old)
	}
	out = append(out, lines[current:]...)
	return strings.Join(out, "\n"), nil
}

// find scans forward from position from for the first window of consecutive
// lines matching pattern, comparing with trailing whitespace stripped.
func find(lines, pattern []string, from int) (int, bool) {
	limit := len(lines) - len(pattern)
	for i := from; i <= limit; i++ {
		matched := true
		for j, p := range pattern {
			if !lineEqual(lines[i+j], p) {
				matched = false
				break
			}
		}
		if matched {
			return i, true
		}
	}
	return 0, false
}

func lineEqual(a, b string) bool {
	return strings.TrimRight(a, " \t\r") == strings.TrimRight(b, " \t\r")
}

// ApplyFileSet resolves every file of a diff-format FileSet against its
// on-disk original, read through the given reader. It is best effort: a
// failing file records a DiffError and does not abort its siblings. Binary
// files cannot be diffed and always record an error. The returned FileSet is
// complete-format and holds the successes only.
func ApplyFileSet(set *model.FileSet, read func(name string) ([]byte, error)) (*model.FileSet, []model.DiffError) {
	resolved := &model.FileSet{Format: model.FormatComplete}
	var errs []model.DiffError

	for _, file := range set.Files {
		if file.Type == model.FileTypeBinary {
			errs = append(errs, model.DiffError{
				File:    file.Name,
				Message: "cannot apply a diff to a binary file",
			})
			continue
		}
		original, err := read(file.Name)
		if err != nil {
			errs = append(errs, model.DiffError{
				File:    file.Name,
				Message: "read original: " + err.Error(),
			})
			continue
		}
		if render.IsBinary(original) {
			errs = append(errs, model.DiffError{
				File:    file.Name,
				Message: "original file is binary",
			})
			continue
		}
		patched, derr := Apply(string(original), file.Content)
		if derr != nil {
			derr.File = file.Name
			errs = append(errs, *derr)
			continue
		}
		resolved.Files = append(resolved.Files, &model.FileContent{
			Name:    file.Name,
			Content: patched,
			Type:    model.FileTypeText,
		})
	}
	return resolved, errs
}
