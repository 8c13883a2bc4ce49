// Package markdown extracts filesets from plain markdown responses. It is
// the fallback input mode for assistants that answer with fenced code blocks
// and backticked path hints instead of the tag protocol.
package markdown

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/sokinpui/tagstream/model"
)

// CodeBlock is a fenced code block with its surrounding context.
type CodeBlock struct {
	// Hint is the paragraph immediately preceding the block, used as a
	// file-path carrier.
	Hint string
	// Lang is the fence language identifier (e.g. "go", "diff").
	Lang string
	// Content is the raw text inside the block.
	Content string
}

var (
	pathInHint = regexp.MustCompile("`([^`\n]+)`")
	pathInDiff = regexp.MustCompile(`(?m)^\+\+\+ (?:b/)?(.+?)(\s|$)`)
)

// ExtractBlocks walks the markdown AST and returns all fenced code blocks
// with their preceding-paragraph hints.
func ExtractBlocks(source []byte) ([]CodeBlock, error) {
	var blocks []CodeBlock
	root := goldmark.DefaultParser().Parse(text.NewReader(source))

	walker := func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fenced, ok := node.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}

		var block CodeBlock
		if fenced.Info != nil {
			block.Lang = string(fenced.Info.Text(source))
		}
		var content bytes.Buffer
		lines := fenced.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			content.Write(line.Value(source))
		}
		block.Content = content.String()

		if prev := fenced.PreviousSibling(); prev != nil {
			if p, ok := prev.(*ast.Paragraph); ok {
				// Raw source lines, not p.Text: inline parsing strips the
				// backticks the path hint is recognized by.
				var hint bytes.Buffer
				pl := p.Lines()
				for i := 0; i < pl.Len(); i++ {
					seg := pl.At(i)
					hint.Write(seg.Value(source))
				}
				block.Hint = strings.TrimSpace(hint.String())
			}
		}

		blocks = append(blocks, block)
		return ast.WalkSkipChildren, nil
	}

	if err := ast.Walk(root, walker); err != nil {
		return nil, err
	}
	return blocks, nil
}

// FileSets turns a complete markdown response into filesets: hinted code
// blocks become one complete-format set, and ```diff blocks whose text names
// a target file become one diff-format set. Either may be nil.
func FileSets(content string) (complete, diff *model.FileSet, err error) {
	blocks, err := ExtractBlocks([]byte(content))
	if err != nil {
		return nil, nil, err
	}

	for _, block := range blocks {
		if block.Lang == "diff" {
			name := pathFromDiff(block.Content)
			if name == "" {
				continue
			}
			if diff == nil {
				diff = &model.FileSet{Format: model.FormatDiff}
			}
			f := diff.Add(name)
			f.Content = strings.TrimRight(block.Content, "\n")
			continue
		}

		name := pathFromHint(block.Hint)
		if name == "" {
			continue
		}
		if complete == nil {
			complete = &model.FileSet{Format: model.FormatComplete}
		}
		f := complete.Add(name)
		f.Content = block.Content
	}
	return complete, diff, nil
}

// pathFromHint pulls a backticked path out of a hint line. Paths with spaces
// are rejected so a command like `go run main.go` is not taken for one.
func pathFromHint(hint string) string {
	match := pathInHint.FindStringSubmatch(hint)
	if len(match) < 2 {
		return ""
	}
	path := strings.TrimSpace(match[1])
	if strings.Contains(path, " ") {
		return ""
	}
	return path
}

// pathFromDiff finds the target file named by a "+++ b/..." line.
func pathFromDiff(content string) string {
	match := pathInDiff.FindStringSubmatch(content)
	if len(match) < 2 {
		return ""
	}
	return strings.TrimSpace(match[1])
}
