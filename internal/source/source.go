// Package source delivers the raw response text, either streamed from a
// pipe or taken whole from the clipboard.
package source

import (
	"fmt"
	"io"
	"os"

	"github.com/atotto/clipboard"
)

// readChunkSize is deliberately small so piped input exercises the
// incremental parsing path the way a live token stream would.
const readChunkSize = 4096

// Provider yields response text as a sequence of chunks.
type Provider struct{}

// New creates a Provider.
func New() *Provider {
	return &Provider{}
}

// Stream reads the source and calls emit for each chunk in order. Piped
// stdin is read incrementally; clipboard content arrives as one chunk.
// Returns the full concatenated input.
func (p *Provider) Stream(emit func(chunk string) error) (string, error) {
	stat, _ := os.Stdin.Stat()
	if (stat.Mode() & os.ModeCharDevice) == 0 {
		return streamReader(os.Stdin, emit)
	}

	content, err := clipboard.ReadAll()
	if err != nil {
		return "", fmt.Errorf("failed to read from clipboard: %w", err)
	}
	if content == "" {
		return "", nil
	}
	if err := emit(content); err != nil {
		return "", err
	}
	return content, nil
}

func streamReader(r io.Reader, emit func(chunk string) error) (string, error) {
	var all []byte
	buf := make([]byte, readChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := string(buf[:n])
			all = append(all, chunk...)
			if emitErr := emit(chunk); emitErr != nil {
				return string(all), emitErr
			}
		}
		if err == io.EOF {
			return string(all), nil
		}
		if err != nil {
			return string(all), fmt.Errorf("failed to read from stdin: %w", err)
		}
	}
}
