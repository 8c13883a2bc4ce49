package tagstream

import (
	"github.com/sokinpui/tagstream/internal/fs"
	"github.com/sokinpui/tagstream/internal/preview"
	"github.com/sokinpui/tagstream/internal/stream"
	"github.com/sokinpui/tagstream/model"
)

// Sink receives the rendering side effects of a streamed response: markdown
// as it is produced, and action affordances the host may surface.
type Sink interface {
	AppendMarkdown(text string)
	OfferButton(label, action string, args ...string)
}

// Session parses one assistant response for a host that receives the stream
// itself, such as an editor plugin holding a model connection. Feed chunks
// with Process, then call Flush once. A Session is single use.
type Session struct {
	proc     *stream.Processor
	previews *preview.Registry
}

// NewSession creates a Session that resolves diff-format files against
// lookupDirs (default: the current working directory).
func NewSession(sink Sink, lookupDirs []string) *Session {
	resolver := fs.NewPathResolver(lookupDirs)
	previews := preview.NewRegistry()
	return &Session{
		proc: stream.New(stream.Config{
			Sink:     sink,
			ReadFile: resolver.Read,
			Previews: previews,
		}),
		previews: previews,
	}
}

// Process feeds one chunk of raw response text. Chunk boundaries may fall
// anywhere, including inside a tag.
func (s *Session) Process(chunk string) error {
	return s.proc.Process(chunk)
}

// Flush signals end of input and waits for diff resolution to finish.
func (s *Session) Flush() error {
	err := s.proc.Flush()
	s.proc.Wait()
	return err
}

// HasFileSet reports whether the response carried a fileset, as opposed to
// plain prose.
func (s *Session) HasFileSet() bool {
	return s.proc.HasFileSet()
}

// FileSet returns the resolved complete-format fileset, or nil. Valid after
// Flush.
func (s *Session) FileSet() *model.FileSet {
	return s.proc.Result()
}

// DiffErrors returns per-file diff resolution failures. Valid after Flush.
func (s *Session) DiffErrors() []model.DiffError {
	return s.proc.DiffErrors()
}

// Preview returns the resolved content of a file from this response, or nil.
func (s *Session) Preview(name string) *model.FileContent {
	return s.previews.Get(s.proc.Prefix(), name)
}
