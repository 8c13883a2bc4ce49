package model

import "fmt"

// Format describes how the files in a FileSet are encoded.
type Format string

const (
	// FormatComplete means each file carries its full new content.
	FormatComplete Format = "complete"
	// FormatDiff means each file carries contextual diff chunks that must be
	// resolved against the on-disk original.
	FormatDiff Format = "diff"
)

// ParseFormat validates a FORMAT attribute value. An empty value defaults to
// FormatComplete.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatComplete:
		return FormatComplete, nil
	case FormatDiff:
		return FormatDiff, nil
	}
	return "", fmt.Errorf("invalid fileset format %q", s)
}

// FileType distinguishes text files from binary ones.
type FileType string

const (
	FileTypeText   FileType = "text"
	FileTypeBinary FileType = "binary"
)

// FileContent is a single file carried by a FileSet. Name is a relative,
// slash-separated path; callers reject names that escape the target root.
type FileContent struct {
	Name    string
	Content string
	Type    FileType
}

// FileSet is an ordered collection of files produced by one response.
type FileSet struct {
	Format Format
	Files  []*FileContent
}

// Add appends a new empty text file and returns it.
func (s *FileSet) Add(name string) *FileContent {
	f := &FileContent{Name: name, Type: FileTypeText}
	s.Files = append(s.Files, f)
	return f
}

// Last returns the most recently added file, or nil.
func (s *FileSet) Last() *FileContent {
	if len(s.Files) == 0 {
		return nil
	}
	return s.Files[len(s.Files)-1]
}

// DiffError reports a per-file failure while parsing or applying a diff.
// It travels as a value through batch results rather than aborting siblings.
type DiffError struct {
	File    string
	Pattern string
	Message string
}

func (e *DiffError) Error() string {
	msg := e.Message
	if e.File != "" {
		msg = fmt.Sprintf("%s: %s", e.File, msg)
	}
	if e.Pattern != "" {
		msg = fmt.Sprintf("%s (pattern: %.80q)", msg, e.Pattern)
	}
	return msg
}

// FileChange represents a single planned change to a file.
type FileChange struct {
	Path    string
	Content []string
	Source  string // "fileset", "diff", "markdown" or "library"
}

// Summary holds the results of an operation for display.
type Summary struct {
	Created    []string
	Modified   []string
	Failed     []string
	DiffErrors []DiffError
	Tokens     int
	Message    string
}
