// Package token implements an incremental scanner for XML-like tags embedded
// in free-form text.
//
// The scanner recognizes a fixed vocabulary of tag names. Input arrives as
// arbitrarily split chunks; a tag spanning a chunk boundary is buffered and
// resolved when the rest of it arrives. Anything that fails to scan as a
// known tag is replayed as plain text, so the concatenation of all emitted
// text plus the literal source of all emitted tags reproduces the input
// exactly. The scanner never fails; malformed input only ever degrades to
// text.
package token

import "strings"

// EventType discriminates Event variants.
type EventType int

const (
	// Text is a run of plain content.
	Text EventType = iota
	// Tag is a fully recognized open or close tag.
	Tag
)

// Event is one tokenizer output. Text events use the Text field; Tag events
// use Name, Close and (open tags only) Attrs.
type Event struct {
	Type  EventType
	Text  string
	Name  string
	Close bool
	Attrs map[string]string
}

type scanState int

const (
	stateText scanState = iota
	stateTagStart     // consumed '<', maybe '/'
	stateTagName      // narrowing candidate tag names
	stateAfterName    // whitespace after an accepted name
	stateAttrName     // in an attribute name
	stateAttrNameEnd  // whitespace after an attribute name
	stateAttrEqual    // consumed '=', awaiting opening quote
	stateAttrValueDQ  // inside a double-quoted value
	stateAttrValueSQ  // inside a single-quoted value
	stateAttrValueEnd // consumed closing quote
)

// Scanner is the incremental tokenizer. The zero value is not usable; use New.
type Scanner struct {
	names []string

	state      scanState
	text       strings.Builder // pending plain text
	raw        strings.Builder // literal source of the tag being scanned
	candidates []int           // indices into names still matching the prefix
	nameLen    int
	name       string
	closing    bool
	attrs      map[string]string
	attrName   strings.Builder
	attrValue  strings.Builder

	events []Event
}

// New creates a Scanner recognizing exactly the given tag names. The
// vocabulary is fixed for the scanner's lifetime. Panics on an empty name.
func New(names ...string) *Scanner {
	copied := make([]string, len(names))
	for i, n := range names {
		if n == "" {
			panic("token: empty tag name")
		}
		copied[i] = n
	}
	return &Scanner{names: copied}
}

// Process consumes one chunk and returns the events it completes. Scanner
// state carries across calls; a partial tag at the end of the chunk is held
// back, while trailing plain text is always emitted.
func (s *Scanner) Process(chunk string) []Event {
	s.events = nil
	for i := 0; i < len(chunk); i++ {
		s.step(chunk[i])
	}
	if s.state == stateText {
		s.flushText()
	}
	return s.events
}

// Flush signals end of input. An unterminated tag in progress is dropped;
// buffered plain text was already emitted by the last Process call.
func (s *Scanner) Flush() {
	s.raw.Reset()
	s.text.Reset()
	s.state = stateText
}

func (s *Scanner) step(c byte) {
	switch s.state {
	case stateText:
		if c == '<' {
			s.flushText()
			s.beginTag()
			s.raw.WriteByte(c)
			s.state = stateTagStart
			return
		}
		s.text.WriteByte(c)

	case stateTagStart:
		if c == '/' && !s.closing {
			s.raw.WriteByte(c)
			s.closing = true
			return
		}
		if s.narrow(c) {
			s.raw.WriteByte(c)
			s.state = stateTagName
			return
		}
		s.abort(c)

	case stateTagName:
		if c == '>' || c == ' ' || c == '\t' {
			if !s.acceptName() {
				s.abort(c)
				return
			}
			if c == '>' {
				s.emitTag()
				return
			}
			s.raw.WriteByte(c)
			s.state = stateAfterName
			return
		}
		if s.narrow(c) {
			s.raw.WriteByte(c)
			return
		}
		s.abort(c)

	case stateAfterName:
		switch {
		case c == ' ' || c == '\t':
			s.raw.WriteByte(c)
		case c == '>':
			s.emitTag()
		case !s.closing && isAttrNameStart(c):
			s.raw.WriteByte(c)
			s.attrName.Reset()
			s.attrName.WriteByte(c)
			s.state = stateAttrName
		default:
			// Attributes on close tags are invalid, as is anything else here.
			s.abort(c)
		}

	case stateAttrName:
		switch {
		case isAttrNameChar(c):
			s.raw.WriteByte(c)
			s.attrName.WriteByte(c)
		case c == '=':
			s.raw.WriteByte(c)
			s.state = stateAttrEqual
		case c == ' ' || c == '\t':
			s.raw.WriteByte(c)
			s.state = stateAttrNameEnd
		default:
			s.abort(c)
		}

	case stateAttrNameEnd:
		switch c {
		case ' ', '\t':
			s.raw.WriteByte(c)
		case '=':
			s.raw.WriteByte(c)
			s.state = stateAttrEqual
		default:
			s.abort(c)
		}

	case stateAttrEqual:
		switch c {
		case ' ', '\t':
			s.raw.WriteByte(c)
		case '"':
			s.raw.WriteByte(c)
			s.attrValue.Reset()
			s.state = stateAttrValueDQ
		case '\'':
			s.raw.WriteByte(c)
			s.attrValue.Reset()
			s.state = stateAttrValueSQ
		default:
			// Unquoted values are not part of the format.
			s.abort(c)
		}

	case stateAttrValueDQ, stateAttrValueSQ:
		quote := byte('"')
		if s.state == stateAttrValueSQ {
			quote = '\''
		}
		switch c {
		case quote:
			s.raw.WriteByte(c)
			s.storeAttr()
			s.state = stateAttrValueEnd
		case '>':
			// A '>' inside a quoted value invalidates the whole tag.
			s.abort(c)
		default:
			s.raw.WriteByte(c)
			s.attrValue.WriteByte(c)
		}

	case stateAttrValueEnd:
		switch c {
		case ' ', '\t':
			s.raw.WriteByte(c)
			s.state = stateAfterName
		case '>':
			s.emitTag()
		default:
			s.abort(c)
		}
	}
}

// beginTag resets per-tag scanning state and seeds the candidate set with
// every registered name.
func (s *Scanner) beginTag() {
	s.raw.Reset()
	s.closing = false
	s.name = ""
	s.nameLen = 0
	s.attrs = nil
	s.candidates = s.candidates[:0]
	for i := range s.names {
		s.candidates = append(s.candidates, i)
	}
}

// narrow keeps only the candidates whose character at the current position
// is c. Reports whether any candidate survives.
func (s *Scanner) narrow(c byte) bool {
	kept := s.candidates[:0]
	for _, i := range s.candidates {
		if s.nameLen < len(s.names[i]) && s.names[i][s.nameLen] == c {
			kept = append(kept, i)
		}
	}
	s.candidates = kept
	if len(kept) == 0 {
		return false
	}
	s.nameLen++
	return true
}

// acceptName resolves the scanned prefix to a registered name. The scanned
// length must equal a candidate's full length: "FILE" must not be accepted
// while "FILESET" is the intended longer candidate, and a bare prefix of a
// longer name is no match at all.
func (s *Scanner) acceptName() bool {
	for _, i := range s.candidates {
		if len(s.names[i]) == s.nameLen {
			s.name = s.names[i]
			return true
		}
	}
	return false
}

func (s *Scanner) storeAttr() {
	if s.attrs == nil {
		s.attrs = make(map[string]string)
	}
	// Duplicate attribute names overwrite.
	s.attrs[s.attrName.String()] = s.attrValue.String()
}

// abort gives up on the tag in progress: its scanned literal is replayed as
// plain text and the offending character is re-dispatched, since a '<' may
// begin a new tag.
func (s *Scanner) abort(c byte) {
	s.text.WriteString(s.raw.String())
	s.raw.Reset()
	s.state = stateText
	s.step(c)
}

func (s *Scanner) flushText() {
	if s.text.Len() == 0 {
		return
	}
	s.events = append(s.events, Event{Type: Text, Text: s.text.String()})
	s.text.Reset()
}

func (s *Scanner) emitTag() {
	ev := Event{Type: Tag, Name: s.name, Close: s.closing}
	if !s.closing {
		ev.Attrs = s.attrs
	}
	s.events = append(s.events, ev)
	s.raw.Reset()
	s.state = stateText
}

func isAttrNameStart(c byte) bool {
	return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c == '_'
}

func isAttrNameChar(c byte) bool {
	return isAttrNameStart(c) || c >= '0' && c <= '9' || c == '-'
}
