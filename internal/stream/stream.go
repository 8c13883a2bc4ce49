// Package stream drives the tag protocol of a streamed assistant response.
//
// Tokenizer events feed a state machine shaped like the protocol itself:
//
//	text -> fileset -> file -> diffchunk -> diffold | diffnew
//
// Prose streams straight through to the sink as markdown; FILESET regions
// accumulate files. When a fileset closes, diff-format files are resolved
// against their on-disk originals on a tracked background goroutine, and the
// finished files are registered for preview.
package stream

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sokinpui/tagstream/internal/fsm"
	"github.com/sokinpui/tagstream/internal/logging"
	"github.com/sokinpui/tagstream/internal/patch"
	"github.com/sokinpui/tagstream/internal/preview"
	"github.com/sokinpui/tagstream/internal/render"
	"github.com/sokinpui/tagstream/internal/token"
	"github.com/sokinpui/tagstream/model"
)

// Tag names recognized in the response stream.
const (
	TagFileset   = "FILESET"
	TagFile      = "FILE"
	TagDiffChunk = "DIFFCHUNK"
	TagDiffOld   = "DIFFOLD"
	TagDiffNew   = "DIFFNEW"
)

// chunkHeader opens each diff chunk in the accumulated patch text.
const chunkHeader = "@@ ... @@\n"

// State names.
const (
	stText      = "text"
	stFileset   = "fileset"
	stFile      = "file"
	stDiffChunk = "diffchunk"
	stDiffOld   = "diffold"
	stDiffNew   = "diffnew"
)

// Event kinds.
const (
	evText           = "processText"
	evOpenFileset    = "openFileset"
	evCloseFileset   = "closeFileset"
	evOpenFile       = "openFile"
	evCloseFile      = "closeFile"
	evOpenDiffChunk  = "openDiffChunk"
	evCloseDiffChunk = "closeDiffChunk"
	evOpenDiffOld    = "openDiffOld"
	evCloseDiffOld   = "closeDiffOld"
	evOpenDiffNew    = "openDiffNew"
	evCloseDiffNew   = "closeDiffNew"
)

var openKinds = map[string]string{
	TagFileset:   evOpenFileset,
	TagFile:      evOpenFile,
	TagDiffChunk: evOpenDiffChunk,
	TagDiffOld:   evOpenDiffOld,
	TagDiffNew:   evOpenDiffNew,
}

var closeKinds = map[string]string{
	TagFileset:   evCloseFileset,
	TagFile:      evCloseFile,
	TagDiffChunk: evCloseDiffChunk,
	TagDiffOld:   evCloseDiffOld,
	TagDiffNew:   evCloseDiffNew,
}

// Event is the machine's event payload.
type Event struct {
	Text  string
	Attrs map[string]string
}

// ProtocolError marks a structurally invalid response, such as a FILE tag
// outside any FILESET. It is not recoverable mid-stream.
type ProtocolError struct {
	Event string
	State string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol violation: event %s in state %s", e.Event, e.State)
}

// region tracks the per-region text artifacts: the spurious newline right
// after an opening tag, and the deferred line prefix of diff regions. A
// line's prefix is written when its first byte arrives, even if that byte
// is the newline of a blank line; the one line that never starts, after the
// newline preceding the closing tag, gets no prefix.
type region struct {
	stripped    bool
	atLineStart bool
}

// Config wires a Processor to its collaborators.
type Config struct {
	Sink     render.Sink
	ReadFile func(name string) ([]byte, error)
	Previews *preview.Registry
}

// Processor consumes one assistant response stream. Create one per response
// and discard it after Flush.
type Processor struct {
	scanner *token.Scanner
	machine *fsm.Machine[Event]
	sink    render.Sink
	read    func(name string) ([]byte, error)
	preview *preview.Registry
	prefix  string

	fileset *model.FileSet
	region  region
	opened  bool // at least one fileset tag was seen
	halted  error

	pending  sync.WaitGroup
	mu       sync.Mutex
	diffErrs []model.DiffError
	// slots holds one entry per closed fileset, in close order, so Result is
	// deterministic even though resolution runs concurrently.
	slots []*model.FileSet
	// deferred holds per-fileset sink emissions queued by post-processing.
	// Wait flushes them on the caller's goroutine, after the prose, so a
	// streaming sink never sees an affordance interleaved mid-sentence.
	deferred []func()
}

// New creates a Processor. Sink must be non-nil; ReadFile and Previews may
// be nil when diff resolution or previewing is not wanted.
func New(cfg Config) *Processor {
	p := &Processor{
		scanner: token.New(TagFileset, TagFile, TagDiffChunk, TagDiffOld, TagDiffNew),
		sink:    cfg.Sink,
		read:    cfg.ReadFile,
		preview: cfg.Previews,
		prefix:  fmt.Sprintf("response-%d", time.Now().UnixNano()),
	}
	p.machine = fsm.New(stText, p.states())
	return p
}

// Prefix is the per-response path prefix preview files are registered under.
func (p *Processor) Prefix() string { return p.prefix }

// Process feeds one chunk of raw response text through the tokenizer and the
// state machine. A protocol error halts the processor; later calls return
// the same error.
func (p *Processor) Process(chunk string) error {
	if p.halted != nil {
		return p.halted
	}
	for _, ev := range p.scanner.Process(chunk) {
		var err error
		switch ev.Type {
		case token.Text:
			err = p.machine.Send(evText, Event{Text: ev.Text})
		case token.Tag:
			kind := openKinds[ev.Name]
			if ev.Close {
				kind = closeKinds[ev.Name]
			}
			err = p.machine.Send(kind, Event{Attrs: ev.Attrs})
		}
		if err != nil {
			p.halted = err
			return err
		}
	}
	return nil
}

// Flush signals end of input. A fileset left open by a truncated stream is
// abandoned, not resolved.
func (p *Processor) Flush() error {
	p.scanner.Flush()
	if p.machine.Current() != stText {
		logging.Get().Warnf("stream: response ended in state %q, dropping partial fileset", p.machine.Current())
		p.fileset = nil
	}
	return p.halted
}

// Wait blocks until all post-processing spawned by closed filesets is done,
// then delivers the queued preview and apply affordances to the sink.
func (p *Processor) Wait() {
	p.pending.Wait()
	p.mu.Lock()
	deferred := p.deferred
	p.deferred = nil
	p.mu.Unlock()
	for _, emit := range deferred {
		emit()
	}
}

// HasFileSet reports whether the response opened a fileset.
func (p *Processor) HasFileSet() bool {
	return p.opened
}

// DiffErrors returns the per-file diff failures collected so far. Call Wait
// first for a complete list.
func (p *Processor) DiffErrors() []model.DiffError {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.DiffError, len(p.diffErrs))
	copy(out, p.diffErrs)
	return out
}

// Result returns the resolved complete-format fileset, or nil if nothing
// closed. Call Wait first.
func (p *Processor) Result() *model.FileSet {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.slots) == 0 {
		return nil
	}
	out := &model.FileSet{Format: model.FormatComplete}
	for _, set := range p.slots {
		out.Files = append(out.Files, set.Files...)
	}
	return out
}

// states builds the transition table. The wildcard state carries the open*
// handlers that make a misplaced opening tag a hard error; every valid state
// shadows them with its own exact handlers first.
func (p *Processor) states() fsm.States[Event] {
	diffOnly := func(Event) bool {
		return p.fileset != nil && p.fileset.Format == model.FormatDiff
	}
	return fsm.States[Event]{
		stText: {
			evText: {{Action: p.renderText}},
			evOpenFileset: {{Action: p.openFileset, Target: stFileset}},
		},
		stFileset: {
			evOpenFile:     {{Action: p.openFile, Target: stFile}},
			evCloseFileset: {{Action: p.closeFileset, Target: stText}},
		},
		stFile: {
			evText:          {{Action: p.fileText}},
			evCloseFile:     {{Action: p.closeFile, Target: stFileset}},
			evOpenDiffChunk: {{Guard: diffOnly, Action: p.openDiffChunk, Target: stDiffChunk}},
		},
		stDiffChunk: {
			evOpenDiffOld:    {{Action: p.openDiffRegion, Target: stDiffOld}},
			evOpenDiffNew:    {{Action: p.openDiffRegion, Target: stDiffNew}},
			evCloseDiffChunk: {{Target: stFile}},
		},
		stDiffOld: {
			evText:         {{Action: p.diffText("-")}},
			evCloseDiffOld: {{Target: stDiffChunk}},
		},
		stDiffNew: {
			evText:         {{Action: p.diffText("+")}},
			evCloseDiffNew: {{Target: stDiffChunk}},
		},
		fsm.Wildcard: {
			evOpenFileset:   p.violation(evOpenFileset),
			evOpenFile:      p.violation(evOpenFile),
			evOpenDiffChunk: p.violation(evOpenDiffChunk),
			evOpenDiffOld:   p.violation(evOpenDiffOld),
			evOpenDiffNew:   p.violation(evOpenDiffNew),
		},
	}
}

func (p *Processor) violation(kind string) []fsm.Transition[Event] {
	return []fsm.Transition[Event]{{
		Action: func(Event) error {
			return &ProtocolError{Event: kind, State: p.machine.Current()}
		},
	}}
}

func (p *Processor) renderText(ev Event) error {
	p.sink.AppendMarkdown(ev.Text)
	return nil
}

func (p *Processor) openFileset(ev Event) error {
	format, err := model.ParseFormat(ev.Attrs["FORMAT"])
	if err != nil {
		return err
	}
	p.fileset = &model.FileSet{Format: format}
	p.opened = true
	return nil
}

func (p *Processor) openFile(ev Event) error {
	name := ev.Attrs["NAME"]
	if name == "" {
		return &ProtocolError{Event: evOpenFile, State: p.machine.Current()}
	}
	p.fileset.Add(name)
	p.region = region{atLineStart: true}

	lang := render.InferLanguage(name)
	if p.fileset.Format == model.FormatDiff {
		lang = "diff"
	}
	p.sink.AppendMarkdown(fmt.Sprintf("\n### %s\n\n```%s\n", name, lang))
	return nil
}

func (p *Processor) fileText(ev Event) error {
	text := p.stripFirstNewline(ev.Text)
	if p.fileset.Format != model.FormatComplete {
		// In diff format, loose text inside FILE carries nothing; the
		// DIFFCHUNK regions own the content.
		return nil
	}
	p.fileset.Last().Content += text
	p.sink.AppendMarkdown(text)
	return nil
}

func (p *Processor) closeFile(Event) error {
	p.sink.AppendMarkdown("```\n\n")
	return nil
}

func (p *Processor) openDiffChunk(Event) error {
	p.fileset.Last().Content += chunkHeader
	p.sink.AppendMarkdown(chunkHeader)
	return nil
}

func (p *Processor) openDiffRegion(Event) error {
	p.region = region{atLineStart: true}
	return nil
}

// diffText returns the action for a DIFFOLD or DIFFNEW region, rewriting
// each incoming line with the unified-diff prefix the wire format omits.
func (p *Processor) diffText(prefix string) func(Event) error {
	return func(ev Event) error {
		text := p.prefixLines(p.stripFirstNewline(ev.Text), prefix)
		p.fileset.Last().Content += text
		p.sink.AppendMarkdown(text)
		return nil
	}
}

func (p *Processor) closeFileset(Event) error {
	set := p.fileset
	p.fileset = nil

	slot := &model.FileSet{Format: model.FormatComplete}
	p.mu.Lock()
	p.slots = append(p.slots, slot)
	p.mu.Unlock()

	p.pending.Add(1)
	go p.postProcess(set, slot)
	return nil
}

// postProcess runs off the parsing path: diff resolution reads the disk.
// Once scheduled it always runs to completion; cancelling upstream only
// stops new chunks from arriving.
func (p *Processor) postProcess(set, slot *model.FileSet) {
	defer p.pending.Done()

	if set.Format == model.FormatDiff {
		for _, f := range set.Files {
			// The closing FILE tag sits on its own line; drop the newline
			// that put it there.
			f.Content = strings.TrimSuffix(f.Content, "\n")
		}
		read := p.read
		if read == nil {
			read = func(name string) ([]byte, error) {
				return nil, fmt.Errorf("no file reader configured")
			}
		}
		resolved, errs := patch.ApplyFileSet(set, read)
		p.mu.Lock()
		p.diffErrs = append(p.diffErrs, errs...)
		p.mu.Unlock()
		set = resolved
	}

	p.mu.Lock()
	slot.Files = set.Files
	p.mu.Unlock()

	if p.preview != nil {
		p.preview.Register(set.Files, p.prefix)
	}
	p.mu.Lock()
	p.deferred = append(p.deferred, func() {
		p.sink.OfferButton("View diff", "preview", p.prefix)
		p.sink.OfferButton("Apply changes", "apply", p.prefix)
		p.sink.AppendMarkdown("\n*Review the proposed changes before applying them.*\n")
	})
	p.mu.Unlock()
}

// stripFirstNewline removes the newline the tag format leaves at the start
// of a region's first text run. Applied at most once per region, even when
// that newline arrives as its own chunk.
func (p *Processor) stripFirstNewline(text string) string {
	if p.region.stripped {
		return text
	}
	p.region.stripped = true
	return strings.TrimPrefix(text, "\n")
}

// prefixLines writes prefix at the start of every line, blank lines
// included, carrying the obligation across chunks via region.atLineStart.
// The prefix is written when the line's first byte arrives, so the newline
// before the region's closing tag never becomes a dangling "-" or "+".
func (p *Processor) prefixLines(text, prefix string) string {
	var b strings.Builder
	for i := 0; i < len(text); i++ {
		if p.region.atLineStart {
			b.WriteString(prefix)
			p.region.atLineStart = false
		}
		c := text[i]
		b.WriteByte(c)
		if c == '\n' {
			p.region.atLineStart = true
		}
	}
	return b.String()
}
