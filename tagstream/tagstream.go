// Package tagstream is the embeddable surface of the tool: an App that runs
// the whole pipeline behind the CLI, and a Session for hosts that feed the
// response stream themselves.
package tagstream

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	"github.com/sokinpui/tagstream/cli"
	"github.com/sokinpui/tagstream/internal/fs"
	"github.com/sokinpui/tagstream/internal/markdown"
	"github.com/sokinpui/tagstream/internal/nvim"
	"github.com/sokinpui/tagstream/internal/patch"
	"github.com/sokinpui/tagstream/internal/preview"
	"github.com/sokinpui/tagstream/internal/render"
	"github.com/sokinpui/tagstream/internal/source"
	"github.com/sokinpui/tagstream/internal/state"
	"github.com/sokinpui/tagstream/internal/stats"
	"github.com/sokinpui/tagstream/internal/stream"
	"github.com/sokinpui/tagstream/model"
)

// Button is an affordance the response offered, such as viewing or applying
// a resolved fileset.
type Button struct {
	Label  string
	Action string
	Args   []string
}

// App orchestrates the entire application logic.
type App struct {
	cfg            *cli.Config
	stateManager   *state.Manager
	pathResolver   *fs.PathResolver
	sourceProvider *source.Provider
	previews       *preview.Registry
	collector      *render.Collector

	resolved *model.FileSet
	planned  []model.FileChange
	actions  map[string]string
	dirs     map[string]struct{}
	failed   []string
}

// DetailedError enhances a standard error with a stack trace.
type DetailedError struct {
	Err   error
	Stack []byte
}

func (e *DetailedError) Error() string {
	return e.Err.Error()
}

// New creates a new App instance.
func New(cfg *cli.Config) (*App, error) {
	stateManager, err := state.New()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize state manager: %w", err)
	}
	return &App{
		cfg:            cfg,
		stateManager:   stateManager,
		pathResolver:   fs.NewPathResolver(cfg.LookupDirs),
		sourceProvider: source.New(),
		previews:       preview.NewRegistry(),
		collector:      &render.Collector{},
	}, nil
}

// Markdown returns the rendered markdown collected from the response so far.
func (a *App) Markdown() string {
	return a.collector.Markdown()
}

// Buttons returns the affordances the response offered.
func (a *App) Buttons() []Button {
	recorded := a.collector.Buttons()
	out := make([]Button, len(recorded))
	for i, b := range recorded {
		out[i] = Button{Label: b.Label, Action: b.Action, Args: b.Args}
	}
	return out
}

// Resolved returns the complete-format fileset the response produced, or nil.
func (a *App) Resolved() *model.FileSet {
	return a.resolved
}

// HasPlanned reports whether a processed response left changes waiting to be
// applied, as in preview mode.
func (a *App) HasPlanned() bool {
	return len(a.planned) > 0
}

// Execute executes the main application logic based on parsed flags.
func (a *App) Execute() (summary model.Summary, err error) {
	// Centralized panic recovery.
	defer func() {
		if r := recover(); r != nil {
			err = &DetailedError{
				Err:   fmt.Errorf("internal panic: %v", r),
				Stack: debug.Stack(),
			}
		}
	}()

	switch {
	case a.cfg.Undo:
		return a.undoLastOperation()
	case a.cfg.Redo:
		return a.redoLastOperation()
	default:
		return a.processContent()
	}
}

// processContent streams the source through the tag protocol, falls back to
// markdown extraction when no fileset appears, and plans the file changes.
func (a *App) processContent() (model.Summary, error) {
	var sink render.Sink = a.collector
	if a.cfg.Plain {
		sink = render.Multi{a.collector, &render.WriterSink{W: os.Stdout}}
	}

	proc := stream.New(stream.Config{
		Sink:     sink,
		ReadFile: a.pathResolver.Read,
		Previews: a.previews,
	})

	raw, err := a.sourceProvider.Stream(proc.Process)
	if err != nil {
		return model.Summary{}, err
	}
	if raw == "" {
		return model.Summary{Message: "Source is empty. Nothing to process."}, nil
	}
	if err := proc.Flush(); err != nil {
		return model.Summary{}, err
	}
	proc.Wait()

	set := proc.Result()
	diffErrs := proc.DiffErrors()

	if !proc.HasFileSet() {
		var mdErrs []model.DiffError
		set, mdErrs = a.filesetsFromMarkdown(raw)
		diffErrs = append(diffErrs, mdErrs...)
	}

	summary := model.Summary{
		DiffErrors: diffErrs,
		Tokens:     stats.EstimateTokens(raw),
	}
	if set == nil || len(set.Files) == 0 {
		summary.Message = "No file changes in the response."
		a.relativizeSummaryPaths(&summary)
		return summary, nil
	}

	a.resolved = set
	a.plan(set)

	if a.cfg.Preview {
		for path, action := range a.actions {
			if action == "create" {
				summary.Created = append(summary.Created, path)
			} else {
				summary.Modified = append(summary.Modified, path)
			}
		}
		summary.Failed = a.failed
		summary.Message = "Preview only. Nothing was written."
		a.relativizeSummaryPaths(&summary)
		return summary, nil
	}

	applied, err := a.ApplyPlanned()
	if err != nil {
		return model.Summary{}, err
	}
	applied.DiffErrors = diffErrs
	applied.Tokens = summary.Tokens
	return applied, nil
}

// filesetsFromMarkdown extracts filesets from a plain markdown response and
// resolves any diff blocks against the workspace.
func (a *App) filesetsFromMarkdown(raw string) (*model.FileSet, []model.DiffError) {
	complete, diffSet, err := markdown.FileSets(raw)
	if err != nil {
		return nil, []model.DiffError{{Message: err.Error()}}
	}

	var errs []model.DiffError
	if diffSet != nil {
		resolved, diffErrs := patch.ApplyFileSet(diffSet, a.pathResolver.Read)
		errs = append(errs, diffErrs...)
		if complete == nil {
			complete = resolved
		} else {
			complete.Files = append(complete.Files, resolved.Files...)
		}
	}
	if complete != nil {
		a.previews.Register(complete.Files, "markdown")
	}
	return complete, errs
}

// plan resolves file names to target paths and classifies each as a create
// or a modify, honoring the extension filter.
func (a *App) plan(set *model.FileSet) {
	a.planned = a.planned[:0]
	a.failed = nil
	var targets []string

	for _, f := range set.Files {
		if !a.wantedExtension(f.Name) {
			continue
		}
		path, err := a.pathResolver.Resolve(f.Name)
		if err != nil {
			a.failed = append(a.failed, f.Name)
			continue
		}
		a.planned = append(a.planned, model.FileChange{
			Path:    path,
			Content: strings.Split(f.Content, "\n"),
			Source:  "fileset",
		})
		targets = append(targets, path)
	}
	a.actions, a.dirs = fs.GetFileActionsAndDirs(targets)
}

func (a *App) wantedExtension(name string) bool {
	if len(a.cfg.Extensions) == 0 {
		return true
	}
	ext := filepath.Ext(name)
	for _, want := range a.cfg.Extensions {
		if ext == want {
			return true
		}
	}
	return false
}

// ApplyPlanned writes the planned changes to the workspace, either directly
// or through Neovim buffers, and records the operations for undo.
func (a *App) ApplyPlanned() (model.Summary, error) {
	if len(a.planned) == 0 {
		return model.Summary{Message: "No valid changes were generated. Nothing to do."}, nil
	}
	if err := fs.CreateDirs(a.dirs); err != nil {
		return model.Summary{}, err
	}

	// Modified files get backed up before anything touches them.
	backups := make(map[string]string)
	for _, change := range a.planned {
		if a.actions[change.Path] != "modify" {
			continue
		}
		backup, err := a.stateManager.Backup(change.Path)
		if err != nil {
			continue
		}
		backups[change.Path] = backup
	}

	var updated, failed []string
	recordable := true
	if a.cfg.Nvim {
		manager, err := nvim.New()
		if err != nil {
			return model.Summary{}, err
		}
		defer manager.Close()

		updated, failed = manager.ApplyChanges(a.planned)
		if !a.cfg.Buffer {
			if err := manager.SaveAllBuffers(); err != nil {
				return model.Summary{}, err
			}
		} else {
			// Unsaved buffers have no on-disk state to hash or restore.
			recordable = false
		}
	} else {
		updated, failed = fs.WriteChanges(a.planned)
	}

	if recordable {
		var ops []state.Operation
		for _, path := range updated {
			hash, _ := fs.FileSHA256(path)
			ops = append(ops, state.Operation{
				Action: a.actions[path],
				Path:   path,
				Hash:   hash,
				Backup: backups[path],
			})
		}
		a.stateManager.Record(ops)
	}

	summary := model.Summary{Failed: append(a.failed, failed...)}
	for _, path := range updated {
		if a.actions[path] == "create" {
			summary.Created = append(summary.Created, path)
		} else {
			summary.Modified = append(summary.Modified, path)
		}
	}
	a.planned = nil
	a.relativizeSummaryPaths(&summary)
	return summary, nil
}

// undoLastOperation handles the undo logic.
func (a *App) undoLastOperation() (model.Summary, error) {
	done, failed := a.stateManager.Undo()
	if len(done) == 0 && len(failed) == 0 {
		return model.Summary{Message: "No operation to undo."}, nil
	}
	summary := model.Summary{
		Modified: done,
		Failed:   failed,
		Message:  "Undid last operation.",
	}
	a.relativizeSummaryPaths(&summary)
	return summary, nil
}

// redoLastOperation handles the redo logic.
func (a *App) redoLastOperation() (model.Summary, error) {
	done, failed := a.stateManager.Redo()
	if len(done) == 0 && len(failed) == 0 {
		return model.Summary{Message: "No operation to redo."}, nil
	}
	summary := model.Summary{
		Modified: done,
		Failed:   failed,
		Message:  "Redid last undone operation.",
	}
	a.relativizeSummaryPaths(&summary)
	return summary, nil
}

// relativizeSummaryPaths converts absolute file paths in a summary to be
// relative to the current working directory for cleaner display.
func (a *App) relativizeSummaryPaths(summary *model.Summary) {
	wd, err := os.Getwd()
	if err != nil {
		return
	}

	makeRelative := func(absPaths []string) []string {
		relPaths := make([]string, len(absPaths))
		for i, p := range absPaths {
			rel, err := filepath.Rel(wd, p)
			if err != nil || strings.HasPrefix(rel, "..") {
				relPaths[i] = p
			} else {
				relPaths[i] = rel
			}
		}
		return relPaths
	}

	summary.Created = makeRelative(summary.Created)
	summary.Modified = makeRelative(summary.Modified)
	summary.Failed = makeRelative(summary.Failed)
}
