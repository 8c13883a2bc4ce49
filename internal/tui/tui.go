// Package tui is the terminal front end: a spinner while the response
// streams, a summary once it is processed, and viewers for the rendered
// response and the resolved files.
package tui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sokinpui/tagstream/internal/render"
	"github.com/sokinpui/tagstream/model"
	"github.com/sokinpui/tagstream/tagstream"
)

// --- Styles ---
var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")) // Mauve
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))            // Green
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("197"))           // Red
	pathStyle    = lipgloss.NewStyle()
	faintStyle   = lipgloss.NewStyle().Faint(true)
)

// --- Messages ---
type summaryMsg struct {
	model.Summary
}

type errorMsg struct{ err error }

func (e errorMsg) Error() string { return e.err.Error() }

// --- Model ---
type Model struct {
	app      *tagstream.App
	spinner  spinner.Model
	viewport viewport.Model
	state    state
	summary  summaryMsg
	err      error
	width    int
	height   int
}

type state int

const (
	stateProcessing state = iota
	stateSummary
	stateResponse
	stateFiles
	stateError
)

func New(app *tagstream.App) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return Model{
		app:     app,
		spinner: s,
		state:   stateProcessing,
		width:   80,
		height:  24,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.runApp)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 2
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.state == stateResponse || m.state == stateFiles {
				m.state = stateSummary
				return m, nil
			}
			return m, tea.Quit
		case "v":
			if m.state == stateSummary {
				return m.openViewer(stateResponse), nil
			}
		case "d":
			if m.state == stateSummary && m.app.Resolved() != nil {
				return m.openViewer(stateFiles), nil
			}
		case "a":
			if m.state == stateSummary && m.app.HasPlanned() {
				m.state = stateProcessing
				return m, tea.Batch(m.spinner.Tick, m.applyPlanned)
			}
		case "esc":
			if m.state == stateResponse || m.state == stateFiles {
				m.state = stateSummary
				return m, nil
			}
		}
		if m.state == stateResponse || m.state == stateFiles {
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case summaryMsg:
		m.state = stateSummary
		m.summary = msg
		// Nothing to view or apply means nothing to stay open for.
		if m.app.Resolved() == nil && !m.app.HasPlanned() && m.app.Markdown() == "" {
			return m, tea.Quit
		}
		return m, nil

	case errorMsg:
		m.state = stateError
		m.err = msg
		return m, tea.Quit

	default:
		var cmd tea.Cmd
		if m.state == stateProcessing {
			m.spinner, cmd = m.spinner.Update(msg)
		}
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	switch m.state {
	case stateProcessing:
		return fmt.Sprintf("%s Processing...", m.spinner.View())
	case stateError:
		return errorStyle.Render("Error: ", m.err.Error())
	case stateSummary:
		return m.renderSummary()
	case stateResponse, stateFiles:
		return m.viewport.View() + "\n" + faintStyle.Render("  q/esc back  ↑/↓ scroll")
	default:
		return ""
	}
}

// openViewer fills the viewport with the requested content and switches to it.
func (m Model) openViewer(target state) Model {
	m.viewport = viewport.New(m.width, m.height-2)
	if target == stateResponse {
		m.viewport.SetContent(render.Pretty(m.app.Markdown(), m.width))
	} else {
		m.viewport.SetContent(m.renderFiles())
	}
	m.state = target
	return m
}

// renderFiles shows each resolved file as a fenced block, pretty-rendered.
func (m *Model) renderFiles() string {
	set := m.app.Resolved()
	if set == nil || len(set.Files) == 0 {
		return faintStyle.Render("No resolved files.")
	}
	var b strings.Builder
	for _, f := range set.Files {
		fmt.Fprintf(&b, "### %s\n\n```%s\n%s\n```\n\n",
			f.Name, render.InferLanguage(f.Name), strings.TrimRight(f.Content, "\n"))
	}
	return render.Pretty(b.String(), m.width)
}

func (m *Model) renderSummary() string {
	var b strings.Builder

	if m.summary.Message != "" {
		b.WriteString(headerStyle.Render(m.summary.Message))
		b.WriteString("\n\n")
	}

	hasContent := false
	if len(m.summary.Created) > 0 {
		hasContent = true
		b.WriteString(successStyle.Render("Created:"))
		b.WriteString("\n")
		for _, f := range m.summary.Created {
			b.WriteString(fmt.Sprintf("  %s\n", pathStyle.Render(f)))
		}
	}
	if len(m.summary.Modified) > 0 {
		hasContent = true
		b.WriteString(successStyle.Render("Modified:"))
		b.WriteString("\n")
		for _, f := range m.summary.Modified {
			b.WriteString(fmt.Sprintf("  %s\n", pathStyle.Render(f)))
		}
	}
	if len(m.summary.Failed) > 0 {
		hasContent = true
		b.WriteString(errorStyle.Render("Failed:"))
		b.WriteString("\n")
		for _, f := range m.summary.Failed {
			b.WriteString(fmt.Sprintf("  %s\n", pathStyle.Render(f)))
		}
	}
	if len(m.summary.DiffErrors) > 0 {
		hasContent = true
		b.WriteString(errorStyle.Render("Diff errors:"))
		b.WriteString("\n")
		for _, e := range m.summary.DiffErrors {
			b.WriteString(fmt.Sprintf("  %s\n", pathStyle.Render(e.Error())))
		}
	}

	if !hasContent && m.summary.Message == "" {
		b.WriteString(faintStyle.Render("Nothing to do."))
	}

	if m.summary.Tokens > 0 {
		b.WriteString(faintStyle.Render(fmt.Sprintf("\n~%d tokens", m.summary.Tokens)))
		b.WriteString("\n")
	}

	var keys []string
	if m.app.Markdown() != "" {
		keys = append(keys, "v view response")
	}
	if m.app.Resolved() != nil {
		keys = append(keys, "d view files")
	}
	if m.app.HasPlanned() {
		keys = append(keys, "a apply")
	}
	keys = append(keys, "q quit")
	b.WriteString("\n")
	b.WriteString(faintStyle.Render("  " + strings.Join(keys, "  ")))

	return b.String()
}

func (m *Model) runApp() tea.Msg {
	summary, err := m.app.Execute()
	if err != nil {
		// Check for detailed error to print stack
		if e, ok := err.(*tagstream.DetailedError); ok {
			fmt.Fprintf(os.Stderr, "\n--- Stack Trace ---\n%s\n", e.Stack)
		}
		return errorMsg{err}
	}
	return summaryMsg{
		Summary: summary,
	}
}

func (m *Model) applyPlanned() tea.Msg {
	summary, err := m.app.ApplyPlanned()
	if err != nil {
		return errorMsg{err}
	}
	return summaryMsg{
		Summary: summary,
	}
}
