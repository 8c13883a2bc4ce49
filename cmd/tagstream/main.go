package main

import (
	"fmt"
	"os"

	"github.com/sokinpui/tagstream/cli"
	"github.com/sokinpui/tagstream/internal/tui"
	"github.com/sokinpui/tagstream/internal/ui"
	"github.com/sokinpui/tagstream/model"
	"github.com/sokinpui/tagstream/tagstream"

	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	cfg, err := cli.ParseFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	app, err := tagstream.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	// Plain mode streams markdown to stdout and must not run the TUI.
	if cfg.Plain {
		summary, err := app.Execute()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		printSummary(summary)
		return
	}

	p := tea.NewProgram(tui.New(app))
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}

// printSummary reports the run's outcome on stderr, keeping stdout clean for
// the streamed markdown.
func printSummary(summary model.Summary) {
	if summary.Message != "" {
		ui.Header("%s", summary.Message)
	}
	if len(summary.Created) > 0 {
		ui.Success("Created:")
		for _, f := range summary.Created {
			ui.Path("  %s", f)
		}
	}
	if len(summary.Modified) > 0 {
		ui.Success("Modified:")
		for _, f := range summary.Modified {
			ui.Path("  %s", f)
		}
	}
	if len(summary.Failed) > 0 {
		ui.Error("Failed:")
		for _, f := range summary.Failed {
			ui.Path("  %s", f)
		}
	}
	for _, e := range summary.DiffErrors {
		ui.Warning("diff: %s", e.Error())
	}
	if summary.Tokens > 0 {
		ui.Info("~%d tokens", summary.Tokens)
	}
}
