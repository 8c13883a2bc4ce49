// Package cli parses the command line into a Config.
package cli

import (
	"fmt"

	"github.com/spf13/pflag"
)

// Config holds all the command-line flag values.
type Config struct {
	Nvim       bool
	Buffer     bool
	Preview    bool
	Plain      bool
	Undo       bool
	Redo       bool
	LookupDirs []string
	Extensions []string
}

// ParseFlags defines and parses command-line flags using pflag.
func ParseFlags() (*Config, error) {
	cfg := &Config{}

	pflag.BoolVarP(&cfg.Nvim, "nvim", "n", false, "Apply changes into Neovim buffers instead of writing files directly.")
	pflag.BoolVarP(&cfg.Buffer, "buffer", "b", false, "With --nvim, leave buffers unsaved (changes are saved by default).")
	pflag.BoolVarP(&cfg.Preview, "preview", "p", false, "Parse and resolve the response but apply nothing until confirmed in the TUI.")
	pflag.BoolVar(&cfg.Plain, "plain", false, "No TUI: stream the rendered markdown to stdout and print the summary to stderr.")
	pflag.StringSliceVarP(&cfg.LookupDirs, "lookup-dir", "l", []string{}, "Directory to look up files in (default: current directory).")
	pflag.StringSliceVarP(&cfg.Extensions, "extension", "e", []string{}, "Only process files with these extensions (e.g. 'py', 'go').")

	// Mutually exclusive history group
	pflag.BoolVarP(&cfg.Undo, "undo", "u", false, "Undo the last operation.")
	pflag.BoolVarP(&cfg.Redo, "redo", "r", false, "Redo the last undone operation.")

	pflag.Usage = func() {
		fmt.Println("Usage: tagstream [flags]")
		fmt.Println("\nParse a tagged assistant response from stdin (pipe) or the clipboard")
		fmt.Println("and apply the files it carries to the workspace.")
		fmt.Println("\nExample: llm ask 'add a healthz route' | tagstream -e go")
		fmt.Println("\nFlags:")
		pflag.PrintDefaults()
	}

	pflag.Parse()

	if cfg.Undo && cfg.Redo {
		return nil, fmt.Errorf("error: --undo and --redo are mutually exclusive")
	}

	// Normalize extensions
	for i, ext := range cfg.Extensions {
		if len(ext) > 0 && ext[0] != '.' {
			cfg.Extensions[i] = "." + ext
		}
	}

	return cfg, nil
}
