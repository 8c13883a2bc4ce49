// Package ui prints leveled status lines to stderr. The bubbletea TUI owns
// stdout; these are for the print-only modes and warnings.
package ui

import (
	"os"

	"github.com/fatih/color"
)

var (
	headerColor  = color.New(color.FgBlue, color.Bold)
	infoColor    = color.New(color.FgCyan)
	successColor = color.New(color.FgGreen)
	warningColor = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
	pathColor    = color.New(color.FgYellow)
)

func Header(format string, a ...interface{}) {
	headerColor.Fprintf(os.Stderr, format+"\n", a...)
}

func Info(format string, a ...interface{}) {
	infoColor.Fprintf(os.Stderr, format+"\n", a...)
}

func Success(format string, a ...interface{}) {
	successColor.Fprintf(os.Stderr, format+"\n", a...)
}

func Warning(format string, a ...interface{}) {
	warningColor.Fprintf(os.Stderr, format+"\n", a...)
}

func Error(format string, a ...interface{}) {
	errorColor.Fprintf(os.Stderr, format+"\n", a...)
}

func Path(format string, a ...interface{}) {
	pathColor.Fprintf(os.Stderr, "  "+format+"\n", a...)
}
