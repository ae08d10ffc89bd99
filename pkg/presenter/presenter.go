// Package presenter provides consistent CLI output for user-facing messages,
// with color support and a quiet mode for scripted use.
package presenter

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Presenter defines the interface for consistent CLI output
type Presenter interface {
	Error(err error, context string)
	Success(message string)
	Warning(message string)
	Info(message string)
	Section(title string)
	SetQuiet(quiet bool)
	IsQuiet() bool
}

// ColorMode represents different color output modes
type ColorMode int

const (
	// ColorAuto detects terminal capabilities
	ColorAuto ColorMode = iota
	// ColorAlways forces colored output
	ColorAlways
	// ColorNever disables colored output
	ColorNever
)

// TerminalPresenter implements Presenter for terminal output
type TerminalPresenter struct {
	output      io.Writer
	errorOutput io.Writer
	quiet       bool
}

// New creates a new TerminalPresenter with default settings
func New() *TerminalPresenter {
	return NewWithOptions(os.Stdout, os.Stderr, detectColorMode())
}

// NewWithOptions creates a TerminalPresenter with custom settings
func NewWithOptions(output, errorOutput io.Writer, colorMode ColorMode) *TerminalPresenter {
	switch colorMode {
	case ColorAlways:
		color.NoColor = false
	case ColorNever:
		color.NoColor = true
	}

	return &TerminalPresenter{
		output:      output,
		errorOutput: errorOutput,
	}
}

func detectColorMode() ColorMode {
	if os.Getenv("NO_COLOR") != "" {
		return ColorNever
	}
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return ColorNever
	}
	return ColorAuto
}

// Error prints an error message with optional context to the error output.
// Errors print even in quiet mode.
func (p *TerminalPresenter) Error(err error, context string) {
	if context != "" {
		fmt.Fprintf(p.errorOutput, "%s %s: %v\n", color.RedString("Error:"), context, err)
		return
	}
	fmt.Fprintf(p.errorOutput, "%s %v\n", color.RedString("Error:"), err)
}

// Success prints a success message
func (p *TerminalPresenter) Success(message string) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.output, "%s %s\n", color.GreenString("✓"), message)
}

// Warning prints a warning message
func (p *TerminalPresenter) Warning(message string) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.output, "%s %s\n", color.YellowString("Warning:"), message)
}

// Info prints an informational message
func (p *TerminalPresenter) Info(message string) {
	if p.quiet {
		return
	}
	fmt.Fprintln(p.output, message)
}

// Section prints a section header
func (p *TerminalPresenter) Section(title string) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.output, "\n%s\n%s\n", color.CyanString(title), strings.Repeat("-", len(title)))
}

// SetQuiet enables or disables quiet mode
func (p *TerminalPresenter) SetQuiet(quiet bool) {
	p.quiet = quiet
}

// IsQuiet returns whether quiet mode is enabled
func (p *TerminalPresenter) IsQuiet() bool {
	return p.quiet
}

// defaultPresenter is the package-level presenter used by the convenience functions
var defaultPresenter Presenter = New()

// Error prints an error via the default presenter
func Error(err error, context string) {
	defaultPresenter.Error(err, context)
}

// Success prints a success message via the default presenter
func Success(message string) {
	defaultPresenter.Success(message)
}

// Warning prints a warning message via the default presenter
func Warning(message string) {
	defaultPresenter.Warning(message)
}

// Info prints an informational message via the default presenter
func Info(message string) {
	defaultPresenter.Info(message)
}

// Section prints a section header via the default presenter
func Section(title string) {
	defaultPresenter.Section(title)
}

// SetQuiet sets quiet mode on the default presenter
func SetQuiet(quiet bool) {
	defaultPresenter.SetQuiet(quiet)
}

// IsQuiet returns whether the default presenter is quiet
func IsQuiet() bool {
	return defaultPresenter.IsQuiet()
}
