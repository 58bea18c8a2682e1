// Package main provides UI utilities for the FAQ engine CLI.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// UI provides user-friendly output utilities.
type UI struct {
	out      io.Writer
	progress *mpb.Progress
	noColor  bool
	jsonMode bool
}

// NewUI creates a new UI instance.
func NewUI(out io.Writer, jsonMode, noColor bool) *UI {
	var progress *mpb.Progress
	if !jsonMode && IsTerminal() {
		progress = mpb.New(mpb.WithWidth(64), mpb.WithOutput(os.Stderr))
	}
	if noColor {
		color.NoColor = true
	}
	return &UI{
		out:      out,
		progress: progress,
		noColor:  noColor,
		jsonMode: jsonMode,
	}
}

// Close waits for progress bars to finish rendering.
func (ui *UI) Close() {
	if ui.progress != nil {
		ui.progress.Wait()
	}
}

// JSON writes v as indented JSON. Only used in --json mode.
func (ui *UI) JSON(v interface{}) error {
	enc := json.NewEncoder(ui.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Success prints a success message.
func (ui *UI) Success(format string, args ...interface{}) {
	ui.line(color.FgGreen, "✓", format, args...)
}

// Warning prints a warning message.
func (ui *UI) Warning(format string, args ...interface{}) {
	ui.line(color.FgYellow, "⚠", format, args...)
}

// Info prints an info message.
func (ui *UI) Info(format string, args ...interface{}) {
	ui.line(color.FgCyan, "ℹ", format, args...)
}

// Step prints a step message.
func (ui *UI) Step(format string, args ...interface{}) {
	ui.line(color.FgBlue, "→", format, args...)
}

func (ui *UI) line(attr color.Attribute, symbol, format string, args ...interface{}) {
	if ui.jsonMode {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if ui.noColor {
		fmt.Fprintf(ui.out, "%s %s\n", symbol, msg)
		return
	}
	color.New(attr).Fprintf(ui.out, "%s %s\n", symbol, msg)
}

// ProgressBar creates a progress bar for a known number of items. It returns
// nil when output is not a terminal.
func (ui *UI) ProgressBar(name string, total int64) *mpb.Bar {
	if ui.progress == nil || ui.jsonMode {
		return nil
	}

	return ui.progress.AddBar(total,
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: len(name) + 1, C: decor.DSyncSpaceR}),
			decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WC{W: 5}),
			decor.OnComplete(
				decor.Elapsed(decor.ET_STYLE_GO, decor.WC{W: 12}),
				" done",
			),
		),
	)
}

// WriterBar creates a byte progress bar on stderr for streaming writes.
func (ui *UI) WriterBar(description string, total int64) *progressbar.ProgressBar {
	if ui.jsonMode || !IsTerminal() {
		return progressbar.DefaultSilent(total, description)
	}
	return progressbar.NewOptions64(
		total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("faqs"),
		progressbar.OptionShowIts(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// Spinner starts a spinner for indeterminate work. The returned func stops it.
func (ui *UI) Spinner(message string) func() {
	if ui.jsonMode || !IsTerminal() {
		return func() {}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message
	s.Writer = os.Stderr
	s.Start()
	return s.Stop
}

// Table prints a formatted table.
func (ui *UI) Table(headers []string, rows [][]string) {
	if ui.jsonMode || len(headers) == 0 {
		return
	}

	widths := make([]int, len(headers))
	for i, header := range headers {
		widths[i] = len(header)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	border := color.New(color.FgCyan, color.Bold)
	rule := func(left, mid, right string) {
		border.Fprint(ui.out, left)
		for i, width := range widths {
			border.Fprint(ui.out, strings.Repeat("─", width+2))
			if i < len(widths)-1 {
				border.Fprint(ui.out, mid)
			}
		}
		border.Fprint(ui.out, right+"\n")
	}
	row := func(cells []string) {
		border.Fprint(ui.out, "│")
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			fmt.Fprintf(ui.out, " %-*s ", widths[i], cell)
			border.Fprint(ui.out, "│")
		}
		fmt.Fprintln(ui.out)
	}

	rule("┌", "┬", "┐")
	row(headers)
	rule("├", "┼", "┤")
	for _, r := range rows {
		row(r)
	}
	rule("└", "┴", "┘")
}

// KeyValue prints a key-value pair.
func (ui *UI) KeyValue(key string, value interface{}) {
	if ui.jsonMode {
		return
	}
	if ui.noColor {
		fmt.Fprintf(ui.out, "  %s: %v\n", key, value)
		return
	}
	color.New(color.FgYellow).Fprintf(ui.out, "  %s: ", key)
	fmt.Fprintf(ui.out, "%v\n", value)
}

// Truncate shortens s to n runes for table cells.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

// IsTerminal checks if stdout is a terminal.
func IsTerminal() bool {
	fileInfo, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}
