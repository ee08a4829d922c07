package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/maxyzli/whisper-flow/internal/ui"
)

// Formatter writes human-readable command output.
type Formatter struct {
	w io.Writer
}

func NewFormatter(w io.Writer) *Formatter {
	return &Formatter{w: w}
}

func (f *Formatter) Success(msg string) {
	fmt.Fprintln(f.w, ui.SuccessStyle.Render("✓ ")+msg)
}

func (f *Formatter) Warning(msg string) {
	fmt.Fprintln(f.w, ui.WarningStyle.Render("! ")+msg)
}

func (f *Formatter) Error(msg string) {
	fmt.Fprintln(f.w, ui.ErrorStyle.Render("✗ ")+msg)
}

func (f *Formatter) Info(msg string) {
	fmt.Fprintln(f.w, ui.DimStyle.Render("· ")+msg)
}

// Check prints one doctor line.
func (f *Formatter) Check(name string, ok bool, detail string) {
	mark := ui.SuccessStyle.Render("✓")
	if !ok {
		mark = ui.ErrorStyle.Render("✗")
	}
	fmt.Fprintf(f.w, "%s %-18s %s\n", mark, name, ui.DimStyle.Render(detail))
}

// Header prints a section title.
func (f *Formatter) Header(title string) {
	fmt.Fprintln(f.w, ui.TitleStyle.Render(title))
}

// Row prints a timestamped list entry.
func (f *Formatter) Row(id string, ts time.Time, text string) {
	fmt.Fprintf(f.w, "%s  %s  %s\n",
		ui.SelectedStyle.Render(id),
		ui.TimestampStyle.Render(ts.Format("Jan 02 15:04")),
		text,
	)
}

// Text prints a transcript body verbatim.
func (f *Formatter) Text(text string) {
	fmt.Fprintln(f.w, text)
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func preview(text string, n int) string {
	runes := []rune(text)
	for i, r := range runes {
		if r == '\n' {
			runes = runes[:i]
			break
		}
	}
	if len(runes) > n {
		return string(runes[:n-1]) + "…"
	}
	return string(runes)
}
