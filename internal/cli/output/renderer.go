package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// Renderer writes command output in the selected mode.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	mode   OutputMode
	isTTY  bool
	styles *Styles
}

// NewRenderer creates a renderer, detecting whether out is a terminal.
func NewRenderer(out, errOut io.Writer, mode OutputMode) *Renderer {
	return NewRendererWithTTY(out, errOut, isTerminal(out), mode)
}

// NewRendererWithTTY creates a renderer with an explicit TTY state.
func NewRendererWithTTY(out, errOut io.Writer, isTTY bool, mode OutputMode) *Renderer {
	if mode == "" {
		mode = ModeAuto
	}
	return &Renderer{
		out:    out,
		errOut: errOut,
		mode:   mode,
		isTTY:  isTTY,
		styles: newStyles(out, isTTY),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec // fd fits in int
}

// EffectiveMode resolves ModeAuto: text on a terminal, markdown otherwise.
func (r *Renderer) EffectiveMode() OutputMode {
	if r.mode != ModeAuto {
		return r.mode
	}
	if r.isTTY {
		return ModeText
	}
	return ModeMarkdown
}

// Styles returns the text mode styles.
func (r *Renderer) Styles() *Styles { return r.styles }

// Writer returns the standard output writer.
func (r *Renderer) Writer() io.Writer { return r.out }

// ErrWriter returns the error output writer.
func (r *Renderer) ErrWriter() io.Writer { return r.errOut }

// IsTTY reports whether output goes to a terminal.
func (r *Renderer) IsTTY() bool { return r.isTTY }

func (r *Renderer) styled() bool { return r.EffectiveMode() == ModeText }

// Println writes a line to standard output.
func (r *Renderer) Println(a ...any) {
	_, _ = fmt.Fprintln(r.out, a...)
}

// Printf writes formatted text to standard output.
func (r *Renderer) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.out, format, a...)
}

// Header writes a level 1 or 2 heading.
func (r *Renderer) Header(level int, text string) {
	if !r.styled() {
		r.Println(FormatHeader(level, text))
		r.Println()
		return
	}
	style := r.styles.Header2
	if level <= 1 {
		style = r.styles.Header1
	}
	r.Println(style.Render(text))
}

// Success writes a success line.
func (r *Renderer) Success(msg string) {
	if r.styled() {
		r.Println(r.styles.StatusSuccess.Render("✓ " + msg))
		return
	}
	r.Println("OK: " + msg)
}

// Warning writes a warning line.
func (r *Renderer) Warning(msg string) {
	if r.styled() {
		r.Println(r.styles.Warning.Render("! " + msg))
		return
	}
	r.Println("WARNING: " + msg)
}

// Error writes an error line to the error output.
func (r *Renderer) Error(msg string) {
	if r.styled() {
		_, _ = fmt.Fprintln(r.errOut, r.styles.Error.Render("✗ "+msg))
		return
	}
	_, _ = fmt.Fprintln(r.errOut, "ERROR: "+msg)
}

// Muted writes de-emphasised text.
func (r *Renderer) Muted(msg string) {
	if r.styled() {
		r.Println(r.styles.Muted.Render(msg))
		return
	}
	r.Println(msg)
}

// StatusLine writes "name status message" with the status coloured by
// outcome. Status values "ok", "passed" and "success" render as success.
func (r *Renderer) StatusLine(name, status, msg string) {
	if !r.styled() {
		line := fmt.Sprintf("- **%s**: %s", name, status)
		if msg != "" {
			line += " (" + msg + ")"
		}
		r.Println(line)
		return
	}

	style := r.styles.StatusFailed
	icon := "✗"
	switch strings.ToLower(status) {
	case "ok", "passed", "success":
		style, icon = r.styles.StatusSuccess, "✓"
	}
	line := fmt.Sprintf("%s %s %s", style.Render(icon), r.styles.Dataset.Render(name), style.Render(status))
	if msg != "" {
		line += " " + r.styles.Muted.Render(msg)
	}
	r.Println(line)
}

// KeyValue writes a labelled value.
func (r *Renderer) KeyValue(key string, value any) {
	if r.styled() {
		r.Printf("%s %v\n", r.styles.Bold.Render(key+":"), value)
		return
	}
	r.Println(FormatKeyValue(key, value))
}

// Table writes rows under header: a box table in text mode and a pipe table
// in markdown mode.
func (r *Renderer) Table(header []string, rows [][]any) {
	t := table.NewWriter()
	row := make(table.Row, len(header))
	for i, h := range header {
		row[i] = h
	}
	t.AppendHeader(row)
	for _, cells := range rows {
		t.AppendRow(table.Row(cells))
	}

	if r.styled() {
		t.SetStyle(table.StyleLight)
		r.Println(t.Render())
		return
	}
	r.Println(t.RenderMarkdown())
	r.Println()
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// YAML writes v as YAML. Values pass through their JSON encoding first so
// field names and custom encodings match the JSON output.
func (r *Renderer) YAML(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	var plain any
	if err := json.Unmarshal(data, &plain); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	enc := yaml.NewEncoder(r.out)
	enc.SetIndent(2)
	if err := enc.Encode(plain); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return enc.Close()
}

// Structured writes v as JSON or YAML when that is the effective mode and
// reports whether it did.
func (r *Renderer) Structured(v any) (bool, error) {
	switch r.EffectiveMode() {
	case ModeJSON:
		return true, r.JSON(v)
	case ModeYAML:
		return true, r.YAML(v)
	default:
		return false, nil
	}
}
