package diagfmt

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"fulltrace/internal/debugloc"
	"fulltrace/internal/diag"
)

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgCyan)
	noteColor    = color.New(color.FgBlue)
	pathColor    = color.New(color.Bold)
)

// Pretty форматирует диагностики в человекочитаемый вид.
// Идёт по bag.Items() (ожидается bag.Sort() заранее).
// Для каждого diag печатает:
// <path>:<line>:<col>: <SEV> <CODE>: <Message> [in <func>]
// затем Notes с отступом. Цвет включается опцией.
func Pretty(w io.Writer, bag *diag.Bag, opts PrettyOpts) {
	if bag == nil {
		return
	}
	for _, d := range bag.Items() {
		sev := severityColor(d.Severity)
		fmt.Fprintf(w, "%s: %s %s: %s",
			paint(opts.Color, pathColor, formatLoc(d.Primary, opts.PathMode)),
			paint(opts.Color, sev, d.Severity.String()),
			d.Code.ID(),
			d.Message,
		)
		if opts.ShowFunc && d.Func != "" {
			fmt.Fprintf(w, " [in @%s]", d.Func)
		}
		fmt.Fprintln(w)
		if !opts.ShowNotes {
			continue
		}
		for _, n := range d.Notes {
			fmt.Fprintf(w, "  %s %s: %s\n",
				paint(opts.Color, noteColor, "note:"),
				formatLoc(n.Loc, opts.PathMode),
				n.Msg,
			)
		}
	}
}

func severityColor(sev diag.Severity) *color.Color {
	switch sev {
	case diag.SevError:
		return errorColor
	case diag.SevWarning:
		return warningColor
	default:
		return infoColor
	}
}

// paint ignores color.NoColor so that callers decide explicitly.
func paint(enabled bool, c *color.Color, s string) string {
	if !enabled {
		return s
	}
	c.EnableColor()
	return c.Sprint(s)
}

func formatLoc(loc debugloc.Loc, mode PathMode) string {
	if loc.File == "" && loc.Line == 0 {
		return "<module>"
	}
	file := loc.File
	if mode == PathModeBasename {
		file = loc.Base()
	}
	return fmt.Sprintf("%s:%d:%d", file, loc.Line, loc.Column)
}
