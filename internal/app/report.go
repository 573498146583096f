package app

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/hashicorp/hcl/v2"
	"github.com/mattn/go-isatty"
	"github.com/specialistvlad/lbforge/internal/compiler"
	"github.com/specialistvlad/lbforge/internal/ir"
)

const diagnosticWidth = 100

// useColor reports whether w is a terminal that should get colored output.
// NO_COLOR disables color everywhere.
func useColor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// report writes diagnostics with source snippets.
func (a *App) report(sources []compiler.Source, diags hcl.Diagnostics) error {
	if len(diags) == 0 {
		return nil
	}
	files := make(map[string]*hcl.File, len(sources))
	for _, s := range sources {
		files[s.Filename] = &hcl.File{Bytes: s.Bytes}
	}
	var width uint
	if a.color {
		width = diagnosticWidth
	}
	return hcl.NewDiagnosticTextWriter(a.errW, files, width, a.color).WriteDiagnostics(diags)
}

// summarize prints a one-line outcome of a run.
func (a *App) summarize(res *Result, elapsed time.Duration) {
	r := lipgloss.NewRenderer(a.errW)
	okStyle := r.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	failStyle := r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	hintStyle := r.NewStyle().Foreground(lipgloss.Color("8"))

	errs, warns := 0, 0
	for _, d := range res.Diagnostics {
		if d.Severity == hcl.DiagError {
			errs++
		} else {
			warns++
		}
	}

	var line string
	if errs > 0 {
		line = failStyle.Render("FAIL") + fmt.Sprintf(" %s, %s in %s",
			plural(errs, "error"), plural(warns, "warning"), plural(len(res.Files), "file"))
	} else {
		line = okStyle.Render("OK") + fmt.Sprintf(" %s, %s",
			plural(len(res.Files), "file"), plural(countSections(res.Config), "section"))
		if warns > 0 {
			line += ", " + plural(warns, "warning")
		}
	}
	fmt.Fprintln(a.errW, line+" "+hintStyle.Render("("+elapsed.Round(time.Millisecond).String()+")"))
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

func countSections(cfg *ir.Config) int {
	if cfg == nil {
		return 0
	}
	n := len(cfg.Defaults) + len(cfg.Frontends) + len(cfg.Backends) + len(cfg.Listens) +
		len(cfg.Resolvers) + len(cfg.Peers) + len(cfg.Mailers)
	if cfg.Global != nil {
		n++
	}
	return n
}
