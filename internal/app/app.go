package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/lbforge/internal/compiler"
	"github.com/specialistvlad/lbforge/internal/ctxlog"
	"github.com/specialistvlad/lbforge/internal/fsutil"
	"github.com/specialistvlad/lbforge/internal/hapcheck"
	"github.com/specialistvlad/lbforge/internal/ir"
)

// ErrCompile reports that the input has errors. The diagnostics have already
// been written when it is returned.
var ErrCompile = errors.New("compilation failed")

const defaultDebounce = 200 * time.Millisecond

// App encapsulates the application's dependencies, configuration, and
// lifecycle. Generated configuration goes to outW or the configured output
// file; logs, diagnostics and summaries go to errW.
type App struct {
	outW     io.Writer
	errW     io.Writer
	logger   *slog.Logger
	config   *Config
	color    bool
	debounce time.Duration
	status   buildStatus
}

// Result is the outcome of one compilation.
type Result struct {
	Files       []string
	Config      *ir.Config
	Text        string
	Diagnostics hcl.Diagnostics
}

// NewApp is the constructor for the main application. It returns an App with
// its own isolated logger.
func NewApp(outW, errW io.Writer, cfg *Config) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, errW)
	logger.Debug("Logger configured successfully.")
	return &App{
		outW:     outW,
		errW:     errW,
		logger:   logger,
		config:   cfg,
		color:    useColor(errW),
		debounce: defaultDebounce,
	}
}

func (a *App) options() compiler.Options {
	return compiler.Options{
		Env:             a.config.Env,
		EmptyEnvAsUnset: a.config.EmptyEnvAsUnset,
		MaxIterations:   a.config.MaxIterations,
	}
}

// load discovers and reads every input file.
func (a *App) load() ([]compiler.Source, error) {
	paths, err := fsutil.Discover(a.config.Paths, Extension)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no %s files found in %v", Extension, a.config.Paths)
	}
	sources := make([]compiler.Source, 0, len(paths))
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read input file: %w", err)
		}
		sources = append(sources, compiler.Source{Filename: p, Bytes: b})
	}
	a.logger.Debug("Input files loaded.", "count", len(sources))
	return sources, nil
}

// compile runs the pipeline up to the validated model and writes the
// diagnostics.
func (a *App) compile(ctx context.Context) (*Result, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	sources, err := a.load()
	if err != nil {
		return nil, err
	}
	res := &Result{}
	for _, s := range sources {
		res.Files = append(res.Files, s.Filename)
	}

	cfg, diags, err := compiler.CompileFiles(ctx, sources, a.options())
	if err != nil {
		return nil, err
	}
	res.Diagnostics = diags
	if err := a.report(sources, diags); err != nil {
		return nil, fmt.Errorf("failed to write diagnostics: %w", err)
	}
	if diags.HasErrors() {
		return res, ErrCompile
	}
	res.Config = cfg
	return res, nil
}

// Check validates the input without generating output.
func (a *App) Check(ctx context.Context) (*Result, error) {
	start := time.Now()
	res, err := a.compile(ctx)
	if res != nil {
		a.summarize(res, time.Since(start))
	}
	return res, err
}

// Build compiles the input, optionally verifies the generated text and
// writes it.
func (a *App) Build(ctx context.Context) (*Result, error) {
	start := time.Now()
	res, err := a.compile(ctx)
	if err != nil {
		if res != nil {
			a.summarize(res, time.Since(start))
		}
		return res, err
	}

	res.Text = compiler.Generate(res.Config)
	if a.config.Verify {
		if err := hapcheck.Verify(res.Config, res.Text); err != nil {
			return res, fmt.Errorf("verification failed: %w", err)
		}
		a.logger.Debug("Generated configuration verified.")
	}
	if err := a.write(res.Text); err != nil {
		return res, err
	}
	a.summarize(res, time.Since(start))
	return res, nil
}

// write puts text on outW, or replaces the output file atomically.
func (a *App) write(text string) error {
	out := a.config.Output
	if out == "" || out == "-" {
		_, err := io.WriteString(a.outW, text)
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(out), "."+filepath.Base(out)+".*")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if err := os.Rename(tmp.Name(), out); err != nil {
		return fmt.Errorf("failed to replace output file: %w", err)
	}
	a.logger.Debug("Output written.", "path", out, "bytes", len(text))
	return nil
}
