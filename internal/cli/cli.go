package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/specialistvlad/lbforge/internal/app"
	"github.com/spf13/cobra"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Exit codes.
const (
	CodeFailure = 1
	CodeUsage   = 2
)

func usageError(err error) *ExitError {
	return &ExitError{Code: CodeUsage, Message: err.Error()}
}

// Execute runs the command line in args. Every non-nil error it returns is
// an *ExitError.
func Execute(ctx context.Context, args []string, outW, errW io.Writer) error {
	root := newRootCmd(outW, errW, os.Environ)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	// Whatever cobra rejects before a command runs is a usage problem.
	return usageError(err)
}

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath      string
	logLevel        string
	logFormat       string
	env             []string
	maxIterations   int
	emptyEnvAsUnset bool
	profile         string
	profileDir      string

	environ func() []string
}

func newRootCmd(outW, errW io.Writer, environ func() []string) *cobra.Command {
	g := &globalOptions{environ: environ}
	root := &cobra.Command{
		Use:   "lbforge",
		Short: "Compile load balancer descriptions into HAProxy configuration",
		Long: `lbforge compiles .lbf files (variables, loops, templates and typed
sections) into native HAProxy configuration text.

Paths may be files or directories; directories are searched recursively
for .lbf files.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetOut(outW)
	root.SetErr(errW)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "YAML configuration file")
	pf.StringVar(&g.logLevel, "log-level", "info", "logging level: debug, info, warn or error")
	pf.StringVar(&g.logFormat, "log-format", "text", "log output format: text or json")
	pf.StringArrayVar(&g.env, "env", nil, "KEY=VALUE added to the environment seen by ${env.*} (repeatable)")
	pf.IntVar(&g.maxIterations, "max-iterations", 0, "cap on loop iterations per file (0 selects the default)")
	pf.BoolVar(&g.emptyEnvAsUnset, "empty-env-as-unset", false, "treat empty environment values as unset for ${env.NAME:-default}")
	pf.StringVar(&g.profile, "profile", "", "write a profile of the run: cpu or mem")
	pf.StringVar(&g.profileDir, "profile-dir", "", "directory for profile output (default: a temporary directory)")

	root.AddCommand(
		newBuildCmd(g),
		newCheckCmd(g),
		newWatchCmd(g),
		newVersionCmd(),
	)
	return root
}

// config merges the configuration file, flags and arguments. Flags win over
// the file when they are set explicitly.
func (g *globalOptions) config(cmd *cobra.Command, args []string) (*app.Config, error) {
	cfg := &app.Config{}
	if g.configPath != "" {
		loaded, err := app.LoadFile(g.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") || cfg.LogLevel == "" {
		cfg.LogLevel = strings.ToLower(g.logLevel)
	}
	if flags.Changed("log-format") || cfg.LogFormat == "" {
		cfg.LogFormat = strings.ToLower(g.logFormat)
	}
	if flags.Changed("max-iterations") {
		cfg.MaxIterations = g.maxIterations
	}
	if flags.Changed("empty-env-as-unset") {
		cfg.EmptyEnvAsUnset = g.emptyEnvAsUnset
	}
	if flags.Changed("profile") {
		cfg.Profile = g.profile
	}
	if len(args) > 0 {
		cfg.Paths = args
	}

	env, err := g.environment(cfg.Env)
	if err != nil {
		return nil, err
	}
	cfg.Env = env

	return app.NewConfig(*cfg)
}

// environment layers the process environment, the configuration file and
// --env flags, later layers winning.
func (g *globalOptions) environment(fromFile map[string]string) (map[string]string, error) {
	env := make(map[string]string)
	if g.environ != nil {
		for _, kv := range g.environ() {
			if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
				env[k] = v
			}
		}
	}
	for k, v := range fromFile {
		env[k] = v
	}
	for _, kv := range g.env {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --env entry %q: want KEY=VALUE", kv)
		}
		env[k] = v
	}
	return env, nil
}

// run builds the App for cmd and hands it to fn, with profiling around it.
func (g *globalOptions) run(cmd *cobra.Command, args []string, adjust func(*app.Config), fn func(context.Context, *app.App) error) error {
	cfg, err := g.config(cmd, args)
	if err != nil {
		return usageError(err)
	}
	if adjust != nil {
		adjust(cfg)
		if cfg, err = app.NewConfig(*cfg); err != nil {
			return usageError(err)
		}
	}

	p := app.StartProfile(cfg.Profile, g.profileDir)
	defer p.Stop()

	a := app.NewApp(cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg)
	if err := fn(cmd.Context(), a); err != nil {
		return &ExitError{Code: CodeFailure, Message: err.Error()}
	}
	return nil
}
