package cli

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/specialistvlad/lbforge/internal/app"
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=...".
var Version = ""

func newBuildCmd(g *globalOptions) *cobra.Command {
	var (
		output string
		verify bool
	)
	cmd := &cobra.Command{
		Use:   "build [paths...]",
		Short: "Compile .lbf files into HAProxy configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, args, func(cfg *app.Config) {
				if cmd.Flags().Changed("output") {
					cfg.Output = output
				}
				if cmd.Flags().Changed("verify") {
					cfg.Verify = verify
				}
			}, func(ctx context.Context, a *app.App) error {
				_, err := a.Build(ctx)
				return err
			})
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	fs.BoolVar(&verify, "verify", false, "re-parse the output with HAProxy's configuration parser")
	return cmd
}

func newCheckCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check [paths...]",
		Short: "Validate .lbf files without generating output",
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, args, nil, func(ctx context.Context, a *app.App) error {
				_, err := a.Check(ctx)
				return err
			})
		},
	}
}

func newWatchCmd(g *globalOptions) *cobra.Command {
	var (
		output string
		port   int
	)
	cmd := &cobra.Command{
		Use:   "watch [paths...] -o file",
		Short: "Recompile whenever an input file changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, args, func(cfg *app.Config) {
				cfg.Output = output
				if cmd.Flags().Changed("healthcheck-port") {
					cfg.HealthcheckPort = port
				}
			}, func(ctx context.Context, a *app.App) error {
				return a.Watch(ctx)
			})
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&output, "output", "o", "", "output file")
	fs.IntVar(&port, "healthcheck-port", 0, "serve /health reporting the last build on this port (0 disables)")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "lbforge", version())
			return err
		},
	}
}

func version() string {
	if Version != "" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}
