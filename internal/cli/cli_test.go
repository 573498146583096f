package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/lbforge/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errW bytes.Buffer
	err := Execute(context.Background(), args, &out, &errW)
	return out.String(), errW.String(), err
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr), "error %v is not an ExitError", err)
	return exitErr.Code
}

func TestRootCmdHasSubcommands(t *testing.T) {
	root := newRootCmd(&bytes.Buffer{}, &bytes.Buffer{}, nil)
	for _, name := range []string{"build", "check", "watch", "version"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestVersionCmd(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Regexp(t, `^lbforge \S+\n$`, out)
}

func TestHelp(t *testing.T) {
	out, _, err := execute(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "Usage:")
	assert.Contains(t, out, "build")
}

func TestBuild(t *testing.T) {
	dir := testutil.WriteFiles(t, map[string]string{
		"main.lbf": `
			let base = 8000
			backend "web" {
			    for i in [1..2] { server "w${i}" { address: "10.0.0.${i}"; port: ${base + i} } }
			}
		`,
	})

	out, errOut, err := execute(t, "build", dir, "--verify")
	require.NoError(t, err, errOut)
	assert.Equal(t, "backend web\n    server w1 10.0.0.1:8001\n    server w2 10.0.0.2:8002\n", out)
	assert.Contains(t, errOut, "OK 1 file, 1 section")
}

func TestBuild_OutputFlag(t *testing.T) {
	dir := testutil.WriteFiles(t, map[string]string{"main.lbf": `global { maxconn: 100 }`})
	output := filepath.Join(t.TempDir(), "haproxy.cfg")

	out, _, err := execute(t, "build", "-o", output, dir)
	require.NoError(t, err)
	assert.Empty(t, out)
	b, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "global\n    maxconn 100\n", string(b))
}

func TestCompileErrorsExitWithFailure(t *testing.T) {
	dir := testutil.WriteFiles(t, map[string]string{"main.lbf": `backend "b" { balance: fastest }`})

	for _, command := range []string{"build", "check"} {
		t.Run(command, func(t *testing.T) {
			out, errOut, err := execute(t, command, dir)
			require.Error(t, err)
			assert.Equal(t, CodeFailure, exitCode(t, err))
			assert.Empty(t, out)
			assert.Contains(t, errOut, "Error: Unsupported value")
		})
	}
}

func TestUsageErrors(t *testing.T) {
	dir := testutil.WriteFiles(t, map[string]string{"main.lbf": `global {}`})
	tests := map[string][]string{
		"unknown flag":    {"build", "--nope", dir},
		"unknown command": {"compile", dir},
		"no paths":        {"build"},
		"bad env entry":   {"build", "--env", "NOVALUE", dir},
		"bad log level":   {"check", "--log-level", "loud", dir},
		"bad profile":     {"check", "--profile", "block", dir},
		"watch needs -o":  {"watch", dir},
		"version args":    {"version", "extra"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := execute(t, args...)
			require.Error(t, err)
			assert.Equal(t, CodeUsage, exitCode(t, err))
		})
	}
}

func TestMissingInputIsAFailure(t *testing.T) {
	_, _, err := execute(t, "check", filepath.Join(t.TempDir(), "missing.lbf"))
	require.Error(t, err)
	assert.Equal(t, CodeFailure, exitCode(t, err))
}

func TestConfigFile(t *testing.T) {
	dir := testutil.WriteFiles(t, map[string]string{
		"conf/main.lbf": `global { user: ${env.LB_USER}; maxconn: ${env.LB_MAXCONN:-10} }`,
	})
	output := filepath.Join(dir, "haproxy.cfg")
	configPath := filepath.Join(dir, "lbforge.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(testutil.Unindent(`
		paths: [`+filepath.Join(dir, "conf")+`]
		output: `+output+`
		env:
		  LB_USER: from-file
		  LB_MAXCONN: ""
		empty_env_as_unset: true
	`)), 0o644))

	t.Run("file settings", func(t *testing.T) {
		_, errOut, err := execute(t, "build", "--config", configPath)
		require.NoError(t, err, errOut)
		b, err := os.ReadFile(output)
		require.NoError(t, err)
		assert.Equal(t, "global\n    maxconn 10\n    user from-file\n", string(b))
	})

	t.Run("flags win", func(t *testing.T) {
		out, errOut, err := execute(t, "build", "--config", configPath, "--env", "LB_USER=from-flag", "-o", "-")
		require.NoError(t, err, errOut)
		assert.Equal(t, "global\n    maxconn 10\n    user from-flag\n", out)
	})
}

func TestEnvironmentLayers(t *testing.T) {
	g := &globalOptions{
		environ: func() []string { return []string{"A=process", "B=process", "C=process", "=ignored"} },
		env:     []string{"C=flag", "D=x=y"},
	}
	env, err := g.environment(map[string]string{"B": "file", "C": "file"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "process", "B": "file", "C": "flag", "D": "x=y"}, env)
}
