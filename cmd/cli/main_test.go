package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/specialistvlad/lbforge/internal/cli"
	"github.com/specialistvlad/lbforge/internal/testutil"
	"github.com/stretchr/testify/require"
)

func TestRun_Build(t *testing.T) {
	t.Parallel()

	dir := testutil.WriteFiles(t, map[string]string{
		"main.lbf": `
			frontend "www" {
			    bind "*:80" {}
			    default_backend: app
			}
			backend "app" { server "a" { address: "10.0.0.1"; port: 80 } }
		`,
	})
	out, errW := &bytes.Buffer{}, &bytes.Buffer{}

	err := run(context.Background(), out, errW, []string{"build", dir})

	require.NoError(t, err, errW.String())
	require.Contains(t, out.String(), "frontend www\n")
	require.Contains(t, out.String(), "    server a 10.0.0.1:80\n")
}

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	err := run(context.Background(), out, &bytes.Buffer{}, []string{"-h"})

	require.NoError(t, err, "run() should return a nil error when help is requested")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	err := run(context.Background(), &bytes.Buffer{}, &bytes.Buffer{}, []string{"--this-is-not-a-valid-flag"})

	require.Error(t, err, "run() should return an error when argument parsing fails")
	var exitErr *cli.ExitError
	require.True(t, errors.As(err, &exitErr))
	require.Equal(t, cli.CodeUsage, exitErr.Code)
	require.Contains(t, err.Error(), "unknown flag: --this-is-not-a-valid-flag")
}

func TestRun_SyntaxErrorFails(t *testing.T) {
	t.Parallel()

	dir := testutil.WriteFiles(t, map[string]string{
		"main.lbf": `
			backend "a" {
			    server "s" { address: "10.0.0.1" }
		`,
	})
	errW := &bytes.Buffer{}

	err := run(context.Background(), &bytes.Buffer{}, errW, []string{"check", dir})

	require.Error(t, err)
	var exitErr *cli.ExitError
	require.True(t, errors.As(err, &exitErr))
	require.Equal(t, cli.CodeFailure, exitErr.Code)
	require.Contains(t, errW.String(), "Error: Unclosed block")
}
