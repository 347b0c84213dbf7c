package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/framegraph/internal/cli"
	"github.com/vk/framegraph/internal/testutil"
)

func TestRun_Pipeline(t *testing.T) {
	t.Parallel()

	dir := testutil.WriteFiles(t, map[string]string{"deferred.hcl": testutil.DeferredPipeline})
	out, logs := &bytes.Buffer{}, &bytes.Buffer{}

	err := run(context.Background(), out, logs, []string{"run", dir, "--frames", "2"})

	require.NoError(t, err)
	require.Contains(t, out.String(), "Culled: debug_overlay")
	require.Contains(t, out.String(), "Frames: 2, pass runs: 6")
	require.Contains(t, logs.String(), "Execution finished.")
}

func TestRun_LoadFailure(t *testing.T) {
	t.Parallel()

	dir := testutil.WriteFiles(t, map[string]string{"main.hcl": `task "x" {`})

	err := run(context.Background(), &bytes.Buffer{}, &bytes.Buffer{}, []string{"plan", filepath.Join(dir, "main.hcl")})

	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to load pipeline")
	var exitErr *cli.ExitError
	require.False(t, errors.As(err, &exitErr), "load failures are not usage errors")
}

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	err := run(context.Background(), out, &bytes.Buffer{}, []string{"-h"})

	require.NoError(t, err, "run() should return a nil error for help")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	err := run(context.Background(), &bytes.Buffer{}, &bytes.Buffer{}, []string{"--this-is-not-a-valid-flag"})

	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 2, exitErr.Code)
	require.Contains(t, exitErr.Message, "unknown flag: --this-is-not-a-valid-flag")
}
