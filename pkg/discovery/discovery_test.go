// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package discovery

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeCue installs a stub `cue` binary on PATH that prints a fixed
// project JSON document, standing in for the real CUE evaluator.
func fakeCue(t *testing.T, json string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake cue shim is a POSIX shell script")
	}

	dir := t.TempDir()
	script := filepath.Join(dir, "cue")
	body := "#!/bin/sh\ncat <<'EOF'\n" + json + "\nEOF\n"
	require.NoError(t, os.WriteFile(script, []byte(body), 0o755))

	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func TestEvaluateProject_DecodesCueExportOutput(t *testing.T) {
	fakeCue(t, `{"name":"api","tasks":{"build":{"task":{"command":"go","args":["build","./..."]}}}}`)

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "env.cue"), []byte("name: \"api\""), 0o644))

	proj, err := EvaluateProject(context.Background(), root)
	require.NoError(t, err)
	require.Equal(t, "api", proj.Name)
	require.Equal(t, root, proj.Root)
	require.Contains(t, proj.Tasks, "build")
	require.Equal(t, root, proj.Tasks["build"].Task.ProjectRoot)
}

func TestDiscoverProjects_FindsNestedEnvCueFiles(t *testing.T) {
	fakeCue(t, `{"name":"svc","tasks":{}}`)

	root := t.TempDir()
	apiDir := filepath.Join(root, "services", "api")
	require.NoError(t, os.MkdirAll(apiDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(apiDir, "env.cue"), []byte("name: \"svc\""), 0o644))

	gitDir := filepath.Join(root, ".git", "nested")
	require.NoError(t, os.MkdirAll(gitDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(gitDir, "env.cue"), []byte("name: \"ignored\""), 0o644))

	eval, err := DiscoverProjects(context.Background(), root)
	require.NoError(t, err)
	require.Contains(t, eval.Projects, apiDir)
	require.Len(t, eval.Projects, 1)
}
