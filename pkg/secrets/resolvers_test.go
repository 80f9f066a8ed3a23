// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package secrets

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/kraklabs/cuenv/pkg/manifest"
	"github.com/stretchr/testify/require"
)

func TestEnvResolver_ReadsNamedVar(t *testing.T) {
	t.Setenv("CUENV_TEST_SECRET", "hunter2")

	r := EnvResolver{}
	v, err := r.Resolve(context.Background(), manifest.SecretRef{EnvVar: "API_KEY", Path: "CUENV_TEST_SECRET"})
	require.NoError(t, err)
	require.Equal(t, "hunter2", v)
}

func TestEnvResolver_MissingVarErrors(t *testing.T) {
	r := EnvResolver{}
	_, err := r.Resolve(context.Background(), manifest.SecretRef{EnvVar: "API_KEY", Path: "CUENV_TEST_DOES_NOT_EXIST"})
	require.Error(t, err)
}

func TestOnePasswordResolver_RejectsNonOpURI(t *testing.T) {
	r := OnePasswordResolver{}
	_, err := r.Resolve(context.Background(), manifest.SecretRef{EnvVar: "X", URI: "vault://secret/x"})
	require.Error(t, err)
}

func TestOnePasswordResolver_InvokesOpBinary(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake op shim is a POSIX shell script")
	}

	dir := t.TempDir()
	script := filepath.Join(dir, "fake-op")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho -n s3cr3t\n"), 0o755))

	r := OnePasswordResolver{Bin: script}
	v, err := r.Resolve(context.Background(), manifest.SecretRef{EnvVar: "X", URI: "op://vault/item/field"})
	require.NoError(t, err)
	require.Equal(t, "s3cr3t", v)
}
