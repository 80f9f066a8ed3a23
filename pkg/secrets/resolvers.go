// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package secrets

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/kraklabs/cuenv/pkg/manifest"
)

// EnvResolver resolves a secret ref from the process environment: the
// ref's Path names the environment variable to read. Used for local
// development and CI runners that inject secrets as plain env vars ahead
// of time.
type EnvResolver struct{}

func (EnvResolver) Name() string { return "env" }

func (EnvResolver) Resolve(_ context.Context, ref manifest.SecretRef) (string, error) {
	name := ref.Path
	if name == "" {
		name = ref.EnvVar
	}
	v, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("secrets: env var %q is not set", name)
	}
	return v, nil
}

// OnePasswordResolver resolves secrets via the `op` CLI in "read" mode,
// the same CLI-mode-first idiom the original implementation's AWS/vault
// resolvers use when no SDK credentials are present in-process.
type OnePasswordResolver struct {
	// Bin overrides the op binary name/path, defaulting to "op".
	Bin string
}

func (OnePasswordResolver) Name() string { return "onepassword" }

func (r OnePasswordResolver) Resolve(ctx context.Context, ref manifest.SecretRef) (string, error) {
	uri := ref.URI
	if uri == "" {
		uri = ref.Path
	}
	if !strings.HasPrefix(uri, "op://") {
		return "", fmt.Errorf("secrets: onepassword resolver requires an op:// URI, got %q", uri)
	}

	bin := r.Bin
	if bin == "" {
		bin = "op"
	}

	cmd := exec.CommandContext(ctx, bin, "read", uri)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("secrets: op read %s: %w: %s", uri, err, strings.TrimSpace(stderr.String()))
	}

	return strings.TrimRight(stdout.String(), "\n"), nil
}
