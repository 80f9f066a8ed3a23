// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package coordinator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetect_NotRunningWhenNoSocket(t *testing.T) {
	root := newTestModuleRoot(t)
	require.Equal(t, StatusNotRunning, Detect(context.Background(), root))
}

func TestDetect_RunningWhenServerUp(t *testing.T) {
	root := newTestModuleRoot(t)
	cfg := DefaultConfig()
	cfg.IdleTimeout = 0

	_, stop := startTestServer(t, root, cfg)
	defer stop()

	require.Equal(t, StatusRunning, Detect(context.Background(), root))
}

func TestPaths_DistinctModulesGetDistinctSockets(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())
	require.NotEqual(t, SocketPath("/repo/a"), SocketPath("/repo/b"))
}
