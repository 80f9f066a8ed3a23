// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package coordinator

import (
	"hash/fnv"
	"os"
	"path/filepath"
	"strconv"
)

// runtimeDir returns the directory holding the coordinator's socket,
// PID, and lock files for moduleRoot: $XDG_RUNTIME_DIR (or a per-user
// tmp fallback)/cuenv/<hash of moduleRoot>.
func runtimeDir(moduleRoot string) string {
	base := os.Getenv("XDG_RUNTIME_DIR")
	if base == "" {
		base = filepath.Join(os.TempDir(), fmt_uid())
	}
	return filepath.Join(base, "cuenv", moduleKey(moduleRoot))
}

func fmt_uid() string {
	return "cuenv-" + strconv.Itoa(os.Getuid())
}

// moduleKey derives a short, filesystem-safe identifier for moduleRoot so
// distinct modules get distinct coordinator sockets. Not used for
// content-addressing or security (pkg/digest/pkg/resolve use
// crypto/sha256 for that); a fast non-cryptographic hash is sufficient
// here to avoid path-length issues with a full module path.
func moduleKey(moduleRoot string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(moduleRoot))
	return strconv.FormatUint(uint64(h.Sum32()), 10)
}

// SocketPath returns the Unix domain socket path for moduleRoot's
// coordinator: $CUENV_COORDINATOR_SOCKET when set, otherwise a
// coordinator.sock file in moduleRoot's runtime directory.
func SocketPath(moduleRoot string) string {
	if p := os.Getenv("CUENV_COORDINATOR_SOCKET"); p != "" {
		return p
	}
	return filepath.Join(runtimeDir(moduleRoot), "coordinator.sock")
}

// PIDPath returns the file holding the coordinator's PID for moduleRoot.
func PIDPath(moduleRoot string) string {
	return filepath.Join(runtimeDir(moduleRoot), "coordinator.pid")
}

// LockPath returns the spawn-lock file path for moduleRoot, preventing a
// thundering herd of concurrent `cuenv task` invocations from each
// starting their own coordinator.
func LockPath(moduleRoot string) string {
	return filepath.Join(runtimeDir(moduleRoot), "coordinator.lock")
}

func ensureRuntimeDir(moduleRoot string) error {
	return os.MkdirAll(runtimeDir(moduleRoot), 0o755)
}
