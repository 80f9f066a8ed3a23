// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package coordinator

import (
	"fmt"
	"os"
	"syscall"
	"time"
)

// SpawnLock is an exclusive, flock-based file lock guarding coordinator
// startup for one module, so concurrent `cuenv task` invocations don't
// each spawn a competing coordinator process.
type SpawnLock struct {
	file *os.File
}

// AcquireSpawnLock blocks until it holds moduleRoot's spawn lock.
func AcquireSpawnLock(moduleRoot string) (*SpawnLock, error) {
	if err := ensureRuntimeDir(moduleRoot); err != nil {
		return nil, err
	}

	path := LockPath(moduleRoot)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("coordinator: opening lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("coordinator: acquiring lock: %w", err)
	}

	if err := f.Truncate(0); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("coordinator: truncating lock file: %w", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("coordinator: seeking lock file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%d %d\n", os.Getpid(), time.Now().Unix()); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("coordinator: writing lock file: %w", err)
	}

	return &SpawnLock{file: f}, nil
}

// TryAcquireSpawnLock attempts a non-blocking lock acquisition, returning
// ok=false if another process currently holds it.
func TryAcquireSpawnLock(moduleRoot string) (lock *SpawnLock, ok bool, err error) {
	if err := ensureRuntimeDir(moduleRoot); err != nil {
		return nil, false, err
	}

	path := LockPath(moduleRoot)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, false, fmt.Errorf("coordinator: opening lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		if err == syscall.EWOULDBLOCK {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("coordinator: flock: %w", err)
	}

	if _, err := fmt.Fprintf(f, "%d %d\n", os.Getpid(), time.Now().Unix()); err != nil {
		_ = f.Close()
		return nil, false, fmt.Errorf("coordinator: writing lock file: %w", err)
	}

	return &SpawnLock{file: f}, true, nil
}

// Release unlocks and closes the lock file.
func (l *SpawnLock) Release() error {
	if l.file == nil {
		return nil
	}
	_ = syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	return l.file.Close()
}
