// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package coordinator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSpawnLock_AcquireRelease(t *testing.T) {
	root := newTestModuleRoot(t)

	lock, err := AcquireSpawnLock(root)
	require.NoError(t, err)
	require.NoError(t, lock.Release())
}

func TestTryAcquireSpawnLock_ExclusiveWhileHeld(t *testing.T) {
	root := newTestModuleRoot(t)

	lock, err := AcquireSpawnLock(root)
	require.NoError(t, err)
	defer lock.Release()

	_, ok, err := TryAcquireSpawnLock(root)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTryAcquireSpawnLock_SucceedsAfterRelease(t *testing.T) {
	root := newTestModuleRoot(t)

	lock, err := AcquireSpawnLock(root)
	require.NoError(t, err)
	require.NoError(t, lock.Release())

	lock2, ok, err := TryAcquireSpawnLock(root)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, lock2.Release())
}
