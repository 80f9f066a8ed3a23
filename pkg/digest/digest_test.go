// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package digest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeTaskDigest_Deterministic(t *testing.T) {
	in := TaskDigestInput{
		Command: []string{"cargo", "build"},
		Env:     map[string]string{"RUST_LOG": "debug"},
		Inputs:  []string{"src/**/*.rs"},
	}

	d1 := ComputeTaskDigest(in)
	d2 := ComputeTaskDigest(in)

	require.Equal(t, d1, d2)
	require.True(t, strings.HasPrefix(d1, "sha256:"))
}

func TestComputeTaskDigest_ChangesWithCommand(t *testing.T) {
	d1 := ComputeTaskDigest(TaskDigestInput{Command: []string{"echo"}})
	d2 := ComputeTaskDigest(TaskDigestInput{Command: []string{"ls"}})
	require.NotEqual(t, d1, d2)
}

func TestComputeTaskDigest_ChangesWithEnv(t *testing.T) {
	d1 := ComputeTaskDigest(TaskDigestInput{Command: []string{"echo"}, Env: map[string]string{"KEY": "value1"}})
	d2 := ComputeTaskDigest(TaskDigestInput{Command: []string{"echo"}, Env: map[string]string{"KEY": "value2"}})
	require.NotEqual(t, d1, d2)
}

func TestComputeTaskDigest_EnvOrderIndependent(t *testing.T) {
	env1 := map[string]string{"A": "1", "B": "2"}
	env2 := map[string]string{"B": "2", "A": "1"}

	d1 := ComputeTaskDigest(TaskDigestInput{Command: []string{"echo"}, Env: env1})
	d2 := ComputeTaskDigest(TaskDigestInput{Command: []string{"echo"}, Env: env2})

	require.Equal(t, d1, d2)
}

func TestComputeTaskDigest_SecretFingerprintsChangeDigest(t *testing.T) {
	base := TaskDigestInput{Command: []string{"deploy"}, Salt: "system-wide-salt"}

	in1 := base
	in1.SecretFingerprints = map[string]string{"API_KEY": "secret123"}
	in2 := base
	in2.SecretFingerprints = map[string]string{"API_KEY": "secret456"}

	require.NotEqual(t, ComputeTaskDigest(in1), ComputeTaskDigest(in2))
}

func TestComputeTaskDigest_SecretFingerprintsDeterministic(t *testing.T) {
	in := TaskDigestInput{
		Command:            []string{"deploy"},
		Salt:               "system-wide-salt",
		SecretFingerprints: map[string]string{"API_KEY": "secret123"},
	}
	require.Equal(t, ComputeTaskDigest(in), ComputeTaskDigest(in))
}

func TestComputeTaskDigest_ImpurityUUIDDiffers(t *testing.T) {
	b1 := NewBuilder()
	b1.AddCommand([]string{"echo"})
	b1.AddImpurityUUID("550e8400-e29b-41d4-a716-446655440000")
	d1 := b1.Finalize()

	b2 := NewBuilder()
	b2.AddCommand([]string{"echo"})
	b2.AddImpurityUUID("550e8400-e29b-41d4-a716-446655440001")
	d2 := b2.Finalize()

	require.NotEqual(t, d1, d2)
}

func TestComputeTaskDigest_Format(t *testing.T) {
	d := ComputeTaskDigest(TaskDigestInput{Command: []string{"echo", "hi"}})
	require.True(t, strings.HasPrefix(d, "sha256:"))
	require.Len(t, d, len("sha256:")+64)
}

func TestHashDir_DeterministicAcrossOrder(t *testing.T) {
	a := DirNode{
		Name: "root",
		Files: []FileNode{
			{Name: "b.txt", Size: 2, SHA256: "bb"},
			{Name: "a.txt", Size: 1, SHA256: "aa"},
		},
	}
	b := DirNode{
		Name: "root",
		Files: []FileNode{
			{Name: "a.txt", Size: 1, SHA256: "aa"},
			{Name: "b.txt", Size: 2, SHA256: "bb"},
		},
	}
	require.Equal(t, HashDir(a), HashDir(b))
}

func TestHashDir_ChangesWithContent(t *testing.T) {
	a := DirNode{Files: []FileNode{{Name: "a.txt", Size: 1, SHA256: "aa"}}}
	b := DirNode{Files: []FileNode{{Name: "a.txt", Size: 1, SHA256: "ab"}}}
	require.NotEqual(t, HashDir(a), HashDir(b))
}

func TestHashDir_NestedDirectoriesFold(t *testing.T) {
	leaf := DirNode{Name: "sub", Files: []FileNode{{Name: "x", Size: 1, SHA256: "x"}}}
	parent1 := DirNode{Name: "root", SubDirs: []DirNode{leaf}}
	parent2 := DirNode{Name: "root", SubDirs: []DirNode{{Name: "sub", Files: []FileNode{{Name: "x", Size: 1, SHA256: "y"}}}}}
	require.NotEqual(t, HashDir(parent1), HashDir(parent2))
}
