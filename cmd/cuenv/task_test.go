// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"testing"

	"github.com/kraklabs/cuenv/pkg/cache"
	"github.com/kraklabs/cuenv/pkg/graph"
	"github.com/kraklabs/cuenv/pkg/manifest"
	"github.com/stretchr/testify/require"
)

func buildNode(fqdn, command string, deps ...string) *graph.Node {
	return &graph.Node{
		FQDN:      fqdn,
		DependsOn: deps,
		Task: &manifest.Task{
			Command:     command,
			ProjectRoot: "/tmp",
		},
	}
}

func TestSelectTasks_PullsInTransitiveDependencies(t *testing.T) {
	g := graph.New()
	g.AddNode(buildNode("task:api:build", "go"))
	g.AddNode(buildNode("task:api:test", "go", "task:api:build"))
	g.AddNode(buildNode("task:web:build", "npm"))

	selected, err := selectTasks(g, []string{"task:api:test"})
	require.NoError(t, err)

	require.Equal(t, 2, selected.Len())
	_, hasBuild := selected.Node("task:api:build")
	_, hasTest := selected.Node("task:api:test")
	_, hasWeb := selected.Node("task:web:build")
	require.True(t, hasBuild)
	require.True(t, hasTest)
	require.False(t, hasWeb)
}

func TestSelectTasks_NoMatchErrors(t *testing.T) {
	g := graph.New()
	g.AddNode(buildNode("task:api:build", "go"))

	_, err := selectTasks(g, []string{"task:nonexistent:thing"})
	require.Error(t, err)
}

func TestParseCachePolicy(t *testing.T) {
	require.Equal(t, cache.PolicyNormal, parseCachePolicy(""))
	require.Equal(t, cache.PolicyNormal, parseCachePolicy("normal"))
	require.Equal(t, cache.PolicyReadonly, parseCachePolicy("readonly"))
	require.Equal(t, cache.PolicyWriteonly, parseCachePolicy("writeonly"))
	require.Equal(t, cache.PolicyDisabled, parseCachePolicy("disabled"))
}
