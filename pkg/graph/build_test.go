// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package graph

import (
	"testing"

	"github.com/kraklabs/cuenv/pkg/manifest"
	"github.com/stretchr/testify/require"
)

func TestBuild_SingleProject(t *testing.T) {
	eval := manifest.ModuleEvaluation{
		ModuleRoot: "/repo",
		Projects: map[string]manifest.Project{
			"/repo/app": {
				Name: "app",
				Tasks: map[string]manifest.TaskDefinition{
					"build": {Task: &manifest.Task{Command: "go", Args: []string{"build"}}},
					"test":  {Task: &manifest.Task{Command: "go", Args: []string{"test"}, DependsOn: []string{"build"}}},
				},
			},
		},
	}

	g, err := Build(eval)
	require.NoError(t, err)
	require.NoError(t, g.DetectCycle())

	n, ok := g.Node("task:app:test")
	require.True(t, ok)
	require.Equal(t, []string{"task:app:build"}, n.DependsOn)
}

func TestBuild_CrossProjectRef(t *testing.T) {
	eval := manifest.ModuleEvaluation{
		ModuleRoot: "/repo",
		Projects: map[string]manifest.Project{
			"/repo/lib": {
				Name: "lib",
				Tasks: map[string]manifest.TaskDefinition{
					"build": {Task: &manifest.Task{Command: "go"}},
				},
			},
			"/repo/app": {
				Name: "app",
				Tasks: map[string]manifest.TaskDefinition{
					"build": {Task: &manifest.Task{Command: "go", DependsOn: []string{"#lib:build"}}},
				},
			},
		},
	}

	g, err := Build(eval)
	require.NoError(t, err)

	n, ok := g.Node("task:app:build")
	require.True(t, ok)
	require.Equal(t, []string{"task:lib:build"}, n.DependsOn)
}

func TestBuild_SequentialGroup(t *testing.T) {
	eval := manifest.ModuleEvaluation{
		ModuleRoot: "/repo",
		Projects: map[string]manifest.Project{
			"/repo/app": {
				Name: "app",
				Tasks: map[string]manifest.TaskDefinition{
					"ci": {Group: &manifest.TaskGroup{
						Sequential: []manifest.TaskDefinition{
							{Task: &manifest.Task{Command: "lint"}},
							{Task: &manifest.Task{Command: "test"}},
						},
					}},
				},
			},
		},
	}

	g, err := Build(eval)
	require.NoError(t, err)

	_, ok := g.Node("task:app:ci.0")
	require.True(t, ok)
	second, ok := g.Node("task:app:ci.1")
	require.True(t, ok)
	require.Equal(t, []string{"task:app:ci.0"}, second.DependsOn)
}

func TestBuild_ParallelGroup(t *testing.T) {
	eval := manifest.ModuleEvaluation{
		ModuleRoot: "/repo",
		Projects: map[string]manifest.Project{
			"/repo/app": {
				Name: "app",
				Tasks: map[string]manifest.TaskDefinition{
					"checks": {Group: &manifest.TaskGroup{
						Parallel: map[string]manifest.TaskDefinition{
							"lint": {Task: &manifest.Task{Command: "lint"}},
							"test": {Task: &manifest.Task{Command: "test"}},
						},
					}},
				},
			},
		},
	}

	g, err := Build(eval)
	require.NoError(t, err)

	_, ok := g.Node("task:app:checks.lint")
	require.True(t, ok)
	_, ok = g.Node("task:app:checks.test")
	require.True(t, ok)
}

func TestBuild_PathFallbackProjectID(t *testing.T) {
	eval := manifest.ModuleEvaluation{
		ModuleRoot: "/repo",
		Projects: map[string]manifest.Project{
			"/repo/services/api": {
				Tasks: map[string]manifest.TaskDefinition{
					"build": {Task: &manifest.Task{Command: "go"}},
				},
			},
		},
	}

	g, err := Build(eval)
	require.NoError(t, err)

	_, ok := g.Node("task:path.services.api:build")
	require.True(t, ok)
}
