// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package graph

import (
	"testing"

	"github.com/kraklabs/cuenv/pkg/manifest"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTaskName(t *testing.T) {
	require.Equal(t, "build.test", NormalizeTaskName("build:test"))
	require.Equal(t, "build.test", NormalizeTaskName("build.test"))
	require.Equal(t, "simple", NormalizeTaskName("simple"))
}

func TestTaskFQDN(t *testing.T) {
	require.Equal(t, "task:myproject:build", TaskFQDN("myproject", "build"))
	require.Equal(t, "task:proj:test.unit", TaskFQDN("proj", "test:unit"))
}

func TestCanonicalizeDepForTaskName_Absolute(t *testing.T) {
	require.Equal(t, "deploy.prod", CanonicalizeDepForTaskName("deploy.prod", "build.test"))
	require.Equal(t, "deploy.prod", CanonicalizeDepForTaskName("deploy:prod", "build.test"))
}

func TestCanonicalizeDepForTaskName_Relative(t *testing.T) {
	require.Equal(t, "build.lint", CanonicalizeDepForTaskName("lint", "build.test"))
	require.Equal(t, "fmt.check", CanonicalizeDepForTaskName("check", "fmt.fix"))
}

func TestCanonicalizeDepForTaskName_TopLevel(t *testing.T) {
	require.Equal(t, "other", CanonicalizeDepForTaskName("other", "build"))
}

func TestComputeProjectID_WithName(t *testing.T) {
	p := manifest.Project{Name: "myapp"}
	require.Equal(t, "myapp", ComputeProjectID(p, "/root/myapp", "/root"))
}

func TestComputeProjectID_PathFallback(t *testing.T) {
	p := manifest.Project{}
	require.Equal(t, "path.services.api", ComputeProjectID(p, "/root/services/api", "/root"))
}

func TestNormalizeDep_AlreadyFQDN(t *testing.T) {
	got := NormalizeDep("task:proj:build", "default", nil)
	require.Equal(t, "task:proj:build", got)
}

func TestNormalizeDep_CrossProjectRef(t *testing.T) {
	byName := map[string]string{"api": "path.services.api"}
	got := NormalizeDep("#api:build", "default", byName)
	require.Equal(t, "task:path.services.api:build", got)
}

func TestNormalizeDep_CrossProjectRefUnknown(t *testing.T) {
	got := NormalizeDep("#unknown:build", "default", map[string]string{})
	require.Equal(t, "task:unknown:build", got)
}

func TestNormalizeDep_SimpleName(t *testing.T) {
	got := NormalizeDep("lint", "myproject", nil)
	require.Equal(t, "task:myproject:lint", got)
}

func TestNormalizeDefinitionDeps_Single(t *testing.T) {
	def := manifest.TaskDefinition{Task: &manifest.Task{
		DependsOn:   []string{"lint", "#other:build"},
		ProjectRoot: "/root/app",
	}}
	byRoot := map[string]string{"/root/app": "app"}
	byName := map[string]string{"other": "other-id"}

	NormalizeDefinitionDeps(&def, byRoot, byName, "default")

	require.Equal(t, []string{"task:app:lint", "task:other-id:build"}, def.Task.DependsOn)
}

func TestNormalizeDefinitionDeps_Group(t *testing.T) {
	def := manifest.TaskDefinition{Group: &manifest.TaskGroup{
		Sequential: []manifest.TaskDefinition{
			{Task: &manifest.Task{DependsOn: []string{"setup"}}},
		},
	}}

	NormalizeDefinitionDeps(&def, nil, nil, "app")

	require.Equal(t, []string{"task:app:setup"}, def.Group.Sequential[0].Task.DependsOn)
}

func TestSetDefaultProjectRoot(t *testing.T) {
	def := manifest.TaskDefinition{Group: &manifest.TaskGroup{
		Parallel: map[string]manifest.TaskDefinition{
			"a": {Task: &manifest.Task{}},
			"b": {Task: &manifest.Task{ProjectRoot: "/already/set"}},
		},
	}}

	SetDefaultProjectRoot(&def, "/default/root")

	require.Equal(t, "/default/root", def.Group.Parallel["a"].Task.ProjectRoot)
	require.Equal(t, "/already/set", def.Group.Parallel["b"].Task.ProjectRoot)
}
