// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package ci

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveTransitiveDeps_Simple(t *testing.T) {
	deps := map[string][]string{
		"a": {"b"},
		"b": {"c"},
		"c": {},
	}

	got := ResolveTransitiveDeps(map[string]struct{}{"a": {}}, deps)
	require.Equal(t, map[string]struct{}{"a": {}, "b": {}, "c": {}}, got)
}

func TestResolveTransitiveDeps_Diamond(t *testing.T) {
	deps := map[string][]string{
		"a": {"b", "c"},
		"b": {"d"},
		"c": {"d"},
		"d": {},
	}

	got := ResolveTransitiveDeps(map[string]struct{}{"a": {}}, deps)
	require.Equal(t, map[string]struct{}{"a": {}, "b": {}, "c": {}, "d": {}}, got)
}

func TestFilterTasks_ExactMatch(t *testing.T) {
	tasks := []Task{
		{ID: "build", DependsOn: []string{"setup"}},
		{ID: "setup"},
		{ID: "test", DependsOn: []string{"build"}},
	}

	got := FilterTasks([]string{"build"}, tasks)
	require.Equal(t, []string{"build", "setup"}, SortedTaskIDs(got))
}

func TestFilterTasks_PrefixExpansion(t *testing.T) {
	tasks := []Task{
		{ID: "setup"},
		{ID: "build.linux", DependsOn: []string{"setup"}},
		{ID: "build.macos", DependsOn: []string{"setup"}},
		{ID: "test", DependsOn: []string{"build.linux", "build.macos"}},
	}

	got := FilterTasks([]string{"build"}, tasks)
	require.Equal(t, []string{"build.linux", "build.macos", "setup"}, SortedTaskIDs(got))
}

func TestFilterTasks_UnresolvedNameKeptForDependencyResolution(t *testing.T) {
	tasks := []Task{
		{ID: "setup"},
	}

	got := FilterTasks([]string{"nonexistent"}, tasks)
	// "nonexistent" matches nothing and has no deps entry, so it resolves
	// to a dangling ID that filters out of the known-task set entirely.
	require.Empty(t, got)
}

func TestExpandTaskGroups_Simple(t *testing.T) {
	irTasks := []Task{
		{ID: "build.linux"},
		{ID: "build.macos"},
	}

	pipelineTasks := []PipelineTask{{Simple: "build"}}
	got := ExpandTaskGroups(pipelineTasks, irTasks, map[string]struct{}{})

	var names []string
	for _, pt := range got {
		names = append(names, pt.TaskName())
		assert.Nil(t, pt.Matrix)
	}
	require.ElementsMatch(t, []string{"build.linux", "build.macos"}, names)
}

func TestExpandTaskGroups_MatrixInheritance(t *testing.T) {
	irTasks := []Task{
		{ID: "build.linux"},
		{ID: "build.macos"},
		{ID: "package.linux", DependsOn: []string{"build.linux"}},
	}

	pipelineTasks := []PipelineTask{
		{Matrix: &MatrixTask{Task: "build", Artifacts: []string{"binary"}}},
	}

	got := ExpandTaskGroups(pipelineTasks, irTasks, map[string]struct{}{})
	require.Len(t, got, 2)
	for _, pt := range got {
		require.NotNil(t, pt.Matrix)
		require.Equal(t, []string{"binary"}, pt.Matrix.Artifacts)
	}
}

func TestExpandTaskGroups_DependentSiblingBecomesSimple(t *testing.T) {
	irTasks := []Task{
		{ID: "deploy.linux"},
		{ID: "deploy.macos", DependsOn: []string{"deploy.linux"}},
	}

	pipelineTasks := []PipelineTask{
		{Matrix: &MatrixTask{Task: "deploy"}},
	}

	got := ExpandTaskGroups(pipelineTasks, irTasks, map[string]struct{}{})
	require.Len(t, got, 2)

	byID := make(map[string]PipelineTask, len(got))
	for _, pt := range got {
		byID[pt.TaskName()] = pt
	}

	require.NotNil(t, byID["deploy.linux"].Matrix)
	require.Nil(t, byID["deploy.macos"].Matrix)
}

func TestExpandTaskGroups_ExplicitMemberExcluded(t *testing.T) {
	irTasks := []Task{
		{ID: "build.linux"},
		{ID: "build.macos"},
	}

	pipelineTasks := []PipelineTask{{Simple: "build"}}
	explicit := map[string]struct{}{"build.macos": {}}

	got := ExpandTaskGroups(pipelineTasks, irTasks, explicit)

	var names []string
	for _, pt := range got {
		names = append(names, pt.TaskName())
	}
	require.Equal(t, []string{"build.linux"}, names)
}

func TestExpandTaskGroups_NonGroupNamePassesThrough(t *testing.T) {
	irTasks := []Task{{ID: "lint"}}
	pipelineTasks := []PipelineTask{{Simple: "lint"}}

	got := ExpandTaskGroups(pipelineTasks, irTasks, map[string]struct{}{})
	require.Equal(t, pipelineTasks, got)
}
