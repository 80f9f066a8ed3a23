// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package ci

import "sort"

// FilterTasks narrows irTasks down to the ones a pipeline actually needs:
// pipelineTasks names (exact IDs or task-group prefixes) are expanded,
// then every transitive dependency of the expanded set is pulled in too.
func FilterTasks(pipelineTasks []string, irTasks []Task) []Task {
	byID := make(map[string]Task, len(irTasks))
	for _, t := range irTasks {
		byID[t.ID] = t
	}

	expanded := make(map[string]struct{})
	for _, name := range pipelineTasks {
		if _, exact := byID[name]; exact {
			expanded[name] = struct{}{}
			continue
		}

		prefix := name + "."
		var matched bool
		for _, t := range irTasks {
			if hasPrefix(t.ID, prefix) {
				expanded[t.ID] = struct{}{}
				matched = true
			}
		}
		if !matched {
			expanded[name] = struct{}{} // kept for dependency resolution even if unresolved
		}
	}

	deps := make(map[string][]string, len(irTasks))
	for _, t := range irTasks {
		deps[t.ID] = t.DependsOn
	}

	needed := ResolveTransitiveDeps(expanded, deps)

	out := make([]Task, 0, len(needed))
	for _, t := range irTasks {
		if _, ok := needed[t.ID]; ok {
			out = append(out, t)
		}
	}
	return out
}

// ResolveTransitiveDeps expands initial into the set of every task
// reachable by following deps edges, including initial itself.
func ResolveTransitiveDeps(initial map[string]struct{}, deps map[string][]string) map[string]struct{} {
	all := make(map[string]struct{}, len(initial))
	frontier := make([]string, 0, len(initial))
	for id := range initial {
		all[id] = struct{}{}
		frontier = append(frontier, id)
	}

	for len(frontier) > 0 {
		id := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]

		for _, dep := range deps[id] {
			if _, seen := all[dep]; !seen {
				all[dep] = struct{}{}
				frontier = append(frontier, dep)
			}
		}
	}
	return all
}

// PipelineTask is a pipeline-declared reference to a Task, either a
// plain name/prefix (Simple) or a matrix expansion request (Matrix).
type PipelineTask struct {
	Simple string // empty if this is a Matrix entry
	Matrix *MatrixTask
}

// TaskName returns the referenced task name or prefix, whichever variant
// this PipelineTask wraps.
func (p PipelineTask) TaskName() string {
	if p.Matrix != nil {
		return p.Matrix.Task
	}
	return p.Simple
}

// MatrixTask requests a task be expanded across a parameter matrix (e.g.
// build across {os: [linux, macos]}), optionally collecting named
// artifacts from each matrix cell.
type MatrixTask struct {
	Task      string
	Artifacts []string
	Params    map[string]string
	Matrix    map[string][]string
}

// ExpandTaskGroups expands every pipelineTasks entry that names a task
// group (a prefix match against irTasks, e.g. "build" matching
// "build.linux"/"build.macos") into its member tasks. Entry-point member
// tasks (those with no dependency on a sibling in the same group) keep
// their Matrix configuration; tasks that depend on a sibling become
// Simple, since they run after — not as part of — the matrix fan-out.
func ExpandTaskGroups(pipelineTasks []PipelineTask, irTasks []Task, explicitTaskNames map[string]struct{}) []PipelineTask {
	ids := make(map[string]struct{}, len(irTasks))
	for _, t := range irTasks {
		ids[t.ID] = struct{}{}
	}

	var out []PipelineTask
	for _, pt := range pipelineTasks {
		name := pt.TaskName()

		if _, exact := ids[name]; exact {
			out = append(out, pt)
			continue
		}

		prefix := name + "."
		var subTasks []Task
		for _, t := range irTasks {
			if !hasPrefix(t.ID, prefix) {
				continue
			}
			if _, explicit := explicitTaskNames[t.ID]; explicit {
				continue
			}
			subTasks = append(subTasks, t)
		}

		if len(subTasks) == 0 {
			out = append(out, pt)
			continue
		}

		groupIDs := make(map[string]struct{}, len(subTasks))
		for _, t := range subTasks {
			groupIDs[t.ID] = struct{}{}
		}

		for _, t := range subTasks {
			hasInternalDep := false
			for _, dep := range t.DependsOn {
				if _, ok := groupIDs[dep]; ok {
					hasInternalDep = true
					break
				}
			}

			if pt.Matrix == nil {
				out = append(out, PipelineTask{Simple: t.ID})
				continue
			}

			if hasInternalDep {
				out = append(out, PipelineTask{Simple: t.ID})
			} else {
				out = append(out, PipelineTask{Matrix: &MatrixTask{
					Task:      t.ID,
					Artifacts: pt.Matrix.Artifacts,
					Params:    pt.Matrix.Params,
					Matrix:    map[string][]string{}, // entry point: artifact-aggregation mode
				}})
			}
		}
	}

	return out
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// SortedTaskIDs returns t's task IDs sorted, a convenience used by tests
// and emitters that need deterministic output.
func SortedTaskIDs(tasks []Task) []string {
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	sort.Strings(ids)
	return ids
}
