// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package manifest defines the in-memory shape of an evaluated CUE module:
// projects, tasks, and the dependency references between them. These types
// are decoded from the JSON a CUE evaluator emits — evaluating CUE itself
// is a foreign-process boundary outside this package's concern.
package manifest

import "fmt"

// Shell configures how a task's command line is invoked.
type Shell struct {
	Command string `json:"command,omitempty"`
	Flag    string `json:"flag,omitempty"`
}

// Task is a single executable unit: a command, its arguments, the
// environment it runs in, its declared inputs/outputs, and the tasks it
// depends on. DependsOn entries are raw references as written in CUE —
// pkg/graph normalizes them to FQDNs.
type Task struct {
	Shell       *Shell            `json:"shell,omitempty"`
	Command     string            `json:"command"`
	Args        []string          `json:"args,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	DependsOn   []string          `json:"dependsOn,omitempty"`
	Inputs      []string          `json:"inputs,omitempty"`
	Outputs     []string          `json:"outputs,omitempty"`
	Description string            `json:"description,omitempty"`

	// Secrets lists secret references this task's environment needs
	// resolved before execution (see pkg/secrets.BatchResolver).
	Secrets []SecretRef `json:"secrets,omitempty"`

	// ConcurrencyGroup names a mutual-exclusion group the scheduler
	// enforces: at most one task per group runs at a time.
	ConcurrencyGroup string `json:"concurrencyGroup,omitempty"`

	// Impure, when set, is mixed into the task's digest so repeated runs
	// never hit the cache (e.g. a task that always needs re-execution).
	Impure bool `json:"impure,omitempty"`

	// ProjectRoot is the absolute path of the project this task belongs
	// to. Set by discovery if absent in the source manifest.
	ProjectRoot string `json:"-"`
}

// SecretRef is a reference to a secret a task's environment needs,
// expressed the way a CUE manifest writes it (e.g. `op://vault/item/field`
// or `{resolver: "vault", path: "..."}`).
type SecretRef struct {
	EnvVar   string `json:"envVar"`
	URI      string `json:"uri,omitempty"`
	Resolver string `json:"resolver,omitempty"`
	Path     string `json:"path,omitempty"`
	CacheKey bool   `json:"cacheKey,omitempty"`
}

// DescriptionOrDefault returns t.Description, or a placeholder if unset.
func (t Task) DescriptionOrDefault() string {
	if t.Description == "" {
		return "No description provided"
	}
	return t.Description
}

// TaskGroup is either a sequential list or a named-parallel set of
// sub-definitions.
type TaskGroup struct {
	Sequential []TaskDefinition      `json:"sequential,omitempty"`
	Parallel   map[string]TaskDefinition `json:"parallel,omitempty"`
	DependsOn  []string              `json:"dependsOn,omitempty"`
}

// IsSequential reports whether this group runs its members in order.
func (g TaskGroup) IsSequential() bool { return g.Sequential != nil }

// IsParallel reports whether this group's members may run concurrently.
func (g TaskGroup) IsParallel() bool { return g.Parallel != nil }

// Len returns the number of member definitions.
func (g TaskGroup) Len() int {
	if g.IsSequential() {
		return len(g.Sequential)
	}
	return len(g.Parallel)
}

// TaskDefinition is a single task or a group of tasks. Exactly one of
// Task or Group is set.
type TaskDefinition struct {
	Task  *Task      `json:"task,omitempty"`
	Group *TaskGroup `json:"group,omitempty"`
}

// IsSingle reports whether this definition wraps a single Task.
func (d TaskDefinition) IsSingle() bool { return d.Task != nil }

// IsGroup reports whether this definition wraps a TaskGroup.
func (d TaskDefinition) IsGroup() bool { return d.Group != nil }

// Project is one env.cue-rooted project within the module: a stable
// identifier (or a path-derived fallback), its root directory, and its
// task tree.
type Project struct {
	Name  string                    `json:"name"`
	Root  string                    `json:"-"`
	Tasks map[string]TaskDefinition `json:"tasks"`
}

// TaskRef is a cross-project dependency reference written as
// "#project:task" in CUE.
type TaskRef struct {
	Raw string
}

// Parse splits a "#project:task" reference into its project and task
// components. Returns ok=false if Raw doesn't start with '#' or lacks a
// colon separator.
func (r TaskRef) Parse() (project, task string, ok bool) {
	if len(r.Raw) == 0 || r.Raw[0] != '#' {
		return "", "", false
	}
	body := r.Raw[1:]
	for i := 0; i < len(body); i++ {
		if body[i] == ':' {
			return body[:i], body[i+1:], true
		}
	}
	return "", "", false
}

func (r TaskRef) String() string { return r.Raw }

// ModuleEvaluation is the top-level JSON shape a CUE evaluator returns for
// an entire module: every discovered project, keyed by its root path.
type ModuleEvaluation struct {
	ModuleRoot string             `json:"moduleRoot"`
	Projects   map[string]Project `json:"projects"`
}

// Validate performs shallow structural checks a decoded evaluation should
// satisfy before it is handed to pkg/graph.
func (m ModuleEvaluation) Validate() error {
	if m.ModuleRoot == "" {
		return fmt.Errorf("manifest: moduleRoot must not be empty")
	}
	for root, p := range m.Projects {
		if p.Root != "" && p.Root != root {
			return fmt.Errorf("manifest: project root mismatch for %q: %q", root, p.Root)
		}
	}
	return nil
}
