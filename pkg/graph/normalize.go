// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package graph normalizes task references into fully-qualified names and
// assembles the cross-project task dependency graph, detecting cycles and
// computing topological execution levels for the scheduler.
package graph

import (
	"path/filepath"
	"strings"

	"github.com/kraklabs/cuenv/pkg/manifest"
)

// NormalizeTaskName replaces colons with dots, so "build:test" and
// "build.test" refer to the same task internally.
func NormalizeTaskName(raw string) string {
	return strings.ReplaceAll(raw, ":", ".")
}

// TaskFQDN builds a task's fully-qualified name: "task:{projectID}:{name}"
// with name's separators normalized to dots.
func TaskFQDN(projectID, taskName string) string {
	return "task:" + projectID + ":" + NormalizeTaskName(taskName)
}

// CanonicalizeDepForTaskName resolves dep relative to taskName's parent
// namespace. A dep containing a dot or colon is already absolute within
// its project and is returned normalized as-is; otherwise dep replaces
// the last segment of taskName's namespace.
func CanonicalizeDepForTaskName(dep, taskName string) string {
	if strings.ContainsAny(dep, ".:") {
		return NormalizeTaskName(dep)
	}

	norm := NormalizeTaskName(taskName)
	segments := make([]string, 0, 4)
	for _, s := range strings.Split(norm, ".") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) > 0 {
		segments = segments[:len(segments)-1]
	}
	segments = append(segments, dep)
	return strings.Join(segments, ".")
}

// ComputeProjectID returns a project's stable identifier: its manifest
// name if set, otherwise a path-derived id relative to moduleRoot with
// path separators replaced by '.' (kept colon-free since ':' is the FQDN
// delimiter).
func ComputeProjectID(p manifest.Project, projectRoot, moduleRoot string) string {
	if name := strings.TrimSpace(p.Name); name != "" {
		return name
	}

	rel, err := filepath.Rel(moduleRoot, projectRoot)
	if err != nil {
		rel = projectRoot
	}
	rel = filepath.ToSlash(rel)
	rel = strings.ReplaceAll(rel, "/", ".")
	return "path." + rel
}

// NormalizeDep converts a single dependency reference to FQDN form.
//   - Already-FQDN deps ("task:...") pass through unchanged.
//   - Cross-project refs ("#project:task") resolve project to its id via
//     projectIDByName (falling back to the raw name if unknown).
//   - Everything else is qualified against defaultProjectID.
func NormalizeDep(dep, defaultProjectID string, projectIDByName map[string]string) string {
	dep = strings.TrimSpace(dep)

	if strings.HasPrefix(dep, "task:") {
		return dep
	}

	if strings.HasPrefix(dep, "#") {
		ref := manifest.TaskRef{Raw: dep}
		if proj, task, ok := ref.Parse(); ok {
			projID, ok := projectIDByName[proj]
			if !ok {
				projID = proj
			}
			return TaskFQDN(projID, task)
		}
	}

	return TaskFQDN(defaultProjectID, dep)
}

// NormalizeDefinitionDeps walks def, rewriting every DependsOn entry (on
// tasks and on parallel groups) to FQDN form. A task's dependencies are
// scoped to the project owning its ProjectRoot, falling back to
// defaultProjectID when ProjectRoot isn't recognized.
func NormalizeDefinitionDeps(def *manifest.TaskDefinition, projectIDByRoot map[string]string, projectIDByName map[string]string, defaultProjectID string) {
	switch {
	case def.IsSingle():
		task := def.Task
		scopeID := defaultProjectID
		if task.ProjectRoot != "" {
			if id, ok := projectIDByRoot[task.ProjectRoot]; ok {
				scopeID = id
			}
		}
		deps := make([]string, len(task.DependsOn))
		for i, d := range task.DependsOn {
			deps[i] = NormalizeDep(d, scopeID, projectIDByName)
		}
		task.DependsOn = deps

	case def.IsGroup():
		group := def.Group
		deps := make([]string, len(group.DependsOn))
		for i, d := range group.DependsOn {
			deps[i] = NormalizeDep(d, defaultProjectID, projectIDByName)
		}
		group.DependsOn = deps

		if group.IsSequential() {
			for i := range group.Sequential {
				NormalizeDefinitionDeps(&group.Sequential[i], projectIDByRoot, projectIDByName, defaultProjectID)
			}
		} else if group.IsParallel() {
			for k, sub := range group.Parallel {
				NormalizeDefinitionDeps(&sub, projectIDByRoot, projectIDByName, defaultProjectID)
				group.Parallel[k] = sub
			}
		}
	}
}

// SetDefaultProjectRoot recursively sets ProjectRoot on every task in def
// that doesn't already have one.
func SetDefaultProjectRoot(def *manifest.TaskDefinition, projectRoot string) {
	switch {
	case def.IsSingle():
		if def.Task.ProjectRoot == "" {
			def.Task.ProjectRoot = projectRoot
		}
	case def.IsGroup():
		group := def.Group
		if group.IsSequential() {
			for i := range group.Sequential {
				SetDefaultProjectRoot(&group.Sequential[i], projectRoot)
			}
		} else if group.IsParallel() {
			for k, sub := range group.Parallel {
				SetDefaultProjectRoot(&sub, projectRoot)
				group.Parallel[k] = sub
			}
		}
	}
}
