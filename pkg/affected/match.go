// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package affected determines which tasks a set of changed files touches,
// directly or transitively through the task graph: a task is affected if
// one of its own input globs matches a changed file, or if any task it
// (transitively) depends on is affected.
package affected

import (
	"path/filepath"
	"strings"

	"github.com/kraklabs/cuenv/pkg/graph"
)

// MatchesAny reports whether path matches any of patterns, each a glob
// pattern as written in a task's Inputs list (relative to the task's
// project root).
func MatchesAny(path string, patterns []string) bool {
	normalized := filepath.ToSlash(path)
	for _, pattern := range patterns {
		if matchesGlob(normalized, pattern) {
			return true
		}
	}
	return false
}

// matchesGlob matches path against pattern, supporting "**" as a
// recursive-directory wildcard on top of filepath.Match's single-segment
// "*"/"?"/"[...]" matching.
func matchesGlob(path, pattern string) bool {
	pattern = filepath.ToSlash(pattern)

	if !strings.Contains(pattern, "**") {
		ok, err := filepath.Match(pattern, path)
		return err == nil && ok
	}

	segments := strings.Split(pattern, "**")
	return matchDoubleStarSegments(path, segments)
}

// matchDoubleStarSegments matches path against a pattern that has already
// been split on "**": each segment must match in order, with "**"
// consuming any number of path components (including zero) between them.
func matchDoubleStarSegments(path string, segments []string) bool {
	segments = trimSlashes(segments)

	if len(segments) == 1 {
		ok, err := filepath.Match(segments[0], path)
		return err == nil && ok
	}

	head, rest := segments[0], segments[1:]

	if head == "" {
		return matchAnySuffix(path, rest)
	}

	remainder, ok := splitMatchedPrefix(path, head)
	if !ok {
		return false
	}
	return matchAnySuffix(remainder, rest)
}

// matchAnySuffix tries every possible split point of path against the
// remaining pattern segments, since "**" may consume zero or more
// leading path components.
func matchAnySuffix(path string, segments []string) bool {
	parts := strings.Split(path, "/")
	for i := 0; i <= len(parts); i++ {
		candidate := strings.Join(parts[i:], "/")
		if matchDoubleStarSegments(candidate, segments) {
			return true
		}
	}
	return false
}

// splitMatchedPrefix reports whether path's first path component matches
// head (a single non-"**" pattern segment), returning the remainder of
// path after that component.
func splitMatchedPrefix(path, head string) (remainder string, ok bool) {
	idx := strings.Index(path, "/")
	if idx < 0 {
		matched, err := filepath.Match(head, path)
		if err == nil && matched {
			return "", true
		}
		return "", false
	}
	candidate, rest := path[:idx], path[idx+1:]
	matched, err := filepath.Match(head, candidate)
	if err != nil || !matched {
		return "", false
	}
	return rest, true
}

func trimSlashes(segments []string) []string {
	out := make([]string, len(segments))
	for i, s := range segments {
		out[i] = strings.Trim(s, "/")
	}
	return out
}

// DirectlyAffected returns the FQDN of every node in g whose task Inputs
// match at least one path in changedFiles. changedFiles are module-root
// relative; each task's inputs are interpreted relative to its own
// ProjectRoot, so changedFiles are first made relative to it.
func DirectlyAffected(g *graph.Graph, moduleRoot string, changedFiles []string) []string {
	var out []string
	for _, fqdn := range g.FQDNs() {
		n, ok := g.Node(fqdn)
		if !ok || n.Task == nil || len(n.Task.Inputs) == 0 {
			continue
		}

		for _, f := range changedFiles {
			rel := relativeTo(moduleRoot, n.Task.ProjectRoot, f)
			if MatchesAny(rel, n.Task.Inputs) {
				out = append(out, fqdn)
				break
			}
		}
	}
	return out
}

// relativeTo rewrites changedFile (relative to moduleRoot) into a path
// relative to projectRoot (also relative to moduleRoot), so it can be
// matched against a task's project-relative Inputs globs.
func relativeTo(moduleRoot, projectRoot, changedFile string) string {
	if projectRoot == "" || projectRoot == "." {
		return changedFile
	}
	prefix := strings.TrimPrefix(filepath.ToSlash(projectRoot), filepath.ToSlash(moduleRoot))
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return changedFile
	}
	if rel := strings.TrimPrefix(changedFile, prefix+"/"); rel != changedFile {
		return rel
	}
	return changedFile
}

// Affected returns every FQDN in g that is affected by changedFiles:
// tasks whose own Inputs match a changed file, plus every task that
// transitively depends on one of those.
func Affected(g *graph.Graph, moduleRoot string, changedFiles []string) []string {
	direct := DirectlyAffected(g, moduleRoot, changedFiles)
	return g.TransitiveDependents(direct)
}
