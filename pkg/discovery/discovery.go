// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package discovery walks a module root for env.cue-rooted projects and
// evaluates each through the external `cue` binary, the foreign-function
// boundary spec.md §1's Non-goals carve out of this module's concern.
package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/kraklabs/cuenv/pkg/manifest"
)

// skipDirs names directories never descended into while searching for
// env.cue files.
var skipDirs = map[string]bool{
	".git":       true,
	".cuenv":     true,
	"node_modules": true,
}

// DiscoverProjects walks moduleRoot for directories containing an
// env.cue file, evaluates each with `cue export --out json`, and returns
// the assembled module evaluation keyed by project root.
func DiscoverProjects(ctx context.Context, moduleRoot string) (manifest.ModuleEvaluation, error) {
	eval := manifest.ModuleEvaluation{
		ModuleRoot: moduleRoot,
		Projects:   make(map[string]manifest.Project),
	}

	err := filepath.WalkDir(moduleRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Warn("discovery.walk.error", "path", path, "err", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if skipDirs[d.Name()] {
			return filepath.SkipDir
		}

		manifestPath := filepath.Join(path, "env.cue")
		if _, statErr := os.Stat(manifestPath); statErr != nil {
			return nil
		}

		proj, evalErr := EvaluateProject(ctx, path)
		if evalErr != nil {
			return fmt.Errorf("discovery: evaluating %s: %w", path, evalErr)
		}
		eval.Projects[path] = proj
		return nil
	})
	if err != nil {
		return manifest.ModuleEvaluation{}, err
	}

	return eval, nil
}

// EvaluateProject shells out to `cue export --out json` in projectRoot
// and decodes the result as a manifest.Project, filling in Root from the
// directory since the CUE evaluator's output carries no notion of it.
func EvaluateProject(ctx context.Context, projectRoot string) (manifest.Project, error) {
	cmd := exec.CommandContext(ctx, "cue", "export", "--out", "json", ".")
	cmd.Dir = projectRoot

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return manifest.Project{}, fmt.Errorf("cue export in %s: %w: %s", projectRoot, err, stderr.String())
	}

	var proj manifest.Project
	if err := json.Unmarshal(stdout.Bytes(), &proj); err != nil {
		return manifest.Project{}, fmt.Errorf("decoding cue export output for %s: %w", projectRoot, err)
	}
	proj.Root = projectRoot
	if proj.Name == "" {
		proj.Name = filepath.Base(projectRoot)
	}

	for name, def := range proj.Tasks {
		d := def
		setProjectRoot(&d, projectRoot)
		proj.Tasks[name] = d
	}

	return proj, nil
}

// setProjectRoot recursively stamps ProjectRoot onto every Task within a
// (possibly grouped) TaskDefinition.
func setProjectRoot(def *manifest.TaskDefinition, projectRoot string) {
	if def.Task != nil {
		def.Task.ProjectRoot = projectRoot
		return
	}
	if def.Group == nil {
		return
	}
	for i := range def.Group.Sequential {
		setProjectRoot(&def.Group.Sequential[i], projectRoot)
	}
	for name, member := range def.Group.Parallel {
		m := member
		setProjectRoot(&m, projectRoot)
		def.Group.Parallel[name] = m
	}
}
