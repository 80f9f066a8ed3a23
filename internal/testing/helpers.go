// Copyright 2026 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package testing

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/kraklabs/cuenv/pkg/manifest"
)

// SetupTestWorkspace creates an empty module root in a temporary
// directory, cleaned up automatically when the test finishes.
//
// Example:
//
//	func TestMyFeature(t *testing.T) {
//	    root := testing.SetupTestWorkspace(t)
//	    proj := testing.WriteProject(t, root, "services/api", tasks)
//	    eval := testing.BuildEvaluation(root, proj)
//	}
func SetupTestWorkspace(t *testing.T) string {
	t.Helper()
	return t.TempDir()
}

// WriteProject materializes a project fixture under moduleRoot/relDir: an
// env.cue.json sidecar holding the same JSON shape a CUE evaluator would
// emit for this project. Returns the in-memory Project that was
// marshaled (not a value decoded back from the sidecar), with Root set,
// ready to hand to BuildEvaluation or pkg/graph.Build directly.
func WriteProject(t *testing.T, moduleRoot, relDir string, tasks map[string]manifest.TaskDefinition) manifest.Project {
	t.Helper()

	root := filepath.Join(moduleRoot, relDir)
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("testing: creating project dir %s: %v", root, err)
	}

	proj := manifest.Project{
		Name:  filepath.Base(relDir),
		Root:  root,
		Tasks: tasks,
	}

	data, err := json.MarshalIndent(proj, "", "  ")
	if err != nil {
		t.Fatalf("testing: marshaling project fixture: %v", err)
	}

	if err := os.WriteFile(filepath.Join(root, "env.cue.json"), data, 0o644); err != nil {
		t.Fatalf("testing: writing env.cue.json: %v", err)
	}

	return proj
}

// WriteSourceFile writes content to moduleRoot/relPath, creating parent
// directories as needed — used to populate a project with files that a
// task's Inputs glob should (or shouldn't) match.
func WriteSourceFile(t *testing.T, moduleRoot, relPath, content string) string {
	t.Helper()

	path := filepath.Join(moduleRoot, relPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("testing: creating parent dir for %s: %v", relPath, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("testing: writing %s: %v", relPath, err)
	}
	return path
}

// BuildEvaluation assembles a manifest.ModuleEvaluation from moduleRoot
// and a set of projects, keyed the way a CUE evaluator keys them: by
// project root.
func BuildEvaluation(moduleRoot string, projects ...manifest.Project) manifest.ModuleEvaluation {
	byRoot := make(map[string]manifest.Project, len(projects))
	for _, p := range projects {
		byRoot[p.Root] = p
	}
	return manifest.ModuleEvaluation{ModuleRoot: moduleRoot, Projects: byRoot}
}

// SingleTask wraps task as a TaskDefinition holding exactly one task.
func SingleTask(task manifest.Task) manifest.TaskDefinition {
	t := task
	return manifest.TaskDefinition{Task: &t}
}

// SequentialGroup wraps steps as a TaskDefinition whose members run in
// order, each implicitly depending on the one before it.
func SequentialGroup(dependsOn []string, steps ...manifest.TaskDefinition) manifest.TaskDefinition {
	return manifest.TaskDefinition{Group: &manifest.TaskGroup{
		Sequential: steps,
		DependsOn:  dependsOn,
	}}
}

// ParallelGroup wraps members as a TaskDefinition whose members may run
// concurrently, each depending only on dependsOn.
func ParallelGroup(dependsOn []string, members map[string]manifest.TaskDefinition) manifest.TaskDefinition {
	return manifest.TaskDefinition{Group: &manifest.TaskGroup{
		Parallel:  members,
		DependsOn: dependsOn,
	}}
}
