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

// Package testing provides fixture builders for cuenv integration tests:
// temporary module-root workspaces populated with project/task manifests
// and source files, shaped the way a CUE evaluator would emit them, so
// pkg/graph, pkg/affected, and pkg/scheduler tests exercise real directory
// layouts instead of hand-built in-memory structs.
//
// # Quick Start
//
//	func TestMyFeature(t *testing.T) {
//	    root := testing.SetupTestWorkspace(t)
//
//	    tasks := map[string]manifest.TaskDefinition{
//	        "build": testing.SingleTask(manifest.Task{
//	            Command: "go", Args: []string{"build", "./..."},
//	            Inputs: []string{"**/*.go"},
//	        }),
//	    }
//	    proj := testing.WriteProject(t, root, "services/api", tasks)
//	    testing.WriteSourceFile(t, root, "services/api/main.go", "package main")
//
//	    eval := testing.BuildEvaluation(root, proj)
//	    g, err := graph.Build(eval)
//	    require.NoError(t, err)
//	}
//
// # Building Task Definitions
//
//   - SingleTask: wrap one manifest.Task as a TaskDefinition
//   - SequentialGroup: a chain of steps, each depending on the previous
//   - ParallelGroup: named members that may run concurrently
//
// # Workspace Helpers
//
//   - SetupTestWorkspace: an empty, auto-cleaned module root
//   - WriteProject: materializes a project's env.cue.json fixture
//   - WriteSourceFile: populates a file under the module root, for
//     exercising pkg/affected's input-glob matching
//   - BuildEvaluation: assembles a manifest.ModuleEvaluation from projects
package testing
