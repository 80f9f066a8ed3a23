// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package ci

import (
	"testing"

	"github.com/kraklabs/cuenv/pkg/graph"
	"github.com/kraklabs/cuenv/pkg/manifest"
)

func TestBuildIR_LowersGraphNodesToTasks(t *testing.T) {
	g := graph.New()
	g.AddNode(&graph.Node{
		FQDN: "task:api:build",
		Task: &manifest.Task{Command: "go", Args: []string{"build", "./..."}},
	})
	g.AddNode(&graph.Node{
		FQDN:      "task:api:deploy",
		Task:      &manifest.Task{Command: "kubectl", Args: []string{"apply"}, Impure: true},
		DependsOn: []string{"task:api:build"},
	})

	ir := BuildIR(g, PipelineMetadata{Name: "ci"})

	if len(ir.Tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(ir.Tasks))
	}

	var deploy *Task
	for i := range ir.Tasks {
		if ir.Tasks[i].ID == "task:api:deploy" {
			deploy = &ir.Tasks[i]
		}
	}
	if deploy == nil {
		t.Fatal("deploy task missing")
	}
	if !deploy.Deployment || !deploy.ManualApproval {
		t.Fatalf("expected deploy task to be a deployment requiring approval, got %+v", deploy)
	}
	if len(deploy.DependsOn) != 1 || deploy.DependsOn[0] != "task:api:build" {
		t.Fatalf("expected deploy to depend on build, got %v", deploy.DependsOn)
	}
}
