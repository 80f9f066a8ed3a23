// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package ci

import (
	"sort"

	"github.com/kraklabs/cuenv/pkg/cache"
	"github.com/kraklabs/cuenv/pkg/graph"
)

// BuildIR lowers g's nodes into a provider-neutral IntermediateRepresentation
// carrying meta, one ci.Task per graph node with a command.
func BuildIR(g *graph.Graph, meta PipelineMetadata) *IntermediateRepresentation {
	ir := &IntermediateRepresentation{
		Version:  "1",
		Pipeline: meta,
	}

	for _, fqdn := range g.FQDNs() {
		n, ok := g.Node(fqdn)
		if !ok || n.Task == nil {
			continue
		}
		t := n.Task

		secrets := make(map[string]string, len(t.Secrets))
		for _, ref := range t.Secrets {
			uri := ref.URI
			if uri == "" {
				uri = ref.Resolver
			}
			secrets[ref.EnvVar] = uri
		}

		ir.Tasks = append(ir.Tasks, Task{
			ID:               fqdn,
			Command:          append([]string{t.Command}, t.Args...),
			Env:              t.Env,
			Secrets:          secrets,
			ConcurrencyGroup: t.ConcurrencyGroup,
			Inputs:           t.Inputs,
			Outputs:          t.Outputs,
			DependsOn:        n.DependsOn,
			CachePolicy:      cache.PolicyNormal,
			Deployment:       isDeploymentTask(fqdn),
			ManualApproval:   isDeploymentTask(fqdn) && t.Impure,
		})
	}

	sort.Slice(ir.Tasks, func(i, j int) bool { return ir.Tasks[i].ID < ir.Tasks[j].ID })

	return ir
}

// isDeploymentTask classifies a task as a deploy step by naming
// convention, matching pkg/ci/buildkite.go's taskStage heuristic: a
// cuenv task carries no intrinsic stage field.
func isDeploymentTask(fqdn string) bool {
	return hasPrefix(lastSegment(fqdn), "deploy")
}

func lastSegment(fqdn string) string {
	for i := len(fqdn) - 1; i >= 0; i-- {
		if fqdn[i] == ':' {
			return fqdn[i+1:]
		}
	}
	return fqdn
}
