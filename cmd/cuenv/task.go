// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"

	cuerrors "github.com/kraklabs/cuenv/internal/errors"
	"github.com/kraklabs/cuenv/internal/output"
	"github.com/kraklabs/cuenv/pkg/cache"
	"github.com/kraklabs/cuenv/pkg/ci"
	"github.com/kraklabs/cuenv/pkg/graph"
	"github.com/kraklabs/cuenv/pkg/scheduler"
	flag "github.com/spf13/pflag"
)

func runTask(ctx context.Context, args []string) (int, bool, error) {
	fs := flag.NewFlagSet("task", flag.ContinueOnError)
	g := bindGlobalFlags(fs)
	cachePolicy := fs.String("cache", "normal", "Cache policy: normal, readonly, writeonly, disabled")
	if err := fs.Parse(args); err != nil {
		return cuerrors.ExitConfiguration, g.json, nil
	}
	moduleRoot := g.setup()
	names := fs.Args()

	taskGraph, err := buildGraph(ctx, moduleRoot, g.pkg)
	if err != nil {
		return 1, g.json, err
	}

	if len(names) > 0 {
		taskGraph, err = selectTasks(taskGraph, names)
		if err != nil {
			return 1, g.json, err
		}
	}

	outcomes, execErr := executeGraph(ctx, moduleRoot, taskGraph, parseCachePolicy(*cachePolicy))
	if g.json {
		_ = output.JSON(taskOutcomesJSON(outcomes))
	} else {
		summarize(outcomes)
	}
	if execErr != nil {
		return 1, g.json, execErr
	}
	for _, o := range outcomes {
		if o.Status != scheduler.StatusSuccess {
			return 1, g.json, nil
		}
	}
	return 0, g.json, nil
}

// selectTasks narrows g down to names (exact task names or task-group
// prefixes) plus their transitive dependencies, reusing pkg/ci's
// pipeline-task expansion logic over a throwaway IR built from g.
func selectTasks(g *graph.Graph, names []string) (*graph.Graph, error) {
	ir := ci.BuildIR(g, ci.PipelineMetadata{})
	filtered := ci.FilterTasks(names, ir.Tasks)
	if len(filtered) == 0 {
		return nil, cuerrConfiguration("select tasks", fmt.Errorf("no task matched any of %v", names))
	}

	pruned := graph.New()
	for _, t := range filtered {
		n, ok := g.Node(t.ID)
		if !ok {
			continue
		}
		pruned.AddNode(n)
	}
	return pruned, nil
}

func parseCachePolicy(s string) cache.Policy {
	switch s {
	case "readonly":
		return cache.PolicyReadonly
	case "writeonly":
		return cache.PolicyWriteonly
	case "disabled":
		return cache.PolicyDisabled
	default:
		return cache.PolicyNormal
	}
}

type taskOutcomeJSON struct {
	FQDN     string `json:"fqdn"`
	Status   string `json:"status"`
	ExitCode int    `json:"exit_code"`
	Error    string `json:"error,omitempty"`
}

func taskOutcomesJSON(outcomes []scheduler.TaskOutcome) []taskOutcomeJSON {
	out := make([]taskOutcomeJSON, len(outcomes))
	for i, o := range outcomes {
		j := taskOutcomeJSON{FQDN: o.FQDN, Status: o.Status.String(), ExitCode: o.Result.ExitCode}
		if o.Err != nil {
			j.Error = o.Err.Error()
		}
		out[i] = j
	}
	return out
}
