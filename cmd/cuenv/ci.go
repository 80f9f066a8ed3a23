// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	cuerrors "github.com/kraklabs/cuenv/internal/errors"
	"github.com/kraklabs/cuenv/internal/output"
	"github.com/kraklabs/cuenv/pkg/affected"
	"github.com/kraklabs/cuenv/pkg/cache"
	"github.com/kraklabs/cuenv/pkg/ci"
	"github.com/kraklabs/cuenv/pkg/graph"
	"github.com/kraklabs/cuenv/pkg/report"
	"github.com/kraklabs/cuenv/pkg/scheduler"
	flag "github.com/spf13/pflag"
)

// runCI implements `cuenv ci`: lower the task graph to a provider-neutral
// IntermediateRepresentation, optionally narrow it to tasks affected by a
// changed-file set, then either emit a provider's pipeline YAML (--emit)
// or run it through the scheduler and persist a PipelineReport.
func runCI(ctx context.Context, args []string) (int, bool, error) {
	fs := flag.NewFlagSet("ci", flag.ContinueOnError)
	g := bindGlobalFlags(fs)
	emit := fs.String("emit", "", "Emit pipeline YAML for a provider instead of running it: buildkite, github")
	gitRef := fs.String("git-ref", "", "Base ref to diff against for affected-task filtering")
	tasks := fs.StringSlice("task", nil, "Limit the pipeline to these tasks (and their dependencies)")
	if err := fs.Parse(args); err != nil {
		return cuerrors.ExitConfiguration, g.json, nil
	}
	moduleRoot := g.setup()

	taskGraph, err := buildGraph(ctx, moduleRoot, g.pkg)
	if err != nil {
		return 1, g.json, err
	}

	if *gitRef != "" {
		taskGraph, err = filterAffected(ctx, moduleRoot, taskGraph, *gitRef)
		if err != nil {
			return 1, g.json, err
		}
	}

	meta := ci.PipelineMetadata{
		Name:        "cuenv",
		Environment: os.Getenv("CUENV_ENVIRONMENT"),
		ProjectName: g.pkg,
		Trigger:     os.Getenv("CUENV_CI_TRIGGER"),
	}
	if len(*tasks) > 0 {
		meta.PipelineTasks = *tasks
	}

	ir := ci.BuildIR(taskGraph, meta)
	if len(*tasks) > 0 {
		ir.Tasks = ci.FilterTasks(*tasks, ir.Tasks)
	}
	applied := ci.RunContributors(ir, ci.DefaultContributors())
	if len(applied) > 0 && !g.json {
		fmt.Fprintf(os.Stderr, "cuenv: stage contributors applied: %s\n", strings.Join(applied, ", "))
	}

	if *emit != "" {
		return emitPipeline(*emit, ir)
	}

	return runPipeline(ctx, moduleRoot, taskGraph, ir, g.json)
}

func emitPipeline(provider string, ir *ci.IntermediateRepresentation) (int, bool, error) {
	var (
		data []byte
		err  error
	)
	switch provider {
	case "buildkite":
		data, err = ci.LowerBuildkite(ir).ToYAML()
	case "github", "github-actions":
		data, err = ci.LowerGitHubActions(ir).ToYAML()
	default:
		return 1, false, cuerrConfiguration("emit pipeline", fmt.Errorf("unknown provider %q (want buildkite or github)", provider))
	}
	if err != nil {
		return 1, false, cuerrIo("marshal pipeline yaml", err)
	}
	os.Stdout.Write(data)
	return 0, false, nil
}

func runPipeline(ctx context.Context, moduleRoot string, g *graph.Graph, ir *ci.IntermediateRepresentation, jsonOutput bool) (int, bool, error) {
	startedAt := time.Now()
	outcomes, execErr := executeGraph(ctx, moduleRoot, g, defaultCachePolicyFromEnv())

	rep := &report.PipelineReport{
		Version:   "1",
		Project:   ir.Pipeline.ProjectName,
		Pipeline:  ir.Pipeline.Name,
		Context:   reportContext(ir),
		StartedAt: startedAt,
	}
	for _, o := range outcomes {
		status := report.StatusSuccess
		if o.Status != scheduler.StatusSuccess {
			status = report.StatusFailed
		}
		rep.Tasks = append(rep.Tasks, report.TaskReport{
			Name:       o.FQDN,
			Status:     status,
			DurationMs: o.Result.Duration.Milliseconds(),
			ExitCode:   o.Result.ExitCode,
		})
	}
	rep.Finalize(time.Now())

	if writeErr := report.Write(moduleRoot, rep); writeErr != nil && !jsonOutput {
		fmt.Fprintf(os.Stderr, "cuenv: failed to write pipeline report: %v\n", writeErr)
	}

	if jsonOutput {
		_ = output.JSON(rep)
	} else {
		summarize(outcomes)
	}
	if execErr != nil {
		return 1, jsonOutput, execErr
	}
	if rep.Status != report.StatusSuccess {
		return 1, jsonOutput, nil
	}
	return 0, jsonOutput, nil
}

func reportContext(ir *ci.IntermediateRepresentation) report.Context {
	sha := os.Getenv("CUENV_CI_SHA")
	if sha == "" {
		sha = "local"
	}
	return report.Context{
		Provider: "local",
		Event:    ir.Pipeline.Trigger,
		Ref:      os.Getenv("CUENV_CI_REF"),
		SHA:      sha,
	}
}

// filterAffected narrows g down to tasks whose declared inputs (or whose
// transitive dependencies') intersect the files changed since gitRef.
func filterAffected(ctx context.Context, moduleRoot string, g *graph.Graph, gitRef string) (*graph.Graph, error) {
	if affected.IsShallowClone(ctx, moduleRoot) {
		if err := affected.FetchRef(ctx, moduleRoot, gitRef); err != nil {
			return nil, cuerrIo("fetch git ref for affected-task analysis", err)
		}
	}
	changed, err := affected.ChangedFilesFromGit(ctx, moduleRoot, gitRef)
	if err != nil {
		return nil, cuerrIo("diff changed files", err)
	}

	affectedFQDNs := affected.Affected(g, moduleRoot, changed)
	keep := make(map[string]struct{}, len(affectedFQDNs))
	for _, f := range affectedFQDNs {
		keep[f] = struct{}{}
	}

	pruned := graph.New()
	for _, fqdn := range g.FQDNs() {
		if _, ok := keep[fqdn]; !ok {
			continue
		}
		n, _ := g.Node(fqdn)
		pruned.AddNode(n)
	}
	return pruned, nil
}

func defaultCachePolicyFromEnv() cache.Policy {
	return parseCachePolicy(strings.TrimSpace(os.Getenv("CUENV_CACHE_POLICY")))
}
