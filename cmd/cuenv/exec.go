// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	cuerrors "github.com/kraklabs/cuenv/internal/errors"
	"github.com/kraklabs/cuenv/pkg/cache"
	"github.com/kraklabs/cuenv/pkg/graph"
	"github.com/kraklabs/cuenv/pkg/runner"
	"github.com/kraklabs/cuenv/pkg/scheduler"
	flag "github.com/spf13/pflag"
)

// executeGraph resolves every secret g's tasks declare, builds a
// CachingRunner around a real CommandRunner, and runs g to completion
// through a scheduler.Executor bound by CUENV_MAX_PARALLEL.
func executeGraph(ctx context.Context, moduleRoot string, g *graph.Graph, policy cache.Policy) ([]scheduler.TaskOutcome, error) {
	backend, err := localCacheBackend(moduleRoot)
	if err != nil {
		return nil, err
	}

	salt := saltFromEnv()
	batch := defaultBatchResolver(salt)
	refs, byTask := collectSecretRefs(g)

	secretEnv := map[string]string{}
	cachingRunner := runner.NewCachingRunner(backend, nil, salt, policy)
	if len(refs) > 0 {
		resolved, err := batch.ResolveBatch(ctx, refs)
		if err != nil {
			return nil, cuerrSecretNotFound("batch", err)
		}
		secretEnv = resolved.IntoEnvMap()
		cachingRunner.SecretFingerprints = fingerprintsByTask(resolved, byTask)
	}

	envPairs := make([]string, 0, len(secretEnv))
	for k, v := range secretEnv {
		envPairs = append(envPairs, k+"="+v)
	}

	cachingRunner.Base = &scheduler.CommandRunner{Env: envPairs}

	executor := scheduler.New(cachingRunner, scheduler.Options{MaxParallel: maxParallel()})
	return executor.Run(ctx, g)
}

// runExec implements `cuenv exec -- <cmd>`: resolve every secret declared
// by --package (or the whole module if unset), inject them as env vars,
// and run the passthrough command directly, bypassing the task graph.
func runExec(ctx context.Context, args []string) (int, bool, error) {
	fs := flag.NewFlagSet("exec", flag.ContinueOnError)
	g := bindGlobalFlags(fs)
	if err := fs.Parse(args); err != nil {
		return cuerrors.ExitConfiguration, g.json, nil
	}
	moduleRoot := g.setup()

	rest := fs.Args()
	var passthrough []string
	for i, a := range rest {
		if a == "--" {
			passthrough = rest[i+1:]
			break
		}
	}
	if len(passthrough) == 0 {
		passthrough = rest
	}
	if len(passthrough) == 0 {
		return cuerrors.ExitConfiguration, g.json, cuerrConfiguration("parse exec command", fmt.Errorf("usage: cuenv exec -- <cmd> [args...]"))
	}

	taskGraph, err := buildGraph(ctx, moduleRoot, g.pkg)
	if err != nil {
		return 1, g.json, err
	}

	salt := saltFromEnv()
	batch := defaultBatchResolver(salt)
	refs, _ := collectSecretRefs(taskGraph)

	env := os.Environ()
	if len(refs) > 0 {
		resolved, err := batch.ResolveBatch(ctx, refs)
		if err != nil {
			return 1, g.json, cuerrSecretNotFound("batch", err)
		}
		for k, v := range resolved.IntoEnvMap() {
			env = append(env, k+"="+v)
		}
	}

	cmd := exec.CommandContext(ctx, passthrough[0], passthrough[1:]...)
	cmd.Env = env
	cmd.Dir = moduleRoot
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	runErr := cmd.Run()
	if runErr == nil {
		return 0, g.json, nil
	}
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		return exitErr.ExitCode(), g.json, nil
	}
	return 1, g.json, cuerrProcessSpawn("run exec command", runErr)
}
