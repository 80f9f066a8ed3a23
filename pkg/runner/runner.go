// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package runner wires pkg/resolve, pkg/digest, pkg/cache, and
// pkg/scheduler together into a single scheduler.Runner: resolve a
// task's declared inputs, compute its cache digest, serve a cache hit by
// replaying stored outputs, or else execute the task for real and store
// its result for next time.
package runner

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/kraklabs/cuenv/pkg/cache"
	"github.com/kraklabs/cuenv/pkg/digest"
	"github.com/kraklabs/cuenv/pkg/graph"
	"github.com/kraklabs/cuenv/pkg/resolve"
	"github.com/kraklabs/cuenv/pkg/scheduler"
	"github.com/kraklabs/cuenv/pkg/secrets"
)

// CachingRunner wraps an underlying scheduler.Runner (normally a
// scheduler.CommandRunner) with a cache check-before/store-after around
// each task's real execution.
type CachingRunner struct {
	Backend  cache.Backend
	Resolver *resolve.Resolver
	Base     scheduler.Runner
	Salt     secrets.SaltConfig

	// SecretFingerprints maps task FQDN to that task's resolved secret
	// fingerprints (name -> salted fingerprint), mixed into its digest.
	SecretFingerprints map[string]map[string]string

	// Policy governs whether this run may read/write the cache at all.
	Policy cache.Policy

	// Outcomes records per-task cache/execution bookkeeping, keyed by
	// FQDN, for callers building a PipelineReport.
	Outcomes map[string]Outcome
}

// Outcome captures the cache/execution detail for one task, beyond what
// scheduler.Result tracks, for report generation.
type Outcome struct {
	CacheHit      bool
	CacheKey      string
	InputsMatched []string
	Outputs       []string
}

// NewCachingRunner creates a CachingRunner delegating real execution to
// base and persisting/replaying results through backend.
func NewCachingRunner(backend cache.Backend, base scheduler.Runner, salt secrets.SaltConfig, policy cache.Policy) *CachingRunner {
	return &CachingRunner{
		Backend:            backend,
		Resolver:           resolve.New(nil),
		Base:               base,
		Salt:               salt,
		Policy:             policy,
		SecretFingerprints: make(map[string]map[string]string),
		Outcomes:           make(map[string]Outcome),
	}
}

// Run resolves n's inputs, computes its digest, serves a cache hit if
// one exists, or else delegates to Base and stores the result.
func (r *CachingRunner) Run(ctx context.Context, n *graph.Node) (scheduler.Result, error) {
	if n.Task == nil {
		return r.Base.Run(ctx, n)
	}

	resolved, err := r.Resolver.Resolve(n.Task.ProjectRoot, n.Task.Inputs)
	if err != nil {
		return scheduler.Result{}, err
	}
	inputPaths := resolve.AsDigestInputs(resolved)

	impurityUUID := ""
	if n.Task.Impure {
		impurityUUID = n.FQDN + "@" + time.Now().UTC().Format(time.RFC3339Nano)
	}

	key := digest.ComputeTaskDigest(digest.TaskDigestInput{
		Command:            append([]string{n.Task.Command}, n.Task.Args...),
		Env:                n.Task.Env,
		Inputs:             inputPaths,
		SecretFingerprints: r.SecretFingerprints[n.FQDN],
		Salt:               r.Salt.Current,
		ImpurityUUID:       impurityUUID,
	})

	lookup, err := r.Backend.Check(ctx, key, r.Policy)
	if err != nil {
		if be, ok := err.(*cache.BackendError); ok && be.IsGracefullyDegradable() {
			lookup = cache.Miss(key)
		} else {
			return scheduler.Result{}, err
		}
	}

	if lookup.Hit {
		stdout, stderr, logErr := r.Backend.GetLogs(ctx, key)
		outputs, restoreErr := r.Backend.RestoreOutputs(ctx, key, n.Task.ProjectRoot)
		if logErr == nil && restoreErr == nil {
			r.Outcomes[n.FQDN] = Outcome{CacheHit: true, CacheKey: key, InputsMatched: inputPaths, Outputs: outputPaths(outputs)}
			return scheduler.Result{ExitCode: 0, Stdout: stdout, Stderr: stderr, Duration: time.Duration(lookup.CachedDurationMs) * time.Millisecond}, nil
		}
	}

	res, err := r.Base.Run(ctx, n)
	outcome := Outcome{CacheHit: false, CacheKey: key, InputsMatched: inputPaths}

	if err == nil && res.ExitCode == 0 && cache.PolicyAllowsWrite(r.Policy) {
		outputs, readErr := readOutputs(n.Task.ProjectRoot, n.Task.Outputs)
		if readErr == nil {
			entry := cache.Entry{
				Stdout:     res.Stdout,
				Stderr:     res.Stderr,
				ExitCode:   res.ExitCode,
				DurationMs: res.Duration.Milliseconds(),
				Outputs:    outputs,
			}
			_ = r.Backend.Store(ctx, key, entry, r.Policy)
			outcome.Outputs = n.Task.Outputs
		}
	}

	r.Outcomes[n.FQDN] = outcome
	return res, err
}

func outputPaths(outputs []cache.Output) []string {
	paths := make([]string, len(outputs))
	for i, o := range outputs {
		paths[i] = o.Path
	}
	return paths
}

// readOutputs reads each declared output path (relative to root) into a
// cache.Output, preserving the executable bit.
func readOutputs(root string, outputs []string) ([]cache.Output, error) {
	result := make([]cache.Output, 0, len(outputs))
	for _, rel := range outputs {
		path := filepath.Join(root, rel)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		result = append(result, cache.Output{
			Path:       rel,
			Data:       data,
			Executable: info.Mode()&0o111 != 0,
		})
	}
	return result, nil
}
