// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kraklabs/cuenv/internal/contract"
	"github.com/kraklabs/cuenv/internal/ui"
	"github.com/kraklabs/cuenv/pkg/cache"
	"github.com/kraklabs/cuenv/pkg/coordinator"
	"github.com/kraklabs/cuenv/pkg/discovery"
	"github.com/kraklabs/cuenv/pkg/graph"
	"github.com/kraklabs/cuenv/pkg/manifest"
	"github.com/kraklabs/cuenv/pkg/scheduler"
	"github.com/kraklabs/cuenv/pkg/secrets"
	flag "github.com/spf13/pflag"
)

// globalFlags holds the flags every cuenv subcommand accepts, per
// spec.md §6's CLI surface: --path, --package, -l/--level, --json.
type globalFlags struct {
	path    string
	pkg     string
	level   string
	json    bool
	noColor bool
}

func bindGlobalFlags(fs *flag.FlagSet) *globalFlags {
	g := &globalFlags{}
	fs.StringVar(&g.path, "path", ".", "Module root to operate on")
	fs.StringVar(&g.pkg, "package", "", "Limit to a single project by name")
	fs.StringVarP(&g.level, "level", "l", "info", "Log level: debug, info, warn, error")
	fs.BoolVar(&g.json, "json", false, "Emit machine-readable JSON output")
	fs.BoolVar(&g.noColor, "no-color", false, "Disable colored output")
	return g
}

func (g *globalFlags) setup() string {
	ui.InitColors(g.noColor)

	var level slog.Level
	switch g.level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	abs, err := filepath.Abs(g.path)
	if err != nil {
		return g.path
	}
	return abs
}

// buildGraph discovers every project under moduleRoot, evaluates it
// through the CUE evaluator, and assembles the normalized cross-project
// task graph. When pkgName is non-empty, projects whose Name doesn't
// match are dropped before graph assembly.
func buildGraph(ctx context.Context, moduleRoot, pkgName string) (*graph.Graph, error) {
	eval, err := discovery.DiscoverProjects(ctx, moduleRoot)
	if err != nil {
		return nil, cuerrConfiguration("discovering projects", err)
	}

	if pkgName != "" {
		filtered := manifest.ModuleEvaluation{ModuleRoot: eval.ModuleRoot, Projects: make(map[string]manifest.Project)}
		for root, p := range eval.Projects {
			if p.Name == pkgName {
				filtered.Projects[root] = p
			}
		}
		if len(filtered.Projects) == 0 {
			return nil, cuerrConfiguration("resolving --package", fmt.Errorf("no project named %q under %s", pkgName, moduleRoot))
		}
		eval = filtered
	}

	g, err := graph.Build(eval)
	if err != nil {
		return nil, cuerrConfiguration("building task graph", err)
	}
	if err := g.DetectCycle(); err != nil {
		return nil, cuerrCycle(err)
	}
	return g, nil
}

// saltFromEnv builds a secrets.SaltConfig from CUENV_SECRET_SALT /
// CUENV_SECRET_SALT_PREVIOUS, per spec.md §6's environment variables.
func saltFromEnv() secrets.SaltConfig {
	return secrets.SaltConfig{
		Current:  os.Getenv("CUENV_SECRET_SALT"),
		Previous: os.Getenv("CUENV_SECRET_SALT_PREVIOUS"),
	}
}

// defaultBatchResolver registers the resolvers this core ships with:
// plain environment variables and 1Password. Provider-specific resolvers
// (AWS, Vault, Infisical, GCP) are enrichment points a deployment wires
// in beyond this core.
func defaultBatchResolver(salt secrets.SaltConfig) *secrets.BatchResolver {
	b := secrets.NewBatchResolver(salt)
	b.Register(secrets.EnvResolver{})
	b.Register(secrets.OnePasswordResolver{})
	return b
}

// collectSecretRefs gathers every SecretRef declared across g's tasks,
// alongside the FQDN that declared it, for fingerprint bookkeeping.
func collectSecretRefs(g *graph.Graph) ([]manifest.SecretRef, map[string][]manifest.SecretRef) {
	var all []manifest.SecretRef
	byTask := make(map[string][]manifest.SecretRef)
	for _, fqdn := range g.FQDNs() {
		n, ok := g.Node(fqdn)
		if !ok || n.Task == nil || len(n.Task.Secrets) == 0 {
			continue
		}
		all = append(all, n.Task.Secrets...)
		byTask[fqdn] = n.Task.Secrets
	}
	return all, byTask
}

// fingerprintsByTask builds the per-FQDN secret-fingerprint maps a
// runner.CachingRunner needs, from a resolved BatchSecrets and the
// per-task ref lists collectSecretRefs returned.
func fingerprintsByTask(batch *secrets.BatchSecrets, byTask map[string][]manifest.SecretRef) map[string]map[string]string {
	out := make(map[string]map[string]string, len(byTask))
	for fqdn, refs := range byTask {
		m := make(map[string]string, len(refs))
		for _, ref := range refs {
			if fp, ok := batch.Fingerprint(ref.EnvVar); ok {
				m[ref.EnvVar] = fp
			}
		}
		out[fqdn] = m
	}
	return out
}

// localCacheBackend opens (creating if needed) the local cache rooted at
// moduleRoot/.cuenv/cache. No size limit is applied to it:
// CUENV_CACHE_MAX_BYTES is not consulted here or by the backend.
func localCacheBackend(moduleRoot string) (cache.Backend, error) {
	root := filepath.Join(moduleRoot, ".cuenv", "cache")
	backend, err := cache.NewLocalBackend(root)
	if err != nil {
		return nil, cuerrIo("opening local cache", err)
	}
	return backend, nil
}

func maxParallel() int {
	return contract.MaxParallel()
}

// ensureCoordinator makes sure a coordinator is running for moduleRoot,
// spawning one via the current executable if none is reachable.
func ensureCoordinator(ctx context.Context, moduleRoot string) error {
	self, err := os.Executable()
	if err != nil {
		return err
	}
	return coordinator.EnsureRunning(ctx, moduleRoot, self)
}

// summarize renders outcomes as a one-line-per-task human summary.
func summarize(outcomes []scheduler.TaskOutcome) {
	for _, o := range outcomes {
		switch {
		case o.Status == scheduler.StatusSkipped:
			ui.Warningf("%s: skipped (dependency failed)", o.FQDN)
		case o.Err != nil:
			ui.Errorf("%s: %v", o.FQDN, o.Err)
		case o.Result.ExitCode != 0:
			ui.Errorf("%s: exited %d", o.FQDN, o.Result.ExitCode)
		default:
			ui.Success(o.FQDN)
		}
	}
}
