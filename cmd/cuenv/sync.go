// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"sort"

	cuerrors "github.com/kraklabs/cuenv/internal/errors"
	"github.com/kraklabs/cuenv/internal/output"
	"github.com/kraklabs/cuenv/internal/ui"
	"github.com/kraklabs/cuenv/pkg/manifest"
	flag "github.com/spf13/pflag"
)

type syncEntry struct {
	Task        string `json:"task"`
	EnvVar      string `json:"env_var"`
	Resolver    string `json:"resolver"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// runSync implements `cuenv sync <provider>`: resolves every cache-key
// eligible secret whose Resolver matches provider across every discovered
// project and reports coverage by fingerprint only — it never prints a
// resolved secret value, only proof that resolution succeeded.
func runSync(ctx context.Context, args []string) (int, bool, error) {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	g := bindGlobalFlags(fs)
	if err := fs.Parse(args); err != nil {
		return cuerrors.ExitConfiguration, g.json, nil
	}
	moduleRoot := g.setup()

	rest := fs.Args()
	if len(rest) != 1 {
		return cuerrors.ExitConfiguration, g.json, cuerrConfiguration("parse sync provider", fmt.Errorf("usage: cuenv sync <provider>"))
	}
	provider := rest[0]

	taskGraph, err := buildGraph(ctx, moduleRoot, g.pkg)
	if err != nil {
		return 1, g.json, err
	}

	salt := saltFromEnv()
	batch := defaultBatchResolver(salt)

	var refs []manifest.SecretRef
	taskOf := map[string]string{}
	for _, fqdn := range taskGraph.FQDNs() {
		n, ok := taskGraph.Node(fqdn)
		if !ok || n.Task == nil {
			continue
		}
		for _, ref := range n.Task.Secrets {
			if ref.Resolver != provider || !ref.CacheKey {
				continue
			}
			refs = append(refs, ref)
			taskOf[ref.EnvVar] = fqdn
		}
	}

	if len(refs) == 0 {
		if g.json {
			_ = output.JSON([]syncEntry{})
		} else {
			ui.Info(fmt.Sprintf("no cache-key secrets reference provider %q", provider))
		}
		return 0, g.json, nil
	}

	resolved, resolveErr := batch.ResolveBatch(ctx, refs)
	if resolveErr != nil {
		return 1, g.json, cuerrSecretNotFound(provider, resolveErr)
	}

	entries := make([]syncEntry, 0, len(refs))
	for _, ref := range refs {
		fp, _ := resolved.Fingerprint(ref.EnvVar)
		entries = append(entries, syncEntry{
			Task:        taskOf[ref.EnvVar],
			EnvVar:      ref.EnvVar,
			Resolver:    ref.Resolver,
			Fingerprint: fp,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].EnvVar < entries[j].EnvVar })

	if g.json {
		_ = output.JSON(entries)
	} else {
		for _, e := range entries {
			ui.Successf("%s (%s): %s", e.EnvVar, e.Task, e.Fingerprint)
		}
	}

	return 0, g.json, nil
}
