// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"

	cuerrors "github.com/kraklabs/cuenv/internal/errors"
	"github.com/kraklabs/cuenv/pkg/coordinator"
	flag "github.com/spf13/pflag"
)

// runCoordinator implements `cuenv __coordinator --module-root <path>`,
// the subcommand coordinator.spawn invokes to self-host the event server
// a module's task/exec/ci invocations discover and register against.
func runCoordinator(ctx context.Context, args []string) (int, bool, error) {
	fs := flag.NewFlagSet("__coordinator", flag.ContinueOnError)
	moduleRoot := fs.String("module-root", "", "Module root this coordinator serves")
	if err := fs.Parse(args); err != nil {
		return cuerrors.ExitConfiguration, false, nil
	}
	if *moduleRoot == "" {
		return cuerrors.ExitConfiguration, false, cuerrConfiguration("start coordinator", fmt.Errorf("--module-root is required"))
	}

	srv := coordinator.NewServer(*moduleRoot, coordinator.DefaultConfig())
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		return 1, false, cuerrIo("run coordinator", err)
	}
	return 0, false, nil
}
