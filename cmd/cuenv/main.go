// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package main implements the cuenv CLI: a CUE-configured monorepo task
// runner and CI pipeline generator.
//
// Usage:
//
//	cuenv task [name...]        Run one or more tasks (default: all)
//	cuenv exec -- <cmd>         Run an ad-hoc command with resolved secrets
//	cuenv ci                    Run (or emit) the CI pipeline
//	cuenv sync <provider>       Resolve and report on a secret provider's refs
//	cuenv __coordinator         Internal: run the event coordinator server
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cuerrors "github.com/kraklabs/cuenv/internal/errors"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return cuerrors.ExitConfiguration
	}

	if args[0] == "--version" || args[0] == "-v" {
		fmt.Printf("cuenv version %s (commit %s, built %s)\n", version, commit, date)
		return cuerrors.ExitSuccess
	}

	command := args[0]
	cmdArgs := args[1:]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		jsonOutput bool
		exitCode   int
		err        error
	)

	switch command {
	case "task":
		exitCode, jsonOutput, err = runTask(ctx, cmdArgs)
	case "exec":
		exitCode, jsonOutput, err = runExec(ctx, cmdArgs)
	case "ci":
		exitCode, jsonOutput, err = runCI(ctx, cmdArgs)
	case "sync":
		exitCode, jsonOutput, err = runSync(ctx, cmdArgs)
	case "__coordinator":
		exitCode, jsonOutput, err = runCoordinator(ctx, cmdArgs)
	case "help", "-h", "--help":
		printUsage()
		return cuerrors.ExitSuccess
	default:
		fmt.Fprintf(os.Stderr, "cuenv: unknown command %q\n", command)
		printUsage()
		return cuerrors.ExitConfiguration
	}

	if ctx.Err() != nil {
		return 130
	}
	if err != nil {
		cuerrors.FatalError(err, jsonOutput)
	}
	return exitCode
}

func printUsage() {
	fmt.Fprint(os.Stderr, `cuenv - CUE-configured monorepo task runner

Usage:
  cuenv <command> [options]

Commands:
  task [name...]      Run one or more tasks (default: every task)
  exec -- <cmd>       Run an ad-hoc command with resolved secrets injected
  ci                  Run the CI pipeline, or emit provider YAML with --emit
  sync <provider>     Resolve a secret provider's refs and report coverage
  __coordinator       Internal: run the event coordinator server

Global Options (accepted by every command):
  --path <dir>        Module root to operate on (default ".")
  --package <name>    Limit to a single project by name
  -l, --level <lvl>   Log level: debug, info, warn, error (default "info")
  --json              Emit machine-readable JSON output
  --no-color          Disable colored output

Environment Variables:
  CUENV_COORDINATOR_SOCKET     Override the coordinator's default socket path
  CUENV_SECRET_SALT            Current secret-fingerprint salt
  CUENV_SECRET_SALT_PREVIOUS   Prior salt, honored during rotation
  CUENV_MAX_PARALLEL           Global task concurrency bound
  CUENV_CACHE_MAX_BYTES        Cache size limit (parsed, not enforced)

Exit codes: 0 OK, 130 interrupted, non-zero on failure.
`)
}
