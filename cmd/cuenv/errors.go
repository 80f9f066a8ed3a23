// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	cuerrors "github.com/kraklabs/cuenv/internal/errors"
)

func cuerrConfiguration(step string, err error) *cuerrors.UserError {
	return cuerrors.NewConfigurationError(
		"failed to "+step,
		err.Error(),
		"check that every env.cue file under the module root is valid and that --path/--package point at a real project",
		err,
	)
}

func cuerrIo(step string, err error) *cuerrors.UserError {
	return cuerrors.NewIoError(
		"failed to "+step,
		err.Error(),
		"check filesystem permissions and available disk space",
		err,
	)
}

func cuerrCycle(err error) *cuerrors.UserError {
	return cuerrors.NewCycleError(
		"task graph has a cycle",
		err.Error(),
		"break the cycle by removing one of the dependsOn edges reported above",
	)
}

func cuerrProcessSpawn(step string, err error) *cuerrors.UserError {
	return cuerrors.NewProcessSpawnError(
		"failed to "+step,
		err.Error(),
		"check the task's command and that it is on PATH",
		err,
	)
}

func cuerrSecretNotFound(name string, err error) *cuerrors.UserError {
	return cuerrors.NewSecretNotFoundError(
		"could not resolve secret "+name,
		err.Error(),
		"check the secret's resolver configuration and that any required CLI (op, vault, aws) is installed and authenticated",
	)
}
