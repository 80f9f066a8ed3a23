// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

import "context"

// RemoteBackend sketches a Bazel Remote Execution API (REAPI) CAS/Action-
// Cache-backed Backend. It is deliberately interface-only: wiring a real
// gRPC REAPI client is out of scope (see SPEC_FULL.md's cache section),
// but the shape lets a future backend slot in without touching the
// scheduler.
type RemoteBackend interface {
	Backend

	// InstanceName identifies the REAPI instance this backend targets.
	InstanceName() string
}

// Composite tries backends in order, treating a gracefully-degradable
// error from one backend as a reason to fall through to the next rather
// than fail outright. This is how a remote-then-local cache configuration
// degrades when the remote is unreachable.
type Composite struct {
	backends []Backend
}

// NewComposite builds a Composite trying each backend in order.
func NewComposite(backends ...Backend) *Composite {
	return &Composite{backends: backends}
}

func (c *Composite) Check(ctx context.Context, digest string, policy Policy) (LookupResult, error) {
	var lastErr error
	for _, b := range c.backends {
		res, err := b.Check(ctx, digest, policy)
		if err == nil {
			return res, nil
		}
		if be, ok := err.(*BackendError); ok && be.IsGracefullyDegradable() {
			lastErr = err
			continue
		}
		return LookupResult{}, err
	}
	if lastErr != nil {
		return Miss(digest), nil
	}
	return Miss(digest), ErrNoHealthyBackend
}

func (c *Composite) Store(ctx context.Context, digest string, entry Entry, policy Policy) error {
	var lastErr error
	stored := false
	for _, b := range c.backends {
		if err := b.Store(ctx, digest, entry, policy); err != nil {
			if be, ok := err.(*BackendError); ok && be.IsGracefullyDegradable() {
				lastErr = err
				continue
			}
			return err
		}
		stored = true
	}
	if !stored && lastErr != nil {
		return lastErr
	}
	return nil
}

func (c *Composite) RestoreOutputs(ctx context.Context, digest string, workspace string) ([]Output, error) {
	var lastErr error
	for _, b := range c.backends {
		out, err := b.RestoreOutputs(ctx, digest, workspace)
		if err == nil {
			return out, nil
		}
		if be, ok := err.(*BackendError); ok && be.IsGracefullyDegradable() {
			lastErr = err
			continue
		}
		return nil, err
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrNoHealthyBackend
}

func (c *Composite) GetLogs(ctx context.Context, digest string) (string, string, error) {
	var lastErr error
	for _, b := range c.backends {
		stdout, stderr, err := b.GetLogs(ctx, digest)
		if err == nil {
			return stdout, stderr, nil
		}
		if be, ok := err.(*BackendError); ok && be.IsGracefullyDegradable() {
			lastErr = err
			continue
		}
		return "", "", err
	}
	if lastErr != nil {
		return "", "", lastErr
	}
	return "", "", ErrNoHealthyBackend
}

func (c *Composite) Name() string { return "composite" }

func (c *Composite) HealthCheck(ctx context.Context) error {
	for _, b := range c.backends {
		if err := b.HealthCheck(ctx); err == nil {
			return nil
		}
	}
	return ErrNoHealthyBackend
}
