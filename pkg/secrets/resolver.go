// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package secrets

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"sync"

	"github.com/kraklabs/cuenv/pkg/manifest"
)

// SaltConfig carries the current and (during rotation) previous
// system-wide salt used for secret fingerprint computation, so a salt
// rotation doesn't immediately invalidate every secret-dependent cache
// entry: fingerprints computed under either salt are accepted for a
// grace period.
type SaltConfig struct {
	Current  string
	Previous string
}

// Fingerprint computes the salted fingerprint for name/value under the
// current salt: SHA256(salt || name || value). This mirrors the upstream
// name "HMAC-SHA256", though the construction concatenates rather than
// using HMAC's nested hash — see pkg/digest's AddSecretFingerprints doc.
func (s SaltConfig) Fingerprint(name, value string) (string, error) {
	if s.Current == "" {
		return "", fmt.Errorf("secrets: no salt configured")
	}
	h := sha256.New()
	h.Write([]byte(s.Current))
	h.Write([]byte(name))
	h.Write([]byte(value))
	return fmt.Sprintf("sha256:%x", h.Sum(nil)), nil
}

// Matches reports whether fingerprint matches name/value under either
// the current or the previous salt.
func (s SaltConfig) Matches(name, value, fingerprint string) bool {
	if cur, err := s.Fingerprint(name, value); err == nil && cur == fingerprint {
		return true
	}
	if s.Previous == "" {
		return false
	}
	prevCfg := SaltConfig{Current: s.Previous}
	prev, err := prevCfg.Fingerprint(name, value)
	return err == nil && prev == fingerprint
}

// Resolver resolves a single secret reference to its value.
type Resolver interface {
	// Resolve returns the secret value for ref, or an error if it
	// cannot be produced.
	Resolve(ctx context.Context, ref manifest.SecretRef) (string, error)

	// Name identifies the resolver (e.g. "vault", "onepassword",
	// "infisical") for error messages and stage-contributor activation
	// checks in pkg/ci.
	Name() string
}

// BatchResolver fans a set of secret references out across registered
// Resolvers by ref.Resolver name, merging results into one BatchSecrets.
type BatchResolver struct {
	salt      SaltConfig
	resolvers map[string]Resolver
}

// NewBatchResolver creates a BatchResolver using salt for fingerprinting.
func NewBatchResolver(salt SaltConfig) *BatchResolver {
	return &BatchResolver{salt: salt, resolvers: make(map[string]Resolver)}
}

// Register adds a named resolver; ResolveBatch dispatches a SecretRef to the
// resolver whose Name matches ref.Resolver.
func (b *BatchResolver) Register(r Resolver) {
	b.resolvers[r.Name()] = r
}

// ResolveBatch resolves every ref concurrently and merges the results
// into a single BatchSecrets. The first resolution error is returned;
// partial results up to that point are discarded (callers should not
// use a batch from a failed ResolveBatch call).
func (b *BatchResolver) ResolveBatch(ctx context.Context, refs []manifest.SecretRef) (*BatchSecrets, error) {
	type result struct {
		ref   manifest.SecretRef
		value string
		err   error
	}

	results := make([]result, len(refs))
	var wg sync.WaitGroup
	for i, ref := range refs {
		wg.Add(1)
		go func(i int, ref manifest.SecretRef) {
			defer wg.Done()
			r, ok := b.resolvers[ref.Resolver]
			if !ok {
				results[i] = result{ref: ref, err: fmt.Errorf("secrets: no resolver registered for %q", ref.Resolver)}
				return
			}
			value, err := r.Resolve(ctx, ref)
			results[i] = result{ref: ref, value: value, err: err}
		}(i, ref)
	}
	wg.Wait()

	batch := NewBatchSecrets()
	for _, r := range results {
		if r.err != nil {
			return nil, fmt.Errorf("secrets: resolving %q: %w", r.ref.EnvVar, r.err)
		}

		var fingerprint string
		if r.ref.CacheKey {
			fp, err := b.salt.Fingerprint(r.ref.EnvVar, r.value)
			if err != nil {
				return nil, fmt.Errorf("secrets: fingerprinting %q: %w", r.ref.EnvVar, err)
			}
			fingerprint = fp
		}
		batch.Insert(r.ref.EnvVar, NewSecureSecret(r.value), fingerprint)
	}

	return batch, nil
}

// FingerprintMap returns a plain name->value map's salted fingerprints,
// keyed by name — the shape pkg/digest.AddSecretFingerprints consumes.
func FingerprintMap(salt SaltConfig, values map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(values))
	names := make([]string, 0, len(values))
	for n := range values {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, name := range names {
		fp, err := salt.Fingerprint(name, values[name])
		if err != nil {
			return nil, err
		}
		out[name] = fp
	}
	return out, nil
}
