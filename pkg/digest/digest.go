// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package digest computes content-addressable digests used as cache keys
// for task execution, and Merkle-style directory hashes for remote CAS
// backends.
//
// A task digest folds together the command line, the environment, the
// declared inputs, an optional runtime descriptor, optional salted secret
// fingerprints, and an optional impurity marker — each field separated by
// a NUL byte so no ambiguity exists between e.g. "ab"+"c" and "a"+"bc".
package digest

import (
	"crypto/sha256"
	"fmt"
	"sort"
)

// Builder accumulates digest input fields in a fixed order and produces a
// single "sha256:<64-hex>" string.
type Builder struct {
	h *sha256SumState
}

// sha256SumState buffers every written field; Finalize hashes the buffer
// in one pass. Builder holds it by pointer, so Builder's zero value isn't
// usable directly (callers must go through NewBuilder), matching the
// teacher's constructor-only idiom.
type sha256SumState struct {
	sum [32]byte
	buf []byte
}

// NewBuilder creates an empty digest builder.
func NewBuilder() *Builder {
	return &Builder{h: &sha256SumState{}}
}

func (s *sha256SumState) write(p []byte) {
	s.buf = append(s.buf, p...)
}

// AddCommand folds argv into the digest, one NUL-terminated field per
// argument, in the given order (argv order is significant).
func (b *Builder) AddCommand(argv []string) *Builder {
	for _, arg := range argv {
		b.h.write([]byte(arg))
		b.h.write([]byte{0})
	}
	return b
}

// AddEnv folds environment variables into the digest sorted by key, each
// as "key=value\x00", so map iteration order never affects the result.
func (b *Builder) AddEnv(env map[string]string) *Builder {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		b.h.write([]byte(k))
		b.h.write([]byte{'='})
		b.h.write([]byte(env[k]))
		b.h.write([]byte{0})
	}
	return b
}

// AddInputs folds input patterns into the digest in the given order, one
// NUL-terminated field each. Callers that need order-independence should
// sort the slice before calling (pkg/resolve resolves inputs to a sorted
// path+hash list before this is called).
func (b *Builder) AddInputs(inputs []string) *Builder {
	for _, in := range inputs {
		b.h.write([]byte(in))
		b.h.write([]byte{0})
	}
	return b
}

// AddRuntime folds a runtime descriptor (e.g. toolchain lockfile digest,
// output path, target system triple) into the digest.
func (b *Builder) AddRuntime(descriptor string) *Builder {
	b.h.write([]byte(descriptor))
	b.h.write([]byte{0})
	return b
}

// AddSecretFingerprints folds salted secret fingerprints into the digest,
// sorted by secret name. Each fingerprint is computed as
// SHA256(salt || name || value) — a salted hash, not a true HMAC
// construction (this matches the original Rust implementation, which
// calls itself "HMAC-SHA256" but actually concatenates salt+key+value
// into a single SHA-256 pass rather than using HMAC's nested construction).
func (b *Builder) AddSecretFingerprints(secrets map[string]string, salt string) *Builder {
	keys := make([]string, 0, len(secrets))
	for k := range secrets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fp := sha256.New()
		fp.Write([]byte(salt))
		fp.Write([]byte(k))
		fp.Write([]byte(secrets[k]))
		b.h.write(fp.Sum(nil))
	}
	return b
}

// AddImpurityUUID mixes a fresh UUID into the digest so the resulting
// cache key never matches a prior run — used for tasks marked impure.
func (b *Builder) AddImpurityUUID(uuid string) *Builder {
	b.h.write([]byte("IMPURE:"))
	b.h.write([]byte(uuid))
	b.h.write([]byte{0})
	return b
}

// Finalize computes the digest over everything written so far and
// returns it as "sha256:<64-hex>" (71 characters total).
func (b *Builder) Finalize() string {
	sum := sha256.Sum256(b.h.buf)
	return fmt.Sprintf("sha256:%x", sum)
}

// TaskDigestInput is the full set of fields a task digest is computed
// from, corresponding to the digest's 6-tuple: argv, env, inputs, runtime
// descriptor, secret fingerprints + salt, and an optional impurity marker.
type TaskDigestInput struct {
	Command            []string
	Env                map[string]string
	Inputs             []string
	RuntimeDescriptor   string
	SecretFingerprints map[string]string
	Salt               string
	ImpurityUUID       string
}

// ComputeTaskDigest computes a task's cache-key digest from its full
// input set. Fields are folded in a fixed order: command, env, inputs,
// runtime descriptor, secret fingerprints, impurity marker.
func ComputeTaskDigest(in TaskDigestInput) string {
	b := NewBuilder()
	b.AddCommand(in.Command)
	b.AddEnv(in.Env)
	b.AddInputs(in.Inputs)

	if in.RuntimeDescriptor != "" {
		b.AddRuntime(in.RuntimeDescriptor)
	}

	if len(in.SecretFingerprints) > 0 && in.Salt != "" {
		b.AddSecretFingerprints(in.SecretFingerprints, in.Salt)
	}

	if in.ImpurityUUID != "" {
		b.AddImpurityUUID(in.ImpurityUUID)
	}

	return b.Finalize()
}
