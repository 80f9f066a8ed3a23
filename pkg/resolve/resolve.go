// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package resolve expands a task's declared input patterns into a sorted
// list of (relative path, content hash) pairs, and populates a hermetic
// working tree for task execution by hardlinking (falling back to
// copying across filesystem boundaries) resolved inputs into a scratch
// directory.
package resolve

import (
	"crypto/sha256"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ResolvedInput is one input file relative to a project root, with its
// content hash.
type ResolvedInput struct {
	Path   string
	SHA256 string
	Size   int64
}

// Resolver expands glob patterns against a project root into a
// deterministic, sorted input list.
type Resolver struct {
	logger *slog.Logger
}

// New creates a Resolver. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{logger: logger}
}

// Resolve expands patterns (relative to root, using filepath.Match glob
// syntax per path segment) into a sorted, deduplicated list of resolved
// inputs. A pattern with no matches is not an error — tasks commonly
// declare optional inputs.
func (r *Resolver) Resolve(root string, patterns []string) ([]ResolvedInput, error) {
	seen := make(map[string]ResolvedInput)

	for _, pattern := range patterns {
		matches, err := r.expand(root, pattern)
		if err != nil {
			return nil, fmt.Errorf("resolve: expanding pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			seen[m.Path] = m
		}
	}

	out := make([]ResolvedInput, 0, len(seen))
	for _, v := range seen {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// expand walks root, matching pattern against paths relative to root
// using doublestar-free filepath.Match semantics applied segment by
// segment (a literal path that exists is also accepted directly, which
// covers the common case of a single named file input).
func (r *Resolver) expand(root, pattern string) ([]ResolvedInput, error) {
	var matches []ResolvedInput

	if !strings.ContainsAny(pattern, "*?[") {
		full := filepath.Join(root, pattern)
		info, err := os.Stat(full)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, err
		}
		if info.IsDir() {
			return r.expand(root, filepath.Join(pattern, "**"))
		}
		ri, err := hashFile(root, full, info)
		if err != nil {
			return nil, err
		}
		return []ResolvedInput{ri}, nil
	}

	recursive := strings.Contains(pattern, "**")
	prefix := pattern
	if recursive {
		prefix = strings.SplitN(pattern, "**", 2)[0]
	}
	walkRoot := filepath.Join(root, filepath.Dir(prefix))

	err := filepath.WalkDir(walkRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		ok, err := matchGlob(pattern, rel)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		ri, err := hashFile(root, path, info)
		if err != nil {
			return err
		}
		matches = append(matches, ri)
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return matches, nil
}

// matchGlob matches rel against pattern, treating "**" as "match any
// number of path segments" the way cuenv's input globs do.
func matchGlob(pattern, rel string) (bool, error) {
	if strings.Contains(pattern, "**") {
		parts := strings.SplitN(pattern, "**", 2)
		prefix, suffix := parts[0], strings.TrimPrefix(parts[1], "/")
		if !strings.HasPrefix(rel, strings.TrimSuffix(prefix, "/")) {
			return false, nil
		}
		if suffix == "" {
			return true, nil
		}
		return filepath.Match(suffix, filepath.Base(rel))
	}
	return filepath.Match(pattern, rel)
}

func hashFile(root, path string, info fs.FileInfo) (ResolvedInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return ResolvedInput{}, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return ResolvedInput{}, err
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		return ResolvedInput{}, err
	}

	return ResolvedInput{
		Path:   filepath.ToSlash(rel),
		SHA256: fmt.Sprintf("%x", h.Sum(nil)),
		Size:   info.Size(),
	}, nil
}

// AsDigestInputs renders a resolved input list as "path:sha256" strings,
// sorted, ready to be handed to pkg/digest.Builder.AddInputs.
func AsDigestInputs(inputs []ResolvedInput) []string {
	out := make([]string, len(inputs))
	for i, in := range inputs {
		out[i] = fmt.Sprintf("%s:%s", in.Path, in.SHA256)
	}
	return out
}

// PopulateWorkingTree hardlinks each resolved input from root into dest,
// creating parent directories as needed. If hardlinking fails (e.g.
// crossing a filesystem boundary), it falls back to a full copy — the
// same degrade-gracefully pattern the teacher's RepoLoader uses for its
// own temp-directory population.
func PopulateWorkingTree(root, dest string, inputs []ResolvedInput) error {
	for _, in := range inputs {
		src := filepath.Join(root, filepath.FromSlash(in.Path))
		dst := filepath.Join(dest, filepath.FromSlash(in.Path))

		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return fmt.Errorf("resolve: creating working tree dir: %w", err)
		}

		if err := os.Link(src, dst); err == nil {
			continue
		}

		if err := copyFile(src, dst); err != nil {
			return fmt.Errorf("resolve: populating working tree for %q: %w", in.Path, err)
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
