// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package digest

import (
	"crypto/sha256"
	"fmt"
	"sort"
)

// FileNode describes one file entry in a Merkle directory tree: its name
// (relative to the parent directory), size, content hash, and executable
// bit — the tuple a remote REAPI-style CAS keys blobs on.
type FileNode struct {
	Name       string
	Size       int64
	SHA256     string
	Executable bool
}

// DirNode is a directory: a name and its sorted children, which may be
// files or further directories.
type DirNode struct {
	Name     string
	Files    []FileNode
	SubDirs  []DirNode
}

// fileEntryString renders a FileNode the way HashDir folds it into the
// parent digest: "file:name\x00size\x00sha256\x00executable\x00".
func fileEntryString(f FileNode) string {
	exec := "0"
	if f.Executable {
		exec = "1"
	}
	return fmt.Sprintf("file:%s\x00%d\x00%s\x00%s\x00", f.Name, f.Size, f.SHA256, exec)
}

// HashDir computes the Merkle hash of a directory node: the hash of its
// sorted children's entries (each child's own hash folded in by name),
// so a directory's hash is fully determined by its content regardless of
// filesystem iteration order.
func HashDir(d DirNode) string {
	files := append([]FileNode(nil), d.Files...)
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	subdirs := append([]DirNode(nil), d.SubDirs...)
	sort.Slice(subdirs, func(i, j int) bool { return subdirs[i].Name < subdirs[j].Name })

	h := sha256.New()
	for _, f := range files {
		h.Write([]byte(fileEntryString(f)))
	}
	for _, sd := range subdirs {
		childHash := HashDir(sd)
		h.Write([]byte(fmt.Sprintf("dir:%s\x00%s\x00", sd.Name, childHash)))
	}

	return fmt.Sprintf("sha256:%x", h.Sum(nil))
}
