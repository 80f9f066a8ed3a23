// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package report persists a pipeline run's outcome as a PipelineReport JSON
// document under .cuenv/reports/<sha>/<project>.json, so a failed run
// leaves behind exactly what spec.md's CI report surface promises: enough
// detail to diagnose without re-running.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Status is a pipeline or task's terminal state.
type Status string

const (
	StatusSuccess Status = "Success"
	StatusFailed  Status = "Failed"
	StatusPartial Status = "Partial"
	StatusPending Status = "Pending"
)

// Context captures the CI environment a pipeline ran under.
type Context struct {
	Provider     string   `json:"provider"`
	Event        string   `json:"event"`
	Ref          string   `json:"ref"`
	BaseRef      string   `json:"base_ref,omitempty"`
	SHA          string   `json:"sha"`
	ChangedFiles []string `json:"changed_files,omitempty"`
}

// TaskReport is one task's contribution to a PipelineReport.
type TaskReport struct {
	Name          string   `json:"name"`
	Status        Status   `json:"status"`
	DurationMs    int64    `json:"duration_ms"`
	ExitCode      int      `json:"exit_code"`
	InputsMatched []string `json:"inputs_matched,omitempty"`
	CacheKey      string   `json:"cache_key,omitempty"`
	Outputs       []string `json:"outputs,omitempty"`
}

// PipelineReport is the persisted record of one pipeline run, written to
// .cuenv/reports/<sha>/<project>.json.
type PipelineReport struct {
	Version     string       `json:"version"`
	Project     string       `json:"project"`
	Pipeline    string       `json:"pipeline"`
	Context     Context      `json:"context"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt time.Time    `json:"completed_at"`
	DurationMs  int64        `json:"duration_ms"`
	Status      Status       `json:"status"`
	Tasks       []TaskReport `json:"tasks"`
}

// Finalize fills in CompletedAt and DurationMs from StartedAt, and sets
// Status by aggregating Tasks: Success iff every task succeeded, Failed
// if any task failed, Partial otherwise (e.g. a run interrupted mid-way).
func (r *PipelineReport) Finalize(completedAt time.Time) {
	r.CompletedAt = completedAt
	r.DurationMs = completedAt.Sub(r.StartedAt).Milliseconds()
	r.Status = aggregateStatus(r.Tasks)
}

func aggregateStatus(tasks []TaskReport) Status {
	if len(tasks) == 0 {
		return StatusPending
	}

	allSuccess := true
	anyFailed := false
	for _, t := range tasks {
		switch t.Status {
		case StatusFailed:
			anyFailed = true
			allSuccess = false
		case StatusSuccess:
		default:
			allSuccess = false
		}
	}

	switch {
	case anyFailed:
		return StatusFailed
	case allSuccess:
		return StatusSuccess
	default:
		return StatusPartial
	}
}

// Path returns the on-disk path a report for the given sha/project should
// be written to, rooted at moduleRoot.
func Path(moduleRoot, sha, project string) string {
	return filepath.Join(moduleRoot, ".cuenv", "reports", sha, sanitizeProjectName(project)+".json")
}

// sanitizeProjectName replaces path separators and other filesystem-unsafe
// characters in a project name, the same way pkg/cache shards a digest
// into a directory-safe path: project names may contain '/' (cross-project
// references use "#dir/nested:task"), which would otherwise create
// unintended subdirectories under reports/<sha>/.
func sanitizeProjectName(name string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_")
	return replacer.Replace(name)
}

// Write serializes r as indented JSON and writes it to its canonical path
// under moduleRoot, creating parent directories as needed.
func Write(moduleRoot string, r *PipelineReport) error {
	path := Path(moduleRoot, r.Context.SHA, r.Project)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("report: creating report directory: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("report: marshaling report: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("report: writing %s: %w", path, err)
	}
	return nil
}

// Read loads a previously written PipelineReport for sha/project under
// moduleRoot.
func Read(moduleRoot, sha, project string) (*PipelineReport, error) {
	path := Path(moduleRoot, sha, project)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("report: reading %s: %w", path, err)
	}

	var r PipelineReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("report: parsing %s: %w", path, err)
	}
	return &r, nil
}
