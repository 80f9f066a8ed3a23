// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package ci

import "strings"

// StageContributor self-detects whether it applies to a given pipeline
// and, if so, contributes setup/build/test/deploy tasks to it.
// Contributors run in a fixed, ordered sequence and must be idempotent —
// running twice must not duplicate a contribution.
type StageContributor interface {
	// ID identifies the contributor for logging and idempotency checks.
	ID() string

	// IsActive reports whether this contributor applies to ir.
	IsActive(ir *IntermediateRepresentation) bool

	// Contribute adds this contributor's tasks to ir's stages, returning
	// whether it actually made a change (false if already contributed).
	Contribute(ir *IntermediateRepresentation) bool
}

// RunContributors runs every contributor against ir in order, skipping
// any whose IsActive returns false. Returns the IDs of contributors that
// made a change, in run order.
func RunContributors(ir *IntermediateRepresentation, contributors []StageContributor) []string {
	var applied []string
	for _, c := range contributors {
		if !c.IsActive(ir) {
			continue
		}
		if c.Contribute(ir) {
			applied = append(applied, c.ID())
		}
	}
	return applied
}

// OnePasswordContributor installs the 1Password CLI setup task when any
// task's secrets reference the "onepassword" resolver or an "op://" URI.
type OnePasswordContributor struct{}

func (OnePasswordContributor) ID() string { return "1password" }

func (OnePasswordContributor) IsActive(ir *IntermediateRepresentation) bool {
	for _, t := range ir.Tasks {
		for _, uri := range t.Secrets {
			if strings.HasPrefix(uri, "op://") || uri == "onepassword" {
				return true
			}
		}
	}
	return false
}

func (OnePasswordContributor) Contribute(ir *IntermediateRepresentation) bool {
	for _, t := range ir.Stages.Setup {
		if t.ID == "setup-1password" {
			return false
		}
	}

	ir.Stages.Append(StageSetup, StageTask{
		ID:        "setup-1password",
		Provider:  "1password",
		Label:     "Setup 1Password",
		Command:   []string{"cuenv", "secrets", "setup", "onepassword"},
		Env:       map[string]string{"OP_SERVICE_ACCOUNT_TOKEN": "${OP_SERVICE_ACCOUNT_TOKEN}"},
		DependsOn: []string{"setup-cuenv"},
		Priority:  20,
	})
	return true
}

// GhModelsContributor installs the gh-models GitHub CLI extension when
// any pipeline task invokes `gh models ...`.
type GhModelsContributor struct{}

func (GhModelsContributor) ID() string { return "gh-models" }

func (GhModelsContributor) IsActive(ir *IntermediateRepresentation) bool {
	tasks := ir.Tasks
	if len(ir.Pipeline.PipelineTasks) > 0 {
		wanted := make(map[string]struct{}, len(ir.Pipeline.PipelineTasks))
		for _, id := range ir.Pipeline.PipelineTasks {
			wanted[id] = struct{}{}
		}
		var filtered []Task
		for _, t := range tasks {
			if _, ok := wanted[t.ID]; ok {
				filtered = append(filtered, t)
			}
		}
		tasks = filtered
	}

	for _, t := range tasks {
		if usesGhModels(t) {
			return true
		}
	}
	return false
}

func usesGhModels(t Task) bool {
	switch {
	case len(t.Command) >= 2:
		return t.Command[0] == "gh" && t.Command[1] == "models"
	case len(t.Command) == 1 && t.Shell:
		return strings.Contains(t.Command[0], "gh models")
	default:
		return false
	}
}

func (GhModelsContributor) Contribute(ir *IntermediateRepresentation) bool {
	for _, t := range ir.Stages.Setup {
		if t.ID == "setup-gh-models" {
			return false
		}
	}

	ir.Stages.Append(StageSetup, StageTask{
		ID:       "setup-gh-models",
		Provider: "gh-models",
		Label:    "Setup GitHub Models CLI",
		Command:  []string{"gh", "extension", "install", "github/gh-models"},
		Priority: 25,
	})
	return true
}

// DefaultContributors returns the standard, ordered contributor set.
func DefaultContributors() []StageContributor {
	return []StageContributor{
		OnePasswordContributor{},
		GhModelsContributor{},
	}
}
