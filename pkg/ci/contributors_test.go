// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package ci

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOnePasswordContributor_ActivatesOnOpURI(t *testing.T) {
	ir := &IntermediateRepresentation{
		Tasks: []Task{{ID: "deploy", Secrets: map[string]string{"TOKEN": "op://vault/item/field"}}},
	}

	c := OnePasswordContributor{}
	require.True(t, c.IsActive(ir))
	require.True(t, c.Contribute(ir))
	require.Len(t, ir.Stages.Setup, 1)
	require.Equal(t, "setup-1password", ir.Stages.Setup[0].ID)
}

func TestOnePasswordContributor_InactiveWithoutOpSecrets(t *testing.T) {
	ir := &IntermediateRepresentation{
		Tasks: []Task{{ID: "deploy", Secrets: map[string]string{"TOKEN": "vault://whatever"}}},
	}

	require.False(t, OnePasswordContributor{}.IsActive(ir))
}

func TestOnePasswordContributor_IdempotentContribute(t *testing.T) {
	ir := &IntermediateRepresentation{
		Tasks: []Task{{ID: "deploy", Secrets: map[string]string{"TOKEN": "op://vault/item/field"}}},
	}

	c := OnePasswordContributor{}
	require.True(t, c.Contribute(ir))
	require.False(t, c.Contribute(ir))
	require.Len(t, ir.Stages.Setup, 1)
}

func TestGhModelsContributor_ActivatesOnExecCommand(t *testing.T) {
	ir := &IntermediateRepresentation{
		Tasks: []Task{{ID: "eval", Command: []string{"gh", "models", "run", "gpt-4"}}},
	}

	c := GhModelsContributor{}
	require.True(t, c.IsActive(ir))
	require.True(t, c.Contribute(ir))
	require.Len(t, ir.Stages.Setup, 1)
}

func TestGhModelsContributor_ActivatesOnShellCommand(t *testing.T) {
	ir := &IntermediateRepresentation{
		Tasks: []Task{{ID: "eval", Shell: true, Command: []string{"gh models run gpt-4 < prompt.txt"}}},
	}

	require.True(t, GhModelsContributor{}.IsActive(ir))
}

func TestGhModelsContributor_InactiveWithoutMatchingCommand(t *testing.T) {
	ir := &IntermediateRepresentation{
		Tasks: []Task{{ID: "build", Command: []string{"go", "build", "./..."}}},
	}

	require.False(t, GhModelsContributor{}.IsActive(ir))
}

func TestGhModelsContributor_RespectsPipelineTaskFilter(t *testing.T) {
	ir := &IntermediateRepresentation{
		Pipeline: PipelineMetadata{PipelineTasks: []string{"build"}},
		Tasks: []Task{
			{ID: "build", Command: []string{"go", "build", "./..."}},
			{ID: "eval", Command: []string{"gh", "models", "run", "gpt-4"}},
		},
	}

	require.False(t, GhModelsContributor{}.IsActive(ir))
}

func TestRunContributors_OrderedAndSkipsInactive(t *testing.T) {
	ir := &IntermediateRepresentation{
		Tasks: []Task{
			{ID: "deploy", Secrets: map[string]string{"TOKEN": "op://vault/item/field"}},
		},
	}

	applied := RunContributors(ir, DefaultContributors())
	require.Equal(t, []string{"1password"}, applied)
	require.Len(t, ir.Stages.Setup, 1)
}
