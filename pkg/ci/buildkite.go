// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package ci

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// BuildkitePipeline is a Buildkite pipeline.yml document.
type BuildkitePipeline struct {
	Steps []BuildkiteStep   `yaml:"steps"`
	Env   map[string]string `yaml:"env,omitempty"`
}

// BuildkiteStep is one step of a Buildkite pipeline. Exactly one of
// Command, Block, or Wait/Group should be set; yaml.v3 serializes
// whichever fields are non-zero (mirroring the Rust schema's untagged
// Step enum).
type BuildkiteStep struct {
	Label             string                     `yaml:"label,omitempty"`
	Key               string                     `yaml:"key,omitempty"`
	Command           []string                   `yaml:"command,omitempty"`
	Env               map[string]string          `yaml:"env,omitempty"`
	Agents            map[string]string          `yaml:"agents,omitempty"`
	ArtifactPaths     []string                    `yaml:"artifact_paths,omitempty"`
	DependsOn         []string                    `yaml:"depends_on,omitempty"`
	ConcurrencyGroup  string                      `yaml:"concurrency_group,omitempty"`
	Concurrency       int                         `yaml:"concurrency,omitempty"`
	TimeoutInMinutes  int                         `yaml:"timeout_in_minutes,omitempty"`
	SoftFail          *bool                       `yaml:"soft_fail,omitempty"`
	Block             string                      `yaml:"block,omitempty"`
	Prompt            string                      `yaml:"prompt,omitempty"`
	Wait              *string                     `yaml:"wait,omitempty"`
	ContinueOnFailure *bool                       `yaml:"continue_on_failure,omitempty"`
	Group             string                      `yaml:"group,omitempty"`
	Steps             []BuildkiteStep             `yaml:"steps,omitempty"`
	Matrix            map[string][]string         `yaml:"matrix,omitempty"`
}

// LowerBuildkite renders ir as a Buildkite pipeline: one command step per
// task (grouped by stage in setup/build/test/deploy order), deploy tasks
// needing approval preceded by a block step, and a wait step between
// stage boundaries so later stages only start once earlier ones finish.
func LowerBuildkite(ir *IntermediateRepresentation) *BuildkitePipeline {
	pipeline := &BuildkitePipeline{}

	stages := []BuildStage{StageSetup, StageBuild, StageTest, StageDeploy}
	for i, stage := range stages {
		var stepsThisStage []BuildkiteStep

		for _, st := range ir.Stages.Tasks(stage) {
			stepsThisStage = append(stepsThisStage, BuildkiteStep{
				Label:     st.Label,
				Key:       st.ID,
				Command:   st.Command,
				Env:       st.Env,
				DependsOn: st.DependsOn,
			})
		}

		if stage == StageDeploy {
			for _, t := range ir.Tasks {
				if !t.Deployment {
					continue
				}
				if t.ManualApproval {
					stepsThisStage = append(stepsThisStage, BuildkiteStep{
						Block:     fmt.Sprintf("Deploy %s?", t.ID),
						Key:       t.ID + ".approval",
						DependsOn: t.DependsOn,
					})
				}
				deps := t.DependsOn
				if t.ManualApproval {
					deps = append(append([]string{}, deps...), t.ID+".approval")
				}
				stepsThisStage = append(stepsThisStage, taskStep(t, deps))
			}
		} else {
			for _, t := range ir.Tasks {
				if t.Deployment {
					continue
				}
				if taskStage(t) != stage {
					continue
				}
				stepsThisStage = append(stepsThisStage, taskStep(t, t.DependsOn))
			}
		}

		if len(stepsThisStage) == 0 {
			continue
		}
		pipeline.Steps = append(pipeline.Steps, stepsThisStage...)

		if i < len(stages)-1 {
			wait := "~"
			pipeline.Steps = append(pipeline.Steps, BuildkiteStep{Wait: &wait})
		}
	}

	return pipeline
}

// taskStage assigns a Task to a BuildStage based on naming convention:
// tasks named "test"/"test.*" run in the test stage, everything else
// (that isn't a deploy) runs in build. A cuenv task graph carries no
// intrinsic stage field, so this heuristic mirrors the IR's
// setup/build/test/deploy phase ordering.
func taskStage(t Task) BuildStage {
	if hasPrefix(lastSegment(t.ID), "test") {
		return StageTest
	}
	return StageBuild
}

func taskStep(t Task, deps []string) BuildkiteStep {
	step := BuildkiteStep{
		Label:     t.ID,
		Key:       t.ID,
		Command:   t.Command,
		Env:       t.Env,
		DependsOn: deps,
	}
	if t.ConcurrencyGroup != "" {
		step.ConcurrencyGroup = t.ConcurrencyGroup
		step.Concurrency = 1
	}
	if len(t.Matrix) > 0 {
		step.Matrix = t.Matrix
	}
	return step
}

// ToYAML renders pipeline as Buildkite pipeline.yml bytes.
func (pipeline *BuildkitePipeline) ToYAML() ([]byte, error) {
	return yaml.Marshal(pipeline)
}
