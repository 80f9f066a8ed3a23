// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package ci

import "gopkg.in/yaml.v3"

// GitHubWorkflow is a GitHub Actions workflow document.
type GitHubWorkflow struct {
	Name string                   `yaml:"name"`
	On   map[string]any           `yaml:"on"`
	Jobs map[string]GitHubJob     `yaml:"jobs"`
}

// GitHubJob is one job of a GitHub Actions workflow.
type GitHubJob struct {
	RunsOn    string            `yaml:"runs-on"`
	Needs     []string          `yaml:"needs,omitempty"`
	If        string            `yaml:"if,omitempty"`
	Env       map[string]string `yaml:"env,omitempty"`
	Steps     []GitHubStep      `yaml:"steps"`
	Strategy  *GitHubStrategy   `yaml:"strategy,omitempty"`
}

// GitHubStrategy is a job's matrix strategy.
type GitHubStrategy struct {
	Matrix map[string][]string `yaml:"matrix"`
}

// GitHubStep is one step of a GitHub Actions job.
type GitHubStep struct {
	Name string            `yaml:"name,omitempty"`
	Run  string            `yaml:"run,omitempty"`
	Env  map[string]string `yaml:"env,omitempty"`
	If   string            `yaml:"if,omitempty"`
}

// LowerGitHubActions renders ir as a single GitHub Actions workflow with
// one job per task (every setup job is added to the `needs` of each task
// job that has no dependencies of its own), a matrix strategy for tasks
// carrying a Matrix, and deploy jobs with ManualApproval set gated by an
// `if` that runs them only on a workflow_dispatch event.
func LowerGitHubActions(ir *IntermediateRepresentation) *GitHubWorkflow {
	wf := &GitHubWorkflow{
		Name: ir.Pipeline.Name,
		On:   map[string]any{"push": map[string]any{}},
		Jobs: make(map[string]GitHubJob),
	}

	var setupNeeds []string
	for _, st := range ir.Stages.Setup {
		job := GitHubJob{
			RunsOn: "ubuntu-latest",
			Steps: []GitHubStep{
				{Name: st.Label, Run: joinCommand(st.Command), Env: st.Env},
			},
		}
		for _, dep := range st.DependsOn {
			job.Needs = append(job.Needs, dep)
		}
		wf.Jobs[st.ID] = job
		setupNeeds = append(setupNeeds, st.ID)
	}

	for _, t := range ir.Tasks {
		job := GitHubJob{
			RunsOn: "ubuntu-latest",
			Env:    t.Env,
			Steps: []GitHubStep{
				{Name: t.ID, Run: joinCommand(t.Command), Env: t.Env},
			},
		}

		needs := append([]string{}, t.DependsOn...)
		if len(t.DependsOn) == 0 {
			needs = append(needs, setupNeeds...)
		}
		job.Needs = needs

		if len(t.Matrix) > 0 {
			job.Strategy = &GitHubStrategy{Matrix: t.Matrix}
		}
		if t.Deployment && t.ManualApproval {
			job.If = "github.event_name == 'workflow_dispatch'"
		}

		wf.Jobs[t.ID] = job
	}

	return wf
}

func joinCommand(cmd []string) string {
	out := ""
	for i, part := range cmd {
		if i > 0 {
			out += " "
		}
		out += part
	}
	return out
}

// ToYAML renders wf as GitHub Actions workflow YAML bytes.
func (wf *GitHubWorkflow) ToYAML() ([]byte, error) {
	return yaml.Marshal(wf)
}
