// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package graph

import (
	"fmt"
	"sort"

	"github.com/kraklabs/cuenv/pkg/manifest"
)

// Build assembles a normalized, cross-project Graph from a decoded
// ModuleEvaluation: it computes project ids, sets default project roots,
// normalizes every task's dependencies to FQDN form, and flattens task
// groups into individual scheduler nodes. It does not itself check for
// cycles — call (*Graph).DetectCycle on the result.
func Build(eval manifest.ModuleEvaluation) (*Graph, error) {
	if err := eval.Validate(); err != nil {
		return nil, err
	}

	projectIDByRoot := make(map[string]string, len(eval.Projects))
	projectIDByName := make(map[string]string, len(eval.Projects))

	roots := make([]string, 0, len(eval.Projects))
	for root := range eval.Projects {
		roots = append(roots, root)
	}
	sort.Strings(roots)

	for _, root := range roots {
		p := eval.Projects[root]
		id := ComputeProjectID(p, root, eval.ModuleRoot)
		projectIDByRoot[root] = id
		if p.Name != "" {
			projectIDByName[p.Name] = id
		}
	}

	g := New()

	for _, root := range roots {
		p := eval.Projects[root]
		projectID := projectIDByRoot[root]

		taskNames := make([]string, 0, len(p.Tasks))
		for name := range p.Tasks {
			taskNames = append(taskNames, name)
		}
		sort.Strings(taskNames)

		for _, name := range taskNames {
			def := p.Tasks[name]
			SetDefaultProjectRoot(&def, root)
			NormalizeDefinitionDeps(&def, projectIDByRoot, projectIDByName, projectID)
			if err := flatten(g, projectID, name, def); err != nil {
				return nil, fmt.Errorf("graph: project %q task %q: %w", projectID, name, err)
			}
		}
	}

	return g, nil
}

// flatten expands a (possibly grouped) task definition into individual
// scheduler nodes under namespace "name", "name.<sub>", etc., wiring each
// sub-node to its siblings per the group's sequential/parallel semantics
// in addition to whatever explicit deps it already carries.
func flatten(g *Graph, projectID, name string, def manifest.TaskDefinition) error {
	fqdn := TaskFQDN(projectID, name)

	switch {
	case def.IsSingle():
		g.AddNode(&Node{FQDN: fqdn, Task: def.Task, DependsOn: def.Task.DependsOn})
		return nil

	case def.IsGroup():
		group := def.Group
		if group.IsSequential() {
			var prevFQDN string
			for i, sub := range group.Sequential {
				subName := fmt.Sprintf("%s.%d", name, i)
				deps := append([]string(nil), group.DependsOn...)
				if prevFQDN != "" {
					deps = append(deps, prevFQDN)
				}
				if err := flattenWithExtraDeps(g, projectID, subName, sub, deps); err != nil {
					return err
				}
				prevFQDN = TaskFQDN(projectID, subName)
			}
			return nil
		}

		if group.IsParallel() {
			subNames := make([]string, 0, len(group.Parallel))
			for k := range group.Parallel {
				subNames = append(subNames, k)
			}
			sort.Strings(subNames)

			for _, k := range subNames {
				subName := fmt.Sprintf("%s.%s", name, k)
				if err := flattenWithExtraDeps(g, projectID, subName, group.Parallel[k], group.DependsOn); err != nil {
					return err
				}
			}
			return nil
		}
	}

	return fmt.Errorf("graph: task definition %q is neither a single task nor a group", name)
}

func flattenWithExtraDeps(g *Graph, projectID, name string, def manifest.TaskDefinition, extraDeps []string) error {
	if def.IsSingle() {
		def.Task.DependsOn = append(append([]string(nil), def.Task.DependsOn...), extraDeps...)
	} else if def.IsGroup() {
		def.Group.DependsOn = append(append([]string(nil), def.Group.DependsOn...), extraDeps...)
	}
	return flatten(g, projectID, name, def)
}
