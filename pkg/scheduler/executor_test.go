// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kraklabs/cuenv/pkg/graph"
	"github.com/kraklabs/cuenv/pkg/manifest"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
}

func (f *fakeRunner) Run(ctx context.Context, n *graph.Node) (Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, n.FQDN)
	f.mu.Unlock()

	if f.fail != nil && f.fail[n.FQDN] {
		return Result{ExitCode: 1}, nil
	}
	return Result{ExitCode: 0}, nil
}

func buildGraph(nodes ...*graph.Node) *graph.Graph {
	g := graph.New()
	for _, n := range nodes {
		g.AddNode(n)
	}
	return g
}

func TestExecutor_RunsLevelsInOrder(t *testing.T) {
	g := buildGraph(
		&graph.Node{FQDN: "task:a:build", Task: &manifest.Task{}},
		&graph.Node{FQDN: "task:a:test", Task: &manifest.Task{}, DependsOn: []string{"task:a:build"}},
	)

	runner := &fakeRunner{}
	e := New(runner, Options{})
	outcomes, err := e.Run(context.Background(), g)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
}

func TestExecutor_FailingTaskReportsError(t *testing.T) {
	g := buildGraph(&graph.Node{FQDN: "task:a:build", Task: &manifest.Task{}})

	runner := &fakeRunner{fail: map[string]bool{"task:a:build": true}}
	e := New(runner, Options{})
	outcomes, err := e.Run(context.Background(), g)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	require.Equal(t, StatusFailed, outcomes[0].Status)
}

func TestExecutor_FailedTaskSkipsDependentsButRunsSiblings(t *testing.T) {
	g := buildGraph(
		&graph.Node{FQDN: "task:a:build", Task: &manifest.Task{}},
		&graph.Node{FQDN: "task:a:test", Task: &manifest.Task{}, DependsOn: []string{"task:a:build"}},
		&graph.Node{FQDN: "task:b:build", Task: &manifest.Task{}},
	)

	runner := &fakeRunner{fail: map[string]bool{"task:a:build": true}}
	e := New(runner, Options{})
	outcomes, err := e.Run(context.Background(), g)
	require.NoError(t, err)

	byFQDN := make(map[string]TaskOutcome, len(outcomes))
	for _, o := range outcomes {
		byFQDN[o.FQDN] = o
	}

	require.Equal(t, StatusFailed, byFQDN["task:a:build"].Status)
	require.Equal(t, StatusSkipped, byFQDN["task:a:test"].Status)
	require.Equal(t, StatusSuccess, byFQDN["task:b:build"].Status)

	runner.mu.Lock()
	defer runner.mu.Unlock()
	require.NotContains(t, runner.calls, "task:a:test")
}

func TestExecutor_ConcurrencyGroupIsExclusive(t *testing.T) {
	var concurrent int32
	var maxConcurrent int32

	g := buildGraph(
		&graph.Node{FQDN: "task:a:1", Task: &manifest.Task{ConcurrencyGroup: "shared"}},
		&graph.Node{FQDN: "task:a:2", Task: &manifest.Task{ConcurrencyGroup: "shared"}},
	)

	runner := runnerFunc(func(ctx context.Context, n *graph.Node) (Result, error) {
		cur := atomic.AddInt32(&concurrent, 1)
		for {
			old := atomic.LoadInt32(&maxConcurrent)
			if cur <= old || atomic.CompareAndSwapInt32(&maxConcurrent, old, cur) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&concurrent, -1)
		return Result{}, nil
	})

	e := New(runner, Options{})
	_, err := e.Run(context.Background(), g)
	require.NoError(t, err)
	require.Equal(t, int32(1), maxConcurrent)
}

type runnerFunc func(ctx context.Context, n *graph.Node) (Result, error)

func (f runnerFunc) Run(ctx context.Context, n *graph.Node) (Result, error) { return f(ctx, n) }

func TestExecutor_MaxParallelLimitsConcurrency(t *testing.T) {
	var concurrent int32
	var maxConcurrent int32
	var mu sync.Mutex

	nodes := make([]*graph.Node, 0, 5)
	for i := 0; i < 5; i++ {
		nodes = append(nodes, &graph.Node{FQDN: "task:a:n" + string(rune('0'+i)), Task: &manifest.Task{}})
	}
	g := buildGraph(nodes...)

	runner := runnerFunc(func(ctx context.Context, n *graph.Node) (Result, error) {
		cur := atomic.AddInt32(&concurrent, 1)
		mu.Lock()
		if cur > maxConcurrent {
			maxConcurrent = cur
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&concurrent, -1)
		return Result{}, nil
	})

	e := New(runner, Options{MaxParallel: 2})
	_, err := e.Run(context.Background(), g)
	require.NoError(t, err)
	require.LessOrEqual(t, maxConcurrent, int32(2))
}
