// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package scheduler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/kraklabs/cuenv/pkg/graph"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	taskDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cuenv",
		Subsystem: "scheduler",
		Name:      "task_duration_seconds",
		Help:      "Task execution duration in seconds, by FQDN and outcome.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"fqdn", "outcome"})

	tasksRunning = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cuenv",
		Subsystem: "scheduler",
		Name:      "tasks_running",
		Help:      "Number of tasks currently executing.",
	})
)

func init() {
	prometheus.MustRegister(taskDuration, tasksRunning)
}

// Runner executes one task's command and returns its result. Production
// callers pass a runner that shells out via os/exec (see CommandRunner);
// tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, n *graph.Node) (Result, error)
}

// Result is one task execution's outcome.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Options configures an Executor.
type Options struct {
	// MaxParallel bounds the number of tasks running concurrently across
	// the whole run. Zero means unbounded (bounded only by per-level
	// concurrency-group exclusion).
	MaxParallel int
}

// Executor runs a graph's topological levels against a Runner, enforcing
// a global parallelism bound and per-concurrency-group mutual exclusion.
type Executor struct {
	runner   Runner
	opts     Options
	registry *ProcessRegistry

	groupMu sync.Mutex
	groups  map[string]*sync.Mutex
}

// New creates an Executor using runner to execute each task.
func New(runner Runner, opts Options) *Executor {
	return &Executor{
		runner:   runner,
		opts:     opts,
		registry: GlobalRegistry(),
		groups:   make(map[string]*sync.Mutex),
	}
}

// Status is a task's terminal disposition within one Run.
type Status int

const (
	StatusSuccess Status = iota
	StatusFailed
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return "success"
	}
}

// TaskOutcome pairs a node with the Result (or error) of running it, plus
// its Status: Failed if the command errored or exited non-zero, Skipped
// if one of its transitive dependencies failed and it was never run.
type TaskOutcome struct {
	FQDN   string
	Result Result
	Err    error
	Status Status
}

// Run executes g level by level: all nodes within a level run
// concurrently (subject to MaxParallel and concurrency-group exclusion),
// and the executor does not advance to the next level until every node
// in the current one has finished. When a task fails (runner error or
// non-zero exit), its transitive dependents are marked Skipped and never
// run, but every branch not downstream of the failure keeps scheduling
// through the remaining levels — Run only returns a non-nil error for a
// precondition like a cycle, never for a task's own failure.
func (e *Executor) Run(ctx context.Context, g *graph.Graph) ([]TaskOutcome, error) {
	if err := g.DetectCycle(); err != nil {
		return nil, err
	}

	var all []TaskOutcome
	levels := g.Levels()
	skip := make(map[string]bool)

	var limiter chan struct{}
	if e.opts.MaxParallel > 0 {
		limiter = make(chan struct{}, e.opts.MaxParallel)
	}

	for _, level := range levels {
		var wg sync.WaitGroup
		outcomes := make([]TaskOutcome, len(level))

		for i, fqdn := range level {
			n, ok := g.Node(fqdn)
			if !ok {
				continue
			}

			if skip[fqdn] {
				outcomes[i] = TaskOutcome{FQDN: fqdn, Status: StatusSkipped}
				continue
			}

			wg.Add(1)
			go func(i int, n *graph.Node) {
				defer wg.Done()

				if limiter != nil {
					limiter <- struct{}{}
					defer func() { <-limiter }()
				}

				if n.Task != nil && n.Task.ConcurrencyGroup != "" {
					groupLock := e.lockFor(n.Task.ConcurrencyGroup)
					groupLock.Lock()
					defer groupLock.Unlock()
				}

				tasksRunning.Inc()
				defer tasksRunning.Dec()

				start := time.Now()
				res, err := e.runner.Run(ctx, n)
				dur := time.Since(start)

				status := StatusSuccess
				label := "success"
				if err != nil || res.ExitCode != 0 {
					status = StatusFailed
					label = "failure"
				}
				taskDuration.WithLabelValues(n.FQDN, label).Observe(dur.Seconds())

				outcomes[i] = TaskOutcome{FQDN: n.FQDN, Result: res, Err: err, Status: status}
			}(i, n)
		}

		wg.Wait()
		all = append(all, outcomes...)

		for _, o := range outcomes {
			if o.Status != StatusFailed {
				continue
			}
			for _, dep := range g.TransitiveDependents([]string{o.FQDN}) {
				if dep != o.FQDN {
					skip[dep] = true
				}
			}
		}
	}

	return all, nil
}

// lockFor returns the mutex guarding the named concurrency group,
// creating it on first use.
func (e *Executor) lockFor(group string) *sync.Mutex {
	e.groupMu.Lock()
	defer e.groupMu.Unlock()
	m, ok := e.groups[group]
	if !ok {
		m = &sync.Mutex{}
		e.groups[group] = m
	}
	return m
}

// CommandRunner executes tasks as real OS processes, placing each in its
// own process group (setpgid) and registering the PID with the global
// ProcessRegistry so a shutdown signal can reach the whole tree.
type CommandRunner struct {
	Env []string
	Dir string
}

func (r *CommandRunner) Run(ctx context.Context, n *graph.Node) (Result, error) {
	if n.Task == nil {
		return Result{}, fmt.Errorf("scheduler: node %q has no task", n.FQDN)
	}

	start := time.Now()

	args := append([]string{n.Task.Command}, n.Task.Args...)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = n.Task.ProjectRoot
	cmd.Env = append(os.Environ(), r.Env...)
	for k, v := range n.Task.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("scheduler: starting %q: %w", n.FQDN, err)
	}

	registry := GlobalRegistry()
	registry.Register(cmd.Process.Pid, n.FQDN)
	defer registry.Unregister(cmd.Process.Pid)

	err := cmd.Wait()
	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return Result{}, fmt.Errorf("scheduler: running %q: %w", n.FQDN, err)
		}
	}

	slog.Debug("task finished", "fqdn", n.FQDN, "exitCode", exitCode, "duration", time.Since(start))

	return Result{
		ExitCode: exitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}, nil
}
