// Package script runs multi-step command files across a host fleet.
// A script file is the fan-out analog of piping a local file to a remote
// shell: each non-empty, non-comment line is one step, and every step is
// executed on all hosts before the next step begins.
package script

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pvefleet/pvefleet/internal/executor"
	"github.com/pvefleet/pvefleet/internal/grouper"
)

// Step is a single command in a script.
type Step struct {
	Command string
	Line    int // 1-based line number in the source file
}

// StepResult holds the outcome of executing a single step across the fleet.
type StepResult struct {
	Step    Step
	Results executor.Results
	Grouped *grouper.GroupedResults
}

// Load parses a script file into steps. Blank lines and lines starting
// with # are skipped.
func Load(path string) ([]Step, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script file: %w", err)
	}

	var steps []Step
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		steps = append(steps, Step{Command: line, Line: i + 1})
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("script file %s contains no commands", path)
	}
	return steps, nil
}

// Runner executes script steps sequentially, fanning each step out across
// the full host list.
type Runner struct {
	exec  *executor.Executor
	hosts []string
}

// New creates a Runner with the given executor and host list.
func New(exec *executor.Executor, hosts []string) *Runner {
	return &Runner{
		exec:  exec,
		hosts: hosts,
	}
}

// Run executes steps in order. A host failing a step is recorded but does
// not remove it from later steps, and a failing step does not stop the
// script; the caller inspects per-step results for the aggregate outcome.
func (r *Runner) Run(ctx context.Context, steps []Step) ([]StepResult, error) {
	results := make([]StepResult, 0, len(steps))

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("script cancelled: %w", err)
		}

		hostResults := r.exec.Execute(ctx, r.hosts, step.Command)
		results = append(results, StepResult{
			Step:    step,
			Results: hostResults,
			Grouped: grouper.Group(hostResults),
		})
	}

	return results, nil
}

// AllOK reports whether every host succeeded on every step.
func AllOK(results []StepResult) bool {
	for _, sr := range results {
		if !sr.Results.AllOK() {
			return false
		}
	}
	return true
}
