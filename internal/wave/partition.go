// Package wave partitions decomposed implementation tasks into
// dependency-ordered waves and runs each wave's streams concurrently.
// Every task in wave N+1 starts only after every task in wave N has reached
// a terminal state; tasks within one wave run with no ordering guarantee
// among them.
package wave

import (
	"fmt"

	"github.com/urbanisierung/copilot-swarm/internal/checkpoint"
	"github.com/urbanisierung/copilot-swarm/internal/errors"
)

// Partition groups task indexes into waves by topological level: a task
// with no dependencies lands in the first wave; a dependent task lands in
// the first wave after all of its dependencies' waves. Dependencies are
// explicit declarations by index; a reference outside the task list or a
// cycle is an error.
func Partition(tasks []checkpoint.Task) ([][]int, error) {
	if len(tasks) == 0 {
		return nil, nil
	}

	inDegree := make([]int, len(tasks))
	dependents := make(map[int][]int, len(tasks))
	for i, task := range tasks {
		for _, dep := range task.DependsOn {
			if dep < 0 || dep >= len(tasks) {
				return nil, fmt.Errorf("task %d depends on nonexistent task %d", i, dep)
			}
			if dep == i {
				return nil, fmt.Errorf("task %d depends on itself", i)
			}
			inDegree[i]++
			dependents[dep] = append(dependents[dep], i)
		}
	}

	// BFS over topological levels; each level is one wave.
	var current []int
	for i, deg := range inDegree {
		if deg == 0 {
			current = append(current, i)
		}
	}

	var waves [][]int
	placed := 0
	for len(current) > 0 {
		waves = append(waves, current)
		placed += len(current)

		var next []int
		for _, i := range current {
			for _, dep := range dependents[i] {
				inDegree[dep]--
				if inDegree[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		current = next
	}

	if placed != len(tasks) {
		return nil, fmt.Errorf("%w: %d tasks unreachable", errors.ErrDependencyCycle, len(tasks)-placed)
	}
	return waves, nil
}
