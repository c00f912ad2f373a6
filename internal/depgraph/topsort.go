// Package depgraph orders a sprint's issues into dependency-respecting
// parallel execution groups. Adapted near-verbatim from the teacher's
// internal/graph/topsort.go: the same Kahn's-algorithm BFS-by-level
// approach already produces exactly the "bucket issues by depth" grouping
// spec §4.7 asks for — dangling dependency refs outside the issue set are
// tolerated (treated as already resolved) and cycles are reported with the
// full chain.
package depgraph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sprintforge/sprintforge/internal/planmodel"
)

// Group computes dependency-ordered execution groups for a sprint's issues.
// Groups are sorted by depth ascending; within a group, issues are sorted
// numerically for deterministic logs and tests (spec §4.7's tie-break
// rule — the dispatcher may still run a group's issues in any order).
func Group(issues []planmodel.SprintIssue) ([]planmodel.ExecutionGroup, error) {
	ids := make([]int, 0, len(issues))
	deps := make(map[int][]int, len(issues))
	for _, iss := range issues {
		ids = append(ids, iss.Number)
		deps[iss.Number] = iss.DependsOn
	}

	levels, err := topsort(ids, deps)
	if err != nil {
		return nil, err
	}

	groups := make([]planmodel.ExecutionGroup, len(levels))
	for i, level := range levels {
		groups[i] = planmodel.ExecutionGroup{Group: i, Issues: level}
	}
	return groups, nil
}

// ValidateDependencies reports, per issue, any depends_on reference that is
// not itself present in the issue set (a dangling reference) — these are
// tolerated by Group (treated as already resolved) but worth surfacing.
func ValidateDependencies(issues []planmodel.SprintIssue) map[int][]int {
	present := make(map[int]bool, len(issues))
	for _, iss := range issues {
		present[iss.Number] = true
	}

	dangling := make(map[int][]int)
	for _, iss := range issues {
		for _, dep := range iss.DependsOn {
			if !present[dep] {
				dangling[iss.Number] = append(dangling[iss.Number], dep)
			}
		}
	}
	return dangling
}

// topsort performs Kahn's algorithm over issues, bucketing into
// parallel-safe levels. deps maps an issue to the issues it depends on.
func topsort(issues []int, deps map[int][]int) ([][]int, error) {
	issueSet := make(map[int]bool, len(issues))
	for _, id := range issues {
		issueSet[id] = true
	}

	inDegree := make(map[int]int, len(issues))
	dependents := make(map[int][]int)
	for _, id := range issues {
		inDegree[id] = 0
	}
	for _, id := range issues {
		for _, dep := range deps[id] {
			if !issueSet[dep] {
				continue
			}
			inDegree[id]++
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var levels [][]int
	var queue []int
	for _, id := range issues {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	sort.Ints(queue)

	processed := 0
	for len(queue) > 0 {
		level := queue
		queue = nil
		sort.Ints(level)
		levels = append(levels, level)
		processed += len(level)

		for _, id := range level {
			for _, dep := range dependents[id] {
				inDegree[dep]--
				if inDegree[dep] == 0 {
					queue = append(queue, dep)
				}
			}
		}
	}

	if processed != len(issues) {
		return nil, fmt.Errorf("dependency cycle: %s", describeCycle(issues, deps, issueSet, inDegree))
	}
	return levels, nil
}

func describeCycle(issues []int, deps map[int][]int, issueSet map[int]bool, inDegree map[int]int) string {
	var start int
	for _, id := range issues {
		if inDegree[id] > 0 {
			start = id
			break
		}
	}

	visited := map[int]bool{start: true}
	path := []int{start}
	current := start

	for {
		var next int
		found := false
		for _, dep := range deps[current] {
			if !issueSet[dep] || inDegree[dep] == 0 {
				continue
			}
			next = dep
			found = true
			break
		}
		if !found {
			break
		}
		if visited[next] {
			cycleStart := 0
			for i, id := range path {
				if id == next {
					cycleStart = i
					break
				}
			}
			cycle := append(append([]int{}, path[cycleStart:]...), next)
			parts := make([]string, len(cycle))
			for i, id := range cycle {
				parts[i] = fmt.Sprintf("#%d", id)
			}
			return strings.Join(parts, " → ")
		}
		visited[next] = true
		path = append(path, next)
		current = next
	}

	return fmt.Sprintf("#%d", start)
}
