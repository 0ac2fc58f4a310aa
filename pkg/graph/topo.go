package graph

import "sort"

// topologicalOrder runs Kahn's algorithm over an acyclic graph. Ready nodes
// (indegree zero) are consumed in ascending id order so the result is a total
// order that is stable across calls: re-running the same pipeline definition
// always yields the same execution order.
func topologicalOrder(ids []string, adjacency map[string][]string, indegree map[string]int) []string {
	remaining := make(map[string]int, len(ids))
	var ready []string
	for _, id := range ids {
		deg := indegree[id]
		remaining[id] = deg
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(ids))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		var unlocked []string
		for _, next := range adjacency[id] {
			remaining[next]--
			if remaining[next] == 0 {
				unlocked = append(unlocked, next)
			}
		}
		if len(unlocked) > 0 {
			ready = append(ready, unlocked...)
			sort.Strings(ready)
		}
	}

	return order
}
