package resolver

import (
	"sort"

	"github.com/san-kum/gemsim/internal/dynamo"
)

// Item is one node of a group to be ordered.
type Item struct {
	Name string
	// Deps are names in the same group that must come first. Names outside
	// the group are ignored.
	Deps []string
	// Weight breaks ties between items ready at the same time; lower first.
	Weight int
}

// Sort orders items in waves. Each wave holds every item whose
// dependencies are already placed, sorted by Weight and then input
// position. Items left over form at least one cycle.
func Sort(items []Item) ([]string, error) {
	pos := make(map[string]int, len(items))
	for i, it := range items {
		pos[it.Name] = i
	}

	placed := make(map[string]bool, len(items))
	order := make([]string, 0, len(items))
	remaining := append([]Item(nil), items...)

	for len(remaining) > 0 {
		var ready, blocked []Item
		for _, it := range remaining {
			if depsPlaced(it, pos, placed) {
				ready = append(ready, it)
			} else {
				blocked = append(blocked, it)
			}
		}
		if len(ready) == 0 {
			return nil, cycleError(blocked, pos)
		}
		sort.SliceStable(ready, func(i, j int) bool {
			if ready[i].Weight != ready[j].Weight {
				return ready[i].Weight < ready[j].Weight
			}
			return pos[ready[i].Name] < pos[ready[j].Name]
		})
		for _, it := range ready {
			placed[it.Name] = true
			order = append(order, it.Name)
		}
		remaining = blocked
	}
	return order, nil
}

func depsPlaced(it Item, pos map[string]int, placed map[string]bool) bool {
	for _, d := range it.Deps {
		if _, inGroup := pos[d]; inGroup && !placed[d] {
			return false
		}
	}
	return true
}

// cycleError reports the residual set and one concrete cycle through it,
// found with a depth-first search.
func cycleError(residual []Item, pos map[string]int) error {
	names := make([]string, len(residual))
	deps := make(map[string][]string, len(residual))
	for i, it := range residual {
		names[i] = it.Name
		deps[it.Name] = it.Deps
	}

	const (
		unvisited = iota
		active
		done
	)
	state := make(map[string]int, len(residual))
	var stack []string
	var cycle []string

	var visit func(n string) bool
	visit = func(n string) bool {
		state[n] = active
		stack = append(stack, n)
		for _, d := range deps[n] {
			if _, ok := deps[d]; !ok {
				continue
			}
			switch state[d] {
			case active:
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == d {
						cycle = append(append([]string(nil), stack[i:]...), d)
						return true
					}
				}
			case unvisited:
				if visit(d) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[n] = done
		return false
	}

	sort.SliceStable(names, func(i, j int) bool { return pos[names[i]] < pos[names[j]] })
	for _, n := range names {
		if state[n] == unvisited && visit(n) {
			break
		}
	}
	return &dynamo.CyclicDependencyError{Residual: names, Cycle: cycle}
}
