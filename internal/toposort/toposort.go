// Package toposort orders items related by symbolic requires/provides
// declarations.
package toposort

import (
	"container/heap"
	"fmt"
	"strings"
)

// ElementKind tags an element of a diagnostic path.
type ElementKind int

const (
	ItemElement ElementKind = iota
	KeyElement
)

// Element is one step of a diagnostic path: an item or a key.
type Element struct {
	Kind  ElementKind
	Value any
}

func (e Element) String() string {
	return fmt.Sprint(e.Value)
}

func formatPath(path []Element) string {
	parts := make([]string, len(path))
	for i, e := range path {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// MissingRequirementError reports a key that is required but neither
// provided by any item nor ambient.
type MissingRequirementError struct {
	Requirer any
	Required any
}

func (e *MissingRequirementError) Error() string {
	return fmt.Sprintf("%v is missing requirement %v", e.Requirer, e.Required)
}

// Path returns the requirer followed by the missing key.
func (e *MissingRequirementError) Path() []Element {
	return []Element{{ItemElement, e.Requirer}, {KeyElement, e.Required}}
}

// DuplicateItemError reports an item given to Sort more than once.
type DuplicateItemError struct {
	Item          any
	First, Second int
}

func (e *DuplicateItemError) Error() string {
	return fmt.Sprintf("duplicate item %v at positions %d and %d", e.Item, e.First, e.Second)
}

// Path returns the duplicated item.
func (e *DuplicateItemError) Path() []Element {
	return []Element{{ItemElement, e.Item}}
}

// CyclicRequirementError reports items that require each other.
type CyclicRequirementError struct {
	// Path alternates items and keys. The first item is repeated at the
	// end: each key is required by the item before it and provided by the
	// item after it.
	Path []Element
}

func (e *CyclicRequirementError) Error() string {
	return "cycle: " + formatPath(e.Path)
}

// Items returns the items on the cycle, without the repeated last one.
func (e *CyclicRequirementError) Items() []any {
	var items []any
	for _, el := range e.Path[:len(e.Path)-1] {
		if el.Kind == ItemElement {
			items = append(items, el.Value)
		}
	}
	return items
}

// Graph is a successfully sorted item set.
type Graph[I comparable, K comparable] struct {
	sorted []I
	index  map[I]int
	// deps[i] lists, for input item i, the items that satisfied its
	// requirements.
	deps [][]int
}

// Sort orders items so that every item follows the items providing the
// keys it requires. Keys in ambient need no provider.
//
// An item becomes eligible once each key it requires is ambient or was
// provided by an item already placed. Among eligible items the one
// earliest in the input is placed next, so unconstrained items keep their
// relative input order.
func Sort[I comparable, K comparable](items []I, ambient []K, requires, provides func(I) []K) (*Graph[I, K], error) {
	g := &Graph[I, K]{
		index: make(map[I]int, len(items)),
		deps:  make([][]int, len(items)),
	}
	for i, it := range items {
		if prev, dup := g.index[it]; dup {
			return nil, &DuplicateItemError{Item: it, First: prev, Second: i}
		}
		g.index[it] = i
	}

	isAmbient := make(map[K]bool, len(ambient))
	for _, k := range ambient {
		isAmbient[k] = true
	}

	providers := make(map[K][]int)
	provided := make([][]K, len(items))
	for i, it := range items {
		provided[i] = provides(it)
		for _, k := range provided[i] {
			providers[k] = append(providers[k], i)
		}
	}

	// Distinct unresolved requirements per item, in declaration order.
	required := make([][]K, len(items))
	requirers := make(map[K][]int)
	for i, it := range items {
		seen := make(map[K]bool)
		for _, k := range requires(it) {
			if isAmbient[k] || seen[k] {
				continue
			}
			seen[k] = true
			if len(providers[k]) == 0 {
				return nil, &MissingRequirementError{Requirer: it, Required: k}
			}
			required[i] = append(required[i], k)
			requirers[k] = append(requirers[k], i)
		}
	}

	need := make([]int, len(items))
	ready := &indexHeap{}
	for i := range items {
		need[i] = len(required[i])
		if need[i] == 0 {
			heap.Push(ready, i)
		}
	}

	satisfier := make(map[K]int)
	for ready.Len() > 0 {
		i := heap.Pop(ready).(int)
		g.sorted = append(g.sorted, items[i])
		for _, k := range provided[i] {
			if _, done := satisfier[k]; done {
				continue
			}
			satisfier[k] = i
			for _, r := range requirers[k] {
				need[r]--
				if need[r] == 0 {
					heap.Push(ready, r)
				}
			}
		}
	}

	if len(g.sorted) != len(items) {
		return nil, &CyclicRequirementError{Path: findCycle(items, required, providers, satisfier)}
	}

	for i := range items {
		for _, k := range required[i] {
			g.deps[i] = append(g.deps[i], satisfier[k])
		}
	}
	return g, nil
}

// findCycle walks from the first blocked item along its first unresolved
// key to that key's first provider until an item repeats. Every provider
// of an unresolved key is itself blocked, so the walk never leaves the
// blocked set.
func findCycle[I comparable, K comparable](items []I, required [][]K, providers map[K][]int, satisfier map[K]int) []Element {
	blocked := func(i int) bool {
		for _, k := range required[i] {
			if _, ok := satisfier[k]; !ok {
				return true
			}
		}
		return false
	}

	start := -1
	for i := range items {
		if blocked(i) {
			start = i
			break
		}
	}

	var path []Element
	visitedAt := make(map[int]int)
	for cur := start; ; {
		if at, seen := visitedAt[cur]; seen {
			return append(path[at:], Element{ItemElement, items[cur]})
		}
		visitedAt[cur] = len(path)
		path = append(path, Element{ItemElement, items[cur]})

		var key K
		for _, k := range required[cur] {
			if _, ok := satisfier[k]; !ok {
				key = k
				break
			}
		}
		path = append(path, Element{KeyElement, key})
		cur = providers[key][0]
	}
}

// Sorted returns the items in dependency order.
func (g *Graph[I, K]) Sorted() []I {
	return append([]I(nil), g.sorted...)
}

// Contains reports whether item was sorted.
func (g *Graph[I, K]) Contains(item I) bool {
	_, ok := g.index[item]
	return ok
}

// DependenciesTransitive returns every item reachable from item through
// requirement edges, in sorted order, excluding item itself.
func (g *Graph[I, K]) DependenciesTransitive(item I) []I {
	start, ok := g.index[item]
	if !ok {
		return nil
	}
	reached := make(map[int]bool)
	var visit func(int)
	visit = func(i int) {
		for _, d := range g.deps[i] {
			if !reached[d] {
				reached[d] = true
				visit(d)
			}
		}
	}
	visit(start)
	delete(reached, start)

	out := make([]I, 0, len(reached))
	for _, it := range g.sorted {
		if reached[g.index[it]] {
			out = append(out, it)
		}
	}
	return out
}

// Closure returns DependenciesTransitive(item) followed by item.
func (g *Graph[I, K]) Closure(item I) []I {
	if !g.Contains(item) {
		return nil
	}
	return append(g.DependenciesTransitive(item), item)
}

// indexHeap is a min-heap of input indices.
type indexHeap []int

func (h indexHeap) Len() int           { return len(h) }
func (h indexHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h indexHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *indexHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *indexHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
