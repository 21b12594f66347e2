// Package graph provides a dependency graph for rule scheduling.
package graph

import (
	"sort"
	"sync"

	"github.com/edekker/vigil/pkg/models"
)

// DependencyGraph represents a directed graph of rule dependencies.
// Rules are nodes, and edges represent "runs after" relationships.
//
// Unlike a strict DAG builder, Build never rejects its input: cycles and
// references to unknown rules are tolerated and surface later as an empty
// ready set, which the scheduler resolves by running everything left.
type DependencyGraph struct {
	mu sync.RWMutex
	// nodes maps rule ID to the rule itself.
	nodes map[string]*models.Rule
	// edges maps rule ID to IDs of rules it depends on.
	edges map[string][]string
	// completed tracks which rules have finished executing.
	completed map[string]bool
	// failed tracks which rules finished with a failed result.
	failed map[string]bool
	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

// New creates a new empty dependency graph.
func New() *DependencyGraph {
	return &DependencyGraph{
		nodes:     make(map[string]*models.Rule),
		edges:     make(map[string][]string),
		completed: make(map[string]bool),
		failed:    make(map[string]bool),
		debugLog:  func(format string, args ...interface{}) {}, // no-op by default
	}
}

// SetDebugLog sets the debug logging function.
func (g *DependencyGraph) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		g.debugLog = fn
	}
}

// Build constructs the dependency graph from a slice of rules.
// Edges to unknown rules are kept; they simply never become satisfied.
func (g *DependencyGraph) Build(rules []models.Rule) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.debugLog("[graph.Build] building graph from %d rules", len(rules))

	// First pass: register all rules as nodes.
	for i := range rules {
		rule := &rules[i]
		g.nodes[rule.ID] = rule
		g.edges[rule.ID] = nil // Initialize edges slice.
	}

	// Second pass: build edges from DependsOn fields.
	for i := range rules {
		rule := &rules[i]
		g.edges[rule.ID] = append(g.edges[rule.ID], rule.DependsOn...)
	}

	g.debugLog("[graph.Build] graph built with %d nodes", len(g.nodes))
}

// HasCycle returns true if the graph contains a circular dependency.
// Uses depth-first search with coloring to detect back edges.
func (g *DependencyGraph) HasCycle() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.hasCycleLocked()
}

func (g *DependencyGraph) hasCycleLocked() bool {
	// Color states: 0 = white (unvisited), 1 = gray (in progress), 2 = black (done).
	colors := make(map[string]int)
	for id := range g.nodes {
		colors[id] = 0
	}

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1 // Mark as in progress.

		for _, depID := range g.edges[id] {
			if _, exists := g.nodes[depID]; !exists {
				continue // Unknown dependency, not part of any cycle.
			}
			switch colors[depID] {
			case 1:
				// Found a back edge - cycle detected.
				return true
			case 0:
				if visit(depID) {
					return true
				}
			}
			// color == 2 means already processed, skip.
		}

		colors[id] = 2 // Mark as done.
		return false
	}

	for id := range g.nodes {
		if colors[id] == 0 {
			if visit(id) {
				return true
			}
		}
	}

	return false
}

// Missing returns the dependency IDs that do not match any registered rule,
// sorted and deduplicated.
func (g *DependencyGraph) Missing() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := make(map[string]bool)
	var missing []string
	for _, deps := range g.edges {
		for _, depID := range deps {
			if _, exists := g.nodes[depID]; !exists && !seen[depID] {
				seen[depID] = true
				missing = append(missing, depID)
			}
		}
	}
	sort.Strings(missing)
	return missing
}

// Ready returns rule IDs whose dependencies have all completed and that
// have not completed themselves. Completion is what gates readiness; a
// failed dependency still unblocks its dependents.
func (g *DependencyGraph) Ready() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ready []string
	for id := range g.nodes {
		if g.completed[id] {
			continue
		}

		allDepsComplete := true
		for _, depID := range g.edges[id] {
			if !g.completed[depID] {
				allDepsComplete = false
				break
			}
		}

		if allDepsComplete {
			ready = append(ready, id)
		}
	}

	sort.Strings(ready)
	g.debugLog("[graph.Ready] returning %d ready rules: %v", len(ready), ready)
	return ready
}

// Remaining returns all rule IDs that have not completed, sorted.
func (g *DependencyGraph) Remaining() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var remaining []string
	for id := range g.nodes {
		if !g.completed[id] {
			remaining = append(remaining, id)
		}
	}
	sort.Strings(remaining)
	return remaining
}

// Pending returns the number of rules that have not completed.
func (g *DependencyGraph) Pending() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	pending := 0
	for id := range g.nodes {
		if !g.completed[id] {
			pending++
		}
	}
	return pending
}

// MarkCompleted marks a rule as finished in the graph.
// This affects subsequent calls to Ready.
func (g *DependencyGraph) MarkCompleted(ruleID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.debugLog("[graph.MarkCompleted] marking rule %s as completed", ruleID)
	g.completed[ruleID] = true
}

// MarkFailed marks a rule as finished with a failed result.
// Callers mark completion separately; failure only matters to strict
// dependency checks.
func (g *DependencyGraph) MarkFailed(ruleID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.debugLog("[graph.MarkFailed] marking rule %s as failed", ruleID)
	g.failed[ruleID] = true
}

// FailedDependencies returns the IDs of the given rule's dependencies that
// were marked failed, sorted.
func (g *DependencyGraph) FailedDependencies(ruleID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var failed []string
	for _, depID := range g.edges[ruleID] {
		if g.failed[depID] {
			failed = append(failed, depID)
		}
	}
	sort.Strings(failed)
	return failed
}

// Dependencies returns the IDs of rules the given rule depends on.
func (g *DependencyGraph) Dependencies(ruleID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edges[ruleID]
}

// Size returns the number of rules in the graph.
func (g *DependencyGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}
