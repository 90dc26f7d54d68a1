// Package depgraph implements the Service Dependency Graph (spec §4.6): a
// directed multigraph of services with per-edge call/success/failure
// counters, a circuit breaker, consecutive-failure tracking, simple-path
// enumeration, critical-path selection, and BFS-based cascade-risk
// detection.
package depgraph

import (
	"sync"
	"time"

	"github.com/lattice-signal/telemetry-engine/pkg/resilience"
)

// Service is a vertex in the dependency graph (spec §3).
type Service struct {
	Name         string
	Criticality  float64
	Isolated     bool
	LastSeenAt   time.Time
	ServiceMapAt time.Time
}

// Edge is a directed source -> target dependency with rolling call stats
// and a circuit breaker (spec §3).
type Edge struct {
	Source              string
	Target              string
	Calls               int64
	Success             int64
	Failure             int64
	ConsecutiveFailures int64
	LastHealthCheck     time.Time
	Breaker             *resilience.CircuitBreaker
}

// SuccessRate returns success/calls, or ok=false when calls == 0 (spec §3:
// "success rate is undefined when calls = 0").
func (e *Edge) SuccessRate() (rate float64, ok bool) {
	if e.Calls == 0 {
		return 0, false
	}
	return float64(e.Success) / float64(e.Calls), true
}

type edgeKey struct {
	source string
	target string
}

// Graph is the Service Dependency Graph engine. All mutation goes through
// Observe; reads take the read lock for a consistent snapshot of the
// vertex/edge sets, matching spec §5's "cross-key operations use
// fine-grained locks" by guarding the whole adjacency structure with one
// lock (the graph itself is the unit of consistency path enumeration
// needs) while leaving edge counters to be read without copying on the hot
// path.
type Graph struct {
	mu       sync.RWMutex
	services map[string]*Service
	edges    map[edgeKey]*Edge
	adj      map[string][]string // source -> targets, for traversal
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		services: make(map[string]*Service),
		edges:    make(map[edgeKey]*Edge),
		adj:      make(map[string][]string),
	}
}

func (g *Graph) ensureServiceLocked(name string, at time.Time) *Service {
	svc, ok := g.services[name]
	if !ok {
		svc = &Service{Name: name, LastSeenAt: at}
		g.services[name] = svc
	} else {
		svc.LastSeenAt = at
	}
	return svc
}

// UpsertService creates a service on first sighting or updates its
// service-map metadata on subsequent SERVICE_MAP events (spec §3: "never
// deleted during the process lifetime").
func (g *Graph) UpsertService(name string, criticality float64, isolated bool, at time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	svc := g.ensureServiceLocked(name, at)
	svc.Criticality = criticality
	svc.Isolated = isolated
	svc.ServiceMapAt = at
}

// CallStats is one observed call's outcome, folded into the edge between
// source and target.
type CallStats struct {
	Success bool
	At      time.Time
}

// Observe upserts the source->target edge, appending the call outcome to
// its rolling counters (spec §4.6 `observe`). Consecutive failures reset to
// zero on any success, per spec §9A's stated source behavior.
func (g *Graph) Observe(source, target string, stats CallStats) *Edge {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.ensureServiceLocked(source, stats.At)
	g.ensureServiceLocked(target, stats.At)

	k := edgeKey{source, target}
	e, ok := g.edges[k]
	if !ok {
		e = &Edge{Source: source, Target: target, Breaker: resilience.New(resilience.DefaultConfig())}
		g.edges[k] = e
		g.adj[source] = append(g.adj[source], target)
	}

	e.Calls++
	e.LastHealthCheck = stats.At
	if stats.Success {
		e.Success++
		e.ConsecutiveFailures = 0
	} else {
		e.Failure++
		e.ConsecutiveFailures++
	}
	e.Breaker.RecordOutcome(stats.Success)
	return e
}

// Edge returns the edge between source and target, if one has been
// observed.
func (g *Graph) Edge(source, target string) (Edge, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.edges[edgeKey{source, target}]
	if !ok {
		return Edge{}, false
	}
	return *e, true
}

// Failures returns the consecutive-failure counter for source->target
// (spec §4.6 `failures`).
func (g *Graph) Failures(source, target string) int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.edges[edgeKey{source, target}]
	if !ok {
		return 0
	}
	return e.ConsecutiveFailures
}

// IsRoot reports whether service has no upstream edges (spec §4.6
// `isRoot`): no other vertex has an outbound edge targeting it.
func (g *Graph) IsRoot(service string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, e := range g.edges {
		if e.Target == service {
			return false
		}
	}
	return true
}

// Services returns a snapshot of every registered service name.
func (g *Graph) Services() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.services))
	for name := range g.services {
		out = append(out, name)
	}
	return out
}

const defaultMaxDepth = 5

// Paths enumerates simple paths (no repeated vertex) starting at `start` up
// to maxDepth hops, deduplicated by vertex set (spec §4.6 `paths`,
// resolved per §9A as simple-path DFS, not DAG condensation). Isolated
// vertices are excluded from enumeration (spec §4.6 invariant).
func (g *Graph) Paths(start string, maxDepth int) [][]string {
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	if svc, ok := g.services[start]; !ok || svc.Isolated {
		return nil
	}

	var results [][]string
	seen := make(map[string]bool)
	visiting := map[string]bool{start: true}
	path := []string{start}

	var dfs func(node string, depth int)
	dfs = func(node string, depth int) {
		extended := false
		if depth < maxDepth {
			for _, next := range g.adj[node] {
				if svc, ok := g.services[next]; !ok || svc.Isolated || visiting[next] {
					continue
				}
				visiting[next] = true
				path = append(path, next)
				dfs(next, depth+1)
				path = path[:len(path)-1]
				delete(visiting, next)
				extended = true
			}
		}
		if !extended {
			dedupKey := vertexSetKey(path)
			if !seen[dedupKey] {
				seen[dedupKey] = true
				cp := make([]string, len(path))
				copy(cp, path)
				results = append(results, cp)
			}
		}
	}
	dfs(start, 0)
	return results
}

func vertexSetKey(path []string) string {
	seen := make(map[string]bool, len(path))
	ordered := make([]string, 0, len(path))
	for _, v := range path {
		if !seen[v] {
			seen[v] = true
			ordered = append(ordered, v)
		}
	}
	key := ""
	for _, v := range ordered {
		key += v + "\x00"
	}
	return key
}

// failureRiskLocked is one edge's contribution to a path's total risk score: its
// observed failure rate, or 0 when no calls have been observed.
func (g *Graph) failureRiskLocked(source, target string) float64 {
	e, ok := g.edges[edgeKey{source, target}]
	if !ok || e.Calls == 0 {
		return 0
	}
	return float64(e.Failure) / float64(e.Calls)
}

// CriticalPathResult names the highest-risk path from a starting vertex and
// its bottleneck edge.
type CriticalPathResult struct {
	Path       []string
	TotalRisk  float64
	Bottleneck string // the vertex at the downstream end of the highest-failure-probability edge on the path
}

// CriticalPath selects, among the simple paths from start, the one with the
// highest total failure risk (the sum of each edge's observed failure rate),
// and identifies its bottleneck vertex: the one with the highest single-edge
// failure probability (spec §4.6 `criticalPath`). Call latency is not
// recorded on edges and plays no part in the score.
func (g *Graph) CriticalPath(start string) (CriticalPathResult, bool) {
	paths := g.Paths(start, defaultMaxDepth)
	if len(paths) == 0 {
		return CriticalPathResult{}, false
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	var best CriticalPathResult
	found := false
	for _, path := range paths {
		var total float64
		var bottleneckRisk float64
		var bottleneck string
		for i := 0; i+1 < len(path); i++ {
			risk := g.failureRiskLocked(path[i], path[i+1])
			total += risk
			if risk > bottleneckRisk {
				bottleneckRisk = risk
				bottleneck = path[i+1]
			}
		}
		if !found || total > best.TotalRisk {
			best = CriticalPathResult{Path: path, TotalRisk: total, Bottleneck: bottleneck}
			found = true
		}
	}
	return best, found
}

// unhealthyThreshold is the success-rate floor below which an edge counts
// as cascade-prone, per spec §4.6 `cascadeRisk`.
const unhealthyThreshold = 0.5

// CascadeRisk performs a BFS from `failed` across edges whose success rate
// is below 0.5 or whose circuit breaker is open, returning the set of
// vertices reachable through such edges (spec §4.6 `cascadeRisk`). The
// starting vertex itself is never included in the result.
func (g *Graph) CascadeRisk(failed string) map[string]bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	affected := make(map[string]bool)
	queue := []string{failed}
	visited := map[string]bool{failed: true}

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, next := range g.adj[node] {
			if visited[next] {
				continue
			}
			e := g.edges[edgeKey{node, next}]
			if e == nil {
				continue
			}
			unhealthy := false
			if rate, ok := e.SuccessRate(); ok && rate < unhealthyThreshold {
				unhealthy = true
			}
			if e.Breaker != nil && e.Breaker.State() == resilience.StateOpen {
				unhealthy = true
			}
			if !unhealthy {
				continue
			}
			visited[next] = true
			affected[next] = true
			queue = append(queue, next)
		}
	}
	return affected
}
