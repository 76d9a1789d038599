// Package solver implements min-cost max-flow over small dense graphs.
package solver

import "math"

const eps = 1e-9

type edge struct {
	to   int
	rev  int
	cap  int
	flow int
	cost float64
}

// Graph is a directed flow network with real-valued edge costs.
type Graph struct {
	adj   [][]edge
	index [][2]int
}

func NewGraph(n int) *Graph {
	return &Graph{adj: make([][]edge, n)}
}

// AddEdge adds from->to with the given capacity and per-unit cost and returns its id.
func (g *Graph) AddEdge(from, to, capacity int, cost float64) int {
	g.adj[from] = append(g.adj[from], edge{to: to, rev: len(g.adj[to]), cap: capacity, cost: cost})
	g.adj[to] = append(g.adj[to], edge{to: from, rev: len(g.adj[from]) - 1, cap: 0, cost: -cost})
	g.index = append(g.index, [2]int{from, len(g.adj[from]) - 1})
	return len(g.index) - 1
}

// Flow reports the units routed through edge id.
func (g *Graph) Flow(id int) int {
	at := g.index[id]
	return g.adj[at[0]][at[1]].flow
}

// MinCostFlow pushes up to maxFlow units from s to t along successively cheapest paths.
// A negative maxFlow means unbounded. Costs may be negative as long as the graph has no
// negative cycles.
func (g *Graph) MinCostFlow(s, t, maxFlow int) (int, float64) {
	n := len(g.adj)
	dist := make([]float64, n)
	inQueue := make([]bool, n)
	prevNode := make([]int, n)
	prevEdge := make([]int, n)

	total, cost := 0, 0.0
	for maxFlow < 0 || total < maxFlow {
		for i := range dist {
			dist[i] = math.Inf(1)
			prevNode[i] = -1
		}
		dist[s] = 0
		queue := []int{s}
		inQueue[s] = true
		for len(queue) > 0 {
			u := queue[0]
			queue = queue[1:]
			inQueue[u] = false
			for i, e := range g.adj[u] {
				if e.cap-e.flow <= 0 {
					continue
				}
				if d := dist[u] + e.cost; d < dist[e.to]-eps {
					dist[e.to] = d
					prevNode[e.to] = u
					prevEdge[e.to] = i
					if !inQueue[e.to] {
						inQueue[e.to] = true
						queue = append(queue, e.to)
					}
				}
			}
		}
		if math.IsInf(dist[t], 1) {
			break
		}

		push := math.MaxInt
		if maxFlow >= 0 {
			push = maxFlow - total
		}
		for v := t; v != s; v = prevNode[v] {
			e := g.adj[prevNode[v]][prevEdge[v]]
			push = min(push, e.cap-e.flow)
		}
		for v := t; v != s; v = prevNode[v] {
			e := &g.adj[prevNode[v]][prevEdge[v]]
			e.flow += push
			g.adj[v][e.rev].flow -= push
		}
		total += push
		cost += float64(push) * dist[t]
	}
	return total, cost
}
