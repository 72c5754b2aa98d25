// Package route finds minimum-cost paths through a built graph.
package route

import (
	"container/heap"
	"encoding/json"
	"math"

	"freightgraph/internal/errs"
	"freightgraph/internal/model"
)

type Options struct {
	Criterion model.Criterion
	// Weights applies to the weighted criterion only; nil uses DefaultWeights.
	Weights *Weights
	// Blocked node ids are never entered. Nodes flagged blocked in the graph
	// are added to this set. A blocked start or end is unreachable.
	Blocked []string
}

type Result struct {
	Path     []model.Edge `json:"path"`
	Distance Distance     `json:"distance"`
}

// Distance is a path length that renders +Inf as the JSON string "Infinity".
type Distance float64

func (d Distance) MarshalJSON() ([]byte, error) {
	if math.IsInf(float64(d), 1) {
		return []byte(`"Infinity"`), nil
	}
	return json.Marshal(float64(d))
}

func (d *Distance) UnmarshalJSON(b []byte) error {
	if string(b) == `"Infinity"` {
		*d = Distance(math.Inf(1))
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*d = Distance(f)
	return nil
}

// Reachable reports whether a path was found.
func (r Result) Reachable() bool { return !math.IsInf(float64(r.Distance), 1) }

// ShortestPath minimises criterion c from start to end.
func ShortestPath(g *model.Graph, start, end string, c model.Criterion) (Result, error) {
	return Find(g, start, end, Options{Criterion: c})
}

// Find runs Dijkstra over g. An unreachable end is not an error: the result
// has an empty path and an infinite distance.
func Find(g *model.Graph, start, end string, opts Options) (Result, error) {
	weigh, err := weigher(opts)
	if err != nil {
		return Result{}, err
	}
	idx := g.NodeIndex()
	var ve errs.ValidationErrors
	if _, ok := idx[start]; !ok {
		ve = append(ve, &errs.ValidationError{Field: "start", Message: "unknown node " + start})
	}
	if _, ok := idx[end]; !ok {
		ve = append(ve, &errs.ValidationError{Field: "end", Message: "unknown node " + end})
	}
	if len(ve) > 0 {
		return Result{}, ve
	}

	blocked := make(map[string]bool, len(opts.Blocked))
	for _, id := range opts.Blocked {
		blocked[id] = true
	}
	for _, n := range g.Nodes {
		if n.Blocked {
			blocked[n.ID] = true
		}
	}
	adj := make(map[string][]int, len(idx))
	for i, e := range g.Edges {
		w := weigh(e)
		if math.IsNaN(w) || w < 0 {
			return Result{}, errs.Invalid("graph.edges", "edge %s has invalid %s weight %v", e.ID, opts.Criterion, w)
		}
		adj[e.Source] = append(adj[e.Source], i)
	}

	if blocked[start] || blocked[end] {
		return unreachable(), nil
	}

	dist := map[string]float64{start: 0}
	via := map[string]int{}
	done := map[string]bool{}
	pq := &queue{}
	var seq uint64
	heap.Push(pq, &entry{node: start})

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(*entry)
		if done[cur.node] {
			continue
		}
		done[cur.node] = true
		if cur.node == end {
			break
		}
		for _, i := range adj[cur.node] {
			e := g.Edges[i]
			if done[e.Target] || blocked[e.Target] {
				continue
			}
			nd := cur.dist + weigh(e)
			if old, ok := dist[e.Target]; ok && nd >= old {
				continue
			}
			dist[e.Target] = nd
			via[e.Target] = i
			seq++
			heap.Push(pq, &entry{node: e.Target, dist: nd, seq: seq})
		}
	}

	if !done[end] {
		return unreachable(), nil
	}
	var path []model.Edge
	for n := end; n != start; {
		e := g.Edges[via[n]]
		path = append(path, e)
		n = e.Source
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	if path == nil {
		path = []model.Edge{}
	}
	return Result{Path: path, Distance: Distance(dist[end])}, nil
}

func unreachable() Result {
	return Result{Path: []model.Edge{}, Distance: Distance(math.Inf(1))}
}

type entry struct {
	node string
	dist float64
	seq  uint64
}

// queue orders by distance, then by insertion.
type queue []*entry

func (q queue) Len() int { return len(q) }

func (q queue) Less(i, j int) bool {
	if q[i].dist != q[j].dist {
		return q[i].dist < q[j].dist
	}
	return q[i].seq < q[j].seq
}

func (q queue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *queue) Push(x any) { *q = append(*q, x.(*entry)) }

func (q *queue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return e
}
