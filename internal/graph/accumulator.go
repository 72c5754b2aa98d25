package graph

import (
	"sync"

	"freightgraph/internal/model"
)

// accumulator collects the graph under construction. Its mutex is held only
// for in-memory updates, never across provider calls.
type accumulator struct {
	mu       sync.Mutex
	nodes    map[string]model.Node
	located  map[string]bool
	order    []string
	edges    []model.Edge
	edgeKeys map[string]bool
	direct   map[[2]string]bool
	journeys []model.Journey
	legs     []model.LegDetail
	voyages  map[string]bool
	flights  map[string]bool
	failures int
	nVoyages int
	nFlights int
	dropped  int
}

func newAccumulator() *accumulator {
	return &accumulator{
		nodes:    map[string]model.Node{},
		located:  map[string]bool{},
		edgeKeys: map[string]bool{},
		direct:   map[[2]string]bool{},
		voyages:  map[string]bool{},
		flights:  map[string]bool{},
	}
}

// addNode keeps the first node seen for an id, but lets a located node
// replace an unlocated placeholder.
func (a *accumulator) addNode(n model.Node, located bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.nodes[n.ID]; !ok {
		a.order = append(a.order, n.ID)
	} else if a.located[n.ID] || !located {
		return
	}
	a.nodes[n.ID] = n
	a.located[n.ID] = located
}

func (a *accumulator) node(id string) (model.Node, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n, ok := a.nodes[id]
	return n, ok && a.located[id]
}

// addEdge stores e unless an edge with the same dedup key exists.
func (a *accumulator) addEdge(key string, e model.Edge) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.edgeKeys[key] {
		return false
	}
	a.edgeKeys[key] = true
	a.edges = append(a.edges, e)
	a.direct[[2]string{e.Source, e.Target}] = true
	return true
}

func (a *accumulator) claimVoyage(key string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.voyages[key] {
		return false
	}
	a.voyages[key] = true
	a.nVoyages++
	return true
}

func (a *accumulator) claimFlight(key string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.flights[key] {
		return false
	}
	a.flights[key] = true
	a.nFlights++
	return true
}

func (a *accumulator) addJourney(j model.Journey) {
	a.mu.Lock()
	a.journeys = append(a.journeys, j)
	a.mu.Unlock()
}

func (a *accumulator) addLegs(ls ...model.LegDetail) {
	a.mu.Lock()
	a.legs = append(a.legs, ls...)
	a.mu.Unlock()
}

func (a *accumulator) failure() {
	a.mu.Lock()
	a.failures++
	a.mu.Unlock()
}

func (a *accumulator) dropJourney() {
	a.mu.Lock()
	a.dropped++
	a.mu.Unlock()
}

// nodeList returns nodes in insertion order.
func (a *accumulator) nodeList() []model.Node {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]model.Node, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.nodes[id])
	}
	return out
}

func (a *accumulator) hasDirect(src, dst string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.direct[[2]string{src, dst}]
}

func (a *accumulator) isLocated(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.located[id]
}

func (a *accumulator) hasFlight(key string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.flights[key]
}
