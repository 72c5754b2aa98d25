package explorer

import (
	"time"

	"freightgraph/internal/model"
)

type TreeNode struct {
	Port     string      `json:"port"`
	Depth    int         `json:"depth"`
	Voyage   *VoyageRef  `json:"voyage,omitempty"`
	Children []*TreeNode `json:"children,omitempty"`
}

type VoyageRef struct {
	ShipID     string    `json:"shipId"`
	ShipName   string    `json:"shipName,omitempty"`
	VoyageCode string    `json:"voyageCode"`
	Departure  time.Time `json:"departureTime"`
	Arrival    time.Time `json:"arrivalTime"`
}

// branch is an immutable visited set: each node links to the set of its
// parent. Extending a branch never changes the parent's view.
type branch struct {
	port   string
	parent *branch
}

func (b *branch) contains(port string) bool {
	for n := b; n != nil; n = n.parent {
		if n.port == port {
			return true
		}
	}
	return false
}

func (b *branch) with(port string) *branch { return &branch{port: port, parent: b} }

type treeBuilder struct {
	graph     map[string][]model.Voyage
	target    string
	maxHops   int
	maxNodes  int
	nodes     int
	truncated bool
}

// buildTree expands the accepted voyage graph from start into a tree of
// alternatives. A branch ends at maxHops, at the target, or before any port
// it already visited.
func buildTree(graph map[string][]model.Voyage, start, target string, maxHops, maxNodes int) (*TreeNode, int, bool) {
	tb := &treeBuilder{graph: graph, target: target, maxHops: maxHops, maxNodes: maxNodes, nodes: 1}
	root := &TreeNode{Port: start}
	tb.grow(root, (*branch)(nil).with(start))
	return root, tb.nodes, tb.truncated
}

func (tb *treeBuilder) grow(n *TreeNode, visited *branch) {
	if n.Depth >= tb.maxHops || (n.Depth > 0 && n.Port == tb.target) {
		return
	}
	for _, v := range tb.graph[n.Port] {
		if visited.contains(v.ToPort) {
			continue
		}
		if tb.nodes >= tb.maxNodes {
			tb.truncated = true
			return
		}
		tb.nodes++
		child := &TreeNode{
			Port:  v.ToPort,
			Depth: n.Depth + 1,
			Voyage: &VoyageRef{
				ShipID:     v.ShipID,
				ShipName:   v.ShipName,
				VoyageCode: v.VoyageCode,
				Departure:  v.DepartureTime,
				Arrival:    v.ArrivalTime,
			},
		}
		n.Children = append(n.Children, child)
		tb.grow(child, visited.with(v.ToPort))
	}
}
