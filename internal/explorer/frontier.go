package explorer

import (
	"container/heap"
	"time"

	"freightgraph/internal/model"
)

// workItem is a port waiting to be expanded. path and voyages belong to the
// item and are copied, never shared, when a child item is derived.
type workItem struct {
	port    string
	arrival time.Time
	depth   int
	path    []string
	voyages []model.Voyage
	seq     uint64
}

func (w *workItem) child(v model.Voyage, seq uint64) *workItem {
	path := make([]string, len(w.path), len(w.path)+1)
	copy(path, w.path)
	voyages := make([]model.Voyage, len(w.voyages), len(w.voyages)+1)
	copy(voyages, w.voyages)
	return &workItem{
		port:    v.ToPort,
		arrival: v.ArrivalTime,
		depth:   w.depth + 1,
		path:    append(path, v.ToPort),
		voyages: append(voyages, v),
		seq:     seq,
	}
}

// frontier is a min-heap ordered by (depth, arrival, seq). seq is the
// insertion counter and breaks ties, so the pop order is deterministic.
type frontier []*workItem

func (f frontier) Len() int { return len(f) }

func (f frontier) Less(i, j int) bool {
	a, b := f[i], f[j]
	if a.depth != b.depth {
		return a.depth < b.depth
	}
	if !a.arrival.Equal(b.arrival) {
		return a.arrival.Before(b.arrival)
	}
	return a.seq < b.seq
}

func (f frontier) Swap(i, j int) { f[i], f[j] = f[j], f[i] }

func (f *frontier) Push(x any) { *f = append(*f, x.(*workItem)) }

func (f *frontier) Pop() any {
	old := *f
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*f = old[:n-1]
	return it
}

func (f *frontier) push(it *workItem) { heap.Push(f, it) }

func (f *frontier) pop() *workItem { return heap.Pop(f).(*workItem) }
