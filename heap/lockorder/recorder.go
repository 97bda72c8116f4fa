// Package lockorder records the order in which a runtime's threads acquire
// locks and finds the orders that can deadlock.
//
// Each node of the graph is a lock and each edge says that the target lock
// was acquired while the source lock was held. A cycle means two threads can
// each hold one lock of the cycle while waiting for the next one. Parking
// keeps such a deadlock from stalling the collector, but it is still a
// deadlock.
package lockorder

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/aclements/go-moremath/graph"
	"github.com/aclements/go-moremath/graph/graphalg"

	"github.com/ilikethese/v8/internal/task"
)

// Recorder collects lock-order edges. It is safe for concurrent use.
type Recorder struct {
	lock task.PMutex

	ids    map[any]int // Key(lock) -> node ID
	labels []string    // node ID -> label
	to     [][]int     // node ID -> edge number -> target node ID
	counts [][]int     // node ID -> edge number -> times observed
}

// New returns an empty recorder.
func New() *Recorder {
	return &Recorder{ids: make(map[any]int)}
}

// Name labels lock in reports. Locks that are never named are labelled with
// their type and, for pointers, their address.
func (r *Recorder) Name(lock any, label string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.labels[r.node(lock)] = label
}

// Edge records that to was acquired while from was held.
func (r *Recorder) Edge(from, to any) {
	r.lock.Lock()
	defer r.lock.Unlock()
	n1, n2 := r.node(from), r.node(to)
	for i, succ := range r.to[n1] {
		if succ == n2 {
			r.counts[n1][i]++
			return
		}
	}
	r.to[n1] = append(r.to[n1], n2)
	r.counts[n1] = append(r.counts[n1], 1)
}

func (r *Recorder) node(lock any) int {
	k := Key(lock)
	if id, ok := r.ids[k]; ok {
		return id
	}
	id := len(r.labels)
	r.ids[k] = id
	label := fmt.Sprintf("%T", lock)
	if _, ok := k.(pointerKey); ok {
		label = fmt.Sprintf("%T@%p", lock, lock)
	}
	r.labels = append(r.labels, label)
	r.to = append(r.to, nil)
	r.counts = append(r.counts, nil)
	return id
}

type pointerKey struct {
	typ  reflect.Type
	addr uintptr
}

type typeKey struct {
	typ reflect.Type
}

// Key returns the identity of lock in the graph, usable as a map key and
// with ==. Locks of pointer kinds are identified by type and address, other
// comparable values by value, and values that are not comparable by their
// type alone. Key(Key(lock)) == Key(lock).
func Key(lock any) any {
	if lock == nil {
		return nil
	}
	v := reflect.ValueOf(lock)
	switch v.Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.Chan, reflect.Map, reflect.Func, reflect.Slice:
		return pointerKey{v.Type(), v.Pointer()}
	}
	if !v.Comparable() {
		return typeKey{v.Type()}
	}
	return lock
}

// Graph returns a snapshot of the recorded lock graph.
func (r *Recorder) Graph() *Graph {
	r.lock.Lock()
	defer r.lock.Unlock()
	g := &Graph{
		Labels: append([]string(nil), r.labels...),
		To:     make([][]int, len(r.to)),
		Counts: make([][]int, len(r.counts)),
	}
	for i := range r.to {
		g.To[i] = append([]int(nil), r.to[i]...)
		g.Counts[i] = append([]int(nil), r.counts[i]...)
	}
	return g
}

// Cycles returns the labels of the locks involved in each lock-order cycle,
// one sorted group per cycle.
func (r *Recorder) Cycles() [][]string {
	g := r.Graph()
	var groups [][]string
	scc := graphalg.SCC(g, 0)
	for cid := 0; cid < scc.NumNodes(); cid++ {
		nids := scc.Subnodes(cid)
		if len(nids) <= 1 {
			continue
		}
		group := make([]string, 0, len(nids))
		for _, nid := range nids {
			group = append(group, g.Labels[nid])
		}
		sort.Strings(group)
		groups = append(groups, group)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0] < groups[j][0] })
	return groups
}

// Graph is a lock graph. It satisfies graph.Graph.
type Graph struct {
	Labels []string // Node ID -> lock label
	To     [][]int  // Node ID -> edge number -> target node ID
	Counts [][]int  // Node ID -> edge number -> times observed
}

var _ graph.Graph = (*Graph)(nil)

func (g *Graph) NumNodes() int {
	return len(g.Labels)
}

func (g *Graph) Out(i int) []int {
	return g.To[i]
}

func (g *Graph) Label(i int) string {
	return g.Labels[i]
}

// CycleEdges returns the edges of g that lie on a cycle.
func CycleEdges(g *Graph) []graph.Edge {
	// Edges on cycles are those that stay within one non-trivial strongly
	// connected component.
	scc := graphalg.SCC(g, graphalg.SCCSubnodeComponent)
	var edges []graph.Edge
	for nid := 0; nid < g.NumNodes(); nid++ {
		cid := scc.SubnodeComponent(nid)
		if len(scc.Subnodes(cid)) <= 1 {
			continue
		}
		for eid, n2id := range g.Out(nid) {
			if scc.SubnodeComponent(n2id) == cid {
				edges = append(edges, graph.Edge{Node: nid, Edge: eid})
			}
		}
	}
	return edges
}
