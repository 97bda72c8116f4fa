package lockorder

import (
	"fmt"
	"io"
)

// ReportText writes the recorded edges to w, one per line, followed by the
// cycles found among them.
func (r *Recorder) ReportText(w io.Writer) {
	g := r.Graph()
	onCycle := make(map[[2]int]bool)
	for _, e := range CycleEdges(g) {
		onCycle[[2]int{e.Node, e.Edge}] = true
	}
	for nid := 0; nid < g.NumNodes(); nid++ {
		for eid, n2id := range g.Out(nid) {
			mark := ""
			if onCycle[[2]int{nid, eid}] {
				mark = " (cycle)"
			}
			fmt.Fprintf(w, "%s -> %s: %d times%s\n", g.Labels[nid], g.Labels[n2id], g.Counts[nid][eid], mark)
		}
	}
	for _, group := range r.Cycles() {
		fmt.Fprintf(w, "potential deadlock between:")
		for _, label := range group {
			fmt.Fprintf(w, " %s", label)
		}
		fmt.Fprintf(w, "\n")
	}
}
