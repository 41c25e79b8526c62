package ir

import (
	"container/heap"
	"fmt"
)

type nodeHeap []*Node

func (h nodeHeap) Len() int            { return len(h) }
func (h nodeHeap) Less(i, j int) bool  { return h[i].id < h[j].id }
func (h nodeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x interface{}) { *h = append(*h, x.(*Node)) }
func (h *nodeHeap) Pop() interface{} {
	old := *h
	n := old[len(old)-1]
	*h = old[:len(old)-1]
	return n
}

// TopoSort returns the nodes of fb in a topological order of the operand
// graph. Ties are broken by node id, so the order is deterministic.
func TopoSort(fb *FunctionBase) ([]*Node, error) {
	pending := map[*Node]int{}
	ready := &nodeHeap{}
	for _, n := range fb.Nodes() {
		// Count distinct operands; a node used twice still gates once.
		seen := map[*Node]bool{}
		for _, o := range n.Operands() {
			seen[o] = true
		}
		pending[n] = len(seen)
		if len(seen) == 0 {
			heap.Push(ready, n)
		}
	}

	order := make([]*Node, 0, len(fb.Nodes()))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(*Node)
		order = append(order, n)
		for _, u := range n.Users() {
			pending[u]--
			if pending[u] == 0 {
				heap.Push(ready, u)
			}
		}
	}
	if len(order) != len(fb.Nodes()) {
		return nil, fmt.Errorf("%s: operand graph contains a cycle", fb.Name())
	}
	return order, nil
}
