package search

import "container/heap"

// Scored pairs a state with its search score.
type Scored[S any] struct {
	State S
	Score float64
}

type entry[S any] struct {
	Scored[S]
	seq uint64
}

// openHeap pops the highest score first; equal scores pop in insertion order.
type openHeap[S any] []entry[S]

func (h openHeap[S]) Len() int { return len(h) }

func (h openHeap[S]) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score > h[j].Score
	}
	return h[i].seq < h[j].seq
}

func (h openHeap[S]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *openHeap[S]) Push(x any) { *h = append(*h, x.(entry[S])) }

func (h *openHeap[S]) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	var zero entry[S]
	old[n-1] = zero
	*h = old[:n-1]
	return e
}

type openSet[S any] struct {
	h   openHeap[S]
	seq uint64
}

func (o *openSet[S]) push(state S, score float64) {
	heap.Push(&o.h, entry[S]{Scored: Scored[S]{State: state, Score: score}, seq: o.seq})
	o.seq++
}

func (o *openSet[S]) pop() (Scored[S], bool) {
	if o.h.Len() == 0 {
		return Scored[S]{}, false
	}
	return heap.Pop(&o.h).(entry[S]).Scored, true
}

func (o *openSet[S]) len() int { return o.h.Len() }

// snapshot returns the remaining entries in pop order without disturbing the set.
func (o *openSet[S]) snapshot() []Scored[S] {
	cp := make(openHeap[S], len(o.h))
	copy(cp, o.h)
	out := make([]Scored[S], 0, len(cp))
	for cp.Len() > 0 {
		out = append(out, heap.Pop(&cp).(entry[S]).Scored)
	}
	return out
}
