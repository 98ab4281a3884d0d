package pool

import "container/heap"

// Compile time check to ensure jobQueue satisfies the heap interface.
var _ heap.Interface = (*jobQueue)(nil)

// jobQueue orders queued jobs by tier, then by submission sequence.
type jobQueue []*job

func (q jobQueue) Len() int { return len(q) }

func (q jobQueue) Less(i, j int) bool {
	if q[i].tier != q[j].tier {
		return q[i].tier < q[j].tier
	}
	return q[i].seq < q[j].seq
}

func (q jobQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *jobQueue) Push(x any) {
	j := x.(*job)
	j.index = len(*q)
	*q = append(*q, j)
}

func (q *jobQueue) Pop() any {
	old := *q
	n := len(old)
	j := old[n-1]
	old[n-1] = nil // Zero out for GC
	j.index = -1
	*q = old[:n-1]
	return j
}
