package reminder

// Min-heap of pending jobs ordered by fire time, insertion order breaking
// ties so same-instant jobs deliver FIFO.

type queueItem struct {
	job *Job
	seq uint64
	idx int // heap index, -1 once removed
}

type jobQueue []*queueItem

func (q jobQueue) Len() int { return len(q) }

func (q jobQueue) Less(i, j int) bool {
	if !q[i].job.FireAt.Equal(q[j].job.FireAt) {
		return q[i].job.FireAt.Before(q[j].job.FireAt)
	}
	return q[i].seq < q[j].seq
}

func (q jobQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].idx = i
	q[j].idx = j
}

func (q *jobQueue) Push(x any) {
	it := x.(*queueItem)
	it.idx = len(*q)
	*q = append(*q, it)
}

func (q *jobQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.idx = -1
	*q = old[:n-1]
	return it
}
