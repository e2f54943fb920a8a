package task

import (
	"container/heap"
	"sync"
)

// Queue is a priority queue of tasks: strict priority descending, FIFO
// within a priority band. It is safe for concurrent use; the coordinator
// is the only writer, monitoring loops read depth snapshots.
type Queue struct {
	mu    sync.Mutex
	items taskHeap
	seq   uint64
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Push inserts a task according to its priority.
func (q *Queue) Push(t *Task) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.seq++
	heap.Push(&q.items, &queueItem{task: t, seq: q.seq})
}

// Pop removes and returns the highest-priority task, or nil when empty.
func (q *Queue) Pop() *Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.items.Len() == 0 {
		return nil
	}
	item := heap.Pop(&q.items).(*queueItem)
	return item.task
}

// Peek returns the highest-priority task without removing it.
func (q *Queue) Peek() *Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.items.Len() == 0 {
		return nil
	}
	return q.items[0].task
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Depths returns the queue depth per priority band.
func (q *Queue) Depths() map[int]int {
	q.mu.Lock()
	defer q.mu.Unlock()

	depths := make(map[int]int)
	for _, item := range q.items {
		depths[item.task.Priority]++
	}
	return depths
}

// DropAtOrBelow removes every queued task with priority <= floor and returns
// the dropped tasks. This is the throttling path; it is the only operation
// that evicts queued work.
func (q *Queue) DropAtOrBelow(floor int) []*Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	var dropped []*Task
	var kept taskHeap
	for _, item := range q.items {
		if item.task.Priority <= floor {
			dropped = append(dropped, item.task)
		} else {
			kept = append(kept, item)
		}
	}
	q.items = kept
	heap.Init(&q.items)
	return dropped
}

// Clear removes all queued tasks and returns them.
func (q *Queue) Clear() []*Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	cleared := make([]*Task, 0, q.items.Len())
	for _, item := range q.items {
		cleared = append(cleared, item.task)
	}
	q.items = nil
	return cleared
}

type queueItem struct {
	task *Task
	seq  uint64
}

type taskHeap []*queueItem

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.task.Priority != b.task.Priority {
		return a.task.Priority > b.task.Priority
	}
	if !a.task.EnqueuedAt.Equal(b.task.EnqueuedAt) {
		return a.task.EnqueuedAt.Before(b.task.EnqueuedAt)
	}
	// Submission order breaks exact-timestamp ties.
	return a.seq < b.seq
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) {
	*h = append(*h, x.(*queueItem))
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
