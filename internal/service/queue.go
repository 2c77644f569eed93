package service

import (
	"container/heap"
	"context"
	"sync"
)

type queuedJob struct {
	id       string
	priority int
	seq      uint64
}

// jobHeap orders by priority (highest first), then submission order.
type jobHeap []queuedJob

func (h jobHeap) Len() int { return len(h) }
func (h jobHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}
func (h jobHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *jobHeap) Push(x any)   { *h = append(*h, x.(queuedJob)) }
func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// jobQueue is a priority queue that workers block on.
type jobQueue struct {
	mu     sync.Mutex
	items  jobHeap
	seq    uint64
	notify chan struct{}
}

func newJobQueue() *jobQueue {
	return &jobQueue{notify: make(chan struct{}, 1)}
}

func (q *jobQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *jobQueue) push(id string, priority int) {
	q.mu.Lock()
	q.seq++
	heap.Push(&q.items, queuedJob{id: id, priority: priority, seq: q.seq})
	q.mu.Unlock()
	q.signal()
}

// pop blocks until a job is available or ctx is done.
func (q *jobQueue) pop(ctx context.Context) (string, bool) {
	for {
		q.mu.Lock()
		if q.items.Len() > 0 {
			item := heap.Pop(&q.items).(queuedJob)
			more := q.items.Len() > 0
			q.mu.Unlock()
			if more {
				q.signal()
			}
			return item.id, true
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-ctx.Done():
			return "", false
		}
	}
}

func (q *jobQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}
