// Package inmem is the local/test queue.Queue adapter: an in-process
// delayed min-heap with ack/nack semantics, used by ingestd/workerd when
// BACKEND=local (local/dev, tests).
package inmem

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mediavault/transcript-pipeline/internal/pipeline/domain"
	"github.com/mediavault/transcript-pipeline/internal/platform/queue"
)

type item struct {
	readyAt time.Time
	job     domain.TranscriptionJob
	id      string
	index   int
}

type priorityHeap []*item

func (h priorityHeap) Len() int            { return len(h) }
func (h priorityHeap) Less(i, j int) bool  { return h[i].readyAt.Before(h[j].readyAt) }
func (h priorityHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *priorityHeap) Push(x any) {
	it := x.(*item)
	it.index = len(*h)
	*h = append(*h, it)
}
func (h *priorityHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[:n-1]
	return it
}

type q struct {
	mu       sync.Mutex
	pending  priorityHeap
	inflight map[string]*item
}

func New() queue.Queue {
	return &q{pending: priorityHeap{}, inflight: map[string]*item{}}
}

func (q *q) Enqueue(ctx context.Context, job domain.TranscriptionJob) error {
	return q.EnqueueDelayed(ctx, job, 0)
}

func (q *q) EnqueueDelayed(ctx context.Context, job domain.TranscriptionJob, delay time.Duration) error {
	q.mu.Lock()
	heap.Push(&q.pending, &item{readyAt: nowPlus(delay), job: job, id: uuid.NewString()})
	q.mu.Unlock()
	return nil
}

// Dequeue polls the heap for the next ready item. A short poll interval is
// acceptable here since this adapter only backs local/dev runs and tests.
func (q *q) Dequeue(ctx context.Context) (*queue.Delivery, error) {
	ticker := time.NewTicker(25 * time.Millisecond)
	defer ticker.Stop()
	for {
		q.mu.Lock()
		if len(q.pending) > 0 && !time.Now().Before(q.pending[0].readyAt) {
			next := heap.Pop(&q.pending).(*item)
			q.inflight[next.id] = next
			q.mu.Unlock()
			return &queue.Delivery{Job: next.job, DeliveryID: next.id}, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (q *q) Ack(ctx context.Context, deliveryID string) error {
	q.mu.Lock()
	delete(q.inflight, deliveryID)
	q.mu.Unlock()
	return nil
}

func (q *q) Nack(ctx context.Context, deliveryID string) error {
	q.mu.Lock()
	it, ok := q.inflight[deliveryID]
	if ok {
		delete(q.inflight, deliveryID)
		it.readyAt = time.Now()
		heap.Push(&q.pending, it)
	}
	q.mu.Unlock()
	return nil
}

func nowPlus(d time.Duration) time.Time {
	if d <= 0 {
		return time.Now()
	}
	return time.Now().Add(d)
}
