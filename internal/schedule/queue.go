// Package schedule holds open positions ordered by the time they become resolvable.
package schedule

import (
	"container/heap"
	"sync"
	"time"
)

// Entry is one pending resolution.
type Entry struct {
	PositionID string
	AccountID  string
	Deadline   time.Time
}

// Queue is a min-heap of entries keyed by deadline, ties broken by position id.
// It is safe for concurrent use.
type Queue struct {
	mu    sync.Mutex
	items entryHeap
	index map[string]*item
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{index: make(map[string]*item)}
}

// Push adds an entry, replacing any existing entry for the same position.
func (q *Queue) Push(e Entry) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if it, ok := q.index[e.PositionID]; ok {
		it.entry = e
		heap.Fix(&q.items, it.pos)
		return
	}
	it := &item{entry: e}
	q.index[e.PositionID] = it
	heap.Push(&q.items, it)
}

// PopDue removes and returns every entry whose deadline is at or before now, earliest first.
func (q *Queue) PopDue(now time.Time) []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	var due []Entry
	for len(q.items) > 0 && !q.items[0].entry.Deadline.After(now) {
		it := heap.Pop(&q.items).(*item)
		delete(q.index, it.entry.PositionID)
		due = append(due, it.entry)
	}
	return due
}

// Peek returns the earliest entry without removing it.
func (q *Queue) Peek() (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Entry{}, false
	}
	return q.items[0].entry, true
}

// Remove drops the entry for a position. It reports whether one was present.
func (q *Queue) Remove(positionID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	it, ok := q.index[positionID]
	if !ok {
		return false
	}
	heap.Remove(&q.items, it.pos)
	delete(q.index, positionID)
	return true
}

// Len returns the number of pending entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

type item struct {
	entry Entry
	pos   int
}

type entryHeap []*item

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	a, b := h[i].entry, h[j].entry
	if a.Deadline.Equal(b.Deadline) {
		return a.PositionID < b.PositionID
	}
	return a.Deadline.Before(b.Deadline)
}

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].pos = i
	h[j].pos = j
}

func (h *entryHeap) Push(x interface{}) {
	it := x.(*item)
	it.pos = len(*h)
	*h = append(*h, it)
}

func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.pos = -1
	*h = old[:n-1]
	return it
}
