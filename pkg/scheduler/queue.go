// Package scheduler runs independent tasks concurrently: a priority task
// queue, a bounded parallel executor and execution statistics.
package scheduler

import (
	"container/heap"
	"context"
	"time"
)

// Task is a unit of work. Lower Priority values run first; tasks of equal
// priority run in the order they were enqueued.
type Task struct {
	ID        string
	Priority  int
	Run       func(ctx context.Context) (any, error)
	Metadata  map[string]any
	CreatedAt time.Time
}

type queued struct {
	task  Task
	order uint64
}

type taskHeap []queued

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].task.Priority != h[j].task.Priority {
		return h[i].task.Priority < h[j].task.Priority
	}
	return h[i].order < h[j].order
}
func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x any)   { *h = append(*h, x.(queued)) }
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// QueueStats summarizes the priorities waiting in a queue.
type QueueStats struct {
	Size        int
	MinPriority int
	MaxPriority int
	Priorities  map[int]int
}

// TaskQueue is a priority min-heap of tasks. Not safe for concurrent use.
type TaskQueue struct {
	h    taskHeap
	next uint64
}

// NewTaskQueue returns an empty queue.
func NewTaskQueue() *TaskQueue {
	return &TaskQueue{}
}

// Enqueue adds a task.
func (q *TaskQueue) Enqueue(t Task) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	heap.Push(&q.h, queued{task: t, order: q.next})
	q.next++
}

// Dequeue removes and returns the highest priority task.
func (q *TaskQueue) Dequeue() (Task, bool) {
	if q.h.Len() == 0 {
		return Task{}, false
	}
	return heap.Pop(&q.h).(queued).task, true
}

// Peek returns the next task without removing it.
func (q *TaskQueue) Peek() (Task, bool) {
	if q.h.Len() == 0 {
		return Task{}, false
	}
	return q.h[0].task, true
}

func (q *TaskQueue) Len() int      { return q.h.Len() }
func (q *TaskQueue) IsEmpty() bool { return q.h.Len() == 0 }

// Clear drops every task and restarts the insertion counter.
func (q *TaskQueue) Clear() {
	q.h = nil
	q.next = 0
}

// Tasks returns the queued tasks in dequeue order without consuming them.
func (q *TaskQueue) Tasks() []Task {
	tmp := make(taskHeap, len(q.h))
	copy(tmp, q.h)
	out := make([]Task, 0, len(tmp))
	for tmp.Len() > 0 {
		out = append(out, heap.Pop(&tmp).(queued).task)
	}
	return out
}

// Stats reports the size and priority distribution of the queue.
func (q *TaskQueue) Stats() QueueStats {
	s := QueueStats{Size: q.h.Len(), Priorities: make(map[int]int)}
	for i, n := range q.h {
		p := n.task.Priority
		s.Priorities[p]++
		if i == 0 || p < s.MinPriority {
			s.MinPriority = p
		}
		if i == 0 || p > s.MaxPriority {
			s.MaxPriority = p
		}
	}
	return s
}
