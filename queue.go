package coloop

import "github.com/gammazero/deque"

// Queue is an unbounded FIFO for passing values between tasks. Get
// parks the calling task while the queue is empty; Put never blocks.
type Queue[T any] struct {
	noCopy  noCopy
	items   deque.Deque[T]
	waiting deque.Deque[*Task]
	closed  bool
}

// Put appends item and wakes the oldest waiting getter. It fails with
// ErrQueueClosed after Close.
func (q *Queue[T]) Put(item T) error {
	if q.closed {
		return ErrQueueClosed
	}

	q.items.PushBack(item)
	q.wake()
	return nil
}

// Get removes and returns the oldest item, parking task until one is
// available. Once the queue is closed and drained it returns
// ErrQueueClosed.
func (q *Queue[T]) Get(task *Task) (T, error) {
	for q.items.Len() == 0 {
		if q.closed {
			var z T
			return z, ErrQueueClosed
		}
		q.waiting.PushBack(task)
		task.block()
	}
	return q.items.PopFront(), nil
}

// Close stops further Puts. Items already queued can still be read;
// waiting getters are woken so they can observe the close.
func (q *Queue[T]) Close() {
	q.closed = true
	for q.waiting.Len() > 0 {
		q.wake()
	}
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	return q.items.Len()
}

func (q *Queue[T]) wake() {
	if q.waiting.Len() == 0 {
		return
	}
	task := q.waiting.PopFront()
	task.sched.ScheduleNow(task)
}
