package coloop

import (
	"container/heap"
	"time"
)

// deadline is a pending wake-up in the timer queue. The sequence
// number breaks ties between equal deadlines so that the oldest
// registration wakes first.
type deadline struct {
	at  time.Time
	seq uint64
	r   Runnable
}

// timerQueue is a min-heap of deadlines ordered by (at, seq).
type timerQueue []deadline

func (q timerQueue) Len() int { return len(q) }

func (q timerQueue) Less(i, j int) bool {
	if q[i].at.Equal(q[j].at) {
		return q[i].seq < q[j].seq
	}
	return q[i].at.Before(q[j].at)
}

func (q timerQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *timerQueue) Push(x any) {
	*q = append(*q, x.(deadline))
}

func (q *timerQueue) Pop() any {
	old := *q
	n := len(old)
	d := old[n-1]
	old[n-1] = deadline{}
	*q = old[:n-1]
	return d
}

func (q *timerQueue) add(d deadline) {
	heap.Push(q, d)
}

// peek returns the nearest deadline. The queue must not be empty.
func (q timerQueue) peek() deadline {
	return q[0]
}

// expire pops every entry whose deadline is at or before now, in
// heap order, calling fn for each one.
func (q *timerQueue) expire(now time.Time, fn func(Runnable)) {
	for q.Len() > 0 {
		if q.peek().at.After(now) {
			return
		}
		fn(heap.Pop(q).(deadline).r)
	}
}
