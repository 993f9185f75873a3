package coloop

import "github.com/gammazero/deque"

// sema is a counting semaphore for tasks. Waiters are resumed in
// arrival order and a released permit is handed straight to the
// oldest waiter.
type sema struct {
	noCopy noCopy
	v      uint32
	w      deque.Deque[*Task]
}

// acquire takes a permit, parking t until one is handed to it.
func (s *sema) acquire(t *Task) {
	if s.v > 0 {
		s.v--
		return
	}

	s.w.PushBack(t)
	t.block()
}

// release hands a permit to the oldest waiter, or keeps it when
// nobody waits.
func (s *sema) release() {
	if s.w.Len() == 0 {
		s.v++
		return
	}

	task := s.w.PopFront()
	task.sched.ScheduleNow(task)
}

func (s *sema) waiting() int {
	return s.w.Len()
}
