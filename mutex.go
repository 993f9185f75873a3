package coloop

// Mutex provides mutual exclusion between tasks. Tasks that find the
// lock held are parked and get it in arrival order.
type Mutex struct {
	noCopy noCopy
	r      *Task // current holder
	sema   sema
}

// Lock acquires the mutex for task, parking it while another task
// holds it.
func (m *Mutex) Lock(task *Task) {
	if m.r == nil {
		m.r = task
		return
	}

	m.sema.acquire(task)
}

// Unlock releases the mutex. When tasks are waiting, ownership passes
// directly to the oldest of them before it is resumed, so no task
// arriving in between can take the lock.
func (m *Mutex) Unlock() {
	if m.r == nil {
		panic("coloop: unlock of unlocked mutex")
	}

	if m.sema.waiting() == 0 {
		m.r = nil
		return
	}

	m.r = m.sema.w.Front()
	m.sema.release()
}

// WaitCount returns the number of tasks waiting to acquire the mutex.
func (m *Mutex) WaitCount() int {
	return m.sema.waiting()
}
