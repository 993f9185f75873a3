package coloop

// WaitGroup waits for a collection of tasks to finish. Tasks call
// Add(1) when they start and Done() when they finish; Wait parks the
// caller until the counter drops to zero.
type WaitGroup struct {
	noCopy noCopy
	v      int32  // counter
	w      uint32 // parked waiters
	sema   sema
}

// Add adds delta to the counter. When it reaches zero every waiting
// task is rescheduled. A negative counter panics.
func (wg *WaitGroup) Add(delta int) {
	wg.v += int32(delta)

	if wg.v < 0 {
		panic("coloop: negative WaitGroup counter")
	}

	if wg.w != 0 && delta > 0 && wg.v == int32(delta) {
		panic("coloop: WaitGroup misuse: Add called concurrently with Wait")
	}

	if wg.v > 0 || wg.w == 0 {
		return
	}

	for ; wg.w != 0; wg.w-- {
		wg.sema.release()
	}
}

// Done decrements the counter by one.
func (wg *WaitGroup) Done() {
	wg.Add(-1)
}

// Wait parks task until the counter is zero. It returns immediately
// if the counter already is.
func (wg *WaitGroup) Wait(task *Task) {
	if wg.v == 0 {
		return
	}

	wg.w++
	wg.sema.acquire(task)
}
