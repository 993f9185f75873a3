package coloop

import (
	"context"
	"log/slog"
	"runtime/trace"
	"time"

	"github.com/gammazero/deque"
	"github.com/pkg/errors"
)

const (
	loopTraceTaskType = "coloop-loop"
	traceCategory     = "coloop"
)

// Runnable is anything the scheduler can invoke with no arguments.
// Tasks and Funcs are Runnables.
type Runnable interface {
	Run()
}

// Func is a callback-style Runnable. It runs once each time it is
// scheduled.
type Func func()

// Run calls f().
func (f Func) Run() { f() }

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithPoller sets the readiness check used by the loop. The default
// is NewPoller().
func WithPoller(p Poller) Option {
	return func(s *Scheduler) { s.poller = p }
}

// WithClock sets the clock used to compute and expire deadlines.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithLogger sets the logger for kernel events. Task failures are
// logged at error level, replaced wait registrations at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithErrorHandler installs a sink for task failures: errors
// returned by task functions and panics raised while a Runnable
// runs. Failures are otherwise discarded.
func WithErrorHandler(fn func(Runnable, error)) Option {
	return func(s *Scheduler) { s.onError = fn }
}

// Stats is a snapshot of the scheduler's collections.
type Stats struct {
	Ready        int
	Sleeping     int
	ReadWaiters  int
	WriteWaiters int
	Live         int // tasks created and not yet finished
}

// Scheduler is the kernel. It owns the ready queue, the timer queue
// and the read/write wait tables and runs the dispatch loop.
type Scheduler struct {
	noCopy  noCopy
	ready   deque.Deque[Runnable]
	timers  timerQueue
	reads   waitTable
	writes  waitTable
	seq     uint64
	current *Task
	running bool
	live    int
	single  *singleFlight
	poller  Poller
	now     func() time.Time
	logger  *slog.Logger
	onError func(Runnable, error)
}

// New creates a Scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		single: newSingleFlight(),
		now:    time.Now,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.poller == nil {
		s.poller = NewPoller()
	}
	return s
}

// Spawn creates a task running fn and appends it to the ready queue.
// The task's context derives from ctx.
func (s *Scheduler) Spawn(ctx context.Context, fn TaskFunc) *Task {
	t := newTask(ctx, s, nil, fn)
	s.ScheduleNow(t)
	return t
}

// Go is Spawn with a background context.
func (s *Scheduler) Go(fn TaskFunc) *Task {
	return s.Spawn(context.Background(), fn)
}

// ScheduleNow appends r to the ready queue. A finished task is
// ignored here and by the other scheduling entry points.
func (s *Scheduler) ScheduleNow(r Runnable) {
	if finished(r) {
		return
	}
	setState(r, TaskReady)
	s.ready.PushBack(r)
}

// ScheduleAfter makes r ready once d has elapsed. A zero or negative
// d makes r ready at the next deadline check. Runnables with equal
// deadlines become ready in registration order.
func (s *Scheduler) ScheduleAfter(d time.Duration, r Runnable) {
	if finished(r) {
		return
	}
	s.seq++
	s.timers.add(deadline{at: s.now().Add(d), seq: s.seq, r: r})
	setState(r, TaskSleeping)
}

// WaitRead makes r ready once fd is reported readable. Only one
// Runnable waits per descriptor: a second registration replaces the
// first, which is then never resumed. A displaced task's coroutine
// goroutine is never released.
func (s *Scheduler) WaitRead(fd int, r Runnable) {
	if finished(r) {
		return
	}
	if s.reads.set(fd, r) {
		s.logger.Debug("coloop: read waiter replaced", "fd", fd)
	}
	setState(r, TaskWaitingRead)
}

// WaitWrite makes r ready once fd is reported writable. Registration
// replaces any previous write waiter on fd, and a displaced task's
// coroutine goroutine is never released.
func (s *Scheduler) WaitWrite(fd int, r Runnable) {
	if finished(r) {
		return
	}
	if s.writes.set(fd, r) {
		s.logger.Debug("coloop: write waiter replaced", "fd", fd)
	}
	setState(r, TaskWaitingWrite)
}

// Current returns the running task, or nil between dispatches and
// while a Func runs.
func (s *Scheduler) Current() *Task {
	return s.current
}

// Stats returns the current sizes of the kernel collections.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Ready:        s.ready.Len(),
		Sleeping:     s.timers.Len(),
		ReadWaiters:  s.reads.len(),
		WriteWaiters: s.writes.len(),
		Live:         s.live,
	}
}

// Run drives the loop until the ready queue, the timer queue and both
// wait tables are all empty. It returns an error only when the
// readiness check fails; failures of individual tasks never stop the
// loop.
func (s *Scheduler) Run() error {
	if s.running {
		return ErrReentrantRun
	}
	s.running = true
	defer func() { s.running = false }()

	ctx, tracer := trace.NewTask(context.Background(), loopTraceTaskType)
	defer tracer.End()

	trace.Log(ctx, traceCategory, "LOOP")

	for s.pending() {
		if s.ready.Len() == 0 {
			if err := s.wait(ctx); err != nil {
				return err
			}
		}
		s.drain()
	}

	trace.Log(ctx, traceCategory, "LOOP DONE")
	return nil
}

func (s *Scheduler) pending() bool {
	return s.ready.Len() > 0 || s.timers.Len() > 0 || s.reads.len() > 0 || s.writes.len() > 0
}

// wait performs the single blocking step of an iteration: one
// readiness check bounded by the nearest deadline, followed by
// promotion of ready descriptors and expired timers.
func (s *Scheduler) wait(ctx context.Context) error {
	budget := Forever
	if s.timers.Len() > 0 {
		budget = max(0, s.timers.peek().at.Sub(s.now()))
	}

	trace.Logf(ctx, traceCategory, "WAIT %v READ %d WRITE %d", budget, s.reads.len(), s.writes.len())

	rd, err := s.poller.Wait(s.reads.fds(), s.writes.fds(), budget)
	if err != nil {
		return errors.Wrap(err, "coloop: readiness check")
	}

	for _, fd := range rd.Readable {
		if r, ok := s.reads.pop(fd); ok {
			s.ScheduleNow(r)
		}
	}
	for _, fd := range rd.Writable {
		if r, ok := s.writes.pop(fd); ok {
			s.ScheduleNow(r)
		}
	}

	s.timers.expire(s.now(), s.ScheduleNow)
	return nil
}

// drain runs every Runnable that was ready when the round started.
// Anything scheduled during the round waits for the next one.
func (s *Scheduler) drain() {
	for n := s.ready.Len(); n > 0; n-- {
		s.dispatch(s.ready.PopFront())
	}
}

func (s *Scheduler) dispatch(r Runnable) {
	defer func() {
		if p := recover(); p != nil {
			if t, ok := r.(*Task); ok {
				t.finish()
			}
			s.fail(r, &PanicError{Value: p})
		}
	}()
	r.Run()
}

func (s *Scheduler) fail(r Runnable, err error) {
	s.logger.Error("coloop: task failed", "err", err)
	if s.onError != nil {
		s.onError(r, err)
	}
}

// release clears the current slot if t holds it.
func (s *Scheduler) release(t *Task) {
	if s.current == t {
		s.current = nil
	}
}

// setState records a transition for tasks. Finished is terminal.
func setState(r Runnable, state TaskState) {
	if t, ok := r.(*Task); ok && t.state != TaskFinished {
		t.state = state
	}
}

func finished(r Runnable) bool {
	t, ok := r.(*Task)
	return ok && t.state == TaskFinished
}
