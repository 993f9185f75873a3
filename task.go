package coloop

import (
	"context"
	"fmt"
	"runtime/trace"
	"strings"
	"time"

	"github.com/webriots/coro"
)

const taskTraceRegionType = "coloop-task"

// TaskFunc is the body of a task. A returned error finishes the task
// and is reported to the scheduler's error handler.
type TaskFunc func(ctx context.Context, t *Task) error

// TaskState is the liveness state of a task.
type TaskState int

const (
	TaskReady TaskState = iota
	TaskRunning
	TaskSleeping
	TaskWaitingRead
	TaskWaitingWrite
	TaskParked // waiting on a Mutex, WaitGroup or Queue
	TaskFinished
)

func (s TaskState) String() string {
	switch s {
	case TaskReady:
		return "ready"
	case TaskRunning:
		return "running"
	case TaskSleeping:
		return "sleeping"
	case TaskWaitingRead:
		return "waiting-read"
	case TaskWaitingWrite:
		return "waiting-write"
	case TaskParked:
		return "parked"
	case TaskFinished:
		return "finished"
	}
	return fmt.Sprintf("TaskState(%d)", int(s))
}

// Task wraps a coroutine so the scheduler can treat it as a plain
// Runnable. Running a task resumes the coroutine from its last
// suspension point. The coroutine runs on its own goroutine, which
// lives until the task finishes; a task that is never resumed again
// holds it for good.
type Task struct {
	ctx     context.Context
	sched   *Scheduler
	parent  *Task
	resume  func(struct{}) (struct{}, bool)
	suspend func() struct{}
	state   TaskState
	err     error
}

func newTask(ctx context.Context, sched *Scheduler, parent *Task, fn TaskFunc) *Task {
	t := &Task{sched: sched, parent: parent}
	t.ctx = withTaskContext(ctx, t)

	t.resume, _ = coro.New(
		func(_ func(struct{}) struct{}, suspend func() struct{}) (z struct{}) {
			region := trace.StartRegion(t.ctx, taskTraceRegionType)
			defer region.End()

			t.suspend = suspend
			t.err = fn(t.ctx, t)

			return
		},
	)

	sched.live++
	return t
}

// Run resumes the task. If the task suspended without registering
// itself anywhere (Yield) it goes back on the ready queue; if it
// registered and cleared the current slot it is left alone. Running a
// finished task does nothing.
func (t *Task) Run() {
	if t.state == TaskFinished {
		return
	}

	s := t.sched
	s.current = t
	t.state = TaskRunning
	t.Log("RUN")

	if _, ok := t.resume(struct{}{}); !ok {
		t.finish()
		if t.err != nil {
			s.fail(t, t.err)
		}
		return
	}

	if s.current == t {
		s.current = nil
		s.ScheduleNow(t)
	}
}

func (t *Task) finish() {
	if t.state == TaskFinished {
		return
	}
	t.state = TaskFinished
	t.sched.live--
	t.sched.release(t)
	t.Log("DONE")
}

// park suspends the task after it has registered itself with the
// kernel or with a primitive that will reschedule it. Clearing the
// current slot tells Run not to re-enqueue it.
func (t *Task) park() {
	t.sched.release(t)
	t.suspend()
}

// block parks the task on a synchronization primitive.
func (t *Task) block() {
	t.mustRun()
	t.state = TaskParked
	t.park()
}

func (t *Task) mustRun() {
	if t.sched.current != t {
		panic("coloop: suspension point reached outside the running task")
	}
}

// Go spawns a child task sharing this task's context. The child is
// appended to the ready queue; the caller keeps running.
func (t *Task) Go(fn TaskFunc) *Task {
	return t.GoWithContext(t.ctx, fn)
}

// GoWithContext spawns a child task whose context derives from ctx.
func (t *Task) GoWithContext(ctx context.Context, fn TaskFunc) *Task {
	child := newTask(ctx, t.sched, t, fn)
	child.Log("GO")
	t.sched.ScheduleNow(child)
	return child
}

// Yield gives up control while staying runnable: the task goes to the
// back of the ready queue and runs again in the next drain round.
func (t *Task) Yield() {
	t.mustRun()
	t.Log("YIELD")
	t.suspend()
}

// Sleep suspends the task for at least d.
func (t *Task) Sleep(d time.Duration) {
	t.mustRun()
	t.Logf("SLEEP %v", d)
	t.sched.ScheduleAfter(d, t)
	t.park()
}

// WaitRead suspends the task until fd is reported readable.
func (t *Task) WaitRead(fd int) {
	t.mustRun()
	t.Logf("WAIT READ %d", fd)
	t.sched.WaitRead(fd, t)
	t.park()
}

// WaitWrite suspends the task until fd is reported writable.
func (t *Task) WaitWrite(fd int) {
	t.mustRun()
	t.Logf("WAIT WRITE %d", fd)
	t.sched.WaitWrite(fd, t)
	t.park()
}

// Do runs fn once for all tasks concurrently asking for key. Tasks
// arriving while fn is in flight wait for its result; shared reports
// whether the result went to more than one caller.
func (t *Task) Do(key any, fn func() (any, error)) (v any, err error, shared bool) {
	t.Logf("DO %v", key)
	return t.sched.single.do(t, key, fn)
}

// Group returns an ErrGroup whose tasks are children of t.
func (t *Task) Group() ErrGroup {
	return newErrGroup(t)
}

// State returns the task's liveness state.
func (t *Task) State() TaskState {
	return t.state
}

// Err returns the error the task function returned. It is nil until
// the task finishes.
func (t *Task) Err() error {
	return t.err
}

// Context returns the task's context.
func (t *Task) Context() context.Context {
	return t.ctx
}

// Scheduler returns the scheduler running the task.
func (t *Task) Scheduler() *Scheduler {
	return t.sched
}

func (t *Task) Log(msg string) {
	if trace.IsEnabled() {
		var sb strings.Builder
		taskpath(&sb, t)
		sb.WriteRune(' ')
		sb.WriteString(msg)
		trace.Log(t.ctx, traceCategory, sb.String())
	}
}

func (t *Task) Logf(format string, args ...any) {
	if trace.IsEnabled() {
		var sb strings.Builder
		taskpath(&sb, t)
		sb.WriteRune(' ')
		fmt.Fprintf(&sb, format, args...)
		trace.Log(t.ctx, traceCategory, sb.String())
	}
}

func taskpath(sb *strings.Builder, t *Task) {
	if t == nil {
		return
	}
	taskpath(sb, t.parent)
	fmt.Fprintf(sb, "%p|", t)
}
