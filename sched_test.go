package coloop

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

// fakePoller never blocks. Unless ready reports something it advances
// the clock by the whole budget, as a real poll that timed out would.
type fakePoller struct {
	clock *fakeClock
	calls []time.Duration
	ready func(call int, reads, writes []int) Readiness
	hook  func()
}

func (p *fakePoller) Wait(reads, writes []int, timeout time.Duration) (Readiness, error) {
	p.calls = append(p.calls, timeout)
	if p.hook != nil {
		p.hook()
	}

	var rd Readiness
	if p.ready != nil {
		rd = p.ready(len(p.calls), reads, writes)
	}
	if len(rd.Readable)+len(rd.Writable) > 0 {
		return rd, nil
	}
	if timeout < 0 {
		return Readiness{}, fmt.Errorf("fake poller: would block forever on %v %v", reads, writes)
	}
	p.clock.now = p.clock.now.Add(timeout)
	return rd, nil
}

func newTestScheduler(opts ...Option) (*Scheduler, *fakePoller) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	poller := &fakePoller{clock: clock}
	opts = append([]Option{WithPoller(poller), WithClock(clock.Now)}, opts...)
	return New(opts...), poller
}

type recorder struct {
	events []string
}

func (r *recorder) add(format string, args ...any) {
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *recorder) fn(name string) Func {
	return func() { r.add(name) }
}

func TestRunEmpty(t *testing.T) {
	r := require.New(t)

	s, poller := newTestScheduler()
	r.NoError(s.Run())
	r.Empty(poller.calls)
	r.Equal(Stats{}, s.Stats())
}

func TestScheduleAfterOrder(t *testing.T) {
	r := require.New(t)

	s, _ := newTestScheduler()
	rec := new(recorder)

	s.ScheduleAfter(3*time.Second, rec.fn("d3"))
	s.ScheduleAfter(time.Second, rec.fn("d1a"))
	s.ScheduleAfter(2*time.Second, rec.fn("d2"))
	s.ScheduleAfter(time.Second, rec.fn("d1b"))
	s.ScheduleAfter(0, rec.fn("d0"))
	s.ScheduleAfter(-time.Second, rec.fn("dneg"))

	r.NoError(s.Run())
	r.Equal([]string{"dneg", "d0", "d1a", "d1b", "d2", "d3"}, rec.events)
}

func TestEqualDelaysResumeInRegistrationOrder(t *testing.T) {
	r := require.New(t)

	s, _ := newTestScheduler()
	rec := new(recorder)

	for _, name := range []string{"a", "b"} {
		s.Go(func(_ context.Context, task *Task) error {
			task.Sleep(time.Second)
			rec.add(name)
			return nil
		})
	}
	s.Go(func(_ context.Context, task *Task) error {
		task.Sleep(0)
		rec.add("c")
		return nil
	})

	r.NoError(s.Run())
	r.Equal([]string{"c", "a", "b"}, rec.events)
}

func TestReadyTaskRunsBeforeBlockingWait(t *testing.T) {
	r := require.New(t)

	s, poller := newTestScheduler()
	rec := new(recorder)

	poller.hook = func() { rec.add("poll") }
	poller.ready = func(_ int, reads, _ []int) Readiness {
		return Readiness{Readable: reads}
	}

	s.Go(func(_ context.Context, task *Task) error {
		task.WaitRead(7)
		rec.add("reader")
		return nil
	})
	s.Go(func(_ context.Context, task *Task) error {
		rec.add("other")
		return nil
	})

	r.NoError(s.Run())
	r.Equal([]string{"other", "poll", "reader"}, rec.events)
	r.Equal([]time.Duration{Forever}, poller.calls)
}

func TestFailingTaskDoesNotStopLoop(t *testing.T) {
	r := require.New(t)

	var failures []error
	s, _ := newTestScheduler(WithErrorHandler(func(_ Runnable, err error) {
		failures = append(failures, err)
	}))
	rec := new(recorder)
	boom := errors.New("UH OH")

	s.Go(func(_ context.Context, task *Task) error {
		task.Sleep(time.Second)
		panic(boom)
	})
	returned := s.Go(func(_ context.Context, task *Task) error {
		task.Yield()
		return boom
	})
	s.ScheduleNow(Func(func() { panic("callback") }))
	s.Go(func(_ context.Context, task *Task) error {
		task.Sleep(2 * time.Second)
		rec.add("survivor")
		return nil
	})

	r.NoError(s.Run())
	r.Equal([]string{"survivor"}, rec.events)
	r.Len(failures, 3)

	var pe *PanicError
	r.True(errors.As(failures[0], &pe))
	r.Equal("callback", pe.Value)

	r.Equal(boom, failures[1])
	r.Equal(boom, returned.Err())
	r.Equal(TaskFinished, returned.State())

	r.True(errors.As(failures[2], &pe))
	r.Contains(pe.Error(), boom.Error())

	r.Equal(0, s.Stats().Live)
	r.Nil(s.Current())
}

func TestFailuresSwallowedByDefault(t *testing.T) {
	r := require.New(t)

	s, _ := newTestScheduler()
	n := 0
	s.Go(func(context.Context, *Task) error { panic("no handler") })
	s.Go(func(context.Context, *Task) error { n++; return nil })

	r.NoError(s.Run())
	r.Equal(1, n)
}

func TestFinishedTaskStaysFinished(t *testing.T) {
	r := require.New(t)

	var failures []error
	s, poller := newTestScheduler(WithErrorHandler(func(_ Runnable, err error) {
		failures = append(failures, err)
	}))
	boom := errors.New("boom")

	task := s.Go(func(context.Context, *Task) error { return boom })
	r.NoError(s.Run())
	r.Equal(TaskFinished, task.State())

	s.ScheduleNow(task)
	s.ScheduleAfter(time.Second, task)
	s.WaitRead(3, task)
	s.WaitWrite(4, task)
	r.Equal(TaskFinished, task.State())
	r.Equal(Stats{}, s.Stats())

	r.NoError(s.Run())
	r.Empty(poller.calls)
	r.Equal(TaskFinished, task.State())
	r.Equal(0, s.Stats().Live)
	r.Equal([]error{boom}, failures)

	task.Run()
	r.Equal(TaskFinished, task.State())
	r.Len(failures, 1)
}

func TestZeroDelayWakesInNextCheck(t *testing.T) {
	r := require.New(t)

	s, poller := newTestScheduler()
	rec := new(recorder)

	for _, name := range []string{"x", "y"} {
		s.Go(func(_ context.Context, task *Task) error {
			task.Sleep(0)
			rec.add(name)
			return nil
		})
	}

	r.NoError(s.Run())
	r.Equal([]string{"x", "y"}, rec.events)
	r.Equal([]time.Duration{0}, poller.calls)
}

func TestWaitBudget(t *testing.T) {
	r := require.New(t)

	s, poller := newTestScheduler()
	s.Go(func(_ context.Context, task *Task) error {
		task.Sleep(5 * time.Second)
		task.Sleep(time.Second)
		return nil
	})

	r.NoError(s.Run())
	r.Equal([]time.Duration{5 * time.Second, time.Second}, poller.calls)
}

func TestDrainRoundIsBounded(t *testing.T) {
	r := require.New(t)

	s, poller := newTestScheduler()
	rec := new(recorder)

	s.ScheduleNow(Func(func() {
		rec.add("a")
		s.ScheduleNow(rec.fn("c"))
	}))
	s.ScheduleNow(rec.fn("b"))
	s.Go(func(_ context.Context, task *Task) error {
		for i := 0; i < 3; i++ {
			rec.add("yield%d", i)
			task.Yield()
		}
		return nil
	})

	r.NoError(s.Run())
	r.Equal([]string{"a", "b", "yield0", "c", "yield1", "yield2"}, rec.events)
	r.Empty(poller.calls)
}

func TestReadWaiterNoSpuriousWake(t *testing.T) {
	r := require.New(t)

	s, poller := newTestScheduler()
	rec := new(recorder)

	poller.ready = func(call int, reads, _ []int) Readiness {
		if call == 3 {
			return Readiness{Readable: reads}
		}
		return Readiness{}
	}

	s.Go(func(_ context.Context, task *Task) error {
		task.WaitRead(4)
		rec.add("read")
		return nil
	})
	s.Go(func(_ context.Context, task *Task) error {
		for i := 0; i < 2; i++ {
			task.Sleep(time.Second)
			rec.add("tick%d", i)
		}
		return nil
	})

	r.NoError(s.Run())
	r.Equal([]string{"tick0", "tick1", "read"}, rec.events)
	r.Len(poller.calls, 3)
}

func TestSuspendedTaskHasOneRegistration(t *testing.T) {
	r := require.New(t)

	s, poller := newTestScheduler()
	poller.ready = func(_ int, reads, writes []int) Readiness {
		return Readiness{Readable: reads, Writable: writes}
	}

	var task *Task
	poller.hook = func() {
		st := s.Stats()
		r.Equal(1, st.Sleeping+st.ReadWaiters+st.WriteWaiters+st.Ready)
		r.Equal(0, st.Ready)
		r.NotEqual(TaskRunning, task.State())
	}

	task = s.Go(func(_ context.Context, task *Task) error {
		for i := 0; i < 3; i++ {
			task.Sleep(time.Millisecond)
			r.Equal(TaskRunning, task.State())
			task.WaitRead(3)
			task.WaitWrite(3)
		}
		return nil
	})

	r.NoError(s.Run())
	r.Len(poller.calls, 9)
	r.Equal(TaskFinished, task.State())
}

func TestTaskStates(t *testing.T) {
	r := require.New(t)

	s, poller := newTestScheduler()
	var states []TaskState

	var task *Task
	poller.ready = func(_ int, reads, writes []int) Readiness {
		states = append(states, task.State())
		return Readiness{Readable: reads, Writable: writes}
	}

	task = s.Go(func(_ context.Context, task *Task) error {
		task.Sleep(time.Second)
		task.WaitRead(1)
		task.WaitWrite(2)
		return nil
	})
	r.Equal(TaskReady, task.State())

	r.NoError(s.Run())
	r.Equal([]TaskState{TaskSleeping, TaskWaitingRead, TaskWaitingWrite}, states)
	r.Equal(TaskFinished, task.State())
	r.Equal("finished", task.State().String())
}

func TestDoubleRegistrationLastWins(t *testing.T) {
	r := require.New(t)

	s, poller := newTestScheduler()
	rec := new(recorder)
	poller.ready = func(_ int, reads, writes []int) Readiness {
		return Readiness{Readable: reads, Writable: writes}
	}

	s.WaitRead(5, rec.fn("first"))
	s.WaitRead(5, rec.fn("second"))
	s.WaitWrite(5, rec.fn("writer"))
	r.Equal(1, s.Stats().ReadWaiters)

	r.NoError(s.Run())
	r.Equal([]string{"second", "writer"}, rec.events)
	r.Equal(Stats{}, s.Stats())
}

func TestReadinessFailureIsFatal(t *testing.T) {
	r := require.New(t)

	s := New(WithPoller(PollerFunc(func([]int, []int, time.Duration) (Readiness, error) {
		return Readiness{}, ErrBadDescriptor
	})))

	n := 0
	s.Go(func(_ context.Context, task *Task) error {
		task.WaitRead(9)
		n++
		return nil
	})

	err := s.Run()
	r.Error(err)
	r.Equal(ErrBadDescriptor, errors.Cause(err))
	r.Equal(0, n)
}

func TestReentrantRun(t *testing.T) {
	r := require.New(t)

	s, _ := newTestScheduler()
	var inner error
	s.Go(func(context.Context, *Task) error {
		inner = s.Run()
		return nil
	})

	r.NoError(s.Run())
	r.Equal(ErrReentrantRun, inner)
}

func TestChildTasksAndContext(t *testing.T) {
	r := require.New(t)

	type key struct{}
	s, _ := newTestScheduler()
	rec := new(recorder)

	ctx := context.WithValue(context.Background(), key{}, "v")
	s.Spawn(ctx, func(ctx context.Context, task *Task) error {
		got, ok := TaskFromContext(ctx)
		r.True(ok)
		r.Same(task, got)
		r.Same(s, task.Scheduler())

		task.Go(func(ctx context.Context, child *Task) error {
			r.Equal("v", ctx.Value(key{}))
			r.Same(child, MustTaskFromContext(ctx))
			rec.add("child")
			return nil
		})
		rec.add("parent")
		return nil
	})

	r.NoError(s.Run())
	r.Equal([]string{"parent", "child"}, rec.events)

	_, ok := TaskFromContext(context.Background())
	r.False(ok)
	r.Panics(func() { MustTaskFromContext(context.Background()) })
}

func TestSuspendOutsideRunningTaskPanics(t *testing.T) {
	r := require.New(t)

	var failures []error
	s, _ := newTestScheduler(WithErrorHandler(func(_ Runnable, err error) {
		failures = append(failures, err)
	}))

	sleeper := s.Go(func(_ context.Context, task *Task) error {
		task.Sleep(time.Second)
		return nil
	})
	s.ScheduleNow(Func(func() { sleeper.Sleep(time.Second) }))

	r.NoError(s.Run())
	r.Len(failures, 1)
	r.Equal(TaskFinished, sleeper.State())
}
