package coloop

import "context"

// ErrGroup runs a group of child tasks and collects the first error
// any of them returns.
type ErrGroup interface {
	// Go starts a child task with the group's context.
	Go(func(context.Context) error)
	// GoWithContext starts a child task with ctx, which must belong to
	// the task that created the group.
	GoWithContext(context.Context, func(context.Context) error)
	// Wait parks the given task until every child has finished and
	// returns the first error encountered.
	Wait(*Task) error
}

type errGroup struct {
	task   *Task
	ctx    context.Context
	cancel func(error)
	wg     WaitGroup
	err    error
}

func newErrGroup(task *Task) *errGroup {
	ctx, cancel := context.WithCancelCause(task.ctx)
	return &errGroup{task: task, ctx: ctx, cancel: cancel}
}

func (g *errGroup) Go(f func(context.Context) error) {
	g.goctx(g.ctx, f)
}

func (g *errGroup) GoWithContext(ctx context.Context, f func(context.Context) error) {
	if task := MustTaskFromContext(ctx); task != g.task {
		panic("coloop: ctx task does not match errgroup task")
	}
	g.goctx(ctx, f)
}

// goctx spawns the child. The first failure cancels the group
// context with the error as its cause.
func (g *errGroup) goctx(ctx context.Context, f func(context.Context) error) {
	g.wg.Add(1)
	g.task.GoWithContext(ctx, func(ctx context.Context, _ *Task) error {
		defer g.wg.Done()
		if err := f(ctx); err != nil && g.err == nil {
			g.err = err
			g.cancel(g.err)
		}
		return nil
	})
}

func (g *errGroup) Wait(task *Task) error {
	g.wg.Wait(task)
	g.cancel(g.err)
	return g.err
}
