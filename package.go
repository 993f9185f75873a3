// Package coloop provides a single-threaded cooperative task
// scheduler. Many logical tasks appear to run concurrently, sleeping,
// waiting on timers and waiting on descriptor readiness, while only
// one of them executes at any instant.
//
// Key components:
//
//   - Scheduler: The kernel. It owns the ready queue, the timer
//     queue and the read/write wait tables, and runs the dispatch
//     loop until no task can ever become ready again.
//
//   - Task: A coroutine-backed unit of work. A task gives up control
//     only at its suspension points (Sleep, WaitRead, WaitWrite,
//     Recv, Send, Accept, Yield and the synchronization primitives)
//     and is later resumed exactly where it left off.
//
//   - Func: A callback-style Runnable that is invoked once each time
//     it is scheduled.
//
//   - Poller: The readiness check used when the ready queue is
//     empty. The default implementation is built on poll(2).
//
//   - Synchronization primitives: Mutex, WaitGroup, ErrGroup,
//     singleflight (Task.Do) and an unbounded Queue for
//     producer/consumer style tasks.
//
// A Scheduler is not safe for use from multiple goroutines. All of
// its methods must be called from the goroutine running Run or from
// the tasks it runs.
package coloop
