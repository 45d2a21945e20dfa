package engine

import "sync"

// Executor is the single-threaded, FIFO task queue every VM drives its
// fiber resumes and completion callbacks through (spec §6's "Executor/strand
// contract"). Grounded on the teacher's runtime/eventloop.go task queue,
// rewritten as an unbounded mutex+condvar queue rather than a fixed-size
// channel so Post never blocks the caller — original_source's
// vm_ctx->strand().post(...) never blocks either.
type Executor struct {
	mu      sync.Mutex
	cond    *sync.Cond
	tasks   []func()
	closed  bool
	running bool
}

// NewExecutor creates an idle executor. Call Run to start draining it.
func NewExecutor() *Executor {
	e := &Executor{}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// Post enqueues fn to run later, in FIFO order relative to every other
// Post/Defer call. Safe to call from any goroutine, including from inside
// a task currently running on this same executor.
func (e *Executor) Post(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.tasks = append(e.tasks, fn)
	e.cond.Signal()
}

// Defer is the variant meant for use inside a completion callback that is
// itself already running on the executor: it still just enqueues, since
// Post here never blocks, but the distinct name documents intent at call
// sites the way spec §6 distinguishes the two.
func (e *Executor) Defer(fn func()) { e.Post(fn) }

// Run drains tasks FIFO until Stop is called and the queue is empty.
func (e *Executor) Run() {
	e.mu.Lock()
	e.running = true
	for {
		for len(e.tasks) == 0 && !e.closed {
			e.cond.Wait()
		}
		if len(e.tasks) == 0 && e.closed {
			e.running = false
			e.mu.Unlock()
			return
		}
		fn := e.tasks[0]
		e.tasks = e.tasks[1:]
		e.mu.Unlock()
		fn()
		e.mu.Lock()
	}
}

// RunUntilIdle drains whatever tasks are currently queued (and whatever
// those tasks themselves Post) until the queue is empty, then returns
// without closing the executor. Useful for embedding a VM inside a
// synchronous caller (e.g. a CLI run) that wants to pump exactly one VM to
// completion.
func (e *Executor) RunUntilIdle() {
	for {
		e.mu.Lock()
		if len(e.tasks) == 0 {
			e.mu.Unlock()
			return
		}
		fn := e.tasks[0]
		e.tasks = e.tasks[1:]
		e.mu.Unlock()
		fn()
	}
}

// Stop unblocks a running Run loop once its queue drains.
func (e *Executor) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.cond.Broadcast()
}

// IsRunning reports whether Run is currently looping.
func (e *Executor) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Pending returns the number of tasks currently queued.
func (e *Executor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.tasks)
}
