package engine

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// PendingOperation is any outstanding asynchronous request a fiber is
// suspended on (a timer, a future protocol-module read, ...). The generic
// suspension ABI (spec §4.6) registers one of these for every suspend point
// that involves a real external wait, so the VM can cancel them all during
// an orderly shutdown drain.
type PendingOperation interface {
	Cancel()
}

// VM is a single instance of the fiber scheduler hosting some number of
// fibers, grounded on the teacher's runtime.JVM (class cache + heap +
// thread table) but rebuilt around the spec's VM-context data model (spec
// §3) instead of a Java-style thread table.
type VM struct {
	ID uuid.UUID

	mu          sync.Mutex
	executor    *Executor
	fibers      map[FiberID]*Fiber
	nextFiberID uint64
	mainFiber   FiberID
	hasMain     bool

	valid        bool
	errMem       bool
	cleanupError bool
	exitCode     int

	pending   map[PendingOperation]struct{}
	deadlocks []string

	log *slog.Logger

	drainOnce sync.Once
	drained   chan struct{}
}

// NewVM constructs a VM with its own executor and fiber table. rootContext
// names the root Lua-context-equivalent this VM was created for; an empty string
// is rejected the way original_source/src/state.cpp's make_vm rejects an
// invalid lua_context.
func NewVM(rootContext string, log *slog.Logger) (*VM, error) {
	if rootContext == "" {
		return nil, ErrBadRootContext
	}
	if log == nil {
		log = slog.Default()
	}
	return &VM{
		ID:       uuid.New(),
		executor: NewExecutor(),
		fibers:   make(map[FiberID]*Fiber),
		valid:    true,
		pending:  make(map[PendingOperation]struct{}),
		log:      log.With("vm", rootContext),
		drained:  make(chan struct{}),
	}, nil
}

// Executor returns the VM's single strand.
func (vm *VM) Executor() *Executor { return vm.executor }

// Valid reports whether the VM is still accepting new fiber activity.
func (vm *VM) Valid() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.valid
}

// ExitCode returns the process exit code recorded when the main fiber
// finished (0 until then).
func (vm *VM) ExitCode() int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.exitCode
}

// Drained is closed once every fiber spawned on the VM has finished and its
// pending operations have all been cancelled or completed. A fiber left
// suspended keeps it open.
func (vm *VM) Drained() <-chan struct{} { return vm.drained }

func (vm *VM) fiber(id FiberID) *Fiber {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.fibers[id]
}

func (vm *VM) registerPending(op PendingOperation) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.pending[op] = struct{}{}
}

func (vm *VM) unregisterPending(op PendingOperation) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	delete(vm.pending, op)
}

// Spawn creates a new fiber with body fn and schedules its first resume as
// a deferred executor task (spec §4.1: "pushes it to the executor as a
// deferred task; returns immediately"). The first fiber ever spawned on a
// VM becomes its main fiber; the VM's exit code is taken from the main
// fiber's terminal error, if any.
func (vm *VM) Spawn(fn FiberFunc, args ...interface{}) (*Fiber, error) {
	vm.mu.Lock()
	if !vm.valid {
		vm.mu.Unlock()
		return nil, ErrVMClosed
	}
	vm.nextFiberID++
	id := FiberID(vm.nextFiberID)
	f := newFiber(vm, id, fn)
	vm.fibers[id] = f
	isMain := !vm.hasMain
	if isMain {
		vm.hasMain = true
		vm.mainFiber = id
	}
	vm.mu.Unlock()

	vm.log.Debug("spawned fiber", "fiber", id, "main", isMain)
	vm.executor.Post(func() {
		vm.resume(id, resumeOptions{Arguments: args})
	})
	return f, nil
}

type resumeOptions struct {
	Arguments            []interface{}
	SkipClearInterrupter bool
}

// resume drives one fiber through exactly one suspension cycle: it must
// only ever be called from a task running on this VM's executor, which is
// what makes Invariant A (never more than one fiber actively running at a
// time) hold without any lock around the fiber's own body execution.
func (vm *VM) resume(id FiberID, opts resumeOptions) {
	f := vm.fiber(id)
	if f == nil {
		return
	}

	f.status = FiberRunning
	if !opts.SkipClearInterrupter {
		f.interrupter = nil
	}

	var step stepResult
	if !f.started {
		f.started = true
		go f.loop(opts.Arguments)
	} else {
		f.resumeCh <- opts.Arguments
	}
	step = <-f.stepDone

	switch step.kind {
	case stepYielded:
		f.status = FiberSuspended
	case stepFinishedOK:
		f.status = FiberFinishedOK
		f.result = step.values
		vm.onFiberFinished(f, nil)
	case stepFinishedErr:
		f.status = FiberFinishedErr
		f.err = step.err
		f.traceback = step.traceback
		if IsMemoryExhausted(step.err) {
			vm.notifyMemoryExhausted(f)
		}
		vm.onFiberFinished(f, step.err)
		vm.mu.Lock()
		isMain := id == vm.mainFiber
		vm.mu.Unlock()
		if isMain {
			vm.mu.Lock()
			vm.exitCode = exitCodeFromError(step.err)
			vm.mu.Unlock()
		}
	}

	vm.maybeDrain()
}

func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	return 1
}

func (vm *VM) onFiberFinished(f *Fiber, err error) {
	vm.mu.Lock()
	joiners := f.joiners
	f.joiners = nil
	f.joinInProgress = false
	vm.mu.Unlock()

	for _, jid := range joiners {
		jid := jid
		vm.executor.Post(func() {
			vm.resume(jid, resumeOptions{Arguments: joinResultArgs(f)})
		})
	}
	if err != nil {
		vm.log.Warn("fiber finished with error", "fiber", f.id, "error", err)
	} else {
		vm.log.Debug("fiber finished", "fiber", f.id)
	}
}

func joinResultArgs(f *Fiber) []interface{} {
	if f.err != nil {
		return []interface{}{f.err}
	}
	return append([]interface{}{nil}, f.result...)
}

// Join suspends waiter until target finishes, then returns target's
// terminal results (or its error). If target has already finished, the
// result is returned immediately without any suspension.
func Join(waiter *Fiber, target *Fiber) ([]interface{}, error) {
	if target.status == FiberFinishedOK || target.status == FiberFinishedErr {
		if target.err != nil {
			return nil, target.err
		}
		return target.result, nil
	}
	if err := waiter.checkNotInterrupted(); err != nil {
		return nil, err
	}

	vm := waiter.vm
	vm.mu.Lock()
	target.joinInProgress = true
	target.joiners = append(target.joiners, waiter.id)
	vm.mu.Unlock()

	interrupter := func() {
		vm.mu.Lock()
		idx := -1
		for i, id := range target.joiners {
			if id == waiter.id {
				idx = i
				break
			}
		}
		if idx < 0 {
			vm.mu.Unlock()
			return
		}
		target.joiners = append(target.joiners[:idx], target.joiners[idx+1:]...)
		vm.mu.Unlock()
		vm.resume(waiter.id, resumeOptions{Arguments: []interface{}{ErrInterrupted}})
	}

	args := waiter.suspend(interrupter)
	if len(args) > 0 {
		if err, ok := args[0].(error); ok && err != nil {
			return nil, err
		}
		return args[1:], nil
	}
	return nil, nil
}

// Yield suspends the current fiber and immediately re-schedules it at the
// back of the executor's queue, giving every other ready fiber a turn.
func Yield(f *Fiber) error {
	if err := f.checkNotInterrupted(); err != nil {
		return err
	}
	vm := f.vm
	fired := new(bool)
	interrupter := func() {
		if *fired {
			return
		}
		*fired = true
		vm.resume(f.id, resumeOptions{Arguments: []interface{}{ErrInterrupted}})
	}
	vm.executor.Post(func() {
		if *fired {
			return
		}
		*fired = true
		vm.resume(f.id, resumeOptions{Arguments: nil})
	})
	args := f.suspend(interrupter)
	if len(args) > 0 {
		if err, ok := args[0].(error); ok {
			return err
		}
	}
	return nil
}

// Interrupt sets the sticky interrupted flag on target and, if it is
// currently suspended with an installed interrupter, posts that interrupter
// to run on the executor. Must be called from a fiber already running on
// the same VM's executor (i.e. from inside a native binding), matching
// original_source's "interrupt from inside an executor task" contract.
func (vm *VM) Interrupt(target *Fiber) {
	target.interrupted = true
	if target.interrupter != nil {
		interrupter := target.interrupter
		target.interrupter = nil
		vm.executor.Post(interrupter)
	}
}

// notifyDeadlock records a non-fatal diagnostic, e.g. a mutex or condvar
// being closed with a non-empty pending queue (original_source/src/
// mutex.cpp's destructor behavior).
func (vm *VM) notifyDeadlock(msg string) {
	vm.mu.Lock()
	vm.deadlocks = append(vm.deadlocks, msg)
	vm.mu.Unlock()
	vm.log.Error("deadlock notification", "detail", msg)
}

// Deadlocks returns every deadlock notification recorded so far.
func (vm *VM) Deadlocks() []string {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	out := make([]string, len(vm.deadlocks))
	copy(out, vm.deadlocks)
	return out
}

// notifyCleanupError marks the VM as fatally broken after a cleanup handler
// itself failed (original_source's terminate_vm_with_cleanup_error): the VM
// becomes invalid, so Spawn refuses new fibers, and every pending operation
// is cancelled. Fibers that already exist are not stopped: the failing
// fiber, and any other fiber that is resumed later, go on running their own
// code.
func (vm *VM) notifyCleanupError(f *Fiber, err error) {
	vm.mu.Lock()
	vm.cleanupError = true
	vm.valid = false
	vm.mu.Unlock()
	vm.log.Error("cleanup handler failed, VM is now invalid", "fiber", f.id, "error", err)
	vm.cancelAllPending()
}

// CleanupError reports whether a cleanup handler has ever failed on this VM.
func (vm *VM) CleanupError() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.cleanupError
}

// notifyMemoryExhausted marks the VM's resource-exhaustion flag and schedules
// an orderly termination: unlike a cleanup error, the VM itself isn't
// corrupt, so other fibers are left to drain rather than forced invalid.
func (vm *VM) notifyMemoryExhausted(f *Fiber) {
	vm.mu.Lock()
	vm.errMem = true
	vm.mu.Unlock()
	vm.log.Error("fiber hit resource exhaustion, VM scheduled for termination", "fiber", f.id)
	vm.cancelAllPending()
}

// ErrMem reports whether a fiber on this VM has ever terminated with the
// memory-exhausted epilogue case (spec §4.1's fourth branch).
func (vm *VM) ErrMem() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.errMem
}

func (vm *VM) cancelAllPending() {
	vm.mu.Lock()
	ops := make([]PendingOperation, 0, len(vm.pending))
	for op := range vm.pending {
		ops = append(ops, op)
	}
	vm.pending = make(map[PendingOperation]struct{})
	vm.mu.Unlock()
	for _, op := range ops {
		op.Cancel()
	}
}

// maybeDrain closes Drained() once every fiber has finished and no pending
// operations remain — an orderly shutdown drain (spec §7: resource
// exhaustion / cleanup-error paths both end here).
func (vm *VM) maybeDrain() {
	vm.mu.Lock()
	allDone := true
	for _, f := range vm.fibers {
		if f.status != FiberFinishedOK && f.status != FiberFinishedErr {
			allDone = false
			break
		}
	}
	pendingEmpty := len(vm.pending) == 0
	vm.mu.Unlock()

	if allDone && pendingEmpty {
		vm.drainOnce.Do(func() { close(vm.drained) })
	}
}

// FiberCount returns how many fibers this VM has ever spawned (finished or not).
func (vm *VM) FiberCount() int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return len(vm.fibers)
}

// Fiber looks up a fiber by ID, for diagnostics and tests.
func (vm *VM) Fiber(id FiberID) (*Fiber, bool) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	f, ok := vm.fibers[id]
	return f, ok
}

// Close marks the VM invalid; it is safe to call more than once.
func (vm *VM) Close() {
	vm.mu.Lock()
	wasValid := vm.valid
	vm.valid = false
	vm.mu.Unlock()
	if wasValid {
		vm.cancelAllPending()
		vm.executor.Stop()
	}
}

func (vm *VM) String() string {
	return fmt.Sprintf("vm(%s)", vm.ID)
}
