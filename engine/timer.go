package engine

import (
	"sync"
	"time"
)

// sleepOp is the pending operation backing SleepFor: a real OS timer plus
// the bookkeeping needed to make the timer-fires-vs-gets-interrupted race
// resolve exactly once. original_source/src/timer.cpp's sleep_for_operation
// is the direct model.
type sleepOp struct {
	mu          sync.Mutex
	done        bool
	interrupted bool
	timer       *time.Timer
}

func (op *sleepOp) Cancel() {
	op.mu.Lock()
	defer op.mu.Unlock()
	if op.done {
		return
	}
	op.done = true
	if op.timer != nil {
		op.timer.Stop()
	}
}

// SleepFor is the scheduler's exemplar generic I/O suspension: install an
// interrupter, register the pending operation, wait for either the timer or
// an interrupt, and map operation_aborted + the sticky interrupted flag
// into ErrInterrupted — any other completion (the timer genuinely firing)
// passes through as success.
func SleepFor(f *Fiber, d time.Duration) error {
	if err := f.checkNotInterrupted(); err != nil {
		return err
	}

	vm := f.vm
	op := &sleepOp{}

	fire := func(interrupted bool) {
		op.mu.Lock()
		if op.done {
			op.mu.Unlock()
			return
		}
		op.done = true
		op.interrupted = interrupted
		op.mu.Unlock()
		vm.unregisterPending(op)

		var args []interface{}
		if interrupted {
			args = []interface{}{ErrInterrupted}
		}
		vm.resume(f.id, resumeOptions{Arguments: args})
	}

	op.timer = time.AfterFunc(d, func() {
		// Runs on its own goroutine per the time package's contract;
		// hop onto the executor before touching any shared state.
		vm.executor.Post(func() { fire(false) })
	})
	vm.registerPending(op)

	interrupter := func() {
		op.mu.Lock()
		alreadyDone := op.done
		op.mu.Unlock()
		if alreadyDone {
			return
		}
		if op.timer != nil {
			op.timer.Stop()
		}
		fire(true)
	}

	args := f.suspend(interrupter)
	return firstErrorArg(args)
}
