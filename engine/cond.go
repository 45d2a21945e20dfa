package engine

import "sync"

// CondVar is a condition variable with no stored mutex association: every
// Wait call is given the mutex to use, matching
// original_source/src/condition_variable.cpp exactly. It does not produce
// spurious wakeups on its own, but a caller resumed via interruption must
// still recheck its predicate — interruption can deliver a wakeup without
// the condition actually holding.
type CondVar struct {
	vm *VM

	mu      sync.Mutex
	pending []FiberID
}

// NewCondVar creates an empty condition variable scoped to vm.
func NewCondVar(vm *VM) *CondVar { return &CondVar{vm: vm} }

// Wait atomically unlocks m and suspends the calling fiber until a
// matching notify, then re-acquires m (via the same FIFO Lock path) before
// returning — even if it was woken by interruption, per
// original_source/src/condition_variable.cpp's wrapper contract: the
// mutex is always re-acquired (or attempted) before the error propagates.
func (cv *CondVar) Wait(f *Fiber, m *Mutex) error {
	if !m.Locked() {
		return ErrOperationNotPermitted
	}
	if err := f.checkNotInterrupted(); err != nil {
		return err
	}

	cv.mu.Lock()
	cv.pending = append(cv.pending, f.id)
	cv.mu.Unlock()

	interrupter := func() {
		cv.mu.Lock()
		idx := indexOfFiber(cv.pending, f.id)
		if idx < 0 {
			// Already dequeued by a racing notify; idempotent no-op,
			// per original_source's handling of this exact race.
			cv.mu.Unlock()
			return
		}
		cv.pending = append(cv.pending[:idx], cv.pending[idx+1:]...)
		cv.mu.Unlock()
		cv.vm.resume(f.id, resumeOptions{Arguments: []interface{}{ErrInterrupted}})
	}

	// Inline unlock as part of the same suspension, not a separate prior
	// call — exactly how cond_wait sequences it in original_source.
	m.unlockForHandoff()

	args := f.suspend(interrupter)
	waitErr := firstErrorArg(args)

	lockErr := m.Lock(f)
	if lockErr != nil {
		return lockErr
	}
	return waitErr
}

// NotifyOne wakes the single longest-waiting fiber, if any. Its interrupter
// is cleared normally (no skip_clear_interrupter), matching
// cond_notify_one.
func (cv *CondVar) NotifyOne() {
	cv.mu.Lock()
	if len(cv.pending) == 0 {
		cv.mu.Unlock()
		return
	}
	next := cv.pending[0]
	cv.pending = cv.pending[1:]
	cv.mu.Unlock()

	cv.vm.executor.Post(func() {
		cv.vm.resume(next, resumeOptions{Arguments: nil})
	})
}

// NotifyAll wakes every currently waiting fiber.
func (cv *CondVar) NotifyAll() {
	cv.mu.Lock()
	waiters := cv.pending
	cv.pending = nil
	cv.mu.Unlock()

	for _, id := range waiters {
		id := id
		cv.vm.executor.Post(func() {
			cv.vm.resume(id, resumeOptions{Arguments: nil})
		})
	}
}

// Close reports a deadlock notification if fibers are still waiting.
func (cv *CondVar) Close() {
	cv.mu.Lock()
	n := len(cv.pending)
	cv.pending = nil
	cv.mu.Unlock()
	if n > 0 {
		cv.vm.notifyDeadlock("condition variable closed with waiters still pending")
	}
}
