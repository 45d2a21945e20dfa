package engine

import "sync"

// Mutex is a FIFO-fair, non-reentrant lock between fibers of the same VM.
// Grounded on the exact unlock/handoff sequencing of
// original_source/src/mutex.cpp, reimplemented on top of suspend/resume
// instead of a blocking OS mutex — the teacher's runtime/jvm.go Monitor
// blocks real OS threads, which is exactly the model spec §9 rules out.
type Mutex struct {
	vm *VM

	mu      sync.Mutex
	locked  bool
	pending []FiberID
}

// NewMutex creates an unlocked mutex scoped to vm.
func NewMutex(vm *VM) *Mutex { return &Mutex{vm: vm} }

// Lock acquires the mutex, suspending the calling fiber if it is already
// held. Interruption while waiting removes the fiber from the queue and
// returns ErrInterrupted.
func (m *Mutex) Lock(f *Fiber) error {
	if err := f.checkNotInterrupted(); err != nil {
		return err
	}

	m.mu.Lock()
	if !m.locked {
		m.locked = true
		m.mu.Unlock()
		return nil
	}
	m.pending = append(m.pending, f.id)
	m.mu.Unlock()

	interrupter := func() {
		m.mu.Lock()
		idx := indexOfFiber(m.pending, f.id)
		if idx < 0 {
			m.mu.Unlock()
			return
		}
		m.pending = append(m.pending[:idx], m.pending[idx+1:]...)
		m.mu.Unlock()
		m.vm.resume(f.id, resumeOptions{Arguments: []interface{}{ErrInterrupted}})
	}

	args := f.suspend(interrupter)
	return firstErrorArg(args)
}

// TryLock acquires the mutex without suspending, reporting whether it
// succeeded.
func (m *Mutex) TryLock() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locked {
		return false
	}
	m.locked = true
	return true
}

// Unlock releases the mutex. If fibers are waiting, ownership passes
// directly to the head of the queue: it is resumed with
// skip_clear_interrupter so a racing interrupt against it still observes a
// coherent state (original_source/src/mutex.cpp).
func (m *Mutex) Unlock() error {
	m.mu.Lock()
	if !m.locked {
		m.mu.Unlock()
		return ErrOperationNotPermitted
	}
	if len(m.pending) == 0 {
		m.locked = false
		m.mu.Unlock()
		return nil
	}
	next := m.pending[0]
	m.pending = m.pending[1:]
	m.mu.Unlock()

	m.vm.executor.Post(func() {
		m.vm.resume(next, resumeOptions{SkipClearInterrupter: true, Arguments: nil})
	})
	return nil
}

// unlockForHandoff is Unlock's logic inlined for use from inside
// CondVar.Wait, where the unlock must happen as part of the same
// suspension rather than as a separate prior call.
func (m *Mutex) unlockForHandoff() {
	m.mu.Lock()
	if len(m.pending) == 0 {
		m.locked = false
		m.mu.Unlock()
		return
	}
	next := m.pending[0]
	m.pending = m.pending[1:]
	m.mu.Unlock()
	m.vm.executor.Post(func() {
		m.vm.resume(next, resumeOptions{SkipClearInterrupter: true, Arguments: nil})
	})
}

// Locked reports whether the mutex is currently held, for diagnostics.
func (m *Mutex) Locked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locked
}

// Close reports a deadlock notification if fibers are still waiting
// (original_source/src/mutex.cpp's destructor behavior), and is a no-op
// otherwise.
func (m *Mutex) Close() {
	m.mu.Lock()
	n := len(m.pending)
	m.pending = nil
	m.mu.Unlock()
	if n > 0 {
		m.vm.notifyDeadlock("mutex closed with waiters still pending")
	}
}

func indexOfFiber(ids []FiberID, id FiberID) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

func firstErrorArg(args []interface{}) error {
	if len(args) == 0 {
		return nil
	}
	if err, ok := args[0].(error); ok {
		return err
	}
	return nil
}
