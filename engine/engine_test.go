package engine

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVM(t *testing.T) *VM {
	t.Helper()
	vm, err := NewVM("test", slog.Default())
	require.NoError(t, err)
	go vm.executor.Run()
	t.Cleanup(func() { vm.executor.Stop() })
	return vm
}

func TestSpawnRunsToCompletion(t *testing.T) {
	vm := newTestVM(t)
	f, err := vm.Spawn(func(f *Fiber, args []interface{}) ([]interface{}, error) {
		return []interface{}{"ok"}, nil
	})
	require.NoError(t, err)

	select {
	case <-vm.Drained():
	case <-time.After(time.Second):
		t.Fatal("vm never drained")
	}
	assert.Equal(t, FiberFinishedOK, f.Status())
	assert.Equal(t, []interface{}{"ok"}, f.result)
}

func TestSpawnPropagatesError(t *testing.T) {
	vm := newTestVM(t)
	boom := EngineError{Category: GenericCategory, Code: 1}
	f, err := vm.Spawn(func(f *Fiber, args []interface{}) ([]interface{}, error) {
		return nil, boom
	})
	require.NoError(t, err)

	<-vm.Drained()
	assert.Equal(t, FiberFinishedErr, f.Status())
	assert.True(t, boom.Equal(f.err.(EngineError)))
	assert.Equal(t, 1, vm.ExitCode())
}

func TestJoinWaitsForTarget(t *testing.T) {
	vm := newTestVM(t)

	var targetID FiberID
	done := make(chan []interface{}, 1)

	target, err := vm.Spawn(func(f *Fiber, args []interface{}) ([]interface{}, error) {
		SleepFor(f, 10*time.Millisecond)
		return []interface{}{42}, nil
	})
	require.NoError(t, err)
	targetID = target.ID()

	_, err = vm.Spawn(func(f *Fiber, args []interface{}) ([]interface{}, error) {
		tgt, _ := vm.Fiber(targetID)
		results, err := Join(f, tgt)
		done <- results
		return nil, err
	})
	require.NoError(t, err)

	select {
	case results := <-done:
		assert.Equal(t, []interface{}{42}, results)
	case <-time.After(time.Second):
		t.Fatal("join never completed")
	}
}

func TestJoinOnAlreadyFinishedFiberReturnsImmediately(t *testing.T) {
	vm := newTestVM(t)
	target, err := vm.Spawn(func(f *Fiber, args []interface{}) ([]interface{}, error) {
		return []interface{}{"done"}, nil
	})
	require.NoError(t, err)
	<-vm.Drained()

	results, err := Join(target, target)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"done"}, results)
}

func TestInterruptWakesSleepingFiber(t *testing.T) {
	vm := newTestVM(t)
	result := make(chan error, 1)
	var self *Fiber

	self, _ = vm.Spawn(func(f *Fiber, args []interface{}) ([]interface{}, error) {
		err := SleepFor(f, time.Hour)
		result <- err
		return nil, nil
	})

	time.Sleep(20 * time.Millisecond) // let it reach the suspend point
	vm.executor.Post(func() { vm.Interrupt(self) })

	select {
	case err := <-result:
		assert.True(t, IsInterrupted(err))
	case <-time.After(time.Second):
		t.Fatal("interrupt never delivered")
	}
}

func TestMutexIsFIFOFair(t *testing.T) {
	vm := newTestVM(t)
	m := NewMutex(vm)
	var order []int
	orderCh := make(chan int, 3)

	require.NoError(t, m.Lock(mustFiber(t, vm)))

	for i := 1; i <= 3; i++ {
		i := i
		_, err := vm.Spawn(func(f *Fiber, args []interface{}) ([]interface{}, error) {
			if err := m.Lock(f); err != nil {
				return nil, err
			}
			orderCh <- i
			return nil, m.Unlock()
		})
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond) // ensure spawn order == queue order
	}

	vm.executor.Post(func() { m.Unlock() })

	for i := 0; i < 3; i++ {
		select {
		case v := <-orderCh:
			order = append(order, v)
		case <-time.After(time.Second):
			t.Fatal("mutex waiter never woke")
		}
	}
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestCondVarWaitReacquiresMutex(t *testing.T) {
	vm := newTestVM(t)
	m := NewMutex(vm)
	cv := NewCondVar(vm)
	woke := make(chan bool, 1)

	_, err := vm.Spawn(func(f *Fiber, args []interface{}) ([]interface{}, error) {
		if err := m.Lock(f); err != nil {
			return nil, err
		}
		err := cv.Wait(f, m)
		woke <- m.Locked()
		m.Unlock()
		return nil, err
	})
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	vm.executor.Post(func() { cv.NotifyOne() })

	select {
	case locked := <-woke:
		assert.True(t, locked, "mutex must be held again once Wait returns")
	case <-time.After(time.Second):
		t.Fatal("condvar waiter never woke")
	}
}

func TestScopeCleanupRunsLIFO(t *testing.T) {
	vm := newTestVM(t)
	var order []int
	doneCh := make(chan struct{})

	_, err := vm.Spawn(func(f *Fiber, args []interface{}) ([]interface{}, error) {
		err := f.Scope(func() error {
			f.ScopeCleanupPush(func() error { order = append(order, 1); return nil })
			f.ScopeCleanupPush(func() error { order = append(order, 2); return nil })
			return nil
		})
		close(doneCh)
		return nil, err
	})
	require.NoError(t, err)

	<-doneCh
	assert.Equal(t, []int{2, 1}, order)
}

func TestUnmatchedScopeCleanupPop(t *testing.T) {
	vm := newTestVM(t)
	fib, err := vm.Spawn(func(f *Fiber, args []interface{}) ([]interface{}, error) {
		_, popErr := f.ScopeCleanupPop()
		return nil, popErr
	})
	require.NoError(t, err)
	<-vm.Drained()
	assert.True(t, ErrUnmatchedScopeCleanup.Equal(fib.err.(EngineError)))
}

func TestRestoreInterruptionUnderflow(t *testing.T) {
	vm := newTestVM(t)
	fib, err := vm.Spawn(func(f *Fiber, args []interface{}) ([]interface{}, error) {
		return nil, f.RestoreInterruption()
	})
	require.NoError(t, err)
	<-vm.Drained()
	assert.True(t, ErrInterruptionAlreadyAllowed.Equal(fib.err.(EngineError)))
}

func TestErrorValueEquality(t *testing.T) {
	a := EngineError{Category: EngineCategory, Code: CodeInterrupted}
	b := EngineError{Category: EngineCategory, Code: CodeInterrupted}
	c := EngineError{Category: EngineCategory, Code: CodeBadIndex}
	assert.True(t, a.Equal(b))
	assert.True(t, b.Equal(a))
	assert.False(t, a.Equal(c))
	assert.Equal(t, a.Error(), EngineCategory.Message(CodeInterrupted))
}

func mustFiber(t *testing.T, vm *VM) *Fiber {
	t.Helper()
	f, err := vm.Spawn(func(f *Fiber, args []interface{}) ([]interface{}, error) { return nil, nil })
	require.NoError(t, err)
	return f
}
