package runtime

import (
	"container/heap"
	"fiberengine/engine"
	"fmt"
	"sync"
	"time"
)

// Task represents a unit of work submitted to the event loop.
type Task struct {
	ID       int32
	Name     string
	Callback func()
}

// TimerTask represents a scheduled task with a deadline, ordered in
// TimerHeap by Deadline.
type TimerTask struct {
	ID       int32
	Name     string
	Deadline time.Time
	Callback func()
	Interval time.Duration // for setInterval; 0 for a one-shot setTimeout
	index    int
	canceled bool
}

// EventLoop is the JS-style setTimeout/setInterval/submit surface bound to
// a VM's engine.Executor. Unlike the original busy-polling implementation
// (a goroutine spinning on time.Sleep(1ms) checking a timer heap), firing is
// driven by real timers posted onto the executor, the same pattern
// engine.SleepFor uses for suspending fibers on a deadline: this is a
// non-suspending sibling of that primitive, for fire-and-forget callbacks
// rather than cooperative suspension.
type EventLoop struct {
	executor *engine.Executor

	mu         sync.Mutex
	timers     *TimerHeap
	taskCount  int32
	timerCount int32
}

var globalEventLoop *EventLoop
var eventLoopOnce sync.Once
var eventLoopVM *engine.VM

// GetEventLoop returns the global event loop, creating it against vm's
// executor the first time it's needed (or a standalone executor if no VM
// has bound one yet, for callers outside the fiber engine).
func GetEventLoop() *EventLoop {
	eventLoopOnce.Do(func() {
		globalEventLoop = newEventLoopLocked()
	})
	return globalEventLoop
}

// BindEventLoopVM associates the global event loop with a JVM's engine VM
// executor. Call this once, before GetEventLoop is first used, so
// setTimeout/setInterval callbacks are posted onto the VM's single
// executor goroutine instead of a detached one.
func BindEventLoopVM(vm *engine.VM) {
	eventLoopVM = vm
}

// ResetEventLoop resets the global event loop (for testing).
func ResetEventLoop() {
	globalEventLoop = newEventLoopLocked()
}

func newEventLoopLocked() *EventLoop {
	ex := eventLoopVM
	var executor *engine.Executor
	if ex != nil {
		executor = ex.Executor()
	} else {
		executor = engine.NewExecutor()
		go executor.Run()
	}
	return &EventLoop{
		executor: executor,
		timers:   NewTimerHeap(),
	}
}

// NewEventLoop creates a standalone event loop bound to its own executor.
func NewEventLoop() *EventLoop {
	executor := engine.NewExecutor()
	go executor.Run()
	return &EventLoop{
		executor: executor,
		timers:   NewTimerHeap(),
	}
}

// Submit posts a task to run on the next executor turn.
func (el *EventLoop) Submit(id int32, name string, callback func()) {
	el.executor.Post(func() {
		el.mu.Lock()
		el.taskCount++
		el.mu.Unlock()
		if callback != nil {
			callback()
		}
	})
}

// SetTimeout schedules callback to run after delayMs, posted onto the
// executor when the real-time timer fires.
func (el *EventLoop) SetTimeout(id int32, name string, delayMs int64, callback func()) *TimerTask {
	return el.schedule(id, name, delayMs, 0, callback)
}

// SetInterval schedules callback to run every periodMs, rescheduling itself
// after each fire until canceled.
func (el *EventLoop) SetInterval(id int32, name string, periodMs int64, callback func()) *TimerTask {
	return el.schedule(id, name, periodMs, time.Duration(periodMs)*time.Millisecond, callback)
}

func (el *EventLoop) schedule(id int32, name string, delayMs int64, interval time.Duration, callback func()) *TimerTask {
	timer := &TimerTask{
		ID:       id,
		Name:     name,
		Deadline: time.Now().Add(time.Duration(delayMs) * time.Millisecond),
		Callback: callback,
		Interval: interval,
	}

	el.mu.Lock()
	heap.Push(el.timers, timer)
	el.mu.Unlock()

	el.armTimer(timer, time.Duration(delayMs)*time.Millisecond)
	return timer
}

func (el *EventLoop) armTimer(timer *TimerTask, delay time.Duration) {
	time.AfterFunc(delay, func() {
		el.executor.Post(func() {
			el.mu.Lock()
			if timer.canceled {
				el.mu.Unlock()
				return
			}
			el.timerCount++
			reschedule := timer.Interval > 0
			if reschedule {
				timer.Deadline = time.Now().Add(timer.Interval)
				heap.Fix(el.timers, timer.index)
			} else {
				heap.Remove(el.timers, timer.index)
			}
			el.mu.Unlock()

			if timer.Callback != nil {
				timer.Callback()
			}
			if reschedule && !timer.canceled {
				el.armTimer(timer, timer.Interval)
			}
		})
	})
}

// CancelTimer prevents a previously scheduled timer from firing again.
func (el *EventLoop) CancelTimer(timer *TimerTask) {
	el.mu.Lock()
	defer el.mu.Unlock()
	if !timer.canceled && timer.index >= 0 {
		heap.Remove(el.timers, timer.index)
	}
	timer.canceled = true
}

// Run drains the executor until no more work is queued. Timers still armed
// for the future do not keep Run blocked; use RunFor to wait on those too.
func (el *EventLoop) Run() {
	el.executor.RunUntilIdle()
}

// RunFor runs the event loop (processing ready work) for at most maxDuration.
func (el *EventLoop) RunFor(maxDuration time.Duration) {
	done := make(chan struct{})
	go func() {
		el.executor.RunUntilIdle()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(maxDuration):
	}
}

// Stop stops the underlying executor.
func (el *EventLoop) Stop() {
	el.executor.Stop()
}

// IsRunning returns true if the underlying executor is running.
func (el *EventLoop) IsRunning() bool {
	return el.executor.IsRunning()
}

// Stats returns event loop statistics.
func (el *EventLoop) Stats() (tasks int32, timers int32) {
	el.mu.Lock()
	defer el.mu.Unlock()
	return el.taskCount, el.timerCount
}

// PendingTasks returns the number of tasks currently queued on the executor.
func (el *EventLoop) PendingTasks() int {
	return el.executor.Pending()
}

// PendingTimers returns the number of timers still armed.
func (el *EventLoop) PendingTimers() int {
	el.mu.Lock()
	defer el.mu.Unlock()
	return el.timers.Len()
}

// PrintStats prints event loop statistics.
func (el *EventLoop) PrintStats() {
	tasks, timers := el.Stats()
	fmt.Println("=== Event Loop Statistics ===")
	fmt.Printf("Tasks Processed:  %d\n", tasks)
	fmt.Printf("Timers Fired:     %d\n", timers)
	fmt.Printf("Pending Tasks:    %d\n", el.PendingTasks())
	fmt.Printf("Pending Timers:   %d\n", el.PendingTimers())
}

// =============== Timer Heap (Min-Heap by Deadline) ===============

// TimerHeap is a min-heap of timer tasks ordered by deadline. Firing itself
// no longer polls this heap (see armTimer); it exists to answer
// PendingTimers()/ordering queries.
type TimerHeap []*TimerTask

func NewTimerHeap() *TimerHeap {
	h := &TimerHeap{}
	heap.Init(h)
	return h
}

func (h TimerHeap) Len() int           { return len(h) }
func (h TimerHeap) Less(i, j int) bool { return h[i].Deadline.Before(h[j].Deadline) }
func (h TimerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *TimerHeap) Push(x interface{}) {
	n := len(*h)
	timer := x.(*TimerTask)
	timer.index = n
	*h = append(*h, timer)
}

func (h *TimerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	timer := old[n-1]
	old[n-1] = nil
	timer.index = -1
	*h = old[0 : n-1]
	return timer
}
