package runtime

import (
	"fiberengine/engine"
	"fmt"
	"sync"
	"time"
)

var fiberOutputMu sync.Mutex

func init() {
	// Register fiber/green thread natives
	Natives.Register("Fiber", "spawn", "(ILjava/lang/String;)J", nativeFiberSpawn)
	Natives.Register("Fiber", "yield", "()V", nativeFiberYield)
	Natives.Register("Fiber", "sleep", "(J)V", nativeFiberSleep)
	Natives.Register("Fiber", "join", "(J)V", nativeFiberJoin)
	Natives.Register("Fiber", "interrupt", "(J)V", nativeFiberInterrupt)
	Natives.Register("Fiber", "isAlive", "(J)Z", nativeFiberIsAlive)
	Natives.Register("Fiber", "current", "()J", nativeFiberCurrent)
	Natives.Register("Fiber", "count", "()I", nativeFiberCount)
	Natives.Register("Fiber", "printStats", "()V", nativeFiberPrintStats)

	// Also register with GreenThreads class name (Java file uses plural)
	Natives.Register("GreenThreads", "spawn", "(ILjava/lang/String;)J", nativeFiberSpawn)
	Natives.Register("GreenThreads", "yield", "()V", nativeFiberYield)
	Natives.Register("GreenThreads", "sleep", "(J)V", nativeFiberSleep)
	Natives.Register("GreenThreads", "join", "(J)V", nativeFiberJoin)
	Natives.Register("GreenThreads", "interrupt", "(J)V", nativeFiberInterrupt)
	Natives.Register("GreenThreads", "isAlive", "(J)Z", nativeFiberIsAlive)
	Natives.Register("GreenThreads", "current", "()J", nativeFiberCurrent)
	Natives.Register("GreenThreads", "count", "()I", nativeFiberCount)
	Natives.Register("GreenThreads", "printStats", "()V", nativeFiberPrintStats)

	// Parallel execution helpers
	Natives.Register("Parallel", "run", "(I)V", nativeParallelRun)
	Natives.Register("Parallel", "forEach", "(II)V", nativeParallelForEach)
}

// nativeFiberSpawn spawns a new engine fiber on the calling thread's VM.
// Java signature: static native long spawn(int taskId, String name)
//
// The spawned fiber's body is a simulated workload (no bytecode re-entry,
// since this interpreter's call loop isn't itself suspension-aware) but it
// runs as a genuine cooperative fiber: every
// iteration suspends via engine.Yield, so other fibers on the same VM get
// a turn between iterations instead of this fiber hogging a real OS
// thread, exactly as spec's single-active-fiber invariant requires.
func nativeFiberSpawn(frame *Frame) error {
	stack := frame.OperandStack
	nameRef := stack.PopRef()
	taskID := stack.PopInt()

	name := "fiber"
	if s, ok := nameRef.(string); ok {
		name = s
	}

	thread := frame.Thread
	jvm := thread.JVM()
	if jvm == nil {
		return fmt.Errorf("Fiber.spawn requires a JVM-bound thread")
	}

	child, err := jvm.SpawnThread(func(childThread *Thread) ([]interface{}, error) {
		runSimulatedFiberWork(childThread.Fiber, name, taskID)
		return []interface{}{taskID * 10}, nil
	})
	if err != nil {
		return err
	}

	stack.PushLong(int64(child.ID()))
	return nil
}

func runSimulatedFiberWork(f *engine.Fiber, name string, taskID int32) {
	iterations := int(taskID) * 3
	for i := 0; i < iterations; i++ {
		if err := engine.SleepFor(f, 10*time.Millisecond); err != nil {
			return
		}

		fiberOutputMu.Lock()
		fmt.Printf("[%s] iteration %d/%d\n", name, i+1, iterations)
		fiberOutputMu.Unlock()

		if err := engine.Yield(f); err != nil {
			return
		}
	}
}

// nativeFiberYield yields the calling fiber to others on the same VM.
func nativeFiberYield(frame *Frame) error {
	f := frame.Thread.Fiber
	if f == nil {
		return nil // detached thread: nothing to yield to
	}
	return engine.Yield(f)
}

// nativeFiberSleep suspends the calling fiber for the given duration.
func nativeFiberSleep(frame *Frame) error {
	millis := frame.OperandStack.PopLong()
	f := frame.Thread.Fiber
	if f == nil {
		time.Sleep(time.Duration(millis) * time.Millisecond)
		return nil
	}
	return engine.SleepFor(f, time.Duration(millis)*time.Millisecond)
}

// nativeFiberJoin waits for another fiber (by ID) on the same VM to finish.
func nativeFiberJoin(frame *Frame) error {
	fiberID := frame.OperandStack.PopLong()
	thread := frame.Thread
	if thread.Fiber == nil {
		return fmt.Errorf("Fiber.join requires a fiber-bound thread")
	}
	target, ok := thread.Fiber.VM().Fiber(engine.FiberID(fiberID))
	if !ok {
		return nil
	}
	_, err := engine.Join(thread.Fiber, target)
	return err
}

// nativeFiberInterrupt delivers an interrupt to another fiber.
func nativeFiberInterrupt(frame *Frame) error {
	fiberID := frame.OperandStack.PopLong()
	thread := frame.Thread
	if thread.Fiber == nil {
		return fmt.Errorf("Fiber.interrupt requires a fiber-bound thread")
	}
	target, ok := thread.Fiber.VM().Fiber(engine.FiberID(fiberID))
	if !ok {
		return nil
	}
	thread.Fiber.VM().Interrupt(target)
	return nil
}

// nativeFiberIsAlive checks if a fiber is still running
func nativeFiberIsAlive(frame *Frame) error {
	fiberID := frame.OperandStack.PopLong()
	thread := frame.Thread
	if thread.Fiber == nil {
		frame.OperandStack.PushInt(0)
		return nil
	}
	target, ok := thread.Fiber.VM().Fiber(engine.FiberID(fiberID))
	if !ok {
		frame.OperandStack.PushInt(0)
		return nil
	}
	alive := target.Status() != engine.FiberFinishedOK && target.Status() != engine.FiberFinishedErr
	if alive {
		frame.OperandStack.PushInt(1)
	} else {
		frame.OperandStack.PushInt(0)
	}
	return nil
}

// nativeFiberCurrent returns the current fiber ID (or 0 for a detached thread).
func nativeFiberCurrent(frame *Frame) error {
	if frame.Thread.Fiber == nil {
		frame.OperandStack.PushLong(0)
		return nil
	}
	frame.OperandStack.PushLong(int64(frame.Thread.Fiber.ID()))
	return nil
}

// nativeFiberCount returns the number of fibers ever spawned on this VM.
func nativeFiberCount(frame *Frame) error {
	if frame.Thread.Fiber == nil {
		frame.OperandStack.PushInt(0)
		return nil
	}
	frame.OperandStack.PushInt(int32(frame.Thread.Fiber.VM().FiberCount()))
	return nil
}

// nativeFiberPrintStats prints fiber statistics for the current VM.
func nativeFiberPrintStats(frame *Frame) error {
	if frame.Thread.Fiber == nil {
		fmt.Println("=== Fiber Statistics ===")
		fmt.Println("(no VM bound to this thread)")
		return nil
	}
	vm := frame.Thread.Fiber.VM()
	fmt.Println("=== Fiber Statistics ===")
	fmt.Printf("Total Spawned: %d\n", vm.FiberCount())
	return nil
}

// nativeParallelRun runs N simulated tasks as engine fibers and waits for
// all of them to finish.
//
// The parent fiber's native call runs on the VM's single executor goroutine
// (it's what's driving the parent's own resume), so it must never block that
// goroutine waiting for the children — they can only ever run once it frees
// up. Each child is spawned as its own fiber (spawning just posts a deferred
// executor task, it doesn't run anything yet) and then joined one at a time
// via engine.Join, which suspends the parent instead of blocking its goroutine.
func nativeParallelRun(frame *Frame) error {
	numTasks := frame.OperandStack.PopInt()
	thread := frame.Thread
	if thread.Fiber == nil {
		return fmt.Errorf("Parallel.run requires a fiber-bound thread")
	}
	jvm := thread.JVM()

	children := make([]*engine.Fiber, 0, numTasks)
	for i := int32(0); i < numTasks; i++ {
		i := i
		child, err := jvm.SpawnThread(func(childThread *Thread) ([]interface{}, error) {
			runSimulatedFiberWork(childThread.Fiber, fmt.Sprintf("parallel-%d", i), i+1)
			return nil, nil
		})
		if err != nil {
			return err
		}
		children = append(children, child)
	}

	var firstErr error
	for _, child := range children {
		if _, err := engine.Join(thread.Fiber, child); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// nativeParallelForEach runs a parallel for-each over a range as engine
// fibers, joining each child in turn rather than blocking on a WaitGroup —
// see nativeParallelRun's comment on why the executor goroutine can never
// block waiting for fibers it alone is responsible for running.
func nativeParallelForEach(frame *Frame) error {
	end := frame.OperandStack.PopInt()
	start := frame.OperandStack.PopInt()
	thread := frame.Thread
	if thread.Fiber == nil {
		return fmt.Errorf("Parallel.forEach requires a fiber-bound thread")
	}
	jvm := thread.JVM()

	children := make([]*engine.Fiber, 0, end-start)
	for i := start; i < end; i++ {
		i := i
		child, err := jvm.SpawnThread(func(childThread *Thread) ([]interface{}, error) {
			fiberOutputMu.Lock()
			fmt.Printf("[parallel] processing index %d\n", i)
			fiberOutputMu.Unlock()
			engine.SleepFor(childThread.Fiber, 20*time.Millisecond)
			return nil, nil
		})
		if err != nil {
			return err
		}
		children = append(children, child)
	}

	var firstErr error
	for _, child := range children {
		if _, err := engine.Join(thread.Fiber, child); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
