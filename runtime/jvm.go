package runtime

import (
	"fiberengine/classfile"
	"fiberengine/engine"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// JVM represents the Java Virtual Machine instance. It now owns a single
// engine.VM: a Thread created with SpawnThread runs inside a fiber spawned
// on that VM (one created with CreateThread is bound to no fiber), and for
// fiber-bound threads "synchronized" blocks are reentrant locks built on top
// of engine.Mutex/engine.CondVar rather than blocking real OS threads the
// way the original runtime/jvm.go's Monitor did.
type JVM struct {
	vm *engine.VM

	// Thread management
	mainThread    *Thread
	threads       []*Thread
	threadCounter int64
	threadMutex   sync.RWMutex

	// Class loading
	classCache map[string]*classfile.ClassFile
	classMutex sync.RWMutex

	// Monitor management for synchronized blocks
	monitors     map[any]*Monitor
	monitorMutex sync.Mutex

	// Mutex/CondVar management for the Mutex/CondVar native classes, keyed
	// by the Java-side object identity they were created for.
	mutexes   map[any]*engine.Mutex
	condvars  map[any]*engine.CondVar
	primMutex sync.Mutex

	// Heap for object allocation (Phase 7)
	heap *Heap

	// Global state
	running atomic.Bool
}

// NewJVM creates a new JVM instance with its own fiber engine VM and starts
// that VM's executor loop on a background goroutine.
func NewJVM() *JVM {
	vm, err := engine.NewVM("main", slog.Default())
	if err != nil {
		// rootContext is always non-empty here, so this cannot happen.
		panic(err)
	}
	jvm := &JVM{
		vm:         vm,
		classCache: make(map[string]*classfile.ClassFile),
		monitors:   make(map[any]*Monitor),
		mutexes:    make(map[any]*engine.Mutex),
		condvars:   make(map[any]*engine.CondVar),
		heap:       NewHeap(),
	}
	jvm.running.Store(true)
	go vm.Executor().Run()
	BindEventLoopVM(vm)
	return jvm
}

// VM returns the engine VM backing this JVM instance.
func (jvm *JVM) VM() *engine.VM { return jvm.vm }

// CreateThread creates a thread not bound to any fiber. Used for direct,
// non-concurrent interpretation (NewInterpreterWithJVM, as used by the
// integration and unit tests) where no suspension-capable native is ever
// exercised.
func (jvm *JVM) CreateThread() *Thread {
	jvm.threadMutex.Lock()
	defer jvm.threadMutex.Unlock()

	id := atomic.AddInt64(&jvm.threadCounter, 1)
	thread := &Thread{
		id:      id,
		stack:   make([]*Frame, 0, 32),
		Classes: jvm.classCache,
		jvm:     jvm,
	}

	jvm.threads = append(jvm.threads, thread)
	if jvm.mainThread == nil {
		jvm.mainThread = thread
	}

	return thread
}

// SpawnThread spawns a new fiber on the JVM's VM and binds a fresh Thread
// to it before running body. This is the real entry point for
// engine-integrated execution: Fiber/Mutex/CondVar/Sleep natives invoked
// from inside body can suspend and resume correctly because thread.Fiber
// is set.
func (jvm *JVM) SpawnThread(body func(t *Thread) ([]interface{}, error)) (*engine.Fiber, error) {
	return jvm.vm.Spawn(func(f *engine.Fiber, args []interface{}) ([]interface{}, error) {
		jvm.threadMutex.Lock()
		id := atomic.AddInt64(&jvm.threadCounter, 1)
		thread := &Thread{
			id:      id,
			stack:   make([]*Frame, 0, 32),
			Classes: jvm.classCache,
			jvm:     jvm,
			Fiber:   f,
		}
		jvm.threads = append(jvm.threads, thread)
		if jvm.mainThread == nil {
			jvm.mainThread = thread
		}
		jvm.threadMutex.Unlock()
		return body(thread)
	})
}

// GetMainThread returns the main thread
func (jvm *JVM) GetMainThread() *Thread {
	return jvm.mainThread
}

// LoadClass loads and caches a class
func (jvm *JVM) LoadClass(name string, cf *classfile.ClassFile) {
	jvm.classMutex.Lock()
	defer jvm.classMutex.Unlock()
	jvm.classCache[name] = cf
}

// GetClass retrieves a loaded class
func (jvm *JVM) GetClass(name string) *classfile.ClassFile {
	jvm.classMutex.RLock()
	defer jvm.classMutex.RUnlock()
	return jvm.classCache[name]
}

// Monitor is a reentrant Java-style monitor for synchronized blocks, built
// on an engine.Mutex + engine.CondVar pair so that contention suspends
// fibers cooperatively instead of blocking goroutines/OS threads. Threads
// not bound to a fiber (see CreateThread) use a separate fallback that only
// tracks the owner and reentrancy depth under a plain mutex: Enter by a
// second detached thread while the monitor is owned neither blocks nor
// acquires it.
type Monitor struct {
	vm    *engine.VM
	mutex *engine.Mutex
	cond  *engine.CondVar

	ownerFiber engine.FiberID
	entryCount int

	// Fallback path for detached (non-fiber) threads.
	detachedMu    sync.Mutex
	detachedOwner *Thread
	detachedCount int
}

// GetOrCreateMonitor gets or creates a monitor for an object
func (jvm *JVM) GetOrCreateMonitor(obj any) *Monitor {
	jvm.monitorMutex.Lock()
	defer jvm.monitorMutex.Unlock()

	if monitor, exists := jvm.monitors[obj]; exists {
		return monitor
	}

	monitor := &Monitor{
		vm:    jvm.vm,
		mutex: engine.NewMutex(jvm.vm),
		cond:  engine.NewCondVar(jvm.vm),
	}
	jvm.monitors[obj] = monitor
	return monitor
}

// Enter acquires the monitor, reentrantly for the same owner.
func (m *Monitor) Enter(thread *Thread) {
	if thread.Fiber == nil {
		m.detachedMu.Lock()
		if m.detachedOwner == nil || m.detachedOwner == thread {
			m.detachedOwner = thread
			m.detachedCount++
		}
		m.detachedMu.Unlock()
		return
	}

	if m.ownerFiber == thread.Fiber.ID() && m.entryCount > 0 {
		m.entryCount++
		return
	}
	_ = m.mutex.Lock(thread.Fiber)
	m.ownerFiber = thread.Fiber.ID()
	m.entryCount++
}

// Exit releases the monitor.
func (m *Monitor) Exit(thread *Thread) error {
	if thread.Fiber == nil {
		m.detachedMu.Lock()
		defer m.detachedMu.Unlock()
		if m.detachedOwner != thread {
			return fmt.Errorf("IllegalMonitorStateException: not owner of monitor")
		}
		m.detachedCount--
		if m.detachedCount == 0 {
			m.detachedOwner = nil
		}
		return nil
	}

	if m.ownerFiber != thread.Fiber.ID() {
		return fmt.Errorf("IllegalMonitorStateException: not owner of monitor")
	}
	m.entryCount--
	if m.entryCount == 0 {
		m.ownerFiber = 0
		return m.mutex.Unlock()
	}
	return nil
}

// Wait releases the monitor and suspends the calling fiber until notified,
// then reacquires it with its original reentrancy depth restored.
func (m *Monitor) Wait(thread *Thread) error {
	if thread.Fiber == nil {
		return fmt.Errorf("IllegalMonitorStateException: wait() requires a fiber-bound thread")
	}
	if m.ownerFiber != thread.Fiber.ID() {
		return fmt.Errorf("IllegalMonitorStateException: not owner of monitor")
	}

	saved := m.entryCount
	m.entryCount = 0
	m.ownerFiber = 0

	err := m.cond.Wait(thread.Fiber, m.mutex)

	m.ownerFiber = thread.Fiber.ID()
	m.entryCount = saved
	return err
}

// Notify wakes up one waiting fiber.
func (m *Monitor) Notify(thread *Thread) error {
	if thread.Fiber != nil && m.ownerFiber != thread.Fiber.ID() {
		return fmt.Errorf("IllegalMonitorStateException: not owner of monitor")
	}
	m.cond.NotifyOne()
	return nil
}

// NotifyAll wakes up all waiting fibers.
func (m *Monitor) NotifyAll(thread *Thread) error {
	if thread.Fiber != nil && m.ownerFiber != thread.Fiber.ID() {
		return fmt.Errorf("IllegalMonitorStateException: not owner of monitor")
	}
	m.cond.NotifyAll()
	return nil
}

// GetOrCreateMutex gets or creates the engine.Mutex bound to obj.
func (jvm *JVM) GetOrCreateMutex(obj any) *engine.Mutex {
	jvm.primMutex.Lock()
	defer jvm.primMutex.Unlock()
	if m, ok := jvm.mutexes[obj]; ok {
		return m
	}
	m := engine.NewMutex(jvm.vm)
	jvm.mutexes[obj] = m
	return m
}

// GetOrCreateCondVar gets or creates the engine.CondVar bound to obj.
func (jvm *JVM) GetOrCreateCondVar(obj any) *engine.CondVar {
	jvm.primMutex.Lock()
	defer jvm.primMutex.Unlock()
	if c, ok := jvm.condvars[obj]; ok {
		return c
	}
	c := engine.NewCondVar(jvm.vm)
	jvm.condvars[obj] = c
	return c
}

// IsRunning returns true if the JVM is still running
func (jvm *JVM) IsRunning() bool {
	return jvm.running.Load()
}

// Shutdown stops the JVM and its fiber engine VM.
func (jvm *JVM) Shutdown() {
	jvm.running.Store(false)
	jvm.vm.Close()
}

// GetHeap returns the JVM heap
func (jvm *JVM) GetHeap() *Heap {
	return jvm.heap
}
