package runtime

import "fmt"

// Mutex and CondVar have no equivalent in the original interpreter: they
// expose engine.Mutex/engine.CondVar directly to bytecode, as a lower-level
// primitive than the implicit per-object Monitor backing synchronized
// blocks. Instances are identified by the receiver object popped off the
// stack, the same keying jvm.GetOrCreateMonitor already uses.

func init() {
	Natives.Register("Mutex", "lock", "(Ljava/lang/Object;)V", nativeMutexLock)
	Natives.Register("Mutex", "tryLock", "(Ljava/lang/Object;)Z", nativeMutexTryLock)
	Natives.Register("Mutex", "unlock", "(Ljava/lang/Object;)V", nativeMutexUnlock)
	Natives.Register("Mutex", "isLocked", "(Ljava/lang/Object;)Z", nativeMutexIsLocked)

	Natives.Register("CondVar", "wait", "(Ljava/lang/Object;Ljava/lang/Object;)V", nativeCondVarWait)
	Natives.Register("CondVar", "notifyOne", "(Ljava/lang/Object;)V", nativeCondVarNotifyOne)
	Natives.Register("CondVar", "notifyAll", "(Ljava/lang/Object;)V", nativeCondVarNotifyAll)
}

func nativeMutexLock(frame *Frame) error {
	obj := frame.OperandStack.PopRef()
	thread := frame.Thread
	if thread.Fiber == nil || thread.JVM() == nil {
		return fmt.Errorf("Mutex.lock requires a fiber-bound thread")
	}
	m := thread.JVM().GetOrCreateMutex(obj)
	return m.Lock(thread.Fiber)
}

func nativeMutexTryLock(frame *Frame) error {
	obj := frame.OperandStack.PopRef()
	thread := frame.Thread
	if thread.JVM() == nil {
		return fmt.Errorf("Mutex.tryLock requires a JVM-bound thread")
	}
	m := thread.JVM().GetOrCreateMutex(obj)
	if m.TryLock() {
		frame.OperandStack.PushInt(1)
	} else {
		frame.OperandStack.PushInt(0)
	}
	return nil
}

func nativeMutexUnlock(frame *Frame) error {
	obj := frame.OperandStack.PopRef()
	thread := frame.Thread
	if thread.JVM() == nil {
		return fmt.Errorf("Mutex.unlock requires a JVM-bound thread")
	}
	m := thread.JVM().GetOrCreateMutex(obj)
	return m.Unlock()
}

func nativeMutexIsLocked(frame *Frame) error {
	obj := frame.OperandStack.PopRef()
	thread := frame.Thread
	if thread.JVM() == nil {
		frame.OperandStack.PushInt(0)
		return nil
	}
	m := thread.JVM().GetOrCreateMutex(obj)
	if m.Locked() {
		frame.OperandStack.PushInt(1)
	} else {
		frame.OperandStack.PushInt(0)
	}
	return nil
}

func nativeCondVarWait(frame *Frame) error {
	stack := frame.OperandStack
	mutexObj := stack.PopRef()
	condObj := stack.PopRef()
	thread := frame.Thread
	if thread.Fiber == nil || thread.JVM() == nil {
		return fmt.Errorf("CondVar.wait requires a fiber-bound thread")
	}
	c := thread.JVM().GetOrCreateCondVar(condObj)
	m := thread.JVM().GetOrCreateMutex(mutexObj)
	return c.Wait(thread.Fiber, m)
}

func nativeCondVarNotifyOne(frame *Frame) error {
	condObj := frame.OperandStack.PopRef()
	thread := frame.Thread
	if thread.JVM() == nil {
		return fmt.Errorf("CondVar.notifyOne requires a JVM-bound thread")
	}
	thread.JVM().GetOrCreateCondVar(condObj).NotifyOne()
	return nil
}

func nativeCondVarNotifyAll(frame *Frame) error {
	condObj := frame.OperandStack.PopRef()
	thread := frame.Thread
	if thread.JVM() == nil {
		return fmt.Errorf("CondVar.notifyAll requires a JVM-bound thread")
	}
	thread.JVM().GetOrCreateCondVar(condObj).NotifyAll()
	return nil
}
