package engine

// scope is one level of the per-fiber lexical cleanup stack (spec §4.3).
// Handlers run LIFO on scope exit, each with interruption disabled for its
// duration.
type scope struct {
	handlers []func() error
}

func newScope() *scope { return &scope{} }

// PushScope opens a new nested scope on top of the current one.
func (f *Fiber) PushScope() {
	f.scopes = append(f.scopes, newScope())
}

// ScopeCleanupPush registers a handler to run when the current (innermost)
// scope unwinds.
func (f *Fiber) ScopeCleanupPush(h func() error) error {
	if len(f.scopes) == 0 {
		return ErrUnmatchedScopeCleanup
	}
	top := f.scopes[len(f.scopes)-1]
	top.handlers = append(top.handlers, h)
	return nil
}

// ScopeCleanupPop removes and returns the most recently pushed handler from
// the current scope without running it, raising unmatched_scope_cleanup if
// the scope has none (original_source/src/scope_cleanup.cpp). Per that same
// source, the returned handler is handed back under interruption-disabled —
// callers must call RestoreInterruption once they are done with it.
func (f *Fiber) ScopeCleanupPop() (func() error, error) {
	if len(f.scopes) == 0 {
		return nil, ErrUnmatchedScopeCleanup
	}
	top := f.scopes[len(f.scopes)-1]
	if len(top.handlers) == 0 {
		return nil, ErrUnmatchedScopeCleanup
	}
	h := top.handlers[len(top.handlers)-1]
	top.handlers = top.handlers[:len(top.handlers)-1]
	f.DisableInterruption()
	return h, nil
}

// Scope runs body inside a freshly pushed scope and unwinds it (running any
// handlers still registered, LIFO) on the way out, regardless of whether
// body returned an error. A cleanup-handler failure is fatal to the VM and
// takes precedence over body's own result.
func (f *Fiber) Scope(body func() error) error {
	f.PushScope()
	bodyErr := body()
	cleanupErr := f.unwindTopScope()
	if cleanupErr != nil {
		f.vm.notifyCleanupError(f, cleanupErr)
		return cleanupErr
	}
	return bodyErr
}

// unwindTopScope pops the innermost scope and runs its handlers LIFO, each
// under interruption-disabled. It stops and returns the first handler error
// (fatal); any handlers below it are NOT run, matching
// terminate_vm_with_cleanup_error's "no further user code runs" contract.
func (f *Fiber) unwindTopScope() error {
	if len(f.scopes) == 0 {
		return nil
	}
	s := f.scopes[len(f.scopes)-1]
	f.scopes = f.scopes[:len(f.scopes)-1]
	return f.runHandlers(s)
}

func (f *Fiber) runHandlers(s *scope) error {
	for i := len(s.handlers) - 1; i >= 0; i-- {
		h := s.handlers[i]
		f.DisableInterruption()
		err := f.runOneHandler(h)
		f.RestoreInterruption()
		if err != nil {
			return err
		}
	}
	return nil
}

func (f *Fiber) runOneHandler(h func() error) (err error) {
	f.inCleanup = true
	defer func() {
		f.inCleanup = false
		if r := recover(); r != nil {
			err = ErrUnmatchedScopeCleanup
		}
	}()
	return h()
}

// unwindAllScopes unwinds every remaining scope (including the root scope)
// at fiber termination, per Invariant C: a correctly written fiber body
// leaves only the root scope by the time it returns, but the engine always
// unwinds whatever remains.
func (f *Fiber) unwindAllScopes() error {
	for len(f.scopes) > 0 {
		if err := f.unwindTopScope(); err != nil {
			return err
		}
	}
	return nil
}
