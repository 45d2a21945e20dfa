// Package engine implements a cooperative, single-threaded-per-VM fiber
// scheduler: spawn, yield, join and interrupt fibers; a FIFO mutex and
// condition variable; a generic timer-based suspension primitive; a
// single-threaded executor (strand); and a (category, code) error-value
// model shared by every suspension point.
//
// A VM never has more than one fiber actively executing user code at a
// time. Each fiber runs on its own goroutine, but that goroutine only ever
// does work while the VM's executor is blocked inside resume() waiting for
// it — suspension and resumption are a strict channel handoff, not real
// parallel execution. This is how the package gets Go call stacks (so each
// fiber can be ordinary recursive Go code) while still honoring the
// single-threaded-per-VM invariant the rest of this module depends on.
package engine
