package engine

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// VMSpec describes one independent VM to run as part of a pool, each with
// its own root context and main fiber body — the multi-"main context"
// concurrency model --main-context-concurrency-hint gestures at in the CLI,
// realized here as one engine.VM (and one executor goroutine) per spec
// rather than sharing a single executor across them, preserving each VM's
// own single-active-fiber guarantee.
type VMSpec struct {
	RootContext string
	Log         *slog.Logger
	Main        FiberFunc
	Args        []interface{}
}

// RunMany starts one VM per spec, runs each on its own executor goroutine,
// and waits until every VM has either drained (main fiber plus any fibers it
// spawned) or stopped waiting because the shared context was cancelled. The
// first failure (a Spawn error, or a main fiber finishing with a nonzero exit
// code, reported as a *VMExitError) cancels that context, so the remaining
// VMs stop waiting and have their pending operations cancelled instead of
// draining. That first error is returned via errgroup so callers get a
// single aggregated error instead of juggling one channel per VM. If
// creating a VM fails, RunMany returns that error at once, without waiting
// for the VMs it already started.
func RunMany(ctx context.Context, specs []VMSpec) ([]*VM, error) {
	vms := make([]*VM, len(specs))
	g, ctx := errgroup.WithContext(ctx)

	for i, spec := range specs {
		i, spec := i, spec
		log := spec.Log
		if log == nil {
			log = slog.Default()
		}
		vm, err := NewVM(spec.RootContext, log)
		if err != nil {
			return nil, err
		}
		vms[i] = vm

		g.Go(func() error {
			go vm.Executor().Run()
			if _, err := vm.Spawn(spec.Main, spec.Args...); err != nil {
				vm.Executor().Stop()
				return err
			}
			select {
			case <-vm.Drained():
			case <-ctx.Done():
				vm.cancelAllPending()
				return ctx.Err()
			}
			vm.Executor().Stop()
			if code := vm.ExitCode(); code != 0 {
				return &VMExitError{RootContext: spec.RootContext, Code: code}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return vms, err
	}
	return vms, nil
}

// VMExitError reports a VM's main fiber finishing with a nonzero exit code.
type VMExitError struct {
	RootContext string
	Code        int
}

func (e *VMExitError) Error() string {
	return fmt.Sprintf("vm %q exited with code %d", e.RootContext, e.Code)
}
