package engine

import (
	"log/slog"
	"testing"
	"time"

	"pgregory.net/rapid"
)

// TestInvariantSingleActiveFiber is a property test for spec §8's I1
// ("at most one fiber of a given VM is ever actively running"): for any
// sequence of spawned fibers that each touch a shared counter while
// running, the counter must never observe two fibers mid-increment at
// once. We approximate "mid-increment" by a non-atomic read-sleep-write,
// which would flap under real concurrency but cannot under the engine's
// strict handoff.
func TestInvariantSingleActiveFiber(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 12).Draw(rt, "n")

		vm, err := NewVM("prop", slog.Default())
		if err != nil {
			rt.Fatal(err)
		}
		go vm.executor.Run()
		defer vm.executor.Stop()

		counter := 0
		violated := false

		for i := 0; i < n; i++ {
			_, err := vm.Spawn(func(f *Fiber, args []interface{}) ([]interface{}, error) {
				before := counter
				time.Sleep(time.Microsecond)
				counter = before + 1
				if counter != before+1 {
					violated = true
				}
				return nil, nil
			})
			if err != nil {
				rt.Fatal(err)
			}
		}

		select {
		case <-vm.Drained():
		case <-time.After(2 * time.Second):
			rt.Fatal("vm never drained")
		}

		if violated {
			rt.Fatal("observed two fibers active at once")
		}
		if counter != n {
			rt.Fatalf("expected counter %d, got %d", n, counter)
		}
	})
}

// TestInvariantErrorEqualityIsReflexiveSymmetricTransitive covers spec §8's
// error-value equality invariant (I-ish from SPEC_FULL.md §12.6) across
// randomly drawn category/code pairs.
func TestInvariantErrorEqualityIsReflexiveSymmetricTransitive(t *testing.T) {
	categories := []*ErrorCategory{EngineCategory, GenericCategory, AsioCategory, JSONCategory, RegexCategory}

	rapid.Check(t, func(rt *rapid.T) {
		ci := rapid.IntRange(0, len(categories)-1).Draw(rt, "ci")
		cj := rapid.IntRange(0, len(categories)-1).Draw(rt, "cj")
		ck := rapid.IntRange(0, len(categories)-1).Draw(rt, "ck")
		code := rapid.IntRange(0, 20).Draw(rt, "code")

		a := EngineError{Category: categories[ci], Code: code}
		b := EngineError{Category: categories[cj], Code: code}
		c := EngineError{Category: categories[ck], Code: code}

		if !a.Equal(a) {
			rt.Fatal("equality not reflexive")
		}
		if a.Equal(b) != b.Equal(a) {
			rt.Fatal("equality not symmetric")
		}
		if a.Equal(b) && b.Equal(c) && !a.Equal(c) {
			rt.Fatal("equality not transitive")
		}
		if a.Equal(b) && a.Error() != b.Error() {
			rt.Fatal("equal errors must render identically")
		}
	})
}

// TestInvariantInterruptionDisabledNeverNegative exercises spec §8's
// counter-never-negative invariant over random disable/restore sequences.
func TestInvariantInterruptionDisabledNeverNegative(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ops := rapid.SliceOfN(rapid.Bool(), 1, 30).Draw(rt, "ops")

		vm, err := NewVM("prop", slog.Default())
		if err != nil {
			rt.Fatal(err)
		}
		go vm.executor.Run()
		defer vm.executor.Stop()

		errs := make(chan error, 1)
		_, err = vm.Spawn(func(f *Fiber, args []interface{}) ([]interface{}, error) {
			var lastErr error
			for _, disable := range ops {
				if disable {
					f.DisableInterruption()
				} else {
					lastErr = f.RestoreInterruption()
				}
				if f.interruptionDisabled < 0 {
					rt.Fatal("interruption_disabled went negative")
				}
			}
			errs <- lastErr
			return nil, nil
		})
		if err != nil {
			rt.Fatal(err)
		}
		<-errs
	})
}
