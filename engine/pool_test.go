package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunManyRunsIndependentVMs(t *testing.T) {
	specs := []VMSpec{
		{RootContext: "a", Main: func(f *Fiber, args []interface{}) ([]interface{}, error) {
			return []interface{}{"a-done"}, nil
		}},
		{RootContext: "b", Main: func(f *Fiber, args []interface{}) ([]interface{}, error) {
			return []interface{}{"b-done"}, nil
		}},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	vms, err := RunMany(ctx, specs)
	require.NoError(t, err)
	require.Len(t, vms, 2)
	for _, vm := range vms {
		assert.Equal(t, 0, vm.ExitCode())
	}
}

func TestRunManyPropagatesNonzeroExit(t *testing.T) {
	specs := []VMSpec{
		{RootContext: "bad", Main: func(f *Fiber, args []interface{}) ([]interface{}, error) {
			return nil, EngineError{Category: GenericCategory, Code: 1}
		}},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := RunMany(ctx, specs)
	require.Error(t, err)
	var exitErr *VMExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, "bad", exitErr.RootContext)
}
