package effects_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/on-the-ground/effect_ive_tracing/effects"
)

var errBoom = errors.New("boom")

func TestEffect_IsReRunnable(t *testing.T) {
	var runs atomic.Int32
	e := effects.Lift(func() int32 { return runs.Add(1) })

	first, err := effects.Run(context.Background(), e)
	require.NoError(t, err)
	second, err := effects.Run(context.Background(), e)
	require.NoError(t, err)

	assert.Equal(t, int32(1), first)
	assert.Equal(t, int32(2), second)
}

func TestChain_ShortCircuitsOnFailure(t *testing.T) {
	called := false
	e := effects.Chain(effects.Fail[int](errBoom), func(int) effects.Effect[string] {
		called = true
		return effects.Succeed("unreachable")
	})

	_, err := e(context.Background())
	assert.ErrorIs(t, err, errBoom)
	assert.False(t, called)
}

func TestChainAndMap(t *testing.T) {
	e := effects.Map(
		effects.Chain(effects.Succeed(2), func(n int) effects.Effect[int] {
			return effects.Succeed(n * 21)
		}),
		func(n int) string { return "answer " + strconv.Itoa(n) },
	)

	got, err := e(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "answer 42", got)
}

func TestChainErr_RecoversAndMapErr_Rewrites(t *testing.T) {
	recovered := effects.ChainErr(effects.Fail[int](errBoom), func(err error) effects.Effect[int] {
		assert.ErrorIs(t, err, errBoom)
		return effects.Succeed(1)
	})
	got, err := recovered(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	wrapped := effects.MapErr(effects.Fail[int](errBoom), func(err error) error {
		return errors.Join(errors.New("outer"), err)
	})
	_, err = wrapped(context.Background())
	assert.ErrorIs(t, err, errBoom)

	untouched := effects.MapErr(effects.Succeed(5), func(error) error { return errBoom })
	got, err = untouched(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, got)
}

func TestThen_DiscardsFirstResult(t *testing.T) {
	var order []string
	e := effects.Then(
		effects.Do(func() { order = append(order, "first") }),
		effects.Lift(func() string { order = append(order, "second"); return "done" }),
	)

	got, err := e(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "done", got)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestEnsuring_RunsOnceOnEveryExitPath(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var calls int
		var seen error = errBoom
		e := effects.Ensuring(effects.Succeed(1), func(_ context.Context, err error) {
			calls++
			seen = err
		})
		got, err := e(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, got)
		assert.Equal(t, 1, calls)
		assert.NoError(t, seen)
	})

	t.Run("failure", func(t *testing.T) {
		var calls int
		var seen error
		e := effects.Ensuring(effects.Fail[int](errBoom), func(_ context.Context, err error) {
			calls++
			seen = err
		})
		_, err := e(context.Background())
		assert.ErrorIs(t, err, errBoom)
		assert.Equal(t, 1, calls)
		assert.ErrorIs(t, seen, errBoom)
	})

	t.Run("panic", func(t *testing.T) {
		var calls int
		var seen error
		e := effects.Ensuring(
			effects.Lift(func() int { panic("kaboom") }),
			func(_ context.Context, err error) {
				calls++
				seen = err
			},
		)
		assert.PanicsWithValue(t, "kaboom", func() { _, _ = e(context.Background()) })
		assert.Equal(t, 1, calls)

		var pe effects.PanicError
		require.ErrorAs(t, seen, &pe)
		assert.Equal(t, "kaboom", pe.Value)
	})

	t.Run("finalizer sees settled computation", func(t *testing.T) {
		var settled atomic.Bool
		e := effects.Ensuring(
			effects.FromFunc(func(context.Context) (int, error) {
				time.Sleep(10 * time.Millisecond)
				settled.Store(true)
				return 0, nil
			}),
			func(context.Context, error) {
				assert.True(t, settled.Load())
			},
		)
		_, err := e(context.Background())
		require.NoError(t, err)
	})
}

func TestAll_WaitsForEveryEffect(t *testing.T) {
	var (
		mu       sync.Mutex
		finished []int
	)
	mk := func(i int, d time.Duration) effects.Effect[int] {
		return effects.FromFunc(func(context.Context) (int, error) {
			time.Sleep(d)
			mu.Lock()
			finished = append(finished, i)
			mu.Unlock()
			return i * 10, nil
		})
	}

	got, err := effects.All(0, mk(0, 30*time.Millisecond), mk(1, 10*time.Millisecond), mk(2, 20*time.Millisecond))(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{0, 10, 20}, got)

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []int{0, 1, 2}, finished)
}

func TestAll_BoundsParallelism(t *testing.T) {
	var inFlight, peak atomic.Int32
	e := effects.FromFunc(func(context.Context) (effects.Unit, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return effects.Unit{}, nil
	})

	_, err := effects.All(2, e, e, e, e, e)(context.Background())
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestAll_CombinesFailuresAndPanics(t *testing.T) {
	other := errors.New("other")
	_, err := effects.All(0,
		effects.Fail[int](errBoom),
		effects.Succeed(1),
		effects.Fail[int](other),
		effects.Lift(func() int { panic("hook bug") }),
	)(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.ErrorIs(t, err, other)
	assert.Len(t, multierr.Errors(err), 3)
}

func TestAll_SingleFailureKeepsIdentity(t *testing.T) {
	_, err := effects.All(0, effects.Succeed(1), effects.Fail[int](errBoom))(context.Background())
	assert.Equal(t, errBoom, err)
}

func TestAll_Empty(t *testing.T) {
	got, err := effects.All[int](3)(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}
