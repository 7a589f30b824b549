package effects

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"
)

// Unit is the result of effects that produce no value.
type Unit = struct{}

// Effect is a deferred description of a computation.
//
// The context carries the capabilities the computation reads (see package env),
// the error return is its typed failure channel and A is its result.
// An Effect holds no state of its own: running the same value twice runs the
// computation twice.
type Effect[A any] func(ctx context.Context) (A, error)

// ErrAborted is reported to finalizers when the wrapped computation exits
// through runtime.Goexit instead of returning.
var ErrAborted = errors.New("effect aborted before settling")

// PanicError carries a recovered panic value through the error channel.
type PanicError struct {
	Value any
}

func (pe PanicError) Error() string {
	return fmt.Sprintf("panic: %v", pe.Value)
}

// Run executes e against ctx.
func Run[A any](ctx context.Context, e Effect[A]) (A, error) {
	return e(ctx)
}

// Succeed lifts a pure value.
func Succeed[A any](a A) Effect[A] {
	return func(context.Context) (A, error) {
		return a, nil
	}
}

// Fail builds an effect that always fails with err.
func Fail[A any](err error) Effect[A] {
	return func(context.Context) (A, error) {
		var zero A
		return zero, err
	}
}

// Lift suspends a side-effecting function that cannot fail.
func Lift[A any](f func() A) Effect[A] {
	return func(context.Context) (A, error) {
		return f(), nil
	}
}

// Do suspends a side-effecting function with no result.
func Do(f func()) Effect[Unit] {
	return func(context.Context) (Unit, error) {
		f()
		return Unit{}, nil
	}
}

// FromFunc adapts a plain context-taking function.
func FromFunc[A any](f func(context.Context) (A, error)) Effect[A] {
	return Effect[A](f)
}

// Chain runs e and feeds its result to f. A failure of e short-circuits f.
func Chain[A, B any](e Effect[A], f func(A) Effect[B]) Effect[B] {
	return func(ctx context.Context) (B, error) {
		a, err := e(ctx)
		if err != nil {
			var zero B
			return zero, err
		}
		return f(a)(ctx)
	}
}

// Then runs first, discards its result and runs next.
func Then[A, B any](first Effect[A], next Effect[B]) Effect[B] {
	return Chain(first, func(A) Effect[B] { return next })
}

// Map transforms the result of e.
func Map[A, B any](e Effect[A], f func(A) B) Effect[B] {
	return func(ctx context.Context) (B, error) {
		a, err := e(ctx)
		if err != nil {
			var zero B
			return zero, err
		}
		return f(a), nil
	}
}

// ChainErr hands a failure of e to f, which may recover or fail again.
// Successful results pass through untouched.
func ChainErr[A any](e Effect[A], f func(error) Effect[A]) Effect[A] {
	return func(ctx context.Context) (A, error) {
		a, err := e(ctx)
		if err != nil {
			return f(err)(ctx)
		}
		return a, nil
	}
}

// MapErr rewrites the failure of e.
func MapErr[A any](e Effect[A], f func(error) error) Effect[A] {
	return func(ctx context.Context) (A, error) {
		a, err := e(ctx)
		if err != nil {
			return a, f(err)
		}
		return a, nil
	}
}

// Ensuring runs finalizer exactly once after e settles.
//
// finalizer receives the failure of e (nil on success), a PanicError when e panicked,
// or ErrAborted when e exited through runtime.Goexit. Panics are re-raised after
// the finalizer ran; the result and failure of e are returned unchanged.
func Ensuring[A any](e Effect[A], finalizer func(ctx context.Context, err error)) Effect[A] {
	return func(ctx context.Context) (A, error) {
		settled := false
		defer func() {
			if settled {
				return
			}
			r := recover()
			if r == nil {
				finalizer(ctx, ErrAborted)
				return
			}
			finalizer(ctx, PanicError{Value: r})
			panic(r)
		}()

		a, err := e(ctx)
		settled = true
		finalizer(ctx, err)
		return a, err
	}
}

// All runs effs with at most parallelism of them in flight and waits for every one
// to settle. A parallelism <= 0 or larger than len(effs) schedules all of them at once.
//
// Results keep the input order. Failures, and panics recovered as PanicError,
// are combined with multierr; a single failure is returned as is.
func All[A any](parallelism int, effs ...Effect[A]) Effect[[]A] {
	return func(ctx context.Context) ([]A, error) {
		results := make([]A, len(effs))
		if len(effs) == 0 {
			return results, nil
		}
		if parallelism <= 0 || parallelism > len(effs) {
			parallelism = len(effs)
		}

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			errs error
			sem  = make(chan struct{}, parallelism)
		)
		appendErr := func(err error) {
			mu.Lock()
			errs = multierr.Append(errs, err)
			mu.Unlock()
		}

		for i, e := range effs {
			sem <- struct{}{}
			wg.Add(1)
			go func(i int, e Effect[A]) {
				defer wg.Done()
				defer func() { <-sem }()
				defer func() {
					if r := recover(); r != nil {
						appendErr(PanicError{Value: r})
					}
				}()

				a, err := e(ctx)
				results[i] = a
				if err != nil {
					appendErr(err)
				}
			}(i, e)
		}

		wg.Wait()
		return results, errs
	}
}
