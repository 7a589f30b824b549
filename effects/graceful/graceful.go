// Package graceful collects shutdown hooks and runs them together on exit.
package graceful

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/on-the-ground/effect_ive_tracing/effects"
	"github.com/on-the-ground/effect_ive_tracing/effects/env"
	"github.com/on-the-ground/effect_ive_tracing/effects/log"
	"github.com/on-the-ground/effect_ive_tracing/effects/metrics"
)

// Key is the capability key of *Registry.
const Key env.Key = "graceful"

const component = "graceful"

// ErrShutdownTimeout is returned by TriggerWithin when hooks outlive the deadline.
var ErrShutdownTimeout = errors.New("shutdown hooks did not finish in time")

// Hook is a shutdown action. Hooks report nothing and must not fail; a hook that
// panics is logged and does not stop the others.
type Hook func(ctx context.Context)

// Registry holds the pending hooks in registration order.
type Registry struct {
	mu    sync.Mutex
	hooks []Hook
}

func New() *Registry {
	return &Registry{}
}

// Env installs r under Key.
func (r *Registry) Env() env.Env {
	return env.Of(Key, r)
}

// Len is the number of pending hooks.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.hooks)
}

// OnExit appends hook when the returned effect runs.
func (r *Registry) OnExit(hook Hook) effects.Effect[effects.Unit] {
	return effects.Do(func() {
		r.mu.Lock()
		r.hooks = append(r.hooks, hook)
		r.mu.Unlock()
	})
}

// Trigger runs the hooks pending when it starts, all at once, and completes
// when every one of them returned. Hooks registered meanwhile wait for the next
// Trigger; hooks stay registered, so triggering again runs them again.
func (r *Registry) Trigger() effects.Effect[effects.Unit] {
	return func(ctx context.Context) (effects.Unit, error) {
		r.mu.Lock()
		pending := make([]effects.Effect[effects.Unit], len(r.hooks))
		for i, hook := range r.hooks {
			pending[i] = supervised(i, hook)
		}
		r.mu.Unlock()

		log.LogEff(ctx, log.LogInfo, "running shutdown hooks", map[string]interface{}{
			log.FieldComponent: component,
			"hooks":            len(pending),
		})
		_, err := effects.All(len(pending), pending...)(ctx)
		log.LogEff(ctx, log.LogInfo, "shutdown hooks done", map[string]interface{}{
			log.FieldComponent: component,
		})
		return effects.Unit{}, err
	}
}

// supervised runs hook, recovering its panic into a log line.
func supervised(index int, hook Hook) effects.Effect[effects.Unit] {
	return func(ctx context.Context) (effects.Unit, error) {
		defer func() {
			if r := recover(); r != nil {
				log.LogEff(ctx, log.LogError, "shutdown hook panicked", map[string]interface{}{
					log.FieldComponent: component,
					"hook":             index,
					"panic":            fmt.Sprint(r),
				})
				return
			}
			if m, ok := metrics.FromContext(ctx); ok {
				m.HookRun()
			}
		}()
		hook(ctx)
		return effects.Unit{}, nil
	}
}

// TriggerWithin is Trigger with a deadline. Hooks see a context expiring after
// timeout; when they are still running at that point the effect fails with
// ErrShutdownTimeout without waiting for them.
func (r *Registry) TriggerWithin(timeout time.Duration) effects.Effect[effects.Unit] {
	return func(ctx context.Context) (effects.Unit, error) {
		hookCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			_, err := r.Trigger()(hookCtx)
			done <- err
		}()

		select {
		case err := <-done:
			return effects.Unit{}, err
		case <-hookCtx.Done():
			if err := ctx.Err(); err != nil {
				return effects.Unit{}, err
			}
			log.LogEff(ctx, log.LogWarn, "shutdown timed out", map[string]interface{}{
				log.FieldComponent: component,
				"timeout":          timeout.String(),
			})
			return effects.Unit{}, fmt.Errorf("%w after %s", ErrShutdownTimeout, timeout)
		}
	}
}

func registry(e env.Env) *Registry {
	return env.MustGet[*Registry](e, Key)
}

// OnExit registers hook with the registry in the environment.
func OnExit(hook Hook) effects.Effect[effects.Unit] {
	return env.AccessM(func(e env.Env) effects.Effect[effects.Unit] {
		return registry(e).OnExit(hook)
	})
}

// Trigger runs the hooks of the registry in the environment.
func Trigger() effects.Effect[effects.Unit] {
	return env.AccessM(func(e env.Env) effects.Effect[effects.Unit] {
		return registry(e).Trigger()
	})
}

// TriggerWithin runs the hooks of the registry in the environment under a deadline.
func TriggerWithin(timeout time.Duration) effects.Effect[effects.Unit] {
	return env.AccessM(func(e env.Env) effects.Effect[effects.Unit] {
		return registry(e).TriggerWithin(timeout)
	})
}

// WaitForSignal blocks until one of signals arrives or ctx is done and returns
// the signal, nil for ctx. It listens for SIGINT and SIGTERM when signals is empty.
func WaitForSignal(ctx context.Context, signals ...os.Signal) os.Signal {
	if len(signals) == 0 {
		signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, signals...)
	defer signal.Stop(ch)

	select {
	case sig := <-ch:
		log.LogEff(ctx, log.LogInfo, "received signal", map[string]interface{}{
			log.FieldComponent: component,
			"signal":           sig.String(),
		})
		return sig
	case <-ctx.Done():
		return nil
	}
}
