// Package env threads named capabilities through composed effects.
//
// An Env is an immutable record of capabilities keyed by Key. Provide merges a
// record over the ambient one for the dynamic extent of a single effect; the
// outer record is never mutated, so sibling effects keep seeing it.
package env

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/on-the-ground/effect_ive_tracing/effects"
	"github.com/on-the-ground/effect_ive_tracing/shared/helper"
)

// Key names a capability.
type Key string

// ErrMissingCapability is raised when an effect requires a capability the environment lacks.
var ErrMissingCapability = errors.New("missing capability")

// Env is an immutable capability record. The zero value is the empty record.
type Env struct {
	caps map[Key]any
}

// NoEnv is the empty record.
var NoEnv = Env{}

// Of builds a record holding a single capability.
func Of(key Key, value any) Env {
	return Env{caps: map[Key]any{key: value}}
}

// With returns a copy of e with key set to value.
func (e Env) With(key Key, value any) Env {
	caps := make(map[Key]any, len(e.caps)+1)
	maps.Copy(caps, e.caps)
	caps[key] = value
	return Env{caps: caps}
}

// Lookup returns the raw capability stored under key.
func (e Env) Lookup(key Key) (any, bool) {
	v, ok := e.caps[key]
	return v, ok
}

// Has reports whether key is present.
func (e Env) Has(key Key) bool {
	_, ok := e.caps[key]
	return ok
}

// Len is the number of capabilities in e.
func (e Env) Len() int {
	return len(e.caps)
}

// Keys lists the capability keys in sorted order.
func (e Env) Keys() []Key {
	return slices.Sorted(maps.Keys(e.caps))
}

// Merge is the shallow union of envs. When several records provide the same key
// the later one wins, which layers defaults under overrides.
func Merge(envs ...Env) Env {
	size := 0
	for _, e := range envs {
		size += len(e.caps)
	}
	if size == 0 {
		return NoEnv
	}

	caps := make(map[Key]any, size)
	for _, e := range envs {
		maps.Copy(caps, e.caps)
	}
	return Env{caps: caps}
}

// Get returns the capability under key as a T.
// ok is false when the key is absent or holds something other than a T.
func Get[T any](e Env, key Key) (T, bool) {
	return helper.GetTypedValueOf2[T](func() (any, bool) {
		return e.Lookup(key)
	})
}

// MustGet is Get for capabilities guaranteed by construction.
// It panics with ErrMissingCapability when the key is absent.
func MustGet[T any](e Env, key Key) T {
	return helper.MustGetTypedValue[T](func() (any, error) {
		v, ok := e.Lookup(key)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingCapability, key)
		}
		return v, nil
	})
}

type contextKey struct{}

// FromContext returns the record visible in ctx, NoEnv if none was provided.
func FromContext(ctx context.Context) Env {
	e, _ := ctx.Value(contextKey{}).(Env)
	return e
}

func merged(ctx context.Context, value Env) context.Context {
	return context.WithValue(ctx, contextKey{}, Merge(FromContext(ctx), value))
}

// WithEnvironment merges value over the record of ctx.
//
// The returned function hands back the original context, the one to keep using
// once the capabilities go out of scope.
func WithEnvironment(ctx context.Context, value Env) (context.Context, func() context.Context) {
	return merged(ctx, value), func() context.Context {
		return ctx
	}
}

// Provide returns an effect running eff with value merged over the ambient record.
// The override is visible to eff and everything it runs, and to nothing else.
func Provide[A any](value Env, eff effects.Effect[A]) effects.Effect[A] {
	return func(ctx context.Context) (A, error) {
		return eff(merged(ctx, value))
	}
}

// Provider is the curried form of Provide.
func Provider[A any](value Env) func(effects.Effect[A]) effects.Effect[A] {
	return func(eff effects.Effect[A]) effects.Effect[A] {
		return Provide(value, eff)
	}
}

// Access reads the ambient record through a pure function. It never fails.
func Access[A any](f func(Env) A) effects.Effect[A] {
	return func(ctx context.Context) (A, error) {
		return f(FromContext(ctx)), nil
	}
}

// AccessM reads the ambient record and continues with the effect f returns.
func AccessM[A any](f func(Env) effects.Effect[A]) effects.Effect[A] {
	return func(ctx context.Context) (A, error) {
		return f(FromContext(ctx))(ctx)
	}
}
