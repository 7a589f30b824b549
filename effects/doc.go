// Package effects provides a small effect substrate for Go.
//
// An Effect[A] is a deferred computation: it reads the capabilities it needs from
// its context.Context, fails through its error return and produces an A.
// Composition (Chain, Map, ChainErr, Ensuring, All) only builds new descriptions;
// nothing runs until the effect is called with a context.
//
// Capabilities are supplied with package env, which merges a record of named
// capabilities into the context for the dynamic extent of one effect.
// Tracing spans (package tracing) and shutdown hooks (package graceful) are
// built on top of it.
//
// The package also keeps the handler side of the effect pattern: handlers are
// registered via `WithXxxEffectHandler(ctx)` and performed with
// `FireAndForgetEffect`. The log effect is the built-in user of it.
//
// Example:
//
//	greet := effects.Map(
//	    env.Access(func(e env.Env) string { return env.MustGet[string](e, "name") }),
//	    func(name string) string { return "hello " + name },
//	)
//	msg, err := env.Provide(env.Of("name", "gopher"), greet)(ctx)
package effects
