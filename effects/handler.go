package effects

import (
	"context"

	"go.uber.org/zap"

	"github.com/on-the-ground/effect_ive_tracing/effects/internal/handlers"
	"github.com/on-the-ground/effect_ive_tracing/effects/internal/helper"
	effectmodel "github.com/on-the-ground/effect_ive_tracing/effects/internal/model"
	sharedHelper "github.com/on-the-ground/effect_ive_tracing/shared/helper"
)

// EffectScopeConfig sizes the worker pool behind an installed handler.
type EffectScopeConfig = effectmodel.EffectScopeConfig

// Partitionable payloads choose their worker by PartitionKey().
type Partitionable = effectmodel.Partitionable

// ErrNoEffectHandler is returned when no handler for an effect is found in the context.
var ErrNoEffectHandler = effectmodel.ErrNoEffectHandler

// NewEffectScopeConfig normalizes buffer size and worker count to at least 1.
func NewEffectScopeConfig(bufferSize, numWorkers int) EffectScopeConfig {
	return effectmodel.NewEffectScopeConfig(bufferSize, numWorkers)
}

// WithFireAndForgetEffectHandler registers a fire-and-forget effect handler for a given effect enum.
//
// Suitable for one-shot effects like logging or telemetry.
// With config.NumWorkers > 1, payloads sharing a PartitionKey() are handled by the same worker.
//
// The handler lifecycle is logged at debug level on logger; a nil logger logs nothing.
//
// Usage:
//
//	ctx, end := WithFireAndForgetEffectHandler(ctx, config, logger, MyEffectEnum, handleFn)
//	defer end()
func WithFireAndForgetEffectHandler[P Partitionable](
	ctx context.Context,
	config EffectScopeConfig,
	logger *zap.Logger,
	enum effectmodel.EffectEnum,
	handleFn func(context.Context, P),
	teardown ...func(),
) (context.Context, func() context.Context) {
	if logger == nil {
		logger = zap.NewNop()
	}
	td := normalizeTeardown(teardown)
	handler := handlers.NewFireAndForgetHandler(ctx, config, handleFn, td)
	ctxWith := context.WithValue(ctx, enum, handler)
	logger.Debug("created fire/forget effect handler",
		zap.String("effectId", handler.EffectId), zap.String("enum", string(enum)))

	return ctxWith, func() context.Context {
		logger.Debug("closing fire/forget effect handler",
			zap.String("effectId", handler.EffectId), zap.String("enum", string(enum)))
		handler.Close()
		return ctx
	}
}

// FireAndForgetEffect triggers a fire-and-forget effect for the given enum and payload.
//
// Panics if no handler is registered for the given enum.
func FireAndForgetEffect[P Partitionable](
	ctx context.Context,
	enum effectmodel.EffectEnum,
	payload P,
) {
	handler := sharedHelper.MustGetTypedValue[handlers.FireAndForgetHandler[P]](
		func() (any, error) {
			return helper.GetHandler(ctx, enum)
		},
	)
	handler.FireAndForgetEffect(ctx, payload)
}

// TryFireAndForgetEffect is FireAndForgetEffect for optional handlers.
// It reports false, doing nothing, when no handler is registered.
func TryFireAndForgetEffect[P Partitionable](
	ctx context.Context,
	enum effectmodel.EffectEnum,
	payload P,
) bool {
	if !helper.HasHandler(ctx, enum) {
		return false
	}
	FireAndForgetEffect(ctx, enum, payload)
	return true
}

// normalizeTeardown flattens optional teardown functions into a single callable.
//
// Accepts either 0 or 1 teardown functions. Panics if more than one is passed.
func normalizeTeardown(teardown []func()) func() {
	switch len(teardown) {
	case 1:
		return teardown[0]
	case 0:
		return func() {}
	default:
		panic("normalizeTeardown: only one or zero teardown functions allowed")
	}
}
