package handlers

import (
	"context"

	effectmodel "github.com/on-the-ground/effect_ive_tracing/effects/internal/model"
)

// NewFireAndForgetHandler starts the workers of a fire-and-forget handler.
//
// With config.NumWorkers > 1 payloads are partitioned by PartitionKey(),
// otherwise a single worker handles everything in send order.
func NewFireAndForgetHandler[P effectmodel.Partitionable](
	ctx context.Context,
	config effectmodel.EffectScopeConfig,
	handleFn func(context.Context, P),
	teardown func(),
) FireAndForgetHandler[P] {
	config = effectmodel.NewEffectScopeConfig(config.BufferSize, config.NumWorkers)
	ctx, cancelFn := context.WithCancel(ctx)

	var dispatcher WorkerDispatcher[P]
	if config.NumWorkers == 1 {
		dispatcher = NewSingleQueue(ctx, config.BufferSize, handleFn)
	} else {
		dispatcher = NewPartitionedQueue(ctx, config.NumWorkers, config.BufferSize, handleFn)
	}

	return FireAndForgetHandler[P]{
		effectScope: newEffectScope(ctx, dispatcher, func() {
			cancelFn()
			teardown()
		}),
	}
}

type FireAndForgetHandler[P any] struct {
	*effectScope[P]
}

// FireAndForgetEffect enqueues payload without waiting for it to be handled.
// Payloads sent after Close, or by a caller whose ctx is done, are dropped.
func (ffh FireAndForgetHandler[P]) FireAndForgetEffect(ctx context.Context, payload P) {
	if ffh.scopeCtx.Err() != nil || ctx.Err() != nil {
		return
	}
	select {
	case <-ffh.scopeCtx.Done():
	case <-ctx.Done():
	case ffh.dispatcher.GetChannelOf(payload) <- payload:
	}
}
