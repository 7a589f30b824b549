package handlers

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// effectScope owns the workers of one installed handler.
// Close may be called from any goroutine; only the first call tears down.
// scopeCtx is done once the workers were told to stop.
type effectScope[T any] struct {
	EffectId   string
	scopeCtx   context.Context
	dispatcher WorkerDispatcher[T]
	closeOnce  sync.Once
	closeFn    func()
}

func (es *effectScope[T]) Close() {
	es.closeOnce.Do(es.closeFn)
}

func newEffectScope[T any](
	scopeCtx context.Context,
	dispatcher WorkerDispatcher[T],
	teardown func(),
) *effectScope[T] {
	return &effectScope[T]{
		EffectId:   uuid.New().String(),
		scopeCtx:   scopeCtx,
		dispatcher: dispatcher,
		closeFn:    teardown,
	}
}
