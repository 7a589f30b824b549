package handlers

import (
	"context"
	"sync"

	effectmodel "github.com/on-the-ground/effect_ive_tracing/effects/internal/model"
)

// WorkerDispatcher routes a message to the channel of the worker owning it.
type WorkerDispatcher[T any] interface {
	GetChannelOf(msg T) chan T
}

// startWorker runs handleFn for every message received on ch until ctx is done.
// ch is never closed; senders stop on ctx instead.
func startWorker[T any](
	ctx context.Context,
	ch chan T,
	handleFn func(context.Context, T),
	ready *sync.WaitGroup,
) {
	go func() {
		ready.Done()
		for {
			select {
			case msg := <-ch:
				handleFn(ctx, msg)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// --- single queue ---

type singleQueue[T any] struct {
	effectCh chan T
}

func (q singleQueue[T]) GetChannelOf(_ T) chan T {
	return q.effectCh
}

// NewSingleQueue starts one worker. Messages are handled in send order.
func NewSingleQueue[T any](
	ctx context.Context,
	bufferSize int,
	handleFn func(context.Context, T),
) WorkerDispatcher[T] {
	var ready sync.WaitGroup
	ready.Add(1)
	effCh := make(chan T, bufferSize)
	startWorker(ctx, effCh, handleFn, &ready)
	ready.Wait()
	return singleQueue[T]{effectCh: effCh}
}

// --- partitioned queue ---

type partitionedQueue[T effectmodel.Partitionable] struct {
	effectChs []chan T
}

func (pq partitionedQueue[T]) GetChannelOf(msg T) chan T {
	return pq.effectChs[getIndexByHash(msg, len(pq.effectChs))]
}

// NewPartitionedQueue starts numWorkers workers. Ordering holds per partition key only.
func NewPartitionedQueue[T effectmodel.Partitionable](
	ctx context.Context,
	numWorkers, bufferSize int,
	handleFn func(context.Context, T),
) WorkerDispatcher[T] {
	var ready sync.WaitGroup
	channels := make([]chan T, numWorkers)
	for i := range channels {
		ready.Add(1)
		channels[i] = make(chan T, bufferSize)
		startWorker(ctx, channels[i], handleFn, &ready)
	}
	ready.Wait()
	return partitionedQueue[T]{effectChs: channels}
}
