package handlers_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/on-the-ground/effect_ive_tracing/effects/internal/handlers"
	effectmodel "github.com/on-the-ground/effect_ive_tracing/effects/internal/model"
)

func TestFireAndForgetHandler_DeliversPayload(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan spanEvent, 1)
	handler := handlers.NewFireAndForgetHandler(
		ctx,
		effectmodel.EffectScopeConfig{BufferSize: 4},
		func(_ context.Context, msg spanEvent) {
			received <- msg
		},
		func() {},
	)
	defer handler.Close()

	handler.FireAndForgetEffect(ctx, spanEvent{seq: 7, component: "http"})

	select {
	case msg := <-received:
		assert.Equal(t, 7, msg.seq)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for handler")
	}
	assert.NotEmpty(t, handler.EffectId)
}

func TestFireAndForgetHandler_PartitionedDelivery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var count atomic.Int32
	handler := handlers.NewFireAndForgetHandler(
		ctx,
		effectmodel.NewEffectScopeConfig(4, 3),
		func(context.Context, spanEvent) {
			count.Add(1)
		},
		func() {},
	)
	defer handler.Close()

	for i := 0; i < 6; i++ {
		handler.FireAndForgetEffect(ctx, spanEvent{seq: i, component: []string{"a", "b", "c"}[i%3]})
	}

	assert.Eventually(t, func() bool { return count.Load() == 6 }, time.Second, 10*time.Millisecond)
}

func TestFireAndForgetHandler_CloseRunsTeardownOnce(t *testing.T) {
	var teardowns atomic.Int32
	handler := handlers.NewFireAndForgetHandler(
		context.Background(),
		effectmodel.EffectScopeConfig{},
		func(context.Context, spanEvent) {},
		func() { teardowns.Add(1) },
	)

	handler.Close()
	handler.Close()
	assert.Equal(t, int32(1), teardowns.Load())

}

func TestFireAndForgetHandler_SendAfterCloseIsDropped(t *testing.T) {
	var called atomic.Bool
	handler := handlers.NewFireAndForgetHandler(
		context.Background(),
		effectmodel.EffectScopeConfig{BufferSize: 1},
		func(context.Context, spanEvent) { called.Store(true) },
		func() {},
	)
	handler.Close()
	time.Sleep(10 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 3; i++ {
			handler.FireAndForgetEffect(context.Background(), spanEvent{seq: i, component: "late"})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("send after close blocked")
	}
	assert.False(t, called.Load())
}

func TestFireAndForgetHandler_ConcurrentSendAndClose(t *testing.T) {
	handler := handlers.NewFireAndForgetHandler(
		context.Background(),
		effectmodel.NewEffectScopeConfig(1, 2),
		func(context.Context, spanEvent) {},
		func() {},
	)

	var senders sync.WaitGroup
	for i := 0; i < 4; i++ {
		senders.Add(1)
		go func(i int) {
			defer senders.Done()
			for j := 0; j < 100; j++ {
				handler.FireAndForgetEffect(context.Background(), spanEvent{seq: j, component: []string{"a", "b"}[i%2]})
			}
		}(i)
	}
	handler.Close()

	finished := make(chan struct{})
	go func() {
		senders.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("senders blocked after close")
	}
}

func TestFireAndForgetHandler_CancelledCallerSkipsSend(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var called atomic.Bool
	handler := handlers.NewFireAndForgetHandler(
		context.Background(),
		effectmodel.EffectScopeConfig{BufferSize: 0},
		func(context.Context, spanEvent) { called.Store(true) },
		func() {},
	)
	defer handler.Close()

	handler.FireAndForgetEffect(ctx, spanEvent{component: "cancelled"})
	time.Sleep(50 * time.Millisecond)
	assert.False(t, called.Load())
}
