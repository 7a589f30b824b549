package effects_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/on-the-ground/effect_ive_tracing/effects"
)

type finishEvent struct {
	operation string
}

func (e finishEvent) PartitionKey() string {
	return e.operation
}

const effectFinish = "effect_ive_tracing_test_finish"

func TestWithFireAndForgetEffectHandler_LogsLifecycle(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	received := make(chan finishEvent, 1)

	ctx, end := effects.WithFireAndForgetEffectHandler(
		context.Background(),
		effects.NewEffectScopeConfig(1, 1),
		zap.New(core),
		effectFinish,
		func(_ context.Context, e finishEvent) { received <- e },
	)

	assert.True(t, effects.TryFireAndForgetEffect(ctx, effectFinish, finishEvent{operation: "GET /"}))
	select {
	case e := <-received:
		assert.Equal(t, "GET /", e.operation)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for handler")
	}
	end()

	entries := logs.FilterLevelExact(zapcore.DebugLevel).AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, "created fire/forget effect handler", entries[0].Message)
	assert.Equal(t, "closing fire/forget effect handler", entries[1].Message)
	assert.Equal(t, string(effectFinish), entries[0].ContextMap()["enum"])
}

func TestWithFireAndForgetEffectHandler_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		_, end := effects.WithFireAndForgetEffectHandler(
			context.Background(),
			effects.NewEffectScopeConfig(1, 1),
			nil,
			effectFinish,
			func(context.Context, finishEvent) {},
		)
		end()
	})
}

func TestTryFireAndForgetEffect_WithoutHandler(t *testing.T) {
	assert.False(t, effects.TryFireAndForgetEffect(context.Background(), effectFinish, finishEvent{}))
}
