package log_test

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
	"github.com/on-the-ground/effect_ive_tracing/effects/log"
)

func TestLogEff_WritesThroughZap(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx, endOfLogHandler := log.WithZapEffectHandler(context.Background(), effects.NewEffectScopeConfig(8, 1), zap.New(core))
	defer endOfLogHandler()

	log.LogEff(ctx, log.LogInfo, "span finished", map[string]interface{}{
		"operation": "GET /",
	})
	log.LogEff(ctx, log.LogError, "hook panicked", nil)

	require.Eventually(t, func() bool { return logs.Len() == 2 }, time.Second, 10*time.Millisecond)

	entries := logs.AllUntimed()
	assert.Equal(t, "span finished", entries[0].Message)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "GET /", entries[0].ContextMap()["operation"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
}

func TestLogEff_PartitionedWorkersKeepComponentOrder(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ctx, endOfLogHandler := log.WithZapEffectHandler(context.Background(), effects.NewEffectScopeConfig(8, 4), zap.New(core))
	defer endOfLogHandler()

	for _, msg := range []string{"one", "two", "three"} {
		log.LogEff(ctx, log.LogDebug, msg, map[string]interface{}{log.FieldComponent: "graceful"})
	}

	byComponent := func() *observer.ObservedLogs {
		return logs.FilterField(zap.String(log.FieldComponent, "graceful"))
	}
	require.Eventually(t, func() bool { return byComponent().Len() == 3 }, time.Second, 10*time.Millisecond)

	var got []string
	for _, e := range byComponent().AllUntimed() {
		got = append(got, e.Message)
	}
	assert.Equal(t, []string{"one", "two", "three"}, got)
}

func TestLogEff_WithoutHandlerIsNoop(t *testing.T) {
	assert.NotPanics(t, func() {
		log.LogEff(context.Background(), log.LogWarn, "nobody listens", nil)
	})
}

func TestLogPayload_PartitionKey(t *testing.T) {
	assert.Equal(t, "tracing", log.LogPayload{Fields: map[string]interface{}{log.FieldComponent: "tracing"}}.PartitionKey())
	assert.Equal(t, "", log.LogPayload{}.PartitionKey())
}

func TestLogEff_AfterTeardownIsDropped(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ctx, endOfLogHandler := log.WithZapEffectHandler(context.Background(), effects.NewEffectScopeConfig(1, 1), zap.New(core))
	endOfLogHandler()
	time.Sleep(10 * time.Millisecond)

	assert.NotPanics(t, func() {
		log.LogEff(ctx, log.LogInfo, "after teardown", nil)
		log.LogEff(ctx, log.LogInfo, "after teardown", nil)
	})
	assert.Zero(t, logs.FilterMessage("after teardown").Len())
}
