package log

import (
	"context"

	"go.uber.org/zap"

	"github.com/on-the-ground/effect_ive_tracing/effects"
	effectmodel "github.com/on-the-ground/effect_ive_tracing/effects/internal/model"
)

// LogLevel defines the severity level for log messages.
type LogLevel string

const (
	// LogInfo is used for general informational messages.
	LogInfo LogLevel = "info"

	// LogWarn is used for potentially harmful situations.
	LogWarn LogLevel = "warn"

	// LogError is used for error events that might still allow the application to continue running.
	LogError LogLevel = "error"

	// LogDebug is used for debugging messages with detailed internal information.
	LogDebug LogLevel = "debug"
)

// FieldComponent is the field used to partition log payloads across workers.
const FieldComponent = "component"

// LogPayload is the payload structure for logging effect.
// It contains the log level, message string, and optional structured fields.
type LogPayload struct {
	Level   LogLevel
	Message string
	Fields  map[string]interface{}
}

// PartitionKey keeps the messages of one component on one worker, in order.
func (lp LogPayload) PartitionKey() string {
	if c, ok := lp.Fields[FieldComponent].(string); ok {
		return c
	}
	return ""
}

// WithZapEffectHandler registers a fire-and-forget log effect handler using zap.Logger.
// The returned context includes the handler under the EffectLog enum.
// The teardown function syncs the logger; the context it returns should be used for further operations.
func WithZapEffectHandler(
	ctx context.Context,
	config effects.EffectScopeConfig,
	logger *zap.Logger,
) (context.Context, func() context.Context) {
	return effects.WithFireAndForgetEffectHandler(
		ctx,
		config,
		logger,
		effectmodel.EffectLog,
		func(ctx context.Context, payload LogPayload) {
			fields := make([]zap.Field, 0, len(payload.Fields))
			for k, v := range payload.Fields {
				fields = append(fields, zap.Any(k, v))
			}

			switch payload.Level {
			case LogInfo:
				logger.Info(payload.Message, fields...)
			case LogWarn:
				logger.Warn(payload.Message, fields...)
			case LogError:
				logger.Error(payload.Message, fields...)
			case LogDebug:
				logger.Debug(payload.Message, fields...)
			default:
				logger.Info(payload.Message, fields...)
			}
		},
		func() {
			// stdout/stderr sinks report EINVAL on sync; nothing to do about it here
			_ = logger.Sync()
		},
	)
}

// LogEff performs a fire-and-forget log effect using the EffectLog handler in the context.
// Logging is optional: without a handler in ctx the message is dropped.
func LogEff(ctx context.Context, level LogLevel, msg string, fields map[string]interface{}) {
	effects.TryFireAndForgetEffect(ctx, effectmodel.EffectLog, LogPayload{
		Level:   level,
		Message: msg,
		Fields:  fields,
	})
}
