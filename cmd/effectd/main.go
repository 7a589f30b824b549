// Command effectd serves a traced HTTP demo on top of the effects packages and
// shuts down gracefully on SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/on-the-ground/effect_ive_tracing/effects"
	"github.com/on-the-ground/effect_ive_tracing/effects/env"
	"github.com/on-the-ground/effect_ive_tracing/effects/graceful"
	"github.com/on-the-ground/effect_ive_tracing/effects/httpbind"
	"github.com/on-the-ground/effect_ive_tracing/effects/log"
	"github.com/on-the-ground/effect_ive_tracing/effects/metrics"
	"github.com/on-the-ground/effect_ive_tracing/effects/tracing"
	"github.com/on-the-ground/effect_ive_tracing/effects/tracing/oteltracer"
	"github.com/on-the-ground/effect_ive_tracing/internal/config"
)

func main() {
	app := &cli.App{
		Name:  "effectd",
		Usage: "serve traced effects over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML config file",
				EnvVars: []string{config.DefaultEnvPrefix + "CONFIG"},
			},
			&cli.StringFlag{
				Name:  "host",
				Usage: "override http.host",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "override http.port",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	var opts []config.Option
	if path := c.String("config"); path != "" {
		opts = append(opts, config.WithConfigFile(path))
	}
	cfg, err := config.NewLoader(opts...).Load()
	if err != nil {
		return err
	}
	if c.IsSet("host") {
		cfg.HTTP.Host = c.String("host")
	}
	if c.IsSet("port") {
		cfg.HTTP.Port = c.Int("port")
	}

	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		return err
	}
	ctx, endOfLog := log.WithZapEffectHandler(
		c.Context,
		effects.NewEffectScopeConfig(cfg.Log.BufferSize, cfg.Log.NumWorkers),
		logger,
	)
	defer endOfLog()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		return err
	}

	registry := graceful.New()
	factory, err := tracerFactory(ctx, cfg.Tracing, registry)
	if err != nil {
		return err
	}

	module := env.Merge(
		tracing.ModuleEnv(tracing.DefaultModule),
		factory.Env(),
		registry.Env(),
		httpbind.New().Env(),
		m.Env(),
	)

	serve := effects.Then(httpbind.Route(http.MethodGet, "/hello", hello),
		effects.Then(httpbind.Route(http.MethodGet, "/fail", fail),
			effects.Then(httpbind.Mount(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
				httpbind.Bind(cfg.HTTP.Port, cfg.HTTP.Host))))

	handle, err := env.Provide(module, tracing.WithTracer(serve))(ctx)
	if err != nil {
		return err
	}
	logger.Info("effectd started", zap.String("addr", handle.Addr()))

	waitCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		<-handle.Done()
		stop()
	}()
	if sig := graceful.WaitForSignal(waitCtx); sig != nil {
		logger.Info("shutting down", zap.Stringer("signal", sig))
	}

	_, err = env.Provide(module, graceful.TriggerWithin(cfg.Graceful.Timeout))(context.WithoutCancel(ctx))
	return multierr.Append(handle.Err(), err)
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}

// tracerFactory builds the OpenTelemetry factory and registers the provider's
// flush with registry. Disabled tracing yields spans that record nothing.
func tracerFactory(ctx context.Context, cfg config.TracingSection, registry *graceful.Registry) (tracing.TracerFactory, error) {
	if !cfg.Enabled || cfg.Exporter == config.ExporterNone {
		return tracing.DummyTracerFactory, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr))
	if err != nil {
		return tracing.TracerFactory{}, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))

	flush := func(ctx context.Context) {
		if err := tp.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.LogEff(ctx, log.LogError, "tracer provider shutdown failed", map[string]interface{}{
				log.FieldComponent: "tracing",
				"error":            err.Error(),
			})
		}
	}
	if _, err := registry.OnExit(flush)(ctx); err != nil {
		return tracing.TracerFactory{}, err
	}
	return oteltracer.FactoryFromProvider(tp, cfg.ServiceName), nil
}

func hello(r *http.Request) effects.Effect[any] {
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "world"
	}
	return tracing.WithChildSpan[any]("greet")(effects.Lift(func() any {
		return map[string]string{"message": "hello " + name}
	}))
}

func fail(*http.Request) effects.Effect[any] {
	return tracing.WithChildSpan[any]("fail")(effects.Fail[any](errors.New("boom")))
}
