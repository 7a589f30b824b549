// Package httpbind serves effects over HTTP.
//
// Handlers are effects producing a JSON-encodable result. A Server captures
// the environment its routes are registered in and provides it to every
// request; when that environment carries a tracer, each request runs under a
// controller span continuing the caller's trace. With a graceful registry in
// scope, Bind registers the server's shutdown as an exit hook.
package httpbind

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/on-the-ground/effect_ive_tracing/effects"
	"github.com/on-the-ground/effect_ive_tracing/effects/env"
	"github.com/on-the-ground/effect_ive_tracing/effects/graceful"
	"github.com/on-the-ground/effect_ive_tracing/effects/log"
	"github.com/on-the-ground/effect_ive_tracing/effects/tracing"
)

// Key is the capability key of *Server.
const Key env.Key = "http"

// Component names the controller spans and log lines of this package.
const Component = "http"

const readHeaderTimeout = 10 * time.Second

// Error is a handler failure answered with Status and Body as JSON.
type Error struct {
	Status int
	Body   any
}

func NewError(status int, body any) *Error {
	return &Error{Status: status, Body: body}
}

func (e *Error) Error() string {
	return fmt.Sprintf("http %d: %v", e.Status, e.Body)
}

// Handler builds the effect answering r.
type Handler func(r *http.Request) effects.Effect[any]

// Server is a route table. Routes must be registered before Bind.
type Server struct {
	mu     sync.Mutex
	router *mux.Router
}

func New() *Server {
	return &Server{router: mux.NewRouter()}
}

// Env installs s under Key.
func (s *Server) Env() env.Env {
	return env.Of(Key, s)
}

// Route answers method requests to path with handler.
func (s *Server) Route(method, path string, handler Handler) effects.Effect[effects.Unit] {
	return func(ctx context.Context) (effects.Unit, error) {
		m := strings.ToUpper(method)
		h := serve(env.FromContext(ctx), m+" "+path, handler)

		s.mu.Lock()
		s.router.Handle(path, h).Methods(m)
		s.mu.Unlock()
		return effects.Unit{}, nil
	}
}

// Mount serves h under path for every method.
func (s *Server) Mount(path string, h http.Handler) effects.Effect[effects.Unit] {
	return effects.Do(func() {
		s.mu.Lock()
		s.router.Handle(path, h)
		s.mu.Unlock()
	})
}

func serve(captured env.Env, operation string, handler Handler) http.HandlerFunc {
	traced := tracing.HasTracerContext(captured)
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, _ := env.WithEnvironment(r.Context(), captured)
		r = r.WithContext(ctx)

		eff := handler(r)
		if traced {
			eff = tracing.WithControllerSpan[any](Component, operation, tracing.HeadersFromHTTP(r.Header))(eff)
		}

		res, err := eff(ctx)
		if err != nil {
			status, body := failure(err)
			log.LogEff(ctx, log.LogWarn, "request failed", map[string]interface{}{
				log.FieldComponent: Component,
				"operation":        operation,
				"status":           status,
				"error":            err.Error(),
			})
			writeJSON(ctx, w, operation, status, body)
			return
		}
		writeJSON(ctx, w, operation, http.StatusOK, res)
	}
}

func failure(err error) (int, any) {
	var he *Error
	if errors.As(err, &he) {
		return he.Status, he.Body
	}
	return http.StatusInternalServerError, map[string]string{"error": err.Error()}
}

// writeJSON answers with body, or with a 500 when body cannot be encoded.
func writeJSON(ctx context.Context, w http.ResponseWriter, operation string, status int, body any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		log.LogEff(ctx, log.LogError, "response encoding failed", map[string]interface{}{
			log.FieldComponent: Component,
			"operation":        operation,
			"error":            err.Error(),
		})
		buf.Reset()
		status = http.StatusInternalServerError
		_ = json.NewEncoder(&buf).Encode(map[string]string{"error": "response encoding failed"})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// ServerHandle is a listening server.
type ServerHandle struct {
	server   *http.Server
	listener net.Listener
	done     chan struct{}
	err      error
}

// Addr is the address the server listens on, with the port resolved.
func (h *ServerHandle) Addr() string {
	return h.listener.Addr().String()
}

func (h *ServerHandle) URL() string {
	return "http://" + h.Addr()
}

// Done is closed once the server stopped serving.
func (h *ServerHandle) Done() <-chan struct{} {
	return h.done
}

// Err is the error serving stopped with. It is nil while serving and after a shutdown.
func (h *ServerHandle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (h *ServerHandle) Shutdown(ctx context.Context) error {
	err := h.server.Shutdown(ctx)
	select {
	case <-h.done:
	case <-ctx.Done():
	}
	return err
}

// Bind listens on host:port and serves the registered routes. Port 0 picks a free port.
func (s *Server) Bind(port int, host string) effects.Effect[*ServerHandle] {
	return func(ctx context.Context) (*ServerHandle, error) {
		ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
		if err != nil {
			return nil, fmt.Errorf("httpbind: %w", err)
		}

		// requests see the values of ctx, the log handler included, but not its cancellation
		base := context.WithoutCancel(ctx)
		h := &ServerHandle{
			server: &http.Server{
				Handler:           s.router,
				ReadHeaderTimeout: readHeaderTimeout,
				BaseContext:       func(net.Listener) context.Context { return base },
			},
			listener: ln,
			done:     make(chan struct{}),
		}
		go func() {
			defer close(h.done)
			if err := h.server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
				h.err = err
			}
		}()

		if _, ok := env.Get[*graceful.Registry](env.FromContext(ctx), graceful.Key); ok {
			hook := func(ctx context.Context) {
				if err := h.Shutdown(ctx); err != nil {
					log.LogEff(ctx, log.LogError, "server shutdown failed", map[string]interface{}{
						log.FieldComponent: Component,
						"error":            err.Error(),
					})
				}
			}
			if _, err := graceful.OnExit(hook)(ctx); err != nil {
				return nil, err
			}
		}

		log.LogEff(ctx, log.LogInfo, "listening", map[string]interface{}{
			log.FieldComponent: Component,
			"addr":             h.Addr(),
		})
		return h, nil
	}
}

func server(e env.Env) *Server {
	return env.MustGet[*Server](e, Key)
}

// Route registers with the server in the environment.
func Route(method, path string, handler Handler) effects.Effect[effects.Unit] {
	return env.AccessM(func(e env.Env) effects.Effect[effects.Unit] {
		return server(e).Route(method, path, handler)
	})
}

// Mount mounts on the server in the environment.
func Mount(path string, h http.Handler) effects.Effect[effects.Unit] {
	return env.AccessM(func(e env.Env) effects.Effect[effects.Unit] {
		return server(e).Mount(path, h)
	})
}

// Bind binds the server in the environment.
func Bind(port int, host string) effects.Effect[*ServerHandle] {
	return env.AccessM(func(e env.Env) effects.Effect[*ServerHandle] {
		return server(e).Bind(port, host)
	})
}
