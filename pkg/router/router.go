package router

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Suhaibinator/shovel/pkg/common"
	"github.com/Suhaibinator/shovel/pkg/envelope"
	"github.com/Suhaibinator/shovel/pkg/middleware"
	"github.com/Suhaibinator/shovel/pkg/response"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// Router is the main router struct that implements http.Handler.
type Router struct {
	config      RouterConfig
	router      *httprouter.Router
	logger      *zap.Logger
	middlewares []common.Middleware
	aliases     map[string]AliasFactory
	wg          sync.WaitGroup
	shutdown    bool
	shutdownMu  sync.RWMutex
}

// contextKey is a type for context keys.
type contextKey string

const (
	// ParamsKey is the key used to store httprouter.Params in the request context.
	ParamsKey contextKey = "params"
)

// NewRouter creates a new Router with the given configuration.
// It panics if a configured alias is unknown or its parameters are invalid.
func NewRouter(config RouterConfig) *Router {
	logger := config.Logger
	if logger == nil {
		var err error
		logger, err = zap.NewProduction()
		if err != nil {
			logger = zap.NewNop()
		}
	}

	r := &Router{
		config: config,
		router: httprouter.New(),
		logger: logger,
	}

	r.aliases = map[string]AliasFactory{
		AliasAPIResponse: r.envelopeAlias,
		AliasRequestID:   r.requestIDAlias,
		AliasThrottle:    r.throttleAlias,
	}
	for name, factory := range config.Aliases {
		r.aliases[name] = factory
	}

	r.middlewares = append(r.middlewares, config.Middlewares...)
	r.middlewares = append(r.middlewares, r.resolve(config.Use)...)

	for _, sr := range config.SubRouters {
		r.registerSubRouter(sr)
	}

	return r
}

// envelopeAlias builds the ApiResponse middleware from the router's envelope config.
func (r *Router) envelopeAlias(params ...string) (common.Middleware, error) {
	cfg := r.config.Envelope
	if len(params) > 0 {
		cfg.Tags = envelope.NewTags(params...)
	}
	if cfg.Logger == nil {
		cfg.Logger = r.logger
	}
	return middleware.Envelope(cfg), nil
}

func (r *Router) requestIDAlias(params ...string) (common.Middleware, error) {
	cfg := middleware.RequestIDConfig{UseExisting: true, Logger: r.logger}
	if len(params) > 0 {
		cfg.MetaKey = params[0]
	}
	return middleware.RequestID(cfg), nil
}

func (r *Router) throttleAlias(params ...string) (common.Middleware, error) {
	if len(params) == 0 {
		return nil, errors.New("missing limit")
	}
	limit, err := strconv.Atoi(params[0])
	if err != nil || limit < 1 {
		return nil, fmt.Errorf("invalid limit %q", params[0])
	}
	cfg := middleware.ThrottleConfig{Limit: limit}
	if len(params) > 1 {
		if cfg.Window, err = time.ParseDuration(params[1]); err != nil {
			return nil, fmt.Errorf("invalid window %q: %w", params[1], err)
		}
	}
	return middleware.Throttle(cfg, r.logger), nil
}

// resolve turns alias specs such as "ApiResponse:info,payload" into middlewares.
func (r *Router) resolve(specs []string) []common.Middleware {
	out := make([]common.Middleware, 0, len(specs))
	for _, spec := range specs {
		name, rawParams, _ := strings.Cut(spec, ":")
		name = strings.TrimSpace(name)

		factory, ok := r.aliases[name]
		if !ok {
			panic(fmt.Sprintf("router: unknown middleware alias %q", name))
		}

		var params []string
		if rawParams != "" {
			params = strings.Split(rawParams, ",")
		}
		mw, err := factory(params...)
		if err != nil {
			panic(fmt.Sprintf("router: middleware alias %q: %v", spec, err))
		}
		out = append(out, mw)
	}
	return out
}

// registerSubRouter registers all routes in a sub-router.
func (r *Router) registerSubRouter(sr SubRouterConfig) {
	shared := append(append([]common.Middleware{}, sr.Middlewares...), r.resolve(sr.Use)...)

	for _, route := range sr.Routes {
		fullPath := sr.PathPrefix + route.Path

		timeout := r.getEffectiveTimeout(route.Timeout, sr.TimeoutOverride)
		maxBodySize := r.getEffectiveMaxBodySize(route.MaxBodySize, sr.MaxBodySizeOverride)

		middlewares := append(append([]common.Middleware{}, shared...), route.Middlewares...)
		middlewares = append(middlewares, r.resolve(route.Use)...)
		handler := r.wrapHandler(route.Handler, timeout, maxBodySize, middlewares)

		for _, method := range route.Methods {
			r.router.Handle(method, fullPath, r.convertToHTTPRouterHandle(handler))
		}
	}
}

// RegisterRoute registers a route with the router.
// For routes with typed request and response values, use RegisterGenericRoute.
func (r *Router) RegisterRoute(route RouteConfigBase) {
	timeout := r.getEffectiveTimeout(route.Timeout, 0)
	maxBodySize := r.getEffectiveMaxBodySize(route.MaxBodySize, 0)

	middlewares := append(append([]common.Middleware{}, route.Middlewares...), r.resolve(route.Use)...)
	handler := r.wrapHandler(route.Handler, timeout, maxBodySize, middlewares)

	for _, method := range route.Methods {
		r.router.Handle(method, route.Path, r.convertToHTTPRouterHandle(handler))
	}
}

// RegisterGenericRoute registers a route with generic request and response types.
// This is a standalone function rather than a method because Go methods cannot have type parameters.
func RegisterGenericRoute[Req any, Resp any](r *Router, route RouteConfig[Req, Resp]) {
	timeout := r.getEffectiveTimeout(route.Timeout, 0)
	maxBodySize := r.getEffectiveMaxBodySize(route.MaxBodySize, 0)

	handler := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		data, err := route.Codec.Decode(req)
		if err != nil {
			r.handleError(w, req, err, http.StatusBadRequest, "Failed to decode request")
			return
		}

		resp, err := route.Handler(req, data)
		if err != nil {
			r.handleError(w, req, err, http.StatusInternalServerError, "Handler error")
			return
		}

		if err := route.Codec.Encode(w, resp); err != nil {
			r.handleError(w, req, err, http.StatusInternalServerError, "Failed to encode response")
			return
		}
	})

	middlewares := append(append([]common.Middleware{}, route.Middlewares...), r.resolve(route.Use)...)
	wrappedHandler := r.wrapHandler(handler, timeout, maxBodySize, middlewares)

	for _, method := range route.Methods {
		r.router.Handle(method, route.Path, r.convertToHTTPRouterHandle(wrappedHandler))
	}
}

// convertToHTTPRouterHandle converts an http.Handler to an httprouter.Handle.
// It stores the route parameters in the request context so they can be accessed by handlers.
func (r *Router) convertToHTTPRouterHandle(handler http.Handler) httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		ctx := context.WithValue(req.Context(), ParamsKey, ps)
		handler.ServeHTTP(w, req.WithContext(ctx))
	}
}

// wrapHandler wraps a handler with recovery, the global and route middlewares,
// the body size limit and the timeout.
func (r *Router) wrapHandler(handler http.HandlerFunc, timeout time.Duration, maxBodySize int64, middlewares []Middleware) http.Handler {
	h := http.Handler(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		// Add to the wait group before checking shutdown status
		r.wg.Add(1)

		r.shutdownMu.RLock()
		isShutdown := r.shutdown
		r.shutdownMu.RUnlock()

		if isShutdown {
			r.wg.Done()
			envelope.MarkBypass(w)
			http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
			return
		}

		defer r.wg.Done()

		if maxBodySize > 0 {
			req.Body = http.MaxBytesReader(w, req.Body, maxBodySize)
		}

		if timeout <= 0 {
			handler(w, req)
			return
		}

		ctx, cancel := context.WithTimeout(req.Context(), timeout)
		defer cancel()
		req = req.WithContext(ctx)

		tw := newTimeoutWriter(w)

		done := make(chan struct{})
		go func() {
			handler(tw, req)
			close(done)
		}()

		select {
		case <-done:
			if err := tw.flushTo(w); err != nil {
				r.logger.Error("Failed to merge response meta", r.withRequestID(req, []zap.Field{
					zap.Error(err),
					zap.String("method", req.Method),
					zap.String("path", req.URL.Path),
				})...)
			}
		case <-ctx.Done():
			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.Duration("timeout", timeout),
				zap.String("client_ip", middleware.ClientIP(req)),
			}
			r.logger.Error("Request timed out", r.withRequestID(req, fields)...)

			// The handler may still be running against its private writer,
			// which nothing reads from now on.
			tw.expire()
			envelope.MarkBypass(w)
			http.Error(w, "Request Timeout", http.StatusRequestTimeout)
		}
	}))

	chain := common.NewMiddlewareChain(r.recoveryMiddleware).
		Append(r.middlewares...).
		Append(middlewares...)

	return chain.Then(h)
}

// ServeHTTP implements the http.Handler interface.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}

// Shutdown gracefully shuts down the router.
// It stops accepting new requests and waits for existing requests to complete.
// If the context is canceled before all requests complete, it returns the context's error.
func (r *Router) Shutdown(ctx context.Context) error {
	r.shutdownMu.Lock()
	r.shutdown = true
	r.shutdownMu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetParams retrieves the httprouter.Params from the request context.
func GetParams(r *http.Request) httprouter.Params {
	params, _ := r.Context().Value(ParamsKey).(httprouter.Params)
	return params
}

// GetParam retrieves a specific parameter from the request context.
func GetParam(r *http.Request, name string) string {
	return GetParams(r).ByName(name)
}

// getEffectiveTimeout returns the effective timeout for a route.
// It considers route-specific, sub-router, and global timeout settings in that order of precedence.
func (r *Router) getEffectiveTimeout(routeTimeout, subRouterTimeout time.Duration) time.Duration {
	if routeTimeout > 0 {
		return routeTimeout
	}
	if subRouterTimeout > 0 {
		return subRouterTimeout
	}
	return r.config.GlobalTimeout
}

// getEffectiveMaxBodySize returns the effective max body size for a route.
// It considers route-specific, sub-router, and global max body size settings in that order of precedence.
func (r *Router) getEffectiveMaxBodySize(routeMaxBodySize, subRouterMaxBodySize int64) int64 {
	if routeMaxBodySize > 0 {
		return routeMaxBodySize
	}
	if subRouterMaxBodySize > 0 {
		return subRouterMaxBodySize
	}
	return r.config.GlobalMaxBodySize
}

// withRequestID prepends the request ID to fields when enabled and present.
func (r *Router) withRequestID(req *http.Request, fields []zap.Field) []zap.Field {
	if !r.config.EnableTraceID {
		return fields
	}
	if id := middleware.GetRequestID(req); id != "" {
		return append([]zap.Field{zap.String("trace_id", id)}, fields...)
	}
	return fields
}

// handleError logs err and writes a JSON error body, which the envelope
// middleware wraps like any other response.
// An HTTPError in the chain overrides statusCode and message.
func (r *Router) handleError(w http.ResponseWriter, req *http.Request, err error, statusCode int, message string) {
	fields := []zap.Field{
		zap.Error(err),
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
	}
	r.logger.Error(message, r.withRequestID(req, fields)...)

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		statusCode = httpErr.StatusCode
		message = httpErr.Message
	}

	if err := response.Error(w, statusCode, message); err != nil {
		r.logger.Error("Failed to write error response", zap.Error(err))
	}
}

// HTTPError represents an HTTP error with a status code and message.
// Handlers return it to control the error status and message.
type HTTPError struct {
	StatusCode int    // HTTP status code (e.g., 400, 404, 500)
	Message    string // Error message sent in the response body
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

// NewHTTPError creates a new HTTPError with the specified status code and message.
func NewHTTPError(statusCode int, message string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
	}
}

// recoveryMiddleware recovers from panics in handlers and middlewares.
// It logs the panic and returns a plain 500 Internal Server Error response.
// It runs outermost in every route chain, so w is normally the server's
// writer; when the router itself is wrapped by an envelope middleware the
// 500 is still marked to bypass it.
func (r *Router) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				fields := []zap.Field{
					zap.Any("panic", rec),
					zap.String("method", req.Method),
					zap.String("path", req.URL.Path),
				}
				r.logger.Error("Panic recovered", r.withRequestID(req, fields)...)

				envelope.MarkBypass(w)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, req)
	})
}

// timeoutWriter isolates a handler running under a timeout. Status, headers,
// body and envelope meta are captured privately and only reach the real writer
// through flushTo once the handler has returned in time.
type timeoutWriter struct {
	mu          sync.Mutex
	header      http.Header
	resp        *envelope.Response // nil when the real writer is not enveloped
	body        bytes.Buffer
	status      int
	wroteHeader bool
	timedOut    bool
}

func newTimeoutWriter(w http.ResponseWriter) *timeoutWriter {
	tw := &timeoutWriter{header: w.Header().Clone()}
	if _, ok := envelope.FromWriter(w); ok {
		tw.resp = &envelope.Response{Header: tw.header}
	}
	return tw
}

// Header returns the private header map.
func (tw *timeoutWriter) Header() http.Header {
	return tw.header
}

// WriteHeader records the first status code.
func (tw *timeoutWriter) WriteHeader(statusCode int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut || tw.wroteHeader {
		return
	}
	tw.status = statusCode
	tw.wroteHeader = true
}

// Write buffers b. Writes after a timeout fail with http.ErrHandlerTimeout.
func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return 0, http.ErrHandlerTimeout
	}
	if !tw.wroteHeader {
		tw.status = http.StatusOK
		tw.wroteHeader = true
	}
	return tw.body.Write(b)
}

// Flush is a no-op; the body is released when the handler returns.
func (tw *timeoutWriter) Flush() {}

// EnvelopeResponse implements envelope.Carrier with the private response, so
// a late handler never touches the response being sent.
func (tw *timeoutWriter) EnvelopeResponse() *envelope.Response {
	return tw.resp
}

func (tw *timeoutWriter) expire() {
	tw.mu.Lock()
	tw.timedOut = true
	tw.mu.Unlock()
}

// flushTo copies the captured response onto w. It must only be called after
// the handler has returned.
func (tw *timeoutWriter) flushTo(w http.ResponseWriter) error {
	dst := w.Header()
	for k := range dst {
		if _, ok := tw.header[k]; !ok {
			delete(dst, k)
		}
	}
	for k, v := range tw.header {
		dst[k] = v
	}

	var err error
	if tw.resp != nil {
		if outer, ok := envelope.FromWriter(w); ok {
			err = outer.Meta.Merge(&tw.resp.Meta)
			if tw.resp.Source != nil {
				outer.Source = tw.resp.Source
			}
			if tw.resp.Bypass {
				outer.Bypass = true
			}
		}
	}

	if tw.wroteHeader {
		w.WriteHeader(tw.status)
	}
	if tw.body.Len() > 0 {
		_, _ = w.Write(tw.body.Bytes())
	}
	return err
}
