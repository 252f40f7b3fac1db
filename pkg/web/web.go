// Package web provides the fasthttp-based HTTP API shell shared by every
// transport-facing package (middleware, health, observability, httpapi).
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

// FastRequestContext wraps fasthttp's RequestCtx with the orchestrator's
// request-scoped state: route params, a request id and a generic bag for
// values threaded between middleware (trace spans, auth claims, ...).
type FastRequestContext struct {
	RequestCtx *fasthttp.RequestCtx
	Params     map[string]string

	mu   sync.RWMutex
	data map[string]interface{}
}

func newFastRequestContext(ctx *fasthttp.RequestCtx) *FastRequestContext {
	return &FastRequestContext{RequestCtx: ctx, Params: make(map[string]string)}
}

// Set stores a value in the request-scoped bag.
func (c *FastRequestContext) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = make(map[string]interface{})
	}
	c.data[key] = value
}

// Get retrieves a value previously stored with Set.
func (c *FastRequestContext) Get(key string) interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.data == nil {
		return nil
	}
	return c.data[key]
}

// Context returns the context.Context tied to the underlying fasthttp request.
func (c *FastRequestContext) Context() context.Context {
	return c.RequestCtx
}

// Method returns the HTTP method.
func (c *FastRequestContext) Method() []byte {
	return c.RequestCtx.Method()
}

// Path returns the request path.
func (c *FastRequestContext) Path() []byte {
	return c.RequestCtx.Path()
}

// Param returns a named path parameter (e.g. {id} in /executions/{id}).
func (c *FastRequestContext) Param(name string) string {
	return c.Params[name]
}

// Query returns a query string value.
func (c *FastRequestContext) Query(key string) string {
	return string(c.RequestCtx.QueryArgs().Peek(key))
}

const requestIDHeader = "X-Request-ID"

// RequestID returns the request id, reusing an inbound X-Request-ID header
// when present and minting a new uuid otherwise.
func (c *FastRequestContext) RequestID() string {
	if v := c.Get("request_id"); v != nil {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}

	id := string(c.RequestCtx.Request.Header.Peek(requestIDHeader))
	if id == "" {
		id = uuid.NewString()
	}
	c.Set("request_id", id)
	return id
}

// JSON writes a JSON-encoded response with the given status code.
func (c *FastRequestContext) JSON(statusCode int, data interface{}) error {
	if statusCode < 100 || statusCode > 599 {
		return fmt.Errorf("invalid status code: %d", statusCode)
	}

	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("json encode: %w", err)
	}

	c.RequestCtx.SetStatusCode(statusCode)
	c.RequestCtx.SetContentType("application/json")
	c.RequestCtx.Response.Header.Set(requestIDHeader, c.RequestID())
	c.RequestCtx.Write(body)
	return nil
}

// BindJSON decodes the request body into v.
func (c *FastRequestContext) BindJSON(v interface{}) error {
	if v == nil {
		return fmt.Errorf("cannot bind to nil value")
	}
	body := c.RequestCtx.PostBody()
	if len(body) == 0 {
		return fmt.Errorf("empty request body")
	}
	return json.Unmarshal(body, v)
}

// Text writes a plain-text response.
func (c *FastRequestContext) Text(statusCode int, text string) error {
	c.RequestCtx.SetStatusCode(statusCode)
	c.RequestCtx.SetContentType("text/plain; charset=utf-8")
	c.RequestCtx.WriteString(text)
	return nil
}

// Error writes an error response.
func (c *FastRequestContext) Error(msg string, statusCode int) {
	c.RequestCtx.Error(msg, statusCode)
}

// FastRequestHandler handles a single request.
type FastRequestHandler func(ctx *FastRequestContext) error

// FastMiddleware wraps a handler with additional behavior.
type FastMiddleware func(next FastRequestHandler) FastRequestHandler

// route is a single registered method+pattern pair. Patterns use `{name}`
// segments for path parameters, e.g. "/executions/{id}".
type route struct {
	method   string
	segments []string
	handler  FastRequestHandler
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func (r *route) match(segments []string) (map[string]string, bool) {
	if len(segments) != len(r.segments) {
		return nil, false
	}
	params := make(map[string]string)
	for i, seg := range r.segments {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			params[seg[1:len(seg)-1]] = segments[i]
			continue
		}
		if seg != segments[i] {
			return nil, false
		}
	}
	return params, true
}

// Router is a minimal path-parameter-aware router for the fasthttp
// transport. Middleware registered with Use is applied at request time, so
// it wraps every route, whether added before or after the Use call; the
// first middleware registered is the outermost (the order pkg/httpapi
// composes Recovery, Logging and Compression in).
type Router struct {
	mu         sync.RWMutex
	routes     []*route
	middleware []FastMiddleware
	notFound   FastRequestHandler
}

// NewRouter creates an empty Router.
func NewRouter() *Router {
	return &Router{
		notFound: func(ctx *FastRequestContext) error {
			return ctx.JSON(fasthttp.StatusNotFound, map[string]string{"error": "not_found"})
		},
	}
}

// Use appends global middleware applied to every route.
func (r *Router) Use(mw ...FastMiddleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middleware = append(r.middleware, mw...)
}

func (r *Router) handle(method, pattern string, handler FastRequestHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, &route{method: method, segments: splitPath(pattern), handler: handler})
}

// GETFast registers a GET route.
func (r *Router) GETFast(pattern string, handler FastRequestHandler) { r.handle("GET", pattern, handler) }

// POSTFast registers a POST route.
func (r *Router) POSTFast(pattern string, handler FastRequestHandler) {
	r.handle("POST", pattern, handler)
}

// PUTFast registers a PUT route.
func (r *Router) PUTFast(pattern string, handler FastRequestHandler) { r.handle("PUT", pattern, handler) }

// DELETEFast registers a DELETE route.
func (r *Router) DELETEFast(pattern string, handler FastRequestHandler) {
	r.handle("DELETE", pattern, handler)
}

// PATCHFast registers a PATCH route.
func (r *Router) PATCHFast(pattern string, handler FastRequestHandler) {
	r.handle("PATCH", pattern, handler)
}

func (r *Router) lookup(method string, segments []string) (FastRequestHandler, map[string]string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rt := range r.routes {
		if rt.method != method {
			continue
		}
		if params, ok := rt.match(segments); ok {
			return rt.handler, params
		}
	}
	return nil, nil
}

func (r *Router) wrap(h FastRequestHandler) FastRequestHandler {
	r.mu.RLock()
	mw := append([]FastMiddleware(nil), r.middleware...)
	r.mu.RUnlock()

	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

// ServeFastHTTP implements the fasthttp.RequestHandler signature and is
// installed on the fasthttp.Server built by NewServer or NewServerWithRouter.
func (r *Router) ServeFastHTTP(ctx *fasthttp.RequestCtx) {
	reqCtx := newFastRequestContext(ctx)
	segments := splitPath(string(ctx.Path()))

	handler, params := r.lookup(string(ctx.Method()), segments)
	if handler == nil {
		handler = r.notFound
	} else {
		reqCtx.Params = params
	}

	if err := r.wrap(handler)(reqCtx); err != nil {
		ctx.Error(err.Error(), fasthttp.StatusInternalServerError)
	}
}
