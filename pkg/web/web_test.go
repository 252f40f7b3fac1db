package web

import (
	"testing"

	"github.com/valyala/fasthttp"
)

func newTestRequestCtx(method, path string) *fasthttp.RequestCtx {
	var ctx fasthttp.RequestCtx
	var req fasthttp.Request
	req.Header.SetMethod(method)
	req.SetRequestURI(path)
	ctx.Init(&req, nil, nil)
	return &ctx
}

func TestRouterMatchesPathParams(t *testing.T) {
	r := NewRouter()
	var gotID string
	r.GETFast("/executions/{id}", func(ctx *FastRequestContext) error {
		gotID = ctx.Param("id")
		return ctx.JSON(200, map[string]string{"id": gotID})
	})

	ctx := newTestRequestCtx("GET", "/executions/abc-123")
	r.ServeFastHTTP(ctx)

	if gotID != "abc-123" {
		t.Fatalf("expected param id=abc-123, got %q", gotID)
	}
	if ctx.Response.StatusCode() != 200 {
		t.Fatalf("expected status 200, got %d", ctx.Response.StatusCode())
	}
}

func TestRouterNotFound(t *testing.T) {
	r := NewRouter()
	r.GETFast("/workflows", func(ctx *FastRequestContext) error { return ctx.JSON(200, nil) })

	ctx := newTestRequestCtx("GET", "/nope")
	r.ServeFastHTTP(ctx)

	if ctx.Response.StatusCode() != fasthttp.StatusNotFound {
		t.Fatalf("expected 404, got %d", ctx.Response.StatusCode())
	}
}

func TestRouterMiddlewareOrder(t *testing.T) {
	r := NewRouter()
	var order []string
	mw := func(name string) FastMiddleware {
		return func(next FastRequestHandler) FastRequestHandler {
			return func(ctx *FastRequestContext) error {
				order = append(order, name)
				return next(ctx)
			}
		}
	}
	r.Use(mw("a"), mw("b"))
	r.GETFast("/x", func(ctx *FastRequestContext) error {
		order = append(order, "handler")
		return ctx.JSON(200, nil)
	})

	ctx := newTestRequestCtx("GET", "/x")
	r.ServeFastHTTP(ctx)

	want := []string{"a", "b", "handler"}
	if len(order) != len(want) {
		t.Fatalf("expected order %v, got %v", want, order)
	}
	for i, v := range want {
		if order[i] != v {
			t.Fatalf("expected order %v, got %v", want, order)
		}
	}
}

func TestRequestIDReusesHeader(t *testing.T) {
	ctx := newTestRequestCtx("GET", "/x")
	ctx.Request.Header.Set(requestIDHeader, "fixed-id")
	reqCtx := newFastRequestContext(ctx)

	if got := reqCtx.RequestID(); got != "fixed-id" {
		t.Fatalf("expected request id fixed-id, got %q", got)
	}
}
