package web

import (
	"context"
	"time"

	"github.com/valyala/fasthttp"
)

// Server wraps a fasthttp.Server bound to a Router.
type Server struct {
	router *Router
	server *fasthttp.Server
	addr   string
}

// ServerConfig configures the fasthttp server.
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	MaxConnsPerIP   int
	ReadBufferSize  int
	WriteBufferSize int
}

// DefaultServerConfig returns sane defaults for the orchestrator's HTTP API.
func DefaultServerConfig(addr string) ServerConfig {
	return ServerConfig{
		Addr:            addr,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		MaxConnsPerIP:   10000,
		ReadBufferSize:  8192,
		WriteBufferSize: 8192,
	}
}

// NewServer creates a Server with a fresh Router.
func NewServer(config ServerConfig) *Server {
	router := NewRouter()
	s := &Server{
		router: router,
		addr:   config.Addr,
		server: &fasthttp.Server{
			ReadTimeout:                   config.ReadTimeout,
			WriteTimeout:                  config.WriteTimeout,
			MaxConnsPerIP:                 config.MaxConnsPerIP,
			ReadBufferSize:                config.ReadBufferSize,
			WriteBufferSize:               config.WriteBufferSize,
			DisableHeaderNamesNormalizing: false,
			NoDefaultServerHeader:         true,
			ReduceMemoryUsage:             true,
		},
	}
	s.server.Handler = router.ServeFastHTTP
	return s
}

// NewServerWithRouter creates a Server bound to an already-built Router,
// for callers (httpapi) that assemble their route table separately.
func NewServerWithRouter(config ServerConfig, router *Router) *Server {
	s := &Server{
		router: router,
		addr:   config.Addr,
		server: &fasthttp.Server{
			ReadTimeout:                   config.ReadTimeout,
			WriteTimeout:                  config.WriteTimeout,
			MaxConnsPerIP:                 config.MaxConnsPerIP,
			ReadBufferSize:                config.ReadBufferSize,
			WriteBufferSize:               config.WriteBufferSize,
			DisableHeaderNamesNormalizing: false,
			NoDefaultServerHeader:         true,
			ReduceMemoryUsage:             true,
		},
	}
	s.server.Handler = router.ServeFastHTTP
	return s
}

// Router returns the server's route table.
func (s *Server) Router() *Router { return s.router }

// Start blocks serving the listener on Addr.
func (s *Server) Start() error {
	return s.server.ListenAndServe(s.addr)
}

// Stop shuts the server down, waiting at most 5s for in-flight requests.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.ShutdownWithContext(ctx)
}
