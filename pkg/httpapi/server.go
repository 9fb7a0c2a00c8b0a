package httpapi

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/Subconscious-ai/ghostshell/pkg/config"
	"github.com/Subconscious-ai/ghostshell/pkg/token"
	"github.com/Subconscious-ai/ghostshell/pkg/tools/mcpserver"
	"github.com/Subconscious-ai/ghostshell/pkg/tools/toolbox"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ShutdownTimeout bounds the graceful shutdown of Serve.
const ShutdownTimeout = 15 * time.Second

// Options configures a Server.
type Options struct {
	Name         string
	Version      string
	Instructions string
	CORS         config.CORSConfig
	MaxBodyBytes int64        // Limit for REST call bodies. Defaults to 4 MiB.
	Logger       *slog.Logger // Defaults to slog.Default().
}

// Server is the hosted HTTP front-end over a ToolBox.
type Server struct {
	tools    *toolbox.ToolBox
	opts     Options
	log      *slog.Logger
	cors     *cors
	sessions sessionTokens
	handler  http.Handler
}

// New builds a Server exposing tb. It fails only on an invalid CORS origin
// regex.
func New(tb *toolbox.ToolBox, opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}

	c, err := newCORS(opts.CORS)
	if err != nil {
		return nil, err
	}

	s := &Server{tools: tb, opts: opts, log: opts.Logger, cors: c}
	s.handler = s.logRequests(c.middleware(s.routes()))

	return s, nil
}

// Handler returns the root handler, CORS and request logging included.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.info)
	mux.HandleFunc("GET /api", s.info)
	mux.HandleFunc("GET /api/health", s.health)
	mux.HandleFunc("GET /api/tools", s.listTools)
	mux.HandleFunc("POST /api/call/{tool}", s.callTool)

	mux.Handle("/api/sse", s.sseHandler())
	mux.Handle("/mcp", s.streamableHandler())
	mux.HandleFunc("GET /api/ws", s.serveWebSocket)

	return mux
}

// mcpServer builds an MCP server whose backend calls authenticate with tp.
func (s *Server) mcpServer(tp token.Provider) *mcp.Server {
	return mcpserver.New(s.tools, tp, mcpserver.Options{
		Name:         s.opts.Name,
		Version:      s.opts.Version,
		Instructions: s.opts.Instructions,
		Logger:       s.log,
	}).Server()
}

// ListenAndServe listens on addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("httpapi: listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully. Long-lived MCP streams observe the cancellation through their
// request context.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	s.log.InfoContext(ctx, "http server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("httpapi: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("httpapi: shutdown: %w", err)
	}
	s.log.InfoContext(ctx, "http server stopped")

	return nil
}

// logRequests logs one line per request once it completes.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &recorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.log.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

// recorder captures the response status. It forwards Flush and Hijack so
// SSE streams and WebSocket upgrades keep working behind it.
type recorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *recorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}

func (r *recorder) Flush() {
	_ = http.NewResponseController(r.ResponseWriter).Flush()
}

func (r *recorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	r.status = http.StatusSwitchingProtocols
	return http.NewResponseController(r.ResponseWriter).Hijack()
}

func (r *recorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }
