package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/Subconscious-ai/ghostshell/pkg/token"
	"github.com/Subconscious-ai/ghostshell/pkg/tools/wstransport"
	"github.com/coder/websocket"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// sseHandler serves MCP over SSE. The token is checked when the event
// stream is opened; message posts are routed by session id to the server
// built for that stream.
func (s *Server) sseHandler() http.Handler {
	h := mcp.NewSSEHandler(func(r *http.Request) *mcp.Server {
		return s.mcpServer(token.FromHTTPRequest(r))
	}, nil)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && token.Extract(r) == "" {
			writeAuthRequired(w)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// streamableHandler serves MCP over streamable HTTP. Each session is bound
// to the token of the request that created it; later requests of the
// session must present the same token.
func (s *Server) streamableHandler() http.Handler {
	h := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return s.mcpServer(token.FromHTTPRequest(r))
	}, nil)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := token.Extract(r)
		if tok == "" {
			writeAuthRequired(w)
			return
		}

		id := r.Header.Get(sessionHeader)
		if id == "" {
			h.ServeHTTP(&sessionBinder{ResponseWriter: w, bind: func(id string) { s.sessions.bind(id, tok) }}, r)
			return
		}

		if !s.sessions.matches(id, tok) {
			writeJSON(w, http.StatusForbidden, map[string]any{"error": "Token does not match session"})
			return
		}
		h.ServeHTTP(w, r)
		if r.Method == http.MethodDelete {
			s.sessions.drop(id)
		}
	})
}

const sessionHeader = "Mcp-Session-Id"

// sessionTokens maps streamable HTTP session ids to the token that opened
// them.
type sessionTokens struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (st *sessionTokens) bind(id, tok string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.tokens == nil {
		st.tokens = make(map[string]string)
	}
	st.tokens[id] = tok
}

// matches reports whether tok may be used with session id. Unknown ids are
// left to the MCP handler, which rejects them.
func (st *sessionTokens) matches(id, tok string) bool {
	st.mu.Lock()
	bound, ok := st.tokens[id]
	st.mu.Unlock()
	return !ok || subtle.ConstantTimeCompare([]byte(bound), []byte(tok)) == 1
}

func (st *sessionTokens) drop(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.tokens, id)
}

// sessionBinder records the session id assigned in the response headers
// before they reach the client.
type sessionBinder struct {
	http.ResponseWriter
	bind  func(id string)
	wrote bool
}

func (b *sessionBinder) WriteHeader(code int) {
	if !b.wrote {
		b.wrote = true
		if id := b.Header().Get(sessionHeader); id != "" {
			b.bind(id)
		}
	}
	b.ResponseWriter.WriteHeader(code)
}

func (b *sessionBinder) Write(p []byte) (int, error) {
	if !b.wrote {
		b.WriteHeader(http.StatusOK)
	}
	return b.ResponseWriter.Write(p)
}

func (b *sessionBinder) Flush() {
	if !b.wrote {
		b.WriteHeader(http.StatusOK)
	}
	if f, ok := b.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (b *sessionBinder) Unwrap() http.ResponseWriter { return b.ResponseWriter }

// serveWebSocket serves one MCP session over a WebSocket connection.
func (s *Server) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	tp := token.FromHTTPRequest(r)
	if !tp.Present() {
		writeAuthRequired(w)
		return
	}

	if origin := r.Header.Get("Origin"); origin != "" && !s.cors.allowed(origin) {
		writeJSON(w, http.StatusForbidden, map[string]any{"error": "Origin not allowed"})
		return
	}

	// The origin was checked above against the CORS policy.
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		s.log.WarnContext(r.Context(), "websocket accept failed", "error", err)
		return
	}

	ctx := r.Context()
	s.log.DebugContext(ctx, "websocket session started", "remote", r.RemoteAddr)

	err = s.mcpServer(tp).Run(ctx, &wstransport.Transport{Conn: ws})
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
		s.log.DebugContext(ctx, "websocket session ended", "error", err)
	}
}
