package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Subconscious-ai/ghostshell/pkg/handlers"
	"github.com/Subconscious-ai/ghostshell/pkg/token"
	"github.com/Subconscious-ai/ghostshell/pkg/tools/catalog"
	"github.com/Subconscious-ai/ghostshell/pkg/tools/toolbox"
)

const (
	defaultMaxBodyBytes = 4 << 20
	getTokenHint        = "https://app.subconscious.ai (Settings → Access Token)"
	description         = "MCP server for Subconscious AI - Run conjoint experiments with AI agents"
)

func (s *Server) info(w http.ResponseWriter, r *http.Request) {
	base := baseURL(r)

	writeJSON(w, http.StatusOK, map[string]any{
		"name":        s.opts.Name,
		"version":     s.opts.Version,
		"description": description,
		"authentication": map[string]any{
			"type":      "Bearer token",
			"header":    "Authorization: Bearer YOUR_TOKEN",
			"get_token": getTokenHint,
		},
		"mcp": map[string]any{
			"sse_endpoint":        base + "/api/sse",
			"streamable_endpoint": base + "/mcp",
			"websocket_endpoint":  "ws" + strings.TrimPrefix(base, "http") + "/api/ws",
		},
		"rest_api": map[string]any{
			"list_tools": "GET " + base + "/api/tools",
			"call_tool":  "POST " + base + "/api/call/{tool_name}",
		},
		"tools":    s.tools.Names(),
		"workflow": catalog.Workflow,
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"server":  s.opts.Name,
		"version": s.opts.Version,
		"tools":   s.tools.Len(),
	})
}

type toolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

func (s *Server) listTools(w http.ResponseWriter, _ *http.Request) {
	tools := s.tools.Tools()
	list := make([]toolInfo, 0, len(tools))
	for _, t := range tools {
		list = append(list, toolInfo{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": list})
}

// callTool runs one tool with the JSON request body as arguments. A body
// that is empty or not a JSON object counts as no arguments; one over the
// size limit is refused.
func (s *Server) callTool(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("tool")
	if _, ok := s.tools.Get(name); !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Unknown tool: " + name})
		return
	}

	tp := token.FromHTTPRequest(r)
	if !tp.Present() {
		writeAuthRequired(w)
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]any{
			"error": fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit),
		})
		return
	}
	if err != nil {
		raw = nil
	}
	args, err := handlers.ParseArgs(raw)
	if err != nil {
		args = handlers.Args{}
	}

	res, err := s.tools.Call(r.Context(), name, args, tp)
	if errors.Is(err, toolbox.ErrToolNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Unknown tool: " + name})
		return
	}

	// The client went away; nobody is left to read a result.
	if r.Context().Err() != nil {
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func writeAuthRequired(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, map[string]any{
		"error":     "Authorization required",
		"message":   "Include 'Authorization: Bearer YOUR_TOKEN' header",
		"get_token": getTokenHint,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// baseURL reconstructs the externally visible origin of r, honouring a
// TLS-terminating proxy.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p == "http" || p == "https" {
		scheme = p
	}
	return scheme + "://" + r.Host
}
