package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/Subconscious-ai/ghostshell/pkg/handlers"
	"github.com/Subconscious-ai/ghostshell/pkg/token"
	"github.com/Subconscious-ai/ghostshell/pkg/tools/toolbox"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Options configures an MCPServer.
type Options struct {
	Name         string       // Implementation name reported to clients.
	Version      string       // Implementation version reported to clients.
	Instructions string       // Optional usage hint sent on initialize.
	Logger       *slog.Logger // Defaults to slog.Default().
}

// MCPServer serves a ToolBox over the MCP protocol using the official MCP Go
// SDK. Every call it serves uses the token provider it was built with.
type MCPServer struct {
	server *mcp.Server
	tools  *toolbox.ToolBox
	tp     token.Provider
	log    *slog.Logger
}

// New creates an MCPServer exposing every tool of tb, authenticating backend
// calls through tp.
func New(tb *toolbox.ToolBox, tp token.Provider, opts Options) *MCPServer {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    opts.Name,
		Version: opts.Version,
	}, &mcp.ServerOptions{
		Instructions: opts.Instructions,
	})

	s := &MCPServer{server: server, tools: tb, tp: tp, log: opts.Logger}
	for _, t := range tb.Tools() {
		s.server.AddTool(toSDKTool(t), s.toSDKHandler(t.Name))
	}

	return s
}

// Server returns the underlying SDK server, for mounting on HTTP handlers.
func (s *MCPServer) Server() *mcp.Server { return s.server }

// Serve starts serving MCP requests. It reads requests from in and writes
// responses to out. It blocks until ctx is cancelled or the transport closes.
func (s *MCPServer) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	transport := &mcp.IOTransport{
		Reader: io.NopCloser(in),
		Writer: nopWriteCloser{out},
	}

	return s.Run(ctx, transport)
}

// ServeStdio serves over the process's stdin and stdout.
func (s *MCPServer) ServeStdio(ctx context.Context) error {
	return s.Run(ctx, &mcp.StdioTransport{})
}

// Run serves over an arbitrary transport until ctx is cancelled or the
// client disconnects.
func (s *MCPServer) Run(ctx context.Context, transport mcp.Transport) error {
	return s.server.Run(ctx, transport)
}

// toSDKTool converts a toolbox.Tool to an SDK *mcp.Tool.
func toSDKTool(t toolbox.Tool) *mcp.Tool {
	return &mcp.Tool{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: t.InputSchema,
	}
}

// toSDKHandler adapts the named toolbox tool as an SDK ToolHandler.
func (s *MCPServer) toSDKHandler(name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := handlers.ParseArgs(req.Params.Arguments)
		if err != nil {
			return ToCallToolResult(handlers.FromError(err, "call "+name)), nil
		}

		res, err := s.tools.Call(ctx, name, args, s.tp)
		if err != nil {
			return nil, err
		}

		// A cancelled call produces no result.
		if ctxErr := ctx.Err(); ctxErr != nil {
			s.log.DebugContext(ctx, "tool call cancelled", "tool", name)
			return nil, ctxErr
		}

		return ToCallToolResult(res), nil
	}
}

// ToCallToolResult renders a Result for MCP clients. Success carries the
// message followed by the indented data as text, plus the Result as
// structured content. Failure carries "message: code" and sets IsError.
func ToCallToolResult(r handlers.Result) *mcp.CallToolResult {
	if !r.Success {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: r.Message + ": " + r.Error}},
			IsError: true,
		}
	}

	text := r.Message
	if data, err := json.MarshalIndent(r.Data, "", "  "); err == nil {
		text += "\n\n" + string(data)
	}

	return &mcp.CallToolResult{
		Content:           []mcp.Content{&mcp.TextContent{Text: text}},
		StructuredContent: r,
	}
}

// nopWriteCloser wraps an io.Writer as an io.WriteCloser with a no-op Close.
type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
