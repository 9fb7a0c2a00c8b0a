package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Subconscious-ai/ghostshell/pkg/handlers"
	"github.com/Subconscious-ai/ghostshell/pkg/token"
	"github.com/Subconscious-ai/ghostshell/pkg/tools/toolbox"
	"github.com/Subconscious-ai/ghostshell/pkg/tools/wstransport"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// MCPClient talks to a ghostshell MCP server using the official MCP Go SDK.
type MCPClient struct {
	client  *mcp.Client
	session *mcp.ClientSession
}

// Dial connects to a hosted server, choosing the transport from the URL:
// ws:// and wss:// use WebSocket, a path ending in /sse uses SSE and
// anything else uses streamable HTTP. A non-empty token is sent as a bearer
// credential on every request.
func Dial(ctx context.Context, endpoint, token string) (*MCPClient, error) {
	switch {
	case strings.HasPrefix(endpoint, "ws://"), strings.HasPrefix(endpoint, "wss://"):
		return NewWebSocket(ctx, endpoint, token)
	case strings.HasSuffix(strings.TrimRight(endpoint, "/"), "/sse"):
		return NewSSE(ctx, endpoint, token)
	default:
		return NewStreamable(ctx, endpoint, token)
	}
}

// NewSSE connects to an SSE-based MCP server at the given URL.
func NewSSE(ctx context.Context, endpoint, token string) (*MCPClient, error) {
	return New(ctx, &mcp.SSEClientTransport{Endpoint: endpoint, HTTPClient: bearerClient(token)})
}

// NewStreamable connects to a streamable HTTP MCP server at the given URL.
func NewStreamable(ctx context.Context, endpoint, token string) (*MCPClient, error) {
	return New(ctx, &mcp.StreamableClientTransport{Endpoint: endpoint, HTTPClient: bearerClient(token)})
}

// NewWebSocket connects to a WebSocket MCP server at the given URL.
func NewWebSocket(ctx context.Context, endpoint, token string) (*MCPClient, error) {
	t := &wstransport.ClientTransport{Endpoint: endpoint}
	if token != "" {
		t.Header = http.Header{"Authorization": []string{"Bearer " + token}}
	}
	return New(ctx, t)
}

// New creates an MCPClient over the given transport. The SDK handles
// initialization during Connect.
func New(ctx context.Context, transport mcp.Transport) (*MCPClient, error) {
	client := mcp.NewClient(&mcp.Implementation{
		Name:    "ghostshell",
		Version: "1.0.0",
	}, nil)

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("mcpclient: connect: %w", err)
	}

	return &MCPClient{client: client, session: session}, nil
}

// ListTools fetches the server's tools as toolbox.Tool instances whose
// handlers call back through CallTool. The remote side authenticates with
// the credential bound at connect time, so the handlers ignore their token
// provider.
func (c *MCPClient) ListTools(ctx context.Context) ([]toolbox.Tool, error) {
	result, err := c.session.ListTools(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("mcpclient: list tools: %w", err)
	}

	tools := make([]toolbox.Tool, 0, len(result.Tools))
	for _, sdkTool := range result.Tools {
		t, err := fromSDKTool(sdkTool, c)
		if err != nil {
			return nil, fmt.Errorf("mcpclient: convert tool %q: %w", sdkTool.Name, err)
		}
		tools = append(tools, t)
	}

	return tools, nil
}

// CallTool calls a named tool on the server. Tool failures are returned in
// the Result; the error reports protocol or transport problems.
func (c *MCPClient) CallTool(ctx context.Context, name string, args handlers.Args) (handlers.Result, error) {
	result, err := c.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: map[string]any(args),
	})
	if err != nil {
		return handlers.Result{}, fmt.Errorf("mcpclient: call tool: %w", err)
	}

	return toResult(result)
}

// Close terminates the session.
func (c *MCPClient) Close() error {
	return c.session.Close()
}

// fromSDKTool converts an SDK *mcp.Tool to a toolbox.Tool.
func fromSDKTool(sdkTool *mcp.Tool, c *MCPClient) (toolbox.Tool, error) {
	schemaBytes, err := json.Marshal(sdkTool.InputSchema)
	if err != nil {
		return toolbox.Tool{}, fmt.Errorf("marshal input schema: %w", err)
	}

	name := sdkTool.Name

	return toolbox.Tool{
		Name:        sdkTool.Name,
		Description: sdkTool.Description,
		InputSchema: json.RawMessage(schemaBytes),
		Handler: func(ctx context.Context, args handlers.Args, _ token.Provider) handlers.Result {
			res, err := c.CallTool(ctx, name, args)
			if err != nil {
				return handlers.Fail(handlers.CodeNetwork, err.Error())
			}
			return res
		},
	}, nil
}

// toResult recovers the Result from structured content, falling back to the
// "message: code" text form of failures.
func toResult(result *mcp.CallToolResult) (handlers.Result, error) {
	if result.StructuredContent != nil {
		data, err := json.Marshal(result.StructuredContent)
		if err != nil {
			return handlers.Result{}, fmt.Errorf("mcpclient: structured content: %w", err)
		}
		var r handlers.Result
		if err := json.Unmarshal(data, &r); err != nil {
			return handlers.Result{}, fmt.Errorf("mcpclient: structured content: %w", err)
		}
		return r, nil
	}

	text := extractText(result)
	if result.IsError {
		if i := strings.LastIndex(text, ": "); i >= 0 {
			return handlers.Fail(text[i+2:], text[:i]), nil
		}
		return handlers.Fail(handlers.CodeUnknown, text), nil
	}

	return handlers.OK(map[string]any{"text": text}, "OK"), nil
}

// extractText joins all TextContent items from a CallToolResult with newlines.
func extractText(result *mcp.CallToolResult) string {
	var texts []string
	for _, item := range result.Content {
		if tc, ok := item.(*mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}

	return strings.Join(texts, "\n")
}

// bearerClient returns an HTTP client adding the token to every request, or
// nil (the SDK default) when token is empty.
func bearerClient(token string) *http.Client {
	if token == "" {
		return nil
	}
	return &http.Client{Transport: bearer{token: token, next: http.DefaultTransport}}
}

type bearer struct {
	token string
	next  http.RoundTripper
}

func (b bearer) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("Authorization", "Bearer "+b.token)
	return b.next.RoundTrip(r)
}
