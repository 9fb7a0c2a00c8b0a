// Package tools exposes the Subconscious AI handlers as MCP tools.
//
// It is organized into sub-packages:
//   - [github.com/Subconscious-ai/ghostshell/pkg/tools/toolbox]: Tool type, ToolBox registry and call middleware
//   - [github.com/Subconscious-ai/ghostshell/pkg/tools/catalog]: the fifteen tools with their schemas, bound to a handlers.Service
//   - [github.com/Subconscious-ai/ghostshell/pkg/tools/mcpserver]: MCP server over stdio or any SDK transport
//   - [github.com/Subconscious-ai/ghostshell/pkg/tools/mcpclient]: MCP client for hosted servers (SSE, streamable HTTP, WebSocket)
//   - [github.com/Subconscious-ai/ghostshell/pkg/tools/wstransport]: MCP transport over a WebSocket connection
//
// The toolbox sub-package is the foundation layer. mcpserver and mcpclient
// are thin wrappers around the official MCP Go SDK
// (github.com/modelcontextprotocol/go-sdk) and depend on toolbox for the
// Tool type.
package tools
