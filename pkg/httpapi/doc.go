// Package httpapi is the hosted HTTP front-end. It serves server info,
// health and the tool list without authentication, and requires a bearer
// token (header or ?token= query parameter) for tool calls over REST
// (POST /api/call/{tool}), MCP over SSE (/api/sse), MCP over streamable
// HTTP (/mcp) and MCP over WebSocket (/api/ws). Every MCP session is bound
// to the token presented when it was opened.
package httpapi
