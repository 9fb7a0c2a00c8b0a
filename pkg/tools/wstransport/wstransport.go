// Package wstransport carries MCP JSON-RPC messages over a WebSocket, one
// message per text frame. [Transport] wraps a connection accepted by an HTTP
// handler; [ClientTransport] dials a server.
package wstransport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ReadLimit bounds the size of one inbound message.
const ReadLimit = 4 << 20

// Transport serves MCP over an already accepted WebSocket connection.
type Transport struct {
	Conn *websocket.Conn
}

// Connect implements mcp.Transport.
func (t *Transport) Connect(_ context.Context) (mcp.Connection, error) {
	if t.Conn == nil {
		return nil, errors.New("wstransport: nil connection")
	}
	return newConn(t.Conn, uuid.New().String()), nil
}

// ClientTransport dials an MCP server over WebSocket.
type ClientTransport struct {
	Endpoint   string       // ws://, wss://, http:// or https:// URL.
	HTTPClient *http.Client // Used for the handshake. Defaults to http.DefaultClient.
	Header     http.Header  // Extra handshake headers, e.g. Authorization.
}

// Connect implements mcp.Transport.
func (t *ClientTransport) Connect(ctx context.Context) (mcp.Connection, error) {
	ws, _, err := websocket.Dial(ctx, wsURL(t.Endpoint), &websocket.DialOptions{
		HTTPClient: t.HTTPClient,
		HTTPHeader: t.Header,
	})
	if err != nil {
		return nil, fmt.Errorf("wstransport: dial: %w", err)
	}
	return newConn(ws, ""), nil
}

// wsURL maps http(s) schemes to their WebSocket equivalents.
func wsURL(u string) string {
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u
}

type conn struct {
	ws        *websocket.Conn
	id        string
	closeOnce sync.Once
	closeErr  error
}

func newConn(ws *websocket.Conn, id string) *conn {
	ws.SetReadLimit(ReadLimit)
	return &conn{ws: ws, id: id}
}

func (c *conn) Read(ctx context.Context) (jsonrpc.Message, error) {
	typ, data, err := c.ws.Read(ctx)
	if err != nil {
		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			return nil, io.EOF
		}
		return nil, err
	}
	if typ != websocket.MessageText {
		return nil, fmt.Errorf("wstransport: unexpected %v message", typ)
	}

	msg, err := jsonrpc.DecodeMessage(data)
	if err != nil {
		return nil, fmt.Errorf("wstransport: decode: %w", err)
	}
	return msg, nil
}

func (c *conn) Write(ctx context.Context, msg jsonrpc.Message) error {
	data, err := jsonrpc.EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("wstransport: encode: %w", err)
	}
	return c.ws.Write(ctx, websocket.MessageText, data)
}

func (c *conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.ws.Close(websocket.StatusNormalClosure, "")
	})
	return c.closeErr
}

func (c *conn) SessionID() string { return c.id }
