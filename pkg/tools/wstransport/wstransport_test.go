package wstransport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWSURL(t *testing.T) {
	assert.Equal(t, "wss://h/api/ws", wsURL("https://h/api/ws"))
	assert.Equal(t, "ws://h:1/api/ws", wsURL("http://h:1/api/ws"))
	assert.Equal(t, "ws://h/x", wsURL("ws://h/x"))
}

func TestTransport_NilConn(t *testing.T) {
	_, err := (&Transport{}).Connect(context.Background())
	assert.Error(t, err)
}

type addInput struct {
	A int `json:"a"`
	B int `json:"b"`
}

// TestRoundTrip runs an SDK server and client over a real WebSocket.
func TestRoundTrip(t *testing.T) {
	server := mcp.NewServer(&mcp.Implementation{Name: "ws-test", Version: "1.0.0"}, nil)
	server.AddTool(&mcp.Tool{
		Name:        "add",
		Description: "Add two numbers",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"a":{"type":"integer"},"b":{"type":"integer"}}}`),
	}, func(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var in addInput
		if err := json.Unmarshal(req.Params.Arguments, &in); err != nil {
			return nil, err
		}
		b, _ := json.Marshal(in.A + in.B)
		return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(b)}}}, nil
	})

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		_ = server.Run(r.Context(), &Transport{Conn: ws})
	}))
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := mcp.NewClient(&mcp.Implementation{Name: "ws-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, &ClientTransport{Endpoint: ts.URL}, nil)
	require.NoError(t, err)
	defer func() { _ = session.Close() }()

	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "add", Arguments: map[string]any{"a": 2, "b": 3}})
	require.NoError(t, err)
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Equal(t, "5", tc.Text)
}
