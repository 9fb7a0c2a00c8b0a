package toolbox

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Subconscious-ai/ghostshell/pkg/apiclient"
	"github.com/Subconscious-ai/ghostshell/pkg/handlers"
	"github.com/Subconscious-ai/ghostshell/pkg/retry"
	"github.com/Subconscious-ai/ghostshell/pkg/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoHandler(_ context.Context, args handlers.Args, _ token.Provider) handlers.Result {
	return handlers.OK(args, "echoed")
}

func failHandler(_ context.Context, _ handlers.Args, _ token.Provider) handlers.Result {
	return handlers.Fail(handlers.CodeNotFound, "gone")
}

func panicHandler(_ context.Context, _ handlers.Args, _ token.Provider) handlers.Result {
	panic("boom")
}

func newEchoTool(name string) Tool {
	return Tool{
		Name:        name,
		Description: "Echoes input",
		InputSchema: json.RawMessage(`{"type":"object"}`),
		Handler:     echoHandler,
	}
}

func TestNew(t *testing.T) {
	tb := New()
	assert.NotNil(t, tb)
	assert.Empty(t, tb.Tools())
	assert.Equal(t, 0, tb.Len())
}

func TestRegisterAndGet(t *testing.T) {
	tb := New()
	tb.Register(newEchoTool("echo"))

	got, ok := tb.Get("echo")
	assert.True(t, ok)
	assert.Equal(t, "echo", got.Name)

	_, ok = tb.Get("missing")
	assert.False(t, ok)
}

func TestRegisterReplace(t *testing.T) {
	tb := New()
	tb.Register(Tool{Name: "tool", Description: "original", Handler: echoHandler})
	tb.Register(Tool{Name: "tool", Description: "replaced", Handler: echoHandler})

	got, ok := tb.Get("tool")
	require.True(t, ok)
	assert.Equal(t, "replaced", got.Description)
	assert.Equal(t, 1, tb.Len())
}

func TestToolsSorted(t *testing.T) {
	tb := New()
	tb.Register(newEchoTool("c"), newEchoTool("a"), newEchoTool("b"))

	assert.Equal(t, []string{"a", "b", "c"}, tb.Names())
	assert.Equal(t, "a", tb.Tools()[0].Name)
}

func TestFilterSubset(t *testing.T) {
	tb := New()
	tb.Register(newEchoTool("a"), newEchoTool("b"), newEchoTool("c"))

	filtered := tb.Filter([]string{"a", "c", "zzz"})

	assert.Equal(t, []string{"a", "c"}, filtered.Names())
	assert.Equal(t, 3, tb.Len())
}

func TestCallSuccess(t *testing.T) {
	tb := New()
	tb.Register(newEchoTool("echo"))

	res, err := tb.Call(context.Background(), "echo", handlers.Args{"msg": "hi"}, token.Static("t"))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "hi", res.Data["msg"])
}

func TestCallNilArgs(t *testing.T) {
	tb := New()
	tb.Register(newEchoTool("echo"))

	res, err := tb.Call(context.Background(), "echo", nil, token.Static("t"))
	require.NoError(t, err)
	assert.NotNil(t, res.Data)
}

func TestCallNotFound(t *testing.T) {
	tb := New()

	_, err := tb.Call(context.Background(), "missing", nil, token.Static("t"))
	require.ErrorIs(t, err, ErrToolNotFound)
	assert.Contains(t, err.Error(), "missing")
}

func TestMiddlewareOrder(t *testing.T) {
	var order []string
	trace := func(label string) Middleware {
		return func(_ string, next handlers.Func) handlers.Func {
			return func(ctx context.Context, args handlers.Args, tp token.Provider) handlers.Result {
				order = append(order, label)
				return next(ctx, args, tp)
			}
		}
	}

	tb := New()
	tb.Register(newEchoTool("echo"))
	tb.Use(trace("outer"), trace("inner"))

	_, err := tb.Call(context.Background(), "echo", nil, token.Static("t"))
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestRecovery(t *testing.T) {
	tb := New()
	tb.Register(Tool{Name: "bad", Handler: panicHandler})
	tb.Use(Recovery(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))

	res, err := tb.Call(context.Background(), "bad", nil, token.Static("t"))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, handlers.CodeUnknown, res.Error)
	assert.Contains(t, res.Message, "boom")
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	tb := New()
	tb.Register(newEchoTool("echo"), Tool{Name: "fail", Handler: failHandler})
	tb.Use(Logger(log))

	_, err := tb.Call(context.Background(), "echo", nil, token.Static("t"))
	require.NoError(t, err)
	_, err = tb.Call(context.Background(), "fail", nil, token.Static("t"))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "tool started")
	assert.Contains(t, out, "tool=echo")
	assert.Contains(t, out, "call_id=")
	assert.Contains(t, out, "tool finished with error")
	assert.Contains(t, out, "code=not_found")
}

func TestTimeout(t *testing.T) {
	var deadline time.Time
	tb := New()
	tb.Register(Tool{Name: "slow", Handler: func(ctx context.Context, _ handlers.Args, _ token.Provider) handlers.Result {
		deadline, _ = ctx.Deadline()
		return handlers.OK(nil, "done")
	}})
	tb.Use(Timeout(time.Minute))

	_, err := tb.Call(context.Background(), "slow", nil, token.Static("t"))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
}

func TestTimeout_ExpiredDeadlineIsNetworkError(t *testing.T) {
	release := make(chan struct{})
	api := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-release
	}))
	defer api.Close()
	defer close(release)

	svc := handlers.New(apiclient.New(api.URL, nil), handlers.Options{
		Retry:  retry.New(retry.Opts{MaxRetries: -1}),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	tb := New()
	tb.Register(Tool{Name: "list_experiments", Handler: svc.ListExperiments})
	tb.Use(Timeout(100 * time.Millisecond))

	res, err := tb.Call(context.Background(), "list_experiments", nil, token.Static("t"))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, handlers.CodeNetwork, res.Error)
	assert.Equal(t, "call timed out", res.Message)
}
