package toolbox

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/Subconscious-ai/ghostshell/pkg/handlers"
	"github.com/Subconscious-ai/ghostshell/pkg/token"
)

// ErrToolNotFound is returned by Call for names that are not registered.
var ErrToolNotFound = errors.New("tool not found")

// ToolBox holds the registered tools and the middleware chain applied to
// every call. Register tools and middleware before serving; lookups and
// calls are then safe for concurrent use.
type ToolBox struct {
	tools map[string]Tool
	mw    []Middleware
}

// New creates a new ToolBox ready for use.
func New() *ToolBox {
	return &ToolBox{
		tools: make(map[string]Tool),
	}
}

// Register adds one or more tools to the ToolBox. If a tool with the same name
// already exists, it is replaced.
func (tb *ToolBox) Register(tools ...Tool) {
	for _, t := range tools {
		tb.tools[t.Name] = t
	}
}

// Use appends middleware. The first middleware added is the outermost.
func (tb *ToolBox) Use(mw ...Middleware) {
	tb.mw = append(tb.mw, mw...)
}

// Get returns a tool by name and a boolean indicating whether it was found.
// The returned tool's Handler is the raw handler, without middleware.
func (tb *ToolBox) Get(name string) (Tool, bool) {
	t, ok := tb.tools[name]
	return t, ok
}

// Len returns the number of registered tools.
func (tb *ToolBox) Len() int { return len(tb.tools) }

// Tools returns all registered tools sorted by name.
func (tb *ToolBox) Tools() []Tool {
	result := make([]Tool, 0, len(tb.tools))
	for _, t := range tb.tools {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Names returns the registered tool names sorted.
func (tb *ToolBox) Names() []string {
	names := make([]string, 0, len(tb.tools))
	for _, t := range tb.Tools() {
		names = append(names, t.Name)
	}
	return names
}

// Filter returns a new ToolBox with only the named tools that exist here.
// Middleware is carried over.
func (tb *ToolBox) Filter(names []string) *ToolBox {
	out := New()
	out.mw = append(out.mw, tb.mw...)
	for _, n := range names {
		if t, ok := tb.tools[n]; ok {
			out.tools[n] = t
		}
	}
	return out
}

// Handler returns the named tool's handler wrapped in the middleware chain.
func (tb *ToolBox) Handler(name string) (handlers.Func, bool) {
	t, ok := tb.tools[name]
	if !ok {
		return nil, false
	}

	h := t.Handler
	for i := len(tb.mw) - 1; i >= 0; i-- {
		h = tb.mw[i](name, h)
	}
	return h, true
}

// Call runs the named tool through the middleware chain. The only error is
// ErrToolNotFound; handler failures are reported in the Result.
func (tb *ToolBox) Call(ctx context.Context, name string, args handlers.Args, tp token.Provider) (handlers.Result, error) {
	h, ok := tb.Handler(name)
	if !ok {
		return handlers.Result{}, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	if args == nil {
		args = handlers.Args{}
	}
	return h(ctx, args, tp), nil
}
