package toolbox

import (
	"encoding/json"

	"github.com/Subconscious-ai/ghostshell/pkg/handlers"
)

// Tool is a named handler with the JSON Schema of its arguments.
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Handler     handlers.Func
}

// Middleware wraps the handler of the named tool, returning a handler with
// added behaviour.
type Middleware func(name string, next handlers.Func) handlers.Func
