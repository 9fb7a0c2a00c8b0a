package handlers

import (
	"encoding/json"
	"fmt"

	"github.com/Subconscious-ai/ghostshell/pkg/apierror"
)

// Stable failure codes carried in Result.Error.
const (
	CodeAuth          = "auth_error"
	CodeAuthorization = "authorization_error"
	CodeNotFound      = "not_found"
	CodeValidation    = "validation_error"
	CodeRateLimit     = "rate_limit"
	CodeServer        = "server_error"
	CodeNetwork       = "network_error"
	CodeUnknown       = "unknown_error"
)

// Result is the uniform outcome of a tool invocation. Exactly one of Data
// and Error is set; build values with OK or Fail.
type Result struct {
	Success bool
	Data    map[string]any
	Error   string
	Message string
}

// OK returns a successful result. A nil data map becomes an empty one.
func OK(data map[string]any, message string) Result {
	if data == nil {
		data = map[string]any{}
	}
	if message == "" {
		message = "OK"
	}
	return Result{Success: true, Data: data, Message: message}
}

// Fail returns a failed result with the given code.
func Fail(code, message string) Result {
	if code == "" {
		code = CodeUnknown
	}
	if message == "" {
		message = code
	}
	return Result{Error: code, Message: message}
}

type okJSON struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data"`
	Message string         `json:"message"`
}

type failJSON struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// MarshalJSON emits {"success","data","message"} or
// {"success","error","message"}; the absent side is omitted.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Success {
		return json.Marshal(okJSON{Success: true, Data: r.Data, Message: r.Message})
	}
	return json.Marshal(failJSON{Error: r.Error, Message: r.Message})
}

// UnmarshalJSON accepts the shape produced by MarshalJSON.
func (r *Result) UnmarshalJSON(b []byte) error {
	var w struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
		Error   string         `json:"error"`
		Message string         `json:"message"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	if w.Success {
		*r = OK(w.Data, w.Message)
	} else {
		*r = Fail(w.Error, w.Message)
	}
	return nil
}

// FromError translates a failure into a Result. op names the operation in
// words ("list experiments") and appears in messages that would otherwise
// lack context.
func FromError(err error, op string) Result {
	e, ok := apierror.As(err)
	if !ok {
		return Fail(CodeUnknown, fmt.Sprintf("Failed to %s: %v", op, err))
	}

	switch e.Kind {
	case apierror.Authentication:
		if e.StatusCode == 0 && e.Message != "" {
			// Local token failure: the provider's message tells the user what to set.
			return Fail(CodeAuth, e.Message)
		}
		return Fail(CodeAuth, "Token invalid or expired. Please refresh your token.")
	case apierror.Authorization:
		return Fail(CodeAuthorization, "Access denied. You don't have permission for this resource.")
	case apierror.NotFound:
		return Fail(CodeNotFound, fmt.Sprintf("Resource not found. Could not %s: %s", op, e.Message))
	case apierror.Validation:
		return Fail(CodeValidation, e.Message)
	case apierror.RateLimit:
		return Fail(CodeRateLimit, "Too many requests. Please wait and try again.")
	case apierror.Server:
		return Fail(CodeServer, "Backend service temporarily unavailable. Please try again.")
	case apierror.Network:
		return Fail(CodeNetwork, e.Error())
	default:
		return Fail(CodeUnknown, fmt.Sprintf("Failed to %s: %v", op, e))
	}
}
