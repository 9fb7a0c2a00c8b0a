package toolbox

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/Subconscious-ai/ghostshell/pkg/handlers"
	"github.com/Subconscious-ai/ghostshell/pkg/token"
	"github.com/google/uuid"
)

// --- Recovery middleware ---

// Recovery returns a Middleware that catches handler panics and converts
// them into an unknown_error result.
func Recovery(log *slog.Logger) Middleware {
	return func(name string, next handlers.Func) handlers.Func {
		return func(ctx context.Context, args handlers.Args, tp token.Provider) (res handlers.Result) {
			defer func() {
				if r := recover(); r != nil {
					log.ErrorContext(ctx, "tool panicked",
						"tool", name,
						"panic", r,
						"stack", string(debug.Stack()),
					)
					res = handlers.Fail(handlers.CodeUnknown, fmt.Sprintf("tool %s panicked: %v", name, r))
				}
			}()

			return next(ctx, args, tp)
		}
	}
}

// --- Logger middleware ---

// Logger returns a Middleware that logs tool start, duration and outcome
// under a per-call id.
func Logger(log *slog.Logger) Middleware {
	return func(name string, next handlers.Func) handlers.Func {
		return func(ctx context.Context, args handlers.Args, tp token.Provider) handlers.Result {
			l := log.With("tool", name, "call_id", uuid.NewString())
			l.InfoContext(ctx, "tool started")

			start := time.Now()

			res := next(ctx, args, tp)

			duration := time.Since(start)

			if res.Success {
				l.InfoContext(ctx, "tool finished", "duration", duration)
			} else {
				l.WarnContext(ctx, "tool finished with error",
					"duration", duration,
					"code", res.Error,
					"message", res.Message,
				)
			}

			return res
		}
	}
}

// --- Timeout middleware ---

// Timeout returns a Middleware that bounds the whole call, retries
// included, with a deadline.
func Timeout(d time.Duration) Middleware {
	return func(_ string, next handlers.Func) handlers.Func {
		return func(ctx context.Context, args handlers.Args, tp token.Provider) handlers.Result {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			return next(ctx, args, tp)
		}
	}
}
