package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/Subconscious-ai/ghostshell/pkg/apiclient"
	"github.com/Subconscious-ai/ghostshell/pkg/apierror"
	"github.com/Subconscious-ai/ghostshell/pkg/retry"
	"github.com/Subconscious-ai/ghostshell/pkg/token"
)

// Func is the signature shared by every tool handler. Handlers never
// return Go errors: every outcome is a Result.
type Func func(ctx context.Context, args Args, tp token.Provider) Result

// DefaultReadTimeout bounds GET calls, which only read stored state.
const DefaultReadTimeout = 60 * time.Second

// Options configures a Service.
type Options struct {
	Retry       *retry.Policy    // Default retry.New(retry.Opts{}).
	Logger      *slog.Logger     // Default slog.Default().
	ReadTimeout time.Duration    // Per-call timeout for GETs (default DefaultReadTimeout).
	Now         func() time.Time // Clock for default years (default time.Now).
}

// Service implements the tool handlers on top of the API client. It holds
// only read-only state and is safe for concurrent use.
type Service struct {
	client      *apiclient.Client
	retry       *retry.Policy
	log         *slog.Logger
	readTimeout time.Duration
	now         func() time.Time
}

// New creates a Service calling the backend through client.
func New(client *apiclient.Client, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Retry == nil {
		opts.Retry = retry.New(retry.Opts{Logger: opts.Logger})
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		client:      client,
		retry:       opts.Retry,
		log:         opts.Logger,
		readTimeout: opts.ReadTimeout,
		now:         opts.Now,
	}
}

// call resolves the token and performs req under the retry policy.
func (s *Service) call(ctx context.Context, tp token.Provider, req apiclient.Request) (any, error) {
	tok, err := tp.Token(ctx)
	if err != nil {
		if _, ok := apierror.As(err); !ok {
			err = &apierror.Error{Kind: apierror.Authentication, Message: err.Error(), Cause: err}
		}
		return nil, err
	}

	if req.Method == http.MethodGet && req.Timeout == 0 {
		req.Timeout = s.readTimeout
	}

	return retry.Do(ctx, s.retry, func(ctx context.Context) (any, error) {
		return s.client.Do(ctx, req, tok)
	})
}

// run performs req and hands the decoded body to ok, or translates the
// failure. op names the operation for messages and logs.
func (s *Service) run(ctx context.Context, tp token.Provider, op string, req apiclient.Request, ok func(body any) Result) Result {
	body, err := s.call(ctx, tp, req)
	if err != nil {
		return s.fail(ctx, op, err)
	}
	return ok(body)
}

func (s *Service) fail(ctx context.Context, op string, err error) Result {
	r := FromError(err, op)
	if r.Error == CodeUnknown {
		s.log.ErrorContext(ctx, "unexpected handler error", "op", op, "error", err)
	} else {
		s.log.DebugContext(ctx, "handler failed", "op", op, "code", r.Error, "error", err)
	}
	return r
}

func get(path string) apiclient.Request {
	return apiclient.Request{Method: http.MethodGet, Path: path}
}

func post(path string, body any) apiclient.Request {
	return apiclient.Request{Method: http.MethodPost, Path: path, Body: body}
}

// runPath builds a path below /runs/{id} with the id escaped.
func runPath(prefix, runID, suffix string) string {
	return prefix + "/runs/" + url.PathEscape(runID) + suffix
}

// asData shapes a decoded body into Result data. Lists are wrapped under
// listKey and scalars under "value".
func asData(body any, listKey string) map[string]any {
	switch v := body.(type) {
	case map[string]any:
		return v
	case []any:
		return map[string]any{listKey: v}
	case nil:
		return map[string]any{}
	default:
		return map[string]any{"value": v}
	}
}

// modelAliases maps the short model names accepted by the tools onto
// backend model identifiers.
var modelAliases = map[string]string{
	"sonnet": "databricks-claude-sonnet-4",
	"haiku":  "databricks-claude-sonnet-4",
	"gpt4":   "azure-openai-gpt4",
}

func resolveModel(alias string) string {
	if m, ok := modelAliases[alias]; ok {
		return m
	}
	return modelAliases["sonnet"]
}

// runIDInput is the argument shape of every run-scoped tool.
type runIDInput struct {
	RunID string `json:"run_id"`
}

func decodeRunID(args Args) (string, error) {
	var in runIDInput
	if err := args.Decode(&in); err != nil {
		return "", err
	}
	if err := required("run_id", in.RunID); err != nil {
		return "", err
	}
	return in.RunID, nil
}
