package handlers

import (
	"context"
	"fmt"

	"github.com/Subconscious-ai/ghostshell/pkg/token"
)

// runGetter returns a handler that GETs path (built from the run id) and
// reports the body under message.
func (s *Service) runGetter(op, prefix, suffix, listKey, message string) Func {
	return func(ctx context.Context, args Args, tp token.Provider) Result {
		runID, err := decodeRunID(args)
		if err != nil {
			return s.fail(ctx, op, err)
		}
		return s.run(ctx, tp, op, get(runPath(prefix, runID, suffix)), func(body any) Result {
			return OK(asData(body, listKey), message)
		})
	}
}

// GetRunDetails fetches configuration, status and metadata of a run.
func (s *Service) GetRunDetails(ctx context.Context, args Args, tp token.Provider) Result {
	return s.runGetter("get run details", "/api/v1", "", "result", "Retrieved run details")(ctx, args, tp)
}

// GetRunArtifacts lists downloadable artifacts of a run.
func (s *Service) GetRunArtifacts(ctx context.Context, args Args, tp token.Provider) Result {
	return s.runGetter("get run artifacts", "/api/v3", "/artifacts", "artifacts", "Retrieved run artifacts")(ctx, args, tp)
}

// GetExperimentPersonas fetches the personas generated for a run.
func (s *Service) GetExperimentPersonas(ctx context.Context, args Args, tp token.Provider) Result {
	return s.runGetter("get experiment personas", "/api/v3", "/personas", "personas", "Retrieved experiment personas")(ctx, args, tp)
}

// GetAMCEData fetches the processed Average Marginal Component Effects of
// a run.
func (s *Service) GetAMCEData(ctx context.Context, args Args, tp token.Provider) Result {
	return s.runGetter("get AMCE data", "/api/v3", "/processed/amce", "amce", "Retrieved AMCE analytics data")(ctx, args, tp)
}

type updateConfigInput struct {
	RunID  string         `json:"run_id"`
	Config map[string]any `json:"config"`
}

// UpdateRunConfig applies configuration updates to a run.
func (s *Service) UpdateRunConfig(ctx context.Context, args Args, tp token.Provider) Result {
	const op = "update run config"

	var in updateConfigInput
	if err := args.Decode(&in); err != nil {
		return s.fail(ctx, op, err)
	}
	if err := required("run_id", in.RunID); err != nil {
		return s.fail(ctx, op, err)
	}
	if in.Config == nil {
		in.Config = map[string]any{}
	}

	return s.run(ctx, tp, op, post(runPath("/api/v1", in.RunID, "/config"), in.Config), func(body any) Result {
		return OK(asData(body, "result"), "Run configuration updated")
	})
}

type personasInput struct {
	RunID string `json:"run_id"`
	Count *int   `json:"count"`
}

// GeneratePersonas asks the backend to synthesize personas for a run.
func (s *Service) GeneratePersonas(ctx context.Context, args Args, tp token.Provider) Result {
	const op = "generate personas"

	var in personasInput
	if err := args.Decode(&in); err != nil {
		return s.fail(ctx, op, err)
	}
	if err := required("run_id", in.RunID); err != nil {
		return s.fail(ctx, op, err)
	}
	count, err := intIn("count", in.Count, 5, 1, 100)
	if err != nil {
		return s.fail(ctx, op, err)
	}

	req := post(runPath("/api/v3", in.RunID, "/generate/personas"), map[string]any{"count": count})

	return s.run(ctx, tp, op, req, func(body any) Result {
		n := count
		if l, ok := body.([]any); ok {
			n = len(l)
		}
		return OK(asData(body, "personas"), fmt.Sprintf("Generated %d personas", n))
	})
}

// GetCausalInsights generates the natural-language causal statements of
// a finished run.
func (s *Service) GetCausalInsights(ctx context.Context, args Args, tp token.Provider) Result {
	const op = "get causal insights"

	runID, err := decodeRunID(args)
	if err != nil {
		return s.fail(ctx, op, err)
	}

	req := post(runPath("/api/v3", runID, "/generate/causal-sentences"), map[string]any{})

	return s.run(ctx, tp, op, req, func(body any) Result {
		sentences := causalSentences(body)
		return OK(map[string]any{"causal_statements": sentences},
			fmt.Sprintf("Generated %d causal insights", len(sentences)))
	})
}

// causalSentences extracts statements from either a list of
// {"sentence": ...} items or a {"causal_sentences"|"sentences": [...]}
// object.
func causalSentences(body any) []string {
	var items []any
	switch v := body.(type) {
	case []any:
		items = v
	case map[string]any:
		for _, k := range []string{"causal_sentences", "sentences"} {
			if l, ok := v[k].([]any); ok && len(l) > 0 {
				items = l
				break
			}
		}
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			out = append(out, v)
		case map[string]any:
			if s, ok := v["sentence"].(string); ok {
				out = append(out, s)
			} else {
				out = append(out, fmt.Sprint(v))
			}
		default:
			out = append(out, fmt.Sprint(v))
		}
	}
	return out
}
