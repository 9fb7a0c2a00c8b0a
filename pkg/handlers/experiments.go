package handlers

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Subconscious-ai/ghostshell/pkg/apierror"
	"github.com/Subconscious-ai/ghostshell/pkg/token"
)

// DefaultListLimit is the number of experiments list_experiments returns
// when no limit is given.
const DefaultListLimit = 20

type createExperimentInput struct {
	WhyPrompt       string `json:"why_prompt"`
	Country         string `json:"country"`
	State           string `json:"state"`
	AttributeCount  *int   `json:"attribute_count"`
	LevelCount      *int   `json:"level_count"`
	IsPrivate       bool   `json:"is_private"`
	ExprLLMModel    string `json:"expr_llm_model"`
	ConfidenceLevel string `json:"confidence_level"`
	PreCooked       []any  `json:"pre_cooked_attributes_and_levels_lookup"`
}

// defaultTargetPopulation is the broad US adult population used for every
// experiment created through the tools. State is left out: the backend
// expects a single value there and defaults to all states.
func defaultTargetPopulation() map[string]any {
	return map[string]any{
		"age":    []any{18, 75},
		"gender": []any{"Male", "Female"},
		"racial_group": []any{
			"White", "African American", "Asian or Pacific Islander", "Mixed race", "Other race",
		},
		"education_level": []any{
			"High School Diploma", "Some College", "Bachelors", "Masters", "PhD",
		},
		"household_income":   []any{0, 300000},
		"number_of_children": []any{"0", "1", "2", "3", "4+"},
	}
}

// CreateExperiment queues a conjoint experiment for asynchronous execution.
func (s *Service) CreateExperiment(ctx context.Context, args Args, tp token.Provider) Result {
	const op = "create experiment"

	var in createExperimentInput
	if err := args.Decode(&in); err != nil {
		return s.fail(ctx, op, err)
	}
	if err := required("why_prompt", in.WhyPrompt); err != nil {
		return s.fail(ctx, op, err)
	}
	attrs, err := intIn("attribute_count", in.AttributeCount, 5, 2, 10)
	if err != nil {
		return s.fail(ctx, op, err)
	}
	levels, err := intIn("level_count", in.LevelCount, 4, 2, 10)
	if err != nil {
		return s.fail(ctx, op, err)
	}
	if in.ConfidenceLevel == "" {
		in.ConfidenceLevel = "Low"
	}
	if err := oneOf("confidence_level", in.ConfidenceLevel, "Low", "Reasonable", "High"); err != nil {
		return s.fail(ctx, op, err)
	}

	country := in.Country
	if country == "" || country == "United States" {
		country = defaultPopulationCountry
	}

	payload := map[string]any{
		"why_prompt":                    in.WhyPrompt,
		"country":                       country,
		"attribute_count":               attrs,
		"level_count":                   levels,
		"is_private":                    in.IsPrivate,
		"expr_llm_model":                resolveModel(in.ExprLLMModel),
		"experiment_type":               "conjoint",
		"confidence_level":              in.ConfidenceLevel,
		"year":                          strconv.Itoa(s.now().Year()),
		"target_population":             defaultTargetPopulation(),
		"latent_variables":              true,
		"add_neither_option":            true,
		"binary_choice":                 false,
		"match_population_distribution": false,
	}
	if in.State != "" {
		payload["state"] = in.State
	}
	if len(in.PreCooked) > 0 {
		lookup, err := normalizeAttributes(in.PreCooked)
		if err != nil {
			return s.fail(ctx, op, err)
		}
		payload["pre_cooked_attributes_and_levels_lookup"] = lookup
	}

	return s.run(ctx, tp, op, post("/api/v1/experiments", payload), func(body any) Result {
		data := asData(body, "result")
		return OK(data, "Experiment created with run_id: "+firstString(data, "unknown", "run_id", "id", "wandb_run_id"))
	})
}

// normalizeAttributes converts pre-cooked attributes into the backend's
// [[name, [level, ...]], ...] form. Accepted items are
// {"attribute": name, "levels": [...]}, [name, [levels...]] and the flat
// [name, level, level, ...]. Other items are dropped.
func normalizeAttributes(items []any) ([]any, error) {
	out := make([]any, 0, len(items))
	for i, item := range items {
		switch v := item.(type) {
		case map[string]any:
			name, ok := v["attribute"]
			if !ok {
				return nil, apierror.Newf(apierror.Validation,
					"pre_cooked_attributes_and_levels_lookup[%d]: missing attribute", i)
			}
			levels, ok := v["levels"].([]any)
			if !ok {
				return nil, apierror.Newf(apierror.Validation,
					"pre_cooked_attributes_and_levels_lookup[%d]: levels must be a list", i)
			}
			out = append(out, []any{name, levels})
		case []any:
			if len(v) < 2 {
				continue
			}
			if _, nested := v[1].([]any); nested {
				out = append(out, v)
			} else {
				out = append(out, []any{v[0], v[1:]})
			}
		}
	}
	return out, nil
}

// GetExperimentStatus reports the state of a run.
func (s *Service) GetExperimentStatus(ctx context.Context, args Args, tp token.Provider) Result {
	const op = "get experiment status"

	runID, err := decodeRunID(args)
	if err != nil {
		return s.fail(ctx, op, err)
	}

	return s.run(ctx, tp, op, get(runPath("/api/v1", runID, "")), func(body any) Result {
		data := asData(body, "result")
		return OK(data, "Experiment status: "+firstString(data, "unknown", "status", "state"))
	})
}

// GetExperimentResults fetches the full record of a run, results included.
func (s *Service) GetExperimentResults(ctx context.Context, args Args, tp token.Provider) Result {
	const op = "get experiment results"

	runID, err := decodeRunID(args)
	if err != nil {
		return s.fail(ctx, op, err)
	}

	return s.run(ctx, tp, op, get(runPath("/api/v1", runID, "")), func(body any) Result {
		return OK(asData(body, "result"), "Retrieved experiment results")
	})
}

type listInput struct {
	Limit *int `json:"limit"`
}

// ListExperiments lists the caller's runs, newest first as the backend
// returns them, truncated to limit. The list keeps the key it arrived
// under ("runs" or "experiments"); a bare list is reported as "runs".
func (s *Service) ListExperiments(ctx context.Context, args Args, tp token.Provider) Result {
	const op = "list experiments"

	var in listInput
	if err := args.Decode(&in); err != nil {
		return s.fail(ctx, op, err)
	}
	limit, err := intIn("limit", in.Limit, DefaultListLimit, 1, 100)
	if err != nil {
		return s.fail(ctx, op, err)
	}

	return s.run(ctx, tp, op, get("/api/v1/runs/all"), func(body any) Result {
		key := "runs"
		var runs []any
		switch v := body.(type) {
		case []any:
			runs = v
		case map[string]any:
			for _, k := range []string{"runs", "experiments"} {
				if l, ok := v[k].([]any); ok {
					key, runs = k, l
					break
				}
			}
		}
		if runs == nil {
			runs = []any{}
		}
		if len(runs) > limit {
			runs = runs[:limit]
		}
		return OK(map[string]any{key: runs, "count": len(runs)},
			fmt.Sprintf("Found %d experiments", len(runs)))
	})
}

// firstString returns the first non-empty value among keys, rendered as a
// string, or def.
func firstString(data map[string]any, def string, keys ...string) string {
	for _, k := range keys {
		switch v := data[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case nil:
		default:
			return fmt.Sprint(v)
		}
	}
	return def
}
