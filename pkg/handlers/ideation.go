package handlers

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Subconscious-ai/ghostshell/pkg/token"
)

type causalityInput struct {
	WhyPrompt string `json:"why_prompt"`
	LLMModel  string `json:"llm_model"`
}

// CheckCausality asks the backend whether a research question is causal.
func (s *Service) CheckCausality(ctx context.Context, args Args, tp token.Provider) Result {
	const op = "check causality"

	var in causalityInput
	if err := args.Decode(&in); err != nil {
		return s.fail(ctx, op, err)
	}
	if err := required("why_prompt", in.WhyPrompt); err != nil {
		return s.fail(ctx, op, err)
	}

	req := post("/api/v2/copilot/causality", map[string]any{
		"why_prompt": in.WhyPrompt,
		"llm_model":  resolveModel(in.LLMModel),
	})

	return s.run(ctx, tp, op, req, func(body any) Result {
		data := asData(body, "result")
		if causal, _ := data["is_causal"].(bool); causal {
			return OK(data, "Question is causal")
		}
		return OK(data, "Question is NOT causal - see suggestions")
	})
}

type attributesLevelsInput struct {
	WhyPrompt      string `json:"why_prompt"`
	Country        string `json:"country"`
	Year           text   `json:"year"`
	AttributeCount *int   `json:"attribute_count"`
	LevelCount     *int   `json:"level_count"`
	LLMModel       string `json:"llm_model"`
}

// GenerateAttributesLevels generates the conjoint design (attributes and
// their levels) for a research question.
func (s *Service) GenerateAttributesLevels(ctx context.Context, args Args, tp token.Provider) Result {
	const op = "generate attributes and levels"

	var in attributesLevelsInput
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

	country := in.Country
	if country == "" {
		country = "United States"
	}
	year := string(in.Year)
	if year == "" {
		year = strconv.Itoa(s.now().Year())
	}

	req := post("/api/v1/attributes-levels-claude", map[string]any{
		"why_prompt":      in.WhyPrompt,
		"country":         country,
		"year":            year,
		"attribute_count": attrs,
		"level_count":     levels,
		"llm_model":       resolveModel(in.LLMModel),
	})

	return s.run(ctx, tp, op, req, func(body any) Result {
		var list []any
		switch v := body.(type) {
		case []any:
			list = v
		case map[string]any:
			list, _ = v["attributes_levels"].([]any)
		}
		if list == nil {
			list = []any{}
		}
		return OK(map[string]any{"attributes_levels": list},
			fmt.Sprintf("Generated %d attributes with levels", len(list)))
	})
}
