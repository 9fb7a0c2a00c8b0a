package handlers

import (
	"context"
	"net/http"
	"net/url"

	"github.com/Subconscious-ai/ghostshell/pkg/apiclient"
	"github.com/Subconscious-ai/ghostshell/pkg/token"
)

// defaultPopulationCountry is the backend's canonical name for the US.
const defaultPopulationCountry = "United States of America (USA)"

type populationInput struct {
	Country          string         `json:"country"`
	TargetPopulation map[string]any `json:"target_population"`
}

// ValidatePopulation checks a target population against census data.
func (s *Service) ValidatePopulation(ctx context.Context, args Args, tp token.Provider) Result {
	const op = "validate population"

	var in populationInput
	if err := args.Decode(&in); err != nil {
		return s.fail(ctx, op, err)
	}
	if in.Country == "" {
		in.Country = defaultPopulationCountry
	}
	if in.TargetPopulation == nil {
		in.TargetPopulation = map[string]any{}
	}

	req := post("/api/v1/population/validate", map[string]any{
		"country":           in.Country,
		"target_population": in.TargetPopulation,
	})

	return s.run(ctx, tp, op, req, func(body any) Result {
		return OK(asData(body, "result"), "Population validated successfully")
	})
}

// GetPopulationStats fetches demographic statistics for a country.
func (s *Service) GetPopulationStats(ctx context.Context, args Args, tp token.Provider) Result {
	const op = "get population stats"

	var in populationInput
	if err := args.Decode(&in); err != nil {
		return s.fail(ctx, op, err)
	}
	if in.Country == "" {
		in.Country = defaultPopulationCountry
	}

	req := apiclient.Request{
		Method: http.MethodGet,
		Path:   "/api/v1/population/stats",
		Query:  url.Values{"country": {in.Country}},
	}

	return s.run(ctx, tp, op, req, func(body any) Result {
		return OK(asData(body, "stats"), "Retrieved population stats for "+in.Country)
	})
}
