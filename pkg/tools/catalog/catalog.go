// Package catalog defines the Subconscious AI tool set: names, descriptions
// and input schemas, bound to the handlers of a [handlers.Service].
package catalog

import (
	"encoding/json"

	"github.com/Subconscious-ai/ghostshell/pkg/handlers"
	"github.com/Subconscious-ai/ghostshell/pkg/tools/toolbox"
)

// Workflow is the recommended order of tool use, shown to clients.
var Workflow = []string{
	"1. check_causality - Validate your research question",
	"2. generate_attributes_levels - Generate experiment design",
	"3. create_experiment - Run the experiment",
	"4. get_experiment_status - Monitor progress",
	"5. get_experiment_results - Get results",
	"6. get_causal_insights - Get AI insights",
}

const runIDSchema = `{
	"type": "object",
	"properties": {
		"run_id": {"type": "string", "description": "The experiment run ID"}
	},
	"required": ["run_id"]
}`

// Tools returns the full tool set bound to svc.
func Tools(svc *handlers.Service) []toolbox.Tool {
	return []toolbox.Tool{
		// Ideation.
		{
			Name: "check_causality",
			Description: "Check if a research question (why_prompt) is causal. " +
				"A causal question asks about factors that influence an outcome. " +
				"Example: 'What factors influence consumer preference for electric vehicles?' " +
				"Returns whether the question is causal and suggestions for improvement if not. " +
				"Run this first before creating an experiment.",
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"why_prompt": {"type": "string", "description": "The research question to check for causality"},
					"llm_model": {"type": "string", "description": "LLM model to use for analysis", "enum": ["sonnet", "gpt4", "haiku"], "default": "sonnet"}
				},
				"required": ["why_prompt"]
			}`),
			Handler: svc.CheckCausality,
		},
		{
			Name: "generate_attributes_levels",
			Description: "Generate attributes and levels for a conjoint experiment based on the research question. " +
				"Attributes are the factors being tested (e.g., price, brand, features). " +
				"Levels are the specific values for each attribute (e.g., $10, $20, $30 for price). " +
				"This is required before creating an experiment.",
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"why_prompt": {"type": "string", "description": "The research question (must be causal)"},
					"country": {"type": "string", "description": "Target country for the experiment", "default": "United States"},
					"year": {"type": "string", "description": "Year context for the experiment (defaults to the current year)"},
					"attribute_count": {"type": "integer", "description": "Number of attributes to generate (2-10)", "default": 5, "minimum": 2, "maximum": 10},
					"level_count": {"type": "integer", "description": "Number of levels per attribute (2-10)", "default": 4, "minimum": 2, "maximum": 10},
					"llm_model": {"type": "string", "description": "LLM model to use", "enum": ["sonnet", "gpt4", "haiku"], "default": "sonnet"}
				},
				"required": ["why_prompt"]
			}`),
			Handler: svc.GenerateAttributesLevels,
		},

		// Population.
		{
			Name: "validate_population",
			Description: "Validate a target population configuration before running an experiment. " +
				"Checks census data availability and population parameters.",
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"country": {"type": "string", "description": "Target country", "default": "United States of America (USA)"},
					"target_population": {"type": "object", "description": "Demographic constraints (age, gender, racial_group, education_level, household_income, number_of_children)"}
				}
			}`),
			Handler: svc.ValidatePopulation,
		},
		{
			Name: "get_population_stats",
			Description: "Get statistical information about a country's population. " +
				"Includes demographic breakdowns and census data summaries.",
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"country": {"type": "string", "description": "Target country", "default": "United States of America (USA)"}
				}
			}`),
			Handler: svc.GetPopulationStats,
		},

		// Experiments.
		{
			Name: "create_experiment",
			Description: "Create and run a new conjoint experiment. " +
				"The experiment will be queued for execution and run asynchronously. " +
				"Returns a run ID to track progress. " +
				"IMPORTANT: Run check_causality and generate_attributes_levels first!",
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"why_prompt": {"type": "string", "description": "The causal research question (e.g., 'What factors influence consumer preference for electric vehicles?')"},
					"country": {"type": "string", "description": "Target country", "default": "United States"},
					"state": {"type": "string", "description": "Target US state (optional)"},
					"attribute_count": {"type": "integer", "description": "Number of attributes (2-10)", "default": 5, "minimum": 2, "maximum": 10},
					"level_count": {"type": "integer", "description": "Number of levels per attribute (2-10)", "default": 4, "minimum": 2, "maximum": 10},
					"confidence_level": {"type": "string", "enum": ["Low", "Reasonable", "High"], "default": "Low"},
					"is_private": {"type": "boolean", "description": "Make experiment private", "default": false},
					"expr_llm_model": {"type": "string", "description": "LLM model for experiment", "enum": ["sonnet", "gpt4", "haiku"], "default": "sonnet"},
					"pre_cooked_attributes_and_levels_lookup": {"type": "array", "description": "Pre-defined attributes and levels from generate_attributes_levels"}
				},
				"required": ["why_prompt"]
			}`),
			Handler: svc.CreateExperiment,
		},
		{
			Name: "get_experiment_status",
			Description: "Get the current status of an experiment run. " +
				"Returns status (running, completed, failed) and progress information.",
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"run_id": {"type": "string", "description": "The experiment run ID (wandb_run_id)"}
				},
				"required": ["run_id"]
			}`),
			Handler: svc.GetExperimentStatus,
		},
		{
			Name: "get_experiment_results",
			Description: "Get comprehensive results from a completed experiment. " +
				"Includes AMCE (Average Marginal Component Effects), insights, and visualizations.",
			InputSchema: schema(runIDSchema),
			Handler:     svc.GetExperimentResults,
		},
		{
			Name: "list_experiments",
			Description: "List all experiments for the authenticated user. " +
				"Returns experiment names, IDs, status, and creation dates.",
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"limit": {"type": "integer", "description": "Maximum number to return", "default": 20, "minimum": 1, "maximum": 100}
				}
			}`),
			Handler: svc.ListExperiments,
		},

		// Runs.
		{
			Name: "get_run_details",
			Description: "Get detailed information about a specific experiment run. " +
				"Includes configuration, status, metrics, and metadata.",
			InputSchema: schema(runIDSchema),
			Handler:     svc.GetRunDetails,
		},
		{
			Name: "get_run_artifacts",
			Description: "Get artifacts from a completed experiment run. " +
				"Returns download URLs for CSV files, visualizations, and other artifacts.",
			InputSchema: schema(runIDSchema),
			Handler:     svc.GetRunArtifacts,
		},
		{
			Name: "update_run_config",
			Description: "Update configuration for an experiment run. " +
				"Can update metadata, tags, and other configuration values.",
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"run_id": {"type": "string", "description": "The experiment run ID"},
					"config": {"type": "object", "description": "Configuration updates to apply"}
				},
				"required": ["run_id"]
			}`),
			Handler: svc.UpdateRunConfig,
		},

		// Personas.
		{
			Name:        "generate_personas",
			Description: "Generate synthetic personas for an experiment run.",
			InputSchema: schema(`{
				"type": "object",
				"properties": {
					"run_id": {"type": "string", "description": "The experiment run ID"},
					"count": {"type": "integer", "description": "Number of personas to generate", "default": 5, "minimum": 1, "maximum": 100}
				},
				"required": ["run_id"]
			}`),
			Handler: svc.GeneratePersonas,
		},
		{
			Name: "get_experiment_personas",
			Description: "Retrieve synthetic personas generated for a specific experiment. " +
				"Returns persona descriptions and demographics.",
			InputSchema: schema(runIDSchema),
			Handler:     svc.GetExperimentPersonas,
		},

		// Analytics.
		{
			Name: "get_amce_data",
			Description: "Get Average Marginal Component Effect (AMCE) data from experiment results. " +
				"AMCE shows the average effect of each attribute level on choice probability.",
			InputSchema: schema(runIDSchema),
			Handler:     svc.GetAMCEData,
		},
		{
			Name: "get_causal_insights",
			Description: "Get AI-generated causal insights from experiment results. " +
				"Returns natural-language causal statements about what drives choice.",
			InputSchema: schema(runIDSchema),
			Handler:     svc.GetCausalInsights,
		},
	}
}

// ToolBox returns a ToolBox holding the full tool set bound to svc.
func ToolBox(svc *handlers.Service) *toolbox.ToolBox {
	tb := toolbox.New()
	tb.Register(Tools(svc)...)
	return tb
}

// schema compacts a literal JSON Schema. It panics on malformed input,
// which can only come from a typo in this file.
func schema(s string) json.RawMessage {
	var v map[string]any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		panic("catalog: invalid schema: " + err.Error())
	}
	b, err := json.Marshal(v)
	if err != nil {
		panic("catalog: invalid schema: " + err.Error())
	}
	return b
}
