package catalog_test

import (
	"encoding/json"
	"testing"

	"github.com/Subconscious-ai/ghostshell/pkg/apiclient"
	"github.com/Subconscious-ai/ghostshell/pkg/handlers"
	"github.com/Subconscious-ai/ghostshell/pkg/tools/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var expectedNames = []string{
	"check_causality",
	"create_experiment",
	"generate_attributes_levels",
	"generate_personas",
	"get_amce_data",
	"get_causal_insights",
	"get_experiment_personas",
	"get_experiment_results",
	"get_experiment_status",
	"get_population_stats",
	"get_run_artifacts",
	"get_run_details",
	"list_experiments",
	"update_run_config",
	"validate_population",
}

func TestToolBox_HasAllTools(t *testing.T) {
	svc := handlers.New(apiclient.New("http://127.0.0.1:0", nil), handlers.Options{})
	tb := catalog.ToolBox(svc)

	assert.Equal(t, expectedNames, tb.Names())
}

func TestTools_SchemasAreObjects(t *testing.T) {
	svc := handlers.New(apiclient.New("http://127.0.0.1:0", nil), handlers.Options{})

	for _, tool := range catalog.Tools(svc) {
		t.Run(tool.Name, func(t *testing.T) {
			assert.NotEmpty(t, tool.Description)
			require.NotNil(t, tool.Handler)

			var s struct {
				Type       string                    `json:"type"`
				Properties map[string]map[string]any `json:"properties"`
				Required   []string                  `json:"required"`
			}
			require.NoError(t, json.Unmarshal(tool.InputSchema, &s))
			assert.Equal(t, "object", s.Type)
			for _, r := range s.Required {
				assert.Contains(t, s.Properties, r, "required field %q has no property", r)
			}
		})
	}
}
