package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Subconscious-ai/ghostshell/pkg/apiclient"
	"github.com/Subconscious-ai/ghostshell/pkg/handlers"
	"github.com/Subconscious-ai/ghostshell/pkg/retry"
	"github.com/Subconscious-ai/ghostshell/pkg/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backend is a scripted fake of the REST API.
type backend struct {
	t   *testing.T
	srv *httptest.Server

	mu       sync.Mutex
	requests []recorded
	replies  []reply
}

type recorded struct {
	Method string
	Path   string // Escaped path.
	Query  string
	Auth   string
	Body   map[string]any
}

type reply struct {
	status int
	body   string
	header http.Header
}

func newBackend(t *testing.T, replies ...reply) *backend {
	t.Helper()
	b := &backend{t: t, replies: replies}
	b.srv = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *backend) serve(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	rec := recorded{
		Method: r.Method,
		Path:   r.URL.EscapedPath(),
		Query:  r.URL.RawQuery,
		Auth:   r.Header.Get("Authorization"),
	}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &rec.Body)
	}

	b.mu.Lock()
	b.requests = append(b.requests, rec)
	rep := reply{status: http.StatusOK, body: `{}`}
	if len(b.replies) > 0 {
		rep = b.replies[0]
		if len(b.replies) > 1 {
			b.replies = b.replies[1:]
		}
	}
	b.mu.Unlock()

	for k, v := range rep.header {
		w.Header()[k] = v
	}
	w.WriteHeader(rep.status)
	_, _ = w.Write([]byte(rep.body))
}

func (b *backend) calls() []recorded {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]recorded(nil), b.requests...)
}

func ok(body string) reply { return reply{status: http.StatusOK, body: body} }

func status(code int, body string) reply { return reply{status: code, body: body} }

// newService wires a service to b with recorded, instant backoff sleeps.
func newService(b *backend, sleeps *[]time.Duration) *handlers.Service {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	policy := retry.New(retry.Opts{MaxRetries: 3, BaseDelay: 10 * time.Millisecond, Logger: log})
	var mu sync.Mutex
	policy.SetSleepFunc(func(_ context.Context, d time.Duration) error {
		mu.Lock()
		defer mu.Unlock()
		if sleeps != nil {
			*sleeps = append(*sleeps, d)
		}
		return nil
	})
	policy.SetRandFunc(func() float64 { return 0.5 })

	client := apiclient.New(b.srv.URL, nil)
	client.Logger = log

	return handlers.New(client, handlers.Options{
		Retry:  policy,
		Logger: log,
		Now:    func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) },
	})
}

var tok = token.Static("test-token")

// assertInvariant checks the success/data/error exclusivity of r.
func assertInvariant(t *testing.T, r handlers.Result) {
	t.Helper()
	assert.NotEmpty(t, r.Message)
	if r.Success {
		assert.NotNil(t, r.Data)
		assert.Empty(t, r.Error)
	} else {
		assert.Nil(t, r.Data)
		assert.NotEmpty(t, r.Error)
	}
}

// --- End-to-end scenarios ---

func TestListExperiments_ScenarioA(t *testing.T) {
	b := newBackend(t, ok(`{"experiments":[{"id":"a"},{"id":"b"},{"id":"c"},{"id":"d"},{"id":"e"},{"id":"f"},{"id":"g"}]}`))
	svc := newService(b, nil)

	r := svc.ListExperiments(context.Background(), handlers.Args{"limit": 5.0}, tok)
	assertInvariant(t, r)
	require.True(t, r.Success)

	exps, isList := r.Data["experiments"].([]any)
	require.True(t, isList)
	assert.Len(t, exps, 5)
	assert.Equal(t, 5, r.Data["count"])
	assert.Equal(t, "Found 5 experiments", r.Message)

	calls := b.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, http.MethodGet, calls[0].Method)
	assert.Equal(t, "/api/v1/runs/all", calls[0].Path)
	assert.Equal(t, "Bearer test-token", calls[0].Auth)
}

func TestCreateExperiment_ScenarioB_MissingWhyPrompt(t *testing.T) {
	b := newBackend(t)
	svc := newService(b, nil)

	r := svc.CreateExperiment(context.Background(), handlers.Args{"country": "Canada"}, tok)
	assertInvariant(t, r)
	assert.Equal(t, handlers.CodeValidation, r.Error)
	assert.Contains(t, r.Message, "why_prompt")
	assert.Empty(t, b.calls())
}

func TestCheckCausality_ScenarioC_RateLimitedThenOK(t *testing.T) {
	b := newBackend(t,
		status(http.StatusTooManyRequests, ``),
		status(http.StatusTooManyRequests, ``),
		ok(`{"is_causal":true}`),
	)
	var sleeps []time.Duration
	svc := newService(b, &sleeps)

	r := svc.CheckCausality(context.Background(), handlers.Args{"why_prompt": "Why do people buy EVs?"}, tok)
	assertInvariant(t, r)
	require.True(t, r.Success)
	assert.Equal(t, true, r.Data["is_causal"])
	assert.Equal(t, "Question is causal", r.Message)

	assert.Len(t, b.calls(), 3)
	require.Len(t, sleeps, 2)
	assert.Greater(t, sleeps[1], sleeps[0])
}

func TestGetRunDetails_ScenarioD_Unauthorized(t *testing.T) {
	b := newBackend(t, status(http.StatusUnauthorized, `{"detail":"expired"}`))
	var sleeps []time.Duration
	svc := newService(b, &sleeps)

	r := svc.GetRunDetails(context.Background(), handlers.Args{"run_id": "r1"}, tok)
	assertInvariant(t, r)
	assert.Equal(t, handlers.CodeAuth, r.Error)
	assert.Equal(t, "Token invalid or expired. Please refresh your token.", r.Message)
	assert.Len(t, b.calls(), 1)
	assert.Empty(t, sleeps)
}

// --- Failure mapping ---

func TestHandlers_StatusCodes(t *testing.T) {
	tests := []struct {
		status int
		code   string
		calls  int
	}{
		{http.StatusForbidden, handlers.CodeAuthorization, 1},
		{http.StatusNotFound, handlers.CodeNotFound, 1},
		{http.StatusBadRequest, handlers.CodeValidation, 1},
		{http.StatusUnprocessableEntity, handlers.CodeValidation, 1},
		{http.StatusTooManyRequests, handlers.CodeRateLimit, 4},
		{http.StatusInternalServerError, handlers.CodeServer, 4},
		{http.StatusServiceUnavailable, handlers.CodeServer, 4},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			b := newBackend(t, status(tt.status, `{"detail":"nope"}`))
			r := newService(b, nil).GetAMCEData(context.Background(), handlers.Args{"run_id": "r1"}, tok)

			assertInvariant(t, r)
			assert.Equal(t, tt.code, r.Error)
			assert.Len(t, b.calls(), tt.calls)
		})
	}
}

func TestHandlers_ValidationMessageFromBackend(t *testing.T) {
	b := newBackend(t, status(http.StatusUnprocessableEntity, `{"detail":[{"msg":"country unsupported"}]}`))
	r := newService(b, nil).ValidatePopulation(context.Background(), handlers.Args{"country": "Atlantis"}, tok)

	assert.Equal(t, handlers.CodeValidation, r.Error)
	assert.Equal(t, "country unsupported", r.Message)
}

func TestHandlers_NetworkError(t *testing.T) {
	b := newBackend(t)
	svc := newService(b, nil)
	b.srv.Close()

	r := svc.GetExperimentStatus(context.Background(), handlers.Args{"run_id": "r1"}, tok)
	assertInvariant(t, r)
	assert.Equal(t, handlers.CodeNetwork, r.Error)
}

func TestHandlers_MissingEnvToken(t *testing.T) {
	b := newBackend(t)
	svc := newService(b, nil)
	t.Setenv("GHOSTSHELL_TEST_MISSING", "")

	r := svc.ListExperiments(context.Background(), handlers.Args{}, token.FromEnv("GHOSTSHELL_TEST_MISSING"))
	assertInvariant(t, r)
	assert.Equal(t, handlers.CodeAuth, r.Error)
	assert.Contains(t, r.Message, "GHOSTSHELL_TEST_MISSING required")
	assert.Empty(t, b.calls())
}

type failingProvider struct{}

func (failingProvider) Token(context.Context) (string, error) { return "", errors.New("vault sealed") }

func TestHandlers_ForeignTokenErrorIsAuth(t *testing.T) {
	b := newBackend(t)
	r := newService(b, nil).GetRunArtifacts(context.Background(), handlers.Args{"run_id": "r1"}, failingProvider{})

	assert.Equal(t, handlers.CodeAuth, r.Error)
	assert.Equal(t, "vault sealed", r.Message)
}

func TestHandlers_WrongArgumentType(t *testing.T) {
	b := newBackend(t)
	r := newService(b, nil).ListExperiments(context.Background(), handlers.Args{"limit": "ten"}, tok)

	assert.Equal(t, handlers.CodeValidation, r.Error)
	assert.Contains(t, r.Message, "limit")
	assert.Empty(t, b.calls())
}

func TestHandlers_RunIDRequired(t *testing.T) {
	b := newBackend(t)
	svc := newService(b, nil)

	for name, fn := range map[string]handlers.Func{
		"get_experiment_status":   svc.GetExperimentStatus,
		"get_experiment_results":  svc.GetExperimentResults,
		"get_run_details":         svc.GetRunDetails,
		"get_run_artifacts":       svc.GetRunArtifacts,
		"update_run_config":       svc.UpdateRunConfig,
		"generate_personas":       svc.GeneratePersonas,
		"get_experiment_personas": svc.GetExperimentPersonas,
		"get_amce_data":           svc.GetAMCEData,
		"get_causal_insights":     svc.GetCausalInsights,
	} {
		r := fn(context.Background(), handlers.Args{}, tok)
		assert.Equal(t, handlers.CodeValidation, r.Error, name)
		assert.Equal(t, "run_id is required", r.Message, name)
	}
	assert.Empty(t, b.calls())
}

// --- Per-tool behavior ---

func TestCheckCausality_NotCausalAndModelAlias(t *testing.T) {
	b := newBackend(t, ok(`{"is_causal":false,"suggestions":["add a why"]}`))
	r := newService(b, nil).CheckCausality(context.Background(),
		handlers.Args{"why_prompt": "EVs", "llm_model": "gpt4"}, tok)

	require.True(t, r.Success)
	assert.Equal(t, "Question is NOT causal - see suggestions", r.Message)

	calls := b.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/api/v2/copilot/causality", calls[0].Path)
	assert.Equal(t, "azure-openai-gpt4", calls[0].Body["llm_model"])
}

func TestGenerateAttributesLevels(t *testing.T) {
	b := newBackend(t, ok(`[{"attribute":"price","levels":["$10","$20"]},{"attribute":"brand","levels":["A","B"]}]`))
	r := newService(b, nil).GenerateAttributesLevels(context.Background(),
		handlers.Args{"why_prompt": "Why EVs?", "llm_model": "haiku"}, tok)

	require.True(t, r.Success)
	assert.Len(t, r.Data["attributes_levels"], 2)
	assert.Equal(t, "Generated 2 attributes with levels", r.Message)

	body := b.calls()[0].Body
	assert.Equal(t, "United States", body["country"])
	assert.Equal(t, "2026", body["year"])
	assert.EqualValues(t, 5, body["attribute_count"])
	assert.EqualValues(t, 4, body["level_count"])
	assert.Equal(t, "databricks-claude-sonnet-4", body["llm_model"])
}

func TestGenerateAttributesLevels_NumericYearAndBounds(t *testing.T) {
	b := newBackend(t, ok(`{"attributes_levels":[]}`))
	svc := newService(b, nil)

	r := svc.GenerateAttributesLevels(context.Background(),
		handlers.Args{"why_prompt": "Why?", "year": 2024.0}, tok)
	require.True(t, r.Success)
	assert.Equal(t, "2024", b.calls()[0].Body["year"])

	r = svc.GenerateAttributesLevels(context.Background(),
		handlers.Args{"why_prompt": "Why?", "attribute_count": 11.0}, tok)
	assert.Equal(t, handlers.CodeValidation, r.Error)
	assert.Len(t, b.calls(), 1)
}

func TestCreateExperiment_Payload(t *testing.T) {
	b := newBackend(t, ok(`{"run_id":"run-42"}`))
	r := newService(b, nil).CreateExperiment(context.Background(), handlers.Args{
		"why_prompt":     "Why EVs?",
		"country":        "United States",
		"state":          "California",
		"expr_llm_model": "gpt4",
		"is_private":     true,
		"pre_cooked_attributes_and_levels_lookup": []any{
			map[string]any{"attribute": "price", "levels": []any{"$10", "$20"}},
			[]any{"brand", []any{"A", "B"}},
			[]any{"color", "red", "blue"},
			[]any{"dropped"},
		},
	}, tok)

	require.True(t, r.Success)
	assert.Equal(t, "Experiment created with run_id: run-42", r.Message)

	body := b.calls()[0].Body
	assert.Equal(t, "United States of America (USA)", body["country"])
	assert.Equal(t, "California", body["state"])
	assert.Equal(t, "azure-openai-gpt4", body["expr_llm_model"])
	assert.Equal(t, "conjoint", body["experiment_type"])
	assert.Equal(t, "Low", body["confidence_level"])
	assert.Equal(t, "2026", body["year"])
	assert.Equal(t, true, body["is_private"])
	assert.Equal(t, true, body["latent_variables"])
	assert.Contains(t, body, "target_population")
	assert.Equal(t, []any{
		[]any{"price", []any{"$10", "$20"}},
		[]any{"brand", []any{"A", "B"}},
		[]any{"color", []any{"red", "blue"}},
	}, body["pre_cooked_attributes_and_levels_lookup"])
}

func TestCreateExperiment_BadConfidenceLevel(t *testing.T) {
	b := newBackend(t)
	r := newService(b, nil).CreateExperiment(context.Background(),
		handlers.Args{"why_prompt": "Why?", "confidence_level": "Absolute"}, tok)

	assert.Equal(t, handlers.CodeValidation, r.Error)
	assert.Empty(t, b.calls())
}

func TestGetExperimentStatus_EscapesRunID(t *testing.T) {
	b := newBackend(t, ok(`{"status":"running"}`))
	r := newService(b, nil).GetExperimentStatus(context.Background(), handlers.Args{"run_id": "a/b c"}, tok)

	require.True(t, r.Success)
	assert.Equal(t, "Experiment status: running", r.Message)
	assert.Equal(t, "/api/v1/runs/a%2Fb%20c", b.calls()[0].Path)
}

func TestListExperiments_BareListAndDefaultLimit(t *testing.T) {
	runs := make([]any, 30)
	for i := range runs {
		runs[i] = map[string]any{"n": i}
	}
	raw, err := json.Marshal(runs)
	require.NoError(t, err)

	b := newBackend(t, ok(string(raw)))
	r := newService(b, nil).ListExperiments(context.Background(), nil, tok)

	require.True(t, r.Success)
	assert.Len(t, r.Data["runs"], handlers.DefaultListLimit)
	assert.Equal(t, handlers.DefaultListLimit, r.Data["count"])
}

func TestGetPopulationStats_Query(t *testing.T) {
	b := newBackend(t, ok(`{"population":330}`))
	r := newService(b, nil).GetPopulationStats(context.Background(), handlers.Args{}, tok)

	require.True(t, r.Success)
	assert.Equal(t, "Retrieved population stats for United States of America (USA)", r.Message)
	assert.Equal(t, "country=United+States+of+America+%28USA%29", b.calls()[0].Query)
}

func TestUpdateRunConfig_SendsConfig(t *testing.T) {
	b := newBackend(t, ok(`{"updated":true}`))
	r := newService(b, nil).UpdateRunConfig(context.Background(),
		handlers.Args{"run_id": "r1", "config": map[string]any{"tags": []any{"x"}}}, tok)

	require.True(t, r.Success)
	call := b.calls()[0]
	assert.Equal(t, "/api/v1/runs/r1/config", call.Path)
	assert.Equal(t, []any{"x"}, call.Body["tags"])
}

func TestGeneratePersonas_ListResponse(t *testing.T) {
	b := newBackend(t, ok(`[{"name":"Ann"},{"name":"Bo"},{"name":"Cy"}]`))
	r := newService(b, nil).GeneratePersonas(context.Background(), handlers.Args{"run_id": "r1"}, tok)

	require.True(t, r.Success)
	assert.Equal(t, "Generated 3 personas", r.Message)
	assert.Len(t, r.Data["personas"], 3)
	assert.EqualValues(t, 5, b.calls()[0].Body["count"])
}

func TestGetCausalInsights(t *testing.T) {
	b := newBackend(t, ok(`[{"sentence":"Price drives choice."},"Brand matters.",{"other":1}]`))
	r := newService(b, nil).GetCausalInsights(context.Background(), handlers.Args{"run_id": "r1"}, tok)

	require.True(t, r.Success)
	assert.Equal(t, []string{"Price drives choice.", "Brand matters.", "map[other:1]"}, r.Data["causal_statements"])
	assert.Equal(t, "Generated 3 causal insights", r.Message)
	assert.Equal(t, http.MethodPost, b.calls()[0].Method)
}

func TestGetRunArtifacts_ListWrapped(t *testing.T) {
	b := newBackend(t, ok(`[{"file":"amce.csv"}]`))
	r := newService(b, nil).GetRunArtifacts(context.Background(), handlers.Args{"run_id": "r1"}, tok)

	require.True(t, r.Success)
	assert.Len(t, r.Data["artifacts"], 1)
	assert.Equal(t, "/api/v3/runs/r1/artifacts", b.calls()[0].Path)
}

func TestHandlers_Concurrent(t *testing.T) {
	b := newBackend(t, ok(`{"status":"done"}`))
	svc := newService(b, nil)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := svc.GetExperimentStatus(context.Background(), handlers.Args{"run_id": "r1"}, tok)
			assert.True(t, r.Success)
		}()
	}
	wg.Wait()
	assert.Len(t, b.calls(), 16)
}
