package app

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"shipfee-agent/internal/config"
	"shipfee-agent/internal/counter"
	"shipfee-agent/internal/integrations/gemini"
	"shipfee-agent/internal/integrations/openai"
	"shipfee-agent/internal/integrations/paramstore"
)

func testLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, nil))
}

func TestBuild_MemoryWithoutLLM(t *testing.T) {
	cfg := config.Default()
	cfg.LLMProvider = config.ProviderNone

	var logs bytes.Buffer
	h, cleanup, err := Build(context.Background(), cfg, Deps{Logger: testLogger(&logs)})
	require.NoError(t, err)
	defer cleanup()

	resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet, Path: "/healthz"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = h.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Path:       "/api/v1/ship-fee/answer",
		Body:       `{"user_text":"phí ship bao nhiêu","orders_json":{"orders":[{"order_info":{"id":1,"status":0,"shipping_fee":35000},"items":[{}]}]}}`,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Body, "35,000")
	require.Contains(t, logs.String(), "counter_backend=memory")
}

func TestBuild_DynamoDBNeedsClient(t *testing.T) {
	cfg := config.Default()
	cfg.StateTable = "state"
	cfg.LLMProvider = config.ProviderNone

	_, _, err := Build(context.Background(), cfg, Deps{})
	require.Error(t, err)
}

func TestBuild_LLMNeedsParams(t *testing.T) {
	cfg := config.Default()
	_, _, err := Build(context.Background(), cfg, Deps{})
	require.Error(t, err)
}

func TestBuildCounterStore_UnreachableRedisDegrades(t *testing.T) {
	cfg := config.Default()
	cfg.RedisURL = "redis://127.0.0.1:1/0"

	var logs bytes.Buffer
	store, cleanup, err := buildCounterStore(context.Background(), cfg, nil, testLogger(&logs))
	require.NoError(t, err)
	defer cleanup()
	require.IsType(t, &counter.Fallback{}, store)
	require.Contains(t, logs.String(), "redis unavailable")

	n, err := store.IncrementAndGet(context.Background(), "shipfee:c", counter.DefaultTTL)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestBuildCompleter(t *testing.T) {
	params := EnvParams("/ship-fee")

	cfg := config.Default()
	c, err := buildCompleter(cfg, params)
	require.NoError(t, err)
	require.IsType(t, &gemini.Client{}, c)

	cfg.LLMProvider = config.ProviderOpenAI
	c, err = buildCompleter(cfg, params)
	require.NoError(t, err)
	require.IsType(t, &openai.Client{}, c)

	cfg.LLMProvider = config.ProviderNone
	c, err = buildCompleter(cfg, nil)
	require.NoError(t, err)
	require.Nil(t, c)
}

func TestEnvParams(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "g-key")
	t.Setenv("OPENAI_API_KEY", "")
	params := EnvParams("/ship-fee/")

	v, err := params.GetParameter(context.Background(), "/ship-fee/google-api-key")
	require.NoError(t, err)
	require.JSONEq(t, `{"token":"g-key"}`, v)

	_, err = params.GetParameter(context.Background(), "/ship-fee/open-ai-token")
	require.ErrorIs(t, err, paramstore.ErrNotFound)
}
