package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func mapEnv(vals map[string]string) func(string) string {
	return func(k string) string { return vals[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(mapEnv(nil))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.Equal(t, BackendMemory, cfg.Backend())
	require.Equal(t, "gemini-1.5-flash", cfg.Model())
	require.Equal(t, 3, cfg.EscalationThreshold)
	require.Equal(t, 8*time.Second, cfg.LLMTimeout)
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(mapEnv(map[string]string{
		"COUNTER_BACKEND":         "redis",
		"REDIS_URL":               "redis://localhost:6379/0",
		"LLM_PROVIDER":            "OpenAI",
		"OPENAI_MODEL":            "gpt-test",
		"LLM_TIMEOUT":             "2s",
		"INTENT_STRATEGY":         "RULES",
		"ESCALATION_THRESHOLD":    "2",
		"ESCALATION_MODE":         "grant_freeship",
		"COUNT_COMPLAINTS":        "true",
		"ORDERS_JSON":             "/data/orders.json",
		"CONVERSATION_ID_DEFAULT": "conv-x",
		"POSCAKE_BASE":            "http://pos.local",
		"HTTP_ADDR":               ":9090",
	}))
	require.NoError(t, err)
	require.Equal(t, BackendRedis, cfg.Backend())
	require.Equal(t, "gpt-test", cfg.Model())
	require.Equal(t, 2*time.Second, cfg.LLMTimeout)
	require.Equal(t, "rules", cfg.IntentStrategy)
	require.Equal(t, 2, cfg.EscalationThreshold)
	require.Equal(t, ModeGrantFreeship, cfg.EscalationMode)
	require.True(t, cfg.CountComplaints)
	require.Equal(t, "/data/orders.json", cfg.OrdersJSON)
	require.Equal(t, "conv-x", cfg.DefaultConversationID)
	require.Equal(t, "http://pos.local", cfg.PoscakeBase)
	require.Equal(t, ":9090", cfg.HTTPAddr)
}

func TestFromEnv_UnparsableValuesKeepDefaults(t *testing.T) {
	cfg, err := FromEnv(mapEnv(map[string]string{
		"ESCALATION_THRESHOLD": "three",
		"COUNT_COMPLAINTS":     "maybe",
		"LLM_TIMEOUT":          "-1s",
	}))
	require.NoError(t, err)
	require.Equal(t, 3, cfg.EscalationThreshold)
	require.False(t, cfg.CountComplaints)
	require.Equal(t, 8*time.Second, cfg.LLMTimeout)
}

func TestFromEnv_Invalid(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "dynamodb without table", env: map[string]string{"COUNTER_BACKEND": "dynamodb"}, want: "STATE_TABLE"},
		{name: "redis without url", env: map[string]string{"COUNTER_BACKEND": "redis"}, want: "REDIS_URL"},
		{name: "unknown backend", env: map[string]string{"COUNTER_BACKEND": "etcd"}, want: "COUNTER_BACKEND"},
		{name: "unknown provider", env: map[string]string{"LLM_PROVIDER": "claude"}, want: "LLM_PROVIDER"},
		{name: "unknown mode", env: map[string]string{"ESCALATION_MODE": "ignore"}, want: "ESCALATION_MODE"},
		{name: "threshold too low", env: map[string]string{"ESCALATION_THRESHOLD": "1"}, want: "ESCALATION_THRESHOLD"},
		{name: "empty prefix", env: map[string]string{"PARAM_PREFIX": "/"}, want: "PARAM_PREFIX"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromEnv(mapEnv(tc.env))
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestBackend_Auto(t *testing.T) {
	cfg := Default()
	cfg.RedisURL = "redis://r"
	require.Equal(t, BackendRedis, cfg.Backend())
	cfg.StateTable = "state"
	require.Equal(t, BackendDynamoDB, cfg.Backend())
	cfg.CounterBackend = BackendMemory
	require.Equal(t, BackendMemory, cfg.Backend())
}

func TestModel_None(t *testing.T) {
	cfg := Default()
	cfg.LLMProvider = ProviderNone
	require.Empty(t, cfg.Model())
}

func TestLoad_ReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ESCALATION_THRESHOLD=5\n"), 0o600))
	t.Chdir(dir)
	t.Cleanup(func() { _ = os.Unsetenv("ESCALATION_THRESHOLD") })

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 5, cfg.EscalationThreshold)
}
