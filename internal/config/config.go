// Package config reads the service settings from the environment. A local
// .env file is loaded first when present.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendAuto     = "auto"
	BackendDynamoDB = "dynamodb"
	BackendRedis    = "redis"
	BackendMemory   = "memory"

	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderNone   = "none"

	ModeTagAgent      = "tag_agent"
	ModeGrantFreeship = "grant_freeship"
)

type Config struct {
	CounterBackend string
	StateTable     string
	RedisURL       string
	ParamPrefix    string

	LLMProvider    string
	GoogleModel    string
	OpenAIModel    string
	LLMTimeout     time.Duration
	IntentStrategy string

	EscalationThreshold int
	EscalationMode      string
	CountComplaints     bool

	OrdersJSON            string
	DefaultConversationID string
	PoscakeBase           string
	HTTPAddr              string
}

func Default() Config {
	return Config{
		CounterBackend:        BackendAuto,
		ParamPrefix:           "/ship-fee",
		LLMProvider:           ProviderGemini,
		GoogleModel:           "gemini-1.5-flash",
		OpenAIModel:           "gpt-4o-mini",
		LLMTimeout:            8 * time.Second,
		IntentStrategy:        "hybrid",
		EscalationThreshold:   3,
		EscalationMode:        ModeTagAgent,
		OrdersJSON:            "examples/orders_priority.json",
		DefaultConversationID: "792129147307154_24089184430742730",
		HTTPAddr:              ":8080",
	}
}

// Load reads .env (if any) and the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv, keeping defaults for unset or
// unparsable values.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Default()

	cfg.CounterBackend = envString(getenv, "COUNTER_BACKEND", cfg.CounterBackend)
	cfg.StateTable = envString(getenv, "STATE_TABLE", cfg.StateTable)
	cfg.RedisURL = envString(getenv, "REDIS_URL", cfg.RedisURL)
	cfg.ParamPrefix = envString(getenv, "PARAM_PREFIX", cfg.ParamPrefix)
	cfg.LLMProvider = strings.ToLower(envString(getenv, "LLM_PROVIDER", cfg.LLMProvider))
	cfg.GoogleModel = envString(getenv, "GOOGLE_MODEL", cfg.GoogleModel)
	cfg.OpenAIModel = envString(getenv, "OPENAI_MODEL", cfg.OpenAIModel)
	cfg.LLMTimeout = envDuration(getenv, "LLM_TIMEOUT", cfg.LLMTimeout)
	cfg.IntentStrategy = strings.ToLower(envString(getenv, "INTENT_STRATEGY", cfg.IntentStrategy))
	cfg.EscalationThreshold = envInt(getenv, "ESCALATION_THRESHOLD", cfg.EscalationThreshold)
	cfg.EscalationMode = strings.ToLower(envString(getenv, "ESCALATION_MODE", cfg.EscalationMode))
	cfg.CountComplaints = envBool(getenv, "COUNT_COMPLAINTS", cfg.CountComplaints)
	cfg.OrdersJSON = envString(getenv, "ORDERS_JSON", cfg.OrdersJSON)
	cfg.DefaultConversationID = envString(getenv, "CONVERSATION_ID_DEFAULT", cfg.DefaultConversationID)
	cfg.PoscakeBase = envString(getenv, "POSCAKE_BASE", cfg.PoscakeBase)
	cfg.HTTPAddr = envString(getenv, "HTTP_ADDR", cfg.HTTPAddr)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.CounterBackend {
	case BackendAuto, BackendMemory:
	case BackendDynamoDB:
		if c.StateTable == "" {
			errs = append(errs, errors.New("config: STATE_TABLE is required for the dynamodb backend"))
		}
	case BackendRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("config: REDIS_URL is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown COUNTER_BACKEND %q", c.CounterBackend))
	}
	switch c.LLMProvider {
	case ProviderGemini, ProviderOpenAI, ProviderNone:
	default:
		errs = append(errs, fmt.Errorf("config: unknown LLM_PROVIDER %q", c.LLMProvider))
	}
	switch c.EscalationMode {
	case ModeTagAgent, ModeGrantFreeship:
	default:
		errs = append(errs, fmt.Errorf("config: unknown ESCALATION_MODE %q", c.EscalationMode))
	}
	if c.EscalationThreshold < 2 {
		errs = append(errs, fmt.Errorf("config: ESCALATION_THRESHOLD must be at least 2, got %d", c.EscalationThreshold))
	}
	if strings.Trim(c.ParamPrefix, "/ ") == "" && c.LLMProvider != ProviderNone {
		errs = append(errs, errors.New("config: PARAM_PREFIX must not be empty"))
	}
	return errors.Join(errs...)
}

// Backend resolves "auto" to a concrete counter backend.
func (c Config) Backend() string {
	if c.CounterBackend != BackendAuto {
		return c.CounterBackend
	}
	switch {
	case c.StateTable != "":
		return BackendDynamoDB
	case c.RedisURL != "":
		return BackendRedis
	default:
		return BackendMemory
	}
}

// Model is the model name for the configured provider.
func (c Config) Model() string {
	switch c.LLMProvider {
	case ProviderOpenAI:
		return c.OpenAIModel
	case ProviderGemini:
		return c.GoogleModel
	default:
		return ""
	}
}

func envString(getenv func(string) string, key, def string) string {
	if v := strings.TrimSpace(getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(getenv func(string) string, key string, def int) int {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(getenv func(string) string, key string, def bool) bool {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envDuration(getenv func(string) string, key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
