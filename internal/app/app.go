// Package app wires the shipping-fee service from configuration. Both the
// Lambda entry point and the local dev server build through here.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"shipfee-agent/handler"
	"shipfee-agent/internal/config"
	"shipfee-agent/internal/counter"
	"shipfee-agent/internal/integrations/gemini"
	"shipfee-agent/internal/integrations/openai"
	"shipfee-agent/internal/integrations/paramstore"
	"shipfee-agent/internal/integrations/poscake"
	"shipfee-agent/internal/intent"
	"shipfee-agent/internal/llm"
	"shipfee-agent/internal/repository"
	"shipfee-agent/internal/templates"
	"shipfee-agent/internal/usecase"
)

// Deps are the process-level clients the service is built on. DynamoDB is
// only needed for the dynamodb counter backend.
type Deps struct {
	Params   paramstore.Getter
	DynamoDB *awsdynamodb.Client
	Logger   *slog.Logger
}

// Build returns the request handler and a cleanup func to run on shutdown.
func Build(ctx context.Context, cfg config.Config, deps Deps) (*handler.Handler, func(), error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, closeStore, err := buildCounterStore(ctx, cfg, deps.DynamoDB, logger)
	if err != nil {
		return nil, nil, err
	}

	completer, err := buildCompleter(cfg, deps.Params)
	if err != nil {
		closeStore()
		return nil, nil, err
	}

	classifier := intent.New(intent.Options{
		Completer: completer,
		Model:     cfg.Model(),
		Strategy:  intent.ParseStrategy(cfg.IntentStrategy),
		Cache:     intent.NewTTLCache(intent.DefaultCacheTTL),
		Timeout:   cfg.LLMTimeout,
		Logger:    logger,
	})

	opts := usecase.Options{
		Replies:               templates.New(nil),
		EscalationThreshold:   cfg.EscalationThreshold,
		EscalationMode:        usecase.EscalationMode(cfg.EscalationMode),
		CountComplaints:       cfg.CountComplaints,
		DefaultConversationID: cfg.DefaultConversationID,
		DefaultOrdersPath:     cfg.OrdersJSON,
		CounterTTL:            counter.DefaultTTL,
		Logger:                logger,
	}
	if cfg.PoscakeBase != "" {
		pos, err := poscake.NewClient(cfg.PoscakeBase)
		if err != nil {
			closeStore()
			return nil, nil, err
		}
		opts.OrderProvider = pos
	}

	svc, err := usecase.NewShipFeeService(store, classifier, opts)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	h, err := handler.NewHandler(svc, logger)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	logger.Info("ship fee service ready",
		"counter_backend", cfg.Backend(),
		"llm_provider", cfg.LLMProvider,
		"intent_strategy", cfg.IntentStrategy,
		"escalation_mode", cfg.EscalationMode,
		"escalation_threshold", cfg.EscalationThreshold,
	)
	return h, closeStore, nil
}

// buildCounterStore wraps the configured shared store in a Fallback. An
// unreachable Redis at startup degrades to memory instead of failing.
func buildCounterStore(ctx context.Context, cfg config.Config, dynamo *awsdynamodb.Client, logger *slog.Logger) (counter.Store, func(), error) {
	noop := func() {}
	switch cfg.Backend() {
	case config.BackendDynamoDB:
		if dynamo == nil {
			return nil, nil, fmt.Errorf("app: dynamodb backend requires a DynamoDB client")
		}
		repo, err := repository.New(dynamo, cfg.StateTable)
		if err != nil {
			return nil, nil, err
		}
		return counter.NewFallback(repo, logger), noop, nil
	case config.BackendRedis:
		rs, err := counter.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, using in-process counter store", "err", err)
			return counter.NewFallback(nil, logger), noop, nil
		}
		return counter.NewFallback(rs, logger), func() { _ = rs.Close() }, nil
	default:
		return counter.NewFallback(nil, logger), noop, nil
	}
}

func buildCompleter(cfg config.Config, params paramstore.Getter) (llm.Completer, error) {
	if cfg.LLMProvider == config.ProviderNone {
		return nil, nil
	}
	if params == nil {
		return nil, fmt.Errorf("app: llm provider %q requires a parameter getter", cfg.LLMProvider)
	}
	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		return openai.NewClient(params, cfg.ParamPrefix, openai.WithHTTPClient(&http.Client{Timeout: cfg.LLMTimeout}))
	case config.ProviderGemini:
		return gemini.NewClient(params, cfg.ParamPrefix)
	default:
		return nil, fmt.Errorf("app: unknown llm provider %q", cfg.LLMProvider)
	}
}

// EnvParams maps the LLM key parameters onto GOOGLE_API_KEY and
// OPENAI_API_KEY for running without SSM.
func EnvParams(prefix string) paramstore.EnvGetter {
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	return paramstore.EnvGetter{
		prefix + "/google-api-key": "GOOGLE_API_KEY",
		prefix + "/open-ai-token":  "OPENAI_API_KEY",
	}
}
