// Package intent turns a customer message into the signal bundle used by the
// shipping-fee policy: a rule pass first, a model only when the rules are unsure.
package intent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"shipfee-agent/internal/domain"
	"shipfee-agent/internal/llm"
	"shipfee-agent/internal/templates"
)

// Strategy decides when the model is consulted.
type Strategy string

const (
	// StrategyHybrid asks the model only when rule confidence is low.
	StrategyHybrid Strategy = "hybrid"
	// StrategyLLM always asks the model.
	StrategyLLM Strategy = "llm"
	// StrategyRules never asks the model.
	StrategyRules Strategy = "rules"
)

// ParseStrategy maps a config value to a Strategy, defaulting to hybrid.
func ParseStrategy(s string) Strategy {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyLLM:
		return StrategyLLM
	case StrategyRules:
		return StrategyRules
	default:
		return StrategyHybrid
	}
}

const (
	// ConfidenceThreshold is the rule score below which hybrid asks the model.
	ConfidenceThreshold = 0.8
	DefaultTimeout      = 8 * time.Second
)

type Options struct {
	Completer llm.Completer
	Model     string
	Strategy  Strategy
	Cache     Cache
	Timeout   time.Duration
	Logger    *slog.Logger
}

type Classifier struct {
	completer llm.Completer
	model     string
	strategy  Strategy
	cache     Cache
	timeout   time.Duration
	logger    *slog.Logger

	flights singleflight.Group
}

// New builds a Classifier. Without a Completer, or with StrategyRules, it
// never calls a model, smalltalk replies included.
func New(opts Options) *Classifier {
	c := &Classifier{
		completer: opts.Completer,
		model:     strings.TrimSpace(opts.Model),
		strategy:  opts.Strategy,
		cache:     opts.Cache,
		timeout:   opts.Timeout,
		logger:    opts.Logger,
	}
	if c.strategy == "" {
		c.strategy = StrategyHybrid
	}
	if c.cache == nil {
		c.cache = NewTTLCache(DefaultCacheTTL)
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.completer == nil || c.model == "" || c.strategy == StrategyRules {
		c.completer = nil
		c.strategy = StrategyRules
	}
	return c
}

func (c *Classifier) useModel(rule RuleResult) bool {
	switch c.strategy {
	case StrategyRules:
		return false
	case StrategyLLM:
		return true
	default:
		return rule.Score < ConfidenceThreshold
	}
}

// Classify never fails; model problems degrade to the rule result.
func (c *Classifier) Classify(ctx context.Context, text string) domain.Signals {
	rule := DetectRules(text)

	label := rule.Label
	wantsFree := rule.WantsFree
	cancelThreat := rule.CancelThreat
	isComplaint := rule.IsComplaint
	modelSmalltalk := false

	if c.useModel(rule) {
		if obj, ok := c.classifyWithModel(ctx, text); ok {
			if l, found := llm.String(obj, "intent", "label"); found && Label(l).valid() {
				label = Label(l)
			}
			sig := signalsObject(obj)
			wantsFree = wantsFree || llm.Bool(sig, "wants_free") || label == LabelAskFreeship
			cancelThreat = cancelThreat || llm.Bool(sig, "cancel_threat")
			isComplaint = isComplaint || llm.Bool(sig, "is_complaint") || label == LabelFeeComplaint
			modelSmalltalk = label == LabelSmalltalk
		}
	}

	// Rule smalltalk beats an ambiguous model label; neither wins over a
	// fee-amount, cancel, free-ship or complaint signal.
	smalltalk := (rule.IsSmalltalk && label != LabelAskFreeship) || modelSmalltalk
	if smalltalk && !rule.AboutFeeAmount && !cancelThreat && !wantsFree && !isComplaint {
		return domain.Signals{
			Intent:         domain.IntentSmalltalk,
			SmalltalkReply: c.SmalltalkReply(ctx, text),
		}
	}
	if label == LabelSmalltalk {
		label = rule.Label
	}

	out := domain.Signals{
		Intent:         domain.IntentOther,
		WantsFree:      wantsFree,
		CancelThreat:   cancelThreat,
		AboutFeeAmount: rule.AboutFeeAmount,
		IsComplaint:    isComplaint,
	}
	if label.ShipRelated() || wantsFree || isComplaint {
		out.Intent = domain.IntentShipFee
	}
	return out
}

func signalsObject(obj map[string]any) map[string]any {
	v, _ := llm.Lookup(obj, "signals")
	sig, ok := v.(map[string]any)
	if !ok {
		return obj
	}
	return sig
}

// classifyWithModel returns a usable model answer, consulting the cache
// first. Concurrent calls for the same text share one request.
func (c *Classifier) classifyWithModel(ctx context.Context, text string) (map[string]any, bool) {
	key := CacheKey(text)
	if obj, ok := c.cache.Get(key); ok {
		return obj, true
	}

	v, err, _ := c.flights.Do(key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		obj, err := c.completer.CompleteJSON(callCtx, classificationPrompt(text), c.model)
		if err != nil {
			return nil, err
		}
		if llm.IsErrorMarker(obj) {
			return nil, fmt.Errorf("intent: %s", llm.MalformedJSON)
		}
		c.cache.Set(key, obj)
		return obj, nil
	})
	if err != nil {
		c.logger.WarnContext(ctx, "intent classification degraded to rules", "err", err)
		return nil, false
	}
	return v.(map[string]any), true
}

// SmalltalkReply asks the model for a short friendly answer and falls back to
// a fixed reply on any problem.
func (c *Classifier) SmalltalkReply(ctx context.Context, text string) string {
	if c.completer == nil {
		return templates.SmalltalkFallback
	}
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	obj, err := c.completer.CompleteJSON(callCtx, smalltalkPrompt(text), c.model)
	if err != nil {
		c.logger.WarnContext(ctx, "smalltalk reply fell back", "err", err)
		return templates.SmalltalkFallback
	}
	if reply, ok := llm.String(obj, "reply", "text"); ok {
		return reply
	}
	return templates.SmalltalkFallback
}
