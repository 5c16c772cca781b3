package intent

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"shipfee-agent/internal/domain"
	"shipfee-agent/internal/llm"
	"shipfee-agent/internal/templates"
)

type fakeCompleter struct {
	classify  func(ctx context.Context) (map[string]any, error)
	smalltalk func(ctx context.Context) (map[string]any, error)

	classifyCalls  atomic.Int32
	smalltalkCalls atomic.Int32
}

func (f *fakeCompleter) CompleteJSON(ctx context.Context, prompt, _ string) (map[string]any, error) {
	if strings.Contains(prompt, "bộ phân loại") {
		f.classifyCalls.Add(1)
		if f.classify == nil {
			return nil, errors.New("no classification configured")
		}
		return f.classify(ctx)
	}
	f.smalltalkCalls.Add(1)
	if f.smalltalk == nil {
		return nil, errors.New("no smalltalk configured")
	}
	return f.smalltalk(ctx)
}

func answer(obj map[string]any) func(context.Context) (map[string]any, error) {
	return func(context.Context) (map[string]any, error) { return obj, nil }
}

func newTestClassifier(f *fakeCompleter, strategy Strategy, logs *bytes.Buffer) *Classifier {
	var logger *slog.Logger
	if logs != nil {
		logger = slog.New(slog.NewTextHandler(logs, nil))
	}
	return New(Options{
		Completer: f,
		Model:     "test-model",
		Strategy:  strategy,
		Cache:     NewTTLCache(time.Minute),
		Timeout:   time.Second,
		Logger:    logger,
	})
}

func TestClassify_HighConfidenceSkipsModel(t *testing.T) {
	f := &fakeCompleter{}
	c := newTestClassifier(f, StrategyHybrid, nil)

	got := c.Classify(context.Background(), "phí ship bao nhiêu")
	require.Equal(t, domain.Signals{Intent: domain.IntentShipFee, AboutFeeAmount: true}, got)

	got = c.Classify(context.Background(), "miễn ship đi, không thì hủy")
	require.Equal(t, domain.Signals{Intent: domain.IntentShipFee, WantsFree: true, CancelThreat: true}, got)
	require.Zero(t, f.classifyCalls.Load())
}

func TestClassify_LowConfidenceMergesModel(t *testing.T) {
	f := &fakeCompleter{classify: answer(map[string]any{
		"intent":     "ask_freeship",
		"confidence": 0.8,
		"signals":    map[string]any{"wants_free": false, "cancel_threat": "true", "about_fee_amount": true},
	})}
	c := newTestClassifier(f, StrategyHybrid, nil)

	got := c.Classify(context.Background(), "shop hỗ trợ em phần giao hàng với")
	require.Equal(t, domain.IntentShipFee, got.Intent)
	require.True(t, got.WantsFree)
	require.True(t, got.CancelThreat)
	require.False(t, got.AboutFeeAmount, "fee-amount stays with the rules")
	require.EqualValues(t, 1, f.classifyCalls.Load())
}

func TestClassify_ModelCannotClearRuleSignals(t *testing.T) {
	f := &fakeCompleter{classify: answer(map[string]any{
		"intent":  "fee_question",
		"signals": map[string]any{"wants_free": false, "cancel_threat": false},
	})}
	c := newTestClassifier(f, StrategyLLM, nil)

	got := c.Classify(context.Background(), "miễn ship không thì hủy đơn")
	require.True(t, got.WantsFree)
	require.True(t, got.CancelThreat)
	require.Equal(t, domain.IntentShipFee, got.Intent)
}

func TestClassify_ComplaintFromModel(t *testing.T) {
	f := &fakeCompleter{classify: answer(map[string]any{"data": map[string]any{"intent": "fee_complaint"}})}
	c := newTestClassifier(f, StrategyHybrid, nil)

	got := c.Classify(context.Background(), "giao hàng kiểu này thì thôi")
	require.Equal(t, domain.IntentShipFee, got.Intent)
	require.True(t, got.IsComplaint)
}

func TestClassify_CachesModelAnswers(t *testing.T) {
	f := &fakeCompleter{classify: answer(map[string]any{"intent": "fee_question"})}
	c := newTestClassifier(f, StrategyHybrid, nil)

	for i := 0; i < 3; i++ {
		got := c.Classify(context.Background(), "giao về quận 7 thế nào")
		require.Equal(t, domain.IntentShipFee, got.Intent)
	}
	require.EqualValues(t, 1, f.classifyCalls.Load())
}

func TestClassify_ModelErrorDegradesToRules(t *testing.T) {
	var logs bytes.Buffer
	f := &fakeCompleter{classify: func(context.Context) (map[string]any, error) {
		return nil, errors.New("quota exceeded")
	}}
	c := newTestClassifier(f, StrategyHybrid, &logs)

	got := c.Classify(context.Background(), "không lấy hàng nữa")
	require.Equal(t, domain.Signals{Intent: domain.IntentOther, CancelThreat: true}, got)
	require.Contains(t, logs.String(), "intent classification degraded to rules")
	require.Contains(t, logs.String(), "quota exceeded")

	// Failures are not cached.
	c.Classify(context.Background(), "không lấy hàng nữa")
	require.EqualValues(t, 2, f.classifyCalls.Load())
}

func TestClassify_MalformedModelAnswerDegrades(t *testing.T) {
	f := &fakeCompleter{classify: answer(llm.ParseObject("not json"))}
	c := newTestClassifier(f, StrategyHybrid, nil)

	got := c.Classify(context.Background(), "có ship cod không")
	require.Equal(t, domain.Signals{Intent: domain.IntentShipFee}, got)
}

func TestClassify_TimeoutDegrades(t *testing.T) {
	f := &fakeCompleter{classify: func(ctx context.Context) (map[string]any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	c := New(Options{Completer: f, Model: "m", Timeout: 20 * time.Millisecond, Cache: NoopCache{}})

	start := time.Now()
	got := c.Classify(context.Background(), "có ship cod không")
	require.Less(t, time.Since(start), time.Second)
	require.Equal(t, domain.Signals{Intent: domain.IntentShipFee}, got)
}

func TestClassify_RuleSmalltalk(t *testing.T) {
	f := &fakeCompleter{smalltalk: answer(map[string]any{"reply": "Dạ em cảm ơn chị ạ!"})}
	c := newTestClassifier(f, StrategyHybrid, nil)

	got := c.Classify(context.Background(), "cảm ơn shop nhiều")
	require.Equal(t, domain.Signals{Intent: domain.IntentSmalltalk, SmalltalkReply: "Dạ em cảm ơn chị ạ!"}, got)
	require.Zero(t, f.classifyCalls.Load())
}

func TestClassify_RuleSmalltalkBeatsAmbiguousModelLabel(t *testing.T) {
	f := &fakeCompleter{
		classify:  answer(map[string]any{"intent": "fee_question"}),
		smalltalk: answer(map[string]any{"text": "Dạ vâng ạ"}),
	}
	c := newTestClassifier(f, StrategyLLM, nil)

	got := c.Classify(context.Background(), "ok em")
	require.Equal(t, domain.IntentSmalltalk, got.Intent)
	require.Equal(t, "Dạ vâng ạ", got.SmalltalkReply)
	require.False(t, got.WantsFree)
}

func TestClassify_ModelFreeshipBeatsRuleSmalltalk(t *testing.T) {
	f := &fakeCompleter{classify: answer(map[string]any{"intent": "ask_freeship"})}
	c := newTestClassifier(f, StrategyLLM, nil)

	got := c.Classify(context.Background(), "ok em")
	require.Equal(t, domain.IntentShipFee, got.Intent)
	require.True(t, got.WantsFree)
	require.Empty(t, got.SmalltalkReply)
}

func TestClassify_ModelSmalltalk(t *testing.T) {
	f := &fakeCompleter{
		classify:  answer(map[string]any{"intent": "smalltalk"}),
		smalltalk: answer(map[string]any{"result": map[string]any{"reply": "Dạ chào chị ạ"}}),
	}
	c := newTestClassifier(f, StrategyHybrid, nil)

	got := c.Classify(context.Background(), "hôm nay trời đẹp ghê")
	require.Equal(t, domain.Signals{Intent: domain.IntentSmalltalk, SmalltalkReply: "Dạ chào chị ạ"}, got)
}

func TestClassify_ModelSmalltalkWithCancelIsNotSmalltalk(t *testing.T) {
	f := &fakeCompleter{classify: answer(map[string]any{"intent": "smalltalk"})}
	c := newTestClassifier(f, StrategyHybrid, nil)

	got := c.Classify(context.Background(), "thôi không lấy hàng nữa nhé")
	require.Equal(t, domain.IntentOther, got.Intent)
	require.True(t, got.CancelThreat)
}

func TestClassify_SmalltalkReplyFallsBack(t *testing.T) {
	cases := []struct {
		name string
		fn   func(context.Context) (map[string]any, error)
	}{
		{name: "error", fn: func(context.Context) (map[string]any, error) { return nil, errors.New("down") }},
		{name: "marker", fn: answer(llm.ParseObject("???"))},
		{name: "blank reply", fn: answer(map[string]any{"reply": "  "})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClassifier(&fakeCompleter{smalltalk: tc.fn}, StrategyHybrid, nil)
			got := c.Classify(context.Background(), "hello")
			require.Equal(t, templates.SmalltalkFallback, got.SmalltalkReply)
		})
	}
}

func TestClassify_RulesOnly(t *testing.T) {
	f := &fakeCompleter{classify: answer(map[string]any{"intent": "ask_freeship"})}
	c := newTestClassifier(f, StrategyRules, nil)

	got := c.Classify(context.Background(), "hello")
	require.Equal(t, domain.Signals{Intent: domain.IntentSmalltalk, SmalltalkReply: "Dạ vâng ạ! Em cảm ơn mình ạ."}, got)
	got = c.Classify(context.Background(), "shipper giao chưa")
	require.Equal(t, domain.Signals{Intent: domain.IntentOther}, got)
	require.Zero(t, f.classifyCalls.Load())
	require.Zero(t, f.smalltalkCalls.Load())
}

func TestClassify_RulesStrategyNeverCallsModelForSmalltalk(t *testing.T) {
	f := &fakeCompleter{smalltalk: answer(map[string]any{"reply": "Chào bạn nha"})}
	c := newTestClassifier(f, StrategyRules, nil)
	require.Nil(t, c.completer)

	got := c.Classify(context.Background(), "cảm ơn shop")
	require.Equal(t, domain.IntentSmalltalk, got.Intent)
	require.Equal(t, templates.SmalltalkFallback, got.SmalltalkReply)
	require.Equal(t, templates.SmalltalkFallback, c.SmalltalkReply(context.Background(), "hello"))
	require.Zero(t, f.smalltalkCalls.Load())
	require.Zero(t, f.classifyCalls.Load())
}

func TestNew_WithoutCompleterUsesRules(t *testing.T) {
	c := New(Options{Strategy: StrategyLLM})
	require.Equal(t, StrategyRules, c.strategy)

	c = New(Options{Completer: &fakeCompleter{}, Strategy: StrategyLLM})
	require.Equal(t, StrategyRules, c.strategy, "a model name is required")

	got := c.Classify(context.Background(), "hi")
	require.Equal(t, templates.SmalltalkFallback, got.SmalltalkReply)
}

func TestClassify_ConcurrentDuplicatesShareOneCall(t *testing.T) {
	release := make(chan struct{})
	f := &fakeCompleter{classify: func(context.Context) (map[string]any, error) {
		<-release
		return map[string]any{"intent": "fee_question"}, nil
	}}
	c := newTestClassifier(f, StrategyHybrid, nil)

	var g errgroup.Group
	var mu sync.Mutex
	results := make([]domain.Signals, 0, 10)
	for i := 0; i < 10; i++ {
		g.Go(func() error {
			got := c.Classify(context.Background(), "giao hàng mấy ngày")
			mu.Lock()
			results = append(results, got)
			mu.Unlock()
			return nil
		})
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	require.NoError(t, g.Wait())

	require.EqualValues(t, 1, f.classifyCalls.Load())
	require.Len(t, results, 10)
	for _, got := range results {
		require.Equal(t, domain.IntentShipFee, got.Intent)
	}
}
