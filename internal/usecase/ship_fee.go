package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"shipfee-agent/internal/counter"
	"shipfee-agent/internal/domain"
	"shipfee-agent/internal/orders"
	"shipfee-agent/internal/templates"
)

const (
	counterPrefix              = "shipfee:"
	defaultEscalationThreshold = 3
)

// EscalationMode selects what happens once a conversation keeps asking for
// free shipping.
type EscalationMode string

const (
	// EscalationTagAgent flags the conversation for a human agent.
	EscalationTagAgent EscalationMode = "tag_agent"
	// EscalationGrantFreeship concedes free shipping instead.
	EscalationGrantFreeship EscalationMode = "grant_freeship"
)

type CounterStore interface {
	IncrementAndGet(ctx context.Context, key string, ttl time.Duration) (int, error)
	GetCurrent(ctx context.Context, key string) (int, error)
	Reset(ctx context.Context, key string) error
	SetFlag(ctx context.Context, key string, value bool, ttl time.Duration) error
	GetFlag(ctx context.Context, key string) (bool, error)
}

type Classifier interface {
	Classify(ctx context.Context, text string) domain.Signals
}

// OrderProvider returns the raw order payload near a conversation.
type OrderProvider interface {
	FetchByConversation(ctx context.Context, conversationID string) (json.RawMessage, error)
}

type Options struct {
	OrderProvider         OrderProvider
	Replies               *templates.Renderer
	EscalationThreshold   int
	EscalationMode        EscalationMode
	CountComplaints       bool
	DefaultConversationID string
	DefaultOrdersPath     string
	CounterTTL            time.Duration
	Logger                *slog.Logger
}

type ShipFeeService struct {
	store      CounterStore
	classifier Classifier
	provider   OrderProvider
	replies    *templates.Renderer

	threshold       int
	mode            EscalationMode
	countComplaints bool
	defaultConvID   string
	defaultOrders   string
	ttl             time.Duration
	logger          *slog.Logger
}

type AnswerInput struct {
	ConversationID string
	Text           string
	// Orders is an inline snapshot; it wins over OrdersPath.
	Orders     json.RawMessage
	OrdersPath string
}

func NewShipFeeService(store CounterStore, classifier Classifier, opts Options) (*ShipFeeService, error) {
	if store == nil {
		return nil, errors.New("usecase: counter store must not be nil")
	}
	if classifier == nil {
		return nil, errors.New("usecase: classifier must not be nil")
	}
	s := &ShipFeeService{
		store:           store,
		classifier:      classifier,
		provider:        opts.OrderProvider,
		replies:         opts.Replies,
		threshold:       opts.EscalationThreshold,
		mode:            opts.EscalationMode,
		countComplaints: opts.CountComplaints,
		defaultConvID:   strings.TrimSpace(opts.DefaultConversationID),
		defaultOrders:   strings.TrimSpace(opts.DefaultOrdersPath),
		ttl:             opts.CounterTTL,
		logger:          opts.Logger,
	}
	if s.replies == nil {
		s.replies = templates.New(nil)
	}
	if s.threshold <= 0 {
		s.threshold = defaultEscalationThreshold
	}
	if s.threshold < 2 {
		return nil, errors.New("usecase: escalation threshold must be at least 2")
	}
	switch s.mode {
	case "":
		s.mode = EscalationTagAgent
	case EscalationTagAgent, EscalationGrantFreeship:
	default:
		return nil, errors.New("usecase: unknown escalation mode " + string(s.mode))
	}
	if s.ttl <= 0 {
		s.ttl = counter.DefaultTTL
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

func counterKey(conversationID string) string {
	return counterPrefix + conversationID
}

func (s *ShipFeeService) conversationID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		id = s.defaultConvID
	}
	if id == "" {
		return "", newError(ErrorInvalidInput, "missing_conversation_id", nil)
	}
	return id, nil
}

// Answer decides the reply to one incoming message. The first matching rule
// wins; only free-ship related asks move the counter.
func (s *ShipFeeService) Answer(ctx context.Context, in AnswerInput) (domain.ReplyDecision, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return domain.ReplyDecision{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	convID, err := s.conversationID(in.ConversationID)
	if err != nil {
		return domain.ReplyDecision{}, err
	}
	key := counterKey(convID)

	tagged, err := s.store.GetFlag(ctx, key)
	if err != nil {
		return domain.ReplyDecision{}, newError(ErrorInternal, "counter_store_error", err)
	}
	current, err := s.store.GetCurrent(ctx, key)
	if err != nil {
		return domain.ReplyDecision{}, newError(ErrorInternal, "counter_store_error", err)
	}
	if tagged {
		return s.done(ctx, convID, domain.ReplyDecision{
			Case:       domain.CaseTaggedAgent,
			Diagnostic: domain.Diagnostic{AskedCount: current, PickedReason: "tagged_for_agent"},
		}), nil
	}

	snap, err := s.loadSnapshot(ctx, convID, in)
	if err != nil {
		return domain.ReplyDecision{}, err
	}

	order, ok := orders.PickActiveOrder(snap)
	if !ok {
		return s.done(ctx, convID, domain.ReplyDecision{
			Case:       domain.CaseNoOrder,
			ReplyText:  templates.NoOrder,
			Diagnostic: domain.Diagnostic{AskedCount: current, PickedReason: "no_active_order"},
		}), nil
	}

	fee := orders.ExtractFee(order)
	diag := func(asked int, reason string) domain.Diagnostic {
		d := domain.Diagnostic{
			AskedCount:   asked,
			ShippingFee:  fee,
			Status:       order.Info.Status.Int(),
			PickedReason: reason,
		}
		if id := string(order.Info.ID); id != "" {
			d.OrderID = &id
		}
		return d
	}

	if fee != nil && *fee == 0 {
		return s.done(ctx, convID, domain.ReplyDecision{
			Case:       domain.CaseFreeship,
			ReplyText:  templates.Freeship,
			Diagnostic: diag(current, "fee_is_zero"),
		}), nil
	}

	sig := s.classifier.Classify(ctx, text)

	if sig.Intent == domain.IntentSmalltalk {
		reply := strings.TrimSpace(sig.SmalltalkReply)
		if reply == "" {
			reply = templates.SmalltalkFallback
		}
		return s.done(ctx, convID, domain.ReplyDecision{
			Case:       domain.CaseSmalltalk,
			ReplyText:  reply,
			Diagnostic: diag(current, "smalltalk"),
		}), nil
	}

	if sig.IsComplaint && !sig.WantsFree {
		asked := current
		if s.countComplaints {
			if asked, err = s.store.IncrementAndGet(ctx, key, s.ttl); err != nil {
				return domain.ReplyDecision{}, newError(ErrorInternal, "counter_store_error", err)
			}
		}
		return s.done(ctx, convID, domain.ReplyDecision{
			Case:       domain.CaseFeeComplaint,
			ReplyText:  templates.FeeComplaint,
			Diagnostic: diag(asked, "fee_complaint"),
		}), nil
	}

	if sig.AboutFeeAmount && !sig.WantsFree {
		amount := 0
		if fee != nil {
			amount = *fee
		}
		return s.done(ctx, convID, domain.ReplyDecision{
			Case:       domain.CaseHasShipFirstTime,
			ReplyText:  s.replies.FeeAmount(amount),
			Diagnostic: diag(current, "explicit_fee_question"),
		}), nil
	}

	asked, err := s.store.IncrementAndGet(ctx, key, s.ttl)
	if err != nil {
		return domain.ReplyDecision{}, newError(ErrorInternal, "counter_store_error", err)
	}

	if asked == 1 && !sig.WantsFree {
		return s.done(ctx, convID, domain.ReplyDecision{
			Case:       domain.CaseHasShipFirstTime,
			ReplyText:  templates.FirstTime,
			Diagnostic: diag(asked, "first_time_ask"),
		}), nil
	}

	if s.mode == EscalationGrantFreeship && (sig.CancelThreat || asked >= s.threshold) {
		return s.done(ctx, convID, domain.ReplyDecision{
			Case:       domain.CaseAskFreeShipManyTimes,
			ReplyText:  templates.Escalation(orders.HasPriorSuccess(snap)),
			Action:     domain.ActionFreeship,
			Actions:    domain.Actions{ApplyFreeShipping: true},
			Diagnostic: diag(asked, "cancel_threat_or_threshold"),
		}), nil
	}

	if sig.WantsFree || sig.CancelThreat {
		switch {
		case asked == 1:
			return s.done(ctx, convID, domain.ReplyDecision{
				Case:       domain.CaseAskFreeShipFirstTime,
				ReplyText:  templates.AskFreeFirstTime,
				Diagnostic: diag(asked, "first_free_ship_ask"),
			}), nil
		case s.mode == EscalationTagAgent && asked >= s.threshold:
			if err := s.store.SetFlag(ctx, key, true, s.ttl); err != nil {
				return domain.ReplyDecision{}, newError(ErrorInternal, "counter_store_error", err)
			}
			d := domain.ReplyDecision{
				Case:       domain.CaseAskFreeShipManyTimes,
				Action:     domain.ActionTagAgent,
				Diagnostic: diag(asked, "escalated_to_agent"),
			}
			// Past the threshold the agent already has the thread; stay quiet.
			if asked == s.threshold {
				d.ReplyText = templates.AskFree
			} else {
				d.Diagnostic.PickedReason = "escalated_muted"
			}
			return s.done(ctx, convID, d), nil
		default:
			return s.done(ctx, convID, domain.ReplyDecision{
				Case:       domain.CaseAskFreeShip,
				ReplyText:  templates.AskFree,
				Diagnostic: diag(asked, "repeat_free_ship_ask"),
			}), nil
		}
	}

	return s.done(ctx, convID, domain.ReplyDecision{
		Case:       domain.CaseHasShipFirstTime,
		ReplyText:  templates.FirstTime,
		Diagnostic: diag(asked, "fallback_first_time"),
	}), nil
}

func (s *ShipFeeService) done(ctx context.Context, convID string, d domain.ReplyDecision) domain.ReplyDecision {
	s.logger.InfoContext(ctx, "ship fee decision",
		"conversation_id", convID,
		"case", string(d.Case),
		"picked_reason", d.Diagnostic.PickedReason,
		"asked_count", d.Diagnostic.AskedCount,
		"action", string(d.Action),
	)
	return d
}

// loadSnapshot resolves the order source: inline orders, then an explicit
// path, then the order provider, then the default path.
func (s *ShipFeeService) loadSnapshot(ctx context.Context, convID string, in AnswerInput) (domain.OrderSnapshot, error) {
	if len(in.Orders) > 0 && string(in.Orders) != "null" {
		snap, err := orders.Decode(in.Orders)
		if err != nil {
			return domain.OrderSnapshot{}, orderSourceError("inline_orders", err)
		}
		return snap, nil
	}
	if path := strings.TrimSpace(in.OrdersPath); path != "" {
		return s.loadFile(path)
	}
	if s.provider != nil {
		raw, err := s.provider.FetchByConversation(ctx, convID)
		if err != nil {
			return domain.OrderSnapshot{}, orderSourceError("order_provider", err)
		}
		snap, err := orders.Decode(raw)
		if err != nil {
			return domain.OrderSnapshot{}, orderSourceError("order_provider", err)
		}
		return snap, nil
	}
	return s.loadFile(s.defaultOrders)
}

func (s *ShipFeeService) loadFile(path string) (domain.OrderSnapshot, error) {
	snap, err := orders.LoadFile(path)
	if err != nil {
		return domain.OrderSnapshot{}, orderSourceError("orders_file", err)
	}
	return snap, nil
}

// Reset clears the ask counter and the tagged-for-agent flag.
func (s *ShipFeeService) Reset(ctx context.Context, conversationID string) error {
	convID, err := s.conversationID(conversationID)
	if err != nil {
		return err
	}
	if err := s.store.Reset(ctx, counterKey(convID)); err != nil {
		return newError(ErrorInternal, "counter_store_error", err)
	}
	s.logger.InfoContext(ctx, "ship fee conversation reset", "conversation_id", convID)
	return nil
}

// OrdersByConversation returns the order provider's payload unchanged.
func (s *ShipFeeService) OrdersByConversation(ctx context.Context, conversationID string) (json.RawMessage, error) {
	if s.provider == nil {
		return nil, newError(ErrorOrderSourceNotFound, "order_provider_not_configured", nil)
	}
	convID, err := s.conversationID(conversationID)
	if err != nil {
		return nil, err
	}
	raw, err := s.provider.FetchByConversation(ctx, convID)
	if err != nil {
		return nil, orderSourceError("order_provider", err)
	}
	return raw, nil
}
