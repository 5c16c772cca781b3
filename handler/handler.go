package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"shipfee-agent/internal/domain"
	"shipfee-agent/internal/usecase"
)

const (
	correlationHeader = "X-Correlation-Id"

	routeAnswer  = "/api/v1/ship-fee/answer"
	routeReset   = "/api/v1/ship-fee/reset"
	routeOrders  = "/api/v1/orders/by-conversation"
	routeHealthz = "/healthz"

	errorNotFound         = "NOT_FOUND"
	errorMethodNotAllowed = "METHOD_NOT_ALLOWED"
)

type ShipFeeUseCase interface {
	Answer(ctx context.Context, in usecase.AnswerInput) (domain.ReplyDecision, error)
	Reset(ctx context.Context, conversationID string) error
	OrdersByConversation(ctx context.Context, conversationID string) (json.RawMessage, error)
}

type answerRequest struct {
	UserText       string          `json:"user_text"`
	ConversationID string          `json:"conversation_id"`
	OrdersJSONPath string          `json:"orders_json_path"`
	OrdersJSON     json.RawMessage `json:"orders_json"`
}

type resetRequest struct {
	ConversationID string `json:"conversation_id"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type Handler struct {
	uc     ShipFeeUseCase
	logger *slog.Logger
}

func NewHandler(uc ShipFeeUseCase, logger *slog.Logger) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{uc: uc, logger: logger}, nil
}

// Handle serves an API Gateway proxy request. Failures are always encoded in
// the response; the returned error is reserved for the Lambda runtime.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := correlationID(req.Headers)
	path := strings.TrimRight(req.Path, "/")
	if path == "" {
		path = "/"
	}

	switch path {
	case routeHealthz:
		if req.HTTPMethod != http.MethodGet {
			return h.methodNotAllowed(corrID), nil
		}
		return jsonResponse(http.StatusOK, corrID, okResponse{OK: true}), nil
	case routeAnswer:
		if req.HTTPMethod != http.MethodPost {
			return h.methodNotAllowed(corrID), nil
		}
		return h.answer(ctx, corrID, req), nil
	case routeReset:
		if req.HTTPMethod != http.MethodPost {
			return h.methodNotAllowed(corrID), nil
		}
		return h.reset(ctx, corrID, req), nil
	case routeOrders:
		if req.HTTPMethod != http.MethodGet {
			return h.methodNotAllowed(corrID), nil
		}
		return h.orders(ctx, corrID, req), nil
	default:
		return jsonResponse(http.StatusNotFound, corrID, errorResponse{Error: errorNotFound}), nil
	}
}

func (h *Handler) answer(ctx context.Context, corrID string, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	var body answerRequest
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		return h.fail(ctx, corrID, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_json", Err: err})
	}
	out, err := h.uc.Answer(ctx, usecase.AnswerInput{
		ConversationID: body.ConversationID,
		Text:           body.UserText,
		Orders:         body.OrdersJSON,
		OrdersPath:     body.OrdersJSONPath,
	})
	if err != nil {
		return h.fail(ctx, corrID, err)
	}
	return jsonResponse(http.StatusOK, corrID, out)
}

func (h *Handler) reset(ctx context.Context, corrID string, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	var body resetRequest
	if strings.TrimSpace(req.Body) != "" {
		if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
			return h.fail(ctx, corrID, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_json", Err: err})
		}
	}
	if err := h.uc.Reset(ctx, body.ConversationID); err != nil {
		return h.fail(ctx, corrID, err)
	}
	return jsonResponse(http.StatusOK, corrID, okResponse{OK: true})
}

func (h *Handler) orders(ctx context.Context, corrID string, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	convID := strings.TrimSpace(req.QueryStringParameters["conversation_id"])
	if convID == "" {
		return h.fail(ctx, corrID, &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "missing_conversation_id"})
	}
	raw, err := h.uc.OrdersByConversation(ctx, convID)
	if err != nil {
		return h.fail(ctx, corrID, err)
	}
	return rawResponse(http.StatusOK, corrID, string(raw))
}

func (h *Handler) methodNotAllowed(corrID string) events.APIGatewayProxyResponse {
	return jsonResponse(http.StatusMethodNotAllowed, corrID, errorResponse{Error: errorMethodNotAllowed})
}

func (h *Handler) fail(ctx context.Context, corrID string, err error) events.APIGatewayProxyResponse {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		h.logger.ErrorContext(ctx, "unexpected error", "correlation_id", corrID, "err", err)
		return jsonResponse(http.StatusInternalServerError, corrID, errorResponse{Error: string(usecase.ErrorInternal)})
	}
	status := statusFor(ucErr.Code)
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, "request failed",
		"correlation_id", corrID,
		"code", string(ucErr.Code),
		"reason", ucErr.Reason,
		"err", ucErr.Err,
	)
	return jsonResponse(status, corrID, errorResponse{Error: string(ucErr.Code), Message: ucErr.Reason})
}

func statusFor(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest
	case usecase.ErrorOrderSourceNotFound:
		return http.StatusNotFound
	case usecase.ErrorOrderSourceInvalid:
		return http.StatusUnprocessableEntity
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests
	case usecase.ErrorUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func correlationID(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, correlationHeader) && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return uuid.NewString()
}

func jsonResponse(status int, corrID string, v any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return rawResponse(status, corrID, string(body))
}

func rawResponse(status int, corrID, body string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: corrID,
		},
		Body: body,
	}
}
