// Package handler adapts API Gateway events to the conversation and
// estimate use cases. It is a thin transport shell: routing, decoding,
// correlation ids, and error-to-status mapping only.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"intake-agent/internal/domain"
	"intake-agent/internal/usecase"
)

// ConversationUseCase is the conversation surface the handler depends on.
type ConversationUseCase interface {
	HandleMessage(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
	GetSession(id string) (domain.Session, error)
	ListSessions() []domain.SessionSummary
}

// EstimateUseCase produces an estimate for a completed conversation.
type EstimateUseCase interface {
	Generate(ctx context.Context, sessionID string) (usecase.Estimate, error)
}

type chatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
	UserID    string `json:"userId"`
}

type chatResponse struct {
	SessionID        string         `json:"sessionId"`
	Response         string         `json:"response"`
	Phase            domain.Phase   `json:"phase"`
	ReadinessScore   *int           `json:"readinessScore,omitempty"`
	Requirements     map[string]any `json:"requirements,omitempty"`
	EscalationReason string         `json:"escalationReason,omitempty"`
	EstimateReady    bool           `json:"estimateReady,omitempty"`
}

type estimateRequest struct {
	SessionID string `json:"sessionId"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Handler routes API Gateway proxy events.
type Handler struct {
	conversations ConversationUseCase
	estimates     EstimateUseCase
}

// NewHandler creates a Handler. The estimate use case is optional; without
// it the estimate route answers 404.
func NewHandler(conversations ConversationUseCase, estimates EstimateUseCase) (*Handler, error) {
	if conversations == nil {
		return nil, errors.New("handler: conversation use case must not be nil")
	}
	return &Handler{conversations: conversations, estimates: estimates}, nil
}

// Handle dispatches one API Gateway event.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := correlationIDFrom(event.Headers)
	path := strings.TrimRight(event.Path, "/")

	switch {
	case event.HTTPMethod == http.MethodPost && path == "/chat":
		return h.handleChat(ctx, event, correlationID), nil
	case event.HTTPMethod == http.MethodGet && path == "/conversations":
		return h.handleList(correlationID), nil
	case event.HTTPMethod == http.MethodGet && strings.HasPrefix(path, "/conversations/"):
		return h.handleGet(strings.TrimPrefix(path, "/conversations/"), correlationID), nil
	case event.HTTPMethod == http.MethodPost && path == "/estimate" && h.estimates != nil:
		return h.handleEstimate(ctx, event, correlationID), nil
	}
	return errorReply(http.StatusNotFound, usecase.ErrorNotFound, "no such route", correlationID), nil
}

func (h *Handler) handleChat(ctx context.Context, event events.APIGatewayProxyRequest, correlationID string) events.APIGatewayProxyResponse {
	var req chatRequest
	if err := json.Unmarshal([]byte(event.Body), &req); err != nil {
		return errorReply(http.StatusBadRequest, usecase.ErrorInvalidInput, "malformed request body", correlationID)
	}

	out, err := h.conversations.HandleMessage(ctx, usecase.ChatInput{
		SessionID: req.SessionID,
		Message:   req.Message,
		UserID:    req.UserID,
	})
	if err != nil {
		return errorFor(err, correlationID)
	}

	return jsonReply(http.StatusOK, chatResponse{
		SessionID:        out.SessionID,
		Response:         out.Response,
		Phase:            out.Phase,
		ReadinessScore:   out.ReadinessScore,
		Requirements:     out.Requirements,
		EscalationReason: out.EscalationReason,
		EstimateReady:    out.EstimateReady,
	}, correlationID)
}

func (h *Handler) handleList(correlationID string) events.APIGatewayProxyResponse {
	return jsonReply(http.StatusOK, h.conversations.ListSessions(), correlationID)
}

func (h *Handler) handleGet(id, correlationID string) events.APIGatewayProxyResponse {
	sess, err := h.conversations.GetSession(id)
	if err != nil {
		return errorFor(err, correlationID)
	}
	return jsonReply(http.StatusOK, sess, correlationID)
}

func (h *Handler) handleEstimate(ctx context.Context, event events.APIGatewayProxyRequest, correlationID string) events.APIGatewayProxyResponse {
	var req estimateRequest
	if err := json.Unmarshal([]byte(event.Body), &req); err != nil {
		return errorReply(http.StatusBadRequest, usecase.ErrorInvalidInput, "malformed request body", correlationID)
	}
	estimate, err := h.estimates.Generate(ctx, req.SessionID)
	if err != nil {
		return errorFor(err, correlationID)
	}
	return jsonReply(http.StatusOK, estimate, correlationID)
}

func errorFor(err error, correlationID string) events.APIGatewayProxyResponse {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		return errorReply(http.StatusInternalServerError, usecase.ErrorInternal, "", correlationID)
	}
	switch ucErr.Code {
	case usecase.ErrorInvalidInput:
		return errorReply(http.StatusBadRequest, ucErr.Code, "", correlationID)
	case usecase.ErrorNotFound:
		return errorReply(http.StatusNotFound, ucErr.Code, "", correlationID)
	case usecase.ErrorConflict:
		return errorReply(http.StatusConflict, ucErr.Code, "", correlationID)
	case usecase.ErrorRateLimited:
		return errorReply(http.StatusTooManyRequests, ucErr.Code, "", correlationID)
	case usecase.ErrorUpstream:
		return errorReply(http.StatusBadGateway, ucErr.Code, "could not process your message, please retry", correlationID)
	default:
		return errorReply(http.StatusInternalServerError, usecase.ErrorInternal, "", correlationID)
	}
}

func jsonReply(status int, body any, correlationID string) events.APIGatewayProxyResponse {
	payload, err := json.Marshal(body)
	if err != nil {
		return errorReply(http.StatusInternalServerError, usecase.ErrorInternal, "", correlationID)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    replyHeaders(correlationID),
		Body:       string(payload),
	}
}

func errorReply(status int, code usecase.ErrorCode, message, correlationID string) events.APIGatewayProxyResponse {
	payload, _ := json.Marshal(errorResponse{Error: string(code), Message: message})
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    replyHeaders(correlationID),
		Body:       string(payload),
	}
}

func replyHeaders(correlationID string) map[string]string {
	return map[string]string{
		"Content-Type":     "application/json",
		"X-Correlation-Id": correlationID,
	}
}

func correlationIDFrom(headers map[string]string) string {
	for key, value := range headers {
		if strings.EqualFold(key, "X-Correlation-Id") && value != "" {
			return value
		}
	}
	return uuid.NewString()
}
