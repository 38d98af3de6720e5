package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"askingwho-backend/application/ports"
	"askingwho-backend/infrastructure/messaging/apigw"
	"askingwho-backend/infrastructure/messaging/eventbridge"
	"askingwho-backend/pkg/auth"
)

// Websocket route keys configured on the API Gateway stage
const (
	routeConnect    = "$connect"
	routeDisconnect = "$disconnect"
	routeJoin       = "join"
	routeDefault    = "$default"
)

// joinFrame is the client frame sent on the join route
type joinFrame struct {
	Event  string `json:"event"`
	UserID string `json:"userId"`
}

// handler serves the websocket routes and the EventBridge fan-out
type handler struct {
	registry  *apigw.Registry
	validator *auth.JWTValidator
	newPusher func(endpoint string) *apigw.Pusher
	endpoint  string
	logger    *zap.Logger
}

// envelope is decoded first to tell the two event sources apart
type envelope struct {
	DetailType     string          `json:"detail-type"`
	RequestContext json.RawMessage `json:"requestContext"`
}

// Handle dispatches a raw Lambda event
func (h *handler) Handle(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}

	switch {
	case len(env.RequestContext) > 0:
		var req events.APIGatewayWebsocketProxyRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("failed to decode websocket request: %w", err)
		}
		return h.handleWebsocket(ctx, req), nil
	case env.DetailType != "":
		var ev events.CloudWatchEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("failed to decode bus event: %w", err)
		}
		return nil, h.handleLiveEvent(ctx, ev)
	default:
		return nil, errors.New("unsupported event")
	}
}

func (h *handler) handleWebsocket(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) events.APIGatewayProxyResponse {
	connID := req.RequestContext.ConnectionID
	logger := h.logger.With(
		zap.String("routeKey", req.RequestContext.RouteKey),
		zap.String("connectionID", connID),
	)

	switch req.RequestContext.RouteKey {
	case routeConnect:
		userID, err := h.authenticate(req)
		if err != nil {
			logger.Warn("WebSocket authentication failed", zap.Error(err))
			return respond(http.StatusUnauthorized)
		}
		if err := h.registry.Connect(ctx, connID, userID); err != nil {
			logger.Error("Failed to register connection", zap.Error(err))
			return respond(http.StatusInternalServerError)
		}
		return respond(http.StatusOK)

	case routeDisconnect:
		if err := h.registry.Disconnect(ctx, connID); err != nil {
			logger.Error("Failed to remove connection", zap.Error(err))
			return respond(http.StatusInternalServerError)
		}
		return respond(http.StatusOK)

	case routeJoin, routeDefault:
		pusher := h.newPusher(stageEndpoint(req.RequestContext))
		var frame joinFrame
		if err := json.Unmarshal([]byte(req.Body), &frame); err != nil {
			h.reply(ctx, pusher, connID, ports.EventError, map[string]string{"message": "malformed frame"})
			return respond(http.StatusBadRequest)
		}
		if frame.Event != ports.EventJoin {
			logger.Debug("Ignoring client event", zap.String("event", frame.Event))
			return respond(http.StatusOK)
		}
		if err := h.registry.Join(ctx, connID, frame.UserID); err != nil {
			logger.Warn("Rejected join", zap.String("requestedUserID", frame.UserID), zap.Error(err))
			h.reply(ctx, pusher, connID, ports.EventError, map[string]string{"message": joinErrorMessage(err)})
			return respond(http.StatusOK)
		}
		h.reply(ctx, pusher, connID, ports.EventJoin, map[string]string{"userId": frame.UserID})
		return respond(http.StatusOK)

	default:
		logger.Warn("Unknown route")
		return respond(http.StatusBadRequest)
	}
}

func (h *handler) handleLiveEvent(ctx context.Context, ev events.CloudWatchEvent) error {
	live, err := eventbridge.ParseDetail(ev.Detail)
	if err != nil {
		h.logger.Warn("Dropping malformed live event", zap.String("detailType", ev.DetailType), zap.Error(err))
		return nil
	}

	delivered, err := h.newPusher(h.endpoint).Push(ctx, live.UserID, live.Event, live.Data)
	if err != nil {
		return err
	}
	h.logger.Debug("Live event delivered",
		zap.String("event", live.Event),
		zap.String("userID", live.UserID),
		zap.Int("connections", delivered),
	)
	return nil
}

func (h *handler) authenticate(req events.APIGatewayWebsocketProxyRequest) (string, error) {
	token := req.QueryStringParameters["token"]
	if token == "" {
		token = req.Headers["Authorization"]
	}
	if token == "" {
		return "", auth.ErrMissingToken
	}
	claims, err := h.validator.ValidateToken(token)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

func (h *handler) reply(ctx context.Context, pusher *apigw.Pusher, connID, event string, data interface{}) {
	if err := pusher.Reply(ctx, connID, event, data); err != nil {
		h.logger.Warn("Failed to reply to connection", zap.String("connectionID", connID), zap.Error(err))
	}
}

func joinErrorMessage(err error) string {
	switch {
	case errors.Is(err, apigw.ErrForeignChannel), errors.Is(err, apigw.ErrConnectionLimit):
		return err.Error()
	case errors.Is(err, apigw.ErrUnknownConnection):
		return "connection is not authenticated"
	default:
		return "failed to join channel"
	}
}

func stageEndpoint(rc events.APIGatewayWebsocketProxyRequestContext) string {
	return fmt.Sprintf("https://%s/%s", rc.DomainName, rc.Stage)
}

func respond(status int) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{StatusCode: status}
}
