package apigw

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"
	"go.uber.org/zap"
)

// PostAPI is the subset of the API Gateway management client used here
type PostAPI interface {
	PostToConnection(ctx context.Context, params *apigatewaymanagementapi.PostToConnectionInput, optFns ...func(*apigatewaymanagementapi.Options)) (*apigatewaymanagementapi.PostToConnectionOutput, error)
}

var _ PostAPI = (*apigatewaymanagementapi.Client)(nil)

// Frame is the message posted to a connection. It matches the frame the
// in-process websocket server sends.
type Frame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// Pusher posts frames to the connections of a member's channel
type Pusher struct {
	client   PostAPI
	registry *Registry
	logger   *zap.Logger
}

// NewPusher creates a new pusher
func NewPusher(client PostAPI, registry *Registry, logger *zap.Logger) *Pusher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pusher{client: client, registry: registry, logger: logger}
}

// NewClient creates a management API client for a websocket stage endpoint,
// e.g. https://abc.execute-api.us-west-2.amazonaws.com/prod
func NewClient(cfg aws.Config, endpoint string) *apigatewaymanagementapi.Client {
	return apigatewaymanagementapi.NewFromConfig(cfg, func(o *apigatewaymanagementapi.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})
}

// Push sends an event to every connection joined to userID's channel and
// returns how many received it. Gone connections are removed.
func (p *Pusher) Push(ctx context.Context, userID, event string, data interface{}) (int, error) {
	frame, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal %s frame: %w", event, err)
	}

	ids, err := p.registry.Connections(ctx, userID)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		p.logger.Debug("No live connections for user", zap.String("userID", userID), zap.String("event", event))
		return 0, nil
	}

	var delivered, failed int
	for _, id := range ids {
		gone, err := p.post(ctx, id, frame)
		switch {
		case gone:
			if err := p.registry.Remove(ctx, userID, id); err != nil {
				p.logger.Warn("Failed to remove stale connection", zap.String("connectionID", id), zap.Error(err))
			}
		case err != nil:
			failed++
			p.logger.Warn("Failed to post to connection",
				zap.String("userID", userID),
				zap.String("connectionID", id),
				zap.Error(err),
			)
		default:
			delivered++
		}
	}

	if failed > 0 && delivered == 0 {
		return 0, fmt.Errorf("%d of %d connections failed the %s event", failed, len(ids), event)
	}
	return delivered, nil
}

// Reply posts a frame to a single connection
func (p *Pusher) Reply(ctx context.Context, connectionID, event string, data interface{}) error {
	frame, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("failed to marshal %s frame: %w", event, err)
	}
	gone, err := p.post(ctx, connectionID, frame)
	if gone {
		return nil
	}
	return err
}

// post reports gone=true when API Gateway no longer knows the connection
func (p *Pusher) post(ctx context.Context, connectionID string, frame []byte) (bool, error) {
	_, err := p.client.PostToConnection(ctx, &apigatewaymanagementapi.PostToConnectionInput{
		ConnectionId: aws.String(connectionID),
		Data:         frame,
	})
	if err == nil {
		return false, nil
	}
	var gone *types.GoneException
	if errors.As(err, &gone) {
		p.logger.Debug("Connection is gone", zap.String("connectionID", connectionID))
		return true, nil
	}
	return false, fmt.Errorf("failed to post to connection: %w", err)
}
