// Command ws-events serves the API Gateway websocket routes and delivers
// live events from EventBridge to the connections joined to a member's channel.
package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"

	"askingwho-backend/infrastructure/config"
	"askingwho-backend/infrastructure/di"
	"askingwho-backend/infrastructure/messaging/apigw"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.WebSocketEndpoint == "" {
		log.Fatal("WEBSOCKET_ENDPOINT is required")
	}
	c, err := di.InitializeEventsContainer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	h := &handler{
		registry:  c.Registry,
		validator: c.Validator,
		newPusher: func(endpoint string) *apigw.Pusher {
			return apigw.NewPusher(apigw.NewClient(c.AWS, endpoint), c.Registry, c.Logger)
		},
		endpoint: cfg.WebSocketEndpoint,
		logger:   c.Logger,
	}
	lambda.Start(h.Handle)
}
