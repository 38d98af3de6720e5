// Package apigw tracks API Gateway websocket connections per member and
// posts live events to them.
package apigw

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// MaxConnectionsPerUser bounds the channels a single member may hold
const MaxConnectionsPerUser = 10

// Join errors
var (
	ErrUnknownConnection = errors.New("connection is not registered")
	ErrForeignChannel    = errors.New("you can only join your own channel")
	ErrConnectionLimit   = fmt.Errorf("connection limit of %d reached", MaxConnectionsPerUser)
)

const (
	entityConnection = "CONNECTION"
	skMetadata       = "METADATA"
)

func connectionPK(id string) string { return "CONN#" + id }
func channelPK(userID string) string { return "USER#" + userID }

// DynamoAPI is the subset of the DynamoDB client the registry uses
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// connectionItem is written on $connect. Joining adds a channel item under
// the member's partition; both expire through the table TTL on ExpireAt.
type connectionItem struct {
	PK           string    `dynamodbav:"PK"`
	SK           string    `dynamodbav:"SK"`
	EntityType   string    `dynamodbav:"EntityType"`
	ConnectionID string    `dynamodbav:"ConnectionID"`
	UserID       string    `dynamodbav:"UserID"`
	ConnectedAt  time.Time `dynamodbav:"ConnectedAt"`
	ExpireAt     int64     `dynamodbav:"ExpireAt"`
}

// Registry stores connection and channel items in the application table
type Registry struct {
	client DynamoAPI
	table  string
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// NewRegistry creates a new connection registry
func NewRegistry(client DynamoAPI, table string, ttl time.Duration, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{client: client, table: table, ttl: ttl, now: time.Now, logger: logger}
}

func key(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

// Connect records an authenticated connection
func (r *Registry) Connect(ctx context.Context, connectionID, userID string) error {
	now := r.now().UTC()
	item, err := attributevalue.MarshalMap(connectionItem{
		PK:           connectionPK(connectionID),
		SK:           skMetadata,
		EntityType:   entityConnection,
		ConnectionID: connectionID,
		UserID:       userID,
		ConnectedAt:  now,
		ExpireAt:     now.Add(r.ttl).Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal connection: %w", err)
	}
	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(r.table), Item: item}); err != nil {
		return fmt.Errorf("failed to store connection: %w", err)
	}
	r.logger.Debug("Connection stored", zap.String("connectionID", connectionID), zap.String("userID", userID))
	return nil
}

func (r *Registry) connection(ctx context.Context, connectionID string) (*connectionItem, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table),
		Key:       key(connectionPK(connectionID), skMetadata),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load connection: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrUnknownConnection
	}
	var item connectionItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal connection: %w", err)
	}
	return &item, nil
}

// Join subscribes a connection to userID's channel. Only the member the
// connection authenticated as may join.
func (r *Registry) Join(ctx context.Context, connectionID, userID string) error {
	conn, err := r.connection(ctx, connectionID)
	if err != nil {
		return err
	}
	if userID == "" || conn.UserID != userID {
		return ErrForeignChannel
	}

	existing, err := r.Connections(ctx, userID)
	if err != nil {
		return err
	}
	for _, id := range existing {
		if id == connectionID {
			return nil
		}
	}
	if len(existing) >= MaxConnectionsPerUser {
		return ErrConnectionLimit
	}

	now := r.now().UTC()
	item, err := attributevalue.MarshalMap(connectionItem{
		PK:           channelPK(userID),
		SK:           connectionPK(connectionID),
		EntityType:   entityConnection,
		ConnectionID: connectionID,
		UserID:       userID,
		ConnectedAt:  conn.ConnectedAt,
		ExpireAt:     now.Add(r.ttl).Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal channel: %w", err)
	}
	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(r.table), Item: item}); err != nil {
		return fmt.Errorf("failed to join channel: %w", err)
	}

	r.logger.Info("Client joined",
		zap.String("userID", userID),
		zap.String("connectionID", connectionID),
		zap.Int("userConnections", len(existing)+1),
	)
	return nil
}

// Connections returns the unexpired connection ids joined to userID's channel
func (r *Registry) Connections(ctx context.Context, userID string) ([]string, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(channelPK(userID))).
		And(expression.Key("SK").BeginsWith("CONN#"))
	filter := expression.Name("ExpireAt").GreaterThan(expression.Value(r.now().Unix()))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).WithFilter(filter).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	var ids []string
	paginator := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:                 aws.String(r.table),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query connections: %w", err)
		}
		for _, item := range page.Items {
			if id, ok := item["ConnectionID"].(*types.AttributeValueMemberS); ok {
				ids = append(ids, id.Value)
			}
		}
	}
	return ids, nil
}

// Disconnect removes a connection and its channel subscription
func (r *Registry) Disconnect(ctx context.Context, connectionID string) error {
	conn, err := r.connection(ctx, connectionID)
	if errors.Is(err, ErrUnknownConnection) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := r.Remove(ctx, conn.UserID, connectionID); err != nil {
		return err
	}
	if _, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.table),
		Key:       key(connectionPK(connectionID), skMetadata),
	}); err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}
	r.logger.Info("Client left", zap.String("userID", conn.UserID), zap.String("connectionID", connectionID))
	return nil
}

// Remove drops connectionID from userID's channel
func (r *Registry) Remove(ctx context.Context, userID, connectionID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.table),
		Key:       key(channelPK(userID), connectionPK(connectionID)),
	})
	if err != nil {
		return fmt.Errorf("failed to remove channel %q: %w", connectionID, err)
	}
	return nil
}
