package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"askingwho-backend/domain/core/entities"
)

// notificationItem lives in the recipient's partition. Notification ids are
// time ordered, so the sort key orders the inbox. GSI2 groups notifications
// by question for the delete cascade.
type notificationItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	GSI2PK     string `dynamodbav:"GSI2PK,omitempty"`
	GSI2SK     string `dynamodbav:"GSI2SK,omitempty"`
	EntityType string `dynamodbav:"EntityType"`

	ID          string                    `dynamodbav:"ID"`
	RecipientID string                    `dynamodbav:"RecipientID"`
	SenderID    string                    `dynamodbav:"SenderID,omitempty"`
	Type        entities.NotificationType `dynamodbav:"Type"`
	QuestionID  string                    `dynamodbav:"QuestionID,omitempty"`
	Text        string                    `dynamodbav:"Text"`
	IsRead      bool                      `dynamodbav:"IsRead"`
	CreatedAt   time.Time                 `dynamodbav:"CreatedAt"`
}

func newNotificationItem(n *entities.Notification) notificationItem {
	item := notificationItem{
		PK:          userPK(n.RecipientID),
		SK:          notificationSK(n.ID),
		EntityType:  entityNotification,
		ID:          n.ID,
		RecipientID: n.RecipientID,
		SenderID:    n.SenderID,
		Type:        n.Type,
		QuestionID:  n.QuestionID,
		Text:        n.Text,
		IsRead:      n.IsRead,
		CreatedAt:   n.CreatedAt,
	}
	if n.QuestionID != "" {
		item.GSI2PK = questionPK(n.QuestionID)
		item.GSI2SK = notificationSK(n.ID)
	}
	return item
}

func (i notificationItem) toEntity() *entities.Notification {
	return &entities.Notification{
		ID:          i.ID,
		RecipientID: i.RecipientID,
		SenderID:    i.SenderID,
		Type:        i.Type,
		QuestionID:  i.QuestionID,
		Text:        i.Text,
		IsRead:      i.IsRead,
		CreatedAt:   i.CreatedAt,
	}
}

// NotificationRepository implements ports.NotificationRepository
type NotificationRepository struct {
	t *table
}

// Create inserts a notification
func (r *NotificationRepository) Create(ctx context.Context, n *entities.Notification) error {
	av, err := attributevalue.MarshalMap(newNotificationItem(n))
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if _, err := r.t.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: r.t.name(),
		Item:      av,
	}); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *NotificationRepository) inboxQuery(recipientID string, filter *expression.ConditionBuilder) (*dynamodb.QueryInput, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(userPK(recipientID))).
		And(expression.Key("SK").BeginsWith(notificationSK("")))
	builder := expression.NewBuilder().WithKeyCondition(keyCond)
	if filter != nil {
		builder = builder.WithFilter(*filter)
	}
	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}
	return &dynamodb.QueryInput{
		TableName:                 r.t.name(),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false),
	}, nil
}

// ListByRecipient returns the newest notifications of recipientID
func (r *NotificationRepository) ListByRecipient(ctx context.Context, recipientID string, limit int) ([]*entities.Notification, error) {
	input, err := r.inboxQuery(recipientID, nil)
	if err != nil {
		return nil, err
	}
	if limit > 0 {
		input.Limit = aws.Int32(int32(limit))
	}

	out, err := r.t.client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	var items []notificationItem
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal notifications: %w", err)
	}
	result := make([]*entities.Notification, 0, len(items))
	for _, item := range items {
		result = append(result, item.toEntity())
	}
	return result, nil
}

// MarkRead flips IsRead on one notification of recipientID
func (r *NotificationRepository) MarkRead(ctx context.Context, id, recipientID string) (bool, error) {
	err := r.markRead(ctx, key(userPK(recipientID), notificationSK(id)))
	if _, failed := conditionFailed(err); failed {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *NotificationRepository) markRead(ctx context.Context, k map[string]types.AttributeValue) error {
	expr, err := expression.NewBuilder().
		WithUpdate(expression.Set(expression.Name("IsRead"), expression.Value(true))).
		WithCondition(expression.AttributeExists(expression.Name("PK"))).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}
	_, err = r.t.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 r.t.name(),
		Key:                       k,
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	return err
}

// MarkAllRead marks every unread notification of recipientID as read
func (r *NotificationRepository) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	unread := expression.Name("IsRead").Equal(expression.Value(false))
	input, err := r.inboxQuery(recipientID, &unread)
	if err != nil {
		return 0, err
	}
	input.ProjectionExpression = aws.String("PK, SK")
	raw, err := r.t.queryAll(ctx, input)
	if err != nil {
		return 0, err
	}

	marked := 0
	for _, item := range raw {
		err := r.markRead(ctx, itemKey(item))
		if _, failed := conditionFailed(err); failed {
			continue
		}
		if err != nil {
			return marked, fmt.Errorf("failed to mark notification read: %w", err)
		}
		marked++
	}
	return marked, nil
}

// DeleteAll removes every notification of recipientID
func (r *NotificationRepository) DeleteAll(ctx context.Context, recipientID string) (int, error) {
	input, err := r.inboxQuery(recipientID, nil)
	if err != nil {
		return 0, err
	}
	input.ProjectionExpression = aws.String("PK, SK")
	return r.deleteMatching(ctx, input)
}

// DeleteByQuestion removes the notifications referencing questionID
func (r *NotificationRepository) DeleteByQuestion(ctx context.Context, questionID string) (int, error) {
	keyCond := expression.Key("GSI2PK").Equal(expression.Value(questionPK(questionID))).
		And(expression.Key("GSI2SK").BeginsWith(notificationSK("")))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return 0, fmt.Errorf("failed to build expression: %w", err)
	}
	return r.deleteMatching(ctx, &dynamodb.QueryInput{
		TableName:                 r.t.name(),
		IndexName:                 aws.String(r.t.cfg.GSI2Name),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
}

func (r *NotificationRepository) deleteMatching(ctx context.Context, input *dynamodb.QueryInput) (int, error) {
	raw, err := r.t.queryAll(ctx, input)
	if err != nil {
		return 0, err
	}
	keys := make([]map[string]types.AttributeValue, 0, len(raw))
	for _, item := range raw {
		keys = append(keys, itemKey(item))
	}
	if err := r.t.batchDelete(ctx, keys); err != nil {
		return 0, err
	}
	r.t.logger.Debug("Notifications deleted", zap.Int("count", len(keys)))
	return len(keys), nil
}
