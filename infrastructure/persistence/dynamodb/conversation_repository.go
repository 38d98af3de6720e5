package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"askingwho-backend/application/ports"
	"askingwho-backend/domain/core/entities"
)

// conversationItem is indexed once per participant: GSI1 by the first
// participant and GSI2 by the second, both sorted by last activity.
type conversationItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	GSI1PK     string `dynamodbav:"GSI1PK"`
	GSI1SK     string `dynamodbav:"GSI1SK"`
	GSI2PK     string `dynamodbav:"GSI2PK"`
	GSI2SK     string `dynamodbav:"GSI2SK"`
	EntityType string `dynamodbav:"EntityType"`

	ID            string     `dynamodbav:"ID"`
	Participants  []string   `dynamodbav:"Participants"`
	LastMessage   string     `dynamodbav:"LastMessage,omitempty"`
	LastMessageAt *time.Time `dynamodbav:"LastMessageAt,omitempty"`
	CreatedAt     time.Time  `dynamodbav:"CreatedAt"`
}

// pairItem enforces one conversation per unordered participant pair
type pairItem struct {
	PK             string `dynamodbav:"PK"`
	SK             string `dynamodbav:"SK"`
	EntityType     string `dynamodbav:"EntityType"`
	ConversationID string `dynamodbav:"ConversationID"`
}

func activityKey(t time.Time) string { return "ACTIVITY#" + sortTime(t) }

func newConversationItem(c *entities.Conversation) conversationItem {
	activity := activityKey(c.ActivityAt())
	return conversationItem{
		PK:            conversationPK(c.ID),
		SK:            skMetadata,
		GSI1PK:        memberKey(c.Participants[0]),
		GSI1SK:        activity,
		GSI2PK:        memberKey(c.Participants[1]),
		GSI2SK:        activity,
		EntityType:    entityConversation,
		ID:            c.ID,
		Participants:  c.Participants[:],
		LastMessage:   c.LastMessage,
		LastMessageAt: c.LastMessageAt,
		CreatedAt:     c.CreatedAt,
	}
}

func (i conversationItem) toEntity() (*entities.Conversation, error) {
	if len(i.Participants) != 2 {
		return nil, fmt.Errorf("conversation %s has %d participants", i.ID, len(i.Participants))
	}
	return &entities.Conversation{
		ID:            i.ID,
		Participants:  [2]string{i.Participants[0], i.Participants[1]},
		LastMessage:   i.LastMessage,
		LastMessageAt: i.LastMessageAt,
		CreatedAt:     i.CreatedAt,
	}, nil
}

// ConversationRepository implements ports.ConversationRepository
type ConversationRepository struct {
	t *table
}

// Create writes the conversation together with its pair item. The pair
// item's condition makes a second conversation for the same pair fail.
func (r *ConversationRepository) Create(ctx context.Context, c *entities.Conversation) error {
	conv, err := attributevalue.MarshalMap(newConversationItem(c))
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}
	pair, err := attributevalue.MarshalMap(pairItem{
		PK:             pairPK(entities.PairKey(c.Participants[0], c.Participants[1])),
		SK:             entityPair,
		EntityType:     entityPair,
		ConversationID: c.ID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal conversation pair: %w", err)
	}
	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name("PK"))).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	_, err = r.t.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:                r.t.name(),
				Item:                     pair,
				ConditionExpression:      expr.Condition(),
				ExpressionAttributeNames: expr.Names(),
			}},
			{Put: &types.Put{
				TableName:                r.t.name(),
				Item:                     conv,
				ConditionExpression:      expr.Condition(),
				ExpressionAttributeNames: expr.Names(),
			}},
		},
	})
	if transactionConflict(err) {
		return ports.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	return nil
}

// GetByID returns the conversation with the given id
func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*entities.Conversation, error) {
	var item conversationItem
	if err := r.t.getItem(ctx, conversationPK(id), skMetadata, &item); err != nil {
		return nil, err
	}
	return item.toEntity()
}

// FindByPair resolves the conversation of an unordered pair through its pair item
func (r *ConversationRepository) FindByPair(ctx context.Context, a, b string) (*entities.Conversation, error) {
	var pair pairItem
	if err := r.t.getItem(ctx, pairPK(entities.PairKey(a, b)), entityPair, &pair); err != nil {
		return nil, err
	}
	conv, err := r.GetByID(ctx, pair.ConversationID)
	if errors.Is(err, ports.ErrNotFound) {
		r.t.logger.Warn("Conversation pair points to a missing conversation",
			zap.String("conversationID", pair.ConversationID),
		)
	}
	return conv, err
}

// ListByParticipant returns userID's conversations, most recent activity first
func (r *ConversationRepository) ListByParticipant(ctx context.Context, userID string) ([]*entities.Conversation, error) {
	var first, second []map[string]types.AttributeValue
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		first, err = r.memberQuery(gctx, r.t.cfg.GSI1Name, "GSI1PK", userID)
		return err
	})
	g.Go(func() error {
		var err error
		second, err = r.memberQuery(gctx, r.t.cfg.GSI2Name, "GSI2PK", userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var items []conversationItem
	if err := attributevalue.UnmarshalListOfMaps(append(first, second...), &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversations: %w", err)
	}
	out := make([]*entities.Conversation, 0, len(items))
	for _, item := range items {
		c, err := item.toEntity()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ActivityAt().After(out[j].ActivityAt()) })
	return out, nil
}

func (r *ConversationRepository) memberQuery(ctx context.Context, index, pkAttr, userID string) ([]map[string]types.AttributeValue, error) {
	keyCond := expression.Key(pkAttr).Equal(expression.Value(memberKey(userID)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}
	return r.t.queryAll(ctx, &dynamodb.QueryInput{
		TableName:                 r.t.name(),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false),
	})
}

// UpdateLastMessage stores the preview and moves the conversation's activity keys
func (r *ConversationRepository) UpdateLastMessage(ctx context.Context, id, text string, at time.Time) error {
	activity := activityKey(at)
	update := expression.Set(expression.Name("LastMessage"), expression.Value(text)).
		Set(expression.Name("LastMessageAt"), expression.Value(at.UTC())).
		Set(expression.Name("GSI1SK"), expression.Value(activity)).
		Set(expression.Name("GSI2SK"), expression.Value(activity))
	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.AttributeExists(expression.Name("PK"))).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	_, err = r.t.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 r.t.name(),
		Key:                       key(conversationPK(id), skMetadata),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if _, failed := conditionFailed(err); failed {
		return ports.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	return nil
}

// messageItem lives in its conversation's partition; GSI1 resolves a message by id
type messageItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	GSI1PK     string `dynamodbav:"GSI1PK"`
	GSI1SK     string `dynamodbav:"GSI1SK"`
	EntityType string `dynamodbav:"EntityType"`

	ID             string    `dynamodbav:"ID"`
	ConversationID string    `dynamodbav:"ConversationID"`
	SenderID       string    `dynamodbav:"SenderID"`
	ReceiverID     string    `dynamodbav:"ReceiverID"`
	Text           string    `dynamodbav:"Text"`
	IsRead         bool      `dynamodbav:"IsRead"`
	CreatedAt      time.Time `dynamodbav:"CreatedAt"`
}

func newMessageItem(m *entities.Message) messageItem {
	return messageItem{
		PK:             conversationPK(m.ConversationID),
		SK:             messageSK(m.ID),
		GSI1PK:         messageKey(m.ID),
		GSI1SK:         skMetadata,
		EntityType:     entityMessage,
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		ReceiverID:     m.ReceiverID,
		Text:           m.Text,
		IsRead:         m.IsRead,
		CreatedAt:      m.CreatedAt,
	}
}

func (i messageItem) toEntity() *entities.Message {
	return &entities.Message{
		ID:             i.ID,
		ConversationID: i.ConversationID,
		SenderID:       i.SenderID,
		ReceiverID:     i.ReceiverID,
		Text:           i.Text,
		IsRead:         i.IsRead,
		CreatedAt:      i.CreatedAt,
	}
}

// MessageRepository implements ports.MessageRepository
type MessageRepository struct {
	t *table
}

// Create inserts a message
func (r *MessageRepository) Create(ctx context.Context, m *entities.Message) error {
	av, err := attributevalue.MarshalMap(newMessageItem(m))
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if _, err := r.t.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: r.t.name(),
		Item:      av,
	}); err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// GetByID resolves a message through GSI1
func (r *MessageRepository) GetByID(ctx context.Context, id string) (*entities.Message, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(messageKey(id)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}
	out, err := r.t.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 r.t.name(),
		IndexName:                 aws.String(r.t.cfg.GSI1Name),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, ports.ErrNotFound
	}
	var item messageItem
	if err := attributevalue.UnmarshalMap(out.Items[0], &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	return item.toEntity(), nil
}

// ListByConversation returns one window of messages, newest first
func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID string, skip, limit int) ([]*entities.Message, int, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(conversationPK(conversationID))).
		And(expression.Key("SK").BeginsWith(messageSK("")))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build expression: %w", err)
	}
	raw, err := r.t.queryAll(ctx, &dynamodb.QueryInput{
		TableName:                 r.t.name(),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false),
	})
	if err != nil {
		return nil, 0, err
	}

	start, end := window(len(raw), skip, limit)
	var items []messageItem
	if err := attributevalue.UnmarshalListOfMaps(raw[start:end], &items); err != nil {
		return nil, 0, fmt.Errorf("failed to unmarshal messages: %w", err)
	}
	out := make([]*entities.Message, 0, len(items))
	for _, item := range items {
		out = append(out, item.toEntity())
	}
	return out, len(raw), nil
}

// MarkRead flags a message as read
func (r *MessageRepository) MarkRead(ctx context.Context, id string) error {
	msg, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	expr, err := expression.NewBuilder().
		WithUpdate(expression.Set(expression.Name("IsRead"), expression.Value(true))).
		WithCondition(expression.AttributeExists(expression.Name("PK"))).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}
	_, err = r.t.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 r.t.name(),
		Key:                       key(conversationPK(msg.ConversationID), messageSK(id)),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if _, failed := conditionFailed(err); failed {
		return ports.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to mark message read: %w", err)
	}
	return nil
}
