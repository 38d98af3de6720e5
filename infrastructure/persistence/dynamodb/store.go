// Package dynamodb implements every repository port on a single DynamoDB
// table. Items share the generic PK/SK keys plus two overloaded secondary
// indexes (GSI1, GSI2).
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"askingwho-backend/application/ports"
)

// API is the subset of the DynamoDB client the store uses
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

var _ API = (*dynamodb.Client)(nil)

// Entity type markers stored on every item
const (
	entityProfile      = "PROFILE"
	entityQuestion     = "QUESTION"
	entityNotification = "NOTIFICATION"
	entityConversation = "CONVERSATION"
	entityPair         = "PAIR"
	entityMessage      = "MESSAGE"
)

const (
	skProfile  = "PROFILE"
	skMetadata = "METADATA"
	pkAnswered = "ANSWERED"

	// sortTimeLayout is fixed width so timestamps sort lexically
	sortTimeLayout = "2006-01-02T15:04:05.000000000Z"

	batchGetLimit   = 100
	batchWriteLimit = 25
	maxBatchRetries = 5
)

func userPK(id string) string          { return "USER#" + id }
func usernameKey(folded string) string { return "USERNAME#" + folded }
func questionPK(id string) string      { return "QUESTION#" + id }
func recipientKey(id string) string    { return "TO#" + id }
func notificationSK(id string) string  { return "NOTIF#" + id }
func conversationPK(id string) string  { return "CONV#" + id }
func memberKey(id string) string       { return "MEMBER#" + id }
func pairPK(key string) string         { return "PAIR#" + key }
func messageSK(id string) string       { return "MSG#" + id }
func messageKey(id string) string      { return "MESSAGE#" + id }

func sortTime(t time.Time) string { return t.UTC().Format(sortTimeLayout) }

// Config names the table and its indexes
type Config struct {
	TableName string
	GSI1Name  string
	GSI2Name  string
}

// table carries what every repository needs to talk to the table
type table struct {
	client API
	cfg    Config
	logger *zap.Logger
}

// Store bundles one repository per port, all on the same table
type Store struct {
	Profiles      *ProfileRepository
	Questions     *QuestionRepository
	Notifications *NotificationRepository
	Conversations *ConversationRepository
	Messages      *MessageRepository

	t *table
}

var (
	_ ports.ProfileRepository      = (*ProfileRepository)(nil)
	_ ports.QuestionRepository     = (*QuestionRepository)(nil)
	_ ports.NotificationRepository = (*NotificationRepository)(nil)
	_ ports.ConversationRepository = (*ConversationRepository)(nil)
	_ ports.MessageRepository      = (*MessageRepository)(nil)
)

// NewStore creates the repositories for cfg.TableName
func NewStore(client API, cfg Config, logger *zap.Logger) *Store {
	if cfg.GSI1Name == "" {
		cfg.GSI1Name = "GSI1"
	}
	if cfg.GSI2Name == "" {
		cfg.GSI2Name = "GSI2"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &table{client: classifyingClient{client}, cfg: cfg, logger: logger}
	return &Store{
		Profiles:      &ProfileRepository{t},
		Questions:     &QuestionRepository{t},
		Notifications: &NotificationRepository{t},
		Conversations: &ConversationRepository{t},
		Messages:      &MessageRepository{t},
		t:             t,
	}
}

// Ping checks that the table exists and is active
func (s *Store) Ping(ctx context.Context) error {
	out, err := s.t.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.t.cfg.TableName),
	})
	if err != nil {
		return fmt.Errorf("failed to describe table: %w", err)
	}
	if out.Table == nil || out.Table.TableStatus != types.TableStatusActive {
		return fmt.Errorf("table %s is not active", s.t.cfg.TableName)
	}
	return nil
}

func (t *table) name() *string { return aws.String(t.cfg.TableName) }

func key(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

func stringSet(ids ...string) types.AttributeValue {
	return &types.AttributeValueMemberSS{Value: ids}
}

// conditionFailed reports whether err is a failed condition expression and
// returns the item image DynamoDB sent back with it, if any
func conditionFailed(err error) (map[string]types.AttributeValue, bool) {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return ccf.Item, true
	}
	return nil, false
}

// transactionConflict reports whether a transaction was cancelled by a
// failed condition on any of its items
func transactionConflict(err error) bool {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return false
	}
	for _, reason := range tce.CancellationReasons {
		if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
			return true
		}
	}
	return false
}

// getItem loads one item into out, returning ErrNotFound when it is absent
func (t *table) getItem(ctx context.Context, pk, sk string, out interface{}) error {
	res, err := t.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: t.name(),
		Key:       key(pk, sk),
	})
	if err != nil {
		return fmt.Errorf("failed to get item %s/%s: %w", pk, sk, err)
	}
	if len(res.Item) == 0 {
		return ports.ErrNotFound
	}
	if err := attributevalue.UnmarshalMap(res.Item, out); err != nil {
		return fmt.Errorf("failed to unmarshal item %s/%s: %w", pk, sk, err)
	}
	return nil
}

// queryAll runs input across every result page
func (t *table) queryAll(ctx context.Context, input *dynamodb.QueryInput) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	paginator := dynamodb.NewQueryPaginator(t.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query: %w", err)
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

// batchDelete removes the given keys, retrying unprocessed writes
func (t *table) batchDelete(ctx context.Context, keys []map[string]types.AttributeValue) error {
	for start := 0; start < len(keys); start += batchWriteLimit {
		end := start + batchWriteLimit
		if end > len(keys) {
			end = len(keys)
		}
		requests := make([]types.WriteRequest, 0, end-start)
		for _, k := range keys[start:end] {
			requests = append(requests, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: k}})
		}

		pending := map[string][]types.WriteRequest{t.cfg.TableName: requests}
		for attempt := 0; len(pending) > 0; attempt++ {
			if attempt == maxBatchRetries {
				return fmt.Errorf("batch delete left %d unprocessed items", len(pending[t.cfg.TableName]))
			}
			if attempt > 0 {
				if err := backoff(ctx, attempt); err != nil {
					return err
				}
			}
			out, err := t.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
			if err != nil {
				return fmt.Errorf("failed to batch delete: %w", err)
			}
			pending = out.UnprocessedItems
		}
	}
	return nil
}

func backoff(ctx context.Context, attempt int) error {
	timer := time.NewTimer(time.Duration(attempt*attempt) * 25 * time.Millisecond)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// itemKey extracts the primary key of an item
func itemKey(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"PK": item["PK"], "SK": item["SK"]}
}

// window returns the slice bounds of [skip, skip+limit) over n items
func window(n, skip, limit int) (int, int) {
	if skip > n {
		skip = n
	}
	end := skip + limit
	if limit <= 0 || end > n {
		end = n
	}
	return skip, end
}
