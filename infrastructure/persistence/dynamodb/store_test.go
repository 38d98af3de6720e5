package dynamodb

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"askingwho-backend/application/ports"
	"askingwho-backend/domain/core/entities"
)

// fakeAPI answers the calls a test wires up; any other call panics through
// the nil embedded interface
type fakeAPI struct {
	API

	getItem        func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error)
	putItem        func(*dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error)
	updateItem     func(*dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error)
	query          func(*dynamodb.QueryInput) (*dynamodb.QueryOutput, error)
	batchWriteItem func(*dynamodb.BatchWriteItemInput) (*dynamodb.BatchWriteItemOutput, error)
	transact       func(*dynamodb.TransactWriteItemsInput) (*dynamodb.TransactWriteItemsOutput, error)
	describeTable  func(*dynamodb.DescribeTableInput) (*dynamodb.DescribeTableOutput, error)
}

func (f *fakeAPI) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return f.getItem(in)
}

func (f *fakeAPI) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return f.putItem(in)
}

func (f *fakeAPI) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	return f.updateItem(in)
}

func (f *fakeAPI) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	return f.query(in)
}

func (f *fakeAPI) BatchWriteItem(_ context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	return f.batchWriteItem(in)
}

func (f *fakeAPI) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	return f.transact(in)
}

func (f *fakeAPI) DescribeTable(_ context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return f.describeTable(in)
}

func newTestStore(api *fakeAPI) *Store {
	return NewStore(api, Config{TableName: "askingwho"}, nil)
}

func marshal(t *testing.T, v interface{}) map[string]types.AttributeValue {
	t.Helper()
	av, err := attributevalue.MarshalMap(v)
	require.NoError(t, err)
	return av
}

func TestProfileItemMapping(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	p := &entities.Profile{
		ID:        "u-1",
		Username:  "Alice",
		FirstName: "Alice",
		Followers: []string{"u-3", "u-2"},
		Stats:     entities.ProfileStats{Followers: 2, Likes: 7},
		Privacy:   entities.Privacy{FollowerCount: entities.VisibilityFollowers},
		CreatedAt: created,
	}

	av := marshal(t, newProfileItem(p))

	t.Run("Should index the folded username", func(t *testing.T) {
		assert.Equal(t, &types.AttributeValueMemberS{Value: "USERNAME#alice"}, av["GSI1PK"])
		assert.Equal(t, &types.AttributeValueMemberS{Value: "USER#u-1"}, av["PK"])
	})

	t.Run("Should store edges as string sets", func(t *testing.T) {
		ss, ok := av["Followers"].(*types.AttributeValueMemberSS)
		require.True(t, ok)
		assert.ElementsMatch(t, []string{"u-2", "u-3"}, ss.Value)
		_, present := av["Following"]
		assert.False(t, present)
	})

	t.Run("Should map back to the entity", func(t *testing.T) {
		var item profileItem
		require.NoError(t, attributevalue.UnmarshalMap(av, &item))
		got := item.toEntity()
		assert.Equal(t, []string{"u-2", "u-3"}, got.Followers)
		assert.Equal(t, 7, got.Stats.Likes)
		assert.Equal(t, entities.VisibilityFollowers, got.Privacy.FollowerCount)
		assert.True(t, created.Equal(got.CreatedAt))
	})
}

func TestQuestionItemIndexes(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	q := &entities.Question{ID: "q-1", ToID: "bob", Text: "hi", CreatedAt: created}

	item := newQuestionItem(q)
	assert.Equal(t, "TO#bob", item.GSI1PK)
	assert.Empty(t, item.GSI2PK, "unanswered questions stay out of the feed index")

	answeredAt := created.Add(time.Hour)
	q.Answer = "hello"
	q.AnsweredAt = &answeredAt
	item = newQuestionItem(q)
	assert.Equal(t, pkAnswered, item.GSI2PK)
	assert.Equal(t, "2024-03-01T13:00:00.000000000Z#q-1", item.GSI2SK)

	av := marshal(t, newQuestionItem(&entities.Question{ID: "q-2", ToID: "bob", Text: "x", CreatedAt: created}))
	_, present := av["AnsweredAt"]
	assert.False(t, present, "if_not_exists relies on the attribute being absent")
}

func TestAddFollowingOutcomes(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantAdded bool
		wantErr   error
	}{
		{name: "Should add a new edge", wantAdded: true},
		{
			name: "Should report an existing edge",
			err: &types.ConditionalCheckFailedException{
				Item: map[string]types.AttributeValue{"PK": &types.AttributeValueMemberS{Value: "USER#a"}},
			},
		},
		{name: "Should report a missing profile", err: &types.ConditionalCheckFailedException{}, wantErr: ports.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *dynamodb.UpdateItemInput
			store := newTestStore(&fakeAPI{updateItem: func(in *dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
				got = in
				return &dynamodb.UpdateItemOutput{}, tt.err
			}})

			added, err := store.Profiles.AddFollowing(context.Background(), "a", "b")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAdded, added)
			require.NotNil(t, got)
			assert.Contains(t, aws.ToString(got.UpdateExpression), "ADD")
			assert.Contains(t, aws.ToString(got.ConditionExpression), "contains")
			assert.Equal(t, types.ReturnValuesOnConditionCheckFailureAllOld, got.ReturnValuesOnConditionCheckFailure)
		})
	}
}

func TestSetAnswerReturnsPreviousImage(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	old := newQuestionItem(&entities.Question{ID: "q-1", ToID: "bob", Text: "hey @carol", CreatedAt: created})

	var got *dynamodb.UpdateItemInput
	store := newTestStore(&fakeAPI{updateItem: func(in *dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
		got = in
		return &dynamodb.UpdateItemOutput{Attributes: marshal(t, old)}, nil
	}})

	previous, err := store.Questions.SetAnswer(context.Background(), "q-1", "answer", created.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, previous.IsAnswered())
	assert.Equal(t, "hey @carol", previous.Text)
	assert.Contains(t, aws.ToString(got.UpdateExpression), "if_not_exists")
	assert.Equal(t, types.ReturnValueAllOld, got.ReturnValues)

	t.Run("Should map a missing question to not found", func(t *testing.T) {
		store := newTestStore(&fakeAPI{updateItem: func(*dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
			return nil, &types.ConditionalCheckFailedException{}
		}})
		_, err := store.Questions.SetAnswer(context.Background(), "missing", "a", created)
		assert.ErrorIs(t, err, ports.ErrNotFound)
	})
}

func TestLikeCountFromImages(t *testing.T) {
	likes := map[string]types.AttributeValue{
		"PK":    &types.AttributeValueMemberS{Value: "QUESTION#q-1"},
		"Likes": &types.AttributeValueMemberSS{Value: []string{"a", "b"}},
	}

	store := newTestStore(&fakeAPI{updateItem: func(*dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
		return nil, &types.ConditionalCheckFailedException{Item: likes}
	}})
	count, changed, err := store.Questions.AddLike(context.Background(), "q-1", "a")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 2, count)

	store = newTestStore(&fakeAPI{updateItem: func(*dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
		return &dynamodb.UpdateItemOutput{Attributes: likes}, nil
	}})
	count, changed, err = store.Questions.AddLike(context.Background(), "q-1", "b")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 2, count)
}

func TestConversationCreateConflict(t *testing.T) {
	conv := entities.NewConversation("c-1", "bob", "alice", time.Now())

	var got *dynamodb.TransactWriteItemsInput
	store := newTestStore(&fakeAPI{transact: func(in *dynamodb.TransactWriteItemsInput) (*dynamodb.TransactWriteItemsOutput, error) {
		got = in
		return nil, &types.TransactionCanceledException{
			CancellationReasons: []types.CancellationReason{
				{Code: aws.String("ConditionalCheckFailed")},
				{Code: aws.String("None")},
			},
		}
	}})

	err := store.Conversations.Create(context.Background(), conv)
	assert.ErrorIs(t, err, ports.ErrConflict)
	require.Len(t, got.TransactItems, 2)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "PAIR#alice#bob"}, got.TransactItems[0].Put.Item["PK"])
}

func TestListFeedWindow(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var raw []map[string]types.AttributeValue
	for i := 0; i < 15; i++ {
		at := base.Add(time.Duration(15-i) * time.Minute)
		q := &entities.Question{ID: string(rune('a' + i)), ToID: "bob", Text: "t", Answer: "a", AnsweredAt: &at, CreatedAt: base}
		raw = append(raw, marshal(t, newQuestionItem(q)))
	}

	store := newTestStore(&fakeAPI{query: func(in *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
		assert.Equal(t, "GSI2", aws.ToString(in.IndexName))
		assert.False(t, aws.ToBool(in.ScanIndexForward))
		return &dynamodb.QueryOutput{Items: raw}, nil
	}})

	page, total, err := store.Questions.ListFeed(context.Background(), 10, 10)
	require.NoError(t, err)
	assert.Equal(t, 15, total)
	require.Len(t, page, 5)
	assert.Equal(t, "k", page[0].ID)
}

func TestBatchDeleteRetriesUnprocessed(t *testing.T) {
	calls := 0
	store := newTestStore(&fakeAPI{batchWriteItem: func(in *dynamodb.BatchWriteItemInput) (*dynamodb.BatchWriteItemOutput, error) {
		calls++
		if calls == 1 {
			requests := in.RequestItems["askingwho"]
			return &dynamodb.BatchWriteItemOutput{
				UnprocessedItems: map[string][]types.WriteRequest{"askingwho": requests[:1]},
			}, nil
		}
		return &dynamodb.BatchWriteItemOutput{}, nil
	}})

	keys := []map[string]types.AttributeValue{key("USER#a", "NOTIF#1"), key("USER#a", "NOTIF#2")}
	require.NoError(t, store.t.batchDelete(context.Background(), keys))
	assert.Equal(t, 2, calls)
}

func TestPing(t *testing.T) {
	store := newTestStore(&fakeAPI{describeTable: func(*dynamodb.DescribeTableInput) (*dynamodb.DescribeTableOutput, error) {
		return &dynamodb.DescribeTableOutput{Table: &types.TableDescription{TableStatus: types.TableStatusCreating}}, nil
	}})
	assert.Error(t, store.Ping(context.Background()))

	store = newTestStore(&fakeAPI{describeTable: func(*dynamodb.DescribeTableInput) (*dynamodb.DescribeTableOutput, error) {
		return &dynamodb.DescribeTableOutput{Table: &types.TableDescription{TableStatus: types.TableStatusActive}}, nil
	}})
	assert.NoError(t, store.Ping(context.Background()))
}

func TestGetByUsernameIsExact(t *testing.T) {
	item := marshal(t, newProfileItem(&entities.Profile{ID: "u-1", Username: "Alice"}))
	store := newTestStore(&fakeAPI{query: func(in *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
		return &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{item}}, nil
	}})

	p, err := store.Profiles.FindByHandle(context.Background(), "ALICE")
	require.NoError(t, err)
	assert.Equal(t, "u-1", p.ID)

	_, err = store.Profiles.GetByUsername(context.Background(), "alice")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestThrottlingIsUnavailable(t *testing.T) {
	throttled := &smithy.GenericAPIError{Code: "ProvisionedThroughputExceededException", Message: "slow down"}
	api := &fakeAPI{getItem: func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
		return nil, throttled
	}}

	_, err := newTestStore(api).Profiles.GetByID(context.Background(), "u-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrUnavailable)

	var ae smithy.APIError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "ProvisionedThroughputExceededException", ae.ErrorCode())
}

func TestValidationErrorIsNotUnavailable(t *testing.T) {
	api := &fakeAPI{getItem: func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
		return nil, &smithy.GenericAPIError{Code: "ValidationException"}
	}}

	_, err := newTestStore(api).Profiles.GetByID(context.Background(), "u-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ports.ErrUnavailable)
	assert.NotErrorIs(t, err, ports.ErrNotFound)
}
