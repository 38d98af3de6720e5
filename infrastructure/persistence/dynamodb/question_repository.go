package dynamodb

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"askingwho-backend/application/ports"
	"askingwho-backend/domain/core/entities"
)

// questionItem is the DynamoDB item of a question.
// GSI1 lists a recipient's questions by creation time; the sparse GSI2
// partition ANSWERED holds every answered question by answer time.
type questionItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	GSI1PK     string `dynamodbav:"GSI1PK"`
	GSI1SK     string `dynamodbav:"GSI1SK"`
	GSI2PK     string `dynamodbav:"GSI2PK,omitempty"`
	GSI2SK     string `dynamodbav:"GSI2SK,omitempty"`
	EntityType string `dynamodbav:"EntityType"`

	ID          string             `dynamodbav:"ID"`
	FromID      string             `dynamodbav:"FromID,omitempty"`
	ToID        string             `dynamodbav:"ToID"`
	Text        string             `dynamodbav:"Text"`
	IsAnonymous bool               `dynamodbav:"IsAnonymous"`
	Answer      string             `dynamodbav:"Answer,omitempty"`
	AnsweredAt  *time.Time         `dynamodbav:"AnsweredAt,omitempty"`
	Likes       []string           `dynamodbav:"Likes,stringset,omitempty"`
	Reposts     []string           `dynamodbav:"Reposts,stringset,omitempty"`
	Comments    []entities.Comment `dynamodbav:"Comments,omitempty"`
	CreatedAt   time.Time          `dynamodbav:"CreatedAt"`
}

func newQuestionItem(q *entities.Question) questionItem {
	item := questionItem{
		PK:          questionPK(q.ID),
		SK:          skMetadata,
		GSI1PK:      recipientKey(q.ToID),
		GSI1SK:      questionSortKey(q.CreatedAt, q.ID),
		EntityType:  entityQuestion,
		ID:          q.ID,
		FromID:      q.FromID,
		ToID:        q.ToID,
		Text:        q.Text,
		IsAnonymous: q.IsAnonymous,
		Answer:      q.Answer,
		AnsweredAt:  q.AnsweredAt,
		Likes:       q.Likes,
		Reposts:     q.Reposts,
		Comments:    q.Comments,
		CreatedAt:   q.CreatedAt,
	}
	if q.IsAnswered() && q.AnsweredAt != nil {
		item.GSI2PK = pkAnswered
		item.GSI2SK = questionSortKey(*q.AnsweredAt, q.ID)
	}
	return item
}

func (i questionItem) toEntity() *entities.Question {
	q := &entities.Question{
		ID:          i.ID,
		FromID:      i.FromID,
		ToID:        i.ToID,
		Text:        i.Text,
		IsAnonymous: i.IsAnonymous,
		Answer:      i.Answer,
		AnsweredAt:  i.AnsweredAt,
		Likes:       append([]string{}, i.Likes...),
		Reposts:     append([]string{}, i.Reposts...),
		Comments:    append([]entities.Comment{}, i.Comments...),
		CreatedAt:   i.CreatedAt,
	}
	sort.Strings(q.Likes)
	return q
}

func questionSortKey(t time.Time, id string) string {
	return sortTime(t) + "#" + id
}

func unmarshalQuestions(raw []map[string]types.AttributeValue) ([]*entities.Question, error) {
	var items []questionItem
	if err := attributevalue.UnmarshalListOfMaps(raw, &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal questions: %w", err)
	}
	out := make([]*entities.Question, 0, len(items))
	for _, item := range items {
		out = append(out, item.toEntity())
	}
	return out, nil
}

// QuestionRepository implements ports.QuestionRepository
type QuestionRepository struct {
	t *table
}

// Create inserts a new question
func (r *QuestionRepository) Create(ctx context.Context, q *entities.Question) error {
	av, err := attributevalue.MarshalMap(newQuestionItem(q))
	if err != nil {
		return fmt.Errorf("failed to marshal question: %w", err)
	}
	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name("PK"))).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	_, err = r.t.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                r.t.name(),
		Item:                     av,
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if _, failed := conditionFailed(err); failed {
		return ports.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to create question: %w", err)
	}
	return nil
}

// GetByID returns the question with the given id
func (r *QuestionRepository) GetByID(ctx context.Context, id string) (*entities.Question, error) {
	var item questionItem
	if err := r.t.getItem(ctx, questionPK(id), skMetadata, &item); err != nil {
		return nil, err
	}
	return item.toEntity(), nil
}

// SetAnswer stores the answer and stamps AnsweredAt and the feed index key
// only the first time. The returned question is the pre-update image.
func (r *QuestionRepository) SetAnswer(ctx context.Context, id, answer string, now time.Time) (*entities.Question, error) {
	update := expression.Set(expression.Name("Answer"), expression.Value(answer)).
		Set(expression.Name("AnsweredAt"), expression.IfNotExists(expression.Name("AnsweredAt"), expression.Value(now.UTC()))).
		Set(expression.Name("GSI2PK"), expression.Value(pkAnswered)).
		Set(expression.Name("GSI2SK"), expression.IfNotExists(expression.Name("GSI2SK"), expression.Value(questionSortKey(now, id))))
	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.AttributeExists(expression.Name("PK"))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	out, err := r.t.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 r.t.name(),
		Key:                       key(questionPK(id), skMetadata),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllOld,
	})
	if _, failed := conditionFailed(err); failed {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set answer: %w", err)
	}

	var previous questionItem
	if err := attributevalue.UnmarshalMap(out.Attributes, &previous); err != nil {
		return nil, fmt.Errorf("failed to unmarshal question: %w", err)
	}
	return previous.toEntity(), nil
}

// AddLike adds userID to the like set
func (r *QuestionRepository) AddLike(ctx context.Context, id, userID string) (int, bool, error) {
	update := expression.Add(expression.Name("Likes"), expression.Value(stringSet(userID)))
	cond := expression.AttributeExists(expression.Name("PK")).
		And(expression.Not(expression.Contains(expression.Name("Likes"), userID)))
	return r.likeUpdate(ctx, id, update, cond)
}

// RemoveLike removes userID from the like set
func (r *QuestionRepository) RemoveLike(ctx context.Context, id, userID string) (int, bool, error) {
	update := expression.Delete(expression.Name("Likes"), expression.Value(stringSet(userID)))
	cond := expression.AttributeExists(expression.Name("PK")).
		And(expression.Contains(expression.Name("Likes"), userID))
	return r.likeUpdate(ctx, id, update, cond)
}

// likeUpdate applies a conditional set change. A failed condition on an
// existing item means the set already had the requested shape.
func (r *QuestionRepository) likeUpdate(ctx context.Context, id string, update expression.UpdateBuilder, cond expression.ConditionBuilder) (int, bool, error) {
	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return 0, false, fmt.Errorf("failed to build expression: %w", err)
	}

	out, err := r.t.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                           r.t.name(),
		Key:                                 key(questionPK(id), skMetadata),
		UpdateExpression:                    expr.Update(),
		ConditionExpression:                 expr.Condition(),
		ExpressionAttributeNames:            expr.Names(),
		ExpressionAttributeValues:           expr.Values(),
		ReturnValues:                        types.ReturnValueAllNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if old, failed := conditionFailed(err); failed {
		if len(old) == 0 {
			return 0, false, ports.ErrNotFound
		}
		return likeCount(old), false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to update likes: %w", err)
	}
	return likeCount(out.Attributes), true, nil
}

func likeCount(item map[string]types.AttributeValue) int {
	if ss, ok := item["Likes"].(*types.AttributeValueMemberSS); ok {
		return len(ss.Value)
	}
	return 0
}

// AppendComment appends to the comment list
func (r *QuestionRepository) AppendComment(ctx context.Context, id string, comment entities.Comment) error {
	empty := &types.AttributeValueMemberL{Value: []types.AttributeValue{}}
	update := expression.Set(
		expression.Name("Comments"),
		expression.ListAppend(
			expression.IfNotExists(expression.Name("Comments"), expression.Value(empty)),
			expression.Value([]entities.Comment{comment}),
		),
	)
	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.AttributeExists(expression.Name("PK"))).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	_, err = r.t.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 r.t.name(),
		Key:                       key(questionPK(id), skMetadata),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if _, failed := conditionFailed(err); failed {
		return ports.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to append comment: %w", err)
	}
	return nil
}

// Delete removes a question
func (r *QuestionRepository) Delete(ctx context.Context, id string) error {
	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeExists(expression.Name("PK"))).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}
	_, err = r.t.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                r.t.name(),
		Key:                      key(questionPK(id), skMetadata),
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if _, failed := conditionFailed(err); failed {
		return ports.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete question: %w", err)
	}
	return nil
}

// recipientQuery lists a recipient's questions newest first, optionally
// filtered on the answer
func (r *QuestionRepository) recipientQuery(ctx context.Context, toID string, filter *expression.ConditionBuilder) ([]*entities.Question, error) {
	builder := expression.NewBuilder().
		WithKeyCondition(expression.Key("GSI1PK").Equal(expression.Value(recipientKey(toID))))
	if filter != nil {
		builder = builder.WithFilter(*filter)
	}
	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	raw, err := r.t.queryAll(ctx, &dynamodb.QueryInput{
		TableName:                 r.t.name(),
		IndexName:                 aws.String(r.t.cfg.GSI1Name),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false),
	})
	if err != nil {
		return nil, err
	}
	return unmarshalQuestions(raw)
}

// ListUnanswered returns the recipient's unanswered questions, newest first
func (r *QuestionRepository) ListUnanswered(ctx context.Context, toID string) ([]*entities.Question, error) {
	filter := expression.AttributeNotExists(expression.Name("Answer"))
	return r.recipientQuery(ctx, toID, &filter)
}

// ListAnswered returns one window of the recipient's answered questions
func (r *QuestionRepository) ListAnswered(ctx context.Context, toID string, skip, limit int) ([]*entities.Question, int, error) {
	filter := expression.AttributeExists(expression.Name("Answer"))
	all, err := r.recipientQuery(ctx, toID, &filter)
	if err != nil {
		return nil, 0, err
	}
	start, end := window(len(all), skip, limit)
	return all[start:end], len(all), nil
}

// ListByRecipient returns every question addressed to toID, newest first
func (r *QuestionRepository) ListByRecipient(ctx context.Context, toID string) ([]*entities.Question, error) {
	return r.recipientQuery(ctx, toID, nil)
}

// ListFeed returns one window of all answered questions by answer time
func (r *QuestionRepository) ListFeed(ctx context.Context, skip, limit int) ([]*entities.Question, int, error) {
	raw, err := r.answeredIndex(ctx, nil)
	if err != nil {
		return nil, 0, err
	}
	start, end := window(len(raw), skip, limit)
	page, err := unmarshalQuestions(raw[start:end])
	if err != nil {
		return nil, 0, err
	}
	return page, len(raw), nil
}

// CountAnsweredByRecipient counts answered questions per recipient from the
// projected feed index
func (r *QuestionRepository) CountAnsweredByRecipient(ctx context.Context) (map[string]int, error) {
	projection := expression.NamesList(expression.Name("ToID"))
	raw, err := r.answeredIndex(ctx, &projection)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, item := range raw {
		if to, ok := item["ToID"].(*types.AttributeValueMemberS); ok {
			counts[to.Value]++
		}
	}
	return counts, nil
}

func (r *QuestionRepository) answeredIndex(ctx context.Context, projection *expression.ProjectionBuilder) ([]map[string]types.AttributeValue, error) {
	builder := expression.NewBuilder().
		WithKeyCondition(expression.Key("GSI2PK").Equal(expression.Value(pkAnswered)))
	if projection != nil {
		builder = builder.WithProjection(*projection)
	}
	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	return r.t.queryAll(ctx, &dynamodb.QueryInput{
		TableName:                 r.t.name(),
		IndexName:                 aws.String(r.t.cfg.GSI2Name),
		KeyConditionExpression:    expr.KeyCondition(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false),
	})
}
