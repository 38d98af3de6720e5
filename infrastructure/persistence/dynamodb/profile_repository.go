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

	"askingwho-backend/application/ports"
	"askingwho-backend/domain/core/entities"
	"askingwho-backend/domain/mentions"
)

// profileItem is the DynamoDB item of a profile. The username index key is
// the case-folded username so handles resolve case-insensitively.
type profileItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	GSI1PK     string `dynamodbav:"GSI1PK"`
	GSI1SK     string `dynamodbav:"GSI1SK"`
	EntityType string `dynamodbav:"EntityType"`

	ID           string           `dynamodbav:"ID"`
	Username     string           `dynamodbav:"Username"`
	FirstName    string           `dynamodbav:"FirstName"`
	LastName     string           `dynamodbav:"LastName"`
	ProfilePhoto string           `dynamodbav:"ProfilePhoto,omitempty"`
	Bio          string           `dynamodbav:"Bio,omitempty"`
	Followers    []string         `dynamodbav:"Followers,stringset,omitempty"`
	Following    []string         `dynamodbav:"Following,stringset,omitempty"`
	Privacy      entities.Privacy `dynamodbav:"Privacy"`
	CreatedAt    time.Time        `dynamodbav:"CreatedAt"`

	StatFollowers int `dynamodbav:"StatFollowers"`
	StatFollowing int `dynamodbav:"StatFollowing"`
	StatQuestions int `dynamodbav:"StatQuestions"`
	StatLikes     int `dynamodbav:"StatLikes"`
}

func newProfileItem(p *entities.Profile) profileItem {
	return profileItem{
		PK:            userPK(p.ID),
		SK:            skProfile,
		GSI1PK:        usernameKey(mentions.Fold(p.Username)),
		GSI1SK:        skProfile,
		EntityType:    entityProfile,
		ID:            p.ID,
		Username:      p.Username,
		FirstName:     p.FirstName,
		LastName:      p.LastName,
		ProfilePhoto:  p.ProfilePhoto,
		Bio:           p.Bio,
		Followers:     p.Followers,
		Following:     p.Following,
		Privacy:       p.Privacy,
		CreatedAt:     p.CreatedAt,
		StatFollowers: p.Stats.Followers,
		StatFollowing: p.Stats.Following,
		StatQuestions: p.Stats.Questions,
		StatLikes:     p.Stats.Likes,
	}
}

func (i profileItem) toEntity() *entities.Profile {
	p := &entities.Profile{
		ID:           i.ID,
		Username:     i.Username,
		FirstName:    i.FirstName,
		LastName:     i.LastName,
		ProfilePhoto: i.ProfilePhoto,
		Bio:          i.Bio,
		Followers:    i.Followers,
		Following:    i.Following,
		Privacy:      i.Privacy,
		CreatedAt:    i.CreatedAt,
		Stats: entities.ProfileStats{
			Followers: i.StatFollowers,
			Following: i.StatFollowing,
			Questions: i.StatQuestions,
			Likes:     i.StatLikes,
		},
	}
	sort.Strings(p.Followers)
	sort.Strings(p.Following)
	return p
}

func statAttribute(field entities.StatField) (string, error) {
	switch field {
	case entities.StatFollowers:
		return "StatFollowers", nil
	case entities.StatFollowing:
		return "StatFollowing", nil
	case entities.StatQuestions:
		return "StatQuestions", nil
	case entities.StatLikes:
		return "StatLikes", nil
	default:
		return "", fmt.Errorf("unknown stat field %q", field)
	}
}

// ProfileRepository implements ports.ProfileRepository
type ProfileRepository struct {
	t *table
}

// Save inserts or replaces a profile. Usernames are unique case-insensitively.
func (r *ProfileRepository) Save(ctx context.Context, profile *entities.Profile) error {
	if profile == nil || profile.ID == "" || profile.Username == "" {
		return fmt.Errorf("invalid profile")
	}
	existing, err := r.FindByHandle(ctx, profile.Username)
	switch {
	case err == nil && existing.ID != profile.ID:
		return fmt.Errorf("username %q: %w", profile.Username, ports.ErrConflict)
	case err != nil && !errors.Is(err, ports.ErrNotFound):
		return err
	}

	av, err := attributevalue.MarshalMap(newProfileItem(profile))
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	if _, err := r.t.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: r.t.name(),
		Item:      av,
	}); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// GetByID returns the profile with the given id
func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*entities.Profile, error) {
	var item profileItem
	if err := r.t.getItem(ctx, userPK(id), skProfile, &item); err != nil {
		return nil, err
	}
	return item.toEntity(), nil
}

// GetByUsername matches the username exactly
func (r *ProfileRepository) GetByUsername(ctx context.Context, username string) (*entities.Profile, error) {
	p, err := r.FindByHandle(ctx, username)
	if err != nil {
		return nil, err
	}
	if p.Username != username {
		return nil, ports.ErrNotFound
	}
	return p, nil
}

// FindByHandle matches the username case-insensitively through GSI1
func (r *ProfileRepository) FindByHandle(ctx context.Context, handle string) (*entities.Profile, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(usernameKey(mentions.Fold(handle))))
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
		return nil, fmt.Errorf("failed to query username: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, ports.ErrNotFound
	}
	var item profileItem
	if err := attributevalue.UnmarshalMap(out.Items[0], &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	return item.toEntity(), nil
}

// GetMany returns the profiles that exist among ids, keyed by id
func (r *ProfileRepository) GetMany(ctx context.Context, ids []string) (map[string]*entities.Profile, error) {
	out := make(map[string]*entities.Profile, len(ids))
	seen := make(map[string]struct{}, len(ids))
	var keys []map[string]types.AttributeValue
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		keys = append(keys, key(userPK(id), skProfile))
	}

	for start := 0; start < len(keys); start += batchGetLimit {
		end := start + batchGetLimit
		if end > len(keys) {
			end = len(keys)
		}
		pending := map[string]types.KeysAndAttributes{
			r.t.cfg.TableName: {Keys: keys[start:end]},
		}
		for attempt := 0; len(pending) > 0; attempt++ {
			if attempt == maxBatchRetries {
				return nil, fmt.Errorf("batch get left unprocessed keys")
			}
			if attempt > 0 {
				if err := backoff(ctx, attempt); err != nil {
					return nil, err
				}
			}
			res, err := r.t.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: pending})
			if err != nil {
				return nil, fmt.Errorf("failed to batch get profiles: %w", err)
			}
			for _, raw := range res.Responses[r.t.cfg.TableName] {
				var item profileItem
				if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
					return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
				}
				out[item.ID] = item.toEntity()
			}
			pending = res.UnprocessedKeys
		}
	}
	return out, nil
}

// List scans every profile, ordered by username
func (r *ProfileRepository) List(ctx context.Context) ([]*entities.Profile, error) {
	filter := expression.Name("EntityType").Equal(expression.Value(entityProfile))
	expr, err := expression.NewBuilder().WithFilter(filter).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	var profiles []*entities.Profile
	paginator := dynamodb.NewScanPaginator(r.t.client, &dynamodb.ScanInput{
		TableName:                 r.t.name(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profiles: %w", err)
		}
		var items []profileItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal profiles: %w", err)
		}
		for _, item := range items {
			profiles = append(profiles, item.toEntity())
		}
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Username < profiles[j].Username })
	return profiles, nil
}

// AddFollowing adds targetID to userID's following set
func (r *ProfileRepository) AddFollowing(ctx context.Context, userID, targetID string) (bool, error) {
	return r.addEdge(ctx, userID, targetID, "Following", "StatFollowing")
}

// AddFollower adds followerID to userID's followers set
func (r *ProfileRepository) AddFollower(ctx context.Context, userID, followerID string) (bool, error) {
	return r.addEdge(ctx, userID, followerID, "Followers", "StatFollowers")
}

// RemoveFollowing removes targetID from userID's following set
func (r *ProfileRepository) RemoveFollowing(ctx context.Context, userID, targetID string) (bool, error) {
	return r.removeEdge(ctx, userID, targetID, "Following", "StatFollowing")
}

// RemoveFollower removes followerID from userID's followers set
func (r *ProfileRepository) RemoveFollower(ctx context.Context, userID, followerID string) (bool, error) {
	return r.removeEdge(ctx, userID, followerID, "Followers", "StatFollowers")
}

// addEdge adds otherID to a set attribute and bumps its counter in one
// conditional update. The condition fails when the id is already present.
func (r *ProfileRepository) addEdge(ctx context.Context, userID, otherID, setAttr, statAttr string) (bool, error) {
	update := expression.Add(expression.Name(setAttr), expression.Value(stringSet(otherID))).
		Add(expression.Name(statAttr), expression.Value(1))
	cond := expression.AttributeExists(expression.Name("PK")).
		And(expression.Not(expression.Contains(expression.Name(setAttr), otherID)))
	return r.edgeUpdate(ctx, userID, update, cond)
}

// removeEdge deletes otherID from a set attribute and decrements its counter
// only when the id is present
func (r *ProfileRepository) removeEdge(ctx context.Context, userID, otherID, setAttr, statAttr string) (bool, error) {
	update := expression.Delete(expression.Name(setAttr), expression.Value(stringSet(otherID))).
		Add(expression.Name(statAttr), expression.Value(-1))
	cond := expression.AttributeExists(expression.Name("PK")).
		And(expression.Contains(expression.Name(setAttr), otherID))
	return r.edgeUpdate(ctx, userID, update, cond)
}

func (r *ProfileRepository) edgeUpdate(ctx context.Context, userID string, update expression.UpdateBuilder, cond expression.ConditionBuilder) (bool, error) {
	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return false, fmt.Errorf("failed to build expression: %w", err)
	}

	_, err = r.t.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                           r.t.name(),
		Key:                                 key(userPK(userID), skProfile),
		UpdateExpression:                    expr.Update(),
		ConditionExpression:                 expr.Condition(),
		ExpressionAttributeNames:            expr.Names(),
		ExpressionAttributeValues:           expr.Values(),
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err == nil {
		return true, nil
	}
	if old, failed := conditionFailed(err); failed {
		if len(old) == 0 {
			return false, ports.ErrNotFound
		}
		return false, nil
	}
	r.t.logger.Error("Failed to update follow edge", zap.String("userID", userID), zap.Error(err))
	return false, fmt.Errorf("failed to update profile edge: %w", err)
}

// IncrementStat adjusts a counter, never going below zero
func (r *ProfileRepository) IncrementStat(ctx context.Context, userID string, field entities.StatField, delta int) error {
	attr, err := statAttribute(field)
	if err != nil {
		return err
	}
	if delta == 0 {
		return nil
	}

	cond := expression.AttributeExists(expression.Name("PK"))
	if delta < 0 {
		cond = cond.And(expression.Name(attr).GreaterThanEqual(expression.Value(-delta)))
	}
	expr, err := expression.NewBuilder().
		WithUpdate(expression.Add(expression.Name(attr), expression.Value(delta))).
		WithCondition(cond).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	_, err = r.t.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                           r.t.name(),
		Key:                                 key(userPK(userID), skProfile),
		UpdateExpression:                    expr.Update(),
		ConditionExpression:                 expr.Condition(),
		ExpressionAttributeNames:            expr.Names(),
		ExpressionAttributeValues:           expr.Values(),
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if old, failed := conditionFailed(err); failed {
		if len(old) == 0 {
			return ports.ErrNotFound
		}
		// The counter would go negative; leave it at its floor.
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to increment %s: %w", attr, err)
	}
	return nil
}
