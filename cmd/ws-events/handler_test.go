package main

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"askingwho-backend/infrastructure/messaging/apigw"
	"askingwho-backend/pkg/auth"
)

type memTable struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
}

func id(k map[string]types.AttributeValue) string {
	return k["PK"].(*types.AttributeValueMemberS).Value + "|" + k["SK"].(*types.AttributeValueMemberS).Value
}

func (m *memTable) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: m.items[id(in.Key)]}, nil
}

func (m *memTable) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[id(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (m *memTable) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

// Query returns the channel items of the USER# partition named in the values
func (m *memTable) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var pk string
	for _, v := range in.ExpressionAttributeValues {
		if s, ok := v.(*types.AttributeValueMemberS); ok && strings.HasPrefix(s.Value, "USER#") {
			pk = s.Value
		}
	}
	out := &dynamodb.QueryOutput{}
	for k, item := range m.items {
		if strings.HasPrefix(k, pk+"|CONN#") {
			out.Items = append(out.Items, item)
		}
	}
	return out, nil
}

type recordingGateway struct {
	mu     sync.Mutex
	posted map[string][]apigw.Frame
}

func (g *recordingGateway) PostToConnection(_ context.Context, in *apigatewaymanagementapi.PostToConnectionInput, _ ...func(*apigatewaymanagementapi.Options)) (*apigatewaymanagementapi.PostToConnectionOutput, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var f apigw.Frame
	if err := json.Unmarshal(in.Data, &f); err != nil {
		return nil, err
	}
	conn := aws.ToString(in.ConnectionId)
	g.posted[conn] = append(g.posted[conn], f)
	return &apigatewaymanagementapi.PostToConnectionOutput{}, nil
}

type fixture struct {
	h      *handler
	gw     *recordingGateway
	tokens *auth.JWTGenerator
	table  *memTable
}

func newFixture(t *testing.T) *fixture {
	cfg := auth.JWTConfig{SecretKey: "test-secret", Issuer: "askingwho", Expiry: time.Hour}
	validator, err := auth.NewJWTValidator(cfg)
	require.NoError(t, err)
	generator, err := auth.NewJWTGenerator(cfg)
	require.NoError(t, err)

	logger := zaptest.NewLogger(t)
	table := &memTable{items: map[string]map[string]types.AttributeValue{}}
	registry := apigw.NewRegistry(table, "askingwho", time.Hour, logger)
	gw := &recordingGateway{posted: map[string][]apigw.Frame{}}

	return &fixture{
		h: &handler{
			registry:  registry,
			validator: validator,
			newPusher: func(string) *apigw.Pusher { return apigw.NewPusher(gw, registry, logger) },
			endpoint:  "https://example.execute-api.us-west-2.amazonaws.com/prod",
			logger:    logger,
		},
		gw:     gw,
		tokens: generator,
		table:  table,
	}
}

func (f *fixture) invoke(t *testing.T, event interface{}) interface{} {
	raw, err := json.Marshal(event)
	require.NoError(t, err)
	out, err := f.h.Handle(context.Background(), raw)
	require.NoError(t, err)
	return out
}

func wsRequest(route, connID, body string, query map[string]string) events.APIGatewayWebsocketProxyRequest {
	return events.APIGatewayWebsocketProxyRequest{
		Body:                  body,
		QueryStringParameters: query,
		RequestContext: events.APIGatewayWebsocketProxyRequestContext{
			RouteKey:     route,
			ConnectionID: connID,
			DomainName:   "example.execute-api.us-west-2.amazonaws.com",
			Stage:        "prod",
		},
	}
}

func status(t *testing.T, out interface{}) int {
	resp, ok := out.(events.APIGatewayProxyResponse)
	require.True(t, ok)
	return resp.StatusCode
}

func TestConnectRequiresToken(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, 401, status(t, f.invoke(t, wsRequest(routeConnect, "c-1", "", nil))))
	assert.Equal(t, 401, status(t, f.invoke(t, wsRequest(routeConnect, "c-1", "", map[string]string{"token": "garbage"}))))
}

func TestJoinAndDeliver(t *testing.T) {
	f := newFixture(t)
	token, err := f.tokens.GenerateToken("bob", "bob")
	require.NoError(t, err)

	require.Equal(t, 200, status(t, f.invoke(t, wsRequest(routeConnect, "c-1", "", map[string]string{"token": token}))))

	t.Run("Should reject joining another channel", func(t *testing.T) {
		f.invoke(t, wsRequest(routeJoin, "c-1", `{"event":"join","userId":"alice"}`, nil))
		frames := f.gw.posted["c-1"]
		require.Len(t, frames, 1)
		assert.Equal(t, "error", frames[0].Event)
	})

	t.Run("Should acknowledge a join", func(t *testing.T) {
		f.invoke(t, wsRequest(routeJoin, "c-1", `{"event":"join","userId":"bob"}`, nil))
		frames := f.gw.posted["c-1"]
		require.Len(t, frames, 2)
		assert.Equal(t, "join", frames[1].Event)
		assert.Equal(t, map[string]interface{}{"userId": "bob"}, frames[1].Data)
	})

	t.Run("Should fan a bus event out to the channel", func(t *testing.T) {
		detail := `{"userId":"bob","event":"newMessage","data":{"id":"m-1","text":"hi"}}`
		out := f.invoke(t, map[string]interface{}{
			"detail-type": "MessageSent",
			"source":      "askingwho.backend",
			"detail":      json.RawMessage(detail),
		})
		assert.Nil(t, out)

		frames := f.gw.posted["c-1"]
		require.Len(t, frames, 3)
		assert.Equal(t, "newMessage", frames[2].Event)
		assert.Equal(t, "m-1", frames[2].Data.(map[string]interface{})["id"])
	})

	t.Run("Should forget the connection on disconnect", func(t *testing.T) {
		require.Equal(t, 200, status(t, f.invoke(t, wsRequest(routeDisconnect, "c-1", "", nil))))
		assert.Empty(t, f.table.items, "both connection items are removed")
	})
}

func TestJoinErrorMessage(t *testing.T) {
	assert.Equal(t, "connection is not authenticated", joinErrorMessage(apigw.ErrUnknownConnection))
	assert.Equal(t, "connection limit of "+strconv.Itoa(apigw.MaxConnectionsPerUser)+" reached", joinErrorMessage(apigw.ErrConnectionLimit))
}
