package eventbridge

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"askingwho-backend/application/ports"
)

type mockBus struct {
	mock.Mock
}

func (m *mockBus) PutEvents(ctx context.Context, in *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*eventbridge.PutEventsOutput)
	return out, args.Error(1)
}

// entry returns the single entry of the first PutEvents call
func (m *mockBus) entry(t *testing.T) types.PutEventsRequestEntry {
	t.Helper()
	require.NotEmpty(t, m.Calls)
	in := m.Calls[0].Arguments.Get(1).(*eventbridge.PutEventsInput)
	require.Len(t, in.Entries, 1)
	return in.Entries[0]
}

type pushRecorder struct {
	events []string
	errs   []error
}

func (r *pushRecorder) LivePush(event string, err error) {
	r.events = append(r.events, event)
	r.errs = append(r.errs, err)
}

func TestPublisher_Publish(t *testing.T) {
	ctx := context.Background()
	bus := new(mockBus)
	bus.On("PutEvents", ctx, mock.AnythingOfType("*eventbridge.PutEventsInput")).Return(&eventbridge.PutEventsOutput{}, nil).Once()
	rec := &pushRecorder{}
	p := NewPublisher(bus, "askingwho-events", rec, zaptest.NewLogger(t))

	payload := map[string]string{"id": "m-1", "text": "hi"}
	require.NoError(t, p.Publish(ctx, "bob", ports.EventNewMessage, payload))
	bus.AssertExpectations(t)

	entry := bus.entry(t)
	assert.Equal(t, "askingwho-events", aws.ToString(entry.EventBusName))
	assert.Equal(t, Source, aws.ToString(entry.Source))
	assert.Equal(t, DetailTypeMessageSent, aws.ToString(entry.DetailType))

	ev, err := ParseDetail([]byte(aws.ToString(entry.Detail)))
	require.NoError(t, err)
	assert.Equal(t, "bob", ev.UserID)
	assert.Equal(t, ports.EventNewMessage, ev.Event)
	assert.JSONEq(t, `{"id":"m-1","text":"hi"}`, string(ev.Data))

	assert.Equal(t, []string{ports.EventNewMessage}, rec.events)
	assert.Nil(t, rec.errs[0])
}

func TestPublisher_Failures(t *testing.T) {
	t.Run("Should surface client errors", func(t *testing.T) {
		bus := new(mockBus)
		bus.On("PutEvents", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))
		rec := &pushRecorder{}
		p := NewPublisher(bus, "bus", rec, nil)
		err := p.Publish(context.Background(), "bob", ports.EventJoin, nil)
		assert.ErrorContains(t, err, "throttled")
		assert.Error(t, rec.errs[0])
	})

	t.Run("Should report failed entries", func(t *testing.T) {
		bus := new(mockBus)
		bus.On("PutEvents", mock.Anything, mock.Anything).Return(&eventbridge.PutEventsOutput{
			FailedEntryCount: 1,
			Entries:          []types.PutEventsResultEntry{{ErrorCode: aws.String("InternalFailure")}},
		}, nil)
		p := NewPublisher(bus, "bus", nil, zaptest.NewLogger(t))
		err := p.Publish(context.Background(), "bob", "custom", struct{}{})
		assert.ErrorContains(t, err, "1 live events failed")
		assert.Equal(t, DetailTypeLiveEvent, aws.ToString(bus.entry(t).DetailType))
	})
}

func TestParseDetail(t *testing.T) {
	_, err := ParseDetail([]byte(`{"event":"newMessage"}`))
	assert.Error(t, err)

	_, err = ParseDetail([]byte(`not json`))
	assert.Error(t, err)
}
