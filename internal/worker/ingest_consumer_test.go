package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"webrag/internal/middleware"
	"webrag/internal/worker"
)

type MockIngester struct{ mock.Mock }

func (m *MockIngester) IngestPage(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func message(t *testing.T, payload interface{}, attempts uint16) *nsq.Message {
	body, err := json.Marshal(payload)
	assert.NoError(t, err)
	return &nsq.Message{Body: body, Attempts: attempts}
}

func TestIngestConsumer_HandleMessage(t *testing.T) {
	ing := new(MockIngester)
	consumer := worker.NewIngestConsumer(ing, 3, time.Second)

	ing.On("IngestPage", mock.MatchedBy(func(ctx context.Context) bool {
		return middleware.GetCorrelationID(ctx) == "corr-1"
	}), "https://go.dev").Return(nil).Once()

	err := consumer.HandleMessage(message(t, worker.IngestPagePayload{URL: "https://go.dev", CorrelationID: "corr-1"}, 1))
	assert.NoError(t, err)
	ing.AssertExpectations(t)
}

func TestIngestConsumer_PoisonPill(t *testing.T) {
	ing := new(MockIngester)
	consumer := worker.NewIngestConsumer(ing, 3, time.Second)

	tests := []struct {
		name string
		body []byte
	}{
		{"Invalid JSON", []byte("invalid json")},
		{"Empty body", nil},
		{"Missing url", []byte(`{"correlation_id":"x"}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, consumer.HandleMessage(&nsq.Message{Body: tt.body}))
		})
	}
	ing.AssertNotCalled(t, "IngestPage", mock.Anything, mock.Anything)
}

func TestIngestConsumer_Retries(t *testing.T) {
	boom := errors.New("ollama unavailable")

	tests := []struct {
		name     string
		err      error
		attempts uint16
		wantErr  bool
	}{
		{"Retryable failure is requeued", boom, 1, true},
		{"Permanent failure is acknowledged", worker.Permanent(boom), 1, false},
		{"Last attempt is acknowledged", boom, 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ing := new(MockIngester)
			ing.On("IngestPage", mock.Anything, "https://go.dev").Return(tt.err)
			consumer := worker.NewIngestConsumer(ing, 3, time.Second)

			err := consumer.HandleMessage(message(t, worker.IngestPagePayload{URL: "https://go.dev"}, tt.attempts))
			if tt.wantErr {
				assert.ErrorIs(t, err, boom)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPermanent(t *testing.T) {
	assert.Nil(t, worker.Permanent(nil))

	base := errors.New("no content")
	err := worker.Permanent(base)
	assert.True(t, worker.IsPermanent(err))
	assert.ErrorIs(t, err, base)
	assert.False(t, worker.IsPermanent(base))
}

type countingDelegate struct {
	touches atomic.Int32
}

func (d *countingDelegate) OnFinish(*nsq.Message) {}
func (d *countingDelegate) OnRequeue(*nsq.Message, time.Duration, bool) {}
func (d *countingDelegate) OnTouch(*nsq.Message) { d.touches.Add(1) }

func TestIngestConsumer_TouchesSlowMessage(t *testing.T) {
	ing := new(MockIngester)
	ing.On("IngestPage", mock.Anything, "https://go.dev").
		Run(func(mock.Arguments) { time.Sleep(80 * time.Millisecond) }).
		Return(nil).Once()

	consumer := worker.NewIngestConsumer(ing, 3, time.Second).WithTouchInterval(10 * time.Millisecond)
	delegate := &countingDelegate{}
	m := message(t, worker.IngestPagePayload{URL: "https://go.dev"}, 1)
	m.Delegate = delegate

	assert.NoError(t, consumer.HandleMessage(m))
	assert.GreaterOrEqual(t, delegate.touches.Load(), int32(3))

	after := delegate.touches.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, delegate.touches.Load(), "touching continued after the handler returned")
	ing.AssertExpectations(t)
}
