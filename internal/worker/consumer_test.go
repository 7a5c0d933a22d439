package worker

import (
	"context"
	"testing"

	"github.com/cuongbtq/texter-jobs/internal/worker/domain"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJobMessage(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantID  string
		wantErr bool
	}{
		{
			name:   "valid message",
			body:   `{"job_id":"6f1c2d3e-4b5a-4c6d-8e7f-901a2b3c4d5e"}`,
			wantID: "6f1c2d3e-4b5a-4c6d-8e7f-901a2b3c4d5e",
		},
		{
			name:   "extra fields ignored",
			body:   `{"job_id":"6f1c2d3e-4b5a-4c6d-8e7f-901a2b3c4d5e","job_type":"assign_texters"}`,
			wantID: "6f1c2d3e-4b5a-4c6d-8e7f-901a2b3c4d5e",
		},
		{name: "not json", body: `job 42`, wantErr: true},
		{name: "missing job_id", body: `{}`, wantErr: true},
		{name: "job_id not a uuid", body: `{"job_id":"42"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := parseJobMessage([]byte(tt.body), 7)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, msg.JobID)
			assert.Equal(t, uint64(7), msg.DeliveryTag)
		})
	}
}

func TestWorker_Dispatch(t *testing.T) {
	body := []byte(`{"job_id":"` + testJobID + `"}`)

	t.Run("valid message reaches the pool", func(t *testing.T) {
		broker := newFakeBroker()
		w := newTestWorker(newMemJobStore(), nil)
		w.broker = broker

		ok := w.dispatch(context.Background(), amqp.Delivery{DeliveryTag: 3, Body: body, Redelivered: true})

		require.True(t, ok)
		msg := <-w.jobsChan
		assert.Equal(t, testJobID, msg.JobID)
		_, nacked := broker.settled()
		assert.Empty(t, nacked)
	})

	t.Run("malformed message is dead-lettered", func(t *testing.T) {
		broker := newFakeBroker()
		w := newTestWorker(newMemJobStore(), nil)
		w.broker = broker

		ok := w.dispatch(context.Background(), amqp.Delivery{DeliveryTag: 4, Body: []byte("nope")})

		assert.True(t, ok)
		assert.Empty(t, w.jobsChan)
		_, nacked := broker.settled()
		assert.Equal(t, []nack{{4, false}}, nacked)
	})

	t.Run("shutdown requeues an undispatched message", func(t *testing.T) {
		broker := newFakeBroker()
		w := newTestWorker(newMemJobStore(), nil)
		w.broker = broker
		w.jobsChan <- &domain.JobMessage{JobID: testJobID, DeliveryTag: 1}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		ok := w.dispatch(ctx, amqp.Delivery{DeliveryTag: 5, Body: body})

		assert.False(t, ok)
		_, nacked := broker.settled()
		assert.Equal(t, []nack{{5, true}}, nacked)
	})
}
