package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueReminder(t *testing.T) {
	client, mock := redismock.NewClientMock()
	q := NewQueue(client, nil)

	mock.Regexp().ExpectRPush(QueueNotify, `.*"type":"reminder".*"message_id":"msg-1".*`).SetVal(1)

	err := q.EnqueueReminder(context.Background(), ReminderPayload{
		MessageID: "msg-1",
		ChannelID: "chan-1",
		Content:   "starts soon",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDequeueReturnsJob(t *testing.T) {
	client, mock := redismock.NewClientMock()
	q := NewQueue(client, nil)

	raw, err := json.Marshal(Job{
		ID:        "job-1",
		Type:      JobTypeRefresh,
		Payload:   json.RawMessage(`{"message_id":"msg-1"}`),
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	mock.ExpectBLPop(0, QueueNotify).SetVal([]string{QueueNotify, string(raw)})

	job, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, JobTypeRefresh, job.Type)

	var payload RefreshPayload
	require.NoError(t, json.Unmarshal(job.Payload, &payload))
	assert.Equal(t, "msg-1", payload.MessageID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDequeueSkipsMalformedJob(t *testing.T) {
	client, mock := redismock.NewClientMock()
	q := NewQueue(client, nil)

	mock.ExpectBLPop(0, QueueNotify).SetVal([]string{QueueNotify, "not json"})

	job, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestRetryRequeuesJob(t *testing.T) {
	client, mock := redismock.NewClientMock()
	q := NewQueue(client, nil)

	job := &Job{ID: "job-1", Type: JobTypeReminder, Payload: json.RawMessage(`{}`), Attempt: 0}
	expected := *job
	expected.Attempt = 1
	raw, err := json.Marshal(&expected)
	require.NoError(t, err)

	mock.ExpectRPush(QueueNotify, string(raw)).SetVal(1)

	require.NoError(t, q.Retry(context.Background(), job))
	assert.Equal(t, 1, job.Attempt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRetryExhaustedGoesToDLQ(t *testing.T) {
	client, mock := redismock.NewClientMock()
	q := NewQueue(client, nil)

	job := &Job{ID: "job-1", Type: JobTypeReminder, Payload: json.RawMessage(`{}`), Attempt: MaxRetries - 1}
	expected := *job
	expected.Attempt = MaxRetries
	raw, err := json.Marshal(&expected)
	require.NoError(t, err)

	mock.ExpectRPush(QueueDLQ, string(raw)).SetVal(1)

	require.NoError(t, q.Retry(context.Background(), job))
	assert.Equal(t, MaxRetries, job.Attempt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
