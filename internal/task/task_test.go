package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	msg := New(TypeRecognize, map[string]any{"sheet_id": float64(1)})

	assert.NotEmpty(t, msg.TaskID)
	assert.Equal(t, TypeRecognize, msg.TaskType)
	assert.Equal(t, 0, msg.RetryCount)
	assert.Equal(t, DefaultMaxRetries, msg.MaxRetries)
	assert.Equal(t, DefaultPriority, msg.Priority)
	assert.Equal(t, DefaultTimeoutSeconds, msg.TimeoutSeconds)
	assert.Equal(t, StatusPending, msg.Status)
	assert.False(t, msg.CreatedAt.IsZero())
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	msg, err := NewGradeTask(GradePayload{
		SheetID: 42,
		CapturedAnswers: []CapturedAnswer{
			{QuestionID: 1, Value: []string{"C"}},
		},
	})
	require.NoError(t, err)

	body, err := msg.Encode()
	require.NoError(t, err)

	decoded, err := Decode(body)
	require.NoError(t, err)
	assert.Equal(t, msg.TaskID, decoded.TaskID)
	assert.Equal(t, TypeGrade, decoded.TaskType)
	assert.Equal(t, msg.MaxRetries, decoded.MaxRetries)

	payload, err := GradePayloadOf(decoded)
	require.NoError(t, err)
	assert.Equal(t, int64(42), payload.SheetID)
	require.Len(t, payload.CapturedAnswers, 1)
	assert.Equal(t, []string{"C"}, payload.CapturedAnswers[0].Value)
}

// 消息体字段名是对外协议，不能随重构漂移
func TestWireFormatFields(t *testing.T) {
	msg := &Message{
		TaskID:         "task-1",
		TaskType:       TypeIngest,
		Payload:        map[string]any{"session_id": float64(7)},
		RetryCount:     1,
		MaxRetries:     3,
		Priority:       5,
		TimeoutSeconds: 300,
		CreatedAt:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Status:         StatusRetry,
	}

	body, err := msg.Encode()
	require.NoError(t, err)

	s := string(body)
	for _, field := range []string{
		`"task_id"`, `"task_type"`, `"payload"`, `"retry_count"`,
		`"max_retries"`, `"priority"`, `"timeout_seconds"`, `"created_at"`, `"status"`,
	} {
		assert.Contains(t, s, field)
	}
	assert.Contains(t, s, `"INGEST"`)
	assert.Contains(t, s, `"retry"`)
}

func TestDecodeRejectsInvalid(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	assert.ErrorIs(t, err, ErrInvalidMessage)

	_, err = Decode([]byte(`{"task_type":"RECOGNIZE"}`))
	assert.ErrorIs(t, err, ErrInvalidMessage)

	_, err = Decode([]byte(`{"task_id":"x","task_type":"UNKNOWN"}`))
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func TestDecodeFillsDefaults(t *testing.T) {
	decoded, err := Decode([]byte(`{"task_id":"x","task_type":"GRADE","payload":{}}`))
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxRetries, decoded.MaxRetries)
	assert.Equal(t, DefaultTimeoutSeconds, decoded.TimeoutSeconds)
}

// 重试保持任务身份不变，只递增计数
func TestNextRetryPreservesIdentity(t *testing.T) {
	msg := New(TypeRecognize, nil)
	retry := msg.NextRetry()

	assert.Equal(t, msg.TaskID, retry.TaskID)
	assert.Equal(t, msg.CreatedAt, retry.CreatedAt)
	assert.Equal(t, msg.RetryCount+1, retry.RetryCount)
	assert.Equal(t, StatusRetry, retry.Status)
	// 原信封不被修改
	assert.Equal(t, 0, msg.RetryCount)
}

func TestExhausted(t *testing.T) {
	msg := New(TypeGrade, nil)
	assert.False(t, msg.Exhausted())

	msg.RetryCount = msg.MaxRetries
	assert.True(t, msg.Exhausted())
}

func TestQueueNames(t *testing.T) {
	assert.Equal(t, "recognize_queue", TypeRecognize.Queue())
	assert.Equal(t, "recognize_dlq", TypeRecognize.DeadLetterQueue())
	assert.Equal(t, "grade_queue", TypeGrade.Queue())
	assert.Equal(t, "grade_dlq", TypeGrade.DeadLetterQueue())
	assert.Equal(t, "ingest_queue", TypeIngest.Queue())
	assert.Equal(t, "ingest_dlq", TypeIngest.DeadLetterQueue())
}
