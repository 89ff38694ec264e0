package task

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/SzSimonSun/smart-exam-mvp/internal/utils"
)

// Type 任务类型
type Type string

const (
	TypeRecognize Type = "RECOGNIZE" // 答题卡识别
	TypeGrade     Type = "GRADE"     // 自动判分
	TypeIngest    Type = "INGEST"    // 试卷拆题入库
)

// Queue 返回该任务类型对应的工作队列名
func (t Type) Queue() string {
	switch t {
	case TypeRecognize:
		return "recognize_queue"
	case TypeGrade:
		return "grade_queue"
	case TypeIngest:
		return "ingest_queue"
	}
	return ""
}

// DeadLetterQueue 返回该任务类型对应的死信队列名
func (t Type) DeadLetterQueue() string {
	switch t {
	case TypeRecognize:
		return "recognize_dlq"
	case TypeGrade:
		return "grade_dlq"
	case TypeIngest:
		return "ingest_dlq"
	}
	return ""
}

// Valid 校验任务类型是否已知
func (t Type) Valid() bool {
	return t == TypeRecognize || t == TypeGrade || t == TypeIngest
}

// Status 任务状态
type Status string

func (s Status) String() string {
	return string(s)
}

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRetry      Status = "retry"
)

const (
	DefaultMaxRetries     = 3
	DefaultPriority       = 5
	DefaultTimeoutSeconds = 300
)

var ErrInvalidMessage = errors.New("task: invalid message")

// Message 任务信封，所有队列消息的统一载体
type Message struct {
	TaskID         string         `json:"task_id"`
	TaskType       Type           `json:"task_type"`
	Payload        map[string]any `json:"payload"`
	RetryCount     int            `json:"retry_count"`
	MaxRetries     int            `json:"max_retries"`
	Priority       int            `json:"priority"`
	TimeoutSeconds int            `json:"timeout_seconds"`
	CreatedAt      time.Time      `json:"created_at"`
	Status         Status         `json:"status"`
}

// New 构造默认参数的任务信封
func New(taskType Type, payload map[string]any) *Message {
	return &Message{
		TaskID:         uuid.NewString(),
		TaskType:       taskType,
		Payload:        payload,
		RetryCount:     0,
		MaxRetries:     DefaultMaxRetries,
		Priority:       DefaultPriority,
		TimeoutSeconds: DefaultTimeoutSeconds,
		CreatedAt:      time.Now().UTC(),
		Status:         StatusPending,
	}
}

// Encode 序列化为队列消息体
func (m *Message) Encode() ([]byte, error) {
	return utils.Marshal(m)
}

// Decode 从队列消息体还原信封，拒绝缺失关键字段的消息
func Decode(body []byte) (*Message, error) {
	var m Message
	if err := utils.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if m.TaskID == "" || !m.TaskType.Valid() {
		return nil, fmt.Errorf("%w: missing task_id or unknown task_type %q", ErrInvalidMessage, m.TaskType)
	}
	if m.MaxRetries <= 0 {
		m.MaxRetries = DefaultMaxRetries
	}
	if m.TimeoutSeconds <= 0 {
		m.TimeoutSeconds = DefaultTimeoutSeconds
	}
	return &m, nil
}

// Exhausted 判断重试次数是否已耗尽
func (m *Message) Exhausted() bool {
	return m.RetryCount >= m.MaxRetries
}

// NextRetry 返回重试副本，计数加一并置为retry状态
func (m *Message) NextRetry() *Message {
	next := *m
	next.RetryCount = m.RetryCount + 1
	next.Status = StatusRetry
	return &next
}

// Timeout 返回处理超时时长
func (m *Message) Timeout() time.Duration {
	return time.Duration(m.TimeoutSeconds) * time.Second
}

// RecognizePayload 识别任务载荷
type RecognizePayload struct {
	SheetID     int64  `json:"sheet_id"`
	ArtifactURI string `json:"artifact_uri"`
	PaperID     int64  `json:"paper_id"`
	StudentID   int64  `json:"student_id"`
	ClassID     int64  `json:"class_id"`
}

// GradePayload 判分任务载荷
type GradePayload struct {
	SheetID         int64            `json:"sheet_id"`
	CapturedAnswers []CapturedAnswer `json:"captured_answers,omitempty"`
}

// CapturedAnswer 识别阶段捕获的单题作答
type CapturedAnswer struct {
	QuestionID int64    `json:"question_id"`
	Value      []string `json:"value"`
}

// IngestPayload 拆题任务载荷
type IngestPayload struct {
	SessionID   int64  `json:"session_id"`
	ArtifactURI string `json:"artifact_uri"`
	UploaderID  int64  `json:"uploader_id"`
}

// NewRecognizeTask 构造识别任务
func NewRecognizeTask(p RecognizePayload) (*Message, error) {
	payload, err := utils.ToMap(p)
	if err != nil {
		return nil, err
	}
	return New(TypeRecognize, payload), nil
}

// NewGradeTask 构造判分任务
func NewGradeTask(p GradePayload) (*Message, error) {
	payload, err := utils.ToMap(p)
	if err != nil {
		return nil, err
	}
	return New(TypeGrade, payload), nil
}

// NewIngestTask 构造拆题任务
func NewIngestTask(p IngestPayload) (*Message, error) {
	payload, err := utils.ToMap(p)
	if err != nil {
		return nil, err
	}
	return New(TypeIngest, payload), nil
}

// RecognizePayloadOf 从信封载荷解析识别参数
func RecognizePayloadOf(m *Message) (RecognizePayload, error) {
	return utils.FromMap[RecognizePayload](m.Payload)
}

// GradePayloadOf 从信封载荷解析判分参数
func GradePayloadOf(m *Message) (GradePayload, error) {
	return utils.FromMap[GradePayload](m.Payload)
}

// IngestPayloadOf 从信封载荷解析拆题参数
func IngestPayloadOf(m *Message) (IngestPayload, error) {
	return utils.FromMap[IngestPayload](m.Payload)
}
