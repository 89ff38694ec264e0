package queue

import (
	"context"

	"github.com/SzSimonSun/smart-exam-mvp/internal/task"
)

// Handler 业务处理函数，返回错误则按重试策略处理
type Handler func(ctx context.Context, msg *task.Message) error

// Stats 队列积压统计
type Stats struct {
	Queue           string `json:"queue"`
	Messages        int    `json:"messages"`
	DeadLetterQueue string `json:"dead_letter_queue"`
	DeadLetters     int    `json:"dead_letters"`
}

// Broker 队列代理接口
type Broker interface {
	// Publish 发布任务到其类型对应的工作队列
	Publish(ctx context.Context, msg *task.Message) error
	// Consume 阻塞消费指定类型的任务，ctx取消后返回
	Consume(ctx context.Context, taskType task.Type, handler Handler) error
	// Stats 查询指定类型队列的积压情况
	Stats(ctx context.Context, taskType task.Type) (*Stats, error)
	// Close 关闭连接
	Close() error
}

// StatusStore 任务状态镜像，供外部查询任务进度
type StatusStore interface {
	// SetStatus 记录任务当前状态
	SetStatus(ctx context.Context, msg *task.Message, status task.Status, detail string) error
}

// FailureSink 死信诊断落地，重试耗尽时记录任务现场
type FailureSink interface {
	// RecordFailure 记录重试耗尽的任务
	RecordFailure(ctx context.Context, msg *task.Message, lastErr error) error
}

// NopStatusStore 空实现，未配置Redis时使用
type NopStatusStore struct{}

func (NopStatusStore) SetStatus(context.Context, *task.Message, task.Status, string) error {
	return nil
}

// NopFailureSink 空实现
type NopFailureSink struct{}

func (NopFailureSink) RecordFailure(context.Context, *task.Message, error) error {
	return nil
}
