package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/SzSimonSun/smart-exam-mvp/internal/task"
)

// MemoryBroker 内存队列代理，用于测试与本地开发，
// 语义与RabbitBroker保持一致：失败重发直到重试耗尽后进入死信
type MemoryBroker struct {
	mu     sync.Mutex
	queues map[string][]*task.Message
	dead   map[string][]*task.Message
	status StatusStore
	sink   FailureSink
	closed bool
}

// NewMemoryBroker 创建内存队列代理
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		queues: make(map[string][]*task.Message),
		dead:   make(map[string][]*task.Message),
		status: NopStatusStore{},
		sink:   NopFailureSink{},
	}
}

// SetStatusStore 启用任务状态镜像
func (b *MemoryBroker) SetStatusStore(s StatusStore) {
	if s != nil {
		b.status = s
	}
}

// SetFailureSink 启用死信诊断落地
func (b *MemoryBroker) SetFailureSink(s FailureSink) {
	if s != nil {
		b.sink = s
	}
}

// Publish 发布任务到内存队列
func (b *MemoryBroker) Publish(ctx context.Context, msg *task.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("队列代理已关闭")
	}
	b.queues[msg.TaskType.Queue()] = append(b.queues[msg.TaskType.Queue()], msg)
	return b.status.SetStatus(ctx, msg, msg.Status, "")
}

// Consume 消费指定类型的任务直到队列排空后返回
func (b *MemoryBroker) Consume(ctx context.Context, taskType task.Type, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg, ok := b.pop(taskType.Queue())
		if !ok {
			return nil
		}
		b.handleOne(ctx, msg, handler)
	}
}

func (b *MemoryBroker) pop(queue string) (*task.Message, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q := b.queues[queue]
	if len(q) == 0 {
		return nil, false
	}
	msg := q[0]
	b.queues[queue] = q[1:]
	return msg, true
}

func (b *MemoryBroker) handleOne(ctx context.Context, msg *task.Message, handler Handler) {
	_ = b.status.SetStatus(ctx, msg, task.StatusProcessing, "")

	err := b.safeHandle(ctx, msg, handler)
	if err == nil {
		_ = b.status.SetStatus(ctx, msg, task.StatusCompleted, "")
		return
	}

	if msg.Exhausted() {
		_ = b.sink.RecordFailure(ctx, msg, err)
		_ = b.status.SetStatus(ctx, msg, task.StatusFailed, err.Error())
		b.mu.Lock()
		dlq := msg.TaskType.DeadLetterQueue()
		b.dead[dlq] = append(b.dead[dlq], msg)
		b.mu.Unlock()
		return
	}

	retry := msg.NextRetry()
	_ = b.Publish(ctx, retry)
	_ = b.status.SetStatus(ctx, retry, task.StatusRetry, err.Error())
}

func (b *MemoryBroker) safeHandle(ctx context.Context, msg *task.Message, handler Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("任务处理panic: %v", r)
		}
	}()
	hctx, cancel := context.WithTimeout(ctx, msg.Timeout())
	defer cancel()
	return handler(hctx, msg)
}

// Stats 查询内存队列积压
func (b *MemoryBroker) Stats(_ context.Context, taskType task.Type) (*Stats, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &Stats{
		Queue:           taskType.Queue(),
		Messages:        len(b.queues[taskType.Queue()]),
		DeadLetterQueue: taskType.DeadLetterQueue(),
		DeadLetters:     len(b.dead[taskType.DeadLetterQueue()]),
	}, nil
}

// DeadLetters 返回指定类型死信队列中的消息，测试用
func (b *MemoryBroker) DeadLetters(taskType task.Type) []*task.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*task.Message, len(b.dead[taskType.DeadLetterQueue()]))
	copy(out, b.dead[taskType.DeadLetterQueue()])
	return out
}

// Close 关闭队列代理
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

var _ Broker = (*MemoryBroker)(nil)
