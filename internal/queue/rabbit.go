package queue

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/SzSimonSun/smart-exam-mvp/internal/logger"
	"github.com/SzSimonSun/smart-exam-mvp/internal/task"
)

const (
	// 每个消费者一次只预取一条消息，保证慢任务不会饿死其他消费者
	prefetchCount = 1

	// 队列支持的最大优先级
	maxPriority = 10

	deadLetterExchange = "smart_exam.dlx"
)

// RabbitBroker 基于RabbitMQ的队列代理
type RabbitBroker struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	status StatusStore
	sink   FailureSink
}

// RabbitOption 配置可选依赖
type RabbitOption func(*RabbitBroker)

// WithStatusStore 启用任务状态镜像
func WithStatusStore(s StatusStore) RabbitOption {
	return func(b *RabbitBroker) {
		if s != nil {
			b.status = s
		}
	}
}

// WithFailureSink 启用死信诊断落地
func WithFailureSink(s FailureSink) RabbitOption {
	return func(b *RabbitBroker) {
		if s != nil {
			b.sink = s
		}
	}
}

// NewRabbitBroker 连接RabbitMQ并声明全部队列拓扑
func NewRabbitBroker(url string, opts ...RabbitOption) (*RabbitBroker, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("连接RabbitMQ失败: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("打开Channel失败: %w", err)
	}
	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("设置Qos失败: %w", err)
	}

	b := &RabbitBroker{
		conn:   conn,
		ch:     ch,
		status: NopStatusStore{},
		sink:   NopFailureSink{},
	}
	for _, opt := range opts {
		opt(b)
	}

	if err := b.declareTopology(); err != nil {
		conn.Close()
		return nil, err
	}
	return b, nil
}

// declareTopology 声明死信交换机与各任务类型的工作队列、死信队列
func (b *RabbitBroker) declareTopology() error {
	if err := b.ch.ExchangeDeclare(deadLetterExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("声明死信交换机失败: %w", err)
	}

	for _, t := range []task.Type{task.TypeRecognize, task.TypeGrade, task.TypeIngest} {
		dlq := t.DeadLetterQueue()
		if _, err := b.ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
			return fmt.Errorf("声明死信队列 %s 失败: %w", dlq, err)
		}
		if err := b.ch.QueueBind(dlq, dlq, deadLetterExchange, false, nil); err != nil {
			return fmt.Errorf("绑定死信队列 %s 失败: %w", dlq, err)
		}

		args := amqp.Table{
			"x-dead-letter-exchange":    deadLetterExchange,
			"x-dead-letter-routing-key": dlq,
			"x-max-priority":            int32(maxPriority),
		}
		if _, err := b.ch.QueueDeclare(t.Queue(), true, false, false, false, args); err != nil {
			return fmt.Errorf("声明工作队列 %s 失败: %w", t.Queue(), err)
		}
	}
	return nil
}

// Publish 发布任务到其类型对应的工作队列，消息持久化
func (b *RabbitBroker) Publish(ctx context.Context, msg *task.Message) error {
	body, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("序列化任务失败: %w", err)
	}

	err = b.ch.PublishWithContext(ctx, "", msg.TaskType.Queue(), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Priority:     uint8(msg.Priority),
		MessageId:    msg.TaskID,
		Timestamp:    msg.CreatedAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("发布任务失败: %w", err)
	}

	if err := b.status.SetStatus(ctx, msg, msg.Status, ""); err != nil {
		logger.Warn("记录任务状态失败", zap.String("task_id", msg.TaskID), zap.Error(err))
	}
	logger.Info("任务已发布",
		zap.String("task_id", msg.TaskID),
		zap.String("task_type", string(msg.TaskType)),
		zap.Int("retry_count", msg.RetryCount))
	return nil
}

// Consume 阻塞消费指定类型的任务，单条确认
func (b *RabbitBroker) Consume(ctx context.Context, taskType task.Type, handler Handler) error {
	deliveries, err := b.ch.ConsumeWithContext(ctx, taskType.Queue(), "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("订阅队列 %s 失败: %w", taskType.Queue(), err)
	}
	logger.Info("开始消费", zap.String("queue", taskType.Queue()))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("队列 %s 的投递通道已关闭", taskType.Queue())
			}
			b.handleDelivery(ctx, &d, handler)
		}
	}
}

// handleDelivery 处理单条投递：成功确认，失败按重试策略走重发或死信
func (b *RabbitBroker) handleDelivery(ctx context.Context, d *amqp.Delivery, handler Handler) {
	msg, err := task.Decode(d.Body)
	if err != nil {
		// 格式非法的消息无法重试，直接进死信队列
		logger.Error("任务消息解析失败，转入死信队列", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	if err := b.status.SetStatus(ctx, msg, task.StatusProcessing, ""); err != nil {
		logger.Warn("记录任务状态失败", zap.String("task_id", msg.TaskID), zap.Error(err))
	}

	handlerErr := b.safeHandle(ctx, msg, handler)
	if handlerErr == nil {
		if err := d.Ack(false); err != nil {
			logger.Error("确认消息失败", zap.String("task_id", msg.TaskID), zap.Error(err))
			return
		}
		if err := b.status.SetStatus(ctx, msg, task.StatusCompleted, ""); err != nil {
			logger.Warn("记录任务状态失败", zap.String("task_id", msg.TaskID), zap.Error(err))
		}
		logger.Info("任务处理完成", zap.String("task_id", msg.TaskID))
		return
	}

	if msg.Exhausted() {
		// 重试耗尽：记录现场后拒绝且不重入队，由死信配置路由到DLQ
		logger.Error("任务重试耗尽，转入死信队列",
			zap.String("task_id", msg.TaskID),
			zap.Int("retry_count", msg.RetryCount),
			zap.Error(handlerErr))
		if err := b.sink.RecordFailure(ctx, msg, handlerErr); err != nil {
			logger.Error("记录死信诊断失败", zap.String("task_id", msg.TaskID), zap.Error(err))
		}
		if err := b.status.SetStatus(ctx, msg, task.StatusFailed, handlerErr.Error()); err != nil {
			logger.Warn("记录任务状态失败", zap.String("task_id", msg.TaskID), zap.Error(err))
		}
		_ = d.Nack(false, false)
		return
	}

	// 未耗尽：重发重试副本，成功后确认原消息
	retry := msg.NextRetry()
	if err := b.Publish(ctx, retry); err != nil {
		// 重发失败则不确认原消息，等待重新投递
		logger.Error("重发重试任务失败", zap.String("task_id", msg.TaskID), zap.Error(err))
		_ = d.Nack(false, true)
		return
	}
	if err := b.status.SetStatus(ctx, retry, task.StatusRetry, handlerErr.Error()); err != nil {
		logger.Warn("记录任务状态失败", zap.String("task_id", msg.TaskID), zap.Error(err))
	}
	logger.Warn("任务处理失败，已重新入队",
		zap.String("task_id", msg.TaskID),
		zap.Int("retry_count", retry.RetryCount),
		zap.Int("max_retries", retry.MaxRetries),
		zap.Error(handlerErr))
	_ = d.Ack(false)
}

// safeHandle 执行处理函数，带超时控制与panic兜底
func (b *RabbitBroker) safeHandle(ctx context.Context, msg *task.Message, handler Handler) error {
	hctx, cancel := context.WithTimeout(ctx, msg.Timeout())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("任务处理panic: %v", r)
			}
		}()
		done <- handler(hctx, msg)
	}()

	select {
	case <-hctx.Done():
		return fmt.Errorf("任务处理超时(%s): %w", msg.Timeout(), hctx.Err())
	case err := <-done:
		return err
	}
}

// Stats 查询队列积压
func (b *RabbitBroker) Stats(ctx context.Context, taskType task.Type) (*Stats, error) {
	q, err := b.ch.QueueDeclarePassive(taskType.Queue(), true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    deadLetterExchange,
		"x-dead-letter-routing-key": taskType.DeadLetterQueue(),
		"x-max-priority":            int32(maxPriority),
	})
	if err != nil {
		return nil, fmt.Errorf("查询队列 %s 失败: %w", taskType.Queue(), err)
	}
	dlq, err := b.ch.QueueDeclarePassive(taskType.DeadLetterQueue(), true, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("查询死信队列 %s 失败: %w", taskType.DeadLetterQueue(), err)
	}
	return &Stats{
		Queue:           q.Name,
		Messages:        q.Messages,
		DeadLetterQueue: dlq.Name,
		DeadLetters:     dlq.Messages,
	}, nil
}

// Close 关闭Channel与连接
func (b *RabbitBroker) Close() error {
	if err := b.ch.Close(); err != nil {
		b.conn.Close()
		return err
	}
	return b.conn.Close()
}

var _ Broker = (*RabbitBroker)(nil)
