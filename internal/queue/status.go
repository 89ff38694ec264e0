package queue

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/SzSimonSun/smart-exam-mvp/internal/model"
	"github.com/SzSimonSun/smart-exam-mvp/internal/task"
	"github.com/SzSimonSun/smart-exam-mvp/internal/utils"
)

// 状态镜像的保留时长
const statusTTL = 24 * time.Hour

// RedisStatusStore 基于Redis Hash的任务状态镜像
type RedisStatusStore struct {
	client *redis.Client
}

// NewRedisStatusStore 创建Redis状态镜像
func NewRedisStatusStore(client *redis.Client) *RedisStatusStore {
	return &RedisStatusStore{client: client}
}

// SetStatus 写入任务当前状态，键为 task:<task_id>
func (s *RedisStatusStore) SetStatus(ctx context.Context, msg *task.Message, status task.Status, detail string) error {
	key := "task:" + msg.TaskID
	fields := map[string]any{
		"task_type":   string(msg.TaskType),
		"status":      string(status),
		"retry_count": msg.RetryCount,
		"updated_at":  time.Now().UTC().Format(time.RFC3339),
	}
	if detail != "" {
		fields["detail"] = detail
	}
	if err := s.client.HSet(ctx, key, fields).Err(); err != nil {
		return err
	}
	return s.client.Expire(ctx, key, statusTTL).Err()
}

var _ StatusStore = (*RedisStatusStore)(nil)

// GormFailureSink 将重试耗尽的任务现场写入task_failures表
type GormFailureSink struct {
	db *gorm.DB
}

// NewGormFailureSink 创建死信诊断落地
func NewGormFailureSink(db *gorm.DB) *GormFailureSink {
	return &GormFailureSink{db: db}
}

// RecordFailure 记录任务失败现场
func (s *GormFailureSink) RecordFailure(ctx context.Context, msg *task.Message, lastErr error) error {
	payload, err := utils.MarshalString(msg.Payload)
	if err != nil {
		payload = "{}"
	}
	now := time.Now()
	return s.db.WithContext(ctx).Create(&model.TaskFailure{
		TaskID:     msg.TaskID,
		TaskType:   string(msg.TaskType),
		Payload:    payload,
		RetryCount: int32(msg.RetryCount),
		LastError:  lastErr.Error(),
		FailedAt:   &now,
	}).Error
}

var _ FailureSink = (*GormFailureSink)(nil)
