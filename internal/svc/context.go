package svc

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/SzSimonSun/smart-exam-mvp/internal/ai"
	"github.com/SzSimonSun/smart-exam-mvp/internal/config"
	"github.com/SzSimonSun/smart-exam-mvp/internal/database"
	"github.com/SzSimonSun/smart-exam-mvp/internal/model"
	"github.com/SzSimonSun/smart-exam-mvp/internal/queue"
	"github.com/SzSimonSun/smart-exam-mvp/internal/recognition"
	internalredis "github.com/SzSimonSun/smart-exam-mvp/internal/redis"
	"github.com/SzSimonSun/smart-exam-mvp/internal/segmentation"
	"github.com/SzSimonSun/smart-exam-mvp/internal/storage"
	"github.com/SzSimonSun/smart-exam-mvp/internal/store"
	"github.com/SzSimonSun/smart-exam-mvp/internal/worker"
)

// Context 服务上下文：持有全部已装配的依赖，显式传递不做全局
type Context struct {
	Config    *config.Config
	DB        *gorm.DB
	Redis     *redis.Client
	Broker    queue.Broker
	Store     *store.GormStore
	Artifacts storage.ArtifactStore

	Recognize *worker.RecognizeWorker
	Grade     *worker.GradeWorker
	Ingest    *worker.IngestWorker
}

// New 装配服务上下文：依次初始化数据库、Redis、MinIO、RabbitMQ，
// 再构造三个处理器
func New(ctx context.Context, cfg *config.Config) (*Context, error) {
	db, err := database.Open(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("初始化数据库失败: %w", err)
	}
	if err := db.AutoMigrate(model.All()...); err != nil {
		return nil, fmt.Errorf("数据库迁移失败: %w", err)
	}

	rdb, err := internalredis.Open(&cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("初始化Redis失败: %w", err)
	}

	artifacts, err := storage.NewMinioStore(ctx, &cfg.MinIO)
	if err != nil {
		return nil, fmt.Errorf("初始化对象存储失败: %w", err)
	}

	broker, err := queue.NewRabbitBroker(cfg.RabbitMQ.URL,
		queue.WithStatusStore(queue.NewRedisStatusStore(rdb)),
		queue.WithFailureSink(queue.NewGormFailureSink(db)),
	)
	if err != nil {
		return nil, fmt.Errorf("初始化消息队列失败: %w", err)
	}

	gormStore := store.NewGormStore(db)
	notifier := worker.NewHTTPNotifier(&cfg.Callback)
	backend := recognition.NewSimulatedBackend()

	engine := segmentation.NewEngine()
	if cfg.AI.Enabled {
		engine.Classifier = ai.NewClassifier(&cfg.AI)
	}

	return &Context{
		Config:    cfg,
		DB:        db,
		Redis:     rdb,
		Broker:    broker,
		Store:     gormStore,
		Artifacts: artifacts,
		Recognize: worker.NewRecognizeWorker(gormStore, artifacts, backend, notifier, cfg.Callback.RecognizeURL),
		Grade:     worker.NewGradeWorker(gormStore, notifier, cfg.Callback.GradeURL),
		Ingest:    worker.NewIngestWorker(gormStore, artifacts, recognition.SimulatedOCR{}, engine, notifier, cfg.Callback.IngestURL),
	}, nil
}

// Close 释放服务上下文持有的连接
func (c *Context) Close() {
	if c.Broker != nil {
		_ = c.Broker.Close()
	}
	if c.Redis != nil {
		_ = internalredis.Close(c.Redis)
	}
	if c.DB != nil {
		_ = database.Close(c.DB)
	}
}
