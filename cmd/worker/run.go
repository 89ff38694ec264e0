package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SzSimonSun/smart-exam-mvp/internal/config"
	"github.com/SzSimonSun/smart-exam-mvp/internal/logger"
	"github.com/SzSimonSun/smart-exam-mvp/internal/ops"
	"github.com/SzSimonSun/smart-exam-mvp/internal/queue"
	"github.com/SzSimonSun/smart-exam-mvp/internal/svc"
	"github.com/SzSimonSun/smart-exam-mvp/internal/task"
)

// runCmd 是 run 子命令
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "启动任务消费循环",
	RunE:  runWorkers,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&workerType, "type", "t", "all", "处理器类型 (recognize, grade, ingest, all)")
}

func runWorkers(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}

	logger.Init(&cfg.Log)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	svcCtx, err := svc.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer svcCtx.Close()

	consumers, err := selectConsumers(svcCtx, workerType)
	if err != nil {
		return err
	}

	// 运维接口
	opsApp := ops.NewServer(cfg.App.Name, svcCtx.Broker)
	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		logger.Info("运维接口启动", zap.String("addr", addr))
		if err := opsApp.Listen(addr); err != nil {
			logger.Error("运维接口退出", zap.Error(err))
		}
	}()

	// 每类处理器一个独立的消费循环
	var wg sync.WaitGroup
	for taskType, handler := range consumers {
		wg.Add(1)
		go func(t task.Type, h queue.Handler) {
			defer wg.Done()
			logger.Info("消费循环启动", zap.String("task_type", string(t)))
			if err := svcCtx.Broker.Consume(ctx, t, h); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("消费循环退出", zap.String("task_type", string(t)), zap.Error(err))
			}
		}(taskType, handler)
	}

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("收到停止信号，正在关闭")
	cancel()
	_ = opsApp.Shutdown()
	wg.Wait()
	logger.Info("Worker 已停止")
	return nil
}

// selectConsumers 按 --type 选出要运行的处理器
func selectConsumers(svcCtx *svc.Context, workerType string) (map[task.Type]queue.Handler, error) {
	all := map[task.Type]queue.Handler{
		task.TypeRecognize: svcCtx.Recognize.Handle,
		task.TypeGrade:     svcCtx.Grade.Handle,
		task.TypeIngest:    svcCtx.Ingest.Handle,
	}

	switch workerType {
	case "all":
		return all, nil
	case "recognize":
		return map[task.Type]queue.Handler{task.TypeRecognize: all[task.TypeRecognize]}, nil
	case "grade":
		return map[task.Type]queue.Handler{task.TypeGrade: all[task.TypeGrade]}, nil
	case "ingest":
		return map[task.Type]queue.Handler{task.TypeIngest: all[task.TypeIngest]}, nil
	}
	return nil, fmt.Errorf("未知的处理器类型: %s", workerType)
}
