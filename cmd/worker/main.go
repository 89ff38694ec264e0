// Package main 是考试处理流水线 Worker 的入口。
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	// 全局配置
	cfgFile    string
	workerType string
)

// rootCmd 是根命令
var rootCmd = &cobra.Command{
	Use:   "exam-worker",
	Short: "考试处理流水线 Worker",
	Long: `exam-worker 消费考试处理任务队列，运行识别、判分、拆题三类处理器。

每类处理器对应一个独立的工作队列与死信队列，
失败任务按信封内的重试上限重发，耗尽后进入死信队列。`,
	Example: `  # 运行全部处理器
  exam-worker run --type all

  # 只运行识别处理器
  exam-worker run --type recognize --config config/config.yml`,
	Version: version,
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config/config.yml", "配置文件路径")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

func main() {
	Execute()
}
