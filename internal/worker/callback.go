package worker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/SzSimonSun/smart-exam-mvp/internal/config"
	"github.com/SzSimonSun/smart-exam-mvp/internal/utils"
)

// CallbackResult 回调消息体，推送给外部服务的终态结果
type CallbackResult struct {
	TaskID      string         `json:"task_id"`
	SheetID     int64          `json:"sheet_id,omitempty"`
	SessionID   int64          `json:"session_id,omitempty"`
	Status      string         `json:"status"` // completed, failed
	Results     map[string]any `json:"results"`
	ProcessedAt string         `json:"processed_at"`
}

// Notifier 结果回调接口。回调失败视为任务失败
type Notifier interface {
	Notify(ctx context.Context, url string, result *CallbackResult) error
}

// HTTPNotifier 基于HTTP POST的回调实现，单次尝试不重试，
// 重试由任务级重试机制兜底
type HTTPNotifier struct {
	client *http.Client
}

// NewHTTPNotifier 创建HTTP回调客户端
func NewHTTPNotifier(cfg *config.CallbackConfig) *HTTPNotifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPNotifier{
		client: &http.Client{Timeout: timeout},
	}
}

// Notify 推送结果，url为空时跳过，非200响应视为失败
func (n *HTTPNotifier) Notify(ctx context.Context, url string, result *CallbackResult) error {
	if url == "" {
		return nil
	}

	body, err := utils.Marshal(result)
	if err != nil {
		return fmt.Errorf("回调消息序列化失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("创建回调请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("回调请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("回调返回非200 (HTTP %d): %s", resp.StatusCode, string(respBody))
	}
	return nil
}

var _ Notifier = (*HTTPNotifier)(nil)

// MemoryNotifier 内存回调实现，用于测试。
// Err非nil时每次回调返回该错误
type MemoryNotifier struct {
	mu      sync.Mutex
	Err     error
	results []*CallbackResult
}

// Notify 记录回调结果
func (n *MemoryNotifier) Notify(_ context.Context, _ string, result *CallbackResult) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Err != nil {
		return n.Err
	}
	n.results = append(n.results, result)
	return nil
}

// Results 返回已记录的回调
func (n *MemoryNotifier) Results() []*CallbackResult {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*CallbackResult, len(n.results))
	copy(out, n.results)
	return out
}

var _ Notifier = (*MemoryNotifier)(nil)
