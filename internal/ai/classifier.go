package ai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/SzSimonSun/smart-exam-mvp/internal/config"
	"github.com/SzSimonSun/smart-exam-mvp/internal/segmentation"
	"github.com/SzSimonSun/smart-exam-mvp/internal/utils"
)

// -----------------------------------------------
// 拆题模型客户端
// 调用 OpenAI-compatible /v1/chat/completions 接口
// -----------------------------------------------

const classifyPrompt = `你是一名试卷拆分助手。请把下面的试卷文本拆分成独立的题目，按JSON数组输出，不要输出其他内容。
数组每个元素的格式为：
{"seq": 题号(整数), "text": "题目完整内容", "type": "single|multiple|fill|judge|subjective", "confidence": 置信度(0到1的小数)}

试卷文本：
`

// Classifier 外部模型拆题客户端，实现拆题引擎的增强接口
type Classifier struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration

	// HTTPClient 可注入，nil时按Timeout构造
	HTTPClient *http.Client
}

// NewClassifier 创建拆题模型客户端
func NewClassifier(cfg *config.AIConfig) *Classifier {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &Classifier{
		BaseURL: baseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		Timeout: 60 * time.Second,
	}
}

// chatRequest OpenAI Chat API 请求
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse OpenAI Chat API 响应
type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Classify 调用外部模型拆分试卷文本
func (c *Classifier) Classify(ctx context.Context, text string) ([]segmentation.Candidate, error) {
	reqBody := chatRequest{
		Model: c.Model,
		Messages: []chatMessage{
			{Role: "user", Content: classifyPrompt + text},
		},
		Temperature: 0.1,
	}

	bodyBytes, err := utils.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("请求序列化失败: %w", err)
	}

	url := c.BaseURL + "/chat/completions"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("创建 HTTP 请求失败: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: c.Timeout}
	}
	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP 请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("模型接口返回错误 (HTTP %d): %s", resp.StatusCode, string(respBody))
	}

	var chatResp chatResponse
	if err := utils.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("响应解析失败: %w", err)
	}
	if chatResp.Error != nil {
		return nil, fmt.Errorf("模型接口错误: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("模型响应为空")
	}

	return parseCandidates(chatResp.Choices[0].Message.Content)
}

// parseCandidates 从模型输出中提取JSON数组并校验
func parseCandidates(content string) ([]segmentation.Candidate, error) {
	jsonText := extractJSON(content)
	if jsonText == "" {
		return nil, fmt.Errorf("模型输出不含JSON数组")
	}

	var candidates []segmentation.Candidate
	if err := utils.UnmarshalString(jsonText, &candidates); err != nil {
		return nil, fmt.Errorf("模型输出解析失败: %w", err)
	}

	valid := make([]segmentation.Candidate, 0, len(candidates))
	for i, c := range candidates {
		if strings.TrimSpace(c.Text) == "" {
			continue
		}
		if c.Seq <= 0 {
			c.Seq = i + 1
		}
		valid = append(valid, c)
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("模型输出无有效题目")
	}
	return valid, nil
}

// extractJSON 剥离markdown代码块标记，取出首个JSON数组
func extractJSON(content string) string {
	content = strings.TrimSpace(content)
	if idx := strings.Index(content, "```json"); idx >= 0 {
		content = content[idx+len("```json"):]
		if end := strings.Index(content, "```"); end >= 0 {
			content = content[:end]
		}
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		if end := strings.Index(content, "```"); end >= 0 {
			content = content[:end]
		}
	}

	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end <= start {
		return ""
	}
	return content[start : end+1]
}

var _ segmentation.Classifier = (*Classifier)(nil)
