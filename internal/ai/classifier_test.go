package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SzSimonSun/smart-exam-mvp/internal/config"
	"github.com/SzSimonSun/smart-exam-mvp/internal/model"
	"github.com/SzSimonSun/smart-exam-mvp/internal/utils"
)

func chatReply(content string) string {
	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	}
	// 测试夹具里手拼嵌套JSON容易错，走正常序列化
	b, _ := utils.Marshal(resp)
	return string(b)
}

func newTestClassifier(serverURL string) *Classifier {
	c := NewClassifier(&config.AIConfig{
		Enabled: true,
		BaseURL: serverURL,
		APIKey:  "test-key",
		Model:   "gpt-4o-mini",
	})
	return c
}

func TestClassifySuccess(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chatReply(`[
			{"seq": 1, "text": "下列哪个是质数？A. 4 B. 7", "type": "single", "confidence": 0.9},
			{"seq": 2, "text": "计算 12 × 8 的结果。", "type": "fill", "confidence": 0.8}
		]`)))
	}))
	defer srv.Close()

	c := newTestClassifier(srv.URL)
	candidates, err := c.Classify(context.Background(), "试卷文本")
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, 1, candidates[0].Seq)
	assert.Equal(t, model.TypeSingle, candidates[0].Type)
	assert.Equal(t, 0.8, candidates[1].Confidence)
}

// 模型输出包在markdown代码块里也要能解析
func TestClassifyStripsCodeFence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		content := "```json\n[{\"seq\": 1, \"text\": \"证明三角形内角和等于180度。\", \"type\": \"subjective\", \"confidence\": 0.7}]\n```"
		w.Write([]byte(chatReply(content)))
	}))
	defer srv.Close()

	c := newTestClassifier(srv.URL)
	candidates, err := c.Classify(context.Background(), "试卷文本")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, model.TypeSubjective, candidates[0].Type)
}

func TestClassifyHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClassifier(srv.URL)
	_, err := c.Classify(context.Background(), "试卷文本")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestClassifyNonJSONOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chatReply("抱歉，我无法处理这段文本。")))
	}))
	defer srv.Close()

	c := newTestClassifier(srv.URL)
	_, err := c.Classify(context.Background(), "试卷文本")
	assert.Error(t, err)
}

func TestParseCandidatesFillsSeq(t *testing.T) {
	candidates, err := parseCandidates(`[
		{"text": "第一道题的内容是什么？", "type": "single", "confidence": 0.9},
		{"text": "第二道题的内容是什么？", "type": "single", "confidence": 0.9}
	]`)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, 1, candidates[0].Seq)
	assert.Equal(t, 2, candidates[1].Seq)
}

func TestParseCandidatesRejectsEmpty(t *testing.T) {
	_, err := parseCandidates(`[{"text": "  ", "type": "single"}]`)
	assert.Error(t, err)
}

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{"bare array", `[{"a":1}]`, `[{"a":1}]`},
		{"json fence", "```json\n[1,2]\n```", "[1,2]"},
		{"plain fence", "```\n[1,2]\n```", "[1,2]"},
		{"surrounding prose", "结果如下：[1,2] 以上。", "[1,2]"},
		{"no array", "没有数组", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, extractJSON(tc.content))
		})
	}
}
