package recognition

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"
)

// SimulatedBackend 确定性的识别后端。真实的视觉算法不在本系统范围内，
// 这里按制品内容哈希生成稳定的识别结果，同一制品重复识别结果不变
type SimulatedBackend struct {
	// QuestionCount 模拟的客观题数量
	QuestionCount int
	// TextAnswers 预置的文字识别结果，空则按内容生成
	TextAnswers []TextAnswer
}

// NewSimulatedBackend 创建模拟识别后端
func NewSimulatedBackend() *SimulatedBackend {
	return &SimulatedBackend{QuestionCount: 5}
}

var optionLetters = []string{"A", "B", "C", "D"}

// 标准化版面尺寸
const (
	canonicalWidth  = 800
	canonicalHeight = 1200
)

// DetectLayout 版面检测：全图为试卷边界，右上角生成一个定位标记
func (b *SimulatedBackend) DetectLayout(_ context.Context, artifact []byte) (*Layout, error) {
	if len(artifact) == 0 {
		return nil, fmt.Errorf("制品内容为空")
	}
	return &Layout{
		PaperBounds: Rect{X: 0, Y: 0, Width: canonicalWidth, Height: canonicalHeight},
		Markers: []Marker{
			{
				Rect:    Rect{X: canonicalWidth * 8 / 10, Y: canonicalHeight / 20, Width: canonicalWidth * 15 / 100, Height: canonicalHeight / 10},
				Content: fmt.Sprintf("%d", contentHash(artifact)%1000000),
			},
		},
		DetectedAt: time.Now().UTC(),
	}, nil
}

// Rectify 几何校正：模拟实现原样返回制品内容
func (b *SimulatedBackend) Rectify(_ context.Context, artifact []byte, layout *Layout) ([]byte, error) {
	if layout == nil {
		return nil, fmt.Errorf("缺少版面检测结果")
	}
	return artifact, nil
}

// ExtractMarks 光学标记识别：按内容哈希为每道题生成稳定的涂卡结果。
// 哈希落在特定区间的题目会生成双标记，用于演练多标记处理路径
func (b *SimulatedBackend) ExtractMarks(_ context.Context, rectified []byte) (*MarkResult, error) {
	if len(rectified) == 0 {
		return nil, fmt.Errorf("校正后制品内容为空")
	}

	h := contentHash(rectified)
	count := b.QuestionCount
	if count <= 0 {
		count = 5
	}

	answers := make([]MarkedAnswer, 0, count)
	for q := 1; q <= count; q++ {
		seed := h + uint64(q)*2654435761
		marked := []string{optionLetters[seed%4]}
		if seed%7 == 0 {
			// 双标记
			second := optionLetters[(seed/4)%4]
			if second != marked[0] {
				marked = append(marked, second)
			}
		}
		answers = append(answers, MarkedAnswer{
			QuestionID: int64(q),
			Marked:     marked,
			Confidence: 0.7 + float64(seed%30)/100.0,
		})
	}

	return &MarkResult{
		Answers:     answers,
		ProcessedAt: time.Now().UTC(),
	}, nil
}

// ExtractText 文字识别：返回预置结果，无预置时按内容生成占位文本
func (b *SimulatedBackend) ExtractText(_ context.Context, rectified []byte) (*TextResult, error) {
	if len(rectified) == 0 {
		return nil, fmt.Errorf("校正后制品内容为空")
	}
	answers := b.TextAnswers
	if answers == nil {
		h := contentHash(rectified)
		answers = []TextAnswer{
			{
				QuestionID:  int64(b.QuestionCount) + 1,
				Text:        fmt.Sprintf("手写作答内容 %d", h%1000),
				Confidence:  0.85,
				BoundingBox: Rect{X: 100, Y: 800, Width: 600, Height: 120},
			},
		}
	}
	return &TextResult{
		Answers:     answers,
		ProcessedAt: time.Now().UTC(),
	}, nil
}

func contentHash(data []byte) uint64 {
	h := fnv.New64a()
	h.Write(data)
	return h.Sum64()
}

var _ Backend = (*SimulatedBackend)(nil)

// SimulatedOCR 确定性的文档文字识别。非文本内容返回占位文本
type SimulatedOCR struct{}

// ReadText 识别图像切片：文本内容直接返回，二进制内容返回占位文本
func (SimulatedOCR) ReadText(_ context.Context, slice []byte) (string, float64, error) {
	if len(slice) == 0 {
		return "", 0, fmt.Errorf("切片内容为空")
	}
	if isPlainText(slice) {
		return string(slice), 0.95, nil
	}
	return fmt.Sprintf("识别文本 %d", contentHash(slice)%1000), 0.75, nil
}

var _ OCR = (SimulatedOCR{})
