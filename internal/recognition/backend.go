package recognition

import (
	"context"
	"time"
)

// 质量问题类型
const (
	IssueMultiMark = "MULTI_MARK" // 单选题出现多个标记
	IssueLowScan   = "LOW_SCAN"   // 扫描质量过低
)

// Rect 图像上的矩形区域
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Marker 定位标记（二维码、定位点）
type Marker struct {
	Rect    Rect   `json:"rect"`
	Content string `json:"content"`
}

// Layout 版面检测结果
type Layout struct {
	PaperBounds Rect      `json:"paper_bounds"`
	Markers     []Marker  `json:"markers"`
	DetectedAt  time.Time `json:"detected_at"`
}

// MarkedAnswer 单题的光学标记识别结果
type MarkedAnswer struct {
	QuestionID int64    `json:"question_id"`
	Marked     []string `json:"marked"`
	Confidence float64  `json:"confidence"`
}

// QualityIssue 识别质量问题
type QualityIssue struct {
	QuestionID int64  `json:"question_id"`
	Issue      string `json:"issue"`
	Severity   string `json:"severity"`
}

// MarkResult 光学标记识别结果集
type MarkResult struct {
	Answers     []MarkedAnswer `json:"answers"`
	ProcessedAt time.Time      `json:"processed_at"`
}

// TextAnswer 单题的文字识别结果
type TextAnswer struct {
	QuestionID  int64   `json:"question_id"`
	Text        string  `json:"text"`
	Confidence  float64 `json:"confidence"`
	BoundingBox Rect    `json:"bounding_box"`
}

// TextResult 文字识别结果集
type TextResult struct {
	Answers     []TextAnswer `json:"answers"`
	ProcessedAt time.Time    `json:"processed_at"`
}

// Backend 识别能力接口。各阶段输入上一阶段的产物，
// 任一阶段出错即视为本次识别失败
type Backend interface {
	// DetectLayout 版面检测：定位试卷边界与定位标记
	DetectLayout(ctx context.Context, artifact []byte) (*Layout, error)
	// Rectify 几何校正：归一化到标准版面
	Rectify(ctx context.Context, artifact []byte, layout *Layout) ([]byte, error)
	// ExtractMarks 光学标记识别：提取客观题的涂卡选项
	ExtractMarks(ctx context.Context, rectified []byte) (*MarkResult, error)
	// ExtractText 文字识别：提取主观题与填空题的手写文本
	ExtractText(ctx context.Context, rectified []byte) (*TextResult, error)
}

// OCR 文档文字识别接口，拆题流水线使用
type OCR interface {
	// ReadText 识别图像切片中的文本，返回文本与置信度
	ReadText(ctx context.Context, slice []byte) (string, float64, error)
}
