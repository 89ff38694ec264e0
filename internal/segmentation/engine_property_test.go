package segmentation

import (
	"context"
	"testing"
	"unicode/utf8"

	"pgregory.net/rapid"

	"github.com/SzSimonSun/smart-exam-mvp/internal/model"
)

// TestProperty_SegmentationCoverage 覆盖性：
// 任何长度达标的非空文本，引擎至少返回一个候选
func TestProperty_SegmentationCoverage(t *testing.T) {
	engine := NewEngine()
	rapid.Check(t, func(t *rapid.T) {
		text := rapid.StringMatching(`[\x{4e00}-\x{9fa5}A-Za-z0-9，。？?]{15,200}`).Draw(t, "text")
		if utf8.RuneCountInString(text) < engine.MinLength {
			t.Skip("below minimum length")
		}

		candidates := engine.Segment(context.Background(), text)
		if len(candidates) == 0 {
			t.Fatalf("引擎对长度达标的输入返回了空结果: %q", text)
		}
	})
}

// TestProperty_ConfidenceBounds 置信度边界：
// 所有产出候选的置信度都落在 [0.1, 1.0]
func TestProperty_ConfidenceBounds(t *testing.T) {
	engine := NewEngine()
	rapid.Check(t, func(t *rapid.T) {
		text := rapid.StringMatching(`[\x{4e00}-\x{9fa5}A-D．.、？?＿_（）, \n]{15,300}`).Draw(t, "text")

		for _, c := range engine.Segment(context.Background(), text) {
			if c.Confidence < 0.1 || c.Confidence > 1.0 {
				t.Fatalf("候选置信度越界: %v (text=%q)", c.Confidence, c.Text)
			}
		}
	})
}

// TestProperty_TypeClosedEnum 题型枚举封闭：
// 产出候选的题型只会是五种已知类型之一
func TestProperty_TypeClosedEnum(t *testing.T) {
	known := map[string]bool{
		model.TypeSingle:     true,
		model.TypeMultiple:   true,
		model.TypeFill:       true,
		model.TypeJudge:      true,
		model.TypeSubjective: true,
	}

	engine := NewEngine()
	rapid.Check(t, func(t *rapid.T) {
		text := rapid.StringMatching(`[\x{4e00}-\x{9fa5}A-Z0-9。？_（）\n]{20,300}`).Draw(t, "text")

		for _, c := range engine.Segment(context.Background(), text) {
			if !known[c.Type] {
				t.Fatalf("未知题型: %q", c.Type)
			}
		}
	})
}

// TestProperty_ScoreConfidenceClamped 置信度打分对任意输入都被夹逼
func TestProperty_ScoreConfidenceClamped(t *testing.T) {
	types := []string{
		model.TypeSingle, model.TypeMultiple, model.TypeFill,
		model.TypeJudge, model.TypeSubjective,
	}

	rapid.Check(t, func(t *rapid.T) {
		text := rapid.String().Draw(t, "text")
		questionType := rapid.SampledFrom(types).Draw(t, "type")

		c := scoreConfidence(text, questionType)
		if c < 0.1 || c > 1.0 {
			t.Fatalf("scoreConfidence 越界: %v", c)
		}
	})
}
