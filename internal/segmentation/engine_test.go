package segmentation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SzSimonSun/smart-exam-mvp/internal/model"
)

const examText = `
数学综合测试

1. 下列哪个函数是奇函数？
   A. f(x) = x² + 1
   B. f(x) = x³ - x
   C. f(x) = |x|
   D. f(x) = x² - 1

2. 计算极限 lim(x→0) (sin 3x)/(tan 2x) = ?
   A. 1
   B. 3/2
   C. 2/3
   D. 0

3. 若函数 f(x) = ax² + bx + c 在 x = 1 处取最小值 2，且 f(0) = 3，
   则 a = ______，b = ______。

4. 函数 f(x) = x² 在 R 上单调递增。（　　）
`

func TestSegmentNumberedExam(t *testing.T) {
	engine := NewEngine()
	candidates := engine.Segment(context.Background(), examText)

	require.Len(t, candidates, 4)

	assert.Equal(t, 1, candidates[0].Seq)
	assert.Equal(t, model.TypeSingle, candidates[0].Type)
	assert.Contains(t, candidates[0].Text, "奇函数")

	assert.Equal(t, model.TypeSingle, candidates[1].Type)
	assert.Equal(t, model.TypeFill, candidates[2].Type)
	assert.Equal(t, model.TypeJudge, candidates[3].Type)
}

// 题号格式各异的文本也能拆开
func TestSegmentChineseNumbering(t *testing.T) {
	text := `第一题：下列选项中哪个是质数？A. 4 B. 6 C. 7 D. 9
第二题：计算 12 × 8 的结果是多少？
第三题：证明三角形内角和等于一百八十度。`

	engine := NewEngine()
	candidates := engine.Segment(context.Background(), text)

	require.Len(t, candidates, 3)
	assert.Equal(t, 1, candidates[0].Seq)
	assert.Equal(t, 2, candidates[1].Seq)
	assert.Equal(t, 3, candidates[2].Seq)
}

// 问号兜底：没有题号但有三个问句，恰好拆出3个候选
func TestQuestionMarkFallback(t *testing.T) {
	text := "什么是一元二次函数的定义域和值域？\n" +
		"请说明三角形的内角和为什么等于一百八十度？\n" +
		"如何计算一个圆形的面积以及它的周长？"

	engine := NewEngine()
	candidates := engine.Segment(context.Background(), text)

	require.Len(t, candidates, 3)
	for _, c := range candidates {
		assert.Contains(t, c.Text, "？")
	}
}

// 整文兜底：无题号、无问句、无题目特征也不返回空结果
func TestWholeTextFallback(t *testing.T) {
	text := "这是一段没有任何题目特征的普通说明文字内容示例。"

	engine := NewEngine()
	candidates := engine.Segment(context.Background(), text)

	require.Len(t, candidates, 1)
	assert.Equal(t, 1, candidates[0].Seq)
	assert.GreaterOrEqual(t, candidates[0].Confidence, 0.1)
}

func TestSegmentEmptyInput(t *testing.T) {
	engine := NewEngine()
	assert.Empty(t, engine.Segment(context.Background(), ""))
	assert.Empty(t, engine.Segment(context.Background(), "   \n\n  "))
}

// 页眉页脚等干扰信息不会变成候选
func TestNoiseStripping(t *testing.T) {
	text := `第 1 页 共 3 页
姓名：____ 学号：____
考试时间：120 分钟
满分：100 分

1. 下列哪个选项是正确的三角形分类方式？
   A. 锐角三角形
   B. 直角三角形
   C. 钝角三角形
   D. 以上都是`

	engine := NewEngine()
	candidates := engine.Segment(context.Background(), text)

	require.NotEmpty(t, candidates)
	for _, c := range candidates {
		assert.NotContains(t, c.Text, "考试时间")
		assert.NotContains(t, c.Text, "页 共")
	}
}

func TestDetectType(t *testing.T) {
	cases := []struct {
		name string
		text string
		want string
	}{
		{"trailing brackets", "地球是太阳系中最大的行星。（　　）", model.TypeJudge},
		{"underscores", "一元二次方程 x² - 5x + 6 = 0 的解是 ______", model.TypeFill},
		{"single choice", "下列哪个是质数？A. 4 B. 6 C. 7 D. 9", model.TypeSingle},
		{"multiple choice", "下列哪些是偶数？A. 2 B. 3 C. 4 D. 5", model.TypeMultiple},
		{"subjective", "试分析工业革命对社会结构的影响。", model.TypeSubjective},
		{"default", "写出你最喜欢的一句诗。", model.TypeSingle},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DetectType(tc.text))
		})
	}
}

func TestConfidenceStructuralBonus(t *testing.T) {
	withOptions := "下列哪个函数是奇函数？A. f(x)=x²  B. f(x)=x³  C. f(x)=|x|  D. f(x)=x⁴"
	bare := "下列哪个函数是奇函数？"

	cWith := scoreConfidence(withOptions, model.TypeSingle)
	cBare := scoreConfidence(bare, model.TypeSingle)
	assert.Greater(t, cWith, cBare)
}

// failingClassifier 外部模型始终失败
type failingClassifier struct{}

func (failingClassifier) Classify(context.Context, string) ([]Candidate, error) {
	return nil, errors.New("model unavailable")
}

// fixedClassifier 外部模型返回固定结果
type fixedClassifier struct {
	result []Candidate
}

func (c fixedClassifier) Classify(context.Context, string) ([]Candidate, error) {
	return c.result, nil
}

// 外部模型失败时引擎结果不受影响
func TestClassifierFailureFallsBack(t *testing.T) {
	text := "这是一段没有任何题目特征的普通说明文字内容示例。"

	engine := NewEngine()
	engine.Classifier = failingClassifier{}
	candidates := engine.Segment(context.Background(), text)

	require.Len(t, candidates, 1)
}

// 外部模型结果严格更多时才采用
func TestClassifierMergeStrictlyMore(t *testing.T) {
	text := "这是一段没有任何题目特征的普通说明文字内容示例。"
	external := []Candidate{
		{Seq: 1, Text: "第一道题目的内容是什么？", Type: model.TypeSingle, Confidence: 0.8},
		{Seq: 2, Text: "第二道题目的内容是什么？", Type: model.TypeSingle, Confidence: 0.8},
	}

	engine := NewEngine()
	engine.Classifier = fixedClassifier{result: external}
	candidates := engine.Segment(context.Background(), text)

	require.Len(t, candidates, 2)

	// 数量不多于正则结果时维持正则结果
	engine.Classifier = fixedClassifier{result: external[:1]}
	candidates = engine.Segment(context.Background(), text)
	require.Len(t, candidates, 1)
	assert.Contains(t, candidates[0].Text, "普通说明文字")
}
