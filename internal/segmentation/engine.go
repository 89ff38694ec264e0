package segmentation

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/SzSimonSun/smart-exam-mvp/internal/logger"
)

// Candidate 拆分出的候选题目
type Candidate struct {
	Seq        int     `json:"seq"`
	Text       string  `json:"text"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// Classifier 外部模型拆题接口，可选增强。
// 调用失败不影响引擎结果
type Classifier interface {
	Classify(ctx context.Context, text string) ([]Candidate, error)
}

// Engine 正则拆题引擎。输入归一化文本，输出有序的候选题目，
// 对通过最小长度过滤的非空输入保证至少返回一个候选
type Engine struct {
	// MinLength 候选题目的最小长度（按字符计）
	MinLength int
	// MinCandidates 正则结果低于此数量时触发备用策略
	MinCandidates int
	// MinAvgConfidence 正则结果平均置信度低于此值时触发备用策略
	MinAvgConfidence float64
	// MaxCandidates 单次拆分返回的候选上限
	MaxCandidates int
	// Classifier 外部模型增强，nil则禁用
	Classifier Classifier
}

// NewEngine 创建默认参数的拆题引擎
func NewEngine() *Engine {
	return &Engine{
		MinLength:        15,
		MinCandidates:    3,
		MinAvgConfidence: 0.6,
		MaxCandidates:    20,
	}
}

// 题目特征，候选正文至少命中其一才算有效
var questionIndicators = []*regexp.Regexp{
	regexp.MustCompile(`[?？]`),
	regexp.MustCompile(`下列.*?是|哪.*?是|什么.*?是`),
	regexp.MustCompile(`计算|求|证明|分析|简述|论述`),
	regexp.MustCompile(`正确.*?是|错误.*?是`),
	regexp.MustCompile(`(?s)[A-D][.．、].*?[A-D][.．、]`),
	regexp.MustCompile(`_{3,}`),
	regexp.MustCompile(`[（(][　\s]*[）)][　\s]*$`),
}

// 噪声形状：纯下划线、纯页码、孤立选项碎片
var noiseShapes = []*regexp.Regexp{
	regexp.MustCompile(`^[_＿\s　]+$`),
	regexp.MustCompile(`^第?\s*\d+\s*页?$`),
	regexp.MustCompile(`^[A-D][.．、][^\n]*$`),
}

// Segment 对文本执行拆题级联：
// 题号模式打分择优 → 问号/段落备用策略 → 整文兜底 → 可选外部模型合并
func (e *Engine) Segment(ctx context.Context, text string) []Candidate {
	cleaned := stripNoise(text)
	if cleaned == "" {
		cleaned = strings.TrimSpace(text)
	}
	if cleaned == "" {
		return nil
	}

	best, bestScore := e.bestPatternSplit(cleaned)

	if len(best) < e.MinCandidates || avgConfidence(best) < e.MinAvgConfidence {
		fallback := e.fallbackSplit(cleaned)
		if len(fallback) > len(best) {
			logger.Debug("拆题启用备用策略",
				zap.Int("pattern_count", len(best)),
				zap.Float64("pattern_score", bestScore),
				zap.Int("fallback_count", len(fallback)))
			best = fallback
		}
	}

	// 兜底：整段文本作为一个候选，不做有效性过滤
	if len(best) == 0 {
		best = []Candidate{e.makeCandidate(cleaned, 1)}
	}

	if len(best) > e.MaxCandidates {
		best = best[:e.MaxCandidates]
	}

	return e.maybeEnhance(ctx, cleaned, best)
}

// bestPatternSplit 逐个题号模式切分并打分，返回最优结果。
// 得分相同时保留靠前的模式，数量多者优先
func (e *Engine) bestPatternSplit(text string) ([]Candidate, float64) {
	var best []Candidate
	bestScore := 0.0

	for _, p := range markerPatterns {
		splits := p.split(text)
		if len(splits) == 0 {
			continue
		}

		candidates := make([]Candidate, 0, len(splits))
		for _, s := range splits {
			body := formatBody(s.body)
			if !e.isValidBody(body) {
				continue
			}
			candidates = append(candidates, e.makeCandidate(body, s.seq))
		}
		if len(candidates) == 0 {
			continue
		}

		score := splitScore(candidates)
		logger.Debug("题号模式拆分",
			zap.String("pattern", p.name),
			zap.Int("count", len(candidates)),
			zap.Float64("score", score))

		if score > bestScore || (score == bestScore && len(candidates) > len(best)) {
			best = candidates
			bestScore = score
		}
	}
	return best, bestScore
}

// splitScore 拆分质量评分：数量0.3 + 平均置信度0.4 + 平均长度0.3
func splitScore(candidates []Candidate) float64 {
	if len(candidates) == 0 {
		return 0
	}
	countScore := float64(len(candidates)) / 10.0
	if countScore > 1.0 {
		countScore = 1.0
	}

	totalLen := 0
	for _, c := range candidates {
		totalLen += utf8.RuneCountInString(c.Text)
	}
	lengthScore := float64(totalLen) / float64(len(candidates)) / 100.0
	if lengthScore > 1.0 {
		lengthScore = 1.0
	}

	return countScore*0.3 + avgConfidence(candidates)*0.4 + lengthScore*0.3
}

func avgConfidence(candidates []Candidate) float64 {
	if len(candidates) == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range candidates {
		sum += c.Confidence
	}
	return sum / float64(len(candidates))
}

var (
	questionMarkBoundary = regexp.MustCompile(`[?？][ \t]*\n|[?？][ \t]*$`)
	paragraphBoundary    = regexp.MustCompile(`\n[ \t]*\n+`)
)

// fallbackSplit 备用策略：先按问号边界切，不足再按段落切
func (e *Engine) fallbackSplit(text string) []Candidate {
	var out []Candidate

	parts := questionMarkBoundary.Split(text, -1)
	if len(parts) > 1 {
		// 最后一段是末个问号之后的残余文本，不视为题目
		for _, part := range parts[:len(parts)-1] {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			body := part + "？"
			if e.isValidBody(body) {
				out = append(out, e.makeCandidate(body, len(out)+1))
			}
		}
	}

	if len(out) < e.MinCandidates {
		for _, para := range paragraphBoundary.Split(text, -1) {
			para = strings.TrimSpace(para)
			if para == "" || !e.isValidBody(para) {
				continue
			}
			out = append(out, e.makeCandidate(para, len(out)+1))
		}
	}
	return out
}

// isValidBody 候选有效性：长度达标、非噪声形状、命中题目特征
func (e *Engine) isValidBody(body string) bool {
	trimmed := strings.TrimSpace(body)
	if utf8.RuneCountInString(trimmed) < e.MinLength {
		return false
	}
	for _, p := range noiseShapes {
		if p.MatchString(trimmed) {
			return false
		}
	}
	for _, p := range questionIndicators {
		if p.MatchString(trimmed) {
			return true
		}
	}
	return false
}

func (e *Engine) makeCandidate(body string, seq int) Candidate {
	t := DetectType(body)
	return Candidate{
		Seq:        seq,
		Text:       body,
		Type:       t,
		Confidence: scoreConfidence(body, t),
	}
}

// maybeEnhance 结果偏少或置信度偏低时调用外部模型，
// 仅当外部结果严格更多时替换，任何错误都回落到正则结果
func (e *Engine) maybeEnhance(ctx context.Context, text string, regex []Candidate) []Candidate {
	if e.Classifier == nil {
		return regex
	}
	if len(regex) >= e.MinCandidates && avgConfidence(regex) >= e.MinAvgConfidence {
		return regex
	}

	external, err := e.Classifier.Classify(ctx, text)
	if err != nil {
		logger.Warn("外部模型拆题失败，使用正则结果", zap.Error(err))
		return regex
	}

	valid := external[:0:0]
	for _, c := range external {
		c.Confidence = clampConfidence(c.Confidence)
		if c.Type == "" {
			c.Type = DetectType(c.Text)
		}
		if strings.TrimSpace(c.Text) == "" {
			continue
		}
		valid = append(valid, c)
	}
	if len(valid) > len(regex) {
		logger.Info("采用外部模型拆题结果",
			zap.Int("regex_count", len(regex)),
			zap.Int("external_count", len(valid)))
		if len(valid) > e.MaxCandidates {
			valid = valid[:e.MaxCandidates]
		}
		return valid
	}
	return regex
}
