package segmentation

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/SzSimonSun/smart-exam-mvp/internal/model"
)

const (
	baseConfidence = 0.6
	minConfidence  = 0.1
	maxConfidence  = 1.0
)

var (
	fillMarks      = regexp.MustCompile(`_{3,}|……|　+`)
	judgeBrackets  = regexp.MustCompile(`[（(][　\s]*[）)]`)
	interrogative  = regexp.MustCompile(`[?？]`)
	degenerateText = regexp.MustCompile(`^[　\s]*$|^答题卡|^请将信息`)
)

// 关键问题词，出现则加分
var questionWords = []string{"什么", "哪个", "哪些", "下列", "以下", "怎么", "为什么", "如何"}

// 主观题动词，出现则加分
var subjectiveWords = []string{"论述", "分析", "简答", "说明", "计算", "证明"}

// scoreConfidence 计算候选题目的置信度，结果夹在[0.1, 1.0]
func scoreConfidence(text, questionType string) float64 {
	c := baseConfidence

	// 文本长度调整
	n := utf8.RuneCountInString(strings.TrimSpace(text))
	switch {
	case n < 15:
		c -= 0.4
	case n < 30:
		c -= 0.2
	case n > 200:
		c += 0.3
	case n > 100:
		c += 0.2
	}

	// 题型结构完整性调整
	switch questionType {
	case model.TypeSingle:
		switch distinct := countDistinctChoices(text); {
		case distinct >= 3:
			c += 0.3
		case distinct >= 2:
			c += 0.1
		}
	case model.TypeMultiple:
		if strings.Contains(text, "多选") || strings.Contains(text, "哪些") {
			c += 0.2
		}
	case model.TypeFill:
		if fillMarks.MatchString(text) {
			c += 0.3
		}
	case model.TypeJudge:
		if judgeBrackets.MatchString(text) {
			c += 0.2
		}
	case model.TypeSubjective:
		for _, w := range subjectiveWords {
			if strings.Contains(text, w) {
				c += 0.2
				break
			}
		}
	}

	if interrogative.MatchString(text) {
		c += 0.1
	}
	for _, w := range questionWords {
		if strings.Contains(text, w) {
			c += 0.1
			break
		}
	}
	if degenerateText.MatchString(text) {
		c -= 0.5
	}

	return clampConfidence(c)
}

func clampConfidence(c float64) float64 {
	if c < minConfidence {
		return minConfidence
	}
	if c > maxConfidence {
		return maxConfidence
	}
	return c
}
