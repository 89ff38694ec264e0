package segmentation

import (
	"regexp"
	"strings"

	"github.com/SzSimonSun/smart-exam-mvp/internal/model"
)

// 判断题特征
var judgePatterns = []*regexp.Regexp{
	regexp.MustCompile(`判断.*?题`),
	regexp.MustCompile(`对错.*?题`),
	regexp.MustCompile(`正确.*?是|错误.*?是`),
	regexp.MustCompile(`是否.*?正确`),
	regexp.MustCompile(`说法.*?正确`),
	regexp.MustCompile(`[（(][　\s]*[）)][　\s]*$`),
}

// 填空题特征
var fillPatterns = []*regexp.Regexp{
	regexp.MustCompile(`_{3,}`),
	regexp.MustCompile(`填空.*?题`),
	regexp.MustCompile(`完成.*?句子`),
	regexp.MustCompile(`填入.*?空白`),
	regexp.MustCompile(`……`),
}

// 选项标签，A.至D.
var choiceLabel = regexp.MustCompile(`[A-D][.．、]`)

// 主观题特征
var subjectivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`计算|求|证明|分析|简述|论述`),
	regexp.MustCompile(`为什么|怎么样|如何.*?理解`),
	regexp.MustCompile(`谈谈.*?看法|结合.*?说明`),
}

// DetectType 按优先级判别题型：判断 → 填空 → 选择 → 主观 → 默认单选
func DetectType(text string) string {
	for _, p := range judgePatterns {
		if p.MatchString(text) {
			return model.TypeJudge
		}
	}

	for _, p := range fillPatterns {
		if p.MatchString(text) {
			return model.TypeFill
		}
	}

	if countDistinctChoices(text) >= 2 {
		if strings.Contains(text, "多选") || strings.Contains(text, "哪些") {
			return model.TypeMultiple
		}
		return model.TypeSingle
	}

	for _, p := range subjectivePatterns {
		if p.MatchString(text) {
			return model.TypeSubjective
		}
	}
	return model.TypeSingle
}

// countDistinctChoices 统计出现的不同选项标签数
func countDistinctChoices(text string) int {
	seen := map[byte]bool{}
	for _, m := range choiceLabel.FindAllString(text, -1) {
		seen[m[0]] = true
	}
	return len(seen)
}
