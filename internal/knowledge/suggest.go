package knowledge

import (
	"strings"

	"github.com/duke-git/lancet/v2/slice"

	"github.com/SzSimonSun/smart-exam-mvp/internal/model"
)

// Suggestion 知识点建议
type Suggestion struct {
	Subject    string  `json:"subject"`
	Module     string  `json:"module"`
	Point      string  `json:"point"`
	Confidence float64 `json:"confidence"`
}

// 关键词到知识点目录的映射
var keywordTaxonomy = []struct {
	keyword string
	s       Suggestion
}{
	{"方程", Suggestion{Subject: "数学", Module: "代数", Point: "方程", Confidence: 0.8}},
	{"函数", Suggestion{Subject: "数学", Module: "代数", Point: "函数", Confidence: 0.8}},
	{"极限", Suggestion{Subject: "数学", Module: "微积分", Point: "极限", Confidence: 0.8}},
	{"导数", Suggestion{Subject: "数学", Module: "微积分", Point: "导数", Confidence: 0.8}},
	{"积分", Suggestion{Subject: "数学", Module: "微积分", Point: "积分", Confidence: 0.8}},
	{"三角形", Suggestion{Subject: "数学", Module: "几何", Point: "三角形", Confidence: 0.8}},
	{"质数", Suggestion{Subject: "数学", Module: "数论", Point: "质数", Confidence: 0.8}},
	{"复数", Suggestion{Subject: "数学", Module: "代数", Point: "复数", Confidence: 0.8}},
	{"阅读", Suggestion{Subject: "语文", Module: "阅读理解", Point: "现代文", Confidence: 0.8}},
	{"tense", Suggestion{Subject: "英语", Module: "语法", Point: "时态", Confidence: 0.8}},
}

const maxSuggestions = 3

// Suggest 按关键词匹配给出知识点建议，最多3条。
// 主观题的建议置信度下调，命不中任何关键词时给通用兜底
func Suggest(text, questionType string) []Suggestion {
	lower := strings.ToLower(text)

	matched := []Suggestion{}
	for _, entry := range keywordTaxonomy {
		if strings.Contains(lower, strings.ToLower(entry.keyword)) {
			matched = append(matched, entry.s)
		}
	}

	// 同一知识点只保留一条
	seen := map[string]bool{}
	matched = slice.Filter(matched, func(_ int, s Suggestion) bool {
		key := s.Subject + "/" + s.Module + "/" + s.Point
		if seen[key] {
			return false
		}
		seen[key] = true
		return true
	})

	if len(matched) == 0 {
		matched = append(matched, Suggestion{
			Subject:    "通用",
			Module:     "基础",
			Point:      "综合",
			Confidence: 0.5,
		})
	}
	if len(matched) > maxSuggestions {
		matched = matched[:maxSuggestions]
	}

	if questionType == model.TypeSubjective {
		for i := range matched {
			matched[i].Confidence *= 0.9
		}
	}
	return matched
}
