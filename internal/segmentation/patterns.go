package segmentation

import (
	"regexp"
	"strconv"
	"strings"
)

// 页眉页脚等干扰信息的清除模式
var noisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`第\s*\d+\s*页\s*共\s*\d+\s*页`),
	regexp.MustCompile(`姓名[：:]\s*_+\s*学号[：:]\s*_+`),
	regexp.MustCompile(`准考证号[：:]\s*_+`),
	regexp.MustCompile(`考试时间[：:]\s*\d+\s*分钟`),
	regexp.MustCompile(`满分[：:]\s*\d+\s*分`),
	regexp.MustCompile(`(?m)^[ \t]*注意事项[：:][^\n]*$`),
	regexp.MustCompile(`(?m)^[ \t]*答题说明[：:][^\n]*$`),
}

var blankLines = regexp.MustCompile(`\n[ \t]*\n[ \t]*\n+`)

// stripNoise 预处理文本：统一换行符，清除干扰信息，压缩多余空行
func stripNoise(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	for _, p := range noisePatterns {
		text = p.ReplaceAllString(text, "")
	}
	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// markerPattern 题号模式。正则只匹配行首的题号标记，
// 题干正文取相邻两个标记之间的文本切片
type markerPattern struct {
	name    string
	re      *regexp.Regexp
	chinese bool // 题号为中文数字
}

// 题号模式按优先级排列，得分相同时靠前者胜出
var markerPatterns = []markerPattern{
	{name: "number_dot", re: regexp.MustCompile(`(?m)^[ \t]*([1-9][0-9]*)[.．][ \t]*`)},
	{name: "number_comma", re: regexp.MustCompile(`(?m)^[ \t]*([1-9][0-9]*)、[ \t]*`)},
	{name: "chinese_formal", re: regexp.MustCompile(`(?m)^[ \t]*第\s*([一二三四五六七八九十]+)\s*题[：:][ \t]*`), chinese: true},
	{name: "number_paren", re: regexp.MustCompile(`(?m)^[ \t]*([1-9][0-9]*)\)[ \t]*`)},
	{name: "number_both_paren", re: regexp.MustCompile(`(?m)^[ \t]*\(([1-9][0-9]*)\)[ \t]*`)},
	{name: "chinese_simple", re: regexp.MustCompile(`(?m)^[ \t]*([一二三四五六七八九十]+)[、.][ \t]*`), chinese: true},
	{name: "formal_title", re: regexp.MustCompile(`(?m)^[ \t]*题目\s*([1-9][0-9]*)[：:][ \t]*`)},
	{name: "q_format", re: regexp.MustCompile(`(?m)^[ \t]*[Qq]([1-9][0-9]*)[.．][ \t]*`)},
}

// 中文数字转换表
var chineseNumbers = map[string]int{
	"一": 1, "二": 2, "三": 3, "四": 4, "五": 5,
	"六": 6, "七": 7, "八": 8, "九": 9, "十": 10,
	"十一": 11, "十二": 12, "十三": 13, "十四": 14, "十五": 15,
	"十六": 16, "十七": 17, "十八": 18, "十九": 19, "二十": 20,
}

// rawSplit 题号切分出的原始片段
type rawSplit struct {
	seq  int
	body string
}

// split 按题号标记把文本切成(题号, 正文)片段。
// 正文为当前标记结束到下一标记开始之间的文本
func (p markerPattern) split(text string) []rawSplit {
	locs := p.re.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}

	out := make([]rawSplit, 0, len(locs))
	for i, loc := range locs {
		numStr := text[loc[2]:loc[3]]
		seq := 0
		if p.chinese {
			seq = chineseNumbers[numStr]
			if seq == 0 {
				seq = i + 1
			}
		} else {
			n, err := strconv.Atoi(numStr)
			if err != nil {
				n = i + 1
			}
			seq = n
		}

		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		body := strings.TrimSpace(text[loc[1]:end])
		if body == "" {
			continue
		}
		out = append(out, rawSplit{seq: seq, body: body})
	}
	return out
}

var (
	optionLine = regexp.MustCompile(`^[A-Z][.．]\s*`)
	mathEq     = regexp.MustCompile(`\s*=\s*`)
	mathPlus   = regexp.MustCompile(`\s*\+\s*`)
	mathTimes  = regexp.MustCompile(`\s*×\s*`)
	mathDiv    = regexp.MustCompile(`\s*÷\s*`)
)

// formatBody 格式化题干：选项行缩进，数学符号两侧留空格
func formatBody(body string) string {
	lines := strings.Split(body, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch {
		case optionLine.MatchString(line):
			out = append(out, "    "+line)
		case strings.ContainsAny(line, "=+×÷"):
			line = mathEq.ReplaceAllString(line, " = ")
			line = mathPlus.ReplaceAllString(line, " + ")
			line = mathTimes.ReplaceAllString(line, " × ")
			line = mathDiv.ReplaceAllString(line, " ÷ ")
			out = append(out, line)
		default:
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
