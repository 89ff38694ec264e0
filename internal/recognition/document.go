package recognition

import (
	"bytes"
	"fmt"
	"unicode/utf8"
)

// 页面区域类型
const (
	RegionHeader  = "header"
	RegionContent = "content"
	RegionFooter  = "footer"
)

// PageRegion 页面区域
type PageRegion struct {
	Kind   string `json:"kind"`
	Bounds Rect   `json:"bounds"`
}

// PageLayout 粗粒度页面版式：页眉、正文、页脚
type PageLayout struct {
	Regions []PageRegion `json:"regions"`
}

// ContentRegion 返回正文区域
func (l *PageLayout) ContentRegion() (PageRegion, bool) {
	for _, r := range l.Regions {
		if r.Kind == RegionContent {
			return r, true
		}
	}
	return PageRegion{}, false
}

// AnalyzePage 对源文档做粗粒度版式分析：
// 顶部十分之一为页眉，底部十分之一为页脚，中间为正文
func AnalyzePage(doc []byte) (*PageLayout, error) {
	if len(doc) == 0 {
		return nil, fmt.Errorf("文档内容为空")
	}
	headerH := canonicalHeight / 10
	return &PageLayout{
		Regions: []PageRegion{
			{Kind: RegionHeader, Bounds: Rect{X: 0, Y: 0, Width: canonicalWidth, Height: headerH}},
			{Kind: RegionContent, Bounds: Rect{X: 0, Y: headerH, Width: canonicalWidth, Height: canonicalHeight - 2*headerH}},
			{Kind: RegionFooter, Bounds: Rect{X: 0, Y: canonicalHeight - headerH, Width: canonicalWidth, Height: headerH}},
		},
	}, nil
}

// ContentSlices 把正文区域切成候选题块。
// 文本文档按空行段落切，图像文档按固定块数均分
func ContentSlices(doc []byte, layout *PageLayout) ([][]byte, error) {
	if _, ok := layout.ContentRegion(); !ok {
		return nil, fmt.Errorf("版式中缺少正文区域")
	}

	if isPlainText(doc) {
		parts := bytes.Split(doc, []byte("\n\n"))
		slices := make([][]byte, 0, len(parts))
		for _, p := range parts {
			if len(bytes.TrimSpace(p)) == 0 {
				continue
			}
			slices = append(slices, p)
		}
		if len(slices) == 0 {
			slices = [][]byte{doc}
		}
		return slices, nil
	}

	// 图像文档均分为四个题块
	const blocks = 4
	size := len(doc) / blocks
	if size == 0 {
		return [][]byte{doc}, nil
	}
	slices := make([][]byte, 0, blocks)
	for i := 0; i < blocks; i++ {
		end := (i + 1) * size
		if i == blocks-1 {
			end = len(doc)
		}
		slices = append(slices, doc[i*size:end])
	}
	return slices, nil
}

// IsPlainText 判断文档是否为纯文本
func IsPlainText(doc []byte) bool {
	return isPlainText(doc)
}

func isPlainText(data []byte) bool {
	if !utf8.Valid(data) {
		return false
	}
	return !bytes.ContainsRune(data, 0)
}
