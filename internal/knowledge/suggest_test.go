package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SzSimonSun/smart-exam-mvp/internal/model"
)

func TestSuggestKeywordMatch(t *testing.T) {
	got := Suggest("求函数 f(x) = x² 的导数", model.TypeFill)
	require.NotEmpty(t, got)

	points := make([]string, 0, len(got))
	for _, s := range got {
		points = append(points, s.Point)
	}
	assert.Contains(t, points, "函数")
	assert.Contains(t, points, "导数")
	for _, s := range got {
		assert.Equal(t, "数学", s.Subject)
		assert.Equal(t, 0.8, s.Confidence)
	}
}

func TestSuggestGenericFallback(t *testing.T) {
	got := Suggest("这段文本没有任何学科关键词", model.TypeSingle)
	require.Len(t, got, 1)
	assert.Equal(t, "通用", got[0].Subject)
	assert.Equal(t, 0.5, got[0].Confidence)
}

func TestSuggestCapped(t *testing.T) {
	got := Suggest("方程、函数、极限、导数、积分都考", model.TypeSingle)
	assert.Len(t, got, maxSuggestions)
}

func TestSuggestDedupes(t *testing.T) {
	got := Suggest("函数函数函数，还是函数", model.TypeSingle)
	require.Len(t, got, 1)
	assert.Equal(t, "函数", got[0].Point)
}

// 主观题建议整体下调置信度
func TestSuggestSubjectiveDamping(t *testing.T) {
	got := Suggest("证明三角形内角和等于180度", model.TypeSubjective)
	require.NotEmpty(t, got)
	assert.InDelta(t, 0.72, got[0].Confidence, 1e-9)
}

func TestSuggestCaseInsensitiveKeyword(t *testing.T) {
	got := Suggest("Choose the correct TENSE of the verb", model.TypeSingle)
	require.Len(t, got, 1)
	assert.Equal(t, "英语", got[0].Subject)
}
