package store

import (
	"context"
	"errors"

	"github.com/SzSimonSun/smart-exam-mvp/internal/model"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("store: record not found")

// KeyEntry 单题的标准答案
type KeyEntry struct {
	QuestionID int64
	Type       string
	MaxScore   float64
	Correct    []string
	Objective  bool
}

// RecognitionStore 识别流程的存储操作
type RecognitionStore interface {
	// GetSheet 查询答题卡
	GetSheet(ctx context.Context, sheetID int64) (*model.AnswerSheet, error)
	// SetSheetStatus 更新答题卡状态，errMsg非空时一并记录
	SetSheetStatus(ctx context.Context, sheetID int64, status, errMsg string) error
	// GetAnswerKey 加载试卷的标准答案，用于识别结果与题型的交叉校验
	GetAnswerKey(ctx context.Context, paperID int64) (map[int64]KeyEntry, error)
	// UpsertAnswer 写入识别结果，同一(sheet, question)覆盖旧行
	UpsertAnswer(ctx context.Context, answer *model.Answer) error
}

// GradeStore 判分流程的存储操作
type GradeStore interface {
	// GetSheet 查询答题卡
	GetSheet(ctx context.Context, sheetID int64) (*model.AnswerSheet, error)
	// GetAnswerKey 加载试卷的标准答案，按题目ID索引
	GetAnswerKey(ctx context.Context, paperID int64) (map[int64]KeyEntry, error)
	// ListAnswers 列出答题卡的全部作答记录
	ListAnswers(ctx context.Context, sheetID int64) ([]model.Answer, error)
	// UpdateAnswerScore 回写单题判分结果
	UpdateAnswerScore(ctx context.Context, sheetID, questionID int64, isCorrect *bool, score, maxScore *float64) error
	// SumScores 汇总答题卡已落库的得分
	SumScores(ctx context.Context, sheetID int64) (float64, error)
	// SetSheetGraded 答题卡置为已判分并记录总分
	SetSheetGraded(ctx context.Context, sheetID int64, total float64) error
	// SetSheetStatus 更新答题卡状态
	SetSheetStatus(ctx context.Context, sheetID int64, status, errMsg string) error
}

// IngestStore 拆题流程的存储操作
type IngestStore interface {
	// GetSession 查询拆题会话
	GetSession(ctx context.Context, sessionID int64) (*model.IngestSession, error)
	// SetSessionStatus 更新会话状态，errMsg非空时一并记录
	SetSessionStatus(ctx context.Context, sessionID int64, status, errMsg string) error
	// ReplacePendingItems 原子替换会话下的待审候选：
	// 删除旧的pending行后写入新候选，保证重跑不产生重复
	ReplacePendingItems(ctx context.Context, sessionID int64, items []model.IngestItem) error
}
