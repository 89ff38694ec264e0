package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SzSimonSun/smart-exam-mvp/internal/model"
	"github.com/SzSimonSun/smart-exam-mvp/internal/utils"
)

// GormStore 基于gorm的存储实现，同时满足识别、判分、拆题三套接口
type GormStore struct {
	db *gorm.DB
}

// NewGormStore 创建存储实现
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// GetSheet 查询答题卡
func (s *GormStore) GetSheet(ctx context.Context, sheetID int64) (*model.AnswerSheet, error) {
	var sheet model.AnswerSheet
	err := s.db.WithContext(ctx).First(&sheet, sheetID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: answer_sheet %d", ErrNotFound, sheetID)
	}
	if err != nil {
		return nil, err
	}
	return &sheet, nil
}

// SetSheetStatus 更新答题卡状态
func (s *GormStore) SetSheetStatus(ctx context.Context, sheetID int64, status, errMsg string) error {
	updates := map[string]any{"status": status}
	if errMsg != "" {
		updates["error_message"] = errMsg
	}
	return s.db.WithContext(ctx).Model(&model.AnswerSheet{}).
		Where("id = ?", sheetID).
		Updates(updates).Error
}

// UpsertAnswer 写入识别结果，(sheet_id, question_id)冲突时覆盖识别字段
func (s *GormStore) UpsertAnswer(ctx context.Context, answer *model.Answer) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "sheet_id"}, {Name: "question_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"raw_omr", "raw_ocr", "parsed_json", "is_objective", "error_flag",
		}),
	}).Create(answer).Error
}

// answerKeyRow paper_questions与questions联查的结果行
type answerKeyRow struct {
	QuestionID int64
	Score      float64
	Type       string
	AnswerJSON *string
}

// GetAnswerKey 加载试卷的标准答案
func (s *GormStore) GetAnswerKey(ctx context.Context, paperID int64) (map[int64]KeyEntry, error) {
	var rows []answerKeyRow
	err := s.db.WithContext(ctx).
		Table(model.TableNamePaperQuestion+" AS pq").
		Select("pq.question_id, pq.score, q.type, q.answer_json").
		Joins("JOIN "+model.TableNameQuestion+" AS q ON pq.question_id = q.id").
		Where("pq.paper_id = ?", paperID).
		Order("pq.seq").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	key := make(map[int64]KeyEntry, len(rows))
	for _, row := range rows {
		entry := KeyEntry{
			QuestionID: row.QuestionID,
			Type:       row.Type,
			MaxScore:   row.Score,
			Objective:  model.IsObjective(row.Type),
		}
		if row.AnswerJSON != nil {
			entry.Correct = parseCorrectAnswer(*row.AnswerJSON)
		}
		key[row.QuestionID] = entry
	}
	return key, nil
}

// parseCorrectAnswer 解析answer_json的correct字段，统一为字符串列表
func parseCorrectAnswer(answerJSON string) []string {
	var parsed struct {
		Correct any `json:"correct"`
	}
	if err := utils.UnmarshalString(answerJSON, &parsed); err != nil {
		return nil
	}
	switch v := parsed.Correct.(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	case bool:
		if v {
			return []string{"true"}
		}
		return []string{"false"}
	}
	return nil
}

// ListAnswers 列出答题卡的全部作答记录
func (s *GormStore) ListAnswers(ctx context.Context, sheetID int64) ([]model.Answer, error) {
	var answers []model.Answer
	err := s.db.WithContext(ctx).
		Where("sheet_id = ?", sheetID).
		Order("question_id").
		Find(&answers).Error
	return answers, err
}

// UpdateAnswerScore 回写单题判分结果
func (s *GormStore) UpdateAnswerScore(ctx context.Context, sheetID, questionID int64, isCorrect *bool, score, maxScore *float64) error {
	return s.db.WithContext(ctx).Model(&model.Answer{}).
		Where("sheet_id = ? AND question_id = ?", sheetID, questionID).
		Updates(map[string]any{
			"is_correct": isCorrect,
			"score":      score,
			"max_score":  maxScore,
		}).Error
}

// SumScores 汇总答题卡已落库的得分
func (s *GormStore) SumScores(ctx context.Context, sheetID int64) (float64, error) {
	var total float64
	err := s.db.WithContext(ctx).Model(&model.Answer{}).
		Where("sheet_id = ?", sheetID).
		Select("COALESCE(SUM(score), 0)").
		Scan(&total).Error
	return total, err
}

// SetSheetGraded 答题卡置为已判分并记录总分
func (s *GormStore) SetSheetGraded(ctx context.Context, sheetID int64, total float64) error {
	return s.db.WithContext(ctx).Model(&model.AnswerSheet{}).
		Where("id = ?", sheetID).
		Updates(map[string]any{
			"status":      model.SheetStatusGraded,
			"total_score": total,
		}).Error
}

// GetSession 查询拆题会话
func (s *GormStore) GetSession(ctx context.Context, sessionID int64) (*model.IngestSession, error) {
	var session model.IngestSession
	err := s.db.WithContext(ctx).First(&session, sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: ingest_session %d", ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// SetSessionStatus 更新会话状态
func (s *GormStore) SetSessionStatus(ctx context.Context, sessionID int64, status, errMsg string) error {
	updates := map[string]any{"status": status}
	if errMsg != "" {
		updates["error_message"] = errMsg
	}
	return s.db.WithContext(ctx).Model(&model.IngestSession{}).
		Where("id = ?", sessionID).
		Updates(updates).Error
}

// ReplacePendingItems 删除会话下旧的pending候选后写入新候选，单事务完成
func (s *GormStore) ReplacePendingItems(ctx context.Context, sessionID int64, items []model.IngestItem) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ? AND review_status = ?", sessionID, model.ReviewStatusPending).
			Delete(&model.IngestItem{}).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		return tx.Create(&items).Error
	})
}

var (
	_ RecognitionStore = (*GormStore)(nil)
	_ GradeStore       = (*GormStore)(nil)
	_ IngestStore      = (*GormStore)(nil)
)
