package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/SzSimonSun/smart-exam-mvp/internal/logger"
	"github.com/SzSimonSun/smart-exam-mvp/internal/model"
	"github.com/SzSimonSun/smart-exam-mvp/internal/store"
	"github.com/SzSimonSun/smart-exam-mvp/internal/task"
	"github.com/SzSimonSun/smart-exam-mvp/internal/utils"
)

// GradeWorker 自动判分处理器。客观题按题型规则判分，
// 主观题留待人工，总分由已落库得分重新汇总而非增量累加
type GradeWorker struct {
	store       store.GradeStore
	notifier    Notifier
	callbackURL string
}

// NewGradeWorker 创建判分处理器
func NewGradeWorker(s store.GradeStore, notifier Notifier, callbackURL string) *GradeWorker {
	return &GradeWorker{
		store:       s,
		notifier:    notifier,
		callbackURL: callbackURL,
	}
}

// Handle 处理判分任务
func (w *GradeWorker) Handle(ctx context.Context, msg *task.Message) error {
	payload, err := task.GradePayloadOf(msg)
	if err != nil {
		return fmt.Errorf("判分任务载荷非法: %w", err)
	}

	logger.Info("开始处理判分任务",
		zap.String("task_id", msg.TaskID),
		zap.Int64("sheet_id", payload.SheetID))

	if err := w.process(ctx, msg, payload); err != nil {
		if serr := w.store.SetSheetStatus(ctx, payload.SheetID, model.SheetStatusError, err.Error()); serr != nil {
			logger.Error("记录答题卡错误状态失败", zap.Int64("sheet_id", payload.SheetID), zap.Error(serr))
		}
		return err
	}
	return nil
}

func (w *GradeWorker) process(ctx context.Context, msg *task.Message, payload task.GradePayload) error {
	sheet, err := w.store.GetSheet(ctx, payload.SheetID)
	if err != nil {
		return err
	}

	key, err := w.store.GetAnswerKey(ctx, sheet.PaperID)
	if err != nil {
		return fmt.Errorf("加载标准答案失败: %w", err)
	}
	if len(key) == 0 {
		return fmt.Errorf("试卷 %d 没有标准答案", sheet.PaperID)
	}

	captured, err := w.capturedAnswers(ctx, sheet.ID, payload)
	if err != nil {
		return err
	}

	gradedCount := 0
	for _, answer := range captured {
		entry, ok := key[answer.QuestionID]
		if !ok {
			logger.Warn("作答题目不在试卷中，跳过",
				zap.Int64("sheet_id", sheet.ID),
				zap.Int64("question_id", answer.QuestionID))
			continue
		}
		if !entry.Objective {
			// 主观题不自动判分，留待人工
			continue
		}

		isCorrect, ratio := gradeObjective(entry, answer.Value)
		score := ratio * entry.MaxScore
		maxScore := entry.MaxScore
		if err := w.store.UpdateAnswerScore(ctx, sheet.ID, answer.QuestionID, &isCorrect, &score, &maxScore); err != nil {
			return fmt.Errorf("回写题目 %d 得分失败: %w", answer.QuestionID, err)
		}
		gradedCount++
	}

	// 总分以落库得分的重新汇总为准，部分失败后重跑也安全
	total, err := w.store.SumScores(ctx, sheet.ID)
	if err != nil {
		return fmt.Errorf("汇总总分失败: %w", err)
	}
	if err := w.store.SetSheetGraded(ctx, sheet.ID, total); err != nil {
		return fmt.Errorf("更新答题卡状态失败: %w", err)
	}

	result := &CallbackResult{
		TaskID:  msg.TaskID,
		SheetID: sheet.ID,
		Status:  task.StatusCompleted.String(),
		Results: map[string]any{
			"graded_count": gradedCount,
			"total_score":  total,
		},
		ProcessedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := w.notifier.Notify(ctx, w.callbackURL, result); err != nil {
		return fmt.Errorf("判分结果回调失败: %w", err)
	}

	logger.Info("判分任务处理完成",
		zap.String("task_id", msg.TaskID),
		zap.Int64("sheet_id", sheet.ID),
		zap.Int("graded_count", gradedCount),
		zap.Float64("total_score", total))
	return nil
}

// capturedAnswers 取判分输入：载荷携带的作答优先，否则读落库的识别结果
func (w *GradeWorker) capturedAnswers(ctx context.Context, sheetID int64, payload task.GradePayload) ([]task.CapturedAnswer, error) {
	if len(payload.CapturedAnswers) > 0 {
		return payload.CapturedAnswers, nil
	}

	rows, err := w.store.ListAnswers(ctx, sheetID)
	if err != nil {
		return nil, fmt.Errorf("读取作答记录失败: %w", err)
	}
	out := make([]task.CapturedAnswer, 0, len(rows))
	for _, row := range rows {
		if row.ParsedJSON == nil {
			continue
		}
		var value []string
		if err := utils.UnmarshalString(*row.ParsedJSON, &value); err != nil {
			logger.Warn("作答记录解析失败，跳过",
				zap.Int64("sheet_id", sheetID),
				zap.Int64("question_id", row.QuestionID),
				zap.Error(err))
			continue
		}
		out = append(out, task.CapturedAnswer{QuestionID: row.QuestionID, Value: value})
	}
	return out, nil
}

// gradeObjective 客观题判分，返回是否正确与得分比例
func gradeObjective(entry store.KeyEntry, value []string) (bool, float64) {
	switch entry.Type {
	case model.TypeSingle:
		return gradeSingle(entry.Correct, value)
	case model.TypeMultiple:
		return gradeMultiple(entry.Correct, value)
	case model.TypeFill:
		return gradeFill(entry.Correct, value)
	case model.TypeJudge:
		return gradeJudge(entry.Correct, value)
	}
	return false, 0
}

// gradeSingle 单选题：有且仅有一个选项且与答案一致
func gradeSingle(correct, value []string) (bool, float64) {
	if len(correct) != 1 || len(value) != 1 {
		return false, 0
	}
	if value[0] == correct[0] {
		return true, 1.0
	}
	return false, 0
}

// gradeMultiple 多选题：完全一致得满分；无错选时按选对比例给分；
// 有任何错选得零分
func gradeMultiple(correct, value []string) (bool, float64) {
	if len(correct) == 0 {
		return false, 0
	}

	correctSet := make(map[string]bool, len(correct))
	for _, c := range correct {
		correctSet[c] = true
	}

	chosen := 0
	wrong := 0
	seen := make(map[string]bool, len(value))
	for _, v := range value {
		if seen[v] {
			continue
		}
		seen[v] = true
		if correctSet[v] {
			chosen++
		} else {
			wrong++
		}
	}

	if wrong == 0 && chosen == len(correctSet) {
		return true, 1.0
	}
	if wrong == 0 && chosen > 0 {
		return false, float64(chosen) / float64(len(correctSet))
	}
	return false, 0
}

// gradeFill 填空题：忽略大小写与首尾空白的精确匹配。
// 多空时逐空比对，全对才得分
func gradeFill(correct, value []string) (bool, float64) {
	if len(correct) == 0 || len(value) != len(correct) {
		return false, 0
	}
	for i := range correct {
		if !strings.EqualFold(strings.TrimSpace(value[i]), strings.TrimSpace(correct[i])) {
			return false, 0
		}
	}
	return true, 1.0
}

// 判断题作答的真值归一化表
var judgeTruthy = map[string]bool{
	"true": true, "t": true, "yes": true, "y": true,
	"对": true, "正确": true, "√": true, "✓": true, "是": true,
}

var judgeFalsy = map[string]bool{
	"false": true, "f": true, "no": true, "n": true,
	"错": true, "错误": true, "×": true, "✗": true, "否": true,
}

// normalizeJudge 把判断题作答归一化为true/false，无法识别返回空串
func normalizeJudge(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if judgeTruthy[v] {
		return "true"
	}
	if judgeFalsy[v] {
		return "false"
	}
	return ""
}

// gradeJudge 判断题：归一化后精确匹配
func gradeJudge(correct, value []string) (bool, float64) {
	if len(correct) != 1 || len(value) != 1 {
		return false, 0
	}
	want := normalizeJudge(correct[0])
	got := normalizeJudge(value[0])
	if want == "" || got == "" {
		return false, 0
	}
	if want == got {
		return true, 1.0
	}
	return false, 0
}
