package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/SzSimonSun/smart-exam-mvp/internal/logger"
	"github.com/SzSimonSun/smart-exam-mvp/internal/model"
	"github.com/SzSimonSun/smart-exam-mvp/internal/recognition"
	"github.com/SzSimonSun/smart-exam-mvp/internal/storage"
	"github.com/SzSimonSun/smart-exam-mvp/internal/store"
	"github.com/SzSimonSun/smart-exam-mvp/internal/task"
	"github.com/SzSimonSun/smart-exam-mvp/internal/utils"
)

// RecognizeWorker 答题卡识别处理器。
// 流水线：取制品 → 版面检测 → 几何校正 → 标记识别 → 文字识别 → 落库 → 回调，
// 任一阶段失败即本次任务失败，由任务级重试机制重跑整条流水线
type RecognizeWorker struct {
	store       store.RecognitionStore
	artifacts   storage.ArtifactStore
	backend     recognition.Backend
	notifier    Notifier
	callbackURL string
}

// NewRecognizeWorker 创建识别处理器
func NewRecognizeWorker(s store.RecognitionStore, artifacts storage.ArtifactStore, backend recognition.Backend, notifier Notifier, callbackURL string) *RecognizeWorker {
	return &RecognizeWorker{
		store:       s,
		artifacts:   artifacts,
		backend:     backend,
		notifier:    notifier,
		callbackURL: callbackURL,
	}
}

// Handle 处理识别任务
func (w *RecognizeWorker) Handle(ctx context.Context, msg *task.Message) error {
	payload, err := task.RecognizePayloadOf(msg)
	if err != nil {
		return fmt.Errorf("识别任务载荷非法: %w", err)
	}

	logger.Info("开始处理识别任务",
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

func (w *RecognizeWorker) process(ctx context.Context, msg *task.Message, payload task.RecognizePayload) error {
	sheet, err := w.store.GetSheet(ctx, payload.SheetID)
	if err != nil {
		return err
	}
	if err := w.store.SetSheetStatus(ctx, sheet.ID, model.SheetStatusProcessing, ""); err != nil {
		return fmt.Errorf("更新答题卡状态失败: %w", err)
	}

	artifact, err := w.artifacts.Fetch(ctx, payload.ArtifactURI)
	if err != nil {
		return fmt.Errorf("拉取答题卡制品失败: %w", err)
	}

	layout, err := w.backend.DetectLayout(ctx, artifact)
	if err != nil {
		return fmt.Errorf("版面检测失败: %w", err)
	}

	rectified, err := w.backend.Rectify(ctx, artifact, layout)
	if err != nil {
		return fmt.Errorf("几何校正失败: %w", err)
	}

	marks, err := w.backend.ExtractMarks(ctx, rectified)
	if err != nil {
		return fmt.Errorf("标记识别失败: %w", err)
	}

	texts, err := w.backend.ExtractText(ctx, rectified)
	if err != nil {
		return fmt.Errorf("文字识别失败: %w", err)
	}

	key, err := w.store.GetAnswerKey(ctx, payload.PaperID)
	if err != nil {
		return fmt.Errorf("加载试卷题目失败: %w", err)
	}
	issues := crossCheckMarks(marks, key)

	if err := w.persist(ctx, sheet.ID, marks, texts, issues); err != nil {
		return fmt.Errorf("识别结果落库失败: %w", err)
	}

	if err := w.store.SetSheetStatus(ctx, sheet.ID, model.SheetStatusProcessed, ""); err != nil {
		return fmt.Errorf("更新答题卡状态失败: %w", err)
	}

	result := &CallbackResult{
		TaskID:  msg.TaskID,
		SheetID: sheet.ID,
		Status:  task.StatusCompleted.String(),
		Results: map[string]any{
			"layout":         layout,
			"omr_results":    marks,
			"ocr_results":    texts,
			"quality_issues": issues,
		},
		ProcessedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := w.notifier.Notify(ctx, w.callbackURL, result); err != nil {
		return fmt.Errorf("识别结果回调失败: %w", err)
	}

	logger.Info("识别任务处理完成",
		zap.String("task_id", msg.TaskID),
		zap.Int64("sheet_id", sheet.ID),
		zap.Int("mark_count", len(marks.Answers)),
		zap.Int("issue_count", len(issues)))
	return nil
}

// crossCheckMarks 对照题型交叉校验标记结果：
// 单选与判断题出现多个标记记为MULTI_MARK质量问题，不做静默消解
func crossCheckMarks(marks *recognition.MarkResult, key map[int64]store.KeyEntry) []recognition.QualityIssue {
	var issues []recognition.QualityIssue
	for _, a := range marks.Answers {
		if len(a.Marked) <= 1 {
			continue
		}
		entry, known := key[a.QuestionID]
		if known && entry.Type == model.TypeMultiple {
			continue
		}
		issues = append(issues, recognition.QualityIssue{
			QuestionID: a.QuestionID,
			Issue:      recognition.IssueMultiMark,
			Severity:   "medium",
		})
	}
	return issues
}

// persist 写入识别结果，同一(sheet, question)重复执行覆盖而非追加
func (w *RecognizeWorker) persist(ctx context.Context, sheetID int64, marks *recognition.MarkResult, texts *recognition.TextResult, issues []recognition.QualityIssue) error {
	flagged := make(map[int64]bool, len(issues))
	for _, issue := range issues {
		flagged[issue.QuestionID] = true
	}

	for _, a := range marks.Answers {
		rawOMR, err := utils.MarshalString(a)
		if err != nil {
			return err
		}
		parsed, err := utils.MarshalString(a.Marked)
		if err != nil {
			return err
		}
		row := &model.Answer{
			SheetID:     sheetID,
			QuestionID:  a.QuestionID,
			RawOMR:      &rawOMR,
			ParsedJSON:  &parsed,
			IsObjective: true,
			ErrorFlag:   flagged[a.QuestionID],
		}
		if err := w.store.UpsertAnswer(ctx, row); err != nil {
			return err
		}
	}

	for _, t := range texts.Answers {
		rawOCR, err := utils.MarshalString(t)
		if err != nil {
			return err
		}
		parsed, err := utils.MarshalString([]string{t.Text})
		if err != nil {
			return err
		}
		row := &model.Answer{
			SheetID:     sheetID,
			QuestionID:  t.QuestionID,
			RawOCR:      &rawOCR,
			ParsedJSON:  &parsed,
			IsObjective: false,
		}
		if err := w.store.UpsertAnswer(ctx, row); err != nil {
			return err
		}
	}
	return nil
}
