package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/SzSimonSun/smart-exam-mvp/internal/knowledge"
	"github.com/SzSimonSun/smart-exam-mvp/internal/logger"
	"github.com/SzSimonSun/smart-exam-mvp/internal/model"
	"github.com/SzSimonSun/smart-exam-mvp/internal/recognition"
	"github.com/SzSimonSun/smart-exam-mvp/internal/segmentation"
	"github.com/SzSimonSun/smart-exam-mvp/internal/storage"
	"github.com/SzSimonSun/smart-exam-mvp/internal/store"
	"github.com/SzSimonSun/smart-exam-mvp/internal/task"
	"github.com/SzSimonSun/smart-exam-mvp/internal/utils"
)

// IngestWorker 试卷拆题处理器。
// 流水线：取文档 → 版式分析 → 题块切片 → 逐片OCR → 拆题分类 →
// 知识点建议 → 候选落库（pending） → 会话置为待审核。
// 会话状态翻转是提交点，重跑任务不会产生重复候选
type IngestWorker struct {
	store       store.IngestStore
	artifacts   storage.ArtifactStore
	ocr         recognition.OCR
	engine      *segmentation.Engine
	notifier    Notifier
	callbackURL string
}

// NewIngestWorker 创建拆题处理器
func NewIngestWorker(s store.IngestStore, artifacts storage.ArtifactStore, ocr recognition.OCR, engine *segmentation.Engine, notifier Notifier, callbackURL string) *IngestWorker {
	return &IngestWorker{
		store:       s,
		artifacts:   artifacts,
		ocr:         ocr,
		engine:      engine,
		notifier:    notifier,
		callbackURL: callbackURL,
	}
}

// Handle 处理拆题任务
func (w *IngestWorker) Handle(ctx context.Context, msg *task.Message) error {
	payload, err := task.IngestPayloadOf(msg)
	if err != nil {
		return fmt.Errorf("拆题任务载荷非法: %w", err)
	}

	logger.Info("开始处理拆题任务",
		zap.String("task_id", msg.TaskID),
		zap.Int64("session_id", payload.SessionID))

	if err := w.process(ctx, msg, payload); err != nil {
		if serr := w.store.SetSessionStatus(ctx, payload.SessionID, model.SessionStatusError, err.Error()); serr != nil {
			logger.Error("记录会话错误状态失败", zap.Int64("session_id", payload.SessionID), zap.Error(serr))
		}
		return err
	}
	return nil
}

func (w *IngestWorker) process(ctx context.Context, msg *task.Message, payload task.IngestPayload) error {
	session, err := w.store.GetSession(ctx, payload.SessionID)
	if err != nil {
		return err
	}
	if err := w.store.SetSessionStatus(ctx, session.ID, model.SessionStatusParsing, ""); err != nil {
		return fmt.Errorf("更新会话状态失败: %w", err)
	}

	uri := payload.ArtifactURI
	if uri == "" {
		uri = session.FileURI
	}
	doc, err := w.artifacts.Fetch(ctx, uri)
	if err != nil {
		return fmt.Errorf("拉取源文档失败: %w", err)
	}
	if len(doc) == 0 {
		return fmt.Errorf("源文档内容为空")
	}

	candidates, err := w.segment(ctx, doc)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return fmt.Errorf("文档中未拆出任何题目")
	}

	items, err := w.buildItems(session.ID, candidates)
	if err != nil {
		return err
	}
	if err := w.store.ReplacePendingItems(ctx, session.ID, items); err != nil {
		return fmt.Errorf("候选落库失败: %w", err)
	}

	// 提交点：状态翻转后候选才对审核流程可见
	if err := w.store.SetSessionStatus(ctx, session.ID, model.SessionStatusAwaitingReview, ""); err != nil {
		return fmt.Errorf("更新会话状态失败: %w", err)
	}

	result := &CallbackResult{
		TaskID:    msg.TaskID,
		SessionID: session.ID,
		Status:    task.StatusCompleted.String(),
		Results: map[string]any{
			"item_count": len(items),
		},
		ProcessedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := w.notifier.Notify(ctx, w.callbackURL, result); err != nil {
		return fmt.Errorf("拆题结果回调失败: %w", err)
	}

	logger.Info("拆题任务处理完成",
		zap.String("task_id", msg.TaskID),
		zap.Int64("session_id", session.ID),
		zap.Int("item_count", len(items)))
	return nil
}

// segment 拆分文档：纯文本整体拆分一次，
// 图像文档先版式分析切片，逐片OCR后在切片范围内拆分
func (w *IngestWorker) segment(ctx context.Context, doc []byte) ([]segmentation.Candidate, error) {
	if recognition.IsPlainText(doc) {
		return w.engine.Segment(ctx, string(doc)), nil
	}

	layout, err := recognition.AnalyzePage(doc)
	if err != nil {
		return nil, fmt.Errorf("版式分析失败: %w", err)
	}
	slices, err := recognition.ContentSlices(doc, layout)
	if err != nil {
		return nil, fmt.Errorf("题块切片失败: %w", err)
	}

	var all []segmentation.Candidate
	for i, slice := range slices {
		text, conf, err := w.ocr.ReadText(ctx, slice)
		if err != nil {
			return nil, fmt.Errorf("切片 %d 文字识别失败: %w", i+1, err)
		}
		if text == "" {
			continue
		}
		for _, c := range w.engine.Segment(ctx, text) {
			// OCR置信度低的切片整体拉低候选置信度
			if conf < 0.8 {
				c.Confidence = clamp(c.Confidence * conf)
			}
			c.Seq = len(all) + 1
			all = append(all, c)
		}
	}
	return all, nil
}

func clamp(v float64) float64 {
	if v < 0.1 {
		return 0.1
	}
	if v > 1.0 {
		return 1.0
	}
	return v
}

// buildItems 把候选题目组装为待审核的拆题项
func (w *IngestWorker) buildItems(sessionID int64, candidates []segmentation.Candidate) ([]model.IngestItem, error) {
	items := make([]model.IngestItem, 0, len(candidates))
	for _, c := range candidates {
		kps := knowledge.Suggest(c.Text, c.Type)

		ocrJSON, err := utils.MarshalString(map[string]any{
			"text":       c.Text,
			"type":       c.Type,
			"confidence": c.Confidence,
		})
		if err != nil {
			return nil, err
		}
		kpsJSON, err := utils.MarshalString(kps)
		if err != nil {
			return nil, err
		}

		items = append(items, model.IngestItem{
			SessionID:        sessionID,
			Seq:              int32(c.Seq),
			OCRJSON:          &ocrJSON,
			CandidateType:    c.Type,
			CandidateKPsJSON: &kpsJSON,
			Confidence:       c.Confidence,
			ReviewStatus:     model.ReviewStatusPending,
		})
	}
	return items, nil
}
