package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SzSimonSun/smart-exam-mvp/internal/model"
	"github.com/SzSimonSun/smart-exam-mvp/internal/recognition"
	"github.com/SzSimonSun/smart-exam-mvp/internal/storage"
	"github.com/SzSimonSun/smart-exam-mvp/internal/store"
	"github.com/SzSimonSun/smart-exam-mvp/internal/task"
)

const sheetURI = "minio://smart-exam/sheets/1001.png"

func newRecognizeFixture(t *testing.T) (*store.MemoryStore, *storage.MemoryStore, *MemoryNotifier, *RecognizeWorker) {
	t.Helper()
	s := store.NewMemoryStore()
	artifacts := storage.NewMemoryStore("smart-exam")
	require.NoError(t, artifacts.Put(sheetURI, []byte("simulated answer sheet scan")))
	n := &MemoryNotifier{}
	w := NewRecognizeWorker(s, artifacts, recognition.NewSimulatedBackend(), n, "http://callback/recognize")
	return s, artifacts, n, w
}

func TestRecognizePipeline(t *testing.T) {
	s, _, n, w := newRecognizeFixture(t)
	s.AddSheet(&model.AnswerSheet{ID: 1001, PaperID: 1, Status: model.SheetStatusUploaded})

	msg, err := task.NewRecognizeTask(task.RecognizePayload{
		SheetID: 1001, PaperID: 1, ArtifactURI: sheetURI,
	})
	require.NoError(t, err)
	require.NoError(t, w.Handle(context.Background(), msg))

	sheet, err := s.GetSheet(context.Background(), 1001)
	require.NoError(t, err)
	assert.Equal(t, model.SheetStatusProcessed, sheet.Status)

	// 5道客观题 + 1条模拟主观题文字
	answers := s.Answers(1001)
	require.Len(t, answers, 6)
	for _, a := range answers[:5] {
		assert.True(t, a.IsObjective)
		require.NotNil(t, a.RawOMR)
		require.NotNil(t, a.ParsedJSON)
	}
	assert.False(t, answers[5].IsObjective)
	require.NotNil(t, answers[5].RawOCR)

	results := n.Results()
	require.Len(t, results, 1)
	assert.Equal(t, "completed", results[0].Status)
	assert.Equal(t, int64(1001), results[0].SheetID)
}

// 同一制品重复识别：覆盖旧行而非追加
func TestRecognizeIdempotentRerun(t *testing.T) {
	s, _, _, w := newRecognizeFixture(t)
	s.AddSheet(&model.AnswerSheet{ID: 1001, PaperID: 1, Status: model.SheetStatusUploaded})

	msg, err := task.NewRecognizeTask(task.RecognizePayload{
		SheetID: 1001, PaperID: 1, ArtifactURI: sheetURI,
	})
	require.NoError(t, err)
	require.NoError(t, w.Handle(context.Background(), msg))
	first := s.Answers(1001)

	require.NoError(t, w.Handle(context.Background(), msg))
	second := s.Answers(1001)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].QuestionID, second[i].QuestionID)
		assert.Equal(t, *first[i].ParsedJSON, *second[i].ParsedJSON)
	}
}

func TestRecognizeMissingArtifact(t *testing.T) {
	s := store.NewMemoryStore()
	s.AddSheet(&model.AnswerSheet{ID: 7, PaperID: 1, Status: model.SheetStatusUploaded})
	w := NewRecognizeWorker(s, storage.NewMemoryStore("smart-exam"), recognition.NewSimulatedBackend(), &MemoryNotifier{}, "")

	msg, err := task.NewRecognizeTask(task.RecognizePayload{
		SheetID: 7, PaperID: 1, ArtifactURI: "minio://smart-exam/missing.png",
	})
	require.NoError(t, err)
	require.Error(t, w.Handle(context.Background(), msg))

	sheet, err := s.GetSheet(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, model.SheetStatusError, sheet.Status)
	require.NotNil(t, sheet.ErrorMessage)
	assert.NotEmpty(t, *sheet.ErrorMessage)
}

func TestRecognizeCallbackFailureMarksError(t *testing.T) {
	s := store.NewMemoryStore()
	artifacts := storage.NewMemoryStore("smart-exam")
	require.NoError(t, artifacts.Put(sheetURI, []byte("simulated answer sheet scan")))
	s.AddSheet(&model.AnswerSheet{ID: 1001, PaperID: 1, Status: model.SheetStatusUploaded})
	w := NewRecognizeWorker(s, artifacts, recognition.NewSimulatedBackend(), &MemoryNotifier{Err: assert.AnError}, "http://callback/recognize")

	msg, err := task.NewRecognizeTask(task.RecognizePayload{
		SheetID: 1001, PaperID: 1, ArtifactURI: sheetURI,
	})
	require.NoError(t, err)
	require.Error(t, w.Handle(context.Background(), msg))

	sheet, err := s.GetSheet(context.Background(), 1001)
	require.NoError(t, err)
	assert.Equal(t, model.SheetStatusError, sheet.Status)
}

// 单选题出现双标记应记质量问题并打标，多选题不算
func TestCrossCheckMarks(t *testing.T) {
	marks := &recognition.MarkResult{
		Answers: []recognition.MarkedAnswer{
			{QuestionID: 1, Marked: []string{"A", "B"}},
			{QuestionID: 2, Marked: []string{"A", "B"}},
			{QuestionID: 3, Marked: []string{"C"}},
			{QuestionID: 4, Marked: []string{"A", "D"}}, // 不在答案表中
		},
	}
	key := map[int64]store.KeyEntry{
		1: {QuestionID: 1, Type: model.TypeSingle, Objective: true},
		2: {QuestionID: 2, Type: model.TypeMultiple, Objective: true},
		3: {QuestionID: 3, Type: model.TypeJudge, Objective: true},
	}

	issues := crossCheckMarks(marks, key)
	require.Len(t, issues, 2)
	ids := []int64{issues[0].QuestionID, issues[1].QuestionID}
	assert.ElementsMatch(t, []int64{1, 4}, ids)
	for _, issue := range issues {
		assert.Equal(t, recognition.IssueMultiMark, issue.Issue)
	}
}
