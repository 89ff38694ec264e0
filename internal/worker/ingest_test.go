package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SzSimonSun/smart-exam-mvp/internal/knowledge"
	"github.com/SzSimonSun/smart-exam-mvp/internal/model"
	"github.com/SzSimonSun/smart-exam-mvp/internal/recognition"
	"github.com/SzSimonSun/smart-exam-mvp/internal/segmentation"
	"github.com/SzSimonSun/smart-exam-mvp/internal/storage"
	"github.com/SzSimonSun/smart-exam-mvp/internal/store"
	"github.com/SzSimonSun/smart-exam-mvp/internal/task"
	"github.com/SzSimonSun/smart-exam-mvp/internal/utils"
)

const paperURI = "minio://smart-exam/papers/2001.txt"

const paperText = `
数学单元测试

1. 下列哪个函数是奇函数？
   A. f(x) = x² + 1
   B. f(x) = x³ - x
   C. f(x) = |x|
   D. f(x) = x² - 1

2. 若函数 f(x) = ax² + bx + c 在 x = 1 处取最小值 2，且 f(0) = 3，
   则 a = ______，b = ______。

3. 函数 f(x) = x² 在 R 上单调递增。（　　）
`

func newIngestFixture(t *testing.T) (*store.MemoryStore, *MemoryNotifier, *IngestWorker) {
	t.Helper()
	s := store.NewMemoryStore()
	artifacts := storage.NewMemoryStore("smart-exam")
	require.NoError(t, artifacts.Put(paperURI, []byte(paperText)))
	n := &MemoryNotifier{}
	w := NewIngestWorker(s, artifacts, recognition.SimulatedOCR{}, segmentation.NewEngine(), n, "http://callback/ingest")
	return s, n, w
}

func TestIngestPlainTextDocument(t *testing.T) {
	s, n, w := newIngestFixture(t)
	s.AddSession(&model.IngestSession{ID: 2001, FileURI: paperURI, Status: model.SessionStatusUploaded})

	msg, err := task.NewIngestTask(task.IngestPayload{SessionID: 2001})
	require.NoError(t, err)
	require.NoError(t, w.Handle(context.Background(), msg))

	session, err := s.GetSession(context.Background(), 2001)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusAwaitingReview, session.Status)

	items := s.Items(2001)
	require.Len(t, items, 3)
	for i, item := range items {
		assert.Equal(t, int32(i+1), item.Seq)
		assert.Equal(t, model.ReviewStatusPending, item.ReviewStatus)
		assert.Greater(t, item.Confidence, 0.0)
		require.NotNil(t, item.OCRJSON)
		require.NotNil(t, item.CandidateKPsJSON)

		var kps []knowledge.Suggestion
		require.NoError(t, utils.UnmarshalString(*item.CandidateKPsJSON, &kps))
		assert.NotEmpty(t, kps)
	}
	assert.Equal(t, model.TypeSingle, items[0].CandidateType)
	assert.Equal(t, model.TypeFill, items[1].CandidateType)
	assert.Equal(t, model.TypeJudge, items[2].CandidateType)

	results := n.Results()
	require.Len(t, results, 1)
	assert.Equal(t, int64(2001), results[0].SessionID)
}

// 重跑不产生重复候选：pending批次整体替换
func TestIngestRerunReplacesPending(t *testing.T) {
	s, _, w := newIngestFixture(t)
	s.AddSession(&model.IngestSession{ID: 2001, FileURI: paperURI, Status: model.SessionStatusUploaded})

	msg, err := task.NewIngestTask(task.IngestPayload{SessionID: 2001})
	require.NoError(t, err)
	require.NoError(t, w.Handle(context.Background(), msg))
	first := len(s.Items(2001))

	require.NoError(t, w.Handle(context.Background(), msg))
	assert.Equal(t, first, len(s.Items(2001)))
}

// 载荷里的URI优先于会话记录的URI
func TestIngestPayloadURIOverridesSession(t *testing.T) {
	s, _, w := newIngestFixture(t)
	s.AddSession(&model.IngestSession{ID: 2002, FileURI: "minio://smart-exam/papers/stale.txt", Status: model.SessionStatusUploaded})

	msg, err := task.NewIngestTask(task.IngestPayload{SessionID: 2002, ArtifactURI: paperURI})
	require.NoError(t, err)
	require.NoError(t, w.Handle(context.Background(), msg))

	session, err := s.GetSession(context.Background(), 2002)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusAwaitingReview, session.Status)
	assert.NotEmpty(t, s.Items(2002))
}

func TestIngestMissingDocumentMarksError(t *testing.T) {
	s := store.NewMemoryStore()
	s.AddSession(&model.IngestSession{ID: 9, FileURI: "minio://smart-exam/papers/none.txt", Status: model.SessionStatusUploaded})
	w := NewIngestWorker(s, storage.NewMemoryStore("smart-exam"), recognition.SimulatedOCR{}, segmentation.NewEngine(), &MemoryNotifier{}, "")

	msg, err := task.NewIngestTask(task.IngestPayload{SessionID: 9})
	require.NoError(t, err)
	require.Error(t, w.Handle(context.Background(), msg))

	session, err := s.GetSession(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusError, session.Status)
	require.NotNil(t, session.ErrorMessage)
}

// 二进制文档走版式分析 + 切片OCR路径
func TestIngestBinaryDocument(t *testing.T) {
	s := store.NewMemoryStore()
	artifacts := storage.NewMemoryStore("smart-exam")
	binURI := "minio://smart-exam/papers/scan.png"
	doc := make([]byte, 4096)
	for i := range doc {
		doc[i] = byte(i % 251)
	}
	require.NoError(t, artifacts.Put(binURI, doc))
	s.AddSession(&model.IngestSession{ID: 2003, FileURI: binURI, Status: model.SessionStatusUploaded})
	w := NewIngestWorker(s, artifacts, recognition.SimulatedOCR{}, segmentation.NewEngine(), &MemoryNotifier{}, "")

	msg, err := task.NewIngestTask(task.IngestPayload{SessionID: 2003})
	require.NoError(t, err)
	require.NoError(t, w.Handle(context.Background(), msg))

	session, err := s.GetSession(context.Background(), 2003)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusAwaitingReview, session.Status)
	assert.NotEmpty(t, s.Items(2003))
}
