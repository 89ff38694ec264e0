package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/SzSimonSun/smart-exam-mvp/internal/model"
)

// MemoryStore 内存存储实现，用于测试
type MemoryStore struct {
	mu       sync.Mutex
	sheets   map[int64]*model.AnswerSheet
	sessions map[int64]*model.IngestSession
	answers  map[int64]map[int64]*model.Answer // sheet_id → question_id → answer
	items    map[int64][]model.IngestItem      // session_id → items
	keys     map[int64]map[int64]KeyEntry      // paper_id → question_id → key
	nextID   int64
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sheets:   make(map[int64]*model.AnswerSheet),
		sessions: make(map[int64]*model.IngestSession),
		answers:  make(map[int64]map[int64]*model.Answer),
		items:    make(map[int64][]model.IngestItem),
		keys:     make(map[int64]map[int64]KeyEntry),
		nextID:   1,
	}
}

// AddSheet 预置答题卡，测试准备数据用
func (s *MemoryStore) AddSheet(sheet *model.AnswerSheet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sheets[sheet.ID] = sheet
}

// AddSession 预置拆题会话
func (s *MemoryStore) AddSession(session *model.IngestSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
}

// AddAnswerKey 预置试卷标准答案
func (s *MemoryStore) AddAnswerKey(paperID int64, entries ...KeyEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.keys[paperID]
	if key == nil {
		key = make(map[int64]KeyEntry)
		s.keys[paperID] = key
	}
	for _, e := range entries {
		key[e.QuestionID] = e
	}
}

// GetSheet 查询答题卡
func (s *MemoryStore) GetSheet(_ context.Context, sheetID int64) (*model.AnswerSheet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sheet, ok := s.sheets[sheetID]
	if !ok {
		return nil, fmt.Errorf("%w: answer_sheet %d", ErrNotFound, sheetID)
	}
	copied := *sheet
	return &copied, nil
}

// SetSheetStatus 更新答题卡状态
func (s *MemoryStore) SetSheetStatus(_ context.Context, sheetID int64, status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sheet, ok := s.sheets[sheetID]
	if !ok {
		return fmt.Errorf("%w: answer_sheet %d", ErrNotFound, sheetID)
	}
	sheet.Status = status
	if errMsg != "" {
		msg := errMsg
		sheet.ErrorMessage = &msg
	}
	return nil
}

// UpsertAnswer 写入识别结果，同一(sheet, question)覆盖旧行
func (s *MemoryStore) UpsertAnswer(_ context.Context, answer *model.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byQuestion := s.answers[answer.SheetID]
	if byQuestion == nil {
		byQuestion = make(map[int64]*model.Answer)
		s.answers[answer.SheetID] = byQuestion
	}
	copied := *answer
	if prior, ok := byQuestion[answer.QuestionID]; ok {
		copied.ID = prior.ID
		copied.IsCorrect = prior.IsCorrect
		copied.Score = prior.Score
		copied.MaxScore = prior.MaxScore
	} else {
		copied.ID = s.nextID
		s.nextID++
	}
	byQuestion[answer.QuestionID] = &copied
	return nil
}

// GetAnswerKey 加载试卷的标准答案
func (s *MemoryStore) GetAnswerKey(_ context.Context, paperID int64) (map[int64]KeyEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := make(map[int64]KeyEntry, len(s.keys[paperID]))
	for id, e := range s.keys[paperID] {
		key[id] = e
	}
	return key, nil
}

// ListAnswers 列出答题卡的全部作答记录
func (s *MemoryStore) ListAnswers(_ context.Context, sheetID int64) ([]model.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Answer, 0, len(s.answers[sheetID]))
	for _, a := range s.answers[sheetID] {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out, nil
}

// UpdateAnswerScore 回写单题判分结果
func (s *MemoryStore) UpdateAnswerScore(_ context.Context, sheetID, questionID int64, isCorrect *bool, score, maxScore *float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.answers[sheetID][questionID]
	if !ok {
		return fmt.Errorf("%w: answer (%d, %d)", ErrNotFound, sheetID, questionID)
	}
	a.IsCorrect = isCorrect
	a.Score = score
	a.MaxScore = maxScore
	return nil
}

// SumScores 汇总答题卡已落库的得分
func (s *MemoryStore) SumScores(_ context.Context, sheetID int64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0.0
	for _, a := range s.answers[sheetID] {
		if a.Score != nil {
			total += *a.Score
		}
	}
	return total, nil
}

// SetSheetGraded 答题卡置为已判分并记录总分
func (s *MemoryStore) SetSheetGraded(_ context.Context, sheetID int64, total float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sheet, ok := s.sheets[sheetID]
	if !ok {
		return fmt.Errorf("%w: answer_sheet %d", ErrNotFound, sheetID)
	}
	sheet.Status = model.SheetStatusGraded
	t := total
	sheet.TotalScore = &t
	return nil
}

// GetSession 查询拆题会话
func (s *MemoryStore) GetSession(_ context.Context, sessionID int64) (*model.IngestSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: ingest_session %d", ErrNotFound, sessionID)
	}
	copied := *session
	return &copied, nil
}

// SetSessionStatus 更新会话状态
func (s *MemoryStore) SetSessionStatus(_ context.Context, sessionID int64, status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: ingest_session %d", ErrNotFound, sessionID)
	}
	session.Status = status
	if errMsg != "" {
		msg := errMsg
		session.ErrorMessage = &msg
	}
	return nil
}

// ReplacePendingItems 删除会话下旧的pending候选后写入新候选
func (s *MemoryStore) ReplacePendingItems(_ context.Context, sessionID int64, items []model.IngestItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := make([]model.IngestItem, 0)
	for _, item := range s.items[sessionID] {
		if item.ReviewStatus != model.ReviewStatusPending {
			kept = append(kept, item)
		}
	}
	for _, item := range items {
		item.ID = s.nextID
		s.nextID++
		kept = append(kept, item)
	}
	s.items[sessionID] = kept
	return nil
}

// Items 返回会话下的全部候选，测试断言用
func (s *MemoryStore) Items(sessionID int64) []model.IngestItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.IngestItem, len(s.items[sessionID]))
	copy(out, s.items[sessionID])
	return out
}

// Answers 返回答题卡下的全部作答记录，测试断言用
func (s *MemoryStore) Answers(sheetID int64) []model.Answer {
	out, _ := s.ListAnswers(context.Background(), sheetID)
	return out
}

var (
	_ RecognitionStore = (*MemoryStore)(nil)
	_ GradeStore       = (*MemoryStore)(nil)
	_ IngestStore      = (*MemoryStore)(nil)
)
