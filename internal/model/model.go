package model

import (
	"time"
)

// 题目类型
const (
	TypeSingle     = "single"     // 单选题
	TypeMultiple   = "multiple"   // 多选题
	TypeFill       = "fill"       // 填空题
	TypeJudge      = "judge"      // 判断题
	TypeSubjective = "subjective" // 主观题
)

// IsObjective 判断题型是否为客观题（可自动判分）
func IsObjective(questionType string) bool {
	switch questionType {
	case TypeSingle, TypeMultiple, TypeFill, TypeJudge:
		return true
	}
	return false
}

// 答题卡状态
const (
	SheetStatusUploaded   = "uploaded"
	SheetStatusProcessing = "processing"
	SheetStatusProcessed  = "processed"
	SheetStatusGraded     = "graded"
	SheetStatusError      = "error"
)

// 拆题会话状态
const (
	SessionStatusUploaded       = "uploaded"
	SessionStatusParsing        = "parsing"
	SessionStatusAwaitingReview = "awaiting_review"
	SessionStatusError          = "error"
)

// 拆题项审核状态
const (
	ReviewStatusPending  = "pending"
	ReviewStatusApproved = "approved"
	ReviewStatusRejected = "rejected"
	ReviewStatusEdited   = "edited"
)

const TableNameQuestion = "questions"

// Question 题库题目表
type Question struct {
	ID         int64      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Stem       string     `gorm:"column:stem;type:text;not null" json:"stem"`
	Type       string     `gorm:"column:type;type:varchar(20);not null" json:"type"`
	Difficulty int32      `gorm:"column:difficulty;default:2" json:"difficulty"`
	OptionsJSON *string   `gorm:"column:options_json;type:json" json:"options_json"`
	AnswerJSON *string    `gorm:"column:answer_json;type:json" json:"answer_json"`
	Analysis   *string    `gorm:"column:analysis;type:text" json:"analysis"`
	Status     string     `gorm:"column:status;type:varchar(20);default:draft" json:"status"`
	CreatedBy  *int64     `gorm:"column:created_by" json:"created_by"`
	CreatedAt  *time.Time `gorm:"column:created_at" json:"created_at"`
}

func (*Question) TableName() string {
	return TableNameQuestion
}

const TableNamePaperQuestion = "paper_questions"

// PaperQuestion 试卷题目关联表（含排序与分值）
type PaperQuestion struct {
	PaperID    int64   `gorm:"column:paper_id;primaryKey" json:"paper_id"`
	QuestionID int64   `gorm:"column:question_id;primaryKey" json:"question_id"`
	Seq        int32   `gorm:"column:seq;not null" json:"seq"`
	Score      float64 `gorm:"column:score;type:decimal(6,2);not null;default:0" json:"score"`
	Section    *string `gorm:"column:section;type:varchar(80)" json:"section"`
}

func (*PaperQuestion) TableName() string {
	return TableNamePaperQuestion
}

const TableNameAnswerSheet = "answer_sheets"

// AnswerSheet 答题卡表
type AnswerSheet struct {
	ID           int64      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	PaperID      int64      `gorm:"column:paper_id;not null;index:idx_sheet_paper_id" json:"paper_id"`
	StudentID    int64      `gorm:"column:student_id" json:"student_id"`
	ClassID      int64      `gorm:"column:class_id" json:"class_id"`
	UploadURI    *string    `gorm:"column:upload_uri;type:text" json:"upload_uri"`
	Status       string     `gorm:"column:status;type:varchar(20);default:uploaded" json:"status"`
	TotalScore   *float64   `gorm:"column:total_score;type:decimal(8,2)" json:"total_score"`
	ErrorMessage *string    `gorm:"column:error_message;type:text" json:"error_message"`
	CreatedAt    *time.Time `gorm:"column:created_at" json:"created_at"`
}

func (*AnswerSheet) TableName() string {
	return TableNameAnswerSheet
}

const TableNameAnswer = "answers"

// Answer 作答记录表，(sheet_id, question_id) 唯一
type Answer struct {
	ID          int64    `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	SheetID     int64    `gorm:"column:sheet_id;not null;uniqueIndex:uk_answer_sheet_question" json:"sheet_id"`
	QuestionID  int64    `gorm:"column:question_id;not null;uniqueIndex:uk_answer_sheet_question" json:"question_id"`
	RawOMR      *string  `gorm:"column:raw_omr;type:json" json:"raw_omr"`
	RawOCR      *string  `gorm:"column:raw_ocr;type:json" json:"raw_ocr"`
	ParsedJSON  *string  `gorm:"column:parsed_json;type:json" json:"parsed_json"`
	IsObjective bool     `gorm:"column:is_objective;default:true" json:"is_objective"`
	IsCorrect   *bool    `gorm:"column:is_correct" json:"is_correct"`
	Score       *float64 `gorm:"column:score;type:decimal(6,2)" json:"score"`
	MaxScore    *float64 `gorm:"column:max_score;type:decimal(6,2)" json:"max_score"`
	ErrorFlag   bool     `gorm:"column:error_flag;default:false" json:"error_flag"`
}

func (*Answer) TableName() string {
	return TableNameAnswer
}

const TableNameIngestSession = "ingest_sessions"

// IngestSession 拆题入库会话表
type IngestSession struct {
	ID           int64      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UploaderID   int64      `gorm:"column:uploader_id" json:"uploader_id"`
	FileURI      string     `gorm:"column:file_uri;type:text;not null" json:"file_uri"`
	Status       string     `gorm:"column:status;type:varchar(30);default:uploaded" json:"status"`
	ErrorMessage *string    `gorm:"column:error_message;type:text" json:"error_message"`
	CreatedAt    *time.Time `gorm:"column:created_at" json:"created_at"`
}

func (*IngestSession) TableName() string {
	return TableNameIngestSession
}

const TableNameIngestItem = "ingest_items"

// IngestItem 拆题候选项表，审核流转由人工接管
type IngestItem struct {
	ID               int64   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	SessionID        int64   `gorm:"column:session_id;not null;index:idx_item_session_id" json:"session_id"`
	Seq              int32   `gorm:"column:seq" json:"seq"`
	CropURI          *string `gorm:"column:crop_uri;type:text" json:"crop_uri"`
	OCRJSON          *string `gorm:"column:ocr_json;type:json" json:"ocr_json"`
	CandidateType    string  `gorm:"column:candidate_type;type:varchar(20)" json:"candidate_type"`
	CandidateKPsJSON *string `gorm:"column:candidate_kps_json;type:json" json:"candidate_kps_json"`
	Confidence       float64 `gorm:"column:confidence;type:decimal(5,2)" json:"confidence"`
	ReviewStatus     string  `gorm:"column:review_status;type:varchar(20);default:pending" json:"review_status"`
}

func (*IngestItem) TableName() string {
	return TableNameIngestItem
}

const TableNameKnowledgePoint = "knowledge_points"

// KnowledgePoint 知识点目录表
type KnowledgePoint struct {
	ID      int64   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Subject string  `gorm:"column:subject;type:varchar(80);not null" json:"subject"`
	Module  *string `gorm:"column:module;type:varchar(120)" json:"module"`
	Point   *string `gorm:"column:point;type:varchar(200)" json:"point"`
	Code    *string `gorm:"column:code;type:varchar(120);uniqueIndex" json:"code"`
	Level   *int32  `gorm:"column:level" json:"level"`
}

func (*KnowledgePoint) TableName() string {
	return TableNameKnowledgePoint
}

const TableNameTaskFailure = "task_failures"

// TaskFailure 死信诊断表，记录重试耗尽的任务现场
type TaskFailure struct {
	ID         int64      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	TaskID     string     `gorm:"column:task_id;type:varchar(64);not null;index:idx_failure_task_id" json:"task_id"`
	TaskType   string     `gorm:"column:task_type;type:varchar(20);not null" json:"task_type"`
	Payload    string     `gorm:"column:payload;type:json" json:"payload"`
	RetryCount int32      `gorm:"column:retry_count" json:"retry_count"`
	LastError  string     `gorm:"column:last_error;type:text" json:"last_error"`
	FailedAt   *time.Time `gorm:"column:failed_at" json:"failed_at"`
}

func (*TaskFailure) TableName() string {
	return TableNameTaskFailure
}

// All 返回流水线使用的全部模型，供AutoMigrate
func All() []any {
	return []any{
		&Question{},
		&PaperQuestion{},
		&AnswerSheet{},
		&Answer{},
		&IngestSession{},
		&IngestItem{},
		&KnowledgePoint{},
		&TaskFailure{},
	}
}
