package progress

import "time"

// Question, standard and analysis statuses form the three-level progress
// tree persisted per document.
const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// QuestionProgress tracks one checklist question.
type QuestionProgress struct {
	QuestionID   string     `json:"question_id"`
	Section      string     `json:"section"`
	QuestionText string     `json:"question_text"`
	Status       string     `json:"status"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// StandardProgress tracks one standard within an analysis run.
type StandardProgress struct {
	StandardID         string                       `json:"standard_id"`
	TotalQuestions     int                          `json:"total_questions"`
	CompletedQuestions int                          `json:"completed_questions"`
	CurrentQuestion    string                       `json:"current_question,omitempty"`
	Status             string                       `json:"status"`
	StartTime          *time.Time                   `json:"start_time,omitempty"`
	EndTime            *time.Time                   `json:"end_time,omitempty"`
	Questions          map[string]*QuestionProgress `json:"questions"`
}

// AnalysisProgress is the root of the per-document progress tree.
type AnalysisProgress struct {
	DocumentID         string                       `json:"document_id"`
	Framework          string                       `json:"framework"`
	TotalStandards     int                          `json:"total_standards"`
	CompletedStandards int                          `json:"completed_standards"`
	CurrentStandard    string                       `json:"current_standard,omitempty"`
	Standards          map[string]*StandardProgress `json:"standards"`
	OverallStartTime   *time.Time                   `json:"overall_start_time,omitempty"`
	OverallEndTime     *time.Time                   `json:"overall_end_time,omitempty"`
	Status             string                       `json:"status"`
	ProcessingMode     string                       `json:"processing_mode,omitempty"`
}
