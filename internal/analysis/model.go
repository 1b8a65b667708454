package analysis

import "time"

// Run statuses. PROCESSING is the only non-terminal state; a run never
// reopens once terminal.
const (
	StatusProcessing          = "PROCESSING"
	StatusCompleted           = "COMPLETED"
	StatusCompletedWithErrors = "COMPLETED_WITH_ERRORS"
	StatusFailed              = "FAILED"
)

// Verdict statuses for a single question.
const (
	VerdictYes = "YES"
	VerdictNo  = "NO"
	VerdictNA  = "N/A"
)

// QuestionResult is the verdict for one checklist question. Exactly one is
// produced per question per run.
type QuestionResult struct {
	ID              string   `json:"id"`
	Question        string   `json:"question"`
	Reference       string   `json:"reference,omitempty"`
	Status          string   `json:"status"`
	Confidence      float64  `json:"confidence"`
	Explanation     string   `json:"explanation"`
	Evidence        []string `json:"evidence"`
	Suggestion      string   `json:"suggestion,omitempty"`
	SourcePages     []int    `json:"source_pages,omitempty"`
	ContentAnalysis string   `json:"content_analysis,omitempty"`
}

// SectionResult groups question results under a checklist section, tagged
// with the standard that produced them.
type SectionResult struct {
	Standard         string           `json:"standard"`
	Section          string           `json:"section"`
	Title            string           `json:"title,omitempty"`
	Items            []QuestionResult `json:"items"`
	ProcessingMode   string           `json:"processing_mode,omitempty"`
	ProcessingTimeMs int64            `json:"processing_time_ms,omitempty"`
}

// StandardError records a standard that could not be processed.
type StandardError struct {
	Standard string `json:"standard"`
	Error    string `json:"error"`
}

// Performance summarizes per-run throughput.
type Performance struct {
	ProcessingTimeSeconds float64 `json:"processing_time_seconds"`
	QuestionsProcessed    int     `json:"questions_processed"`
	QuestionsFailed       int     `json:"questions_failed"`
}

// ModeMetrics describes how one processing mode performed during a
// comparison run.
type ModeMetrics struct {
	Mode                  string  `json:"mode"`
	ProcessingTimeSeconds float64 `json:"processing_time_seconds"`
	Success               bool    `json:"success"`
	SectionsAnalyzed      int     `json:"sections_analyzed"`
	Error                 string  `json:"error,omitempty"`
}

// ComparisonReport is attached to a run executed in comparison mode.
type ComparisonReport struct {
	ModesCompared            []string    `json:"modes_compared"`
	SmartMode                ModeMetrics `json:"smart_mode"`
	ZapMode                  ModeMetrics `json:"zap_mode"`
	SpeedImprovement         string      `json:"speed_improvement"`
	Recommendation           string      `json:"recommendation"`
	RecommendationReason     string      `json:"recommendation_reason"`
	TotalAnalysisTimeSeconds float64     `json:"total_analysis_time_seconds"`
}

// AnalysisRun is the unit of work for one document. Sections and
// FailedStandards only ever grow over the lifetime of the run.
type AnalysisRun struct {
	DocumentID      string            `json:"document_id"`
	Framework       string            `json:"framework"`
	Standards       []string          `json:"standards"`
	Mode            string            `json:"processing_mode"`
	Status          string            `json:"status"`
	Message         string            `json:"message,omitempty"`
	Sections        []SectionResult   `json:"sections"`
	FailedStandards []StandardError   `json:"failed_standards,omitempty"`
	Performance     *Performance      `json:"performance,omitempty"`
	Comparison      *ComparisonReport `json:"comparison_results,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}
