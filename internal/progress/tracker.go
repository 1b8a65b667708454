package progress

import (
	"sync"
	"time"

	"compliance-backend/internal/shared/telemetry"
)

// QuestionSeed describes a question before processing starts.
type QuestionSeed struct {
	ID       string
	Section  string
	Question string
}

// Tracker maintains the live progress tree for every running analysis and
// persists a snapshot after each mutation. Persistence failures are logged
// and swallowed so progress reporting never takes down an analysis.
type Tracker struct {
	mu     sync.RWMutex
	active map[string]*AnalysisProgress
	store  Store
	now    func() time.Time
}

func NewTracker(store Store) *Tracker {
	return &Tracker{
		active: make(map[string]*AnalysisProgress),
		store:  store,
		now:    time.Now,
	}
}

// StartAnalysis creates the root of a document's progress tree.
func (t *Tracker) StartAnalysis(documentID, framework string, standards []string, mode string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	start := t.now()
	snapshot := &AnalysisProgress{
		DocumentID:     documentID,
		Framework:      framework,
		TotalStandards: len(standards),
		Standards:      make(map[string]*StandardProgress, len(standards)),
		Status:         StatusProcessing,
		ProcessingMode: mode,
	}
	snapshot.OverallStartTime = &start
	for _, id := range standards {
		snapshot.Standards[id] = &StandardProgress{
			StandardID: id,
			Status:     StatusPending,
			Questions:  make(map[string]*QuestionProgress),
		}
	}
	t.active[documentID] = snapshot
	t.persistLocked(documentID)
}

// StartStandard marks a standard as in progress.
func (t *Tracker) StartStandard(documentID, standardID string, totalQuestions int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	snapshot, std := t.standardLocked(documentID, standardID)
	if std == nil {
		return
	}
	start := t.now()
	std.Status = StatusProcessing
	std.TotalQuestions = totalQuestions
	std.StartTime = &start
	snapshot.CurrentStandard = standardID
	t.persistLocked(documentID)
}

// InitializeQuestions registers the question set of a standard as pending.
func (t *Tracker) InitializeQuestions(documentID, standardID string, questions []QuestionSeed) {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, std := t.standardLocked(documentID, standardID)
	if std == nil {
		return
	}
	for _, q := range questions {
		std.Questions[q.ID] = &QuestionProgress{
			QuestionID:   q.ID,
			Section:      q.Section,
			QuestionText: q.Question,
			Status:       StatusPending,
		}
	}
	std.TotalQuestions = len(std.Questions)
	t.persistLocked(documentID)
}

// MarkQuestionProcessing flags the question currently being answered.
func (t *Tracker) MarkQuestionProcessing(documentID, standardID, questionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, std := t.standardLocked(documentID, standardID)
	if std == nil {
		return
	}
	if q, ok := std.Questions[questionID]; ok {
		q.Status = StatusProcessing
		std.CurrentQuestion = questionID
	}
	t.persistLocked(documentID)
}

// MarkQuestionCompleted records a finished question. The completed count is
// recomputed from the question map so repeated calls for the same question
// stay idempotent under concurrent workers.
func (t *Tracker) MarkQuestionCompleted(documentID, standardID, questionID string) {
	t.markQuestionDone(documentID, standardID, questionID, StatusCompleted)
}

// MarkQuestionFailed records a question that exhausted its retries.
func (t *Tracker) MarkQuestionFailed(documentID, standardID, questionID string) {
	t.markQuestionDone(documentID, standardID, questionID, StatusFailed)
}

func (t *Tracker) markQuestionDone(documentID, standardID, questionID, status string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, std := t.standardLocked(documentID, standardID)
	if std == nil {
		return
	}
	if q, ok := std.Questions[questionID]; ok {
		q.Status = status
		done := t.now()
		q.CompletedAt = &done
	}
	completed := 0
	for _, q := range std.Questions {
		if q.Status == StatusCompleted || q.Status == StatusFailed {
			completed++
		}
	}
	std.CompletedQuestions = completed
	if std.CurrentQuestion == questionID {
		std.CurrentQuestion = ""
	}
	t.persistLocked(documentID)
}

// CompleteStandard finalizes a standard and, when it is the last one,
// finalizes the whole analysis.
func (t *Tracker) CompleteStandard(documentID, standardID string, failed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	snapshot, std := t.standardLocked(documentID, standardID)
	if std == nil {
		return
	}
	end := t.now()
	std.EndTime = &end
	if failed {
		std.Status = StatusFailed
	} else {
		std.Status = StatusCompleted
	}
	snapshot.CompletedStandards++
	if snapshot.CurrentStandard == standardID {
		snapshot.CurrentStandard = ""
	}
	if snapshot.CompletedStandards >= snapshot.TotalStandards {
		snapshot.Status = StatusCompleted
		snapshot.OverallEndTime = &end
	}
	t.persistLocked(documentID)
}

// FailAnalysis moves the whole tree to a terminal failed state.
func (t *Tracker) FailAnalysis(documentID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	snapshot, ok := t.active[documentID]
	if !ok {
		return
	}
	end := t.now()
	snapshot.Status = StatusFailed
	snapshot.OverallEndTime = &end
	t.persistLocked(documentID)
}

// GetProgress returns a deep copy of the current tree, falling back to the
// store for documents no longer resident in memory.
func (t *Tracker) GetProgress(documentID string) (*AnalysisProgress, error) {
	t.mu.RLock()
	snapshot, ok := t.active[documentID]
	if ok {
		clone := cloneProgress(snapshot)
		t.mu.RUnlock()
		return clone, nil
	}
	t.mu.RUnlock()
	return t.store.Load(documentID)
}

// CleanupAnalysis drops the tree from memory and from the store.
func (t *Tracker) CleanupAnalysis(documentID string) {
	t.mu.Lock()
	delete(t.active, documentID)
	t.mu.Unlock()
	if err := t.store.Delete(documentID); err != nil {
		telemetry.Warn("progress.cleanup_failed", map[string]any{
			"document_id": documentID,
			"error":       err.Error(),
		})
	}
}

func (t *Tracker) standardLocked(documentID, standardID string) (*AnalysisProgress, *StandardProgress) {
	snapshot, ok := t.active[documentID]
	if !ok {
		return nil, nil
	}
	return snapshot, snapshot.Standards[standardID]
}

func (t *Tracker) persistLocked(documentID string) {
	snapshot, ok := t.active[documentID]
	if !ok {
		return
	}
	if err := t.store.Save(documentID, cloneProgress(snapshot)); err != nil {
		telemetry.Warn("progress.persist_failed", map[string]any{
			"document_id": documentID,
			"error":       err.Error(),
		})
	}
}

func cloneProgress(src *AnalysisProgress) *AnalysisProgress {
	dst := *src
	dst.Standards = make(map[string]*StandardProgress, len(src.Standards))
	for id, std := range src.Standards {
		stdCopy := *std
		stdCopy.Questions = make(map[string]*QuestionProgress, len(std.Questions))
		for qid, q := range std.Questions {
			qCopy := *q
			stdCopy.Questions[qid] = &qCopy
		}
		dst.Standards[id] = &stdCopy
	}
	return &dst
}
