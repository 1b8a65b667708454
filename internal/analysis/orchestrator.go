package analysis

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"compliance-backend/internal/checklist"
	"compliance-backend/internal/progress"
	"compliance-backend/internal/ratelimit"
	"compliance-backend/internal/shared/metrics"
	"compliance-backend/internal/shared/telemetry"
)

const zapAnswerRetries = 10

// Orchestrator drives a full analysis run: it iterates the caller's
// standards strictly in order, dispatches each standard's questions under
// the selected mode, and aggregates results with per-standard fault
// isolation. No failure from an individual question or standard escapes
// Run; everything degrades into recorded state on the run and its progress
// tree.
type Orchestrator struct {
	engine     *Engine
	checklists checklist.Repository
	governor   *ratelimit.Governor
	tracker    *progress.Tracker
	runs       Repo

	now func() time.Time
}

func NewOrchestrator(engine *Engine, checklists checklist.Repository, governor *ratelimit.Governor, tracker *progress.Tracker, runs Repo) *Orchestrator {
	return &Orchestrator{
		engine:     engine,
		checklists: checklists,
		governor:   governor,
		tracker:    tracker,
		runs:       runs,
		now:        time.Now,
	}
}

// Run executes an analysis for one document. It is invoked fire-and-forget
// by the HTTP layer; callers observe progress and results through the
// persisted records, not the return value.
func (o *Orchestrator) Run(ctx context.Context, documentID, text, framework string, standards []string, mode Mode) (run *AnalysisRun) {
	start := o.now()
	metrics.IncRunStarted()
	telemetry.Info("analysis.run_started", map[string]any{
		"document_id": documentID,
		"framework":   framework,
		"standards":   len(standards),
		"mode":        string(mode),
	})

	o.governor.ClearDocument(documentID)
	o.tracker.CleanupAnalysis(documentID)
	run = o.newRun(documentID, framework, standards, mode)

	defer func() {
		if rec := recover(); rec != nil {
			telemetry.Error("analysis.run_panicked", map[string]any{
				"document_id": documentID,
				"panic":       fmt.Sprint(rec),
			})
			run.Status = StatusFailed
			run.Message = "internal error: " + sanitizeError(fmt.Sprint(rec))
			run.UpdatedAt = o.now()
			o.persist(ctx, run)
			o.tracker.FailAnalysis(documentID)
			metrics.IncRunFailed()
		}
	}()

	if len(standards) == 0 {
		run.Status = StatusFailed
		run.Message = "no standards selected for analysis"
		run.UpdatedAt = o.now()
		o.persist(ctx, run)
		metrics.IncRunFailed()
		return run
	}

	o.tracker.StartAnalysis(documentID, framework, standards, string(mode))
	o.persist(ctx, run)

	if mode == ModeComparison {
		o.runComparison(ctx, run, text, start)
		return run
	}

	o.executeStandards(ctx, run, text, mode)
	o.finalize(ctx, run, start)
	return run
}

func (o *Orchestrator) newRun(documentID, framework string, standards []string, mode Mode) *AnalysisRun {
	now := o.now()
	return &AnalysisRun{
		DocumentID: documentID,
		Framework:  framework,
		Standards:  standards,
		Mode:       string(mode),
		Status:     StatusProcessing,
		Sections:   []SectionResult{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// executeStandards runs the per-standard loop. A standard that fails to
// load or dispatch lands in FailedStandards and the loop continues.
func (o *Orchestrator) executeStandards(ctx context.Context, run *AnalysisRun, text string, mode Mode) {
	documentID := run.DocumentID

	var segments []string
	if mode == ModeSmart {
		segments = SemanticSegments(text)
	}

	for _, standardID := range run.Standards {
		cl, err := o.checklists.Load(ctx, run.Framework, standardID)
		if err != nil {
			telemetry.Warn("analysis.standard_failed", map[string]any{
				"document_id": documentID,
				"standard":    standardID,
				"error":       err.Error(),
			})
			run.FailedStandards = append(run.FailedStandards, StandardError{
				Standard: standardID,
				Error:    sanitizeError(err.Error()),
			})
			o.tracker.CompleteStandard(documentID, standardID, true)
			continue
		}

		seeds := questionSeeds(cl)
		o.tracker.StartStandard(documentID, standardID, len(seeds))
		o.tracker.InitializeQuestions(documentID, standardID, seeds)

		var sections []SectionResult
		switch mode {
		case ModeZap:
			sections = o.runZapStandard(ctx, documentID, standardID, text, cl)
		default:
			sections = o.runSmartStandard(ctx, documentID, standardID, text, cl, segments)
		}

		run.Sections = append(run.Sections, sections...)
		o.tracker.CompleteStandard(documentID, standardID, false)
		run.UpdatedAt = o.now()
		o.persist(ctx, run)
	}
}

// runSmartStandard processes sections one at a time against a targeted
// context built from the most relevant document segments.
func (o *Orchestrator) runSmartStandard(ctx context.Context, documentID, standardID, text string, cl checklist.Checklist, segments []string) []SectionResult {
	var allQuestions []string
	for _, sec := range cl.Sections {
		for _, item := range sec.Items {
			allQuestions = append(allQuestions, item.Question)
		}
	}
	priorities := PrioritizeQuestions(allQuestions, segments)

	results := make([]SectionResult, 0, len(cl.Sections))
	for _, sec := range cl.Sections {
		secStart := o.now()
		secQuestions := make([]string, 0, len(sec.Items))
		for _, item := range sec.Items {
			secQuestions = append(secQuestions, item.Question)
		}
		relevant := RelevantSegments(secQuestions, segments, priorities)
		contextText := OptimizeContext(relevant, text)

		items := make([]QuestionResult, 0, len(sec.Items))
		for _, item := range sec.Items {
			items = append(items, o.answerQuestion(ctx, documentID, standardID, item, contextText, defaultAnswerRetries))
		}
		results = append(results, SectionResult{
			Standard:         standardID,
			Section:          sec.Section,
			Title:            sec.Title,
			Items:            items,
			ProcessingMode:   string(ModeSmart),
			ProcessingTimeMs: o.now().Sub(secStart).Milliseconds(),
		})
	}
	return results
}

// runZapStandard dispatches every question as its own goroutine with the
// full document text as context. The fan-out is deliberately unbounded:
// throughput over backpressure, with the rate governor as the actual
// admission gate.
func (o *Orchestrator) runZapStandard(ctx context.Context, documentID, standardID, text string, cl checklist.Checklist) []SectionResult {
	start := o.now()
	results := make([]SectionResult, len(cl.Sections))
	var wg sync.WaitGroup
	for si, sec := range cl.Sections {
		results[si] = SectionResult{
			Standard:       standardID,
			Section:        sec.Section,
			Title:          sec.Title,
			Items:          make([]QuestionResult, len(sec.Items)),
			ProcessingMode: string(ModeZap),
		}
		for qi, item := range sec.Items {
			wg.Add(1)
			go func(si, qi int, item checklist.Item) {
				defer wg.Done()
				results[si].Items[qi] = o.answerQuestion(ctx, documentID, standardID, item, text, zapAnswerRetries)
			}(si, qi, item)
		}
	}
	wg.Wait()
	elapsed := o.now().Sub(start).Milliseconds()
	for si := range results {
		results[si].ProcessingTimeMs = elapsed
	}
	return results
}

func (o *Orchestrator) answerQuestion(ctx context.Context, documentID, standardID string, item checklist.Item, contextText string, maxRetries int) QuestionResult {
	o.tracker.MarkQuestionProcessing(documentID, standardID, item.ID)
	started := o.now()
	result := o.engine.Answer(ctx, documentID, standardID, item, contextText, maxRetries)
	metrics.ObserveQuestionDurationMs(float64(o.now().Sub(started).Milliseconds()))

	if isFailedResult(result) {
		metrics.IncQuestionFailed()
		o.tracker.MarkQuestionFailed(documentID, standardID, item.ID)
	} else {
		metrics.IncQuestionCompleted()
		o.tracker.MarkQuestionCompleted(documentID, standardID, item.ID)
	}
	return result
}

// finalize resolves the terminal status from the per-standard bookkeeping
// and persists the run.
func (o *Orchestrator) finalize(ctx context.Context, run *AnalysisRun, start time.Time) {
	processed, failed := 0, 0
	for _, sec := range run.Sections {
		processed += len(sec.Items)
		for _, item := range sec.Items {
			if isFailedResult(item) {
				failed++
			}
		}
	}
	run.Performance = &Performance{
		ProcessingTimeSeconds: o.now().Sub(start).Seconds(),
		QuestionsProcessed:    processed,
		QuestionsFailed:       failed,
	}

	switch {
	case len(run.Sections) == 0 && len(run.FailedStandards) > 0:
		run.Status = StatusFailed
		run.Message = "all standards failed"
		o.tracker.FailAnalysis(run.DocumentID)
		metrics.IncRunFailed()
	case len(run.FailedStandards) > 0:
		run.Status = StatusCompletedWithErrors
		run.Message = fmt.Sprintf("analysis completed, %d standard(s) failed", len(run.FailedStandards))
		metrics.IncRunCompleted()
	default:
		run.Status = StatusCompleted
		run.Message = "analysis completed"
		metrics.IncRunCompleted()
	}
	run.UpdatedAt = o.now()
	metrics.ObserveRunDurationMs(float64(o.now().Sub(start).Milliseconds()))
	o.persist(ctx, run)

	telemetry.Info("analysis.run_finished", map[string]any{
		"document_id":      run.DocumentID,
		"status":           run.Status,
		"sections":         len(run.Sections),
		"failed_standards": len(run.FailedStandards),
		"duration_seconds": run.Performance.ProcessingTimeSeconds,
	})
}

// runComparison executes both policies under isolated sub-runs and reports
// which was faster. The parent record carries the primary result set: smart
// if it succeeded, else zap, else an empty failed set.
func (o *Orchestrator) runComparison(ctx context.Context, run *AnalysisRun, text string, start time.Time) {
	smartRun, smartSecs := o.runSubAnalysis(ctx, run.DocumentID+"_smart_comparison", text, run.Framework, run.Standards, ModeSmart)
	zapRun, zapSecs := o.runSubAnalysis(ctx, run.DocumentID+"_zap_comparison", text, run.Framework, run.Standards, ModeZap)

	smartM := modeMetrics(ModeSmart, smartRun, smartSecs)
	zapM := modeMetrics(ModeZap, zapRun, zapSecs)
	speed, recommendation, reason := compareModes(smartM, zapM)

	primary := smartRun
	if !smartM.Success {
		primary = zapRun
	}
	if smartM.Success || zapM.Success {
		run.Sections = primary.Sections
		run.FailedStandards = primary.FailedStandards
		run.Performance = primary.Performance
		run.Status = StatusCompleted
		run.Message = fmt.Sprintf("comparison analysis completed, %s mode recommended", recommendation)
	} else {
		run.Status = StatusFailed
		run.Message = "comparison analysis failed in both modes"
	}
	run.Comparison = &ComparisonReport{
		ModesCompared:            []string{string(ModeSmart), string(ModeZap)},
		SmartMode:                smartM,
		ZapMode:                  zapM,
		SpeedImprovement:         speed,
		Recommendation:           recommendation,
		RecommendationReason:     reason,
		TotalAnalysisTimeSeconds: smartSecs + zapSecs,
	}
	run.UpdatedAt = o.now()

	if run.Status == StatusFailed {
		o.tracker.FailAnalysis(run.DocumentID)
		metrics.IncRunFailed()
	} else {
		failedSet := make(map[string]struct{}, len(run.FailedStandards))
		for _, fs := range run.FailedStandards {
			failedSet[fs.Standard] = struct{}{}
		}
		for _, standardID := range run.Standards {
			_, failed := failedSet[standardID]
			o.tracker.CompleteStandard(run.DocumentID, standardID, failed)
		}
		metrics.IncRunCompleted()
	}
	metrics.ObserveRunDurationMs(float64(o.now().Sub(start).Milliseconds()))
	o.persist(ctx, run)
}

// runSubAnalysis executes one full comparison leg under its own suffixed
// document id, with its own run record and progress tree.
func (o *Orchestrator) runSubAnalysis(ctx context.Context, subID, text, framework string, standards []string, mode Mode) (*AnalysisRun, float64) {
	start := o.now()
	o.governor.ClearDocument(subID)
	o.tracker.CleanupAnalysis(subID)

	sub := o.newRun(subID, framework, standards, mode)
	o.tracker.StartAnalysis(subID, framework, standards, string(mode))
	o.persist(ctx, sub)
	o.executeStandards(ctx, sub, text, mode)
	o.finalize(ctx, sub, start)
	return sub, o.now().Sub(start).Seconds()
}

func modeMetrics(mode Mode, run *AnalysisRun, seconds float64) ModeMetrics {
	m := ModeMetrics{
		Mode:                  string(mode),
		ProcessingTimeSeconds: seconds,
		Success:               run.Status == StatusCompleted || run.Status == StatusCompletedWithErrors,
		SectionsAnalyzed:      len(run.Sections),
	}
	if !m.Success {
		m.Error = run.Message
	}
	return m
}

func compareModes(smart, zap ModeMetrics) (speed, recommendation, reason string) {
	switch {
	case smart.Success && zap.Success:
		switch {
		case smart.ProcessingTimeSeconds < zap.ProcessingTimeSeconds:
			recommendation, reason = string(ModeSmart), "smart mode was faster"
		case zap.ProcessingTimeSeconds < smart.ProcessingTimeSeconds:
			recommendation, reason = string(ModeZap), "zap mode was faster"
		default:
			recommendation, reason = "equivalent", "both modes performed similarly"
		}
		if zap.ProcessingTimeSeconds > 0 {
			ratio := smart.ProcessingTimeSeconds / zap.ProcessingTimeSeconds
			if ratio > 1 {
				speed = fmt.Sprintf("%.1fx faster (zap vs smart)", ratio)
			} else if ratio > 0 {
				speed = fmt.Sprintf("%.1fx faster (smart vs zap)", 1/ratio)
			} else {
				speed = "unable to calculate"
			}
		} else {
			speed = "unable to calculate"
		}
	case smart.Success:
		speed, recommendation, reason = "analysis failed", string(ModeSmart), "only smart mode succeeded"
	case zap.Success:
		speed, recommendation, reason = "analysis failed", string(ModeZap), "only zap mode succeeded"
	default:
		speed, recommendation, reason = "analysis failed", "neither", "both modes failed"
	}
	return speed, recommendation, reason
}

func questionSeeds(cl checklist.Checklist) []progress.QuestionSeed {
	var seeds []progress.QuestionSeed
	for _, sec := range cl.Sections {
		for _, item := range sec.Items {
			seeds = append(seeds, progress.QuestionSeed{
				ID:       item.ID,
				Section:  sec.Section,
				Question: item.Question,
			})
		}
	}
	return seeds
}

func isFailedResult(r QuestionResult) bool {
	return r.Status == VerdictNA && r.Confidence == 0 && strings.HasPrefix(r.Explanation, "Analysis failed")
}

func (o *Orchestrator) persist(ctx context.Context, run *AnalysisRun) {
	if err := o.runs.Save(ctx, run); err != nil {
		telemetry.Error("analysis.persist_failed", map[string]any{
			"document_id": run.DocumentID,
			"error":       err.Error(),
		})
	}
}

// sanitizeError trims error text destined for client-visible records.
func sanitizeError(msg string) string {
	msg = strings.TrimSpace(msg)
	if len(msg) > 500 {
		msg = msg[:500]
	}
	return msg
}
