package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"compliance-backend/internal/checklist"
	"compliance-backend/internal/llm"
	"compliance-backend/internal/ratelimit"
	"compliance-backend/internal/shared/telemetry"
	"compliance-backend/internal/vectorstore"
)

const (
	defaultAnswerRetries = 3
	retrievalTopK        = 3
	// Context shorter than this is not worth a section-aware pass.
	enhanceMinContext = 1000
)

// Engine answers a single checklist question against a document: it
// retrieves evidence, consults the model through the rate governor, and
// parses the verdict. Answer never returns an error; every failure mode
// degrades into a valid-shape QuestionResult so callers always proceed to
// the next question.
type Engine struct {
	retriever vectorstore.Retriever
	governor  *ratelimit.Governor
	completer llm.Client

	sleep func(ctx context.Context, d time.Duration) error
}

func NewEngine(retriever vectorstore.Retriever, governor *ratelimit.Governor, completer llm.Client) *Engine {
	return &Engine{
		retriever: retriever,
		governor:  governor,
		completer: completer,
		sleep: func(ctx context.Context, d time.Duration) error {
			select {
			case <-time.After(d):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}
}

// Answer judges one question. contextText, when non-trivial, additionally
// feeds a section-aware evidence search; maxRetries bounds transient-failure
// retries of the model call (zap mode passes a larger budget than smart).
func (e *Engine) Answer(ctx context.Context, documentID, standardID string, item checklist.Item, contextText string, maxRetries int) QuestionResult {
	if maxRetries <= 0 {
		maxRetries = defaultAnswerRetries
	}

	if e.governor.IsDuplicate(documentID, item.Question) {
		return e.duplicateResult(item)
	}
	if e.governor.BreakerOpen() {
		return e.unavailableResult(item)
	}

	hits, err := e.retriever.Search(ctx, documentID, item.Question, retrievalTopK)
	if err != nil {
		telemetry.Warn("engine.retrieval_failed", map[string]any{
			"document_id": documentID,
			"question_id": item.ID,
			"error":       err.Error(),
		})
		hits = nil
	}

	var (
		evidenceTexts []string
		pages         []int
	)
	for _, hit := range hits {
		evidenceTexts = append(evidenceTexts, hit.Text)
		if hit.PageNumber > 0 {
			pages = append(pages, hit.PageNumber)
		}
	}

	promptContext := strings.Join(evidenceTexts, "\n\n")
	var quality *QualityAssessment
	if len(contextText) > enhanceMinContext {
		if bundle, ok := EnhanceEvidence(contextText, standardID); ok {
			promptContext = bundle.Primary
			quality = &bundle.Quality
			pages = append(pages, bundle.Pages...)
		}
	}

	if strings.TrimSpace(promptContext) == "" {
		return e.noEvidenceResult(item)
	}

	content, callErr := e.callModel(ctx, item, promptContext, quality, maxRetries)
	if callErr != nil {
		return e.failureResult(item, callErr)
	}

	v := parseVerdict(content)
	result := QuestionResult{
		ID:              item.ID,
		Question:        item.Question,
		Reference:       item.Reference,
		Status:          v.Status,
		Confidence:      v.Confidence,
		Explanation:     v.Explanation,
		Evidence:        v.Evidence,
		Suggestion:      v.Suggestion,
		ContentAnalysis: v.ContentAnalysis,
		SourcePages:     dedupePages(pages),
	}
	return result
}

// callModel runs admission control plus the completion call, retrying
// rate-limit and connection failures with exponential backoff. Any other
// failure is returned as-is for conversion into a degraded result.
func (e *Engine) callModel(ctx context.Context, item checklist.Item, promptContext string, quality *QualityAssessment, maxRetries int) (string, error) {
	system := compliancePromptSystem()
	user := compliancePromptUser(item.Question, item.Reference, promptContext, quality)
	estimated := ratelimit.EstimateTokens(system + user)

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := e.governor.Admit(ctx, estimated); err != nil {
			return "", err
		}

		content, err := e.completer.Complete(ctx, system, user)
		if err == nil {
			e.governor.RecordSuccess()
			return content, nil
		}
		e.governor.RecordFailure()
		lastErr = err

		var wait time.Duration
		switch {
		case llm.IsRateLimited(err):
			wait = time.Duration(1<<(attempt+1)) * time.Second
		case llm.IsTransient(err):
			wait = time.Duration(1<<attempt) * time.Second
		default:
			return "", err
		}
		if attempt == maxRetries {
			break
		}
		telemetry.Warn("engine.model_retry", map[string]any{
			"question_id":  item.ID,
			"attempt":      attempt + 1,
			"max_attempts": maxRetries,
			"wait_seconds": wait.Seconds(),
			"error":        err.Error(),
		})
		if err := e.sleep(ctx, wait); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("model call retries exhausted: %w", lastErr)
}

func (e *Engine) duplicateResult(item checklist.Item) QuestionResult {
	r := e.baseResult(item)
	r.Explanation = "Duplicate question already processed for this document"
	return r
}

func (e *Engine) unavailableResult(item checklist.Item) QuestionResult {
	r := e.baseResult(item)
	r.Explanation = "Analysis temporarily unavailable: too many consecutive failures, retry after cooldown"
	return r
}

func (e *Engine) noEvidenceResult(item checklist.Item) QuestionResult {
	r := e.baseResult(item)
	r.Explanation = "No relevant disclosure found in the document"
	r.Suggestion = "Add an explicit disclosure addressing this requirement"
	return r
}

func (e *Engine) failureResult(item checklist.Item, err error) QuestionResult {
	r := e.baseResult(item)
	r.Explanation = "Analysis failed: " + err.Error()
	return r
}

func (e *Engine) baseResult(item checklist.Item) QuestionResult {
	return QuestionResult{
		ID:          item.ID,
		Question:    item.Question,
		Reference:   item.Reference,
		Status:      VerdictNA,
		Confidence:  0.0,
		Explanation: "",
		Evidence:    []string{"No evidence found in document"},
	}
}
