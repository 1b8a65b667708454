package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"compliance-backend/internal/documents"
	"compliance-backend/internal/vectorstore"
)

type stubBuilder struct {
	indexed map[string]bool
	buildOK bool
}

func (b *stubBuilder) Build(ctx context.Context, documentID string, chunks []documents.Chunk) bool {
	if !b.buildOK {
		return false
	}
	b.indexed[documentID] = true
	return true
}

func (b *stubBuilder) Has(documentID string) bool { return b.indexed[documentID] }

func (b *stubBuilder) Delete(ctx context.Context, documentID string) error {
	delete(b.indexed, documentID)
	return nil
}

func setupAnalysisRouter(t *testing.T) (*gin.Engine, *MemoryRepo, *documents.MemoryRepo) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	docRepo := documents.NewMemoryRepo()
	fx := newOrchestratorFixture(t, testChecklists(t))
	builder := &stubBuilder{indexed: make(map[string]bool), buildOK: true}

	h := &Handler{
		Orchestrator: fx.orchestrator,
		Runs:         fx.runs,
		Tracker:      fx.tracker,
		Governor:     fx.orchestrator.governor,
		Docs:         docRepo,
		Index:        builder,
	}

	r := gin.New()
	api := r.Group("/api/v1")
	h.RegisterRoutes(api)
	return r, fx.runs, docRepo
}

func seedDocument(t *testing.T, repo *documents.MemoryRepo, id string) {
	t.Helper()
	err := repo.Create(context.Background(), documents.Document{
		ID:       id,
		FileName: "report.pdf",
		Text:     docText,
		Chunks: []documents.Chunk{
			{Text: docText, PageNumber: 1, ChunkIndex: 0, ChunkType: documents.ChunkTypeContent},
		},
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed document: %v", err)
	}
}

func postAnalyze(t *testing.T, r *gin.Engine, documentID string, payload map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/"+documentID+"/analyze", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func waitForRun(t *testing.T, runs *MemoryRepo, documentID string) *AnalysisRun {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		run, err := runs.Get(context.Background(), documentID)
		if err == nil && run.Status != StatusProcessing {
			return run
		}
		if err != nil && !errors.Is(err, ErrRunNotFound) {
			t.Fatalf("get run: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("analysis did not reach a terminal status in time")
	return nil
}

func TestStartAnalysisAccepted(t *testing.T) {
	r, runs, docRepo := setupAnalysisRouter(t)
	seedDocument(t, docRepo, "doc1")

	resp := postAnalyze(t, r, "doc1", map[string]any{
		"framework": "IFRS",
		"standards": []string{"IAS_1"},
	})
	if resp.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", resp.Code, resp.Body.String())
	}

	var accepted struct {
		DocumentID     string `json:"document_id"`
		Status         string `json:"status"`
		ProcessingMode string `json:"processing_mode"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if accepted.Status != StatusProcessing || accepted.ProcessingMode != "smart" {
		t.Fatalf("accepted body: %+v", accepted)
	}

	run := waitForRun(t, runs, "doc1")
	if run.Status != StatusCompleted {
		t.Fatalf("run status = %q, want COMPLETED", run.Status)
	}
}

func TestStartAnalysisUnknownDocument(t *testing.T) {
	r, _, _ := setupAnalysisRouter(t)

	resp := postAnalyze(t, r, "missing", map[string]any{
		"framework": "IFRS",
		"standards": []string{"IAS_1"},
	})
	if resp.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.Code)
	}
}

func TestStartAnalysisValidation(t *testing.T) {
	r, _, docRepo := setupAnalysisRouter(t)
	seedDocument(t, docRepo, "doc1")

	resp := postAnalyze(t, r, "doc1", map[string]any{"framework": "IFRS"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("missing standards: status = %d, want 400", resp.Code)
	}

	resp = postAnalyze(t, r, "doc1", map[string]any{
		"framework":       "IFRS",
		"standards":       []string{"IAS_1"},
		"processing_mode": "warp",
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("bad mode: status = %d, want 400", resp.Code)
	}
}

func TestGetResultsAndProgressEndpoints(t *testing.T) {
	r, runs, docRepo := setupAnalysisRouter(t)
	seedDocument(t, docRepo, "doc1")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/doc1/results", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("results before analysis: status = %d, want 404", resp.Code)
	}

	accepted := postAnalyze(t, r, "doc1", map[string]any{
		"framework": "IFRS",
		"standards": []string{"IAS_1"},
	})
	if accepted.Code != http.StatusAccepted {
		t.Fatalf("analyze: status = %d", accepted.Code)
	}
	waitForRun(t, runs, "doc1")

	req = httptest.NewRequest(http.MethodGet, "/api/v1/documents/doc1/results", nil)
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("results: status = %d, want 200", resp.Code)
	}
	var run AnalysisRun
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if run.Status != StatusCompleted {
		t.Fatalf("run status = %q", run.Status)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/documents/doc1/progress", nil)
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("progress: status = %d, want 200", resp.Code)
	}
}

func TestRateLimitStatusEndpoint(t *testing.T) {
	r, _, _ := setupAnalysisRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rate-limit-status", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.Code)
	}
	var status map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if _, ok := status["requests_limit"]; !ok {
		t.Fatalf("missing requests_limit in %v", status)
	}
}

var _ vectorstore.Builder = (*stubBuilder)(nil)
