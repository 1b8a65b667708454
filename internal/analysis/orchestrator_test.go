package analysis

import (
	"context"
	"testing"

	"compliance-backend/internal/checklist"
	"compliance-backend/internal/progress"
	"compliance-backend/internal/ratelimit"
	"compliance-backend/internal/vectorstore"
)

const yesResponse = `{"status":"YES","confidence":0.9,"explanation":"ok","evidence":["e"]}`

func testChecklists(t *testing.T) *checklist.MemoryRepo {
	t.Helper()
	repo := checklist.NewMemoryRepo()
	repo.Put("IFRS", "IAS_1", checklist.Checklist{
		Framework: "IFRS",
		Standard:  "IAS_1",
		Sections: []checklist.Section{
			{
				Section: "presentation",
				Title:   "Presentation of Financial Statements",
				Items: []checklist.Item{
					{ID: "ias1-q1", Question: "Does the entity present a complete set of financial statements?", Reference: "IAS 1.10"},
				},
			},
		},
	})
	repo.Put("IFRS", "IAS_40", checklist.Checklist{
		Framework: "IFRS",
		Standard:  "IAS_40",
		Sections: []checklist.Section{
			{
				Section: "measurement",
				Title:   "Investment Property",
				Items: []checklist.Item{
					{ID: "ias40-q1", Question: "Is investment property measured at fair value?", Reference: "IAS 40.33"},
					{ID: "ias40-q2", Question: "Are fair value gains and losses disclosed?", Reference: "IAS 40.76"},
				},
			},
		},
	})
	return repo
}

type orchestratorFixture struct {
	orchestrator *Orchestrator
	runs         *MemoryRepo
	tracker      *progress.Tracker
	completer    *countingCompleter
}

func newOrchestratorFixture(t *testing.T, checklists checklist.Repository) *orchestratorFixture {
	t.Helper()
	completer := &countingCompleter{resp: yesResponse}
	governor := ratelimit.NewGovernor(1000, 1_000_000)
	retriever := &fakeRetriever{
		hits: []vectorstore.SearchResult{
			{Text: "investment property is measured at fair value", Score: 0.92, PageNumber: 4},
			{Text: "fair value gains recognized in profit or loss", Score: 0.85, PageNumber: 5},
		},
	}
	engine := newTestEngine(retriever, completer)
	engine.governor = governor
	tracker := progress.NewTracker(progress.NewMemoryStore())
	runs := NewMemoryRepo()
	return &orchestratorFixture{
		orchestrator: NewOrchestrator(engine, checklists, governor, tracker, runs),
		runs:         runs,
		tracker:      tracker,
		completer:    completer,
	}
}

const docText = "Note 1: Overview\n\nThe entity holds investment property measured at fair value.\n\nNote 2: Details\n\nFair value gains are recognized in profit or loss."

func TestRunSmartModeCompletes(t *testing.T) {
	fx := newOrchestratorFixture(t, testChecklists(t))

	run := fx.orchestrator.Run(context.Background(), "doc1", docText, "IFRS", []string{"IAS_1", "IAS_40"}, ModeSmart)

	if run.Status != StatusCompleted {
		t.Fatalf("status = %q, want COMPLETED", run.Status)
	}
	if len(run.Sections) != 2 {
		t.Fatalf("sections = %d, want 2", len(run.Sections))
	}
	if run.Sections[0].Standard != "IAS_1" || len(run.Sections[0].Items) != 1 {
		t.Fatalf("first section = %+v", run.Sections[0])
	}
	if run.Sections[1].Standard != "IAS_40" || len(run.Sections[1].Items) != 2 {
		t.Fatalf("second section = %+v", run.Sections[1])
	}
	for _, sec := range run.Sections {
		for _, item := range sec.Items {
			if item.Status != VerdictYes {
				t.Fatalf("item %s status = %q, want YES", item.ID, item.Status)
			}
		}
	}

	snapshot, err := fx.tracker.GetProgress("doc1")
	if err != nil {
		t.Fatalf("get progress: %v", err)
	}
	if snapshot.CompletedStandards != 2 {
		t.Fatalf("completed_standards = %d, want 2", snapshot.CompletedStandards)
	}
	if snapshot.Status != progress.StatusCompleted {
		t.Fatalf("progress status = %q, want COMPLETED", snapshot.Status)
	}

	persisted, err := fx.runs.Get(context.Background(), "doc1")
	if err != nil {
		t.Fatalf("get persisted run: %v", err)
	}
	if persisted.Status != StatusCompleted {
		t.Fatalf("persisted status = %q, want COMPLETED", persisted.Status)
	}
}

func TestRunZapModeCoversEveryQuestion(t *testing.T) {
	fx := newOrchestratorFixture(t, testChecklists(t))

	run := fx.orchestrator.Run(context.Background(), "doc-zap", docText, "IFRS", []string{"IAS_40"}, ModeZap)

	if run.Status != StatusCompleted {
		t.Fatalf("status = %q, want COMPLETED", run.Status)
	}
	if len(run.Sections) != 1 || len(run.Sections[0].Items) != 2 {
		t.Fatalf("expected one section with 2 items, got %+v", run.Sections)
	}
	for _, item := range run.Sections[0].Items {
		if item.ID == "" {
			t.Fatal("zap mode dropped a question result")
		}
	}
}

func TestRunPartialFailureIsolation(t *testing.T) {
	repo := checklist.NewMemoryRepo()
	full := testChecklists(t)
	cl, err := full.Load(context.Background(), "IFRS", "IAS_1")
	if err != nil {
		t.Fatalf("load fixture checklist: %v", err)
	}
	repo.Put("IFRS", "IAS_1", cl)
	// IAS_40 is deliberately absent so loading it fails.

	fx := newOrchestratorFixture(t, repo)
	run := fx.orchestrator.Run(context.Background(), "doc-partial", docText, "IFRS", []string{"IAS_1", "IAS_40"}, ModeSmart)

	if run.Status != StatusCompletedWithErrors {
		t.Fatalf("status = %q, want COMPLETED_WITH_ERRORS", run.Status)
	}
	if len(run.Sections) != 1 || run.Sections[0].Standard != "IAS_1" {
		t.Fatalf("sections = %+v, want IAS_1 only", run.Sections)
	}
	if len(run.FailedStandards) != 1 || run.FailedStandards[0].Standard != "IAS_40" {
		t.Fatalf("failed_standards = %+v, want IAS_40", run.FailedStandards)
	}
}

func TestRunAllStandardsFailed(t *testing.T) {
	fx := newOrchestratorFixture(t, checklist.NewMemoryRepo())

	run := fx.orchestrator.Run(context.Background(), "doc-allfail", docText, "IFRS", []string{"IAS_1", "IAS_40"}, ModeSmart)

	if run.Status != StatusFailed {
		t.Fatalf("status = %q, want FAILED", run.Status)
	}
	if len(run.FailedStandards) != 2 {
		t.Fatalf("failed_standards = %d, want 2", len(run.FailedStandards))
	}
}

func TestRunEmptyStandardsFailsImmediately(t *testing.T) {
	fx := newOrchestratorFixture(t, testChecklists(t))

	run := fx.orchestrator.Run(context.Background(), "doc-empty", docText, "IFRS", nil, ModeSmart)

	if run.Status != StatusFailed {
		t.Fatalf("status = %q, want FAILED", run.Status)
	}
	if fx.completer.callCount() != 0 {
		t.Fatal("no model calls expected for an empty standards list")
	}
}

func TestRunComparisonMode(t *testing.T) {
	fx := newOrchestratorFixture(t, testChecklists(t))

	run := fx.orchestrator.Run(context.Background(), "doc-cmp", docText, "IFRS", []string{"IAS_1"}, ModeComparison)

	if run.Status != StatusCompleted {
		t.Fatalf("status = %q, want COMPLETED", run.Status)
	}
	if run.Comparison == nil {
		t.Fatal("comparison report missing")
	}
	if got := run.Comparison.ModesCompared; len(got) != 2 || got[0] != "smart" || got[1] != "zap" {
		t.Fatalf("modes_compared = %v", got)
	}
	switch run.Comparison.Recommendation {
	case "smart", "zap", "equivalent":
	default:
		t.Fatalf("recommendation = %q", run.Comparison.Recommendation)
	}
	if len(run.Sections) != 1 {
		t.Fatalf("primary sections = %d, want 1", len(run.Sections))
	}

	// Each leg persists its own sub-run record under a suffixed id.
	if _, err := fx.runs.Get(context.Background(), "doc-cmp_smart_comparison"); err != nil {
		t.Fatalf("smart sub-run record: %v", err)
	}
	if _, err := fx.runs.Get(context.Background(), "doc-cmp_zap_comparison"); err != nil {
		t.Fatalf("zap sub-run record: %v", err)
	}
}

func TestRunProgressMonotonic(t *testing.T) {
	fx := newOrchestratorFixture(t, testChecklists(t))

	fx.orchestrator.Run(context.Background(), "doc-mono", docText, "IFRS", []string{"IAS_1", "IAS_40"}, ModeSmart)

	snapshot, err := fx.tracker.GetProgress("doc-mono")
	if err != nil {
		t.Fatalf("get progress: %v", err)
	}
	for id, std := range snapshot.Standards {
		if std.CompletedQuestions > std.TotalQuestions {
			t.Fatalf("standard %s: completed %d > total %d", id, std.CompletedQuestions, std.TotalQuestions)
		}
		if std.CompletedQuestions != std.TotalQuestions {
			t.Fatalf("standard %s: completed %d, want %d", id, std.CompletedQuestions, std.TotalQuestions)
		}
	}
}
