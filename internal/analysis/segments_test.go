package analysis

import (
	"strings"
	"testing"
)

func TestSemanticSegmentsParagraphBounded(t *testing.T) {
	para := strings.Repeat("investment property fair value ", 30) // ~900 chars
	text := strings.Join([]string{para, para, para, para}, "\n\n")

	segments := SemanticSegments(text)
	if len(segments) < 2 {
		t.Fatalf("expected multiple segments, got %d", len(segments))
	}
	for i, seg := range segments {
		if len(seg) > maxSegmentChars+len(para) {
			t.Fatalf("segment %d unexpectedly large: %d chars", i, len(seg))
		}
		if strings.TrimSpace(seg) == "" {
			t.Fatalf("segment %d is blank", i)
		}
	}
}

func TestPrioritizeQuestionsFavorsOverlap(t *testing.T) {
	segments := []string{
		"the investment property portfolio is measured at fair value",
		"employee benefit obligations are discounted using corporate bond rates",
	}
	questions := []string{
		"Is investment property measured at fair value?",
		"Does the entity operate mines on the moon?",
	}

	priorities := PrioritizeQuestions(questions, segments)
	if priorities[questions[0]] <= priorities[questions[1]] {
		t.Fatalf("overlapping question scored %v, non-overlapping %v",
			priorities[questions[0]], priorities[questions[1]])
	}
}

func TestRelevantSegmentsCapped(t *testing.T) {
	var segments []string
	for i := 0; i < 10; i++ {
		segments = append(segments, "segment about investment property number "+strings.Repeat("x", i))
	}
	questions := []string{"investment property disclosures"}
	priorities := PrioritizeQuestions(questions, segments)

	picked := RelevantSegments(questions, segments, priorities)
	if len(picked) > maxSegmentPick {
		t.Fatalf("picked %d segments, cap is %d", len(picked), maxSegmentPick)
	}
}

func TestRelevantSegmentsNoQuestions(t *testing.T) {
	segments := []string{"a", "b", "c", "d"}
	picked := RelevantSegments(nil, segments, nil)
	if len(picked) != 3 {
		t.Fatalf("picked %d segments, want first 3", len(picked))
	}
}

func TestOptimizeContextTruncates(t *testing.T) {
	long := strings.Repeat("disclosure ", 1000)
	got := OptimizeContext([]string{long}, long)
	if len(got) > maxContextChars+3 {
		t.Fatalf("context length %d exceeds cap", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatal("truncated context should end with ellipsis")
	}
}

func TestOptimizeContextFallsBackToDocumentHead(t *testing.T) {
	full := strings.Repeat("y", 10000)
	got := OptimizeContext(nil, full)
	if len(got) != fallbackContext {
		t.Fatalf("fallback context length = %d, want %d", len(got), fallbackContext)
	}
}
