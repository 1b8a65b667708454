package analysis

import (
	"sort"
	"strings"
)

const (
	maxSegmentChars = 2000
	maxContextChars = 6000
	fallbackContext = 4000
	maxSegmentPick  = 5
)

// SemanticSegments splits document text into paragraph-bounded segments of
// roughly maxSegmentChars each. Segments are the unit of relevance scoring
// in smart mode.
func SemanticSegments(text string) []string {
	var segments []string
	var current strings.Builder

	for _, paragraph := range strings.Split(text, "\n\n") {
		if current.Len()+len(paragraph) < maxSegmentChars {
			current.WriteString(paragraph)
			current.WriteString("\n\n")
			continue
		}
		if seg := strings.TrimSpace(current.String()); seg != "" {
			segments = append(segments, seg)
		}
		current.Reset()
		current.WriteString(paragraph)
		current.WriteString("\n\n")
	}
	if seg := strings.TrimSpace(current.String()); seg != "" {
		segments = append(segments, seg)
	}
	return segments
}

// PrioritizeQuestions scores each question's relevance to the document via
// word overlap with every segment. A weak bag-of-words heuristic, kept
// deliberately cheap so smart mode can rank hundreds of questions without
// any model or embedding calls.
func PrioritizeQuestions(questions, segments []string) map[string]float64 {
	priorities := make(map[string]float64, len(questions))
	for _, question := range questions {
		words := wordSet(question)
		if len(words) == 0 {
			priorities[question] = 0
			continue
		}
		var total float64
		for _, segment := range segments {
			overlap := overlapCount(words, wordSet(segment))
			if overlap > 0 {
				total += float64(overlap) / float64(len(words))
			}
		}
		priorities[question] = total
	}
	return priorities
}

// RelevantSegments picks the top segments for a section's question set,
// weighting overlap by each question's document-wide priority.
func RelevantSegments(sectionQuestions, segments []string, priorities map[string]float64) []string {
	if len(sectionQuestions) == 0 {
		if len(segments) > 3 {
			return segments[:3]
		}
		return segments
	}

	type scored struct {
		score float64
		index int
	}
	scores := make([]scored, 0, len(segments))
	for i, segment := range segments {
		segWords := wordSet(segment)
		var score float64
		for _, question := range sectionQuestions {
			overlap := overlapCount(wordSet(question), segWords)
			score += float64(overlap) * priorities[question]
		}
		scores = append(scores, scored{score: score, index: i})
	}
	sort.SliceStable(scores, func(a, b int) bool { return scores[a].score > scores[b].score })

	limit := maxSegmentPick
	if len(scores) < limit {
		limit = len(scores)
	}
	picked := make([]string, 0, limit)
	for _, s := range scores[:limit] {
		picked = append(picked, segments[s.index])
	}
	return picked
}

// OptimizeContext joins the selected segments and truncates the result so
// per-call context stays small. With no segments it falls back to the
// document head.
func OptimizeContext(segments []string, fullText string) string {
	if len(segments) == 0 {
		if len(fullText) > fallbackContext {
			return fullText[:fallbackContext]
		}
		return fullText
	}
	combined := strings.Join(segments, "\n\n")
	if len(combined) > maxContextChars {
		combined = combined[:maxContextChars] + "..."
	}
	return combined
}

func wordSet(text string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(text)) {
		words[w] = struct{}{}
	}
	return words
}

func overlapCount(a, b map[string]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	count := 0
	for w := range a {
		if _, ok := b[w]; ok {
			count++
		}
	}
	return count
}
