package analysis

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// verdict is the parsed shape of a model response before normalization.
type verdict struct {
	Status          string
	Confidence      float64
	Explanation     string
	Evidence        []string
	Suggestion      string
	ContentAnalysis string
}

type rawVerdict struct {
	Status          string          `json:"status"`
	Confidence      *float64        `json:"confidence"`
	Explanation     string          `json:"explanation"`
	Evidence        json.RawMessage `json:"evidence"`
	Suggestion      string          `json:"suggestion"`
	ContentAnalysis string          `json:"content_analysis"`
}

var (
	confidencePattern  = regexp.MustCompile(`[Cc]onfidence:?\s*(\d+\.\d+)`)
	explanationPattern = regexp.MustCompile(`(?s)[Ee]xplanation:?\s*(.+?)(?:\n\n|\n[A-Z]|$)`)
	suggestionPattern  = regexp.MustCompile(`(?s)[Ss]uggestion:?\s*(.+?)(?:\n\n|\n[A-Z]|$)`)
	analysisPattern    = regexp.MustCompile(`(?s)[Cc]ontent_analysis:?\s*"?(.+?)"?(?:\n\n|\n[A-Z]|$)`)
	evidenceLine       = regexp.MustCompile(`(?m)^.*\|.+$`)
	jsonObjectPattern  = regexp.MustCompile(`(?s)\{.*\}`)
)

// parseVerdict turns a model response into a verdict. Strict JSON parsing
// is attempted first (including a JSON object embedded in surrounding
// prose); when that fails it falls back to regex field recovery so a
// chatty-but-parseable response is never discarded. The returned verdict is
// always normalized to a valid shape.
func parseVerdict(content string) verdict {
	content = strings.TrimSpace(content)

	if v, ok := parseStrict(content); ok {
		return normalizeVerdict(v)
	}
	if m := jsonObjectPattern.FindString(content); m != "" {
		if v, ok := parseStrict(m); ok {
			return normalizeVerdict(v)
		}
	}
	return normalizeVerdict(parseLoose(content))
}

func parseStrict(content string) (verdict, bool) {
	var raw rawVerdict
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return verdict{}, false
	}
	v := verdict{
		Status:          raw.Status,
		Explanation:     raw.Explanation,
		Suggestion:      raw.Suggestion,
		ContentAnalysis: raw.ContentAnalysis,
		Evidence:        decodeEvidence(raw.Evidence),
	}
	if raw.Confidence != nil {
		v.Confidence = *raw.Confidence
	} else {
		v.Confidence = 0.5
	}
	return v, true
}

// decodeEvidence accepts either a JSON array of strings or a bare string,
// both of which models produce in practice.
func decodeEvidence(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && strings.TrimSpace(single) != "" {
		return []string{single}
	}
	return nil
}

func parseLoose(content string) verdict {
	var v verdict

	switch {
	case strings.Contains(content, "YES") || strings.Contains(content, "Yes"):
		v.Status = VerdictYes
	case strings.Contains(content, "NO") || strings.Contains(content, "No"):
		v.Status = VerdictNo
	default:
		v.Status = VerdictNA
	}

	v.Confidence = 0.5
	if m := confidencePattern.FindStringSubmatch(content); m != nil {
		if parsed, err := strconv.ParseFloat(m[1], 64); err == nil {
			v.Confidence = parsed
		}
	}

	if m := explanationPattern.FindStringSubmatch(content); m != nil {
		v.Explanation = strings.TrimSpace(m[1])
	}
	if lines := evidenceLine.FindAllString(content, -1); len(lines) > 0 {
		for _, line := range lines {
			v.Evidence = append(v.Evidence, strings.TrimSpace(line))
		}
	}
	if v.Status == VerdictNo {
		if m := suggestionPattern.FindStringSubmatch(content); m != nil {
			v.Suggestion = strings.TrimSpace(m[1])
		}
	}
	if m := analysisPattern.FindStringSubmatch(content); m != nil {
		v.ContentAnalysis = strings.TrimSpace(m[1])
	}
	return v
}

func normalizeVerdict(v verdict) verdict {
	switch v.Status {
	case VerdictYes, VerdictNo, VerdictNA:
	default:
		v.Status = VerdictNA
	}
	if v.Confidence < 0 {
		v.Confidence = 0
	}
	if v.Confidence > 1 {
		v.Confidence = 1
	}
	if strings.TrimSpace(v.Explanation) == "" {
		v.Explanation = "No explanation provided"
	}
	if len(v.Evidence) == 0 {
		v.Evidence = []string{"No evidence found in document"}
	}
	return v
}
