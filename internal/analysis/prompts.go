package analysis

import (
	"fmt"
	"strings"
)

func compliancePromptSystem() string {
	return strings.Join([]string{
		"You are an expert IFRS/IAS compliance analyzer.",
		"",
		"You judge whether a financial report satisfies a specific disclosure requirement, using only the evidence provided.",
		"Be conservative: prefer NO over an uncertain YES.",
		"Respond with a single JSON object and nothing else, using exactly these fields:",
		`{"status": "YES" | "NO" | "N/A", "confidence": <0.0-1.0>, "explanation": "<max 50 words>", "evidence": ["<verbatim quote>", ...], "suggestion": "<only when status is NO>"}`,
	}, "\n")
}

func compliancePromptUser(question, reference, context string, quality *QualityAssessment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "COMPLIANCE REQUIREMENT: %s\n", question)
	if reference != "" {
		fmt.Fprintf(&b, "REFERENCE: %s\n", reference)
	}
	if quality != nil {
		fmt.Fprintf(&b, "\nEVIDENCE SOURCE: %s (quality %d/100, type %s)\n",
			quality.Source, quality.OverallQuality, quality.SourceType)
		if quality.PolicyBased {
			b.WriteString("NOTE: the evidence below comes from accounting-policy boilerplate, not substantive disclosure. Weigh it as lower quality.\n")
		}
	}
	b.WriteString("\nDOCUMENT EVIDENCE:\n")
	b.WriteString(context)
	b.WriteString("\n\nAssess compliance with the requirement above and answer in the required JSON format.")
	return b.String()
}
