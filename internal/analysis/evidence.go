package analysis

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Section classifications. Policy sections carry boilerplate accounting
// language; substantive sections carry the reconciliations and breakdowns
// that actually answer disclosure questions.
const (
	sectionPolicy      = "policy"
	sectionSubstantive = "substantive"
	sectionGeneral     = "general"
	sectionFallback    = "fallback"
)

// EvidenceItem is one candidate passage selected by the section-aware
// search, scored for quality and relevance.
type EvidenceItem struct {
	Text          string
	SourceSection string
	QualityScore  int
	Type          string
	Confidence    float64
	Pages         []int
	Reasoning     string
}

// QualityAssessment summarizes the best evidence found, so prompts can flag
// policy-only evidence as lower quality.
type QualityAssessment struct {
	OverallQuality int
	Confidence     float64
	SourceType     string
	PolicyBased    bool
	Source         string
}

// EvidenceBundle is the outcome of an enhanced evidence search.
type EvidenceBundle struct {
	Items   []EvidenceItem
	Primary string
	Quality QualityAssessment
	Pages   []int
}

type docSection struct {
	noteID      string
	title       string
	content     string
	sectionType string
	relevance   float64
	pages       []int
}

// standardKeywords maps an accounting standard to phrases that locate its
// disclosure sections in a financial report.
var standardKeywords = map[string][]string{
	"IAS 1":   {"presentation", "financial statements", "statement preparation", "accounting policies"},
	"IAS 2":   {"inventories", "inventory", "cost of goods", "stock valuation"},
	"IAS 7":   {"cash flows", "cash flow", "operating activities", "investing activities", "financing activities"},
	"IAS 8":   {"accounting policies", "changes in estimates", "errors", "prior period adjustments"},
	"IAS 10":  {"events after reporting", "subsequent events", "post balance sheet"},
	"IAS 12":  {"income taxes", "tax expense", "deferred tax", "current tax"},
	"IAS 16":  {"property plant equipment", "ppe", "fixed assets", "depreciation", "asset impairment"},
	"IAS 19":  {"employee benefits", "pension", "retirement benefits", "post employment", "defined benefit"},
	"IAS 20":  {"government grants", "government assistance", "subsidies"},
	"IAS 21":  {"foreign exchange", "foreign currency", "translation differences"},
	"IAS 23":  {"borrowing costs", "interest costs", "capitalization"},
	"IAS 24":  {"related party", "related parties", "key management personnel"},
	"IAS 26":  {"retirement benefit plans", "pension plans"},
	"IAS 27":  {"separate financial statements", "parent company"},
	"IAS 28":  {"associates", "joint ventures", "equity method"},
	"IAS 29":  {"hyperinflationary", "inflation accounting"},
	"IAS 32":  {"financial instruments presentation", "equity classification"},
	"IAS 33":  {"earnings per share", "eps", "diluted earnings"},
	"IAS 34":  {"interim reporting", "quarterly reports"},
	"IAS 36":  {"impairment", "recoverable amount", "value in use", "cash generating units"},
	"IAS 37":  {"provisions", "contingent liabilities", "contingent assets"},
	"IAS 38":  {"intangible assets", "goodwill", "development costs"},
	"IAS 39":  {"financial instruments recognition", "hedge accounting"},
	"IAS 40":  {"investment property", "fair value model"},
	"IAS 41":  {"agriculture", "biological assets", "agricultural produce"},
	"IFRS 1":  {"first time adoption", "transition to ifrs"},
	"IFRS 2":  {"share based payment", "stock options", "equity compensation"},
	"IFRS 3":  {"business combinations", "acquisitions", "goodwill"},
	"IFRS 5":  {"discontinued operations", "held for sale"},
	"IFRS 6":  {"exploration assets", "mineral resources"},
	"IFRS 7":  {"financial instruments disclosures", "risk disclosures", "fair value"},
	"IFRS 8":  {"operating segments", "reportable segments"},
	"IFRS 9":  {"financial instruments", "expected credit losses", "classification measurement"},
	"IFRS 10": {"consolidated financial statements", "control assessment"},
	"IFRS 11": {"joint arrangements", "joint operations", "joint ventures"},
	"IFRS 12": {"interests in other entities", "subsidiaries disclosure"},
	"IFRS 13": {"fair value measurement", "valuation techniques"},
	"IFRS 14": {"regulatory deferral accounts"},
	"IFRS 15": {"revenue contracts", "performance obligations", "contract assets"},
	"IFRS 16": {"leases", "right of use assets", "lease liabilities"},
	"IFRS 17": {"insurance contracts", "insurance liabilities"},
	"IFRS 18": {"presentation disclosure", "financial statement presentation"},
}

var policyKeywords = []string{
	"accounting policy",
	"significant accounting policies",
	"basis of preparation",
	"critical accounting estimates",
	"summary of significant",
	"accounting principles",
}

var substantiveKeywords = []string{
	"reconciliation",
	"movement",
	"analysis",
	"breakdown",
	"maturity analysis",
	"aging",
	"fair value hierarchy",
	"sensitivity analysis",
	"risk analysis",
}

var qualityIndicators = map[string][]string{
	"high":   {"reconciliation", "detailed breakdown", "movement analysis", "fair value hierarchy"},
	"medium": {"disclosure", "amounts", "balances", "commitments"},
	"low":    {"policy", "method", "approach", "basis"},
}

var (
	notePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)note\s+(\d+|[a-z]+)\s*[:\-.]?\s*([^\n]+)`),
		regexp.MustCompile(`(?i)(\d+)\.\s+([^\n]+)`),
		regexp.MustCompile(`(?i)(appendix\s+[a-z])\s*[:\-.]?\s*([^\n]+)`),
	}
	pagePattern     = regexp.MustCompile(`(?i)page\s+(\d+)`)
	crossRefPattern = regexp.MustCompile(`(?i)(?:see|refer\s+to|detailed\s+in)\s+note\s+(\d+|[a-z]+)`)
	numericPattern  = regexp.MustCompile(`\$[\d,]+|\d+\.\d+%|\d{1,3}(,\d{3})+`)
)

// EnhanceEvidence runs the section-aware evidence search over the full
// document text for a standard. The second return value is false when no
// usable evidence was produced; callers fall back to retrieval results.
func EnhanceEvidence(documentText, standardID string) (EvidenceBundle, bool) {
	sections := parseDocumentSections(documentText)
	if len(sections) == 0 {
		return EvidenceBundle{}, false
	}

	for i := range sections {
		sections[i].relevance = sectionRelevance(&sections[i], standardID)
	}

	relevant := make([]docSection, 0, len(sections))
	for _, s := range sections {
		if s.relevance > 0.3 {
			relevant = append(relevant, s)
		}
	}
	sort.SliceStable(relevant, func(a, b int) bool { return relevant[a].relevance > relevant[b].relevance })
	if len(relevant) > 5 {
		relevant = relevant[:5]
	}

	var items []EvidenceItem
	for _, s := range relevant {
		quality := evidenceQualityScore(s.content, s.sectionType)
		if quality <= 30 {
			continue
		}
		text := truncate(s.content, 2000)
		if refs := crossReferencedSections(s.content, sections); len(refs) > 0 {
			var b strings.Builder
			b.WriteString(text)
			b.WriteString("\n\nCross-referenced content:\n")
			for _, ref := range refs[:minInt(2, len(refs))] {
				fmt.Fprintf(&b, "%s: %s\n", ref.title, truncate(ref.content, 500))
			}
			text = b.String()
		}
		confidence := s.relevance * float64(quality) / 100
		if confidence > 0.95 {
			confidence = 0.95
		}
		items = append(items, EvidenceItem{
			Text:          text,
			SourceSection: fmt.Sprintf("Note %s: %s", s.noteID, s.title),
			QualityScore:  quality,
			Type:          s.sectionType,
			Confidence:    confidence,
			Pages:         s.pages,
			Reasoning:     evidenceReasoning(s, quality, standardID),
		})
	}

	// Backfill from high-quality non-matching sections when the targeted
	// search came up thin.
	if len(items) < 2 {
		for _, s := range sections {
			if s.relevance > 0.3 || s.sectionType == sectionPolicy {
				continue
			}
			quality := evidenceQualityScore(s.content, s.sectionType)
			if quality <= 50 {
				continue
			}
			items = append(items, EvidenceItem{
				Text:          truncate(s.content, 1500),
				SourceSection: fmt.Sprintf("Note %s: %s", s.noteID, s.title),
				QualityScore:  quality - 20,
				Type:          sectionFallback,
				Confidence:    0.4,
				Pages:         s.pages,
				Reasoning:     "Fallback evidence from non-standard-specific section",
			})
			if len(items) >= 2 {
				break
			}
		}
	}

	if len(items) == 0 {
		return EvidenceBundle{}, false
	}

	sort.SliceStable(items, func(a, b int) bool {
		if items[a].QualityScore != items[b].QualityScore {
			return items[a].QualityScore > items[b].QualityScore
		}
		return items[a].Confidence > items[b].Confidence
	})
	if len(items) > 3 {
		items = items[:3]
	}

	best := items[0]
	var pages []int
	for _, item := range items {
		pages = append(pages, item.Pages...)
	}
	return EvidenceBundle{
		Items:   items,
		Primary: best.Text,
		Quality: QualityAssessment{
			OverallQuality: best.QualityScore,
			Confidence:     best.Confidence,
			SourceType:     best.Type,
			PolicyBased:    best.Type == sectionPolicy,
			Source:         best.SourceSection,
		},
		Pages: dedupePages(pages),
	}, true
}

func parseDocumentSections(text string) []docSection {
	var sections []docSection
	for _, pattern := range notePatterns {
		matches := pattern.FindAllStringSubmatchIndex(text, -1)
		for i, m := range matches {
			start := m[0]
			end := len(text)
			if i+1 < len(matches) {
				end = matches[i+1][0]
			}
			noteID := text[m[2]:m[3]]
			title := strings.TrimSpace(text[m[4]:m[5]])
			content := text[start:end]
			sections = append(sections, docSection{
				noteID:      noteID,
				title:       title,
				content:     content,
				sectionType: classifySectionType(title, content),
				pages:       extractPageNumbers(content),
			})
		}
	}
	return sections
}

func classifySectionType(title, content string) string {
	titleLower := strings.ToLower(title)
	sample := strings.ToLower(truncate(content, 1000))

	policyScore := 0
	for _, kw := range policyKeywords {
		if strings.Contains(titleLower, kw) || strings.Contains(sample, kw) {
			policyScore++
		}
	}
	substantiveScore := 0
	for _, kw := range substantiveKeywords {
		if strings.Contains(sample, kw) {
			substantiveScore++
		}
	}

	switch {
	case policyScore > substantiveScore && policyScore > 0:
		return sectionPolicy
	case substantiveScore > 0:
		return sectionSubstantive
	default:
		return sectionGeneral
	}
}

func sectionRelevance(s *docSection, standardID string) float64 {
	keywords, ok := standardKeywords[normalizeStandardID(standardID)]
	if !ok || len(keywords) == 0 {
		return 0
	}
	haystack := strings.ToLower(s.title + " " + truncate(s.content, 500))
	titleLower := strings.ToLower(s.title)

	var score float64
	for _, kw := range keywords {
		if !strings.Contains(haystack, kw) {
			continue
		}
		if strings.Contains(titleLower, kw) {
			score += 2.0
		} else {
			score += 1.0
		}
	}
	score /= float64(len(keywords))
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func evidenceQualityScore(content, sectionType string) int {
	score := 50
	switch sectionType {
	case sectionPolicy:
		score -= 30
	case sectionSubstantive:
		score += 25
	}

	lower := strings.ToLower(content)
	for level, indicators := range qualityIndicators {
		for _, indicator := range indicators {
			if !strings.Contains(lower, indicator) {
				continue
			}
			switch level {
			case "high":
				score += 20
			case "medium":
				score += 10
			case "low":
				score -= 15
			}
		}
	}

	if numericPattern.MatchString(content) {
		score += 15
	}
	if len(strings.TrimSpace(content)) < 200 {
		score -= 10
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

func crossReferencedSections(content string, all []docSection) []docSection {
	var refs []docSection
	for _, m := range crossRefPattern.FindAllStringSubmatch(content, -1) {
		noteRef := strings.ToLower(m[1])
		for _, s := range all {
			if strings.ToLower(s.noteID) == noteRef {
				refs = append(refs, s)
				break
			}
		}
	}
	return refs
}

func evidenceReasoning(s docSection, quality int, standardID string) string {
	var parts []string
	if s.relevance > 0.7 {
		parts = append(parts, "High relevance to "+standardID)
	} else if s.relevance > 0.4 {
		parts = append(parts, "Medium relevance to "+standardID)
	}
	switch s.sectionType {
	case sectionSubstantive:
		parts = append(parts, "Contains substantive disclosure content")
	case sectionPolicy:
		parts = append(parts, "Contains policy information (lower quality)")
	}
	switch {
	case quality > 70:
		parts = append(parts, "High-quality evidence with detailed disclosures")
	case quality > 50:
		parts = append(parts, "Medium-quality evidence")
	default:
		parts = append(parts, "Lower-quality evidence")
	}
	return strings.Join(parts, "; ")
}

// normalizeStandardID maps checklist-style ids like "IAS_40" onto the
// "IAS 40" keys of the keyword table.
func normalizeStandardID(id string) string {
	return strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(id, "_", " ")))
}

func extractPageNumbers(content string) []int {
	var pages []int
	for _, m := range pagePattern.FindAllStringSubmatch(content, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil {
			pages = append(pages, n)
		}
	}
	return pages
}

func dedupePages(pages []int) []int {
	seen := make(map[int]struct{}, len(pages))
	var out []int
	for _, p := range pages {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
