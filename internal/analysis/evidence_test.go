package analysis

import (
	"strings"
	"testing"
)

func investmentPropertyDocument() string {
	return strings.Join([]string{
		"Note 1: Significant Accounting Policies\n" +
			"The basis of preparation follows IFRS. Significant accounting policies include the accounting policy for investment property, which is measured under the fair value model. " +
			strings.Repeat("General policy boilerplate text. ", 20),
		"Note 12: Investment Property\n" +
			"Reconciliation of the carrying amount of investment property: opening balance $1,200,000, additions $300,000, fair value gains $150,000, closing balance $1,650,000. " +
			"Movement analysis and detailed breakdown by property class are presented on page 42. Fair value hierarchy level 3 inputs were used. " +
			strings.Repeat("Substantive disclosure detail. ", 20),
		"Note 19: Employee Benefits\n" +
			"Defined benefit obligations are measured using the projected unit credit method. " +
			strings.Repeat("Pension disclosure text. ", 20),
	}, "\n\n")
}

func TestEnhanceEvidencePrefersSubstantiveSections(t *testing.T) {
	bundle, ok := EnhanceEvidence(investmentPropertyDocument(), "IAS_40")
	if !ok {
		t.Fatal("expected evidence to be found")
	}

	if !strings.Contains(bundle.Primary, "Reconciliation") {
		t.Fatalf("primary evidence should come from the substantive note, got: %.120s", bundle.Primary)
	}
	if bundle.Quality.PolicyBased {
		t.Fatal("best evidence should not be policy-based")
	}
	if bundle.Quality.SourceType != sectionSubstantive {
		t.Fatalf("source type = %q, want substantive", bundle.Quality.SourceType)
	}
}

func TestEnhanceEvidenceExtractsPageReferences(t *testing.T) {
	bundle, ok := EnhanceEvidence(investmentPropertyDocument(), "IAS_40")
	if !ok {
		t.Fatal("expected evidence to be found")
	}
	found := false
	for _, p := range bundle.Pages {
		if p == 42 {
			found = true
		}
	}
	if !found {
		t.Fatalf("pages = %v, want to include 42", bundle.Pages)
	}
}

func TestEnhanceEvidenceUnknownStandard(t *testing.T) {
	// No keyword entry means zero relevance everywhere; the search may still
	// fall back to high-quality sections, but it must not panic and must
	// report ok=false when nothing clears the quality bar.
	_, _ = EnhanceEvidence("short text without note structure", "XYZ_99")
}

func TestEnhanceEvidenceEmptyDocument(t *testing.T) {
	if _, ok := EnhanceEvidence("", "IAS_40"); ok {
		t.Fatal("empty document should produce no evidence")
	}
}

func TestNormalizeStandardID(t *testing.T) {
	if got := normalizeStandardID("ias_40"); got != "IAS 40" {
		t.Fatalf("normalizeStandardID = %q, want IAS 40", got)
	}
}
