package llm

import (
	"reflect"
	"strings"
	"testing"

	"PulseIngest/internal/domain"
)

func TestDecodeAnalysisAllFields(t *testing.T) {
	t.Parallel()

	got := DecodeAnalysis(completionText)

	if got.Noise != "Acme cut list prices by 20 percent." {
		t.Fatalf("unexpected noise %q", got.Noise)
	}
	if got.Translation != "Buyers now have leverage in renewals." {
		t.Fatalf("unexpected translation %q", got.Translation)
	}
	if !strings.HasPrefix(got.Action, "I would") {
		t.Fatalf("unexpected action %q", got.Action)
	}
	if got.Category != domain.CategorySales {
		t.Fatalf("unexpected category %q", got.Category)
	}
	if want := []string{"pricing", "renewals", "acme"}; !reflect.DeepEqual(got.Keywords, want) {
		t.Fatalf("unexpected keywords %v", got.Keywords)
	}
	if got.Title != "Acme Blinks on Price" {
		t.Fatalf("unexpected title %q", got.Title)
	}
	if len(got.Missing) != 0 {
		t.Fatalf("expected no missing fields, got %v", got.Missing)
	}
}

func TestDecodeAnalysisToleratesMarkdown(t *testing.T) {
	t.Parallel()

	text := "Here is your briefing:\n\n" +
		"**NOISE:** A chip shortage is back.\n" +
		"It is hitting laptops first.\n\n" +
		"- **Translation**: Hardware budgets will slip.\n" +
		"## ACTION: I'd lock in Q3 orders now.\n" +
		"**CATEGORY:** AI\n" +
		"**KEYWORDS:** chips; Supply Chain; chips; laptops; budgets; q3; extra\n" +
		"**TITLE:** \"Chips Are Down Again\"\n" +
		"Let me know if you want changes."

	got := DecodeAnalysis(text)

	if got.Noise != "A chip shortage is back. It is hitting laptops first." {
		t.Fatalf("unexpected noise %q", got.Noise)
	}
	if got.Translation != "Hardware budgets will slip." {
		t.Fatalf("unexpected translation %q", got.Translation)
	}
	if got.Category != domain.CategoryAI {
		t.Fatalf("unexpected category %q", got.Category)
	}
	if len(got.Keywords) != maxKeywords || got.Keywords[1] != "supply chain" {
		t.Fatalf("unexpected keywords %v", got.Keywords)
	}
	if got.Title != "Chips Are Down Again" {
		t.Fatalf("unexpected title %q", got.Title)
	}
}

func TestDecodeAnalysisDefaultsMissingFields(t *testing.T) {
	t.Parallel()

	got := DecodeAnalysis("NOISE: Something happened.\nCATEGORY: gardening")

	if got.Noise != "Something happened." {
		t.Fatalf("unexpected noise %q", got.Noise)
	}
	if got.Translation != "" || got.Action != "" {
		t.Fatalf("expected empty defaults, got %+v", got)
	}
	if got.Category != domain.DefaultCategory {
		t.Fatalf("expected default category, got %q", got.Category)
	}
	if got.Title != domain.DefaultTitle {
		t.Fatalf("expected default title, got %q", got.Title)
	}
	if len(got.Keywords) != 0 {
		t.Fatalf("expected no keywords, got %v", got.Keywords)
	}

	want := []string{labelTranslation, labelAction, labelKeywords, labelTitle, labelCategory + " (unrecognized)"}
	if !reflect.DeepEqual(got.Missing, want) {
		t.Fatalf("unexpected missing list %v", got.Missing)
	}
}

func TestDecodeAnalysisEmptyResponse(t *testing.T) {
	t.Parallel()

	got := DecodeAnalysis("")
	if len(got.Missing) != 6 {
		t.Fatalf("expected all six fields missing, got %v", got.Missing)
	}
	if got.Title != domain.DefaultTitle || got.Category != domain.DefaultCategory {
		t.Fatalf("unexpected defaults %+v", got)
	}
}

func TestBuildPromptMentionsEveryLabel(t *testing.T) {
	t.Parallel()

	prompt := BuildPrompt(domain.Article{URL: "https://example.com/a", Text: "body"}, "CMOs")
	for _, label := range []string{"NOISE:", "TRANSLATION:", "ACTION:", "CATEGORY:", "KEYWORDS:", "TITLE:"} {
		if !strings.Contains(prompt, label) {
			t.Fatalf("prompt is missing %s", label)
		}
	}
	if !strings.Contains(prompt, "CMOs") || !strings.Contains(prompt, "leadership") {
		t.Fatalf("prompt lacks audience or categories: %s", prompt)
	}
}

func TestDecodeAnalysisNumberedSections(t *testing.T) {
	t.Parallel()

	text := "1. NOISE: Acme cut prices.\n" +
		"2. TRANSLATION: Buyers have leverage.\n" +
		"3) ACTION: I would reopen renewals.\n" +
		"4. **CATEGORY:** sales\n" +
		"5. KEYWORDS: pricing, renewals\n" +
		"6. TITLE: Acme Blinks"

	got := DecodeAnalysis(text)

	if len(got.Missing) != 0 {
		t.Fatalf("expected every field, missing %v", got.Missing)
	}
	if got.Noise != "Acme cut prices." || got.Action != "I would reopen renewals." {
		t.Fatalf("unexpected narrative fields %+v", got)
	}
	if got.Category != domain.CategorySales || got.Title != "Acme Blinks" {
		t.Fatalf("unexpected category/title %q %q", got.Category, got.Title)
	}
	if want := []string{"pricing", "renewals"}; !reflect.DeepEqual(got.Keywords, want) {
		t.Fatalf("unexpected keywords %v", got.Keywords)
	}
}

func TestDecodeAnalysisBulletedKeywords(t *testing.T) {
	t.Parallel()

	text := "NOISE: a\nKEYWORDS:\n- pricing\n- Renewals\n• acme\n* go to market\n1. churn\nTITLE: T"

	got := DecodeAnalysis(text)
	want := []string{"pricing", "renewals", "acme", "go to market", "churn"}
	if !reflect.DeepEqual(got.Keywords, want) {
		t.Fatalf("unexpected keywords %v", got.Keywords)
	}
	if got.Title != "T" {
		t.Fatalf("unexpected title %q", got.Title)
	}
}

func TestCleanValueKeepsUnpairedQuotes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{`He said "buy"`, `He said "buy"`},
		{`"Wrapped in quotes"`, `Wrapped in quotes`},
		{`**bold sentence**`, `bold sentence`},
		{`“curly”`, `curly`},
		{`it's Acme's move'`, `it's Acme's move'`},
		{"  spaced\n  out  ", "spaced out"},
	}
	for _, tt := range tests {
		if got := cleanValue(tt.in); got != tt.want {
			t.Fatalf("cleanValue(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
