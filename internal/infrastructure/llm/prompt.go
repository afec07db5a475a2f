package llm

import (
	"fmt"
	"strings"

	"PulseIngest/internal/domain"
)

const systemPrompt = "You are a sharp industry analyst who turns news articles into short, plain-spoken briefings. Follow the output format exactly."

// BuildPrompt asks for the six labeled sections DecodeAnalysis understands.
func BuildPrompt(article domain.Article, audience string) string {
	if strings.TrimSpace(audience) == "" {
		audience = "business leaders"
	}

	categories := make([]string, 0, len(domain.Categories))
	for _, c := range domain.Categories {
		categories = append(categories, string(c))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Read the article below and write a briefing for %s.\n\n", audience)
	b.WriteString("Respond with exactly these labeled sections, each on its own line:\n")
	b.WriteString("NOISE: one or two sentences on what happened.\n")
	fmt.Fprintf(&b, "TRANSLATION: one or two sentences on why it matters to %s.\n", audience)
	b.WriteString("ACTION: one or two sentences, in the first person, on what I would do about it this week.\n")
	fmt.Fprintf(&b, "CATEGORY: exactly one of %s.\n", strings.Join(categories, ", "))
	b.WriteString("KEYWORDS: 3 to 5 comma-separated keywords.\n")
	b.WriteString("TITLE: a punchy title of at most 8 words.\n\n")

	fmt.Fprintf(&b, "Source URL: %s\n", article.URL)
	if article.Title != "" {
		fmt.Fprintf(&b, "Article title: %s\n", article.Title)
	}
	b.WriteString("Article text:\n")
	b.WriteString(article.Text)
	return b.String()
}
