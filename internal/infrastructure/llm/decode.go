package llm

import (
	"regexp"
	"strings"

	"PulseIngest/internal/domain"
)

const maxKeywords = 5

// Section labels, in prompt order.
const (
	labelNoise       = "NOISE"
	labelTranslation = "TRANSLATION"
	labelAction      = "ACTION"
	labelCategory    = "CATEGORY"
	labelKeywords    = "KEYWORDS"
	labelTitle       = "TITLE"
)

var (
	// reLabel finds "LABEL:" at the start of a line, tolerating markdown bold,
	// headings, list bullets and "1." / "1)" numbering around the label.
	reLabel = regexp.MustCompile(`(?im)^[ \t>*#_\-]*(?:\d+[.)][ \t]*)?[ \t>*#_\-]*(NOISE|TRANSLATION|ACTION|CATEGORY|KEYWORDS|TITLE)[ \t*_]*:[ \t*_]*`)

	reListMarker = regexp.MustCompile(`^(?:[-•*+]|\d+[.)])\s*`)
)

// wrapPairs maps an opening wrapper to its closing counterpart.
var wrapPairs = map[rune]rune{
	'"':  '"',
	'\'': '\'',
	'`':  '`',
	'*':  '*',
	'_':  '_',
	'“':  '”',
	'‘':  '’',
}

// DecodeAnalysis extracts the labeled sections from free-form model output.
// It never fails: absent sections default (empty text, DefaultCategory,
// DefaultTitle) and are listed in Analysis.Missing.
func DecodeAnalysis(text string) domain.Analysis {
	sections := splitSections(text)

	analysis := domain.Analysis{
		Noise:       cleanValue(sections[labelNoise]),
		Translation: cleanValue(sections[labelTranslation]),
		Action:      cleanValue(sections[labelAction]),
		Title:       firstLine(sections[labelTitle]),
	}

	for _, label := range []string{labelNoise, labelTranslation, labelAction, labelCategory, labelKeywords, labelTitle} {
		if cleanValue(sections[label]) == "" {
			analysis.Missing = append(analysis.Missing, label)
		}
	}

	category, ok := domain.ParseCategory(firstLine(sections[labelCategory]))
	if !ok && sections[labelCategory] != "" {
		analysis.Missing = append(analysis.Missing, labelCategory+" (unrecognized)")
	}
	analysis.Category = category

	if analysis.Title == "" {
		analysis.Title = domain.DefaultTitle
	}
	analysis.Keywords = splitKeywords(sections[labelKeywords])

	return analysis
}

func splitSections(text string) map[string]string {
	sections := map[string]string{}
	matches := reLabel.FindAllStringSubmatchIndex(text, -1)
	for i, m := range matches {
		label := strings.ToUpper(text[m[2]:m[3]])
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		if _, seen := sections[label]; seen {
			continue
		}
		sections[label] = strings.TrimSpace(text[m[1]:end])
	}
	return sections
}

// cleanValue collapses whitespace and peels wrappers only when they come in
// matching pairs, so quotes inside the text survive.
func cleanValue(v string) string {
	v = strings.Join(strings.Fields(v), " ")
	for {
		runes := []rune(v)
		if len(runes) < 2 {
			return v
		}
		closing, ok := wrapPairs[runes[0]]
		if !ok || runes[len(runes)-1] != closing {
			return v
		}
		v = strings.TrimSpace(string(runes[1 : len(runes)-1]))
	}
}

func firstLine(v string) string {
	v = strings.TrimSpace(v)
	if i := strings.IndexAny(v, "\r\n"); i >= 0 {
		v = v[:i]
	}
	return strings.Trim(v, `*_"'[]. `)
}

func splitKeywords(v string) []string {
	keywords := []string{}
	seen := map[string]bool{}
	for _, part := range strings.FieldsFunc(v, func(r rune) bool {
		return r == ',' || r == ';' || r == '|' || r == '\n' || r == '\r'
	}) {
		part = reListMarker.ReplaceAllString(strings.TrimSpace(part), "")
		kw := strings.ToLower(strings.Trim(strings.Join(strings.Fields(part), " "), `#*_"'.`))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		keywords = append(keywords, kw)
		if len(keywords) == maxKeywords {
			break
		}
	}
	return keywords
}
