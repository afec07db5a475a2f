package domain

import (
	"strings"
	"time"
	"unicode"
)

// Category is one of the fixed pulse categories.
type Category string

const (
	CategoryAI         Category = "ai"
	CategoryMarketing  Category = "marketing"
	CategorySales      Category = "sales"
	CategoryStrategy   Category = "strategy"
	CategoryLeadership Category = "leadership"

	// DefaultCategory is used when the generated category is missing or unknown.
	DefaultCategory = CategoryStrategy
	// DefaultTitle is used when the generated title is missing.
	DefaultTitle = "Market Pulse"
)

// Categories lists the closed category set in prompt order.
var Categories = []Category{
	CategoryAI,
	CategoryMarketing,
	CategorySales,
	CategoryStrategy,
	CategoryLeadership,
}

// ParseCategory maps free text onto the closed set, falling back to DefaultCategory.
func ParseCategory(value string) (Category, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return DefaultCategory, false
	}
	for _, c := range Categories {
		if value == string(c) {
			return c, true
		}
	}
	for _, word := range strings.FieldsFunc(value, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		for _, c := range Categories {
			if word == string(c) {
				return c, true
			}
		}
	}
	return DefaultCategory, false
}

// SourceRef points back at the material an item was generated from.
type SourceRef struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// PulseItem is one persisted analysis. Items are immutable once written.
type PulseItem struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Category    Category    `json:"category"`
	Noise       string      `json:"noise"`
	Translation string      `json:"translation"`
	Action      string      `json:"action"`
	Date        string      `json:"date"`
	Timestamp   string      `json:"timestamp,omitempty"`
	Keywords    []string    `json:"keywords"`
	Sources     []SourceRef `json:"sources"`
}

// DisplayDateLayout formats PulseItem.Date.
const DisplayDateLayout = "January 2, 2006"

var displayDateLayouts = []string{
	DisplayDateLayout,
	"Jan 2, 2006",
	"2006-01-02",
	time.RFC3339,
}

// EffectiveTime prefers the machine timestamp and falls back to the display date.
// Items with neither sort last.
func (p PulseItem) EffectiveTime() time.Time {
	if p.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339Nano, p.Timestamp); err == nil {
			return ts
		}
	}
	date := strings.TrimSpace(p.Date)
	for _, layout := range displayDateLayouts {
		if ts, err := time.Parse(layout, date); err == nil {
			return ts
		}
	}
	return time.Time{}
}

// Analysis is the best-effort decode of one generation response.
// Missing lists the labeled fields that were absent and defaulted.
type Analysis struct {
	Title       string
	Category    Category
	Noise       string
	Translation string
	Action      string
	Keywords    []string
	Missing     []string
}

// Manifest is the aggregate index over every persisted item, newest first.
type Manifest struct {
	Generated  time.Time   `json:"generated"`
	TotalItems int         `json:"totalItems"`
	Items      []PulseItem `json:"items"`
}

// StoredRecord is the raw content of one persisted item record.
type StoredRecord struct {
	Key  string
	Data []byte
	Err  error
}
