package catalogue

import (
	"strings"

	"github.com/artifex-heritage/artifex/internal/models"
)

// AllCategories is the wildcard category that disables category filtering.
const AllCategories = "All"

// MaxSuggestions caps the autocomplete list.
const MaxSuggestions = 5

// Categories is the fixed set curators file artifacts under.
var Categories = []string{
	"Satras",
	"Mukhas",
	"Ahom Dynasty",
	"Folk Traditions",
	"Royal Seals",
	"Language & Scripts",
}

// IsKnownCategory reports whether name is one of Categories.
func IsKnownCategory(name string) bool {
	for _, c := range Categories {
		if c == name {
			return true
		}
	}
	return false
}

// Query is the current search state: free text plus a category selector.
// An empty Category behaves like AllCategories.
type Query struct {
	FreeText string `json:"search"`
	Category string `json:"category"`
}

// WithSuggestion commits a picked suggestion as the active free text.
func (q Query) WithSuggestion(suggestion string) Query {
	q.FreeText = suggestion
	return q
}

func (q Query) allCategories() bool {
	return q.Category == "" || q.Category == AllCategories
}

// Filter returns the records matching q, in catalogue order.
// The result never aliases records, so callers may keep it across snapshot swaps.
func Filter(records []models.CatalogueRecord, q Query) []models.CatalogueRecord {
	needle := strings.ToLower(q.FreeText)
	out := make([]models.CatalogueRecord, 0, len(records))
	for _, rec := range records {
		if !q.allCategories() && rec.Category != q.Category {
			continue
		}
		if needle != "" && !matchesText(rec, needle) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// Suggest builds the autocomplete list for text: the name and category of
// every matching record, deduplicated, at most MaxSuggestions entries.
// Blank text yields no suggestions.
func Suggest(records []models.CatalogueRecord, text string) []string {
	if strings.TrimSpace(text) == "" {
		return []string{}
	}

	needle := strings.ToLower(text)
	seen := make(map[string]struct{}, MaxSuggestions)
	out := make([]string, 0, MaxSuggestions)
	add := func(s string) {
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	for _, rec := range records {
		if !matchesText(rec, needle) {
			continue
		}
		add(rec.Name)
		add(rec.Category)
		if len(out) >= MaxSuggestions {
			break
		}
	}

	if len(out) > MaxSuggestions {
		out = out[:MaxSuggestions]
	}
	return out
}

// matchesText expects needle already lower-cased.
func matchesText(rec models.CatalogueRecord, needle string) bool {
	if strings.Contains(strings.ToLower(rec.Name), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(rec.Category), needle) {
		return true
	}
	for _, kw := range rec.Keywords {
		if strings.Contains(strings.ToLower(kw), needle) {
			return true
		}
	}
	return false
}
