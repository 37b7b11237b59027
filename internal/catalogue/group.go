package catalogue

import "github.com/artifex-heritage/artifex/internal/models"

// DefaultPreview is how many members a collapsed section shows.
const DefaultPreview = 5

// Section is one category's slice of the filtered results.
type Section struct {
	Title string
	Items []models.CatalogueRecord
}

// Preview returns at most n members; n <= 0 means all of them.
func (s Section) Preview(n int) []models.CatalogueRecord {
	if n <= 0 || n >= len(s.Items) {
		return s.Items
	}
	return s.Items[:n]
}

// Group partitions already-filtered records by category. Sections appear in
// the order their category is first seen and members keep their input order.
func Group(records []models.CatalogueRecord) []Section {
	index := make(map[string]int)
	sections := make([]Section, 0)
	for _, rec := range records {
		i, ok := index[rec.Category]
		if !ok {
			i = len(sections)
			index[rec.Category] = i
			sections = append(sections, Section{Title: rec.Category})
		}
		sections[i].Items = append(sections[i].Items, rec)
	}
	return sections
}
