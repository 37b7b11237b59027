package catalogue

import (
	"fmt"
	"testing"

	"github.com/artifex-heritage/artifex/internal/models"
	"github.com/google/go-cmp/cmp"
)

func scenarioCatalogue() Catalogue {
	return Catalogue{
		{ID: "1", Name: "Royal Seal", Category: "Royal Seals", Keywords: models.Keywords{"ahom", "wax"}, ImageURL: "x"},
		{ID: "2", Name: "Tai Script Tablet", Category: "Language & Scripts", Keywords: models.Keywords{"tai", "ahom"}, ImageURL: "y"},
	}
}

func ids(records []models.CatalogueRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func TestFilter(t *testing.T) {
	c := Catalogue{
		{ID: "1", Name: "Royal Seal", Category: "Royal Seals", Keywords: models.Keywords{"ahom", "wax"}},
		{ID: "2", Name: "Tai Script Tablet", Category: "Language & Scripts", Keywords: models.Keywords{"tai", "ahom"}},
		{ID: "3", Name: "Bhaona Mask", Category: "Mukhas", Keywords: models.Keywords{"Satra", "bamboo"}},
		{ID: "4", Name: "Manuscript", Category: "Language & Scripts", Keywords: models.Keywords{}},
	}

	tests := []struct {
		name  string
		query Query
		want  []string
	}{
		{name: "inert query is identity", query: Query{Category: AllCategories}, want: []string{"1", "2", "3", "4"}},
		{name: "empty category is wildcard", query: Query{}, want: []string{"1", "2", "3", "4"}},
		{name: "keyword match in both", query: Query{FreeText: "ahom", Category: AllCategories}, want: []string{"1", "2"}},
		{name: "case insensitive name", query: Query{FreeText: "ROYAL"}, want: []string{"1"}},
		{name: "category text matches", query: Query{FreeText: "scripts"}, want: []string{"2", "4"}},
		{name: "keyword substring", query: Query{FreeText: "satr"}, want: []string{"3"}},
		{name: "category only", query: Query{Category: "Mukhas"}, want: []string{"3"}},
		{name: "category excludes text match", query: Query{FreeText: "seal", Category: "Language & Scripts"}, want: []string{}},
		{name: "category is exact", query: Query{Category: "mukhas"}, want: []string{}},
		{name: "leading space is literal", query: Query{FreeText: " mask"}, want: []string{"3"}},
		{name: "trailing space is literal", query: Query{FreeText: "mask "}, want: []string{}},
		{name: "no match", query: Query{FreeText: "zzz"}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(Filter(c, tt.query))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Filter() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFilterEmptyCatalogue(t *testing.T) {
	got := Filter(nil, Query{FreeText: "seal"})
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
}

func TestFilterIsSubsequence(t *testing.T) {
	c := make(Catalogue, 0, 40)
	for i := 0; i < 40; i++ {
		c = append(c, models.CatalogueRecord{
			ID:       fmt.Sprint(i),
			Name:     fmt.Sprintf("item %d", i),
			Category: Categories[i%len(Categories)],
			Keywords: models.Keywords{fmt.Sprintf("k%d", i%7)},
		})
	}

	queries := []Query{
		{FreeText: "1"},
		{FreeText: "k3", Category: "Mukhas"},
		{Category: "Royal Seals"},
		{FreeText: "item"},
	}
	for _, q := range queries {
		got := Filter(c, q)
		next := 0
		for _, rec := range got {
			found := false
			for next < len(c) {
				if c[next].ID == rec.ID {
					found = true
					next++
					break
				}
				next++
			}
			if !found {
				t.Fatalf("query %+v: %s is out of order or fabricated", q, rec.ID)
			}
		}
	}
}

func TestSuggest(t *testing.T) {
	c := scenarioCatalogue()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "scenario A", text: "ahom", want: []string{"Royal Seal", "Royal Seals", "Tai Script Tablet", "Language & Scripts"}},
		{name: "empty text", text: "", want: []string{}},
		{name: "blank text", text: "   ", want: []string{}},
		{name: "single match", text: "wax", want: []string{"Royal Seal", "Royal Seals"}},
		{name: "no match", text: "zzz", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Suggest(c, tt.text)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Suggest(%q) mismatch (-want +got):\n%s", tt.text, diff)
			}
		})
	}
}

func TestSuggestDedupesAndCaps(t *testing.T) {
	c := Catalogue{
		{ID: "1", Name: "Mask A", Category: "Mukhas"},
		{ID: "2", Name: "Mask A", Category: "Mukhas"},
		{ID: "3", Name: "Mask B", Category: "Mukhas"},
		{ID: "4", Name: "Mask C", Category: "Folk Traditions", Keywords: models.Keywords{"mask"}},
		{ID: "5", Name: "Mask D", Category: "Satras"},
		{ID: "6", Name: "Mask E", Category: "Royal Seals"},
	}

	got := Suggest(c, "mask")
	want := []string{"Mask A", "Mukhas", "Mask B", "Mask C", "Folk Traditions"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Suggest mismatch (-want +got):\n%s", diff)
	}

	seen := map[string]bool{}
	for _, s := range got {
		if seen[s] {
			t.Errorf("duplicate suggestion %q", s)
		}
		seen[s] = true
	}
}

func TestWithSuggestion(t *testing.T) {
	q := Query{FreeText: "roy", Category: "Royal Seals"}
	got := q.WithSuggestion("Royal Seal")
	want := Query{FreeText: "Royal Seal", Category: "Royal Seals"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("WithSuggestion mismatch (-want +got):\n%s", diff)
	}
	if q.FreeText != "roy" {
		t.Error("WithSuggestion must not modify the receiver")
	}
}

func TestIsKnownCategory(t *testing.T) {
	if !IsKnownCategory("Language & Scripts") {
		t.Error("expected Language & Scripts to be known")
	}
	if IsKnownCategory(AllCategories) {
		t.Error("the wildcard is not a real category")
	}
}
