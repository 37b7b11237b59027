package catalogue

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/artifex-heritage/artifex/internal/models"
	"github.com/google/go-cmp/cmp"
)

func TestDecodeKeywords(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    models.Keywords
		wantErr bool
	}{
		{name: "encoded list", raw: `"[\"ahom\",\"wax\"]"`, want: models.Keywords{"ahom", "wax"}},
		{name: "already a list", raw: `["tai","ahom"]`, want: models.Keywords{"tai", "ahom"}},
		{name: "list drops non-strings", raw: `["tai",3,null]`, want: models.Keywords{"tai"}},
		{name: "list drops nested values", raw: `["tai",{"a":1},["b"],true]`, want: models.Keywords{"tai"}},
		{name: "encoded list drops non-strings", raw: `"[\"tai\",3,null]"`, want: models.Keywords{"tai"}},
		{name: "encoded empty list", raw: `"[]"`, want: models.Keywords{}},
		{name: "encoded broken list", raw: `"[\"tai\""`, want: models.Keywords{}, wantErr: true},
		{name: "absent", raw: ``, want: models.Keywords{}},
		{name: "null", raw: `null`, want: models.Keywords{}},
		{name: "empty string", raw: `""`, want: models.Keywords{}},
		{name: "encoded null", raw: `"null"`, want: models.Keywords{}},
		{name: "invalid json string", raw: `"not-json{"`, want: models.Keywords{}, wantErr: true},
		{name: "encoded object", raw: `"{}"`, want: models.Keywords{}, wantErr: true},
		{name: "encoded scalar", raw: `"\"x\""`, want: models.Keywords{}, wantErr: true},
		{name: "number", raw: `42`, want: models.Keywords{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeKeywords(json.RawMessage(tt.raw))
			if tt.wantErr != (err != nil) {
				t.Fatalf("DecodeKeywords(%s) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrKeywordDecodeFailed) {
				t.Errorf("expected ErrKeywordDecodeFailed, got %v", err)
			}
			if got == nil {
				t.Fatal("keywords must never be nil")
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("DecodeKeywords mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalizeBadKeywordsKeepsRecord(t *testing.T) {
	row := json.RawMessage(`{"id":7,"name":"Gold Coin","category":"Ahom Dynasty","keywords":"not-json{","imageUrl":"/coin.jpg","created_at":"2024-01-02"}`)

	got, err := Normalize(row)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	want := models.CatalogueRecord{
		ID:        "7",
		Name:      "Gold Coin",
		Category:  "Ahom Dynasty",
		Keywords:  models.Keywords{},
		ImageURL:  "/coin.jpg",
		CreatedAt: "2024-01-02",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Normalize mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeAll(t *testing.T) {
	rows := []json.RawMessage{
		json.RawMessage(`{"id":"a","name":"First","keywords":"[\"x\"]"}`),
		json.RawMessage(`"not an object"`),
		json.RawMessage(`{"name":"No id"}`),
		json.RawMessage(`{"id":"b","name":"Second","keywords":null}`),
		json.RawMessage(`{"id":"a","name":"Duplicate"}`),
		json.RawMessage(`{"id":3,"name":"Third","keywords":"{bad"}`),
	}

	got := NormalizeAll(rows)
	if diff := cmp.Diff([]string{"a", "b", "3"}, ids(got)); diff != "" {
		t.Fatalf("NormalizeAll ids mismatch (-want +got):\n%s", diff)
	}
	if got[0].Name != "First" {
		t.Errorf("duplicate id must keep its first occurrence, got %q", got[0].Name)
	}
	for _, rec := range got {
		if rec.Keywords == nil {
			t.Errorf("record %s has nil keywords", rec.ID)
		}
	}
}

func TestEncodeKeywords(t *testing.T) {
	if got := EncodeKeywords(nil); got != "[]" {
		t.Errorf("EncodeKeywords(nil) = %q, want []", got)
	}
	encoded := EncodeKeywords([]string{"ahom", "wax"})
	back, err := DecodeKeywords(json.RawMessage(mustMarshal(t, encoded)))
	if err != nil {
		t.Fatalf("DecodeKeywords failed: %v", err)
	}
	if diff := cmp.Diff(models.Keywords{"ahom", "wax"}, back); diff != "" {
		t.Errorf("keywords did not survive encoding (-want +got):\n%s", diff)
	}
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return data
}
