package catalogue

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/artifex-heritage/artifex/internal/models"
)

// ErrKeywordDecodeFailed marks a keywords value that could not be decoded into a list.
// It never leaves Normalize; the record keeps an empty keyword list instead.
var ErrKeywordDecodeFailed = errors.New("keyword decode failed")

// rawRecord is one row as the backend returns it. Fields whose type varies
// between endpoint generations are kept raw and narrowed in Normalize.
type rawRecord struct {
	ID        json.RawMessage `json:"id"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Keywords  json.RawMessage `json:"keywords"`
	ImageURL  string          `json:"imageUrl"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
}

// Normalize decodes one backend row into the canonical record shape.
// Keyword problems degrade to an empty list; only a row that is not an
// object at all is rejected.
func Normalize(row json.RawMessage) (models.CatalogueRecord, error) {
	var raw rawRecord
	if err := json.Unmarshal(row, &raw); err != nil {
		return models.CatalogueRecord{}, fmt.Errorf("failed to decode record: %w", err)
	}

	id, err := decodeID(raw.ID)
	if err != nil {
		return models.CatalogueRecord{}, err
	}

	keywords, err := DecodeKeywords(raw.Keywords)
	if err != nil {
		slog.Warn("Keywords could not be decoded, using empty list", "id", id, "error", err)
	}

	return models.CatalogueRecord{
		ID:        id,
		Name:      raw.Name,
		Category:  raw.Category,
		Keywords:  keywords,
		ImageURL:  raw.ImageURL,
		CreatedAt: raw.CreatedAt,
		UpdatedAt: raw.UpdatedAt,
	}, nil
}

// NormalizeAll normalizes rows in order. Rows that are not records are
// skipped and logged; they never abort the batch. A repeated id keeps its
// first occurrence so ids stay unique within the snapshot.
func NormalizeAll(rows []json.RawMessage) []models.CatalogueRecord {
	records := make([]models.CatalogueRecord, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for i, row := range rows {
		rec, err := Normalize(row)
		if err != nil {
			slog.Warn("Skipping malformed catalogue row", "index", i, "error", err)
			continue
		}
		if _, dup := seen[rec.ID]; dup {
			slog.Warn("Skipping duplicate catalogue id", "index", i, "id", rec.ID)
			continue
		}
		seen[rec.ID] = struct{}{}
		records = append(records, rec)
	}
	return records
}

// DecodeKeywords turns the stored keywords value into a list.
//
// A JSON string is parsed as an encoded list; a list is used as is; null or
// absent yields an empty list. The returned slice is never nil, even when an
// error wrapping ErrKeywordDecodeFailed is returned.
func DecodeKeywords(raw json.RawMessage) (models.Keywords, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return models.Keywords{}, nil
	}

	switch raw[0] {
	case '"':
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return models.Keywords{}, fmt.Errorf("%w: %v", ErrKeywordDecodeFailed, err)
		}
		inner := bytes.TrimSpace([]byte(encoded))
		if len(inner) == 0 || bytes.Equal(inner, []byte("null")) {
			return models.Keywords{}, nil
		}
		if inner[0] != '[' {
			return models.Keywords{}, fmt.Errorf("%w: encoded value is not a list: %s", ErrKeywordDecodeFailed, truncate(encoded, 40))
		}
		return decodeList(inner)
	case '[':
		return decodeList(raw)
	default:
		return models.Keywords{}, fmt.Errorf("%w: unexpected keywords value %s", ErrKeywordDecodeFailed, truncate(string(raw), 40))
	}
}

// decodeList keeps the string elements of a JSON array; anything else,
// null included, is dropped.
func decodeList(raw []byte) (models.Keywords, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return models.Keywords{}, fmt.Errorf("%w: %v", ErrKeywordDecodeFailed, err)
	}
	list := make(models.Keywords, 0, len(items))
	for _, item := range items {
		item = bytes.TrimSpace(item)
		if len(item) == 0 || item[0] != '"' {
			continue
		}
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			continue
		}
		list = append(list, s)
	}
	return list, nil
}

// EncodeKeywords serializes keywords the way the backend stores them.
func EncodeKeywords(keywords []string) string {
	if keywords == nil {
		keywords = []string{}
	}
	data, err := json.Marshal(keywords)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", fmt.Errorf("record has no id")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("failed to decode id: %w", err)
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("failed to decode id: %w", err)
	}
	return n.String(), nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
