package snapshot

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/artifex-heritage/artifex/internal/models"
	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"
)

// Format is a snapshot encoding.
type Format string

const (
	FormatJSONL   Format = "jsonl"
	FormatYAML    Format = "yaml"
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// ErrUnsupportedFormat is returned for an unknown format or file extension.
var ErrUnsupportedFormat = errors.New("unsupported snapshot format")

// FormatFromPath picks a format by file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return FormatParquet, nil
	case ".jsonl", ".json":
		return FormatJSONL, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: %s (supported: .parquet, .jsonl, .yaml, .csv)", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// document is the YAML layout of a snapshot.
type document struct {
	Count   int                      `yaml:"count"`
	Records []models.CatalogueRecord `yaml:"records"`
}

// Write encodes records to w. Parquet needs a file and is handled by WriteFile.
func Write(w io.Writer, format Format, records []models.CatalogueRecord) error {
	switch format {
	case FormatJSONL:
		enc := json.NewEncoder(w)
		for _, rec := range records {
			if err := enc.Encode(rec); err != nil {
				return fmt.Errorf("failed to encode record %s: %w", rec.ID, err)
			}
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(document{Count: len(records), Records: records}); err != nil {
			return fmt.Errorf("failed to marshal YAML: %w", err)
		}
		return enc.Close()
	case FormatCSV:
		return writeCSV(w, records)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

func writeCSV(w io.Writer, records []models.CatalogueRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"id", "name", "category", "keywords", "image_url", "created_at", "updated_at"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, rec := range records {
		row := []string{
			rec.ID,
			rec.Name,
			rec.Category,
			strings.Join(rec.Keywords, "; "),
			rec.ImageURL,
			rec.CreatedAt,
			rec.UpdatedAt,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteFile writes records to path in the format its extension names.
func WriteFile(path string, records []models.CatalogueRecord) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer file.Close()

	if format == FormatParquet {
		if err := parquet.Write(file, records); err != nil {
			return fmt.Errorf("failed to write parquet: %w", err)
		}
	} else if err := Write(file, format, records); err != nil {
		return err
	}

	slog.Info("Snapshot written", "path", path, "format", format, "records", len(records))
	return file.Close()
}

// Load reads a snapshot back as raw rows, ready for normalization.
// Only .parquet and .jsonl/.json files can be loaded.
func Load(path string) ([]json.RawMessage, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatParquet:
		return loadParquet(path)
	case FormatJSONL:
		return loadJSONL(path)
	default:
		return nil, fmt.Errorf("%w: cannot load %s snapshots", ErrUnsupportedFormat, format)
	}
}

func loadJSONL(path string) ([]json.RawMessage, error) {
	slog.Debug("Opening JSONL snapshot", "path", path)

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer file.Close()

	var rows []json.RawMessage
	scanner := bufio.NewScanner(file)
	const maxCapacity = 1024 * 1024
	scanner.Buffer(make([]byte, 64*1024), maxCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !json.Valid([]byte(line)) {
			return nil, fmt.Errorf("failed to parse JSON at line %d", lineNum)
		}
		rows = append(rows, json.RawMessage(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading snapshot: %w", err)
	}

	slog.Debug("Finished reading JSONL snapshot", "rows", len(rows), "lines", lineNum)
	return rows, nil
}

func loadParquet(path string) ([]json.RawMessage, error) {
	slog.Debug("Opening Parquet snapshot", "path", path)

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[models.CatalogueRecord](pf)
	defer reader.Close()

	rows := make([]json.RawMessage, 0, pf.NumRows())
	batch := make([]models.CatalogueRecord, 128)
	for {
		n, err := reader.Read(batch)
		for _, rec := range batch[:n] {
			data, mErr := json.Marshal(rec)
			if mErr != nil {
				return nil, fmt.Errorf("failed to re-encode parquet row: %w", mErr)
			}
			rows = append(rows, data)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}

	slog.Debug("Finished reading Parquet snapshot", "rows", len(rows))
	return rows, nil
}
