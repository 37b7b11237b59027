package catalogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/artifex-heritage/artifex/internal/frontql"
	"github.com/artifex-heritage/artifex/internal/models"
)

var (
	// ErrUnknownCategory is returned when a write names a category outside Categories.
	ErrUnknownCategory = errors.New("unknown category")
	// ErrNameRequired is returned when a write has a blank name.
	ErrNameRequired = errors.New("artifact name is required")
)

// artifactRow is the write shape of the collection; keywords travel as a JSON string.
type artifactRow struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Keywords string `json:"keywords"`
	ImageURL string `json:"imageUrl"`
}

// Repository writes artifacts to the hosted collection.
type Repository struct {
	client     *frontql.Client
	collection string
}

// NewRepository creates a repository for one collection.
func NewRepository(client *frontql.Client, collection string) *Repository {
	return &Repository{client: client, collection: collection}
}

// CleanKeywords trims each keyword and drops blanks and repeats, keeping first-seen order.
func CleanKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	seen := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}

// Validate checks and cleans an artifact before it is written.
func Validate(in models.ArtifactInput) (models.ArtifactInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return in, ErrNameRequired
	}
	if !IsKnownCategory(in.Category) {
		return in, fmt.Errorf("%w: %q", ErrUnknownCategory, in.Category)
	}
	in.Keywords = CleanKeywords(in.Keywords)
	return in, nil
}

func toRow(in models.ArtifactInput) artifactRow {
	return artifactRow{
		Name:     in.Name,
		Category: in.Category,
		Keywords: EncodeKeywords(in.Keywords),
		ImageURL: in.ImageURL,
	}
}

// Create inserts a new artifact and returns it as the backend echoed it.
func (r *Repository) Create(ctx context.Context, in models.ArtifactInput) (models.CatalogueRecord, error) {
	in, err := Validate(in)
	if err != nil {
		return models.CatalogueRecord{}, err
	}

	body, err := r.client.Create(ctx, r.collection, toRow(in), recordFields)
	if err != nil {
		return models.CatalogueRecord{}, fmt.Errorf("failed to create artifact: %w", err)
	}

	rec, err := r.echoed(body, "", in)
	if err != nil {
		return models.CatalogueRecord{}, err
	}
	slog.Info("Artifact created", "id", rec.ID, "name", rec.Name, "category", rec.Category)
	return rec, nil
}

// Update replaces the writable fields of artifact id and returns the new record.
func (r *Repository) Update(ctx context.Context, id string, in models.ArtifactInput) (models.CatalogueRecord, error) {
	in, err := Validate(in)
	if err != nil {
		return models.CatalogueRecord{}, err
	}

	body, err := r.client.Update(ctx, r.collection, id, toRow(in))
	if err != nil {
		return models.CatalogueRecord{}, fmt.Errorf("failed to update artifact %s: %w", id, err)
	}

	rec, err := r.echoed(body, id, in)
	if err != nil {
		return models.CatalogueRecord{}, err
	}
	slog.Info("Artifact updated", "id", rec.ID)
	return rec, nil
}

// Delete removes artifact id.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if err := r.client.Delete(ctx, r.collection, id); err != nil {
		return fmt.Errorf("failed to delete artifact %s: %w", id, err)
	}
	slog.Info("Artifact deleted", "id", id)
	return nil
}

// echoed builds the record for a successful write. The backend's echo wins
// when it carries an id; otherwise the input is used with the known id.
func (r *Repository) echoed(body []byte, id string, in models.ArtifactInput) (models.CatalogueRecord, error) {
	if row, err := frontql.FirstRow(body); err == nil {
		if rec, err := Normalize(row); err == nil {
			if rec.Name == "" && rec.Category == "" {
				rec.Name, rec.Category, rec.ImageURL = in.Name, in.Category, in.ImageURL
				rec.Keywords = models.Keywords(in.Keywords)
			}
			return rec, nil
		}
	}
	if id == "" {
		return models.CatalogueRecord{}, fmt.Errorf("failed to read created artifact: %w", frontql.ErrMalformedResponse)
	}
	return models.CatalogueRecord{
		ID:       id,
		Name:     in.Name,
		Category: in.Category,
		Keywords: models.Keywords(in.Keywords),
		ImageURL: in.ImageURL,
	}, nil
}
