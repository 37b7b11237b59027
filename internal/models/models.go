package models

import (
	"encoding/json"
	"time"
)

// CatalogueRecord is one artifact/exhibit entry as held in the in-memory catalogue
type CatalogueRecord struct {
	ID        string   `json:"id" yaml:"id" parquet:"id"`
	Name      string   `json:"name" yaml:"name" parquet:"name"`
	Category  string   `json:"category" yaml:"category" parquet:"category"`
	Keywords  Keywords `json:"keywords" yaml:"keywords" parquet:"keywords,list"`
	ImageURL  string   `json:"imageUrl" yaml:"imageUrl" parquet:"image_url"`
	CreatedAt string   `json:"created_at,omitempty" yaml:"created_at,omitempty" parquet:"created_at"`
	UpdatedAt string   `json:"updated_at,omitempty" yaml:"updated_at,omitempty" parquet:"updated_at"`
}

// HasImage reports whether the record carries a displayable image path.
func (r CatalogueRecord) HasImage() bool {
	return r.ImageURL != ""
}

// Keywords always encodes as a JSON list, never null.
type Keywords []string

func (k Keywords) MarshalJSON() ([]byte, error) {
	if k == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(k))
}

// ArtifactInput is the writable part of a record, as sent by the admin forms.
type ArtifactInput struct {
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Keywords []string `json:"keywords"`
	ImageURL string   `json:"imageUrl"`
}

// AdminSession is an authenticated curator session
type AdminSession struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is no longer valid at now.
func (s *AdminSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
